package main

import (
	"os"

	"github.com/pterm/pterm"

	"github.com/packup/packup/cmd/packup"
)

func main() {
	rootCmd := packup.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Printfln("Error: %v", err)
		os.Exit(1)
	}
}
