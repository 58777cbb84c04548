package packup

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/packup/packup/internal/version"
	"github.com/packup/packup/pkg/commands/install"
	"github.com/packup/packup/pkg/config"
	"github.com/packup/packup/pkg/logging"
)

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	var (
		verbosity   int
		dest        string
		jobs        int
		keepLoader  bool
		keepConfig  bool
		symlinkName string
		excludeFile string
	)

	rootCmd := &cobra.Command{
		Use:     "packup MODPACK",
		Short:   MsgRootShort,
		Long:    MsgRootLong,
		Version: version.Version,
		Args:    cobra.ExactArgs(1),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Setup logging based on verbosity
			logging.SetupLogger(verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(dest)
			if err != nil {
				return err
			}

			opts := install.Options{
				PackPath:    args[0],
				Dest:        dest,
				Jobs:        cfg.Jobs,
				KeepLoader:  cfg.KeepLoader,
				KeepConfig:  cfg.KeepConfig,
				SymlinkName: cfg.LoaderSymlink,
				ExcludeFile: cfg.ExcludeFile,
			}

			// Flags the user set explicitly win over the config file.
			if cmd.Flags().Changed("jobs") {
				opts.Jobs = jobs
			}
			if cmd.Flags().Changed("keep-loader") {
				opts.KeepLoader = keepLoader
			}
			if cmd.Flags().Changed("keep-config") {
				opts.KeepConfig = keepConfig
			}
			if cmd.Flags().Changed("loader-symlink") {
				opts.SymlinkName = symlinkName
			}
			if cmd.Flags().Changed("exclude") {
				opts.ExcludeFile = excludeFile
			}

			result, err := install.Install(cmd.Context(), opts)
			if err != nil {
				return err
			}

			pterm.Success.Printfln(MsgInstallDone, result.PackName, result.PackVersion)
			pterm.Info.Printfln(MsgRunSummary, result.Stored, result.Excluded)
			return nil
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}

	// Global flags
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", MsgFlagVerbose)
	rootCmd.Flags().StringVarP(&dest, "dest", "d", ".", MsgFlagDest)
	rootCmd.Flags().IntVarP(&jobs, "jobs", "j", 10, MsgFlagJobs)
	rootCmd.Flags().BoolVarP(&keepLoader, "keep-loader", "f", false, MsgFlagKeepLoader)
	rootCmd.Flags().BoolVarP(&keepConfig, "keep-config", "c", false, MsgFlagKeepConfig)
	rootCmd.Flags().StringVarP(&symlinkName, "loader-symlink", "s", "minecraft_server.jar", MsgFlagSymlink)
	rootCmd.Flags().StringVarP(&excludeFile, "exclude", "e", "", MsgFlagExclude)

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenconfigCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: MsgVersionShort,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("packup version %s\n", version.Version)
			fmt.Printf("  commit: %s\n", version.Commit)
			fmt.Printf("  built:  %s\n", version.Date)
		},
	}
}

func newGenconfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "genconfig",
		Short: MsgGenconfigShort,
		Long:  MsgGenconfigLong,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), config.GenerateContent())
		},
	}
}
