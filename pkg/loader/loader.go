// Package loader downloads and runs the mod loader's external
// installer and maintains the server jar symlink.
package loader

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/packup/packup/pkg/errors"
	"github.com/packup/packup/pkg/fetch"
	"github.com/packup/packup/pkg/logging"
	"github.com/packup/packup/pkg/types"
)

const (
	defaultInstallerBase = "https://files.minecraftforge.net/maven/net/minecraftforge/forge"
	installerPathFormat  = "%s/forge-%s-installer.jar"

	// installServerFlag puts the installer into headless server mode.
	installServerFlag = "--installServer"
)

// CommandRunner executes the installer subprocess. It exists so tests
// can observe the invocation without running java.
type CommandRunner func(ctx context.Context, dir, name string, args ...string) error

// Options configures one loader update.
type Options struct {
	// MCVersion and LoaderVersion come from the manifest.
	MCVersion     string
	LoaderVersion string

	// ScratchDir receives the downloaded installer jar.
	ScratchDir string

	// InstallDir is the installation root; the installer runs with it
	// as working directory.
	InstallDir string

	// SymlinkName, when non-empty, is the relative symlink created in
	// InstallDir pointing at the installed loader jar.
	SymlinkName string

	Fetcher *fetch.Fetcher
	FS      types.FS

	// Run defaults to executing the command with os/exec.
	Run CommandRunner

	// installerBase overrides the release archive URL in tests.
	installerBase string
}

// Update downloads the loader installer for the manifest's versions
// and runs it in server-install mode inside the installation directory.
//
// Some historical platform releases name their installer artifact with
// the platform version repeated; when the primary URL answers "not
// found" the alternate construction is tried once. Any other fetch
// failure is fatal and not retried.
func Update(ctx context.Context, opts Options) error {
	logger := logging.GetLogger("loader")

	run := opts.Run
	if run == nil {
		run = execRunner
	}

	fullVersion := opts.MCVersion + "-" + opts.LoaderVersion
	logger.Info().Str("version", fullVersion).Msg("Updating loader")

	installerPath, err := downloadInstaller(ctx, opts, fullVersion)
	if errors.IsErrorCode(err, errors.ErrRemoteNotFound) {
		fullVersion += "-" + opts.MCVersion
		installerPath, err = downloadInstaller(ctx, opts, fullVersion)
	}
	if err != nil {
		return errors.Wrapf(err, errors.ErrInstallerFetch, "cannot download loader installer %s", fullVersion)
	}

	logger.Debug().Str("installer", installerPath).Msg("Loader installer downloaded")

	if err := run(ctx, opts.InstallDir, "java", "-jar", installerPath, installServerFlag); err != nil {
		return errors.Wrapf(err, errors.ErrInstallerFailed, "loader installer failed for %s", fullVersion)
	}

	if err := updateSymlink(opts, installerPath); err != nil {
		return err
	}

	logger.Info().Str("version", fullVersion).Msg("Loader update done")
	return nil
}

func downloadInstaller(ctx context.Context, opts Options, fullVersion string) (string, error) {
	base := opts.installerBase
	if base == "" {
		base = defaultInstallerBase
	}
	url := base + "/" + fmt.Sprintf(installerPathFormat, fullVersion, fullVersion)
	resolved, _, err := opts.Fetcher.Transfer(ctx, url, opts.ScratchDir, "")
	if err != nil {
		return "", err
	}
	return filepath.Join(opts.ScratchDir, resolved.Filename), nil
}

// updateSymlink points the configured symlink at the jar the installer
// produced. The loader jar carries the installer's name with
// "installer" swapped for "universal"; if that jar is absent the link
// is left alone.
func updateSymlink(opts Options, installerPath string) error {
	if opts.SymlinkName == "" {
		return nil
	}

	logger := logging.GetLogger("loader")

	jarName := strings.Replace(filepath.Base(installerPath), "installer", "universal", 1)
	jarPath := filepath.Join(opts.InstallDir, jarName)
	if _, err := opts.FS.Stat(jarPath); err != nil {
		logger.Warn().Str("jar", jarName).Msg("Loader jar not found, skipping symlink")
		return nil
	}

	link := filepath.Join(opts.InstallDir, opts.SymlinkName)
	if _, err := opts.FS.Lstat(link); err == nil {
		if err := opts.FS.Remove(link); err != nil {
			return errors.Wrapf(err, errors.ErrSymlinkCreate, "cannot replace symlink %s", link)
		}
	}

	// Relative link so the installation directory stays relocatable.
	if err := opts.FS.Symlink(jarName, link); err != nil {
		return errors.Wrapf(err, errors.ErrSymlinkCreate, "cannot create symlink %s", link)
	}

	logger.Debug().Str("link", opts.SymlinkName).Str("target", jarName).Msg("Updated loader symlink")
	return nil
}

func execRunner(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}
