// Package install implements the top-level pack installation run: it
// sequences downloading, staging, the loader update, overrides, and
// config restoration against one installation directory.
package install

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/packup/packup/pkg/download"
	"github.com/packup/packup/pkg/exclude"
	"github.com/packup/packup/pkg/fetch"
	"github.com/packup/packup/pkg/filesystem"
	"github.com/packup/packup/pkg/loader"
	"github.com/packup/packup/pkg/logging"
	"github.com/packup/packup/pkg/manifest"
	"github.com/packup/packup/pkg/staging"
	"github.com/packup/packup/pkg/types"
)

// Options defines the options for the Install command.
type Options struct {
	// PackPath is the local path of the zipped modpack or the URL from
	// which to download it.
	PackPath string
	// Dest is the path of the installation directory.
	Dest string
	// Jobs caps concurrent mod downloads.
	Jobs int
	// KeepLoader prevents the mod loader from being updated.
	KeepLoader bool
	// KeepConfig preserves existing mod configuration files.
	KeepConfig bool
	// SymlinkName is the loader symlink to maintain; empty disables it.
	SymlinkName string
	// ExcludeFile is an optional blacklist file, one glob per line.
	ExcludeFile string

	// FS defaults to the OS filesystem.
	FS types.FS
	// Fetcher defaults to a fetcher with default client options.
	Fetcher *fetch.Fetcher
	// LoaderRun overrides the installer subprocess runner in tests.
	LoaderRun loader.CommandRunner
}

// Result summarizes a completed installation run.
type Result struct {
	PackName    string
	PackVersion string
	Stored      int
	Excluded    int
	// LoaderUpdated is false when the update was disabled or the
	// manifest lacked loader information.
	LoaderUpdated bool
}

// Install runs the full synchronization pipeline. Stages run strictly
// in order; any stage failure aborts all later stages. Completed
// stages are not rolled back, but the download phase finishes before
// any destructive staging begins, so a failed download leaves the
// installation untouched.
func Install(ctx context.Context, opts Options) (*Result, error) {
	logger := logging.GetLogger("commands.install").With().
		Str("run", uuid.NewString()[:8]).Logger()
	done := logging.LogOperationStart(logger, "install")
	defer done()

	fsys := opts.FS
	if fsys == nil {
		fsys = filesystem.NewOS()
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = fetch.New(fetch.NewClient(fetch.DefaultOptions()))
	}

	destDir, err := prepareDest(opts.Dest)
	if err != nil {
		return nil, err
	}

	scratchDir, err := os.MkdirTemp("", "packup-")
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.RemoveAll(scratchDir) }()

	m, ar, err := manifest.Load(ctx, opts.PackPath, scratchDir, fetcher)
	if err != nil {
		return nil, err
	}
	defer func() { _ = ar.Close() }()

	var blacklist *exclude.Blacklist
	if opts.ExcludeFile != "" {
		blacklist, err = exclude.Load(opts.ExcludeFile)
		if err != nil {
			return nil, err
		}
	}

	storeDir := filepath.Join(scratchDir, "mod_store")
	if err := os.MkdirAll(storeDir, 0755); err != nil {
		return nil, err
	}

	logger.Info().Int("files", len(m.Files)).Msg("Starting mod downloads, this may take a while")
	results, err := download.Run(ctx, download.Options{
		Descriptors: m.Files,
		Direct:      m.DirectDownload,
		Blacklist:   blacklist,
		Jobs:        opts.Jobs,
		StoreDir:    storeDir,
		Fetcher:     fetcher,
	})
	if err != nil {
		return nil, err
	}

	stager := staging.New(fsys, destDir)
	backups, err := stager.Backup()
	if err != nil {
		return nil, err
	}

	result := &Result{PackName: m.Name, PackVersion: m.Version}
	for _, r := range results {
		switch r.Status {
		case types.StatusStored:
			result.Stored++
		case types.StatusExcluded:
			result.Excluded++
		}
	}

	if !opts.KeepLoader {
		updated, err := updateLoader(ctx, opts, m, scratchDir, destDir, fsys, fetcher)
		if err != nil {
			return nil, err
		}
		result.LoaderUpdated = updated
	}

	if err := stager.PopulateMods(storeDir); err != nil {
		return nil, err
	}

	if m.Overrides != "" {
		if err := stager.ApplyOverrides(ar, m.Overrides, scratchDir); err != nil {
			return nil, err
		}
	}

	if opts.KeepConfig {
		if err := stager.RestoreConfig(backups.Config); err != nil {
			return nil, err
		}
	}

	if err := stager.DiscardBackups(backups); err != nil {
		return nil, err
	}

	logger.Info().Str("pack", m.Name).Str("version", m.Version).Msg("Modpack successfully installed")
	return result, nil
}

// updateLoader runs the loader update when the manifest carries the
// needed versions. A manifest without them downgrades to a warning and
// the run continues.
func updateLoader(ctx context.Context, opts Options, m *manifest.Manifest, scratchDir, destDir string, fsys types.FS, fetcher *fetch.Fetcher) (bool, error) {
	logger := logging.GetLogger("commands.install")

	mcVersion, loaderVersion, ok := m.LoaderVersions()
	if !ok {
		logger.Warn().
			Str("minecraft", m.Minecraft.Version).
			Msg("Could not extract loader information from the manifest")
		return false, nil
	}

	err := loader.Update(ctx, loader.Options{
		MCVersion:     mcVersion,
		LoaderVersion: loaderVersion,
		ScratchDir:    scratchDir,
		InstallDir:    destDir,
		SymlinkName:   opts.SymlinkName,
		Fetcher:       fetcher,
		FS:            fsys,
		Run:           opts.LoaderRun,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func prepareDest(dest string) (string, error) {
	if dest == "" {
		dest = "."
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return "", err
	}
	return filepath.Abs(dest)
}
