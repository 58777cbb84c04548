// Package staging performs the destructive phase of a pack update:
// backing up the installation's mutable subtrees, populating mods from
// the download store, layering archive overrides over the install
// root, and restoring user config.
//
// Ordering is load-bearing. Mods are populated before overrides so the
// pack author can replace specific shipped mod files; config restore
// runs last, without overwriting, so user-kept settings win only for
// files the pack did not freshly deliver.
package staging

import (
	"io/fs"
	"path/filepath"

	"github.com/packup/packup/pkg/archive"
	"github.com/packup/packup/pkg/errors"
	"github.com/packup/packup/pkg/logging"
	"github.com/packup/packup/pkg/types"
)

// Managed subtree names under the installation directory.
const (
	ModsDir   = "mods"
	ConfigDir = "config"

	// BackupSuffix is appended to a subtree name to form its backup path.
	BackupSuffix = ".bak"
)

// Backup records where one subtree's previous contents were moved.
type Backup struct {
	Subtree string
	Path    string
	// Existed is false when the live subtree was absent before the run,
	// in which case no backup contents exist at Path.
	Existed bool
}

// Backups holds the per-subtree backups created by one run.
type Backups struct {
	Mods   Backup
	Config Backup
}

// Manager stages downloaded content into an installation directory.
// All operations are sequential; no staging step starts before the
// previous one finished.
type Manager struct {
	fs         types.FS
	installDir string
}

// New creates a staging manager for installDir.
func New(fs types.FS, installDir string) *Manager {
	return &Manager{fs: fs, installDir: installDir}
}

// Backup relocates the live mods and config subtrees to their backup
// locations and recreates empty live subtrees in their place.
//
// A stale backup from a previous run is removed before the rename.
// Running Backup again after a mid-run failure is safe: the retry sees
// the empty live subtrees the first attempt created, backs up nothing,
// and keeps the earlier backup instead of clobbering it.
func (m *Manager) Backup() (Backups, error) {
	mods, err := m.backupSubtree(ModsDir)
	if err != nil {
		return Backups{}, err
	}
	config, err := m.backupSubtree(ConfigDir)
	if err != nil {
		return Backups{}, err
	}
	return Backups{Mods: mods, Config: config}, nil
}

func (m *Manager) backupSubtree(name string) (Backup, error) {
	logger := logging.GetLogger("staging")

	live := filepath.Join(m.installDir, name)
	bak := live + BackupSuffix
	backup := Backup{Subtree: name, Path: bak}

	if entries, err := m.fs.ReadDir(live); err == nil {
		switch {
		case len(entries) > 0:
			if _, err := m.fs.Stat(bak); err == nil {
				if err := m.fs.RemoveAll(bak); err != nil {
					return backup, errors.Wrapf(err, errors.ErrBackupFailed, "cannot remove stale backup %s", bak)
				}
			}
			if err := m.fs.Rename(live, bak); err != nil {
				return backup, errors.Wrapf(err, errors.ErrBackupFailed, "cannot move %s to %s", live, bak)
			}
			backup.Existed = true
			logger.Debug().Str("subtree", name).Str("backup", bak).Msg("Backed up subtree")
		default:
			// An empty live subtree has nothing worth backing up. A
			// backup left behind by an interrupted run is kept so its
			// contents survive the retry.
			if _, err := m.fs.Stat(bak); err == nil {
				backup.Existed = true
				logger.Debug().Str("subtree", name).Str("backup", bak).Msg("Reusing backup from interrupted run")
			}
		}
	}

	if err := m.fs.MkdirAll(live, 0755); err != nil {
		return backup, errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", live)
	}
	return backup, nil
}

// PopulateMods copies every file from the download store into the
// freshly emptied mods subtree, overwriting on name collision.
func (m *Manager) PopulateMods(storeDir string) error {
	logger := logging.GetLogger("staging")
	logger.Info().Msg("Installing mods")

	dest := filepath.Join(m.installDir, ModsDir)
	return m.copyTree(storeDir, dest, true)
}

// ApplyOverrides extracts the archive entries under overridesDir into
// scratchDir and copies them into the installation root, overwriting
// existing files.
func (m *Manager) ApplyOverrides(ar *archive.Archive, overridesDir, scratchDir string) error {
	logger := logging.GetLogger("staging")
	logger.Info().Str("overrides", overridesDir).Msg("Applying overrides")

	if err := ar.ExtractUnder(overridesDir, scratchDir); err != nil {
		return err
	}

	src := filepath.Join(scratchDir, overridesDir)
	if _, err := m.fs.Stat(src); err != nil {
		// Nothing under the declared overrides root; not an error.
		logger.Debug().Str("overrides", overridesDir).Msg("No override entries in archive")
		return nil
	}
	return m.copyTree(src, m.installDir, true)
}

// RestoreConfig copies the backed-up config subtree's contents into
// the live config subtree without overwriting files already placed by
// the overrides step.
func (m *Manager) RestoreConfig(b Backup) error {
	logger := logging.GetLogger("staging")

	if !b.Existed {
		logger.Debug().Msg("No config backup to restore")
		return nil
	}

	logger.Info().Msg("Restoring kept config")
	dest := filepath.Join(m.installDir, ConfigDir)
	return m.copyTree(b.Path, dest, false)
}

// DiscardBackups removes the run's backup directories. The mods backup
// is never restored, so it is always removed; the config backup has
// served its purpose by now whether or not it was restored.
func (m *Manager) DiscardBackups(b Backups) error {
	for _, backup := range []Backup{b.Mods, b.Config} {
		if !backup.Existed {
			continue
		}
		if err := m.fs.RemoveAll(backup.Path); err != nil {
			return errors.Wrapf(err, errors.ErrBackupFailed, "cannot remove backup %s", backup.Path)
		}
	}
	return nil
}

// copyTree recursively copies src into dst, creating directories as
// needed. When overwrite is false, files already present in dst are
// left untouched.
func (m *Manager) copyTree(src, dst string, overwrite bool) error {
	if err := m.fs.MkdirAll(dst, 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", dst)
	}

	entries, err := m.fs.ReadDir(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrCopyFailed, "cannot read %s", src)
	}

	for _, entry := range entries {
		s := filepath.Join(src, entry.Name())
		d := filepath.Join(dst, entry.Name())

		if entry.IsDir() {
			if err := m.copyTree(s, d, overwrite); err != nil {
				return err
			}
			continue
		}

		if !overwrite {
			if _, err := m.fs.Stat(d); err == nil {
				continue
			}
		}
		if err := m.copyFile(s, d); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) copyFile(src, dst string) error {
	data, err := m.fs.ReadFile(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrCopyFailed, "cannot read %s", src)
	}

	perm := fs.FileMode(0644)
	if info, err := m.fs.Stat(src); err == nil {
		perm = info.Mode().Perm()
	}

	if err := m.fs.WriteFile(dst, data, perm); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot write %s", dst)
	}
	return nil
}
