// Package archive provides the narrow zip capability packup needs
// from a modpack archive: list entry names, read one entry, and
// extract the subset of entries under a path prefix.
package archive

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/packup/packup/pkg/errors"
	"github.com/packup/packup/pkg/logging"
)

// Archive is an open modpack zip file.
type Archive struct {
	path   string
	reader *zip.ReadCloser
}

// Open opens the zip archive at path.
func Open(path string) (*Archive, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrArchiveOpen, "cannot open archive %s", path)
	}
	return &Archive{path: path, reader: r}, nil
}

// Close releases the underlying zip reader.
func (a *Archive) Close() error {
	return a.reader.Close()
}

// Path returns the filesystem path of the archive.
func (a *Archive) Path() string {
	return a.path
}

// Entries returns the names of all entries in the archive.
func (a *Archive) Entries() []string {
	names := make([]string, 0, len(a.reader.File))
	for _, f := range a.reader.File {
		names = append(names, f.Name)
	}
	return names
}

// ReadFile reads the full contents of the named entry.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	for _, f := range a.reader.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrArchiveEntry, "cannot open entry %s", name)
		}
		defer func() { _ = rc.Close() }()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrArchiveEntry, "cannot read entry %s", name)
		}
		return data, nil
	}
	return nil, errors.Newf(errors.ErrArchiveEntry, "no entry named %s in %s", name, a.path)
}

// ExtractUnder extracts every entry whose path falls under prefix into
// destDir, preserving the entry paths relative to the archive root.
// Entries that would escape destDir are rejected.
func (a *Archive) ExtractUnder(prefix, destDir string) error {
	logger := logging.GetLogger("archive")

	prefix = strings.TrimSuffix(filepath.ToSlash(prefix), "/") + "/"
	extracted := 0
	for _, f := range a.reader.File {
		name := filepath.ToSlash(f.Name)
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if err := a.extractEntry(f, destDir); err != nil {
			return err
		}
		if !f.FileInfo().IsDir() {
			extracted++
		}
	}

	logger.Debug().Int("entries", extracted).Str("prefix", prefix).Str("dest", destDir).Msg("Extracted archive subset")
	return nil
}

func (a *Archive) extractEntry(f *zip.File, destDir string) error {
	dest := filepath.Join(destDir, filepath.FromSlash(f.Name))

	// Zip entries are attacker-supplied paths; keep them inside destDir.
	if !strings.HasPrefix(dest, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return errors.Newf(errors.ErrArchiveExtract, "entry %s escapes extraction directory", f.Name)
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(dest, 0755); err != nil {
			return errors.Wrapf(err, errors.ErrDirCreate, "cannot create directory %s", dest)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "cannot create directory %s", filepath.Dir(dest))
	}

	rc, err := f.Open()
	if err != nil {
		return errors.Wrapf(err, errors.ErrArchiveEntry, "cannot open entry %s", f.Name)
	}
	defer func() { _ = rc.Close() }()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileCreate, "cannot create %s", dest)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, rc); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot write %s", dest)
	}
	return nil
}
