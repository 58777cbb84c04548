// Package types defines the shared data model and the filesystem
// abstraction used across packup.
package types

import "io/fs"

// FS abstracts filesystem operations so staging logic can run against
// either the real OS filesystem or an in-memory one in tests.
type FS interface {
	Stat(name string) (fs.FileInfo, error)
	Lstat(name string) (fs.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm fs.FileMode) error
	ReadDir(name string) ([]fs.DirEntry, error)
	MkdirAll(path string, perm fs.FileMode) error
	Symlink(oldname, newname string) error
	Readlink(name string) (string, error)
	Remove(name string) error
	RemoveAll(path string) error
	Rename(oldpath, newpath string) error
}

// FileDescriptor identifies one remote artifact by its CurseForge
// project and file ids. Immutable once read from the manifest.
type FileDescriptor struct {
	ProjectID int  `json:"projectID"`
	FileID    int  `json:"fileID"`
	Required  bool `json:"required"`
}

// DirectDownload is a manifest entry naming a file to fetch from a
// fixed URL, bypassing id resolution and the blacklist.
type DirectDownload struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// ResolvedFile is the outcome of following a descriptor's redirect
// chain. The filename is authoritative only after resolution; the
// server may rename the artifact along the way.
type ResolvedFile struct {
	URL      string
	Filename string
}

// DownloadStatus classifies the outcome of one download task.
type DownloadStatus int

const (
	// StatusStored means the file was transferred into the store.
	StatusStored DownloadStatus = iota
	// StatusExcluded means the resolved filename matched the blacklist
	// and no transfer was attempted.
	StatusExcluded
	// StatusFailed means the task errored; Err carries the cause.
	StatusFailed
)

// String returns a short human-readable form of the status.
func (s DownloadStatus) String() string {
	switch s {
	case StatusStored:
		return "stored"
	case StatusExcluded:
		return "excluded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DownloadResult records the settled outcome of one download task.
// Instances are write-once: each task fills exactly one result.
type DownloadResult struct {
	Status   DownloadStatus
	Filename string
	Path     string // set when Status == StatusStored
	Size     int64  // bytes transferred, when stored
	Err      error  // set when Status == StatusFailed
}
