// Package filesystem provides implementations of the types.FS
// interface backed by the OS filesystem and by afero for tests.
package filesystem
