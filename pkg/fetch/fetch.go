// Package fetch resolves mod descriptors to concrete download URLs
// and streams remote files to disk.
//
// CurseForge file ids are not direct links: the canonical download URL
// is only obtainable after the project page's redirect chain settles.
// Resolution is therefore a two-phase operation: ResolveProject yields
// the final URL, then Transfer streams it, taking the filename from
// the post-redirect response URL.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/packup/packup/pkg/errors"
	"github.com/packup/packup/pkg/logging"
	"github.com/packup/packup/pkg/types"
)

const (
	// DefaultProjectBase hosts the mod project pages descriptors refer to.
	DefaultProjectBase = "https://minecraft.curseforge.com"

	projectPathFormat  = "mc-mods/%d"
	downloadPathFormat = "files/%d/download"

	// transferBufSize is the copy buffer used for streaming transfers.
	transferBufSize = 64 * 1024
)

// Fetcher resolves descriptors and transfers remote files.
type Fetcher struct {
	client      *Client
	projectBase string
}

// New creates a Fetcher using the given client.
func New(client *Client) *Fetcher {
	return &Fetcher{client: client, projectBase: DefaultProjectBase}
}

// NewWithProjectBase creates a Fetcher resolving projects against an
// alternate base URL. Tests use this to point resolution at a local
// server.
func NewWithProjectBase(client *Client, base string) *Fetcher {
	return &Fetcher{client: client, projectBase: base}
}

// ResolveProject discovers the canonical download URL for a descriptor.
// It issues a metadata-only request to the project URL, follows the
// redirect chain, strips query and fragment from the landing URL, and
// appends the fixed download path for the descriptor's file id.
func (f *Fetcher) ResolveProject(ctx context.Context, desc types.FileDescriptor) (string, error) {
	logger := logging.GetLogger("fetch")

	pageURL := f.projectBase + "/" + fmt.Sprintf(projectPathFormat, desc.ProjectID)
	resp, err := f.client.Head(ctx, pageURL)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrResolveFailed, "cannot resolve project %d", desc.ProjectID).
			WithDetail("url", pageURL)
	}
	_ = resp.Body.Close()

	landing := cleanURL(resp.Request.URL)
	resolved := landing + "/" + downloadPath(desc)

	logger.Debug().
		Int("project", desc.ProjectID).
		Int("file", desc.FileID).
		Str("url", resolved).
		Msg("Resolved mod download URL")
	return resolved, nil
}

// Transfer fetches url and streams the body into destDir. When
// filename is empty it is derived from the last path component of the
// final response URL, after all redirects have been followed.
func (f *Fetcher) Transfer(ctx context.Context, rawURL, destDir, filename string) (types.ResolvedFile, int64, error) {
	logger := logging.GetLogger("fetch")

	resp, err := f.client.Get(ctx, rawURL)
	if err != nil {
		return types.ResolvedFile{}, 0, transferErr(err, rawURL)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		code := errors.ErrRemoteBadStatus
		if resp.StatusCode == http.StatusNotFound {
			code = errors.ErrRemoteNotFound
		}
		return types.ResolvedFile{}, 0, errors.Newf(code, "unexpected status %d fetching %s", resp.StatusCode, rawURL).
			WithDetail("url", rawURL)
	}

	// Filename is authoritative only here, once redirects have settled.
	if filename == "" {
		filename = path.Base(resp.Request.URL.Path)
	}
	resolved := types.ResolvedFile{URL: resp.Request.URL.String(), Filename: filename}

	logger.Info().Str("file", filename).Msg("Downloading")

	dest := filepath.Join(destDir, filename)
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return resolved, 0, errors.Wrapf(err, errors.ErrFileCreate, "cannot create %s", dest)
	}

	buf := make([]byte, transferBufSize)
	n, err := io.CopyBuffer(out, resp.Body, buf)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return resolved, n, errors.Wrapf(err, errors.ErrTransferFailed, "transfer of %s failed", rawURL).
			WithDetail("url", rawURL)
	}

	logger.Debug().
		Str("file", filename).
		Str("size", humanize.Bytes(uint64(n))).
		Msg("Download complete")
	return resolved, n, nil
}

// Peek issues the GET for a descriptor URL and returns the resolved
// filename without consuming the body. The caller must either pass the
// response to TransferResponse or close it.
func (f *Fetcher) Peek(ctx context.Context, rawURL string) (*http.Response, types.ResolvedFile, error) {
	resp, err := f.client.Get(ctx, rawURL)
	if err != nil {
		return nil, types.ResolvedFile{}, transferErr(err, rawURL)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, types.ResolvedFile{}, errors.Newf(errors.ErrRemoteBadStatus,
			"unexpected status %d fetching %s", resp.StatusCode, rawURL).WithDetail("url", rawURL)
	}
	resolved := types.ResolvedFile{
		URL:      resp.Request.URL.String(),
		Filename: path.Base(resp.Request.URL.Path),
	}
	return resp, resolved, nil
}

// TransferResponse streams an already-open response body into destDir
// under the given filename, closing the body when done.
func (f *Fetcher) TransferResponse(resp *http.Response, destDir, filename string) (string, int64, error) {
	logger := logging.GetLogger("fetch")
	defer func() { _ = resp.Body.Close() }()

	logger.Info().Str("file", filename).Msg("Downloading")

	dest := filepath.Join(destDir, filename)
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return "", 0, errors.Wrapf(err, errors.ErrFileCreate, "cannot create %s", dest)
	}

	buf := make([]byte, transferBufSize)
	n, err := io.CopyBuffer(out, resp.Body, buf)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		srcURL := resp.Request.URL.String()
		return dest, n, errors.Wrapf(err, errors.ErrTransferFailed, "transfer of %s failed", srcURL).
			WithDetail("url", srcURL)
	}

	logger.Debug().
		Str("file", filename).
		Str("size", humanize.Bytes(uint64(n))).
		Msg("Download complete")
	return dest, n, nil
}

func downloadPath(desc types.FileDescriptor) string {
	return fmt.Sprintf(downloadPathFormat, desc.FileID)
}

// cleanURL renders u without its query and fragment components.
func cleanURL(u *url.URL) string {
	clean := *u
	clean.RawQuery = ""
	clean.Fragment = ""
	clean.RawFragment = ""
	return clean.String()
}

func transferErr(err error, rawURL string) error {
	return errors.Wrapf(err, errors.ErrTransferFailed, "cannot fetch %s", rawURL).
		WithDetail("url", rawURL)
}
