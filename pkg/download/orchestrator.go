// Package download orchestrates the concurrent acquisition of all
// files named by a manifest into a local store directory.
package download

import (
	"context"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/packup/packup/pkg/exclude"
	"github.com/packup/packup/pkg/fetch"
	"github.com/packup/packup/pkg/logging"
	"github.com/packup/packup/pkg/types"
)

// DefaultJobs is the default number of concurrent transfers.
const DefaultJobs = 10

// Options configures one orchestrator run.
type Options struct {
	// Descriptors are the id-based manifest entries to resolve and fetch.
	Descriptors []types.FileDescriptor

	// Direct are fixed-URL manifest entries. Entries lacking a URL or
	// filename are skipped with a warning. Direct downloads bypass the
	// blacklist.
	Direct []types.DirectDownload

	// Blacklist excludes descriptor-sourced files by resolved filename.
	// May be nil.
	Blacklist *exclude.Blacklist

	// Jobs caps concurrent in-flight transfers. Defaults to DefaultJobs.
	Jobs int

	// StoreDir is the directory downloads are written into.
	StoreDir string

	// Fetcher performs resolution and transfers.
	Fetcher *fetch.Fetcher
}

// Run downloads every manifest file under a bounded worker group.
//
// The first task to fail cancels every other pending task, and Run
// returns that error once all tasks have settled; results from tasks
// that were cancelled mid-flight are discarded by the caller because
// the run as a whole fails. No staging may begin unless Run returns a
// nil error.
func Run(ctx context.Context, opts Options) ([]types.DownloadResult, error) {
	logger := logging.GetLogger("download")

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = DefaultJobs
	}

	// Drop malformed direct entries before building tasks. A missing
	// url or filename is a manifest authoring mistake, not a reason to
	// abort the run.
	direct := make([]types.DirectDownload, 0, len(opts.Direct))
	for _, d := range opts.Direct {
		if d.URL == "" || d.Filename == "" {
			logger.Warn().
				Str("url", d.URL).
				Str("filename", d.Filename).
				Msg("Skipping direct download entry with missing url or filename")
			continue
		}
		direct = append(direct, d)
	}

	results := make([]types.DownloadResult, len(opts.Descriptors)+len(direct))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	for i, desc := range opts.Descriptors {
		i, desc := i, desc
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := fetchDescriptor(gctx, opts, desc)
			results[i] = res
			return err
		})
	}

	for i, d := range direct {
		d := d
		slot := len(opts.Descriptors) + i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := fetchDirect(gctx, opts, d)
			results[slot] = res
			return err
		})
	}

	// Wait settles every task before the first error (if any) is
	// surfaced; the caller never sees a batch that is still in flight.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stored, excluded := 0, 0
	for _, r := range results {
		switch r.Status {
		case types.StatusStored:
			stored++
		case types.StatusExcluded:
			excluded++
		}
	}
	logger.Info().Int("stored", stored).Int("excluded", excluded).Msg("All downloads settled")

	return results, nil
}

// fetchDescriptor resolves one descriptor, applies the blacklist to
// the post-redirect filename, and transfers the file unless excluded.
func fetchDescriptor(ctx context.Context, opts Options, desc types.FileDescriptor) (types.DownloadResult, error) {
	logger := logging.GetLogger("download")

	url, err := opts.Fetcher.ResolveProject(ctx, desc)
	if err != nil {
		return types.DownloadResult{Status: types.StatusFailed, Err: err}, err
	}

	// The filename is only known once the GET's redirect chain has
	// settled, so the exclusion check happens with the response open
	// but before any bytes are streamed.
	resp, resolved, err := opts.Fetcher.Peek(ctx, url)
	if err != nil {
		return types.DownloadResult{Status: types.StatusFailed, Err: err}, err
	}

	if opts.Blacklist.Matches(resolved.Filename) {
		_ = resp.Body.Close()
		logger.Info().Str("file", resolved.Filename).Msg("Excluding mod")
		return types.DownloadResult{Status: types.StatusExcluded, Filename: resolved.Filename}, nil
	}

	path, n, err := opts.Fetcher.TransferResponse(resp, opts.StoreDir, resolved.Filename)
	if err != nil {
		return types.DownloadResult{Status: types.StatusFailed, Filename: resolved.Filename, Err: err}, err
	}

	return types.DownloadResult{
		Status:   types.StatusStored,
		Filename: resolved.Filename,
		Path:     path,
		Size:     n,
	}, nil
}

// fetchDirect transfers a fixed-URL entry using its declared filename.
func fetchDirect(ctx context.Context, opts Options, d types.DirectDownload) (types.DownloadResult, error) {
	_, n, err := opts.Fetcher.Transfer(ctx, d.URL, opts.StoreDir, d.Filename)
	if err != nil {
		return types.DownloadResult{Status: types.StatusFailed, Filename: d.Filename, Err: err}, err
	}
	return types.DownloadResult{
		Status:   types.StatusStored,
		Filename: d.Filename,
		Path:     filepath.Join(opts.StoreDir, d.Filename),
		Size:     n,
	}, nil
}
