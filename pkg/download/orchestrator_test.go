package download

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/packup/packup/pkg/errors"
	"github.com/packup/packup/pkg/exclude"
	"github.com/packup/packup/pkg/fetch"
	"github.com/packup/packup/pkg/types"
)

// newModServer serves project pages and mod payloads the way the real
// service does: the download URL redirects to the server-assigned
// filename, so the final name is only known post-redirect.
func newModServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/mc-mods/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/download") {
			// /mc-mods/{project}/files/{file}/download
			parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
			http.Redirect(w, r, srv.URL+"/files/mod-"+parts[1]+".jar", http.StatusFound)
			return
		}
		// Project page; HEAD resolution lands here.
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, "payload of %s", strings.TrimPrefix(r.URL.Path, "/files/"))
	})

	return srv
}

func newTestFetcher(srv *httptest.Server) *fetch.Fetcher {
	return fetch.NewWithProjectBase(fetch.NewClient(fetch.DefaultOptions()), srv.URL)
}

func TestRunStoresDescriptorsAndDirect(t *testing.T) {
	srv := newModServer(t)
	store := t.TempDir()

	results, err := Run(context.Background(), Options{
		Descriptors: []types.FileDescriptor{
			{ProjectID: 100, FileID: 1},
			{ProjectID: 200, FileID: 2},
		},
		Direct: []types.DirectDownload{
			{URL: srv.URL + "/files/extra.jar", Filename: "extra.jar"},
		},
		StoreDir: store,
		Fetcher:  newTestFetcher(srv),
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	stored := 0
	for _, r := range results {
		assert.Equal(t, types.StatusStored, r.Status)
		assert.FileExists(t, r.Path)
		stored++
	}
	assert.Equal(t, 3, stored)

	entries, err := os.ReadDir(store)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestRunExcludesBlacklistedWithoutTransfer(t *testing.T) {
	srv := newModServer(t)
	store := t.TempDir()

	blacklist, err := exclude.New([]string{"mod-100.jar"})
	require.NoError(t, err)

	results, err := Run(context.Background(), Options{
		Descriptors: []types.FileDescriptor{
			{ProjectID: 100, FileID: 1},
			{ProjectID: 200, FileID: 2},
		},
		Blacklist: blacklist,
		StoreDir:  store,
		Fetcher:   newTestFetcher(srv),
	})
	require.NoError(t, err)

	var excluded, stored int
	for _, r := range results {
		switch r.Status {
		case types.StatusExcluded:
			excluded++
			assert.Equal(t, "mod-100.jar", r.Filename)
		case types.StatusStored:
			stored++
		}
	}
	assert.Equal(t, 1, excluded)
	assert.Equal(t, 1, stored)

	// Excluding a file produces no file in the store.
	assert.NoFileExists(t, filepath.Join(store, "mod-100.jar"))
}

func TestRunBlacklistDoesNotApplyToDirect(t *testing.T) {
	srv := newModServer(t)
	store := t.TempDir()

	blacklist, err := exclude.New([]string{"*.jar"})
	require.NoError(t, err)

	results, err := Run(context.Background(), Options{
		Direct: []types.DirectDownload{
			{URL: srv.URL + "/files/extra.jar", Filename: "extra.jar"},
		},
		Blacklist: blacklist,
		StoreDir:  store,
		Fetcher:   newTestFetcher(srv),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, types.StatusStored, results[0].Status)
}

func TestRunSkipsMalformedDirectEntries(t *testing.T) {
	srv := newModServer(t)
	store := t.TempDir()

	results, err := Run(context.Background(), Options{
		Direct: []types.DirectDownload{
			{URL: "", Filename: "orphan.jar"},
			{URL: srv.URL + "/files/x.jar", Filename: ""},
			{URL: srv.URL + "/files/ok.jar", Filename: "ok.jar"},
		},
		StoreDir: store,
		Fetcher:  newTestFetcher(srv),
	})
	require.NoError(t, err)

	// Malformed entries become warnings, not tasks.
	require.Len(t, results, 1)
	assert.Equal(t, "ok.jar", results[0].Filename)
}

func TestRunConcurrencyCap(t *testing.T) {
	var inFlight, maxInFlight int64
	var mu sync.Mutex

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		cur := atomic.AddInt64(&inFlight, 1)
		mu.Lock()
		if cur > maxInFlight {
			maxInFlight = cur
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		_, _ = w.Write([]byte("x"))
	})

	var direct []types.DirectDownload
	for i := 0; i < 12; i++ {
		direct = append(direct, types.DirectDownload{
			URL:      fmt.Sprintf("%s/files/mod-%d.jar", srv.URL, i),
			Filename: fmt.Sprintf("mod-%d.jar", i),
		})
	}

	_, err := Run(context.Background(), Options{
		Direct:   direct,
		Jobs:     3,
		StoreDir: t.TempDir(),
		Fetcher:  fetch.New(fetch.NewClient(fetch.DefaultOptions())),
	})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, maxInFlight, int64(3))
}

func TestRunFailFast(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/files/bad.jar", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(10 * time.Millisecond)
		_, _ = w.Write([]byte("x"))
	})

	var direct []types.DirectDownload
	direct = append(direct, types.DirectDownload{URL: srv.URL + "/files/bad.jar", Filename: "bad.jar"})
	for i := 0; i < 8; i++ {
		direct = append(direct, types.DirectDownload{
			URL:      fmt.Sprintf("%s/files/slow-%d.jar", srv.URL, i),
			Filename: fmt.Sprintf("slow-%d.jar", i),
		})
	}

	results, err := Run(context.Background(), Options{
		Direct:   direct,
		Jobs:     2,
		StoreDir: t.TempDir(),
		Fetcher:  fetch.New(fetch.NewClient(fetch.DefaultOptions())),
	})

	// The batch fails with the bad entry's error and no results are
	// handed to the caller.
	require.Error(t, err)
	assert.True(t, pkgerrors.IsErrorCode(err, pkgerrors.ErrRemoteBadStatus))
	assert.Nil(t, results)
}

func TestRunDefaultJobs(t *testing.T) {
	srv := newModServer(t)

	results, err := Run(context.Background(), Options{
		Direct: []types.DirectDownload{
			{URL: srv.URL + "/files/one.jar", Filename: "one.jar"},
		},
		Jobs:     0, // falls back to DefaultJobs
		StoreDir: t.TempDir(),
		Fetcher:  newTestFetcher(srv),
	})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
