package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/packup/packup/pkg/errors"
	"github.com/packup/packup/pkg/testutil"
	"github.com/packup/packup/pkg/types"
)

func TestTransfer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("jar bytes"))
	}))
	defer srv.Close()

	f := New(NewClient(DefaultOptions()))
	dir := t.TempDir()

	resolved, n, err := f.Transfer(context.Background(), srv.URL+"/mod.jar", dir, "")
	require.NoError(t, err)

	assert.Equal(t, "mod.jar", resolved.Filename)
	assert.Equal(t, int64(len("jar bytes")), n)
	assert.Equal(t, "jar bytes", testutil.ReadFile(t, filepath.Join(dir, "mod.jar")))
}

func TestTransferFilenameFollowsRedirect(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/pretty-name", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+"/real-mod-1.2.3.jar", http.StatusFound)
	})
	mux.HandleFunc("/real-mod-1.2.3.jar", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("payload"))
	})

	f := New(NewClient(DefaultOptions()))
	dir := t.TempDir()

	resolved, _, err := f.Transfer(context.Background(), srv.URL+"/pretty-name", dir, "")
	require.NoError(t, err)

	// The server renames through the redirect; the post-redirect name wins.
	assert.Equal(t, "real-mod-1.2.3.jar", resolved.Filename)
	assert.True(t, testutil.FileExists(t, filepath.Join(dir, "real-mod-1.2.3.jar")))
}

func TestTransferExplicitFilename(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("direct"))
	}))
	defer srv.Close()

	f := New(NewClient(DefaultOptions()))
	dir := t.TempDir()

	resolved, _, err := f.Transfer(context.Background(), srv.URL+"/whatever", dir, "pinned.jar")
	require.NoError(t, err)

	assert.Equal(t, "pinned.jar", resolved.Filename)
	assert.True(t, testutil.FileExists(t, filepath.Join(dir, "pinned.jar")))
}

func TestTransferNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f := New(NewClient(DefaultOptions()))

	_, _, err := f.Transfer(context.Background(), srv.URL+"/gone.jar", t.TempDir(), "")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsErrorCode(err, pkgerrors.ErrRemoteNotFound))
	assert.Contains(t, pkgerrors.GetErrorDetails(err)["url"], "/gone.jar")
}

func TestTransferServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New(NewClient(DefaultOptions()))

	_, _, err := f.Transfer(context.Background(), srv.URL+"/mod.jar", t.TempDir(), "")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsErrorCode(err, pkgerrors.ErrRemoteBadStatus))
}

func TestTransferConnectionError(t *testing.T) {
	f := New(NewClient(DefaultOptions()))

	_, _, err := f.Transfer(context.Background(), "http://127.0.0.1:1/mod.jar", t.TempDir(), "")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsErrorCode(err, pkgerrors.ErrTransferFailed))
}

func TestPeekAndTransferResponse(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+"/final-name.jar", http.StatusFound)
	})
	mux.HandleFunc("/final-name.jar", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("bytes"))
	})

	f := New(NewClient(DefaultOptions()))
	dir := t.TempDir()

	resp, resolved, err := f.Peek(context.Background(), srv.URL+"/download")
	require.NoError(t, err)
	assert.Equal(t, "final-name.jar", resolved.Filename)

	path, n, err := f.TransferResponse(resp, dir, resolved.Filename)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "final-name.jar"), path)
	assert.Equal(t, int64(5), n)
}

func TestCleanURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// ResolveProject is exercised end to end in the download package;
	// here we pin the landing-URL cleanup behavior.
	f := New(NewClient(DefaultOptions()))
	resp, err := f.client.Head(context.Background(), srv.URL+"/mc-mods/thing?client=y#files")
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, srv.URL+"/mc-mods/thing", cleanURL(resp.Request.URL))
}

func TestResolveProject(t *testing.T) {
	var sawHead bool
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/mc-mods/1234", func(w http.ResponseWriter, r *http.Request) {
		sawHead = r.Method == http.MethodHead
		http.Redirect(w, r, srv.URL+"/mc-mods/cool-mod?from=search#files", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/mc-mods/cool-mod", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	f := NewWithProjectBase(NewClient(DefaultOptions()), srv.URL)
	desc := types.FileDescriptor{ProjectID: 1234, FileID: 99}

	url, err := f.ResolveProject(context.Background(), desc)
	require.NoError(t, err)

	// Query and fragment are stripped from the landing URL before the
	// download path is appended.
	assert.True(t, sawHead)
	assert.Equal(t, srv.URL+"/mc-mods/cool-mod/files/99/download", url)
}

func TestResolveProjectConnectionError(t *testing.T) {
	f := NewWithProjectBase(NewClient(DefaultOptions()), "http://127.0.0.1:1")

	_, err := f.ResolveProject(context.Background(), types.FileDescriptor{ProjectID: 1})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsErrorCode(err, pkgerrors.ErrResolveFailed))
}
