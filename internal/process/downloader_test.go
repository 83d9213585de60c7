package process

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

func waitForTask(t *testing.T, d *Downloader, id string) (task taskSnapshot) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, ok := d.Get(id)
		require.True(t, ok)
		if snap.State != TaskRunning {
			return taskSnapshot{snap.State, snap.BytesDone, snap.Error}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("download did not finish in time")
	return
}

type taskSnapshot struct {
	state     string
	bytesDone int64
	errMsg    string
}

func TestDownloaderPlainFile(t *testing.T) {
	payload := bytes.Repeat([]byte("scum-server-data"), 1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := NewDownloader(nil)

	id, err := d.Start(1, srv.URL+"/pkg/update.bin", dir)
	require.NoError(t, err)

	snap := waitForTask(t, d, id)
	require.Equal(t, TaskDone, snap.state)
	require.Equal(t, int64(len(payload)), snap.bytesDone)

	data, err := os.ReadFile(filepath.Join(dir, "update.bin"))
	require.NoError(t, err)
	require.Equal(t, payload, data)
}

func TestDownloaderGzip(t *testing.T) {
	payload := []byte("compressed server package contents")
	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	_, err := gz.Write(payload)
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(compressed.Bytes())
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := NewDownloader(nil)

	id, err := d.Start(1, srv.URL+"/pkg/update.bin.gz", dir)
	require.NoError(t, err)

	snap := waitForTask(t, d, id)
	require.Equal(t, TaskDone, snap.state)

	// Stored decompressed, without the .gz suffix
	data, err := os.ReadFile(filepath.Join(dir, "update.bin"))
	require.NoError(t, err)
	require.Equal(t, payload, data)
}

func TestDownloaderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	d := NewDownloader(nil)
	id, err := d.Start(1, srv.URL+"/pkg/missing.bin", t.TempDir())
	require.NoError(t, err)

	snap := waitForTask(t, d, id)
	require.Equal(t, TaskFailed, snap.state)
	require.Contains(t, snap.errMsg, "404")
}

func TestDownloaderCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("start"))
		w.(http.Flusher).Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	d := NewDownloader(nil)
	id, err := d.Start(1, srv.URL+"/pkg/slow.bin", t.TempDir())
	require.NoError(t, err)

	// Give the request time to connect before cancelling
	time.Sleep(100 * time.Millisecond)
	require.True(t, d.Cancel(id))

	snap := waitForTask(t, d, id)
	require.Equal(t, TaskCancelled, snap.state)

	// Cancelling a finished task is a no-op
	require.False(t, d.Cancel(id))
}

func TestDownloaderUnknownTask(t *testing.T) {
	d := NewDownloader(nil)
	_, ok := d.Get("no-such-task")
	require.False(t, ok)
	require.False(t, d.Cancel("no-such-task"))
}
