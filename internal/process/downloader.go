package process

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/molt/scummgr/internal/domain"
)

// Task states
const (
	TaskRunning   = "running"
	TaskDone      = "done"
	TaskFailed    = "failed"
	TaskCancelled = "cancelled"
)

// progressInterval limits how often a running download reports progress
const progressInterval = time.Second

// Downloader runs server package downloads in the background and tracks
// their progress. Progress snapshots are pushed through the callback given
// at construction.
type Downloader struct {
	mu       sync.Mutex
	client   *http.Client
	tasks    map[string]*downloadTask
	progress func(domain.UpdateTask)
}

type downloadTask struct {
	task       domain.UpdateTask
	cancel     context.CancelFunc
	lastReport time.Time
}

// NewDownloader creates a downloader. The progress callback may be nil.
func NewDownloader(progress func(domain.UpdateTask)) *Downloader {
	if progress == nil {
		progress = func(domain.UpdateTask) {}
	}
	return &Downloader{
		client:   &http.Client{Timeout: 0}, // long downloads, no overall timeout
		tasks:    make(map[string]*downloadTask),
		progress: progress,
	}
}

// Start begins downloading url into destDir and returns the task id. Files
// ending in .gz are decompressed on the fly.
func (d *Downloader) Start(serverID int64, url, destDir string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("empty download url")
	}

	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()

	dt := &downloadTask{
		task: domain.UpdateTask{
			ID:         id,
			ServerID:   serverID,
			URL:        url,
			State:      TaskRunning,
			BytesTotal: -1,
			StartedAt:  time.Now(),
		},
		cancel: cancel,
	}

	d.mu.Lock()
	d.tasks[id] = dt
	d.mu.Unlock()

	go d.run(ctx, id, url, destDir)
	return id, nil
}

// Cancel stops a running download. Returns false for unknown or finished tasks.
func (d *Downloader) Cancel(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	dt, ok := d.tasks[id]
	if !ok || dt.task.State != TaskRunning {
		return false
	}
	dt.cancel()
	return true
}

// Get returns a snapshot of one task
func (d *Downloader) Get(id string) (domain.UpdateTask, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dt, ok := d.tasks[id]
	if !ok {
		return domain.UpdateTask{}, false
	}
	return dt.task, true
}

// List returns snapshots of all tasks, running first, then newest first.
func (d *Downloader) List() []domain.UpdateTask {
	d.mu.Lock()
	defer d.mu.Unlock()

	tasks := make([]domain.UpdateTask, 0, len(d.tasks))
	for _, dt := range d.tasks {
		tasks = append(tasks, dt.task)
	}
	return tasks
}

func (d *Downloader) run(ctx context.Context, id, url, destDir string) {
	err := d.download(ctx, id, url, destDir)

	d.mu.Lock()
	dt := d.tasks[id]
	now := time.Now()
	dt.task.FinishedAt = &now
	switch {
	case err == nil:
		dt.task.State = TaskDone
	case ctx.Err() == context.Canceled:
		dt.task.State = TaskCancelled
	default:
		dt.task.State = TaskFailed
		dt.task.Error = err.Error()
	}
	snapshot := dt.task
	d.mu.Unlock()

	if err != nil && snapshot.State == TaskFailed {
		log.Printf("download %s failed: %v", id, err)
	}
	d.progress(snapshot)
}

func (d *Downloader) download(ctx context.Context, id, url, destDir string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching %s: unexpected status %s", url, resp.Status)
	}

	d.mu.Lock()
	d.tasks[id].task.BytesTotal = resp.ContentLength
	d.mu.Unlock()

	name := filepath.Base(req.URL.Path)
	var body io.Reader = &countingReader{
		r:      resp.Body,
		report: func(n int64) { d.reportProgress(id, n) },
	}

	if strings.HasSuffix(name, ".gz") {
		gz, err := gzip.NewReader(body)
		if err != nil {
			return fmt.Errorf("opening gzip stream: %w", err)
		}
		defer gz.Close()
		body = gz
		name = strings.TrimSuffix(name, ".gz")
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("creating destination dir: %w", err)
	}

	destPath := filepath.Join(destDir, name)
	tmp, err := os.CreateTemp(destDir, name+".part*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", destPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing %s: %w", destPath, err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("moving %s into place: %w", destPath, err)
	}
	return nil
}

// reportProgress updates the byte counter and pushes a snapshot at most
// once per progressInterval.
func (d *Downloader) reportProgress(id string, bytesDone int64) {
	d.mu.Lock()
	dt := d.tasks[id]
	dt.task.BytesDone = bytesDone

	var snapshot *domain.UpdateTask
	if time.Since(dt.lastReport) >= progressInterval {
		dt.lastReport = time.Now()
		s := dt.task
		snapshot = &s
	}
	d.mu.Unlock()

	if snapshot != nil {
		d.progress(*snapshot)
	}
}

// countingReader reports the running byte total after every read
type countingReader struct {
	r     io.Reader
	total int64

	report func(int64)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.total += int64(n)
		c.report(c.total)
	}
	return n, err
}
