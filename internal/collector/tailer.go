package collector

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// LatestLogPath returns the newest *.log file in dir. SCUM names log files
// with an embedded timestamp, so modification time decides.
func LatestLogPath(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("reading log dir: %w", err)
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var candidates []candidate
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{
			path:    filepath.Join(dir, e.Name()),
			modTime: info.ModTime(),
		})
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no log files in %s", dir)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.After(candidates[j].modTime)
	})
	return candidates[0].path, nil
}

// LogTailer watches a log file and parses events
type LogTailer struct {
	path     string
	file     *os.File
	position int64
	Events   chan LogEvent
	Errors   chan error
	done     chan struct{}
	stopOnce sync.Once
}

// NewLogTailer creates a new log tailer
func NewLogTailer(path string) *LogTailer {
	return &LogTailer{
		path:   path,
		Events: make(chan LogEvent, 100),
		Errors: make(chan error, 10),
		done:   make(chan struct{}),
	}
}

// Path returns the watched file path.
func (t *LogTailer) Path() string {
	return t.path
}

// OpenFile opens the log file for reading (used before ReplayFromTimestamp)
func (t *LogTailer) OpenFile() (*os.File, error) {
	file, err := os.Open(t.path)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	t.file = file
	return file, nil
}

// ReplayFromTimestamp reads the file from the beginning and calls handler for
// each event. Events with timestamp <= after are passed with replayMode=true
// (state rebuild only, no DB writes, no event emission). Events with
// timestamp > after are passed with replayMode=false (full processing).
// Processing is synchronous to avoid database lock contention during startup.
func (t *LogTailer) ReplayFromTimestamp(after time.Time, handler func(LogEvent, bool)) error {
	reader := bufio.NewReader(t.file)
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			// An unterminated tail is still being written. Rewind so the
			// live tail rereads it once the newline arrives.
			if len(line) > 0 {
				if _, serr := t.file.Seek(-int64(len(line)), io.SeekCurrent); serr != nil {
					return fmt.Errorf("rewinding partial line: %w", serr)
				}
			}
			break
		}
		if err != nil {
			return fmt.Errorf("reading line: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		event, err := ParseLine(line)
		if err == nil && event != nil {
			replayMode := !event.Timestamp.After(after)
			handler(*event, replayMode)
		}
	}

	// Continue tailing from wherever replay stopped
	pos, _ := t.file.Seek(0, io.SeekCurrent)
	t.position = pos
	return nil
}

// Start begins tailing the log file from current position
func (t *LogTailer) Start() error {
	if t.file == nil {
		file, err := os.Open(t.path)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		t.file = file
	}

	// Only seek to end if no replay was done (position is 0)
	if t.position == 0 {
		pos, err := t.file.Seek(0, io.SeekEnd)
		if err != nil {
			t.file.Close()
			return fmt.Errorf("seeking to end: %w", err)
		}
		t.position = pos
	}

	go t.tailLoop()
	return nil
}

// Stop stops the tailer. Safe to call more than once.
func (t *LogTailer) Stop() {
	t.stopOnce.Do(func() {
		close(t.done)
		if t.file != nil {
			t.file.Close()
		}
	})
}

// Done is closed once the tailer has been stopped.
func (t *LogTailer) Done() <-chan struct{} {
	return t.done
}

// tailLoop continuously reads new content from the log
func (t *LogTailer) tailLoop() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			if err := t.readNewContent(); err != nil {
				select {
				case t.Errors <- err:
				default:
				}
			}
		}
	}
}

// readNewContent reads any new content since last read
func (t *LogTailer) readNewContent() error {
	stat, err := t.file.Stat()
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}

	// Handle copytruncate: file size smaller than position
	if stat.Size() < t.position {
		t.position = 0
		if _, err := t.file.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("seeking to start after truncate: %w", err)
		}
	}

	// No new content
	if stat.Size() == t.position {
		return nil
	}

	reader := bufio.NewReader(t.file)
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			// Partial line. The reader already consumed it, so seek back
			// to its start; the next poll rereads it whole.
			if len(line) > 0 {
				if _, serr := t.file.Seek(-int64(len(line)), io.SeekCurrent); serr != nil {
					return fmt.Errorf("rewinding partial line: %w", serr)
				}
			}
			break
		}
		if err != nil {
			return fmt.Errorf("reading line: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		event, err := ParseLine(line)
		if err == nil && event != nil {
			select {
			case t.Events <- *event:
			default:
				// Channel full, drop event
			}
		}
	}

	pos, _ := t.file.Seek(0, io.SeekCurrent)
	t.position = pos

	return nil
}
