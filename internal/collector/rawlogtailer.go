package collector

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// RawLogTailer streams raw log lines without parsing, for live log viewing.
// Unlike LogTailer it delivers every line verbatim, including lines the
// event parser does not recognize.
type RawLogTailer struct {
	path     string
	file     *os.File
	position int64
	Lines    chan string
	Errors   chan error
	done     chan struct{}
	stopOnce sync.Once
}

// NewRawLogTailer creates a raw tailer for the given log file
func NewRawLogTailer(path string) *RawLogTailer {
	return &RawLogTailer{
		path:   path,
		Lines:  make(chan string, 256),
		Errors: make(chan error, 10),
		done:   make(chan struct{}),
	}
}

// ReadLastNLines returns up to n trailing lines of the file, used to seed a
// log viewer before live streaming begins. Reads backward in fixed blocks so
// large log files are not loaded whole.
func ReadLastNLines(path string, n int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}

	const blockSize = 8192
	var (
		buf      []byte
		offset   = stat.Size()
		newlines int
	)

	for offset > 0 && newlines <= n {
		readSize := int64(blockSize)
		if offset < readSize {
			readSize = offset
		}
		offset -= readSize

		block := make([]byte, readSize)
		if _, err := file.ReadAt(block, offset); err != nil && err != io.EOF {
			return nil, fmt.Errorf("reading block: %w", err)
		}
		newlines += bytes.Count(block, []byte{'\n'})
		buf = append(block, buf...)
	}

	lines := strings.Split(strings.TrimRight(string(buf), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	// Trim a possible partial first line when we stopped mid-file
	if offset > 0 && len(lines) > 0 {
		lines = lines[1:]
	}
	return lines, nil
}

// Start begins tailing from the end of the file
func (t *RawLogTailer) Start() error {
	file, err := os.Open(t.path)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	t.file = file

	pos, err := t.file.Seek(0, io.SeekEnd)
	if err != nil {
		t.file.Close()
		return fmt.Errorf("seeking to end: %w", err)
	}
	t.position = pos

	go t.tailLoop()
	return nil
}

// Stop stops the tailer. Safe to call more than once.
func (t *RawLogTailer) Stop() {
	t.stopOnce.Do(func() {
		close(t.done)
		if t.file != nil {
			t.file.Close()
		}
	})
}

func (t *RawLogTailer) tailLoop() {
	ticker := time.NewTicker(250 * time.Millisecond)
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

func (t *RawLogTailer) readNewContent() error {
	stat, err := t.file.Stat()
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}

	if stat.Size() < t.position {
		t.position = 0
		if _, err := t.file.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("seeking to start after truncate: %w", err)
		}
	}

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

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		select {
		case t.Lines <- line:
		default:
		}
	}

	pos, _ := t.file.Seek(0, io.SeekCurrent)
	t.position = pos

	return nil
}
