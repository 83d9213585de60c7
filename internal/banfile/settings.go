package banfile

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Settings is a loosely parsed ServerSettings.ini. The game's settings file
// is flat key=value with no sections; we keep every line in order so saving
// preserves comments and keys we do not understand.
type Settings struct {
	lines []string
}

// LoadSettings reads a settings file
func LoadSettings(path string) (*Settings, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening settings file: %w", err)
	}
	defer file.Close()

	s := &Settings{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		s.lines = append(s.lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading settings file: %w", err)
	}
	return s, nil
}

// Get returns the value for key and whether it was present
func (s *Settings) Get(key string) (string, bool) {
	prefix := key + "="
	for _, line := range s.lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, prefix) {
			return strings.TrimPrefix(trimmed, prefix), true
		}
	}
	return "", false
}

// Set replaces the value for key in place, or appends the key if absent.
func (s *Settings) Set(key, value string) {
	prefix := key + "="
	for i, line := range s.lines {
		if strings.HasPrefix(strings.TrimSpace(line), prefix) {
			s.lines[i] = key + "=" + value
			return
		}
	}
	s.lines = append(s.lines, key+"="+value)
}

// All returns the key=value pairs in file order, skipping comments and blanks.
func (s *Settings) All() map[string]string {
	out := make(map[string]string)
	for _, line := range s.lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, ";") {
			continue
		}
		key, value, ok := strings.Cut(trimmed, "=")
		if !ok {
			continue
		}
		out[key] = value
	}
	return out
}

// SaveSettings writes the settings back atomically, preserving line order
// and comments.
func SaveSettings(path string, s *Settings) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	for _, line := range s.lines {
		if _, err := tmp.WriteString(line + "\n"); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("writing temp file: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing settings file: %w", err)
	}
	return nil
}
