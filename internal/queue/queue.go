// Package queue persists the ordered list of pending source files.
//
// The backing store is a plain newline-delimited text file so operators can
// edit it directly between runs. Order is significant: items are processed in
// file order. Uniqueness is not enforced; Remove drops every occurrence whose
// trimmed text matches.
package queue

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// Store reads and rewrites the queue file.
type Store struct {
	path string
}

// NewStore returns a store over the given queue file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the queue file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns all queued entries in file order. Blank lines are skipped and
// trailing newlines stripped; everything else is preserved verbatim. A missing
// queue file yields an empty queue, not an error.
func (s *Store) Load() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read queue file: %w", err)
	}

	var items []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		items = append(items, line)
	}
	return items, nil
}

// Remove rewrites the queue file, dropping every line whose trimmed text
// exactly equals the trimmed item. All other lines keep their order and
// content. Removing an absent item is not an error.
func (s *Store) Remove(item string) error {
	target := strings.TrimSpace(item)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read queue file: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	kept := make([]string, 0, len(lines))
	for i, line := range lines {
		// Split leaves a trailing empty element when the file ends with a
		// newline; keep it so the rewrite preserves the final newline.
		if i == len(lines)-1 && line == "" {
			kept = append(kept, line)
			continue
		}
		if strings.TrimSpace(strings.TrimSuffix(line, "\r")) == target {
			continue
		}
		kept = append(kept, line)
	}

	if err := os.WriteFile(s.path, []byte(strings.Join(kept, "\n")), 0o644); err != nil {
		return fmt.Errorf("rewrite queue file: %w", err)
	}
	return nil
}

// Append adds an entry to the end of the queue, creating the file if needed.
func (s *Store) Append(item string) error {
	item = strings.TrimSpace(item)
	if item == "" {
		return errors.New("queue item must not be blank")
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open queue file: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(item + "\n"); err != nil {
		return fmt.Errorf("append queue item: %w", err)
	}
	return file.Close()
}
