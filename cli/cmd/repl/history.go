package repl

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"slices"
	"strings"
	"sync"
)

// HistoryFile is the base name of the history file in the cache directory.
const HistoryFile = "history.utf8"

// Line prefixes recording the input mode of each history entry.
const (
	evalPrefix = "E:"
	ctrlPrefix = "C:"
)

type historyEntry struct {
	line string
	mode inputMode
}

// History is the input history of a session, persisted one entry per line.
type History struct {
	mu      sync.RWMutex
	path    string
	entries []historyEntry
}

// NewHistory returns a History stored at path. An empty path keeps the
// history in memory.
func NewHistory(path string) *History {
	return &History{path: path}
}

// Load replaces the entries with the content of the history file.
// A missing file is an empty history.
func (h *History) Load() error {
	if h.path == "" {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	f, err := os.Open(h.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err != nil {
		return err
	}
	defer f.Close()

	h.entries = nil

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		switch {
		case line == "":
		case strings.HasPrefix(line, ctrlPrefix):
			h.entries = append(h.entries, historyEntry{line[len(ctrlPrefix):], modeCtrl})
		default:
			h.entries = append(h.entries, historyEntry{strings.TrimPrefix(line, evalPrefix), modeEval})
		}
	}

	return sc.Err()
}

// Add appends line as the newest entry, dropping an older copy of it.
func (h *History) Add(line string, mode inputMode) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	e := historyEntry{line, mode}

	if n := len(h.entries); n > 0 && h.entries[n-1] == e {
		return nil
	}

	if i := slices.Index(h.entries, e); i >= 0 {
		h.entries = slices.Delete(h.entries, i, i+1)
		h.entries = append(h.entries, e)

		return h.save(os.O_TRUNC, h.entries...)
	}

	h.entries = append(h.entries, e)

	return h.save(os.O_APPEND, e)
}

// save writes entries to the history file opened with flag.
// It must be called with h.mu held.
func (h *History) save(flag int, entries ...historyEntry) error {
	if h.path == "" {
		return nil
	}

	f, err := os.OpenFile(h.path, flag|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)

	for _, e := range entries {
		prefix := evalPrefix
		if e.mode == modeCtrl {
			prefix = ctrlPrefix
		}

		_, _ = w.WriteString(prefix + e.line + "\n")
	}

	if err := w.Flush(); err != nil {
		_ = f.Close()

		return err
	}

	return f.Close()
}

// Entry returns the entry at i, oldest first.
func (h *History) Entry(i int) (line string, mode inputMode, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if i < 0 || i >= len(h.entries) {
		return "", modeEval, false
	}

	return h.entries[i].line, h.entries[i].mode, true
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.entries)
}
