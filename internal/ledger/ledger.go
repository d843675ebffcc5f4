// Package ledger persists the set of completed references as an append-only,
// newline-delimited log.
package ledger

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/famomatic/loomdl/internal/types"
)

// Normalizer maps a raw reference to its canonical key. Entries are indexed
// under both their raw and normalized form.
type Normalizer func(string) string

// Ledger is safe for concurrent use. Appends are serialized.
type Ledger struct {
	path      string
	normalize Normalizer

	mu      sync.Mutex
	entries map[string]struct{}
}

// Open loads the ledger at path. A missing file is an empty ledger. Any other
// read failure also yields a usable empty ledger, returned together with a
// *types.LedgerError so the caller can report it.
func Open(path string, normalize Normalizer) (*Ledger, error) {
	l := &Ledger{
		path:      path,
		normalize: normalize,
		entries:   make(map[string]struct{}),
	}
	err := l.load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return l, &types.LedgerError{Op: "read", Path: path, Err: err}
	}
	return l, nil
}

// Path returns the backing file location.
func (l *Ledger) Path() string { return l.path }

func (l *Ledger) load() error {
	f, err := os.Open(l.path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		l.index(strings.TrimSpace(scanner.Text()))
	}
	return scanner.Err()
}

func (l *Ledger) index(entry string) {
	if entry == "" {
		return
	}
	l.entries[entry] = struct{}{}
	if l.normalize != nil {
		if key := l.normalize(entry); key != "" {
			l.entries[key] = struct{}{}
		}
	}
}

// Contains reports whether ref, or its normalized form, has been recorded.
func (l *Ledger) Contains(ref string) bool {
	ref = strings.TrimSpace(ref)
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[ref]; ok {
		return true
	}
	if l.normalize != nil {
		if key := l.normalize(ref); key != "" {
			_, ok := l.entries[key]
			return ok
		}
	}
	return false
}

// Len returns the number of indexed keys, raw and normalized.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Append durably records ref. Each call is a single O_APPEND write of one
// line, made while holding the ledger mutex.
func (l *Ledger) Append(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &types.LedgerError{Op: "append", Path: l.path, Err: err}
		}
	}
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return &types.LedgerError{Op: "append", Path: l.path, Err: err}
	}
	if _, err := f.WriteString(ref + "\n"); err != nil {
		_ = f.Close()
		return &types.LedgerError{Op: "append", Path: l.path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &types.LedgerError{Op: "append", Path: l.path, Err: err}
	}
	l.index(ref)
	return nil
}
