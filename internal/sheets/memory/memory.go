// Package memory keeps exported snapshots in process, for tests and for
// running the worker without Google credentials.
package memory

import (
	"context"
	"fmt"
	"sync"

	"budget/internal/sheets"
)

type Writer struct {
	mu     sync.Mutex
	tabs   map[string][][]any
	writes int
	err    error
}

var _ sheets.SnapshotWriter = (*Writer)(nil)

func New() *Writer {
	return &Writer{tabs: make(map[string][][]any)}
}

// WriteMonth replaces the tab named after the snapshot.
func (w *Writer) WriteMonth(_ context.Context, s sheets.Snapshot) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return "", w.err
	}
	title := s.Title()
	w.tabs[title] = s.Rows()
	w.writes++
	return fmt.Sprintf("mem:%s", title), nil
}

// FailWith makes every following write return err; nil restores writes.
func (w *Writer) FailWith(err error) {
	w.mu.Lock()
	w.err = err
	w.mu.Unlock()
}

// Tab returns a copy of the rows last written under title.
func (w *Writer) Tab(title string) ([][]any, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	rows, ok := w.tabs[title]
	if !ok {
		return nil, false
	}
	return append([][]any(nil), rows...), true
}

// Writes counts successful writes.
func (w *Writer) Writes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writes
}
