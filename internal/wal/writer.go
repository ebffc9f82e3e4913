package wal

import (
	"fmt"
	"os"
	"sync"

	"github.com/uprootiny/arbitragefx/pkg/types"
)

// Writer owns the WAL file handle and serializes every append through
// a single goroutine-safe mutex so concurrent fill-channel and
// intent-submission paths never interleave partial writes. Append
// returns only after the record has been written and fsynced, giving
// callers "send returns after fsync" semantics, which is what makes
// the write-ahead guarantee hold.
type Writer struct {
	mu   sync.Mutex
	file *os.File
}

// Open appends to (or creates) the WAL at path, writing a version
// header record if the file is new.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("wal: stat %s: %w", path, err)
	}

	w := &Writer{file: f}
	if info.Size() == 0 {
		if err := w.Append(types.WalEntry{Kind: types.WalHeader, Version: types.WalVersion}); err != nil {
			f.Close()
			return nil, err
		}
	}
	return w, nil
}

// Append writes one entry and fsyncs before returning. The caller must
// not consider the entry's effect durable, or mutate the corresponding
// StrategyState, until Append returns nil.
func (w *Writer) Append(e types.WalEntry) error {
	line, err := encodeEntry(e)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("wal: write: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("wal: fsync: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
