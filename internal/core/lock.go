package core

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	lockFileName = ".preen.lock"

	// staleLockAge is how old a leftover lock may be before it is assumed
	// to belong to a dead run and broken.
	staleLockAge = time.Hour
)

// RunLock is an advisory lock on a destination root, preventing two
// concurrent runs from racing on the same tree.
type RunLock struct {
	path string
}

// AcquireRunLock takes the advisory lock for destRoot, creating the root
// if needed. A stale lock is broken with a warning; a live lock is an
// error (the destination is owned by another run).
func AcquireRunLock(destRoot string) (*RunLock, *Warning, error) {
	if err := os.MkdirAll(destRoot, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating destination root: %w", err)
	}

	path := filepath.Join(destRoot, lockFileName)
	var warning *Warning

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			fmt.Fprintf(f, "pid=%d time=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
			_ = f.Close()
			return &RunLock{path: path}, warning, nil
		}
		if !os.IsExist(err) {
			return nil, warning, fmt.Errorf("creating lock file: %w", err)
		}

		info, statErr := os.Stat(path)
		if statErr != nil || time.Since(info.ModTime()) < staleLockAge {
			return nil, warning, fmt.Errorf("destination is locked by another run (%s)", path)
		}

		// Stale lock from a dead run: break it and retry once.
		warning = &Warning{
			Code:   "stale-lock",
			Path:   path,
			Detail: fmt.Sprintf("broke lock older than %s", staleLockAge),
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, warning, fmt.Errorf("removing stale lock: %w", err)
		}
	}

	return nil, warning, fmt.Errorf("destination is locked by another run (%s)", path)
}

// Release removes the lock file.
func (l *RunLock) Release() {
	_ = os.Remove(l.path)
}
