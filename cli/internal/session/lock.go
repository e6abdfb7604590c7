package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AcquireLock takes an exclusive advisory lock on stateDir/lock so only one
// run uses the repository's scratch directory at a time. Creates stateDir if
// needed. Non-blocking: returns ErrLocked when another run holds it. The
// holder's PID is written to the lock file for LockHolder. The returned
// release func must be deferred.
func AcquireLock(stateDir string) (release func(), err error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("run lock: create state dir: %w", err)
	}
	path := filepath.Join(stateDir, lockFilename)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("run lock: open %s: %w", path, err)
	}
	if err := tryLock(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}
	return func() {
		_ = f.Truncate(0)
		unlock(f)
		_ = f.Close()
	}, nil
}

// LockHolder returns the PID recorded by the run holding the lock in
// stateDir, or 0 when none is recorded.
func LockHolder(stateDir string) int {
	data, err := os.ReadFile(filepath.Join(stateDir, lockFilename))
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid < 0 {
		return 0
	}
	return pid
}
