//go:build windows

package session

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"unsafe"
)

const (
	lockfileExclusiveLock                  = 0x2
	lockfileFailImmediately                = 0x1
	errLockViolation         syscall.Errno = 0x21
)

var (
	kernel32         = syscall.NewLazyDLL("kernel32.dll")
	procLockFileEx   = kernel32.NewProc("LockFileEx")
	procUnlockFileEx = kernel32.NewProc("UnlockFileEx")
)

// tryLock locks a single byte far past the PID text so the holder can still
// rewrite the file.
func tryLock(f *os.File) error {
	var ol syscall.Overlapped
	ol.OffsetHigh = 1
	r1, _, err := procLockFileEx.Call(f.Fd(), lockfileExclusiveLock|lockfileFailImmediately, 0, 1, 0, uintptr(unsafe.Pointer(&ol)))
	if r1 != 0 {
		return nil
	}
	if errors.Is(err, errLockViolation) {
		return ErrLocked
	}
	if err == nil {
		err = errors.New("LockFileEx failed")
	}
	return fmt.Errorf("run lock: LockFileEx: %w", err)
}

func unlock(f *os.File) {
	var ol syscall.Overlapped
	ol.OffsetHigh = 1
	_, _, _ = procUnlockFileEx.Call(f.Fd(), 0, 1, 0, uintptr(unsafe.Pointer(&ol)))
}
