package changelog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// locksDirName is the subdirectory of the changelog directory holding lock files.
const locksDirName = ".locks"

// LockTimeout is how long WithLock waits for another run to finish.
const LockTimeout = 2 * time.Second

const (
	dirPerms     = 0o750
	lockPerms    = 0o600
	lockPollWait = 25 * time.Millisecond
)

// WithLock executes handler while holding an exclusive lock on path.
// The lock is released when handler returns.
func WithLock(path string, handler func() error) error {
	return WithLockTimeout(path, LockTimeout, handler)
}

// WithLockTimeout is WithLock with an explicit wait limit.
func WithLockTimeout(path string, timeout time.Duration, handler func() error) error {
	lock, lockErr := acquireLock(path, timeout)
	if lockErr != nil {
		return fmt.Errorf("acquiring lock: %w", lockErr)
	}

	defer lock.release()

	return handler()
}

type fileLock struct {
	path string
	file *os.File
}

// release removes the lock file while still holding the lock, then unlocks.
func (l *fileLock) release() {
	if l.file == nil {
		return
	}

	_ = os.Remove(l.path)
	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	_ = l.file.Close()
	l.file = nil
}

// acquireLock polls a non-blocking flock until timeout. After locking, the
// inode at the lock path is compared with the opened file; a mismatch means
// a previous holder removed the file while we waited, so we retry.
func acquireLock(path string, timeout time.Duration) (*fileLock, error) {
	locksDir := filepath.Join(filepath.Dir(path), locksDirName)
	lockPath := filepath.Join(locksDir, filepath.Base(path)+".lock")
	deadline := time.Now().Add(timeout)

	if err := os.MkdirAll(locksDir, dirPerms); err != nil {
		return nil, fmt.Errorf("creating locks dir: %w", err)
	}

	for {
		file, openErr := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, lockPerms)
		if openErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrLockFileOpen, openErr)
		}

		var openStat unix.Stat_t
		if err := unix.Fstat(int(file.Fd()), &openStat); err != nil {
			_ = file.Close()

			return nil, fmt.Errorf("fstat lock file: %w", err)
		}

		flockErr := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if flockErr == nil {
			var pathStat unix.Stat_t

			statErr := unix.Stat(lockPath, &pathStat)
			if statErr == nil && pathStat.Ino == openStat.Ino {
				return &fileLock{path: lockPath, file: file}, nil
			}

			_ = unix.Flock(int(file.Fd()), unix.LOCK_UN)
			_ = file.Close()

			continue
		}

		_ = file.Close()

		if !errors.Is(flockErr, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("flock: %w", flockErr)
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, path)
		}

		time.Sleep(lockPollWait)
	}
}
