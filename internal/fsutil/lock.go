package fsutil

import (
	"fmt"
	"os"
)

// Lock is an exclusive advisory lock held on a sidecar file.
type Lock struct {
	f *os.File
}

// LockPath blocks until it holds the lock for path. The lock file is
// path + ".lock" and is left in place after Unlock.
func LockPath(path string) (*Lock, error) {
	f, err := os.OpenFile(path+".lock", os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	return &Lock{f: f}, nil
}

// Unlock releases the lock.
func (l *Lock) Unlock() error {
	err := unlockFile(l.f)
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	return err
}
