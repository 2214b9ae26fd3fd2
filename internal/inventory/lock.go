package inventory

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	oerrors "github.com/provisio/prov/internal/errors"
)

// LockFile is the name of the cross-process lock in the working folder.
const LockFile = ".lock"

// Lock is a held working-folder lock.
type Lock struct {
	path string
}

// AcquireLock creates the lock file of workDir exclusively. When another
// process holds it, the error wraps errors.ErrLocked.
func AcquireLock(workDir string) (*Lock, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating working folder: %w", err)
	}
	path := filepath.Join(workDir, LockFile)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			holder, _ := os.ReadFile(path)
			return nil, &oerrors.DetailError{
				Type:     "working folder locked",
				Message:  "another prov process is deploying into this working folder",
				Location: path,
				Context:  map[string]string{"Holder": strings.TrimSpace(string(holder))},
				Hint:     "Wait for it to finish. If no prov process is running, remove the lock file.",
				Cause:    oerrors.ErrLocked,
			}
		}
		return nil, fmt.Errorf("creating lock file: %w", err)
	}
	fmt.Fprintf(f, "pid=%d since=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("writing lock file: %w", err)
	}
	return &Lock{path: path}, nil
}

// Release removes the lock file.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("releasing lock: %w", err)
	}
	return nil
}
