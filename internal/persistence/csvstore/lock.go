package csvstore

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// ErrLocked is returned when another run holds the lock file.
var ErrLocked = errors.New("another pipeline run holds the lock")

// AcquireLock creates the lock file exclusively and returns a function that removes it.
func AcquireLock(path string) (func() error, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			holder, _ := os.ReadFile(path)
			return nil, fmt.Errorf("%w (%s, pid %s)", ErrLocked, path, holder)
		}
		return nil, err
	}
	if _, err := f.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return func() error { return os.Remove(path) }, nil
}
