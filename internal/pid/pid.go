// Package pid guards against running two daemons against the same head
// unit.
package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/vehiclectl/internal/errors"
)

// Write records the current process ID at path. It fails with
// ErrAlreadyRunning when the file names a live process other than this one.
// A stale or unreadable file is overwritten.
func Write(path string) error {
	errFactory := errors.New()
	self := os.Getpid()

	if running, ok := read(path); ok && running != self && alive(running) {
		return errFactory.WithData(errors.ErrAlreadyRunning, running)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(self)), 0o600); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

// Remove deletes the PID file if it still belongs to this process.
func Remove(path string) error {
	owner, ok := read(path)
	if !ok || owner != os.Getpid() {
		return nil
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.New().Wrap(errors.ErrInternal, err)
	}

	return nil
}

func read(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

func alive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
