package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrHeld is returned when another process already holds the PID file.
var ErrHeld = errors.New("pid file is held by another process")

// PIDFile keeps one webhook listener per PID file. The flock lives as long
// as the descriptor stays open.
type PIDFile struct {
	path string
	f    *os.File
}

// Acquire takes an exclusive non-blocking flock on path and records the
// current PID in it.
func Acquire(path string) (*PIDFile, error) {
	if path == "" {
		return nil, fmt.Errorf("pid file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create pid file directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open pid file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			if pid, perr := ReadPID(path); perr == nil {
				return nil, fmt.Errorf("%w (pid %d)", ErrHeld, pid)
			}
			return nil, ErrHeld
		}
		return nil, fmt.Errorf("lock pid file: %w", err)
	}

	p := &PIDFile{path: path, f: f}
	if err := p.writePID(); err != nil {
		_ = p.Release()
		return nil, err
	}
	return p, nil
}

func (p *PIDFile) writePID() error {
	if err := p.f.Truncate(0); err != nil {
		return fmt.Errorf("truncate pid file: %w", err)
	}
	if _, err := p.f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		return fmt.Errorf("write pid: %w", err)
	}
	if err := p.f.Sync(); err != nil {
		return fmt.Errorf("sync pid file: %w", err)
	}
	return nil
}

// ReadPID returns the PID recorded in path.
func ReadPID(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file %s: %w", path, err)
	}
	return pid, nil
}

func (p *PIDFile) Path() string { return p.path }

// Release drops the flock. The file is left in place.
func (p *PIDFile) Release() error {
	if p == nil || p.f == nil {
		return nil
	}
	_ = unix.Flock(int(p.f.Fd()), unix.LOCK_UN)
	err := p.f.Close()
	p.f = nil
	return err
}
