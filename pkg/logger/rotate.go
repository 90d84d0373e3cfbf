package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// rotatingFile is an io.Writer that rotates the log file once it
// exceeds maxBytes, keeping rotationCount old copies.
type rotatingFile struct {
	path          string
	maxBytes      int64
	rotationCount int

	mu          sync.Mutex
	file        *os.File
	currentSize int64
}

// open öffnet die Log-Datei
func (r *rotatingFile) open() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.openLocked(os.O_APPEND)
}

func (r *rotatingFile) openLocked(mode int) error {
	if r.file != nil {
		r.file.Close()
		r.file = nil
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return err
	}

	file, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|mode, 0644)
	if err != nil {
		return err
	}
	r.file = file
	r.currentSize = 0
	if stat, err := file.Stat(); err == nil {
		r.currentSize = stat.Size()
	}
	return nil
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return 0, fmt.Errorf("log file %s is closed", r.path)
	}
	n, err := r.file.Write(p)
	r.currentSize += int64(n)
	if err != nil {
		return n, err
	}
	if r.maxBytes > 0 && r.currentSize > r.maxBytes {
		if rerr := r.rotateLocked(); rerr != nil {
			return n, rerr
		}
	}
	return n, nil
}

// rotateLocked rotiert die Log-Datei wenn sie zu groß wird
func (r *rotatingFile) rotateLocked() error {
	if r.file != nil {
		r.file.Close()
		r.file = nil
	}

	for i := r.rotationCount - 1; i >= 1; i-- {
		oldName := fmt.Sprintf("%s.%d", r.path, i)
		newName := fmt.Sprintf("%s.%d", r.path, i+1)
		if i == r.rotationCount-1 {
			os.Remove(newName)
		}
		os.Rename(oldName, newName)
	}
	os.Rename(r.path, r.path+".1")

	return r.openLocked(os.O_TRUNC)
}

func (r *rotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
