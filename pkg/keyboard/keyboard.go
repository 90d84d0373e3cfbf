// Package keyboard buffers key presses for the run loop.
package keyboard

import (
	"github.com/antibyte/cpcrun/pkg/logger"
)

const (
	KeyReturn    = "\r"
	KeyDelete    = "\x7f"
	KeyEscape    = "\x1b"
	KeyTab       = "\t"
	KeyBackspace = "\x08"

	// MaxBuffered is the number of keys kept before new ones are dropped.
	MaxBuffered = 4096
)

// Buffer is a FIFO key buffer with one optional key callback. It is not
// safe for concurrent use; push keys from the loop goroutine.
type Buffer struct {
	keys     []string
	callback func()
	escape   func()
}

// New returns an empty buffer.
func New() *Buffer {
	return &Buffer{}
}

// SetKeyCallback installs fn to be called after each buffered key.
// nil removes the callback.
func (b *Buffer) SetKeyCallback(fn func()) {
	b.callback = fn
}

// SetEscapeHandler installs fn to be called instead of buffering the
// escape key.
func (b *Buffer) SetEscapeHandler(fn func()) {
	b.escape = fn
}

// PushKey buffers key and notifies the callback.
func (b *Buffer) PushKey(key string) {
	if key == "" {
		return
	}
	if key == KeyEscape && b.escape != nil {
		logger.Debug(logger.AreaKeyboard, "escape key")
		b.escape()
		return
	}
	if len(b.keys) >= MaxBuffered {
		logger.Warn(logger.AreaKeyboard, "key buffer full, dropping %q", key)
		return
	}
	b.keys = append(b.keys, key)
	if b.callback != nil {
		b.callback()
	}
}

// NextKey removes and returns the oldest key, or "" if none is buffered.
func (b *Buffer) NextKey() string {
	if len(b.keys) == 0 {
		return ""
	}
	key := b.keys[0]
	b.keys = b.keys[1:]
	return key
}

// Len returns the number of buffered keys.
func (b *Buffer) Len() int {
	return len(b.keys)
}

// Clear drops all buffered keys.
func (b *Buffer) Clear() {
	b.keys = nil
}

// Translate maps browser key names to the characters the buffer uses.
// Single characters are returned unchanged; unknown names yield "".
func Translate(name string) string {
	switch name {
	case "Enter", "Return":
		return KeyReturn
	case "Backspace", "Delete", "Del":
		return KeyDelete
	case "Escape", "Esc":
		return KeyEscape
	case "Tab":
		return KeyTab
	case "Space":
		return " "
	}
	if len([]rune(name)) == 1 {
		return name
	}
	return ""
}
