package terminal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/antibyte/cpcrun/pkg/shared"
)

// ActionKeepalive is accepted and dropped.
const ActionKeepalive = "keepalive"

// Sicherheitskonstanten für die Request-Validierung
const (
	MaxContentLen = 64 * 1024
	MaxKeyLen     = 16
	MaxNameLen    = 64
)

var (
	ErrUnknownAction  = errors.New("unknown action")
	ErrContentTooLong = errors.New("content too long")
	ErrFieldTooLong   = errors.New("field too long")
)

// actions lists what a client may request.
var actions = map[string]bool{
	"source": true, "parse": true, "run": true, "parseRun": true,
	"stop": true, "continue": true, "reset": true, "enter": true,
	"key": true, "escape": true, "sound": true, "merge": true,
	"renum": true, "save": true, "load": true, "files": true,
	ActionKeepalive: true,
}

// RequestValidator validiert und bereinigt Client-Anfragen
type RequestValidator struct {
	MaxContentLen int
}

// NewRequestValidator erstellt einen neuen Validator
func NewRequestValidator() *RequestValidator {
	return &RequestValidator{MaxContentLen: MaxContentLen}
}

// Decode parses data into a request, rejecting unknown fields and actions
// and stripping control characters the program text cannot contain.
func (v *RequestValidator) Decode(data []byte) (shared.Request, error) {
	var req shared.Request

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		return shared.Request{}, fmt.Errorf("invalid JSON: %w", err)
	}

	if !actions[req.Action] {
		return shared.Request{}, fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}
	if len(req.Content) > v.MaxContentLen {
		return shared.Request{}, fmt.Errorf("%w: %d bytes", ErrContentTooLong, len(req.Content))
	}
	if len(req.Key) > MaxKeyLen || len(req.Name) > MaxNameLen {
		return shared.Request{}, ErrFieldTooLong
	}

	req.Content = sanitizeString(req.Content)
	return req, nil
}

// sanitizeString entfernt Steuerzeichen außer Tab und Zeilenumbrüchen
func sanitizeString(s string) string {
	if strings.IndexFunc(s, isStripped) < 0 {
		return s
	}
	return strings.Map(func(r rune) rune {
		if isStripped(r) {
			return -1
		}
		return r
	}, s)
}

func isStripped(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t'
}
