package terminal

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/antibyte/cpcrun/pkg/shared"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    shared.Request
		wantErr error
	}{
		{
			name: "run",
			data: `{"action":"parseRun","content":"10 PRINT 1\n20 END"}`,
			want: shared.Request{Action: "parseRun", Content: "10 PRINT 1\n20 END"},
		},
		{
			name: "control characters stripped",
			data: `{"action":"enter","content":"A\u0000B\u001bC\tD"}`,
			want: shared.Request{Action: "enter", Content: "ABC\tD"},
		},
		{
			name: "renum",
			data: `{"action":"renum","line":100,"step":5}`,
			want: shared.Request{Action: "renum", Line: 100, Step: 5},
		},
		{name: "unknown action", data: `{"action":"shell"}`, wantErr: ErrUnknownAction},
		{name: "long key", data: `{"action":"key","key":"ABCDEFGHIJKLMNOPQRSTUVWXYZ"}`, wantErr: ErrFieldTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewRequestValidator().Decode([]byte(tt.data))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	for _, data := range []string{``, `not json`, `{"action":"run","evil":1}`, `[1,2]`} {
		if _, err := NewRequestValidator().Decode([]byte(data)); err == nil {
			t.Errorf("Decode(%q) succeeded", data)
		}
	}
}

func TestDecodeContentLimit(t *testing.T) {
	v := &RequestValidator{MaxContentLen: 4}
	if _, err := v.Decode([]byte(`{"action":"source","content":"12345"}`)); !errors.Is(err, ErrContentTooLong) {
		t.Errorf("Decode() error = %v, want %v", err, ErrContentTooLong)
	}
}
