package configuration

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseOverridesDefaults(t *testing.T) {
	input := `; comment
[RunLoop]
frame_rate_hz = 25
# another comment
[Storage]
enable_file_access = true
[Custom]
name = value = with equals
`
	c, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	Use(c)
	defer Use(nil)

	tests := []struct {
		name    string
		section string
		key     string
		want    string
	}{
		{"override", "RunLoop", "frame_rate_hz", "25"},
		{"default kept", "RunLoop", "max_keys_per_pass", "256"},
		{"bool override", "Storage", "enable_file_access", "true"},
		{"value with equals", "Custom", "name", "value = with equals"},
		{"missing key", "RunLoop", "nope", "fallback"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetString(tt.section, tt.key, "fallback"); got != tt.want {
				t.Errorf("GetString(%s, %s) = %q, want %q", tt.section, tt.key, got, tt.want)
			}
		})
	}

	if got := GetInt("RunLoop", "frame_rate_hz", 50); got != 25 {
		t.Errorf("GetInt = %d, want 25", got)
	}
	if !GetBool("Storage", "enable_file_access", false) {
		t.Error("GetBool should return true")
	}
	if got := GetDuration("Server", "pong_timeout", time.Second); got != 90*time.Second {
		t.Errorf("GetDuration = %v, want 90s", got)
	}
	if got := GetInt("Custom", "name", 7); got != 7 {
		t.Errorf("GetInt on non-number = %d, want default 7", got)
	}
}

func TestGettersWithoutConfig(t *testing.T) {
	Use(nil)
	if got := GetString("RunLoop", "frame_rate_hz", "x"); got != "x" {
		t.Errorf("GetString = %q, want default", got)
	}
	if got := GetFloat("Sound", "volume", 0.5); got != 0.5 {
		t.Errorf("GetFloat = %v, want 0.5", got)
	}
	if len(GetSection("RunLoop")) != 0 {
		t.Error("GetSection should be empty without configuration")
	}
}

func TestWriteToIsStable(t *testing.T) {
	c := New()
	var first, second bytes.Buffer
	if _, err := c.WriteTo(&first); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	if _, err := c.WriteTo(&second); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	if first.String() != second.String() {
		t.Error("WriteTo output should not depend on map order")
	}
	if !strings.HasPrefix(first.String(), "; cpcrun Configuration File") {
		t.Errorf("missing header: %q", first.String()[:40])
	}
	if strings.Index(first.String(), "[RunLoop]") > strings.Index(first.String(), "[Debug]") {
		t.Error("RunLoop section should be written before Debug")
	}
}

func TestLoadConfigCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "settings.cfg")
	c, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if v, _ := c.Lookup("Sound", "queue_length"); v != "4" {
		t.Errorf("queue_length = %q, want 4", v)
	}

	reloaded, err := loadConfig(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if v, _ := reloaded.Lookup("Server", "port"); v != "8080" {
		t.Errorf("port = %q, want 8080", v)
	}
}
