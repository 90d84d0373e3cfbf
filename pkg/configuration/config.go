package configuration

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config verwaltet die Anwendungskonfiguration
type Config struct {
	settings map[string]map[string]string
	filePath string
	mu       sync.RWMutex
}

var (
	globalConfig *Config
	once         sync.Once
)

// LocalOverridePath is read after the main file; its values win.
const LocalOverridePath = "settings.local.cfg"

// sectionOrder defines the order sections are written in.
var sectionOrder = []string{"RunLoop", "Sound", "Storage", "Server", "TLS", "JWT", "Auth", "Debug"}

// Initialize initialisiert die globale Konfiguration
func Initialize(configPath string) error {
	var err error
	once.Do(func() {
		globalConfig, err = loadConfig(configPath)
		if err != nil {
			return
		}
		if _, statErr := os.Stat(LocalOverridePath); statErr == nil {
			// Fehler hier sind nicht fatal, die Basiskonfiguration bleibt gültig
			_ = globalConfig.loadLocalConfig(LocalOverridePath)
		}
	})
	return err
}

// Use installs an already built configuration as the global one.
// Tests use it to run against in-memory settings.
func Use(c *Config) {
	globalConfig = c
}

// New returns a configuration holding only the defaults.
func New() *Config {
	c := &Config{settings: make(map[string]map[string]string)}
	c.createDefaultConfig()
	return c
}

// Parse reads INI-style settings from r on top of the defaults.
func Parse(r io.Reader) (*Config, error) {
	c := New()
	if err := c.merge(r); err != nil {
		return nil, err
	}
	return c, nil
}

// loadConfig lädt die Konfiguration aus einer Datei
func loadConfig(filePath string) (*Config, error) {
	config := New()
	config.filePath = filePath

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		if err := config.saveToFile(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return config, nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if err := config.merge(file); err != nil {
		return nil, err
	}
	return config, nil
}

// loadLocalConfig lädt lokale Konfigurationsüberschreibungen
func (c *Config) loadLocalConfig(filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	return c.merge(file)
}

// merge liest Sektionen und Schlüssel; vorhandene Werte werden überschrieben
func (c *Config) merge(r io.Reader) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	scanner := bufio.NewScanner(r)
	currentSection := ""

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Überspringe leere Zeilen und Kommentare
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			currentSection = line[1 : len(line)-1]
			if c.settings[currentSection] == nil {
				c.settings[currentSection] = make(map[string]string)
			}
			continue
		}

		if strings.Contains(line, "=") && currentSection != "" {
			parts := strings.SplitN(line, "=", 2)
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			c.settings[currentSection][key] = value
		}
	}
	return scanner.Err()
}

// createDefaultConfig erstellt die Standard-Konfiguration
func (c *Config) createDefaultConfig() {
	// [RunLoop] Sektion
	c.settings["RunLoop"] = map[string]string{
		"frame_rate_hz":     "50",
		"max_keys_per_pass": "256",
		"bench":             "0",
	}

	// [Sound] Sektion
	c.settings["Sound"] = map[string]string{
		"enabled":      "true",
		"queue_length": "4",
	}

	// [Storage] Sektion
	c.settings["Storage"] = map[string]string{
		"enable_file_access": "false",
		"database":           "programs.db",
		"max_file_size_kb":   "64",
		"max_files":          "200",
	}

	// [Server] Sektion
	c.settings["Server"] = map[string]string{
		"port":                "8080",
		"allowed_origins":     "http://localhost:8080",
		"read_buffer_size":    "1024",
		"write_buffer_size":   "1024",
		"pong_timeout":        "90s",
		"write_wait_timeout":  "10s",
		"max_message_size_kb": "64",
		"max_sessions_per_ip": "5",
		"rate_limit_messages": "600",
	}

	// [TLS] Sektion
	c.settings["TLS"] = map[string]string{
		"enable_tls":           "false",
		"enable_letsencrypt":   "false",
		"domain":               "",
		"letsencrypt_email":    "",
		"cert_cache_dir":       "./certs",
		"force_https_redirect": "false",
		"cert_file":            "./certs/server.crt",
		"key_file":             "./certs/server.key",
		"https_port":           "8443",
	}

	// [JWT] Sektion
	c.settings["JWT"] = map[string]string{
		"secret_key":             "",
		"token_expiration_hours": "24",
	}

	// [Auth] Sektion
	c.settings["Auth"] = map[string]string{
		"access_password_hash": "",
	}

	// [Debug] Sektion
	c.settings["Debug"] = map[string]string{
		"enable_debug_logging": "true",
		"log_level":            "INFO",
		"log_file":             "debug.log",
		"max_log_size_mb":      "10",
		"log_rotation_count":   "3",
		// Selektive Logging-Bereiche
		"log_runloop":   "true",
		"log_keyboard":  "false",
		"log_sound":     "false",
		"log_fileload":  "true",
		"log_program":   "true",
		"log_vm":        "false",
		"log_session":   "true",
		"log_websocket": "false",
		"log_storage":   "true",
		"log_auth":      "true",
		"log_config":    "true",
		"log_general":   "true",
	}
}

// WriteTo writes all sections in a stable order.
func (c *Config) WriteTo(w io.Writer) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var b strings.Builder
	b.WriteString("; cpcrun Configuration File\n")
	b.WriteString("; Generated automatically - modify with care\n")
	b.WriteString(";\n\n")

	written := make(map[string]bool)
	sections := append([]string(nil), sectionOrder...)
	var extra []string
	for name := range c.settings {
		extra = append(extra, name)
	}
	sort.Strings(extra)
	sections = append(sections, extra...)

	for _, section := range sections {
		settings, exists := c.settings[section]
		if !exists || written[section] {
			continue
		}
		written[section] = true
		fmt.Fprintf(&b, "[%s]\n", section)

		keys := make([]string, 0, len(settings))
		for key := range settings {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(&b, "%s = %s\n", key, settings[key])
		}
		b.WriteString("\n")
	}

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// saveToFile speichert die aktuelle Konfiguration in die Datei
func (c *Config) saveToFile() error {
	if c.filePath == "" {
		return fmt.Errorf("configuration has no file path")
	}
	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	file, err := os.Create(c.filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = c.WriteTo(file)
	return err
}

// Lookup returns a raw value and whether it was set.
func (c *Config) Lookup(section, key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if sectionMap, exists := c.settings[section]; exists {
		value, ok := sectionMap[key]
		return value, ok
	}
	return "", false
}

// GetString gibt einen String-Wert aus der Konfiguration zurück
func GetString(section, key, defaultValue string) string {
	if globalConfig == nil {
		return defaultValue
	}
	if value, ok := globalConfig.Lookup(section, key); ok {
		return value
	}
	return defaultValue
}

// GetInt gibt einen Integer-Wert aus der Konfiguration zurück
func GetInt(section, key string, defaultValue int) int {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}

	if value, err := strconv.Atoi(str); err == nil {
		return value
	}

	return defaultValue
}

// GetFloat gibt einen Float-Wert aus der Konfiguration zurück
func GetFloat(section, key string, defaultValue float64) float64 {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}

	if value, err := strconv.ParseFloat(str, 64); err == nil {
		return value
	}

	return defaultValue
}

// GetBool gibt einen Boolean-Wert aus der Konfiguration zurück
func GetBool(section, key string, defaultValue bool) bool {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}

	if value, err := strconv.ParseBool(str); err == nil {
		return value
	}

	return defaultValue
}

// GetDuration gibt einen Duration-Wert aus der Konfiguration zurück
func GetDuration(section, key string, defaultValue time.Duration) time.Duration {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}

	if value, err := time.ParseDuration(str); err == nil {
		return value
	}

	return defaultValue
}

// GetSection returns all key-value pairs from a configuration section
func GetSection(sectionName string) map[string]string {
	result := make(map[string]string)
	if globalConfig == nil {
		return result
	}

	globalConfig.mu.RLock()
	defer globalConfig.mu.RUnlock()

	for key, value := range globalConfig.settings[sectionName] {
		result[key] = value
	}
	return result
}

// SetString setzt einen String-Wert in der Konfiguration
func SetString(section, key, value string) {
	if globalConfig == nil {
		return
	}

	globalConfig.mu.Lock()
	defer globalConfig.mu.Unlock()

	if globalConfig.settings[section] == nil {
		globalConfig.settings[section] = make(map[string]string)
	}

	globalConfig.settings[section][key] = value
}

// Save speichert die aktuelle Konfiguration in die Datei
func Save() error {
	if globalConfig == nil {
		return fmt.Errorf("configuration not initialized")
	}
	return globalConfig.saveToFile()
}
