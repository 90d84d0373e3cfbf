// Package virtualfs is the program library: named program texts per
// owner, cached in memory and persisted in SQLite.
package virtualfs

import (
	"database/sql"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/antibyte/cpcrun/pkg/configuration"
	"github.com/antibyte/cpcrun/pkg/logger"
)

// DefaultExtension is added to names given without one.
const DefaultExtension = ".bas"

var (
	ErrNotFound    = errors.New("file not found")
	ErrInvalidName = errors.New("invalid file name")
	ErrTooLarge    = errors.New("file too large")
	ErrTooMany     = errors.New("too many files")
)

func vfsDebugLog(format string, args ...interface{}) {
	logger.Debug(logger.AreaStorage, format, args...)
}

// VirtualFile is one stored program.
type VirtualFile struct {
	Name    string
	Content []byte
	ModTime time.Time
}

// VFS holds the programs of all owners. The database is optional; without
// it files live in RAM only.
type VFS struct {
	mu     sync.RWMutex
	db     *sql.DB
	owners map[string]map[string]*VirtualFile
	loaded map[string]bool // owners read from the database
}

// InitDB opens the SQLite database at dbPath.
func InitDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// CreateTables ensures the program table exists.
func CreateTables(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS programs (
		owner TEXT NOT NULL,
		name TEXT NOT NULL,
		content BLOB,
		mod_time INTEGER NOT NULL,
		PRIMARY KEY (owner, name)
	)`)
	if err != nil {
		return fmt.Errorf("failed to create programs table: %w", err)
	}
	return nil
}

// New creates a library on db, which may be nil.
func New(db *sql.DB) *VFS {
	return &VFS{
		db:     db,
		owners: make(map[string]map[string]*VirtualFile),
		loaded: make(map[string]bool),
	}
}

// NormalizeName turns a program name into its stored form: base name,
// lower case, with the default extension when none was given.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ToLower(path.Base(name))
	if name == "" || name == "." || name == "/" || name == ".." {
		return "", ErrInvalidName
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(`:*?"<>|`, r) {
			return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	if path.Ext(name) == "" {
		name += DefaultExtension
	}
	return name, nil
}

func (vfs *VFS) checkFileSizeLimit(content string) error {
	maxFileSize := configuration.GetInt("Storage", "max_file_size_kb", 64) * 1024
	if len(content) > maxFileSize {
		return fmt.Errorf("%w: %d bytes (max %d bytes)", ErrTooLarge, len(content), maxFileSize)
	}
	return nil
}

// filesWithoutLock returns the files of owner, reading them from the
// database the first time.
func (vfs *VFS) filesWithoutLock(owner string) (map[string]*VirtualFile, error) {
	files, ok := vfs.owners[owner]
	if !ok {
		files = make(map[string]*VirtualFile)
		vfs.owners[owner] = files
	}
	if vfs.db == nil || vfs.loaded[owner] {
		return files, nil
	}

	rows, err := vfs.db.Query("SELECT name, content, mod_time FROM programs WHERE owner = ?", owner)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			name    string
			content []byte
			modTime int64
		)
		if err := rows.Scan(&name, &content, &modTime); err != nil {
			return nil, fmt.Errorf("database error: %w", err)
		}
		files[name] = &VirtualFile{Name: name, Content: content, ModTime: time.Unix(modTime, 0)}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	vfs.loaded[owner] = true
	vfsDebugLog("loaded %d programs of %q", len(files), owner)
	return files, nil
}

// ReadFile returns the text of a program.
func (vfs *VFS) ReadFile(owner, name string) (string, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return "", err
	}

	vfs.mu.Lock()
	defer vfs.mu.Unlock()
	files, err := vfs.filesWithoutLock(owner)
	if err != nil {
		return "", err
	}
	f, ok := files[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return string(f.Content), nil
}

// WriteFile creates or replaces a program.
func (vfs *VFS) WriteFile(owner, name, content string) error {
	name, err := NormalizeName(name)
	if err != nil {
		return err
	}
	if err := vfs.checkFileSizeLimit(content); err != nil {
		logger.Warn(logger.AreaStorage, "write of %q rejected: %v", name, err)
		return err
	}

	vfs.mu.Lock()
	defer vfs.mu.Unlock()
	files, err := vfs.filesWithoutLock(owner)
	if err != nil {
		return err
	}
	if _, exists := files[name]; !exists && len(files) >= configuration.GetInt("Storage", "max_files", 200) {
		return ErrTooMany
	}

	now := time.Now()
	if vfs.db != nil {
		_, err := vfs.db.Exec(`INSERT INTO programs (owner, name, content, mod_time) VALUES (?, ?, ?, ?)
			ON CONFLICT(owner, name) DO UPDATE SET content = excluded.content, mod_time = excluded.mod_time`,
			owner, name, []byte(content), now.Unix())
		if err != nil {
			return fmt.Errorf("database error: %w", err)
		}
	}
	files[name] = &VirtualFile{Name: name, Content: []byte(content), ModTime: now}
	vfsDebugLog("wrote %q for %q, %d bytes", name, owner, len(content))
	return nil
}

// Remove deletes a program.
func (vfs *VFS) Remove(owner, name string) error {
	name, err := NormalizeName(name)
	if err != nil {
		return err
	}

	vfs.mu.Lock()
	defer vfs.mu.Unlock()
	files, err := vfs.filesWithoutLock(owner)
	if err != nil {
		return err
	}
	if _, ok := files[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if vfs.db != nil {
		if _, err := vfs.db.Exec("DELETE FROM programs WHERE owner = ? AND name = ?", owner, name); err != nil {
			return fmt.Errorf("database error: %w", err)
		}
	}
	delete(files, name)
	return nil
}

// List returns the program names of owner in order.
func (vfs *VFS) List(owner string) ([]string, error) {
	vfs.mu.Lock()
	defer vfs.mu.Unlock()
	files, err := vfs.filesWithoutLock(owner)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
