package anonymizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const mappingFileVersion = "1.0"

var (
	// ErrNotFound reports a Load against a path with no mapping file.
	ErrNotFound = errors.New("mapping file not found")
	// ErrMalformed reports a mapping file whose content is not valid JSON.
	ErrMalformed = errors.New("mapping file malformed")
)

// Store persists a Mapping to a single JSON file. Saves are atomic
// (write to a temp file in the destination directory, then rename), so a
// concurrent reader never observes a half-written file. Concurrent saves
// are not serialized: the last rename wins.
type Store struct {
	path       string
	createDirs bool
}

func NewStore(path string, createDirs bool) *Store {
	return &Store{path: path, createDirs: createDirs}
}

func (s *Store) Path() string {
	return s.path
}

// mappingFile is the on-disk envelope around the five tables.
type mappingFile struct {
	Usernames     map[string]string `json:"usernames"`
	ComputerNames map[string]string `json:"computerNames"`
	IPAddresses   map[string]string `json:"ipAddresses"`
	Emails        map[string]string `json:"emails"`
	Paths         map[string]string `json:"paths"`
	Timestamp     string            `json:"timestamp"`
	Version       string            `json:"version"`
}

func (s *Store) Save(m *Mapping) error {
	if m == nil {
		m = NewMapping()
	}

	dir := filepath.Dir(s.path)
	if s.createDirs {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create mapping directory: %w", err)
		}
	}

	file := mappingFile{
		Usernames:     m.Usernames,
		ComputerNames: m.ComputerNames,
		IPAddresses:   m.IPAddresses,
		Emails:        m.Emails,
		Paths:         m.Paths,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       mappingFileVersion,
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".mapping-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp mapping file: %w", err)
	}
	tmpName := tmp.Name()

	// Owner-only, best effort: not every filesystem has the concept.
	_ = tmp.Chmod(0o600)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write mapping file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close mapping file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace mapping file: %w", err)
	}
	return nil
}

// Load reads the mapping file and reconstructs the five tables. Tables
// missing from the file default to empty; a missing or unparsable file is
// an error the caller must handle explicitly.
func (s *Store) Load() (*Mapping, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.path)
		}
		return nil, fmt.Errorf("read mapping file %s: %w", s.path, err)
	}

	var file mappingFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, s.path, err)
	}

	m := &Mapping{
		Usernames:     file.Usernames,
		ComputerNames: file.ComputerNames,
		IPAddresses:   file.IPAddresses,
		Emails:        file.Emails,
		Paths:         file.Paths,
	}
	m.normalizeTables()
	return m, nil
}

func (s *Store) Exists() bool {
	info, err := os.Stat(s.path)
	return err == nil && !info.IsDir()
}

func (s *Store) Size() (int64, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, s.path)
		}
		return 0, err
	}
	return info.Size(), nil
}

// Delete removes the mapping file. Deleting an absent file is a no-op.
func (s *Store) Delete() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
