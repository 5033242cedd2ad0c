package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	appDir      = "resume-matcher"
	sessionFile = "session.json"
)

// Persister keeps a session across process restarts.
type Persister interface {
	Load() (Session, error)
	Save(Session) error
	Remove() error
}

// DefaultPath returns the session file location under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving user config dir: %w", err)
	}
	return filepath.Join(dir, appDir, sessionFile), nil
}

type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string { return f.path }

// Load returns an empty session when the file does not exist or is empty.
func (f *File) Load() (Session, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Session{}, nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("reading session file %q: %w", f.path, err)
	}
	if len(data) == 0 {
		return Session{}, nil
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("decoding session file %q: %w", f.path, err)
	}

	// A refresh token never outlives its access token.
	if s.AccessToken == "" {
		return Session{}, nil
	}

	return s, nil
}

func (f *File) Save(s Session) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating session dir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}

	return os.Rename(tmp, f.path)
}

func (f *File) Remove() error {
	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing session file %q: %w", f.path, err)
	}
	return nil
}

// Memory is a Persister for tests and for runs that must not touch disk.
type Memory struct {
	mu sync.Mutex
	s  Session
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load() (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s, nil
}

func (m *Memory) Save(s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = s
	return nil
}

func (m *Memory) Remove() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = Session{}
	return nil
}
