package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/rook-computer/inkpanel/internal/atomicfile"
)

var (
	ErrPresetNotFound = errors.New("preset not found")
	ErrInvalidName    = errors.New("invalid name")
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// SanitizeName maps name onto [A-Za-z0-9_-], replacing runs of other
// characters with one underscore and trimming underscores at either end.
func SanitizeName(name string) (string, error) {
	safe := strings.Trim(unsafeName.ReplaceAllString(strings.TrimSpace(name), "_"), "_")
	if safe == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return safe, nil
}

// Store keeps the live document and the named presets on disk.
type Store struct {
	path      string
	presetDir string
	mu        sync.Mutex
}

func NewStore(documentPath, presetDir string) *Store {
	return &Store{path: documentPath, presetDir: presetDir}
}

func (s *Store) Path() string { return s.path }

// Load returns the live document. A missing file yields the default
// document. An unreadable or invalid file also yields the default document,
// together with the error so the caller can report it.
func (s *Store) Load() (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (Document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Default(), fmt.Errorf("read %s: %w", s.path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Default(), fmt.Errorf("parse %s: %w", s.path, err)
	}
	return doc, nil
}

// Save stores doc as the live document. When doc names no active preset,
// the one already on disk is kept.
func (s *Store) Save(doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.ActivePreset == "" {
		if existing, err := s.load(); err == nil {
			doc.ActivePreset = existing.ActivePreset
		}
	}
	return s.write(s.path, doc)
}

func (s *Store) write(path string, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return atomicfile.Write(path, append(data, '\n'), 0o644)
}

func (s *Store) presetPath(name string) (string, string, error) {
	safe, err := SanitizeName(name)
	if err != nil {
		return "", "", err
	}
	return safe, filepath.Join(s.presetDir, safe+".json"), nil
}

// Presets returns the stored preset names in sorted order.
func (s *Store) Presets() ([]string, error) {
	entries, err := os.ReadDir(s.presetDir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	names := []string{}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) LoadPreset(name string) (Document, error) {
	_, path, err := s.presetPath(name)
	if err != nil {
		return Document{}, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Document{}, fmt.Errorf("%w: %s", ErrPresetNotFound, name)
	}
	if err != nil {
		return Document{}, fmt.Errorf("read preset %s: %w", name, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("parse preset %s: %w", name, err)
	}
	return doc, nil
}

// SavePreset stores doc under the sanitized name and returns that name.
func (s *Store) SavePreset(name string, doc Document) (string, error) {
	safe, path, err := s.presetPath(name)
	if err != nil {
		return "", err
	}
	doc.ActivePreset = ""
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(path, doc); err != nil {
		return "", err
	}
	return safe, nil
}

// DeletePreset removes a preset and clears it from the live document if it
// was the active one. Deleting a missing preset is not an error.
func (s *Store) DeletePreset(name string) error {
	safe, path, err := s.presetPath(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete preset %s: %w", safe, err)
	}
	live, err := s.load()
	if err != nil || live.ActivePreset != safe {
		return nil
	}
	if _, statErr := os.Stat(s.path); statErr != nil {
		return nil
	}
	live.ActivePreset = ""
	return s.write(s.path, live)
}

// ActivatePreset copies a preset into the live document and marks it
// active. The new live document is returned.
func (s *Store) ActivatePreset(name string) (Document, error) {
	safe, _, err := s.presetPath(name)
	if err != nil {
		return Document{}, err
	}
	doc, err := s.LoadPreset(safe)
	if err != nil {
		return Document{}, err
	}
	doc.ActivePreset = safe
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(s.path, doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}
