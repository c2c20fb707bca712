package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rook-computer/inkpanel/internal/atomicfile"
)

// File stores each entry as a JSON file named by the SHA-256 of its key,
// so any key is a safe file name. Several processes may share a directory.
type File struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

type fileEntry struct {
	Expires time.Time `json:"expires,omitempty"`
	Value   []byte    `json:"value"`
}

// NewFile opens a file cache in dir, creating it if needed. An empty dir
// uses the user cache directory.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("cache: %w", err)
		}
		dir = filepath.Join(base, "inkpanel")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return &File{dir: dir, now: time.Now}, nil
}

func (f *File) Dir() string { return f.dir }

func (f *File) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.keyPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: read %s: %w", key, err)
	}
	var e fileEntry
	if err := json.Unmarshal(data, &e); err != nil {
		// A torn or foreign file is a miss.
		return nil, false, nil
	}
	if !e.Expires.IsZero() && !f.now().Before(e.Expires) {
		return nil, false, nil
	}
	return e.Value, true, nil
}

func (f *File) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := fileEntry{Value: value}
	if ttl > 0 {
		e.Expires = f.now().Add(ttl)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := atomicfile.Write(f.keyPath(key), data, 0o644); err != nil {
		return fmt.Errorf("cache: write %s: %w", key, err)
	}
	return nil
}

func (f *File) Close() error { return nil }

func (f *File) keyPath(key string) string {
	h := sha256.Sum256([]byte(key))
	return filepath.Join(f.dir, hex.EncodeToString(h[:])+".json")
}
