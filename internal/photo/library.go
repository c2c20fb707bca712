package photo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrNotFound is returned when no photo matches a selection.
var ErrNotFound = errors.New("no photo found")

var extensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".bmp": true}

// IsPhotoName reports whether name looks like a usable photo file. macOS
// resource fork files (._name) are rejected.
func IsPhotoName(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, "._") || strings.HasPrefix(base, ".") {
		return false
	}
	return extensions[strings.ToLower(filepath.Ext(base))]
}

// List returns the photos directly inside dir, sorted by name. A missing
// directory is an empty list.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("photo: list %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && IsPhotoName(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Select resolves a photo config value against dir:
//   - empty: the first photo in dir
//   - a glob such as "trips/**/*.jpg": the match at index pick modulo the
//     number of matches
//   - anything else: that file, relative to dir unless absolute
func Select(dir, value string, pick int) (string, error) {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		names, err := List(dir)
		if err != nil {
			return "", err
		}
		if len(names) == 0 {
			return "", ErrNotFound
		}
		return filepath.Join(dir, names[0]), nil
	case strings.ContainsAny(value, "*?[{"):
		matches, err := Glob(dir, value)
		if err != nil {
			return "", err
		}
		if len(matches) == 0 {
			return "", fmt.Errorf("%w: %s", ErrNotFound, value)
		}
		return filepath.Join(dir, matches[((pick%len(matches))+len(matches))%len(matches)]), nil
	}
	path := value
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, filepath.FromSlash(value))
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, value)
	}
	return path, nil
}

// Glob returns photos under dir matching a doublestar pattern, sorted.
func Glob(dir, pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("photo: bad pattern %q", pattern)
	}
	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("photo: glob %q: %w", pattern, err)
	}
	out := matches[:0]
	for _, m := range matches {
		if IsPhotoName(m) {
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}
