package tree

import (
	"os"
	"path/filepath"
)

// Loader provides story text by path. Given-story references are passed to
// it exactly as written.
type Loader interface {
	LoadStory(path string) (string, error)
}

// DirLoader loads stories from files under Root. Paths use forward slashes.
type DirLoader struct {
	Root string
}

// LoadStory reads Root/path.
func (d DirLoader) LoadStory(path string) (string, error) {
	b, err := os.ReadFile(filepath.Join(d.Root, filepath.FromSlash(path)))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// MapLoader serves stories from memory.
type MapLoader map[string]string

// LoadStory returns the text stored under path.
func (m MapLoader) LoadStory(path string) (string, error) {
	text, ok := m[path]
	if !ok {
		return "", os.ErrNotExist
	}
	return text, nil
}
