package playback

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/teslashibe/go-tonypi/pkg/audioio"
)

// ErrClipNotFound is returned when a clip file does not exist.
var ErrClipNotFound = errors.New("playback: clip not found")

// Clip is a named buffer of PCM audio.
type Clip struct {
	Name  string
	Audio audioio.AudioChunk
}

// NewClip wraps samples in a clip.
func NewClip(name string, audio audioio.AudioChunk) *Clip {
	return &Clip{Name: name, Audio: audio}
}

// LoadClip reads a wav file. The clip is named after the file.
func LoadClip(path string) (*Clip, error) {
	audio, err := audioio.LoadWAV(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrClipNotFound, path)
		}
		return nil, fmt.Errorf("playback: load %s: %w", path, err)
	}
	return NewClip(filepath.Base(path), audio), nil
}

// Library loads cue clips from a directory and caches them.
type Library struct {
	dir string

	mu    sync.Mutex
	clips map[string]*Clip
}

// NewLibrary creates a library rooted at dir.
func NewLibrary(dir string) *Library {
	return &Library{dir: dir, clips: make(map[string]*Clip)}
}

// Get returns the named clip, loading it on first use.
func (l *Library) Get(name string) (*Clip, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if c, ok := l.clips[name]; ok {
		return c, nil
	}
	c, err := LoadClip(filepath.Join(l.dir, name))
	if err != nil {
		return nil, err
	}
	l.clips[name] = c
	return c, nil
}

// Has reports whether the named clip exists on disk.
func (l *Library) Has(name string) bool {
	if name == "" {
		return false
	}
	l.mu.Lock()
	_, cached := l.clips[name]
	l.mu.Unlock()
	if cached {
		return true
	}
	_, err := os.Stat(filepath.Join(l.dir, name))
	return err == nil
}

// Dir returns the library directory.
func (l *Library) Dir() string {
	return l.dir
}
