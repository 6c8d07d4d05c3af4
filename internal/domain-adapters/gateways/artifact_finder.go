package gateways

import (
	"errors"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/ochairo/symbolpush/internal/domain/interfaces/gateways"
)

// HasSuffix matches files whose name ends with suffix
func HasSuffix(suffix string) gateways.FilePredicate {
	return func(_ string, entry fs.DirEntry) bool {
		return strings.HasSuffix(entry.Name(), suffix)
	}
}

// ArtifactFinder provides utilities for locating build artifacts
type ArtifactFinder struct{}

// NewArtifactFinder creates a new artifact finder
func NewArtifactFinder() *ArtifactFinder {
	return &ArtifactFinder{}
}

// Discover returns a lazy scan of rootDir. Nothing touches the filesystem until
// the sequence is ranged over. A missing rootDir yields an empty sequence.
func (f *ArtifactFinder) Discover(rootDir string, match gateways.FilePredicate) gateways.ArtifactSequence {
	return &artifactSequence{root: rootDir, match: match}
}

// artifactSequence walks root on first iteration
type artifactSequence struct {
	root  string
	match gateways.FilePredicate
	used  atomic.Bool
	err   error
}

// All walks the directory tree, yielding matching paths in lexical order.
// Only the first call produces values; later calls yield nothing.
func (s *artifactSequence) All() iter.Seq[string] {
	return func(yield func(string) bool) {
		if s.used.Swap(true) {
			return
		}

		if _, err := os.Stat(s.root); errors.Is(err, fs.ErrNotExist) {
			return
		}

		s.err = filepath.WalkDir(s.root, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !entry.Type().IsRegular() {
				return nil
			}
			if s.match != nil && !s.match(path, entry) {
				return nil
			}
			if !yield(path) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

// Err reports a walk failure from the last iteration, if any
func (s *artifactSequence) Err() error {
	return s.err
}
