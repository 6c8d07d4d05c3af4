package gateways

import (
	"io/fs"
	"iter"
)

// FilePredicate selects which regular files a scan yields
type FilePredicate func(path string, entry fs.DirEntry) bool

// ArtifactSequence is a lazy, finite, single-use sequence of file paths
type ArtifactSequence interface {
	// All yields matching paths; only the first call produces values
	All() iter.Seq[string]

	// Err reports a walk failure from the last iteration
	Err() error
}

// ArtifactFinder discovers local build artifacts
type ArtifactFinder interface {
	Discover(rootDir string, match FilePredicate) ArtifactSequence
}
