// Package storage defines the input tree and output file abstractions.
package storage

import (
	"io"

	"github.com/starford/xmltable/internal/models"
)

// Provider is the interface for reading the input tree.
type Provider interface {
	// List returns metadata for every regular file under the root whose
	// name ends with suffix, in lexical path order.
	List(suffix string) ([]models.FileMetadata, error)
	// Open opens the file at path (relative to root) for streaming.
	Open(path string) (io.ReadCloser, error)
	// Root returns the absolute input root.
	Root() string
}
