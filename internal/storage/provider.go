// Package storage defines the drafts file-system abstraction.
package storage

import (
	"path/filepath"
	"strings"

	"github.com/starford/vssflow/internal/models"
)

// Provider is the interface for draft file operations. Paths are relative
// to the drafts root.
type Provider interface {
	// List returns metadata for every draft file under dir.
	List(dir string) ([]models.DraftMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Root returns the absolute drafts directory.
	Root() string
}

// IsDraft reports whether name has a draft file extension.
func IsDraft(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
