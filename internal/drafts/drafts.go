// Package drafts stores script drafts as YAML files in a local directory
// and watches that directory for changes.
package drafts

import (
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/starford/vssflow/internal/apperr"
	"github.com/starford/vssflow/internal/checksum"
	"github.com/starford/vssflow/internal/graph"
	"github.com/starford/vssflow/internal/models"
	"github.com/starford/vssflow/internal/parser"
	"github.com/starford/vssflow/internal/storage"
)

// Service exports and imports drafts.
type Service struct {
	fs     storage.Provider
	logger *slog.Logger
	now    func() time.Time
}

// New creates a drafts service on top of fs.
func New(fs storage.Provider, logger *slog.Logger) *Service {
	return &Service{fs: fs, logger: logger, now: time.Now}
}

// Root returns the drafts directory.
func (s *Service) Root() string {
	return s.fs.Root()
}

// NormalizePath cleans a draft path and appends ".yaml" when it has no
// draft extension.
func NormalizePath(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" {
		return "", fmt.Errorf("drafts: path is required: %w", apperr.ErrValidation)
	}
	p = path.Clean(p)
	if p == "." || strings.HasSuffix(p, "/") {
		return "", fmt.Errorf("drafts: invalid path %q: %w", p, apperr.ErrValidation)
	}
	if !storage.IsDraft(p) {
		p += ".yaml"
	}
	return p, nil
}

// List returns metadata for every draft.
func (s *Service) List() ([]models.DraftMetadata, error) {
	return s.fs.List("")
}

// Export writes g as a draft at p and returns its metadata.
func (s *Service) Export(p, name, scriptID string, g graph.Graph) (models.DraftMetadata, error) {
	p, err := NormalizePath(p)
	if err != nil {
		return models.DraftMetadata{}, err
	}
	if name == "" {
		name = strings.TrimSuffix(path.Base(p), path.Ext(p))
	}
	now := s.now()
	data, err := parser.Render(parser.NewDraft(name, scriptID, g, now))
	if err != nil {
		return models.DraftMetadata{}, err
	}
	if err := s.fs.Write(p, data); err != nil {
		return models.DraftMetadata{}, fmt.Errorf("drafts: export %s: %w", p, err)
	}
	s.logger.Info("draft exported", slog.String("path", p), slog.Int("nodes", len(g.Nodes)))
	return models.DraftMetadata{Path: p, Checksum: checksum.Sum(data), UpdatedAt: now}, nil
}

// Put stores an uploaded draft document at p after validating it.
func (s *Service) Put(p string, data []byte) (models.DraftMetadata, error) {
	p, err := NormalizePath(p)
	if err != nil {
		return models.DraftMetadata{}, err
	}
	if _, err := parser.Parse(data); err != nil {
		return models.DraftMetadata{}, fmt.Errorf("drafts: upload %s: %w", p, err)
	}
	if err := s.fs.Write(p, data); err != nil {
		return models.DraftMetadata{}, fmt.Errorf("drafts: upload %s: %w", p, err)
	}
	s.logger.Info("draft uploaded", slog.String("path", p), slog.Int("bytes", len(data)))
	return models.DraftMetadata{Path: p, Checksum: checksum.Sum(data), UpdatedAt: s.now()}, nil
}

// Import reads and validates the draft at p.
func (s *Service) Import(p string) (*parser.Draft, error) {
	p, err := NormalizePath(p)
	if err != nil {
		return nil, err
	}
	data, err := s.fs.Read(p)
	if err != nil {
		return nil, fmt.Errorf("drafts: import %s: %w", p, err)
	}
	d, err := parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("drafts: import %s: %w", p, err)
	}
	if d.Name == "" {
		d.Name = strings.TrimSuffix(path.Base(p), path.Ext(p))
	}
	return d, nil
}

// Delete removes the draft at p.
func (s *Service) Delete(p string) error {
	p, err := NormalizePath(p)
	if err != nil {
		return err
	}
	return s.fs.Delete(p)
}
