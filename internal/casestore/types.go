// Package casestore persists named patient snapshots so a clinician can
// reload a profile and re-run projections later. It stores profile data only;
// therapy selections describe modelled scenarios and are never saved.
package casestore

import (
	"context"
	"io"
	"time"

	"github.com/prime-cvd-server/internal/domain"
)

// Store defines the interface for saved-case storage operations.
type Store interface {
	// Save stores or updates a case snapshot. A case with the same ID is
	// overwritten; its creation timestamp is preserved.
	Save(ctx context.Context, c *domain.Case) error

	// Get retrieves a case by ID. Returns (nil, nil) when no case exists.
	Get(ctx context.Context, id string) (*domain.Case, error)

	// List returns saved cases ordered most recent first, with pagination.
	List(ctx context.Context, limit, offset int) ([]*domain.Case, error)

	// Count returns the total number of saved cases.
	Count(ctx context.Context) (int64, error)

	// Delete removes a case by ID.
	Delete(ctx context.Context, id string) error

	// ExportJSON exports all cases to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON imports cases from a JSON reader.
	// Returns the number of imported and skipped entries.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// CaseExport represents the JSON export format.
type CaseExport struct {
	Version    string         `json:"version"`
	ExportedAt time.Time      `json:"exported_at"`
	Count      int            `json:"count"`
	Cases      []*domain.Case `json:"cases"`
}
