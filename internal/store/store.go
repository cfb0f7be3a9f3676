// Package store persists canonical booths and source run history.
package store

import (
	"context"

	"github.com/booth-beacon/beacon-crawler/internal/model"
)

// Store defines the persistence interface for the crawl pipeline.
// Booth lookups report absence as (nil, nil), not an error.
type Store interface {
	// Booths
	GetBoothByKey(ctx context.Context, key string) (*model.StoredBooth, error)
	InsertBooth(ctx context.Context, booth *model.StoredBooth) error
	UpdateBooth(ctx context.Context, booth *model.StoredBooth) error
	ListBoothsMissingCoordinates(ctx context.Context, limit int) ([]model.StoredBooth, error)
	SetBoothCoordinates(ctx context.Context, id string, lat, lon float64, source string) error
	CountBooths(ctx context.Context) (int, error)

	// Run history
	RecordRunOutcome(ctx context.Context, outcome model.SourceRunOutcome) error
	PreviousRunOutcome(ctx context.Context, sourceName string) (*model.SourceRunOutcome, error)
	ListRunOutcomes(ctx context.Context, sourceName string, limit int) ([]model.SourceRunOutcome, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
