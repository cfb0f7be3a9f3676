package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/booth-beacon/beacon-crawler/internal/model"
)

// DryRun wraps a Store so reads hit the real store but every write is
// logged and discarded. The crawl pipeline runs end to end and reports
// the decisions it would have made.
func DryRun(inner Store) Store {
	return &dryRunStore{Store: inner}
}

type dryRunStore struct {
	Store
}

func (s *dryRunStore) InsertBooth(_ context.Context, b *model.StoredBooth) error {
	zap.L().Info("dry-run: would insert booth",
		zap.String("key", b.NormalizedKey),
		zap.String("name", b.Name),
		zap.String("city", b.City),
	)
	return nil
}

func (s *dryRunStore) UpdateBooth(_ context.Context, b *model.StoredBooth) error {
	zap.L().Info("dry-run: would update booth",
		zap.String("id", b.ID),
		zap.String("key", b.NormalizedKey),
	)
	return nil
}

func (s *dryRunStore) SetBoothCoordinates(_ context.Context, id string, lat, lon float64, source string) error {
	zap.L().Info("dry-run: would set coordinates",
		zap.String("id", id),
		zap.Float64("lat", lat),
		zap.Float64("lon", lon),
		zap.String("source", source),
	)
	return nil
}

func (s *dryRunStore) RecordRunOutcome(_ context.Context, o model.SourceRunOutcome) error {
	zap.L().Info("dry-run: would record run outcome",
		zap.String("source", o.SourceName),
		zap.Int("candidates", o.Candidates),
		zap.Int("inserted", o.Inserted),
		zap.Int("merged", o.Merged),
	)
	return nil
}
