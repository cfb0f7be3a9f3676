// Package enrich backfills coordinates for stored booths that have
// none, using the geocoding client. It never touches booths that
// already carry coordinates.
package enrich

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/booth-beacon/beacon-crawler/internal/model"
	"github.com/booth-beacon/beacon-crawler/internal/store"
	"github.com/booth-beacon/beacon-crawler/pkg/geocode"
)

// Stats summarizes one enrichment pass.
type Stats struct {
	Scanned   int
	Geocoded  int
	Unmatched int
	LowGrade  int
	Errors    int
}

// Enricher geocodes booths missing coordinates.
type Enricher struct {
	store       store.Store
	geocoder    geocode.Client
	concurrency int
}

// Option customizes an Enricher.
type Option func(*Enricher)

// WithConcurrency bounds the number of in-flight geocode requests.
// The geocode client's own rate limiters still apply underneath.
func WithConcurrency(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// New creates an Enricher.
func New(st store.Store, gc geocode.Client, opts ...Option) *Enricher {
	e := &Enricher{
		store:       st,
		geocoder:    gc,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run geocodes up to limit booths that are missing coordinates.
// Coordinates are written only for matched results of at least medium
// confidence; low-confidence and unmatched results leave the booth
// untouched for a later pass. Per-booth errors are counted, not fatal.
func (e *Enricher) Run(ctx context.Context, limit int) (Stats, error) {
	var stats Stats

	booths, err := e.store.ListBoothsMissingCoordinates(ctx, limit)
	if err != nil {
		return stats, eris.Wrap(err, "enrich: list booths missing coordinates")
	}
	stats.Scanned = len(booths)
	if len(booths) == 0 {
		return stats, nil
	}

	results := make([]geocodeResult, len(booths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i := range booths {
		g.Go(func() error {
			res, err := e.geocoder.Geocode(gctx, queryFor(&booths[i]))
			results[i] = geocodeResult{result: res, err: err}
			// Geocode failures are per-booth, not per-pass.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, eris.Wrap(err, "enrich: geocode booths")
	}

	// Writes happen sequentially after the fan-out so SQLite stores
	// see no concurrent writers.
	for i := range booths {
		b := &booths[i]
		r := results[i]
		switch {
		case r.err != nil:
			stats.Errors++
			zap.L().Warn("enrich: geocode failed",
				zap.String("booth_id", b.ID),
				zap.String("name", b.Name),
				zap.Error(r.err),
			)
		case r.result == nil || !r.result.Matched:
			stats.Unmatched++
		case r.result.Confidence == geocode.ConfidenceLow:
			stats.LowGrade++
			zap.L().Debug("enrich: low-confidence result skipped",
				zap.String("booth_id", b.ID),
				zap.String("name", b.Name),
			)
		default:
			err := e.store.SetBoothCoordinates(ctx, b.ID,
				r.result.Latitude, r.result.Longitude, r.result.Source)
			if err != nil {
				stats.Errors++
				zap.L().Warn("enrich: store coordinates failed",
					zap.String("booth_id", b.ID),
					zap.Error(err),
				)
				continue
			}
			stats.Geocoded++
		}
	}

	zap.L().Info("enrich: pass complete",
		zap.Int("scanned", stats.Scanned),
		zap.Int("geocoded", stats.Geocoded),
		zap.Int("unmatched", stats.Unmatched),
		zap.Int("low_grade", stats.LowGrade),
		zap.Int("errors", stats.Errors),
	)
	return stats, nil
}

type geocodeResult struct {
	result *geocode.Result
	err    error
}

func queryFor(b *model.StoredBooth) geocode.Query {
	return geocode.Query{
		Name:    b.Name,
		Address: b.Address,
		City:    b.City,
		State:   b.State,
		Country: b.Country,
	}
}
