// Package reconcile decides whether extracted booth candidates are new
// venues or updates to known ones, and computes the merged field set.
package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/booth-beacon/beacon-crawler/internal/model"
)

// BoothStore is the slice of persistence the engine needs. A missing
// booth is reported as (nil, nil), not an error.
type BoothStore interface {
	GetBoothByKey(ctx context.Context, key string) (*model.StoredBooth, error)
	InsertBooth(ctx context.Context, booth *model.StoredBooth) error
	UpdateBooth(ctx context.Context, booth *model.StoredBooth) error
}

// OutcomeKind is the reconciliation decision for one input record.
type OutcomeKind string

const (
	OutcomeInserted OutcomeKind = "inserted"
	OutcomeMerged   OutcomeKind = "merged"
	OutcomeSkipped  OutcomeKind = "skipped"
)

// ReasonStoreError marks a group skipped because a store lookup or
// write failed. The failure is isolated to that group.
const ReasonStoreError = "store_error"

// Outcome reports the decision for one input record. Records that fold
// into the same batch group share the group's decision and booth ID.
type Outcome struct {
	Key    string
	Kind   OutcomeKind
	ID     string
	Reason string
}

// Result is the full report for one reconciled batch.
type Result struct {
	Outcomes []Outcome
	Inserted int
	Merged   int
	Skipped  int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDFunc overrides booth ID generation, for tests.
func WithIDFunc(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// Engine reconciles normalized candidate batches against the store.
type Engine struct {
	store BoothStore
	now   func() time.Time
	newID func() string
}

// NewEngine creates an Engine over the given store.
func NewEngine(store BoothStore, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reconcile deduplicates the batch by normalized key, then inserts or
// merges each group representative. The result carries one outcome per
// input record; folded records repeat their group's decision. A store
// failure for one group is reported as Skipped(store_error) and the
// rest of the batch proceeds. Applying the same batch twice produces
// no further scalar changes.
func (e *Engine) Reconcile(ctx context.Context, batch []model.NormalizedRecord) *Result {
	result := &Result{}

	for _, rep := range dedupeBatch(batch) {
		outcome := e.reconcileOne(ctx, rep)
		for i := 0; i < rep.size; i++ {
			result.Outcomes = append(result.Outcomes, outcome)
			switch outcome.Kind {
			case OutcomeInserted:
				result.Inserted++
			case OutcomeMerged:
				result.Merged++
			case OutcomeSkipped:
				result.Skipped++
			}
		}
	}

	return result
}

func (e *Engine) reconcileOne(ctx context.Context, rep group) Outcome {
	existing, err := e.store.GetBoothByKey(ctx, rep.record.Key)
	if err != nil {
		zap.L().Warn("reconcile: store lookup failed",
			zap.String("key", rep.record.Key),
			zap.Error(err),
		)
		return Outcome{Key: rep.record.Key, Kind: OutcomeSkipped, Reason: ReasonStoreError}
	}

	if existing == nil {
		booth := e.newBooth(rep.record)
		if err := e.store.InsertBooth(ctx, booth); err != nil {
			zap.L().Warn("reconcile: insert failed",
				zap.String("key", rep.record.Key),
				zap.Error(err),
			)
			return Outcome{Key: rep.record.Key, Kind: OutcomeSkipped, Reason: ReasonStoreError}
		}
		return Outcome{Key: rep.record.Key, Kind: OutcomeInserted, ID: booth.ID}
	}

	mergeInto(existing, rep.record)
	existing.UpdatedAt = e.now()
	if err := e.store.UpdateBooth(ctx, existing); err != nil {
		zap.L().Warn("reconcile: update failed",
			zap.String("key", rep.record.Key),
			zap.String("id", existing.ID),
			zap.Error(err),
		)
		return Outcome{Key: rep.record.Key, Kind: OutcomeSkipped, Reason: ReasonStoreError}
	}
	return Outcome{Key: rep.record.Key, Kind: OutcomeMerged, ID: existing.ID}
}

func (e *Engine) newBooth(rec model.NormalizedRecord) *model.StoredBooth {
	now := e.now()
	return &model.StoredBooth{
		ID:            e.newID(),
		NormalizedKey: rec.Key,
		Name:          rec.Name,
		Address:       rec.Address,
		City:          rec.City,
		State:         rec.State,
		Country:       rec.Country,
		Latitude:      rec.Latitude,
		Longitude:     rec.Longitude,
		Description:   rec.Description,
		Status:        rec.Status,
		BoothType:     rec.BoothType,
		SourceNames:   append([]string(nil), rec.SourceNames...),
		SourceURLs:    append([]string(nil), rec.SourceURLs...),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
