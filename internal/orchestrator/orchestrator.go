// Package orchestrator runs the crawl pipeline: for each configured
// source it fetches pages, parses or extracts candidates, normalizes
// them, reconciles the batch against the store, and reports the run to
// the monitoring sink. Sources are processed sequentially and fail
// independently.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/booth-beacon/beacon-crawler/internal/adapters"
	"github.com/booth-beacon/beacon-crawler/internal/fetch"
	"github.com/booth-beacon/beacon-crawler/internal/model"
	"github.com/booth-beacon/beacon-crawler/internal/monitoring"
	"github.com/booth-beacon/beacon-crawler/internal/normalize"
	"github.com/booth-beacon/beacon-crawler/internal/reconcile"
)

// CandidateExtractor is the LLM fallback for sources without a
// registered adapter.
type CandidateExtractor interface {
	Extract(ctx context.Context, markdown, sourceName, sourceURL string) ([]model.CandidateRecord, error)
}

// Orchestrator drives one crawl run across the configured sources.
type Orchestrator struct {
	fetcher    fetch.Fetcher
	registry   *adapters.Registry
	extractor  CandidateExtractor
	normalizer *normalize.Normalizer
	engine     *reconcile.Engine
	sink       *monitoring.Sink

	sourcePause time.Duration
	now         func() time.Time
	newID       func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSourcePause sets the idle gap between consecutive sources.
func WithSourcePause(d time.Duration) Option {
	return func(o *Orchestrator) { o.sourcePause = d }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New assembles an Orchestrator. The extractor may be nil, in which
// case sources without a registered adapter are skipped with an error.
func New(
	fetcher fetch.Fetcher,
	registry *adapters.Registry,
	extractor CandidateExtractor,
	normalizer *normalize.Normalizer,
	engine *reconcile.Engine,
	sink *monitoring.Sink,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		fetcher:     fetcher,
		registry:    registry,
		extractor:   extractor,
		normalizer:  normalizer,
		engine:      engine,
		sink:        sink,
		sourcePause: 2 * time.Second,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunSummary aggregates the per-source outcomes of one crawl run.
type RunSummary struct {
	Outcomes []model.SourceRunOutcome
}

// Failures counts sources that failed outright.
func (s *RunSummary) Failures() int {
	n := 0
	for i := range s.Outcomes {
		if s.Outcomes[i].Failed() {
			n++
		}
	}
	return n
}

// Run crawls every enabled source in order. A source failure is
// recorded and reported but never stops the run; only context
// cancellation does.
func (o *Orchestrator) Run(ctx context.Context, sources []model.Source) (*RunSummary, error) {
	summary := &RunSummary{}

	for i, src := range sources {
		if src.Disabled {
			zap.L().Info("orchestrator: source disabled, skipping",
				zap.String("source", src.Name),
			)
			continue
		}
		if i > 0 && o.sourcePause > 0 {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-time.After(o.sourcePause):
			}
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		outcome := o.runSource(ctx, src)
		summary.Outcomes = append(summary.Outcomes, outcome)

		if err := o.sink.Record(ctx, outcome); err != nil {
			zap.L().Error("orchestrator: record run outcome",
				zap.String("source", src.Name),
				zap.Error(err),
			)
		}
	}

	return summary, nil
}

// runSource executes the full pipeline for one source and always
// returns an outcome, failed or not.
func (o *Orchestrator) runSource(ctx context.Context, src model.Source) model.SourceRunOutcome {
	started := o.now()
	outcome := model.SourceRunOutcome{
		ID:         o.newID(),
		SourceName: src.Name,
		StartedAt:  started,
	}
	fail := func(err error) model.SourceRunOutcome {
		outcome.Error = err.Error()
		outcome.Duration = o.now().Sub(started)
		zap.L().Error("orchestrator: source run failed",
			zap.String("source", src.Name),
			zap.Error(err),
		)
		return outcome
	}

	zap.L().Info("orchestrator: crawling source",
		zap.String("source", src.Name),
		zap.String("mode", string(src.Mode)),
		zap.String("url", src.URL),
	)

	pages, err := o.fetcher.Fetch(ctx, src)
	if err != nil {
		return fail(err)
	}

	candidates, err := o.collectCandidates(ctx, src, pages)
	if err != nil {
		return fail(err)
	}
	outcome.Candidates = len(candidates)

	batch := make([]model.NormalizedRecord, 0, len(candidates))
	for _, c := range candidates {
		rec, err := o.normalizer.Normalize(c)
		if err != nil {
			outcome.Rejected++
			zap.L().Debug("orchestrator: candidate rejected",
				zap.String("source", src.Name),
				zap.String("name", c.Name),
				zap.Error(err),
			)
			continue
		}
		batch = append(batch, rec)
	}

	result := o.engine.Reconcile(ctx, batch)
	outcome.Inserted = result.Inserted
	outcome.Merged = result.Merged
	outcome.Skipped = result.Skipped
	outcome.Duration = o.now().Sub(started)

	zap.L().Info("orchestrator: source complete",
		zap.String("source", src.Name),
		zap.Int("pages", len(pages)),
		zap.Int("candidates", outcome.Candidates),
		zap.Int("inserted", outcome.Inserted),
		zap.Int("merged", outcome.Merged),
		zap.Int("skipped", outcome.Skipped),
		zap.Int("rejected", outcome.Rejected),
		zap.Duration("duration", outcome.Duration),
	)
	return outcome
}

// collectCandidates parses every fetched page, preferring the site
// adapter and falling back to the LLM extractor for unknown hosts and
// for pages the adapter parses to nothing.
func (o *Orchestrator) collectCandidates(ctx context.Context, src model.Source, pages []fetch.Page) ([]model.CandidateRecord, error) {
	adapter, hasAdapter := o.registry.Get(src.URL)
	if !hasAdapter && o.extractor == nil {
		return nil, errNoParser(src)
	}

	var candidates []model.CandidateRecord
	for _, page := range pages {
		if page.Markdown == "" {
			continue
		}
		if hasAdapter {
			parsed := adapter.Parse(page.Markdown, page.URL)
			if len(parsed) > 0 {
				candidates = append(candidates, parsed...)
				continue
			}
			// A layout change can defeat the adapter without erroring.
			if o.extractor == nil {
				zap.L().Warn("orchestrator: adapter found no records",
					zap.String("source", src.Name),
					zap.String("url", page.URL),
				)
				continue
			}
			zap.L().Info("orchestrator: adapter found no records, trying extractor",
				zap.String("source", src.Name),
				zap.String("url", page.URL),
			)
		}
		extracted, err := o.extractor.Extract(ctx, page.Markdown, src.Name, page.URL)
		if err != nil {
			// One unreadable page does not sink the whole source.
			zap.L().Warn("orchestrator: extraction failed for page",
				zap.String("source", src.Name),
				zap.String("url", page.URL),
				zap.Error(err),
			)
			continue
		}
		candidates = append(candidates, extracted...)
	}
	return candidates, nil
}
