// Package monitoring records source run outcomes and raises alerts on
// anomalous output volume. Alerting is best-effort: nothing here ever
// fails a crawl.
package monitoring

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/booth-beacon/beacon-crawler/internal/model"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	// AlertRunOverRunDrop fires when a source produced markedly fewer
	// candidates than its previous run, a likely sign of site breakage.
	AlertRunOverRunDrop AlertType = "run_over_run_drop"
	// AlertZeroResults fires when a previously-producing source
	// produced nothing at all.
	AlertZeroResults AlertType = "zero_results"
	// AlertSourceFailure fires when a source run failed outright.
	AlertSourceFailure AlertType = "source_failure"
)

// dropThreshold is the fraction of the previous run's volume below
// which a RunOverRunDrop alert fires.
const dropThreshold = 0.8

// Alert is a single anomaly notification payload.
type Alert struct {
	Type       AlertType      `json:"type"`
	SourceName string         `json:"source_name"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// RunLog is the slice of the store the sink reads and writes.
type RunLog interface {
	RecordRunOutcome(ctx context.Context, outcome model.SourceRunOutcome) error
	PreviousRunOutcome(ctx context.Context, sourceName string) (*model.SourceRunOutcome, error)
}

// Sink records run outcomes and raises anomaly alerts.
type Sink struct {
	log     RunLog
	alerter *Alerter
	now     func() time.Time
}

// NewSink creates a Sink. A nil alerter disables delivery but keeps
// anomaly evaluation (alerts are still logged).
func NewSink(log RunLog, alerter *Alerter) *Sink {
	return &Sink{
		log:     log,
		alerter: alerter,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Record evaluates the outcome against the source's previous run, then
// persists it and delivers any alerts. Alert delivery failures are
// logged and swallowed; a failure to persist the outcome is returned
// but the caller is expected to log-and-continue.
func (s *Sink) Record(ctx context.Context, outcome model.SourceRunOutcome) error {
	alerts := s.CheckForAnomaly(ctx, outcome)

	err := s.log.RecordRunOutcome(ctx, outcome)

	if len(alerts) > 0 {
		for _, a := range alerts {
			zap.L().Warn("monitoring: anomaly detected",
				zap.String("type", string(a.Type)),
				zap.String("source", a.SourceName),
				zap.String("message", a.Message),
			)
		}
		if s.alerter != nil {
			s.alerter.Send(ctx, alerts)
		}
	}

	return err
}

// CheckForAnomaly compares the outcome against the previous recorded
// run for the same source. It must be called before the outcome is
// persisted, otherwise the outcome compares against itself.
func (s *Sink) CheckForAnomaly(ctx context.Context, outcome model.SourceRunOutcome) []Alert {
	var alerts []Alert
	now := s.now()

	if outcome.Failed() {
		alerts = append(alerts, Alert{
			Type:       AlertSourceFailure,
			SourceName: outcome.SourceName,
			Message:    fmt.Sprintf("Source %s failed: %s", outcome.SourceName, outcome.Error),
			Details:    map[string]any{"error": outcome.Error},
			Timestamp:  now,
		})
	}

	prev, err := s.log.PreviousRunOutcome(ctx, outcome.SourceName)
	if err != nil {
		zap.L().Warn("monitoring: could not load previous run",
			zap.String("source", outcome.SourceName),
			zap.Error(err),
		)
		return alerts
	}
	if prev == nil || prev.Candidates == 0 {
		return alerts
	}

	switch {
	case outcome.Candidates == 0:
		alerts = append(alerts, Alert{
			Type:       AlertZeroResults,
			SourceName: outcome.SourceName,
			Message: fmt.Sprintf("Source %s produced 0 candidates (previous run: %d)",
				outcome.SourceName, prev.Candidates),
			Details:   map[string]any{"previous": prev.Candidates, "current": 0},
			Timestamp: now,
		})
	case float64(outcome.Candidates) < dropThreshold*float64(prev.Candidates):
		alerts = append(alerts, Alert{
			Type:       AlertRunOverRunDrop,
			SourceName: outcome.SourceName,
			Message: fmt.Sprintf("Source %s dropped from %d to %d candidates",
				outcome.SourceName, prev.Candidates, outcome.Candidates),
			Details:   map[string]any{"previous": prev.Candidates, "current": outcome.Candidates},
			Timestamp: now,
		})
	}

	return alerts
}
