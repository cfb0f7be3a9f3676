package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/booth-beacon/beacon-crawler/internal/model"
)

type fakeRunLog struct {
	previous  *model.SourceRunOutcome
	prevErr   error
	recorded  []model.SourceRunOutcome
	recordErr error
}

func (f *fakeRunLog) RecordRunOutcome(_ context.Context, o model.SourceRunOutcome) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	f.recorded = append(f.recorded, o)
	return nil
}

func (f *fakeRunLog) PreviousRunOutcome(_ context.Context, _ string) (*model.SourceRunOutcome, error) {
	return f.previous, f.prevErr
}

func outcome(candidates int) model.SourceRunOutcome {
	return model.SourceRunOutcome{
		ID:         "run-1",
		SourceName: "photobooth-net",
		Candidates: candidates,
		StartedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCheckForAnomalyNoPreviousRun(t *testing.T) {
	sink := NewSink(&fakeRunLog{}, nil)

	alerts := sink.CheckForAnomaly(context.Background(), outcome(0))
	assert.Empty(t, alerts)
}

func TestCheckForAnomalyRunOverRunDrop(t *testing.T) {
	prev := outcome(100)
	sink := NewSink(&fakeRunLog{previous: &prev}, nil)

	// 79 < 80% of 100: alert.
	alerts := sink.CheckForAnomaly(context.Background(), outcome(79))
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertRunOverRunDrop, alerts[0].Type)
	assert.Equal(t, "photobooth-net", alerts[0].SourceName)

	// 80 is exactly the threshold: no alert.
	alerts = sink.CheckForAnomaly(context.Background(), outcome(80))
	assert.Empty(t, alerts)

	// Growth never alerts.
	alerts = sink.CheckForAnomaly(context.Background(), outcome(120))
	assert.Empty(t, alerts)
}

func TestCheckForAnomalyZeroResults(t *testing.T) {
	prev := outcome(40)
	sink := NewSink(&fakeRunLog{previous: &prev}, nil)

	alerts := sink.CheckForAnomaly(context.Background(), outcome(0))
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertZeroResults, alerts[0].Type)
}

func TestCheckForAnomalyZeroPreviousNeverAlerts(t *testing.T) {
	prev := outcome(0)
	sink := NewSink(&fakeRunLog{previous: &prev}, nil)

	alerts := sink.CheckForAnomaly(context.Background(), outcome(0))
	assert.Empty(t, alerts)
}

func TestCheckForAnomalySourceFailure(t *testing.T) {
	sink := NewSink(&fakeRunLog{}, nil)

	failed := outcome(0)
	failed.Error = "fetch: scrape timed out"
	alerts := sink.CheckForAnomaly(context.Background(), failed)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertSourceFailure, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "timed out")
}

func TestCheckForAnomalyPreviousLookupErrorSwallowed(t *testing.T) {
	sink := NewSink(&fakeRunLog{prevErr: eris.New("db down")}, nil)

	alerts := sink.CheckForAnomaly(context.Background(), outcome(40))
	assert.Empty(t, alerts)
}

func TestRecordPersistsAndDelivers(t *testing.T) {
	var payload webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	prev := outcome(100)
	log := &fakeRunLog{previous: &prev}
	sink := NewSink(log, NewAlerter(srv.URL, WithSynchronousDelivery()))

	require.NoError(t, sink.Record(context.Background(), outcome(10)))

	require.Len(t, log.recorded, 1)
	assert.Equal(t, 10, log.recorded[0].Candidates)
	require.Len(t, payload.Attachments, 1)
	assert.Contains(t, payload.Attachments[0].Title, "run_over_run_drop")
}

func TestRecordComparesAgainstPreviousNotSelf(t *testing.T) {
	// The anomaly check must read the previous run before the current
	// outcome is persisted.
	prev := outcome(100)
	log := &fakeRunLog{previous: &prev}
	sink := NewSink(log, nil)

	alerts := sink.CheckForAnomaly(context.Background(), outcome(10))
	require.NoError(t, sink.Record(context.Background(), outcome(10)))
	assert.Len(t, alerts, 1)
	assert.Len(t, log.recorded, 1)
}

func TestRecordReturnsPersistError(t *testing.T) {
	log := &fakeRunLog{recordErr: eris.New("insert failed")}
	sink := NewSink(log, nil)

	err := sink.Record(context.Background(), outcome(40))
	assert.Error(t, err)
}

func TestAlerterDeliveryFailureIsSilent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := NewAlerter(srv.URL, WithSynchronousDelivery())
	// Must not panic or block; errors are logged only.
	a.Send(context.Background(), []Alert{{Type: AlertZeroResults, SourceName: "x", Message: "m", Timestamp: time.Now()}})
}

func TestAlerterNoURLNoDelivery(t *testing.T) {
	a := NewAlerter("", WithSynchronousDelivery())
	a.Send(context.Background(), []Alert{{Type: AlertZeroResults}})
}

func TestAlerterWaitDrainsAsyncDelivery(t *testing.T) {
	var delivered atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		delivered.Add(1)
	}))
	defer srv.Close()

	a := NewAlerter(srv.URL)
	a.Send(context.Background(), []Alert{{Type: AlertZeroResults, SourceName: "x", Message: "m", Timestamp: time.Now()}})
	a.Send(context.Background(), []Alert{{Type: AlertSourceFailure, SourceName: "y", Message: "m", Timestamp: time.Now()}})

	a.Wait()
	assert.Equal(t, int32(2), delivered.Load())
}

func TestAlerterWaitSurvivesCancelledContext(t *testing.T) {
	var delivered atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered.Add(1)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	a := NewAlerter(srv.URL)
	a.Send(ctx, []Alert{{Type: AlertZeroResults, SourceName: "x", Message: "m", Timestamp: time.Now()}})
	cancel()

	a.Wait()
	assert.Equal(t, int32(1), delivered.Load())
}
