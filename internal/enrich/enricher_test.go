package enrich

import (
	"context"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/booth-beacon/beacon-crawler/internal/model"
	"github.com/booth-beacon/beacon-crawler/pkg/geocode"
)

// fakeGeoStore implements the store methods the enricher touches.
type fakeGeoStore struct {
	missing []model.StoredBooth
	listErr error

	mu     sync.Mutex
	coords map[string][2]float64
	geoSrc map[string]string
	setErr map[string]error
}

func newFakeGeoStore(missing ...model.StoredBooth) *fakeGeoStore {
	return &fakeGeoStore{
		missing: missing,
		coords:  make(map[string][2]float64),
		geoSrc:  make(map[string]string),
		setErr:  make(map[string]error),
	}
}

func (f *fakeGeoStore) ListBoothsMissingCoordinates(_ context.Context, limit int) ([]model.StoredBooth, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if limit > 0 && limit < len(f.missing) {
		return f.missing[:limit], nil
	}
	return f.missing, nil
}

func (f *fakeGeoStore) SetBoothCoordinates(_ context.Context, id string, lat, lon float64, source string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.setErr[id]; err != nil {
		return err
	}
	f.coords[id] = [2]float64{lat, lon}
	f.geoSrc[id] = source
	return nil
}

// Unused Store methods.
func (f *fakeGeoStore) GetBoothByKey(context.Context, string) (*model.StoredBooth, error) {
	return nil, nil
}
func (f *fakeGeoStore) InsertBooth(context.Context, *model.StoredBooth) error { return nil }
func (f *fakeGeoStore) UpdateBooth(context.Context, *model.StoredBooth) error { return nil }
func (f *fakeGeoStore) CountBooths(context.Context) (int, error)              { return 0, nil }
func (f *fakeGeoStore) RecordRunOutcome(context.Context, model.SourceRunOutcome) error {
	return nil
}
func (f *fakeGeoStore) PreviousRunOutcome(context.Context, string) (*model.SourceRunOutcome, error) {
	return nil, nil
}
func (f *fakeGeoStore) ListRunOutcomes(context.Context, string, int) ([]model.SourceRunOutcome, error) {
	return nil, nil
}
func (f *fakeGeoStore) Migrate(context.Context) error { return nil }
func (f *fakeGeoStore) Close() error                  { return nil }

// fakeGeocoder maps booth names to canned results.
type fakeGeocoder struct {
	results map[string]*geocode.Result
	errs    map[string]error
}

func (f *fakeGeocoder) Geocode(_ context.Context, q geocode.Query) (*geocode.Result, error) {
	if err := f.errs[q.Name]; err != nil {
		return nil, err
	}
	if r, ok := f.results[q.Name]; ok {
		return r, nil
	}
	return &geocode.Result{Matched: false}, nil
}

func booth(id, name string) model.StoredBooth {
	return model.StoredBooth{ID: id, Name: name, City: "Berlin", Country: "Germany"}
}

func TestRunWritesMatchedCoordinates(t *testing.T) {
	st := newFakeGeoStore(booth("b1", "The Bar"), booth("b2", "The Club"))
	gc := &fakeGeocoder{results: map[string]*geocode.Result{
		"The Bar": {Latitude: 52.5, Longitude: 13.4, Matched: true, Confidence: geocode.ConfidenceHigh, Source: "nominatim"},
		"The Club": {Latitude: 52.6, Longitude: 13.5, Matched: true, Confidence: geocode.ConfidenceMedium, Source: "google"},
	}}

	stats, err := New(st, gc).Run(context.Background(), 100)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Scanned)
	assert.Equal(t, 2, stats.Geocoded)
	assert.Equal(t, [2]float64{52.5, 13.4}, st.coords["b1"])
	assert.Equal(t, "nominatim", st.geoSrc["b1"])
	assert.Equal(t, "google", st.geoSrc["b2"])
}

func TestRunSkipsLowConfidenceAndUnmatched(t *testing.T) {
	st := newFakeGeoStore(booth("b1", "Vague"), booth("b2", "Missing"))
	gc := &fakeGeocoder{results: map[string]*geocode.Result{
		"Vague": {Latitude: 1, Longitude: 2, Matched: true, Confidence: geocode.ConfidenceLow},
	}}

	stats, err := New(st, gc).Run(context.Background(), 100)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.LowGrade)
	assert.Equal(t, 1, stats.Unmatched)
	assert.Zero(t, stats.Geocoded)
	assert.Empty(t, st.coords)
}

func TestRunPerBoothErrorsAreCounted(t *testing.T) {
	st := newFakeGeoStore(booth("b1", "Broken"), booth("b2", "Fine"))
	gc := &fakeGeocoder{
		results: map[string]*geocode.Result{
			"Fine": {Latitude: 1, Longitude: 2, Matched: true, Confidence: geocode.ConfidenceHigh, Source: "nominatim"},
		},
		errs: map[string]error{"Broken": eris.New("geocode timeout")},
	}

	stats, err := New(st, gc).Run(context.Background(), 100)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 1, stats.Geocoded)
	assert.Contains(t, st.coords, "b2")
}

func TestRunStoreWriteErrorCounted(t *testing.T) {
	st := newFakeGeoStore(booth("b1", "The Bar"))
	st.setErr["b1"] = eris.New("db locked")
	gc := &fakeGeocoder{results: map[string]*geocode.Result{
		"The Bar": {Latitude: 1, Longitude: 2, Matched: true, Confidence: geocode.ConfidenceHigh},
	}}

	stats, err := New(st, gc).Run(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Errors)
	assert.Zero(t, stats.Geocoded)
}

func TestRunListFailureIsFatal(t *testing.T) {
	st := newFakeGeoStore()
	st.listErr = eris.New("db down")

	_, err := New(st, &fakeGeocoder{}).Run(context.Background(), 100)
	require.Error(t, err)
}

func TestRunEmptyBacklog(t *testing.T) {
	stats, err := New(newFakeGeoStore(), &fakeGeocoder{}).Run(context.Background(), 100)
	require.NoError(t, err)
	assert.Zero(t, stats.Scanned)
}
