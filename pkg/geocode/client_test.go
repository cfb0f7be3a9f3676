package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nominatimServer(t *testing.T, body string, status int) (*httptest.Server, *http.Request) {
	t.Helper()
	var captured http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = *r
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &captured
}

func TestGeocodeNominatimHit(t *testing.T) {
	srv, captured := nominatimServer(t,
		`[{"lat": "52.5055", "lon": "13.4494", "importance": 0.62, "class": "amenity", "type": "bar"}]`,
		http.StatusOK)

	c := NewClient(
		WithNominatimBaseURL(srv.URL),
		WithUserAgent("test-agent/1.0"),
	)

	res, err := c.Geocode(context.Background(), Query{
		Name: "The Bar", Address: "Warschauer Str. 34", City: "Berlin", Country: "Germany",
	})
	require.NoError(t, err)

	assert.True(t, res.Matched)
	assert.Equal(t, 52.5055, res.Latitude)
	assert.Equal(t, 13.4494, res.Longitude)
	assert.Equal(t, ConfidenceHigh, res.Confidence)
	assert.Equal(t, "nominatim", res.Source)

	assert.Equal(t, "test-agent/1.0", captured.Header.Get("User-Agent"))
	assert.Equal(t, "jsonv2", captured.URL.Query().Get("format"))
	assert.Equal(t, "The Bar, Warschauer Str. 34, Berlin, Germany", captured.URL.Query().Get("q"))
}

func TestGeocodeNominatimMissNoGoogle(t *testing.T) {
	srv, _ := nominatimServer(t, `[]`, http.StatusOK)
	c := NewClient(WithNominatimBaseURL(srv.URL))

	res, err := c.Geocode(context.Background(), Query{Name: "Nowhere", City: "Atlantis"})
	require.NoError(t, err)
	assert.False(t, res.Matched)
}

func TestGeocodeUnknownCountryOmittedFromQuery(t *testing.T) {
	srv, captured := nominatimServer(t, `[]`, http.StatusOK)
	c := NewClient(WithNominatimBaseURL(srv.URL))

	_, err := c.Geocode(context.Background(), Query{Name: "Booth", City: "Berlin", Country: "Unknown"})
	require.NoError(t, err)
	assert.Equal(t, "Booth, Berlin", captured.URL.Query().Get("q"))
}

func TestGeocodeFallsBackToGoogle(t *testing.T) {
	nomSrv, _ := nominatimServer(t, `[]`, http.StatusOK)

	googleSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Write([]byte(`{"status": "OK", "results": [{
			"geometry": {"location": {"lat": 45.52, "lng": -122.68}, "location_type": "ROOFTOP"},
			"formatted_address": "1022 SW Harvey Milk St"
		}]}`))
	}))
	defer googleSrv.Close()

	c := NewClient(
		WithNominatimBaseURL(nomSrv.URL),
		WithGoogleBaseURL(googleSrv.URL),
		WithGoogleAPIKey("test-key"),
	)

	res, err := c.Geocode(context.Background(), Query{Name: "Ace Hotel", City: "Portland", Country: "USA"})
	require.NoError(t, err)

	assert.True(t, res.Matched)
	assert.Equal(t, "google", res.Source)
	assert.Equal(t, ConfidenceHigh, res.Confidence)
	assert.Equal(t, 1.0, res.MatchScore)
	assert.Equal(t, 45.52, res.Latitude)
}

func TestGeocodeNominatimErrorPropagatesWithoutGoogle(t *testing.T) {
	srv, _ := nominatimServer(t, `oops`, http.StatusServiceUnavailable)
	c := NewClient(WithNominatimBaseURL(srv.URL))

	_, err := c.Geocode(context.Background(), Query{Name: "Booth", City: "Berlin"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestNominatimConfidenceByClass(t *testing.T) {
	assert.Equal(t, ConfidenceHigh, nominatimConfidence(nominatimResult{Class: "building"}))
	assert.Equal(t, ConfidenceHigh, nominatimConfidence(nominatimResult{Class: "shop"}))
	assert.Equal(t, ConfidenceMedium, nominatimConfidence(nominatimResult{Class: "highway"}))
	assert.Equal(t, ConfidenceLow, nominatimConfidence(nominatimResult{Class: "boundary"}))
}

func TestGoogleConfidenceByLocationType(t *testing.T) {
	c, s := googleConfidence("ROOFTOP")
	assert.Equal(t, ConfidenceHigh, c)
	assert.Equal(t, 1.0, s)

	c, s = googleConfidence("GEOMETRIC_CENTER")
	assert.Equal(t, ConfidenceMedium, c)
	assert.Equal(t, 0.6, s)

	c, s = googleConfidence("APPROXIMATE")
	assert.Equal(t, ConfidenceLow, c)
	assert.Equal(t, 0.3, s)
}

func TestQueryOneLineEmpty(t *testing.T) {
	assert.Empty(t, Query{Country: "Unknown"}.oneLine())
}
