package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// googleGeocodeResponse is the JSON response from the Google Geocoding API.
type googleGeocodeResponse struct {
	Results []googleResult `json:"results"`
	Status  string         `json:"status"`
}

type googleResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		LocationType string `json:"location_type"`
	} `json:"geometry"`
	FormattedAddress string `json:"formatted_address"`
}

func (g *geocoder) geocodeGoogle(ctx context.Context, q Query) (*Result, error) {
	if g.googleKey == "" {
		return nil, eris.New("geocode: google api key not configured")
	}

	if err := g.googleLimiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: google rate limit")
	}

	params := url.Values{
		"address": {q.oneLine()},
		"key":     {g.googleKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.googleBase+"/json?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google build request")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: google returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google read body")
	}

	var googleResp googleGeocodeResponse
	if err := json.Unmarshal(body, &googleResp); err != nil {
		return nil, eris.Wrap(err, "geocode: google parse response")
	}

	if googleResp.Status != "OK" || len(googleResp.Results) == 0 {
		return &Result{Matched: false, Source: "google"}, nil
	}

	top := googleResp.Results[0]
	confidence, score := googleConfidence(top.Geometry.LocationType)
	return &Result{
		Latitude:   top.Geometry.Location.Lat,
		Longitude:  top.Geometry.Location.Lng,
		Confidence: confidence,
		MatchScore: score,
		Source:     "google",
		Matched:    true,
	}, nil
}

// googleConfidence maps Google's location_type onto our confidence
// grades.
func googleConfidence(locType string) (Confidence, float64) {
	switch strings.ToUpper(locType) {
	case "ROOFTOP":
		return ConfidenceHigh, 1.0
	case "RANGE_INTERPOLATED":
		return ConfidenceHigh, 0.8
	case "GEOMETRIC_CENTER":
		return ConfidenceMedium, 0.6
	default:
		return ConfidenceLow, 0.3
	}
}
