package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
)

// nominatimResult is one entry of the Nominatim /search response.
type nominatimResult struct {
	Lat        string  `json:"lat"`
	Lon        string  `json:"lon"`
	Importance float64 `json:"importance"`
	Class      string  `json:"class"`
	Type       string  `json:"type"`
}

func (g *geocoder) geocodeNominatim(ctx context.Context, q Query) (*Result, error) {
	query := q.oneLine()
	if query == "" {
		return &Result{Matched: false, Source: "nominatim"}, nil
	}

	if err := g.nominatimLimiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim rate limit")
	}

	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("limit", "1")
	params.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.nominatimBase+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim read body")
	}

	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse response")
	}
	if len(results) == 0 {
		return &Result{Matched: false, Source: "nominatim"}, nil
	}

	top := results[0]
	lat, latErr := strconv.ParseFloat(top.Lat, 64)
	lon, lonErr := strconv.ParseFloat(top.Lon, 64)
	if latErr != nil || lonErr != nil {
		return nil, eris.Errorf("geocode: nominatim returned unparseable coordinates %q/%q", top.Lat, top.Lon)
	}

	return &Result{
		Latitude:   lat,
		Longitude:  lon,
		Confidence: nominatimConfidence(top),
		MatchScore: top.Importance,
		Source:     "nominatim",
		Matched:    true,
	}, nil
}

// nominatimConfidence grades a result by its OSM class: an addressable
// building or amenity is high confidence, a road is medium, anything
// coarser (boundary, place) is low.
func nominatimConfidence(r nominatimResult) Confidence {
	switch r.Class {
	case "building", "amenity", "shop", "tourism", "leisure":
		return ConfidenceHigh
	case "highway":
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
