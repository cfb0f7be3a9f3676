// Package model defines the shared types for the booth crawl pipeline.
package model

import "time"

// BoothStatus describes whether a booth is known to be operating.
type BoothStatus string

const (
	StatusActive   BoothStatus = "active"
	StatusInactive BoothStatus = "inactive"
	StatusUnknown  BoothStatus = "unknown"
)

// BoothType classifies the photographic process of a booth.
type BoothType string

const (
	BoothTypeAnalog   BoothType = "analog"
	BoothTypeDigital  BoothType = "digital"
	BoothTypeChemical BoothType = "chemical"
	BoothTypeInstant  BoothType = "instant"
	BoothTypeUnknown  BoothType = "unknown"
)

// CandidateRecord is one booth mention extracted from a single page,
// before normalization. Produced by a source adapter or the LLM
// fallback extractor and discarded after reconciliation.
type CandidateRecord struct {
	Name        string      `json:"name"`
	Address     string      `json:"address,omitempty"`
	City        string      `json:"city"`
	State       string      `json:"state,omitempty"`
	Country     string      `json:"country,omitempty"`
	Latitude    *float64    `json:"latitude,omitempty"`
	Longitude   *float64    `json:"longitude,omitempty"`
	Description string      `json:"description,omitempty"`
	Status      BoothStatus `json:"status,omitempty"`
	BoothType   BoothType   `json:"booth_type,omitempty"`
	SourceName  string      `json:"source_name"`
	SourceURL   string      `json:"source_url"`
}

// NormalizedRecord is a CandidateRecord after field canonicalization,
// carrying its deterministic comparison key. SourceNames and SourceURLs
// start as singletons and grow during intra-batch merging.
type NormalizedRecord struct {
	Name        string
	Address     string
	City        string
	State       string
	Country     string
	Latitude    *float64
	Longitude   *float64
	Description string
	Status      BoothStatus
	BoothType   BoothType
	SourceNames []string
	SourceURLs  []string

	// Key is the case/punctuation-folded (name, city, country) tuple
	// used to match this record against stored booths.
	Key string
}

// StoredBooth is the persisted canonical entity, one per distinct
// real-world venue (approximately, via normalized-key equality).
type StoredBooth struct {
	ID            string      `json:"id"`
	NormalizedKey string      `json:"normalized_key"`
	Name          string      `json:"name"`
	Address       string      `json:"address,omitempty"`
	City          string      `json:"city"`
	State         string      `json:"state,omitempty"`
	Country       string      `json:"country"`
	Latitude      *float64    `json:"latitude,omitempty"`
	Longitude     *float64    `json:"longitude,omitempty"`
	GeoSource     string      `json:"geo_source,omitempty"`
	Description   string      `json:"description,omitempty"`
	Status        BoothStatus `json:"status"`
	BoothType     BoothType   `json:"booth_type"`

	// SourceNames and SourceURLs are the append-only provenance trail.
	// Reconciliation only ever unions into them.
	SourceNames []string `json:"source_names"`
	SourceURLs  []string `json:"source_urls"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasCoordinates reports whether both latitude and longitude are set.
func (b *StoredBooth) HasCoordinates() bool {
	return b.Latitude != nil && b.Longitude != nil
}

// SourceRunOutcome records one orchestrator pass over one source.
type SourceRunOutcome struct {
	ID         string        `json:"id"`
	SourceName string        `json:"source_name"`
	Candidates int           `json:"candidates"`
	Inserted   int           `json:"inserted"`
	Merged     int           `json:"merged"`
	Skipped    int           `json:"skipped"`
	Rejected   int           `json:"rejected"`
	Duration   time.Duration `json:"duration_ms"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
}

// Failed reports whether the source run failed outright (as opposed to
// completing with some skipped or rejected records).
func (o *SourceRunOutcome) Failed() bool {
	return o.Error != ""
}
