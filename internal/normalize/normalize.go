// Package normalize canonicalizes candidate records before reconciliation.
package normalize

import (
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/booth-beacon/beacon-crawler/internal/model"
)

// Rejection reasons returned by Normalize. Rejection is a counted,
// expected outcome, not a pipeline error.
var (
	ErrEmptyName = eris.New("normalize: name is empty after trimming")
	ErrEmptyCity = eris.New("normalize: city is empty after trimming")
)

// Rules holds the immutable lookup data the normalizer runs on. It is
// injected at construction so tests never share mutable package state.
type Rules struct {
	// CityCountries maps lower-cased city names to a country for
	// records that arrive without one.
	CityCountries map[string]string

	// AnalogKeywords and DigitalKeywords drive booth-type inference
	// from name/description text. First match wins, analog checked
	// before digital.
	AnalogKeywords  []string
	DigitalKeywords []string
}

// DefaultRules returns the built-in lookup tables covering the cities
// and vocabulary common across the configured source set.
func DefaultRules() Rules {
	return Rules{
		CityCountries: map[string]string{
			"new york":      "USA",
			"brooklyn":      "USA",
			"los angeles":   "USA",
			"san francisco": "USA",
			"chicago":       "USA",
			"portland":      "USA",
			"austin":        "USA",
			"seattle":       "USA",
			"london":        "UK",
			"manchester":    "UK",
			"berlin":        "Germany",
			"hamburg":       "Germany",
			"munich":        "Germany",
			"leipzig":       "Germany",
			"paris":         "France",
			"lyon":          "France",
			"marseille":     "France",
			"vienna":        "Austria",
			"amsterdam":     "Netherlands",
			"rotterdam":     "Netherlands",
			"prague":        "Czech Republic",
			"stockholm":     "Sweden",
			"gothenburg":    "Sweden",
			"copenhagen":    "Denmark",
			"zurich":        "Switzerland",
			"barcelona":     "Spain",
			"madrid":        "Spain",
			"milan":         "Italy",
			"rome":          "Italy",
			"tokyo":         "Japan",
			"osaka":         "Japan",
			"melbourne":     "Australia",
			"sydney":        "Australia",
			"toronto":       "Canada",
			"montreal":      "Canada",
			"vancouver":     "Canada",
		},
		AnalogKeywords: []string{
			"analog", "analogue", "chemical", "black and white", "b&w",
			"photochemical", "dip and dunk", "vintage", "model 11",
			"model 14", "model 17", "photomaton", "auto-photo",
		},
		DigitalKeywords: []string{
			"digital", "touchscreen", "touch screen", "instant print",
			"selfie", "green screen",
		},
	}
}

// Normalizer canonicalizes candidate records. Pure string processing,
// no I/O.
type Normalizer struct {
	rules Rules
	caser cases.Caser
}

// New creates a Normalizer with the given rules.
func New(rules Rules) *Normalizer {
	return &Normalizer{
		rules: rules,
		caser: cases.Title(language.Und),
	}
}

// Normalize canonicalizes a candidate record, computing its comparison
// key. It returns ErrEmptyName or ErrEmptyCity when the record cannot
// identify a venue; both are rejections, not failures.
func (n *Normalizer) Normalize(c model.CandidateRecord) (model.NormalizedRecord, error) {
	name := n.canonicalName(collapseSpace(c.Name))
	city := collapseSpace(c.City)

	if name == "" {
		return model.NormalizedRecord{}, ErrEmptyName
	}
	if city == "" {
		return model.NormalizedRecord{}, ErrEmptyCity
	}

	country := collapseSpace(c.Country)
	if country == "" {
		country = n.inferCountry(city)
	}

	status := c.Status
	if status == "" {
		status = model.StatusUnknown
	}

	boothType := c.BoothType
	if boothType == "" || boothType == model.BoothTypeUnknown {
		boothType = n.inferBoothType(name, c.Description)
	}

	rec := model.NormalizedRecord{
		Name:        name,
		Address:     collapseSpace(c.Address),
		City:        city,
		State:       collapseSpace(c.State),
		Country:     country,
		Latitude:    c.Latitude,
		Longitude:   c.Longitude,
		Description: collapseSpace(c.Description),
		Status:      status,
		BoothType:   boothType,
		Key:         Key(name, city, country),
	}
	if s := strings.TrimSpace(c.SourceName); s != "" {
		rec.SourceNames = []string{s}
	}
	if u := strings.TrimSpace(c.SourceURL); u != "" {
		rec.SourceURLs = []string{u}
	}
	return rec, nil
}

// inferCountry looks the city up in the static table, falling back to
// the "Unknown" sentinel so downstream grouping never sees an empty
// country.
func (n *Normalizer) inferCountry(city string) string {
	if country, ok := n.rules.CityCountries[strings.ToLower(city)]; ok {
		return country
	}
	return "Unknown"
}

// inferBoothType scans name and description for the keyword sets.
// When neither matches, the type defaults to analog rather than
// unknown: the directory's primary subject is the analog booth, and an
// unqualified listing on these sources is overwhelmingly one.
func (n *Normalizer) inferBoothType(name, description string) model.BoothType {
	text := strings.ToLower(name + " " + description)
	for _, kw := range n.rules.AnalogKeywords {
		if strings.Contains(text, kw) {
			return model.BoothTypeAnalog
		}
	}
	for _, kw := range n.rules.DigitalKeywords {
		if strings.Contains(text, kw) {
			return model.BoothTypeDigital
		}
	}
	return model.BoothTypeAnalog
}

// canonicalName fixes shouting or all-lowercase names into title case.
// Mixed-case names are assumed intentional and left alone.
func (n *Normalizer) canonicalName(name string) string {
	if name == "" {
		return ""
	}
	if name == strings.ToUpper(name) || name == strings.ToLower(name) {
		return n.caser.String(strings.ToLower(name))
	}
	return name
}

// Key folds (name, city, country) into the deterministic comparison
// key: lower-cased, punctuation stripped, whitespace collapsed. No
// accent folding is performed, so "Café" and "Cafe" produce distinct
// keys.
func Key(name, city, country string) string {
	return fold(name) + "|" + fold(city) + "|" + fold(country)
}

func fold(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
		// Punctuation and symbols are dropped entirely.
	}
	return collapseSpace(b.String())
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
