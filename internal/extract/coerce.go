package extract

import (
	"strconv"
	"strings"

	"github.com/booth-beacon/beacon-crawler/internal/model"
)

// coerceCandidate validates one loosely-typed JSON object from the LLM
// into a CandidateRecord. Unknown fields are ignored, wrong-typed
// fields default, and objects without a usable name and city are
// dropped. Everything downstream then operates on a closed shape.
func coerceCandidate(obj map[string]any, sourceName, sourceURL string) (model.CandidateRecord, bool) {
	rec := model.CandidateRecord{
		Name:        asString(obj["name"]),
		Address:     asString(obj["address"]),
		City:        asString(obj["city"]),
		State:       asString(obj["state"]),
		Country:     asString(obj["country"]),
		Description: asString(obj["description"]),
		Status:      coerceStatus(asString(obj["status"])),
		BoothType:   coerceBoothType(asString(obj["booth_type"])),
		Latitude:    asFloat(obj["latitude"]),
		Longitude:   asFloat(obj["longitude"]),
		SourceName:  sourceName,
		SourceURL:   sourceURL,
	}

	if strings.TrimSpace(rec.Name) == "" || strings.TrimSpace(rec.City) == "" {
		return model.CandidateRecord{}, false
	}
	return rec, true
}

func coerceStatus(s string) model.BoothStatus {
	switch model.BoothStatus(strings.ToLower(strings.TrimSpace(s))) {
	case model.StatusActive:
		return model.StatusActive
	case model.StatusInactive:
		return model.StatusInactive
	default:
		return model.StatusUnknown
	}
}

func coerceBoothType(s string) model.BoothType {
	switch model.BoothType(strings.ToLower(strings.TrimSpace(s))) {
	case model.BoothTypeAnalog:
		return model.BoothTypeAnalog
	case model.BoothTypeDigital:
		return model.BoothTypeDigital
	case model.BoothTypeChemical:
		return model.BoothTypeChemical
	case model.BoothTypeInstant:
		return model.BoothTypeInstant
	default:
		return model.BoothTypeUnknown
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// asFloat accepts JSON numbers and numeric strings; anything else is
// treated as absent. Zero is kept; coordinate validity is the
// reconciliation engine's concern, not this boundary's.
func asFloat(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return &f
		}
	}
	return nil
}
