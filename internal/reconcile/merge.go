package reconcile

import "github.com/booth-beacon/beacon-crawler/internal/model"

// group is one intra-batch dedupe group folded into a representative.
type group struct {
	record model.NormalizedRecord
	size   int
}

// dedupeBatch folds records sharing a normalized key into one
// representative per key before the store is consulted. Groups come
// out in first-seen key order, so output is deterministic for a fixed
// input order.
func dedupeBatch(batch []model.NormalizedRecord) []group {
	var order []string
	grouped := make(map[string][]model.NormalizedRecord)
	for _, rec := range batch {
		if _, seen := grouped[rec.Key]; !seen {
			order = append(order, rec.Key)
		}
		grouped[rec.Key] = append(grouped[rec.Key], rec)
	}

	groups := make([]group, 0, len(order))
	for _, key := range order {
		members := grouped[key]
		groups = append(groups, group{
			record: foldGroup(members),
			size:   len(members),
		})
	}
	return groups
}

// foldGroup merges same-key records into one. The member with the most
// non-empty optional fields becomes the base (earliest wins ties); the
// rest fill its gaps in batch order. Status is folded separately: a
// non-unknown status always beats unknown, and between two explicit
// statuses the later record in batch order wins.
func foldGroup(members []model.NormalizedRecord) model.NormalizedRecord {
	base := members[0]
	baseScore := optionalFields(base)
	for _, m := range members[1:] {
		if s := optionalFields(m); s > baseScore {
			base, baseScore = m, s
		}
	}

	status := model.StatusUnknown
	for _, m := range members {
		if m.Status != model.StatusUnknown && m.Status != "" {
			status = m.Status
		}

		if base.Address == "" && m.Address != "" {
			base.Address = m.Address
		}
		if base.State == "" && m.State != "" {
			base.State = m.State
		}
		if base.Description == "" && m.Description != "" {
			base.Description = m.Description
		}
		if base.Latitude == nil && m.Latitude != nil && m.Longitude != nil {
			base.Latitude, base.Longitude = m.Latitude, m.Longitude
		}
		base.SourceNames = unionStrings(base.SourceNames, m.SourceNames)
		base.SourceURLs = unionStrings(base.SourceURLs, m.SourceURLs)
	}
	base.Status = status

	return base
}

// optionalFields counts the populated optional fields used to pick a
// group base: address, coordinates, description.
func optionalFields(rec model.NormalizedRecord) int {
	n := 0
	if rec.Address != "" {
		n++
	}
	if rec.Latitude != nil && rec.Longitude != nil {
		n++
	}
	if rec.Description != "" {
		n++
	}
	return n
}

// mergeInto applies the field-level merge policy for an incoming
// record against an existing stored booth:
//
//   - scalar descriptive fields: last-non-empty-wins; a non-empty
//     existing value is never replaced with an empty incoming one
//   - status: an explicit incoming status beats silence; unknown never
//     overwrites
//   - coordinates: immutable once set; after first assignment the
//     geocoding service is the only coordinate writer
//   - provenance sets: union only, never removal
func mergeInto(existing *model.StoredBooth, rec model.NormalizedRecord) {
	if rec.Address != "" {
		existing.Address = rec.Address
	}
	if rec.State != "" {
		existing.State = rec.State
	}
	if rec.Description != "" {
		existing.Description = rec.Description
	}

	if rec.Status != model.StatusUnknown && rec.Status != "" {
		existing.Status = rec.Status
	}
	if rec.BoothType != model.BoothTypeUnknown && rec.BoothType != "" {
		existing.BoothType = rec.BoothType
	}

	if !existing.HasCoordinates() && rec.Latitude != nil && rec.Longitude != nil {
		existing.Latitude = rec.Latitude
		existing.Longitude = rec.Longitude
	}

	existing.SourceNames = unionStrings(existing.SourceNames, rec.SourceNames)
	existing.SourceURLs = unionStrings(existing.SourceURLs, rec.SourceURLs)
}

// unionStrings appends members of add not already present in dst,
// preserving first-seen order.
func unionStrings(dst, add []string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, s := range dst {
		seen[s] = struct{}{}
	}
	for _, s := range add {
		if _, ok := seen[s]; !ok {
			dst = append(dst, s)
			seen[s] = struct{}{}
		}
	}
	return dst
}
