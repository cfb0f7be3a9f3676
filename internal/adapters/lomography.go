package adapters

import (
	"regexp"
	"strings"

	"github.com/booth-beacon/beacon-crawler/internal/model"
)

// Lomography parses location roundups from lomography.com magazine
// articles. Venues appear as list items with a bolded name and a
// dash-separated location sentence:
//
//	- **Fotoautomat Wien** - Museumsquartier, Vienna, Austria. Vintage chemical booth.
type Lomography struct{}

// NewLomography creates the lomography.com adapter.
func NewLomography() *Lomography {
	return &Lomography{}
}

func (a *Lomography) Name() string { return "lomography.com" }

func (a *Lomography) Hosts() []string { return []string{"lomography.com"} }

// lomoItemRe captures the bold venue name and the trailing text of one
// list item. The separator between name and location varies between
// hyphen, en dash and em dash across articles.
var lomoItemRe = regexp.MustCompile(`^[-*]\s+\*\*(.+?)\*\*\s*[-–—:]\s*(.+)$`)

func (a *Lomography) Parse(markdown, sourceURL string) []model.CandidateRecord {
	var records []model.CandidateRecord

	for _, line := range strings.Split(markdown, "\n") {
		m := lomoItemRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}

		name := decodeEntities(strings.TrimSpace(m[1]))
		rest := decodeEntities(strings.TrimSpace(m[2]))

		// First sentence is the location, the remainder description.
		location, description := rest, ""
		if idx := strings.Index(rest, ". "); idx >= 0 {
			location = rest[:idx]
			description = strings.TrimSpace(rest[idx+2:])
		} else if strings.HasSuffix(rest, ".") {
			location = strings.TrimSuffix(rest, ".")
		}

		rec := model.CandidateRecord{
			Name:        name,
			Description: description,
			Status:      model.StatusUnknown,
			SourceName:  a.Name(),
			SourceURL:   sourceURL,
		}
		fillLocation(&rec, location)

		if rec.Name != "" && rec.City != "" {
			records = append(records, rec)
		}
	}

	return records
}
