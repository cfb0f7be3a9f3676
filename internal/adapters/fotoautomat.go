package adapters

import (
	"regexp"
	"strings"

	"github.com/booth-beacon/beacon-crawler/internal/model"
)

// Fotoautomat parses the venue list of fotoautomat.fr, the operator
// running restored chemical booths across France. Pages group venues
// under a city heading, one pipe-separated line per machine:
//
//	### Paris
//	- **Point Éphémère** | 200 Quai de Valmy, 75010 Paris
//	- **Ground Control** | 81 Rue du Charolais, 75012 Paris
type Fotoautomat struct{}

// NewFotoautomat creates the fotoautomat.fr adapter.
func NewFotoautomat() *Fotoautomat {
	return &Fotoautomat{}
}

func (a *Fotoautomat) Name() string { return "fotoautomat.fr" }

func (a *Fotoautomat) Hosts() []string { return []string{"fotoautomat.fr"} }

var fotoItemRe = regexp.MustCompile(`^[-*]\s+\*\*(.+?)\*\*\s*\|\s*(.+)$`)

func (a *Fotoautomat) Parse(markdown, sourceURL string) []model.CandidateRecord {
	var records []model.CandidateRecord
	city := ""

	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)

		if strings.HasPrefix(line, "### ") {
			city = decodeEntities(strings.TrimSpace(strings.TrimPrefix(line, "### ")))
			continue
		}

		m := fotoItemRe.FindStringSubmatch(line)
		if m == nil || city == "" {
			continue
		}

		records = append(records, model.CandidateRecord{
			Name:    decodeEntities(strings.TrimSpace(m[1])),
			Address: decodeEntities(strings.TrimSpace(m[2])),
			City:    city,
			Country: "France",
			// The operator only runs restored chemical machines.
			BoothType:  model.BoothTypeChemical,
			Status:     model.StatusActive,
			SourceName: a.Name(),
			SourceURL:  sourceURL,
		})
	}

	return records
}
