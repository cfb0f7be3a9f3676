package adapters

import (
	"regexp"
	"strings"

	"github.com/booth-beacon/beacon-crawler/internal/model"
)

// PhotoboothNet parses directory pages from photobooth.net, the
// long-running analog booth directory. Each listing is a level-3
// heading followed by bolded field lines:
//
//	### [Ace Hotel](https://www.photobooth.net/locations/1234)
//	**Location:** 20 W 29th St, New York, NY, USA
//	**Status:** Active
//	Model 11 black and white booth in the lobby.
type PhotoboothNet struct{}

// NewPhotoboothNet creates the photobooth.net adapter.
func NewPhotoboothNet() *PhotoboothNet {
	return &PhotoboothNet{}
}

func (a *PhotoboothNet) Name() string { return "photobooth.net" }

func (a *PhotoboothNet) Hosts() []string { return []string{"photobooth.net"} }

var (
	pbFieldRe = regexp.MustCompile(`^\*\*(\w+):\*\*\s*(.+)$`)
)

func (a *PhotoboothNet) Parse(markdown, sourceURL string) []model.CandidateRecord {
	var records []model.CandidateRecord

	for _, section := range splitHeadings(markdown, "### ") {
		name := stripMarkdownLink(decodeEntities(section.heading))
		if name == "" {
			continue
		}

		rec := model.CandidateRecord{
			Name:       name,
			Status:     model.StatusUnknown,
			SourceName: a.Name(),
			SourceURL:  sourceURL,
		}

		var desc []string
		for _, line := range strings.Split(section.body, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if m := pbFieldRe.FindStringSubmatch(line); m != nil {
				switch strings.ToLower(m[1]) {
				case "location":
					fillLocation(&rec, decodeEntities(m[2]))
				case "status":
					rec.Status = parseStatus(m[2])
				}
				continue
			}
			desc = append(desc, decodeEntities(line))
		}
		rec.Description = strings.Join(desc, " ")

		if rec.Name != "" && rec.City != "" {
			records = append(records, rec)
		}
	}

	return records
}

// fillLocation splits a comma-separated location line into address
// components. The directory is inconsistent about how many parts it
// lists, so shorter forms drop the street and state first.
func fillLocation(rec *model.CandidateRecord, location string) {
	parts := strings.Split(location, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	switch len(parts) {
	case 0:
	case 1:
		rec.City = parts[0]
	case 2:
		rec.City = parts[0]
		rec.Country = parts[1]
	case 3:
		rec.Address = parts[0]
		rec.City = parts[1]
		rec.Country = parts[2]
	default:
		rec.Address = parts[0]
		rec.City = parts[1]
		rec.State = parts[2]
		rec.Country = strings.Join(parts[3:], ", ")
	}
}

// parseStatus maps free-text status words onto the enum, defaulting to
// unknown.
func parseStatus(s string) model.BoothStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active", "operational", "working":
		return model.StatusActive
	case "inactive", "removed", "gone", "retired":
		return model.StatusInactive
	default:
		return model.StatusUnknown
	}
}

// section is one heading-delimited chunk of a markdown page.
type section struct {
	heading string
	body    string
}

// splitHeadings cuts markdown into sections at the given heading
// prefix, discarding content before the first heading.
func splitHeadings(markdown, prefix string) []section {
	var sections []section
	var current *section

	for _, line := range strings.Split(markdown, "\n") {
		if strings.HasPrefix(line, prefix) {
			if current != nil {
				sections = append(sections, *current)
			}
			current = &section{heading: strings.TrimSpace(strings.TrimPrefix(line, prefix))}
			continue
		}
		if current != nil {
			current.body += line + "\n"
		}
	}
	if current != nil {
		sections = append(sections, *current)
	}
	return sections
}
