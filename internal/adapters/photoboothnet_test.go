package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/booth-beacon/beacon-crawler/internal/model"
)

const pbPage = `# Photobooth Locations

Some directory preamble that should be ignored.

### [Ace Hotel](https://www.photobooth.net/locations/1234)

**Location:** 20 W 29th St, New York, NY, USA
**Status:** Active

Model 11 black and white booth in the lobby.

### Caf&eacute; Zentral

**Location:** Vienna, Austria
**Status:** Removed

### No Location Booth

Just a description with no location line.
`

func TestPhotoboothNetParse(t *testing.T) {
	a := NewPhotoboothNet()
	records := a.Parse(pbPage, "https://www.photobooth.net/locations/")

	require.Len(t, records, 2)

	ace := records[0]
	assert.Equal(t, "Ace Hotel", ace.Name)
	assert.Equal(t, "20 W 29th St", ace.Address)
	assert.Equal(t, "New York", ace.City)
	assert.Equal(t, "NY", ace.State)
	assert.Equal(t, "USA", ace.Country)
	assert.Equal(t, model.StatusActive, ace.Status)
	assert.Equal(t, "Model 11 black and white booth in the lobby.", ace.Description)
	assert.Equal(t, "photobooth.net", ace.SourceName)
	assert.Equal(t, "https://www.photobooth.net/locations/", ace.SourceURL)

	cafe := records[1]
	assert.Equal(t, "Café Zentral", cafe.Name)
	assert.Equal(t, "Vienna", cafe.City)
	assert.Equal(t, "Austria", cafe.Country)
	assert.Equal(t, model.StatusInactive, cafe.Status)
}

func TestPhotoboothNetParseEmptyPage(t *testing.T) {
	a := NewPhotoboothNet()
	assert.Empty(t, a.Parse("", "https://www.photobooth.net/"))
	assert.Empty(t, a.Parse("no headings here at all", "https://www.photobooth.net/"))
}

func TestFillLocationArities(t *testing.T) {
	cases := []struct {
		location string
		want     model.CandidateRecord
	}{
		{"Berlin", model.CandidateRecord{City: "Berlin"}},
		{"Berlin, Germany", model.CandidateRecord{City: "Berlin", Country: "Germany"}},
		{"Warschauer Str. 34, Berlin, Germany", model.CandidateRecord{Address: "Warschauer Str. 34", City: "Berlin", Country: "Germany"}},
		{"20 W 29th St, New York, NY, USA", model.CandidateRecord{Address: "20 W 29th St", City: "New York", State: "NY", Country: "USA"}},
	}
	for _, tc := range cases {
		var rec model.CandidateRecord
		fillLocation(&rec, tc.location)
		assert.Equal(t, tc.want, rec, "location %q", tc.location)
	}
}

func TestParseStatus(t *testing.T) {
	assert.Equal(t, model.StatusActive, parseStatus("Active"))
	assert.Equal(t, model.StatusActive, parseStatus(" operational "))
	assert.Equal(t, model.StatusInactive, parseStatus("GONE"))
	assert.Equal(t, model.StatusUnknown, parseStatus("maybe?"))
	assert.Equal(t, model.StatusUnknown, parseStatus(""))
}
