package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/booth-beacon/beacon-crawler/internal/model"
)

const lomoPage = `# Photobooths of the World

An article about analog photobooths.

- **Fotoautomat Wien** - Museumsquartier, Vienna, Austria. Vintage chemical booth near the entrance.
- **Photoautomat Warschauer** – Warschauer Str. 34, Berlin, Germany.
- **Broken Item** without the separator
- **The Mystery Booth**: Somewhere, Tokyo, Japan
- Not a venue line at all.
`

func TestLomographyParse(t *testing.T) {
	a := NewLomography()
	records := a.Parse(lomoPage, "https://www.lomography.com/magazine/123")

	require.Len(t, records, 3)

	wien := records[0]
	assert.Equal(t, "Fotoautomat Wien", wien.Name)
	assert.Equal(t, "Museumsquartier", wien.Address)
	assert.Equal(t, "Vienna", wien.City)
	assert.Equal(t, "Austria", wien.Country)
	assert.Equal(t, "Vintage chemical booth near the entrance.", wien.Description)
	assert.Equal(t, model.StatusUnknown, wien.Status)
	assert.Equal(t, "lomography.com", wien.SourceName)

	berlin := records[1]
	assert.Equal(t, "Photoautomat Warschauer", berlin.Name)
	assert.Equal(t, "Warschauer Str. 34", berlin.Address)
	assert.Equal(t, "Berlin", berlin.City)
	assert.Equal(t, "Germany", berlin.Country)
	assert.Empty(t, berlin.Description)

	tokyo := records[2]
	assert.Equal(t, "The Mystery Booth", tokyo.Name)
	assert.Equal(t, "Tokyo", tokyo.City)
	assert.Equal(t, "Japan", tokyo.Country)
}

func TestLomographyParseNoItems(t *testing.T) {
	a := NewLomography()
	assert.Empty(t, a.Parse("just prose, no list items", "https://www.lomography.com/x"))
}
