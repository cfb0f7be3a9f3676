// Package adapters holds per-domain parsers that turn scraped page
// markdown into candidate booth records. Adapters are pure functions
// over text: no network, no database.
package adapters

import (
	"html"
	"net/url"
	"strings"

	"github.com/booth-beacon/beacon-crawler/internal/model"
)

// Adapter parses page markdown from one known site into candidates.
type Adapter interface {
	// Name identifies the adapter in logs and provenance.
	Name() string

	// Hosts lists the hostnames this adapter handles, without a
	// "www." prefix.
	Hosts() []string

	// Parse extracts candidate records from one page of markdown.
	Parse(markdown, sourceURL string) []model.CandidateRecord
}

// Registry resolves adapters by source hostname. Matching is exact on
// the hostname with a "www." prefix stripped; a missing adapter is not
// an error; the caller falls back to the LLM extractor.
type Registry struct {
	byHost map[string]Adapter
}

// NewRegistry builds a registry from the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{byHost: make(map[string]Adapter)}
	for _, a := range adapters {
		for _, h := range a.Hosts() {
			r.byHost[strings.ToLower(h)] = a
		}
	}
	return r
}

// Default returns the registry of built-in site adapters.
func Default() *Registry {
	return NewRegistry(
		NewPhotoboothNet(),
		NewLomography(),
		NewFotoautomat(),
	)
}

// Get returns the adapter registered for the URL's hostname.
func (r *Registry) Get(sourceURL string) (Adapter, bool) {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return nil, false
	}
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	a, ok := r.byHost[host]
	return a, ok
}

// decodeEntities fixes HTML entities that survive markdown conversion
// (&eacute; and friends show up in venue names on several sources).
func decodeEntities(s string) string {
	return html.UnescapeString(s)
}

// stripMarkdownLink reduces "[text](url)" to "text"; plain text passes
// through.
func stripMarkdownLink(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") {
		return s
	}
	end := strings.Index(s, "](")
	if end < 0 {
		return s
	}
	return strings.TrimSpace(s[1:end])
}
