package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/booth-beacon/beacon-crawler/internal/model"
)

// sourcesFile is the top-level shape of sources.yaml.
type sourcesFile struct {
	Sources []model.Source `yaml:"sources"`
}

// LoadSources reads the source registry file. Validation rejects the
// whole file on the first bad entry so a typo never silently drops a
// source.
func LoadSources(path string) ([]model.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read sources file %s", path)
	}

	var f sourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "config: parse sources file %s", path)
	}
	if len(f.Sources) == 0 {
		return nil, eris.Errorf("config: sources file %s defines no sources", path)
	}

	seen := make(map[string]bool, len(f.Sources))
	for i := range f.Sources {
		src := &f.Sources[i]
		if src.Name == "" {
			return nil, eris.Errorf("config: source %d has no name", i)
		}
		if seen[src.Name] {
			return nil, eris.Errorf("config: duplicate source name %q", src.Name)
		}
		seen[src.Name] = true
		if src.URL == "" {
			return nil, eris.Errorf("config: source %q has no url", src.Name)
		}
		switch src.Mode {
		case model.ModeScrape, model.ModeCrawl:
		case "":
			src.Mode = model.ModeScrape
		default:
			return nil, eris.Errorf("config: source %q has unknown mode %q", src.Name, src.Mode)
		}
	}

	return f.Sources, nil
}

// FilterSources returns the sources whose names appear in names, in
// registry order. An unknown name is an error. An empty names list
// returns everything.
func FilterSources(sources []model.Source, names []string) ([]model.Source, error) {
	if len(names) == 0 {
		return sources, nil
	}
	byName := make(map[string]model.Source, len(sources))
	for _, s := range sources {
		byName[s.Name] = s
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := byName[n]; !ok {
			return nil, eris.Errorf("config: unknown source %q", n)
		}
		want[n] = true
	}
	var out []model.Source
	for _, s := range sources {
		if want[s.Name] {
			out = append(out, s)
		}
	}
	return out, nil
}
