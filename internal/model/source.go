package model

// SourceMode selects how the content-fetch service retrieves a source.
type SourceMode string

const (
	// ModeScrape fetches the configured URL as a single page.
	ModeScrape SourceMode = "scrape"
	// ModeCrawl walks the site from the configured URL, bounded by
	// include/exclude path globs and a page limit.
	ModeCrawl SourceMode = "crawl"
)

// Source is one configured crawl target from the source registry file.
type Source struct {
	Name         string     `yaml:"name"`
	URL          string     `yaml:"url"`
	Mode         SourceMode `yaml:"mode"`
	IncludePaths []string   `yaml:"include_paths,omitempty"`
	ExcludePaths []string   `yaml:"exclude_paths,omitempty"`
	PageLimit    int        `yaml:"page_limit,omitempty"`
	Disabled     bool       `yaml:"disabled,omitempty"`
}
