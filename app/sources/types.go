package sources

import "regexp"

// Town describes one feed-backed ingestion source: where its feed lives
// and how detail pages are scraped when the feed omits fields.
type Town struct {
	Slug  string `yaml:"-"`
	Label string `yaml:"label"`

	RSSFeed string `yaml:"rss_feed"`

	DescriptionSelector string `yaml:"description_selector"`
	ImageSelector       string `yaml:"image_selector"`
	LocationSelector    string `yaml:"location_selector"`

	RemoveImage           bool  `yaml:"remove_image"`
	GetDescriptionFromRSS bool  `yaml:"description_from_rss"`
	DisableInsertion      bool  `yaml:"disable_insertion"`
	IncreaseCacheTime     bool  `yaml:"increase_cache_time"`
	SanitizeURL           *bool `yaml:"sanitize_url"` // nil means true

	PostalCode string  `yaml:"postal_code"`
	Lat        float64 `yaml:"lat"`
	Lng        float64 `yaml:"lng"`
}

// ShouldSanitizeURL reports whether detail URLs are sanitized before
// fetching. Defaults to true unless the source opts out.
func (t *Town) ShouldSanitizeURL() bool {
	return t.SanitizeURL == nil || *t.SanitizeURL
}

// Region groups towns under a shared label.
type Region struct {
	Slug  string           `yaml:"-"`
	Label string           `yaml:"label"`
	Towns map[string]*Town `yaml:"towns"`
}

// ScraperCity configures the HTML agenda scraper for a town without any
// machine-readable feed. Dates on these sites are free-text Catalan, so
// each city carries its own capture regex.
type ScraperCity struct {
	Slug            string `yaml:"-"`
	DefaultLocation string `yaml:"default_location"`
	Domain          string `yaml:"domain"`
	URL             string `yaml:"url"`
	Encoding        string `yaml:"encoding"`

	ListSelector        string `yaml:"list_selector"`
	TitleSelector       string `yaml:"title_selector"`
	URLSelector         string `yaml:"url_selector"`
	DateSelector        string `yaml:"date_selector"`
	TimeSelector        string `yaml:"time_selector"`
	DescriptionSelector string `yaml:"description_selector"`
	ImageSelector       string `yaml:"image_selector"`
	LocationSelector    string `yaml:"location_selector"`
	URLImage            string `yaml:"url_image"`

	DateRegex    string `yaml:"date_regex"`
	SwapDayMonth bool   `yaml:"swap_day_month"`
	TimeRegex    string `yaml:"time_regex"`

	dateRe *regexp.Regexp
	timeRe *regexp.Regexp
}

// Compile builds the date and time capture patterns. Must be called
// before DatePattern or TimePattern are used.
func (c *ScraperCity) Compile() error {
	if c.DateRegex != "" {
		re, err := regexp.Compile(c.DateRegex)
		if err != nil {
			return err
		}
		c.dateRe = re
	}

	if c.TimeRegex != "" {
		re, err := regexp.Compile(c.TimeRegex)
		if err != nil {
			return err
		}
		c.timeRe = re
	}

	return nil
}

// DatePattern returns the compiled date capture regex.
func (c *ScraperCity) DatePattern() *regexp.Regexp {
	return c.dateRe
}

// TimePattern returns the compiled time capture regex, or nil when the
// city has none.
func (c *ScraperCity) TimePattern() *regexp.Regexp {
	return c.timeRe
}
