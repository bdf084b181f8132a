package sources

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yml
var dataFS embed.FS

// Registry is the immutable lookup table of ingestion sources, keyed by
// region and town, plus the scraper city configurations. It is built
// once at startup and passed explicitly into the pipeline.
type Registry struct {
	regions map[string]*Region
	cities  map[string]*ScraperCity
}

// NewRegistry loads the registry from dir, or from the embedded data
// files when dir is empty.
func NewRegistry(dir string) (*Registry, error) {
	var fsys fs.FS = dataFS
	root := "data"
	if dir != "" {
		fsys = os.DirFS(dir)
		root = "."
	}

	// path.Join normalizes the "." root of a DirFS, io/fs paths must
	// not carry a "./" prefix.
	regions, err := loadRegions(fsys, path.Join(root, "regions.yml"))
	if err != nil {
		return nil, err
	}

	cities, err := loadCities(fsys, path.Join(root, "cities.yml"))
	if err != nil {
		return nil, err
	}

	r := &Registry{regions: regions, cities: cities}
	if err := r.validate(); err != nil {
		return nil, err
	}

	slog.Debug("Source registry loaded", "regions", len(regions), "towns", r.TownCount(), "scraper_cities", len(cities))
	return r, nil
}

func loadRegions(fsys fs.FS, path string) (map[string]*Region, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var regions map[string]*Region
	if err := yaml.Unmarshal(data, &regions); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for slug, region := range regions {
		region.Slug = slug
		for townSlug, town := range region.Towns {
			town.Slug = townSlug
		}
	}

	return regions, nil
}

func loadCities(fsys fs.FS, path string) (map[string]*ScraperCity, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var cities map[string]*ScraperCity
	if err := yaml.Unmarshal(data, &cities); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for slug, city := range cities {
		city.Slug = slug
		if err := city.Compile(); err != nil {
			return nil, fmt.Errorf("invalid capture pattern for city %s: %w", slug, err)
		}
	}

	return cities, nil
}

func (r *Registry) validate() error {
	for regionSlug, region := range r.regions {
		if region.Label == "" {
			return fmt.Errorf("region %s: label is required", regionSlug)
		}
		for townSlug, town := range region.Towns {
			if town.Label == "" {
				return fmt.Errorf("town %s/%s: label is required", regionSlug, townSlug)
			}
		}
	}

	for slug, city := range r.cities {
		requiredFields := map[string]string{
			"default location": city.DefaultLocation,
			"domain":           city.Domain,
			"url":              city.URL,
			"list selector":    city.ListSelector,
			"title selector":   city.TitleSelector,
			"date regex":       city.DateRegex,
		}
		for fieldName, fieldValue := range requiredFields {
			if fieldValue == "" {
				return fmt.Errorf("scraper city %s: %s is required", slug, fieldName)
			}
		}
	}

	return nil
}

// Region returns the region for slug, or nil.
func (r *Registry) Region(slug string) *Region {
	return r.regions[slug]
}

// Town resolves a (region, town) pair. The region label is returned
// alongside because published locations are formatted as
// "<venue>, <town>, <region>".
func (r *Registry) Town(regionSlug, townSlug string) (*Town, *Region, error) {
	region, ok := r.regions[regionSlug]
	if !ok {
		return nil, nil, fmt.Errorf("region not found: %s", regionSlug)
	}
	town, ok := region.Towns[townSlug]
	if !ok {
		return nil, nil, fmt.Errorf("town not found: %s in region %s", townSlug, regionSlug)
	}
	return town, region, nil
}

// ScraperCity returns the HTML scraper configuration for slug.
func (r *Registry) ScraperCity(slug string) (*ScraperCity, error) {
	city, ok := r.cities[slug]
	if !ok {
		return nil, fmt.Errorf("scraper city not found: %s", slug)
	}
	return city, nil
}

// EnabledFeeds returns every (region, town) pair with a feed URL and
// insertion enabled, in a stable order.
func (r *Registry) EnabledFeeds() []struct{ Region, Town string } {
	var out []struct{ Region, Town string }
	for regionSlug, region := range r.regions {
		for townSlug, town := range region.Towns {
			if town.RSSFeed == "" || town.DisableInsertion {
				continue
			}
			out = append(out, struct{ Region, Town string }{regionSlug, townSlug})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Region != out[j].Region {
			return out[i].Region < out[j].Region
		}
		return out[i].Town < out[j].Town
	})
	return out
}

// TownCount returns the total number of configured towns.
func (r *Registry) TownCount() int {
	count := 0
	for _, region := range r.regions {
		count += len(region.Towns)
	}
	return count
}

// CityCount returns the number of scraper cities.
func (r *Registry) CityCount() int {
	return len(r.cities)
}
