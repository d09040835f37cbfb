// Package catalog holds the static list of feed categories and datasets.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/raffaelramalhorosa/econdash/internal/models"
)

// All names the aggregate view across every category.
const All = "ALL"

// ErrUnknownCategory is returned for names the catalog does not define.
var ErrUnknownCategory = errors.New("unknown category")

//go:embed feeds.yaml
var defaultCatalog []byte

type document struct {
	Categories []struct {
		Name  string              `yaml:"name"`
		Feeds []models.FeedSource `yaml:"feeds"`
	} `yaml:"categories"`
	Datasets map[string]string `yaml:"datasets"`
}

// Catalog is immutable once loaded.
type Catalog struct {
	categories []string
	sources    map[string][]models.FeedSource
	datasets   map[string]string
}

// Load reads the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(defaultCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := &Catalog{
		sources:  make(map[string][]models.FeedSource, len(doc.Categories)),
		datasets: make(map[string]string, len(doc.Datasets)),
	}
	seen := make(map[string]string)

	for _, cat := range doc.Categories {
		name := strings.ToUpper(strings.TrimSpace(cat.Name))
		switch {
		case name == "":
			return nil, errors.New("category with empty name")
		case name == All:
			return nil, fmt.Errorf("category name %q is reserved", All)
		}
		if _, dup := c.sources[name]; dup {
			return nil, fmt.Errorf("duplicate category %q", name)
		}

		sources := make([]models.FeedSource, 0, len(cat.Feeds))
		for _, src := range cat.Feeds {
			if src.ID == "" {
				return nil, fmt.Errorf("category %s: feed without id", name)
			}
			if other, dup := seen[src.ID]; dup {
				return nil, fmt.Errorf("feed id %q used in both %s and %s", src.ID, other, name)
			}
			if err := validateURL(src.URL); err != nil {
				return nil, fmt.Errorf("feed %s: %w", src.ID, err)
			}
			if src.Name == "" {
				src.Name = src.ID
			}
			src.Category = name
			seen[src.ID] = name
			sources = append(sources, src)
		}

		c.categories = append(c.categories, name)
		c.sources[name] = sources
	}

	for name, raw := range doc.Datasets {
		if err := validateURL(raw); err != nil {
			return nil, fmt.Errorf("dataset %s: %w", name, err)
		}
		c.datasets[name] = raw
	}

	return c, nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid url %q: need absolute http(s)", raw)
	}
	return nil
}

// Categories returns category names in declared order.
func (c *Catalog) Categories() []string {
	return append([]string(nil), c.categories...)
}

// Sources returns the feeds of one category.
func (c *Catalog) Sources(category string) ([]models.FeedSource, error) {
	sources, ok := c.sources[category]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	return sources, nil
}

// Resolve maps a user-supplied name onto a declared category or All.
func (c *Catalog) Resolve(name string) (string, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if n == All {
		return All, nil
	}
	if _, ok := c.sources[n]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCategory, name)
	}
	return n, nil
}

// Dataset returns the upstream URL of a named dataset.
func (c *Catalog) Dataset(name string) (string, bool) {
	u, ok := c.datasets[name]
	return u, ok
}

// Datasets returns dataset names sorted alphabetically.
func (c *Catalog) Datasets() []string {
	names := make([]string, 0, len(c.datasets))
	for n := range c.datasets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
