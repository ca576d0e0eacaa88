// Package catalog holds the static lists of alert categories and regions and
// the node id conventions derived from them.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

const (
	// RootID is the id of the single system node.
	RootID = "SISTEMA"

	categoryPrefix = "TYPE_"
	regionPrefix   = "REGION_"

	// Older data files link alerts to TIPO_<KEY> category nodes.
	legacyCategoryPrefix = "TIPO_"
)

// Category is an alert category: a stable key and a display name.
type Category struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Catalog lists the known categories and regions in display order.
type Catalog struct {
	Categories []Category `json:"categories"`
	Regions    []string   `json:"regions"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return &Catalog{
		Categories: []Category{
			{Key: "emergency", Name: "Emergencia"},
			{Key: "crime", Name: "Crimen/Seguridad"},
			{Key: "accident", Name: "Accidente"},
			{Key: "traffic", Name: "Tráfico"},
		},
		Regions: []string{
			"Bocas del Toro", "Chiriquí", "Coclé", "Colón", "Darién",
			"Herrera", "Los Santos", "Panamá", "Panamá Oeste", "Veraguas",
			"Comarca Guna Yala", "Comarca Emberá-Wounaan", "Comarca Ngäbe-Buglé",
			"Comarca Madugandí", "Comarca Wargandí",
		},
	}
}

// LoadCatalog reads a catalog from a JSON file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects empty or duplicated entries.
func (c *Catalog) Validate() error {
	if len(c.Categories) == 0 {
		return fmt.Errorf("catalog has no categories")
	}
	if len(c.Regions) == 0 {
		return fmt.Errorf("catalog has no regions")
	}

	seen := make(map[string]bool)
	for _, cat := range c.Categories {
		key := strings.TrimSpace(cat.Key)
		if key == "" {
			return fmt.Errorf("catalog category with empty key")
		}
		if seen[CategoryNodeID(key)] {
			return fmt.Errorf("duplicate category %q", key)
		}
		seen[CategoryNodeID(key)] = true
	}
	for _, region := range c.Regions {
		if strings.TrimSpace(region) == "" {
			return fmt.Errorf("catalog region with empty name")
		}
		if seen[RegionNodeID(region)] {
			return fmt.Errorf("duplicate region %q", region)
		}
		seen[RegionNodeID(region)] = true
	}
	return nil
}

// HasCategory reports whether key is a known category.
func (c *Catalog) HasCategory(key string) bool {
	_, ok := c.Category(key)
	return ok
}

// Category looks up a category by key.
func (c *Catalog) Category(key string) (Category, bool) {
	for _, cat := range c.Categories {
		if cat.Key == key {
			return cat, true
		}
	}
	return Category{}, false
}

// HasRegion reports whether name is a known region.
func (c *Catalog) HasRegion(name string) bool {
	for _, r := range c.Regions {
		if r == name {
			return true
		}
	}
	return false
}

// CategoryNodeID returns the graph node id of a category.
func CategoryNodeID(key string) string {
	return categoryPrefix + strings.ToUpper(key)
}

// CanonicalNodeID maps a node id read from a data file onto the id the
// graph uses. Legacy category ids become CategoryNodeID ids; everything
// else is returned unchanged.
func CanonicalNodeID(id string) string {
	if key, ok := strings.CutPrefix(id, legacyCategoryPrefix); ok {
		return categoryPrefix + key
	}
	return id
}

// RegionNodeID returns the graph node id of a region.
func RegionNodeID(name string) string {
	return regionPrefix + strings.ToUpper(name)
}
