package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jtn0123/megabonk-vision/internal/detection"
	"github.com/jtn0123/megabonk-vision/internal/imaging"
	"gopkg.in/yaml.v3"
)

// CatalogueEntry is one entity as listed in a catalogue file.
type CatalogueEntry struct {
	ID     string `yaml:"id" json:"id"`
	Name   string `yaml:"name" json:"name"`
	Type   string `yaml:"type" json:"type"`
	Rarity string `yaml:"rarity" json:"rarity"`
	// Image is the template path, relative to the template directory
	// unless absolute. Entities without one can only be found by
	// strategies that need no template.
	Image string `yaml:"image" json:"image"`
}

// Catalogue lists the entities detection can recognise. JSON catalogues
// are read as YAML.
type Catalogue struct {
	Entities []CatalogueEntry `yaml:"entities" json:"entities"`
}

// LoadCatalogue reads a catalogue file.
func LoadCatalogue(path string) (*Catalogue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalogue: %w", err)
	}
	defer f.Close()
	c, err := ParseCatalogue(f)
	if err != nil {
		return nil, fmt.Errorf("catalogue %s: %w", path, err)
	}
	return c, nil
}

// ParseCatalogue decodes a catalogue and checks ids and rarities.
func ParseCatalogue(r io.Reader) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.NewDecoder(r).Decode(&c); err != nil && err != io.EOF {
		return nil, err
	}
	seen := make(map[string]bool, len(c.Entities))
	for i, e := range c.Entities {
		if e.ID == "" {
			return nil, fmt.Errorf("entity %d has no id", i)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("duplicate entity id %q", e.ID)
		}
		seen[e.ID] = true
		if r := detection.Rarity(e.Rarity); r != detection.RarityUnknown && !r.Valid() {
			return nil, fmt.Errorf("entity %q: unknown rarity %q", e.ID, e.Rarity)
		}
	}
	return &c, nil
}

// Resolve resolves the catalogue into detection entities, loading each
// template through cache and normalising it to the template size.
func (c *Catalogue) Resolve(templateDir string, cache *imaging.ImageCache) ([]detection.Entity, error) {
	out := make([]detection.Entity, 0, len(c.Entities))
	for _, e := range c.Entities {
		ent := detection.Entity{
			EntityRef: detection.EntityRef{
				ID:     e.ID,
				Name:   e.Name,
				Rarity: detection.Rarity(e.Rarity),
			},
			Type: e.Type,
		}
		if ent.Name == "" {
			ent.Name = e.ID
		}
		if e.Image != "" {
			path := e.Image
			if !filepath.IsAbs(path) && templateDir != "" {
				path = filepath.Join(templateDir, path)
			}
			img, err := cache.Load(path)
			if err != nil {
				return nil, fmt.Errorf("entity %q: %w", e.ID, err)
			}
			ent.Template = imaging.NormalizeTemplate(img)
		}
		out = append(out, ent)
	}
	return out, nil
}
