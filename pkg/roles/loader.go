package roles

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CatalogFile is the on-disk form of a role catalog overlay. Deployments that
// need a hierarchy different from the built-in one provide a YAML file; the
// file fully replaces the defaults (no merging), so it must stand alone.
type CatalogFile struct {
	DefaultRole string            `yaml:"default_role"`
	Roles       []Definition      `yaml:"roles"`
	Aliases     map[string]string `yaml:"aliases,omitempty"`
}

// LoadCatalog reads and validates a role catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read role catalog: %w", err)
	}

	var file CatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse role catalog: %w", err)
	}

	catalog, err := NewCatalog(file.Roles, file.Aliases, file.DefaultRole)
	if err != nil {
		return nil, fmt.Errorf("invalid role catalog %s: %w", path, err)
	}
	return catalog, nil
}

// LoadCatalogOrDefault loads the catalog from path when one is configured,
// falling back to the built-in hierarchy for an empty path.
func LoadCatalogOrDefault(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	return LoadCatalog(path)
}

// SaveCatalog writes a catalog to a YAML file, used to seed an overlay file
// from the built-in defaults.
func SaveCatalog(c *Catalog, path string) error {
	file := CatalogFile{
		DefaultRole: c.DefaultRole(),
		Roles:       c.Definitions(),
		Aliases:     c.Aliases(),
	}

	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to marshal role catalog: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}
