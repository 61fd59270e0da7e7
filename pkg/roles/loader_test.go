package roles

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCatalog(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "roles.yaml")
		content := `
default_role: member
roles:
  - id: member
    level: 10
    permissions: ["profile:read"]
  - id: steward
    level: 50
    description: shop steward
    permissions: ["grievance:read", "grievance:update"]
aliases:
  shop_steward: steward
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		catalog, err := LoadCatalog(path)
		require.NoError(t, err)
		assert.Equal(t, 50, catalog.Level("steward"))
		assert.Equal(t, "steward", catalog.Normalize("shop_steward"))
		assert.Equal(t, "member", catalog.Normalize("anything"))
		assert.Equal(t, []Permission{"grievance:read", "grievance:update"}, catalog.Permissions("steward"))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read role catalog")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "roles.yaml")
		require.NoError(t, os.WriteFile(path, []byte("roles: [unclosed"), 0644))

		_, err := LoadCatalog(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse role catalog")
	})

	t.Run("invalid catalog content", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "roles.yaml")
		content := `
default_role: member
roles:
  - id: member
    level: 10
  - id: observer
    level: 10
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		_, err := LoadCatalog(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "share authority level")
	})
}

func TestLoadCatalogOrDefault(t *testing.T) {
	t.Run("empty path falls back to built-in", func(t *testing.T) {
		catalog, err := LoadCatalogOrDefault("")
		require.NoError(t, err)
		assert.Equal(t, 50, catalog.Level(RoleSteward))
	})

	t.Run("configured path is loaded", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "roles.yaml")
		content := `
default_role: viewer
roles:
  - id: viewer
    level: 1
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		catalog, err := LoadCatalogOrDefault(path)
		require.NoError(t, err)
		assert.Equal(t, "viewer", catalog.DefaultRole())
		assert.Equal(t, 0, catalog.Level(RoleSteward))
	})
}

func TestSaveCatalogRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.yaml")
	require.NoError(t, SaveCatalog(DefaultCatalog(), path))

	loaded, err := LoadCatalog(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultCatalog().DefaultRole(), loaded.DefaultRole())
	for _, def := range DefaultDefinitions() {
		assert.Equal(t, def.Level, loaded.Level(def.ID), "role %q", def.ID)
	}
	for legacy, canonical := range DefaultAliases() {
		assert.Equal(t, canonical, loaded.Normalize(legacy))
	}
}
