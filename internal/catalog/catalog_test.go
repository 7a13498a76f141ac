package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Len(t, c.Personas(), 8)
	assert.Len(t, c.Products(), 3)
	assert.Contains(t, c.Executives(), "charles_hoskinson")
}

func TestLoad_JSONAndYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "personas.json"), `{"builder":"Builds things"}`)
	writeFile(t, filepath.Join(dir, "executives.yaml"), `
jane_doe:
  name: Jane Doe
  position: Chief Scientist
  bio: Research lead.
`)

	c, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"builder": "Builds things"}, c.Personas())
	assert.Len(t, c.Products(), 3)
	assert.Equal(t, "Chief Scientist", c.Executives()["jane_doe"].Position)
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "products.json"), `{not json`)

	_, err := Load(dir)

	assert.Error(t, err)
}

func TestCatalog_Lookups(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	name, desc, err := c.Product("LACE")
	require.NoError(t, err)
	assert.Equal(t, "lace", name)
	assert.Contains(t, desc, "light wallet")

	_, _, err = c.Persona("astronaut")
	assert.ErrorIs(t, err, ErrNotFound)

	p, ok := c.MatchPersona("Tell me about crypto savvy personas")
	assert.True(t, ok)
	assert.Equal(t, "crypto savvy", p)

	_, ok = c.MatchProduct("nothing here")
	assert.False(t, ok)
}

func TestCatalog_MatchExecutive(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	tests := map[string]string{
		"Tell me about Charles Hoskinson": "charles_hoskinson",
		"who is romain pellerin":          "romain_pellerin",
		"who is the president of IOG":     "tamara_haasen",
	}
	for query, want := range tests {
		id, ok := c.MatchExecutive(query)
		assert.True(t, ok, query)
		assert.Equal(t, want, id, query)
	}

	_, ok := c.MatchExecutive("Who are the executives at IOG?")
	assert.False(t, ok)
}

func TestCatalog_ProductDetails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "products", "Midnight.md"), "# Midnight\nData protection.")
	c, err := Load(dir)
	require.NoError(t, err)

	content, err := c.ProductDetails("midnight")
	require.NoError(t, err)
	assert.Contains(t, content, "# Midnight")

	_, err = c.ProductDetails("lace")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.ProductDetails("../secrets")
	assert.ErrorIs(t, err, ErrNotFound)
}
