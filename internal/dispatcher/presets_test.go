package dispatcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const presetsYAML = `
presets:
  - name: practice-moved
    description: Practice time change
    subject: "Practice moved, {{firstName}}"
    body: "Hi {{firstName}} {{lastName}}, practice is now at 6pm."
  - name: tryout-results
    subject: "Tryout results"
    body: "Results for {{teamName}} are posted."
`

func TestLoadPresets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(presetsYAML), 0o644))

	catalog, err := LoadPresets(path)
	require.NoError(t, err)

	list := catalog.List()
	require.Len(t, list, 2)
	assert.Equal(t, "practice-moved", list[0].Name)
	assert.Equal(t, "tryout-results", list[1].Name)

	p, ok := catalog.Get("practice-moved")
	require.True(t, ok)
	assert.Equal(t, "Practice time change", p.Description)

	_, ok = catalog.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"tryout-results: unknown token {{teamName}}"}, catalog.Problems())
}

func TestLoadPresets_EmptyPath(t *testing.T) {
	catalog, err := LoadPresets("")
	require.NoError(t, err)
	assert.Empty(t, catalog.List())
}

func TestParsePresets_Errors(t *testing.T) {
	_, err := ParsePresets([]byte("presets: [unclosed"))
	assert.Error(t, err)

	_, err = ParsePresets([]byte("presets:\n  - name: a\n  - name: a\n"))
	assert.ErrorContains(t, err, "duplicate")

	_, err = ParsePresets([]byte("presets:\n  - subject: x\n"))
	assert.ErrorContains(t, err, "without name")
}

func TestPresetCatalog_Nil(t *testing.T) {
	var c *PresetCatalog
	_, ok := c.Get("x")
	assert.False(t, ok)
	assert.Empty(t, c.List())
}
