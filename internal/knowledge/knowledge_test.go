package knowledge

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBase() *Base {
	return &Base{
		Version: "2.0",
		Modules: []Module{
			{
				Name: "reachy2_sdk.reachy_sdk",
				Classes: []Class{
					{
						Name: "ReachySDK",
						Methods: []Method{
							{Name: "turn_on", Signature: "()", Doc: "Turn on all motors.\nLong tail."},
							{Name: "turn_off_smoothly", Signature: "()", Doc: "Ramp torque down, then off."},
							{Name: "_internal", Signature: "()", Doc: "hidden"},
						},
					},
				},
			},
			{
				Name: "reachy2_sdk.parts",
				Classes: []Class{
					{
						Name: "Arm",
						Methods: []Method{
							{Name: "goto", Signature: "(positions, duration)", Doc: "Move joints to target positions."},
						},
					},
					{
						Name: "Head",
						Methods: []Method{
							{Name: "look_at", Signature: "(x, y, z, duration)", Doc: "Orient the head toward a point."},
						},
					},
				},
			},
		},
	}
}

func TestLoad_JSONAndYAML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "kb.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{
		"version": "2.0",
		"modules": [{"name": "reachy2_sdk.parts", "classes": [{"name": "Arm"}]}]
	}`), 0o644))
	yamlPath := filepath.Join(dir, "kb.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(
		"version: \"2.0\"\nmodules:\n  - name: reachy2_sdk.parts\n    classes:\n      - name: Arm\n"), 0o644))

	for _, path := range []string{jsonPath, yamlPath} {
		base, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "2.0", base.Version)
		require.Len(t, base.Modules, 1)
		assert.Equal(t, "Arm", base.Modules[0].Classes[0].Name)
	}
}

func TestLoad_RejectsEmptyBase(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "kb.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": "2.0", "modules": []}`), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSummary_SkipsPrivateMethodsAndKeepsFirstDocLine(t *testing.T) {
	t.Parallel()

	summary := testBase().Summary()
	assert.Contains(t, summary, "# Official Modules")
	assert.Contains(t, summary, "- reachy2_sdk.reachy_sdk")
	assert.Contains(t, summary, "- ReachySDK")
	assert.Contains(t, summary, "- turn_on(): Turn on all motors.")
	assert.NotContains(t, summary, "Long tail")
	assert.NotContains(t, summary, "_internal")
}

func TestFilterForRequest_RanksMatchingClasses(t *testing.T) {
	t.Parallel()

	base := testBase()
	summary := base.FilterForRequest("make the robot look at the table", 1)
	assert.Contains(t, summary, "Head")
	assert.NotContains(t, summary, "## Arm")
}

func TestFilterForRequest_FallsBackToFullSummary(t *testing.T) {
	t.Parallel()

	base := testBase()
	full := base.Summary()
	assert.Equal(t, full, base.FilterForRequest("zzz qqq unrelated", 1))
	assert.Equal(t, full, base.FilterForRequest("look at something", 0))
}

func TestAllowedImports_IncludesModulesAndStdlib(t *testing.T) {
	t.Parallel()

	allowed := testBase().AllowedImports()
	assert.Contains(t, allowed, "reachy2_sdk.reachy_sdk")
	assert.Contains(t, allowed, "reachy2_sdk.parts")
	assert.Contains(t, allowed, "time")
	assert.Contains(t, allowed, "math")
	assert.Contains(t, allowed, "numpy")
	assert.Contains(t, allowed, "pollen_vision")
	assert.True(t, sortedStrings(allowed))
}

func sortedStrings(ss []string) bool {
	for i := 1; i < len(ss); i++ {
		if strings.Compare(ss[i-1], ss[i]) > 0 {
			return false
		}
	}
	return true
}
