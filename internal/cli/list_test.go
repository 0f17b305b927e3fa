package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList_Text(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewListCommand(newTestRootOptions(t))
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "mihai_pgm_cm_comparison2")
	assert.Contains(t, out, "priogrid_month")
	assert.Contains(t, out, "ged_pgm,fat_supply,ged_cm")
}

func TestList_JSONWithWhere(t *testing.T) {
	root := newTestRootOptions(t)
	root.Format = "json"
	buf := &bytes.Buffer{}
	cmd := NewListCommand(root)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--where", `level == "country_year"`})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string      `json:"status"`
		Data   []TrialInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, TrialInfo{
		Name:        "beta",
		Description: "Grid-month and country-month sums rolled up to country-year",
		Queryset:    "mihai_pgm_cm_cy_comparison5",
		Level:       "country_year",
		Columns:     []string{"ged_pgm", "fat_supply", "ged_cm"},
	}, resp.Data[0])
}

func TestList_TrialFiles(t *testing.T) {
	dir := t.TempDir()
	writeTrialFile(t, dir, "custom.yaml", customTrialYAML)

	buf := &bytes.Buffer{}
	cmd := NewListCommand(newTestRootOptions(t))
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "custom_qs")
	assert.NotContains(t, buf.String(), "mihai_simple_sys_up")
}

func TestList_Empty(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewListCommand(newTestRootOptions(t))
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--filter", "nothing"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "No trials found.\n", buf.String())
}
