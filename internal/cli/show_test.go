package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prio-data/queries-benchmark/internal/queryset"
	"github.com/prio-data/queries-benchmark/internal/trials"
)

func TestShow_CatalogTrial(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewShowCommand(newTestRootOptions(t))
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"beta"})

	require.NoError(t, cmd.Execute())

	payload, err := queryset.MarshalCanonical(trials.Beta)
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "hash:     "+queryset.MustHash(trials.Beta))
	assert.Contains(t, out, string(payload)+"\n")
}

func TestShow_JSON(t *testing.T) {
	root := newTestRootOptions(t)
	root.Format = "json"
	buf := &bytes.Buffer{}
	cmd := NewShowCommand(root)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"gamma"})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Data ShowResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "gamma", resp.Data.Trial)
	assert.Equal(t, queryset.MustHash(trials.Gamma), resp.Data.Hash)

	want, err := queryset.MarshalCanonical(trials.Gamma)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(resp.Data.Payload))
}

func TestShow_TrialFile(t *testing.T) {
	path := writeTrialFile(t, t.TempDir(), "custom.yaml", customTrialYAML)

	buf := &bytes.Buffer{}
	cmd := NewShowCommand(newTestRootOptions(t))
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "queryset: custom_qs")
}

func TestShow_UnknownTrial(t *testing.T) {
	cmd := NewShowCommand(newTestRootOptions(t))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"delta"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `unknown trial "delta"`)
}

func TestShow_MissingArg(t *testing.T) {
	cmd := NewShowCommand(newTestRootOptions(t))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
