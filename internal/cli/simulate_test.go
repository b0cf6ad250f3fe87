package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scenarioDir = filepath.Join("..", "harness", "testdata", "scenarios")

func TestSimulate_Pass(t *testing.T) {
	out, err := execute(t, "simulate", filepath.Join(scenarioDir, "duel.yaml"), "--trace")
	require.NoError(t, err)
	assert.Contains(t, out, "PASS duel")
	assert.Contains(t, out, "    004 advance -> combat 1 health=10,1")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestSimulate_DirectoryWithFilter(t *testing.T) {
	out, err := execute(t, "simulate", scenarioDir, "--filter", "comm*", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   SimulateResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "commands", resp.Data.Scenarios[0].Name)
	assert.True(t, resp.Data.Scenarios[0].Pass)
	assert.Equal(t, 1, resp.Data.Total)
}

func TestSimulate_FailingScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wrong.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: wrong
description: expects a bot to start with the wrong money
seats: [{name: a}, {name: b}]
flow: [{do: reroll, account: 1, expect_error: PLAYER_NOT_FOUND}]
assertions:
  - {type: player, player: 1, expect: {money: 99}}
`), 0o644))

	out, err := execute(t, "simulate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, ExitCode(err))
	assert.Contains(t, out, "FAIL wrong")
	assert.Contains(t, out, "money=99")
	assert.Contains(t, out, "0 passed, 1 failed, 1 total")
}

func TestSimulate_CommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing path", []string{"simulate", filepath.Join(t.TempDir(), "missing")}},
		{"empty directory", []string{"simulate", t.TempDir()}},
		{"bad filter", []string{"simulate", scenarioDir, "--filter", "["}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, ExitCode(err))
		})
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("name: x\nbogus: true\n"), 0o644))
	_, err := execute(t, "simulate", bad)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, ExitCode(err))
}
