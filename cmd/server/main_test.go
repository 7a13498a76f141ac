package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edibez/mcplab/internal/ai"
)

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestClassifyCmd_JSON(t *testing.T) {
	out := runCLI(t, "classify", "--json", "Calculate", "125", "*", "36")

	var result ai.Classification
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, []string{"calculation"}, result.Intents)
	require.Len(t, result.Calls, 1)
	assert.Equal(t, ai.ToolCalculator, result.Calls[0].Name)
	assert.Equal(t, "Calculate 125 * 36", result.Calls[0].Query())
}

func TestClassifyCmd_Fallback(t *testing.T) {
	out := runCLI(t, "classify", "hello there")

	assert.Contains(t, out, "general information search added")
	assert.Contains(t, out, ai.ToolSearch)
}

func TestExtractCmd(t *testing.T) {
	out := runCLI(t, "extract", "stake 1,000 ADA for 3 years at 7% apy")

	assert.Contains(t, out, "calculateStaking")
	assert.Contains(t, out, "cardano")
	assert.Contains(t, out, "1000")
	assert.Contains(t, out, "7%")
}

func TestClassifyCmd_RequiresPrompt(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"classify"})

	assert.Error(t, cmd.Execute())
}
