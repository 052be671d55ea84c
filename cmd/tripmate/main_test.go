package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"chat", "tui", "recommend", "keywords", "card", "index", "ask", "routes", "minutes"} {
		assert.Contains(t, names, want)
	}
}

func TestRecommend_RequiresCoordinates(t *testing.T) {
	rootCmd.SetArgs([]string{"recommend", "--lat", "35.1", "cafe"})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	assert.ErrorContains(t, err, "--lat and --lng are required")
}

func TestPrintJSON_KeepsUnicode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]string{"name": "해운대 & beach"}))
	assert.Equal(t, "{\n  \"name\": \"해운대 & beach\"\n}\n", buf.String())
}

func TestMinutes_RequiresAudio(t *testing.T) {
	rootCmd.SetArgs([]string{"minutes"})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	assert.ErrorContains(t, err, "requires at least 1 arg")
}

func TestIndex_Flags(t *testing.T) {
	for _, name := range []string{"collection", "reset", "notes"} {
		assert.NotNil(t, indexCmd.Flags().Lookup(name), name)
	}
	assert.NotNil(t, minutesCmd.Flags().ShorthandLookup("o"))
}
