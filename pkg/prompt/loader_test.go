package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/tripmate/pkg/apperr"
	"github.com/ilkoid/tripmate/pkg/llm"
)

func TestDefaultsParseAndRender(t *testing.T) {
	data := map[string]any{
		"Now":      "2024-05-01 10:00",
		"Language": "English",
		"Query":    "quiet cafe",
		"Lat":      37.5,
		"Lng":      127.0,
		"Places":   "[]",
		"Count":    3,
		"Text":     "cats and dogs",
		"Angle":    "budget",
		"Question": "Is Seoul expensive?",
		"Notes":    "We fly to Jeju on Friday.",
	}

	for _, name := range []string{AgentSystem, RecommendPlaces, ExtractKeywords, BusinessCard, Contextualize, AnalyzeQuestion, SummarizeMinutes} {
		t.Run(name, func(t *testing.T) {
			pf, err := Default(name)
			require.NoError(t, err)
			assert.Equal(t, name, pf.Name)

			msgs, err := pf.RenderMessages(data)
			require.NoError(t, err)
			require.NotEmpty(t, msgs)
			assert.Equal(t, llm.RoleSystem, msgs[0].Role)
			for _, m := range msgs {
				assert.NotContains(t, m.Content, "{{")
			}
		})
	}
}

func TestDefault_Unknown(t *testing.T) {
	_, err := Default("nope")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRenderMessages_MissingKey(t *testing.T) {
	pf := MustDefault(ExtractKeywords)
	_, err := pf.RenderMessages(map[string]any{})
	assert.Error(t, err)
}

func TestOptions(t *testing.T) {
	pf := MustDefault(RecommendPlaces)
	o := llm.ApplyOptions(pf.Options()...)
	assert.Equal(t, llm.FormatJSONObject, o.Format)
	require.NotNil(t, o.Temperature)
	assert.InDelta(t, 0.7, *o.Temperature, 1e-9)

	empty := &PromptFile{Messages: []Message{{Role: "system", Content: "x"}}}
	assert.Empty(t, empty.Options())
}

func TestLibrary_OverrideFromDir(t *testing.T) {
	dir := t.TempDir()
	custom := []byte("messages:\n  - role: system\n    content: \"Custom {{.Language}}\"\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, AgentSystem+".yaml"), custom, 0o644))

	lib := NewLibrary(dir)

	pf, err := lib.Get(AgentSystem)
	require.NoError(t, err)
	got, err := pf.RenderSystem(map[string]any{"Language": "Korean"})
	require.NoError(t, err)
	assert.Equal(t, "Custom Korean", got)

	// Не переопределённый промпт берётся из встроенных.
	pf, err = lib.Get(BusinessCard)
	require.NoError(t, err)
	assert.Equal(t, BusinessCard, pf.Name)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse("bad", []byte("messages: [unclosed"))
	assert.Error(t, err)

	_, err = Parse("empty", []byte("config:\n  model: x\n"))
	assert.Error(t, err)
}
