package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/tripmate/pkg/retrieval"
	"github.com/ilkoid/tripmate/pkg/s3storage"
)

type fakeObjects map[string]string

func (f fakeObjects) ListFiles(_ context.Context, prefix string) ([]s3storage.StoredObject, error) {
	var out []s3storage.StoredObject
	for _, key := range []string{"guides/busan.md", "guides/map.png", "guides/seoul.txt"} {
		if _, ok := f[key]; ok {
			out = append(out, s3storage.StoredObject{Key: key})
		}
	}
	return out, nil
}

func (f fakeObjects) DownloadFile(_ context.Context, key string) ([]byte, error) {
	return []byte(f[key]), nil
}

func TestLoadS3Documents_SkipsNonText(t *testing.T) {
	store := fakeObjects{
		"guides/busan.md":  "Busan notes",
		"guides/map.png":   "binary",
		"guides/seoul.txt": "Seoul notes",
	}
	docs, err := loadS3Documents(context.Background(), store, "trips", "guides/")
	require.NoError(t, err)

	want := []retrieval.Document{
		{Source: "s3://trips/guides/busan.md", Text: "Busan notes"},
		{Source: "s3://trips/guides/seoul.txt", Text: "Seoul notes"},
	}
	if diff := cmp.Diff(want, docs); diff != "" {
		t.Errorf("documents mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadDocuments_LocalFilesAndDirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "jeju"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jeju", "beach.txt"), []byte("Hyeopjae"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "photo.jpg"), []byte("jpg"), 0o644))
	single := filepath.Join(dir, "notes.log")
	require.NoError(t, os.WriteFile(single, []byte("explicit file"), 0o644))

	c := &Components{}
	docs, err := c.LoadDocuments(context.Background(), []string{filepath.Join(dir, "jeju"), single})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Hyeopjae", docs[0].Text)
	assert.Equal(t, "explicit file", docs[1].Text)

	_, err = c.LoadDocuments(context.Background(), []string{"s3://bucket/x"})
	assert.ErrorContains(t, err, "s3 is not configured")
}

func TestLoadDocuments_CSVRowPerDocument(t *testing.T) {
	dir := t.TempDir()
	body := "\xEF\xBB\xBFname,city,review\n" +
		"Haeundae Stay,Busan,\"quiet, near the beach\"\n" +
		",,\n" +
		"Jeju Inn,Jeju,\n"
	csvPath := filepath.Join(dir, "stays.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(body), 0o644))

	c := &Components{}
	docs, err := c.LoadDocuments(context.Background(), []string{dir})
	require.NoError(t, err)

	want := []retrieval.Document{
		{Source: csvPath + "#row 1", Text: "Haeundae Stay Busan quiet, near the beach"},
		{Source: csvPath + "#row 3", Text: "Jeju Inn Jeju"},
	}
	if diff := cmp.Diff(want, docs); diff != "" {
		t.Errorf("documents mismatch (-want +got):\n%s", diff)
	}
}

func TestCSVDocuments_HeaderOnlyAndBroken(t *testing.T) {
	docs, err := csvDocuments("empty.csv", []byte("name,city\n"))
	require.NoError(t, err)
	assert.Empty(t, docs)

	docs, err = csvDocuments("blank.csv", nil)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestLoadS3Documents_SplitsCSVRows(t *testing.T) {
	store := csvObjects{"data/stays.csv": "name,city\nSeaside,Busan\nHanok,Seoul\n"}
	docs, err := loadS3Documents(context.Background(), store, "trips", "data/")
	require.NoError(t, err)

	want := []retrieval.Document{
		{Source: "s3://trips/data/stays.csv#row 1", Text: "Seaside Busan"},
		{Source: "s3://trips/data/stays.csv#row 2", Text: "Hanok Seoul"},
	}
	if diff := cmp.Diff(want, docs); diff != "" {
		t.Errorf("documents mismatch (-want +got):\n%s", diff)
	}
}

type csvObjects map[string]string

func (f csvObjects) ListFiles(_ context.Context, _ string) ([]s3storage.StoredObject, error) {
	out := make([]s3storage.StoredObject, 0, len(f))
	for key := range f {
		out = append(out, s3storage.StoredObject{Key: key})
	}
	return out, nil
}

func (f csvObjects) DownloadFile(_ context.Context, key string) ([]byte, error) {
	return []byte(f[key]), nil
}

func TestIndexer_SplitModes(t *testing.T) {
	c := testComponents(t, &echoProvider{})
	c.Config.Embedding.ChunkSize, c.Config.Embedding.ChunkOverlap = 500, 50
	c.Config.Retrieval.ChunkSize, c.Config.Retrieval.ChunkOverlap = 200, 20
	c.Config.Embedding.Stopwords, c.Config.Retrieval.Stopwords = true, false

	text := strings.Repeat("a quiet guesthouse near the harbour, ", 30)

	dataset, stopwords, err := c.splitterFor(SplitDataset)
	require.NoError(t, err)
	assert.True(t, stopwords)
	longest := 0
	for _, chunk := range dataset.Split(text) {
		longest = max(longest, len(chunk))
	}
	assert.Greater(t, longest, 200)
	assert.LessOrEqual(t, longest, 500)

	notes, stopwords, err := c.splitterFor(SplitNotes)
	require.NoError(t, err)
	assert.False(t, stopwords)
	for _, chunk := range notes.Split(text) {
		assert.LessOrEqual(t, len(chunk), 200)
	}
}

func TestAnalyzeQuestion_RunsEveryAngle(t *testing.T) {
	provider := &echoProvider{reply: "  take the subway  "}
	c := testComponents(t, provider)

	answers, err := c.AnalyzeQuestion(context.Background(), "How to get to Gamcheon?", map[string]string{
		"logistics": "transport",
		"culture":   "history",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"logistics": "take the subway", "culture": "take the subway"}, answers)
	assert.Len(t, provider.seen, 2)
}
