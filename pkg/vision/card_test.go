package vision

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/tripmate/pkg/apperr"
	"github.com/ilkoid/tripmate/pkg/llm"
)

const cardReply = `{"name":"Hong Gildong","job":"Engineer","title":"CEO","phone":"000-0000-0000","email":"aaaa@aaaaa.com"}`

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

type recordingProvider struct {
	reply    string
	messages []llm.Message
	format   string
}

func (p *recordingProvider) Generate(_ context.Context, msgs []llm.Message, opts ...llm.GenerateOption) (llm.Message, error) {
	p.messages = msgs
	p.format = llm.ApplyOptions(opts...).Format
	return llm.Message{Role: llm.RoleAssistant, Content: p.reply}, nil
}

type fakeFetcher struct {
	data []byte
	uris []string
}

func (f *fakeFetcher) Fetch(_ context.Context, uri string) ([]byte, error) {
	f.uris = append(f.uris, uri)
	return f.data, nil
}

func TestCardReader_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "card.png")
	require.NoError(t, os.WriteFile(path, pngBytes(t, 400, 200), 0o644))

	provider := &recordingProvider{reply: cardReply}
	card, err := NewCardReader(provider, Config{MaxWidth: 100}).Read(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, Card{
		Name:  "Hong Gildong",
		Job:   "Engineer",
		Title: "CEO",
		Phone: "000-0000-0000",
		Email: "aaaa@aaaaa.com",
	}, card)
	assert.Equal(t, llm.FormatJSONObject, provider.format)

	last := provider.messages[len(provider.messages)-1]
	assert.Equal(t, llm.RoleUser, last.Role)
	require.Len(t, last.Images, 1)
	assert.True(t, strings.HasPrefix(last.Images[0], "data:image/jpeg;base64,"))
}

func TestCardReader_S3AndURL(t *testing.T) {
	ctx := context.Background()

	fetcher := &fakeFetcher{data: pngBytes(t, 10, 10)}
	provider := &recordingProvider{reply: cardReply}
	r := NewCardReader(provider, Config{S3: fetcher})

	_, err := r.Read(ctx, "s3://cards/kim.png")
	require.NoError(t, err)
	assert.Equal(t, []string{"s3://cards/kim.png"}, fetcher.uris)

	_, err = r.Read(ctx, "https://example.com/card.webp")
	require.NoError(t, err)
	last := provider.messages[len(provider.messages)-1]
	assert.Equal(t, []string{"https://example.com/card.webp"}, last.Images)

	_, err = NewCardReader(provider, Config{}).Read(ctx, "s3://cards/kim.png")
	assert.Error(t, err)
}

func TestCardReader_StrictJSON(t *testing.T) {
	ctx := context.Background()
	img := pngBytes(t, 10, 10)

	tests := []struct {
		name  string
		reply string
	}{
		{name: "not json", reply: "Name: Hong Gildong"},
		{name: "missing field", reply: `{"name":"Hong","job":"","title":"","phone":""}`},
		{name: "nothing recognised", reply: `{"name":"","job":"x","title":"","phone":"","email":""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewCardReader(&recordingProvider{reply: tt.reply}, Config{})
			_, err := r.ReadBytes(ctx, img)
			assert.ErrorIs(t, err, apperr.ErrParseFailure)
		})
	}

	t.Run("empty optional fields are fine", func(t *testing.T) {
		r := NewCardReader(&recordingProvider{reply: `{"name":"Hong","job":"","title":"","phone":"","email":""}`}, Config{})
		card, err := r.ReadBytes(ctx, img)
		require.NoError(t, err)
		assert.Equal(t, "Hong", card.Name)
	})
}

func TestCardReader_BadInput(t *testing.T) {
	r := NewCardReader(&recordingProvider{reply: cardReply}, Config{})

	_, err := r.Read(context.Background(), "")
	assert.Error(t, err)

	_, err = r.Read(context.Background(), filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)

	_, err = r.ReadBytes(context.Background(), []byte("not an image"))
	assert.Error(t, err)
}

func TestCard_String(t *testing.T) {
	s := Card{Name: "Hong", Email: "h@x.kr"}.String()
	assert.Contains(t, s, "Name:  Hong")
	assert.Contains(t, s, "Email: h@x.kr")
}
