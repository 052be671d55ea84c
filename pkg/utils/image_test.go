package utils

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngFixture(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestResizeImage_Downscales(t *testing.T) {
	out, err := ResizeImage(pngFixture(t, 200, 100), 50, 85)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 50, img.Bounds().Dx())
	assert.Equal(t, 25, img.Bounds().Dy())
}

func TestResizeImage_KeepsSmallImage(t *testing.T) {
	out, err := ResizeImage(pngFixture(t, 40, 30), 800, 85)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
}

func TestResizeImage_RejectsGarbage(t *testing.T) {
	_, err := ResizeImage([]byte("not an image"), 100, 85)
	assert.Error(t, err)
}

func TestToDataURI(t *testing.T) {
	uri := ToDataURI(pngFixture(t, 2, 2))
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"), uri)
}
