package utils

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // регистрируем PNG декодер
	"net/http"

	"github.com/nfnt/resize"
)

// ResizeImage уменьшает изображение до maxWidth, сохраняя пропорции, и кодирует в JPEG.
//
//   - maxWidth <= 0 или изображение уже уже maxWidth: только перекодирование в JPEG.
//   - quality: качество JPEG (1-100).
func ResizeImage(data []byte, maxWidth int, quality int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	if maxWidth > 0 && bounds.Dx() > maxWidth {
		height := uint(float64(maxWidth) * float64(bounds.Dy()) / float64(bounds.Dx()))
		img = resize.Resize(uint(maxWidth), height, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// ToDataURI кодирует байты изображения в data URI (data:image/jpeg;base64,...).
//
// MIME тип определяется по содержимому.
func ToDataURI(data []byte) string {
	mime := http.DetectContentType(data)
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
}
