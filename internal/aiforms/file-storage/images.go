package filestorage

import (
	"bytes"
	"errors"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"github.com/gofrs/uuid"
	"github.com/nfnt/resize"
)

const (
	MaxImageSide  = 1280
	MaxUploadSize = 10 << 20

	ImagesPrefix = "images/"
)

var ErrUnsupportedImage = errors.New("unsupported image format")

// PrepareImage уменьшает картинку шаблона до MaxImageSide по большей стороне и перекодирует в JPEG.
// GIF сохраняется как есть, чтобы не потерять анимацию.
//
// Возвращает:
//   - []byte: данные для сохранения
//   - string: content type результата
//   - error: ErrUnsupportedImage, если данные не являются изображением
func PrepareImage(r io.Reader) ([]byte, string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return nil, "", err
	}
	if len(data) > MaxUploadSize {
		return nil, "", ErrUnsupportedImage
	}

	contentType := http.DetectContentType(data)
	switch contentType {
	case "image/gif":
		return data, contentType, nil
	case "image/jpeg", "image/png":
	default:
		return nil, "", ErrUnsupportedImage
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", ErrUnsupportedImage
	}
	thumb := resize.Thumbnail(MaxImageSide, MaxImageSide, img, resize.Lanczos3)

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, thumb, &jpeg.Options{Quality: 85}); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "image/jpeg", nil
}

// ImageName генерирует имя объекта для загруженной картинки
func ImageName(contentType string) string {
	ext := ".jpg"
	if contentType == "image/gif" {
		ext = ".gif"
	}
	return ImagesPrefix + uuid.Must(uuid.NewV4()).String() + ext
}
