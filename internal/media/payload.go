package media

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrInvalidPayload is returned for avatar data that is not a supported image
var ErrInvalidPayload = errors.New("invalid avatar payload")

// MaxAvatarPixels bounds the declared size of an image accepted for scaling
const MaxAvatarPixels = 4096 * 4096

// Payload is raw avatar data as submitted by a client
type Payload struct {
	Data        []byte
	ContentType string
}

// DecodeDataURI parses a data:<mime>;base64,<data> value
func DecodeDataURI(value string) (*Payload, error) {
	rest, ok := strings.CutPrefix(value, "data:")
	if !ok {
		return nil, fmt.Errorf("%w: not a data URI", ErrInvalidPayload)
	}
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("%w: missing data", ErrInvalidPayload)
	}
	contentType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return nil, fmt.Errorf("%w: data URI must be base64 encoded", ErrInvalidPayload)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty data", ErrInvalidPayload)
	}

	return &Payload{Data: data, ContentType: contentType}, nil
}

// ReadPayload reads an uploaded file. The content type is sniffed when not given.
func ReadPayload(r io.Reader, contentType string) (*Payload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read avatar: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidPayload)
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return &Payload{Data: data, ContentType: contentType}, nil
}

// Scale resizes the image to width keeping its aspect ratio.
// JPEG input stays JPEG, everything else is encoded as PNG.
func Scale(p *Payload, width int) (*Payload, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(p.Data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("%w: empty image", ErrInvalidPayload)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxAvatarPixels {
		return nil, "", fmt.Errorf("%w: image of %dx%d is too large", ErrInvalidPayload, cfg.Width, cfg.Height)
	}

	src, format, err := image.Decode(bytes.NewReader(p.Data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	bounds := src.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, "", fmt.Errorf("%w: empty image", ErrInvalidPayload)
	}
	height := bounds.Dy() * width / bounds.Dx()
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90}); err != nil {
			return nil, "", fmt.Errorf("failed to encode avatar: %w", err)
		}
		return &Payload{Data: buf.Bytes(), ContentType: "image/jpeg"}, ".jpg", nil
	default:
		if err := png.Encode(&buf, dst); err != nil {
			return nil, "", fmt.Errorf("failed to encode avatar: %w", err)
		}
		return &Payload{Data: buf.Bytes(), ContentType: "image/png"}, ".png", nil
	}
}
