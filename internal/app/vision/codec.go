// Package vision turns data-URI video frames into images and back, and
// runs them through a core.FrameAnnotator.
package vision

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	// registered decoders
	_ "image/gif"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"

	"github.com/dkeye/VideoChat/internal/core"
)

const dataURIPrefix = "data:"

var supportedTypes = []string{"image/jpeg", "image/png", "image/gif"}

// ParseDataURI splits "data:image/<fmt>;base64,<payload>" into its media
// type and decoded bytes.
func ParseDataURI(uri string) (string, []byte, error) {
	if !strings.HasPrefix(uri, dataURIPrefix) {
		return "", nil, fmt.Errorf("%w: missing data scheme", core.ErrFrameDecode)
	}
	header, payload, ok := strings.Cut(uri[len(dataURIPrefix):], ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing payload separator", core.ErrFrameDecode)
	}
	mediaType, enc, ok := strings.Cut(header, ";")
	if !ok || enc != "base64" {
		return "", nil, fmt.Errorf("%w: payload is not base64", core.ErrFrameDecode)
	}
	if !strings.HasPrefix(mediaType, "image/") {
		return "", nil, fmt.Errorf("%w: media type %q", core.ErrFrameDecode, mediaType)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", core.ErrFrameDecode, err)
	}
	if len(raw) == 0 {
		return "", nil, fmt.Errorf("%w: empty payload", core.ErrFrameDecode)
	}
	return mediaType, raw, nil
}

// CheckImage sniffs the real content type and reads only the image header.
// The declared media type is not trusted. Images with more than maxPixels
// pixels are rejected; maxPixels <= 0 disables the check.
func CheckImage(raw []byte, maxPixels int) (image.Config, string, error) {
	mt := mimetype.Detect(raw)
	if !mimetype.EqualsAny(mt.String(), supportedTypes...) {
		return image.Config{}, "", fmt.Errorf("%w: unsupported content %s", core.ErrFrameDecode, mt.String())
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return image.Config{}, "", fmt.Errorf("%w: %v", core.ErrFrameDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return image.Config{}, "", fmt.Errorf("%w: empty image %dx%d", core.ErrFrameDecode, cfg.Width, cfg.Height)
	}
	if maxPixels > 0 && cfg.Width > maxPixels/cfg.Height {
		return image.Config{}, "", fmt.Errorf("%w: %dx%d exceeds %d pixels", core.ErrFrameDecode, cfg.Width, cfg.Height, maxPixels)
	}
	return cfg, mt.String(), nil
}

// DecodeImage runs CheckImage and then decodes the pixels.
func DecodeImage(raw []byte, maxPixels int) (image.Image, string, error) {
	_, mt, err := CheckImage(raw, maxPixels)
	if err != nil {
		return nil, "", err
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", core.ErrFrameDecode, err)
	}
	return img, mt, nil
}

// EncodeDataURI renders img as a JPEG data URI.
func EncodeDataURI(img image.Image, quality int) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrFrameEncode, err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
