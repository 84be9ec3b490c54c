// Package imaging prepares reference images for inline upload.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
)

// Image is an encoded image ready to attach to a request.
type Image struct {
	Data     []byte
	MIMEType string
}

// MIMEType guesses a mime type from a filename extension.
func MIMEType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".svg":
		return "image/svg+xml"
	default:
		return "image/png"
	}
}

// Load reads path and shrinks it so neither side exceeds maxSide pixels.
// Vector and undecodable files are passed through untouched.
func Load(path string, maxSide int) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("failed to read image %s: %w", path, err)
	}
	return Fit(data, MIMEType(path), maxSide)
}

// Fit shrinks encoded image data to fit within maxSide, preserving aspect
// ratio. Images already small enough keep their original bytes.
func Fit(data []byte, mimeType string, maxSide int) (Image, error) {
	orig := Image{Data: data, MIMEType: mimeType}
	if mimeType == "image/svg+xml" || maxSide <= 0 {
		return orig, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return orig, nil
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxSide && h <= maxSide {
		return orig, nil
	}

	nw, nh := maxSide, maxSide
	if w >= h {
		nh = max(1, h*maxSide/w)
	} else {
		nw = max(1, w*maxSide/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return Image{}, fmt.Errorf("failed to encode resized image: %w", err)
	}
	return Image{Data: buf.Bytes(), MIMEType: "image/png"}, nil
}

// Size decodes just the header of data and returns its dimensions.
func Size(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
