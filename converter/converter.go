// Package converter turns uploaded QR-code images into PNG files.
//
// SVG documents are rasterized with oksvg; anything else is handed to
// imaging, which understands PNG, JPEG, GIF, BMP and TIFF.
package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/cppla/qrdrop/config"
)

var (
	// ErrUnsupportedInput is returned for bytes that are neither SVG nor a known raster format.
	ErrUnsupportedInput = errors.New("converter: unsupported input")
	// ErrInvalidSVG is returned for XML that is not a drawable SVG document.
	ErrInvalidSVG = errors.New("converter: invalid svg")
)

// Options controls the rendered size and PNG compression.
type Options struct {
	// MinSize scales small SVGs up so their shorter side reaches it. 0 keeps the intrinsic size.
	MinSize int
	// MaxSize caps the longer side of rendered SVGs. Values outside
	// 1..config.MaxQRSize fall back to config.MaxQRSize.
	MaxSize     int
	Compression png.CompressionLevel
}

// OptionsFromConfig maps the qrcode section of the configuration.
func OptionsFromConfig(c config.AppConfig) Options {
	return Options{
		MinSize:     c.QRMinSize,
		MaxSize:     c.QRMaxSize,
		Compression: ParseCompression(c.QRCompression),
	}
}

// ParseCompression maps "none", "fast", "best" and "default" to PNG levels.
func ParseCompression(s string) png.CompressionLevel {
	switch strings.ToLower(s) {
	case "none":
		return png.NoCompression
	case "fast", "speed":
		return png.BestSpeed
	case "best":
		return png.BestCompression
	default:
		return png.DefaultCompression
	}
}

type Converter struct {
	opts Options
}

func New(opts Options) *Converter {
	return &Converter{opts: opts}
}

// ToPNG decodes src and writes it to dst as PNG.
func (c *Converter) ToPNG(ctx context.Context, src io.Reader, dst io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}

	img, err := c.Decode(data)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := imaging.Encode(dst, img, imaging.PNG, imaging.PNGCompressionLevel(c.opts.Compression)); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// Decode turns SVG or raster bytes into an image.
func (c *Converter) Decode(data []byte) (image.Image, error) {
	if looksLikeXML(data) {
		return c.rasterize(data)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedInput, err)
	}
	return img, nil
}

// targetSize scales the intrinsic size into [MinSize, MaxSize].
func (c *Converter) targetSize(w, h float64) (int, int) {
	scale := 1.0
	if short := math.Min(w, h); c.opts.MinSize > 0 && short < float64(c.opts.MinSize) {
		scale = float64(c.opts.MinSize) / short
	}
	limit := c.opts.MaxSize
	if limit <= 0 || limit > config.MaxQRSize {
		limit = config.MaxQRSize
	}
	if long := math.Max(w, h) * scale; long > float64(limit) {
		scale *= float64(limit) / long
	}
	return max(1, int(math.Round(w*scale))), max(1, int(math.Round(h*scale)))
}

func looksLikeXML(data []byte) bool {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	data = bytes.TrimLeft(data, " \t\r\n")
	return len(data) > 0 && data[0] == '<'
}
