package converter

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"image"
	"io"
	"strconv"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/net/html/charset"
)

// svgSize is the intrinsic size declared on the root element.
type svgSize struct {
	Width, Height float64
}

// inspectSVG checks that the root element is <svg> and derives its drawable
// size from width/height, falling back to the viewBox.
func inspectSVG(data []byte) (svgSize, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return svgSize{}, fmt.Errorf("%w: no root element", ErrInvalidSVG)
		}
		if err != nil {
			return svgSize{}, fmt.Errorf("%w: %v", ErrInvalidSVG, err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if se.Name.Local != "svg" {
			return svgSize{}, fmt.Errorf("%w: root element is <%s>", ErrInvalidSVG, se.Name.Local)
		}
		return sizeFromAttrs(se.Attr)
	}
}

func sizeFromAttrs(attrs []xml.Attr) (svgSize, error) {
	var w, h, vbW, vbH float64
	for _, a := range attrs {
		switch a.Name.Local {
		case "width":
			w = parseLength(a.Value)
		case "height":
			h = parseLength(a.Value)
		case "viewBox":
			fields := strings.FieldsFunc(a.Value, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' || r == '\n' })
			if len(fields) == 4 {
				vbW, _ = strconv.ParseFloat(fields[2], 64)
				vbH, _ = strconv.ParseFloat(fields[3], 64)
			}
		}
	}

	hasVB := vbW > 0 && vbH > 0
	switch {
	case w > 0 && h > 0:
	case w > 0 && hasVB:
		h = w * vbH / vbW
	case h > 0 && hasVB:
		w = h * vbW / vbH
	case hasVB:
		w, h = vbW, vbH
	default:
		return svgSize{}, fmt.Errorf("%w: no drawable dimensions", ErrInvalidSVG)
	}
	return svgSize{Width: w, Height: h}, nil
}

// parseLength accepts unitless and px lengths; relative units yield 0.
func parseLength(v string) float64 {
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0
	}
	return f
}

func (c *Converter) rasterize(data []byte) (image.Image, error) {
	size, err := inspectSVG(data)
	if err != nil {
		return nil, err
	}

	icon, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSVG, err)
	}
	if icon.ViewBox.W <= 0 || icon.ViewBox.H <= 0 {
		icon.ViewBox.X, icon.ViewBox.Y = 0, 0
		icon.ViewBox.W, icon.ViewBox.H = size.Width, size.Height
	}

	w, h := c.targetSize(size.Width, size.Height)
	icon.SetTarget(0, 0, float64(w), float64(h))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)
	return img, nil
}
