package converter

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/qrdrop/config"
)

const qrSVG = `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="21" height="21" viewBox="0 0 21 21">
  <rect x="0" y="0" width="21" height="21" fill="#ffffff"/>
  <rect x="0" y="0" width="7" height="7" fill="#000000"/>
  <rect x="14" y="0" width="7" height="7" fill="#000000"/>
  <rect x="0" y="14" width="7" height="7" fill="#000000"/>
</svg>`

func convert(t *testing.T, c *Converter, input string) image.Image {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, c.ToPNG(context.Background(), strings.NewReader(input), &out))
	img, err := png.Decode(&out)
	require.NoError(t, err, "output must be a valid PNG")
	return img
}

func TestToPNG_SVGIntrinsicSize(t *testing.T) {
	img := convert(t, New(Options{}), qrSVG)

	assert.Equal(t, 21, img.Bounds().Dx())
	assert.Equal(t, 21, img.Bounds().Dy())

	r, g, b, a := img.At(2, 2).RGBA()
	assert.Equal(t, [4]uint32{0, 0, 0, 0xffff}, [4]uint32{r, g, b, a}, "finder pattern must be black")
	r, g, b, _ = img.At(10, 10).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{r, g, b}, "quiet area must be white")
}

func TestToPNG_SVGScaledToMinSize(t *testing.T) {
	img := convert(t, New(Options{MinSize: 210}), qrSVG)

	assert.Equal(t, 210, img.Bounds().Dx())
	assert.Equal(t, 210, img.Bounds().Dy())
	r, _, _, _ := img.At(20, 20).RGBA()
	assert.Zero(t, r, "scaled finder pattern must stay black")
}

func TestToPNG_SVGCappedAtMaxSize(t *testing.T) {
	svg := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 1000 500"><rect width="1000" height="500"/></svg>`
	img := convert(t, New(Options{MaxSize: 100}), svg)

	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestTargetSize_HardCap(t *testing.T) {
	for _, limit := range []int{0, -5, config.MaxQRSize * 4} {
		w, h := New(Options{MaxSize: limit}).targetSize(100000, 50000)
		assert.Equal(t, config.MaxQRSize, w, "MaxSize %d", limit)
		assert.Equal(t, config.MaxQRSize/2, h, "MaxSize %d", limit)
	}

	w, h := New(Options{}).targetSize(21, 21)
	assert.Equal(t, [2]int{21, 21}, [2]int{w, h}, "small documents keep their size")
}

func TestDecode_HugeSVGStaysBounded(t *testing.T) {
	svg := `<svg xmlns="http://www.w3.org/2000/svg" width="100000" height="100000"><rect width="100000" height="100000"/></svg>`
	img, err := New(Options{MaxSize: 64}).Decode([]byte(svg))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 64, img.Bounds().Dy())
}

func TestToPNG_RasterInput(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	src.Set(1, 1, color.NRGBA{R: 255, A: 255})
	var in bytes.Buffer
	require.NoError(t, png.Encode(&in, src))

	img := convert(t, New(Options{}), in.String())

	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())
	r, g, _, _ := img.At(1, 1).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Zero(t, g)
}

func TestToPNG_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{name: "plain text", input: "this is not an image", want: ErrUnsupportedInput},
		{name: "empty", input: "", want: ErrUnsupportedInput},
		{name: "html document", input: "<html><body>hi</body></html>", want: ErrInvalidSVG},
		{name: "truncated svg", input: `<svg xmlns="http://www.w3.org/2000/svg" width="10"`, want: ErrInvalidSVG},
		{name: "svg without dimensions", input: `<svg xmlns="http://www.w3.org/2000/svg"><rect width="5" height="5"/></svg>`, want: ErrInvalidSVG},
		{name: "svg with relative dimensions only", input: `<svg width="100%" height="100%"></svg>`, want: ErrInvalidSVG},
	}

	c := New(Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := c.ToPNG(context.Background(), strings.NewReader(tt.input), &out)
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, out.Len(), "nothing may be written on failure")
		})
	}
}

func TestToPNG_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New(Options{}).ToPNG(ctx, strings.NewReader(qrSVG), &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInspectSVG_Dimensions(t *testing.T) {
	tests := []struct {
		name string
		svg  string
		w, h float64
	}{
		{name: "width and height", svg: `<svg width="40" height="20"/>`, w: 40, h: 20},
		{name: "px units", svg: `<svg width="40px" height="20px"/>`, w: 40, h: 20},
		{name: "viewBox only", svg: `<svg viewBox="0 0 33 33"/>`, w: 33, h: 33},
		{name: "comma viewBox", svg: `<svg viewBox="0,0,50,25"/>`, w: 50, h: 25},
		{name: "width with viewBox aspect", svg: `<svg width="100" viewBox="0 0 50 25"/>`, w: 100, h: 50},
		{name: "leading comment", svg: `<!-- generated --><svg width="8" height="8"/>`, w: 8, h: 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size, err := inspectSVG([]byte(tt.svg))
			require.NoError(t, err)
			assert.InDelta(t, tt.w, size.Width, 1e-9)
			assert.InDelta(t, tt.h, size.Height, 1e-9)
		})
	}
}

func TestParseCompression(t *testing.T) {
	assert.Equal(t, png.BestCompression, ParseCompression("best"))
	assert.Equal(t, png.BestSpeed, ParseCompression("FAST"))
	assert.Equal(t, png.NoCompression, ParseCompression("none"))
	assert.Equal(t, png.DefaultCompression, ParseCompression(""))
}
