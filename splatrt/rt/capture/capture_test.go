package capture

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/gekko3d/gsplat/splatrt/rt/core"
	"github.com/gekko3d/gsplat/splatrt/rt/gridstats"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func testImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x * 30), uint8(y * 60), 7, 255})
		}
	}
	return img
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"a.png", FormatPNG},
		{"dir/b.TIFF", FormatTIFF},
		{"c.tif", FormatTIFF},
		{"d.bmp", FormatBMP},
	}
	for _, tt := range tests {
		got, err := FormatFromPath(tt.path)
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
	_, err := FormatFromPath("e.jpg")
	assert.ErrorIs(t, err, ErrUnknownFormat)
	_, err = FormatFromPath("noext")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestEncodeRoundTrip(t *testing.T) {
	src := testImage()
	decoders := map[Format]func(*bytes.Reader) (image.Image, error){
		FormatTIFF: func(r *bytes.Reader) (image.Image, error) { return tiff.Decode(r) },
		FormatBMP:  func(r *bytes.Reader) (image.Image, error) { return bmp.Decode(r) },
	}
	for f, decode := range decoders {
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, src, f), f.String())
		img, err := decode(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err, f.String())
		r, g, b, _ := img.At(5, 2).RGBA()
		assert.Equal(t, []uint32{150, 120, 7}, []uint32{r >> 8, g >> 8, b >> 8}, f.String())
	}
	assert.ErrorIs(t, Encode(&bytes.Buffer{}, src, FormatNone), ErrUnknownFormat)
}

func TestSaveAndNextPath(t *testing.T) {
	dir := t.TempDir()
	p := NextPath(dir, "image", "png")
	assert.Equal(t, filepath.Join(dir, "image_0.png"), p)
	require.NoError(t, Save(p, testImage()))
	assert.Equal(t, filepath.Join(dir, "image_1.png"), NextPath(dir, "image", "png"))

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))

	assert.ErrorIs(t, Save(filepath.Join(dir, "x.gif"), testImage()), ErrUnknownFormat)
}

func TestGridLabels(t *testing.T) {
	grid := core.Grid{Corner: mgl32.Vec3{-1, -1, -0.5}, Width: 2, Height: 1, Depth: 1, CellSize: 1}
	st := &gridstats.Stats{Grid: grid, Cells: []gridstats.Cell{
		{Count: 3, Center: grid.CellCenter(0)},
		{Count: 0, Center: grid.CellCenter(1)},
	}}
	cam := core.NewCamera(
		mgl32.LookAtV(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}),
		mgl32.Perspective(mgl32.DegToRad(90), 1, 0.1, 100), 200, 200)

	labels := GridLabels(st, cam)
	require.Len(t, labels, 1)
	assert.Equal(t, "0:3", labels[0].Text)
	assert.Less(t, labels[0].X, 100, "cell 0 is left of centre")

	lb, err := NewLabeler(12)
	require.NoError(t, err)
	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	lb.Draw(img, labels)
	drawn := false
	for y := labels[0].Y - 10; y < labels[0].Y+10 && !drawn; y++ {
		for x := labels[0].X - 20; x < labels[0].X+20; x++ {
			if img.RGBAAt(x, y).A != 0 {
				drawn = true
				break
			}
		}
	}
	assert.True(t, drawn)
}
