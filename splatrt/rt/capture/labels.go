package capture

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/gekko3d/gsplat/splatrt/rt/core"
	"github.com/gekko3d/gsplat/splatrt/rt/gridstats"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Label is a line of text anchored at a pixel, top-left origin.
type Label struct {
	X, Y  int
	Text  string
	Color color.Color
}

// Labeler draws text labels onto captured frames.
type Labeler struct {
	Face font.Face
}

func NewLabeler(size float64) (*Labeler, error) {
	f, err := opentype.Parse(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create face: %w", err)
	}
	return &Labeler{Face: face}, nil
}

// Draw renders labels onto img, centred on their anchors.
func (l *Labeler) Draw(img draw.Image, labels []Label) {
	d := &font.Drawer{Dst: img, Face: l.Face}
	ascent := l.Face.Metrics().Ascent
	for _, lb := range labels {
		c := lb.Color
		if c == nil {
			c = color.White
		}
		d.Src = image.NewUniform(c)
		w := d.MeasureString(lb.Text)
		d.Dot = fixed.Point26_6{
			X: fixed.I(lb.X) - w/2,
			Y: fixed.I(lb.Y) + ascent/2,
		}
		d.DrawString(lb.Text)
	}
}

// GridLabels places an "index:count" label on every non-empty cell centre
// visible from cam.
func GridLabels(st *gridstats.Stats, cam *core.Camera) []Label {
	vp := cam.ViewProj()
	var out []Label
	for i, c := range st.Cells {
		if c.Count == 0 {
			continue
		}
		clip := vp.Mul4x1(c.Center.Vec4(1))
		if clip.W() <= 0 {
			continue
		}
		x := (clip.X()/clip.W()*0.5 + 0.5) * float32(cam.Width)
		y := (0.5 - clip.Y()/clip.W()*0.5) * float32(cam.Height)
		if x < 0 || y < 0 || x >= float32(cam.Width) || y >= float32(cam.Height) {
			continue
		}
		g := core.Gradient(float32(c.Count), 0, float32(maxCount(st)))
		out = append(out, Label{
			X:     int(x),
			Y:     int(y),
			Text:  fmt.Sprintf("%d:%d", i, c.Count),
			Color: color.RGBA{uint8(g.X() * 255), uint8(g.Y() * 255), 0, 255},
		})
	}
	return out
}

func maxCount(st *gridstats.Stats) int {
	m := 0
	for _, c := range st.Cells {
		m = max(m, c.Count)
	}
	return m
}
