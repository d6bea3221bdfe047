package render

import (
	"image"
	"image/color"
	"math"

	"github.com/gekko3d/gsplat/splatrt/rt/core"
	"github.com/gekko3d/gsplat/splatrt/rt/splat"
	"github.com/go-gl/mathgl/mgl32"
)

// minAlpha is the footprint alpha below which a fragment is discarded.
const minAlpha = 1.0 / 255

// SoftwareTarget rasterises draw calls on the CPU into a float RGBA
// accumulation buffer and composites it onto an RGBA image.
type SoftwareTarget struct {
	Background color.RGBA

	width, height int
	accum         []mgl32.Vec4 // premultiplied
	img           *image.RGBA
}

func NewSoftwareTarget() *SoftwareTarget {
	return &SoftwareTarget{Background: color.RGBA{A: 255}}
}

// Image is the last composited frame.
func (t *SoftwareTarget) Image() *image.RGBA { return t.img }

// Accum returns the premultiplied intermediate colour of pixel (x, y),
// with y growing downward.
func (t *SoftwareTarget) Accum(x, y int) mgl32.Vec4 {
	return t.accum[y*t.width+x]
}

func (t *SoftwareTarget) BeginFrame(cam *core.Camera) error {
	if cam.Width <= 0 || cam.Height <= 0 {
		return ErrResourcesMissing
	}
	if cam.Width != t.width || cam.Height != t.height {
		t.width, t.height = cam.Width, cam.Height
		t.accum = make([]mgl32.Vec4, t.width*t.height)
		t.img = image.NewRGBA(image.Rect(0, 0, t.width, t.height))
	}
	for i := range t.accum {
		t.accum[i] = mgl32.Vec4{}
	}
	return nil
}

func (t *SoftwareTarget) Draw(dc *DrawCall) error {
	if dc.Mode == core.DisplayDebugChunkBounds {
		t.drawChunks(dc)
		return nil
	}
	for _, idx := range dc.Order {
		if int(idx) >= len(dc.View) {
			continue
		}
		v := &dc.View[idx]
		if v.Culled() {
			continue
		}
		switch dc.Mode {
		case core.DisplayDebugPoints:
			t.drawPoint(v, dc.PointSize, v.RGBA().Vec3().Vec4(1))
		case core.DisplayDebugPointIndices:
			t.drawPoint(v, dc.PointSize, indexColor(idx))
		case core.DisplayDebugBoxes:
			t.drawBox(v)
		default:
			t.drawSplat(v)
		}
	}
	return nil
}

// center returns the pixel position of a record with y up.
func (t *SoftwareTarget) center(v *splat.ViewRecord) (float32, float32) {
	w := v.Pos.W()
	return (v.Pos.X()/w*0.5 + 0.5) * float32(t.width), (v.Pos.Y()/w*0.5 + 0.5) * float32(t.height)
}

// blend composites a premultiplied-by-alpha fragment over pixel (x, yUp).
func (t *SoftwareTarget) blend(x, yUp int, rgb mgl32.Vec3, alpha float32) {
	if x < 0 || yUp < 0 || x >= t.width || yUp >= t.height {
		return
	}
	i := (t.height-1-yUp)*t.width + x
	dst := t.accum[i]
	k := 1 - alpha
	t.accum[i] = mgl32.Vec4{
		rgb.X()*alpha + dst.X()*k,
		rgb.Y()*alpha + dst.Y()*k,
		rgb.Z()*alpha + dst.Z()*k,
		alpha + dst.W()*k,
	}
}

func (t *SoftwareTarget) drawSplat(v *splat.ViewRecord) {
	cx, cy := t.center(v)
	a1, a2 := v.Axis1, v.Axis2
	l1, l2 := a1.Dot(a1), a2.Dot(a2)
	if l1 <= 0 || l2 <= 0 {
		return
	}
	col := v.RGBA()
	r := 2 * float32(math.Sqrt(float64(max(l1, l2))))
	x0, x1 := int(math.Floor(float64(cx-r))), int(math.Ceil(float64(cx+r)))
	y0, y1 := int(math.Floor(float64(cy-r))), int(math.Ceil(float64(cy+r)))
	x0, y0 = max(x0, 0), max(y0, 0)
	x1, y1 = min(x1, t.width-1), min(y1, t.height-1)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			o := mgl32.Vec2{float32(x) + 0.5 - cx, float32(y) + 0.5 - cy}
			u, w := o.Dot(a1)/l1, o.Dot(a2)/l2
			power := u*u + w*w
			if power > 4 {
				continue
			}
			alpha := min(float32(math.Exp(float64(-power)))*col.W(), 1)
			if alpha < minAlpha {
				continue
			}
			t.blend(x, y, col.Vec3(), alpha)
		}
	}
}

func (t *SoftwareTarget) drawPoint(v *splat.ViewRecord, size float32, c mgl32.Vec4) {
	cx, cy := t.center(v)
	h := max(size, 1) / 2
	t.fillRect(cx-h, cy-h, cx+h, cy+h, c.Vec3(), c.W())
}

// drawBox fills the bounding rectangle of the splat's two-sigma ellipse.
func (t *SoftwareTarget) drawBox(v *splat.ViewRecord) {
	cx, cy := t.center(v)
	ex := 2 * (abs32(v.Axis1.X()) + abs32(v.Axis2.X()))
	ey := 2 * (abs32(v.Axis1.Y()) + abs32(v.Axis2.Y()))
	c := v.RGBA()
	a := mgl32.Clamp(c.W(), 0, 1)
	t.fillRect(cx-ex, cy-ey, cx+ex, cy+ey, c.Vec3(), a)
}

// fillRect blends the pixels of [x0,x1) x [y0,y1) that lie on the target.
func (t *SoftwareTarget) fillRect(x0, y0, x1, y1 float32, rgb mgl32.Vec3, a float32) {
	ix0 := int(max(math.Floor(float64(x0)), 0))
	iy0 := int(max(math.Floor(float64(y0)), 0))
	ix1 := int(min(math.Ceil(float64(x1)), float64(t.width)))
	iy1 := int(min(math.Ceil(float64(y1)), float64(t.height)))
	for y := iy0; y < iy1; y++ {
		for x := ix0; x < ix1; x++ {
			t.blend(x, y, rgb, a)
		}
	}
}

// drawChunks outlines the screen rectangle of every chunk's position box.
func (t *SoftwareTarget) drawChunks(dc *DrawCall) {
	for i := range dc.Chunks {
		b := dc.Chunks[i].Bounds()
		minX, minY := float32(math.Inf(1)), float32(math.Inf(1))
		maxX, maxY := float32(math.Inf(-1)), float32(math.Inf(-1))
		visible := false
		for k := 0; k < 8; k++ {
			p := mgl32.Vec3{b[k&1].X(), b[(k>>1)&1].Y(), b[(k>>2)&1].Z()}
			clip := dc.MVP.Mul4x1(p.Vec4(1))
			if clip.W() <= 0 {
				continue
			}
			visible = true
			x, y := t.center(&splat.ViewRecord{Pos: clip})
			minX, minY = min(minX, x), min(minY, y)
			maxX, maxY = max(maxX, x), max(maxY, y)
		}
		if !visible {
			continue
		}
		c := indexColor(uint32(i)).Vec3()
		x0, x1 := int(minX), int(maxX)
		y0, y1 := int(minY), int(maxY)
		for x := x0; x <= x1; x++ {
			t.blend(x, y0, c, 1)
			t.blend(x, y1, c, 1)
		}
		for y := y0; y <= y1; y++ {
			t.blend(x0, y, c, 1)
			t.blend(x1, y, c, 1)
		}
	}
}

// Composite resolves the accumulation buffer over Background into Image.
func (t *SoftwareTarget) Composite() error {
	if t.img == nil {
		return ErrResourcesMissing
	}
	bg := mgl32.Vec3{float32(t.Background.R), float32(t.Background.G), float32(t.Background.B)}.Mul(1.0 / 255)
	for i, a := range t.accum {
		k := 1 - a.W()
		c := a.Vec3().Add(bg.Mul(k))
		o := i * 4
		t.img.Pix[o] = toByte(c.X())
		t.img.Pix[o+1] = toByte(c.Y())
		t.img.Pix[o+2] = toByte(c.Z())
		t.img.Pix[o+3] = 255
	}
	return nil
}

func toByte(v float32) uint8 {
	return uint8(mgl32.Clamp(v, 0, 1)*255 + 0.5)
}

// indexColor gives each index a stable, distinguishable colour.
func indexColor(i uint32) mgl32.Vec4 {
	h := i * 2654435761
	return core.HSVToRGB(float32(h>>8&0xFFFF)/65536, 0.8, 1).Vec4(1)
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
