package project

import (
	"math"

	"github.com/gekko3d/gsplat"
	"github.com/gekko3d/gsplat/splatrt/rt/asset"
	"github.com/gekko3d/gsplat/splatrt/rt/core"
	"github.com/gekko3d/gsplat/splatrt/rt/splat"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// MaxAxisLength caps the projected ellipse axes, in pixels.
	MaxAxisLength = 4096
	// MaxAlpha caps alpha after the opacity scale, below the half-float limit.
	MaxAlpha = 65000

	frustumGuard = 1.3
	lowPass      = 0.3
)

// Projector computes the per-frame view records of splat stores.
type Projector struct {
	log gsplat.Logger
}

func NewProjector(logger gsplat.Logger) *Projector {
	return &Projector{log: gsplat.OrNop(logger)}
}

// frame holds the per-dispatch constants of the view kernel.
type frame struct {
	mvp    mgl32.Mat4
	mv     mgl32.Mat4
	o2w    mgl32.Mat4
	mv3    mgl32.Mat3
	w2o3   mgl32.Mat3
	camPos mgl32.Vec3

	limX, limY     float32
	focalX, focalY float32

	params  core.RenderParams
	dimmers [4]float32
	grid    bool
	cuts    []core.CutoutData
}

func newFrame(s *splat.Store, cam *core.Camera, camPos mgl32.Vec3) *frame {
	o2w := s.Transform.ObjectToWorld()
	mv := cam.View.Mul4(o2w)
	p := cam.Proj
	f := &frame{
		mvp:    cam.ViewProj().Mul4(o2w),
		mv:     mv,
		o2w:    o2w,
		mv3:    mv.Mat3(),
		w2o3:   s.Transform.WorldToObject().Mat3(),
		camPos: camPos,
		params: s.Params,
		grid:   s.Params.Grid.Enabled() && !s.Params.IgnoreGrid,
		cuts:   s.CutoutData(),
	}
	if p.At(0, 0) != 0 {
		f.limX = frustumGuard / p.At(0, 0)
	}
	if p.At(1, 1) != 0 {
		f.limY = frustumGuard / p.At(1, 1)
	}
	f.focalX = float32(cam.Width) * p.At(0, 0) / 2
	f.focalY = float32(cam.Height) * p.At(1, 1) / 2
	f.dimmers = s.Params.Dimmers
	return f
}

// CalcViewData runs the view kernel of s for cam, overwriting s.ViewData.
// Preview cameras are ignored.
func (p *Projector) CalcViewData(s *splat.Store, cam *core.Camera) error {
	if cam == nil || cam.Preview {
		return nil
	}
	if !s.Renderable() {
		return splat.ErrNotRenderable
	}

	camPos := cam.Position
	if s.Params.UseProxyCamera {
		if s.Params.ProxyCamera == nil {
			s.ErrorOnce("proxy-camera", "%s: proxy camera enabled but not assigned, shading from the render camera", s.Name)
		} else {
			camPos = s.Params.ProxyCamera.Position
		}
	}
	f := newFrame(s, cam, camPos)

	layout := s.Layout()
	bufs := s.Buffers()
	sec := s.Secondary
	t := s.Params.InterpolationValue
	interp := sec != nil && t > 0
	del := s.Deleted
	out := s.ViewData

	s.Device().Dispatch("calc-view-data", s.Count(), func(i int) {
		if del != nil && del.Get(i) {
			out[i] = splat.ViewRecord{}
			return
		}
		sp := layout.Decode(bufs, i)
		if interp {
			other := sec.Layout.Decode(sec.Bufs, i)
			sp = Interpolate(&sp, &other, t)
		}
		out[i] = f.project(&sp)
	})
	return nil
}

func (f *frame) project(sp *asset.Splat) splat.ViewRecord {
	if len(f.cuts) > 0 && core.IsCut(f.cuts, sp.Pos) {
		return splat.ViewRecord{}
	}
	world := f.o2w.Mul4x1(sp.Pos.Vec4(1)).Vec3()
	if f.grid && f.params.Grid.CellIndex(world) < 0 {
		return splat.ViewRecord{}
	}

	var v splat.ViewRecord
	v.Pos = f.mvp.Mul4x1(sp.Pos.Vec4(1))
	if v.Pos.W() <= 0 {
		return v
	}

	scale := sp.Scale.Mul(f.params.SplatScale)
	a, b, d, ok := f.covariance2D(sp.Pos, covariance3D(sp.Rot, scale))
	if ok {
		v.Axis1, v.Axis2 = DecomposeCovariance(a, b, d)
	}

	dir := f.w2o3.Mul3x1(f.camPos.Sub(world))
	if l := dir.Len(); l > 0 {
		dir = dir.Mul(1 / l)
	}
	sh := core.SHBands{Base: sp.Color.Vec3(), Rest: sp.SH}
	col := core.ShadeSH(&sh, dir, f.params.SHOrder, f.params.SHOnly, f.dimmers)
	col = core.AdjustColor(col, f.params.Hue, f.params.Saturation, f.params.Brightness)
	alpha := min(sp.Color.W()*f.params.OpacityScale, MaxAlpha)
	v.Color = core.PackHalfRGBA(col.Vec4(alpha))
	return v
}

// covariance3D returns R*S*S*R^T for the splat's rotation and scale.
func covariance3D(rot mgl32.Quat, scale mgl32.Vec3) mgl32.Mat3 {
	m := rot.Normalize().Mat4().Mat3().Mul3(mgl32.Diag3(scale))
	return m.Mul3(m.Transpose())
}

// covariance2D projects the object-space covariance at pos into pixel
// space and returns its upper triangle.
func (f *frame) covariance2D(pos mgl32.Vec3, cov mgl32.Mat3) (a, b, d float32, ok bool) {
	vp := f.mv.Mul4x1(pos.Vec4(1)).Vec3()
	z := vp.Z()
	if abs32(z) < 1e-6 {
		return 0, 0, 0, false
	}
	x := mgl32.Clamp(vp.X()/z, -f.limX, f.limX) * z
	y := mgl32.Clamp(vp.Y()/z, -f.limY, f.limY) * z

	j := mgl32.Mat3FromRows(
		mgl32.Vec3{f.focalX / z, 0, -(f.focalX * x) / (z * z)},
		mgl32.Vec3{0, f.focalY / z, -(f.focalY * y) / (z * z)},
		mgl32.Vec3{},
	)
	t := j.Mul3(f.mv3)
	c := t.Mul3(cov).Mul3(t.Transpose())
	return c.At(0, 0) + lowPass, c.At(0, 1), c.At(1, 1) + lowPass, true
}

// DecomposeCovariance returns the major and minor axes of the ellipse of
// the 2x2 covariance [a b; b d], scaled to two standard deviations squared.
func DecomposeCovariance(a, b, d float32) (v1, v2 mgl32.Vec2) {
	mid := 0.5 * (a + d)
	radius := mgl32.Vec2{(a - d) / 2, b}.Len()
	l1 := mid + radius
	l2 := max(mid-radius, 0.1)

	diag := mgl32.Vec2{b, l1 - a}
	if diag.Len() < 1e-12 {
		if a >= d {
			diag = mgl32.Vec2{1, 0}
		} else {
			diag = mgl32.Vec2{0, 1}
		}
	}
	diag = diag.Normalize()
	v1 = diag.Mul(min(sqrt32(2*l1), MaxAxisLength))
	v2 = mgl32.Vec2{diag.Y(), -diag.X()}.Mul(min(sqrt32(2*l2), MaxAxisLength))
	return v1, v2
}

func sqrt32(v float32) float32 {
	return float32(math.Sqrt(float64(max(v, 0))))
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
