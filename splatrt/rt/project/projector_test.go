package project

import (
	"fmt"
	"sync"
	"testing"

	"github.com/gekko3d/gsplat/splatrt/rt/asset"
	"github.com/gekko3d/gsplat/splatrt/rt/compute"
	"github.com/gekko3d/gsplat/splatrt/rt/core"
	"github.com/gekko3d/gsplat/splatrt/rt/splat"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) DebugEnabled() bool    { return false }
func (l *recordingLogger) SetDebug(bool)         {}
func (l *recordingLogger) Debugf(string, ...any) {}
func (l *recordingLogger) Infof(string, ...any)  {}
func (l *recordingLogger) Warnf(string, ...any)  {}
func (l *recordingLogger) Errorf(f string, a ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, fmt.Sprintf(f, a...))
	l.mu.Unlock()
}

// camera at z=10 looking at the origin, 90 degree fov, 100x100 pixels:
// focal length 50 px, so a unit splat at the origin spans 5 px per sigma.
func testCamera(eye mgl32.Vec3) *core.Camera {
	view := mgl32.LookAtV(eye, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1, 0.1, 100)
	return core.NewCamera(view, proj, 100, 100)
}

func unitSplat(pos mgl32.Vec3) asset.Splat {
	return asset.Splat{
		Pos:   pos,
		Rot:   mgl32.QuatIdent(),
		Scale: mgl32.Vec3{1, 1, 1},
		Color: mgl32.Vec4{0.5, 0.25, 0.75, 0.8},
	}
}

func newStore(t *testing.T, logger *recordingLogger, splats ...asset.Splat) *splat.Store {
	t.Helper()
	a, err := asset.Build(splats, asset.BuildOptions{})
	require.NoError(t, err)
	var s *splat.Store
	if logger != nil {
		s = splat.NewStore("test", compute.NewDevice(2, nil), logger)
	} else {
		s = splat.NewStore("test", compute.NewDevice(2, nil), nil)
	}
	require.NoError(t, s.Load(a))
	return s
}

func TestCalcViewDataIsotropic(t *testing.T) {
	s := newStore(t, nil, unitSplat(mgl32.Vec3{}))
	p := NewProjector(nil)
	require.NoError(t, p.CalcViewData(s, testCamera(mgl32.Vec3{0, 0, 10})))

	v := s.ViewData[0]
	assert.InDelta(t, 10, v.Pos.W(), 1e-4)
	assert.InDelta(t, 0, v.Pos.X(), 1e-5)
	want := sqrt32(2 * (25 + lowPass))
	assert.InDelta(t, want, v.Axis1.Len(), 1e-3)
	assert.InDelta(t, want, v.Axis2.Len(), 1e-3)
	assert.InDelta(t, 0, v.Axis1.Dot(v.Axis2), 1e-3)

	c := v.RGBA()
	assertVec3Near(t, mgl32.Vec3{0.5, 0.25, 0.75}, c.Vec3(), 1e-3, "%v", c)
	assert.InDelta(t, 0.8, c.W(), 1e-3)
}

func TestCalcViewDataAnisotropic(t *testing.T) {
	sp := unitSplat(mgl32.Vec3{})
	sp.Scale = mgl32.Vec3{2, 0.5, 0.5}
	rotated := sp
	rotated.Rot = mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1})

	s := newStore(t, nil, sp, rotated)
	require.NoError(t, NewProjector(nil).CalcViewData(s, testCamera(mgl32.Vec3{0, 0, 10})))

	major := sqrt32(2 * (25*4 + lowPass))
	minor := sqrt32(2 * (25*0.25 + lowPass))

	v := s.ViewData[0]
	// rotations are stored quantised, so directions are only close
	assert.InDelta(t, major, abs32(v.Axis1.X()), 0.05)
	assert.InDelta(t, 0, v.Axis1.Y(), 0.1)
	assert.InDelta(t, minor, v.Axis2.Len(), 0.05)

	r := s.ViewData[1]
	assert.InDelta(t, major, abs32(r.Axis1.Y()), 0.05)
	assert.InDelta(t, 0, r.Axis1.X(), 0.1)
}

func TestCalcViewDataSplatScaleAndOpacity(t *testing.T) {
	sp := unitSplat(mgl32.Vec3{})
	bright := sp
	bright.Color = mgl32.Vec4{1, 1, 1, 5000}
	s := newStore(t, nil, sp, bright)
	s.Params.SplatScale = 2
	s.Params.OpacityScale = 20
	require.NoError(t, NewProjector(nil).CalcViewData(s, testCamera(mgl32.Vec3{0, 0, 10})))

	assert.InDelta(t, sqrt32(2*(25*4+lowPass)), s.ViewData[0].Axis1.Len(), 1e-2)
	assert.InDelta(t, 16, s.ViewData[0].RGBA().W(), 1e-2)
	assert.InDelta(t, MaxAlpha, s.ViewData[1].RGBA().W(), 32)
}

func TestCalcViewDataMasking(t *testing.T) {
	splats := []asset.Splat{
		unitSplat(mgl32.Vec3{-2, 0, 0}),
		unitSplat(mgl32.Vec3{0, 0, 0}),
		unitSplat(mgl32.Vec3{2, 0, 0}),
		unitSplat(mgl32.Vec3{0, 0, 20}),
	}
	s := newStore(t, nil, splats...)
	require.NoError(t, s.EnsureEditingBuffers())
	s.Deleted.Set(0, true)
	box := core.NewCutout(core.CutoutBox)
	box.Transform.Position = mgl32.Vec3{2, 0, 0}
	box.Transform.Scale = mgl32.Vec3{0.5, 0.5, 0.5}
	box.Invert = true
	s.Cutouts = []*core.Cutout{box}

	cam := testCamera(mgl32.Vec3{0, 0, 10})
	p := NewProjector(nil)
	require.NoError(t, p.CalcViewData(s, cam))

	assert.True(t, s.ViewData[0].Culled(), "deleted")
	assert.False(t, s.ViewData[1].Culled())
	assert.Equal(t, splat.ViewRecord{}, s.ViewData[2], "cut")

	behind := s.ViewData[3]
	assert.True(t, behind.Culled())
	assert.NotZero(t, behind.Pos.W())
	assert.Equal(t, mgl32.Vec2{}, behind.Axis1)
	assert.Equal(t, mgl32.Vec2{}, behind.Axis2)

	// a grid covering only x in [-1, 1) hides everything else unless ignored
	s.Cutouts = nil
	s.Deleted.Clear()
	s.Params.Grid = core.Grid{Corner: mgl32.Vec3{-1, -1, -1}, Width: 1, Height: 1, Depth: 1, CellSize: 2}
	s.Params.IgnoreGrid = false
	require.NoError(t, p.CalcViewData(s, cam))
	assert.True(t, s.ViewData[0].Culled())
	assert.False(t, s.ViewData[1].Culled())
	assert.True(t, s.ViewData[2].Culled())

	s.Params.IgnoreGrid = true
	require.NoError(t, p.CalcViewData(s, cam))
	assert.False(t, s.ViewData[0].Culled())
	assert.False(t, s.ViewData[2].Culled())
}

func TestCalcViewDataProxyCamera(t *testing.T) {
	sp := unitSplat(mgl32.Vec3{})
	sp.SH[1] = mgl32.Vec3{1, 1, 1}
	log := &recordingLogger{}
	s := newStore(t, log, sp)
	cam := testCamera(mgl32.Vec3{0, 0, 10})
	p := NewProjector(nil)

	require.NoError(t, p.CalcViewData(s, cam))
	front := s.ViewData[0].RGBA().X()

	s.Params.UseProxyCamera = true
	require.NoError(t, p.CalcViewData(s, cam))
	require.NoError(t, p.CalcViewData(s, cam))
	assert.Len(t, log.errors, 1, "missing proxy is reported once")
	assert.InDelta(t, front, s.ViewData[0].RGBA().X(), 1e-3)

	proxy := core.NewTransform()
	proxy.Position = mgl32.Vec3{0, 0, -10}
	s.Params.ProxyCamera = proxy
	require.NoError(t, p.CalcViewData(s, cam))
	back := s.ViewData[0].RGBA().X()
	assert.Greater(t, back, front)
	assert.InDelta(t, 10, s.ViewData[0].Pos.W(), 1e-4, "geometry still uses the render camera")
}

func TestCalcViewDataSkipsPreviewAndUnloaded(t *testing.T) {
	s := newStore(t, nil, unitSplat(mgl32.Vec3{}))
	cam := testCamera(mgl32.Vec3{0, 0, 10})
	cam.Preview = true
	require.NoError(t, NewProjector(nil).CalcViewData(s, cam))
	assert.Equal(t, splat.ViewRecord{}, s.ViewData[0])

	empty := splat.NewStore("empty", nil, nil)
	assert.ErrorIs(t, NewProjector(nil).CalcViewData(empty, testCamera(mgl32.Vec3{0, 0, 10})), splat.ErrNotRenderable)
}

func TestCalcViewDataInterpolatesSecondary(t *testing.T) {
	a := unitSplat(mgl32.Vec3{0, 0, 0})
	b := unitSplat(mgl32.Vec3{2, 0, 0})
	b.Color = mgl32.Vec4{1, 1, 1, 1}
	s := newStore(t, nil, a)
	sec, err := asset.Build([]asset.Splat{b}, asset.BuildOptions{})
	require.NoError(t, err)
	require.NoError(t, s.LoadSecondary(sec))

	cam := testCamera(mgl32.Vec3{0, 0, 10})
	p := NewProjector(nil)
	s.Params.InterpolationValue = 1
	require.NoError(t, p.CalcViewData(s, cam))
	atB := s.ViewData[0]

	ref := newStore(t, nil, b)
	require.NoError(t, p.CalcViewData(ref, cam))
	want := ref.ViewData[0].Pos
	assert.InDeltaSlice(t, want[:], atB.Pos[:], 1e-5)
	assert.Equal(t, ref.ViewData[0].Color, atB.Color)

	s.Params.InterpolationValue = 0.5
	require.NoError(t, p.CalcViewData(s, cam))
	mid := s.ViewData[0]
	assert.InDelta(t, 1, mid.Pos.X(), 1e-4)
	assert.InDelta(t, 10, mid.Pos.W(), 1e-4)
	assert.InDelta(t, 0.625, mid.RGBA().Y(), 1e-3)
}

func TestInterpolate(t *testing.T) {
	a := unitSplat(mgl32.Vec3{0, 0, 0})
	b := unitSplat(mgl32.Vec3{4, 0, 0})
	b.Rot = mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0})
	b.Scale = mgl32.Vec3{3, 3, 3}
	b.SH[4] = mgl32.Vec3{1, 0, 0}

	mid := Interpolate(&a, &b, 0.5)
	assert.Equal(t, mgl32.Vec3{2, 0, 0}, mid.Pos)
	assert.Equal(t, mgl32.Vec3{2, 2, 2}, mid.Scale)
	assert.Equal(t, mgl32.Vec3{0.5, 0, 0}, mid.SH[4])
	want := mgl32.QuatRotate(mgl32.DegToRad(45), mgl32.Vec3{0, 1, 0})
	assert.InDelta(t, 1, abs32(mid.Rot.Dot(want)), 1e-5)

	// antipodal representation of the same rotation takes the short path
	neg := b
	neg.Rot = b.Rot.Scale(-1)
	mid2 := Interpolate(&a, &neg, 0.5)
	assert.InDelta(t, 1, abs32(mid2.Rot.Dot(want)), 1e-5)

	assert.Equal(t, b.Pos, Interpolate(&a, &b, 3).Pos, "t is clamped")
}

func TestLerpViewData(t *testing.T) {
	a := []splat.ViewRecord{
		{Pos: mgl32.Vec4{0, 0, 0, 1}, Axis1: mgl32.Vec2{2, 0}, Color: core.PackHalfRGBA(mgl32.Vec4{0, 0, 0, 1})},
		{Pos: mgl32.Vec4{0, 0, 0, 1}},
	}
	b := []splat.ViewRecord{
		{Pos: mgl32.Vec4{1, 0, 0, 1}, Axis1: mgl32.Vec2{4, 0}, Color: core.PackHalfRGBA(mgl32.Vec4{1, 0.5, 0, 1})},
		{},
	}
	dst := make([]splat.ViewRecord, 2)
	LerpViewData(compute.NewDevice(1, nil), dst, a, b, 0.5)
	assert.Equal(t, mgl32.Vec4{0.5, 0, 0, 1}, dst[0].Pos)
	assert.Equal(t, mgl32.Vec2{3, 0}, dst[0].Axis1)
	assert.Equal(t, mgl32.Vec4{0.5, 0.25, 0, 1}, dst[0].RGBA())
	assert.True(t, dst[1].Culled())
}

func TestDecomposeCovariance(t *testing.T) {
	tests := []struct {
		name       string
		a, b, d    float32
		dir1       mgl32.Vec2
		len1, len2 float32
	}{
		{"x major", 8, 0, 2, mgl32.Vec2{1, 0}, 4, 2},
		{"y major", 2, 0, 8, mgl32.Vec2{0, 1}, 4, 2},
		{"diagonal", 5, 3, 5, mgl32.Vec2{0.70710677, 0.70710677}, 4, 2},
		{"isotropic", 2, 0, 2, mgl32.Vec2{1, 0}, 2, 2},
		{"capped", 1e9, 0, 1e9, mgl32.Vec2{1, 0}, MaxAxisLength, MaxAxisLength},
		{"minor floor", 8, 0, 0, mgl32.Vec2{1, 0}, 4, sqrt32(0.2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v1, v2 := DecomposeCovariance(tt.a, tt.b, tt.d)
			assert.InDelta(t, tt.len1, v1.Len(), 1e-3)
			assert.InDelta(t, tt.len2, v2.Len(), 1e-3)
			assert.InDelta(t, 1, abs32(v1.Normalize().Dot(tt.dir1)), 1e-5)
			assert.InDelta(t, 0, v1.Dot(v2), 1e-2)
		})
	}
}

// assertVec3Near compares component-wise with an absolute tolerance.
func assertVec3Near(t *testing.T, want, got mgl32.Vec3, delta float64, msgAndArgs ...any) bool {
	t.Helper()
	return assert.InDeltaSlice(t, want[:], got[:], delta, msgAndArgs...)
}
