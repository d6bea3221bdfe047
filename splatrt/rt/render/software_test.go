package render

import (
	"image/color"
	"testing"

	"github.com/gekko3d/gsplat/splatrt/rt/asset"
	"github.com/gekko3d/gsplat/splatrt/rt/compute"
	"github.com/gekko3d/gsplat/splatrt/rt/core"
	"github.com/gekko3d/gsplat/splatrt/rt/splat"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSoftwareTargetDrawsSplat(t *testing.T) {
	dev := compute.NewDevice(2, nil)
	c := NewCoordinator(dev, nil)
	require.NoError(t, c.Register(newStore(t, dev, "one", asset.BuildOptions{}, ball(mgl32.Vec3{}, red))))

	target := NewSoftwareTarget()
	require.NoError(t, c.Render(lookAt(mgl32.Vec3{0, 0, 10}), target))
	img := target.Image()
	require.NotNil(t, img)
	assert.Equal(t, 100, img.Bounds().Dx())

	center := img.RGBAAt(50, 50)
	assert.Greater(t, center.R, uint8(200))
	assert.Less(t, center.G, uint8(10))
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, img.RGBAAt(50, 20), "outside two sigma")
}

func TestSoftwareTargetBlendsBackToFront(t *testing.T) {
	dev := compute.NewDevice(2, nil)
	c := NewCoordinator(dev, nil)
	green := mgl32.Vec4{0, 1, 0, 1}
	// the green splat is nearer but stored first
	s := newStore(t, dev, "pair", asset.BuildOptions{},
		ball(mgl32.Vec3{0, 0, 0}, green),
		ball(mgl32.Vec3{0, 0, -1}, red))
	require.NoError(t, c.Register(s))

	target := NewSoftwareTarget()
	require.NoError(t, c.Render(lookAt(mgl32.Vec3{0, 0, 10}), target))
	px := target.Image().RGBAAt(50, 50)
	assert.Greater(t, px.G, uint8(200))
	assert.Less(t, px.R, uint8(40))
}

func TestSoftwareTargetTopRowIsPositiveY(t *testing.T) {
	dev := compute.NewDevice(2, nil)
	c := NewCoordinator(dev, nil)
	s := newStore(t, dev, "up", asset.BuildOptions{}, ball(mgl32.Vec3{0, 4, 0}, red))
	s.Params.Mode = core.DisplayDebugPoints
	require.NoError(t, c.Register(s))

	target := NewSoftwareTarget()
	require.NoError(t, c.Render(lookAt(mgl32.Vec3{0, 0, 10}), target))
	// y=4 at distance 10 maps to ndc 0.4, pixel row 30 from the top
	assert.Equal(t, uint8(255), target.Image().RGBAAt(50, 30).R)
	assert.Equal(t, uint8(0), target.Image().RGBAAt(50, 70).R)
}

func TestSoftwareTargetPointModes(t *testing.T) {
	target := NewSoftwareTarget()
	cam := lookAt(mgl32.Vec3{0, 0, 10})
	require.NoError(t, target.BeginFrame(cam))

	view := []splat.ViewRecord{
		{Pos: mgl32.Vec4{0, 0, 0, 1}, Color: core.PackHalfRGBA(mgl32.Vec4{0, 0, 1, 0.1})},
		{Pos: mgl32.Vec4{0.5, 0.5, 0, 0}},
	}
	dc := &DrawCall{Mode: core.DisplayDebugPoints, PointSize: 3, View: view, Order: []uint32{0, 1, 7}, InstanceCount: 2}
	require.NoError(t, target.Draw(dc))
	require.NoError(t, target.Composite())

	img := target.Image()
	// points ignore splat alpha
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, img.RGBAAt(50, 49))
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, img.RGBAAt(55, 49))
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, img.RGBAAt(75, 24), "culled record")

	require.NoError(t, target.BeginFrame(cam))
	dc.Mode = core.DisplayDebugPointIndices
	require.NoError(t, target.Draw(dc))
	require.NoError(t, target.Composite())
	want := indexColor(0)
	got := img.RGBAAt(50, 49)
	assert.Equal(t, toByte(want.X()), got.R)
	assert.Equal(t, toByte(want.Y()), got.G)
}

func TestSoftwareTargetRejectsEmptyViewport(t *testing.T) {
	target := NewSoftwareTarget()
	assert.ErrorIs(t, target.BeginFrame(&core.Camera{}), ErrResourcesMissing)
	assert.ErrorIs(t, target.Composite(), ErrResourcesMissing)
}

func TestSoftwareTargetClipsOversizedFills(t *testing.T) {
	cam := lookAt(mgl32.Vec3{0, 0, 10})
	blue := core.PackHalfRGBA(mgl32.Vec4{0, 0, 1, 1})
	tests := []struct {
		name string
		dc   *DrawCall
	}{
		{"point far off screen", &DrawCall{
			Mode: core.DisplayDebugPoints, PointSize: 1e6, InstanceCount: 1, Order: []uint32{0},
			View: []splat.ViewRecord{{Pos: mgl32.Vec4{100, -100, 0, 1}, Color: blue}},
		}},
		{"box with maximal axes", &DrawCall{
			Mode: core.DisplayDebugBoxes, InstanceCount: 1, Order: []uint32{0},
			View: []splat.ViewRecord{{Pos: mgl32.Vec4{0, 0, 0, 1}, Axis1: mgl32.Vec2{4096, 0}, Axis2: mgl32.Vec2{0, 4096}, Color: blue}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := NewSoftwareTarget()
			require.NoError(t, target.BeginFrame(cam))
			require.NoError(t, target.Draw(tt.dc))
			require.NoError(t, target.Composite())
			img := target.Image()
			for _, p := range [][2]int{{0, 0}, {99, 0}, {0, 99}, {99, 99}, {50, 50}} {
				assert.Equal(t, color.RGBA{0, 0, 255, 255}, img.RGBAAt(p[0], p[1]), "pixel %v", p)
			}
		})
	}
}
