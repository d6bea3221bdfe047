package gridstats

import (
	"testing"

	"github.com/gekko3d/gsplat/splatrt/rt/asset"
	"github.com/gekko3d/gsplat/splatrt/rt/compute"
	"github.com/gekko3d/gsplat/splatrt/rt/core"
	"github.com/gekko3d/gsplat/splatrt/rt/project"
	"github.com/gekko3d/gsplat/splatrt/rt/splat"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func coloured(pos mgl32.Vec3, c mgl32.Vec4) asset.Splat {
	return asset.Splat{Pos: pos, Rot: mgl32.QuatIdent(), Scale: mgl32.Vec3{0.1, 0.1, 0.1}, Color: c}
}

func TestComputeBinsAndAverages(t *testing.T) {
	red := mgl32.Vec4{1, 0, 0, 1}
	blue := mgl32.Vec4{0, 0, 1, 0.5}
	splats := []asset.Splat{
		coloured(mgl32.Vec3{0.5, 0.5, 0.5}, red),
		coloured(mgl32.Vec3{0.25, 0.5, 0.5}, blue),
		coloured(mgl32.Vec3{1.5, 0.5, 0.5}, red),
		coloured(mgl32.Vec3{1.5, 1.5, 0.5}, red),
		coloured(mgl32.Vec3{5, 5, 5}, red), // outside
		coloured(mgl32.Vec3{0.75, 0.5, 0.5}, red),
	}
	a, err := asset.Build(splats, asset.BuildOptions{})
	require.NoError(t, err)
	s := splat.NewStore("grid", compute.NewDevice(2, nil), nil)
	require.NoError(t, s.Load(a))
	require.NoError(t, s.EnsureEditingBuffers())
	s.Deleted.Set(5, true)

	cam := core.NewCamera(
		mgl32.LookAtV(mgl32.Vec3{1, 1, 10}, mgl32.Vec3{1, 1, 0}, mgl32.Vec3{0, 1, 0}),
		mgl32.Perspective(mgl32.DegToRad(60), 1, 0.1, 100), 64, 64)
	require.NoError(t, project.NewProjector(nil).CalcViewData(s, cam))

	grid := core.Grid{Width: 2, Height: 2, Depth: 1, CellSize: 1}
	st, err := Compute(s, grid)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 0, 1}, st.Counts())
	assert.Equal(t, 4, st.InGrid)

	avg := st.Cells[0].AverageColor
	assert.InDelta(t, 0.5, avg.X(), 1e-3)
	assert.InDelta(t, 0.5, avg.Z(), 1e-3)
	assert.InDelta(t, 0.75, avg.W(), 1e-3)
	assert.Equal(t, mgl32.Vec4{}, st.Cells[2].AverageColor)
	center := st.Cells[3].Center
	assert.InDeltaSlice(t, []float32{1.5, 1.5, 0.5}, center[:], 1e-5)

	// store placement is applied before binning
	s.Transform.Position = mgl32.Vec3{1, 0, 0}
	st, err = Compute(s, grid)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 0, 0}, st.Counts())
}

func TestComputeRejects(t *testing.T) {
	s := splat.NewStore("empty", nil, nil)
	_, err := Compute(s, core.Grid{})
	assert.ErrorIs(t, err, ErrGridDisabled)
	_, err = Compute(s, core.Grid{Width: 1, Height: 1, Depth: 1, CellSize: 1})
	assert.ErrorIs(t, err, splat.ErrNotRenderable)
}

func TestGradients(t *testing.T) {
	got := Gradients([]int{0, 5, 10, 20}, 10, 0)
	assert.Equal(t, mgl32.Vec4{1, 0, 0, 1}, got[0])
	assert.Equal(t, mgl32.Vec4{0.5, 0.5, 0, 1}, got[1])
	assert.Equal(t, mgl32.Vec4{0, 1, 0, 1}, got[2])
	assert.Equal(t, mgl32.Vec4{0, 1, 0, 1}, got[3], "clamped")

	flat := Gradients([]int{3, 3}, 3, 3)
	assert.Equal(t, mgl32.Vec4{0.5, 0.5, 0.5, 1}, flat[0])

	st := &Stats{Cells: []Cell{{Count: 2}, {Count: 4}}}
	auto := st.AutoGradients()
	assert.Equal(t, mgl32.Vec4{1, 0, 0, 1}, auto[0])
	assert.Equal(t, mgl32.Vec4{0, 1, 0, 1}, auto[1])
}
