package splat

import (
	"testing"

	"github.com/gekko3d/gsplat/splatrt/rt/asset"
	"github.com/gekko3d/gsplat/splatrt/rt/compute"
	"github.com/gekko3d/gsplat/splatrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lineSplats places n splats along x, splat i at x = i - (n-1)/2.
func lineSplats(n int) []asset.Splat {
	out := make([]asset.Splat, n)
	for i := range out {
		out[i] = asset.Splat{
			Pos:   mgl32.Vec3{float32(i) - float32(n-1)/2, 0, 0},
			Rot:   mgl32.QuatIdent(),
			Scale: mgl32.Vec3{0.1, 0.1, 0.1},
			Color: mgl32.Vec4{0.5, 0.25, 0.75, 0.8},
		}
		out[i].SH[0] = mgl32.Vec3{0.1, 0.2, 0.3}
	}
	return out
}

func newTestStore(t *testing.T, name string, splats []asset.Splat, opts asset.BuildOptions) *Store {
	t.Helper()
	a, err := asset.Build(splats, opts)
	require.NoError(t, err)
	s := NewStore(name, compute.NewDevice(4, nil), nil)
	require.NoError(t, s.Load(a))
	return s
}

// orthoCamera maps x in [-50,50] onto 100 pixels, so splat i of a
// 100-splat line projects to pixel (i+0.5, 50).
func orthoCamera() *core.Camera {
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0})
	proj := mgl32.Ortho(-50, 50, -50, 50, 0.1, 100)
	return core.NewCamera(view, proj, 100, 100)
}

func selectRange(t *testing.T, s *Store, cam *core.Camera, lo, hi int, subtract bool) {
	t.Helper()
	require.NoError(t, s.StoreSelectionMouseDown())
	require.NoError(t, s.UpdateSelection(mgl32.Vec2{float32(lo), 40}, mgl32.Vec2{float32(hi), 60}, cam, subtract))
}

func TestLoadStatus(t *testing.T) {
	s := NewStore("empty", nil, nil)
	assert.Equal(t, StatusNoAsset, s.Status())
	assert.ErrorIs(t, s.Load(nil), ErrNoAsset)
	assert.False(t, s.Renderable())

	a, err := asset.Build(lineSplats(10), asset.BuildOptions{})
	require.NoError(t, err)
	bad := *a
	bad.FormatVersion = 42
	assert.ErrorIs(t, s.Load(&bad), asset.ErrVersionMismatch)
	assert.Equal(t, StatusVersionMismatch, s.Status())
	assert.Contains(t, s.Status().Message(), "version")
	assert.False(t, s.Renderable())

	noSH := *a
	noSH.SHData = nil
	assert.ErrorIs(t, s.Load(&noSH), asset.ErrMissingData)
	assert.Equal(t, StatusInvalidData, s.Status())

	require.NoError(t, s.Load(a))
	assert.True(t, s.Renderable())
	assert.Equal(t, StatusOK, s.Status())
	assert.Equal(t, StateLoaded, s.State())
	assert.Equal(t, 10, s.Count())
	for i, k := range s.SortKeys {
		assert.Equal(t, uint32(i), k)
	}

	s.MarkResourcesMissing(assert.AnError)
	assert.False(t, s.Renderable())
	assert.Equal(t, StatusResourcesMissing, s.Status())
	s.MarkResourcesMissing(nil)
	assert.True(t, s.Renderable())

	s.Release()
	s.Release()
	assert.Equal(t, StateUnloaded, s.State())
	assert.False(t, s.Renderable())
}

func TestUpdatePollsAssetChanges(t *testing.T) {
	a, err := asset.Build(lineSplats(10), asset.BuildOptions{})
	require.NoError(t, err)
	b, err := asset.Build(lineSplats(20), asset.BuildOptions{})
	require.NoError(t, err)

	s := NewStore("poll", nil, nil)
	require.NoError(t, s.SetAsset(a))
	assert.Equal(t, 10, s.Count())

	// unchanged asset keeps the same buffers
	pos := s.PosData
	require.NoError(t, s.Update())
	assert.Same(t, pos, s.PosData)

	// content change under the same pointer reloads
	a.PosData[0] ^= 0x10
	a.DataHash = a.ComputeHash()
	require.NoError(t, s.Update())
	assert.NotSame(t, pos, s.PosData)

	s.Asset = b
	require.NoError(t, s.Update())
	assert.Equal(t, 20, s.Count())

	pos = s.PosData
	s.Invalidate()
	require.NoError(t, s.Update())
	assert.NotSame(t, pos, s.PosData)

	pos = s.PosData
	require.NoError(t, s.Reload())
	assert.NotSame(t, pos, s.PosData)
	assert.Equal(t, 20, s.Count())

	s.Asset = nil
	require.NoError(t, s.Update())
	assert.Equal(t, StateUnloaded, s.State())
	assert.Equal(t, StatusNoAsset, s.Status())
}

func TestEditsOnUnloadedStoreFail(t *testing.T) {
	s := NewStore("unloaded", nil, nil)
	cam := orthoCamera()
	ops := map[string]func() error{
		"select-all":   s.SelectAll,
		"deselect-all": s.DeselectAll,
		"invert":       s.InvertSelection,
		"delete":       s.DeleteSelected,
		"mouse-down":   s.StoreSelectionMouseDown,
		"pos-down":     s.StorePosMouseDown,
		"update":       func() error { return s.UpdateSelection(mgl32.Vec2{}, mgl32.Vec2{1, 1}, cam, false) },
		"translate":    func() error { return s.TranslateSelection(mgl32.Vec3{1, 0, 0}) },
		"resize":       func() error { return s.Resize(10) },
		"export":       func() error { _, err := s.ExportRecords(false); return err },
	}
	for name, op := range ops {
		assert.ErrorIs(t, op(), ErrNotRenderable, name)
	}
}

func TestLoadSecondary(t *testing.T) {
	s := newTestStore(t, "interp", lineSplats(10), asset.BuildOptions{})
	other, err := asset.Build(lineSplats(12), asset.BuildOptions{})
	require.NoError(t, err)
	assert.ErrorIs(t, s.LoadSecondary(other), ErrMismatch)

	same, err := asset.Build(lineSplats(10), asset.BuildOptions{SHFormat: asset.SHFloat16})
	require.NoError(t, err)
	require.NoError(t, s.LoadSecondary(same))
	require.NotNil(t, s.Secondary)

	require.NoError(t, s.Resize(11))
	assert.Nil(t, s.Secondary)
}

func TestActivateCamera(t *testing.T) {
	splats := lineSplats(4)
	a, err := asset.Build(splats, asset.BuildOptions{Cameras: asset.OrbitBookmarks(2, 5)})
	require.NoError(t, err)
	s := NewStore("bookmarks", nil, nil)
	require.NoError(t, s.Load(a))
	s.Transform.Position = mgl32.Vec3{0, 10, 0}

	require.Len(t, s.Bookmarks(), 2)
	cam := core.NewTransform()
	require.NoError(t, s.ActivateCamera(1, cam))
	want := s.Bookmarks()[1].Pos.Add(mgl32.Vec3{0, 10, 0})
	assertVec3Near(t, want, cam.Position, 1e-5)

	assert.ErrorIs(t, s.ActivateCamera(2, cam), ErrBookmark)
	assert.ErrorIs(t, s.ActivateCamera(-1, cam), ErrBookmark)
}

func TestLocalBoundsTrackEdits(t *testing.T) {
	s := newTestStore(t, "bounds", lineSplats(100), asset.BuildOptions{})
	b := s.LocalBounds()
	assert.InDelta(t, -49.5, b[0].X(), 1e-5)
	assert.InDelta(t, 49.5, b[1].X(), 1e-5)

	cam := orthoCamera()
	selectRange(t, s, cam, 0, 10, false)
	require.NoError(t, s.DeleteSelected())
	b = s.LocalBounds()
	assert.InDelta(t, -39.5, b[0].X(), 1e-5)

	s.Transform.Position = mgl32.Vec3{100, 0, 0}
	wb := s.WorldBounds()
	assert.InDelta(t, 60.5, wb[0].X(), 1e-4)
}
