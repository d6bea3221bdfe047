package gridstats

import (
	"errors"

	"github.com/gekko3d/gsplat/splatrt/rt/core"
	"github.com/gekko3d/gsplat/splatrt/rt/splat"
	"github.com/go-gl/mathgl/mgl32"
)

var ErrGridDisabled = errors.New("grid has no cells")

// partitionSize is the number of splats one worker bins before merging.
const partitionSize = 16384

// Cell is the content of one grid cell.
type Cell struct {
	Count        int
	AverageColor mgl32.Vec4
	Center       mgl32.Vec3
}

// Stats bins the live splats of a store into the cells of a grid.
type Stats struct {
	Grid   core.Grid
	Cells  []Cell
	InGrid int
}

// Compute bins every non-deleted splat by world position and averages the
// view colours of each cell. The view records must be current.
func Compute(s *splat.Store, grid core.Grid) (*Stats, error) {
	if !grid.Enabled() {
		return nil, ErrGridDisabled
	}
	if !s.Renderable() {
		return nil, splat.ErrNotRenderable
	}
	cells := grid.CellCount()
	n := s.Count()
	parts := (n + partitionSize - 1) / partitionSize
	counts := make([][]int, parts)
	sums := make([][]mgl32.Vec4, parts)

	o2w := s.Transform.ObjectToWorld()
	layout := s.Layout()
	pos := s.PosData.Data
	view := s.ReadViewData()

	s.Device().DispatchRange("grid-stats", n, partitionSize, func(part, lo, hi int) {
		c := make([]int, cells)
		sum := make([]mgl32.Vec4, cells)
		for i := lo; i < hi; i++ {
			if s.IsDeleted(i) {
				continue
			}
			w := o2w.Mul4x1(layout.Pos(pos, i).Vec4(1)).Vec3()
			idx := grid.CellIndex(w)
			if idx < 0 {
				continue
			}
			c[idx]++
			sum[idx] = sum[idx].Add(view[i].RGBA())
		}
		counts[part], sums[part] = c, sum
	})

	st := &Stats{Grid: grid, Cells: make([]Cell, cells)}
	for p := 0; p < parts; p++ {
		for k := 0; k < cells; k++ {
			st.Cells[k].Count += counts[p][k]
			st.Cells[k].AverageColor = st.Cells[k].AverageColor.Add(sums[p][k])
		}
	}
	for k := range st.Cells {
		c := &st.Cells[k]
		c.Center = grid.CellCenter(k)
		if c.Count > 0 {
			c.AverageColor = c.AverageColor.Mul(1 / float32(c.Count))
		}
		st.InGrid += c.Count
	}
	return st, nil
}

// Counts returns the per-cell splat counts.
func (st *Stats) Counts() []int {
	out := make([]int, len(st.Cells))
	for i, c := range st.Cells {
		out[i] = c.Count
	}
	return out
}

// Gradients colours every cell red to green by count within [lo, hi].
// Swapped bounds are reordered; an empty range colours everything grey.
func (st *Stats) Gradients(lo, hi int) []mgl32.Vec4 {
	return Gradients(st.Counts(), lo, hi)
}

// AutoGradients is Gradients over the observed count range.
func (st *Stats) AutoGradients() []mgl32.Vec4 {
	counts := st.Counts()
	if len(counts) == 0 {
		return nil
	}
	lo, hi := counts[0], counts[0]
	for _, c := range counts[1:] {
		lo, hi = min(lo, c), max(hi, c)
	}
	return Gradients(counts, lo, hi)
}

func Gradients(values []int, lo, hi int) []mgl32.Vec4 {
	if lo > hi {
		lo, hi = hi, lo
	}
	out := make([]mgl32.Vec4, len(values))
	for i, v := range values {
		if lo == hi {
			out[i] = mgl32.Vec4{0.5, 0.5, 0.5, 1}
			continue
		}
		out[i] = core.Gradient(float32(v), float32(lo), float32(hi))
	}
	return out
}
