package splat

import (
	"math/bits"
	"sync/atomic"

	"github.com/gekko3d/gsplat/splatrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// Layout of the counts/bounds aggregate: selected, deleted and cut counts,
// then min xyz and max xyz of selected positions as sortable uints.
const (
	aggSelected = iota
	aggDeleted
	aggCut
	aggMinX
	aggMinY
	aggMinZ
	aggMaxX
	aggMaxY
	aggMaxZ
	countsBoundsLen
)

// EditStats is the read-back aggregate of the edit state.
type EditStats struct {
	Selected int
	Deleted  int
	Cut      int
	// Bounds of the selected splats in object space; empty when nothing is selected.
	Bounds core.AABB
}

// DisplayBounds returns Bounds with degenerate extents widened to 0.1,
// for gizmos around tiny selections.
func (e EditStats) DisplayBounds() core.AABB {
	if e.Bounds.Empty() {
		return e.Bounds
	}
	c, ext := e.Bounds.Center(), e.Bounds.Extents()
	if ext.Dot(ext) < 0.01 {
		ext = mgl32.Vec3{0.1, 0.1, 0.1}
	}
	return core.AABB{c.Sub(ext), c.Add(ext)}
}

// EditStats returns the cached aggregate, computing it if an edit
// invalidated it.
func (s *Store) EditStats() EditStats {
	if !s.statsValid {
		_ = s.UpdateCountsAndBounds()
	}
	return s.stats
}

func atomicMin(addr *uint32, v uint32) {
	for {
		old := atomic.LoadUint32(addr)
		if v >= old || atomic.CompareAndSwapUint32(addr, old, v) {
			return
		}
	}
}

func atomicMax(addr *uint32, v uint32) {
	for {
		old := atomic.LoadUint32(addr)
		if v <= old || atomic.CompareAndSwapUint32(addr, old, v) {
			return
		}
	}
}

func (s *Store) resetCountsBounds() {
	agg := &s.countsBounds
	for k := range agg {
		agg[k] = 0
	}
	for k := aggMinX; k <= aggMinZ; k++ {
		agg[k] = ^uint32(0)
	}
}

// UpdateCountsAndBounds runs the aggregation pass over the edit bitsets and
// reads the result back. Blocks until done.
func (s *Store) UpdateCountsAndBounds() error {
	if err := s.EnsureEditingBuffers(); err != nil {
		return err
	}
	s.resetCountsBounds()
	agg := &s.countsBounds
	sel, del := s.Selected, s.Deleted
	cuts := s.CutoutData()
	layout := s.layout
	pos := s.PosData.Data
	n := s.count

	s.dev.Dispatch("update-edit-data", len(sel.Words), func(w int) {
		tail := sel.TailMask(w)
		delW := del.Words[w] & tail
		selW := sel.Words[w] &^ delW & tail
		if c := bits.OnesCount32(selW); c > 0 {
			atomic.AddUint32(&agg[aggSelected], uint32(c))
		}
		if c := bits.OnesCount32(delW); c > 0 {
			atomic.AddUint32(&agg[aggDeleted], uint32(c))
		}

		if len(cuts) > 0 {
			cut := uint32(0)
			live := ^delW & tail
			for live != 0 {
				b := bits.TrailingZeros32(live)
				live &= live - 1
				if i := w*32 + b; i < n && core.IsCut(cuts, layout.Pos(pos, i)) {
					cut++
				}
			}
			if cut > 0 {
				atomic.AddUint32(&agg[aggCut], cut)
			}
		}

		if selW == 0 {
			return
		}
		var lo, hi [3]uint32
		lo = [3]uint32{^uint32(0), ^uint32(0), ^uint32(0)}
		for selW != 0 {
			b := bits.TrailingZeros32(selW)
			selW &= selW - 1
			p := layout.Pos(pos, w*32+b)
			for k := 0; k < 3; k++ {
				v := core.FloatToSortableUint(p[k])
				lo[k] = min(lo[k], v)
				hi[k] = max(hi[k], v)
			}
		}
		for k := 0; k < 3; k++ {
			atomicMin(&agg[aggMinX+k], lo[k])
			atomicMax(&agg[aggMaxX+k], hi[k])
		}
	})

	s.stats = decodeCountsBounds(agg)
	s.statsValid = true
	return nil
}

func decodeCountsBounds(agg *[countsBoundsLen]uint32) EditStats {
	st := EditStats{
		Selected: int(agg[aggSelected]),
		Deleted:  int(agg[aggDeleted]),
		Cut:      int(agg[aggCut]),
	}
	if st.Selected == 0 {
		st.Bounds = core.AABB{{1, 1, 1}, {-1, -1, -1}}
		return st
	}
	for k := 0; k < 3; k++ {
		st.Bounds[0][k] = core.SortableUintToFloat(agg[aggMinX+k])
		st.Bounds[1][k] = core.SortableUintToFloat(agg[aggMaxX+k])
	}
	return st
}

// RefreshForCutouts re-aggregates every `every` frames while cutouts
// exist, since moving a cutout changes the cut count without any edit.
func (s *Store) RefreshForCutouts(frame, every int) {
	if len(s.Cutouts) == 0 || every <= 0 || frame%every != 0 || !s.Renderable() {
		return
	}
	_ = s.UpdateCountsAndBounds()
}

// reduceBounds computes the object-space box of non-deleted splats.
func (s *Store) reduceBounds() core.AABB {
	var agg [6]uint32
	for k := 0; k < 3; k++ {
		agg[k] = ^uint32(0)
	}
	layout := s.layout
	pos := s.PosData.Data
	del := s.Deleted
	s.dev.Dispatch("reduce-bounds", s.count, func(i int) {
		if del != nil && del.Get(i) {
			return
		}
		p := layout.Pos(pos, i)
		for k := 0; k < 3; k++ {
			v := core.FloatToSortableUint(p[k])
			atomicMin(&agg[k], v)
			atomicMax(&agg[3+k], v)
		}
	})
	if agg[0] > agg[3] {
		return core.AABB{{1, 1, 1}, {-1, -1, -1}}
	}
	var b core.AABB
	for k := 0; k < 3; k++ {
		b[0][k] = core.SortableUintToFloat(agg[k])
		b[1][k] = core.SortableUintToFloat(agg[3+k])
	}
	return b
}
