package splat

import (
	"math/bits"

	"github.com/gekko3d/gsplat/splatrt/rt/compute"
	"github.com/gekko3d/gsplat/splatrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// EnsureEditingBuffers allocates the selection and deletion bitsets.
func (s *Store) EnsureEditingBuffers() error {
	if !s.Renderable() {
		return ErrNotRenderable
	}
	if s.Selected == nil || s.Selected.Len() != s.count {
		s.Selected = compute.NewBitset("selected", s.count)
	}
	if s.Deleted == nil || s.Deleted.Len() != s.count {
		s.Deleted = compute.NewBitset("deleted", s.count)
	}
	return nil
}

func (s *Store) editable() error {
	if err := s.EnsureEditingBuffers(); err != nil {
		return err
	}
	if s.layout.Chunked() {
		return ErrQuantized
	}
	return nil
}

// StoreSelectionMouseDown snapshots the selection at the start of a drag.
func (s *Store) StoreSelectionMouseDown() error {
	if err := s.EnsureEditingBuffers(); err != nil {
		return err
	}
	if s.SelectedMouseDown == nil || s.SelectedMouseDown.Len() != s.count {
		s.SelectedMouseDown = compute.NewBitset("selected-mouse-down", s.count)
	}
	s.SelectedMouseDown.CopyFrom(s.Selected)
	return nil
}

// StorePosMouseDown snapshots positions at the start of a move, rotate or scale.
func (s *Store) StorePosMouseDown() error {
	if err := s.editable(); err != nil {
		return err
	}
	s.PosMouseDown = compute.NewBufferFrom("pos-mouse-down", s.PosData.Stride, s.PosData.Data)
	return nil
}

// StoreOtherMouseDown snapshots rotation and scale at the start of a rotate.
func (s *Store) StoreOtherMouseDown() error {
	if err := s.editable(); err != nil {
		return err
	}
	s.OtherMouseDown = compute.NewBufferFrom("other-mouse-down", s.OtherData.Stride, s.OtherData.Data)
	return nil
}

// ClearMouseDown drops the drag snapshots.
func (s *Store) ClearMouseDown() {
	s.SelectedMouseDown.Release()
	s.PosMouseDown.Release()
	s.OtherMouseDown.Release()
	s.SelectedMouseDown, s.PosMouseDown, s.OtherMouseDown = nil, nil, nil
}

// CancelDrag restores the selection captured at mouse-down.
func (s *Store) CancelDrag() error {
	if s.SelectedMouseDown == nil {
		return ErrNoSnapshot
	}
	s.Selected.CopyFrom(s.SelectedMouseDown)
	s.ClearMouseDown()
	return s.UpdateCountsAndBounds()
}

// UpdateSelection recomputes the selection as the mouse-down selection
// plus (or minus, with subtract) every visible splat whose projected centre
// lies in the pixel rectangle [rectMin, rectMax]. Pixels have a top-left origin.
func (s *Store) UpdateSelection(rectMin, rectMax mgl32.Vec2, cam *core.Camera, subtract bool) error {
	if err := s.EnsureEditingBuffers(); err != nil {
		return err
	}
	if s.SelectedMouseDown == nil {
		return ErrNoSnapshot
	}
	s.Selected.CopyFrom(s.SelectedMouseDown)

	mvp := cam.ViewProj().Mul4(s.Transform.ObjectToWorld())
	screen := cam.ScreenSize()
	cuts := s.CutoutData()
	layout := s.layout
	pos := s.PosData.Data
	sel, del := s.Selected, s.Deleted
	n := s.count

	s.dev.Dispatch("selection-update", len(sel.Words), func(w int) {
		word := sel.Words[w]
		live := ^del.Words[w] & sel.TailMask(w)
		for live != 0 {
			b := bits.TrailingZeros32(live)
			live &= live - 1
			i := w*32 + b
			if i >= n {
				break
			}
			p := layout.Pos(pos, i)
			if core.IsCut(cuts, p) {
				continue
			}
			clip := mvp.Mul4x1(p.Vec4(1))
			if clip.W() <= 0 {
				continue
			}
			px := (clip.X()/clip.W()*0.5 + 0.5) * screen.X()
			py := (0.5 - clip.Y()/clip.W()*0.5) * screen.Y()
			if px < rectMin.X() || px > rectMax.X() || py < rectMin.Y() || py > rectMax.Y() {
				continue
			}
			if subtract {
				word &^= 1 << uint(b)
			} else {
				word |= 1 << uint(b)
			}
		}
		sel.Words[w] = word
	})
	return s.UpdateCountsAndBounds()
}

// forSelected runs fn for every selected, non-deleted splat.
func (s *Store) forSelected(name string, fn func(i int)) {
	sel, del := s.Selected, s.Deleted
	n := s.count
	s.dev.Dispatch(name, len(sel.Words), func(w int) {
		bitsLeft := sel.Words[w] &^ del.Words[w] & sel.TailMask(w)
		for bitsLeft != 0 {
			b := bits.TrailingZeros32(bitsLeft)
			bitsLeft &= bitsLeft - 1
			if i := w*32 + b; i < n {
				fn(i)
			}
		}
	})
}

// TranslateSelection moves selected splats to their mouse-down position
// plus delta, in object space.
func (s *Store) TranslateSelection(delta mgl32.Vec3) error {
	if err := s.editable(); err != nil {
		return err
	}
	if s.PosMouseDown == nil {
		return ErrNoSnapshot
	}
	layout := s.layout
	src, dst := s.PosMouseDown.Data, s.PosData.Data
	s.forSelected("translate-selection", func(i int) {
		layout.PutPos(dst, i, layout.Pos(src, i).Add(delta))
	})
	s.Modified = true
	s.boundsValid = false
	return s.UpdateCountsAndBounds()
}

// RotateSelection rotates selected splats about the object-space center
// by rot, expressed in world orientation.
func (s *Store) RotateSelection(center mgl32.Vec3, localToWorld, worldToLocal mgl32.Mat4, rot mgl32.Quat) error {
	if err := s.editable(); err != nil {
		return err
	}
	if s.PosMouseDown == nil || s.OtherMouseDown == nil {
		return ErrNoSnapshot
	}
	toWorld := localToWorld.Mat3()
	toLocal := worldToLocal.Mat3()
	wsRot := core.MatrixRotation(localToWorld)
	localRot := wsRot.Conjugate().Mul(rot.Normalize()).Mul(wsRot)

	layout := s.layout
	posSrc, posDst := s.PosMouseDown.Data, s.PosData.Data
	otherSrc, otherDst := s.OtherMouseDown.Data, s.OtherData.Data
	s.forSelected("rotate-selection", func(i int) {
		p := layout.Pos(posSrc, i).Sub(center)
		p = toLocal.Mul3x1(rot.Rotate(toWorld.Mul3x1(p))).Add(center)
		layout.PutPos(posDst, i, p)

		q, scl := layout.Other(otherSrc, i)
		layout.PutOther(otherDst, i, localRot.Mul(q).Normalize(), scl)
	})
	s.Modified = true
	s.boundsValid = false
	return s.UpdateCountsAndBounds()
}

// ScaleSelection scales the positions of selected splats about the
// object-space center by scale, along world axes. Splat sizes are kept.
func (s *Store) ScaleSelection(center mgl32.Vec3, localToWorld, worldToLocal mgl32.Mat4, scale mgl32.Vec3) error {
	if err := s.editable(); err != nil {
		return err
	}
	if s.PosMouseDown == nil {
		return ErrNoSnapshot
	}
	toWorld := localToWorld.Mat3()
	toLocal := worldToLocal.Mat3()
	layout := s.layout
	src, dst := s.PosMouseDown.Data, s.PosData.Data
	s.forSelected("scale-selection", func(i int) {
		p := toWorld.Mul3x1(layout.Pos(src, i).Sub(center))
		p = mgl32.Vec3{p.X() * scale.X(), p.Y() * scale.Y(), p.Z() * scale.Z()}
		layout.PutPos(dst, i, toLocal.Mul3x1(p).Add(center))
	})
	s.Modified = true
	s.boundsValid = false
	return s.UpdateCountsAndBounds()
}

// DeleteSelected marks the selection deleted and clears it.
func (s *Store) DeleteSelected() error {
	if err := s.EnsureEditingBuffers(); err != nil {
		return err
	}
	sel, del := s.Selected, s.Deleted
	s.dev.Dispatch("delete-selected", len(sel.Words), func(w int) {
		del.Words[w] |= sel.Words[w] & sel.TailMask(w)
		sel.Words[w] = 0
	})
	if err := s.UpdateCountsAndBounds(); err != nil {
		return err
	}
	if s.stats.Deleted > 0 {
		s.Modified = true
	}
	s.boundsValid = false
	return nil
}

func (s *Store) SelectAll() error {
	if err := s.EnsureEditingBuffers(); err != nil {
		return err
	}
	sel := s.Selected
	s.dev.Dispatch("select-all", len(sel.Words), func(w int) {
		sel.Words[w] = sel.TailMask(w)
	})
	return s.UpdateCountsAndBounds()
}

func (s *Store) DeselectAll() error {
	if err := s.EnsureEditingBuffers(); err != nil {
		return err
	}
	s.Selected.Clear()
	return s.UpdateCountsAndBounds()
}

// InvertSelection flips every selection bit below the splat count.
func (s *Store) InvertSelection() error {
	if err := s.EnsureEditingBuffers(); err != nil {
		return err
	}
	sel := s.Selected
	s.dev.Dispatch("invert-selection", len(sel.Words), func(w int) {
		sel.Words[w] = ^sel.Words[w] & sel.TailMask(w)
	})
	return s.UpdateCountsAndBounds()
}

// ResetEdits clears selection and deletion. Splat data edits stay.
func (s *Store) ResetEdits() error {
	if err := s.EnsureEditingBuffers(); err != nil {
		return err
	}
	s.Selected.Clear()
	s.Deleted.Clear()
	s.ClearMouseDown()
	s.boundsValid = false
	return s.UpdateCountsAndBounds()
}
