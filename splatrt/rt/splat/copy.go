package splat

import (
	"fmt"

	"github.com/gekko3d/gsplat/splatrt/rt/asset"
	"github.com/gekko3d/gsplat/splatrt/rt/compute"
	"github.com/gekko3d/gsplat/splatrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// copyJob describes one run of the copy kernel.
type copyJob struct {
	srcLayout, dstLayout asset.Layout
	src, dst             asset.Buffers
	srcDeleted           *compute.Bitset
	dstDeleted           *compute.Bitset
	srcStart, dstStart   int
	count                int
	matrix               mgl32.Mat4
}

// runCopy re-encodes count splats from src into dst, transforming them by
// the job matrix and carrying deleted bits along. Untransformed copies
// between identical encodings move raw bytes.
func runCopy(dev *compute.Device, job copyJob) {
	identity := job.matrix == mgl32.Ident4()
	raw := identity && job.srcLayout.SameEncoding(job.dstLayout)
	rot := core.MatrixRotation(job.matrix)
	scl := core.MatrixLossyScale(job.matrix)
	dev.Dispatch("copy-splats", job.count, func(i int) {
		si, di := job.srcStart+i, job.dstStart+i
		if job.dstDeleted != nil {
			job.dstDeleted.SetAtomic(di, job.srcDeleted != nil && job.srcDeleted.Get(si))
		}
		if raw {
			job.srcLayout.CopyRaw(job.dst, di, job.src, si)
			return
		}
		sp := job.srcLayout.Decode(job.src, si)
		if !identity {
			sp.Pos = job.matrix.Mul4x1(sp.Pos.Vec4(1)).Vec3()
			sp.Rot = rot.Mul(sp.Rot).Normalize()
			sp.Scale = mgl32.Vec3{sp.Scale.X() * scl.X(), sp.Scale.Y() * scl.Y(), sp.Scale.Z() * scl.Z()}
		}
		job.dstLayout.Encode(job.dst, di, &sp)
	})
}

// CopySplatsInto copies count splats starting at srcStart into dst starting
// at dstStart, mapping them from this store's object space into dst's.
// Deleted flags are copied too.
func (s *Store) CopySplatsInto(dst *Store, srcStart, dstStart, count int) error {
	if !s.Renderable() || dst == nil || !dst.Renderable() {
		return ErrNotRenderable
	}
	if dst.layout.Chunked() {
		return ErrQuantized
	}
	if count < 0 || srcStart < 0 || dstStart < 0 || srcStart+count > s.count || dstStart+count > dst.count {
		return fmt.Errorf("%w: copy %d from %d (of %d) to %d (of %d)", ErrRange, count, srcStart, s.count, dstStart, dst.count)
	}
	if s == dst && srcStart < dstStart+count && dstStart < srcStart+count && srcStart != dstStart {
		return fmt.Errorf("%w: overlapping copy within %s", ErrRange, s.Name)
	}
	if err := dst.EnsureEditingBuffers(); err != nil {
		return err
	}
	runCopy(s.dev, copyJob{
		srcLayout:  s.layout,
		dstLayout:  dst.layout,
		src:        s.Buffers(),
		dst:        dst.Buffers(),
		srcDeleted: s.Deleted,
		dstDeleted: dst.Deleted,
		srcStart:   srcStart,
		dstStart:   dstStart,
		count:      count,
		matrix:     dst.Transform.WorldToObject().Mul4(s.Transform.ObjectToWorld()),
	})
	dst.Modified = true
	dst.invalidate()
	return nil
}

// Resize changes the splat count. Splats below min(old, new) keep their
// data and deleted flags; grown splats are zero, which makes them
// invisible. Selection and drag snapshots are dropped.
func (s *Store) Resize(newCount int) error {
	if !s.Renderable() {
		return ErrNotRenderable
	}
	if s.layout.Chunked() {
		return ErrQuantized
	}
	if newCount <= 0 || newCount > asset.MaxSplats {
		return fmt.Errorf("%w: %d", ErrInvalidCount, newCount)
	}
	if newCount == s.count {
		return nil
	}

	l := s.layout
	pos := compute.NewBuffer("pos", newCount, l.PosStride())
	other := compute.NewBuffer("other", newCount, l.OtherStride())
	sh := compute.NewBuffer("sh", newCount, l.SHStride())
	color := &compute.Buffer{Label: "color", Stride: l.ColorStride(), Data: make([]byte, l.ColorTextureBytes(newCount))}
	deleted := compute.NewBitset("deleted", newCount)

	runCopy(s.dev, copyJob{
		srcLayout:  l,
		dstLayout:  l,
		src:        s.Buffers(),
		dst:        asset.Buffers{Pos: pos.Data, Other: other.Data, SH: sh.Data, Color: color.Data},
		srcDeleted: s.Deleted,
		dstDeleted: deleted,
		count:      min(s.count, newCount),
		matrix:     mgl32.Ident4(),
	})

	old := s.count
	s.PosData.Release()
	s.OtherData.Release()
	s.SHData.Release()
	s.ColorData.Release()
	s.Selected.Release()
	s.Deleted.Release()
	s.ClearMouseDown()

	s.PosData, s.OtherData, s.SHData, s.ColorData = pos, other, sh, color
	s.Deleted = deleted
	s.Selected = compute.NewBitset("selected", newCount)
	s.count = newCount
	s.allocFrameBuffers()
	if s.Secondary != nil {
		s.log.Warnf("%s: resize drops the interpolation target", s.Name)
		s.Secondary = nil
	}
	s.state = StateResized
	s.Modified = true
	s.invalidate()
	s.log.Debugf("%s: resized %d -> %d splats", s.Name, old, newCount)
	return s.UpdateCountsAndBounds()
}

// Merge appends every splat of srcs to dst, mapped into dst's object
// space. Nothing is modified if the combined count does not fit.
func Merge(dst *Store, srcs ...*Store) error {
	if dst == nil || !dst.Renderable() {
		return ErrNotRenderable
	}
	if dst.layout.Chunked() {
		return ErrQuantized
	}
	total := dst.count
	for _, src := range srcs {
		if src == nil || !src.Renderable() {
			return ErrNotRenderable
		}
		if src == dst {
			return fmt.Errorf("merge %s into itself: %w", dst.Name, ErrRange)
		}
		total += src.count
	}
	if total > asset.MaxSplats {
		return fmt.Errorf("%w: %d splats, limit %d", ErrCapacity, total, asset.MaxSplats)
	}

	offset := dst.count
	if err := dst.Resize(total); err != nil {
		return err
	}
	for _, src := range srcs {
		if err := src.CopySplatsInto(dst, 0, offset, src.count); err != nil {
			return fmt.Errorf("merge %s: %w", src.Name, err)
		}
		offset += src.count
	}
	dst.log.Infof("%s: merged %d stores, now %d splats", dst.Name, len(srcs), dst.count)
	return dst.UpdateCountsAndBounds()
}
