package splat

import (
	"encoding/binary"
	"math"

	"github.com/gekko3d/gsplat/splatrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// ViewRecordSize is the encoded size of a ViewRecord.
const ViewRecordSize = 40

// ViewRecord is the per-frame screen-space form of one splat.
// A record with Pos.W() <= 0 is not drawn.
type ViewRecord struct {
	Pos   mgl32.Vec4 // clip space
	Axis1 mgl32.Vec2 // pixels
	Axis2 mgl32.Vec2
	Color [2]uint32 // half rgba, r<<16|g and b<<16|a
}

func (v *ViewRecord) Culled() bool {
	return v.Pos.W() <= 0
}

func (v *ViewRecord) RGBA() mgl32.Vec4 {
	return core.UnpackHalfRGBA(v.Color)
}

// PackViewRecords encodes recs little-endian into dst, which must hold
// len(recs)*ViewRecordSize bytes.
func PackViewRecords(dst []byte, recs []ViewRecord) {
	for i := range recs {
		r := &recs[i]
		b := dst[i*ViewRecordSize:]
		for k := 0; k < 4; k++ {
			binary.LittleEndian.PutUint32(b[k*4:], math.Float32bits(r.Pos[k]))
		}
		binary.LittleEndian.PutUint32(b[16:], math.Float32bits(r.Axis1[0]))
		binary.LittleEndian.PutUint32(b[20:], math.Float32bits(r.Axis1[1]))
		binary.LittleEndian.PutUint32(b[24:], math.Float32bits(r.Axis2[0]))
		binary.LittleEndian.PutUint32(b[28:], math.Float32bits(r.Axis2[1]))
		binary.LittleEndian.PutUint32(b[32:], r.Color[0])
		binary.LittleEndian.PutUint32(b[36:], r.Color[1])
	}
}

// UnpackViewRecord decodes one record written by PackViewRecords.
func UnpackViewRecord(b []byte) ViewRecord {
	f := func(o int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b[o:])) }
	return ViewRecord{
		Pos:   mgl32.Vec4{f(0), f(4), f(8), f(12)},
		Axis1: mgl32.Vec2{f(16), f(20)},
		Axis2: mgl32.Vec2{f(24), f(28)},
		Color: [2]uint32{binary.LittleEndian.Uint32(b[32:]), binary.LittleEndian.Uint32(b[36:])},
	}
}

// ReadViewData returns a copy of the current view records. Blocking readback,
// for debugging and analysis only.
func (s *Store) ReadViewData() []ViewRecord {
	return append([]ViewRecord(nil), s.ViewData...)
}

// IsDeleted reports whether splat i has been deleted.
func (s *Store) IsDeleted(i int) bool {
	return s.Deleted != nil && s.Deleted.Get(i)
}

// IsSelected reports whether splat i is selected and not deleted.
func (s *Store) IsSelected(i int) bool {
	return s.Selected != nil && s.Selected.Get(i) && !s.IsDeleted(i)
}

// CutoutData flattens the store's cutouts for the current transform.
func (s *Store) CutoutData() []core.CutoutData {
	return core.BuildCutoutData(s.Cutouts, s.Transform.ObjectToWorld())
}
