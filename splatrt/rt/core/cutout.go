package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

type CutoutShape uint32

const (
	CutoutEllipsoid CutoutShape = 0
	CutoutBox       CutoutShape = 1

	cutoutInvalid    = 0xFF
	cutoutInvertFlag = 0x100
)

func (s CutoutShape) String() string {
	switch s {
	case CutoutEllipsoid:
		return "ellipsoid"
	case CutoutBox:
		return "box"
	}
	return "unknown"
}

// Cutout is a unit sphere or unit cube placed in the world by Transform.
// A plain cutout keeps what is inside it; an inverted one removes it.
type Cutout struct {
	Name      string
	Transform *Transform
	Shape     CutoutShape
	Invert    bool
}

func NewCutout(shape CutoutShape) *Cutout {
	return &Cutout{Transform: NewTransform(), Shape: shape}
}

// CutoutData is the per-frame kernel form of a cutout. Matrix maps splat
// object space into the cutout's unit space.
type CutoutData struct {
	Matrix       mgl32.Mat4
	TypeAndFlags uint32
}

// BuildCutoutData flattens cutouts against a store placed at objectToWorld.
// Nil entries stay in the list as ignored slots.
func BuildCutoutData(cutouts []*Cutout, objectToWorld mgl32.Mat4) []CutoutData {
	if len(cutouts) == 0 {
		return nil
	}
	out := make([]CutoutData, len(cutouts))
	for i, c := range cutouts {
		if c == nil || c.Transform == nil {
			out[i] = CutoutData{Matrix: mgl32.Ident4(), TypeAndFlags: cutoutInvalid}
			continue
		}
		flags := uint32(c.Shape) & 0xFF
		if c.Invert {
			flags |= cutoutInvertFlag
		}
		out[i] = CutoutData{
			Matrix:       c.Transform.WorldToObject().Mul4(objectToWorld),
			TypeAndFlags: flags,
		}
	}
	return out
}

// IsCut reports whether an object-space position is removed by the cutouts.
// The first cutout containing pos decides; otherwise the last valid cutout
// does, cutting everything outside a plain one.
func IsCut(cutouts []CutoutData, pos mgl32.Vec3) bool {
	finalCut := false
	for i := range cutouts {
		cd := &cutouts[i]
		shape := cd.TypeAndFlags & 0xFF
		if shape == cutoutInvalid {
			continue
		}
		invert := cd.TypeAndFlags&0xFF00 != 0
		p := cd.Matrix.Mul4x1(pos.Vec4(1)).Vec3()
		switch CutoutShape(shape) {
		case CutoutEllipsoid:
			if p.Dot(p) <= 1 {
				return invert
			}
		case CutoutBox:
			if abs32(p.X()) <= 1 && abs32(p.Y()) <= 1 && abs32(p.Z()) <= 1 {
				return invert
			}
		}
		finalCut = !invert
	}
	return finalCut
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
