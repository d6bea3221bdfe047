package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
	Dirty    bool
}

func NewTransform() *Transform {
	return &Transform{
		Position: mgl32.Vec3{0, 0, 0},
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
		Dirty:    true,
	}
}

func (t *Transform) ObjectToWorld() mgl32.Mat4 {
	// M = T * R * S
	translate := mgl32.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z())
	rotate := t.Rotation.Mat4()
	scale := mgl32.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z())

	return translate.Mul4(rotate).Mul4(scale)
}

func (t *Transform) WorldToObject() mgl32.Mat4 {
	// inv(M) = inv(S) * inv(R) * inv(T)
	invScale := mgl32.Scale3D(safeInv(t.Scale.X()), safeInv(t.Scale.Y()), safeInv(t.Scale.Z()))
	invRotate := t.Rotation.Conjugate().Mat4()
	invTranslate := mgl32.Translate3D(-t.Position.X(), -t.Position.Y(), -t.Position.Z())

	return invScale.Mul4(invRotate).Mul4(invTranslate)
}

// TransformPoint maps an object-space point to world space.
func (t *Transform) TransformPoint(p mgl32.Vec3) mgl32.Vec3 {
	return t.ObjectToWorld().Mul4x1(p.Vec4(1)).Vec3()
}

func safeInv(v float32) float32 {
	if v == 0 {
		return 0
	}
	return 1.0 / v
}

// MatrixRotation extracts the rotation of an affine matrix, ignoring scale.
func MatrixRotation(m mgl32.Mat4) mgl32.Quat {
	c0 := m.Col(0).Vec3()
	c1 := m.Col(1).Vec3()
	c2 := m.Col(2).Vec3()
	if c0.Len() == 0 || c1.Len() == 0 || c2.Len() == 0 {
		return mgl32.QuatIdent()
	}
	r := mgl32.Mat3FromCols(c0.Normalize(), c1.Normalize(), c2.Normalize())
	return mgl32.Mat4ToQuat(r.Mat4()).Normalize()
}

// MatrixLossyScale returns the column lengths of the upper 3x3 of m.
func MatrixLossyScale(m mgl32.Mat4) mgl32.Vec3 {
	return mgl32.Vec3{m.Col(0).Vec3().Len(), m.Col(1).Vec3().Len(), m.Col(2).Vec3().Len()}
}

// Linear returns the upper 3x3 of m.
func Linear(m mgl32.Mat4) mgl32.Mat3 {
	return m.Mat3()
}
