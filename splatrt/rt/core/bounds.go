package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// AABB is a min/max box.
type AABB [2]mgl32.Vec3

func (b AABB) Empty() bool {
	return b[0].X() > b[1].X() || b[0].Y() > b[1].Y() || b[0].Z() > b[1].Z()
}

func (b AABB) Center() mgl32.Vec3 {
	return b[0].Add(b[1]).Mul(0.5)
}

func (b AABB) Extents() mgl32.Vec3 {
	return b[1].Sub(b[0]).Mul(0.5)
}

// Transformed returns the conservative box enclosing b's eight corners under m.
func (b AABB) Transformed(m mgl32.Mat4) AABB {
	if b.Empty() {
		return b
	}
	minB, maxB := b[0], b[1]
	corners := [8]mgl32.Vec3{
		{minB.X(), minB.Y(), minB.Z()},
		{maxB.X(), minB.Y(), minB.Z()},
		{minB.X(), maxB.Y(), minB.Z()},
		{maxB.X(), maxB.Y(), minB.Z()},
		{minB.X(), minB.Y(), maxB.Z()},
		{maxB.X(), minB.Y(), maxB.Z()},
		{minB.X(), maxB.Y(), maxB.Z()},
		{maxB.X(), maxB.Y(), maxB.Z()},
	}

	inf := float32(1e20)
	wMin := mgl32.Vec3{inf, inf, inf}
	wMax := mgl32.Vec3{-inf, -inf, -inf}
	for _, c := range corners {
		wc := m.Mul4x1(c.Vec4(1.0)).Vec3()
		wMin = mgl32.Vec3{min(wMin.X(), wc.X()), min(wMin.Y(), wc.Y()), min(wMin.Z(), wc.Z())}
		wMax = mgl32.Vec3{max(wMax.X(), wc.X()), max(wMax.Y(), wc.Y()), max(wMax.Z(), wc.Z())}
	}
	return AABB{wMin, wMax}
}

// AABBInFrustum checks if an AABB is visible within the frustum defined by 6 planes.
// Planes are expected to be in Ax+By+Cz+D=0 form, with the normal pointing INSIDE.
func AABBInFrustum(aabb AABB, planes [6]mgl32.Vec4) bool {
	for i := 0; i < 6; i++ {
		plane := planes[i]
		// Most-inside corner; if that one is behind the plane the whole box is.
		var p mgl32.Vec3
		for k := 0; k < 3; k++ {
			if plane[k] > 0 {
				p[k] = aabb[1][k]
			} else {
				p[k] = aabb[0][k]
			}
		}
		dist := plane[0]*p[0] + plane[1]*p[1] + plane[2]*p[2] + plane[3]
		if dist < 0 {
			return false
		}
	}
	return true
}
