package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// CameraBookmark is a viewpoint saved with an asset, in asset space.
// AxisZ is the viewing direction.
type CameraBookmark struct {
	Name  string
	Pos   mgl32.Vec3
	AxisX mgl32.Vec3
	AxisY mgl32.Vec3
	AxisZ mgl32.Vec3
	FovY  float32
}

// Rotation returns the camera orientation looking along AxisZ with AxisY up.
func (b CameraBookmark) Rotation() mgl32.Quat {
	fwd := b.AxisZ
	if fwd.Len() == 0 {
		return mgl32.QuatIdent()
	}
	fwd = fwd.Normalize()
	up := b.AxisY
	right := fwd.Cross(up)
	if right.Len() < 1e-6 {
		// up parallel to forward; pick any perpendicular
		right = fwd.Cross(mgl32.Vec3{0, 0, 1})
		if right.Len() < 1e-6 {
			right = fwd.Cross(mgl32.Vec3{1, 0, 0})
		}
	}
	right = right.Normalize()
	up = right.Cross(fwd)
	// Cameras look down their local -Z.
	m := mgl32.Mat3FromCols(right, up, fwd.Mul(-1))
	return mgl32.Mat4ToQuat(m.Mat4()).Normalize()
}

// Apply places cam at the bookmark relative to the store placed by parent.
func (b CameraBookmark) Apply(parent *Transform, cam *Transform) {
	cam.Position = parent.TransformPoint(b.Pos)
	cam.Rotation = parent.Rotation.Mul(b.Rotation()).Normalize()
	cam.Dirty = true
}
