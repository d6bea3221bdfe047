package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Camera is one render viewpoint. View follows the OpenGL convention:
// the camera looks down -Z in view space.
type Camera struct {
	Name     string
	View     mgl32.Mat4
	Proj     mgl32.Mat4
	Position mgl32.Vec3
	Width    int
	Height   int
	// Preview cameras (thumbnails, inspectors) are never drawn into.
	Preview bool
}

func NewCamera(view, proj mgl32.Mat4, width, height int) *Camera {
	c := &Camera{View: view, Proj: proj, Width: width, Height: height}
	c.Position = view.Inv().Mul4x1(mgl32.Vec4{0, 0, 0, 1}).Vec3()
	return c
}

// CameraFromTransform builds a camera whose world placement is t.
// Scale is ignored.
func CameraFromTransform(t *Transform, proj mgl32.Mat4, width, height int) *Camera {
	world := mgl32.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z()).Mul4(t.Rotation.Mat4())
	return &Camera{
		View:     world.Inv(),
		Proj:     proj,
		Position: t.Position,
		Width:    width,
		Height:   height,
	}
}

func (c *Camera) ViewProj() mgl32.Mat4 {
	return c.Proj.Mul4(c.View)
}

func (c *Camera) ScreenSize() mgl32.Vec2 {
	return mgl32.Vec2{float32(c.Width), float32(c.Height)}
}

func (c *Camera) Frustum() [6]mgl32.Vec4 {
	return ExtractFrustum(c.ViewProj())
}

// CameraState is a Y-up fly camera.
type CameraState struct {
	Position    mgl32.Vec3
	Yaw         float32
	Pitch       float32
	Speed       float32
	Sensitivity float32
	FovY        float32
	Near        float32
	Far         float32
}

func NewCameraState() *CameraState {
	return &CameraState{
		Position:    mgl32.Vec3{0, 1, 6},
		Speed:       3.0,
		Sensitivity: 0.003,
		FovY:        60,
		Near:        0.05,
		Far:         500,
	}
}

func (c *CameraState) GetForward() mgl32.Vec3 {
	return mgl32.Vec3{
		float32(math.Cos(float64(c.Pitch)) * math.Sin(float64(c.Yaw))),
		float32(math.Sin(float64(c.Pitch))),
		float32(-math.Cos(float64(c.Pitch)) * math.Cos(float64(c.Yaw))),
	}
}

func (c *CameraState) GetRight() mgl32.Vec3 {
	return mgl32.Vec3{
		float32(math.Cos(float64(c.Yaw))),
		0,
		float32(math.Sin(float64(c.Yaw))),
	}
}

func (c *CameraState) GetViewMatrix() mgl32.Mat4 {
	eye := c.Position
	return mgl32.LookAtV(eye, eye.Add(c.GetForward()), mgl32.Vec3{0, 1, 0})
}

// Camera snapshots the fly camera for a width x height target.
func (c *CameraState) Camera(width, height int) *Camera {
	aspect := float32(1)
	if height > 0 {
		aspect = float32(width) / float32(height)
	}
	proj := mgl32.Perspective(mgl32.DegToRad(c.FovY), aspect, c.Near, c.Far)
	return &Camera{
		Name:     "main",
		View:     c.GetViewMatrix(),
		Proj:     proj,
		Position: c.Position,
		Width:    width,
		Height:   height,
	}
}

// LookAt points the fly camera at target.
func (c *CameraState) LookAt(target mgl32.Vec3) {
	d := target.Sub(c.Position)
	if d.Len() == 0 {
		return
	}
	d = d.Normalize()
	c.Pitch = float32(math.Asin(float64(mgl32.Clamp(d.Y(), -1, 1))))
	c.Yaw = float32(math.Atan2(float64(d.X()), float64(-d.Z())))
}

// ExtractFrustum extracts the 6 planes of the frustum from the view-projection matrix.
// Returns planes in order: Left, Right, Bottom, Top, Near, Far.
// Plane is Ax + By + Cz + D = 0, normal pointing inside.
func ExtractFrustum(vp mgl32.Mat4) [6]mgl32.Vec4 {
	var planes [6]mgl32.Vec4
	row := func(i int) mgl32.Vec4 {
		return mgl32.Vec4{vp.At(i, 0), vp.At(i, 1), vp.At(i, 2), vp.At(i, 3)}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	planes[0] = r3.Add(r0)
	planes[1] = r3.Sub(r0)
	planes[2] = r3.Add(r1)
	planes[3] = r3.Sub(r1)
	// OpenGL-style -1..1 depth
	planes[4] = r3.Add(r2)
	planes[5] = r3.Sub(r2)

	for i := 0; i < 6; i++ {
		length := planes[i].Vec3().Len()
		if length > 0 {
			planes[i] = planes[i].Mul(1.0 / length)
		}
	}
	return planes
}
