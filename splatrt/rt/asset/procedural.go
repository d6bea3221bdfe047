package asset

import (
	"math"
	"math/rand"

	"github.com/gekko3d/gsplat/splatrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// SphereSplats scatters count splats over a sphere shell of radius,
// coloured by direction. The same seed always gives the same splats.
func SphereSplats(count int, radius float32, seed int64) []Splat {
	rng := rand.New(rand.NewSource(seed))
	out := make([]Splat, count)
	for i := range out {
		// uniform direction
		z := rng.Float32()*2 - 1
		phi := rng.Float64() * 2 * math.Pi
		r := float32(math.Sqrt(float64(1 - z*z)))
		dir := mgl32.Vec3{r * float32(math.Cos(phi)), r * float32(math.Sin(phi)), z}
		jitter := 1 + (rng.Float32()-0.5)*0.05

		axis := mgl32.Vec3{rng.Float32() - 0.5, rng.Float32() - 0.5, rng.Float32() - 0.5}
		if axis.Len() < 1e-3 {
			axis = mgl32.Vec3{0, 1, 0}
		}
		size := radius * 0.02 * (0.5 + rng.Float32())

		s := &out[i]
		s.Pos = dir.Mul(radius * jitter)
		s.Rot = mgl32.QuatRotate(rng.Float32()*math.Pi, axis.Normalize())
		s.Scale = mgl32.Vec3{size, size * 0.6, size * 0.3}
		s.Color = mgl32.Vec4{0.5 + 0.5*dir.X(), 0.5 + 0.5*dir.Y(), 0.5 + 0.5*dir.Z(), 0.6 + 0.4*rng.Float32()}
		for k := range s.SH {
			s.SH[k] = mgl32.Vec3{
				(rng.Float32() - 0.5) * 0.1,
				(rng.Float32() - 0.5) * 0.1,
				(rng.Float32() - 0.5) * 0.1,
			}
		}
	}
	return out
}

// OrbitBookmarks returns count viewpoints circling the origin at distance.
func OrbitBookmarks(count int, distance float32) []core.CameraBookmark {
	out := make([]core.CameraBookmark, count)
	for i := range out {
		a := float64(i) / float64(count) * 2 * math.Pi
		pos := mgl32.Vec3{float32(math.Sin(a)) * distance, distance * 0.25, float32(math.Cos(a)) * distance}
		fwd := pos.Mul(-1).Normalize()
		right := fwd.Cross(mgl32.Vec3{0, 1, 0}).Normalize()
		out[i] = core.CameraBookmark{
			Pos:   pos,
			AxisX: right,
			AxisY: right.Cross(fwd),
			AxisZ: fwd,
			FovY:  60,
		}
	}
	return out
}

// NewSphere builds a procedural sphere asset.
func NewSphere(count int, radius float32, opts BuildOptions) (*Asset, error) {
	if opts.Name == "" {
		opts.Name = "sphere"
	}
	if opts.Cameras == nil {
		opts.Cameras = OrbitBookmarks(4, radius*3)
	}
	return Build(SphereSplats(count, radius, 1), opts)
}
