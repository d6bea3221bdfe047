package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Grid is a rotated box of Width x Height x Depth cubic cells of CellSize,
// with Corner at its minimum corner.
type Grid struct {
	Corner   mgl32.Vec3 `toml:"corner"`
	Rotation mgl32.Vec3 `toml:"rotation"` // Euler degrees, applied Z then Y then X
	Width    int        `toml:"width"`
	Height   int        `toml:"height"`
	Depth    int        `toml:"depth"`
	CellSize float32    `toml:"cell_size"`
}

func (g Grid) Enabled() bool {
	return g.Width > 0 && g.Height > 0 && g.Depth > 0 && g.CellSize > 0
}

func (g Grid) CellCount() int {
	if !g.Enabled() {
		return 0
	}
	return g.Width * g.Height * g.Depth
}

func (g Grid) orientation() mgl32.Quat {
	r := g.Rotation
	return mgl32.AnglesToQuat(mgl32.DegToRad(r.Z()), mgl32.DegToRad(r.Y()), mgl32.DegToRad(r.X()), mgl32.ZYX)
}

// CellIndex returns the linear cell holding the world position p, or -1.
func (g Grid) CellIndex(p mgl32.Vec3) int {
	if !g.Enabled() {
		return -1
	}
	local := g.orientation().Conjugate().Rotate(p.Sub(g.Corner))
	x := int(math.Floor(float64(local.X() / g.CellSize)))
	y := int(math.Floor(float64(local.Y() / g.CellSize)))
	z := int(math.Floor(float64(local.Z() / g.CellSize)))
	if x < 0 || y < 0 || z < 0 || x >= g.Width || y >= g.Height || z >= g.Depth {
		return -1
	}
	return x + y*g.Width + z*g.Width*g.Height
}

// CellCenter returns the world position of a cell's centre.
func (g Grid) CellCenter(index int) mgl32.Vec3 {
	x := index % g.Width
	y := (index / g.Width) % g.Height
	z := index / (g.Width * g.Height)
	local := mgl32.Vec3{
		(float32(x) + 0.5) * g.CellSize,
		(float32(y) + 0.5) * g.CellSize,
		(float32(z) + 0.5) * g.CellSize,
	}
	return g.Corner.Add(g.orientation().Rotate(local))
}
