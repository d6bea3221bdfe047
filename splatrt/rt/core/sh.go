package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// SH basis constants for bands 0..3.
const (
	SHC0 = 0.2820948
	SHC1 = 0.4886025
)

var (
	SHC2 = [5]float32{1.0925484, -1.0925484, 0.3153916, -1.0925484, 0.5462742}
	SHC3 = [7]float32{-0.5900436, 2.8906114, -0.4570458, 0.3731763, -0.4570458, 1.4453057, -0.5900436}
)

// SHCoeffCount is the number of non-DC coefficients per channel.
const SHCoeffCount = 15

// SHBands holds the base colour and the 15 rest coefficients of a splat.
type SHBands struct {
	Base mgl32.Vec3
	Rest [SHCoeffCount]mgl32.Vec3
}

// ShadeSH evaluates the colour of a splat seen from dir, the object-space
// direction from the splat toward the viewer, up to order. dimmers scale
// the base colour and the three bands. With onlySH the base colour is
// replaced by mid grey.
func ShadeSH(sh *SHBands, dir mgl32.Vec3, order int, onlySH bool, dimmers [4]float32) mgl32.Vec3 {
	dir = dir.Mul(-1)
	x, y, z := dir.X(), dir.Y(), dir.Z()

	res := sh.Base.Mul(dimmers[0])
	if onlySH {
		res = mgl32.Vec3{0.5, 0.5, 0.5}
	}
	s := &sh.Rest
	if order >= 1 {
		b1 := s[0].Mul(-y).Add(s[1].Mul(z)).Sub(s[2].Mul(x)).Mul(SHC1)
		res = res.Add(b1.Mul(dimmers[1]))
		if order >= 2 {
			xx, yy, zz := x*x, y*y, z*z
			xy, yz, xz := x*y, y*z, x*z
			b2 := s[3].Mul(SHC2[0] * xy).
				Add(s[4].Mul(SHC2[1] * yz)).
				Add(s[5].Mul(SHC2[2] * (2*zz - xx - yy))).
				Add(s[6].Mul(SHC2[3] * xz)).
				Add(s[7].Mul(SHC2[4] * (xx - yy)))
			res = res.Add(b2.Mul(dimmers[2]))
			if order >= 3 {
				b3 := s[8].Mul(SHC3[0] * y * (3*xx - yy)).
					Add(s[9].Mul(SHC3[1] * xy * z)).
					Add(s[10].Mul(SHC3[2] * y * (4*zz - xx - yy))).
					Add(s[11].Mul(SHC3[3] * z * (2*zz - 3*xx - 3*yy))).
					Add(s[12].Mul(SHC3[4] * x * (4*zz - xx - yy))).
					Add(s[13].Mul(SHC3[5] * z * (xx - yy))).
					Add(s[14].Mul(SHC3[6] * x * (xx - 3*yy)))
				res = res.Add(b3.Mul(dimmers[3]))
			}
		}
	}
	return mgl32.Vec3{max(res.X(), 0), max(res.Y(), 0), max(res.Z(), 0)}
}
