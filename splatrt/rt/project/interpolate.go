package project

import (
	"github.com/gekko3d/gsplat/splatrt/rt/asset"
	"github.com/gekko3d/gsplat/splatrt/rt/compute"
	"github.com/gekko3d/gsplat/splatrt/rt/core"
	"github.com/gekko3d/gsplat/splatrt/rt/splat"
	"github.com/go-gl/mathgl/mgl32"
)

// Interpolate blends two splats: linear for position, scale, colour and SH,
// spherical for rotation.
func Interpolate(a, b *asset.Splat, t float32) asset.Splat {
	t = mgl32.Clamp(t, 0, 1)
	out := asset.Splat{
		Pos:   a.Pos.Add(b.Pos.Sub(a.Pos).Mul(t)),
		Scale: a.Scale.Add(b.Scale.Sub(a.Scale).Mul(t)),
		Color: a.Color.Add(b.Color.Sub(a.Color).Mul(t)),
	}
	for k := range out.SH {
		out.SH[k] = a.SH[k].Add(b.SH[k].Sub(a.SH[k]).Mul(t))
	}
	rb := b.Rot
	if a.Rot.Dot(rb) < 0 {
		rb = rb.Scale(-1)
	}
	out.Rot = mgl32.QuatSlerp(a.Rot, rb, t).Normalize()
	return out
}

// LerpViewData blends two view-record arrays of equal length into dst.
// Records culled in either input stay culled.
func LerpViewData(dev *compute.Device, dst, a, b []splat.ViewRecord, t float32) {
	n := min(len(dst), len(a), len(b))
	dev.Dispatch("lerp-view-data", n, func(i int) {
		ra, rb := &a[i], &b[i]
		if ra.Culled() || rb.Culled() {
			dst[i] = splat.ViewRecord{}
			return
		}
		ca, cb := ra.RGBA(), rb.RGBA()
		dst[i] = splat.ViewRecord{
			Pos:   ra.Pos.Add(rb.Pos.Sub(ra.Pos).Mul(t)),
			Axis1: ra.Axis1.Add(rb.Axis1.Sub(ra.Axis1).Mul(t)),
			Axis2: ra.Axis2.Add(rb.Axis2.Sub(ra.Axis2).Mul(t)),
			Color: core.PackHalfRGBA(ca.Add(cb.Sub(ca).Mul(t))),
		}
	})
}
