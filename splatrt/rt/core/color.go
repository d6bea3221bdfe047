package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// AdjustColor shifts hue (in turns) and scales saturation and value by
// (1+saturation) and (1+brightness). Zero arguments leave c unchanged.
func AdjustColor(c mgl32.Vec3, hue, saturation, brightness float32) mgl32.Vec3 {
	if hue == 0 && saturation == 0 && brightness == 0 {
		return c
	}
	h, s, v := RGBToHSV(c)
	h = h + hue
	h -= float32(math.Floor(float64(h)))
	s = mgl32.Clamp(s*(1+saturation), 0, 1)
	v = max(v*(1+brightness), 0)
	return HSVToRGB(h, s, v)
}

// RGBToHSV returns hue in [0,1).
func RGBToHSV(c mgl32.Vec3) (h, s, v float32) {
	r, g, b := c.X(), c.Y(), c.Z()
	mx := max(r, g, b)
	mn := min(r, g, b)
	v = mx
	d := mx - mn
	if mx <= 0 || d <= 0 {
		return 0, 0, v
	}
	s = d / mx
	switch mx {
	case r:
		h = (g - b) / d
		if h < 0 {
			h += 6
		}
	case g:
		h = (b-r)/d + 2
	default:
		h = (r-g)/d + 4
	}
	return h / 6, s, v
}

func HSVToRGB(h, s, v float32) mgl32.Vec3 {
	if s <= 0 {
		return mgl32.Vec3{v, v, v}
	}
	h6 := h * 6
	i := int(math.Floor(float64(h6))) % 6
	f := h6 - float32(math.Floor(float64(h6)))
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))
	switch i {
	case 0:
		return mgl32.Vec3{v, t, p}
	case 1:
		return mgl32.Vec3{q, v, p}
	case 2:
		return mgl32.Vec3{p, v, t}
	case 3:
		return mgl32.Vec3{p, q, v}
	case 4:
		return mgl32.Vec3{t, p, v}
	default:
		return mgl32.Vec3{v, p, q}
	}
}

// Gradient maps value within [lo,hi] onto a red to green ramp.
func Gradient(value, lo, hi float32) mgl32.Vec4 {
	t := float32(0)
	if hi > lo {
		t = mgl32.Clamp((value-lo)/(hi-lo), 0, 1)
	}
	return mgl32.Vec4{1 - t, t, 0, 1}
}
