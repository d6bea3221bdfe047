package core

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/x448/float16"
)

func HalfBits(f float32) uint16 {
	return float16.Fromfloat32(f).Bits()
}

func HalfValue(b uint16) float32 {
	return float16.Frombits(b).Float32()
}

// PackHalf2 packs a into the high and b into the low 16 bits.
func PackHalf2(a, b float32) uint32 {
	return uint32(HalfBits(a))<<16 | uint32(HalfBits(b))
}

func UnpackHalf2(v uint32) (a, b float32) {
	return HalfValue(uint16(v >> 16)), HalfValue(uint16(v))
}

// PackHalfRGBA packs a colour as {r<<16|g, b<<16|a}.
func PackHalfRGBA(c mgl32.Vec4) [2]uint32 {
	return [2]uint32{PackHalf2(c[0], c[1]), PackHalf2(c[2], c[3])}
}

func UnpackHalfRGBA(v [2]uint32) mgl32.Vec4 {
	r, g := UnpackHalf2(v[0])
	b, a := UnpackHalf2(v[1])
	return mgl32.Vec4{r, g, b, a}
}
