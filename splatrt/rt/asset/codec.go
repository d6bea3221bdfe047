package asset

import (
	"encoding/binary"
	"math"

	"github.com/gekko3d/gsplat/splatrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// Splat is the decoded form of one splat. Color holds the base colour in
// rgb and opacity in a. Scale is linear.
type Splat struct {
	Pos   mgl32.Vec3
	Rot   mgl32.Quat
	Scale mgl32.Vec3
	Color mgl32.Vec4
	SH    [core.SHCoeffCount]mgl32.Vec3
}

// Layout describes how splat data is encoded in raw buffers.
type Layout struct {
	PosFormat   VectorFormat
	ScaleFormat VectorFormat
	SHFormat    SHFormat
	ColorFormat ColorFormat
	Chunks      []ChunkInfo
}

// FullPrecision is the layout used by editable stores.
func FullPrecision() Layout {
	return Layout{PosFormat: VectorFloat32, ScaleFormat: VectorFloat32, SHFormat: SHFloat32, ColorFormat: ColorFloat32x4}
}

func (l Layout) PosStride() int   { return l.PosFormat.Size() }
func (l Layout) OtherStride() int { return 4 + l.ScaleFormat.Size() }
func (l Layout) SHStride() int    { return l.SHFormat.Size() }
func (l Layout) ColorStride() int { return l.ColorFormat.Size() }

// Chunked reports whether the layout carries chunk ranges.
func (l Layout) Chunked() bool { return len(l.Chunks) > 0 }

// NeedsChunks reports whether any format is chunk relative.
func (l Layout) NeedsChunks() bool {
	return l.PosFormat.Quantized() || l.ScaleFormat.Quantized() || l.SHFormat.Quantized()
}

func (l Layout) chunk(i int) *ChunkInfo {
	c := i / ChunkSize
	if c < len(l.Chunks) {
		return &l.Chunks[c]
	}
	return nil
}

func lerp3(a, b, t mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{
		a[0] + (b[0]-a[0])*t[0],
		a[1] + (b[1]-a[1])*t[1],
		a[2] + (b[2]-a[2])*t[2],
	}
}

func invLerp(lo, hi, v float32) float32 {
	d := hi - lo
	if d <= 0 {
		return 0
	}
	return mgl32.Clamp((v-lo)/d, 0, 1)
}

func invLerp3(lo, hi, v mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{invLerp(lo[0], hi[0], v[0]), invLerp(lo[1], hi[1], v[1]), invLerp(lo[2], hi[2], v[2])}
}

func quantize(t float32, levels uint32) uint32 {
	return uint32(mgl32.Clamp(t, 0, 1)*float32(levels) + 0.5)
}

// DecodeVector reads a vector; quantized formats come back in 0..1.
func DecodeVector(f VectorFormat, b []byte) mgl32.Vec3 {
	switch f {
	case VectorFloat32:
		return mgl32.Vec3{
			math.Float32frombits(binary.LittleEndian.Uint32(b[0:])),
			math.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
			math.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
		}
	case VectorNorm16:
		return mgl32.Vec3{
			float32(binary.LittleEndian.Uint16(b[0:])) / 65535,
			float32(binary.LittleEndian.Uint16(b[2:])) / 65535,
			float32(binary.LittleEndian.Uint16(b[4:])) / 65535,
		}
	case VectorNorm11:
		return decodeNorm11(binary.LittleEndian.Uint32(b))
	case VectorNorm6:
		return decodeNorm565(binary.LittleEndian.Uint16(b))
	}
	return mgl32.Vec3{}
}

// EncodeVector is the inverse of DecodeVector.
func EncodeVector(f VectorFormat, b []byte, v mgl32.Vec3) {
	switch f {
	case VectorFloat32:
		binary.LittleEndian.PutUint32(b[0:], math.Float32bits(v[0]))
		binary.LittleEndian.PutUint32(b[4:], math.Float32bits(v[1]))
		binary.LittleEndian.PutUint32(b[8:], math.Float32bits(v[2]))
	case VectorNorm16:
		binary.LittleEndian.PutUint16(b[0:], uint16(quantize(v[0], 65535)))
		binary.LittleEndian.PutUint16(b[2:], uint16(quantize(v[1], 65535)))
		binary.LittleEndian.PutUint16(b[4:], uint16(quantize(v[2], 65535)))
	case VectorNorm11:
		binary.LittleEndian.PutUint32(b, encodeNorm11(v))
	case VectorNorm6:
		binary.LittleEndian.PutUint16(b, encodeNorm565(v))
	}
}

func decodeNorm11(v uint32) mgl32.Vec3 {
	return mgl32.Vec3{
		float32(v&2047) / 2047,
		float32((v>>11)&1023) / 1023,
		float32((v>>21)&2047) / 2047,
	}
}

func encodeNorm11(v mgl32.Vec3) uint32 {
	return quantize(v[0], 2047) | quantize(v[1], 1023)<<11 | quantize(v[2], 2047)<<21
}

func decodeNorm565(v uint16) mgl32.Vec3 {
	return mgl32.Vec3{
		float32(v&31) / 31,
		float32((v>>5)&63) / 63,
		float32((v>>11)&31) / 31,
	}
}

func encodeNorm565(v mgl32.Vec3) uint16 {
	return uint16(quantize(v[0], 31) | quantize(v[1], 63)<<5 | quantize(v[2], 31)<<11)
}

// PackRotation stores a unit quaternion as "smallest three" in 10.10.10.2 bits.
func PackRotation(q mgl32.Quat) uint32 {
	q = q.Normalize()
	c := [4]float32{q.V[0], q.V[1], q.V[2], q.W}
	idx := 0
	maxV := abs32(c[0])
	for k := 1; k < 4; k++ {
		if a := abs32(c[k]); a > maxV {
			idx, maxV = k, a
		}
	}
	var three [3]float32
	j := 0
	for k := 0; k < 4; k++ {
		if k != idx {
			three[j] = c[k]
			j++
		}
	}
	sign := float32(1)
	if c[idx] < 0 {
		sign = -1
	}
	var enc uint32
	for k := 0; k < 3; k++ {
		t := three[k]*sign*math.Sqrt2/2 + 0.5
		enc |= quantize(t, 1023) << (10 * k)
	}
	return enc | uint32(idx)<<30
}

// UnpackRotation is the inverse of PackRotation.
func UnpackRotation(enc uint32) mgl32.Quat {
	idx := int(enc >> 30)
	var three [3]float32
	sum := float32(0)
	for k := 0; k < 3; k++ {
		t := float32((enc>>(10*k))&1023) / 1023
		three[k] = t*math.Sqrt2 - math.Sqrt2/2
		sum += three[k] * three[k]
	}
	largest := float32(math.Sqrt(float64(mgl32.Clamp(1-sum, 0, 1))))
	var c [4]float32
	j := 0
	for k := 0; k < 4; k++ {
		if k == idx {
			c[k] = largest
			continue
		}
		c[k] = three[j]
		j++
	}
	return mgl32.Quat{W: c[3], V: mgl32.Vec3{c[0], c[1], c[2]}}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// Pos decodes splat i's position from buf.
func (l Layout) Pos(buf []byte, i int) mgl32.Vec3 {
	s := l.PosStride()
	v := DecodeVector(l.PosFormat, buf[i*s:i*s+s])
	if l.PosFormat.Quantized() {
		if c := l.chunk(i); c != nil {
			v = lerp3(c.PosMin, c.PosMax, v)
		}
	}
	return v
}

func (l Layout) PutPos(buf []byte, i int, p mgl32.Vec3) {
	s := l.PosStride()
	if l.PosFormat.Quantized() {
		if c := l.chunk(i); c != nil {
			p = invLerp3(c.PosMin, c.PosMax, p)
		}
	}
	EncodeVector(l.PosFormat, buf[i*s:i*s+s], p)
}

// Other decodes splat i's rotation and scale from buf.
func (l Layout) Other(buf []byte, i int) (mgl32.Quat, mgl32.Vec3) {
	s := l.OtherStride()
	b := buf[i*s : i*s+s]
	rot := UnpackRotation(binary.LittleEndian.Uint32(b))
	scl := DecodeVector(l.ScaleFormat, b[4:])
	if l.ScaleFormat.Quantized() {
		if c := l.chunk(i); c != nil {
			scl = lerp3(c.SclMin, c.SclMax, scl)
		}
	}
	return rot, scl
}

func (l Layout) PutOther(buf []byte, i int, rot mgl32.Quat, scl mgl32.Vec3) {
	s := l.OtherStride()
	b := buf[i*s : i*s+s]
	binary.LittleEndian.PutUint32(b, PackRotation(rot))
	if l.ScaleFormat.Quantized() {
		if c := l.chunk(i); c != nil {
			scl = invLerp3(c.SclMin, c.SclMax, scl)
		}
	}
	EncodeVector(l.ScaleFormat, b[4:], scl)
}

// SH decodes splat i's 15 rest coefficients.
func (l Layout) SH(buf []byte, i int, out *[core.SHCoeffCount]mgl32.Vec3) {
	s := l.SHStride()
	b := buf[i*s : i*s+s]
	c := l.chunk(i)
	for k := 0; k < core.SHCoeffCount; k++ {
		var v mgl32.Vec3
		switch l.SHFormat {
		case SHFloat32:
			v = DecodeVector(VectorFloat32, b[k*12:])
		case SHFloat16:
			v = mgl32.Vec3{
				core.HalfValue(binary.LittleEndian.Uint16(b[k*6:])),
				core.HalfValue(binary.LittleEndian.Uint16(b[k*6+2:])),
				core.HalfValue(binary.LittleEndian.Uint16(b[k*6+4:])),
			}
		case SHNorm11:
			v = decodeNorm11(binary.LittleEndian.Uint32(b[k*4:]))
		case SHNorm6:
			v = decodeNorm565(binary.LittleEndian.Uint16(b[k*2:]))
		}
		if l.SHFormat.Quantized() && c != nil {
			v = lerp3(c.SHMin, c.SHMax, v)
		}
		out[k] = v
	}
}

func (l Layout) PutSH(buf []byte, i int, sh *[core.SHCoeffCount]mgl32.Vec3) {
	s := l.SHStride()
	b := buf[i*s : i*s+s]
	c := l.chunk(i)
	for k := 0; k < core.SHCoeffCount; k++ {
		v := sh[k]
		if l.SHFormat.Quantized() && c != nil {
			v = invLerp3(c.SHMin, c.SHMax, v)
		}
		switch l.SHFormat {
		case SHFloat32:
			EncodeVector(VectorFloat32, b[k*12:], v)
		case SHFloat16:
			binary.LittleEndian.PutUint16(b[k*6:], core.HalfBits(v[0]))
			binary.LittleEndian.PutUint16(b[k*6+2:], core.HalfBits(v[1]))
			binary.LittleEndian.PutUint16(b[k*6+4:], core.HalfBits(v[2]))
		case SHNorm11:
			binary.LittleEndian.PutUint32(b[k*4:], encodeNorm11(v))
		case SHNorm6:
			binary.LittleEndian.PutUint16(b[k*2:], encodeNorm565(v))
		}
	}
}

func (l Layout) colorOffset(i int) int {
	x, y := core.SplatIndexToPixel(i)
	return (y*core.ColorTextureWidth + x) * l.ColorStride()
}

// Color decodes splat i's colour from the swizzled colour texture.
func (l Layout) Color(tex []byte, i int) mgl32.Vec4 {
	b := tex[l.colorOffset(i):]
	var v mgl32.Vec4
	switch l.ColorFormat {
	case ColorFloat32x4:
		for k := 0; k < 4; k++ {
			v[k] = math.Float32frombits(binary.LittleEndian.Uint32(b[k*4:]))
		}
	case ColorFloat16x4:
		for k := 0; k < 4; k++ {
			v[k] = core.HalfValue(binary.LittleEndian.Uint16(b[k*2:]))
		}
	case ColorNorm8x4:
		for k := 0; k < 4; k++ {
			v[k] = float32(b[k]) / 255
		}
		if c := l.chunk(i); c != nil {
			for k := 0; k < 4; k++ {
				v[k] = c.ColMin[k] + (c.ColMax[k]-c.ColMin[k])*v[k]
			}
		}
	}
	return v
}

func (l Layout) PutColor(tex []byte, i int, v mgl32.Vec4) {
	b := tex[l.colorOffset(i):]
	switch l.ColorFormat {
	case ColorFloat32x4:
		for k := 0; k < 4; k++ {
			binary.LittleEndian.PutUint32(b[k*4:], math.Float32bits(v[k]))
		}
	case ColorFloat16x4:
		for k := 0; k < 4; k++ {
			binary.LittleEndian.PutUint16(b[k*2:], core.HalfBits(v[k]))
		}
	case ColorNorm8x4:
		c := l.chunk(i)
		for k := 0; k < 4; k++ {
			t := v[k]
			if c != nil {
				t = invLerp(c.ColMin[k], c.ColMax[k], t)
			}
			b[k] = uint8(quantize(t, 255))
		}
	}
}

// SameEncoding reports whether records of l and o are byte compatible:
// equal formats and no per-chunk ranges on either side.
func (l Layout) SameEncoding(o Layout) bool {
	return !l.Chunked() && !o.Chunked() &&
		l.PosFormat == o.PosFormat && l.ScaleFormat == o.ScaleFormat &&
		l.SHFormat == o.SHFormat && l.ColorFormat == o.ColorFormat
}

// CopyRaw copies splat si of src into slot di of dst byte for byte,
// including its colour texel. Both buffer sets must be in layout l.
func (l Layout) CopyRaw(dst Buffers, di int, src Buffers, si int) {
	copyRecord(dst.Pos, di, src.Pos, si, l.PosStride())
	copyRecord(dst.Other, di, src.Other, si, l.OtherStride())
	copyRecord(dst.SH, di, src.SH, si, l.SHStride())
	cs := l.ColorStride()
	d, s := l.colorOffset(di), l.colorOffset(si)
	copy(dst.Color[d:d+cs], src.Color[s:s+cs])
}

func copyRecord(dst []byte, di int, src []byte, si, stride int) {
	copy(dst[di*stride:(di+1)*stride], src[si*stride:(si+1)*stride])
}

// ColorTextureBytes returns the colour texture size for count splats.
func (l Layout) ColorTextureBytes(count int) int {
	w, h := core.ColorTextureSize(count)
	return w * h * l.ColorStride()
}

// Buffers groups the four raw splat data buffers.
type Buffers struct {
	Pos, Other, SH, Color []byte
}

// Decode reads splat i from raw buffers.
func (l Layout) Decode(b Buffers, i int) Splat {
	var s Splat
	s.Pos = l.Pos(b.Pos, i)
	s.Rot, s.Scale = l.Other(b.Other, i)
	l.SH(b.SH, i, &s.SH)
	s.Color = l.Color(b.Color, i)
	return s
}

// Encode writes splat i into raw buffers.
func (l Layout) Encode(b Buffers, i int, s *Splat) {
	l.PutPos(b.Pos, i, s.Pos)
	l.PutOther(b.Other, i, s.Rot, s.Scale)
	l.PutSH(b.SH, i, &s.SH)
	l.PutColor(b.Color, i, s.Color)
}
