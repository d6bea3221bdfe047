package asset

import (
	"fmt"

	"github.com/gekko3d/gsplat/splatrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// CurrentVersion is the only asset data layout Load accepts.
	CurrentVersion = 2023_10_20
	MaxSplats      = 8_600_000
	ChunkSize      = 256
)

type VectorFormat uint8

const (
	VectorFloat32 VectorFormat = iota // 12 bytes
	VectorNorm16                      // 6 bytes, 3x16 bit
	VectorNorm11                      // 4 bytes, 11.10.11
	VectorNorm6                       // 2 bytes, 5.6.5
)

func (f VectorFormat) Size() int {
	switch f {
	case VectorFloat32:
		return 12
	case VectorNorm16:
		return 6
	case VectorNorm11:
		return 4
	case VectorNorm6:
		return 2
	}
	return 0
}

// Quantized formats store values relative to per-chunk ranges.
func (f VectorFormat) Quantized() bool { return f != VectorFloat32 }

func (f VectorFormat) String() string {
	switch f {
	case VectorFloat32:
		return "Float32"
	case VectorNorm16:
		return "Norm16"
	case VectorNorm11:
		return "Norm11"
	case VectorNorm6:
		return "Norm6"
	}
	return fmt.Sprintf("VectorFormat(%d)", uint8(f))
}

type SHFormat uint8

const (
	SHFloat32 SHFormat = iota
	SHFloat16
	SHNorm11
	SHNorm6
)

func (f SHFormat) Size() int {
	const n = 15
	switch f {
	case SHFloat32:
		return n * 12
	case SHFloat16:
		return n * 6
	case SHNorm11:
		return n * 4
	case SHNorm6:
		return n * 2
	}
	return 0
}

func (f SHFormat) Quantized() bool { return f == SHNorm11 || f == SHNorm6 }

func (f SHFormat) String() string {
	switch f {
	case SHFloat32:
		return "Float32"
	case SHFloat16:
		return "Float16"
	case SHNorm11:
		return "Norm11"
	case SHNorm6:
		return "Norm6"
	}
	return fmt.Sprintf("SHFormat(%d)", uint8(f))
}

type ColorFormat uint8

const (
	ColorFloat32x4 ColorFormat = iota
	ColorFloat16x4
	ColorNorm8x4
)

func (f ColorFormat) Size() int {
	switch f {
	case ColorFloat32x4:
		return 16
	case ColorFloat16x4:
		return 8
	case ColorNorm8x4:
		return 4
	}
	return 0
}

func (f ColorFormat) String() string {
	switch f {
	case ColorFloat32x4:
		return "Float32x4"
	case ColorFloat16x4:
		return "Float16x4"
	case ColorNorm8x4:
		return "Norm8x4"
	}
	return fmt.Sprintf("ColorFormat(%d)", uint8(f))
}

// ChunkInfo holds the quantisation ranges of one chunk of ChunkSize splats.
type ChunkInfo struct {
	ColMin, ColMax mgl32.Vec4
	PosMin, PosMax mgl32.Vec3
	SclMin, SclMax mgl32.Vec3
	SHMin, SHMax   mgl32.Vec3
}

// ChunkCount returns the number of chunks covering count splats.
func ChunkCount(count int) int {
	return (count + ChunkSize - 1) / ChunkSize
}

// Bounds returns the position range of the chunk.
func (c ChunkInfo) Bounds() core.AABB {
	return core.AABB{c.PosMin, c.PosMax}
}
