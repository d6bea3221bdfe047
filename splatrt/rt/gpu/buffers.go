package gpu

import (
	"encoding/binary"
	"math"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/gsplat/splatrt/rt/asset"
	"github.com/gekko3d/gsplat/splatrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// Group 0 binding slots of splats.wgsl.
const (
	BindView   = 0
	BindOrder  = 1
	BindParams = 2
	BindChunks = 3
)

const (
	ParamsSize    = 80
	CompositeSize = 16
	// Chunk bounds are two vec4 per chunk.
	ChunkStride = 32
)

// Shader mode ids, in DisplayMode order.
func shaderMode(m core.DisplayMode) uint32 {
	switch m {
	case core.DisplayDebugPoints:
		return 1
	case core.DisplayDebugPointIndices:
		return 2
	case core.DisplayDebugBoxes, core.DisplayDebugChunkBounds:
		return 3
	}
	return 0
}

// alignSize rounds n up to the 4 byte multiple buffers require.
func alignSize(n int) uint64 {
	s := uint64(n)
	if s%4 != 0 {
		s += 4 - s%4
	}
	return s
}

func putF32(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
}

// PackParams lays out the Params uniform: screen size, point size, mode, mvp.
func PackParams(screen mgl32.Vec2, pointSize float32, mode core.DisplayMode, mvp mgl32.Mat4) []byte {
	b := make([]byte, ParamsSize)
	putF32(b[0:], screen.X())
	putF32(b[4:], screen.Y())
	putF32(b[8:], pointSize)
	binary.LittleEndian.PutUint32(b[12:], shaderMode(mode))
	for i, v := range mvp {
		putF32(b[16+i*4:], v)
	}
	return b
}

func PackOrder(order []uint32) []byte {
	b := make([]byte, len(order)*4)
	for i, v := range order {
		binary.LittleEndian.PutUint32(b[i*4:], v)
	}
	return b
}

// PackChunks writes each chunk's position bounds as two vec4.
func PackChunks(chunks []asset.ChunkInfo) []byte {
	b := make([]byte, max(len(chunks), 1)*ChunkStride)
	for i, c := range chunks {
		o := i * ChunkStride
		for k := 0; k < 3; k++ {
			putF32(b[o+k*4:], c.PosMin[k])
			putF32(b[o+16+k*4:], c.PosMax[k])
		}
	}
	return b
}

func PackComposite(bg mgl32.Vec4) []byte {
	b := make([]byte, CompositeSize)
	for k := 0; k < 4; k++ {
		putF32(b[k*4:], bg[k])
	}
	return b
}

// ensureBuffer grows *buf to hold data and uploads it. It reports whether
// the buffer was recreated, which invalidates bind groups referencing it.
func ensureBuffer(device *wgpu.Device, name string, buf **wgpu.Buffer, data []byte, usage wgpu.BufferUsage) (bool, error) {
	needed := alignSize(max(len(data), 4))
	current := *buf
	recreated := false
	if current == nil || current.GetSize() < needed {
		if current != nil {
			current.Release()
		}
		nb, err := device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: name,
			Size:  needed,
			Usage: usage | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			*buf = nil
			return false, err
		}
		*buf = nb
		recreated = true
	}
	if len(data) > 0 {
		padded := data
		if uint64(len(data))%4 != 0 {
			padded = make([]byte, alignSize(len(data)))
			copy(padded, data)
		}
		if err := device.GetQueue().WriteBuffer(*buf, 0, padded); err != nil {
			return recreated, err
		}
	}
	return recreated, nil
}
