package gpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/gekko3d/gsplat/splatrt/rt/asset"
	"github.com/gekko3d/gsplat/splatrt/rt/core"
	"github.com/gekko3d/gsplat/splatrt/rt/render"
	"github.com/gekko3d/gsplat/splatrt/rt/shaders"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func f32At(b []byte, o int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[o:]))
}

func TestAlignSize(t *testing.T) {
	tests := []struct {
		in   int
		want uint64
	}{
		{0, 0}, {1, 4}, {4, 4}, {5, 8}, {40, 40}, {41, 44},
	}
	for _, tt := range tests {
		if got := alignSize(tt.in); got != tt.want {
			t.Errorf("alignSize(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPackParams(t *testing.T) {
	mvp := mgl32.Translate3D(1, 2, 3)
	b := PackParams(mgl32.Vec2{640, 480}, 5, core.DisplayDebugPointIndices, mvp)
	assert.Len(t, b, ParamsSize)
	assert.Equal(t, float32(640), f32At(b, 0))
	assert.Equal(t, float32(480), f32At(b, 4))
	assert.Equal(t, float32(5), f32At(b, 8))
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(b[12:]))
	// column major: translation in elements 12..14
	assert.Equal(t, float32(1), f32At(b, 16+12*4))
	assert.Equal(t, float32(3), f32At(b, 16+14*4))
}

func TestShaderModes(t *testing.T) {
	tests := []struct {
		mode core.DisplayMode
		want uint32
	}{
		{core.DisplaySplats, 0},
		{core.DisplayDebugPoints, 1},
		{core.DisplayDebugPointIndices, 2},
		{core.DisplayDebugBoxes, 3},
		{core.DisplayDebugChunkBounds, 3},
	}
	for _, tt := range tests {
		if got := shaderMode(tt.mode); got != tt.want {
			t.Errorf("shaderMode(%v) = %d, want %d", tt.mode, got, tt.want)
		}
	}
}

func TestPackOrderAndChunks(t *testing.T) {
	b := PackOrder([]uint32{7, 0, 3})
	assert.Equal(t, []uint32{7, 0, 3}, []uint32{
		binary.LittleEndian.Uint32(b[0:]),
		binary.LittleEndian.Uint32(b[4:]),
		binary.LittleEndian.Uint32(b[8:]),
	})

	chunks := []asset.ChunkInfo{
		{PosMin: mgl32.Vec3{-1, -2, -3}, PosMax: mgl32.Vec3{1, 2, 3}},
		{PosMin: mgl32.Vec3{4, 5, 6}, PosMax: mgl32.Vec3{7, 8, 9}},
	}
	cb := PackChunks(chunks)
	assert.Len(t, cb, 2*ChunkStride)
	assert.Equal(t, float32(-2), f32At(cb, 4))
	assert.Equal(t, float32(3), f32At(cb, 16+8))
	assert.Equal(t, float32(4), f32At(cb, ChunkStride))

	// empty chunk lists still bind a non-empty buffer
	assert.Len(t, PackChunks(nil), ChunkStride)
}

func TestShaderBindingSlots(t *testing.T) {
	for slot, name := range map[int]string{
		BindView:   "view_data",
		BindOrder:  "order",
		BindParams: "params",
		BindChunks: "chunks",
	} {
		decl := fmt.Sprintf("@group(0) @binding(%d) var", slot)
		i := strings.Index(shaders.SplatsWGSL, decl)
		if !assert.GreaterOrEqual(t, i, 0, name) {
			continue
		}
		line := shaders.SplatsWGSL[i:]
		line = line[:strings.IndexByte(line, '\n')]
		assert.Contains(t, line, " "+name+":", name)
	}
	assert.Contains(t, shaders.CompositeWGSL, "fn fs_main")
}

func TestTargetWithoutPipelines(t *testing.T) {
	tgt := &Target{}
	tgt.Abort()
	tgt.Abort()

	cam := core.NewCamera(mgl32.Ident4(), mgl32.Ident4(), 64, 64)
	assert.ErrorIs(t, tgt.BeginFrame(cam), render.ErrResourcesMissing)
	assert.ErrorIs(t, tgt.Draw(&render.DrawCall{}), render.ErrResourcesMissing)
	assert.ErrorIs(t, tgt.Composite(), render.ErrResourcesMissing)
	assert.Nil(t, tgt.encoder)
	assert.Nil(t, tgt.pass)
}
