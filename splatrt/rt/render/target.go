package render

import (
	"errors"

	"github.com/gekko3d/gsplat/splatrt/rt/asset"
	"github.com/gekko3d/gsplat/splatrt/rt/core"
	"github.com/gekko3d/gsplat/splatrt/rt/splat"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrResourcesMissing is returned by targets whose shaders or pipelines
// could not be created. Such a target draws nothing.
var ErrResourcesMissing = errors.New("render target resources missing")

// DrawCall is one instanced draw of a store's view records.
type DrawCall struct {
	Store         *splat.Store
	Mode          core.DisplayMode
	IndexCount    int
	InstanceCount int
	PointSize     float32

	View  []splat.ViewRecord
	Order []uint32 // back to front
	// Chunks and MVP are set in chunk-bounds mode.
	Chunks []asset.ChunkInfo
	MVP    mgl32.Mat4
}

// Target receives the draws of one camera frame. Draw calls arrive far
// to near; Composite resolves the intermediate buffer onto the output.
type Target interface {
	BeginFrame(cam *core.Camera) error
	Draw(dc *DrawCall) error
	Composite() error
}
