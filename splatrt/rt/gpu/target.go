package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	gsplat "github.com/gekko3d/gsplat"
	"github.com/gekko3d/gsplat/splatrt/rt/core"
	"github.com/gekko3d/gsplat/splatrt/rt/render"
	"github.com/gekko3d/gsplat/splatrt/rt/shaders"
	"github.com/gekko3d/gsplat/splatrt/rt/splat"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

const accumFormat = wgpu.TextureFormatRGBA16Float

// storeBuffers are the device copies of one store's frame data.
type storeBuffers struct {
	view, order, params, chunks *wgpu.Buffer
	bindGroup                   *wgpu.BindGroup
	packed                      []byte
}

func (b *storeBuffers) release() {
	for _, buf := range []*wgpu.Buffer{b.view, b.order, b.params, b.chunks} {
		if buf != nil {
			buf.Release()
		}
	}
	if b.bindGroup != nil {
		b.bindGroup.Release()
	}
}

// Target renders draw calls with WebGPU. Splats accumulate premultiplied
// into a half float texture that Composite blends over Background onto
// the output view set by SetOutput.
type Target struct {
	Device     *wgpu.Device
	Background mgl32.Vec4

	log gsplat.Logger

	splatLayout       *wgpu.BindGroupLayout
	splatPipeline     *wgpu.RenderPipeline
	chunkPipeline     *wgpu.RenderPipeline
	compositePipeline *wgpu.RenderPipeline
	sampler           *wgpu.Sampler

	accumTex   *wgpu.Texture
	accumView  *wgpu.TextureView
	compBuf    *wgpu.Buffer
	compBG     *wgpu.BindGroup
	width      int
	height     int
	output     *wgpu.TextureView
	buffers    map[uuid.UUID]*storeBuffers
	encoder    *wgpu.CommandEncoder
	pass       *wgpu.RenderPassEncoder
	screenSize mgl32.Vec2
}

// NewTarget builds the splat and composite pipelines for an output of
// format. Failures wrap render.ErrResourcesMissing.
func NewTarget(device *wgpu.Device, format wgpu.TextureFormat, logger gsplat.Logger) (*Target, error) {
	t := &Target{
		Device:     device,
		Background: mgl32.Vec4{0, 0, 0, 1},
		log:        gsplat.OrNop(logger),
		buffers:    make(map[uuid.UUID]*storeBuffers),
	}
	if err := t.createPipelines(format); err != nil {
		return nil, fmt.Errorf("%w: %v", render.ErrResourcesMissing, err)
	}
	return t, nil
}

func (t *Target) createPipelines(format wgpu.TextureFormat) error {
	splatModule, err := t.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "SplatShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.SplatsWGSL},
	})
	if err != nil {
		return err
	}
	compModule, err := t.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "CompositeShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.CompositeWGSL},
	})
	if err != nil {
		return err
	}

	storage := func(binding uint32) wgpu.BindGroupLayoutEntry {
		return wgpu.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: wgpu.ShaderStageVertex,
			Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage},
		}
	}
	t.splatLayout, err = t.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "SplatBGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			storage(BindView),
			storage(BindOrder),
			{
				Binding:    BindParams,
				Visibility: wgpu.ShaderStageVertex,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: ParamsSize,
				},
			},
			storage(BindChunks),
		},
	})
	if err != nil {
		return err
	}
	layout, err := t.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		BindGroupLayouts: []*wgpu.BindGroupLayout{t.splatLayout},
	})
	if err != nil {
		return err
	}

	// Premultiplied back to front "over".
	premul := &wgpu.BlendState{
		Color: wgpu.BlendComponent{
			Operation: wgpu.BlendOperationAdd,
			SrcFactor: wgpu.BlendFactorOne,
			DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
		},
		Alpha: wgpu.BlendComponent{
			Operation: wgpu.BlendOperationAdd,
			SrcFactor: wgpu.BlendFactorOne,
			DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
		},
	}
	splatDesc := func(label, vsEntry string) *wgpu.RenderPipelineDescriptor {
		return &wgpu.RenderPipelineDescriptor{
			Label:  label,
			Layout: layout,
			Vertex: wgpu.VertexState{Module: splatModule, EntryPoint: vsEntry},
			Fragment: &wgpu.FragmentState{
				Module:     splatModule,
				EntryPoint: "fs_splat",
				Targets: []wgpu.ColorTargetState{{
					Format:    accumFormat,
					WriteMask: wgpu.ColorWriteMaskAll,
					Blend:     premul,
				}},
			},
			Primitive: wgpu.PrimitiveState{
				Topology:  wgpu.PrimitiveTopologyTriangleList,
				FrontFace: wgpu.FrontFaceCCW,
				CullMode:  wgpu.CullModeNone,
			},
			Multisample: wgpu.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
		}
	}
	if t.splatPipeline, err = t.Device.CreateRenderPipeline(splatDesc("SplatPipeline", "vs_splat")); err != nil {
		return err
	}
	if t.chunkPipeline, err = t.Device.CreateRenderPipeline(splatDesc("ChunkPipeline", "vs_chunk")); err != nil {
		return err
	}

	t.compositePipeline, err = t.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "CompositePipeline",
		Vertex: wgpu.VertexState{Module: compModule, EntryPoint: "vs_main"},
		Fragment: &wgpu.FragmentState{
			Module:     compModule,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    format,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive:   wgpu.PrimitiveState{Topology: wgpu.PrimitiveTopologyTriangleList},
		Multisample: wgpu.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		return err
	}

	t.sampler, err = t.Device.CreateSampler(&wgpu.SamplerDescriptor{
		MinFilter:     wgpu.FilterModeNearest,
		MagFilter:     wgpu.FilterModeNearest,
		MaxAnisotropy: 1,
	})
	return err
}

// SetOutput sets the view Composite writes to, usually the surface texture
// of the current frame.
func (t *Target) SetOutput(view *wgpu.TextureView) { t.output = view }

func (t *Target) ensureAccum(w, h int) error {
	if t.accumTex != nil && t.width == w && t.height == h {
		return nil
	}
	if t.accumView != nil {
		t.accumView.Release()
	}
	if t.accumTex != nil {
		t.accumTex.Release()
	}
	if t.compBG != nil {
		t.compBG.Release()
		t.compBG = nil
	}
	var err error
	t.accumTex, err = t.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "SplatAccum",
		Size:          wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        accumFormat,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
		SampleCount:   1,
	})
	if err != nil {
		return err
	}
	if t.accumView, err = t.accumTex.CreateView(nil); err != nil {
		return err
	}
	t.width, t.height = w, h
	return nil
}

// Abort ends and drops a frame left open by a failed draw or composite.
func (t *Target) Abort() {
	if t.pass != nil {
		_ = t.pass.End()
		t.pass.Release()
		t.pass = nil
	}
	if t.encoder != nil {
		t.encoder.Release()
		t.encoder = nil
	}
}

func (t *Target) BeginFrame(cam *core.Camera) error {
	t.Abort()
	if t.splatPipeline == nil || cam.Width <= 0 || cam.Height <= 0 {
		return render.ErrResourcesMissing
	}
	if err := t.ensureAccum(cam.Width, cam.Height); err != nil {
		return fmt.Errorf("%w: accumulation texture: %v", render.ErrResourcesMissing, err)
	}
	t.screenSize = cam.ScreenSize()

	var err error
	t.encoder, err = t.Device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	t.pass = t.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       t.accumView,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 0},
		}},
	})
	return nil
}

func (t *Target) upload(dc *render.DrawCall) (*storeBuffers, error) {
	b := t.buffers[dc.Store.ID]
	if b == nil {
		b = &storeBuffers{}
		t.buffers[dc.Store.ID] = b
	}
	if need := len(dc.View) * splat.ViewRecordSize; cap(b.packed) < need {
		b.packed = make([]byte, need)
	} else {
		b.packed = b.packed[:need]
	}
	splat.PackViewRecords(b.packed, dc.View)

	stale := b.bindGroup == nil
	for _, u := range []struct {
		name  string
		buf   **wgpu.Buffer
		data  []byte
		usage wgpu.BufferUsage
	}{
		{"SplatViewData", &b.view, b.packed, wgpu.BufferUsageStorage},
		{"SplatOrder", &b.order, PackOrder(dc.Order), wgpu.BufferUsageStorage},
		{"SplatParams", &b.params, PackParams(t.screenSize, dc.PointSize, dc.Mode, dc.MVP), wgpu.BufferUsageUniform},
		{"SplatChunks", &b.chunks, PackChunks(dc.Chunks), wgpu.BufferUsageStorage},
	} {
		recreated, err := ensureBuffer(t.Device, u.name, u.buf, u.data, u.usage)
		if err != nil {
			return nil, fmt.Errorf("upload %s: %w", u.name, err)
		}
		stale = stale || recreated
	}
	if !stale {
		return b, nil
	}
	if b.bindGroup != nil {
		b.bindGroup.Release()
	}
	var err error
	b.bindGroup, err = t.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "SplatBG",
		Layout: t.splatLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: BindView, Buffer: b.view, Size: wgpu.WholeSize},
			{Binding: BindOrder, Buffer: b.order, Size: wgpu.WholeSize},
			{Binding: BindParams, Buffer: b.params, Size: ParamsSize},
			{Binding: BindChunks, Buffer: b.chunks, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (t *Target) Draw(dc *render.DrawCall) error {
	if t.pass == nil {
		return render.ErrResourcesMissing
	}
	b, err := t.upload(dc)
	if err != nil {
		return err
	}
	pipeline := t.splatPipeline
	if dc.Mode == core.DisplayDebugChunkBounds {
		pipeline = t.chunkPipeline
	}
	t.pass.SetPipeline(pipeline)
	t.pass.SetBindGroup(0, b.bindGroup, nil)
	t.pass.Draw(uint32(dc.IndexCount), uint32(dc.InstanceCount), 0, 0)
	return nil
}

func (t *Target) Composite() (err error) {
	if t.pass == nil {
		return render.ErrResourcesMissing
	}
	defer func() {
		if err != nil {
			t.Abort()
		}
	}()
	err = t.pass.End()
	t.pass.Release()
	t.pass = nil
	if err != nil {
		return fmt.Errorf("splat pass end: %w", err)
	}
	if t.output == nil {
		return render.ErrResourcesMissing
	}

	recreated, err := ensureBuffer(t.Device, "CompositeParams", &t.compBuf, PackComposite(t.Background), wgpu.BufferUsageUniform)
	if err != nil {
		return err
	}
	if t.compBG == nil || recreated {
		if t.compBG != nil {
			t.compBG.Release()
		}
		t.compBG, err = t.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Layout: t.compositePipeline.GetBindGroupLayout(0),
			Entries: []wgpu.BindGroupEntry{
				{Binding: 0, TextureView: t.accumView},
				{Binding: 1, Sampler: t.sampler},
				{Binding: 2, Buffer: t.compBuf, Size: CompositeSize},
			},
		})
		if err != nil {
			return err
		}
	}

	cPass := t.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       t.output,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
		}},
	})
	cPass.SetPipeline(t.compositePipeline)
	cPass.SetBindGroup(0, t.compBG, nil)
	cPass.Draw(3, 1, 0, 0)
	if err := cPass.End(); err != nil {
		return fmt.Errorf("composite pass end: %w", err)
	}

	cmd, err := t.encoder.Finish(nil)
	t.encoder.Release()
	t.encoder = nil
	if err != nil {
		return fmt.Errorf("encoder finish: %w", err)
	}
	t.Device.GetQueue().Submit(cmd)
	cmd.Release()
	return nil
}

// Forget drops the device buffers of a store, typically after it was
// unregistered from the coordinator.
func (t *Target) Forget(s *splat.Store) {
	if b, ok := t.buffers[s.ID]; ok {
		b.release()
		delete(t.buffers, s.ID)
		t.log.Debugf("gpu: released buffers of %s", s.Name)
	}
}

func (t *Target) Release() {
	t.Abort()
	for id, b := range t.buffers {
		b.release()
		delete(t.buffers, id)
	}
	if t.compBG != nil {
		t.compBG.Release()
	}
	if t.compBuf != nil {
		t.compBuf.Release()
	}
	if t.accumView != nil {
		t.accumView.Release()
	}
	if t.accumTex != nil {
		t.accumTex.Release()
	}
	t.compBG, t.compBuf, t.accumView, t.accumTex = nil, nil, nil, nil
	t.sampler.Release()
	t.compositePipeline.Release()
	t.chunkPipeline.Release()
	t.splatPipeline.Release()
	t.splatLayout.Release()
	t.splatPipeline = nil
}
