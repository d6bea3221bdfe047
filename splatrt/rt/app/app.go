package app

import (
	"fmt"

	gsplat "github.com/gekko3d/gsplat"
	"github.com/gekko3d/gsplat/splatrt/rt/capture"
	"github.com/gekko3d/gsplat/splatrt/rt/core"
	"github.com/gekko3d/gsplat/splatrt/rt/gpu"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

type App struct {
	Window   *glfw.Window
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration

	Target *gpu.Target
	Viewer *Viewer
	Log    gsplat.Logger

	LastTime       float64
	LastRenderTime float64
	MouseCaptured  bool
	MouseX, MouseY float64

	FrameCount int
	FPS        float64
	FPSTime    float64
}

func NewApp(window *glfw.Window, viewer *Viewer, logger gsplat.Logger) *App {
	return &App{
		Window: window,
		Viewer: viewer,
		Log:    gsplat.OrNop(logger),
	}
}

func (a *App) Init() error {
	a.Instance = wgpu.CreateInstance(nil)
	a.Surface = a.Instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(a.Window))

	adapter, err := a.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: a.Surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return err
	}
	a.Adapter = adapter

	a.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		return err
	}
	a.Queue = a.Device.GetQueue()

	width, height := a.Window.GetFramebufferSize()
	caps := a.Surface.GetCapabilities(adapter)
	format := caps.Formats[0]
	a.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	a.Surface.Configure(a.Adapter, a.Device, a.Config)

	// A target without pipelines draws nothing; the coordinator reports it once.
	a.Target, err = gpu.NewTarget(a.Device, format, a.Log)
	if err != nil {
		a.Log.Errorf("splat target: %v", err)
	} else {
		bg := a.Viewer.Config.Background
		a.Target.Background = mgl32.Vec4{bg[0], bg[1], bg[2], bg[3]}
	}

	a.LastTime = glfw.GetTime()
	return nil
}

func (a *App) Resize(w, h int) {
	if w > 0 && h > 0 {
		a.Config.Width = uint32(w)
		a.Config.Height = uint32(h)
		a.Surface.Configure(a.Adapter, a.Device, a.Config)
	}
}

func (a *App) camera() *core.Camera {
	return a.Viewer.View(int(a.Config.Width), int(a.Config.Height))
}

// Update moves the fly camera and polls the scene for asset changes.
func (a *App) Update() {
	now := glfw.GetTime()
	dt := float32(now - a.LastTime)
	a.LastTime = now

	cam := a.Viewer.Camera
	move := mgl32.Vec3{}
	keys := []struct {
		key glfw.Key
		dir mgl32.Vec3
	}{
		{glfw.KeyW, cam.GetForward()},
		{glfw.KeyS, cam.GetForward().Mul(-1)},
		{glfw.KeyD, cam.GetRight()},
		{glfw.KeyA, cam.GetRight().Mul(-1)},
		{glfw.KeySpace, mgl32.Vec3{0, 1, 0}},
		{glfw.KeyLeftShift, mgl32.Vec3{0, -1, 0}},
	}
	for _, k := range keys {
		if a.Window.GetKey(k.key) == glfw.Press {
			move = move.Add(k.dir)
		}
	}
	if move.Len() > 0 {
		cam.Position = cam.Position.Add(move.Normalize().Mul(cam.Speed * dt))
	}

	if err := a.Viewer.Coordinator.Update(); err != nil {
		a.Log.Errorf("scene update: %v", err)
	}
	a.Window.SetTitle(fmt.Sprintf("%s | %s | %.1f fps", a.Viewer.Config.Window.Title, a.Viewer.StatusLine(), a.FPS))
}

func (a *App) Render() {
	if a.Target == nil {
		return
	}
	nextTexture, err := a.Surface.GetCurrentTexture()
	if err != nil {
		a.Log.Errorf("GetCurrentTexture failed: %v", err)
		return
	}
	defer nextTexture.Release()

	view, err := nextTexture.CreateView(nil)
	if err != nil {
		a.Log.Errorf("CreateView failed: %v", err)
		return
	}
	defer view.Release()

	a.Target.SetOutput(view)
	if err := a.Viewer.Coordinator.Render(a.camera(), a.Target); err != nil {
		a.Log.Debugf("render: %v", err)
		a.Target.Abort()
	}
	a.Target.SetOutput(nil)
	a.Surface.Present()

	now := glfw.GetTime()
	if a.LastRenderTime > 0 {
		a.FrameCount++
		a.FPSTime += now - a.LastRenderTime
		if a.FPSTime >= 1.0 {
			a.FPS = float64(a.FrameCount) / a.FPSTime
			a.FrameCount = 0
			a.FPSTime = 0
		}
	}
	a.LastRenderTime = now
}

// HandleKey runs editing and display hotkeys.
func (a *App) HandleKey(key glfw.Key, action glfw.Action, mods glfw.ModifierKey) {
	if action != glfw.Press {
		return
	}
	v := a.Viewer
	ctrl := mods&glfw.ModControl != 0
	var err error
	switch {
	case key == glfw.KeyA && ctrl:
		err = v.SelectAll()
	case key == glfw.KeyD && ctrl:
		err = v.DeselectAll()
	case key == glfw.KeyI && ctrl:
		err = v.InvertSelection()
	case key == glfw.KeyDelete || key == glfw.KeyBackspace:
		err = v.DeleteSelected()
	case key == glfw.KeyE && ctrl:
		var n int
		n, err = v.Export(v.Config.ExportPath)
		if err == nil {
			a.Log.Infof("exported %d splats to %s", n, v.Config.ExportPath)
		}
	case key == glfw.KeyF12:
		path := capture.NextPath(v.Config.CaptureDir, "image", "png")
		err = v.Capture(path, a.camera())
	case key == glfw.KeyB:
		err = v.NextBookmark()
	case key == glfw.KeyEscape && v.Dragging():
		err = v.CancelDrag()
	case key >= glfw.Key1 && key <= glfw.Key5:
		v.Store.Params.Mode = core.DisplayMode(key - glfw.Key1)
		a.Log.Infof("display mode %s", v.Store.Params.Mode)
	case key == glfw.KeyEqual || key == glfw.KeyKPAdd:
		v.Store.Params.SplatScale *= 1.1
		v.Store.Params.Clamp()
	case key == glfw.KeyMinus || key == glfw.KeyKPSubtract:
		v.Store.Params.SplatScale /= 1.1
		v.Store.Params.Clamp()
	}
	if err != nil {
		a.Log.Errorf("%s: %v", glfw.GetKeyName(key, 0), err)
	}
}

// HandleMouseButton drives rectangle selection with the left button.
// Alt subtracts from the selection.
func (a *App) HandleMouseButton(button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
	if a.MouseCaptured || button != glfw.MouseButtonLeft {
		return
	}
	x, y := a.cursorPixels()
	var err error
	switch action {
	case glfw.Press:
		err = a.Viewer.BeginDrag(x, y, mods&glfw.ModAlt != 0)
	case glfw.Release:
		if a.Viewer.Dragging() {
			a.Viewer.EndDrag()
		}
	}
	if err != nil {
		a.Log.Errorf("selection: %v", err)
	}
}

func (a *App) HandleCursor(xpos, ypos float64) {
	dx, dy := xpos-a.MouseX, ypos-a.MouseY
	a.MouseX, a.MouseY = xpos, ypos
	if a.MouseCaptured {
		cam := a.Viewer.Camera
		cam.Yaw += float32(dx) * cam.Sensitivity
		cam.Pitch = mgl32.Clamp(cam.Pitch-float32(dy)*cam.Sensitivity, -1.5, 1.5)
		return
	}
	if a.Viewer.Dragging() {
		x, y := a.cursorPixels()
		if err := a.Viewer.UpdateDrag(x, y, a.camera()); err != nil {
			a.Log.Errorf("selection: %v", err)
		}
	}
}

// cursorPixels converts the cursor from window to framebuffer pixels.
func (a *App) cursorPixels() (float32, float32) {
	w, h := a.Window.GetSize()
	if w == 0 || h == 0 {
		return 0, 0
	}
	sx := float64(a.Config.Width) / float64(w)
	sy := float64(a.Config.Height) / float64(h)
	return float32(a.MouseX * sx), float32(a.MouseY * sy)
}

func (a *App) ToggleMouseCapture() {
	a.MouseCaptured = !a.MouseCaptured
	if a.MouseCaptured {
		a.Window.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
	} else {
		a.Window.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
	}
}

func (a *App) Release() {
	if a.Target != nil {
		a.Target.Forget(a.Viewer.Store)
		a.Target.Release()
	}
	a.Viewer.Release()
	if a.Device != nil {
		a.Device.Release()
	}
	if a.Surface != nil {
		a.Surface.Release()
	}
}

