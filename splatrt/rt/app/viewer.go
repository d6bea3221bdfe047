package app

import (
	"errors"
	"fmt"
	"image/color"
	"os"

	gsplat "github.com/gekko3d/gsplat"
	"github.com/gekko3d/gsplat/splatrt/rt/asset"
	"github.com/gekko3d/gsplat/splatrt/rt/capture"
	"github.com/gekko3d/gsplat/splatrt/rt/compute"
	"github.com/gekko3d/gsplat/splatrt/rt/core"
	"github.com/gekko3d/gsplat/splatrt/rt/gridstats"
	"github.com/gekko3d/gsplat/splatrt/rt/render"
	"github.com/gekko3d/gsplat/splatrt/rt/splat"
	"github.com/go-gl/mathgl/mgl32"
)

var ErrNoDrag = errors.New("no selection drag in progress")

// Viewer owns the splat scene and the editing state driven by input.
// It has no window or GPU dependency.
type Viewer struct {
	Config      Config
	Device      *compute.Device
	Coordinator *render.Coordinator
	Store       *splat.Store
	Camera      *core.CameraState

	log      gsplat.Logger
	bookmark int

	dragging  bool
	subtract  bool
	dragStart mgl32.Vec2
	dragEnd   mgl32.Vec2
}

// NewViewer builds the procedural scene described by cfg and registers it.
func NewViewer(cfg Config, logger gsplat.Logger) (*Viewer, error) {
	log := gsplat.OrNop(logger)
	dev := compute.NewDevice(cfg.Workers, log)

	opts := asset.BuildOptions{Name: "sphere"}
	if cfg.Scene.Chunked {
		opts.PosFormat = asset.VectorNorm11
		opts.ScaleFormat = asset.VectorNorm11
		opts.SHFormat = asset.SHNorm11
	}
	a, err := asset.NewSphere(cfg.Scene.SplatCount, cfg.Scene.Radius, opts)
	if err != nil {
		return nil, fmt.Errorf("build scene: %w", err)
	}

	store := splat.NewStore(a.Name, dev, log)
	store.Params = cfg.Render
	store.Params.Clamp()
	if err := store.SetAsset(a); err != nil {
		return nil, fmt.Errorf("load scene: %w", err)
	}

	coord := render.NewCoordinator(dev, log)
	coord.CutoutRefreshFrames = cfg.CutoutRefreshFrames
	if err := coord.Register(store); err != nil {
		return nil, err
	}

	cam := core.NewCameraState()
	cam.Position = mgl32.Vec3{0, 0, cfg.Scene.Radius * 3}
	cam.LookAt(mgl32.Vec3{})

	return &Viewer{
		Config:      cfg,
		Device:      dev,
		Coordinator: coord,
		Store:       store,
		Camera:      cam,
		log:         log,
	}, nil
}

// View snapshots the fly camera for a width x height target.
func (v *Viewer) View(width, height int) *core.Camera {
	return v.Camera.Camera(width, height)
}

// BeginDrag starts a rectangle selection at pixel (x, y), top-left origin.
func (v *Viewer) BeginDrag(x, y float32, subtract bool) error {
	if err := v.Store.StoreSelectionMouseDown(); err != nil {
		return err
	}
	v.dragging = true
	v.subtract = subtract
	v.dragStart = mgl32.Vec2{x, y}
	v.dragEnd = v.dragStart
	return nil
}

func (v *Viewer) UpdateDrag(x, y float32, cam *core.Camera) error {
	if !v.dragging {
		return ErrNoDrag
	}
	v.dragEnd = mgl32.Vec2{x, y}
	lo, hi := v.DragRect()
	return v.Store.UpdateSelection(lo, hi, cam, v.subtract)
}

// DragRect returns the normalized current drag rectangle.
func (v *Viewer) DragRect() (lo, hi mgl32.Vec2) {
	a, b := v.dragStart, v.dragEnd
	lo = mgl32.Vec2{min(a.X(), b.X()), min(a.Y(), b.Y())}
	hi = mgl32.Vec2{max(a.X(), b.X()), max(a.Y(), b.Y())}
	return lo, hi
}

func (v *Viewer) Dragging() bool { return v.dragging }

func (v *Viewer) EndDrag() {
	v.dragging = false
	v.Store.ClearMouseDown()
}

// CancelDrag restores the selection from before the drag.
func (v *Viewer) CancelDrag() error {
	if !v.dragging {
		return ErrNoDrag
	}
	v.dragging = false
	return v.Store.CancelDrag()
}

func (v *Viewer) SelectAll() error       { return v.Store.SelectAll() }
func (v *Viewer) DeselectAll() error     { return v.Store.DeselectAll() }
func (v *Viewer) InvertSelection() error { return v.Store.InvertSelection() }
func (v *Viewer) DeleteSelected() error  { return v.Store.DeleteSelected() }

// Export writes the surviving splats, with the store transform baked in, to path.
func (v *Viewer) Export(path string) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create export: %w", err)
	}
	n, err := v.Store.Export(f, true)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// Capture renders cam on the CPU and writes it to path. Enabled grids get
// per-cell count labels.
func (v *Viewer) Capture(path string, cam *core.Camera) error {
	target := render.NewSoftwareTarget()
	bg := v.Config.Background
	target.Background = color.RGBA{
		R: uint8(bg[0] * 255), G: uint8(bg[1] * 255), B: uint8(bg[2] * 255), A: uint8(bg[3] * 255),
	}
	if err := v.Coordinator.Render(cam, target); err != nil {
		return err
	}
	img := target.Image()

	if grid := v.Store.Params.Grid; grid.Enabled() {
		st, err := gridstats.Compute(v.Store, grid)
		if err != nil {
			return err
		}
		lb, err := capture.NewLabeler(12)
		if err != nil {
			return err
		}
		lb.Draw(img, capture.GridLabels(st, cam))
	}
	if err := capture.Save(path, img); err != nil {
		return err
	}
	v.log.Infof("captured %dx%d to %s", cam.Width, cam.Height, path)
	return nil
}

// NextBookmark moves the fly camera to the next bookmark of the asset.
func (v *Viewer) NextBookmark() error {
	marks := v.Store.Bookmarks()
	if len(marks) == 0 {
		return splat.ErrBookmark
	}
	idx := v.bookmark % len(marks)
	t := core.NewTransform()
	if err := v.Store.ActivateCamera(idx, t); err != nil {
		return err
	}
	v.bookmark = idx + 1

	v.Camera.Position = t.Position
	v.Camera.LookAt(t.Position.Add(t.Rotation.Rotate(mgl32.Vec3{0, 0, -1})))
	if fov := marks[idx].FovY; fov > 0 {
		v.Camera.FovY = fov
	}
	return nil
}

// StatusLine summarises the edit state for the window title.
func (v *Viewer) StatusLine() string {
	st := v.Store.EditStats()
	return fmt.Sprintf("%s: %d splats, %d selected, %d deleted, %d cut",
		v.Store.Name, v.Store.Count(), st.Selected, st.Deleted, st.Cut)
}

func (v *Viewer) Release() {
	v.Coordinator.Unregister(v.Store)
	v.Store.Release()
}
