package render

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gekko3d/gsplat"
	"github.com/gekko3d/gsplat/splatrt/rt/compute"
	"github.com/gekko3d/gsplat/splatrt/rt/core"
	"github.com/gekko3d/gsplat/splatrt/rt/project"
	"github.com/gekko3d/gsplat/splatrt/rt/sorting"
	"github.com/gekko3d/gsplat/splatrt/rt/splat"
	"github.com/google/uuid"
)

var ErrNilStore = errors.New("nil splat store")

// binding is the coordinator's per-store frame state.
type binding struct {
	store  *splat.Store
	sorter *sorting.Sorter
	frame  int
	draw   DrawCall
	failed bool
}

// Coordinator renders every registered store into the cameras it is asked
// to draw. It is used from the host loop goroutine only.
type Coordinator struct {
	// CutoutRefreshFrames is how often edit stats are refreshed while a
	// store has cutouts. Zero disables the refresh.
	CutoutRefreshFrames int

	dev       *compute.Device
	log       gsplat.Logger
	once      gsplat.OnceLogger
	projector *project.Projector

	bindings map[uuid.UUID]*binding
	order    []uuid.UUID
	cameras  map[string]bool
	cmd      *compute.CommandList
	frame    int
	failures []error
}

func NewCoordinator(dev *compute.Device, logger gsplat.Logger) *Coordinator {
	if dev == nil {
		dev = compute.NewDevice(0, logger)
	}
	log := gsplat.OrNop(logger)
	return &Coordinator{
		CutoutRefreshFrames: 30,
		dev:                 dev,
		log:                 log,
		projector:           project.NewProjector(log),
		bindings:            make(map[uuid.UUID]*binding),
		cameras:             make(map[string]bool),
	}
}

func (c *Coordinator) Device() *compute.Device { return c.dev }

// Register adds s. Registering a store twice is a no-op.
func (c *Coordinator) Register(s *splat.Store) error {
	if s == nil {
		return ErrNilStore
	}
	if _, ok := c.bindings[s.ID]; ok {
		return nil
	}
	c.bindings[s.ID] = &binding{store: s, sorter: sorting.NewSorter(c.dev, c.log)}
	c.order = append(c.order, s.ID)
	c.log.Debugf("coordinator: registered %s (%s)", s.Name, s.ID)
	return nil
}

// Unregister removes s and releases its sort resources. Removing the last
// store detaches every camera and drops the command list.
func (c *Coordinator) Unregister(s *splat.Store) {
	if s == nil {
		return
	}
	b, ok := c.bindings[s.ID]
	if !ok {
		return
	}
	b.sorter.Release()
	delete(c.bindings, s.ID)
	for i, id := range c.order {
		if id == s.ID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	if len(c.bindings) == 0 {
		c.cameras = make(map[string]bool)
		c.cmd = nil
		c.log.Debugf("coordinator: last store unregistered, cameras detached")
	}
}

// Stores lists the registered stores in registration order.
func (c *Coordinator) Stores() []*splat.Store {
	out := make([]*splat.Store, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.bindings[id].store)
	}
	return out
}

// Cameras lists the names of cameras attached by Render.
func (c *Coordinator) Cameras() []string {
	out := make([]string, 0, len(c.cameras))
	for name := range c.cameras {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// HasCommandList reports whether a command list is currently allocated.
func (c *Coordinator) HasCommandList() bool { return c.cmd != nil }

// Update polls every registered store for asset changes.
func (c *Coordinator) Update() error {
	var errs []error
	for _, id := range c.order {
		if err := c.bindings[id].store.Update(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Gather returns the enabled, renderable stores whose world bounds
// intersect the camera frustum, farthest store origin first.
func (c *Coordinator) Gather(cam *core.Camera) []*splat.Store {
	planes := cam.Frustum()
	type entry struct {
		s     *splat.Store
		depth float32
	}
	var visible []entry
	for _, id := range c.order {
		s := c.bindings[id].store
		if !s.Enabled || !s.Renderable() {
			continue
		}
		wb := s.WorldBounds()
		if wb.Empty() || !core.AABBInFrustum(wb, planes) {
			continue
		}
		origin := cam.View.Mul4x1(s.Transform.Position.Vec4(1))
		visible = append(visible, entry{s, -origin.Z()})
	}
	sort.SliceStable(visible, func(i, j int) bool { return visible[i].depth > visible[j].depth })
	out := make([]*splat.Store, len(visible))
	for i, e := range visible {
		out[i] = e.s
	}
	return out
}

// Render draws every visible store for cam into target and composites.
// Preview cameras and frames without stores are skipped. A store whose
// passes fail is marked as missing resources and dropped from later
// frames; the remaining stores and the composite still run.
func (c *Coordinator) Render(cam *core.Camera, target Target) error {
	if cam == nil || cam.Preview || len(c.bindings) == 0 {
		return nil
	}
	if !c.cameras[cam.Name] {
		c.cameras[cam.Name] = true
		c.log.Debugf("coordinator: attached camera %q", cam.Name)
	}
	if c.cmd == nil {
		c.cmd = c.dev.NewCommandList("splat-render")
	}

	stores := c.Gather(cam)
	c.cmd.Add("begin-frame", func() error { return target.BeginFrame(cam) })
	for _, s := range stores {
		b := c.bindings[s.ID]
		c.record(b, cam, target)
	}
	c.cmd.Add("composite", target.Composite)

	err := c.cmd.Submit()
	if errors.Is(err, ErrResourcesMissing) {
		c.once.Errorf(c.log, "target", "splat rendering disabled: %v", err)
	}
	err = errors.Join(err, errors.Join(c.failures...))
	c.failures = nil
	for _, s := range stores {
		s.RefreshForCutouts(c.frame, c.CutoutRefreshFrames)
	}
	c.frame++
	return err
}

// storePass wraps one per-store pass so a failure disables that store
// instead of aborting the command list.
func (c *Coordinator) storePass(b *binding, run func() error) func() error {
	return func() error {
		if b.failed {
			return nil
		}
		if err := run(); err != nil {
			b.failed = true
			b.store.MarkResourcesMissing(err)
			c.failures = append(c.failures, err)
		}
		return nil
	}
}

func (c *Coordinator) record(b *binding, cam *core.Camera, target Target) {
	s := b.store
	b.failed = false
	every := max(s.Params.SortNthFrame, 1)
	if b.frame%every == 0 {
		c.cmd.Add("sort-distances "+s.Name, c.storePass(b, func() error { return b.sorter.ComputeDistances(s, cam) }))
		c.cmd.Add("sort "+s.Name, c.storePass(b, func() error { return b.sorter.Sort(s) }))
	}
	b.frame++
	c.cmd.Add("calc-view-data "+s.Name, c.storePass(b, func() error { return c.projector.CalcViewData(s, cam) }))
	c.cmd.Add("draw "+s.Name, c.storePass(b, func() error {
		dc := c.buildDrawCall(b, cam)
		if dc.InstanceCount == 0 {
			return nil
		}
		if err := target.Draw(dc); err != nil {
			return fmt.Errorf("draw %s: %w", s.Name, err)
		}
		return nil
	}))
}

func (c *Coordinator) buildDrawCall(b *binding, cam *core.Camera) *DrawCall {
	s := b.store
	mode := s.Params.Mode
	b.draw = DrawCall{
		Store:         s,
		Mode:          mode,
		IndexCount:    mode.IndexCount(),
		InstanceCount: s.Count(),
		PointSize:     s.Params.PointDisplaySize,
		View:          s.ViewData,
		Order:         s.SortKeys,
		MVP:           cam.ViewProj().Mul4(s.Transform.ObjectToWorld()),
	}
	if mode == core.DisplayDebugChunkBounds {
		b.draw.Chunks = s.Layout().Chunks
		b.draw.InstanceCount = len(b.draw.Chunks)
	}
	return &b.draw
}
