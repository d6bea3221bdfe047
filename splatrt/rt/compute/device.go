package compute

import (
	"fmt"
	"runtime"

	"github.com/gekko3d/gsplat"
	"golang.org/x/sync/errgroup"
)

// WorkgroupSize is the number of invocations per dispatched workgroup.
const WorkgroupSize = 64

// Device runs kernels over index ranges on a bounded worker pool.
// Dispatch blocks until every invocation finished, so passes issued from
// one goroutine observe each other's writes in order.
type Device struct {
	Workers  int
	Profiler *Profiler
	Logger   gsplat.Logger
}

func NewDevice(workers int, logger gsplat.Logger) *Device {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Device{
		Workers:  workers,
		Profiler: NewProfiler(),
		Logger:   gsplat.OrNop(logger),
	}
}

// WorkgroupCount returns the number of workgroups covering count invocations.
func WorkgroupCount(count int) int {
	return (count + WorkgroupSize - 1) / WorkgroupSize
}

// Dispatch invokes kernel once for every index in [0, count).
func (d *Device) Dispatch(name string, count int, kernel func(i int)) {
	if count <= 0 {
		return
	}
	groups := WorkgroupCount(count)
	d.DispatchRange(name, count, d.batch(groups)*WorkgroupSize, func(_ int, lo, hi int) {
		for i := lo; i < hi; i++ {
			kernel(i)
		}
	})
}

// DispatchRange splits [0, count) into partitions of size and calls fn once
// per partition with its index and bounds.
func (d *Device) DispatchRange(name string, count, size int, fn func(part, lo, hi int)) {
	if count <= 0 {
		return
	}
	if size <= 0 {
		size = count
	}
	if d.Profiler != nil {
		d.Profiler.BeginScope(name)
		defer d.Profiler.EndScope(name)
	}
	parts := (count + size - 1) / size
	if parts == 1 || d.Workers <= 1 {
		for p := 0; p < parts; p++ {
			fn(p, p*size, min((p+1)*size, count))
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(d.Workers)
	for p := 0; p < parts; p++ {
		p := p
		g.Go(func() error {
			fn(p, p*size, min((p+1)*size, count))
			return nil
		})
	}
	_ = g.Wait()
}

// batch picks how many workgroups one task runs.
func (d *Device) batch(groups int) int {
	per := groups / (d.Workers * 4)
	if per < 1 {
		per = 1
	}
	return per
}

// Pass is one recorded unit of work.
type Pass struct {
	Name string
	Run  func() error
}

// CommandList records passes and executes them in order on Submit.
type CommandList struct {
	Label  string
	dev    *Device
	passes []Pass
}

func (d *Device) NewCommandList(label string) *CommandList {
	return &CommandList{Label: label, dev: d}
}

func (c *CommandList) Add(name string, run func() error) {
	c.passes = append(c.passes, Pass{Name: name, Run: run})
}

func (c *CommandList) Len() int { return len(c.passes) }

// Names lists the recorded passes in execution order.
func (c *CommandList) Names() []string {
	out := make([]string, len(c.passes))
	for i, p := range c.passes {
		out[i] = p.Name
	}
	return out
}

// Clear drops recorded passes without running them.
func (c *CommandList) Clear() {
	c.passes = c.passes[:0]
}

// Submit runs every pass in order, stopping at the first failure.
// The list is empty afterwards either way.
func (c *CommandList) Submit() error {
	defer c.Clear()
	for _, p := range c.passes {
		if c.dev != nil && c.dev.Profiler != nil {
			c.dev.Profiler.BeginScope(p.Name)
		}
		err := p.Run()
		if c.dev != nil && c.dev.Profiler != nil {
			c.dev.Profiler.EndScope(p.Name)
		}
		if err != nil {
			return fmt.Errorf("%s: pass %s: %w", c.Label, p.Name, err)
		}
	}
	return nil
}
