package compute

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Profiler accumulates wall time per named scope until Reset.
type Profiler struct {
	mu         sync.Mutex
	Scopes     map[string]time.Duration
	StartTimes map[string]time.Time
	Counts     map[string]int
	Order      []string
}

func NewProfiler() *Profiler {
	return &Profiler{
		Scopes:     make(map[string]time.Duration),
		StartTimes: make(map[string]time.Time),
		Counts:     make(map[string]int),
		Order:      make([]string, 0),
	}
}

func (p *Profiler) BeginScope(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartTimes[name] = time.Now()
	if _, ok := p.Scopes[name]; !ok {
		p.Scopes[name] = 0
		p.Order = append(p.Order, name)
	}
}

func (p *Profiler) EndScope(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if start, ok := p.StartTimes[name]; ok {
		p.Scopes[name] += time.Since(start)
		delete(p.StartTimes, name)
	}
}

func (p *Profiler) SetCount(name string, count int) {
	p.mu.Lock()
	p.Counts[name] = count
	p.mu.Unlock()
}

func (p *Profiler) Scope(name string) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Scopes[name]
}

func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	// Keep Order, reset times
	for k := range p.Scopes {
		p.Scopes[k] = 0
	}
}

func (p *Profiler) GetStatsString() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var sb strings.Builder

	sb.WriteString("Timings (CPU):\n")
	for _, name := range p.Order {
		ms := float64(p.Scopes[name].Microseconds()) / 1000.0
		sb.WriteString(fmt.Sprintf("  %-20s: %.2f ms\n", name, ms))
	}

	sb.WriteString("\nStats:\n")
	keys := make([]string, 0, len(p.Counts))
	for k := range p.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("  %-20s: %d\n", k, p.Counts[k]))
	}
	return sb.String()
}
