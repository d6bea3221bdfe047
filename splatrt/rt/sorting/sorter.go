package sorting

import (
	"fmt"

	"github.com/gekko3d/gsplat"
	"github.com/gekko3d/gsplat/splatrt/rt/compute"
	"github.com/gekko3d/gsplat/splatrt/rt/core"
	"github.com/gekko3d/gsplat/splatrt/rt/splat"
)

const (
	RadixBits     = 8
	RadixBuckets  = 1 << RadixBits
	RadixPasses   = 32 / RadixBits
	PartitionSize = 3840
)

// Sorter orders the splats of one store by camera depth. It owns the
// scratch buffers of the radix sort and grows them on demand.
type Sorter struct {
	dev *compute.Device
	log gsplat.Logger

	capacity int
	altKeys  []uint32
	altVals  []uint32
	hist     []uint32 // partitions * RadixBuckets
}

func NewSorter(dev *compute.Device, logger gsplat.Logger) *Sorter {
	if dev == nil {
		dev = compute.NewDevice(0, logger)
	}
	return &Sorter{dev: dev, log: gsplat.OrNop(logger)}
}

// Capacity is the number of keys the support resources can hold.
func (s *Sorter) Capacity() int { return s.capacity }

func partitions(n int) int {
	return (n + PartitionSize - 1) / PartitionSize
}

// ensure reallocates the support resources when n exceeds capacity.
func (s *Sorter) ensure(n int) {
	if n <= s.capacity {
		return
	}
	s.log.Debugf("sorter: support resources %d -> %d keys", s.capacity, n)
	s.altKeys = make([]uint32, n)
	s.altVals = make([]uint32, n)
	s.hist = make([]uint32, partitions(n)*RadixBuckets)
	s.capacity = n
}

// Release drops the support resources.
func (s *Sorter) Release() {
	s.altKeys, s.altVals, s.hist = nil, nil, nil
	s.capacity = 0
}

// ComputeDistances writes one key per splat into st.SortDistances and resets
// st.SortKeys to the identity. Keys sort farthest splat first.
func (s *Sorter) ComputeDistances(st *splat.Store, cam *core.Camera) error {
	if !st.Renderable() {
		return splat.ErrNotRenderable
	}
	view := cam.View
	// negate the third row so depth grows away from the camera
	view[2], view[6], view[10], view[14] = -view[2], -view[6], -view[10], -view[14]
	mv := view.Mul4(st.Transform.ObjectToWorld())

	layout := st.Layout()
	pos := st.PosData.Data
	dist, keys := st.SortDistances, st.SortKeys
	s.dev.Dispatch("calc-distances", st.Count(), func(i int) {
		p := layout.Pos(pos, i)
		depth := mv[2]*p[0] + mv[6]*p[1] + mv[10]*p[2] + mv[14]
		dist[i] = core.FloatToSortableUint(-depth)
		keys[i] = uint32(i)
	})
	return nil
}

// Sort orders st.SortKeys by st.SortDistances, ascending and stable.
func (s *Sorter) Sort(st *splat.Store) error {
	if !st.Renderable() {
		return splat.ErrNotRenderable
	}
	if len(st.SortDistances) != len(st.SortKeys) {
		return fmt.Errorf("sort %s: %d distances for %d keys", st.Name, len(st.SortDistances), len(st.SortKeys))
	}
	s.SortPairs(st.SortDistances, st.SortKeys)
	return nil
}

// SortPairs sorts keys ascending and applies the same permutation to vals.
// Equal keys keep their relative order.
func (s *Sorter) SortPairs(keys, vals []uint32) {
	n := len(keys)
	if n < 2 {
		return
	}
	s.ensure(n)
	srcK, srcV := keys, vals
	dstK, dstV := s.altKeys[:n], s.altVals[:n]
	parts := partitions(n)
	hist := s.hist[:parts*RadixBuckets]

	for pass := 0; pass < RadixPasses; pass++ {
		shift := uint(pass * RadixBits)
		for i := range hist {
			hist[i] = 0
		}

		s.dev.DispatchRange("radix-upsweep", n, PartitionSize, func(part, lo, hi int) {
			h := hist[part*RadixBuckets : (part+1)*RadixBuckets]
			for _, k := range srcK[lo:hi] {
				h[(k>>shift)&(RadixBuckets-1)]++
			}
		})

		// exclusive scan, digit-major then partition, so each partition
		// scatters into its own slice of every bucket
		sum := uint32(0)
		for d := 0; d < RadixBuckets; d++ {
			for p := 0; p < parts; p++ {
				c := hist[p*RadixBuckets+d]
				hist[p*RadixBuckets+d] = sum
				sum += c
			}
		}

		s.dev.DispatchRange("radix-downsweep", n, PartitionSize, func(part, lo, hi int) {
			offs := hist[part*RadixBuckets : (part+1)*RadixBuckets]
			for i := lo; i < hi; i++ {
				k := srcK[i]
				d := (k >> shift) & (RadixBuckets - 1)
				o := offs[d]
				offs[d]++
				dstK[o] = k
				dstV[o] = srcV[i]
			}
		})

		srcK, dstK = dstK, srcK
		srcV, dstV = dstV, srcV
	}
	// an even pass count leaves the result in the caller's slices
}
