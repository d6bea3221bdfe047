package compute

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchVisitsEveryIndexOnce(t *testing.T) {
	for _, workers := range []int{1, 3, 8} {
		d := NewDevice(workers, nil)
		for _, n := range []int{0, 1, 63, 64, 65, 1000, 4097} {
			hits := make([]int32, n)
			d.Dispatch("visit", n, func(i int) {
				atomic.AddInt32(&hits[i], 1)
			})
			for i, h := range hits {
				if h != 1 {
					t.Fatalf("workers=%d n=%d: index %d visited %d times", workers, n, i, h)
				}
			}
		}
	}
}

func TestDispatchRangePartitions(t *testing.T) {
	d := NewDevice(4, nil)
	var total int64
	parts := make([]int32, 4)
	d.DispatchRange("parts", 1000, 300, func(p, lo, hi int) {
		atomic.AddInt32(&parts[p], 1)
		atomic.AddInt64(&total, int64(hi-lo))
		if p < 3 {
			assert.Equal(t, 300, hi-lo)
		}
	})
	assert.Equal(t, int64(1000), total)
	assert.Equal(t, []int32{1, 1, 1, 1}, parts)
}

func TestWorkgroupCount(t *testing.T) {
	assert.Equal(t, 0, WorkgroupCount(0))
	assert.Equal(t, 1, WorkgroupCount(64))
	assert.Equal(t, 2, WorkgroupCount(65))
}

func TestCommandListOrderAndErrors(t *testing.T) {
	d := NewDevice(2, nil)
	cl := d.NewCommandList("frame")

	var order []string
	cl.Add("sort", func() error { order = append(order, "sort"); return nil })
	cl.Add("view", func() error { order = append(order, "view"); return nil })
	cl.Add("draw", func() error { order = append(order, "draw"); return nil })
	assert.Equal(t, []string{"sort", "view", "draw"}, cl.Names())

	require.NoError(t, cl.Submit())
	assert.Equal(t, []string{"sort", "view", "draw"}, order)
	assert.Equal(t, 0, cl.Len())

	boom := errors.New("boom")
	ran := false
	cl.Add("fail", func() error { return boom })
	cl.Add("after", func() error { ran = true; return nil })
	err := cl.Submit()
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "pass fail")
	assert.False(t, ran)
	assert.Equal(t, 0, cl.Len())

	assert.Contains(t, d.Profiler.GetStatsString(), "view")
}

func TestBitset(t *testing.T) {
	b := NewBitset("sel", 70)
	assert.Len(t, b.Words, 3)
	assert.Equal(t, 70, b.Len())

	b.Set(0, true)
	b.Set(69, true)
	b.SetAtomic(33, true)
	assert.True(t, b.Get(0))
	assert.True(t, b.Get(33))
	assert.True(t, b.Get(69))
	assert.False(t, b.Get(68))
	assert.Equal(t, 3, b.Count())

	b.SetAtomic(33, false)
	assert.False(t, b.Get(33))

	assert.Equal(t, ^uint32(0), b.TailMask(0))
	assert.Equal(t, uint32(0x3F), b.TailMask(2))

	c := b.Clone("copy")
	b.Clear()
	assert.Equal(t, 0, b.Count())
	assert.Equal(t, 2, c.Count())
	b.CopyFrom(c)
	assert.Equal(t, 2, b.Count())
}

func TestBuffer(t *testing.T) {
	b := NewBuffer("pos", 10, 12)
	assert.Equal(t, 10, b.Count())
	assert.Equal(t, 120, b.Size())
	b.Release()
	assert.Equal(t, 0, b.Count())

	var nilBuf *Buffer
	assert.Equal(t, 0, nilBuf.Count())
	nilBuf.Release()
}
