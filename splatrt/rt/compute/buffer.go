package compute

import (
	"math/bits"
	"sync/atomic"
)

// Buffer is a labelled device buffer of fixed-stride elements.
type Buffer struct {
	Label  string
	Stride int
	Data   []byte
}

func NewBuffer(label string, count, stride int) *Buffer {
	return &Buffer{Label: label, Stride: stride, Data: make([]byte, count*stride)}
}

// NewBufferFrom copies data into a new buffer.
func NewBufferFrom(label string, stride int, data []byte) *Buffer {
	return &Buffer{Label: label, Stride: stride, Data: append([]byte(nil), data...)}
}

// Count is the number of whole elements in the buffer.
func (b *Buffer) Count() int {
	if b == nil || b.Stride == 0 {
		return 0
	}
	return len(b.Data) / b.Stride
}

func (b *Buffer) Size() int {
	if b == nil {
		return 0
	}
	return len(b.Data)
}

// Release drops the buffer's storage. Safe on nil.
func (b *Buffer) Release() {
	if b != nil {
		b.Data = nil
	}
}

// Bitset is a device buffer of one bit per splat packed in 32-bit words.
// Bits at or past Len are always zero.
type Bitset struct {
	Label string
	Words []uint32
	n     int
}

func NewBitset(label string, n int) *Bitset {
	return &Bitset{Label: label, Words: make([]uint32, WordCount(n)), n: n}
}

// WordCount returns ceil(n/32).
func WordCount(n int) int {
	return (n + 31) / 32
}

func (b *Bitset) Len() int {
	if b == nil {
		return 0
	}
	return b.n
}

func (b *Bitset) Get(i int) bool {
	return b.Words[i>>5]&(1<<(uint(i)&31)) != 0
}

func (b *Bitset) Set(i int, v bool) {
	mask := uint32(1) << (uint(i) & 31)
	if v {
		b.Words[i>>5] |= mask
	} else {
		b.Words[i>>5] &^= mask
	}
}

// SetAtomic sets bit i from concurrent kernel invocations.
func (b *Bitset) SetAtomic(i int, v bool) {
	mask := uint32(1) << (uint(i) & 31)
	if v {
		atomic.OrUint32(&b.Words[i>>5], mask)
	} else {
		atomic.AndUint32(&b.Words[i>>5], ^mask)
	}
}

// TailMask is the mask of valid bits in word w.
func (b *Bitset) TailMask(w int) uint32 {
	if (w+1)*32 <= b.n {
		return ^uint32(0)
	}
	rem := b.n - w*32
	if rem <= 0 {
		return 0
	}
	return (uint32(1) << uint(rem)) - 1
}

func (b *Bitset) Count() int {
	c := 0
	for _, w := range b.Words {
		c += bits.OnesCount32(w)
	}
	return c
}

func (b *Bitset) Clear() {
	clear(b.Words)
}

// CopyFrom copies src's words; both bitsets must have the same length.
func (b *Bitset) CopyFrom(src *Bitset) {
	copy(b.Words, src.Words)
}

func (b *Bitset) Clone(label string) *Bitset {
	c := NewBitset(label, b.n)
	copy(c.Words, b.Words)
	return c
}

func (b *Bitset) Release() {
	if b != nil {
		b.Words = nil
		b.n = 0
	}
}
