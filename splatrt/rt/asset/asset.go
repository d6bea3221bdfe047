package asset

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gekko3d/gsplat/splatrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

var (
	ErrVersionMismatch = errors.New("incompatible asset version")
	ErrEmpty           = errors.New("asset has no splats")
	ErrMissingData     = errors.New("asset data missing")
	ErrSizeMismatch    = errors.New("asset data size does not match splat count")
	ErrMissingChunks   = errors.New("quantized asset without chunk data")
	ErrTooManySplats   = errors.New("too many splats")
)

// hashSpace namespaces asset content hashes.
var hashSpace = uuid.MustParse("0d6c1c8e-5b0a-4b53-9a43-2a8f1f7b6e21")

// Asset is an immutable, versioned set of encoded splat buffers.
type Asset struct {
	Name          string
	FormatVersion int
	SplatCount    int
	Bounds        core.AABB
	DataHash      uuid.UUID

	PosFormat   VectorFormat
	ScaleFormat VectorFormat
	SHFormat    SHFormat
	ColorFormat ColorFormat

	PosData   []byte
	OtherData []byte
	SHData    []byte
	ColorData []byte
	ChunkData []ChunkInfo

	Cameras []core.CameraBookmark
}

func (a *Asset) Layout() Layout {
	return Layout{
		PosFormat:   a.PosFormat,
		ScaleFormat: a.ScaleFormat,
		SHFormat:    a.SHFormat,
		ColorFormat: a.ColorFormat,
		Chunks:      a.ChunkData,
	}
}

func (a *Asset) Buffers() Buffers {
	return Buffers{Pos: a.PosData, Other: a.OtherData, SH: a.SHData, Color: a.ColorData}
}

// Validate checks everything a store needs before uploading the asset.
func (a *Asset) Validate() error {
	if a.FormatVersion != CurrentVersion {
		return fmt.Errorf("%w: %d, want %d", ErrVersionMismatch, a.FormatVersion, CurrentVersion)
	}
	if a.SplatCount <= 0 {
		return ErrEmpty
	}
	if a.SplatCount > MaxSplats {
		return fmt.Errorf("%w: %d > %d", ErrTooManySplats, a.SplatCount, MaxSplats)
	}
	if a.PosData == nil || a.OtherData == nil || a.SHData == nil || a.ColorData == nil {
		return ErrMissingData
	}
	l := a.Layout()
	checks := []struct {
		name string
		got  int
		want int
	}{
		{"position", len(a.PosData), a.SplatCount * l.PosStride()},
		{"other", len(a.OtherData), a.SplatCount * l.OtherStride()},
		{"sh", len(a.SHData), a.SplatCount * l.SHStride()},
		{"color", len(a.ColorData), l.ColorTextureBytes(a.SplatCount)},
	}
	for _, c := range checks {
		if c.got < c.want {
			return fmt.Errorf("%w: %s has %d bytes, need %d", ErrSizeMismatch, c.name, c.got, c.want)
		}
	}
	if l.NeedsChunks() && len(a.ChunkData) < ChunkCount(a.SplatCount) {
		return ErrMissingChunks
	}
	return nil
}

// ComputeHash derives a content hash from the encoded data.
func (a *Asset) ComputeHash() uuid.UUID {
	var hdr [20]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(a.SplatCount))
	hdr[4], hdr[5], hdr[6], hdr[7] = byte(a.PosFormat), byte(a.ScaleFormat), byte(a.SHFormat), byte(a.ColorFormat)
	binary.LittleEndian.PutUint32(hdr[8:], uint32(a.FormatVersion))
	binary.LittleEndian.PutUint64(hdr[12:], uint64(len(a.ChunkData)))

	data := make([]byte, 0, len(hdr)+len(a.PosData)+len(a.OtherData)+len(a.SHData)+len(a.ColorData)+len(a.ChunkData)*64)
	data = append(data, hdr[:]...)
	data = append(data, a.PosData...)
	data = append(data, a.OtherData...)
	data = append(data, a.SHData...)
	data = append(data, a.ColorData...)
	for i := range a.ChunkData {
		data = append(data, a.ChunkData[i].Pack()...)
	}
	return uuid.NewSHA1(hashSpace, data)
}

// Splat decodes splat i.
func (a *Asset) Splat(i int) Splat {
	return a.Layout().Decode(a.Buffers(), i)
}

// Pack returns the 64 byte device layout of the chunk: colour, scale and
// SH ranges as half pairs, positions as float pairs.
func (c ChunkInfo) Pack() []byte {
	b := make([]byte, 64)
	o := 0
	put := func(v uint32) {
		binary.LittleEndian.PutUint32(b[o:], v)
		o += 4
	}
	for k := 0; k < 4; k++ {
		put(core.PackHalf2(c.ColMin[k], c.ColMax[k]))
	}
	for k := 0; k < 3; k++ {
		put(math.Float32bits(c.PosMin[k]))
		put(math.Float32bits(c.PosMax[k]))
	}
	for k := 0; k < 3; k++ {
		put(core.PackHalf2(c.SclMin[k], c.SclMax[k]))
	}
	for k := 0; k < 3; k++ {
		put(core.PackHalf2(c.SHMin[k], c.SHMax[k]))
	}
	return b
}

// BuildOptions select the encoding of a built asset.
type BuildOptions struct {
	Name        string
	PosFormat   VectorFormat
	ScaleFormat VectorFormat
	SHFormat    SHFormat
	ColorFormat ColorFormat
	Cameras     []core.CameraBookmark
}

// Build encodes decoded splats into a new asset, computing chunk ranges
// when any format is chunk relative.
func Build(splats []Splat, opts BuildOptions) (*Asset, error) {
	n := len(splats)
	if n == 0 {
		return nil, ErrEmpty
	}
	if n > MaxSplats {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManySplats, n, MaxSplats)
	}
	a := &Asset{
		Name:          opts.Name,
		FormatVersion: CurrentVersion,
		SplatCount:    n,
		PosFormat:     opts.PosFormat,
		ScaleFormat:   opts.ScaleFormat,
		SHFormat:      opts.SHFormat,
		ColorFormat:   opts.ColorFormat,
		Cameras:       append([]core.CameraBookmark(nil), opts.Cameras...),
	}
	l := a.Layout()
	if l.NeedsChunks() || opts.ColorFormat == ColorNorm8x4 {
		a.ChunkData = computeChunks(splats)
		l.Chunks = a.ChunkData
	}

	a.PosData = make([]byte, n*l.PosStride())
	a.OtherData = make([]byte, n*l.OtherStride())
	a.SHData = make([]byte, n*l.SHStride())
	a.ColorData = make([]byte, l.ColorTextureBytes(n))
	bufs := a.Buffers()

	bounds := emptyBounds()
	for i := range splats {
		l.Encode(bufs, i, &splats[i])
		bounds = grow(bounds, splats[i].Pos)
	}
	a.Bounds = bounds
	a.DataHash = a.ComputeHash()
	return a, nil
}

func emptyBounds() core.AABB {
	inf := float32(math.Inf(1))
	return core.AABB{{inf, inf, inf}, {-inf, -inf, -inf}}
}

func grow(b core.AABB, p mgl32.Vec3) core.AABB {
	for k := 0; k < 3; k++ {
		b[0][k] = min(b[0][k], p[k])
		b[1][k] = max(b[1][k], p[k])
	}
	return b
}

func computeChunks(splats []Splat) []ChunkInfo {
	chunks := make([]ChunkInfo, ChunkCount(len(splats)))
	inf := float32(math.Inf(1))
	for c := range chunks {
		lo := c * ChunkSize
		hi := min(lo+ChunkSize, len(splats))
		info := ChunkInfo{
			ColMin: mgl32.Vec4{inf, inf, inf, inf}, ColMax: mgl32.Vec4{-inf, -inf, -inf, -inf},
			PosMin: mgl32.Vec3{inf, inf, inf}, PosMax: mgl32.Vec3{-inf, -inf, -inf},
			SclMin: mgl32.Vec3{inf, inf, inf}, SclMax: mgl32.Vec3{-inf, -inf, -inf},
			SHMin: mgl32.Vec3{inf, inf, inf}, SHMax: mgl32.Vec3{-inf, -inf, -inf},
		}
		for i := lo; i < hi; i++ {
			s := &splats[i]
			for k := 0; k < 3; k++ {
				info.PosMin[k] = min(info.PosMin[k], s.Pos[k])
				info.PosMax[k] = max(info.PosMax[k], s.Pos[k])
				info.SclMin[k] = min(info.SclMin[k], s.Scale[k])
				info.SclMax[k] = max(info.SclMax[k], s.Scale[k])
				for j := range s.SH {
					info.SHMin[k] = min(info.SHMin[k], s.SH[j][k])
					info.SHMax[k] = max(info.SHMax[k], s.SH[j][k])
				}
			}
			for k := 0; k < 4; k++ {
				info.ColMin[k] = min(info.ColMin[k], s.Color[k])
				info.ColMax[k] = max(info.ColMax[k], s.Color[k])
			}
		}
		chunks[c] = info
	}
	return chunks
}
