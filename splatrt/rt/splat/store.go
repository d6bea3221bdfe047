package splat

import (
	"errors"
	"fmt"

	"github.com/gekko3d/gsplat"
	"github.com/gekko3d/gsplat/splatrt/rt/asset"
	"github.com/gekko3d/gsplat/splatrt/rt/compute"
	"github.com/gekko3d/gsplat/splatrt/rt/core"
	"github.com/google/uuid"
)

var (
	ErrNoAsset       = errors.New("no asset")
	ErrNotRenderable = errors.New("splat store is not renderable")
	ErrNoSnapshot    = errors.New("mouse-down snapshot missing")
	ErrQuantized     = errors.New("operation needs a full precision store")
	ErrInvalidCount  = errors.New("invalid splat count")
	ErrCapacity      = errors.New("splat capacity exceeded")
	ErrRange         = errors.New("splat range out of bounds")
	ErrBookmark      = errors.New("no such camera bookmark")
	ErrMismatch      = errors.New("secondary asset does not match store")
)

type State int

const (
	StateUnloaded State = iota
	StateLoaded
	StateResized
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoaded:
		return "loaded"
	case StateResized:
		return "resized"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Status int

const (
	StatusOK Status = iota
	StatusNoAsset
	StatusVersionMismatch
	StatusInvalidData
	StatusResourcesMissing
)

// Message is the human readable reason a store does not render.
func (s Status) Message() string {
	switch s {
	case StatusOK:
		return ""
	case StatusNoAsset:
		return "no splat asset assigned"
	case StatusVersionMismatch:
		return "splat asset version is not compatible, please recreate the asset"
	case StatusInvalidData:
		return "splat asset data is invalid"
	case StatusResourcesMissing:
		return "splat shader resources are missing"
	}
	return "unknown status"
}

// Store owns the device buffers of one splat set: encoded splat data,
// per-frame view records and sort order, and the edit state.
type Store struct {
	ID        uuid.UUID
	Name      string
	Transform *core.Transform
	Cutouts   []*core.Cutout
	Params    core.RenderParams
	Enabled   bool

	// Asset is polled by Update; assign it and call Update, or use SetAsset.
	Asset *asset.Asset

	PosData   *compute.Buffer
	OtherData *compute.Buffer
	SHData    *compute.Buffer
	ColorData *compute.Buffer

	// Interpolation target, same count as the store.
	Secondary *SplatData

	ViewData      []ViewRecord
	SortKeys      []uint32
	SortDistances []uint32

	Selected          *compute.Bitset
	SelectedMouseDown *compute.Bitset
	Deleted           *compute.Bitset
	PosMouseDown      *compute.Buffer
	OtherMouseDown    *compute.Buffer

	// Modified is set once edits changed splat data.
	Modified bool

	dev  *compute.Device
	log  gsplat.Logger
	once gsplat.OnceLogger

	loaded     *asset.Asset
	loadedHash uuid.UUID
	state      State
	status     Status
	missing    error
	count      int
	layout     asset.Layout
	cameras    []core.CameraBookmark

	countsBounds [countsBoundsLen]uint32
	stats        EditStats
	statsValid   bool
	bounds       core.AABB
	boundsValid  bool
}

// SplatData is a decoded-layout view of a second asset's buffers.
type SplatData struct {
	Layout asset.Layout
	Bufs   asset.Buffers
}

func NewStore(name string, dev *compute.Device, logger gsplat.Logger) *Store {
	if dev == nil {
		dev = compute.NewDevice(0, logger)
	}
	return &Store{
		ID:        uuid.New(),
		Name:      name,
		Transform: core.NewTransform(),
		Params:    core.DefaultRenderParams(),
		Enabled:   true,
		dev:       dev,
		log:       gsplat.OrNop(logger),
		status:    StatusNoAsset,
	}
}

func (s *Store) Device() *compute.Device { return s.dev }
func (s *Store) Logger() gsplat.Logger   { return s.log }
func (s *Store) Count() int              { return s.count }
func (s *Store) State() State            { return s.state }
func (s *Store) Layout() asset.Layout    { return s.layout }

// Chunked reports whether the store holds chunk-quantised data.
func (s *Store) Chunked() bool { return s.layout.Chunked() }

func (s *Store) Status() Status {
	if s.status == StatusOK && s.missing != nil {
		return StatusResourcesMissing
	}
	return s.status
}

func (s *Store) Buffers() asset.Buffers {
	return asset.Buffers{Pos: s.PosData.Data, Other: s.OtherData.Data, SH: s.SHData.Data, Color: s.ColorData.Data}
}

// Renderable reports whether every buffer the frame path reads is present
// and sized for the current count.
func (s *Store) Renderable() bool {
	if s.state == StateUnloaded || s.count <= 0 || s.missing != nil {
		return false
	}
	if s.PosData == nil || s.OtherData == nil || s.SHData == nil || s.ColorData == nil {
		return false
	}
	l := s.layout
	return s.PosData.Size() >= s.count*l.PosStride() &&
		s.OtherData.Size() >= s.count*l.OtherStride() &&
		s.SHData.Size() >= s.count*l.SHStride() &&
		s.ColorData.Size() >= l.ColorTextureBytes(s.count) &&
		len(s.ViewData) == s.count &&
		len(s.SortKeys) == s.count
}

// MarkResourcesMissing records that the kernels or pipelines this store
// needs are unavailable. A nil error or the next Load clears the mark.
func (s *Store) MarkResourcesMissing(err error) {
	s.missing = err
	if err != nil {
		s.once.Errorf(s.log, "resources", "%s: %s: %v", s.Name, StatusResourcesMissing.Message(), err)
	}
}

// ErrorOnce logs a diagnostic the first time key is reported since the
// last load.
func (s *Store) ErrorOnce(key, format string, args ...any) {
	s.once.Errorf(s.log, key, format, args...)
}

// SetAsset assigns a and reloads if it differs from the loaded asset.
func (s *Store) SetAsset(a *asset.Asset) error {
	s.Asset = a
	return s.Update()
}

// Invalidate forces the next Update to reload the asset.
func (s *Store) Invalidate() {
	s.loaded = nil
	s.loadedHash = uuid.Nil
}

// Reload releases and reloads the current asset immediately.
func (s *Store) Reload() error {
	s.Invalidate()
	return s.Update()
}

// Update reloads when Asset changed identity or content hash since the
// last load. Call once per frame.
func (s *Store) Update() error {
	if s.Asset == s.loaded && (s.Asset == nil || s.Asset.DataHash == s.loadedHash) {
		if s.Asset == nil && s.state != StateUnloaded {
			s.Release()
		}
		return nil
	}
	s.Release()
	if s.Asset == nil {
		s.loaded = nil
		return nil
	}
	return s.Load(s.Asset)
}

// Load uploads a into fresh device buffers. On failure the store stays
// unloaded and Status explains why.
func (s *Store) Load(a *asset.Asset) error {
	s.Release()
	s.missing = nil
	s.Asset = a
	s.loaded = a
	if a == nil {
		s.status = StatusNoAsset
		return ErrNoAsset
	}
	s.loadedHash = a.DataHash
	if err := a.Validate(); err != nil {
		if errors.Is(err, asset.ErrVersionMismatch) {
			s.status = StatusVersionMismatch
		} else {
			s.status = StatusInvalidData
		}
		s.log.Errorf("%s: %s: %v", s.Name, s.status.Message(), err)
		return fmt.Errorf("load %s: %w", s.Name, err)
	}

	l := a.Layout()
	n := a.SplatCount
	s.layout = l
	s.PosData = compute.NewBufferFrom("pos", l.PosStride(), a.PosData[:n*l.PosStride()])
	s.OtherData = compute.NewBufferFrom("other", l.OtherStride(), a.OtherData[:n*l.OtherStride()])
	s.SHData = compute.NewBufferFrom("sh", l.SHStride(), a.SHData[:n*l.SHStride()])
	s.ColorData = compute.NewBufferFrom("color", l.ColorStride(), a.ColorData[:l.ColorTextureBytes(n)])
	if l.Chunked() {
		s.layout.Chunks = append([]asset.ChunkInfo(nil), a.ChunkData...)
	}
	s.count = n
	s.cameras = a.Cameras
	s.allocFrameBuffers()
	s.bounds = a.Bounds
	s.boundsValid = !a.Bounds.Empty()
	s.state = StateLoaded
	s.status = StatusOK
	s.Modified = false
	s.log.Debugf("%s: loaded %d splats (pos %s, scale %s, sh %s, color %s, %d chunks)",
		s.Name, n, l.PosFormat, l.ScaleFormat, l.SHFormat, l.ColorFormat, len(l.Chunks))
	return nil
}

// allocFrameBuffers sizes the view and sort buffers for count and resets
// the order to identity.
func (s *Store) allocFrameBuffers() {
	s.ViewData = make([]ViewRecord, s.count)
	s.SortDistances = make([]uint32, s.count)
	s.SortKeys = make([]uint32, s.count)
	s.ResetOrder()
}

// ResetOrder writes the identity permutation into the order buffer.
func (s *Store) ResetOrder() {
	keys := s.SortKeys
	s.dev.Dispatch("set-indices", len(keys), func(i int) {
		keys[i] = uint32(i)
	})
}

// Release drops every buffer. Safe to call repeatedly.
func (s *Store) Release() {
	for _, b := range []*compute.Buffer{s.PosData, s.OtherData, s.SHData, s.ColorData, s.PosMouseDown, s.OtherMouseDown} {
		b.Release()
	}
	for _, b := range []*compute.Bitset{s.Selected, s.SelectedMouseDown, s.Deleted} {
		b.Release()
	}
	s.PosData, s.OtherData, s.SHData, s.ColorData = nil, nil, nil, nil
	s.PosMouseDown, s.OtherMouseDown = nil, nil
	s.Selected, s.SelectedMouseDown, s.Deleted = nil, nil, nil
	s.Secondary = nil
	s.ViewData, s.SortKeys, s.SortDistances = nil, nil, nil
	s.layout = asset.Layout{}
	s.count = 0
	s.cameras = nil
	s.stats = EditStats{}
	s.statsValid = false
	s.boundsValid = false
	s.Modified = false
	s.once.Reset()
	if s.state != StateUnloaded {
		s.log.Debugf("%s: released", s.Name)
	}
	s.state = StateUnloaded
	if s.Asset == nil {
		s.status = StatusNoAsset
	}
}

// LoadSecondary binds a second asset with the same splat count as the
// interpolation target. Nil unbinds.
func (s *Store) LoadSecondary(a *asset.Asset) error {
	if a == nil {
		s.Secondary = nil
		return nil
	}
	if !s.Renderable() {
		return ErrNotRenderable
	}
	if err := a.Validate(); err != nil {
		return fmt.Errorf("secondary asset: %w", err)
	}
	if a.SplatCount != s.count {
		return fmt.Errorf("%w: %d splats, store has %d", ErrMismatch, a.SplatCount, s.count)
	}
	s.Secondary = &SplatData{Layout: a.Layout(), Bufs: a.Buffers()}
	return nil
}

// Bookmarks returns the camera bookmarks of the loaded asset.
func (s *Store) Bookmarks() []core.CameraBookmark {
	return s.cameras
}

// ActivateCamera moves cam to bookmark index, relative to the store's placement.
func (s *Store) ActivateCamera(index int, cam *core.Transform) error {
	if index < 0 || index >= len(s.cameras) {
		return fmt.Errorf("%w: %d of %d", ErrBookmark, index, len(s.cameras))
	}
	s.cameras[index].Apply(s.Transform, cam)
	return nil
}

// LocalBounds is the object-space box of all non-deleted splats.
func (s *Store) LocalBounds() core.AABB {
	if !s.boundsValid && s.Renderable() {
		s.bounds = s.reduceBounds()
		s.boundsValid = true
	}
	return s.bounds
}

// WorldBounds is LocalBounds under the store's transform.
func (s *Store) WorldBounds() core.AABB {
	return s.LocalBounds().Transformed(s.Transform.ObjectToWorld())
}

func (s *Store) invalidate() {
	s.statsValid = false
	s.boundsValid = false
}
