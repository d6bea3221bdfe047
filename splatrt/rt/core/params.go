package core

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

type DisplayMode int

const (
	DisplaySplats DisplayMode = iota
	DisplayDebugPoints
	DisplayDebugPointIndices
	DisplayDebugBoxes
	DisplayDebugChunkBounds
)

var displayModeNames = [...]string{"splats", "points", "point-indices", "boxes", "chunk-bounds"}

func (m DisplayMode) String() string {
	if m < 0 || int(m) >= len(displayModeNames) {
		return fmt.Sprintf("DisplayMode(%d)", int(m))
	}
	return displayModeNames[m]
}

func ParseDisplayMode(s string) (DisplayMode, error) {
	for i, n := range displayModeNames {
		if strings.EqualFold(n, s) {
			return DisplayMode(i), nil
		}
	}
	return DisplaySplats, fmt.Errorf("unknown display mode %q", s)
}

func (m DisplayMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *DisplayMode) UnmarshalText(b []byte) error {
	v, err := ParseDisplayMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Cube modes draw 36 indices per instance, the rest a 6 index quad.
func (m DisplayMode) IndexCount() int {
	if m == DisplayDebugBoxes || m == DisplayDebugChunkBounds {
		return 36
	}
	return 6
}

// RenderParams are the per-store display settings.
type RenderParams struct {
	Mode             DisplayMode `toml:"mode"`
	SplatScale       float32     `toml:"splat_scale"`
	OpacityScale     float32     `toml:"opacity_scale"`
	PointDisplaySize float32     `toml:"point_size"`
	SHOrder          int         `toml:"sh_order"`
	SHOnly           bool        `toml:"sh_only"`
	SortNthFrame     int         `toml:"sort_nth_frame"`

	// Dimmers scale the SH bands: [0] the base colour, [1..3] bands 1 to 3.
	Dimmers    [4]float32 `toml:"dimmers"`
	Hue        float32    `toml:"hue"`
	Saturation float32    `toml:"saturation"`
	Brightness float32    `toml:"brightness"`

	// InterpolationValue blends toward the secondary asset, 0..1.
	InterpolationValue float32 `toml:"interpolation"`

	Grid       Grid `toml:"grid"`
	IgnoreGrid bool `toml:"ignore_grid"`

	UseProxyCamera bool       `toml:"use_proxy_camera"`
	ProxyCamera    *Transform `toml:"-"`
}

func DefaultRenderParams() RenderParams {
	return RenderParams{
		Mode:             DisplaySplats,
		SplatScale:       1,
		OpacityScale:     1,
		PointDisplaySize: 3,
		SHOrder:          3,
		SortNthFrame:     1,
		Dimmers:          [4]float32{1, 1, 1, 1},
		IgnoreGrid:       true,
	}
}

// Clamp forces every field into its supported range.
func (p *RenderParams) Clamp() {
	p.SplatScale = mgl32.Clamp(p.SplatScale, 0.1, 2.0)
	p.OpacityScale = mgl32.Clamp(p.OpacityScale, 0.05, 20.0)
	p.PointDisplaySize = mgl32.Clamp(p.PointDisplaySize, 1, 15)
	if p.SHOrder < 0 {
		p.SHOrder = 0
	}
	if p.SHOrder > 3 {
		p.SHOrder = 3
	}
	if p.SortNthFrame < 1 {
		p.SortNthFrame = 1
	}
	if p.SortNthFrame > 30 {
		p.SortNthFrame = 30
	}
	for i := range p.Dimmers {
		p.Dimmers[i] = mgl32.Clamp(p.Dimmers[i], 0, 2)
	}
	p.Hue = mgl32.Clamp(p.Hue, -0.4, 0.4)
	p.Saturation = mgl32.Clamp(p.Saturation, -0.4, 0.4)
	p.Brightness = mgl32.Clamp(p.Brightness, -0.4, 0.4)
	p.InterpolationValue = mgl32.Clamp(p.InterpolationValue, 0, 1)
}
