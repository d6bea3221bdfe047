package app

import (
	"errors"
	"fmt"
	"os"

	"github.com/gekko3d/gsplat/splatrt/rt/core"
	"github.com/pelletier/go-toml/v2"
)

type WindowConfig struct {
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	Title  string `toml:"title"`
}

// SceneConfig describes the procedural asset the viewer loads.
type SceneConfig struct {
	SplatCount int     `toml:"splat_count"`
	Radius     float32 `toml:"radius"`
	Chunked    bool    `toml:"chunked"`
}

type Config struct {
	Window WindowConfig      `toml:"window"`
	Scene  SceneConfig       `toml:"scene"`
	Render core.RenderParams `toml:"render"`

	Workers             int        `toml:"workers"` // 0 uses GOMAXPROCS
	Debug               bool       `toml:"debug"`
	CutoutRefreshFrames int        `toml:"cutout_refresh_frames"`
	Background          [4]float32 `toml:"background"`
	CaptureDir          string     `toml:"capture_dir"`
	ExportPath          string     `toml:"export_path"`
}

func DefaultConfig() Config {
	return Config{
		Window: WindowConfig{Width: 1280, Height: 720, Title: "GSplat Go"},
		Scene:  SceneConfig{SplatCount: 20000, Radius: 1},
		Render: core.DefaultRenderParams(),

		CutoutRefreshFrames: 30,
		Background:          [4]float32{0, 0, 0, 1},
		CaptureDir:          ".",
		ExportPath:          "export.ply",
	}
}

// LoadConfig reads a TOML file over the defaults. A missing file yields
// the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Render.Clamp()
	if cfg.Scene.SplatCount < 0 {
		return cfg, fmt.Errorf("config %s: negative splat_count %d", path, cfg.Scene.SplatCount)
	}
	return cfg, nil
}

func (c Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
