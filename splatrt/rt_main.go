package main

import (
	"flag"
	"runtime"

	gsplat "github.com/gekko3d/gsplat"
	"github.com/gekko3d/gsplat/splatrt/rt/app"

	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "gsplat.toml", "Viewer config file (TOML)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	splats := flag.Int("splats", 0, "Override the procedural splat count")
	workers := flag.Int("workers", 0, "Override the compute worker count")
	flag.Parse()

	log := gsplat.NewDefaultLogger("gsplat", *debug)

	cfg, err := app.LoadConfig(*configPath)
	if err != nil {
		log.Errorf("%v", err)
		return
	}
	if *debug {
		cfg.Debug = true
	}
	log.SetDebug(cfg.Debug)
	if *splats > 0 {
		cfg.Scene.SplatCount = *splats
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}

	viewer, err := app.NewViewer(cfg, log.WithPrefix("scene"))
	if err != nil {
		log.Errorf("%v", err)
		return
	}

	if err := glfw.Init(); err != nil {
		panic(err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title, nil, nil)
	if err != nil {
		panic(err)
	}
	defer window.Destroy()

	application := app.NewApp(window, viewer, log.WithPrefix("viewer"))
	if err := application.Init(); err != nil {
		panic(err)
	}
	defer application.Release()

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		application.Resize(width, height)
	})

	window.SetCursorPosCallback(func(w *glfw.Window, xpos, ypos float64) {
		application.HandleCursor(xpos, ypos)
	})

	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyTab && action == glfw.Press {
			application.ToggleMouseCapture()
			return
		}
		if key == glfw.KeyEscape && action == glfw.Press && !viewer.Dragging() {
			w.SetShouldClose(true)
			return
		}
		application.HandleKey(key, action, mods)
	})

	window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		application.HandleMouseButton(button, action, mods)
	})

	for !window.ShouldClose() {
		glfw.PollEvents()
		application.Update()
		application.Render()
	}
}
