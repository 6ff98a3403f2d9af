package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"time"

	"terrainforge/config"
	"terrainforge/export"
	"terrainforge/gpu"
	"terrainforge/pipeline"
	"terrainforge/rendering"
	"terrainforge/server"
)

func main() {
	// raylib must stay on the main OS thread.
	runtime.LockOSThread()

	var (
		mode       = flag.String("mode", "view", "Run mode (view, serve, export)")
		configPath = flag.String("config", "settings.json", "Settings file")
		outPath    = flag.String("out", "terrain.json", "Output file for export mode")
	)
	overrides := config.BindFlags(flag.CommandLine)
	flag.Parse()

	if err := run(*mode, *configPath, *outPath, overrides); err != nil {
		log.Fatal(err)
	}
	fmt.Println("\nShutting down...")
}

func run(mode, configPath, outPath string, overrides func(*config.Settings)) error {
	settings, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	overrides(&settings)
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	params, err := settings.Params()
	if err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	fmt.Println("=== Terrain Forge ===")
	fmt.Printf("Mode: %s\n", mode)
	fmt.Printf("Terrain: %dx%d %s, seed %d, curve %s\n", settings.Terrain.Resolution, settings.Terrain.Resolution,
		settings.Terrain.NoiseType, settings.Terrain.Seed, settings.Terrain.Curve)
	fmt.Printf("Erosion: enabled=%v, %d drops x %d steps\n", settings.Erosion.Enabled, settings.Erosion.Drops, settings.Erosion.MaxSteps)

	dev, err := gpu.NewBackend(settings.GPU.Backend, settings.GPU.Workers, settings.GPU.GroupSize)
	if err != nil {
		return fmt.Errorf("failed to initialize compute backend: %w", err)
	}
	defer dev.Cleanup()
	fmt.Printf("Compute backend: %s\n", dev.Name())

	pipe := pipeline.New(dev, params, pipeline.Options{LogTimings: settings.Debug.LogTimings})
	defer pipe.Close()

	switch mode {
	case "view":
		runViewer(pipe, &settings)
	case "serve":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		addr := fmt.Sprintf(":%d", settings.Server.Port)
		fmt.Printf("Server starting on http://localhost%s (websocket at /ws)\n", addr)
		if err := server.New(pipe, settings, nil).ListenAndServe(ctx, addr); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case "export":
		if err := export.Write(pipe, outPath); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
	default:
		return fmt.Errorf("unknown mode: %s", mode)
	}
	return nil
}

func runViewer(pipe *pipeline.Pipeline, settings *config.Settings) {
	viewer := rendering.NewViewer(settings.Viewer.Width, settings.Viewer.Height, settings.Viewer.Material)
	viewer.Open("Terrain Forge")
	defer viewer.Close()

	fmt.Println("\nControls:")
	fmt.Println("  Mouse: Click and drag to rotate")
	fmt.Println("  Scroll: Zoom in/out")
	fmt.Println("  R: New seed")
	fmt.Println("  E: Toggle erosion")
	fmt.Println("  G: Regenerate")
	fmt.Println("  [ ]: Slope fade power")
	fmt.Println("  ESC: Exit")

	status := "generating..."
	for !viewer.ShouldClose() {
		res, err := pipe.Tick()
		switch {
		case err != nil:
			status = "generation failed: " + err.Error()
		case res != nil:
			viewer.SetMesh(res)
			status = fmt.Sprintf("eroded %.1f deposited %.1f", res.Erosion.Eroded, res.Erosion.Deposited)
		case pipe.IsGenerating():
			status = "generating..."
		}

		in := viewer.Frame(status)
		switch {
		case in.Reseed:
			seed := time.Now().UnixNano() % 100000
			applyEdit(pipe, viewer, settings, "terrain.seed", strconv.FormatInt(seed, 10))
		case in.ToggleErosion:
			applyEdit(pipe, viewer, settings, "erosion.enabled", strconv.FormatBool(!settings.Erosion.Enabled))
		case in.Regenerate:
			pipe.MarkMeshDirty()
		case in.FadeStep != 0:
			fade := max(settings.Viewer.Material.FadePower+0.5*float32(in.FadeStep), 0.5)
			applyEdit(pipe, viewer, settings, "material.fadePower", strconv.FormatFloat(float64(fade), 'g', -1, 32))
		}
	}
}

func applyEdit(pipe *pipeline.Pipeline, viewer *rendering.Viewer, settings *config.Settings, key, value string) {
	scope, err := settings.Apply(key, json.RawMessage(value))
	if err != nil {
		log.Printf("Edit %s rejected: %v", key, err)
		return
	}
	params, err := settings.Params()
	if err != nil {
		log.Printf("Edit %s rejected: %v", key, err)
		return
	}
	switch scope {
	case config.ScopeMesh:
		pipe.SetTerrain(params.Terrain)
	case config.ScopeErosion:
		pipe.SetErosion(params.Erosion)
	case config.ScopeViewer:
		viewer.SetMaterial(settings.Viewer.Material)
	}
	fmt.Printf("%s = %s (%s)\n", key, value, scope)
}
