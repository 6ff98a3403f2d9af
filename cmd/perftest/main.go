package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"time"

	"terrainforge/config"
	"terrainforge/core"
	"terrainforge/erosion"
	"terrainforge/gpu"
	"terrainforge/heightmap"
	"terrainforge/mesh"
	"terrainforge/noise"
	"terrainforge/pipeline"
)

func main() {
	var (
		resolution = flag.Int("resolution", 512, "Quads per side")
		drops      = flag.Int("drops", 200000, "Erosion particles")
		runs       = flag.Int("runs", 3, "Pipeline runs per backend")
	)
	flag.Parse()

	s := config.Default()
	s.Terrain.Resolution = *resolution
	s.Erosion.Drops = *drops
	params, err := s.Params()
	if err != nil {
		log.Fatalf("Invalid settings: %v", err)
	}

	fmt.Println("=== Performance Test ===")
	fmt.Printf("Resolution: %dx%d (%d samples), drops: %d\n",
		*resolution, *resolution, core.VertexCount(*resolution), *drops)

	for _, name := range []string{"cpu", "parallel"} {
		dev, err := gpu.NewBackend(name, 0, 0)
		if err != nil {
			log.Fatalf("Failed to initialize %s backend: %v", name, err)
		}
		fmt.Printf("\n--- %s ---\n", dev.Name())
		if err := stages(dev, params); err != nil {
			log.Fatalf("Stage test failed: %v", err)
		}
		if err := fullRuns(dev, params, *runs); err != nil {
			log.Fatalf("Pipeline test failed: %v", err)
		}
		dev.Cleanup()
	}

	fmt.Println("\n=== Test Complete ===")
}

func timed(label string, fn func() error) error {
	start := time.Now()
	if err := fn(); err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	fmt.Printf("%-12s %.3fs\n", label+":", time.Since(start).Seconds())
	return nil
}

// stages times every kernel on its own.
func stages(dev gpu.GPUCompute, p core.Params) error {
	t := p.Terrain
	res := t.Resolution
	n := core.VertexCount(res)
	field := make([]float32, n)
	scratch := make([]float32, n)
	var rng core.Range

	steps := []struct {
		label string
		fn    func() error
	}{
		{"noise", func() error { return noise.Synthesize(dev, field, t) }},
		{"reduce", func() (err error) { rng, err = heightmap.Reduce(dev, field); return err }},
		{"normalize", func() error { return heightmap.Normalize(dev, field, rng, t.Curve.Bake(), t.HeightMultiplier) }},
		{"smooth", func() error {
			bufs := &heightmap.HeightBuffers{Read: &gpu.Buffer[float32]{Data: field}, Write: &gpu.Buffer[float32]{Data: scratch}}
			if err := heightmap.Smooth(dev, bufs, res, t.SmoothingPasses); err != nil {
				return err
			}
			field = bufs.Read.Data
			return nil
		}},
		{"erosion", func() error {
			st, err := erosion.Erode(dev, field, res, erosion.NewBrush(p.Erosion.Radius), p.Erosion, erosion.Seed(t.Seed))
			if err == nil {
				fmt.Printf("             %d steps, eroded %.1f, deposited %.1f\n", st.Steps, st.Eroded, st.Deposited)
			}
			return err
		}},
		{"mesh", func() error { _, err := mesh.Build(dev, field, res, t.WorldSize); return err }},
	}
	for _, s := range steps {
		if err := timed(s.label, s.fn); err != nil {
			return err
		}
	}
	return nil
}

// fullRuns times complete generations through the pipeline, the first one
// full and the rest erosion-only.
func fullRuns(dev gpu.GPUCompute, p core.Params, runs int) error {
	pipe := pipeline.New(dev, p, pipeline.Options{Logger: log.New(io.Discard, "", 0)})
	defer pipe.Close()

	for i := 0; i < runs; i++ {
		if i > 0 {
			pipe.MarkErosionDirty()
		}
		res, err := pipe.Generate(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("pipeline %d:  %.3fs full=%v stages=%v\n", i, res.Elapsed.Seconds(), res.Full, res.Stages)
	}
	heights, vertices, indices := pipe.PoolStats()
	fmt.Printf("pools:       heights %+v\n             vertices %+v\n             indices %+v\n", heights, vertices, indices)
	return nil
}
