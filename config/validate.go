package config

import (
	"fmt"

	"go.uber.org/multierr"

	"terrainforge/core"
)

// MaxResolution bounds the grid so index buffers stay addressable with
// uint32.
const MaxResolution = 8192

// Validate checks every setting that the pipeline relies on. All failures
// are reported together, each wrapping ErrInvalid.
func (s Settings) Validate() error {
	var err error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			err = multierr.Append(err, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	t := s.Terrain
	check(t.Resolution >= 1 && t.Resolution <= MaxResolution,
		"terrain.resolution must be in [1,%d], got %d", MaxResolution, t.Resolution)
	check(t.Octaves >= 1, "terrain.octaves must be at least 1, got %d", t.Octaves)
	check(t.Scale > 0, "terrain.scale must be positive, got %g", t.Scale)
	check(t.Persistence >= 0, "terrain.persistence must not be negative, got %g", t.Persistence)
	check(t.Lacunarity >= 1, "terrain.lacunarity must be at least 1, got %g", t.Lacunarity)
	check(t.WarpStrength >= 0, "terrain.warpStrength must not be negative, got %g", t.WarpStrength)
	check(t.WarpFrequency >= 0, "terrain.warpFrequency must not be negative, got %g", t.WarpFrequency)
	check(t.SmoothingPasses >= 0, "terrain.smoothingPasses must not be negative, got %d", t.SmoothingPasses)
	check(t.HeightMultiplier >= 0, "terrain.heightMultiplier must not be negative, got %g", t.HeightMultiplier)
	check(t.WorldSize > 0, "terrain.worldSize must be positive, got %g", t.WorldSize)
	if _, perr := core.ParseNoiseType(t.NoiseType); perr != nil {
		check(false, "terrain.noiseType: %v", perr)
	}
	_, ok := core.CurvePreset(t.Curve)
	check(ok, "terrain.curve %q is not one of %v", t.Curve, core.CurvePresetNames())

	e := s.Erosion
	check(e.Drops >= 0, "erosion.drops must not be negative, got %d", e.Drops)
	check(e.MaxSteps >= 0, "erosion.maxSteps must not be negative, got %d", e.MaxSteps)
	check(e.Radius >= 1, "erosion.radius must be at least 1, got %d", e.Radius)
	check(unit(e.Inertia), "erosion.inertia must be in [0,1], got %g", e.Inertia)
	check(e.SedimentCapacity >= 0, "erosion.sedimentCapacity must not be negative, got %g", e.SedimentCapacity)
	check(unit(e.DepositionRate), "erosion.depositionRate must be in [0,1], got %g", e.DepositionRate)
	check(unit(e.EvaporationRate), "erosion.evaporationRate must be in [0,1], got %g", e.EvaporationRate)
	check(unit(e.Hardness), "erosion.hardness must be in [0,1], got %g", e.Hardness)
	check(e.Gravity >= 0, "erosion.gravity must not be negative, got %g", e.Gravity)
	check(e.MinSlope >= 0, "erosion.minSlope must not be negative, got %g", e.MinSlope)

	check(s.Server.Port > 0 && s.Server.Port < 65536, "server.port out of range: %d", s.Server.Port)
	check(s.Server.UpdateIntervalMs > 0, "server.updateIntervalMs must be positive, got %d", s.Server.UpdateIntervalMs)

	switch s.GPU.Backend {
	case "", "auto", "cpu", "parallel":
	default:
		check(false, "gpu.backend %q is not one of auto, cpu, parallel", s.GPU.Backend)
	}
	check(s.GPU.Workers >= 0, "gpu.workers must not be negative, got %d", s.GPU.Workers)
	check(s.GPU.GroupSize >= 0, "gpu.groupSize must not be negative, got %d", s.GPU.GroupSize)

	return err
}

func unit(v float32) bool { return v >= 0 && v <= 1 }
