package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/go-gl/mathgl/mgl32"

	"terrainforge/core"
	"terrainforge/gpu"
)

// ErrInvalid wraps every settings validation failure.
var ErrInvalid = errors.New("invalid settings")

type Settings struct {
	Terrain TerrainSettings `json:"terrain"`
	Erosion ErosionSettings `json:"erosion"`
	Server  ServerSettings  `json:"server"`
	GPU     GPUSettings     `json:"gpu"`
	Viewer  ViewerSettings  `json:"viewer"`
	Debug   DebugSettings   `json:"debug"`
}

type TerrainSettings struct {
	Resolution       int     `json:"resolution"`
	Seed             int64   `json:"seed"`
	Scale            float32 `json:"scale"`
	Octaves          int     `json:"octaves"`
	Persistence      float32 `json:"persistence"`
	Lacunarity       float32 `json:"lacunarity"`
	OffsetX          float32 `json:"offsetX"`
	OffsetY          float32 `json:"offsetY"`
	NoiseType        string  `json:"noiseType"`
	WarpStrength     float32 `json:"warpStrength"`
	WarpFrequency    float32 `json:"warpFrequency"`
	SmoothingPasses  int     `json:"smoothingPasses"`
	HeightMultiplier float32 `json:"heightMultiplier"`
	Curve            string  `json:"curve"`
	WorldSize        float32 `json:"worldSize"`
}

type ErosionSettings struct {
	Enabled          bool    `json:"enabled"`
	Drops            int     `json:"drops"`
	MaxSteps         int     `json:"maxSteps"`
	Radius           int     `json:"radius"`
	Inertia          float32 `json:"inertia"`
	SedimentCapacity float32 `json:"sedimentCapacity"`
	DepositionRate   float32 `json:"depositionRate"`
	EvaporationRate  float32 `json:"evaporationRate"`
	// Hardness is what the user edits; the simulation uses 1 - Hardness.
	Hardness float32 `json:"hardness"`
	Gravity  float32 `json:"gravity"`
	MinSlope float32 `json:"minSlope"`
}

type ServerSettings struct {
	Port             int `json:"port"`
	UpdateIntervalMs int `json:"updateIntervalMs"`
}

type GPUSettings struct {
	Backend   string `json:"backend"`
	Workers   int    `json:"workers"`
	GroupSize int    `json:"groupSize"`
}

// Material is passed through to whatever renders the mesh.
type Material struct {
	GrassHeight    float32 `json:"grassHeight"`
	GrassThreshold float32 `json:"grassThreshold"`
	BlendFactor    float32 `json:"blendFactor"`
	FadePower      float32 `json:"fadePower"`
}

type ViewerSettings struct {
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	Material Material `json:"material"`
}

type DebugSettings struct {
	LogTimings bool `json:"logTimings"`
}

// Default returns the settings used when no file is present.
func Default() Settings {
	return Settings{
		Terrain: TerrainSettings{
			Resolution:       512,
			Seed:             1174,
			Scale:            0.5,
			Octaves:          7,
			Persistence:      0.5,
			Lacunarity:       2,
			NoiseType:        core.Simplex.String(),
			WarpStrength:     0.2,
			WarpFrequency:    0.5,
			SmoothingPasses:  2,
			HeightMultiplier: 20,
			Curve:            "neutral",
			WorldSize:        100,
		},
		Erosion: ErosionSettings{
			Enabled:          true,
			Drops:            200000,
			MaxSteps:         24,
			Radius:           3,
			Inertia:          0.05,
			SedimentCapacity: 4,
			DepositionRate:   0.3,
			EvaporationRate:  0.075,
			Hardness:         0.8,
			Gravity:          4,
			MinSlope:         0.01,
		},
		Server: ServerSettings{
			Port:             8080,
			UpdateIntervalMs: 100,
		},
		GPU: GPUSettings{
			Backend:   "auto",
			GroupSize: gpu.DefaultGroupSize,
		},
		Viewer: ViewerSettings{
			Width:  1280,
			Height: 720,
			Material: Material{
				GrassHeight:    0.35,
				GrassThreshold: 0.75,
				BlendFactor:    0.15,
				FadePower:      2,
			},
		},
	}
}

// Load reads settings from path over the defaults. A missing file is not an
// error.
func Load(path string) (Settings, error) {
	s := Default()

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("[config] no %s found, using defaults", path)
			return s, nil
		}
		return s, err
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&s); err != nil {
		return s, fmt.Errorf("error parsing %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return s, err
	}

	log.Printf("[config] loaded %s: %dx%d %s terrain, %d drops",
		path, s.Terrain.Resolution, s.Terrain.Resolution, s.Terrain.NoiseType, s.Erosion.Drops)
	return s, nil
}

// Save writes s as indented JSON.
func Save(path string, s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Params converts the settings into pipeline parameters.
func (s Settings) Params() (core.Params, error) {
	t := s.Terrain
	noiseType, err := core.ParseNoiseType(t.NoiseType)
	if err != nil {
		return core.Params{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	curve, ok := core.CurvePreset(t.Curve)
	if !ok {
		return core.Params{}, fmt.Errorf("%w: unknown curve %q", ErrInvalid, t.Curve)
	}
	e := s.Erosion
	return core.Params{
		Terrain: core.TerrainParams{
			Resolution:       t.Resolution,
			Seed:             t.Seed,
			Scale:            t.Scale,
			Octaves:          t.Octaves,
			Persistence:      t.Persistence,
			Lacunarity:       t.Lacunarity,
			Offset:           mgl32.Vec2{t.OffsetX, t.OffsetY},
			NoiseType:        noiseType,
			WarpStrength:     t.WarpStrength,
			WarpFrequency:    t.WarpFrequency,
			SmoothingPasses:  t.SmoothingPasses,
			HeightMultiplier: t.HeightMultiplier,
			Curve:            curve,
			WorldSize:        t.WorldSize,
		},
		Erosion: core.ErosionParams{
			Skip:             !e.Enabled,
			Drops:            e.Drops,
			MaxSteps:         e.MaxSteps,
			Radius:           e.Radius,
			Inertia:          e.Inertia,
			SedimentCapacity: e.SedimentCapacity,
			DepositionRate:   e.DepositionRate,
			EvaporationRate:  e.EvaporationRate,
			Softness:         1 - e.Hardness,
			Gravity:          e.Gravity,
			MinSlope:         e.MinSlope,
		},
	}, nil
}
