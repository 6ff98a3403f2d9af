package config

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Scope says which part of the pipeline an edited setting invalidates.
type Scope int

const (
	ScopeNone Scope = iota
	// ScopeMesh edits change the noise input and need a full regeneration.
	ScopeMesh
	// ScopeErosion edits only need erosion rerun on the saved heightfield.
	ScopeErosion
	// ScopeViewer edits only affect rendering.
	ScopeViewer
)

func (s Scope) String() string {
	switch s {
	case ScopeMesh:
		return "mesh"
	case ScopeErosion:
		return "erosion"
	case ScopeViewer:
		return "viewer"
	default:
		return "none"
	}
}

type editable struct {
	scope Scope
	field func(s *Settings) any
}

var editables = map[string]editable{
	"terrain.resolution":       {ScopeMesh, func(s *Settings) any { return &s.Terrain.Resolution }},
	"terrain.seed":             {ScopeMesh, func(s *Settings) any { return &s.Terrain.Seed }},
	"terrain.scale":            {ScopeMesh, func(s *Settings) any { return &s.Terrain.Scale }},
	"terrain.octaves":          {ScopeMesh, func(s *Settings) any { return &s.Terrain.Octaves }},
	"terrain.persistence":      {ScopeMesh, func(s *Settings) any { return &s.Terrain.Persistence }},
	"terrain.lacunarity":       {ScopeMesh, func(s *Settings) any { return &s.Terrain.Lacunarity }},
	"terrain.offsetX":          {ScopeMesh, func(s *Settings) any { return &s.Terrain.OffsetX }},
	"terrain.offsetY":          {ScopeMesh, func(s *Settings) any { return &s.Terrain.OffsetY }},
	"terrain.noiseType":        {ScopeMesh, func(s *Settings) any { return &s.Terrain.NoiseType }},
	"terrain.warpStrength":     {ScopeMesh, func(s *Settings) any { return &s.Terrain.WarpStrength }},
	"terrain.warpFrequency":    {ScopeMesh, func(s *Settings) any { return &s.Terrain.WarpFrequency }},
	"terrain.smoothingPasses":  {ScopeMesh, func(s *Settings) any { return &s.Terrain.SmoothingPasses }},
	"terrain.heightMultiplier": {ScopeMesh, func(s *Settings) any { return &s.Terrain.HeightMultiplier }},
	"terrain.curve":            {ScopeMesh, func(s *Settings) any { return &s.Terrain.Curve }},
	"terrain.worldSize":        {ScopeMesh, func(s *Settings) any { return &s.Terrain.WorldSize }},

	"erosion.enabled":          {ScopeErosion, func(s *Settings) any { return &s.Erosion.Enabled }},
	"erosion.drops":            {ScopeErosion, func(s *Settings) any { return &s.Erosion.Drops }},
	"erosion.maxSteps":         {ScopeErosion, func(s *Settings) any { return &s.Erosion.MaxSteps }},
	"erosion.radius":           {ScopeErosion, func(s *Settings) any { return &s.Erosion.Radius }},
	"erosion.inertia":          {ScopeErosion, func(s *Settings) any { return &s.Erosion.Inertia }},
	"erosion.sedimentCapacity": {ScopeErosion, func(s *Settings) any { return &s.Erosion.SedimentCapacity }},
	"erosion.depositionRate":   {ScopeErosion, func(s *Settings) any { return &s.Erosion.DepositionRate }},
	"erosion.evaporationRate":  {ScopeErosion, func(s *Settings) any { return &s.Erosion.EvaporationRate }},
	"erosion.hardness":         {ScopeErosion, func(s *Settings) any { return &s.Erosion.Hardness }},
	"erosion.gravity":          {ScopeErosion, func(s *Settings) any { return &s.Erosion.Gravity }},
	"erosion.minSlope":         {ScopeErosion, func(s *Settings) any { return &s.Erosion.MinSlope }},

	"material.grassHeight":    {ScopeViewer, func(s *Settings) any { return &s.Viewer.Material.GrassHeight }},
	"material.grassThreshold": {ScopeViewer, func(s *Settings) any { return &s.Viewer.Material.GrassThreshold }},
	"material.blendFactor":    {ScopeViewer, func(s *Settings) any { return &s.Viewer.Material.BlendFactor }},
	"material.fadePower":      {ScopeViewer, func(s *Settings) any { return &s.Viewer.Material.FadePower }},
}

// EditableKeys lists every key accepted by Apply.
func EditableKeys() []string {
	keys := make([]string, 0, len(editables))
	for k := range editables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Apply sets one setting from its JSON value and reports what the change
// invalidates. Nothing is modified if the result does not validate. Setting
// a value it already has returns ScopeNone, as does changing one warp
// parameter while the other is zero, since warping is off either way.
func (s *Settings) Apply(key string, value json.RawMessage) (Scope, error) {
	ed, ok := editables[key]
	if !ok {
		return ScopeNone, fmt.Errorf("%w: unknown setting %q", ErrInvalid, key)
	}

	next := *s
	if err := json.Unmarshal(value, ed.field(&next)); err != nil {
		return ScopeNone, fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
	}
	if err := next.Validate(); err != nil {
		return ScopeNone, err
	}
	if next == *s {
		return ScopeNone, nil
	}
	*s = next

	switch key {
	case "terrain.warpStrength":
		if s.Terrain.WarpFrequency == 0 {
			return ScopeNone, nil
		}
	case "terrain.warpFrequency":
		if s.Terrain.WarpStrength == 0 {
			return ScopeNone, nil
		}
	}
	return ed.scope, nil
}
