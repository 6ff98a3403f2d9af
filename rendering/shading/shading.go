// Package shading holds the window-independent part of the terrain viewer:
// vertex colouring from the material parameters and the orbit camera.
package shading

import (
	"image/color"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"terrainforge/config"
	"terrainforge/core"
)

var (
	lowland = mgl32.Vec3{0.42, 0.36, 0.28}
	rock    = mgl32.Vec3{0.5, 0.48, 0.46}
	snow    = mgl32.Vec3{0.95, 0.95, 0.97}
	grass   = mgl32.Vec3{0.28, 0.5, 0.2}
)

// Shade colours one vertex. height is the elevation normalised to [0,1]
// over the mesh and flatness the y component of its unit normal. Grass
// covers flat ground below GrassHeight; BlendFactor widens both edges and
// FadePower biases the rock-to-snow ramp toward the peaks.
func Shade(height, flatness float32, m config.Material) color.RGBA {
	h := clamp01(height)

	ramp := math32.Pow(h, math32.Max(m.FadePower, 1e-3))
	var base mgl32.Vec3
	if ramp < 0.5 {
		base = lerp(lowland, rock, ramp*2)
	} else {
		base = lerp(rock, snow, (ramp-0.5)*2)
	}

	cover := 1 - smoothstep(m.GrassHeight-m.BlendFactor, m.GrassHeight+m.BlendFactor, h)
	cover *= smoothstep(m.GrassThreshold-m.BlendFactor, m.GrassThreshold+m.BlendFactor, flatness)

	c := lerp(base, grass, cover)
	return color.RGBA{R: channel(c[0]), G: channel(c[1]), B: channel(c[2]), A: 255}
}

// VertexColors shades every vertex of mesh, normalising heights over r.
func VertexColors(mesh *core.MeshBuffers, r core.Range, m config.Material) []color.RGBA {
	out := make([]color.RGBA, len(mesh.Vertices))
	span := r.Span()
	for i, v := range mesh.Vertices {
		var h float32
		if span > 0 {
			h = (v.Position.Y() - r.Min) / span
		}
		out[i] = Shade(h, v.Normal.Y(), m)
	}
	return out
}

func lerp(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

// smoothstep degrades to a step at edge1 when the edges coincide.
func smoothstep(edge0, edge1, x float32) float32 {
	if edge1 <= edge0 {
		if x < edge1 {
			return 0
		}
		return 1
	}
	t := clamp01((x - edge0) / (edge1 - edge0))
	return t * t * (3 - 2*t)
}

func clamp01(x float32) float32 {
	return math32.Min(math32.Max(x, 0), 1)
}

func channel(x float32) uint8 {
	return uint8(math32.Round(clamp01(x) * 255))
}
