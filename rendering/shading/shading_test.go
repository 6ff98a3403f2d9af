package shading

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"

	"terrainforge/config"
	"terrainforge/core"
)

func material() config.Material {
	return config.Default().Viewer.Material
}

func TestShadeGrassOnlyOnLowFlatGround(t *testing.T) {
	m := material()
	low := Shade(0.05, 1, m)
	steep := Shade(0.05, 0.2, m)
	peak := Shade(1, 1, m)

	assert.Greater(t, low.G, low.R, "low flat ground is green")
	assert.LessOrEqual(t, steep.G, steep.R+10, "steep ground is bare")
	assert.Greater(t, peak.R, uint8(230), "peaks are snow")
	assert.Equal(t, uint8(255), low.A)
}

func TestShadeZeroBlendIsHardEdge(t *testing.T) {
	m := material()
	m.BlendFactor = 0
	below := Shade(m.GrassHeight-0.01, 1, m)
	above := Shade(m.GrassHeight+0.01, 1, m)
	assert.Equal(t, uint8(128), below.G) // pure grass
	assert.NotEqual(t, below, above)
}

func TestShadeClampsInput(t *testing.T) {
	m := material()
	assert.Equal(t, Shade(0, 1, m), Shade(-3, 1, m))
	assert.Equal(t, Shade(1, 1, m), Shade(7, 1, m))
}

func TestVertexColorsFlatRange(t *testing.T) {
	mesh := &core.MeshBuffers{Vertices: make([]core.Vertex, 4)}
	for i := range mesh.Vertices {
		mesh.Vertices[i].Position = mgl32.Vec3{0, 3, 0}
		mesh.Vertices[i].Normal = mgl32.Vec3{0, 1, 0}
	}
	cols := VertexColors(mesh, core.Range{Min: 3, Max: 3}, material())
	assert.Len(t, cols, 4)
	for _, c := range cols {
		assert.Equal(t, Shade(0, 1, material()), c)
	}
}

func TestOrbitDrag(t *testing.T) {
	o := NewOrbit(100)
	o.Drag(40, 0)
	assert.InDelta(t, 55, o.Yaw, 1e-4)

	o.Drag(0, 10000)
	assert.Equal(t, float32(maxPitch), o.Pitch)
	o.Drag(0, -10000)
	assert.Equal(t, float32(minPitch), o.Pitch)
}

func TestOrbitEyeKeepsDistance(t *testing.T) {
	o := NewOrbit(100)
	o.Target = mgl32.Vec3{1, 2, 3}
	for i := 0; i < 8; i++ {
		o.Drag(37, 5)
		eye := o.Eye()
		assert.InDelta(t, o.Distance, eye.Sub(o.Target).Len(), 1e-3)
		assert.Greater(t, eye.Y(), o.Target.Y())
	}
}

func TestOrbitZoom(t *testing.T) {
	o := NewOrbit(10)
	d := o.Distance
	o.Zoom(1)
	assert.InDelta(t, d*0.9, o.Distance, 1e-4)
	o.Zoom(1000)
	assert.Equal(t, float32(minDistance), o.Distance)
}
