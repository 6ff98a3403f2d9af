package rendering

import (
	"fmt"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/mathgl/mgl32"

	"terrainforge/config"
	"terrainforge/pipeline"
	"terrainforge/rendering/shading"
)

// Input is what the user asked for during one frame.
type Input struct {
	Reseed        bool
	ToggleErosion bool
	Regenerate    bool
	// FadeStep is -1 or +1 when the slope fade power was nudged.
	FadeStep int
}

type triangle struct {
	a, b, c rl.Vector3
	col     rl.Color
}

// Viewer draws published terrain meshes with raylib. It must be used from
// the thread that opened the window.
type Viewer struct {
	width, height int32
	material      config.Material
	orbit         shading.Orbit

	result *pipeline.Result
	tris   []triangle
}

func NewViewer(width, height int, material config.Material) *Viewer {
	return &Viewer{
		width:    int32(width),
		height:   int32(height),
		material: material,
		orbit:    shading.NewOrbit(100),
	}
}

func (v *Viewer) Open(title string) {
	rl.SetConfigFlags(rl.FlagMsaa4xHint | rl.FlagWindowResizable)
	rl.InitWindow(v.width, v.height, title)
	rl.SetTargetFPS(60)
}

func (v *Viewer) Close() {
	rl.CloseWindow()
}

func (v *Viewer) ShouldClose() bool {
	return rl.WindowShouldClose()
}

// SetMesh takes over a published result. The mesh is copied into draw
// lists straight away, since the pipeline recycles its buffers later.
func (v *Viewer) SetMesh(res *pipeline.Result) {
	first := v.result == nil
	v.result = res
	if first {
		v.orbit = shading.NewOrbit(res.Params.Terrain.WorldSize)
	}
	v.rebuild()
}

// SetMaterial recolours the current mesh.
func (v *Viewer) SetMaterial(m config.Material) {
	v.material = m
	if v.result != nil {
		v.rebuild()
	}
}

func (v *Viewer) rebuild() {
	mesh := v.result.Mesh
	cols := shading.VertexColors(mesh, v.result.Range, v.material)

	// Centre the terrain on the origin.
	half := v.result.Params.Terrain.WorldSize / 2
	offset := mgl32.Vec3{-half, 0, -half}
	at := func(i uint32) rl.Vector3 {
		p := mesh.Vertices[i].Position.Add(offset)
		return rl.NewVector3(p[0], p[1], p[2])
	}

	v.tris = v.tris[:0]
	for i := 0; i+2 < len(mesh.Indices); i += 3 {
		ia, ib, ic := mesh.Indices[i], mesh.Indices[i+1], mesh.Indices[i+2]
		// Flat shade each triangle with its first vertex colour.
		c := cols[ia]
		v.tris = append(v.tris, triangle{
			a:   at(ia),
			b:   at(ib),
			c:   at(ic),
			col: rl.NewColor(c.R, c.G, c.B, c.A),
		})
	}
}

// Frame handles input and draws one frame. status is printed in the
// corner.
func (v *Viewer) Frame(status string) Input {
	if rl.IsMouseButtonDown(rl.MouseButtonLeft) {
		d := rl.GetMouseDelta()
		v.orbit.Drag(d.X, d.Y)
	}
	if wheel := rl.GetMouseWheelMove(); wheel != 0 {
		v.orbit.Zoom(wheel)
	}
	in := Input{
		Reseed:        rl.IsKeyPressed(rl.KeyR),
		ToggleErosion: rl.IsKeyPressed(rl.KeyE),
		Regenerate:    rl.IsKeyPressed(rl.KeyG),
	}
	switch {
	case rl.IsKeyPressed(rl.KeyLeftBracket):
		in.FadeStep = -1
	case rl.IsKeyPressed(rl.KeyRightBracket):
		in.FadeStep = 1
	}

	eye := v.orbit.Eye()
	camera := rl.Camera3D{
		Position:   rl.NewVector3(eye[0], eye[1], eye[2]),
		Target:     rl.NewVector3(0, 0, 0),
		Up:         rl.NewVector3(0, 1, 0),
		Fovy:       45,
		Projection: rl.CameraPerspective,
	}

	rl.BeginDrawing()
	rl.ClearBackground(rl.NewColor(24, 26, 32, 255))

	rl.BeginMode3D(camera)
	for i := range v.tris {
		t := &v.tris[i]
		rl.DrawTriangle3D(t.a, t.b, t.c, t.col)
	}
	rl.EndMode3D()

	rl.DrawFPS(10, 10)
	if v.result != nil {
		rl.DrawText(fmt.Sprintf("gen %d  %dx%d  %v", v.result.Generation,
			v.result.Mesh.Resolution, v.result.Mesh.Resolution, v.result.Elapsed.Round(time.Millisecond)), 10, 34, 18, rl.RayWhite)
	}
	rl.DrawText(status, 10, 56, 18, rl.LightGray)
	rl.DrawText("drag: rotate  wheel: zoom  R: new seed  E: toggle erosion  G: regenerate", 10, int32(rl.GetScreenHeight())-26, 16, rl.Gray)
	rl.EndDrawing()

	return in
}
