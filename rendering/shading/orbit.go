package shading

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// DragSensitivity is degrees of rotation per pixel of mouse movement.
const DragSensitivity = 0.25

const (
	minPitch    = 5
	maxPitch    = 89
	minDistance = 1
)

// Orbit is a camera circling Target at Distance. Yaw and Pitch are in
// degrees.
type Orbit struct {
	Target   mgl32.Vec3
	Yaw      float32
	Pitch    float32
	Distance float32
}

// NewOrbit frames a square terrain of the given world size.
func NewOrbit(worldSize float32) Orbit {
	return Orbit{Yaw: 45, Pitch: 35, Distance: worldSize * 1.3}
}

// Drag rotates by a mouse delta in pixels.
func (o *Orbit) Drag(dx, dy float32) {
	o.Yaw = math32.Mod(o.Yaw+dx*DragSensitivity, 360)
	o.Pitch = math32.Min(math32.Max(o.Pitch+dy*DragSensitivity, minPitch), maxPitch)
}

// Zoom moves toward the target by a wheel delta; each notch is 10%.
func (o *Orbit) Zoom(wheel float32) {
	o.Distance = math32.Max(o.Distance*(1-0.1*wheel), minDistance)
}

// Eye is the camera position.
func (o Orbit) Eye() mgl32.Vec3 {
	yaw, pitch := mgl32.DegToRad(o.Yaw), mgl32.DegToRad(o.Pitch)
	dir := mgl32.Vec3{
		math32.Cos(pitch) * math32.Cos(yaw),
		math32.Sin(pitch),
		math32.Cos(pitch) * math32.Sin(yaw),
	}
	return o.Target.Add(dir.Mul(o.Distance))
}
