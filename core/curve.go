package core

import (
	"sort"

	"github.com/chewxy/math32"
)

// CurveSamples is the size of the baked response-curve lookup table.
const CurveSamples = 128

// Keyframe is one control point of a response curve.
type Keyframe struct {
	Time  float32
	Value float32
}

// Curve is a piecewise-linear response curve over [0,1].
type Curve struct {
	Name string
	Keys []Keyframe
}

// Evaluate returns the curve value at t. Outside the keyed range the end
// values are held.
func (c Curve) Evaluate(t float32) float32 {
	n := len(c.Keys)
	switch {
	case n == 0:
		return t
	case t <= c.Keys[0].Time:
		return c.Keys[0].Value
	case t >= c.Keys[n-1].Time:
		return c.Keys[n-1].Value
	}
	i := sort.Search(n, func(i int) bool { return c.Keys[i].Time >= t })
	a, b := c.Keys[i-1], c.Keys[i]
	span := b.Time - a.Time
	if span <= 0 {
		return b.Value
	}
	f := (t - a.Time) / span
	return a.Value + (b.Value-a.Value)*f
}

// Bake samples the curve at i/(CurveSamples-1) for every table slot.
func (c Curve) Bake() []float32 {
	out := make([]float32, CurveSamples)
	for i := range out {
		out[i] = c.Evaluate(float32(i) / float32(CurveSamples-1))
	}
	return out
}

// Equal reports whether two curves have identical keys.
func (c Curve) Equal(o Curve) bool {
	if len(c.Keys) != len(o.Keys) {
		return false
	}
	for i := range c.Keys {
		if c.Keys[i] != o.Keys[i] {
			return false
		}
	}
	return true
}

func smoothKeys(fn func(t float32) float32, n int) []Keyframe {
	keys := make([]Keyframe, n)
	for i := range keys {
		t := float32(i) / float32(n-1)
		keys[i] = Keyframe{Time: t, Value: fn(t)}
	}
	return keys
}

var curvePresets = map[string]Curve{
	"neutral": {Name: "neutral", Keys: []Keyframe{{0, 0}, {1, 1}}},
	"mountains": {Name: "mountains", Keys: smoothKeys(func(t float32) float32 {
		return math32.Pow(t, 2.2)
	}, 12)},
	"plateaus": {Name: "plateaus", Keys: []Keyframe{
		{0, 0}, {0.3, 0.25}, {0.4, 0.5}, {0.65, 0.55}, {0.75, 0.85}, {1, 1},
	}},
	"mesa": {Name: "mesa", Keys: []Keyframe{
		{0, 0}, {0.45, 0.15}, {0.55, 0.8}, {1, 0.9},
	}},
	"basins": {Name: "basins", Keys: smoothKeys(func(t float32) float32 {
		return math32.Sqrt(t)
	}, 12)},
	"canyons": {Name: "canyons", Keys: []Keyframe{
		{0, 0}, {0.2, 0.05}, {0.3, 0.7}, {0.7, 0.8}, {1, 1},
	}},
}

// CurvePreset looks up a named response curve.
func CurvePreset(name string) (Curve, bool) {
	c, ok := curvePresets[name]
	return c, ok
}

// CurvePresetNames lists the available presets in sorted order.
func CurvePresetNames() []string {
	names := make([]string, 0, len(curvePresets))
	for n := range curvePresets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
