package heightmap

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"terrainforge/core"
	"terrainforge/gpu"
)

func randomField(n int, seed uint64) []float32 {
	r := rand.New(rand.NewPCG(seed, 3))
	out := make([]float32, n)
	for i := range out {
		out[i] = r.Float32()*200 - 100
	}
	return out
}

func TestReduceMatchesSequentialScan(t *testing.T) {
	dev := gpu.NewParallelCompute(0)
	for _, n := range []int{1, 2, 255, 256, 257, 1000, 65 * 65, 513 * 513, 3_000_001} {
		field := randomField(n, uint64(n))
		want := core.Range{Min: field[0], Max: field[0]}
		for _, v := range field {
			want.Min = min(want.Min, v)
			want.Max = max(want.Max, v)
		}
		got, err := Reduce(dev, field)
		require.NoError(t, err)
		assert.Equal(t, want, got, "n=%d", n)
	}
}

func TestReduceEmpty(t *testing.T) {
	got, err := Reduce(gpu.NewCPUCompute(1, 1), nil)
	require.NoError(t, err)
	assert.Equal(t, core.Range{}, got)
}

func TestSampleCurve(t *testing.T) {
	linear := core.Curve{Keys: []core.Keyframe{{Time: 0, Value: 0}, {Time: 1, Value: 1}}}.Bake()
	for _, x := range []float32{0, 0.1, 0.5, 0.77, 1} {
		assert.InDelta(t, x, SampleCurve(linear, x), 1e-6)
	}
	assert.Equal(t, float32(0), SampleCurve(linear, -3))
	assert.Equal(t, float32(1), SampleCurve(linear, 7))

	mesa, ok := core.CurvePreset("mesa")
	require.True(t, ok)
	baked := mesa.Bake()
	for i := range baked {
		x := float32(i) / float32(core.CurveSamples-1)
		assert.InDelta(t, mesa.Evaluate(x), SampleCurve(baked, x), 1e-6)
	}
}

func TestNormalizeBounds(t *testing.T) {
	dev := gpu.NewCPUCompute(4, 32)
	for _, name := range core.CurvePresetNames() {
		t.Run(name, func(t *testing.T) {
			curve, _ := core.CurvePreset(name)
			samples := curve.Bake()
			field := randomField(33*33, 5)
			maxIdx := 0
			for i, v := range field {
				if v > field[maxIdx] {
					maxIdx = i
				}
			}

			r, err := Reduce(dev, field)
			require.NoError(t, err)
			const hm = 20
			require.NoError(t, Normalize(dev, field, r, samples, hm))

			for _, v := range field {
				assert.GreaterOrEqual(t, v, float32(0))
				assert.LessOrEqual(t, v, float32(hm))
			}
			assert.InDelta(t, SampleCurve(samples, 1)*hm, field[maxIdx], 1e-3)
		})
	}
}

func TestNormalizeFlatField(t *testing.T) {
	dev := gpu.NewCPUCompute(2, 4)
	curve := core.Curve{Keys: []core.Keyframe{{Time: 0, Value: 0.25}, {Time: 1, Value: 1}}}.Bake()
	field := []float32{3, 3, 3, 3}
	r, err := Reduce(dev, field)
	require.NoError(t, err)
	require.NoError(t, Normalize(dev, field, r, curve, 8))
	assert.Equal(t, []float32{2, 2, 2, 2}, field)
}

func newBuffers(res int, data []float32) *HeightBuffers {
	pool := gpu.NewPool[float32](1)
	n := core.VertexCount(res)
	read, write := pool.Acquire(n), pool.Acquire(n)
	copy(read.Data, data)
	return &HeightBuffers{Read: read, Write: write}
}

func TestSmoothZeroPassesIsNoop(t *testing.T) {
	field := randomField(core.VertexCount(8), 9)
	bufs := newBuffers(8, field)
	before := bufs.Read
	require.NoError(t, Smooth(gpu.NewCPUCompute(1, 8), bufs, 8, 0))
	assert.Same(t, before, bufs.Read)
	assert.Equal(t, field, bufs.Read.Data)
}

func TestSmoothEdgeClampedAverage(t *testing.T) {
	// 3x3 samples, spike in the corner.
	bufs := newBuffers(2, []float32{
		9, 0, 0,
		0, 0, 0,
		0, 0, 0,
	})
	require.NoError(t, Smooth(gpu.NewCPUCompute(2, 2), bufs, 2, 1))
	got := bufs.Read.Data
	assert.InDelta(t, 9.0/4, got[0], 1e-6, "corner averages its 4 in-bounds cells")
	assert.InDelta(t, 9.0/6, got[1], 1e-6, "edge averages its 6 in-bounds cells")
	assert.InDelta(t, 9.0/9, got[4], 1e-6, "interior averages 9 cells")
	assert.Equal(t, float32(0), got[8])
}

func TestSmoothSwapsHandlesPerPass(t *testing.T) {
	bufs := newBuffers(4, randomField(25, 1))
	a, b := bufs.Read, bufs.Write
	require.NoError(t, Smooth(gpu.NewCPUCompute(1, 8), bufs, 4, 3))
	assert.Same(t, b, bufs.Read)
	assert.Same(t, a, bufs.Write)
}

func TestSmoothIsSymmetric(t *testing.T) {
	const res = 10
	w := res + 1
	field := make([]float32, w*w)
	field[5*w+5] = 1
	bufs := newBuffers(res, field)
	require.NoError(t, Smooth(gpu.NewParallelCompute(8), bufs, res, 2))
	got := bufs.Read.Data
	at := func(x, z int) float32 { return got[z*w+x] }
	for dz := -2; dz <= 2; dz++ {
		for dx := -2; dx <= 2; dx++ {
			v := at(5+dx, 5+dz)
			assert.InDelta(t, v, at(5-dz, 5+dx), 1e-7)
			assert.InDelta(t, v, at(5-dx, 5+dz), 1e-7)
		}
	}
}

func TestCopy(t *testing.T) {
	src := randomField(100, 2)
	dst := make([]float32, 100)
	require.NoError(t, Copy(gpu.NewCPUCompute(3, 9), dst, src))
	assert.Equal(t, src, dst)
	assert.Error(t, Copy(gpu.NewCPUCompute(1, 1), dst[:5], src))
}
