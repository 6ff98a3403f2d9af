package pipeline

import (
	"context"
	"errors"
	"io"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"terrainforge/core"
	"terrainforge/gpu"
	"terrainforge/heightmap"
	"terrainforge/noise"
)

func testParams() core.Params {
	curve, _ := core.CurvePreset("neutral")
	return core.Params{
		Terrain: core.TerrainParams{
			Resolution:       32,
			Seed:             1174,
			Scale:            0.5,
			Octaves:          4,
			Persistence:      0.5,
			Lacunarity:       2,
			NoiseType:        core.Simplex,
			SmoothingPasses:  2,
			HeightMultiplier: 20,
			Curve:            curve,
			WorldSize:        100,
		},
		Erosion: core.ErosionParams{
			Drops:            500,
			MaxSteps:         24,
			Radius:           3,
			Inertia:          0.05,
			SedimentCapacity: 4,
			DepositionRate:   0.3,
			EvaporationRate:  0.075,
			Softness:         0.2,
			Gravity:          4,
			MinSlope:         0.01,
		},
	}
}

func quietOptions() Options {
	return Options{Logger: log.New(io.Discard, "", 0)}
}

// gatedDevice holds every dispatch until gate is closed and fails them
// while fail is set.
type gatedDevice struct {
	gpu.GPUCompute
	gate chan struct{}
	fail atomic.Bool
}

func newGatedDevice() *gatedDevice {
	return &gatedDevice{GPUCompute: gpu.NewCPUCompute(2, 64), gate: make(chan struct{})}
}

func (d *gatedDevice) Dispatch(n int, k gpu.Kernel) error {
	<-d.gate
	if d.fail.Load() {
		return gpu.ErrDeviceLost
	}
	return d.GPUCompute.Dispatch(n, k)
}

func waitResult(t *testing.T, p *Pipeline) *Result {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		res, err := p.Tick()
		require.NoError(t, err)
		if res != nil {
			return res
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("no result published")
	return nil
}

func TestGenerateIsDeterministic(t *testing.T) {
	run := func() *Result {
		p := New(gpu.NewCPUCompute(1, 64), testParams(), quietOptions())
		t.Cleanup(p.Close)
		res, err := p.Generate(context.Background())
		require.NoError(t, err)
		return res
	}
	a, b := run(), run()
	assert.Equal(t, a.Heights.Heights, b.Heights.Heights)
	assert.Equal(t, a.Mesh.Vertices, b.Mesh.Vertices)
	assert.Equal(t, a.Range, b.Range)
	assert.True(t, a.Full)
	assert.Equal(t, []string{"noise", "reduce", "normalize", "smooth", "capture", "erosion", "indices", "vertices", "normals"}, a.Stages)
}

func TestMeshMatchesResolution(t *testing.T) {
	p := New(gpu.NewParallelCompute(64), testParams(), quietOptions())
	defer p.Close()
	res, err := p.Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 32, res.Mesh.Resolution)
	assert.Len(t, res.Mesh.Vertices, 33*33)
	assert.Len(t, res.Mesh.Indices, 32*32*6)
	assert.Len(t, res.Heights.Heights, 33*33)
	for i, v := range res.Mesh.Vertices {
		assert.Equal(t, res.Heights.Heights[i], v.Position.Y())
	}
}

func TestErosionOnlyRestoresSavedField(t *testing.T) {
	p := New(gpu.NewCPUCompute(1, 64), testParams(), quietOptions())
	defer p.Close()

	first, err := p.Generate(context.Background())
	require.NoError(t, err)
	saved, err := p.SavedHeightField().Wait(context.Background())
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.NotEqual(t, saved.Heights, first.Heights.Heights, "erosion should have changed the field")

	e := p.Params().Erosion
	e.Skip = true
	p.SetErosion(e)
	res, err := p.Generate(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Full)
	assert.NotContains(t, res.Stages, "noise")
	assert.Contains(t, res.Stages, "restore")
	assert.NotContains(t, res.Stages, "erosion")
	assert.Equal(t, saved.Heights, res.Heights.Heights)

	// Re-enabling erosion repeats the first result exactly.
	e.Skip = false
	p.SetErosion(e)
	again, err := p.Generate(context.Background())
	require.NoError(t, err)
	assert.False(t, again.Full)
	assert.Equal(t, first.Heights.Heights, again.Heights.Heights)
}

func TestTerrainChangeForcesFullRegeneration(t *testing.T) {
	p := New(gpu.NewCPUCompute(2, 64), testParams(), quietOptions())
	defer p.Close()
	_, err := p.Generate(context.Background())
	require.NoError(t, err)

	terrain := p.Params().Terrain
	terrain.Seed++
	p.SetTerrain(terrain)
	res, err := p.Generate(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Full)
	assert.Contains(t, res.Stages, "noise")
	assert.NotContains(t, res.Stages, "indices", "index buffer only depends on resolution")

	terrain.Resolution = 16
	p.SetTerrain(terrain)
	res, err = p.Generate(context.Background())
	require.NoError(t, err)
	assert.Contains(t, res.Stages, "indices")
	assert.Len(t, res.Mesh.Indices, 16*16*6)
}

func TestTickNeverBlocks(t *testing.T) {
	dev := newGatedDevice()
	p := New(dev, testParams(), quietOptions())

	res, err := p.Tick()
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.True(t, p.IsGenerating())

	// The device is stalled; ticks keep returning immediately.
	for i := 0; i < 5; i++ {
		done := make(chan struct{})
		go func() {
			_, _ = p.Tick()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Tick blocked on device work")
		}
	}

	close(dev.gate)
	res = waitResult(t, p)
	assert.Equal(t, uint64(1), res.Generation)
	assert.False(t, p.IsGenerating())
	p.Close()
}

func TestNoRequestNoWork(t *testing.T) {
	p := New(gpu.NewCPUCompute(2, 64), testParams(), quietOptions())
	defer p.Close()
	first := waitResult(t, p)

	for i := 0; i < 3; i++ {
		res, err := p.Tick()
		require.NoError(t, err)
		assert.Nil(t, res)
		assert.False(t, p.IsGenerating())
	}
	assert.Same(t, first, p.Current())
}

func TestRequestsDuringGenerationCoalesce(t *testing.T) {
	dev := newGatedDevice()
	p := New(dev, testParams(), quietOptions())
	defer p.Close()

	_, err := p.Tick()
	require.NoError(t, err)
	require.True(t, p.IsGenerating())

	terrain := p.Params().Terrain
	for seed := int64(10); seed < 13; seed++ {
		terrain.Seed = seed
		p.SetTerrain(terrain)
		p.MarkErosionDirty()
		_, err := p.Tick()
		require.NoError(t, err)
	}
	mesh, erosion := p.Dirty()
	assert.True(t, mesh)
	assert.True(t, erosion)

	close(dev.gate)
	first := waitResult(t, p)
	assert.Equal(t, int64(1174), first.Params.Terrain.Seed)
	// Publishing the first result started the follow-up in the same tick.
	assert.True(t, p.IsGenerating())

	second := waitResult(t, p)
	assert.Equal(t, uint64(2), second.Generation)
	assert.Equal(t, int64(12), second.Params.Terrain.Seed)
	assert.True(t, second.Full)

	res, err := p.Tick()
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.False(t, p.IsGenerating())
}

func TestFailedGenerationIsRetried(t *testing.T) {
	dev := newGatedDevice()
	close(dev.gate)
	dev.fail.Store(true)
	p := New(dev, testParams(), quietOptions())
	defer p.Close()

	_, err := p.Generate(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, gpu.ErrDeviceLost))
	assert.ErrorIs(t, p.LastError(), gpu.ErrDeviceLost)
	mesh, _ := p.Dirty()
	assert.True(t, mesh, "failed request must stay pending")
	assert.Nil(t, p.Current())

	dev.fail.Store(false)
	res := waitResult(t, p)
	assert.True(t, res.Full)
	assert.NoError(t, p.LastError())
}

func TestGenerateWhileBusy(t *testing.T) {
	dev := newGatedDevice()
	p := New(dev, testParams(), quietOptions())

	_, err := p.Tick()
	require.NoError(t, err)
	_, err = p.Generate(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(dev.gate)
	waitResult(t, p)
	p.Close()
}

func TestGenerateHonoursContext(t *testing.T) {
	dev := newGatedDevice()
	p := New(dev, testParams(), quietOptions())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Generate(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The abandoned generation is still published by the frame loop.
	close(dev.gate)
	res := waitResult(t, p)
	assert.Equal(t, uint64(1), res.Generation)
	p.Close()
}

func TestBuffersAreRecycled(t *testing.T) {
	p := New(gpu.NewCPUCompute(2, 64), testParams(), quietOptions())
	defer p.Close()

	const gens = 10
	var last *Result
	for i := 0; i < gens; i++ {
		p.MarkMeshDirty()
		res, err := p.Generate(context.Background())
		require.NoError(t, err)
		last = res
	}

	heights, vertices, _ := p.PoolStats()
	assert.Greater(t, heights.Reuses, 0)
	assert.Less(t, heights.Allocs, 3*gens)
	assert.Greater(t, vertices.Reuses, 0)
	assert.Same(t, last, p.Current())
	assert.Equal(t, uint64(gens), last.Generation)
}

func TestDisabledStagesLeaveNormalizedFieldUntouched(t *testing.T) {
	params := testParams()
	params.Terrain.SmoothingPasses = 0
	params.Erosion.Drops = 0
	dev := gpu.NewCPUCompute(1, 64)

	p := New(dev, params, quietOptions())
	defer p.Close()
	res, err := p.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"noise", "reduce", "normalize", "capture", "indices", "vertices", "normals"}, res.Stages)

	want := make([]float32, core.VertexCount(params.Terrain.Resolution))
	require.NoError(t, noise.Synthesize(dev, want, params.Terrain))
	rng, err := heightmap.Reduce(dev, want)
	require.NoError(t, err)
	require.NoError(t, heightmap.Normalize(dev, want, rng, params.Terrain.Curve.Bake(), params.Terrain.HeightMultiplier))
	assert.Equal(t, want, res.Heights.Heights)
}
