package pipeline

import (
	"context"
	"errors"
	"log"
	"slices"
	"sync"
	"time"

	"terrainforge/core"
	"terrainforge/erosion"
	"terrainforge/gpu"
)

// ErrBusy is returned by Generate while another generation is in flight.
var ErrBusy = errors.New("pipeline: generation in flight")

// DefaultReleaseLag is how many completed generations a retired buffer
// survives before it is recycled.
const DefaultReleaseLag = 2

type Options struct {
	Logger     *log.Logger
	LogTimings bool
	ReleaseLag int
	QueueDepth int
}

// Result is one published regeneration. Its buffers stay valid until
// ReleaseLag generations after the result was superseded.
type Result struct {
	Generation uint64
	Params     core.Params
	// Full is false when the base heightfield was restored from the saved
	// copy instead of synthesized.
	Full    bool
	Stages  []string
	Heights *core.HeightField
	Mesh    *core.MeshBuffers
	Range   core.Range
	Erosion erosion.Stats
	Elapsed time.Duration

	heightBuf *gpu.Buffer[float32]
	vertexBuf *gpu.Buffer[core.Vertex]
}

type dirtyFlags struct {
	mesh, erosion bool
}

// run is the state of one generation as it moves through the stages.
type run struct {
	gen     uint64
	params  core.Params
	flags   dirtyFlags
	full    bool
	started time.Time
	stages  []string

	heights  *gpu.Buffer[float32]
	scratch  *gpu.Buffer[float32]
	vertices *gpu.Buffer[core.Vertex]
	rng      core.Range
	stats    erosion.Stats
}

// Pipeline sequences the terrain stages for every regeneration request and
// publishes the results to the host frame loop without blocking it.
type Pipeline struct {
	queue      *gpu.Queue
	log        *log.Logger
	logTimings bool

	heightPool *gpu.Pool[float32]
	vertexPool *gpu.Pool[core.Vertex]
	indexPool  *gpu.Pool[uint32]

	mu           sync.Mutex
	params       core.Params
	meshDirty    bool
	erosionDirty bool
	generating   bool
	inflight     *gpu.Future[*Result]
	inflightRun  *run
	generation   uint64
	current      *Result
	lastErr      error

	// Only touched by commands running on the queue.
	saved      *gpu.Buffer[float32]
	savedRes   int
	savedValid bool
	indices    *gpu.Buffer[uint32]
	indexRes   int
	brush      *erosion.Brush
}

// New creates a pipeline on dev. The first Tick starts a full generation.
func New(dev gpu.GPUCompute, params core.Params, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	lag := opts.ReleaseLag
	if lag <= 0 {
		lag = DefaultReleaseLag
	}
	return &Pipeline{
		queue:      gpu.NewQueue(dev, opts.QueueDepth),
		log:        logger,
		logTimings: opts.LogTimings,
		heightPool: gpu.NewPool[float32](lag),
		vertexPool: gpu.NewPool[core.Vertex](lag),
		indexPool:  gpu.NewPool[uint32](lag),
		params:     params,
		meshDirty:  true,
	}
}

// MarkMeshDirty requests a full regeneration on the next idle Tick.
func (p *Pipeline) MarkMeshDirty() {
	p.mu.Lock()
	p.meshDirty = true
	p.mu.Unlock()
}

// MarkErosionDirty requests an erosion-only regeneration on the next idle
// Tick.
func (p *Pipeline) MarkErosionDirty() {
	p.mu.Lock()
	p.erosionDirty = true
	p.mu.Unlock()
}

func (p *Pipeline) IsGenerating() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generating
}

// Dirty reports the pending request flags.
func (p *Pipeline) Dirty() (mesh, erosion bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.meshDirty, p.erosionDirty
}

func (p *Pipeline) Params() core.Params {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.params
}

// SetTerrain replaces the noise-affecting parameters and marks the mesh
// dirty.
func (p *Pipeline) SetTerrain(t core.TerrainParams) {
	p.mu.Lock()
	p.params.Terrain = t
	p.meshDirty = true
	p.mu.Unlock()
}

// SetErosion replaces the erosion parameters and marks erosion dirty.
func (p *Pipeline) SetErosion(e core.ErosionParams) {
	p.mu.Lock()
	p.params.Erosion = e
	p.erosionDirty = true
	p.mu.Unlock()
}

// Current returns the most recently published result, or nil.
func (p *Pipeline) Current() *Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// LastError returns the failure of the most recent generation, if any.
func (p *Pipeline) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Tick is called once per frame. It publishes a finished generation, if
// any, and starts a new one when a request is pending and none is in
// flight. It never waits for device work. A failed generation is reported
// once and retried on a later Tick.
func (p *Pipeline) Tick() (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.generating {
		if !p.inflight.Ready() {
			return nil, nil
		}
		res, err := p.completeLocked()
		if err != nil {
			return nil, err
		}
		p.maybeStartLocked()
		return res, nil
	}
	p.maybeStartLocked()
	return nil, nil
}

// Generate runs one generation to completion. With no request pending it
// reruns erosion. It returns ErrBusy if a generation is already in flight.
func (p *Pipeline) Generate(ctx context.Context) (*Result, error) {
	p.mu.Lock()
	if p.generating {
		p.mu.Unlock()
		return nil, ErrBusy
	}
	if !p.meshDirty && !p.erosionDirty {
		p.erosionDirty = true
	}
	f := p.startLocked()
	p.mu.Unlock()

	if _, err := f.Wait(ctx); err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.generating && p.inflight == f {
		return p.completeLocked()
	}
	// A concurrent Tick already published it.
	return f.Result()
}

// SavedHeightField reads back a copy of the cached pre-erosion field. The
// future resolves to nil if no field has been captured yet.
func (p *Pipeline) SavedHeightField() *gpu.Future[*core.HeightField] {
	return gpu.Submit(p.queue, func(gpu.GPUCompute) (*core.HeightField, error) {
		if !p.savedValid {
			return nil, nil
		}
		hf := core.NewHeightField(p.savedRes)
		copy(hf.Heights, p.saved.Data)
		return hf, nil
	})
}

// Close waits for queued work and drops every buffer.
func (p *Pipeline) Close() {
	p.queue.Close()
	p.heightPool.Release()
	p.vertexPool.Release()
	p.indexPool.Release()
}

// PoolStats reports the buffer pools for diagnostics.
func (p *Pipeline) PoolStats() (heights, vertices, indices gpu.PoolStats) {
	return p.heightPool.Stats(), p.vertexPool.Stats(), p.indexPool.Stats()
}

func (p *Pipeline) maybeStartLocked() {
	if !p.generating && (p.meshDirty || p.erosionDirty) {
		p.startLocked()
	}
}

// startLocked snapshots the parameters, clears the request flags and
// submits the stage chain. Parameter changes made while it runs set the
// flags again and are picked up by the next generation.
func (p *Pipeline) startLocked() *gpu.Future[*Result] {
	p.generation++
	params := p.params
	params.Terrain.Curve.Keys = slices.Clone(params.Terrain.Curve.Keys)

	r := &run{
		gen:     p.generation,
		params:  params,
		flags:   dirtyFlags{mesh: p.meshDirty, erosion: p.erosionDirty},
		started: time.Now(),
	}
	p.meshDirty, p.erosionDirty = false, false

	base := gpu.Submit(p.queue, func(dev gpu.GPUCompute) (*run, error) {
		return r, p.baseStage(dev, r)
	})
	eroded := gpu.Then(p.queue, base, func(dev gpu.GPUCompute, r *run) (*run, error) {
		return r, p.erosionStage(dev, r)
	})
	final := gpu.Then(p.queue, eroded, func(dev gpu.GPUCompute, r *run) (*Result, error) {
		if err := p.meshStage(dev, r); err != nil {
			return nil, err
		}
		return r.result(p.indices.Data), nil
	})

	p.generating = true
	p.inflight = final
	p.inflightRun = r
	return final
}

func (p *Pipeline) completeLocked() (*Result, error) {
	res, err := p.inflight.Result()
	r := p.inflightRun
	p.generating = false
	p.inflight = nil
	p.inflightRun = nil

	if err != nil {
		p.heightPool.Retire(r.heights)
		p.heightPool.Retire(r.scratch)
		p.vertexPool.Retire(r.vertices)
		p.meshDirty = p.meshDirty || r.flags.mesh
		p.erosionDirty = p.erosionDirty || r.flags.erosion
		p.lastErr = err
		p.advance()
		p.log.Printf("[pipeline] generation %d failed: %v", r.gen, err)
		return nil, err
	}

	if old := p.current; old != nil {
		p.retireResultLocked(old)
	}
	p.current = res
	p.lastErr = nil
	p.advance()

	if p.logTimings {
		p.log.Printf("[pipeline] TIMING: gen=%d full=%v res=%d elapsed=%v range=[%.3f,%.3f] drops=%d steps=%d eroded=%.3f deposited=%.3f",
			res.Generation, res.Full, res.Params.Terrain.Resolution, res.Elapsed, res.Range.Min, res.Range.Max,
			res.Erosion.Particles, res.Erosion.Steps, res.Erosion.Eroded, res.Erosion.Deposited)
	}
	return res, nil
}

func (p *Pipeline) advance() {
	p.heightPool.Advance()
	p.vertexPool.Advance()
	p.indexPool.Advance()
}

func (p *Pipeline) retireResultLocked(res *Result) {
	p.heightPool.Retire(res.heightBuf)
	p.vertexPool.Retire(res.vertexBuf)
}
