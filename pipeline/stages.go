package pipeline

import (
	"fmt"
	"time"

	"terrainforge/core"
	"terrainforge/erosion"
	"terrainforge/gpu"
	"terrainforge/heightmap"
	"terrainforge/mesh"
	"terrainforge/noise"
)

// baseStage leaves the pre-erosion heightfield in r.heights. It synthesizes
// a new field when the mesh was invalidated or nothing usable is saved, and
// otherwise restores the saved copy.
func (p *Pipeline) baseStage(dev gpu.GPUCompute, r *run) error {
	t := r.params.Terrain
	res := t.Resolution
	if res < 1 {
		return fmt.Errorf("pipeline: resolution %d", res)
	}
	n := core.VertexCount(res)
	r.full = r.flags.mesh || !p.savedValid || p.savedRes != res
	r.heights = p.heightPool.Acquire(n)

	if !r.full {
		r.stages = append(r.stages, "restore")
		return heightmap.Copy(dev, r.heights.Data, p.saved.Data)
	}

	// Until the new field is captured the saved copy no longer matches the
	// parameters.
	p.savedValid = false

	r.stages = append(r.stages, "noise")
	if err := noise.Synthesize(dev, r.heights.Data, t); err != nil {
		return fmt.Errorf("noise: %w", err)
	}

	r.stages = append(r.stages, "reduce")
	rng, err := heightmap.Reduce(dev, r.heights.Data)
	if err != nil {
		return fmt.Errorf("reduce: %w", err)
	}

	r.stages = append(r.stages, "normalize")
	if err := heightmap.Normalize(dev, r.heights.Data, rng, t.Curve.Bake(), t.HeightMultiplier); err != nil {
		return fmt.Errorf("normalize: %w", err)
	}

	if t.SmoothingPasses > 0 {
		r.stages = append(r.stages, "smooth")
		r.scratch = p.heightPool.Acquire(n)
		bufs := &heightmap.HeightBuffers{Read: r.heights, Write: r.scratch}
		if err := heightmap.Smooth(dev, bufs, res, t.SmoothingPasses); err != nil {
			return fmt.Errorf("smooth: %w", err)
		}
		r.heights, r.scratch = bufs.Read, bufs.Write
		p.heightPool.Retire(r.scratch)
	}

	r.stages = append(r.stages, "capture")
	saved := p.heightPool.Acquire(n)
	if err := heightmap.Copy(dev, saved.Data, r.heights.Data); err != nil {
		p.heightPool.Retire(saved)
		return fmt.Errorf("capture: %w", err)
	}
	p.heightPool.Retire(p.saved)
	p.saved, p.savedRes, p.savedValid = saved, res, true
	return nil
}

func (p *Pipeline) erosionStage(dev gpu.GPUCompute, r *run) error {
	e := r.params.Erosion
	if !e.Active() {
		return nil
	}
	if p.brush == nil || p.brush.Radius != e.Radius {
		p.brush = erosion.NewBrush(e.Radius)
	}
	r.stages = append(r.stages, "erosion")
	st, err := erosion.Erode(dev, r.heights.Data, r.params.Terrain.Resolution, p.brush, e, erosion.Seed(r.params.Terrain.Seed))
	if err != nil {
		return fmt.Errorf("erosion: %w", err)
	}
	r.stats = st
	return nil
}

// meshStage turns the final heightfield into vertices. The index buffer
// only depends on the resolution and is rebuilt when that changes.
func (p *Pipeline) meshStage(dev gpu.GPUCompute, r *run) error {
	t := r.params.Terrain
	res := t.Resolution

	rng, err := heightmap.Reduce(dev, r.heights.Data)
	if err != nil {
		return fmt.Errorf("range: %w", err)
	}
	r.rng = rng

	if p.indices == nil || p.indexRes != res {
		r.stages = append(r.stages, "indices")
		p.indexPool.Retire(p.indices)
		p.indices, p.indexRes = p.indexPool.Acquire(core.IndexCount(res)), res
		if err := mesh.BuildIndices(dev, p.indices.Data, res); err != nil {
			p.indexPool.Retire(p.indices)
			p.indices, p.indexRes = nil, 0
			return fmt.Errorf("indices: %w", err)
		}
	}

	r.stages = append(r.stages, "vertices")
	r.vertices = p.vertexPool.Acquire(core.VertexCount(res))
	if err := mesh.BuildVertices(dev, r.vertices.Data, r.heights.Data, res, t.WorldSize); err != nil {
		return fmt.Errorf("vertices: %w", err)
	}

	r.stages = append(r.stages, "normals")
	if err := mesh.RecalculateNormals(dev, r.vertices.Data, res); err != nil {
		return fmt.Errorf("normals: %w", err)
	}
	return nil
}

func (r *run) result(indices []uint32) *Result {
	res := r.params.Terrain.Resolution
	return &Result{
		Generation: r.gen,
		Params:     r.params,
		Full:       r.full,
		Stages:     r.stages,
		Heights:    &core.HeightField{Resolution: res, Heights: r.heights.Data},
		Mesh:       &core.MeshBuffers{Resolution: res, Vertices: r.vertices.Data, Indices: indices},
		Range:      r.rng,
		Erosion:    r.stats,
		Elapsed:    time.Since(r.started),
		heightBuf:  r.heights,
		vertexBuf:  r.vertices,
	}
}
