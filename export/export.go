// Package export writes headless dumps of generated terrain.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/multierr"

	"terrainforge/core"
	"terrainforge/erosion"
	"terrainforge/pipeline"
)

// Data is the headless debug dump of one generation.
type Data struct {
	Generation uint64        `json:"generation"`
	Resolution int           `json:"resolution"`
	Seed       int64         `json:"seed"`
	WorldSize  float32       `json:"worldSize"`
	Range      core.Range    `json:"range"`
	Erosion    erosion.Stats `json:"erosion"`
	ElapsedMs  float64       `json:"elapsedMs"`
	Heights    []float32     `json:"heights"`
}

// Write runs one generation and writes it to path as JSON.
func Write(pipe *pipeline.Pipeline, path string) (err error) {
	res, err := pipe.Generate(context.Background())
	if err != nil {
		return err
	}

	data := Data{
		Generation: res.Generation,
		Resolution: res.Heights.Resolution,
		Seed:       res.Params.Terrain.Seed,
		WorldSize:  res.Params.Terrain.WorldSize,
		Range:      res.Range,
		Erosion:    res.Erosion,
		ElapsedMs:  float64(res.Elapsed.Microseconds()) / 1000,
		Heights:    res.Heights.Heights,
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()
	if err := json.NewEncoder(f).Encode(data); err != nil {
		return err
	}

	fmt.Printf("Wrote %s: %dx%d heights in [%.3f, %.3f], %v\n",
		path, data.Resolution, data.Resolution, data.Range.Min, data.Range.Max, res.Elapsed)
	return nil
}
