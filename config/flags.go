package config

import "flag"

// BindFlags registers command-line overrides on fs. The returned function
// copies the flags that were actually set onto a Settings, so a settings
// file loaded after parsing still supplies everything else.
func BindFlags(fs *flag.FlagSet) func(*Settings) {
	d := Default()
	var (
		resolution = fs.Int("resolution", d.Terrain.Resolution, "Quads per side of the terrain grid")
		seed       = fs.Int64("seed", d.Terrain.Seed, "Terrain seed")
		noiseType  = fs.String("noise", d.Terrain.NoiseType, "Noise kernel (perlin, simplex, worley)")
		curve      = fs.String("curve", d.Terrain.Curve, "Height response curve preset")
		drops      = fs.Int("drops", d.Erosion.Drops, "Erosion particle count")
		noErosion  = fs.Bool("no-erosion", false, "Skip the erosion stage")
		backend    = fs.String("backend", d.GPU.Backend, "Compute backend (auto, cpu, parallel)")
		workers    = fs.Int("workers", d.GPU.Workers, "Worker count for the cpu backend (0 = NumCPU)")
		port       = fs.Int("port", d.Server.Port, "Websocket server port")
		timings    = fs.Bool("timings", d.Debug.LogTimings, "Log per-generation timings")
		width      = fs.Int("width", d.Viewer.Width, "Window width")
		height     = fs.Int("height", d.Viewer.Height, "Window height")
	)

	return func(s *Settings) {
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "resolution":
				s.Terrain.Resolution = *resolution
			case "seed":
				s.Terrain.Seed = *seed
			case "noise":
				s.Terrain.NoiseType = *noiseType
			case "curve":
				s.Terrain.Curve = *curve
			case "drops":
				s.Erosion.Drops = *drops
			case "no-erosion":
				s.Erosion.Enabled = !*noErosion
			case "backend":
				s.GPU.Backend = *backend
			case "workers":
				s.GPU.Workers = *workers
			case "port":
				s.Server.Port = *port
			case "timings":
				s.Debug.LogTimings = *timings
			case "width":
				s.Viewer.Width = *width
			case "height":
				s.Viewer.Height = *height
			}
		})
	}
}
