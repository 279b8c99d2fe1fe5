package traversability

import (
	"math"
	"time"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/humanav/logging"
	"go.viam.com/humanav/spatialmath"
)

// holeFillSize is the largest enclosed pocket, in cells, that is treated as sampling noise.
const holeFillSize = 20

// RasterConfig holds the robot cylinder and sampling parameters used to rasterize meshes. Lengths
// are in centimeters.
type RasterConfig struct {
	RobotBase         float64
	RobotHeight       float64
	RobotRadius       float64
	ValidMin          float64
	ValidMax          float64
	NumPointThreshold float64
	SamplesPerFace    int
}

// Rasterizer turns meshes into traversability bitmaps over a fixed Map by sampling points on
// every face and accumulating their area weighted counts per cell.
type Rasterizer struct {
	m      Map
	cfg    RasterConfig
	logger logging.Logger
}

// NewRasterizer returns a Rasterizer over m.
func NewRasterizer(m Map, cfg RasterConfig, logger logging.Logger) (*Rasterizer, error) {
	if cfg.SamplesPerFace <= 0 {
		return nil, errors.Errorf("samples per face must be positive, got %d", cfg.SamplesPerFace)
	}
	if m.Width <= 0 || m.Height <= 0 {
		return nil, errors.Errorf("map must have a positive size, got (%d,%d)", m.Width, m.Height)
	}
	return &Rasterizer{m: m, cfg: cfg, logger: logger}, nil
}

// Map returns the map the rasterizer draws on.
func (r *Rasterizer) Map() Map {
	return r.m
}

// accumulate samples every face of meshes (meters) and returns, per cell, the area weight of the
// samples whose height in centimeters falls strictly inside (lo, hi).
func (r *Rasterizer) accumulate(meshes []*spatialmath.Mesh, bands ...[2]float64) [][]float64 {
	weights := make([][]float64, len(bands))
	for i := range weights {
		weights[i] = make([]float64, r.m.Width*r.m.Height)
	}
	n := r.cfg.SamplesPerFace
	for _, mesh := range meshes {
		for _, tri := range mesh.Triangles() {
			tri = tri.Transform(func(v r3.Vector) r3.Vector { return v.Mul(100.) })
			wt := tri.Area() / float64(n)
			for _, p := range tri.SamplePoints(n) {
				x, y, ok := r.m.Cell(p.X, p.Y)
				if !ok {
					continue
				}
				for i, band := range bands {
					if p.Z > band[0] && p.Z < band[1] {
						weights[i][y*r.m.Width+x] += wt
					}
				}
			}
		}
	}
	return weights
}

func (r *Rasterizer) threshold(weights []float64) *Bitmap {
	b := NewBitmap(r.m.Width, r.m.Height)
	for i, w := range weights {
		b.bits[i] = w > r.cfg.NumPointThreshold
	}
	return b
}

func (r *Rasterizer) obstacles(weights []float64) *Bitmap {
	occupied := FillHoles(r.threshold(weights), holeFillSize)
	return Dilate(occupied, Disk(r.cfg.RobotRadius/r.m.Resolution))
}

// Traversible rasterizes static meshes into a free space bitmap: a cell is free when no obstacle
// at robot body height lies within the robot radius of it and the cell holds enough floor or
// furniture samples to count as observed space.
func (r *Rasterizer) Traversible(meshes []*spatialmath.Mesh) (*Bitmap, error) {
	start := time.Now()
	weights := r.accumulate(meshes,
		[2]float64{r.cfg.RobotBase, r.cfg.RobotBase + r.cfg.RobotHeight},
		[2]float64{r.cfg.ValidMin, r.cfg.ValidMax},
	)
	free := r.obstacles(weights[0]).Not()
	valid := FillHoles(r.threshold(weights[1]), holeFillSize)
	if err := free.And(valid); err != nil {
		return nil, err
	}
	r.logger.Debugw("rasterized traversible",
		"meshes", len(meshes), "free", free.Count(), "cells", len(free.bits), "took", time.Since(start))
	return free, nil
}

// HumanFootprint rasterizes a placed human mesh (meters) into the cells it blocks, grown by the
// robot radius. Only cells within reach of center (meters) are considered, which keeps stray
// vertices of a malformed mesh from blocking distant parts of the building.
func (r *Rasterizer) HumanFootprint(mesh *spatialmath.Mesh, center r2.Point) *Bitmap {
	reach := HumanRadius(mesh, center)*100. + r.cfg.RobotRadius + r.m.Resolution
	weights := r.accumulate([]*spatialmath.Mesh{mesh},
		[2]float64{r.cfg.RobotBase, r.cfg.RobotBase + r.cfg.RobotHeight})[0]
	for i := range weights {
		x, y := i%r.m.Width, i/r.m.Width
		cx := float64(x)*r.m.Resolution + r.m.Origin.X - center.X*100.
		cy := float64(y)*r.m.Resolution + r.m.Origin.Y - center.Y*100.
		if math.Hypot(cx, cy) > reach {
			weights[i] = 0
		}
	}
	return r.obstacles(weights)
}

// DefaultHumanRadius is the radius in meters reported for a human whose mesh is unknown.
const DefaultHumanRadius = 0.5

// HumanRadius returns the largest xy distance in meters between center and a vertex of mesh.
func HumanRadius(mesh *spatialmath.Mesh, center r2.Point) float64 {
	if mesh == nil || len(mesh.Vertices()) == 0 {
		return DefaultHumanRadius
	}
	radius := 0.
	for _, v := range mesh.Vertices() {
		radius = math.Max(radius, math.Hypot(v.X-center.X, v.Y-center.Y))
	}
	return radius
}
