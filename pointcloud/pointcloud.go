// Package pointcloud defines the organized point clouds lifted out of rendered depth and the
// routines that align them with the world and bin them into occupancy counts.
package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/humanav/spatialmath"
	"go.viam.com/humanav/utils"
)

// MetaData is data about what's stored in the point cloud. Only finite points contribute.
type MetaData struct {
	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64

	finite int
}

// NewMetaData creates a new MetaData with no points.
func NewMetaData() MetaData {
	return MetaData{
		MinX: math.MaxFloat64,
		MinY: math.MaxFloat64,
		MinZ: math.MaxFloat64,
		MaxX: -math.MaxFloat64,
		MaxY: -math.MaxFloat64,
		MaxZ: -math.MaxFloat64,
	}
}

// Merge folds p into the bounds. Non-finite points are skipped.
func (meta *MetaData) Merge(p r3.Vector) {
	if !IsFinitePoint(p) {
		return
	}
	meta.finite++
	meta.MinX = math.Min(meta.MinX, p.X)
	meta.MaxX = math.Max(meta.MaxX, p.X)
	meta.MinY = math.Min(meta.MinY, p.Y)
	meta.MaxY = math.Max(meta.MaxY, p.Y)
	meta.MinZ = math.Min(meta.MinZ, p.Z)
	meta.MaxZ = math.Max(meta.MaxZ, p.Z)
}

// FiniteCount returns how many finite points were merged.
func (meta *MetaData) FiniteCount() int {
	return meta.finite
}

// IsFinitePoint reports whether every coordinate of p is finite.
func IsFinitePoint(p r3.Vector) bool {
	return utils.IsFinite(p.X) && utils.IsFinite(p.Y) && utils.IsFinite(p.Z)
}

// Organized is a point cloud laid out on the pixel grid of the image it was lifted from, so that
// point (u, v) came from pixel (u, v). Pixels without a return hold non-finite points.
type Organized struct {
	width  int
	height int
	points []r3.Vector
}

// NewOrganized returns a width x height cloud of zero points.
func NewOrganized(width, height int) *Organized {
	return &Organized{
		width:  width,
		height: height,
		points: make([]r3.Vector, width*height),
	}
}

// Width returns the number of columns.
func (cloud *Organized) Width() int {
	return cloud.width
}

// Height returns the number of rows.
func (cloud *Organized) Height() int {
	return cloud.height
}

// Size returns the number of points in the cloud, finite or not.
func (cloud *Organized) Size() int {
	return len(cloud.points)
}

// At returns the point lifted from pixel (u, v).
func (cloud *Organized) At(u, v int) r3.Vector {
	return cloud.points[v*cloud.width+u]
}

// Set sets the point of pixel (u, v).
func (cloud *Organized) Set(u, v int, p r3.Vector) {
	cloud.points[v*cloud.width+u] = p
}

// Points returns the row-major backing slice.
func (cloud *Organized) Points() []r3.Vector {
	return cloud.points
}

// Iterate calls fn for every pixel in row-major order until fn returns false.
func (cloud *Organized) Iterate(fn func(u, v int, p r3.Vector) bool) {
	for i, p := range cloud.points {
		if !fn(i%cloud.width, i/cloud.width, p) {
			return
		}
	}
}

// MetaData computes the bounds of the finite points.
func (cloud *Organized) MetaData() MetaData {
	meta := NewMetaData()
	for _, p := range cloud.points {
		meta.Merge(p)
	}
	return meta
}

// Scale multiplies every point by s in place.
func (cloud *Organized) Scale(s float64) *Organized {
	for i, p := range cloud.points {
		cloud.points[i] = p.Mul(s)
	}
	return cloud
}

// Rotate applies rot to every point in place.
func (cloud *Organized) Rotate(rot mat.Matrix) *Organized {
	spatialmath.RotateVectors(rot, cloud.points)
	return cloud
}

// Translate adds offset to every point in place.
func (cloud *Organized) Translate(offset r3.Vector) *Organized {
	for i, p := range cloud.points {
		cloud.points[i] = p.Add(offset)
	}
	return cloud
}
