// Package rimage holds the image planes produced by a scene backend: RGB frames, disparity maps and
// the metric depth maps derived from them.
package rimage

import (
	"image"
	"image/color"
	"math"

	"go.viam.com/humanav/utils"
)

// DepthMap is a dense, row-major grid of metric depths in meters. A value of +Inf marks a pixel
// with no return.
type DepthMap struct {
	width  int
	height int

	data []float64
}

// NewEmptyDepthMap returns a width x height depth map filled with zeros.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]float64, width*height),
	}
}

// HasData returns whether the depth map has any pixels.
func (dm *DepthMap) HasData() bool {
	return dm.width > 0 && dm.data != nil
}

// Width returns the width of the depth map.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the height of the depth map.
func (dm *DepthMap) Height() int {
	return dm.height
}

func (dm *DepthMap) kxy(x, y int) int {
	return (y * dm.width) + x
}

// GetDepth returns the depth at column x, row y.
func (dm *DepthMap) GetDepth(x, y int) float64 {
	return dm.data[dm.kxy(x, y)]
}

// Get returns the depth at the given point.
func (dm *DepthMap) Get(p image.Point) float64 {
	return dm.GetDepth(p.X, p.Y)
}

// Set sets the depth at column x, row y.
func (dm *DepthMap) Set(x, y int, val float64) {
	dm.data[dm.kxy(x, y)] = val
}

// Clip clamps every finite depth at or beyond maxDepth to maxDepth. Infinite depths are no-return
// pixels and stay infinite. A maxDepth of +Inf disables clipping.
func (dm *DepthMap) Clip(maxDepth float64) {
	if math.IsInf(maxDepth, 1) {
		return
	}
	for i, d := range dm.data {
		if !math.IsInf(d, 0) && d >= maxDepth {
			dm.data[i] = maxDepth
		}
	}
}

// MinMax returns the minimum and maximum finite depth of the map.
func (dm *DepthMap) MinMax() (float64, float64) {
	minD, maxD := math.Inf(1), math.Inf(-1)
	for _, d := range dm.data {
		if !utils.IsFinite(d) {
			continue
		}
		minD = math.Min(minD, d)
		maxD = math.Max(maxD, d)
	}
	return minD, maxD
}

// ToPrettyPicture maps depths in [hardMin, hardMax] onto a gray ramp, near is bright. Pixels with
// no return are black.
func (dm *DepthMap) ToPrettyPicture(hardMin, hardMax float64) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, dm.width, dm.height))
	span := hardMax - hardMin
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			d := dm.GetDepth(x, y)
			if !utils.IsFinite(d) || span <= 0 {
				continue
			}
			ratio := math.Min(math.Max((d-hardMin)/span, 0), 1)
			img.SetGray(x, y, color.Gray{Y: uint8(255 - math.Round(ratio*254))})
		}
	}
	return img
}
