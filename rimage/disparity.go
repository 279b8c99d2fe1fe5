package rimage

// DisparityMap is a dense, row-major grid of inverse depths as rendered by a scene backend, in
// units of 1/cm such that depth in meters is 100 / disparity. Zero means no return.
type DisparityMap struct {
	width  int
	height int

	data []float64
}

// NewDisparityMap returns a width x height disparity map filled with zeros.
func NewDisparityMap(width, height int) *DisparityMap {
	return &DisparityMap{
		width:  width,
		height: height,
		data:   make([]float64, width*height),
	}
}

// NewUniformDisparityMap returns a disparity map whose every pixel is d.
func NewUniformDisparityMap(width, height int, d float64) *DisparityMap {
	dm := NewDisparityMap(width, height)
	for i := range dm.data {
		dm.data[i] = d
	}
	return dm
}

// Width returns the width of the map.
func (dm *DisparityMap) Width() int {
	return dm.width
}

// Height returns the height of the map.
func (dm *DisparityMap) Height() int {
	return dm.height
}

// At returns the disparity at column x, row y.
func (dm *DisparityMap) At(x, y int) float64 {
	return dm.data[y*dm.width+x]
}

// Set sets the disparity at column x, row y.
func (dm *DisparityMap) Set(x, y int, d float64) {
	dm.data[y*dm.width+x] = d
}

// Data returns the row-major backing slice.
func (dm *DisparityMap) Data() []float64 {
	return dm.data
}

// ToDepth converts the disparity to metric depth. Zero disparity becomes +Inf, which callers are
// expected to mask rather than reject.
func (dm *DisparityMap) ToDepth() *DepthMap {
	out := NewEmptyDepthMap(dm.width, dm.height)
	for i, d := range dm.data {
		// IEEE division: 100 / 0 is +Inf
		out.data[i] = 100. / d
	}
	return out
}

// FlipH returns a horizontally mirrored copy of the map.
func (dm *DisparityMap) FlipH() *DisparityMap {
	out := NewDisparityMap(dm.width, dm.height)
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			out.Set(dm.width-1-x, y, dm.At(x, y))
		}
	}
	return out
}
