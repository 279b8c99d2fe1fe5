package traversability

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrNonSquareCrop is returned when an egocentric crop is requested with differing width and height.
var ErrNonSquareCrop = errors.New("egocentric crops must be square")

// Egocentric cuts a cropSize x cropSize window out of src for every (loc, theta) pair. Locations
// are in fractional cells of src. In each crop the robot sits at column 0, row (cropSize-1)/2 and
// faces along increasing columns. A crop entry is 1 where the sampled cell of src is free and 0
// where it is occupied or falls outside src.
func Egocentric(src *Bitmap, locs []r2.Point, thetas []float64, cropWidth, cropHeight int) ([]*mat.Dense, error) {
	if cropWidth != cropHeight {
		return nil, errors.Wrapf(ErrNonSquareCrop, "got %dx%d", cropWidth, cropHeight)
	}
	if cropWidth <= 0 {
		return nil, errors.Errorf("crop size must be positive, got %d", cropWidth)
	}
	if len(locs) != len(thetas) {
		return nil, errors.Errorf("got %d locations and %d headings", len(locs), len(thetas))
	}
	crops := make([]*mat.Dense, 0, len(locs))
	center := float64(cropWidth-1) / 2.
	for i, loc := range locs {
		xAxis := r2.Point{X: math.Cos(thetas[i]), Y: math.Sin(thetas[i])}
		yAxis := r2.Point{X: math.Sin(thetas[i]), Y: -math.Cos(thetas[i])}
		crop := mat.NewDense(cropWidth, cropWidth, nil)
		for row := 0; row < cropWidth; row++ {
			for col := 0; col < cropWidth; col++ {
				p := loc.Add(xAxis.Mul(float64(col))).Add(yAxis.Mul(float64(row) - center))
				x, y := int(math.Round(p.X)), int(math.Round(p.Y))
				if src.In(x, y) && src.Get(x, y) {
					crop.Set(row, col, 1)
				}
			}
		}
		crops = append(crops, crop)
	}
	return crops, nil
}
