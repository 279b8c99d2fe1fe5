package simulator

import (
	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/humanav/traversability"
)

// Topview crops a cropSize x cropSize egocentric view of traversible per (start, theta) pair. The
// robot sits at column 0, row (cropSize-1)/2 looking along increasing columns. Entries are 1 for
// occupied space, including everything outside the map, and 0 for free space.
func Topview(traversible *traversability.Bitmap, starts []r2.Point, thetas []float64, cropSize int) ([]*mat.Dense, error) {
	crops, err := traversability.Egocentric(traversible, starts, thetas, cropSize, cropSize)
	if err != nil {
		return nil, err
	}
	for _, crop := range crops {
		crop.Apply(func(_, _ int, v float64) float64 { return 1 - v }, crop)
	}
	return crops, nil
}
