package traversability

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Map describes the footprint of a building on its traversability grid. Origin and Max are in
// centimeters in the mesh frame, Resolution is centimeters per cell.
type Map struct {
	Origin     r2.Point `json:"origin"`
	Max        r2.Point `json:"max"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	Resolution float64  `json:"resolution"`
	Padding    float64  `json:"padding"`
}

// MakeMap sizes a grid that covers the xy extent of vertices (meters) with padding centimeters
// to spare on every side.
func MakeMap(vertices []r3.Vector, resolution, padding float64) (Map, error) {
	if len(vertices) == 0 {
		return Map{}, errors.New("cannot size a map without vertices")
	}
	if resolution <= 0 {
		return Map{}, errors.Errorf("resolution must be positive, got %v", resolution)
	}
	xs := make([]float64, len(vertices))
	ys := make([]float64, len(vertices))
	for i, v := range vertices {
		xs[i] = v.X * 100.
		ys[i] = v.Y * 100.
	}
	origin := r2.Point{X: math.Floor(floats.Min(xs) - padding), Y: math.Floor(floats.Min(ys) - padding)}
	upper := r2.Point{X: math.Ceil(floats.Max(xs) + padding), Y: math.Ceil(floats.Max(ys) + padding)}
	width := int(math.Ceil((upper.X - origin.X + 1) / resolution))
	height := int(math.Ceil((upper.Y - origin.Y + 1) / resolution))
	return Map{
		Origin: origin,
		Max: r2.Point{
			X: origin.X + float64(width)*resolution - 1,
			Y: origin.Y + float64(height)*resolution - 1,
		},
		Width:      width,
		Height:     height,
		Resolution: resolution,
		Padding:    padding,
	}, nil
}

// Cell returns the grid cell a point in centimeters falls into, and whether that cell is on the map.
func (m Map) Cell(xCm, yCm float64) (int, int, bool) {
	x := int(math.RoundToEven((xCm - m.Origin.X) / m.Resolution))
	y := int(math.RoundToEven((yCm - m.Origin.Y) / m.Resolution))
	return x, y, x >= 0 && y >= 0 && x < m.Width && y < m.Height
}

// CellToMeters converts a (possibly fractional) grid position to meters in the mesh frame.
func (m Map) CellToMeters(p r2.Point) r2.Point {
	return r2.Point{
		X: (p.X*m.Resolution + m.Origin.X) / 100.,
		Y: (p.Y*m.Resolution + m.Origin.Y) / 100.,
	}
}
