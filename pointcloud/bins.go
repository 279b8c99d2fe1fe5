package pointcloud

import (
	"math"
	"sort"

	"github.com/pkg/errors"
)

// Bins counts the points of a cloud per floor cell and height band.
type Bins struct {
	MapSize int
	NBands  int
	// Counts is indexed by ((y * MapSize) + x) * NBands + band.
	Counts []int
	// Valid is indexed like the source cloud and marks the points that landed in a bin.
	Valid []bool
}

// Count returns the number of points in cell (x, y) at the given height band.
func (b *Bins) Count(x, y, band int) int {
	return b.Counts[((y*b.MapSize)+x)*b.NBands+band]
}

// CellTotal returns the number of points in cell (x, y) over all bands.
func (b *Bins) CellTotal(x, y int) int {
	total := 0
	for band := 0; band < b.NBands; band++ {
		total += b.Count(x, y, band)
	}
	return total
}

// ValidCount returns how many source points were binned.
func (b *Bins) ValidCount() int {
	n := 0
	for _, ok := range b.Valid {
		if ok {
			n++
		}
	}
	return n
}

// Bin drops the points of cloud into a mapSize x mapSize grid of xyResolution sized cells centered
// on the origin, and splits each cell into len(zEdges)+1 height bands. A point with z below
// zEdges[0] is in band 0, one in [zEdges[i-1], zEdges[i]) is in band i. Cell indices round half
// to even.
func Bin(cloud *Organized, mapSize int, xyResolution float64, zEdges []float64) (*Bins, error) {
	if mapSize <= 0 {
		return nil, errors.Errorf("map size must be positive, got %d", mapSize)
	}
	if xyResolution <= 0 {
		return nil, errors.Errorf("xy resolution must be positive, got %v", xyResolution)
	}
	if !sort.Float64sAreSorted(zEdges) {
		return nil, errors.New("height band edges must be increasing")
	}
	nBands := len(zEdges) + 1
	bins := &Bins{
		MapSize: mapSize,
		NBands:  nBands,
		Counts:  make([]int, mapSize*mapSize*nBands),
		Valid:   make([]bool, cloud.Size()),
	}
	center := float64(mapSize-1) / 2.
	for i, p := range cloud.Points() {
		if !IsFinitePoint(p) {
			continue
		}
		x := math.RoundToEven(p.X/xyResolution + center)
		y := math.RoundToEven(p.Y/xyResolution + center)
		if x < 0 || x >= float64(mapSize) || y < 0 || y >= float64(mapSize) {
			continue
		}
		band := sort.Search(len(zEdges), func(j int) bool { return zEdges[j] > p.Z })
		bins.Valid[i] = true
		bins.Counts[((int(y)*mapSize)+int(x))*nBands+band]++
	}
	return bins, nil
}
