package main

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/lmittmann/ppm"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/humanav/pointcloud"
	"go.viam.com/humanav/rimage"
	"go.viam.com/humanav/simulator"
	"go.viam.com/humanav/utils"
)

func writePPM(path string, img image.Image) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "cannot create %q", path)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return ppm.Encode(f, img)
}

// topviewImage draws occupied cells black and free cells white.
func topviewImage(topview *mat.Dense) *image.Gray {
	rows, cols := topview.Dims()
	img := image.NewGray(image.Rect(0, 0, cols, rows))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if topview.At(r, c) == 0 {
				img.SetGray(c, r, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func depthImage(disparity *rimage.DisparityMap, far float64) *image.Gray {
	return disparity.ToDepth().ToPrettyPicture(0, far)
}

// binStats counts the cells of bins holding any point and the points of every height band.
func binStats(bins *pointcloud.Bins) (int, []int) {
	cells := 0
	perBand := make([]int, bins.NBands)
	for y := 0; y < bins.MapSize; y++ {
		for x := 0; x < bins.MapSize; x++ {
			if bins.CellTotal(x, y) > 0 {
				cells++
			}
			for band := range perBand {
				perBand[band] += bins.Count(x, y, band)
			}
		}
	}
	return cells, perBand
}

// medianDepth returns the median finite depth of a frame in meters, false when nothing was hit.
func medianDepth(disparity *rimage.DisparityMap) (float64, bool, error) {
	dm := disparity.ToDepth()
	var depths stats.Float64Data
	for y := 0; y < dm.Height(); y++ {
		for x := 0; x < dm.Width(); x++ {
			if d := dm.GetDepth(x, y); utils.IsFinite(d) {
				depths = append(depths, d)
			}
		}
	}
	if len(depths) == 0 {
		return 0, false, nil
	}
	median, err := stats.Median(depths)
	if err != nil {
		return 0, false, err
	}
	return median, true, nil
}

// depthTable prints one row per rendered frame.
func depthTable(depth *simulator.Depth) (string, error) {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Points", "Cells", "Floor", "Body", "Above", "Median depth (m)"})
	for i, bins := range depth.Bins {
		cells, perBand := binStats(bins)
		median := "-"
		m, ok, err := medianDepth(depth.Disparity[i])
		if err != nil {
			return "", err
		}
		if ok {
			median = fmt.Sprintf("%.2f", m)
		}
		row := table.Row{i, bins.ValidCount(), cells}
		for _, n := range perBand {
			row = append(row, n)
		}
		t.AppendRow(append(row, median))
	}
	return t.Render(), nil
}
