package simulator

import (
	"context"
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/humanav/config"
	"go.viam.com/humanav/dataset"
	"go.viam.com/humanav/logging"
	"go.viam.com/humanav/pointcloud"
	"go.viam.com/humanav/rimage"
	"go.viam.com/humanav/rimage/transform"
	"go.viam.com/humanav/scene"
	"go.viam.com/humanav/spatialmath"
	"go.viam.com/humanav/traversability"
)

func sumBand(bins interface{ Count(x, y, band int) int }, x0, x1, y0, y1, band int) int {
	total := 0
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			total += bins.Count(x, y, band)
		}
	}
	return total
}

// cellsWith counts the cells of row y holding exactly n points.
func cellsWith(bins *pointcloud.Bins, mapSize, y, n int) int {
	cells := 0
	for x := 0; x < mapSize; x++ {
		if bins.CellTotal(x, y) == n {
			cells++
		}
	}
	return cells
}

func TestDepthToBins(t *testing.T) {
	params, err := transform.NewPinholeCameraIntrinsicsFromFOV(8, 8, 90, 90)
	test.That(t, err, test.ShouldBeNil)
	robot := config.Default().Robot
	robot.CameraElevationDegree = 0
	facingY := spatialmath.NewPose3(0, 0, math.Pi/2)

	// every pixel is 2m ahead, i.e. in row 200cm / 10cm + 50
	bins, err := DepthToBins(rimage.NewUniformDisparityMap(8, 8, 50), params, robot, math.Inf(1), 10, 101, facingY)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, bins.NBands, test.ShouldEqual, 3)
	test.That(t, bins.ValidCount(), test.ShouldEqual, 64)
	test.That(t, sumBand(bins, 0, 100, 70, 70, 0), test.ShouldEqual, 24)
	test.That(t, sumBand(bins, 0, 100, 70, 70, 1), test.ShouldEqual, 16)
	test.That(t, sumBand(bins, 0, 100, 70, 70, 2), test.ShouldEqual, 24)
	// one cell per image column
	test.That(t, cellsWith(bins, 101, 70, 8), test.ShouldEqual, 8)

	t.Run("clip", func(t *testing.T) {
		far := rimage.NewUniformDisparityMap(8, 8, 10)
		clipped, err := DepthToBins(far, params, robot, 2, 10, 101, facingY)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, clipped.Counts, test.ShouldResemble, bins.Counts)

		unclipped, err := DepthToBins(far, params, robot, math.Inf(1), 10, 101, facingY)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, unclipped.Counts, test.ShouldNotResemble, bins.Counts)
	})

	t.Run("no return", func(t *testing.T) {
		empty, err := DepthToBins(rimage.NewDisparityMap(8, 8), params, robot, 2, 10, 101, facingY)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, empty.ValidCount(), test.ShouldEqual, 0)
	})

	t.Run("centered on the robot", func(t *testing.T) {
		moved, err := DepthToBins(rimage.NewUniformDisparityMap(8, 8, 50), params, robot, math.Inf(1), 10, 101,
			spatialmath.NewPose3(7.5, 12, math.Pi/2))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, moved.ValidCount(), test.ShouldEqual, 64)
		test.That(t, moved.Counts, test.ShouldResemble, bins.Counts)

		// facing -x, the wall 2m ahead lands 20 cells left of the robot
		turned, err := DepthToBins(rimage.NewUniformDisparityMap(8, 8, 50), params, robot, math.Inf(1), 10, 101,
			spatialmath.NewPose3(7.5, 12, math.Pi))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, turned.ValidCount(), test.ShouldEqual, 64)
		test.That(t, sumBand(turned, 30, 30, 0, 100, 1), test.ShouldEqual, 16)
		test.That(t, sumBand(turned, 0, 100, 70, 70, 1), test.ShouldEqual, 0)
	})
}

func TestTopview(t *testing.T) {
	occupied := traversability.NewBitmap(10, 10)
	crops, err := Topview(occupied, []r2.Point{{X: 5, Y: 5}}, []float64{.3}, 4)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, crops, test.ShouldHaveLength, 1)
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			test.That(t, crops[0].At(r, c), test.ShouldEqual, 1)
		}
	}

	free := traversability.NewFilledBitmap(10, 10, true)
	free.Set(4, 5, false)
	crops, err = Topview(free, []r2.Point{{X: 2, Y: 5}, {X: 8, Y: 5}}, []float64{0, 0}, 3)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, crops[0].At(1, 0), test.ShouldEqual, 0)
	test.That(t, crops[0].At(1, 2), test.ShouldEqual, 1)
	// the second crop runs off the map
	test.That(t, crops[1].At(1, 0), test.ShouldEqual, 0)
	test.That(t, crops[1].At(1, 2), test.ShouldEqual, 1)
}

func TestProvider(t *testing.T) {
	ctx := context.Background()
	built := 0
	p := NewProvider(func(ctx context.Context, cfg *config.Config) (*Simulator, error) {
		built++
		return &Simulator{cfg: cfg}, nil
	})
	cfg := config.Default()
	a, err := p.Get(ctx, cfg)
	test.That(t, err, test.ShouldBeNil)
	same := config.Default()
	same.Robot.Radius = 30
	b, err := p.Get(ctx, same)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b, test.ShouldEqual, a)
	test.That(t, built, test.ShouldEqual, 1)

	other := config.Default()
	other.BuildingName = "area4"
	_, err = p.Get(ctx, other)
	test.That(t, errors.Is(err, ErrConfigMismatch), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "area4")

	test.That(t, p.Close(ctx), test.ShouldBeNil)
	c, err := p.Get(ctx, other)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c, test.ShouldNotEqual, a)
	test.That(t, built, test.ShouldEqual, 2)

	failing := NewProvider(func(ctx context.Context, cfg *config.Config) (*Simulator, error) {
		return nil, errors.New("no dataset")
	})
	_, err = failing.Get(ctx, cfg)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, failing.Close(ctx), test.ShouldBeNil)
}

func TestWithoutMeshes(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	dir := t.TempDir()
	store := traversability.NewStore(dir, logger)

	cfg := config.Default()
	cfg.LoadMeshes = false
	cfg.TraversibleDir = dir
	_, err := New(ctx, cfg, nil, nil, nil, logger)
	test.That(t, err, test.ShouldNotBeNil)

	sim, err := New(ctx, cfg, nil, nil, store, logger)
	test.That(t, err, test.ShouldBeNil)
	_, _, err = sim.TraversibleConfig(ctx)
	test.That(t, err, test.ShouldNotBeNil)

	base := traversability.NewFilledBitmap(20, 10, true)
	grid, err := traversability.NewGrid(traversability.Map{Width: 20, Height: 10, Resolution: 5}, base)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, store.Save(cfg.BuildingName, grid), test.ShouldBeNil)

	resolution, cached, err := sim.TraversibleConfig(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resolution, test.ShouldEqual, 5)
	test.That(t, cached.Equal(base), test.ShouldBeTrue)

	images, err := sim.RenderImages(ctx, []r2.Point{{X: 2, Y: 5}}, []float64{0}, 0, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, images.RGB, test.ShouldBeNil)
	test.That(t, images.Topviews, test.ShouldHaveLength, 1)
	rows, cols := images.Topviews[0].Dims()
	test.That(t, rows, test.ShouldEqual, 64)
	test.That(t, cols, test.ShouldEqual, 64)
	test.That(t, images.Topviews[0].At(31, 0), test.ShouldEqual, 0)
	test.That(t, images.Topviews[0].At(31, 63), test.ShouldEqual, 1)

	test.That(t, sim.AddHuman(ctx, spatialmath.NewPose3(1, 1, 0), .7, 1, 1, false), test.ShouldBeNil)
	_, ok := sim.Identity()
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, sim.HumanRadius(), test.ShouldEqual, traversability.DefaultHumanRadius)
	test.That(t, sim.HumanTraversible(), test.ShouldBeNil)
	test.That(t, sim.RemoveHuman(ctx), test.ShouldBeNil)
	_, err = sim.RenderDepth(ctx, nil, nil, 5, 10, spatialmath.Pose3{}, true)
	test.That(t, err, test.ShouldNotBeNil)

	rgb := config.Default()
	rgb.LoadMeshes = false
	rgb.TraversibleDir = dir
	rgb.Camera.Modalities = []config.Modality{config.ModalityRGB}
	rgb.Camera.Width = 8
	rgb.Camera.Height = 6
	rgb.Camera.ImResize = .5
	sim, err = New(ctx, rgb, nil, nil, store, logger)
	test.That(t, err, test.ShouldBeNil)
	images, err = sim.RenderImages(ctx, []r2.Point{{}, {}}, []float64{0, 1}, 0, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, images.RGB, test.ShouldHaveLength, 2)
	test.That(t, images.RGB[0].Bounds().Dx(), test.ShouldEqual, 4)
	test.That(t, images.RGB[0].Bounds().Dy(), test.ShouldEqual, 3)
	test.That(t, sim.Close(ctx), test.ShouldBeNil)
}

func TestNewErrors(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)

	invalid := config.Default()
	invalid.Camera.Modalities = []config.Modality{config.ModalityOccupancyGrid, config.ModalityRGB}
	_, err := New(ctx, invalid, nil, nil, nil, logger)
	test.That(t, errors.Is(err, config.ErrUnsupportedModality), test.ShouldBeTrue)

	cfg := config.Default()
	cfg.DatasetName = "nowhere"
	_, err = NewFromConfig(ctx, cfg, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unknown dataset")

	cfg = config.Default()
	cfg.Camera.Modalities = []config.Modality{config.ModalityRGB}
	_, err = New(ctx, cfg, nil, nil, nil, logger)
	test.That(t, err, test.ShouldNotBeNil)
}

// exampleConfig renders 64x64 color and disparity of area3 through a camera tilted 10 degrees down.
func exampleConfig(dir string) *config.Config {
	cfg := config.Default()
	cfg.DatasetName = DatasetSynthetic
	cfg.BuildingName = "area3"
	cfg.TraversibleDir = dir
	cfg.Camera.Modalities = []config.Modality{config.ModalityRGB, config.ModalityDisparity}
	cfg.Camera.FOVHorizontal = 75
	cfg.Camera.FOVVertical = 75
	cfg.Robot.CameraElevationDegree = -10
	return cfg
}

type exampleRun struct {
	identity  dataset.HumanIdentity
	base      *traversability.Bitmap
	rgb       []uint8
	disparity []float64
	noHuman   []float64
	bins      []int
	noHumanB  []int
	radius    float64
	meshName  string
}

var (
	cameraPose = spatialmath.NewPose3(7.5, 12., -1.3)
	humanPose  = spatialmath.NewPose3(8., 9.75, math.Pi/2)
)

func runExample(t *testing.T, dir string) exampleRun {
	t.Helper()
	ctx := context.Background()
	sim, err := NewFromConfig(ctx, exampleConfig(dir), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, sim.Close(ctx), test.ShouldBeNil)
	}()

	resolution, base, err := sim.TraversibleConfig(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resolution, test.ShouldEqual, 5)
	dx := resolution / 100.

	test.That(t, sim.AddHuman(ctx, humanPose, .7, 48, 20, false), test.ShouldBeNil)
	err = sim.AddHuman(ctx, humanPose, .7, 48, 20, false)
	test.That(t, errors.Is(err, scene.ErrHumanAlreadyLoaded), test.ShouldBeTrue)

	starts := []r2.Point{{X: cameraPose.X / dx, Y: cameraPose.Y / dx}}
	thetas := []float64{cameraPose.Theta}
	images, err := sim.RenderImages(ctx, starts, thetas, 0, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, images.RGB, test.ShouldHaveLength, 1)
	test.That(t, images.RGB[0].Bounds().Dx(), test.ShouldEqual, 64)

	withHuman, err := sim.RenderDepth(ctx, starts, thetas, 10, 101, cameraPose, true)
	test.That(t, err, test.ShouldBeNil)
	withoutHuman, err := sim.RenderDepth(ctx, starts, thetas, 10, 101, cameraPose, false)
	test.That(t, err, test.ShouldBeNil)

	identity, ok := sim.Identity()
	test.That(t, ok, test.ShouldBeTrue)
	info, ok := sim.HumanMeshInfo()
	test.That(t, ok, test.ShouldBeTrue)
	return exampleRun{
		identity:  identity,
		base:      base,
		rgb:       images.RGB[0].Pix,
		disparity: withHuman.Disparity[0].Data(),
		noHuman:   withoutHuman.Disparity[0].Data(),
		bins:      withHuman.Bins[0].Counts,
		noHumanB:  withoutHuman.Bins[0].Counts,
		radius:    sim.HumanRadius(),
		meshName:  info.Name,
	}
}

func TestEndToEnd(t *testing.T) {
	dir := t.TempDir()
	first := runExample(t, dir)
	second := runExample(t, dir)

	t.Run("deterministic", func(t *testing.T) {
		test.That(t, second.identity, test.ShouldResemble, first.identity)
		test.That(t, second.base.Equal(first.base), test.ShouldBeTrue)
		test.That(t, second.rgb, test.ShouldResemble, first.rgb)
		test.That(t, second.disparity, test.ShouldResemble, first.disparity)
		test.That(t, second.bins, test.ShouldResemble, first.bins)
		test.That(t, second.meshName, test.ShouldEqual, "synthetic_20")
	})

	t.Run("identity", func(t *testing.T) {
		want, err := dataset.NewSynthetic(config.Default().Surreal, logging.NewTestLogger(t)).SampleHumanIdentity(48)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, first.identity, test.ShouldResemble, want)
		test.That(t, first.radius, test.ShouldBeGreaterThan, .2)
		test.That(t, first.radius, test.ShouldBeLessThan, traversability.DefaultHumanRadius)
	})

	t.Run("human in view", func(t *testing.T) {
		closer := 0
		for i, d := range first.disparity {
			test.That(t, d, test.ShouldBeGreaterThanOrEqualTo, first.noHuman[i])
			if d > first.noHuman[i] {
				closer++
			}
		}
		test.That(t, closer, test.ShouldBeGreaterThan, 20)
	})

	t.Run("human in bins", func(t *testing.T) {
		withHuman := &binsView{counts: first.bins}
		withoutHuman := &binsView{counts: first.noHumanB}
		// the human stands 50cm along +x and 225cm along -y of the robot, cell (55, 28) of a 101
		// cell map at 10cm centered on the robot
		test.That(t, sumBand(withHuman, 50, 60, 22, 32, 1), test.ShouldBeGreaterThan, 0)
		test.That(t, sumBand(withoutHuman, 50, 60, 22, 32, 1), test.ShouldEqual, 0)
	})
}

type binsView struct {
	counts []int
}

func (b *binsView) Count(x, y, band int) int {
	return b.counts[((y*101)+x)*3+band]
}
