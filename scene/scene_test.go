package scene_test

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/humanav/config"
	"go.viam.com/humanav/dataset"
	"go.viam.com/humanav/logging"
	"go.viam.com/humanav/rimage"
	"go.viam.com/humanav/scene"
	"go.viam.com/humanav/spatialmath"
	"go.viam.com/humanav/testutils/inject"
	"go.viam.com/humanav/traversability"
)

type loadCall struct {
	shapes []*dataset.Shape
	opts   scene.LoadOptions
}

// fakeBackend records uploads and hands out sequential ids.
func fakeBackend() (*inject.Backend, *[]loadCall) {
	var calls []loadCall
	next := 0
	b := &inject.Backend{}
	b.LoadShapesFunc = func(ctx context.Context, shapes []*dataset.Shape, opts scene.LoadOptions) ([]scene.EntityID, error) {
		calls = append(calls, loadCall{shapes: shapes, opts: opts})
		ids := make([]scene.EntityID, 0, len(shapes))
		for range shapes {
			ids = append(ids, scene.EntityID(fmt.Sprintf("entity_%d", next)))
			next++
		}
		return ids, nil
	}
	b.RemoveHumanFunc = func(ctx context.Context) error {
		return nil
	}
	b.SetEntityVisibleFunc = func(ctx context.Context, ids []scene.EntityID, visible bool) error {
		return nil
	}
	return b, &calls
}

func testBuildingConfig() scene.BuildingConfig {
	cfg := config.Default()
	cfg.Env.Resolution = 10
	return scene.BuildingConfig{
		Robot:                   cfg.Robot,
		Env:                     cfg.Env,
		RestrictToLargestCC:     true,
		ComputeHumanTraversible: true,
	}
}

func newTestBuilding(t *testing.T, cfg scene.BuildingConfig) (*scene.Building, *dataset.Synthetic) {
	t.Helper()
	logger := logging.NewTestLogger(t)
	loader := dataset.NewSynthetic(config.Default().Surreal, logger)
	b, err := scene.NewBuilding(context.Background(), loader, "area3", cfg, logger)
	test.That(t, err, test.ShouldBeNil)
	return b, loader
}

func TestCacheName(t *testing.T) {
	test.That(t, scene.CacheName("area3", false), test.ShouldEqual, "area3")
	test.That(t, scene.CacheName("area3", true), test.ShouldEqual, "area3_flipped")
}

func TestLoadIntoScene(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBuilding(t, testBuildingConfig())
	test.That(t, b.Name(), test.ShouldEqual, "area3")
	test.That(t, b.LoadIntoScene(ctx), test.ShouldNotBeNil)

	backend, calls := fakeBackend()
	b.SetBackend(backend)
	test.That(t, b.LoadIntoScene(ctx), test.ShouldBeNil)
	test.That(t, *calls, test.ShouldHaveLength, 1)
	test.That(t, (*calls)[0].opts.Category, test.ShouldEqual, scene.CategoryStatic)

	entities := b.Entities()
	test.That(t, entities, test.ShouldHaveLength, len((*calls)[0].shapes))
	for _, e := range entities {
		test.That(t, e.Category, test.ShouldEqual, scene.CategoryStatic)
	}

	err := b.LoadIntoScene(ctx)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "already in the scene")
}

func TestNewBuildingErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)
	loader := &inject.Loader{
		LoadBuildingFunc: func(ctx context.Context, name string) (dataset.BuildingPaths, error) {
			return dataset.BuildingPaths{}, errors.New("no such building")
		},
	}
	_, err := scene.NewBuilding(context.Background(), loader, "nowhere", testBuildingConfig(), logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no such building")

	loader.LoadBuildingFunc = func(ctx context.Context, name string) (dataset.BuildingPaths, error) {
		return dataset.BuildingPaths{Name: name}, nil
	}
	loader.LoadBuildingMeshesFunc = func(ctx context.Context, paths dataset.BuildingPaths) ([]*dataset.Shape, error) {
		return nil, nil
	}
	_, err = scene.NewBuilding(context.Background(), loader, "empty", testBuildingConfig(), logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "has no meshes")
}

func TestBuildingCache(t *testing.T) {
	logger := logging.NewTestLogger(t)
	store := traversability.NewStore(t.TempDir(), logger)
	cfg := testBuildingConfig()
	cfg.Store = store
	cfg.LoadFromCache = true

	first, _ := newTestBuilding(t, cfg)
	cached, err := store.Load(scene.CacheName("area3", false))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cached.Base().Equal(first.Grid().Base()), test.ShouldBeTrue)

	second, _ := newTestBuilding(t, cfg)
	test.That(t, second.Grid().Base().Equal(first.Grid().Base()), test.ShouldBeTrue)

	cfg.Flip = true
	flipped, _ := newTestBuilding(t, cfg)
	_, err = store.Load(scene.CacheName("area3", true))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, flipped.Grid().Map().Origin.X, test.ShouldBeLessThan, 0)
	test.That(t, flipped.Grid().Map().Origin.X, test.ShouldNotEqual, first.Grid().Map().Origin.X)
}

func TestLoadHuman(t *testing.T) {
	ctx := context.Background()
	b, loader := newTestBuilding(t, testBuildingConfig())
	backend, calls := fakeBackend()
	b.SetBackend(backend)
	test.That(t, b.LoadIntoScene(ctx), test.ShouldBeNil)

	identity, err := loader.SampleHumanIdentity(48)
	test.That(t, err, test.ShouldBeNil)
	pose := spatialmath.NewPose3(8, 9.75, math.Pi/2)

	test.That(t, b.HumanLoaded(), test.ShouldBeFalse)
	test.That(t, b.HumanRadius(), test.ShouldEqual, traversability.DefaultHumanRadius)
	test.That(t, b.LoadHuman(ctx, loader, pose, .7, identity, 20), test.ShouldBeNil)
	test.That(t, b.HumanLoaded(), test.ShouldBeTrue)

	t.Run("upload", func(t *testing.T) {
		test.That(t, *calls, test.ShouldHaveLength, 2)
		test.That(t, (*calls)[1].opts.Category, test.ShouldEqual, scene.CategoryHuman)
		humans := 0
		for _, e := range b.Entities() {
			if e.Category == scene.CategoryHuman {
				humans++
			}
		}
		test.That(t, humans, test.ShouldEqual, 1)
	})

	t.Run("canonical pose", func(t *testing.T) {
		ego := b.HumanEgoVertices()
		lo, hi := spatialmath.VectorBounds(ego)
		test.That(t, lo.Z, test.ShouldAlmostEqual, 0, 1e-9)
		test.That(t, lo.Y, test.ShouldAlmostEqual, -.28, 1e-9)
		test.That(t, hi.Y, test.ShouldAlmostEqual, .28, 1e-9)

		worldPose := spatialmath.MapToVertexFrame(pose, b.Grid().Map().Origin)
		spatialmath.ToWorld(ego, worldPose)
		uploaded := (*calls)[1].shapes[0].Mesh.Vertices()
		test.That(t, uploaded, test.ShouldHaveLength, len(ego))
		for i := range ego {
			test.That(t, uploaded[i].Sub(ego[i]).Norm(), test.ShouldBeLessThan, 1e-9)
		}
	})

	t.Run("accessors", func(t *testing.T) {
		got, ok := b.HumanPose()
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, got, test.ShouldResemble, pose)
		gotIdentity, ok := b.HumanIdentity()
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, gotIdentity, test.ShouldResemble, identity)
		info, ok := b.HumanMeshInfo()
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, info.Name, test.ShouldEqual, "synthetic_20")
		test.That(t, b.HumanRadius(), test.ShouldBeGreaterThan, .2)
		test.That(t, b.HumanRadius(), test.ShouldBeLessThan, .6)
	})

	t.Run("footprint", func(t *testing.T) {
		grid := b.Grid()
		test.That(t, grid.HumanLoaded(), test.ShouldBeTrue)
		test.That(t, grid.Current().Count(), test.ShouldBeLessThan, grid.Base().Count())
		m := grid.Map()
		x, y, ok := m.Cell(pose.X*100+m.Origin.X, pose.Y*100+m.Origin.Y)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, grid.Base().Get(x, y), test.ShouldBeTrue)
		test.That(t, grid.Current().Get(x, y), test.ShouldBeFalse)
	})

	t.Run("second human", func(t *testing.T) {
		err := b.LoadHuman(ctx, loader, pose, .7, identity, 21)
		test.That(t, errors.Is(err, scene.ErrHumanAlreadyLoaded), test.ShouldBeTrue)
	})

	t.Run("move", func(t *testing.T) {
		moved := spatialmath.NewPose3(6, 12, 0)
		test.That(t, b.MoveHuman(ctx, loader, moved, .5, 3), test.ShouldBeNil)
		got, _ := b.HumanPose()
		test.That(t, got, test.ShouldResemble, moved)
		gotIdentity, _ := b.HumanIdentity()
		test.That(t, gotIdentity, test.ShouldResemble, identity)
		info, _ := b.HumanMeshInfo()
		test.That(t, info.Name, test.ShouldEqual, "synthetic_3")
	})

	t.Run("remove", func(t *testing.T) {
		test.That(t, b.RemoveHuman(ctx), test.ShouldBeNil)
		test.That(t, b.HumanLoaded(), test.ShouldBeFalse)
		test.That(t, b.HumanEgoVertices(), test.ShouldBeNil)
		test.That(t, b.Grid().HumanLoaded(), test.ShouldBeFalse)
		test.That(t, b.Grid().Current().Equal(b.Grid().Base()), test.ShouldBeTrue)
		for _, e := range b.Entities() {
			test.That(t, e.Category, test.ShouldEqual, scene.CategoryStatic)
		}
		test.That(t, b.RemoveHuman(ctx), test.ShouldBeNil)
		err := b.MoveHuman(ctx, loader, pose, .7, 20)
		test.That(t, errors.Is(err, scene.ErrNoHuman), test.ShouldBeTrue)
	})
}

func TestLoadHumanWithoutTraversible(t *testing.T) {
	ctx := context.Background()
	cfg := testBuildingConfig()
	cfg.ComputeHumanTraversible = false
	b, loader := newTestBuilding(t, cfg)

	identity, err := loader.SampleHumanIdentity(1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.LoadHuman(ctx, loader, spatialmath.NewPose3(8, 9.75, 0), .7, identity, 1), test.ShouldBeNil)
	test.That(t, b.HumanLoaded(), test.ShouldBeTrue)
	test.That(t, b.Grid().HumanLoaded(), test.ShouldBeFalse)
	test.That(t, b.Grid().Current().Equal(b.Grid().Base()), test.ShouldBeTrue)
	test.That(t, b.Entities(), test.ShouldBeEmpty)
}

func TestLoadHumanBackendFailure(t *testing.T) {
	ctx := context.Background()
	b, loader := newTestBuilding(t, testBuildingConfig())
	backend, _ := fakeBackend()
	loadStatic := backend.LoadShapesFunc
	backend.LoadShapesFunc = func(ctx context.Context, shapes []*dataset.Shape, opts scene.LoadOptions) ([]scene.EntityID, error) {
		if opts.Category == scene.CategoryHuman {
			return nil, errors.New("out of memory")
		}
		return loadStatic(ctx, shapes, opts)
	}
	b.SetBackend(backend)
	test.That(t, b.LoadIntoScene(ctx), test.ShouldBeNil)

	identity, err := loader.SampleHumanIdentity(2)
	test.That(t, err, test.ShouldBeNil)
	err = b.LoadHuman(ctx, loader, spatialmath.NewPose3(8, 9.75, 0), .7, identity, 2)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "out of memory")
	test.That(t, b.HumanLoaded(), test.ShouldBeFalse)
	test.That(t, b.Grid().HumanLoaded(), test.ShouldBeFalse)
	test.That(t, b.Grid().Current().Equal(b.Grid().Base()), test.ShouldBeTrue)
}

func TestResolveCamera(t *testing.T) {
	robot := config.Default().Robot
	m := traversability.Map{Origin: r2.Point{X: -20, Y: -20}, Resolution: 5}

	pose := scene.ResolveCamera(spatialmath.NewPose3(10, 20, 0), scene.Perturbation{}, 0, robot, m)
	test.That(t, pose.Position.X, test.ShouldAlmostEqual, .3)
	test.That(t, pose.Position.Y, test.ShouldAlmostEqual, .8)
	test.That(t, pose.Position.Z, test.ShouldAlmostEqual, .8)
	test.That(t, pose.LookAt.X, test.ShouldAlmostEqual, 2.3)
	test.That(t, pose.LookAt.Y, test.ShouldAlmostEqual, .8)
	test.That(t, pose.LookAt.Z, test.ShouldAlmostEqual, -1.2)
	test.That(t, pose.Up, test.ShouldResemble, r3.Vector{Z: 1})

	robot.DeltaTheta = math.Pi / 2
	pose = scene.ResolveCamera(spatialmath.NewPose3(10, 20, 1), scene.Perturbation{DX: 2, DY: -4}, 0, robot, m)
	test.That(t, pose.Position.X, test.ShouldAlmostEqual, .4)
	test.That(t, pose.Position.Y, test.ShouldAlmostEqual, .6)
	test.That(t, pose.LookAt.X, test.ShouldAlmostEqual, .4)
	test.That(t, pose.LookAt.Y, test.ShouldAlmostEqual, 2.6)

	// dtheta and the auxiliary offset add to the node heading
	a := scene.ResolveCamera(spatialmath.NewPose3(0, 0, 0), scene.Perturbation{DTheta: .5}, .5, robot, m)
	b := scene.ResolveCamera(spatialmath.NewPose3(0, 0, 1), scene.Perturbation{}, 0, robot, m)
	test.That(t, a.LookAt.Sub(b.LookAt).Norm(), test.ShouldBeLessThan, 1e-9)
}

func twoPixelFrame() *rimage.Frame {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{B: 255, A: 255})
	return &rimage.Frame{RGB: img}
}

func TestRenderNodes(t *testing.T) {
	ctx := context.Background()
	b, loader := newTestBuilding(t, testBuildingConfig())

	_, err := b.RenderNodes(ctx, []spatialmath.Pose3{{}}, config.ModalityRGB, nil, 0, false)
	test.That(t, err, test.ShouldNotBeNil)

	backend, _ := fakeBackend()
	var events []string
	backend.SetEntityVisibleFunc = func(ctx context.Context, ids []scene.EntityID, visible bool) error {
		events = append(events, fmt.Sprintf("visible %d %v", len(ids), visible))
		return nil
	}
	var positions []r3.Vector
	backend.PositionCameraFunc = func(ctx context.Context, position, lookAt, up r3.Vector) error {
		events = append(events, "position")
		positions = append(positions, position)
		return nil
	}
	backend.RenderFunc = func(ctx context.Context, modality config.Modality) (*rimage.Frame, error) {
		events = append(events, "render "+string(modality))
		return twoPixelFrame(), nil
	}
	b.SetBackend(backend)
	test.That(t, b.LoadIntoScene(ctx), test.ShouldBeNil)
	static := len(b.Entities())

	identity, err := loader.SampleHumanIdentity(48)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.LoadHuman(ctx, loader, spatialmath.NewPose3(8, 9.75, math.Pi/2), .7, identity, 20), test.ShouldBeNil)

	nodes := []spatialmath.Pose3{spatialmath.NewPose3(40, 60, 0), spatialmath.NewPose3(50, 60, 2)}
	perturbs := []scene.Perturbation{{}, {DX: 1, Flip: true}}
	frames, err := b.RenderNodes(ctx, nodes, config.ModalityRGB, perturbs, 0, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frames, test.ShouldHaveLength, 2)
	test.That(t, events, test.ShouldResemble, []string{
		fmt.Sprintf("visible %d true", static+1),
		"visible 1 false",
		"position", "render rgb",
		"position", "render rgb",
		fmt.Sprintf("visible %d false", static+1),
	})

	test.That(t, frames[0].RGB.NRGBAAt(0, 0), test.ShouldResemble, color.NRGBA{R: 255, A: 255})
	test.That(t, frames[1].RGB.NRGBAAt(0, 0), test.ShouldResemble, color.NRGBA{B: 255, A: 255})
	m := b.Grid().Map()
	test.That(t, positions[1].X, test.ShouldAlmostEqual, (51*m.Resolution+m.Origin.X)/100)

	t.Run("perturbation count", func(t *testing.T) {
		events = nil
		_, err := b.RenderNodes(ctx, nodes, config.ModalityRGB, perturbs[:1], 0, true)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, events, test.ShouldBeEmpty)
	})

	t.Run("render failure hides the building", func(t *testing.T) {
		events = nil
		backend.RenderFunc = func(ctx context.Context, modality config.Modality) (*rimage.Frame, error) {
			return nil, errors.New("device lost")
		}
		frames, err := b.RenderNodes(ctx, nodes, config.ModalityDisparity, nil, 0, true)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "device lost")
		test.That(t, frames, test.ShouldBeNil)
		test.That(t, events[len(events)-1], test.ShouldEqual, fmt.Sprintf("visible %d false", static+1))
	})
}
