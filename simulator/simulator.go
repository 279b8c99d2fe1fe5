// Package simulator renders what a robot standing in a building populated by at most one human
// sees: color and disparity images through a scene backend, and top-down occupancy crops of the
// traversability grid.
package simulator

import (
	"context"
	"image"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/humanav/config"
	"go.viam.com/humanav/dataset"
	"go.viam.com/humanav/logging"
	"go.viam.com/humanav/render/software"
	"go.viam.com/humanav/scene"
	"go.viam.com/humanav/spatialmath"
	"go.viam.com/humanav/traversability"
)

// Dataset names understood by NewFromConfig.
const (
	DatasetSBPD      = "sbpd"
	DatasetSynthetic = "synthetic"
)

// Simulator is one loaded building, its traversability grid and the scene backend rendering it.
// It is not safe for concurrent use.
type Simulator struct {
	cfg     *config.Config
	logger  logging.Logger
	loader  dataset.Loader
	backend scene.Backend
	store   *traversability.Store

	// building is nil when meshes are not loaded
	building *scene.Building
	identity *dataset.HumanIdentity
}

// New loads the building named in cfg through loader. backend is required when cfg asks for rgb
// or disparity and ignored otherwise; store, when set, caches the traversible of the building and
// is required when meshes are not loaded.
func New(
	ctx context.Context,
	cfg *config.Config,
	loader dataset.Loader,
	backend scene.Backend,
	store *traversability.Store,
	logger logging.Logger,
) (*Simulator, error) {
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	s := &Simulator{
		cfg:    cfg,
		logger: logger,
		loader: loader,
		store:  store,
	}
	if !cfg.LoadMeshes {
		if store == nil {
			return nil, errors.New("a traversible store is required when meshes are not loaded")
		}
		logger.Infow("meshes not loaded, serving the cached traversible only", "building", cfg.BuildingName)
		return s, nil
	}
	if loader == nil {
		return nil, errors.New("a dataset loader is required to load meshes")
	}

	building, err := scene.NewBuilding(ctx, loader, cfg.BuildingName, scene.BuildingConfig{
		Robot:                   cfg.Robot,
		Env:                     cfg.Env,
		Flip:                    cfg.Flip,
		RestrictToLargestCC:     cfg.RestrictToLargestCC,
		ComputeHumanTraversible: cfg.Surreal.ComputeHumanTraversible,
		Dedup:                   true,
		GrayHumans:              cfg.Surreal.RenderHumansInGrayOnly,
		Store:                   store,
		LoadFromCache:           cfg.LoadTraversibleFromCache,
	}, logger.Sublogger("scene"))
	if err != nil {
		return nil, err
	}
	s.building = building

	if cfg.Camera.RendersImages() {
		if backend == nil {
			return nil, errors.New("a scene backend is required to render rgb or disparity")
		}
		s.backend = backend
		building.SetBackend(backend)
		if err := building.LoadIntoScene(ctx); err != nil {
			return nil, err
		}
	}
	logger.Infow("simulator ready", "key", cfg.Key())
	return s, nil
}

// NewFromConfig builds a simulator with the loader named by cfg.DatasetName, the software backend
// and a traversible store under cfg.TraversibleDir.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Simulator, error) {
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	var loader dataset.Loader
	switch cfg.DatasetName {
	case DatasetSBPD:
		loader = dataset.NewSBPD(cfg.DataDir, cfg.Surreal, logger.Sublogger("dataset"))
	case DatasetSynthetic:
		loader = dataset.NewSynthetic(cfg.Surreal, logger.Sublogger("dataset"))
	default:
		return nil, errors.Errorf("unknown dataset %q", cfg.DatasetName)
	}

	var store *traversability.Store
	if cfg.TraversibleDir != "" {
		store = traversability.NewStore(cfg.TraversibleDir, logger.Sublogger("store"))
	}

	var backend scene.Backend
	if cfg.LoadMeshes && cfg.Camera.RendersImages() {
		sw, err := software.NewBackend(software.ConfigFromCamera(cfg.Camera), logger.Sublogger("render"))
		if err != nil {
			return nil, err
		}
		backend = sw
	}
	s, err := New(ctx, cfg, loader, backend, store, logger)
	if err != nil {
		if backend != nil {
			return nil, multierr.Combine(err, backend.Close(ctx))
		}
		return nil, err
	}
	return s, nil
}

// Config returns the configuration the simulator was built with.
func (s *Simulator) Config() *config.Config {
	return s.cfg
}

// Building returns the loaded building, or nil when meshes are not loaded.
func (s *Simulator) Building() *scene.Building {
	return s.building
}

// Images is what RenderImages produced: RGB images for rgb configs, or topviews for occupancy grid
// configs, with 1 marking occupied cells.
type Images struct {
	RGB      []*image.NRGBA
	Topviews []*mat.Dense
}

// RenderImages renders one image per (start, theta) pair. starts are in grid cells, thetas in
// radians. cropSize sizes topviews and defaults to the camera width when zero. Configs rendering
// disparity only produce no images.
func (s *Simulator) RenderImages(
	ctx context.Context,
	starts []r2.Point,
	thetas []float64,
	cropSize int,
	humanVisible bool,
) (*Images, error) {
	if len(starts) != len(thetas) {
		return nil, errors.Errorf("got %d starts and %d headings", len(starts), len(thetas))
	}
	camera := s.cfg.Camera
	switch {
	case camera.Has(config.ModalityOccupancyGrid):
		if cropSize == 0 {
			cropSize = camera.Width
		}
		traversible, err := s.traversible()
		if err != nil {
			return nil, err
		}
		topviews, err := Topview(traversible, starts, thetas, cropSize)
		if err != nil {
			return nil, err
		}
		return &Images{Topviews: topviews}, nil
	case camera.Has(config.ModalityRGB):
		rgb, err := s.renderRGB(ctx, starts, thetas, humanVisible)
		if err != nil {
			return nil, err
		}
		return &Images{RGB: rgb}, nil
	default:
		return &Images{}, nil
	}
}

// nodes turns grid starts and headings into render nodes, whose heading is in delta theta units.
func (s *Simulator) nodes(starts []r2.Point, thetas []float64) []spatialmath.Pose3 {
	nodes := make([]spatialmath.Pose3, len(starts))
	for i, start := range starts {
		nodes[i] = spatialmath.NewPose3(start.X, start.Y, thetas[i]/s.cfg.Robot.DeltaTheta)
	}
	return nodes
}

func (s *Simulator) renderRGB(ctx context.Context, starts []r2.Point, thetas []float64, humanVisible bool) ([]*image.NRGBA, error) {
	camera := s.cfg.Camera
	if s.building == nil {
		width := int(float64(camera.Width) * camera.ImResize)
		height := int(float64(camera.Height) * camera.ImResize)
		out := make([]*image.NRGBA, len(starts))
		for i := range out {
			out[i] = image.NewNRGBA(image.Rect(0, 0, width, height))
		}
		return out, nil
	}
	frames, err := s.building.RenderNodes(ctx, s.nodes(starts, thetas), config.ModalityRGB, nil, 0, humanVisible)
	if err != nil {
		return nil, err
	}
	out := make([]*image.NRGBA, len(frames))
	for i, frame := range frames {
		out[i] = frame.ResizeRGB(camera.ImResize).RGB
	}
	return out, nil
}

// traversible returns the current layer of the grid, or the cached base layer when meshes are not
// loaded.
func (s *Simulator) traversible() (*traversability.Bitmap, error) {
	if s.building != nil {
		return s.building.Grid().Current(), nil
	}
	grid, err := s.loadCachedGrid()
	if err != nil {
		return nil, err
	}
	return grid.Current(), nil
}

func (s *Simulator) loadCachedGrid() (*traversability.Grid, error) {
	grid, err := s.store.Load(scene.CacheName(s.cfg.BuildingName, s.cfg.Flip))
	if err != nil {
		return nil, errors.Wrap(err, "meshes are not loaded and no traversible is cached")
	}
	return grid, nil
}

// TraversibleConfig returns the resolution in centimeters per cell and the base traversible of the
// building. When meshes are not loaded both come from the cache.
func (s *Simulator) TraversibleConfig(ctx context.Context) (float64, *traversability.Bitmap, error) {
	if s.building != nil {
		resolution, base := s.building.Grid().Config()
		return resolution, base, nil
	}
	grid, err := s.loadCachedGrid()
	if err != nil {
		return 0, nil, err
	}
	resolution, base := grid.Config()
	return resolution, base, nil
}

// HumanTraversible returns the traversible including the footprint of the loaded human, or nil
// when meshes are not loaded.
func (s *Simulator) HumanTraversible() *traversability.Bitmap {
	if s.building == nil {
		return nil
	}
	return s.building.Grid().Current()
}

// AddHuman samples a human identity from identitySeed and, unless onlySampleIdentity is set, loads
// a mesh of it chosen by meshSeed at pose (meters from the map origin) walking at speed. It is a
// no-op when meshes are not loaded.
func (s *Simulator) AddHuman(
	ctx context.Context,
	pose spatialmath.Pose3,
	speed float64,
	identitySeed, meshSeed int64,
	onlySampleIdentity bool,
) error {
	if s.building == nil {
		return nil
	}
	if s.building.HumanLoaded() {
		return scene.ErrHumanAlreadyLoaded
	}
	identity, err := s.loader.SampleHumanIdentity(identitySeed)
	if err != nil {
		return errors.Wrap(err, "cannot sample human identity")
	}
	s.identity = &identity
	if onlySampleIdentity {
		return nil
	}
	return s.building.LoadHuman(ctx, s.loader, pose, speed, identity, meshSeed)
}

// RemoveHuman removes the loaded human, if any.
func (s *Simulator) RemoveHuman(ctx context.Context) error {
	if s.building == nil {
		return nil
	}
	return s.building.RemoveHuman(ctx)
}

// MoveHuman reloads the human with the same identity at pose.
func (s *Simulator) MoveHuman(ctx context.Context, pose spatialmath.Pose3, speed float64, meshSeed int64) error {
	if s.building == nil {
		return nil
	}
	return s.building.MoveHuman(ctx, s.loader, pose, speed, meshSeed)
}

// HumanRadius returns the xy radius in meters of the loaded human, or the default radius.
func (s *Simulator) HumanRadius() float64 {
	if s.building == nil {
		return traversability.DefaultHumanRadius
	}
	return s.building.HumanRadius()
}

// HumanMeshInfo returns the metadata of the loaded human mesh.
func (s *Simulator) HumanMeshInfo() (dataset.MeshInfo, bool) {
	if s.building == nil {
		return dataset.MeshInfo{}, false
	}
	return s.building.HumanMeshInfo()
}

// Identity returns the last sampled human identity.
func (s *Simulator) Identity() (dataset.HumanIdentity, bool) {
	if s.identity == nil {
		return dataset.HumanIdentity{}, false
	}
	return *s.identity, true
}

// Close removes the human and releases the backend.
func (s *Simulator) Close(ctx context.Context) error {
	var err error
	if s.building != nil {
		err = multierr.Combine(err, s.building.RemoveHuman(ctx))
	}
	if s.backend != nil {
		err = multierr.Combine(err, s.backend.Close(ctx))
	}
	return err
}
