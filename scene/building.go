package scene

import (
	"context"
	"os"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/humanav/config"
	"go.viam.com/humanav/dataset"
	"go.viam.com/humanav/logging"
	"go.viam.com/humanav/spatialmath"
	"go.viam.com/humanav/traversability"
)

// BuildingConfig configures how a building is loaded and rasterized.
type BuildingConfig struct {
	Robot                   config.RobotConfig
	Env                     config.EnvConfig
	Flip                    bool
	RestrictToLargestCC     bool
	ComputeHumanTraversible bool
	AllowRepeatHumans       bool
	Dedup                   bool
	GrayHumans              bool

	// Store, when set, caches the base traversible of the building.
	Store *traversability.Store
	// LoadFromCache prefers a cached traversible over rasterizing the meshes.
	LoadFromCache bool
}

// Building is the scene graph of one building: its static shapes, the entities resident in the
// backend, the traversability grid and the state of the one human that may be in it.
type Building struct {
	name   string
	cfg    BuildingConfig
	logger logging.Logger

	backend  Backend
	shapes   []*dataset.Shape
	registry registry
	raster   *traversability.Rasterizer
	grid     *traversability.Grid

	human *humanState
}

// CacheName returns the key the traversible of a building is cached under.
func CacheName(name string, flip bool) string {
	if flip {
		return name + "_flipped"
	}
	return name
}

// NewBuilding loads the meshes of building name through loader and derives its traversability grid.
func NewBuilding(
	ctx context.Context,
	loader dataset.Loader,
	name string,
	cfg BuildingConfig,
	logger logging.Logger,
) (*Building, error) {
	paths, err := loader.LoadBuilding(ctx, name)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot load building %q", name)
	}
	shapes, err := loader.LoadBuildingMeshes(ctx, paths)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot load meshes of building %q", name)
	}
	if len(shapes) == 0 {
		return nil, errors.Errorf("building %q has no meshes", name)
	}

	var vertices []r3.Vector
	meshes := make([]*spatialmath.Mesh, 0, len(shapes))
	for _, shape := range shapes {
		if cfg.Flip {
			shape.Mesh.FlipX()
		}
		vertices = append(vertices, shape.Mesh.Vertices()...)
		meshes = append(meshes, shape.Mesh)
	}
	m, err := traversability.MakeMap(vertices, cfg.Env.Resolution, cfg.Env.Padding)
	if err != nil {
		return nil, err
	}
	raster, err := traversability.NewRasterizer(m, traversability.RasterConfig{
		RobotBase:         cfg.Robot.Base,
		RobotHeight:       cfg.Robot.Height,
		RobotRadius:       cfg.Robot.Radius,
		ValidMin:          cfg.Env.ValidMin,
		ValidMax:          cfg.Env.ValidMax,
		NumPointThreshold: cfg.Env.NumPointThreshold,
		SamplesPerFace:    cfg.Env.NSamplesPerFace,
	}, logger)
	if err != nil {
		return nil, err
	}

	b := &Building{
		name:   name,
		cfg:    cfg,
		logger: logger,
		shapes: shapes,
		raster: raster,
	}
	if b.grid, err = b.loadGrid(meshes); err != nil {
		return nil, err
	}
	return b, nil
}

// loadGrid reads the cached traversible if asked to and it matches the map, otherwise rasterizes
// the meshes and caches the result when nothing was cached yet.
func (b *Building) loadGrid(meshes []*spatialmath.Mesh) (*traversability.Grid, error) {
	cacheName := CacheName(b.name, b.cfg.Flip)
	cached := false
	if b.cfg.Store != nil {
		grid, err := b.cfg.Store.Load(cacheName)
		switch {
		case err == nil && grid.Map() == b.raster.Map():
			if b.cfg.LoadFromCache {
				return grid, nil
			}
			cached = true
		case err == nil:
			b.logger.Warnw("cached traversible does not match the building, rebuilding", "building", cacheName)
		case !errors.Is(err, os.ErrNotExist):
			b.logger.Warnw("cannot read cached traversible, rebuilding", "building", cacheName, "error", err)
		}
	}

	start := time.Now()
	grid, err := traversability.BuildGrid(b.raster, meshes, b.cfg.RestrictToLargestCC)
	if err != nil {
		return nil, err
	}
	b.logger.Infow("computed traversible", "building", b.name, "took", time.Since(start))
	if b.cfg.Store != nil && !cached {
		if err := b.cfg.Store.Save(cacheName, grid); err != nil {
			b.logger.Warnw("cannot cache traversible", "building", cacheName, "error", err)
		}
	}
	return grid, nil
}

// Name returns the building name.
func (b *Building) Name() string {
	return b.name
}

// Grid returns the traversability grid.
func (b *Building) Grid() *traversability.Grid {
	return b.grid
}

// Robot returns the robot the building was rasterized for.
func (b *Building) Robot() config.RobotConfig {
	return b.cfg.Robot
}

// SetBackend attaches the backend shapes are uploaded to.
func (b *Building) SetBackend(backend Backend) {
	b.backend = backend
}

// Entities returns every entity resident in the backend.
func (b *Building) Entities() []Entity {
	out := make([]Entity, len(b.registry.entities))
	copy(out, b.registry.entities)
	return out
}

// LoadIntoScene uploads the static shapes to the backend and drops them; the backend owns them
// from then on.
func (b *Building) LoadIntoScene(ctx context.Context) error {
	if b.backend == nil {
		return errors.New("no backend attached")
	}
	if b.shapes == nil {
		return errors.Errorf("building %q is already in the scene", b.name)
	}
	ids, err := b.backend.LoadShapes(ctx, b.shapes, LoadOptions{Category: CategoryStatic, Dedup: b.cfg.Dedup})
	if err != nil {
		return errors.Wrapf(err, "cannot load building %q into the scene", b.name)
	}
	b.registry.add(ids, CategoryStatic)
	b.shapes = nil
	b.logger.Debugw("loaded building into scene", "building", b.name, "entities", len(ids))
	return nil
}

// SetVisible shows or hides every entity of the building, humans included.
func (b *Building) SetVisible(ctx context.Context, visible bool) error {
	if b.backend == nil {
		return errors.New("no backend attached")
	}
	return b.backend.SetEntityVisible(ctx, b.registry.ids(), visible)
}

// SetHumanVisible shows or hides the human entities only.
func (b *Building) SetHumanVisible(ctx context.Context, visible bool) error {
	if b.backend == nil {
		return errors.New("no backend attached")
	}
	return b.backend.SetEntityVisible(ctx, b.registry.idsOf(CategoryHuman), visible)
}
