package scene

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/humanav/dataset"
	"go.viam.com/humanav/spatialmath"
	"go.viam.com/humanav/traversability"
)

// ErrHumanAlreadyLoaded is returned when a human is loaded into a building that already has one.
var ErrHumanAlreadyLoaded = errors.New("a human is already loaded, remove it first")

// ErrNoHuman is returned by operations that need a loaded human.
var ErrNoHuman = errors.New("no human is loaded")

type humanState struct {
	identity dataset.HumanIdentity
	speed    float64
	// pose on the traversability map, pose in the mesh frame
	mapPose   spatialmath.Pose3
	worldPose spatialmath.Pose3
	info      dataset.MeshInfo
	// canonical vertices: feet midpoint at the origin facing +x, lowest point on the floor
	egoVertices []r3.Vector
	radius      float64
}

// LoadHuman loads a human of identity into the building at pose, given in meters from the origin
// of the traversability map. The mesh is grounded, brought into its canonical pose, placed, and
// uploaded to the backend if one is attached. When human traversability is tracked the footprint
// of the placed mesh is overlaid on the grid.
func (b *Building) LoadHuman(
	ctx context.Context,
	loader dataset.Loader,
	pose spatialmath.Pose3,
	speed float64,
	identity dataset.HumanIdentity,
	meshSeed int64,
) error {
	if b.human != nil {
		return ErrHumanAlreadyLoaded
	}
	human, err := loader.LoadRandomHuman(ctx, speed, identity, meshSeed)
	if err != nil {
		return errors.Wrap(err, "cannot load human")
	}
	if len(human.Shapes) != 1 {
		return errors.Errorf("expected exactly one human mesh, got %d", len(human.Shapes))
	}
	mesh := human.Shapes[0].Mesh

	mesh.Ground()
	spatialmath.ToEgo(mesh.Vertices(), human.CenterPose)
	egoVertices := make([]r3.Vector, len(mesh.Vertices()))
	copy(egoVertices, mesh.Vertices())

	worldPose := spatialmath.MapToVertexFrame(pose, b.grid.Map().Origin)
	spatialmath.ToWorld(mesh.Vertices(), worldPose)

	state := &humanState{
		identity:    identity,
		speed:       speed,
		mapPose:     pose,
		worldPose:   worldPose,
		info:        human.Info,
		egoVertices: egoVertices,
		radius:      traversability.HumanRadius(mesh, worldPose.Point()),
	}

	if b.cfg.ComputeHumanTraversible {
		footprint := b.raster.HumanFootprint(mesh, worldPose.Point())
		if err := b.grid.OverlayHuman(footprint, state.radius); err != nil {
			return err
		}
	}

	if b.backend != nil {
		ids, err := b.backend.LoadShapes(ctx, human.Shapes, LoadOptions{
			Category:          CategoryHuman,
			Dedup:             b.cfg.Dedup,
			AllowRepeatHumans: b.cfg.AllowRepeatHumans,
			GrayOnly:          b.cfg.GrayHumans,
		})
		if err != nil {
			b.grid.Remove()
			return errors.Wrap(err, "cannot load human into the scene")
		}
		b.registry.add(ids, CategoryHuman)
	}

	b.human = state
	b.logger.Debugw("loaded human", "pose", pose, "world_pose", worldPose, "speed", speed, "mesh", human.Info.Name)
	return nil
}

// RemoveHuman removes the loaded human from the backend and the grid. Removing when no human is
// loaded is a no-op.
func (b *Building) RemoveHuman(ctx context.Context) error {
	if b.human == nil {
		return nil
	}
	if b.backend != nil {
		if err := b.backend.RemoveHuman(ctx); err != nil {
			return errors.Wrap(err, "cannot remove human from the scene")
		}
	}
	b.registry.remove(CategoryHuman)
	b.grid.Remove()
	b.human = nil
	return nil
}

// MoveHuman replaces the loaded human with a new mesh of the same identity at pose.
func (b *Building) MoveHuman(ctx context.Context, loader dataset.Loader, pose spatialmath.Pose3, speed float64, meshSeed int64) error {
	if b.human == nil {
		return ErrNoHuman
	}
	identity := b.human.identity
	if err := b.RemoveHuman(ctx); err != nil {
		return err
	}
	return b.LoadHuman(ctx, loader, pose, speed, identity, meshSeed)
}

// HumanLoaded reports whether a human is in the building.
func (b *Building) HumanLoaded() bool {
	return b.human != nil
}

// HumanIdentity returns the identity of the loaded human.
func (b *Building) HumanIdentity() (dataset.HumanIdentity, bool) {
	if b.human == nil {
		return dataset.HumanIdentity{}, false
	}
	return b.human.identity, true
}

// HumanMeshInfo returns the dataset metadata of the loaded human mesh.
func (b *Building) HumanMeshInfo() (dataset.MeshInfo, bool) {
	if b.human == nil {
		return dataset.MeshInfo{}, false
	}
	return b.human.info, true
}

// HumanPose returns where the loaded human stands on the traversability map.
func (b *Building) HumanPose() (spatialmath.Pose3, bool) {
	if b.human == nil {
		return spatialmath.Pose3{}, false
	}
	return b.human.mapPose, true
}

// HumanEgoVertices returns a copy of the canonical vertices of the loaded human.
func (b *Building) HumanEgoVertices() []r3.Vector {
	if b.human == nil {
		return nil
	}
	out := make([]r3.Vector, len(b.human.egoVertices))
	copy(out, b.human.egoVertices)
	return out
}

// HumanRadius returns the xy radius in meters of the loaded human, or the default radius.
func (b *Building) HumanRadius() float64 {
	if b.human == nil {
		return traversability.DefaultHumanRadius
	}
	return b.human.radius
}
