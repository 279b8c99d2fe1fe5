package inject

import (
	"context"

	"go.viam.com/humanav/dataset"
)

// Loader is an injected dataset loader.
type Loader struct {
	dataset.Loader
	LoadBuildingFunc        func(ctx context.Context, name string) (dataset.BuildingPaths, error)
	LoadBuildingMeshesFunc  func(ctx context.Context, paths dataset.BuildingPaths) ([]*dataset.Shape, error)
	SampleHumanIdentityFunc func(seed int64) (dataset.HumanIdentity, error)
	LoadRandomHumanFunc     func(ctx context.Context, speed float64, identity dataset.HumanIdentity, seed int64) (*dataset.Human, error)
}

// LoadBuilding calls the injected LoadBuilding or the real version.
func (l *Loader) LoadBuilding(ctx context.Context, name string) (dataset.BuildingPaths, error) {
	if l.LoadBuildingFunc == nil {
		return l.Loader.LoadBuilding(ctx, name)
	}
	return l.LoadBuildingFunc(ctx, name)
}

// LoadBuildingMeshes calls the injected LoadBuildingMeshes or the real version.
func (l *Loader) LoadBuildingMeshes(ctx context.Context, paths dataset.BuildingPaths) ([]*dataset.Shape, error) {
	if l.LoadBuildingMeshesFunc == nil {
		return l.Loader.LoadBuildingMeshes(ctx, paths)
	}
	return l.LoadBuildingMeshesFunc(ctx, paths)
}

// SampleHumanIdentity calls the injected SampleHumanIdentity or the real version.
func (l *Loader) SampleHumanIdentity(seed int64) (dataset.HumanIdentity, error) {
	if l.SampleHumanIdentityFunc == nil {
		return l.Loader.SampleHumanIdentity(seed)
	}
	return l.SampleHumanIdentityFunc(seed)
}

// LoadRandomHuman calls the injected LoadRandomHuman or the real version.
func (l *Loader) LoadRandomHuman(ctx context.Context, speed float64, identity dataset.HumanIdentity, seed int64) (*dataset.Human, error) {
	if l.LoadRandomHumanFunc == nil {
		return l.Loader.LoadRandomHuman(ctx, speed, identity, seed)
	}
	return l.LoadRandomHumanFunc(ctx, speed, identity, seed)
}
