package inject

import (
	"context"

	"github.com/golang/geo/r3"

	"go.viam.com/humanav/config"
	"go.viam.com/humanav/dataset"
	"go.viam.com/humanav/rimage"
	"go.viam.com/humanav/scene"
)

// Backend is an injected scene backend.
type Backend struct {
	scene.Backend
	LoadShapesFunc       func(ctx context.Context, shapes []*dataset.Shape, opts scene.LoadOptions) ([]scene.EntityID, error)
	RemoveHumanFunc      func(ctx context.Context) error
	PositionCameraFunc   func(ctx context.Context, position, lookAt, up r3.Vector) error
	RenderFunc           func(ctx context.Context, modality config.Modality) (*rimage.Frame, error)
	SetEntityVisibleFunc func(ctx context.Context, ids []scene.EntityID, visible bool) error
	CloseFunc            func(ctx context.Context) error
}

// LoadShapes calls the injected LoadShapes or the real version.
func (b *Backend) LoadShapes(ctx context.Context, shapes []*dataset.Shape, opts scene.LoadOptions) ([]scene.EntityID, error) {
	if b.LoadShapesFunc == nil {
		return b.Backend.LoadShapes(ctx, shapes, opts)
	}
	return b.LoadShapesFunc(ctx, shapes, opts)
}

// RemoveHuman calls the injected RemoveHuman or the real version.
func (b *Backend) RemoveHuman(ctx context.Context) error {
	if b.RemoveHumanFunc == nil {
		return b.Backend.RemoveHuman(ctx)
	}
	return b.RemoveHumanFunc(ctx)
}

// PositionCamera calls the injected PositionCamera or the real version.
func (b *Backend) PositionCamera(ctx context.Context, position, lookAt, up r3.Vector) error {
	if b.PositionCameraFunc == nil {
		return b.Backend.PositionCamera(ctx, position, lookAt, up)
	}
	return b.PositionCameraFunc(ctx, position, lookAt, up)
}

// Render calls the injected Render or the real version.
func (b *Backend) Render(ctx context.Context, modality config.Modality) (*rimage.Frame, error) {
	if b.RenderFunc == nil {
		return b.Backend.Render(ctx, modality)
	}
	return b.RenderFunc(ctx, modality)
}

// SetEntityVisible calls the injected SetEntityVisible or the real version.
func (b *Backend) SetEntityVisible(ctx context.Context, ids []scene.EntityID, visible bool) error {
	if b.SetEntityVisibleFunc == nil {
		return b.Backend.SetEntityVisible(ctx, ids, visible)
	}
	return b.SetEntityVisibleFunc(ctx, ids, visible)
}

// Close calls the injected Close or the real version.
func (b *Backend) Close(ctx context.Context) error {
	if b.CloseFunc == nil {
		if b.Backend == nil {
			return nil
		}
		return b.Backend.Close(ctx)
	}
	return b.CloseFunc(ctx)
}
