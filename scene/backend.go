// Package scene composes a building and at most one human inside a rendering backend and resolves
// where the camera of a robot standing on the traversability grid looks from.
package scene

import (
	"context"

	"github.com/golang/geo/r3"

	"go.viam.com/humanav/config"
	"go.viam.com/humanav/dataset"
	"go.viam.com/humanav/rimage"
)

// EntityID is an opaque handle a backend hands out for every uploaded shape.
type EntityID string

// Category tags what an entity is, so that humans can be found without inspecting ids.
type Category int

// The entity categories.
const (
	CategoryStatic Category = iota
	CategoryHuman
)

func (c Category) String() string {
	switch c {
	case CategoryStatic:
		return "static"
	case CategoryHuman:
		return "human"
	}
	return "unknown"
}

// LoadOptions control how a backend ingests shapes.
type LoadOptions struct {
	// Category of every shape in the call.
	Category Category
	// Dedup shares GPU side buffers between identical shapes.
	Dedup bool
	// AllowRepeatHumans lets a human be uploaded while another one is still resident.
	AllowRepeatHumans bool
	// GrayOnly ignores textures and renders the shapes in their flat color.
	GrayOnly bool
}

// Backend is a rasterizer that holds the uploaded scene and renders it from a camera.
type Backend interface {
	// LoadShapes uploads shapes and returns one id per shape. The backend takes ownership of the
	// vertex buffers.
	LoadShapes(ctx context.Context, shapes []*dataset.Shape, opts LoadOptions) ([]EntityID, error)
	// RemoveHuman deletes every human entity.
	RemoveHuman(ctx context.Context) error
	// PositionCamera places the camera at position looking at lookAt, with up as the up vector.
	// All coordinates are in meters.
	PositionCamera(ctx context.Context, position, lookAt, up r3.Vector) error
	// Render captures the given modality from the current camera.
	Render(ctx context.Context, modality config.Modality) (*rimage.Frame, error)
	// SetEntityVisible shows or hides entities.
	SetEntityVisible(ctx context.Context, ids []EntityID, visible bool) error
	// Close releases the backend.
	Close(ctx context.Context) error
}
