package traversability

import (
	"github.com/pkg/errors"

	"go.viam.com/humanav/spatialmath"
)

// Grid is the traversability of one building. Base holds the static geometry only and never
// changes; Current is base minus the footprint of the loaded human, if any.
type Grid struct {
	m       Map
	base    *Bitmap
	current *Bitmap

	humanLoaded bool
	humanRadius float64
}

// NewGrid wraps a base bitmap that was rasterized (or loaded) for m.
func NewGrid(m Map, base *Bitmap) (*Grid, error) {
	if base == nil {
		return nil, errors.New("base traversible is required")
	}
	if base.Width() != m.Width || base.Height() != m.Height {
		return nil, errors.Errorf("traversible shape (%d,%d) does not match map (%d,%d)",
			base.Width(), base.Height(), m.Width, m.Height)
	}
	return &Grid{
		m:           m,
		base:        base,
		current:     base.Clone(),
		humanRadius: DefaultHumanRadius,
	}, nil
}

// BuildGrid rasterizes meshes with r and, when largestOnly is set, keeps only the largest
// connected free region as the base layer.
func BuildGrid(r *Rasterizer, meshes []*spatialmath.Mesh, largestOnly bool) (*Grid, error) {
	base, err := r.Traversible(meshes)
	if err != nil {
		return nil, err
	}
	if largestOnly {
		base = LargestComponent(base)
	}
	return NewGrid(r.Map(), base)
}

// Map returns the map the grid covers.
func (g *Grid) Map() Map {
	return g.m
}

// Base returns the static-only layer. Callers must not modify it.
func (g *Grid) Base() *Bitmap {
	return g.base
}

// Current returns the layer including the human footprint. Callers must not modify it.
func (g *Grid) Current() *Bitmap {
	return g.current
}

// Config returns the resolution in centimeters per cell and the base layer, the pair that is
// persisted per building.
func (g *Grid) Config() (float64, *Bitmap) {
	return g.m.Resolution, g.base
}

// HumanLoaded reports whether a human footprint is overlaid.
func (g *Grid) HumanLoaded() bool {
	return g.humanLoaded
}

// HumanRadius returns the radius in meters of the last overlaid human, or DefaultHumanRadius.
func (g *Grid) HumanRadius() float64 {
	return g.humanRadius
}

// OverlayHuman recomputes the current layer as base minus footprint.
func (g *Grid) OverlayHuman(footprint *Bitmap, radius float64) error {
	current := g.base.Clone()
	if err := current.AndNot(footprint); err != nil {
		return errors.Wrap(err, "cannot overlay human footprint")
	}
	g.current = current
	g.humanLoaded = true
	g.humanRadius = radius
	return nil
}

// Remove drops any human footprint so that the current layer equals base again.
func (g *Grid) Remove() {
	g.current = g.base.Clone()
	g.humanLoaded = false
}
