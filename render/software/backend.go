// Package software implements a scene backend that rasterizes meshes on the CPU into a z-buffer.
// It renders flat shaded color and disparity and needs no GPU or display.
package software

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"image"
	"image/color"
	"math"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"go.viam.com/humanav/config"
	"go.viam.com/humanav/dataset"
	"go.viam.com/humanav/logging"
	"go.viam.com/humanav/rimage"
	"go.viam.com/humanav/rimage/transform"
	"go.viam.com/humanav/scene"
)

var (
	// ErrClosed is returned by every call on a closed backend.
	ErrClosed = errors.New("software backend is closed")
	// ErrHumanResident is returned when a human is uploaded while another one is resident and
	// repeats were not allowed.
	ErrHumanResident = errors.New("a human is already resident in the scene")
	// ErrNoCamera is returned when rendering before the camera was positioned.
	ErrNoCamera = errors.New("camera has not been positioned")
)

// Background is the color of pixels no shape covers.
var Background = color.NRGBA{A: 255}

// Config sizes the image plane of a Backend.
type Config struct {
	Width  int
	Height int
	// FOV is the vertical (and horizontal) field of view in degrees.
	FOV float64
	// ZNear and ZFar bound the rendered depth in meters.
	ZNear float64
	ZFar  float64
}

// ConfigFromCamera derives the backend configuration of a simulator camera.
func ConfigFromCamera(c config.CameraConfig) Config {
	return Config{Width: c.Width, Height: c.Height, FOV: c.FOVVertical, ZNear: c.ZNear, ZFar: c.ZFar}
}

type geometry struct {
	faces []face
}

type entity struct {
	geometry *geometry
	color    color.NRGBA
	category scene.Category
	visible  bool
}

// Backend is a scene.Backend drawing into CPU buffers.
type Backend struct {
	mu     sync.Mutex
	cfg    Config
	params *transform.PinholeCameraIntrinsics
	logger logging.Logger

	entities   map[scene.EntityID]*entity
	order      []scene.EntityID
	geometries map[uint64]*geometry
	textures   map[string]color.NRGBA

	camera    camera
	cameraSet bool
	closed    bool
}

// NewBackend returns an empty backend.
func NewBackend(cfg Config, logger logging.Logger) (*Backend, error) {
	params, err := transform.NewPinholeCameraIntrinsicsFromFOV(cfg.Width, cfg.Height, cfg.FOV, cfg.FOV)
	if err != nil {
		return nil, err
	}
	if cfg.ZNear <= 0 || cfg.ZFar <= cfg.ZNear {
		return nil, errors.Errorf("invalid depth range [%v, %v]", cfg.ZNear, cfg.ZFar)
	}
	return &Backend{
		cfg:        cfg,
		params:     params,
		logger:     logger,
		entities:   map[scene.EntityID]*entity{},
		geometries: map[uint64]*geometry{},
		textures:   map[string]color.NRGBA{},
	}, nil
}

// meshKey hashes the vertices and faces of a mesh so identical shapes can share faces.
func meshKey(shape *dataset.Shape) uint64 {
	h := fnv.New64a()
	buf := make([]byte, 8)
	for _, v := range shape.Mesh.Vertices() {
		for _, c := range []float64{v.X, v.Y, v.Z} {
			binary.LittleEndian.PutUint64(buf, math.Float64bits(c))
			_, _ = h.Write(buf)
		}
	}
	for _, f := range shape.Mesh.Faces() {
		for _, i := range f {
			binary.LittleEndian.PutUint64(buf, uint64(i))
			_, _ = h.Write(buf)
		}
	}
	return h.Sum64()
}

func newGeometry(shape *dataset.Shape) *geometry {
	triangles := shape.Mesh.Triangles()
	g := &geometry{faces: make([]face, 0, len(triangles))}
	for _, t := range triangles {
		pts := t.Points()
		g.faces = append(g.faces, face{p: [3]r3.Vector{pts[0], pts[1], pts[2]}, normal: t.Normal()})
	}
	return g
}

// textureColor returns the mean color of the texture at path, falling back to fallback when it
// cannot be read.
func (b *Backend) textureColor(path string, fallback color.NRGBA) color.NRGBA {
	if c, ok := b.textures[path]; ok {
		return c
	}
	if strings.Contains(path, "://") {
		return fallback
	}
	img, err := imaging.Open(path)
	if err != nil {
		b.logger.Debugw("cannot read texture, using flat color", "texture", path, "error", err)
		return fallback
	}
	c := imaging.Resize(img, 1, 1, imaging.Box).NRGBAAt(0, 0)
	c.A = 255
	b.textures[path] = c
	return c
}

// LoadShapes uploads shapes and returns a fresh id per shape.
func (b *Backend) LoadShapes(ctx context.Context, shapes []*dataset.Shape, opts scene.LoadOptions) ([]scene.EntityID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	if opts.Category == scene.CategoryHuman && !opts.AllowRepeatHumans {
		for _, e := range b.entities {
			if e.category == scene.CategoryHuman {
				return nil, ErrHumanResident
			}
		}
	}

	ids := make([]scene.EntityID, 0, len(shapes))
	shared := 0
	for _, shape := range shapes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if shape == nil || shape.Mesh == nil {
			return nil, errors.New("cannot load a shape without a mesh")
		}
		var g *geometry
		if opts.Dedup {
			key := meshKey(shape)
			if existing, ok := b.geometries[key]; ok {
				g = existing
				shared++
			} else {
				g = newGeometry(shape)
				b.geometries[key] = g
			}
		} else {
			g = newGeometry(shape)
		}

		c := shape.Color
		if shape.Texture != "" && !opts.GrayOnly {
			c = b.textureColor(shape.Texture, shape.Color)
		}
		id := scene.EntityID(uuid.NewString())
		b.entities[id] = &entity{geometry: g, color: c, category: opts.Category, visible: true}
		b.order = append(b.order, id)
		ids = append(ids, id)
	}
	b.logger.Debugw("loaded shapes", "category", opts.Category, "count", len(ids), "shared", shared)
	return ids, nil
}

// RemoveHuman deletes every human entity along with the shared geometry no remaining entity
// draws.
func (b *Backend) RemoveHuman(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	kept := b.order[:0]
	inUse := map[*geometry]bool{}
	for _, id := range b.order {
		e := b.entities[id]
		if e.category == scene.CategoryHuman {
			delete(b.entities, id)
			continue
		}
		inUse[e.geometry] = true
		kept = append(kept, id)
	}
	b.order = kept
	for key, g := range b.geometries {
		if !inUse[g] {
			delete(b.geometries, key)
		}
	}
	return nil
}

// PositionCamera places the camera. position and lookAt must differ and the viewing direction must
// not be parallel to up.
func (b *Backend) PositionCamera(ctx context.Context, position, lookAt, up r3.Vector) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	forward := lookAt.Sub(position)
	if forward.Norm() == 0 {
		return errors.New("camera position and look-at point coincide")
	}
	forward = forward.Normalize()
	right := forward.Cross(up)
	if right.Norm() < 1e-9 {
		return errors.New("camera up vector is parallel to the viewing direction")
	}
	right = right.Normalize()
	b.camera = camera{position: position, right: right, forward: forward, up: right.Cross(forward)}
	b.cameraSet = true
	return nil
}

// SetEntityVisible shows or hides entities. Unknown ids are an error.
func (b *Backend) SetEntityVisible(ctx context.Context, ids []scene.EntityID, visible bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	for _, id := range ids {
		e, ok := b.entities[id]
		if !ok {
			return errors.Errorf("unknown entity %q", id)
		}
		e.visible = visible
	}
	return nil
}

// Render draws every visible entity from the current camera.
func (b *Backend) Render(ctx context.Context, modality config.Modality) (*rimage.Frame, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	if modality != config.ModalityRGB && modality != config.ModalityDisparity {
		return nil, errors.Wrapf(config.ErrUnsupportedModality, "software backend cannot render %q", modality)
	}
	if !b.cameraSet {
		return nil, ErrNoCamera
	}

	buf := newBuffers(b.cfg.Width, b.cfg.Height)
	for _, id := range b.order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e := b.entities[id]
		if !e.visible {
			continue
		}
		for _, f := range e.geometry.faces {
			b.draw(buf, f, e.color)
		}
	}

	switch modality {
	case config.ModalityRGB:
		img := image.NewNRGBA(image.Rect(0, 0, b.cfg.Width, b.cfg.Height))
		for i, depth := range buf.depth {
			c := Background
			if !math.IsInf(depth, 1) {
				c = buf.color[i]
			}
			img.SetNRGBA(i%b.cfg.Width, i/b.cfg.Width, c)
		}
		return &rimage.Frame{RGB: img}, nil
	default:
		disparity := rimage.NewDisparityMap(b.cfg.Width, b.cfg.Height)
		data := disparity.Data()
		for i, depth := range buf.depth {
			if !math.IsInf(depth, 1) {
				data[i] = 100. / depth
			}
		}
		return &rimage.Frame{Disparity: disparity}, nil
	}
}

func (b *Backend) draw(buf *buffers, f face, c color.NRGBA) {
	var tri [3]r3.Vector
	for i, p := range f.p {
		tri[i] = b.camera.toCamera(p)
	}
	poly := clipNear(tri, b.cfg.ZNear)
	if len(poly) < 3 {
		return
	}
	shaded := shade(c, f.normal, b.camera.forward)
	screen := make([]screenVertex, len(poly))
	for i, p := range poly {
		u, v := b.params.PointToPixel(p)
		screen[i] = screenVertex{u: u, v: v, depth: p.Y}
	}
	for i := 1; i+1 < len(screen); i++ {
		buf.fill([3]screenVertex{screen[0], screen[i], screen[i+1]}, b.cfg.ZFar, shaded)
	}
}

// EntityCount returns how many entities are resident.
func (b *Backend) EntityCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entities)
}

// Close releases every entity. Closing twice is a no-op.
func (b *Backend) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.entities = nil
	b.order = nil
	b.geometries = nil
	b.textures = nil
	return nil
}
