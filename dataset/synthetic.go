package dataset

import (
	"context"
	"fmt"
	"hash/fnv"
	"image/color"
	"math"
	"math/rand"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/humanav/config"
	"go.viam.com/humanav/logging"
	"go.viam.com/humanav/spatialmath"
)

const (
	syntheticScheme   = "synthetic://"
	syntheticTextures = 6
	wallHeight        = 2.5
	wallThickness     = 0.1
	buildingStep      = 0.5
	humanStep         = 0.1
)

type syntheticPart struct {
	name  string
	color color.NRGBA
	build func() *spatialmath.Mesh
}

// syntheticBuilding is a 20m x 16m floor split into rooms by two interior walls with doorways,
// with a few pillars and a table.
var syntheticBuilding = []syntheticPart{
	{"floor", color.NRGBA{R: 150, G: 120, B: 90, A: 255}, func() *spatialmath.Mesh {
		var b meshBuilder
		b.quad(r3.Vector{}, r3.Vector{X: 20}, r3.Vector{Y: 16}, buildingStep)
		return b.mesh("floor")
	}},
	{"outer_walls", color.NRGBA{R: 200, G: 200, B: 190, A: 255}, func() *spatialmath.Mesh {
		var b meshBuilder
		b.box(r3.Vector{X: -wallThickness, Y: -wallThickness}, r3.Vector{X: 20 + wallThickness, Z: wallHeight}, buildingStep)
		b.box(r3.Vector{X: -wallThickness, Y: 16}, r3.Vector{X: 20 + wallThickness, Y: 16 + wallThickness, Z: wallHeight}, buildingStep)
		b.box(r3.Vector{X: -wallThickness}, r3.Vector{Y: 16, Z: wallHeight}, buildingStep)
		b.box(r3.Vector{X: 20}, r3.Vector{X: 20 + wallThickness, Y: 16, Z: wallHeight}, buildingStep)
		return b.mesh("outer_walls")
	}},
	{"inner_walls", color.NRGBA{R: 180, G: 190, B: 200, A: 255}, func() *spatialmath.Mesh {
		var b meshBuilder
		// y = 6 from the west wall to a doorway at x in [12, 13.5]
		b.box(r3.Vector{Y: 6}, r3.Vector{X: 12, Y: 6 + wallThickness, Z: wallHeight}, buildingStep)
		b.box(r3.Vector{X: 13.5, Y: 6}, r3.Vector{X: 20, Y: 6 + wallThickness, Z: wallHeight}, buildingStep)
		// x = 14 north of the first wall with a doorway at y in [10, 11.5]
		b.box(r3.Vector{X: 14, Y: 6}, r3.Vector{X: 14 + wallThickness, Y: 10, Z: wallHeight}, buildingStep)
		b.box(r3.Vector{X: 14, Y: 11.5}, r3.Vector{X: 14 + wallThickness, Y: 16, Z: wallHeight}, buildingStep)
		return b.mesh("inner_walls")
	}},
	{"pillars", color.NRGBA{R: 120, G: 120, B: 130, A: 255}, func() *spatialmath.Mesh {
		var b meshBuilder
		for _, c := range []r3.Vector{{X: 4, Y: 9}, {X: 10, Y: 14}, {X: 17, Y: 3}} {
			b.box(c.Sub(r3.Vector{X: .2, Y: .2}), c.Add(r3.Vector{X: .2, Y: .2, Z: wallHeight}), buildingStep)
		}
		return b.mesh("pillars")
	}},
	{"table", color.NRGBA{R: 110, G: 70, B: 40, A: 255}, func() *spatialmath.Mesh {
		return boxMesh("table", r3.Vector{X: 2.4, Y: 12.6}, r3.Vector{X: 3.6, Y: 13.4, Z: .75}, buildingStep)
	}},
}

// Synthetic is a Loader that builds its meshes procedurally, so scenes can be composed without a
// copy of the datasets. Every building name maps to the same floor plan.
type Synthetic struct {
	surreal config.SurrealConfig
	logger  logging.Logger
}

// NewSynthetic returns a procedural loader.
func NewSynthetic(surreal config.SurrealConfig, logger logging.Logger) *Synthetic {
	return &Synthetic{surreal: surreal, logger: logger}
}

// LoadBuilding returns one pseudo path per part of the floor plan.
func (d *Synthetic) LoadBuilding(ctx context.Context, name string) (BuildingPaths, error) {
	if name == "" {
		return BuildingPaths{}, errors.New("building name is required")
	}
	paths := BuildingPaths{Name: name}
	for _, part := range syntheticBuilding {
		paths.Meshes = append(paths.Meshes, syntheticScheme+name+"/"+part.name)
	}
	return paths, nil
}

// LoadBuildingMeshes builds the meshes named by paths.
func (d *Synthetic) LoadBuildingMeshes(ctx context.Context, paths BuildingPaths) ([]*Shape, error) {
	shapes := make([]*Shape, 0, len(paths.Meshes))
	for _, path := range paths.Meshes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		partName := path[strings.LastIndex(path, "/")+1:]
		found := false
		for _, part := range syntheticBuilding {
			if part.name == partName {
				shapes = append(shapes, &Shape{Mesh: part.build(), Color: part.color})
				found = true
				break
			}
		}
		if !found {
			return nil, errors.Errorf("unknown synthetic mesh %q", path)
		}
	}
	d.logger.Debugw("built synthetic building", "building", paths.Name, "meshes", len(shapes))
	return shapes, nil
}

func (d *Synthetic) textures(gender Gender) ([]string, error) {
	out := make([]string, 0, syntheticTextures)
	for i := 0; i < syntheticTextures; i++ {
		out = append(out, fmt.Sprintf("%s%s/texture_%02d", syntheticScheme, gender, i))
	}
	return out, nil
}

// SampleHumanIdentity draws an identity from the configured surreal split.
func (d *Synthetic) SampleHumanIdentity(seed int64) (HumanIdentity, error) {
	return sampleIdentity(seed, d.surreal, d.textures)
}

// clothingColor derives a stable color from a texture name.
func clothingColor(texture string) color.NRGBA {
	hash := fnv.New32a()
	_, _ = hash.Write([]byte(texture))
	h := hash.Sum32()
	return color.NRGBA{R: uint8(60 + h%150), G: uint8(60 + (h>>8)%150), B: uint8(60 + (h>>16)%150), A: 255}
}

// LoadRandomHuman builds a block figure whose height follows the body shape and whose stride
// follows speed. The seed picks the gait phase and the pose the mesh is stored in, which is never
// the canonical one.
func (d *Synthetic) LoadRandomHuman(ctx context.Context, speed float64, identity HumanIdentity, seed int64) (*Human, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if speed < 0 {
		return nil, errors.Errorf("speed must not be negative, got %v", speed)
	}
	//nolint:gosec
	rng := rand.New(rand.NewSource(seed))
	phase := rng.Float64() * 2 * math.Pi
	center := spatialmath.NewPose3(rng.Float64()-.5, rng.Float64()-.5, (rng.Float64()*2-1)*math.Pi)
	lift := .02 + .05*rng.Float64()

	height := 1.55 + float64(identity.BodyShape%7)*.05
	if identity.Gender == Male {
		height += .08
	}
	legLength := .47 * height
	torso := .3 * height
	stride := math.Min(.4, .3*speed) * math.Sin(phase)

	var b meshBuilder
	// canonical pose: feet midpoint at the origin, facing +x
	b.box(r3.Vector{X: stride - .06, Y: .04, Z: 0}, r3.Vector{X: stride + .06, Y: .16, Z: legLength}, humanStep)
	b.box(r3.Vector{X: -stride - .06, Y: -.16, Z: 0}, r3.Vector{X: -stride + .06, Y: -.04, Z: legLength}, humanStep)
	b.box(r3.Vector{X: -.1, Y: -.2, Z: legLength}, r3.Vector{X: .1, Y: .2, Z: legLength + torso}, humanStep)
	b.box(r3.Vector{X: -stride/2 - .05, Y: .2, Z: legLength + .05}, r3.Vector{X: -stride/2 + .05, Y: .28, Z: legLength + torso}, humanStep)
	b.box(r3.Vector{X: stride/2 - .05, Y: -.28, Z: legLength + .05}, r3.Vector{X: stride/2 + .05, Y: -.2, Z: legLength + torso}, humanStep)
	b.box(r3.Vector{X: -.1, Y: -.1, Z: legLength + torso + .02}, r3.Vector{X: .1, Y: .1, Z: height}, humanStep)

	// store it the way scanned meshes come: somewhere off the origin and slightly above the floor
	spatialmath.ToWorld(b.vertices, center)
	for i := range b.vertices {
		b.vertices[i].Z += lift
	}
	mesh := b.mesh(fmt.Sprintf("human_%s_%d", identity.Gender, identity.BodyShape))

	shape := humanShape(mesh, identity)
	if shape.Texture != "" {
		shape.Color = clothingColor(shape.Texture)
	}
	return &Human{
		Shapes:     []*Shape{shape},
		CenterPose: center,
		Info: MeshInfo{
			Name:      fmt.Sprintf("synthetic_%d", seed),
			Speed:     speed,
			Gender:    identity.Gender,
			BodyShape: identity.BodyShape,
			Extra:     map[string]interface{}{"phase": phase},
		},
	}, nil
}
