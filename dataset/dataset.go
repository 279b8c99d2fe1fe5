// Package dataset loads the building and human meshes a humanav scene is composed of.
package dataset

import (
	"context"
	"image/color"
	"math/rand"

	"github.com/pkg/errors"

	"go.viam.com/humanav/config"
	"go.viam.com/humanav/spatialmath"
)

// Gender selects the human mesh and texture family.
type Gender int

// The genders of the human meshes.
const (
	Female Gender = iota
	Male
)

func (g Gender) String() string {
	switch g {
	case Female:
		return "female"
	case Male:
		return "male"
	}
	return "unknown"
}

// ParseGender parses "female" or "male".
func ParseGender(s string) (Gender, error) {
	switch s {
	case "female":
		return Female, nil
	case "male":
		return Male, nil
	}
	return Female, errors.Errorf("unknown gender %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (g Gender) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Gender) UnmarshalText(text []byte) (err error) {
	*g, err = ParseGender(string(text))
	return
}

// HumanIdentity is the appearance of a human that persists while it moves around.
type HumanIdentity struct {
	Gender    Gender   `json:"gender"`
	Texture   []string `json:"texture"`
	BodyShape int      `json:"body_shape"`
}

// Shape is a mesh ready to be uploaded to a scene backend.
type Shape struct {
	Mesh *spatialmath.Mesh
	// Color is used where no texture is given or it cannot be read.
	Color color.NRGBA
	// Texture is an optional path to an image whose mean color tints the shape.
	Texture string
}

// BuildingPaths locates the meshes of one building.
type BuildingPaths struct {
	Name   string
	Meshes []string
}

// MeshInfo describes the human mesh that was picked.
type MeshInfo struct {
	Name      string                 `json:"name"`
	Speed     float64                `json:"speed"`
	Gender    Gender                 `json:"gender"`
	BodyShape int                    `json:"body_shape"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
}

// Human is a human mesh as stored in the dataset. CenterPose is the position and heading of the
// midpoint between the feet in the frame the vertices are expressed in.
type Human struct {
	Shapes     []*Shape
	CenterPose spatialmath.Pose3
	Info       MeshInfo
}

// Loader provides building and human meshes.
type Loader interface {
	// LoadBuilding resolves the mesh files of the named building.
	LoadBuilding(ctx context.Context, name string) (BuildingPaths, error)
	// LoadBuildingMeshes reads every mesh of a building.
	LoadBuildingMeshes(ctx context.Context, paths BuildingPaths) ([]*Shape, error)
	// SampleHumanIdentity picks a gender, texture and body shape. The same seed always yields
	// the same identity.
	SampleHumanIdentity(seed int64) (HumanIdentity, error)
	// LoadRandomHuman picks a mesh of the given identity walking at roughly speed meters per
	// second. The same seed always yields the same mesh.
	LoadRandomHuman(ctx context.Context, speed float64, identity HumanIdentity, seed int64) (*Human, error)
}

// Default shape colors.
var (
	BuildingColor = color.NRGBA{R: 170, G: 170, B: 160, A: 255}
	HumanGray     = color.NRGBA{R: 128, G: 128, B: 128, A: 255}
)

// sampleIdentity draws an identity from the surreal split using textures to list the textures of
// a gender.
func sampleIdentity(seed int64, surreal config.SurrealConfig, textures func(Gender) ([]string, error)) (HumanIdentity, error) {
	//nolint:gosec
	rng := rand.New(rand.NewSource(seed))
	gender := Gender(rng.Intn(2))
	shapes := surreal.BodyShapes()
	if len(shapes) == 0 {
		return HumanIdentity{}, errors.Errorf("no body shapes configured for mode %q", surreal.Mode)
	}
	bodyShape := shapes[rng.Intn(len(shapes))]

	identity := HumanIdentity{Gender: gender, BodyShape: bodyShape}
	if surreal.RenderHumansInGrayOnly {
		return identity, nil
	}
	available, err := textures(gender)
	if err != nil {
		return HumanIdentity{}, err
	}
	if len(available) > 0 {
		identity.Texture = []string{available[rng.Intn(len(available))]}
	}
	return identity, nil
}

func humanShape(mesh *spatialmath.Mesh, identity HumanIdentity) *Shape {
	shape := &Shape{Mesh: mesh, Color: HumanGray}
	if len(identity.Texture) > 0 {
		shape.Texture = identity.Texture[0]
	}
	return shape
}
