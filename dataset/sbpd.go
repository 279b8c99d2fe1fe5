package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"

	"go.viam.com/humanav/config"
	"go.viam.com/humanav/logging"
	"go.viam.com/humanav/spatialmath"
)

const speedDirPrefix = "speed_"

// SBPD loads buildings stored as PLY files and humans stored as per speed folders of PLY files.
//
// Buildings live under <dataDir>/<building>/*.ply; a PNG or JPG next to a mesh with the same base
// name is used as its texture. Humans live under
// <surreal.DataDir>/<gender>/body_shape_<id>/speed_<s>/<name>.ply, each with a <name>.json that
// holds the x, y and theta of the center pose plus free form metadata. Textures are the images
// under <surreal.TextureDir>/<gender>/.
type SBPD struct {
	dataDir string
	surreal config.SurrealConfig
	logger  logging.Logger
}

// NewSBPD returns a loader over the given directories.
func NewSBPD(dataDir string, surreal config.SurrealConfig, logger logging.Logger) *SBPD {
	return &SBPD{dataDir: dataDir, surreal: surreal, logger: logger}
}

func globSorted(dir string, patterns ...string) ([]string, error) {
	var out []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)
	}
	sort.Strings(out)
	return out, nil
}

// LoadBuilding lists the PLY meshes of building name.
func (d *SBPD) LoadBuilding(ctx context.Context, name string) (BuildingPaths, error) {
	meshes, err := globSorted(filepath.Join(d.dataDir, name), "*.ply")
	if err != nil {
		return BuildingPaths{}, err
	}
	if len(meshes) == 0 {
		return BuildingPaths{}, errors.Errorf("no meshes found for building %q under %q", name, d.dataDir)
	}
	return BuildingPaths{Name: name, Meshes: meshes}, nil
}

// LoadBuildingMeshes reads every PLY file of paths.
func (d *SBPD) LoadBuildingMeshes(ctx context.Context, paths BuildingPaths) ([]*Shape, error) {
	shapes := make([]*Shape, 0, len(paths.Meshes))
	for _, path := range paths.Meshes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mesh, err := spatialmath.NewMeshFromPLYFile(path)
		if err != nil {
			return nil, err
		}
		shape := &Shape{Mesh: mesh, Color: BuildingColor}
		base := strings.TrimSuffix(path, filepath.Ext(path))
		for _, ext := range []string{".png", ".jpg"} {
			if _, err := os.Stat(base + ext); err == nil {
				shape.Texture = base + ext
				break
			}
		}
		shapes = append(shapes, shape)
	}
	d.logger.Debugw("loaded building meshes", "building", paths.Name, "meshes", len(shapes))
	return shapes, nil
}

func (d *SBPD) textures(gender Gender) ([]string, error) {
	return globSorted(filepath.Join(d.surreal.TextureDir, gender.String()), "*.png", "*.jpg")
}

// SampleHumanIdentity draws an identity from the configured surreal split.
func (d *SBPD) SampleHumanIdentity(seed int64) (HumanIdentity, error) {
	return sampleIdentity(seed, d.surreal, d.textures)
}

// nearestSpeedDir returns the speed_<s> folder under dir whose speed is closest to speed.
func nearestSpeedDir(dir string, speed float64) (string, float64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", 0, errors.Wrapf(err, "cannot list human speeds under %q", dir)
	}
	best, bestSpeed := "", math.Inf(1)
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), speedDirPrefix) {
			continue
		}
		s, err := strconv.ParseFloat(strings.TrimPrefix(entry.Name(), speedDirPrefix), 64)
		if err != nil {
			continue
		}
		if best == "" || math.Abs(s-speed) < math.Abs(bestSpeed-speed) {
			best, bestSpeed = entry.Name(), s
		}
	}
	if best == "" {
		return "", 0, errors.Errorf("no %s* folders under %q", speedDirPrefix, dir)
	}
	return filepath.Join(dir, best), bestSpeed, nil
}

type humanPose struct {
	X     float64                `json:"x"`
	Y     float64                `json:"y"`
	Theta float64                `json:"theta"`
	Extra map[string]interface{} `json:",remain"`
}

// LoadRandomHuman picks one mesh out of the speed folder closest to speed.
func (d *SBPD) LoadRandomHuman(ctx context.Context, speed float64, identity HumanIdentity, seed int64) (*Human, error) {
	shapeDir := filepath.Join(d.surreal.DataDir, identity.Gender.String(), fmt.Sprintf("body_shape_%d", identity.BodyShape))
	speedDir, actualSpeed, err := nearestSpeedDir(shapeDir, speed)
	if err != nil {
		return nil, err
	}
	meshes, err := globSorted(speedDir, "*.ply")
	if err != nil {
		return nil, err
	}
	if len(meshes) == 0 {
		return nil, errors.Errorf("no human meshes under %q", speedDir)
	}
	//nolint:gosec
	rng := rand.New(rand.NewSource(seed))
	path := meshes[rng.Intn(len(meshes))]
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mesh, err := spatialmath.NewMeshFromPLYFile(path)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	//nolint:gosec
	poseBytes, err := os.ReadFile(strings.TrimSuffix(path, filepath.Ext(path)) + ".json")
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read center pose of human mesh %q", name)
	}
	var attrs map[string]interface{}
	if err := json.Unmarshal(poseBytes, &attrs); err != nil {
		return nil, errors.Wrapf(err, "cannot parse center pose of human mesh %q", name)
	}
	var pose humanPose
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "json", Result: &pose})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attrs); err != nil {
		return nil, errors.Wrapf(err, "cannot decode center pose of human mesh %q", name)
	}

	d.logger.Debugw("loaded human mesh", "path", path, "speed", actualSpeed)
	return &Human{
		Shapes:     []*Shape{humanShape(mesh, identity)},
		CenterPose: spatialmath.NewPose3(pose.X, pose.Y, pose.Theta),
		Info: MeshInfo{
			Name:      name,
			Speed:     actualSpeed,
			Gender:    identity.Gender,
			BodyShape: identity.BodyShape,
			Extra:     pose.Extra,
		},
	}, nil
}
