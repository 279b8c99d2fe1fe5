// Package config defines the structures to configure a humanav simulator: the dataset and building
// to load, the camera, the robot body and the human dataset parameters.
package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// ErrUnsupportedModality is returned for modality lists that cannot be rendered together.
var ErrUnsupportedModality = errors.New("unsupported modality")

// Modality is a kind of image the simulator can produce.
type Modality string

// The known modalities.
const (
	ModalityRGB           = Modality("rgb")
	ModalityDisparity     = Modality("disparity")
	ModalityOccupancyGrid = Modality("occupancy_grid")
)

// The surreal dataset splits.
const (
	SurrealModeTrain = "train"
	SurrealModeTest  = "test"
)

// Config describes one simulator instance.
type Config struct {
	ConfigFilePath string `json:"-"`

	DatasetName              string `json:"dataset_name"`
	BuildingName             string `json:"building_name"`
	Flip                     bool   `json:"flip"`
	LoadMeshes               bool   `json:"load_meshes"`
	LoadTraversibleFromCache bool   `json:"load_traversible_from_cache"`
	RestrictToLargestCC      bool   `json:"restrict_to_largest_cc"`
	TraversibleDir           string `json:"traversible_dir"`
	DataDir                  string `json:"data_dir"`

	Camera  CameraConfig  `json:"camera"`
	Robot   RobotConfig   `json:"robot"`
	Env     EnvConfig     `json:"env"`
	Surreal SurrealConfig `json:"surreal"`
}

// CameraConfig describes the rendering camera.
type CameraConfig struct {
	Modalities    []Modality `json:"modalities"`
	Width         int        `json:"width"`
	Height        int        `json:"height"`
	ZNear         float64    `json:"z_near"`
	ZFar          float64    `json:"z_far"`
	FOVHorizontal float64    `json:"fov_horizontal"`
	FOVVertical   float64    `json:"fov_vertical"`
	ImgChannels   int        `json:"img_channels"`
	ImResize      float64    `json:"im_resize"`
	// MaxDepthMeters clips finite depth readings. Zero leaves them unclipped.
	MaxDepthMeters float64 `json:"max_depth_meters"`
}

// RobotConfig models the robot as a solid cylinder with a camera on it. Lengths are in centimeters.
type RobotConfig struct {
	Radius                float64 `json:"radius"`
	Base                  float64 `json:"base"`
	Height                float64 `json:"height"`
	SensorHeight          float64 `json:"sensor_height"`
	CameraElevationDegree float64 `json:"camera_elevation_degree"`
	DeltaTheta            float64 `json:"delta_theta"`
}

// EnvConfig controls how building meshes are rasterized into a traversible.
type EnvConfig struct {
	Padding           float64 `json:"padding"`
	Resolution        float64 `json:"resolution"`
	NumPointThreshold float64 `json:"num_point_threshold"`
	ValidMin          float64 `json:"valid_min"`
	ValidMax          float64 `json:"valid_max"`
	NSamplesPerFace   int     `json:"n_samples_per_face"`
}

// SurrealConfig selects and styles the human meshes.
type SurrealConfig struct {
	Mode                    string `json:"mode"`
	DataDir                 string `json:"data_dir"`
	TextureDir              string `json:"texture_dir"`
	BodyShapesTrain         []int  `json:"body_shapes_train"`
	BodyShapesTest          []int  `json:"body_shapes_test"`
	ComputeHumanTraversible bool   `json:"compute_human_traversible"`
	RenderHumansInGrayOnly  bool   `json:"render_humans_in_gray_only"`
}

// Default returns the configuration of a 64x64 occupancy grid over area1 of the sbpd dataset.
func Default() *Config {
	return &Config{
		DatasetName:              "sbpd",
		BuildingName:             "area1",
		LoadMeshes:               true,
		LoadTraversibleFromCache: true,
		RestrictToLargestCC:      true,
		Camera: CameraConfig{
			Modalities:    []Modality{ModalityOccupancyGrid},
			Width:         64,
			Height:        64,
			ZNear:         .01,
			ZFar:          20,
			FOVHorizontal: 90,
			FOVVertical:   90,
			ImgChannels:   3,
			ImResize:      1,
		},
		Robot: RobotConfig{
			Radius:                18,
			Base:                  10,
			Height:                100,
			SensorHeight:          80,
			CameraElevationDegree: -45,
			DeltaTheta:            1,
		},
		Env: EnvConfig{
			Padding:           10,
			Resolution:        5,
			NumPointThreshold: 2,
			ValidMin:          -10,
			ValidMax:          200,
			NSamplesPerFace:   200,
		},
		Surreal: SurrealConfig{
			Mode:            SurrealModeTrain,
			BodyShapesTrain: []int{519, 1320, 521, 523, 779, 365, 1198, 368},
			BodyShapesTest:  []int{337, 944, 1333, 502, 344, 538, 413},
		},
	}
}

// MaxDepth returns the depth clipping distance in meters, +Inf when clipping is off.
func (c *CameraConfig) MaxDepth() float64 {
	if c.MaxDepthMeters <= 0 {
		return math.Inf(1)
	}
	return c.MaxDepthMeters
}

// Has reports whether modality m is requested.
func (c *CameraConfig) Has(m Modality) bool {
	for _, have := range c.Modalities {
		if have == m {
			return true
		}
	}
	return false
}

// RendersImages reports whether a scene backend is needed, i.e. rgb or disparity is requested.
func (c *CameraConfig) RendersImages() bool {
	return c.Has(ModalityRGB) || c.Has(ModalityDisparity)
}

// Validate ensures all parts of the config are valid.
func (c *CameraConfig) Validate(path string) error {
	if len(c.Modalities) == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "modalities")
	}
	for _, m := range c.Modalities {
		switch m {
		case ModalityRGB, ModalityDisparity, ModalityOccupancyGrid:
		default:
			return utils.NewConfigValidationError(path, errors.Wrapf(ErrUnsupportedModality, "%q", m))
		}
	}
	if c.Width <= 0 || c.Height <= 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("width and height must be positive, got %dx%d", c.Width, c.Height))
	}
	if c.Has(ModalityOccupancyGrid) {
		if c.RendersImages() {
			return utils.NewConfigValidationError(path,
				errors.Wrap(ErrUnsupportedModality, "occupancy_grid cannot be combined with rgb or disparity"))
		}
		if c.Width != c.Height {
			return utils.NewConfigValidationError(path,
				errors.Errorf("occupancy grid views must be square, got %dx%d", c.Width, c.Height))
		}
		return nil
	}
	if c.ImResize <= 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("im_resize must be positive, got %v", c.ImResize))
	}
	if c.Has(ModalityDisparity) && c.ImResize != 1 {
		return utils.NewConfigValidationError(path, errors.New("disparity cannot be resized, im_resize must be 1"))
	}
	if c.FOVHorizontal != c.FOVVertical {
		return utils.NewConfigValidationError(path,
			errors.Errorf("fov_horizontal (%v) and fov_vertical (%v) must be equal", c.FOVHorizontal, c.FOVVertical))
	}
	if c.FOVVertical <= 0 || c.FOVVertical >= 180 {
		return utils.NewConfigValidationError(path, errors.Errorf("field of view must be in (0, 180), got %v", c.FOVVertical))
	}
	if c.ZNear <= 0 || c.ZFar <= c.ZNear {
		return utils.NewConfigValidationError(path, errors.Errorf("invalid clip planes [%v, %v]", c.ZNear, c.ZFar))
	}
	if c.MaxDepthMeters < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("max_depth_meters must not be negative, got %v", c.MaxDepthMeters))
	}
	return nil
}

// Validate ensures all parts of the config are valid.
func (r *RobotConfig) Validate(path string) error {
	if r.Radius <= 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("radius must be positive, got %v", r.Radius))
	}
	if r.Height <= 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("height must be positive, got %v", r.Height))
	}
	if r.DeltaTheta == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "delta_theta")
	}
	return nil
}

// Validate ensures all parts of the config are valid.
func (e *EnvConfig) Validate(path string) error {
	if e.Resolution <= 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("resolution must be positive, got %v", e.Resolution))
	}
	if e.Padding < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("padding must not be negative, got %v", e.Padding))
	}
	if e.ValidMin >= e.ValidMax {
		return utils.NewConfigValidationError(path, errors.Errorf("valid_min (%v) must be below valid_max (%v)", e.ValidMin, e.ValidMax))
	}
	if e.NSamplesPerFace <= 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("n_samples_per_face must be positive, got %d", e.NSamplesPerFace))
	}
	return nil
}

// BodyShapes returns the body shapes of the configured split.
func (s *SurrealConfig) BodyShapes() []int {
	if s.Mode == SurrealModeTest {
		return s.BodyShapesTest
	}
	return s.BodyShapesTrain
}

// Validate ensures all parts of the config are valid.
func (s *SurrealConfig) Validate(path string) error {
	switch s.Mode {
	case SurrealModeTrain, SurrealModeTest:
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("unknown mode %q", s.Mode))
	}
	if len(s.BodyShapes()) == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "body_shapes_"+s.Mode)
	}
	return nil
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate(path string) error {
	if c.DatasetName == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "dataset_name")
	}
	if c.BuildingName == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "building_name")
	}
	if err := c.Camera.Validate(joinPath(path, "camera")); err != nil {
		return err
	}
	if err := c.Robot.Validate(joinPath(path, "robot")); err != nil {
		return err
	}
	if err := c.Env.Validate(joinPath(path, "env")); err != nil {
		return err
	}
	if err := c.Surreal.Validate(joinPath(path, "surreal")); err != nil {
		return err
	}
	if !c.LoadMeshes && c.TraversibleDir == "" {
		return utils.NewConfigValidationError(path, errors.New("traversible_dir is required when load_meshes is false"))
	}
	return nil
}

func joinPath(path, field string) string {
	if path == "" {
		return field
	}
	return fmt.Sprintf("%s.%s", path, field)
}

// Key identifies the parts of a config that pin down the loaded scene. Two configs with the same
// key can share one simulator.
type Key struct {
	DatasetName  string
	BuildingName string
	Flip         bool
	Modalities   string
}

// Key returns the identity of the scene c describes.
func (c *Config) Key() Key {
	mods := make([]string, 0, len(c.Camera.Modalities))
	for _, m := range c.Camera.Modalities {
		mods = append(mods, string(m))
	}
	return Key{
		DatasetName:  c.DatasetName,
		BuildingName: c.BuildingName,
		Flip:         c.Flip,
		Modalities:   strings.Join(mods, ","),
	}
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s (flip=%t, modalities=%s)", k.DatasetName, k.BuildingName, k.Flip, k.Modalities)
}
