package traversability

import (
	"encoding/json"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/xfmoulet/qoi"
	"go.viam.com/utils"

	"go.viam.com/humanav/logging"
)

const (
	storeImageName = "traversible.qoi"
	storeMetaName  = "traversible.json"
)

type storeMeta struct {
	Resolution float64 `json:"resolution"`
	Map        Map     `json:"map"`
}

// Store persists the base traversible of buildings under one directory, one subdirectory per
// building. The bitmap is kept as a lossless QOI image next to a JSON file holding the map.
type Store struct {
	dir    string
	logger logging.Logger
}

// NewStore returns a store rooted at dir.
func NewStore(dir string, logger logging.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

func (s *Store) buildingDir(building string) string {
	return filepath.Join(s.dir, building)
}

// Load reads the grid cached for building. When nothing is cached the returned error wraps
// os.ErrNotExist.
func (s *Store) Load(building string) (*Grid, error) {
	dir := s.buildingDir(building)
	//nolint:gosec
	metaBytes, err := os.ReadFile(filepath.Join(dir, storeMetaName))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read traversible metadata of %q", building)
	}
	var meta storeMeta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, errors.Wrapf(err, "cannot parse traversible metadata of %q", building)
	}

	//nolint:gosec
	f, err := os.Open(filepath.Join(dir, storeImageName))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open traversible of %q", building)
	}
	defer utils.UncheckedErrorFunc(f.Close)
	img, err := qoi.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot decode traversible of %q", building)
	}

	bounds := img.Bounds()
	base := NewBitmap(bounds.Dx(), bounds.Dy())
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			g := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
			base.Set(x, y, g.Y > 127)
		}
	}
	meta.Map.Resolution = meta.Resolution
	s.logger.Debugw("loaded cached traversible", "building", building, "width", base.Width(), "height", base.Height())
	return NewGrid(meta.Map, base)
}

// Save writes the base layer of g for building, replacing any previous entry.
func (s *Store) Save(building string, g *Grid) (err error) {
	dir := s.buildingDir(building)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errors.Wrapf(err, "cannot create traversible directory %q", dir)
	}
	resolution, base := g.Config()

	img := image.NewGray(image.Rect(0, 0, base.Width(), base.Height()))
	for y := 0; y < base.Height(); y++ {
		for x := 0; x < base.Width(); x++ {
			if base.Get(x, y) {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	//nolint:gosec
	f, err := os.Create(filepath.Join(dir, storeImageName))
	if err != nil {
		return errors.Wrapf(err, "cannot create traversible of %q", building)
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	if err := qoi.Encode(f, img); err != nil {
		return errors.Wrapf(err, "cannot encode traversible of %q", building)
	}

	metaBytes, err := json.MarshalIndent(storeMeta{Resolution: resolution, Map: g.Map()}, "", "  ")
	if err != nil {
		return err
	}
	//nolint:gosec
	if err := os.WriteFile(filepath.Join(dir, storeMetaName), metaBytes, 0o640); err != nil {
		return errors.Wrapf(err, "cannot write traversible metadata of %q", building)
	}
	s.logger.Infow("saved traversible", "building", building, "dir", dir)
	return nil
}
