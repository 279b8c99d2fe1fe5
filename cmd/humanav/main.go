// Package main is the humanav command line: it renders views of a building, with or without a
// human in it, and builds traversible caches.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/humanav/config"
	"go.viam.com/humanav/logging"
	"go.viam.com/humanav/simulator"
	"go.viam.com/humanav/spatialmath"
)

const (
	// Flags.
	flagConfig      = "config"
	flagDebug       = "debug"
	flagBuilding    = "building"
	flagOut         = "out"
	flagX           = "x"
	flagY           = "y"
	flagTheta       = "theta"
	flagHuman       = "human"
	flagHumanX      = "human-x"
	flagHumanY      = "human-y"
	flagHumanTheta  = "human-theta"
	flagHumanSpeed  = "human-speed"
	flagIdentity    = "identity-seed"
	flagMeshSeed    = "mesh-seed"
	flagCrop        = "crop"
	flagBinRes      = "bin-resolution"
	flagBinMapSize  = "bin-map-size"
	flagForceReload = "force"
)

func main() {
	var logger logging.Logger

	app := &cli.App{
		Name:  "humanav",
		Usage: "render robot views of buildings populated by humans",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     flagConfig,
				Aliases:  []string{"c"},
				Usage:    "load configuration from `FILE`",
				Required: true,
			},
			&cli.StringFlag{
				Name:  flagBuilding,
				Usage: "override the building named in the config",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger = logging.NewDebugLogger("humanav")
			} else {
				logger = logging.NewLogger("humanav")
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "render",
				Usage:     "render the configured modalities at a map pose and write them as ppm files",
				UsageText: "humanav --config FILE render --x 7.5 --y 12 --theta -1.3 [--human ...]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagOut, Value: ".", Usage: "output `DIR`"},
					&cli.Float64Flag{Name: flagX, Usage: "robot x in meters from the map origin"},
					&cli.Float64Flag{Name: flagY, Usage: "robot y in meters from the map origin"},
					&cli.Float64Flag{Name: flagTheta, Usage: "robot heading in radians"},
					&cli.BoolFlag{Name: flagHuman, Usage: "place a human before rendering"},
					&cli.Float64Flag{Name: flagHumanX, Usage: "human x in meters from the map origin"},
					&cli.Float64Flag{Name: flagHumanY, Usage: "human y in meters from the map origin"},
					&cli.Float64Flag{Name: flagHumanTheta, Usage: "human heading in radians"},
					&cli.Float64Flag{Name: flagHumanSpeed, Value: .7, Usage: "human speed in meters per second"},
					&cli.Int64Flag{Name: flagIdentity, Value: 48, Usage: "seed of the human identity"},
					&cli.Int64Flag{Name: flagMeshSeed, Value: 20, Usage: "seed of the human mesh"},
					&cli.IntFlag{Name: flagCrop, Usage: "topview crop size in cells, defaults to the camera width"},
					&cli.Float64Flag{Name: flagBinRes, Value: 5, Usage: "depth bin size in centimeters"},
					&cli.IntFlag{Name: flagBinMapSize, Value: 64, Usage: "depth bin map size in cells"},
				},
				Action: func(c *cli.Context) error {
					return renderAction(c, logger)
				},
			},
			{
				Name:  "traversible",
				Usage: "build the traversible of a building, store it in the traversible dir and report its size",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: flagForceReload, Usage: "rebuild even when a cached traversible exists"},
				},
				Action: func(c *cli.Context) error {
					return traversibleAction(c, logger)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context, logger logging.Logger) (*config.Config, error) {
	cfg, err := config.Read(c.Context, c.String(flagConfig), logger)
	if err != nil {
		return nil, err
	}
	if building := c.String(flagBuilding); building != "" {
		cfg.BuildingName = building
	}
	return cfg, nil
}

func renderAction(c *cli.Context, logger logging.Logger) (err error) {
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	sim, err := simulator.NewFromConfig(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, sim.Close(c.Context))
	}()

	if c.Bool(flagHuman) {
		pose := spatialmath.NewPose3(c.Float64(flagHumanX), c.Float64(flagHumanY), c.Float64(flagHumanTheta))
		if err := sim.AddHuman(
			c.Context, pose, c.Float64(flagHumanSpeed), c.Int64(flagIdentity), c.Int64(flagMeshSeed), false,
		); err != nil {
			return err
		}
		if identity, ok := sim.Identity(); ok {
			logger.Infow("placed human", "pose", pose, "gender", identity.Gender, "body_shape", identity.BodyShape)
		}
	}

	resolution, _, err := sim.TraversibleConfig(c.Context)
	if err != nil {
		return err
	}
	robot := spatialmath.NewPose3(c.Float64(flagX), c.Float64(flagY), c.Float64(flagTheta))
	starts := []r2.Point{{X: robot.X * 100 / resolution, Y: robot.Y * 100 / resolution}}
	thetas := []float64{robot.Theta}

	out := c.String(flagOut)
	if err := os.MkdirAll(out, 0o750); err != nil {
		return errors.Wrapf(err, "cannot create %q", out)
	}

	images, err := sim.RenderImages(c.Context, starts, thetas, c.Int(flagCrop), true)
	if err != nil {
		return err
	}
	for i, img := range images.RGB {
		path := filepath.Join(out, fmt.Sprintf("rgb_%d.ppm", i))
		if err := writePPM(path, img); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "wrote %s\n", path)
	}
	for i, topview := range images.Topviews {
		path := filepath.Join(out, fmt.Sprintf("topview_%d.ppm", i))
		if err := writePPM(path, topviewImage(topview)); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "wrote %s\n", path)
	}

	if !cfg.LoadMeshes || !cfg.Camera.Has(config.ModalityDisparity) {
		return nil
	}
	depth, err := sim.RenderDepth(c.Context, starts, thetas, c.Float64(flagBinRes), c.Int(flagBinMapSize), robot, true)
	if err != nil {
		return err
	}
	for i, disparity := range depth.Disparity {
		path := filepath.Join(out, fmt.Sprintf("depth_%d.ppm", i))
		if err := writePPM(path, depthImage(disparity, cfg.Camera.ZFar)); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "wrote %s\n", path)
	}
	summary, err := depthTable(depth)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, summary)
	return nil
}

func traversibleAction(c *cli.Context, logger logging.Logger) (err error) {
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	if cfg.TraversibleDir == "" {
		return errors.New("traversible_dir must be set to store the traversible")
	}
	cfg.LoadMeshes = true
	cfg.LoadTraversibleFromCache = !c.Bool(flagForceReload)
	cfg.Camera.Modalities = []config.Modality{config.ModalityOccupancyGrid}

	sim, err := simulator.NewFromConfig(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, sim.Close(c.Context))
	}()

	resolution, base, err := sim.TraversibleConfig(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s: %dx%d cells of %vcm, %d traversible\n",
		sim.Building().Name(), base.Width(), base.Height(), resolution, base.Count())
	return nil
}
