package scene

import (
	"context"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/humanav/config"
	"go.viam.com/humanav/rimage"
	"go.viam.com/humanav/spatialmath"
	"go.viam.com/humanav/traversability"
	"go.viam.com/humanav/utils"
)

// lookAheadRadius is how far in front of the camera, in meters, the look-at point is placed.
const lookAheadRadius = 2.

// Perturbation jitters a render node. DX and DY are in grid cells, DTheta in node heading units.
type Perturbation struct {
	DX     float64
	DY     float64
	DTheta float64
	// Flip mirrors the captured frame horizontally.
	Flip bool
}

// CameraPose is a camera extrinsic in the mesh frame, in meters.
type CameraPose struct {
	Position r3.Vector
	LookAt   r3.Vector
	Up       r3.Vector
}

// ResolveCamera computes where the camera of a robot standing at node looks from. The node is in
// grid cells with a heading that is scaled by the robot's delta theta.
func ResolveCamera(
	node spatialmath.Pose3,
	perturb Perturbation,
	auxDeltaTheta float64,
	robot config.RobotConfig,
	m traversability.Map,
) CameraPose {
	lookTheta := 3.*math.Pi/2. - (node.Theta+perturb.DTheta+auxDeltaTheta)*robot.DeltaTheta
	position := r3.Vector{
		X: ((node.X+perturb.DX)*m.Resolution + m.Origin.X) / 100.,
		Y: ((node.Y+perturb.DY)*m.Resolution + m.Origin.Y) / 100.,
		Z: robot.SensorHeight / 100.,
	}
	elevation := lookAheadRadius * math.Tan(utils.DegToRad(robot.CameraElevationDegree))
	lookAt := position.Add(r3.Vector{
		X: -lookAheadRadius * math.Sin(lookTheta),
		Y: -lookAheadRadius * math.Cos(lookTheta),
		Z: elevation,
	})
	return CameraPose{Position: position, LookAt: lookAt, Up: r3.Vector{Z: 1}}
}

// RenderNodes captures modality from every node. The building is made visible and the human
// visibility set once before the batch, and the building is hidden again after it. perturbs may
// be nil, otherwise it needs one entry per node.
func (b *Building) RenderNodes(
	ctx context.Context,
	nodes []spatialmath.Pose3,
	modality config.Modality,
	perturbs []Perturbation,
	auxDeltaTheta float64,
	humanVisible bool,
) (frames []*rimage.Frame, err error) {
	if b.backend == nil {
		return nil, errors.New("no backend attached")
	}
	if perturbs != nil && len(perturbs) != len(nodes) {
		return nil, errors.Errorf("got %d perturbations for %d nodes", len(perturbs), len(nodes))
	}
	if err := b.SetVisible(ctx, true); err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Combine(err, b.SetVisible(ctx, false))
		if err != nil {
			frames = nil
		}
	}()
	if err := b.SetHumanVisible(ctx, humanVisible); err != nil {
		return nil, err
	}

	frames = make([]*rimage.Frame, 0, len(nodes))
	for i, node := range nodes {
		var perturb Perturbation
		if perturbs != nil {
			perturb = perturbs[i]
		}
		pose := ResolveCamera(node, perturb, auxDeltaTheta, b.cfg.Robot, b.grid.Map())
		if err := b.backend.PositionCamera(ctx, pose.Position, pose.LookAt, pose.Up); err != nil {
			return nil, errors.Wrapf(err, "cannot position camera for node %d", i)
		}
		frame, err := b.backend.Render(ctx, modality)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot render node %d", i)
		}
		if perturb.Flip {
			frame = frame.FlipH()
		}
		frames = append(frames, frame)
	}
	return frames, nil
}
