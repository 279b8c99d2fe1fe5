package simulator

import (
	"context"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/humanav/config"
	"go.viam.com/humanav/pointcloud"
	"go.viam.com/humanav/rimage"
	"go.viam.com/humanav/rimage/transform"
	"go.viam.com/humanav/spatialmath"
	"go.viam.com/humanav/utils"
)

// Depth is the result of RenderDepth: the raw disparity of every frame and its points binned
// around the robot.
type Depth struct {
	Disparity []*rimage.DisparityMap
	Bins      []*pointcloud.Bins
}

// RenderDepth renders disparity from every (start, theta) pair, starts in grid cells and thetas in
// radians, and turns each frame into occupancy bins: the frame is converted to metric depth,
// optionally clipped, lifted into a point cloud in centimeters, leveled to the floor, turned to the
// world axes of a robot heading pose.Theta and binned into mapSize x mapSize cells of xyResolution
// centimeters centered on the robot. Heights are split into three bands at the bottom and top of
// the robot body.
func (s *Simulator) RenderDepth(
	ctx context.Context,
	starts []r2.Point,
	thetas []float64,
	xyResolution float64,
	mapSize int,
	pose spatialmath.Pose3,
	humanVisible bool,
) (*Depth, error) {
	if s.building == nil {
		return nil, errors.New("depth needs loaded meshes")
	}
	if !s.cfg.Camera.Has(config.ModalityDisparity) {
		return nil, errors.Wrap(config.ErrUnsupportedModality, "disparity is not among the configured modalities")
	}
	if len(starts) != len(thetas) {
		return nil, errors.Errorf("got %d starts and %d headings", len(starts), len(thetas))
	}
	camera := s.cfg.Camera
	params, err := transform.NewPinholeCameraIntrinsicsFromFOV(camera.Width, camera.Height, camera.FOVHorizontal, camera.FOVVertical)
	if err != nil {
		return nil, err
	}

	frames, err := s.building.RenderNodes(ctx, s.nodes(starts, thetas), config.ModalityDisparity, nil, 0, humanVisible)
	if err != nil {
		return nil, err
	}
	out := &Depth{
		Disparity: make([]*rimage.DisparityMap, len(frames)),
		Bins:      make([]*pointcloud.Bins, len(frames)),
	}
	work := make([]utils.SimpleFunc, len(frames))
	for i, frame := range frames {
		if frame.Disparity == nil {
			return nil, errors.Errorf("frame %d has no disparity", i)
		}
		i, disparity := i, frame.Disparity
		out.Disparity[i] = disparity
		work[i] = func(ctx context.Context) error {
			bins, err := DepthToBins(disparity, params, s.cfg.Robot, camera.MaxDepth(), xyResolution, mapSize, pose)
			if err != nil {
				return errors.Wrapf(err, "cannot bin frame %d", i)
			}
			out.Bins[i] = bins
			return nil
		}
	}
	if err := utils.RunInParallel(ctx, work); err != nil {
		return nil, err
	}
	return out, nil
}

// DepthToBins is the per frame half of RenderDepth. maxDepth is in meters; finite depths at or
// beyond it are clamped to it while missing returns stay infinite. +Inf disables clipping. The
// bins are centered on the robot at pose, with axes aligned to the world, so only the heading of
// pose matters.
func DepthToBins(
	disparity *rimage.DisparityMap,
	params *transform.PinholeCameraIntrinsics,
	robot config.RobotConfig,
	maxDepth float64,
	xyResolution float64,
	mapSize int,
	pose spatialmath.Pose3,
) (*pointcloud.Bins, error) {
	depth := disparity.ToDepth()
	depth.Clip(maxDepth)
	cloud, err := pointcloud.FromDepth(depth, params)
	if err != nil {
		return nil, err
	}
	cloud.Scale(100.)
	pointcloud.MakeGeocentric(cloud, robot.SensorHeight, robot.CameraElevationDegree)
	pointcloud.AlignToHeading(cloud, pose.Theta)
	return pointcloud.Bin(cloud, mapSize, xyResolution, []float64{robot.Base, robot.Base + robot.Height})
}
