package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/humanav/rimage"
	"go.viam.com/humanav/rimage/transform"
	"go.viam.com/humanav/spatialmath"
	"go.viam.com/humanav/utils"
)

// FromDepth lifts every pixel of dm into the camera frame of params (X right, Y forward, Z up),
// keeping the units of the depth map. Infinite depths produce non-finite points.
func FromDepth(dm *rimage.DepthMap, params *transform.PinholeCameraIntrinsics) (*Organized, error) {
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	if dm.Width() != params.Width || dm.Height() != params.Height {
		return nil, errors.Errorf("depth map dimension and intrinsics don't match DepthMap(%d,%d) != Intrinsics(%d,%d)",
			dm.Width(), dm.Height(), params.Width, params.Height)
	}
	cloud := NewOrganized(dm.Width(), dm.Height())
	for v := 0; v < dm.Height(); v++ {
		for u := 0; u < dm.Width(); u++ {
			cloud.Set(u, v, params.PixelToPoint(float64(u), float64(v), dm.GetDepth(u, v)))
		}
	}
	return cloud, nil
}

// MakeGeocentric levels a camera frame cloud: it undoes the camera pitch by rotating about +x by
// elevationDegrees and lifts the result by the sensor height so that z is height above the floor.
func MakeGeocentric(cloud *Organized, sensorHeight, elevationDegrees float64) *Organized {
	rot := spatialmath.RotationMatrix(r3.Vector{X: 1}, utils.DegToRad(elevationDegrees))
	cloud.Rotate(rot)
	return cloud.Translate(r3.Vector{Z: sensorHeight})
}

// AlignToHeading turns a geocentric cloud whose forward axis is +y into world axes for a robot
// heading theta. Positions stay relative to the robot, in centimeters.
func AlignToHeading(cloud *Organized, theta float64) *Organized {
	rot := spatialmath.RotationMatrix(r3.Vector{Z: 1}, theta-math.Pi/2)
	return cloud.Rotate(rot)
}
