// Package transform holds the camera models used to lift rendered depth into 3D.
package transform

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/humanav/utils"
)

// ErrNoIntrinsics is when a camera does not have intrinsics parameters or other parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// ErrFOVMismatch is returned when a pinhole model is requested for a camera whose horizontal and
// vertical fields of view differ. Square pixels with a single focal length are assumed.
var ErrFOVMismatch = errors.New("horizontal and vertical field of view must be equal")

// NewNoIntrinsicsError is used when the intriniscs are not defined.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

// PinholeCameraIntrinsics holds the parameters necessary to do a perspective projection of a 3D scene to the 2D plane.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// NewPinholeCameraIntrinsicsFromFOV builds the intrinsics of an ideal pinhole camera from its image
// size and fields of view in degrees. The principal point sits at the pixel center of the image,
// i.e. ((width-1)/2, (height-1)/2), and the focal length spans half the image width.
func NewPinholeCameraIntrinsicsFromFOV(width, height int, fovHorizontal, fovVertical float64) (*PinholeCameraIntrinsics, error) {
	if fovHorizontal != fovVertical {
		return nil, errors.Wrapf(ErrFOVMismatch, "got %v and %v", fovHorizontal, fovVertical)
	}
	if fovVertical <= 0 || fovVertical >= 180 {
		return nil, NewNoIntrinsicsError(fmt.Sprintf("Invalid field of view %#v", fovVertical))
	}
	f := (float64(width) / 2.) / math.Tan(utils.DegToRad(fovVertical/2.))
	params := &PinholeCameraIntrinsics{
		Width:  width,
		Height: height,
		Fx:     f,
		Fy:     f,
		Ppx:    float64(width-1) / 2.,
		Ppy:    float64(height-1) / 2.,
	}
	return params, params.CheckValid()
}

// CheckValid checks if the fields for PinholeCameraIntrinsics have valid inputs.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("Intrinsics do not exist")
	}
	if params.Width == 0 || params.Height == 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid size (%#v, %#v)", params.Width, params.Height))
	}
	if params.Fx <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fx = %#v", params.Fx))
	}
	if params.Fy <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fy = %#v", params.Fy))
	}
	if params.Ppx < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal X point Ppx = %#v", params.Ppx))
	}
	if params.Ppy < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal Y point Ppy = %#v", params.Ppy))
	}
	return nil
}

// PixelToPoint lifts pixel (u, v) at the given forward depth into the camera frame used by the
// occupancy pipeline: X to the right, Y forward along the optical axis and Z up. Image rows grow
// downward, so row v maps to height (Height-1-v).
func (params *PinholeCameraIntrinsics) PixelToPoint(u, v, depth float64) r3.Vector {
	if params == nil {
		return r3.Vector{}
	}
	row := float64(params.Height-1) - v
	return r3.Vector{
		X: (u - params.Ppx) * depth / params.Fx,
		Y: depth,
		Z: (row - params.Ppy) * depth / params.Fy,
	}
}

// PointToPixel projects a camera frame point back onto the image plane. Points at or behind the
// camera return negative coordinates so that bounds checks filter them out.
func (params *PinholeCameraIntrinsics) PointToPixel(p r3.Vector) (float64, float64) {
	if p.Y <= 0 {
		return -1.0, -1.0
	}
	u := p.X*params.Fx/p.Y + params.Ppx
	row := p.Z*params.Fy/p.Y + params.Ppy
	return u, float64(params.Height-1) - row
}
