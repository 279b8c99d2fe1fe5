// Package spatialmath holds the planar pose algebra, rotations and mesh geometry used to compose
// humanav scenes.
package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// Pose3 is a position on the floor plane in meters plus a heading in radians. Theta is never
// wrapped; it is only ever consumed through its sine and cosine.
type Pose3 struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
}

// NewPose3 returns a Pose3 at (x, y) facing theta.
func NewPose3(x, y, theta float64) Pose3 {
	return Pose3{X: x, Y: y, Theta: theta}
}

// Point returns the position component of the pose.
func (p Pose3) Point() r2.Point {
	return r2.Point{X: p.X, Y: p.Y}
}

func (p Pose3) String() string {
	return fmt.Sprintf("(%.4f, %.4f, %.4f)", p.X, p.Y, p.Theta)
}

// Pose3AlmostEqual compares two poses component-wise with the given tolerance.
func Pose3AlmostEqual(a, b Pose3, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol && math.Abs(a.Y-b.Y) <= tol && math.Abs(a.Theta-b.Theta) <= tol
}

// rotateXY multiplies the xy row vector of every vertex on the right by
//
//	R = | cos(theta)  sin(theta) |
//	    |-sin(theta)  cos(theta) |
//
// which rotates it counter-clockwise by theta. z is left untouched.
func rotateXY(vertices []r3.Vector, theta float64) {
	c, s := math.Cos(theta), math.Sin(theta)
	for i, v := range vertices {
		vertices[i].X = v.X*c - v.Y*s
		vertices[i].Y = v.X*s + v.Y*c
	}
}

// ToEgo expresses world frame vertices in the ego frame whose origin and x-axis are given by pose.
// The vertices are modified in place and returned for convenience.
func ToEgo(vertices []r3.Vector, pose Pose3) []r3.Vector {
	for i := range vertices {
		vertices[i].X -= pose.X
		vertices[i].Y -= pose.Y
	}
	rotateXY(vertices, -pose.Theta)
	return vertices
}

// ToWorld is the inverse of ToEgo: it rotates ego frame vertices by pose.Theta and then translates
// them by the pose position. The vertices are modified in place and returned for convenience.
func ToWorld(vertices []r3.Vector, pose Pose3) []r3.Vector {
	rotateXY(vertices, pose.Theta)
	for i := range vertices {
		vertices[i].X += pose.X
		vertices[i].Y += pose.Y
	}
	return vertices
}

// MapToVertexFrame converts a pose expressed relative to the traversability map (meters from the
// map origin) into the metric frame the meshes live in. originCm is the map origin in centimeters.
func MapToVertexFrame(mapPose Pose3, originCm r2.Point) Pose3 {
	return Pose3{
		X:     mapPose.X + originCm.X/100.,
		Y:     mapPose.Y + originCm.Y/100.,
		Theta: mapPose.Theta,
	}
}
