package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// angleEpsilon is the smallest rotation that is not treated as the identity.
const angleEpsilon = 1e-8

// See here for a thorough explanation: https://en.wikipedia.org/wiki/Axis%E2%80%93angle_representation
// An orientation can be expressed by specifying an axis, i.e. a line from the origin to a point on
// the unit sphere, represented by (rx, ry, rz), and a rotation around that axis, theta.

// R4AA represents an R4 axis angle.
type R4AA struct {
	Theta float64 `json:"th"`
	RX    float64 `json:"x"`
	RY    float64 `json:"y"`
	RZ    float64 `json:"z"`
}

// NewR4AA creates an R4AA that rotates by theta around axis.
func NewR4AA(axis r3.Vector, theta float64) *R4AA {
	return &R4AA{Theta: theta, RX: axis.X, RY: axis.Y, RZ: axis.Z}
}

// ToQuat converts an R4 axis angle to a unit quaternion
// See: https://www.euclideanspace.com/maths/geometry/rotations/conversions/angleToQuaternion/index.htm
func (r4 *R4AA) ToQuat() quat.Number {
	sinA := math.Sin(r4.Theta / 2)
	// Ensure that point xyz is on the unit sphere
	r4.Normalize()

	return quat.Number{
		Real: math.Cos(r4.Theta / 2),
		Imag: r4.RX * sinA,
		Jmag: r4.RY * sinA,
		Kmag: r4.RZ * sinA,
	}
}

// Normalize scales the x, y, and z components of a R4 axis angle to be on the unit sphere.
func (r4 *R4AA) Normalize() {
	norm := math.Sqrt(r4.RX*r4.RX + r4.RY*r4.RY + r4.RZ*r4.RZ)
	if norm == 0.0 { // prevent division by 0
		panic("cannot normalize R4AA, divide by zero")
	}
	r4.RX /= norm
	r4.RY /= norm
	r4.RZ /= norm
}

// RotationMatrix returns the 3x3 matrix of the rotation. Rotations smaller than angleEpsilon are
// returned as the identity.
func (r4 *R4AA) RotationMatrix() *mat.Dense {
	if math.Abs(r4.Theta) <= angleEpsilon {
		return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	}
	return QuatToRotationMatrix(r4.ToQuat())
}

// QuatToRotationMatrix converts a unit quaternion to its rotation matrix.
func QuatToRotationMatrix(q quat.Number) *mat.Dense {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return mat.NewDense(3, 3, []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	})
}

// RotationMatrix returns the matrix rotating by angle radians about axis, which need not be of unit
// length.
func RotationMatrix(axis r3.Vector, angle float64) *mat.Dense {
	return NewR4AA(axis, angle).RotationMatrix()
}

// RotateVectors applies rot to every vector in place, i.e. v = rot * v.
func RotateVectors(rot mat.Matrix, vectors []r3.Vector) {
	r := mat.DenseCopyOf(rot).RawMatrix().Data
	for i, v := range vectors {
		vectors[i] = r3.Vector{
			X: r[0]*v.X + r[1]*v.Y + r[2]*v.Z,
			Y: r[3]*v.X + r[4]*v.Y + r[5]*v.Z,
			Z: r[6]*v.X + r[7]*v.Y + r[8]*v.Z,
		}
	}
}
