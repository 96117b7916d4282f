package geom

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Affine is a row-major 3x4 affine transform as stored in 3MF transform
// attributes: elements 0..8 are the three rows of the linear part,
// elements 9..11 are the translation. A point transforms as a row
// vector: p' = p*M + t.
type Affine [12]float64

// ErrAffineTokens is returned when a transform attribute does not hold
// exactly twelve scalars.
var ErrAffineTokens = errors.New("affine transform must have 12 elements")

// AffineIdentity returns the identity transform.
func AffineIdentity() Affine {
	return Affine{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
		0, 0, 0,
	}
}

// ComposeZ builds the transform for an instance placement: rotation
// about Z, uniform scale and a planar offset. origin is the object's
// accumulated origin translation, re-added so that a written file
// restores the original placement on re-import.
func ComposeZ(rotation, scale float64, offset Vec2, origin Vec3) Affine {
	c, s := math.Cos(rotation), math.Sin(rotation)
	return Affine{
		c * scale, s * scale, 0,
		-s * scale, c * scale, 0,
		0, 0, scale,
		offset.X + origin.X, offset.Y + origin.Y, 0,
	}
}

// ParseAffine parses the space-separated 12-element transform string.
func ParseAffine(s string) (Affine, error) {
	var a Affine
	fields := strings.Fields(s)
	if len(fields) != 12 {
		return a, fmt.Errorf("%w, got %d", ErrAffineTokens, len(fields))
	}
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return a, fmt.Errorf("affine element %d: %w", i, err)
		}
		a[i] = v
	}
	return a, nil
}

// String renders the transform in 3MF attribute form.
func (a Affine) String() string {
	parts := make([]string, 12)
	for i, v := range a {
		if v == 0 {
			// Normalize negative zero out of the serialized form.
			v = 0
		}
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, " ")
}

// Apply transforms a point.
func (a Affine) Apply(v Vec3) Vec3 {
	return Vec3{
		v.X*a[0] + v.Y*a[3] + v.Z*a[6] + a[9],
		v.X*a[1] + v.Y*a[4] + v.Z*a[7] + a[10],
		v.X*a[2] + v.Y*a[5] + v.Z*a[8] + a[11],
	}
}

// Translation returns the translation part.
func (a Affine) Translation() Vec3 {
	return Vec3{a[9], a[10], a[11]}
}

// Decompose splits the transform into per-axis scale, XYZ euler angles
// and translation. The rotation goes through a quaternion intermediate
// with singularity handling at the poles; angles are in [0, 2*pi).
func (a Affine) Decompose() (scale, euler, translation Vec3) {
	translation = a.Translation()

	scale = Vec3{
		math.Sqrt(a[0]*a[0] + a[1]*a[1] + a[2]*a[2]),
		math.Sqrt(a[3]*a[3] + a[4]*a[4] + a[5]*a[5]),
		math.Sqrt(a[6]*a[6] + a[7]*a[7] + a[8]*a[8]),
	}

	// Normalize each row by its scale to isolate the rotation.
	var r [9]float64
	copy(r[:], a[:9])
	if scale.X != 0 {
		r[0] /= scale.X
		r[1] /= scale.X
		r[2] /= scale.X
	}
	if scale.Y != 0 {
		r[3] /= scale.Y
		r[4] /= scale.Y
		r[5] /= scale.Y
	}
	if scale.Z != 0 {
		r[6] /= scale.Z
		r[7] /= scale.Z
		r[8] /= scale.Z
	}

	qw := math.Sqrt(math.Max(0, 1+r[0]+r[4]+r[8])) / 2
	qx := math.Sqrt(math.Max(0, 1+r[0]-r[4]-r[8])) / 2
	qy := math.Sqrt(math.Max(0, 1-r[0]+r[4]-r[8])) / 2
	qz := math.Sqrt(math.Max(0, 1-r[0]-r[4]+r[8])) / 2

	// Sign correction from the off-diagonal differences.
	if qx*(r[5]-r[7]) <= 0 {
		qx = -qx
	}
	if qy*(r[6]-r[2]) <= 0 {
		qy = -qy
	}
	if qz*(r[1]-r[3]) <= 0 {
		qz = -qz
	}

	mag := math.Sqrt(qw*qw + qx*qx + qy*qy + qz*qz)
	if mag != 0 {
		qw /= mag
		qx /= mag
		qy /= mag
		qz /= mag
	}

	test := qx*qy + qz*qw
	switch {
	case test > 0.499: // north pole
		euler = Vec3{0, 2 * math.Atan2(qx, qw), math.Pi / 2}
	case test < -0.499: // south pole
		euler = Vec3{0, -2 * math.Atan2(qx, qw), -math.Pi / 2}
	default:
		euler = Vec3{
			math.Atan2(2*qx*qw-2*qy*qz, 1-2*qx*qx-2*qz*qz),
			math.Atan2(2*qy*qw-2*qx*qz, 1-2*qy*qy-2*qz*qz),
			math.Asin(2 * test),
		}
	}
	if euler.X < 0 {
		euler.X += 2 * math.Pi
	}
	if euler.Y < 0 {
		euler.Y += 2 * math.Pi
	}
	if euler.Z < 0 {
		euler.Z += 2 * math.Pi
	}
	return scale, euler, translation
}
