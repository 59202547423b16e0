package common

import (
	"fmt"
	"math"
)

// Transform is a flat 2D affine transform stored as [a, b, c, d, e, f],
// equivalent to the matrix
//
//	| a c e |
//	| b d f |
//	| 0 0 1 |
//
// Coordinates transform as x' = a*x + c*y + e, y' = b*x + d*y + f.
type Transform [6]float64

// IdentityTransform returns the identity transform.
//
// Returns:
//   - Transform: a transform that maps every coordinate to itself
func IdentityTransform() Transform {
	return Transform{1, 0, 0, 1, 0, 0}
}

// Apply transforms a single coordinate pair.
//
// Parameters:
//   - x: the input x coordinate
//   - y: the input y coordinate
//
// Returns:
//   - float64: the transformed x coordinate
//   - float64: the transformed y coordinate
func (t Transform) Apply(x, y float64) (float64, float64) {
	return t[0]*x + t[2]*y + t[4], t[1]*x + t[3]*y + t[5]
}

// Compose returns the transform equivalent to applying other first and
// the receiver second.
//
// Parameters:
//   - other: the transform applied first
//
// Returns:
//   - Transform: the combined transform
func (t Transform) Compose(other Transform) Transform {
	return Transform{
		t[0]*other[0] + t[2]*other[1],
		t[1]*other[0] + t[3]*other[1],
		t[0]*other[2] + t[2]*other[3],
		t[1]*other[2] + t[3]*other[3],
		t[0]*other[4] + t[2]*other[5] + t[4],
		t[1]*other[4] + t[3]*other[5] + t[5],
	}
}

// Invert returns the inverse transform.
//
// Returns:
//   - Transform: the inverse transform
//   - error: an error if the transform is singular and cannot be inverted
func (t Transform) Invert() (Transform, error) {
	det := t[0]*t[3] - t[1]*t[2]
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return Transform{}, fmt.Errorf("transform %v is not invertible", t)
	}
	return Transform{
		t[3] / det,
		-t[1] / det,
		-t[2] / det,
		t[0] / det,
		(t[2]*t[5] - t[3]*t[4]) / det,
		(t[1]*t[4] - t[0]*t[5]) / det,
	}, nil
}

// ScaleTransform returns a transform scaling by sx and sy about the origin.
//
// Parameters:
//   - sx: the x scale factor
//   - sy: the y scale factor
//
// Returns:
//   - Transform: the scaling transform
func ScaleTransform(sx, sy float64) Transform {
	return Transform{sx, 0, 0, sy, 0, 0}
}

// TranslateTransform returns a transform translating by dx and dy.
//
// Parameters:
//   - dx: the x translation
//   - dy: the y translation
//
// Returns:
//   - Transform: the translating transform
func TranslateTransform(dx, dy float64) Transform {
	return Transform{1, 0, 0, 1, dx, dy}
}
