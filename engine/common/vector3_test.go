package common

import (
	"math"
	"testing"

	"github.com/bmizerany/assert"
)

func almostEqual(a, b Coord) bool {
	return math.Abs(float64(a-b)) < 1e-5
}

func TestVector3(t *testing.T) {
	a := Vec3(1, 2, 2)
	assert.Equal(t, Coord(3), a.Length())
	assert.Equal(t, Vec3(2, 4, 4), a.Mul(2))
	assert.Equal(t, Vec3(0, 0, 0), a.Sub(a))
	assert.Equal(t, Vec3(2, 4, 4), a.Add(a))
	assert.Equal(t, Coord(9), a.Dot(a))
	assert.Equal(t, Coord(3), a.DistanceTo(Vector3{}))
	assert.T(t, Vector3{}.IsZero(), "should be zero")
}

func TestNormalize(t *testing.T) {
	n := Vec3(0, 3, 4).Normalized()
	assert.T(t, almostEqual(n.Length(), 1), "should be unit length")
	assert.T(t, almostEqual(n.Y, 0.6), "y should be 0.6")
	assert.T(t, almostEqual(n.Z, 0.8), "z should be 0.8")

	var zero Vector3
	zero.Normalize()
	assert.T(t, zero.IsZero(), "zero vector should stay zero")
}
