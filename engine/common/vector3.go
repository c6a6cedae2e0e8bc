package common

import (
	"fmt"
	"math"
)

// Coord is the type of coordinations (x, y, z)
type Coord float32

// Vector3 is the type of positions, velocities and directions
type Vector3 struct {
	X Coord `json:"x" msgpack:"x"`
	Y Coord `json:"y" msgpack:"y"`
	Z Coord `json:"z" msgpack:"z"`
}

// Vec3 is a short constructor of Vector3
func Vec3(x, y, z float64) Vector3 {
	return Vector3{Coord(x), Coord(y), Coord(z)}
}

func (p Vector3) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", p.X, p.Y, p.Z)
}

// DistanceTo calculates distance between two positions
func (p Vector3) DistanceTo(o Vector3) Coord {
	return p.Sub(o).Length()
}

// Length returns the magnitude of the vector
func (p Vector3) Length() Coord {
	return Coord(math.Sqrt(float64(p.Dot(p))))
}

// Dot returns the dot product p·o
func (p Vector3) Dot(o Vector3) Coord {
	return p.X*o.X + p.Y*o.Y + p.Z*o.Z
}

// Sub calculates Vector3 p - Vector3 o
func (p Vector3) Sub(o Vector3) Vector3 {
	return Vector3{p.X - o.X, p.Y - o.Y, p.Z - o.Z}
}

// Add calculates Vector3 p + Vector3 o
func (p Vector3) Add(o Vector3) Vector3 {
	return Vector3{p.X + o.X, p.Y + o.Y, p.Z + o.Z}
}

// Mul calculates Vector3 p * m
func (p Vector3) Mul(m Coord) Vector3 {
	return Vector3{p.X * m, p.Y * m, p.Z * m}
}

// IsZero checks if all components are zero
func (p Vector3) IsZero() bool {
	return p.X == 0 && p.Y == 0 && p.Z == 0
}

// Normalize scales p to unit length; zero vectors are left untouched
func (p *Vector3) Normalize() {
	d := p.Length()
	if d == 0 {
		return
	}
	p.X /= d
	p.Y /= d
	p.Z /= d
}

// Normalized returns the unit vector of p
func (p Vector3) Normalized() Vector3 {
	p.Normalize()
	return p
}
