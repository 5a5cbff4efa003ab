package ai

import "math"

// Vec3 is a point or direction in world space. The ground plane is XZ; Y is height.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// epsilon below which a vector is treated as zero-length.
const epsilon = 1e-9

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

func (v Vec3) LenSq() float64 { return v.Dot(v) }

func (v Vec3) Len() float64 { return math.Sqrt(v.LenSq()) }

// Dist returns the Euclidean distance between v and o.
func (v Vec3) Dist(o Vec3) float64 { return o.Sub(v).Len() }

// Normalize returns the unit vector of v. ok is false for a zero-length vector,
// in which case the zero vector is returned.
func (v Vec3) Normalize() (unit Vec3, ok bool) {
	l := v.Len()
	if l < epsilon || math.IsNaN(l) || math.IsInf(l, 0) {
		return Vec3{}, false
	}
	return v.Scale(1 / l), true
}

// Flat projects v onto the ground plane.
func (v Vec3) Flat() Vec3 { return Vec3{X: v.X, Z: v.Z} }

// AngleBetween returns the angle in degrees between a and b.
// ok is false when either vector has zero length.
func AngleBetween(a, b Vec3) (deg float64, ok bool) {
	ua, okA := a.Normalize()
	ub, okB := b.Normalize()
	if !okA || !okB {
		return 0, false
	}
	cos := ua.Dot(ub)
	// Rounding can push the dot product just outside [-1, 1].
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos) * 180 / math.Pi, true
}
