package main

import "math"

// Vec3 is a 3D vector. Y is up; the ground plane is y=0.
type Vec3 struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) LengthSq() float64 { return v.Dot(v) }
func (v Vec3) Length() float64   { return math.Sqrt(v.LengthSq()) }

// Normalize returns a unit vector, or the zero vector unchanged.
func (v Vec3) Normalize() Vec3 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

// HorizontalDist returns the distance between two points ignoring Y.
func HorizontalDist(a, b Vec3) float64 {
	dx := b.X - a.X
	dz := b.Z - a.Z
	return math.Sqrt(dx*dx + dz*dz)
}

// YawPitchDir converts a yaw/pitch pair (radians) into a unit direction.
// Yaw 0 faces +Z, increasing counter-clockwise seen from above; pitch is
// positive upward.
func YawPitchDir(yaw, pitch float64) Vec3 {
	cp := math.Cos(pitch)
	return Vec3{
		X: math.Sin(yaw) * cp,
		Y: math.Sin(pitch),
		Z: math.Cos(yaw) * cp,
	}
}

// RotateYaw rotates a vector around the Y axis.
func RotateYaw(v Vec3, yaw float64) Vec3 {
	s, c := math.Sin(yaw), math.Cos(yaw)
	return Vec3{
		X: v.X*c + v.Z*s,
		Y: v.Y,
		Z: -v.X*s + v.Z*c,
	}
}

// OrthoBasis returns two unit vectors perpendicular to dir and to each
// other, used to span the disk a spread cone is sampled over.
func OrthoBasis(dir Vec3) (Vec3, Vec3) {
	ref := Vec3{Y: 1}
	if math.Abs(dir.Y) > 0.99 {
		ref = Vec3{X: 1}
	}
	u := dir.Cross(ref).Normalize()
	v := dir.Cross(u).Normalize()
	return u, v
}

// RayAABB intersects a ray with an axis-aligned box using the slab
// method. Returns the distance along dir to the nearest intersection at
// or in front of the origin, and whether there was one. dir need not be
// normalized but distances are in its units.
func RayAABB(origin, dir, min, max Vec3) (float64, bool) {
	tMin := math.Inf(-1)
	tMax := math.Inf(1)

	o := [3]float64{origin.X, origin.Y, origin.Z}
	d := [3]float64{dir.X, dir.Y, dir.Z}
	lo := [3]float64{min.X, min.Y, min.Z}
	hi := [3]float64{max.X, max.Y, max.Z}

	for i := 0; i < 3; i++ {
		if d[i] == 0 {
			if o[i] < lo[i] || o[i] > hi[i] {
				return 0, false
			}
			continue
		}
		inv := 1 / d[i]
		t1 := (lo[i] - o[i]) * inv
		t2 := (hi[i] - o[i]) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tMin {
			tMin = t1
		}
		if t2 < tMax {
			tMax = t2
		}
		if tMin > tMax {
			return 0, false
		}
	}
	if tMax < 0 {
		return 0, false
	}
	if tMin < 0 {
		// Origin inside the box
		return 0, true
	}
	return tMin, true
}

// RaySphere intersects a ray (dir normalized) with a sphere. Returns the
// distance to the nearest intersection in front of the origin.
func RaySphere(origin, dir, center Vec3, radius float64) (float64, bool) {
	oc := origin.Sub(center)
	b := 2 * oc.Dot(dir)
	c := oc.LengthSq() - radius*radius
	disc := b*b - 4*c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	t1 := (-b - sq) / 2
	t2 := (-b + sq) / 2
	if t1 >= 0 {
		return t1, true
	}
	if t2 >= 0 {
		// Origin inside the sphere
		return 0, true
	}
	return 0, false
}
