// Package picking provides ray casting against the viewer's pickable planes.
package picking

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Ray represents a ray in 3D space with origin and direction.
type Ray struct {
	Origin    mgl32.Vec3
	Direction mgl32.Vec3 // Normalized direction
}

// ScreenToNDC converts pixel coordinates to normalized device coordinates in
// [-1, 1], with +Y up.
func ScreenToNDC(screenX, screenY, viewportW, viewportH float32) (ndcX, ndcY float32) {
	return 2*screenX/viewportW - 1, 1 - 2*screenY/viewportH
}

// ScreenToRay converts screen coordinates to a world-space ray.
// invViewProj is the inverse of the view-projection matrix.
func ScreenToRay(screenX, screenY, viewportW, viewportH float32, invViewProj mgl32.Mat4) Ray {
	ndcX, ndcY := ScreenToNDC(screenX, screenY, viewportW, viewportH)

	near := invViewProj.Mul4x1(mgl32.Vec4{ndcX, ndcY, -1, 1})
	far := invViewProj.Mul4x1(mgl32.Vec4{ndcX, ndcY, 1, 1})

	// Perspective divide
	if near[3] != 0 {
		near = near.Mul(1 / near[3])
	}
	if far[3] != 0 {
		far = far.Mul(1 / far[3])
	}

	origin := near.Vec3()
	dir := far.Vec3().Sub(origin)
	if dir.Len() > 0 {
		dir = dir.Normalize()
	}
	return Ray{Origin: origin, Direction: dir}
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float32) mgl32.Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// IntersectPlaneY intersects the ray with the horizontal plane at planeY and
// returns the distance along the ray.
func (r Ray) IntersectPlaneY(planeY float32) (t float32, ok bool) {
	if math.Abs(float64(r.Direction[1])) < 0.001 {
		return 0, false // Ray parallel to plane
	}
	t = (planeY - r.Origin[1]) / r.Direction[1]
	if t < 0 {
		return 0, false // Intersection behind ray origin
	}
	return t, true
}

// Rect is an axis-aligned rectangle on a horizontal plane, in world X/Z.
type Rect struct {
	Y                      float32
	MinX, MinZ, MaxX, MaxZ float32
}

// NewRect creates a rectangle of the given extent centered at center.
func NewRect(center mgl32.Vec3, width, depth float32) Rect {
	return Rect{
		Y:    center[1],
		MinX: center[0] - width/2, MaxX: center[0] + width/2,
		MinZ: center[2] - depth/2, MaxZ: center[2] + depth/2,
	}
}

// Corners returns the four corners counter-clockwise from (MinX, MinZ).
func (q Rect) Corners() [4]mgl32.Vec3 {
	return [4]mgl32.Vec3{
		{q.MinX, q.Y, q.MinZ},
		{q.MaxX, q.Y, q.MinZ},
		{q.MaxX, q.Y, q.MaxZ},
		{q.MinX, q.Y, q.MaxZ},
	}
}

// IntersectRect tests the ray against a horizontal rectangle.
func (r Ray) IntersectRect(q Rect) (t float32, ok bool) {
	t, ok = r.IntersectPlaneY(q.Y)
	if !ok {
		return 0, false
	}
	p := r.At(t)
	if p[0] < q.MinX || p[0] > q.MaxX || p[2] < q.MinZ || p[2] > q.MaxZ {
		return 0, false
	}
	return t, true
}
