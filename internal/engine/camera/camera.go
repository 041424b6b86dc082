// Package camera provides the orbit camera used to navigate the annotation scene.
package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/segview/internal/engine/picking"
)

// OrbitCamera orbits around a center point.
type OrbitCamera struct {
	// Center point to orbit around
	Center mgl32.Vec3

	// Spherical coordinates
	Distance  float32 // Distance from center
	RotationX float32 // Pitch (vertical angle, radians)
	RotationY float32 // Yaw (horizontal angle, radians)

	// Projection
	FovY      float32 // Vertical field of view, radians
	Near, Far float32

	// Constraints
	MinDistance float32
	MaxDistance float32
	MinPitch    float32
	MaxPitch    float32

	// Sensitivity
	DragSensitivity float32
	ZoomSensitivity float32
}

// NewOrbitCamera creates a camera looking down at the origin from 3 units up.
func NewOrbitCamera() *OrbitCamera {
	return &OrbitCamera{
		Distance:        3,
		RotationX:       1.5,
		FovY:            mgl32.DegToRad(75),
		Near:            0.1,
		Far:             100,
		MinDistance:     0.5,
		MaxDistance:     50,
		MinPitch:        0.1,
		MaxPitch:        1.55,
		DragSensitivity: 0.005,
		ZoomSensitivity: 0.1,
	}
}

// Position returns the camera position in world space.
func (c *OrbitCamera) Position() mgl32.Vec3 {
	pitch, yaw := float64(c.RotationX), float64(c.RotationY)
	offset := mgl32.Vec3{
		float32(math.Cos(pitch) * math.Sin(yaw)),
		float32(math.Sin(pitch)),
		float32(math.Cos(pitch) * math.Cos(yaw)),
	}
	return c.Center.Add(offset.Mul(c.Distance))
}

// ViewMatrix returns the view matrix for this camera.
func (c *OrbitCamera) ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position(), c.Center, mgl32.Vec3{0, 1, 0})
}

// ProjectionMatrix returns the perspective projection for a viewport.
func (c *OrbitCamera) ProjectionMatrix(width, height int) mgl32.Mat4 {
	aspect := float32(1)
	if height > 0 {
		aspect = float32(width) / float32(height)
	}
	return mgl32.Perspective(c.FovY, aspect, c.Near, c.Far)
}

// ViewProjection returns projection * view for a viewport.
func (c *OrbitCamera) ViewProjection(width, height int) mgl32.Mat4 {
	return c.ProjectionMatrix(width, height).Mul4(c.ViewMatrix())
}

// ScreenToRay casts a ray through a pixel of a width x height viewport.
func (c *OrbitCamera) ScreenToRay(x, y float32, width, height int) picking.Ray {
	inv := c.ViewProjection(width, height).Inv()
	return picking.ScreenToRay(x, y, float32(width), float32(height), inv)
}

// WorldToScreen projects p into pixel coordinates with the origin at the top
// left. ok is false when p is behind the camera.
func (c *OrbitCamera) WorldToScreen(p mgl32.Vec3, width, height int) (screen mgl32.Vec2, ok bool) {
	clip := c.ViewProjection(width, height).Mul4x1(p.Vec4(1))
	if clip[3] <= 0 {
		return mgl32.Vec2{}, false
	}
	ndc := clip.Vec3().Mul(1 / clip[3])
	return mgl32.Vec2{
		(ndc[0] + 1) / 2 * float32(width),
		(1 - ndc[1]) / 2 * float32(height),
	}, true
}

// HandleDrag updates rotation based on mouse drag delta.
func (c *OrbitCamera) HandleDrag(deltaX, deltaY float32) {
	c.RotationY -= deltaX * c.DragSensitivity
	c.RotationX += deltaY * c.DragSensitivity
	c.RotationX = mgl32.Clamp(c.RotationX, c.MinPitch, c.MaxPitch)
}

// HandleZoom updates distance based on scroll wheel delta.
func (c *OrbitCamera) HandleZoom(delta float32) {
	c.Distance -= delta * c.Distance * c.ZoomSensitivity
	c.Distance = mgl32.Clamp(c.Distance, c.MinDistance, c.MaxDistance)
}

// HandlePan moves the center on the ground plane relative to the view direction.
func (c *OrbitCamera) HandlePan(deltaX, deltaY float32) {
	speed := c.Distance * 0.002
	yaw := float64(c.RotationY)
	right := mgl32.Vec3{float32(math.Cos(yaw)), 0, float32(-math.Sin(yaw))}
	forward := mgl32.Vec3{float32(math.Sin(yaw)), 0, float32(math.Cos(yaw))}
	c.Center = c.Center.Sub(right.Mul(deltaX * speed)).Sub(forward.Mul(deltaY * speed))
}
