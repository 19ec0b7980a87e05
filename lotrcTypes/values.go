package lotrcTypes

import "github.com/go-gl/mathgl/mgl32"

// Vector and matrix values are stored as consecutive f32s in the file order.
type (
	Vector2   = mgl32.Vec2
	Vector3   = mgl32.Vec3
	Vector4   = mgl32.Vec4
	Matrix4x4 = mgl32.Mat4
)

// Bool is one byte followed by three bytes of padding.
type Bool struct {
	Val bool
	Pad [3]byte
}

// List locates variable data inside a game object record: Num elements starting
// Offset bytes after the end of the List itself.
type List struct {
	Num    uint16
	Offset uint16
}

// Node is a NodeList element.
type Node [4]uint32

// Weight is a WeightList element.
type Weight [2]uint32
