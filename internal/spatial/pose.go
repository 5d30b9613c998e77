// Package spatial provides the rigid-transform type used to describe item
// poses in the simulated cell.
//
// A Pose is a homogeneous 4x4 matrix (rotation + translation). Positions are
// millimeters, angles are degrees at the package boundary; internally all
// rotation math is done in radians via mgl64.
package spatial

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Pose is a rigid transform in the scene.
//
// The zero value is NOT a valid pose (it is the zero matrix, not identity).
// Use Identity or one of the constructors.
//
// Poses are values; all methods return new poses and never mutate the
// receiver. Equality of captured vs. restored poses is exact (Eq), which is
// what the reset path relies on: a restored block must carry byte-for-byte
// the same transform that was captured before the run.
type Pose struct {
	Mat mgl64.Mat4
}

// Identity returns the identity pose (no rotation, no translation).
func Identity() Pose {
	return Pose{Mat: mgl64.Ident4()}
}

// FromMat wraps an existing 4x4 matrix.
func FromMat(m mgl64.Mat4) Pose {
	return Pose{Mat: m}
}

// FromXYZRPW builds a pose from a translation (mm) and roll/pitch/yaw
// rotation (degrees), composed as T * Rx(r) * Ry(p) * Rz(w). This matches
// the xyzrpw convention the simulator uses for recorded targets.
func FromXYZRPW(x, y, z, r, p, w float64) Pose {
	m := mgl64.Translate3D(x, y, z)
	m = m.Mul4(mgl64.HomogRotate3DX(degToRad(r)))
	m = m.Mul4(mgl64.HomogRotate3DY(degToRad(p)))
	m = m.Mul4(mgl64.HomogRotate3DZ(degToRad(w)))
	return Pose{Mat: m}
}

// Translation returns the translation component in millimeters.
func (p Pose) Translation() mgl64.Vec3 {
	return mgl64.Vec3{p.Mat.At(0, 3), p.Mat.At(1, 3), p.Mat.At(2, 3)}
}

// Mul composes two poses: the result applies q in p's coordinate system.
func (p Pose) Mul(q Pose) Pose {
	return Pose{Mat: p.Mat.Mul4(q.Mat)}
}

// Inv returns the inverse transform.
func (p Pose) Inv() Pose {
	return Pose{Mat: p.Mat.Inv()}
}

// Eq reports exact float equality of the two transforms.
func (p Pose) Eq(q Pose) bool {
	return p.Mat == q.Mat
}

// ApproxEq reports element-wise equality within eps. Entries where one
// side is exactly zero are compared against eps squared (mgl threshold
// semantics), so eps must stay above the square root of the expected
// floating-point residue. Used by tests that compose and invert
// transforms, never by the reset path.
func (p Pose) ApproxEq(q Pose, eps float64) bool {
	return p.Mat.ApproxEqualThreshold(q.Mat, eps)
}

// Distance returns the translational distance between two poses in mm.
func (p Pose) Distance(q Pose) float64 {
	return p.Translation().Sub(q.Translation()).Len()
}

// MarshalJSON encodes the pose as a flat array of 16 floats in column-major
// order (mgl64's natural layout). Round-tripping through JSON preserves the
// exact float64 values: encoding/json emits the shortest representation that
// parses back to the identical bit pattern.
func (p Pose) MarshalJSON() ([]byte, error) {
	vals := [16]float64(p.Mat)
	return json.Marshal(vals[:])
}

// UnmarshalJSON decodes the flat 16-float encoding produced by MarshalJSON.
func (p *Pose) UnmarshalJSON(data []byte) error {
	var vals []float64
	if err := json.Unmarshal(data, &vals); err != nil {
		return fmt.Errorf("pose: %w", err)
	}
	if len(vals) != 16 {
		return fmt.Errorf("pose: expected 16 elements, got %d", len(vals))
	}
	copy(p.Mat[:], vals)
	return nil
}

// String renders the translation and matrix diagonal for logs.
func (p Pose) String() string {
	t := p.Translation()
	return fmt.Sprintf("Pose(t=[%.3f %.3f %.3f])", t.X(), t.Y(), t.Z())
}

func degToRad(d float64) float64 {
	return d * math.Pi / 180
}
