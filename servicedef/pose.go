package servicedef

import "math"

// Vector3 is a position in meters, in the map frame.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is an orientation. Callers are expected to send unit
// quaternions; the harness reports the norm in debug output but never
// rejects a pose over it, since judging poses is the service's job.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Norm returns the quaternion's magnitude.
func (q Quaternion) Norm() float64 {
	return math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
}

// IdentityOrientation is the no-rotation quaternion.
func IdentityOrientation() Quaternion {
	return Quaternion{W: 1}
}

// Pose is a 6-DoF position plus orientation.
type Pose struct {
	Position    Vector3    `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// PoseEstimate is one message on the continuous pose-estimate stream that
// the system under test publishes while it is tracking.
type PoseEstimate struct {
	Pose        Pose   `json:"pose"`
	Seq         int    `json:"seq,omitempty"`
	Frame       string `json:"frame,omitempty"`
	TimestampMS int64  `json:"timestampMs,omitempty"`
}
