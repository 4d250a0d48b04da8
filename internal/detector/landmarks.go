// Package detector provides landmark types and pose-estimation backends for sign recognition.
package detector

import "math"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Pose landmark indices for the upper body. The first 18 cover the head,
// shoulders, arms and hands, which is all a signer needs.
const (
	PoseNose          = 0
	PoseLeftEye       = 2
	PoseRightEye      = 5
	PoseLeftShoulder  = 11
	PoseRightShoulder = 12
	PoseLeftElbow     = 13
	PoseRightElbow    = 14
	PoseLeftWrist     = 15
	PoseRightWrist    = 16
	PoseLeftPinky     = 17
	NumPoseLandmarks  = 33
)

// Landmark is a single estimated point. Visibility and Presence are optional;
// an absent value decodes to 0.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility,omitempty"`
	Presence   float64 `json:"presence,omitempty"`
}

// Handedness labels one entry of MultiHandLandmarks.
type Handedness struct {
	Index int     `json:"index"`
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// FrameResult is the output of the pose estimator for one frame. Field names
// match the MediaPipe Holistic JavaScript results.
type FrameResult struct {
	MultiHandLandmarks [][]Landmark `json:"multiHandLandmarks,omitempty"`
	MultiHandedness    []Handedness `json:"multiHandedness,omitempty"`
	LeftHandLandmarks  []Landmark   `json:"leftHandLandmarks,omitempty"`
	RightHandLandmarks []Landmark   `json:"rightHandLandmarks,omitempty"`
	PoseLandmarks      []Landmark   `json:"poseLandmarks,omitempty"`
	PoseWorldLandmarks []Landmark   `json:"poseWorldLandmarks,omitempty"`
	FaceLandmarks      []Landmark   `json:"faceLandmarks,omitempty"`
}

// Normalize folds per-side hand landmarks into MultiHandLandmarks when the
// estimator reported hands that way. Right hand first, then left.
func (f *FrameResult) Normalize() *FrameResult {
	if f == nil || len(f.MultiHandLandmarks) > 0 {
		return f
	}
	if len(f.RightHandLandmarks) > 0 {
		f.MultiHandLandmarks = append(f.MultiHandLandmarks, f.RightHandLandmarks)
		f.MultiHandedness = append(f.MultiHandedness, Handedness{Index: 0, Label: "Right", Score: 1})
	}
	if len(f.LeftHandLandmarks) > 0 {
		f.MultiHandLandmarks = append(f.MultiHandLandmarks, f.LeftHandLandmarks)
		f.MultiHandedness = append(f.MultiHandedness, Handedness{Index: len(f.MultiHandedness), Label: "Left", Score: 1})
	}
	return f
}

// HandCount returns the number of detected hands.
func (f *FrameResult) HandCount() int {
	if f == nil {
		return 0
	}
	return len(f.MultiHandLandmarks)
}

// TotalHandLandmarks counts landmarks across all hands.
func (f *FrameResult) TotalHandLandmarks() int {
	if f == nil {
		return 0
	}
	total := 0
	for _, hand := range f.MultiHandLandmarks {
		total += len(hand)
	}
	return total
}

// HasPose reports whether image-space pose landmarks are present.
func (f *FrameResult) HasPose() bool {
	return f != nil && len(f.PoseLandmarks) > 0
}

// Distance returns the Euclidean distance between two landmarks.
func Distance(a, b Landmark) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
