package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu     sync.Mutex
	result *FrameResult
	err    error
	calls  int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetResult sets the frame result that will be returned by Detect.
func (m *MockDetector) SetResult(result *FrameResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = result
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect ran.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured result or error.
func (m *MockDetector) Detect(frame *gocv.Mat) (*FrameResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.result == nil {
		return &FrameResult{}, nil
	}
	return m.result, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// OpenPalmHand returns 21 hand landmarks of an open palm with all fingers extended.
// Hand landmarks from MediaPipe carry no visibility; pass a non-zero value
// to make them count for movement checks.
func OpenPalmHand(visibility float64) []Landmark {
	points := [NumLandmarks][3]float64{
		Wrist:     {0.5, 0.8, 0.0},
		ThumbCMC:  {0.55, 0.75, 0.02},
		ThumbMCP:  {0.62, 0.70, 0.03},
		ThumbIP:   {0.68, 0.65, 0.03},
		ThumbTip:  {0.73, 0.60, 0.03},
		IndexMCP:  {0.55, 0.68, 0.0},
		IndexPIP:  {0.57, 0.55, 0.0},
		IndexDIP:  {0.58, 0.45, 0.0},
		IndexTip:  {0.58, 0.35, 0.0},
		MiddleMCP: {0.50, 0.66, 0.0},
		MiddlePIP: {0.50, 0.52, 0.0},
		MiddleDIP: {0.50, 0.40, 0.0},
		MiddleTip: {0.50, 0.28, 0.0},
		RingMCP:   {0.45, 0.68, 0.0},
		RingPIP:   {0.43, 0.55, 0.0},
		RingDIP:   {0.42, 0.45, 0.0},
		RingTip:   {0.42, 0.35, 0.0},
		PinkyMCP:  {0.40, 0.70, 0.0},
		PinkyPIP:  {0.37, 0.60, 0.0},
		PinkyDIP:  {0.35, 0.50, 0.0},
		PinkyTip:  {0.34, 0.42, 0.0},
	}
	return toLandmarks(points[:], visibility)
}

// FistHand returns 21 hand landmarks of a closed fist.
func FistHand(visibility float64) []Landmark {
	points := [NumLandmarks][3]float64{
		Wrist:     {0.5, 0.8, 0.0},
		ThumbCMC:  {0.55, 0.75, 0.0},
		ThumbMCP:  {0.57, 0.70, -0.01},
		ThumbIP:   {0.55, 0.67, -0.03},
		ThumbTip:  {0.52, 0.66, -0.04},
		IndexMCP:  {0.55, 0.70, -0.02},
		IndexPIP:  {0.55, 0.68, -0.05},
		IndexDIP:  {0.52, 0.70, -0.04},
		IndexTip:  {0.50, 0.72, -0.02},
		MiddleMCP: {0.50, 0.68, -0.02},
		MiddlePIP: {0.50, 0.66, -0.05},
		MiddleDIP: {0.47, 0.68, -0.04},
		MiddleTip: {0.45, 0.70, -0.02},
		RingMCP:   {0.45, 0.70, -0.02},
		RingPIP:   {0.45, 0.68, -0.05},
		RingDIP:   {0.42, 0.70, -0.04},
		RingTip:   {0.40, 0.72, -0.02},
		PinkyMCP:  {0.40, 0.72, -0.02},
		PinkyPIP:  {0.40, 0.70, -0.05},
		PinkyDIP:  {0.37, 0.72, -0.04},
		PinkyTip:  {0.35, 0.74, -0.02},
	}
	return toLandmarks(points[:], visibility)
}

// UpperBodyPose returns 33 pose landmarks of a person standing with arms down.
func UpperBodyPose(visibility float64) []Landmark {
	pose := make([]Landmark, NumPoseLandmarks)
	for i := range pose {
		pose[i] = Landmark{X: 0.5, Y: 0.2 + float64(i)*0.02, Z: -0.1, Visibility: visibility}
	}
	pose[PoseLeftShoulder] = Landmark{X: 0.62, Y: 0.45, Z: -0.1, Visibility: visibility}
	pose[PoseRightShoulder] = Landmark{X: 0.38, Y: 0.45, Z: -0.1, Visibility: visibility}
	pose[PoseLeftWrist] = Landmark{X: 0.66, Y: 0.85, Z: -0.1, Visibility: visibility}
	pose[PoseRightWrist] = Landmark{X: 0.34, Y: 0.85, Z: -0.1, Visibility: visibility}
	return pose
}

// Translate returns a copy of points shifted by (dx, dy, dz).
func Translate(points []Landmark, dx, dy, dz float64) []Landmark {
	out := make([]Landmark, len(points))
	for i, p := range points {
		p.X += dx
		p.Y += dy
		p.Z += dz
		out[i] = p
	}
	return out
}

func toLandmarks(points [][3]float64, visibility float64) []Landmark {
	out := make([]Landmark, len(points))
	for i, p := range points {
		out[i] = Landmark{X: p[0], Y: p[1], Z: p[2], Visibility: visibility}
	}
	return out
}
