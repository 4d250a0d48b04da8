package gesture

import (
	"math"
	"time"

	"github.com/signamoz/signa/internal/detector"
)

// DefaultPosePoints is how many world pose landmarks a payload carries.
const DefaultPosePoints = 18

// Point is a rounded (x, y, z) triple.
type Point [3]float64

// Payload is the compact description of a frame sent for classification.
type Payload struct {
	Language  Language  `json:"language"`
	Hands     [][]Point `json:"hands,omitempty"`
	Pose      []Point   `json:"pose,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// HandCount returns the number of hands in the payload.
func (p Payload) HandCount() int {
	return len(p.Hands)
}

// BuildPayload converts a frame into a payload. Every hand landmark is kept in
// order; pose is the first posePoints world landmarks. Coordinates are rounded
// to four decimals. posePoints <= 0 uses DefaultPosePoints.
func BuildPayload(lang Language, frame *detector.FrameResult, now time.Time, posePoints int) Payload {
	if posePoints <= 0 {
		posePoints = DefaultPosePoints
	}
	p := Payload{Language: lang, Timestamp: now.UnixMilli()}
	if frame == nil {
		return p
	}

	if len(frame.MultiHandLandmarks) > 0 {
		p.Hands = make([][]Point, len(frame.MultiHandLandmarks))
		for i, hand := range frame.MultiHandLandmarks {
			p.Hands[i] = roundPoints(hand)
		}
	}

	if len(frame.PoseWorldLandmarks) > 0 {
		pose := frame.PoseWorldLandmarks
		if len(pose) > posePoints {
			pose = pose[:posePoints]
		}
		p.Pose = roundPoints(pose)
	}
	return p
}

func roundPoints(points []detector.Landmark) []Point {
	out := make([]Point, len(points))
	for i, lm := range points {
		out[i] = Point{round4(lm.X), round4(lm.Y), round4(lm.Z)}
	}
	return out
}

// round4 rounds half away from zero to four decimals. Small negatives become -0.
func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
