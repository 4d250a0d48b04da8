// Package gesture decides which landmark frames are worth classifying and
// turns them into compact classification payloads.
package gesture

import "github.com/signamoz/signa/internal/detector"

// Reason explains a change decision.
type Reason string

const (
	ReasonFirstFrame   Reason = "first-frame"
	ReasonImage        Reason = "image"
	ReasonNoHand       Reason = "no-hand"
	ReasonInsufficient Reason = "insufficient-landmarks"
	ReasonHandAppeared Reason = "hand-appeared"
	ReasonHandMoved    Reason = "hand-moved"
	ReasonPoseMoved    Reason = "pose-moved"
	ReasonStatic       Reason = "static"
)

// Change is the outcome of comparing two frames.
type Change struct {
	Changed bool
	Reason  Reason
	// Displacement is the mean displacement that triggered the change, or the
	// largest one measured when nothing triggered.
	Displacement float64
}

// ChangeConfig holds the change detection thresholds.
type ChangeConfig struct {
	HandThreshold    float64
	PoseThreshold    float64
	MinVisibility    float64
	MinHandLandmarks int
}

// DefaultChangeConfig returns the thresholds used for live signing.
func DefaultChangeConfig() ChangeConfig {
	return ChangeConfig{
		HandThreshold:    0.25,
		PoseThreshold:    0.30,
		MinVisibility:    0.5,
		MinHandLandmarks: 10,
	}
}

// ChangeDetector compares the last accepted frame with a new one.
type ChangeDetector struct {
	config ChangeConfig
}

// NewChangeDetector creates a detector. Zero fields in config take defaults.
func NewChangeDetector(config ChangeConfig) *ChangeDetector {
	def := DefaultChangeConfig()
	if config.HandThreshold <= 0 {
		config.HandThreshold = def.HandThreshold
	}
	if config.PoseThreshold <= 0 {
		config.PoseThreshold = def.PoseThreshold
	}
	if config.MinVisibility <= 0 {
		config.MinVisibility = def.MinVisibility
	}
	if config.MinHandLandmarks <= 0 {
		config.MinHandLandmarks = def.MinHandLandmarks
	}
	return &ChangeDetector{config: config}
}

// Detect reports whether curr differs enough from prev to be classified.
//
// Order matters: a missing previous frame or an image upload always counts
// as changed; otherwise a frame without hands, or with fewer hand landmarks
// than the minimum, never does.
func (c *ChangeDetector) Detect(prev, curr *detector.FrameResult, fromImage bool) Change {
	if fromImage {
		return Change{Changed: true, Reason: ReasonImage}
	}
	if prev == nil {
		return Change{Changed: true, Reason: ReasonFirstFrame}
	}
	if curr.HandCount() == 0 {
		return Change{Reason: ReasonNoHand}
	}
	if curr.TotalHandLandmarks() < c.config.MinHandLandmarks {
		return Change{Reason: ReasonInsufficient}
	}
	if prev.HandCount() == 0 {
		return Change{Changed: true, Reason: ReasonHandAppeared}
	}

	var largest float64
	hands := min(prev.HandCount(), curr.HandCount())
	for i := 0; i < hands; i++ {
		mean, ok := c.meanDisplacement(prev.MultiHandLandmarks[i], curr.MultiHandLandmarks[i])
		if !ok {
			continue
		}
		if mean > c.config.HandThreshold {
			return Change{Changed: true, Reason: ReasonHandMoved, Displacement: mean}
		}
		largest = max(largest, mean)
	}

	if prev.HasPose() && curr.HasPose() {
		mean, ok := c.meanDisplacement(prev.PoseLandmarks, curr.PoseLandmarks)
		if ok && mean > c.config.PoseThreshold {
			return Change{Changed: true, Reason: ReasonPoseMoved, Displacement: mean}
		}
		if ok {
			largest = max(largest, mean)
		}
	}

	return Change{Reason: ReasonStatic, Displacement: largest}
}

// meanDisplacement averages point distances over pairs where both points are
// visible. ok is false when no pair qualifies.
func (c *ChangeDetector) meanDisplacement(prev, curr []detector.Landmark) (float64, bool) {
	var total float64
	counted := 0
	n := min(len(prev), len(curr))
	for j := 0; j < n; j++ {
		if prev[j].Visibility <= c.config.MinVisibility || curr[j].Visibility <= c.config.MinVisibility {
			continue
		}
		total += detector.Distance(prev[j], curr[j])
		counted++
	}
	if counted == 0 {
		return 0, false
	}
	return total / float64(counted), true
}
