package detector

import (
	"errors"
	"time"

	"gocv.io/x/gocv"
)

// ErrScriptNotFound is returned when the holistic helper script cannot be located.
var ErrScriptNotFound = errors.New("holistic_service.py not found")

// Detector defines the interface for pose-estimation implementations.
type Detector interface {
	// Detect analyzes a video frame and returns hand, pose and face landmarks.
	// A frame with nobody in it yields an empty FrameResult, not an error.
	Detect(frame *gocv.Mat) (*FrameResult, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for landmark detection.
type Config struct {
	// ScriptPath points at the holistic helper. Empty means search the usual locations.
	ScriptPath string

	// Python is the interpreter used when no virtualenv is found.
	Python string

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// IdleTimeout shuts the helper down after this long without frames.
	IdleTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Python:          "python3",
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
		IdleTimeout:     30 * time.Second,
	}
}
