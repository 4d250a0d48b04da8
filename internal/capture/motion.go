package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Motion detection constants
const (
	// GaussianBlurSize is the kernel size for Gaussian blur (21x21)
	GaussianBlurSize = 21
	// DiffThreshold is the binary threshold for difference detection
	DiffThreshold = 25
	// AnalysisWidth is the width frames are shrunk to before differencing.
	AnalysisWidth = 320
)

// MotionDetector decides whether the signer is moving by differencing a
// downscaled, blurred grayscale copy of consecutive frames.
type MotionDetector struct {
	mu        sync.Mutex
	threshold float64 // percent of changed pixels
	baseline  gocv.Mat
	ready     bool
}

// NewMotionDetector creates a detector that reports motion once more than
// threshold percent of the pixels change between frames.
func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{
		threshold: threshold,
		baseline:  gocv.NewMat(),
	}
}

// Detect compares frame with the previous one and returns whether it moved
// and the changed-pixel percentage. The first frame after construction,
// Reset or a resolution change only sets the baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	if frame == nil || frame.Empty() {
		return false, 0
	}

	current := prepareForDiff(frame)
	defer current.Close()

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ready || current.Rows() != m.baseline.Rows() || current.Cols() != m.baseline.Cols() {
		current.CopyTo(&m.baseline)
		m.ready = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(current, m.baseline, &diff)
	gocv.Threshold(diff, &diff, DiffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(diff)) / float64(diff.Rows()*diff.Cols()) * 100
	current.CopyTo(&m.baseline)
	return changed > m.threshold, changed
}

// prepareForDiff returns a grayscale copy of frame at AnalysisWidth, blurred
// to suppress sensor noise. The caller closes it.
func prepareForDiff(frame *gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	if gray.Cols() > AnalysisWidth {
		small := gocv.NewMat()
		height := gray.Rows() * AnalysisWidth / gray.Cols()
		gocv.Resize(gray, &small, image.Point{X: AnalysisWidth, Y: height}, 0, 0, gocv.InterpolationArea)
		gray.Close()
		gray = small
	}

	blurred := gocv.NewMat()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: GaussianBlurSize, Y: GaussianBlurSize}, 0, 0, gocv.BorderDefault)
	gray.Close()
	return blurred
}

// Reset drops the baseline so the next frame starts a new comparison.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

// Close releases the baseline. The detector stays usable.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

func (m *MotionDetector) resetLocked() {
	if !m.baseline.Empty() {
		m.baseline.Close()
		m.baseline = gocv.NewMat()
	}
	m.ready = false
}

// Pacer picks the capture frame rate: ActiveFPS from the first moving frame,
// back to IdleFPS once nothing has moved for IdleTimeout.
type Pacer struct {
	IdleFPS     int
	ActiveFPS   int
	IdleTimeout time.Duration

	active     bool
	lastMotion time.Time
}

// NewPacer creates a Pacer in idle mode.
func NewPacer(idleFPS, activeFPS int, idleTimeout time.Duration) *Pacer {
	return &Pacer{IdleFPS: idleFPS, ActiveFPS: activeFPS, IdleTimeout: idleTimeout}
}

// Observe records whether the frame at now moved. It returns the frame
// rate to use and whether it differs from the previous one.
func (p *Pacer) Observe(moving bool, now time.Time) (fps int, changed bool) {
	switch {
	case moving:
		p.lastMotion = now
		if !p.active {
			p.active, changed = true, true
		}
	case p.active && now.Sub(p.lastMotion) > p.IdleTimeout:
		p.active, changed = false, true
	}
	return p.FPS(), changed
}

// Active reports whether the pacer is in active mode.
func (p *Pacer) Active() bool {
	return p.active
}

// FPS returns the current frame rate.
func (p *Pacer) FPS() int {
	if p.active {
		return p.ActiveFPS
	}
	return p.IdleFPS
}

// Interval returns the tick interval for the current frame rate.
func (p *Pacer) Interval() time.Duration {
	fps := p.FPS()
	if fps <= 0 {
		fps = 1
	}
	return time.Second / time.Duration(fps)
}
