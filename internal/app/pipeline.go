package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/signamoz/signa/internal/capture"
	"github.com/signamoz/signa/internal/detector"
	"github.com/signamoz/signa/internal/gesture"
	"github.com/signamoz/signa/internal/session"
)

// ErrNoCamera is returned when capture is requested without a camera.
var ErrNoCamera = errors.New("no camera configured")

// StartCapture opens the camera and starts feeding frames into a capture
// session. If capture already runs, its session is returned. After an
// acquisition failure the same session is resumed.
func (a *App) StartCapture(lang gesture.Language) (*session.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var s *session.Session
	if a.captureID != "" {
		if existing, err := a.sessions.Get(a.captureID); err == nil && existing.Active() {
			s = existing
		}
	}
	if a.stopCh != nil && s != nil {
		return s, nil
	}
	if a.camera == nil {
		return nil, ErrNoCamera
	}

	if err := a.camera.Open(); err != nil {
		if s != nil {
			s.Fail(StatusCameraFailed, err)
		}
		return nil, fmt.Errorf("open camera: %w", err)
	}
	a.camera.SetFPS(a.config.IdleFPS)
	a.motion.Reset()

	if s == nil {
		s = a.sessions.Create(lang)
	}
	s.SetStreaming(true)
	s.SetStatus(session.StatusCapturing)

	a.captureID = s.ID()
	a.stopCh = make(chan struct{})
	a.loopDone = make(chan struct{})
	go a.runPipeline(s, a.stopCh, a.loopDone)

	a.log.WithField("session", s.ID()).Info("capture started")
	return s, nil
}

// StopCapture halts the capture loop, closes the camera and stops the
// capture session.
func (a *App) StopCapture() {
	a.mu.Lock()
	stopCh, done, id := a.stopCh, a.loopDone, a.captureID
	a.stopCh, a.loopDone, a.captureID = nil, nil, ""
	a.lastFrame = nil
	a.lastLandmarks = nil
	a.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-done
		if err := a.camera.Close(); err != nil {
			a.log.WithError(err).Warn("close camera")
		}
	}
	if id != "" {
		if err := a.sessions.Stop(id); err == nil {
			a.log.WithField("session", id).Info("capture stopped")
		}
	}
}

// Capturing reports whether the capture loop runs.
func (a *App) Capturing() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stopCh != nil
}

// CaptureSession returns the session fed by the camera, if any.
func (a *App) CaptureSession() (*session.Session, bool) {
	a.mu.RLock()
	id := a.captureID
	a.mu.RUnlock()
	if id == "" {
		return nil, false
	}
	s, err := a.sessions.Get(id)
	return s, err == nil
}

// SwitchCamera moves capture to the next configured device.
func (a *App) SwitchCamera() (int, error) {
	sw, ok := a.camera.(capture.Switcher)
	if !ok {
		return 0, errors.New("camera does not support switching")
	}
	if err := sw.Switch(); err != nil {
		return 0, err
	}
	a.motion.Reset()
	return sw.Device(), nil
}

// Snapshot returns the latest captured frame as JPEG.
func (a *App) Snapshot() ([]byte, error) {
	data, _ := a.LatestFrame()
	if data == nil {
		if !a.Capturing() {
			return nil, ErrNotCapturing
		}
		return nil, errors.New("no frame captured yet")
	}
	return data, nil
}

// LatestFrame returns the latest JPEG frame and a sequence number that
// increases with every new frame.
func (a *App) LatestFrame() ([]byte, uint64) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastFrame, a.lastFrameSeq
}

// LatestLandmarks returns the landmarks of the last analysed frame.
func (a *App) LatestLandmarks() *detector.FrameResult {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastLandmarks
}

// runPipeline is the capture loop.
//
// It starts at IdleFPS and switches to ActiveFPS while the motion detector
// sees movement, dropping back after IdleTimeout without motion. Landmark
// detection only runs when the session would accept a frame, so throttled
// ticks cost a camera read and nothing more.
func (a *App) runPipeline(s *session.Session, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	pacer := capture.NewPacer(a.config.IdleFPS, a.config.ActiveFPS, a.config.IdleTimeout)
	failures := 0

	ticker := time.NewTicker(pacer.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		if !s.Active() {
			a.abandonCapture(stop)
			return
		}

		frame, err := a.camera.ReadFrame()
		if err != nil {
			failures++
			a.log.WithError(err).WithField("failures", failures).Debug("read frame")
			if failures >= MaxReadFailures {
				a.abandonCapture(stop)
				s.SetStreaming(false)
				s.Fail(StatusCameraFailed, err)
				a.log.WithError(err).Warn("capture stopped after repeated read failures")
				return
			}
			continue
		}
		failures = 0

		if data, err := capture.EncodeJPEG(frame); err == nil {
			a.mu.Lock()
			a.lastFrame = data
			a.lastFrameSeq++
			a.mu.Unlock()
		}

		moving, _ := a.motion.Detect(frame)
		if fps, changed := pacer.Observe(moving, time.Now()); changed {
			a.camera.SetFPS(fps)
			ticker.Reset(pacer.Interval())
			a.log.WithFields(logrus.Fields{"fps": fps, "active": pacer.Active()}).Debug("capture rate changed")
		}

		now := time.Now()
		d := a.Detector()
		if d == nil || !s.Ready(now) {
			frame.Close()
			continue
		}

		landmarks, err := a.detectMat(d, func(d detector.Detector) (*detector.FrameResult, error) {
			return d.Detect(frame)
		})
		frame.Close()
		if err != nil {
			a.log.WithError(err).Debug("detect landmarks")
			continue
		}

		a.mu.Lock()
		a.lastLandmarks = landmarks
		a.mu.Unlock()

		outcome := s.Submit(landmarks, session.SourceStream, now)
		a.metrics.ObserveOutcome(outcome)
	}
}

// abandonCapture releases the camera when the loop ends on its own. The
// session ID is kept so StartCapture can resume it.
func (a *App) abandonCapture(stop <-chan struct{}) {
	a.mu.Lock()
	owned := a.stopCh != nil && a.stopCh == stop
	if owned {
		a.stopCh = nil
		a.loopDone = nil
		a.lastFrame = nil
	}
	a.mu.Unlock()

	if owned {
		if err := a.camera.Close(); err != nil {
			a.log.WithError(err).Warn("close camera")
		}
	}
}
