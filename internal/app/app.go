// Package app wires capture, landmark detection, sessions and the word
// fan-out (history, Redis, plugins) together.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/signamoz/signa/internal/capture"
	"github.com/signamoz/signa/internal/classify"
	"github.com/signamoz/signa/internal/detector"
	"github.com/signamoz/signa/internal/gesture"
	"github.com/signamoz/signa/internal/metrics"
	"github.com/signamoz/signa/internal/plugin"
	"github.com/signamoz/signa/internal/publish"
	"github.com/signamoz/signa/internal/session"
	"github.com/signamoz/signa/internal/store"
)

// Pipeline timing defaults.
const (
	// IdleFPS is the frame rate when no motion is detected.
	IdleFPS = 5
	// ActiveFPS is the frame rate while the signer is moving.
	ActiveFPS = 15
	// IdleTimeout is how long without motion before dropping back to IdleFPS.
	IdleTimeout = 2 * time.Second
	// MaxReadFailures stops capture after this many consecutive read errors.
	MaxReadFailures = 10
)

// Status texts for capture and uploads.
const (
	StatusCameraReady   = "Câmera acessada com sucesso"
	StatusCameraFailed  = "Erro ao acessar a câmera"
	StatusProcessingImg = "Processando imagem..."
	StatusVision        = "Analisando imagem com IA Vision..."
	StatusImageDone     = "Imagem analisada com sucesso!"
	StatusProcessingVid = "Processando vídeo..."
)

var (
	// ErrNoDetector is returned when landmark detection is needed but unavailable.
	ErrNoDetector = errors.New("landmark detector not available")
	// ErrNoVision is returned for vision uploads when no classifier is configured.
	ErrNoVision = errors.New("vision classifier not configured")
	// ErrNotCapturing is returned by capture operations while capture is stopped.
	ErrNotCapturing = errors.New("capture is not running")
	// ErrBadImage is returned for uploads that cannot be decoded.
	ErrBadImage = errors.New("invalid image")
)

// VisionClassifier names the sign shown in an image.
type VisionClassifier interface {
	ClassifyImage(ctx context.Context, lang gesture.Language, mimeType string, data []byte) (string, error)
}

// Config holds the collaborators of the application. Nil optional fields
// disable the matching feature.
type Config struct {
	Sessions   *session.Manager
	Store      *store.Store
	Camera     capture.Camera
	Detector   detector.Detector
	Vision     VisionClassifier
	Publisher  publish.Publisher
	Dispatcher *plugin.Dispatcher
	Metrics    *metrics.Metrics
	Log        logrus.FieldLogger

	IdleFPS      int
	ActiveFPS    int
	IdleTimeout  time.Duration
	MotionThresh float64
	// VideoInterval spaces frames sampled from uploaded videos.
	VideoInterval time.Duration
	// OpenVideo opens an uploaded video. Defaults to capture.OpenVideoFile.
	OpenVideo func(path string, interval time.Duration) (capture.FrameSource, error)
}

func openVideoFile(path string, interval time.Duration) (capture.FrameSource, error) {
	v, err := capture.OpenVideoFile(path, interval)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// App is the main application that orchestrates recognition.
type App struct {
	config   Config
	sessions *session.Manager
	camera   capture.Camera
	motion   *capture.MotionDetector
	detector detector.Detector
	metrics  *metrics.Metrics
	log      logrus.FieldLogger

	mu            sync.RWMutex
	stopCh        chan struct{}
	loopDone      chan struct{}
	captureID     string
	lastFrame     []byte
	lastFrameSeq  uint64
	lastLandmarks *detector.FrameResult

	detectMu sync.Mutex // the helper handles one frame at a time
	wg       sync.WaitGroup
}

// New creates an App and subscribes it to every session's words.
func New(config Config) *App {
	if config.IdleFPS <= 0 {
		config.IdleFPS = IdleFPS
	}
	if config.ActiveFPS <= 0 {
		config.ActiveFPS = ActiveFPS
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = IdleTimeout
	}
	motionThreshold := config.MotionThresh
	if motionThreshold <= 0 {
		motionThreshold = 1.0 // 1% of pixels changed
	}
	if config.Publisher == nil {
		config.Publisher = publish.Nop{}
	}
	if config.Metrics == nil {
		config.Metrics = metrics.New()
	}
	if config.OpenVideo == nil {
		config.OpenVideo = openVideoFile
	}
	log := config.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	if config.Sessions == nil {
		config.Sessions = session.NewManager(session.Config{Log: log})
	}

	a := &App{
		config:   config,
		sessions: config.Sessions,
		camera:   config.Camera,
		motion:   capture.NewMotionDetector(motionThreshold),
		detector: config.Detector,
		metrics:  config.Metrics,
		log:      log.WithField("component", "app"),
	}
	a.sessions.OnWord(a.handleWord)
	return a
}

// Sessions returns the session manager.
func (a *App) Sessions() *session.Manager {
	return a.sessions
}

// Metrics returns the metrics registry.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// Store returns the store, which may be nil.
func (a *App) Store() *store.Store {
	return a.config.Store
}

// Detector returns the landmark detector, which may be nil.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}

// SetDetector replaces the landmark detector.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}

// detectMat runs the detector on one frame. Calls are serialised.
func (a *App) detectMat(d detector.Detector, run func(detector.Detector) (*detector.FrameResult, error)) (*detector.FrameResult, error) {
	if d == nil {
		return nil, ErrNoDetector
	}
	a.detectMu.Lock()
	defer a.detectMu.Unlock()
	fr, err := run(d)
	if err != nil {
		return nil, err
	}
	return fr.Normalize(), nil
}

// Submit feeds landmarks computed elsewhere (for example in the browser)
// into a session.
func (a *App) Submit(id string, frame *detector.FrameResult, source session.Source, now time.Time) (session.Outcome, error) {
	s, err := a.sessions.Get(id)
	if err != nil {
		return "", err
	}
	outcome := s.Submit(frame.Normalize(), source, now)
	a.metrics.ObserveOutcome(outcome)
	return outcome, nil
}

// RecognizeImage classifies an uploaded image for session id.
//
// In vision mode the image goes to the vision model and the reply is applied
// directly. Otherwise landmarks are detected and the frame takes the image
// path of the session, bypassing the throttle. The call returns once the
// classification has finished.
func (a *App) RecognizeImage(ctx context.Context, id string, data []byte, mimeType string, vision bool) (session.State, session.Outcome, error) {
	s, err := a.sessions.Get(id)
	if err != nil {
		return session.State{}, "", err
	}

	if vision {
		if a.config.Vision == nil {
			return s.State(), "", ErrNoVision
		}
		if err := classify.ValidateImage(mimeType, data); err != nil {
			s.Fail(session.StatusFailed, err)
			return s.State(), "", fmt.Errorf("%w: %w", ErrBadImage, err)
		}
		s.SetStatus(StatusVision)
		word, err := a.config.Vision.ClassifyImage(ctx, s.Language(), mimeType, data)
		if err != nil {
			s.Fail(session.StatusFailed, err)
			return s.State(), "", fmt.Errorf("vision classification: %w", err)
		}
		if _, err := s.ApplyWord(word, session.SourceVision); err != nil {
			return s.State(), "", err
		}
		s.SetStatus(StatusImageDone)
		return s.State(), session.OutcomeDispatched, nil
	}

	s.SetStatus(StatusProcessingImg)
	mat, err := capture.DecodeImage(data)
	if err != nil {
		s.Fail(session.StatusFailed, err)
		return s.State(), "", fmt.Errorf("%w: %v", ErrBadImage, err)
	}
	frame, err := a.detectMat(a.Detector(), func(d detector.Detector) (*detector.FrameResult, error) {
		return d.Detect(mat)
	})
	mat.Close()
	if err != nil {
		s.Fail(session.StatusFailed, err)
		return s.State(), "", fmt.Errorf("detect landmarks: %w", err)
	}

	outcome := s.Submit(frame, session.SourceImage, time.Now())
	a.metrics.ObserveOutcome(outcome)
	s.Wait()
	return s.State(), outcome, nil
}

// VideoResult summarises a processed video.
type VideoResult struct {
	Frames     int      `json:"frames"`
	Dispatched int      `json:"dispatched"`
	Words      []string `json:"words"`
	Phrase     []string `json:"phrase"`
}

// RecognizeVideo replays a video file through the stream path of session id.
// Frame timestamps follow video time, so the throttle spaces classifications
// by position in the video rather than by processing speed.
func (a *App) RecognizeVideo(ctx context.Context, id, path string) (VideoResult, error) {
	var res VideoResult
	s, err := a.sessions.Get(id)
	if err != nil {
		return res, err
	}
	d := a.Detector()
	if d == nil {
		return res, ErrNoDetector
	}

	video, err := a.config.OpenVideo(path, a.config.VideoInterval)
	if err != nil {
		return res, err
	}
	defer video.Close()

	s.SetStatus(StatusProcessingVid)
	unsubscribe := s.OnWord(func(e session.WordEvent) {
		res.Words = append(res.Words, e.Word)
	})
	defer unsubscribe()

	base := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			s.Wait()
			return res, err
		}
		mat, pos, err := video.Next()
		if err != nil {
			break
		}
		res.Frames++

		frame, err := a.detectMat(d, func(d detector.Detector) (*detector.FrameResult, error) {
			return d.Detect(mat)
		})
		mat.Close()
		if err != nil {
			a.log.WithError(err).WithField("position", pos).Debug("skipping video frame")
			continue
		}

		outcome := s.Submit(frame, session.SourceVideo, base.Add(pos))
		a.metrics.ObserveOutcome(outcome)
		if outcome == session.OutcomeDispatched {
			res.Dispatched++
			s.Wait()
		}
		if outcome == session.OutcomeInactive {
			break
		}
	}

	res.Phrase = s.State().Phrase
	a.log.WithFields(logrus.Fields{
		"session":    id,
		"frames":     res.Frames,
		"dispatched": res.Dispatched,
	}).Info("video processed")
	return res, nil
}

// handleWord records, publishes and acts on classified words.
func (a *App) handleWord(e session.WordEvent) {
	a.metrics.ObserveWord(e)
	if !e.Appended || e.Word == classify.Unknown {
		return
	}
	log := a.log.WithFields(logrus.Fields{"session": e.SessionID, "word": e.Word})

	if st := a.config.Store; st != nil {
		rec := &store.Recognition{
			SessionID: e.SessionID,
			Language:  string(e.Language),
			Word:      e.Word,
			Source:    string(e.Source),
			CreatedAt: e.At,
		}
		if err := st.Recognitions().Create(rec); err != nil {
			log.WithError(err).Warn("record recognition")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := a.config.Publisher.Publish(ctx, e); err != nil {
		a.metrics.IncPublishErrors()
		log.WithError(err).Warn("publish word")
	}
	cancel()

	if a.config.Dispatcher == nil {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		results, err := a.config.Dispatcher.Dispatch(context.Background(), e.SessionID, string(e.Language), e.Word)
		if err != nil {
			log.WithError(err).Warn("dispatch plugins")
			return
		}
		for _, r := range results {
			a.metrics.ObservePlugin(r.Error != "")
		}
	}()
}

// Wait blocks until background plugin runs finish.
func (a *App) Wait() {
	a.wg.Wait()
}

// Close stops capture and every session and releases the detector.
func (a *App) Close() error {
	a.StopCapture()
	a.sessions.StopAll()
	a.wg.Wait()
	a.motion.Close()

	var errs []error
	if d := a.Detector(); d != nil {
		errs = append(errs, d.Close())
	}
	errs = append(errs, a.config.Publisher.Close())
	return errors.Join(errs...)
}
