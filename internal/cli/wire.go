// Package cli implements the signa commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/signamoz/signa/internal/app"
	"github.com/signamoz/signa/internal/capture"
	"github.com/signamoz/signa/internal/classify"
	"github.com/signamoz/signa/internal/config"
	"github.com/signamoz/signa/internal/detector"
	"github.com/signamoz/signa/internal/gesture"
	"github.com/signamoz/signa/internal/logging"
	"github.com/signamoz/signa/internal/metrics"
	"github.com/signamoz/signa/internal/plugin"
	"github.com/signamoz/signa/internal/publish"
	"github.com/signamoz/signa/internal/session"
	"github.com/signamoz/signa/internal/store"
)

// storeLexicon feeds the sign dictionary into classification prompts.
type storeLexicon struct {
	signs *store.SignRepository
}

func (l storeLexicon) Words(lang gesture.Language) ([]string, error) {
	return l.signs.Words(string(lang))
}

// services is everything a command needs, built from configuration.
type services struct {
	cfg     *config.Config
	log     *logrus.Logger
	store   *store.Store
	plugins *plugin.Manager
	app     *app.App
}

type buildOptions struct {
	camera  bool
	plugins bool
	publish bool
}

func loadConfig(cfgPath string) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config %s: %w", cfg.Paths.ConfigPath, err)
	}
	logger, err := logging.Configure(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// build wires the store, classifier, detector, publisher and plugins into
// an App. Missing optional pieces are logged and left out.
func build(ctx context.Context, cfg *config.Config, log *logrus.Logger, opts buildOptions) (*services, error) {
	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	svc := &services{cfg: cfg, log: log, store: st}
	m := metrics.New()

	sessionConfig := session.Config{
		Language:    gesture.Libras,
		MinInterval: cfg.MinInterval(),
		Change: gesture.ChangeConfig{
			HandThreshold:    cfg.Gate.HandThreshold,
			PoseThreshold:    cfg.Gate.PoseThreshold,
			MinVisibility:    cfg.Gate.MinVisibility,
			MinHandLandmarks: cfg.Gate.MinHandLandmarks,
		},
		PosePoints: cfg.Gate.PosePoints,
		Timeout:    cfg.ClassifierTimeout(),
		Describer:  st.Signs(),
		Log:        log,
	}

	appConfig := app.Config{
		Store:        st,
		Metrics:      m,
		Log:          log,
		IdleFPS:      cfg.Capture.IdleFPS,
		ActiveFPS:    cfg.Capture.ActiveFPS,
		IdleTimeout:  time.Duration(cfg.Capture.IdleTimeoutMS) * time.Millisecond,
		MotionThresh: cfg.Capture.MotionThreshold,
	}

	client, err := classify.New(classify.Config{
		BaseURL:        cfg.Classifier.BaseURL,
		APIKeys:        cfg.Classifier.APIKeys,
		Model:          cfg.Classifier.Model,
		FallbackModels: cfg.Classifier.FallbackModels,
		VisionModel:    cfg.Classifier.VisionModel,
		Temperature:    cfg.Classifier.Temperature,
		MaxTokens:      cfg.Classifier.MaxTokens,
		VisionTokens:   cfg.Classifier.VisionTokens,
		Timeout:        cfg.ClassifierTimeout(),
		Referer:        cfg.Classifier.Referer,
		Title:          cfg.Classifier.Title,
	}, log, classify.WithLexicon(storeLexicon{signs: st.Signs()}), classify.WithObserver(m))
	switch {
	case errors.Is(err, classify.ErrNoCredentials):
		log.Warn("no API key configured; sessions capture offline (set OPENROUTER_API_KEY)")
	case err != nil:
		st.Close()
		return nil, err
	default:
		sessionConfig.Classifier = client
		appConfig.Vision = client
	}
	appConfig.Sessions = session.NewManager(sessionConfig)

	d, err := detector.NewMediaPipeDetector(detector.Config{
		ScriptPath:      cfg.Detector.ScriptPath,
		Python:          cfg.Detector.Python,
		MinConfidence:   cfg.Detector.MinConfidence,
		MinTrackingConf: cfg.Detector.MinConfidence,
		IdleTimeout:     time.Duration(cfg.Detector.IdleTimeout * float64(time.Second)),
	})
	if err != nil {
		log.WithError(err).Warn("landmark detector unavailable; only client-side landmarks are accepted")
	} else {
		appConfig.Detector = d
	}

	if opts.camera {
		appConfig.Camera = capture.NewCamera(capture.Options{
			Devices: cfg.Capture.Devices,
			Width:   cfg.Capture.Width,
			Height:  cfg.Capture.Height,
			FPS:     cfg.Capture.IdleFPS,
		})
	}

	if opts.publish && cfg.Redis.Enabled {
		pub, err := publish.NewRedis(ctx, publish.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
		})
		if err != nil {
			log.WithError(err).Warn("redis unavailable; words are not published")
		} else {
			log.WithField("channel", pub.Channel()).Info("publishing words to redis")
			appConfig.Publisher = pub
		}
	}

	if opts.plugins {
		mgr := plugin.NewManager(cfg.Plugins.Dir)
		mgr.SetLogger(log)
		if err := mgr.Discover(); err != nil {
			log.WithError(err).Warn("plugin discovery failed")
		}
		svc.plugins = mgr
		appConfig.Dispatcher = plugin.NewDispatcher(mgr, plugin.NewExecutor(cfg.Plugins.TimeoutMS), st.Actions(), log)
	}

	svc.app = app.New(appConfig)
	return svc, nil
}

// Close releases the app and the store.
func (s *services) Close() error {
	return errors.Join(s.app.Close(), s.store.Close())
}
