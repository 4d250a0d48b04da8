// Package config loads the signa TOML configuration and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultBaseURL       = "https://openrouter.ai/api/v1"
	DefaultModel         = "openai/gpt-4o-mini"
	DefaultVisionModel   = "openai/gpt-4o"
	defaultStateDirLinux = ".local/state/signa"
	defaultConfigDir     = ".config/signa"
)

// DefaultFallbackModels are tried in order after the primary model fails.
var DefaultFallbackModels = []string{
	"openai/gpt-4o-mini",
	"openai/gpt-4o-mini-3k",
	"google/gemini-flash-1.5",
	"openai/gpt-3.5-turbo",
	"anthropic/claude-3-haiku",
	"meta-llama/llama-3.1-8b-instruct",
	"microsoft/wizardlm-2-8x22b",
}

// Config holds user configuration loaded from TOML.
type Config struct {
	Server struct {
		Addr      string `toml:"addr"`
		StaticDir string `toml:"static_dir"`
	} `toml:"server"`

	Classifier struct {
		BaseURL        string   `toml:"base_url"`
		APIKeys        []string `toml:"api_keys"`
		Model          string   `toml:"model"`
		FallbackModels []string `toml:"fallback_models"`
		VisionModel    string   `toml:"vision_model"`
		Temperature    float32  `toml:"temperature"`
		MaxTokens      int      `toml:"max_tokens"`
		VisionTokens   int      `toml:"vision_max_tokens"`
		TimeoutSec     float64  `toml:"timeout_sec"`
		Referer        string   `toml:"referer"`
		Title          string   `toml:"title"`
	} `toml:"classifier"`

	Gate struct {
		MinIntervalMS    int     `toml:"min_interval_ms"`
		HandThreshold    float64 `toml:"hand_threshold"`
		PoseThreshold    float64 `toml:"pose_threshold"`
		MinVisibility    float64 `toml:"min_visibility"`
		MinHandLandmarks int     `toml:"min_hand_landmarks"`
		PosePoints       int     `toml:"pose_points"`
	} `toml:"gate"`

	Capture struct {
		Devices         []int   `toml:"devices"`
		Width           int     `toml:"width"`
		Height          int     `toml:"height"`
		IdleFPS         int     `toml:"idle_fps"`
		ActiveFPS       int     `toml:"active_fps"`
		MotionThreshold float64 `toml:"motion_threshold"`
		IdleTimeoutMS   int     `toml:"idle_timeout_ms"`
	} `toml:"capture"`

	Detector struct {
		ScriptPath    string  `toml:"script_path"`
		Python        string  `toml:"python"`
		MinConfidence float64 `toml:"min_confidence"`
		IdleTimeout   float64 `toml:"idle_timeout_sec"`
	} `toml:"detector"`

	Store struct {
		Path string `toml:"path"`
	} `toml:"store"`

	Redis struct {
		Enabled  bool   `toml:"enabled"`
		Addr     string `toml:"addr"`
		Password string `toml:"password"`
		DB       int    `toml:"db"`
		Channel  string `toml:"channel"`
	} `toml:"redis"`

	Plugins struct {
		Dir       string `toml:"dir"`
		TimeoutMS int    `toml:"timeout_ms"`
	} `toml:"plugins"`

	Logging struct {
		Level  string `toml:"level"`  // debug, info, warn, error
		Format string `toml:"format"` // text, json
		Stdout bool   `toml:"stdout"`
	} `toml:"logging"`

	Paths struct {
		StateDir   string `toml:"state_dir"`
		LogPath    string `toml:"log_path"`
		ConfigPath string `toml:"-"`
	} `toml:"paths"`
}

// Default returns Config populated with defaults.
func Default() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	stateDir := filepath.Join(home, defaultStateDirLinux)
	if runtime.GOOS == "darwin" {
		stateDir = filepath.Join(home, "Library", "Application Support", "signa")
	}

	cfg := &Config{}

	cfg.Server.Addr = "127.0.0.1:8080"
	cfg.Server.StaticDir = "web"

	cfg.Classifier.BaseURL = DefaultBaseURL
	cfg.Classifier.Model = DefaultModel
	cfg.Classifier.FallbackModels = append([]string(nil), DefaultFallbackModels...)
	cfg.Classifier.VisionModel = DefaultVisionModel
	cfg.Classifier.Temperature = 0.1
	cfg.Classifier.MaxTokens = 30
	cfg.Classifier.VisionTokens = 10
	cfg.Classifier.TimeoutSec = 30
	cfg.Classifier.Referer = "http://localhost:8080"
	cfg.Classifier.Title = "Signa Sign Recognition"

	cfg.Gate.MinIntervalMS = 6000
	cfg.Gate.HandThreshold = 0.25
	cfg.Gate.PoseThreshold = 0.30
	cfg.Gate.MinVisibility = 0.5
	cfg.Gate.MinHandLandmarks = 10
	cfg.Gate.PosePoints = 18

	cfg.Capture.Devices = []int{0}
	cfg.Capture.Width = 960
	cfg.Capture.Height = 720
	cfg.Capture.IdleFPS = 5
	cfg.Capture.ActiveFPS = 15
	cfg.Capture.MotionThreshold = 1.0
	cfg.Capture.IdleTimeoutMS = 2000

	cfg.Detector.ScriptPath = filepath.Join("scripts", "holistic_service.py")
	cfg.Detector.Python = "python3"
	cfg.Detector.MinConfidence = 0.5
	cfg.Detector.IdleTimeout = 30

	cfg.Store.Path = filepath.Join(stateDir, "signa.db")

	cfg.Redis.Enabled = false
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.Channel = "signa:words"

	cfg.Plugins.Dir = "plugins"
	cfg.Plugins.TimeoutMS = 5000

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"
	cfg.Logging.Stdout = true

	cfg.Paths.StateDir = stateDir
	cfg.Paths.LogPath = filepath.Join(stateDir, "signa.log")

	return cfg, nil
}

// Load loads config from file, applying defaults and environment overrides.
// A missing file is created from the defaults.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, defaultConfigDir, "config.toml")
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := Save(cfg, path); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.Paths.ConfigPath = path
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Save writes cfg to path.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}

// MustStatePaths ensures state dirs exist.
func MustStatePaths(cfg *Config) error {
	for _, p := range []string{cfg.Paths.StateDir, filepath.Dir(cfg.Paths.LogPath), filepath.Dir(cfg.Store.Path)} {
		if p == "" || p == "." {
			continue
		}
		if err := os.MkdirAll(p, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// MinInterval returns the throttle window as a duration.
func (c *Config) MinInterval() time.Duration {
	return time.Duration(c.Gate.MinIntervalMS) * time.Millisecond
}

// ClassifierTimeout returns the per-request classification timeout.
func (c *Config) ClassifierTimeout() time.Duration {
	return time.Duration(c.Classifier.TimeoutSec * float64(time.Second))
}

// Validate reports configuration values the service cannot run with.
func (c *Config) Validate() error {
	if c.Gate.MinIntervalMS < 0 {
		return errors.New("gate.min_interval_ms must not be negative")
	}
	if c.Gate.PosePoints <= 0 {
		return errors.New("gate.pose_points must be positive")
	}
	if c.Classifier.Model == "" {
		return errors.New("classifier.model is required")
	}
	if c.Classifier.BaseURL == "" {
		return errors.New("classifier.base_url is required")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	// Keys from the environment are prepended so they are tried first.
	var keys []string
	if v := os.Getenv("SIGNA_API_KEYS"); v != "" {
		keys = append(keys, splitList(v)...)
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		keys = append(keys, strings.TrimSpace(v))
	}
	if len(keys) > 0 {
		cfg.Classifier.APIKeys = dedupe(append(keys, cfg.Classifier.APIKeys...))
	}
	if v := os.Getenv("SIGNA_MODEL"); v != "" {
		cfg.Classifier.Model = v
	}
	if v := os.Getenv("SIGNA_BASE_URL"); v != "" {
		cfg.Classifier.BaseURL = v
	}
	if v := os.Getenv("SIGNA_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("SIGNA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SIGNA_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SIGNA_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("SIGNA_MIN_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Gate.MinIntervalMS = ms
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
