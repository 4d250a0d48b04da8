// Package classify sends gesture payloads to an OpenAI-compatible chat
// completion service (OpenRouter by default) and turns replies into words.
package classify

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/signamoz/signa/internal/gesture"
)

// Lexicon supplies known words for a language. It is optional.
type Lexicon interface {
	Words(lang gesture.Language) ([]string, error)
}

// Observer is told about every backend attempt.
type Observer interface {
	ObserveAttempt(model string, err error, elapsed time.Duration)
}

// Config configures a Client. Credentials come from configuration only.
type Config struct {
	BaseURL        string
	APIKeys        []string
	Model          string
	FallbackModels []string
	VisionModel    string
	Temperature    float32
	MaxTokens      int
	VisionTokens   int
	Timeout        time.Duration
	Referer        string
	Title          string
}

// Client classifies payloads and images, failing over across keys and models.
type Client struct {
	config   Config
	clients  []*openai.Client // one per API key, same order
	models   []string
	log      logrus.FieldLogger
	lexicon  Lexicon
	observer Observer
}

// Option customises a Client.
type Option func(*Client)

// WithLexicon adds known vocabulary to prompts.
func WithLexicon(l Lexicon) Option {
	return func(c *Client) { c.lexicon = l }
}

// WithObserver reports each attempt to o.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithHTTPClient replaces the transport used for every key. Attribution
// headers are still added.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		for i, key := range c.config.APIKeys {
			c.clients[i] = c.newClient(key, hc)
		}
	}
}

// New creates a Client. It fails with ErrNoCredentials when no key is configured.
func New(config Config, log logrus.FieldLogger, opts ...Option) (*Client, error) {
	keys := make([]string, 0, len(config.APIKeys))
	for _, k := range config.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, ErrNoCredentials
	}
	config.APIKeys = keys
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 30
	}
	if config.VisionTokens <= 0 {
		config.VisionTokens = 10
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	c := &Client{
		config:  config,
		clients: make([]*openai.Client, len(keys)),
		models:  modelOrder(config.Model, config.FallbackModels),
		log:     log.WithField("component", "classify"),
	}
	for i, key := range keys {
		c.clients[i] = c.newClient(key, &http.Client{Timeout: config.Timeout})
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) newClient(key string, hc *http.Client) *openai.Client {
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *hc
	wrapped.Transport = &headerTransport{base: base, referer: c.config.Referer, title: c.config.Title}

	cfg := openai.DefaultConfig(key)
	if c.config.BaseURL != "" {
		cfg.BaseURL = c.config.BaseURL
	}
	cfg.HTTPClient = &wrapped
	return openai.NewClientWithConfig(cfg)
}

// modelOrder puts the primary model first and drops repeats.
func modelOrder(primary string, fallbacks []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range append([]string{primary}, fallbacks...) {
		if m = strings.TrimSpace(m); m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// Models returns the model order tried for each key.
func (c *Client) Models() []string {
	return append([]string(nil), c.models...)
}

// Classify asks each (key, model) backend in turn for the word the payload
// shows. The first sanitised reply wins. When all fail the error wraps
// ErrBackendsExhausted and the last backend error.
func (c *Client) Classify(ctx context.Context, p gesture.Payload) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: userPrompt(p, c.vocabulary(p.Language))},
	}

	var lastErr error
	attempts := 0
	for ki, client := range c.clients {
		for _, model := range c.models {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			attempts++
			word, err := c.attempt(ctx, client, model, messages, c.config.MaxTokens)
			if err == nil {
				c.log.WithFields(logrus.Fields{"model": model, "word": word}).Debug("classified gesture")
				return word, nil
			}
			lastErr = err
			c.log.WithFields(logrus.Fields{"model": model, "key": ki}).WithError(err).Warn("classifier backend failed")
		}
	}
	return "", &exhaustedError{attempts: attempts, last: lastErr}
}

func (c *Client) attempt(ctx context.Context, client *openai.Client, model string, messages []openai.ChatCompletionMessage, maxTokens int) (string, error) {
	start := time.Now()
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: c.config.Temperature,
		MaxTokens:   maxTokens,
	})
	if err == nil {
		var raw string
		if len(resp.Choices) > 0 {
			raw = resp.Choices[0].Message.Content
		}
		var word string
		word, err = Sanitize(raw)
		if err == nil {
			c.observe(model, nil, time.Since(start))
			return word, nil
		}
	}
	c.observe(model, err, time.Since(start))
	return "", err
}

// MinImageBytes is the smallest upload worth sending to the vision model.
const MinImageBytes = 1000

// ValidateImage rejects uploads that are not images or too small to show a sign.
func ValidateImage(mimeType string, data []byte) error {
	if !strings.HasPrefix(mimeType, "image/") {
		return fmt.Errorf("%w: type %q is not an image", ErrInvalidImage, mimeType)
	}
	if len(data) < MinImageBytes {
		return fmt.Errorf("%w: %d bytes is too small", ErrInvalidImage, len(data))
	}
	return nil
}

// ClassifyImage asks the vision model which sign an image shows. Replies
// outside VisionWords become Unknown. Keys are tried in order.
func (c *Client) ClassifyImage(ctx context.Context, lang gesture.Language, mimeType string, data []byte) (string, error) {
	if mimeType == "" && len(data) > 0 {
		mimeType = http.DetectContentType(data)
	}
	if err := ValidateImage(mimeType, data); err != nil {
		return "", err
	}
	model := c.config.VisionModel
	if model == "" {
		model = "openai/gpt-4o"
	}
	url := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
	messages := []openai.ChatCompletionMessage{{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: visionPrompt(lang)},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: url, Detail: openai.ImageURLDetailHigh}},
		},
	}}

	var lastErr error
	for ki, client := range c.clients {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		start := time.Now()
		resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       model,
			Messages:    messages,
			Temperature: c.config.Temperature,
			MaxTokens:   c.config.VisionTokens,
		})
		c.observe(model, err, time.Since(start))
		if err != nil {
			lastErr = err
			c.log.WithFields(logrus.Fields{"model": model, "key": ki}).WithError(err).Warn("vision backend failed")
			continue
		}
		var raw string
		if len(resp.Choices) > 0 {
			raw = resp.Choices[0].Message.Content
		}
		word := SanitizeVision(raw)
		c.log.WithFields(logrus.Fields{"model": model, "raw": raw, "word": word}).Debug("classified image")
		return word, nil
	}
	return "", &exhaustedError{attempts: len(c.clients), last: lastErr}
}

func (c *Client) vocabulary(lang gesture.Language) []string {
	if c.lexicon == nil {
		return nil
	}
	words, err := c.lexicon.Words(lang)
	if err != nil {
		c.log.WithError(err).Debug("vocabulary lookup failed")
		return nil
	}
	return words
}

func (c *Client) observe(model string, err error, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveAttempt(model, err, elapsed)
	}
}
