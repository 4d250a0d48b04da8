package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/signamoz/signa/internal/gesture"
	"github.com/signamoz/signa/internal/logging"
)

// fakeRouter is an OpenAI-compatible chat completions endpoint.
type fakeRouter struct {
	mu       sync.Mutex
	requests []recordedRequest
	reply    func(key, model string) (status int, content string)
}

type recordedRequest struct {
	Key     string
	Model   string
	Referer string
	Title   string
	Body    map[string]any
}

func (f *fakeRouter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/v1/chat/completions" {
		http.NotFound(w, r)
		return
	}
	var body map[string]any
	json.NewDecoder(r.Body).Decode(&body)
	key := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	model, _ := body["model"].(string)

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Key:     key,
		Model:   model,
		Referer: r.Header.Get("HTTP-Referer"),
		Title:   r.Header.Get("X-Title"),
		Body:    body,
	})
	f.mu.Unlock()

	status, content := f.reply(key, model)
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"error":{"message":%q,"type":"invalid_request_error"}}`, content)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"id":      "gen-1",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   model,
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
}

func (f *fakeRouter) calls() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func newTestClient(t *testing.T, router *fakeRouter, keys []string, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL:        srv.URL + "/api/v1",
		APIKeys:        keys,
		Model:          "primary/model",
		FallbackModels: []string{"fallback/one", "primary/model", "fallback/two"},
		VisionModel:    "vision/model",
		Temperature:    0.1,
		MaxTokens:      30,
		Referer:        "http://localhost:8080",
		Title:          "Signa",
		Timeout:        5 * time.Second,
	}, logging.NewTestLogger(), opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func samplePayload() gesture.Payload {
	hand := make([]gesture.Point, 21)
	for i := range hand {
		hand[i] = gesture.Point{0.1234, 0.5678, -0.0012}
	}
	return gesture.Payload{
		Language:  gesture.Libras,
		Hands:     [][]gesture.Point{hand, hand},
		Pose:      make([]gesture.Point, 18),
		Timestamp: 1700000000000,
	}
}

func TestNew_RequiresCredentials(t *testing.T) {
	for _, keys := range [][]string{nil, {}, {"", "  "}} {
		if _, err := New(Config{Model: "m", APIKeys: keys}, nil); !errors.Is(err, ErrNoCredentials) {
			t.Errorf("keys %q: error = %v, want ErrNoCredentials", keys, err)
		}
	}
}

func TestModelOrder(t *testing.T) {
	got := modelOrder("a", []string{"b", "a", "", "c", "b"})
	want := []string{"a", "b", "c"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("modelOrder() = %v, want %v", got, want)
	}
}

func TestClassify_FirstBackendWins(t *testing.T) {
	router := &fakeRouter{reply: func(key, model string) (int, string) {
		return http.StatusOK, "Olá."
	}}
	c := newTestClient(t, router, []string{"key-1"})

	word, err := c.Classify(context.Background(), samplePayload())
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if word != "olá" {
		t.Errorf("word = %q, want olá", word)
	}

	calls := router.calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 request, got %d", len(calls))
	}
	req := calls[0]
	if req.Key != "key-1" || req.Model != "primary/model" {
		t.Errorf("request key/model = %q/%q", req.Key, req.Model)
	}
	if req.Referer != "http://localhost:8080" || req.Title != "Signa" {
		t.Errorf("attribution headers = %q/%q", req.Referer, req.Title)
	}
	if mt, _ := req.Body["max_tokens"].(float64); mt != 30 {
		t.Errorf("max_tokens = %v, want 30", req.Body["max_tokens"])
	}
	if temp, _ := req.Body["temperature"].(float64); temp < 0.099 || temp > 0.101 {
		t.Errorf("temperature = %v, want 0.1", req.Body["temperature"])
	}

	msgs, _ := req.Body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(msgs))
	}
	user, _ := msgs[1].(map[string]any)["content"].(string)
	if !strings.Contains(user, "Libras (Brasil)") {
		t.Errorf("user prompt should name the language: %s", user)
	}
}

func TestClassify_FailsOverAcrossModelsAndKeys(t *testing.T) {
	router := &fakeRouter{reply: func(key, model string) (int, string) {
		switch {
		case key == "key-1":
			return http.StatusUnauthorized, "bad key"
		case model == "primary/model":
			return http.StatusOK, ""
		case model == "fallback/one":
			return http.StatusOK, "a palavra é 42"
		default:
			return http.StatusOK, "obrigado"
		}
	}}
	c := newTestClient(t, router, []string{"key-1", "key-2"})

	word, err := c.Classify(context.Background(), samplePayload())
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if word != "obrigado" {
		t.Errorf("word = %q, want obrigado", word)
	}

	var order []string
	for _, r := range router.calls() {
		order = append(order, r.Key+":"+r.Model)
	}
	want := []string{
		"key-1:primary/model", "key-1:fallback/one", "key-1:fallback/two",
		"key-2:primary/model", "key-2:fallback/one", "key-2:fallback/two",
	}
	if strings.Join(order, " ") != strings.Join(want, " ") {
		t.Errorf("attempt order:\n got %v\nwant %v", order, want)
	}
}

func TestClassify_Exhausted(t *testing.T) {
	router := &fakeRouter{reply: func(key, model string) (int, string) {
		return http.StatusTooManyRequests, "rate limited " + model
	}}
	c := newTestClient(t, router, []string{"key-1"})

	_, err := c.Classify(context.Background(), samplePayload())
	if !errors.Is(err, ErrBackendsExhausted) {
		t.Fatalf("error = %v, want ErrBackendsExhausted", err)
	}
	if !strings.Contains(err.Error(), "fallback/two") {
		t.Errorf("error should carry the last backend failure: %v", err)
	}
	if got := len(router.calls()); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestClassify_InvalidRepliesExhaust(t *testing.T) {
	router := &fakeRouter{reply: func(key, model string) (int, string) {
		return http.StatusOK, "123"
	}}
	c := newTestClient(t, router, []string{"key-1"})

	_, err := c.Classify(context.Background(), samplePayload())
	if !errors.Is(err, ErrBackendsExhausted) || !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("error = %v, want exhausted wrapping invalid response", err)
	}
}

func TestClassify_ContextCancelled(t *testing.T) {
	router := &fakeRouter{reply: func(key, model string) (int, string) {
		return http.StatusOK, "casa"
	}}
	c := newTestClient(t, router, []string{"key-1"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Classify(ctx, samplePayload()); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if len(router.calls()) != 0 {
		t.Error("no request should be sent after cancellation")
	}
}

type staticLexicon []string

func (s staticLexicon) Words(gesture.Language) ([]string, error) { return s, nil }

type countingObserver struct {
	mu       sync.Mutex
	ok, fail int
}

func (o *countingObserver) ObserveAttempt(model string, err error, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.fail++
	} else {
		o.ok++
	}
}

func TestClassify_LexiconAndObserver(t *testing.T) {
	router := &fakeRouter{reply: func(key, model string) (int, string) {
		if model == "primary/model" {
			return http.StatusBadGateway, "upstream"
		}
		return http.StatusOK, "mãe"
	}}
	obs := &countingObserver{}
	c := newTestClient(t, router, []string{"key-1"},
		WithLexicon(staticLexicon{"mãe", "pai"}),
		WithObserver(obs),
	)

	if _, err := c.Classify(context.Background(), samplePayload()); err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if obs.ok != 1 || obs.fail != 1 {
		t.Errorf("observer ok/fail = %d/%d, want 1/1", obs.ok, obs.fail)
	}
	msgs := router.calls()[0].Body["messages"].([]any)
	user := msgs[1].(map[string]any)["content"].(string)
	if !strings.Contains(user, "mãe, pai") {
		t.Errorf("prompt should list known vocabulary: %s", user)
	}
}

func TestClassifyImage(t *testing.T) {
	router := &fakeRouter{reply: func(key, model string) (int, string) {
		if key == "key-1" {
			return http.StatusInternalServerError, "boom"
		}
		return http.StatusOK, "Por favor."
	}}
	c := newTestClient(t, router, []string{"key-1", "key-2"})

	word, err := c.ClassifyImage(context.Background(), gesture.LSM, "image/png", fakeImage("\x89PNG"))
	if err != nil {
		t.Fatalf("ClassifyImage() error = %v", err)
	}
	if word != "por favor" {
		t.Errorf("word = %q, want por favor", word)
	}

	calls := router.calls()
	if len(calls) != 2 || calls[1].Model != "vision/model" {
		t.Fatalf("unexpected calls: %+v", calls)
	}
	if mt, _ := calls[1].Body["max_tokens"].(float64); mt != 10 {
		t.Errorf("max_tokens = %v, want 10", calls[1].Body["max_tokens"])
	}
	msg := calls[1].Body["messages"].([]any)[0].(map[string]any)
	parts := msg["content"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected text and image parts, got %d", len(parts))
	}
	image := parts[1].(map[string]any)["image_url"].(map[string]any)
	if url := image["url"].(string); !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Errorf("image url = %q", url)
	}
	if image["detail"] != "high" {
		t.Errorf("detail = %v, want high", image["detail"])
	}
	text := parts[0].(map[string]any)["text"].(string)
	if !strings.Contains(text, "Língua Gestual Moçambicana") {
		t.Errorf("vision prompt should name the language: %s", text)
	}
}

func TestClassifyImage_UnknownReply(t *testing.T) {
	router := &fakeRouter{reply: func(key, model string) (int, string) {
		return http.StatusOK, "I cannot tell"
	}}
	c := newTestClient(t, router, []string{"key-1"})

	word, err := c.ClassifyImage(context.Background(), gesture.Libras, "image/jpeg", fakeImage("\xff\xd8\xff"))
	if err != nil {
		t.Fatalf("ClassifyImage() error = %v", err)
	}
	if word != Unknown {
		t.Errorf("word = %q, want %q", word, Unknown)
	}
}

func TestClassifyImage_EmptyAndExhausted(t *testing.T) {
	router := &fakeRouter{reply: func(key, model string) (int, string) {
		return http.StatusServiceUnavailable, "down"
	}}
	c := newTestClient(t, router, []string{"key-1"})

	if _, err := c.ClassifyImage(context.Background(), gesture.Libras, "", nil); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("empty image error = %v, want ErrInvalidImage", err)
	}
	if _, err := c.ClassifyImage(context.Background(), gesture.Libras, "", fakeImage("\xff\xd8\xff")); !errors.Is(err, ErrBackendsExhausted) {
		t.Errorf("error = %v, want ErrBackendsExhausted", err)
	}
}

// fakeImage pads a magic number up to a plausible upload size.
func fakeImage(magic string) []byte {
	data := make([]byte, 2*MinImageBytes)
	copy(data, magic)
	return data
}

func TestClassifyImage_RejectsInvalidUploads(t *testing.T) {
	router := &fakeRouter{reply: func(key, model string) (int, string) {
		return http.StatusOK, "olá"
	}}
	c := newTestClient(t, router, []string{"key-1"})

	tests := []struct {
		name     string
		mimeType string
		data     []byte
	}{
		{"not an image", "application/pdf", fakeImage("%PDF-1.4")},
		{"sniffed text", "", []byte(strings.Repeat("hello ", 400))},
		{"too small", "image/jpeg", []byte{0xff, 0xd8, 0xff, 0xe0}},
		{"one byte short", "image/png", make([]byte, MinImageBytes-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.ClassifyImage(context.Background(), gesture.Libras, tt.mimeType, tt.data)
			if !errors.Is(err, ErrInvalidImage) {
				t.Errorf("ClassifyImage() error = %v, want ErrInvalidImage", err)
			}
		})
	}
	if n := len(router.calls()); n != 0 {
		t.Errorf("invalid uploads reached the vision model %d times", n)
	}
}

func TestValidateImage(t *testing.T) {
	if err := ValidateImage("image/webp", make([]byte, MinImageBytes)); err != nil {
		t.Errorf("ValidateImage() at the minimum size = %v, want nil", err)
	}
}

func TestUserPromptTruncation(t *testing.T) {
	p := samplePayload()
	prompt := userPrompt(p, nil)

	hands := between(prompt, "MÃOS: ", "\n")
	if len(hands) != handsExcerpt {
		t.Errorf("hands excerpt length = %d, want %d", len(hands), handsExcerpt)
	}
	pose := between(prompt, "POSE: ", "\n")
	if len(pose) > poseExcerpt {
		t.Errorf("pose excerpt length = %d, want <= %d", len(pose), poseExcerpt)
	}

	empty := userPrompt(gesture.Payload{Language: gesture.LSM}, nil)
	if !strings.Contains(empty, "MÃOS: Nenhuma") || !strings.Contains(empty, "POSE: Nenhuma") {
		t.Errorf("empty payload prompt = %s", empty)
	}
}

func between(s, start, end string) string {
	i := strings.Index(s, start)
	if i < 0 {
		return ""
	}
	s = s[i+len(start):]
	if j := strings.Index(s, end); j >= 0 {
		return s[:j]
	}
	return s
}
