// Package session holds the per-user recognition state: the last accepted
// frame, the throttle, the phrase being assembled and the classification
// in flight.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/signamoz/signa/internal/classify"
	"github.com/signamoz/signa/internal/detector"
	"github.com/signamoz/signa/internal/gesture"
	"github.com/signamoz/signa/internal/phrase"
)

// Source tells where a frame or word came from.
type Source string

const (
	SourceStream Source = "stream"
	SourceImage  Source = "image"
	SourceVision Source = "vision"
	SourceVideo  Source = "video"
)

// Outcome is the result of submitting a frame.
type Outcome string

const (
	OutcomeInactive     Outcome = "inactive"
	OutcomeThrottled    Outcome = "throttled"
	OutcomeBusy         Outcome = "busy"
	OutcomeNoHand       Outcome = "no-hand"
	OutcomeInsufficient Outcome = "insufficient-landmarks"
	OutcomeUnchanged    Outcome = "unchanged"
	OutcomeOffline      Outcome = "offline"
	OutcomeNoGesture    Outcome = "no-gesture"
	OutcomeDispatched   Outcome = "dispatched"
)

// Status texts shown to the user.
const (
	StatusCapturing        = "Capturando gestos..."
	StatusCapturingOffline = "Capturando gestos (Offline)"
	StatusClassifying      = "Consultando OpenRouter..."
	StatusRecognized       = "Gesto reconhecido"
	StatusNoHand           = "Nenhuma mão detectada"
	StatusNoHandImage      = "Nenhuma mão detectada na imagem"
	StatusInsufficient     = "Mãos detectadas mas insuficientes para reconhecimento"
	StatusFailed           = "Erro na tradução. Tentando novamente."
	StatusStopped          = "Captura encerrada"
)

// DefaultTimeout bounds a single classification.
const DefaultTimeout = 30 * time.Second

var (
	// ErrInactive is returned when operating on a stopped session.
	ErrInactive = errors.New("session is not active")
	// ErrUnsupportedLanguage is returned by SetLanguage for unknown languages.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// Classifier turns a payload into a word.
type Classifier interface {
	Classify(ctx context.Context, p gesture.Payload) (string, error)
}

// Describer looks up the description of a known word.
type Describer interface {
	Describe(language, word string) (string, error)
}

// WordEvent is emitted every time a classification yields a word.
type WordEvent struct {
	SessionID string
	Language  gesture.Language
	Word      string
	Source    Source
	// Appended is false for repeats and for the unknown marker.
	Appended bool
	Phrase   []string
	At       time.Time
}

// State is a snapshot of a session.
type State struct {
	ID          string           `json:"id"`
	Language    gesture.Language `json:"language"`
	Phrase      []string         `json:"phrase"`
	Text        string           `json:"text"`
	CurrentWord string           `json:"current_word"`
	Description string           `json:"description,omitempty"`
	Status      string           `json:"status"`
	Error       string           `json:"error,omitempty"`
	Active      bool             `json:"active"`
	Online      bool             `json:"online"`
	Streaming   bool             `json:"streaming"`
	Busy        bool             `json:"busy"`
	LastAttempt time.Time        `json:"last_attempt,omitzero"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Config configures a session.
type Config struct {
	Language    gesture.Language
	MinInterval time.Duration
	Change      gesture.ChangeConfig
	PosePoints  int
	Timeout     time.Duration
	Classifier  Classifier
	Describer   Describer
	Log         logrus.FieldLogger
}

// Session evaluates frames for one user. It is safe for concurrent use.
type Session struct {
	id        string
	createdAt time.Time
	config    Config
	log       logrus.FieldLogger

	throttle *gesture.Throttle
	change   *gesture.ChangeDetector
	phrase   *phrase.Phrase

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	language    gesture.Language
	prev        *detector.FrameResult
	currentWord string
	status      string
	lastErr     string
	active      bool
	online      bool
	streaming   bool
	inFlight    int

	listenersMu sync.RWMutex
	nextID      int
	stateSubs   map[int]func(State)
	wordSubs    map[int]func(WordEvent)
}

// New creates an active, online session.
func New(id string, config Config) *Session {
	if !config.Language.Valid() {
		config.Language = gesture.Libras
	}
	if config.MinInterval == 0 {
		config.MinInterval = gesture.DefaultMinInterval
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	log := config.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:        id,
		createdAt: time.Now(),
		config:    config,
		log:       log.WithField("session", id),
		throttle:  gesture.NewThrottle(config.MinInterval),
		change:    gesture.NewChangeDetector(config.Change),
		phrase:    phrase.New(),
		ctx:       ctx,
		cancel:    cancel,
		language:  config.Language,
		status:    StatusCapturing,
		active:    true,
		online:    true,
		stateSubs: make(map[int]func(State)),
		wordSubs:  make(map[int]func(WordEvent)),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Language returns the current sign language.
func (s *Session) Language() gesture.Language {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

// Submit evaluates a frame captured at now.
//
// Streamed frames go through the throttle, then the in-flight guard, then the
// change detector. Images skip the throttle and the in-flight guard; an image
// without hands sets the unknown word and never reaches the classifier.
func (s *Session) Submit(frame *detector.FrameResult, source Source, now time.Time) Outcome {
	outcome := s.submit(frame, source, now)
	switch outcome {
	case OutcomeThrottled, OutcomeBusy, OutcomeUnchanged, OutcomeInactive:
	default:
		s.broadcast()
	}
	return outcome
}

func (s *Session) submit(frame *detector.FrameResult, source Source, now time.Time) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return OutcomeInactive
	}

	fromImage := source == SourceImage
	if !fromImage {
		if !s.throttle.Allow(now) {
			return OutcomeThrottled
		}
		if s.inFlight > 0 {
			return OutcomeBusy
		}
	}

	if fromImage && frame.HandCount() == 0 {
		s.currentWord = classify.Unknown
		s.status = StatusNoHandImage
		return OutcomeNoGesture
	}

	change := s.change.Detect(s.prev, frame, fromImage)
	if !change.Changed {
		switch change.Reason {
		case gesture.ReasonNoHand:
			s.status = StatusNoHand
			return OutcomeNoHand
		case gesture.ReasonInsufficient:
			s.status = StatusInsufficient
			return OutcomeInsufficient
		default:
			return OutcomeUnchanged
		}
	}

	s.prev = frame
	s.throttle.Mark(now)

	if !s.online {
		s.status = StatusCapturingOffline
		return OutcomeOffline
	}
	if s.config.Classifier == nil {
		s.status = StatusCapturingOffline
		return OutcomeOffline
	}

	payload := gesture.BuildPayload(s.language, frame, now, s.config.PosePoints)
	s.inFlight++
	s.status = StatusClassifying
	s.lastErr = ""
	s.wg.Add(1)
	go s.classify(payload, source, change.Reason)

	return OutcomeDispatched
}

func (s *Session) classify(payload gesture.Payload, source Source, reason gesture.Reason) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(s.ctx, s.config.Timeout)
	defer cancel()

	started := time.Now()
	word, err := s.config.Classifier.Classify(ctx, payload)
	log := s.log.WithFields(logrus.Fields{
		"source":  source,
		"reason":  reason,
		"hands":   payload.HandCount(),
		"elapsed": time.Since(started).Round(time.Millisecond),
	})

	s.mu.Lock()
	s.inFlight--
	if !s.active {
		s.mu.Unlock()
		log.Debug("dropping result for stopped session")
		return
	}
	if err != nil {
		s.status = StatusFailed
		s.lastErr = err.Error()
		s.mu.Unlock()
		log.WithError(err).Warn("classification failed")
		s.broadcast()
		return
	}
	event := s.applyWordLocked(word, source, time.Now())
	s.mu.Unlock()

	log.WithField("word", word).Info("gesture classified")
	s.emit(event)
	s.broadcast()
}

// ApplyWord records a word obtained outside the frame pipeline, such as a
// vision classification. It reports whether the word joined the phrase.
func (s *Session) ApplyWord(word string, source Source) (bool, error) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return false, ErrInactive
	}
	event := s.applyWordLocked(word, source, time.Now())
	s.mu.Unlock()

	s.emit(event)
	s.broadcast()
	return event.Appended, nil
}

// applyWordLocked sets the current word and appends it unless it is the
// unknown marker. Callers hold s.mu.
func (s *Session) applyWordLocked(word string, source Source, now time.Time) WordEvent {
	s.currentWord = word
	s.status = StatusRecognized
	s.lastErr = ""

	appended := false
	if word != classify.Unknown {
		appended = s.phrase.Append(word)
	}
	return WordEvent{
		SessionID: s.id,
		Language:  s.language,
		Word:      word,
		Source:    source,
		Appended:  appended,
		Phrase:    s.phrase.Words(),
		At:        now,
	}
}

// SetStatus replaces the status text, for example while an upload is decoded.
func (s *Session) SetStatus(status string) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
	s.broadcast()
}

// Fail records an error that happened outside classification.
func (s *Session) Fail(status string, err error) {
	s.mu.Lock()
	s.status = status
	if err != nil {
		s.lastErr = err.Error()
	}
	s.mu.Unlock()
	s.broadcast()
}

// ClearPhrase empties the phrase and resets the current word.
func (s *Session) ClearPhrase() {
	s.mu.Lock()
	s.phrase.Clear()
	s.currentWord = ""
	s.mu.Unlock()
	s.broadcast()
}

// SetLanguage switches the sign language used for new payloads.
func (s *Session) SetLanguage(lang gesture.Language) error {
	if !lang.Valid() {
		return fmt.Errorf("%w %q", ErrUnsupportedLanguage, lang)
	}
	s.mu.Lock()
	s.language = lang
	s.mu.Unlock()
	s.broadcast()
	return nil
}

// SetOnline toggles classification. Offline sessions keep gating frames.
func (s *Session) SetOnline(online bool) {
	s.mu.Lock()
	s.online = online
	if s.active {
		s.status = StatusCapturing
		if !online {
			s.status = StatusCapturingOffline
		}
	}
	s.mu.Unlock()
	s.broadcast()
}

// SetStreaming records whether frames are currently being fed.
func (s *Session) SetStreaming(streaming bool) {
	s.mu.Lock()
	s.streaming = streaming
	s.mu.Unlock()
	s.broadcast()
}

// Stop deactivates the session and cancels the classification in flight.
// Results that arrive later are dropped.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.streaming = false
	s.status = StatusStopped
	s.mu.Unlock()

	s.cancel()
	s.broadcast()
}

// Active reports whether the session accepts frames.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Ready reports whether a streamed frame at now would get past the throttle
// and the in-flight guard. Callers use it to skip landmark detection.
func (s *Session) Ready(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active && s.inFlight == 0 && s.throttle.Allow(now)
}

// Wait blocks until no classification is in flight.
func (s *Session) Wait() {
	s.wg.Wait()
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	st := State{
		ID:          s.id,
		Language:    s.language,
		Phrase:      s.phrase.Words(),
		Text:        s.phrase.String(),
		CurrentWord: s.currentWord,
		Status:      s.status,
		Error:       s.lastErr,
		Active:      s.active,
		Online:      s.online,
		Streaming:   s.streaming,
		Busy:        s.inFlight > 0,
		LastAttempt: s.throttle.Last(),
		CreatedAt:   s.createdAt,
	}
	s.mu.Unlock()

	if s.config.Describer != nil && st.CurrentWord != "" && st.CurrentWord != classify.Unknown {
		desc, err := s.config.Describer.Describe(string(st.Language), st.CurrentWord)
		if err != nil {
			s.log.WithError(err).Debug("describe word")
		}
		st.Description = desc
	}
	return st
}

// Subscribe registers fn for state changes and returns a function that
// removes it.
func (s *Session) Subscribe(fn func(State)) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	id := s.nextID
	s.nextID++
	s.stateSubs[id] = fn
	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.stateSubs, id)
	}
}

// OnWord registers fn for every classified word and returns a function that
// removes it.
func (s *Session) OnWord(fn func(WordEvent)) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	id := s.nextID
	s.nextID++
	s.wordSubs[id] = fn
	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.wordSubs, id)
	}
}

func (s *Session) broadcast() {
	s.listenersMu.RLock()
	subs := make([]func(State), 0, len(s.stateSubs))
	for _, fn := range s.stateSubs {
		subs = append(subs, fn)
	}
	s.listenersMu.RUnlock()
	if len(subs) == 0 {
		return
	}

	st := s.State()
	for _, fn := range subs {
		fn(st)
	}
}

func (s *Session) emit(event WordEvent) {
	s.listenersMu.RLock()
	subs := make([]func(WordEvent), 0, len(s.wordSubs))
	for _, fn := range s.wordSubs {
		subs = append(subs, fn)
	}
	s.listenersMu.RUnlock()

	for _, fn := range subs {
		fn(event)
	}
}
