package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/signamoz/signa/internal/classify"
	"github.com/signamoz/signa/internal/detector"
	"github.com/signamoz/signa/internal/gesture"
	"github.com/signamoz/signa/internal/logging"
)

type fakeClassifier struct {
	mu       sync.Mutex
	words    []string
	err      error
	calls    int
	payloads []gesture.Payload
	block    chan struct{}
}

func (f *fakeClassifier) Classify(ctx context.Context, p gesture.Payload) (string, error) {
	f.mu.Lock()
	f.calls++
	f.payloads = append(f.payloads, p)
	block := f.block
	var word string
	if len(f.words) > 0 {
		word = f.words[0]
		f.words = f.words[1:]
	}
	err := f.err
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return word, err
}

func (f *fakeClassifier) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeDescriber map[string]string

func (d fakeDescriber) Describe(language, word string) (string, error) {
	return d[language+"/"+word], nil
}

func handFrame(dx float64) *detector.FrameResult {
	return &detector.FrameResult{
		MultiHandLandmarks: [][]detector.Landmark{detector.Translate(detector.OpenPalmHand(0.9), dx, 0, 0)},
		PoseWorldLandmarks: detector.UpperBodyPose(0.9),
	}
}

func newTestSession(c Classifier) *Session {
	return New("test", Config{
		Language:   gesture.Libras,
		Classifier: c,
		Log:        logging.NewTestLogger(),
	})
}

var t0 = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func TestSubmit_ImageWithoutHands(t *testing.T) {
	c := &fakeClassifier{words: []string{"olá"}}
	s := newTestSession(c)

	got := s.Submit(&detector.FrameResult{PoseLandmarks: detector.UpperBodyPose(0.9)}, SourceImage, t0)
	s.Wait()

	if got != OutcomeNoGesture {
		t.Fatalf("outcome = %s, want %s", got, OutcomeNoGesture)
	}
	if c.Calls() != 0 {
		t.Errorf("classifier called %d times", c.Calls())
	}
	st := s.State()
	if st.CurrentWord != classify.Unknown {
		t.Errorf("current word = %q, want %q", st.CurrentWord, classify.Unknown)
	}
	if st.Status != StatusNoHandImage {
		t.Errorf("status = %q", st.Status)
	}
	if len(st.Phrase) != 0 {
		t.Errorf("phrase should stay empty, got %v", st.Phrase)
	}
}

func TestSubmit_StreamThrottledBeforeChangeDetection(t *testing.T) {
	c := &fakeClassifier{words: []string{"olá", "obrigado"}}
	s := newTestSession(c)

	if got := s.Submit(handFrame(0), SourceStream, t0); got != OutcomeDispatched {
		t.Fatalf("first frame outcome = %s", got)
	}
	s.Wait()

	// A frame without hands would be "no-hand" if it reached the detector.
	if got := s.Submit(&detector.FrameResult{}, SourceStream, t0.Add(100*time.Millisecond)); got != OutcomeThrottled {
		t.Errorf("second frame outcome = %s, want %s", got, OutcomeThrottled)
	}
	if c.Calls() != 1 {
		t.Errorf("expected 1 classification, got %d", c.Calls())
	}
}

func TestSubmit_ThrottleBoundary(t *testing.T) {
	tests := []struct {
		name  string
		after time.Duration
		want  Outcome
	}{
		{"just inside window", 5999 * time.Millisecond, OutcomeThrottled},
		{"exactly at interval", 6000 * time.Millisecond, OutcomeDispatched},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeClassifier{words: []string{"olá", "obrigado"}}
			s := newTestSession(c)

			s.Submit(handFrame(0), SourceStream, t0)
			s.Wait()

			if got := s.Submit(handFrame(0.4), SourceStream, t0.Add(tt.after)); got != tt.want {
				t.Errorf("outcome = %s, want %s", got, tt.want)
			}
			s.Wait()
		})
	}
}

func TestSubmit_StreamGates(t *testing.T) {
	c := &fakeClassifier{words: []string{"olá"}}
	s := newTestSession(c)

	s.Submit(handFrame(0), SourceStream, t0)
	s.Wait()

	few := &detector.FrameResult{MultiHandLandmarks: [][]detector.Landmark{detector.OpenPalmHand(0.9)[:5]}}

	tests := []struct {
		name  string
		frame *detector.FrameResult
		want  Outcome
	}{
		{"no hands", &detector.FrameResult{}, OutcomeNoHand},
		{"too few landmarks", few, OutcomeInsufficient},
		{"same position", handFrame(0.01), OutcomeUnchanged},
	}
	at := t0
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at = at.Add(7 * time.Second)
			if got := s.Submit(tt.frame, SourceStream, at); got != tt.want {
				t.Errorf("outcome = %s, want %s", got, tt.want)
			}
		})
	}
	if c.Calls() != 1 {
		t.Errorf("rejected frames must not be classified, got %d calls", c.Calls())
	}
}

func TestSubmit_Busy(t *testing.T) {
	c := &fakeClassifier{words: []string{"olá"}, block: make(chan struct{})}
	s := newTestSession(c)

	if got := s.Submit(handFrame(0), SourceStream, t0); got != OutcomeDispatched {
		t.Fatalf("outcome = %s", got)
	}
	if got := s.Submit(handFrame(0.5), SourceStream, t0.Add(7*time.Second)); got != OutcomeBusy {
		t.Errorf("outcome while in flight = %s, want %s", got, OutcomeBusy)
	}
	if !s.State().Busy {
		t.Error("state should report busy")
	}

	close(c.block)
	s.Wait()

	if got := s.State().Phrase; len(got) != 1 || got[0] != "olá" {
		t.Errorf("phrase = %v", got)
	}
}

func TestSubmit_StopDropsLateResult(t *testing.T) {
	c := &fakeClassifier{words: []string{"olá"}, block: make(chan struct{})}
	s := newTestSession(c)

	s.Submit(handFrame(0), SourceStream, t0)
	s.Stop()
	close(c.block)
	s.Wait()

	st := s.State()
	if st.Active {
		t.Error("session should be inactive")
	}
	if st.CurrentWord != "" || len(st.Phrase) != 0 {
		t.Errorf("late result mutated state: %+v", st)
	}
	if got := s.Submit(handFrame(1), SourceStream, t0.Add(time.Minute)); got != OutcomeInactive {
		t.Errorf("outcome after stop = %s", got)
	}
}

func TestSubmit_PhraseAssembly(t *testing.T) {
	c := &fakeClassifier{words: []string{"olá", "olá", classify.Unknown, "obrigado", "olá"}}
	s := newTestSession(c)

	at := t0
	for i := 0; i < 5; i++ {
		// Alternate positions so every frame counts as moved.
		if got := s.Submit(handFrame(float64(i%2)*0.5), SourceStream, at); got != OutcomeDispatched {
			t.Fatalf("frame %d outcome = %s", i, got)
		}
		s.Wait()
		at = at.Add(6 * time.Second)
	}

	st := s.State()
	want := []string{"olá", "obrigado", "olá"}
	if len(st.Phrase) != len(want) {
		t.Fatalf("phrase = %v, want %v", st.Phrase, want)
	}
	for i := range want {
		if st.Phrase[i] != want[i] {
			t.Errorf("phrase[%d] = %q, want %q", i, st.Phrase[i], want[i])
		}
	}
	if st.Text != "olá obrigado olá" {
		t.Errorf("text = %q", st.Text)
	}
}

func TestSubmit_UnknownIsNotAppended(t *testing.T) {
	c := &fakeClassifier{words: []string{classify.Unknown}}
	s := newTestSession(c)

	s.Submit(handFrame(0), SourceImage, t0)
	s.Wait()

	st := s.State()
	if st.CurrentWord != classify.Unknown {
		t.Errorf("current word = %q", st.CurrentWord)
	}
	if len(st.Phrase) != 0 {
		t.Errorf("unknown marker appended: %v", st.Phrase)
	}
}

func TestSubmit_Offline(t *testing.T) {
	c := &fakeClassifier{words: []string{"olá"}}
	s := newTestSession(c)
	s.SetOnline(false)

	if got := s.Submit(handFrame(0), SourceStream, t0); got != OutcomeOffline {
		t.Fatalf("outcome = %s, want %s", got, OutcomeOffline)
	}
	if c.Calls() != 0 {
		t.Error("offline session must not classify")
	}
	if st := s.State(); st.Status != StatusCapturingOffline || st.LastAttempt != t0 {
		t.Errorf("unexpected state: %+v", st)
	}

	s.SetOnline(true)
	if got := s.Submit(handFrame(0.5), SourceStream, t0.Add(6*time.Second)); got != OutcomeDispatched {
		t.Errorf("outcome after going online = %s", got)
	}
	s.Wait()
}

func TestSubmit_ClassificationError(t *testing.T) {
	c := &fakeClassifier{err: classify.ErrBackendsExhausted}
	s := newTestSession(c)

	s.Submit(handFrame(0), SourceStream, t0)
	s.Wait()

	st := s.State()
	if st.Status != StatusFailed || st.Error == "" {
		t.Errorf("expected failure status, got %+v", st)
	}
	if st.Busy {
		t.Error("failed classification should clear busy")
	}

	c.mu.Lock()
	c.err = nil
	c.words = []string{"casa"}
	c.mu.Unlock()

	s.Submit(handFrame(0.5), SourceStream, t0.Add(6*time.Second))
	s.Wait()
	if st := s.State(); st.CurrentWord != "casa" || st.Error != "" {
		t.Errorf("loop should recover, got %+v", st)
	}
}

func TestSubmit_PayloadUsesSessionLanguage(t *testing.T) {
	c := &fakeClassifier{words: []string{"hola"}}
	s := newTestSession(c)
	if err := s.SetLanguage(gesture.LSM); err != nil {
		t.Fatalf("set language: %v", err)
	}
	if err := s.SetLanguage("klingon"); !errors.Is(err, ErrUnsupportedLanguage) {
		t.Errorf("SetLanguage(klingon) error = %v, want ErrUnsupportedLanguage", err)
	}
	if got := s.Language(); got != gesture.LSM {
		t.Errorf("rejected language replaced %s", got)
	}

	s.Submit(handFrame(0), SourceStream, t0)
	s.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.payloads) != 1 {
		t.Fatalf("expected one payload, got %d", len(c.payloads))
	}
	p := c.payloads[0]
	if p.Language != gesture.LSM {
		t.Errorf("payload language = %s", p.Language)
	}
	if p.Timestamp != t0.UnixMilli() {
		t.Errorf("payload timestamp = %d", p.Timestamp)
	}
	if len(p.Pose) != gesture.DefaultPosePoints {
		t.Errorf("pose points = %d", len(p.Pose))
	}
}

func TestApplyWordAndClear(t *testing.T) {
	s := New("test", Config{
		Log:       logging.NewTestLogger(),
		Describer: fakeDescriber{"libras/casa": "Mãos em formato de teto"},
	})

	var events []WordEvent
	s.OnWord(func(e WordEvent) { events = append(events, e) })

	appended, err := s.ApplyWord("casa", SourceVision)
	if err != nil || !appended {
		t.Fatalf("ApplyWord = %v, %v", appended, err)
	}
	appended, _ = s.ApplyWord("casa", SourceVision)
	if appended {
		t.Error("repeat should not be appended")
	}

	st := s.State()
	if st.Description != "Mãos em formato de teto" {
		t.Errorf("description = %q", st.Description)
	}
	if len(events) != 2 || !events[0].Appended || events[1].Appended {
		t.Errorf("unexpected events: %+v", events)
	}
	if events[0].Source != SourceVision || events[0].SessionID != "test" {
		t.Errorf("unexpected event: %+v", events[0])
	}

	s.ClearPhrase()
	st = s.State()
	if len(st.Phrase) != 0 || st.CurrentWord != "" || st.Description != "" {
		t.Errorf("clear left state behind: %+v", st)
	}

	s.Stop()
	if _, err := s.ApplyWord("casa", SourceVision); !errors.Is(err, ErrInactive) {
		t.Errorf("expected ErrInactive, got %v", err)
	}
}

func TestSubscribe(t *testing.T) {
	s := newTestSession(&fakeClassifier{words: []string{"olá"}})

	var mu sync.Mutex
	var states []State
	unsubscribe := s.Subscribe(func(st State) {
		mu.Lock()
		states = append(states, st)
		mu.Unlock()
	})

	s.Submit(handFrame(0), SourceStream, t0)
	s.Wait()

	mu.Lock()
	n := len(states)
	last := states[len(states)-1]
	mu.Unlock()
	if n < 2 {
		t.Fatalf("expected dispatch and result notifications, got %d", n)
	}
	if last.CurrentWord != "olá" {
		t.Errorf("last state word = %q", last.CurrentWord)
	}

	unsubscribe()
	s.ClearPhrase()
	mu.Lock()
	defer mu.Unlock()
	if len(states) != n {
		t.Error("unsubscribed listener was called")
	}
}
