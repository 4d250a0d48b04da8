package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/signamoz/signa/internal/app"
	"github.com/signamoz/signa/internal/detector"
	"github.com/signamoz/signa/internal/gesture"
	"github.com/signamoz/signa/internal/session"
)

const (
	writeWait    = 10 * time.Second
	maxWSMessage = 8 << 20
	sendBuffer   = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Message types exchanged on the session socket.
const (
	MsgFrame      = "frame"
	MsgImageFrame = "image_frame"
	MsgImage      = "image"
	MsgClear      = "clear"
	MsgLanguage   = "language"
	MsgOnline     = "online"

	MsgState   = "state"
	MsgOutcome = "outcome"
	MsgWord    = "word"
	MsgError   = "error"
)

// ClientMessage is sent by the browser.
type ClientMessage struct {
	Type     string                `json:"type"`
	Results  *detector.FrameResult `json:"results,omitempty"`
	Data     string                `json:"data,omitempty"` // base64 image for "image"
	MimeType string                `json:"mime_type,omitempty"`
	Vision   bool                  `json:"vision,omitempty"`
	Language string                `json:"language,omitempty"`
	Online   *bool                 `json:"online,omitempty"`
}

// ServerMessage is pushed to the browser.
type ServerMessage struct {
	Type    string             `json:"type"`
	State   *session.State     `json:"state,omitempty"`
	Outcome session.Outcome    `json:"outcome,omitempty"`
	Word    *session.WordEvent `json:"word,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// SessionSocket runs one recognition session per WebSocket connection. The
// browser streams landmarks; the server pushes state snapshots and words.
type SessionSocket struct {
	app *app.App
	log logrus.FieldLogger
}

// NewSessionSocket creates the /api/sessions/ws handler.
func NewSessionSocket(a *app.App, log logrus.FieldLogger) *SessionSocket {
	return &SessionSocket{app: a, log: log}
}

// ServeHTTP upgrades the connection and serves a new session until the
// client disconnects. The session is stopped on disconnect.
func (h *SessionSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	lang, err := h.app.ParseLanguage(r.URL.Query().Get("language"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxWSMessage)

	s := h.app.Sessions().Create(lang)
	log := h.log.WithField("session", s.ID())
	log.Info("websocket session opened")

	send := make(chan ServerMessage, sendBuffer)
	var closeOnce sync.Once
	done := make(chan struct{})
	stop := func() { closeOnce.Do(func() { close(done) }) }

	push := func(m ServerMessage) {
		select {
		case send <- m:
		case <-done:
		default:
			// Slow client: drop rather than stall the session.
			log.Debug("dropping websocket message")
		}
	}

	unsubState := s.Subscribe(func(st session.State) {
		push(ServerMessage{Type: MsgState, State: &st})
	})
	unsubWord := s.OnWord(func(e session.WordEvent) {
		push(ServerMessage{Type: MsgWord, Word: &e})
	})

	var writers sync.WaitGroup
	writers.Add(1)
	go func() {
		defer writers.Done()
		for {
			select {
			case m := <-send:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(m); err != nil {
					log.WithError(err).Debug("websocket write")
					stop()
					return
				}
			case <-done:
				return
			}
		}
	}()

	defer func() {
		unsubState()
		unsubWord()
		stop()
		writers.Wait()
		h.app.Sessions().Stop(s.ID())
		log.Info("websocket session closed")
	}()

	initial := s.State()
	push(ServerMessage{Type: MsgState, State: &initial})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			push(ServerMessage{Type: MsgError, Error: "invalid message"})
			continue
		}
		if reply, ok := h.handle(r.Context(), s, msg); ok {
			push(reply)
		}
	}
}

// handle applies one client message and returns an optional direct reply.
func (h *SessionSocket) handle(ctx context.Context, s *session.Session, msg ClientMessage) (ServerMessage, bool) {
	switch msg.Type {
	case MsgFrame, MsgImageFrame:
		if msg.Results == nil {
			return ServerMessage{Type: MsgError, Error: "results is required"}, true
		}
		source := session.SourceStream
		if msg.Type == MsgImageFrame {
			source = session.SourceImage
		}
		outcome, err := h.app.Submit(s.ID(), msg.Results, source, time.Now())
		if err != nil {
			return ServerMessage{Type: MsgError, Error: err.Error()}, true
		}
		return ServerMessage{Type: MsgOutcome, Outcome: outcome}, true

	case MsgImage:
		data, err := base64.StdEncoding.DecodeString(msg.Data)
		if err != nil {
			return ServerMessage{Type: MsgError, Error: "invalid image data"}, true
		}
		mimeType := msg.MimeType
		if mimeType == "" {
			mimeType = http.DetectContentType(data)
		}
		_, outcome, err := h.app.RecognizeImage(ctx, s.ID(), data, mimeType, msg.Vision)
		if err != nil {
			return ServerMessage{Type: MsgError, Error: err.Error()}, true
		}
		return ServerMessage{Type: MsgOutcome, Outcome: outcome}, true

	case MsgClear:
		s.ClearPhrase()
	case MsgLanguage:
		if err := s.SetLanguage(gesture.Language(msg.Language)); err != nil {
			return ServerMessage{Type: MsgError, Error: err.Error()}, true
		}
	case MsgOnline:
		if msg.Online == nil {
			return ServerMessage{Type: MsgError, Error: "online is required"}, true
		}
		s.SetOnline(*msg.Online)
	default:
		return ServerMessage{Type: MsgError, Error: "unknown message type " + msg.Type}, true
	}
	return ServerMessage{}, false
}

// LandmarksHandler broadcasts the landmarks of the server-side capture loop.
type LandmarksHandler struct {
	app     *app.App
	log     logrus.FieldLogger
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
	once    sync.Once
}

// NewLandmarksHandler creates a new LandmarksHandler.
func NewLandmarksHandler(a *app.App, log logrus.FieldLogger) *LandmarksHandler {
	return &LandmarksHandler{
		app:     a,
		log:     log,
		clients: make(map[*websocket.Conn]bool),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *LandmarksHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade")
		return
	}
	defer conn.Close()
	h.once.Do(func() { go h.broadcast() })

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// broadcast sends landmark data to all connected clients.
func (h *LandmarksHandler) broadcast() {
	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	var last *detector.FrameResult
	for range ticker.C {
		h.mu.RLock()
		n := len(h.clients)
		h.mu.RUnlock()
		if n == 0 {
			continue
		}

		frame := h.app.LatestLandmarks()
		if frame == nil || frame == last {
			continue
		}
		last = frame

		msg, _ := json.Marshal(map[string]any{
			"landmarks": frame,
			"timestamp": time.Now().UnixMilli(),
		})

		// Writes happen under the write lock: gorilla allows one writer per conn.
		h.mu.Lock()
		for conn := range h.clients {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.TextMessage, msg)
		}
		h.mu.Unlock()
	}
}
