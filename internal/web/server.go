// Package web serves the browser UI: conversation history and the live
// webcam frame are pushed over a websocket, controls are plain POST
// endpoints.
package web

import (
	"context"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	log "log/slog"

	ws "github.com/gorilla/websocket"

	"github.com/khushiuttamani/ai-assistant/internal/convo"
	"github.com/khushiuttamani/ai-assistant/internal/webcam"
)

//go:embed index.html
var indexHTML []byte

const frameInterval = 33 * time.Millisecond // ~30 Hz

// push is the one message shape the UI receives.
type push struct {
	Kind  string       `json:"kind"` // "history" | "frame"
	Turns []convo.Turn `json:"turns,omitempty"`
	JPEG  string       `json:"jpeg,omitempty"`
}

type Server struct {
	ctrl *convo.Controller
	feed *webcam.Feed

	upgrader ws.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *ws.Conn
	send chan []byte
}

func NewServer(ctrl *convo.Controller, feed *webcam.Feed) *Server {
	return &Server{
		ctrl: ctrl,
		feed: feed,
		upgrader: ws.Upgrader{
			// Local single-user UI.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleIndex)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("POST /api/listen/start", s.handleListenStart)
	mux.HandleFunc("POST /api/listen/stop", s.handleListenStop)
	mux.HandleFunc("POST /api/clear", s.handleClear)
	mux.HandleFunc("POST /api/camera/start", s.handleCameraStart)
	mux.HandleFunc("POST /api/camera/stop", s.handleCameraStop)
	return mux
}

// Run serves until ctx is done, pushing webcam frames on a fixed tick.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.handler()}

	go s.frameLoop(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("ui listening", "addr", "http://"+addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("ws upgrade failed", "err", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 32)}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	// New clients immediately see the current history.
	c.enqueue(mustMarshal(push{Kind: "history", Turns: s.ctrl.History()}))

	go c.writeLoop()
	c.readLoop() // blocks until the peer goes away

	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	close(c.send)
}

func (c *client) writeLoop() {
	for msg := range c.send {
		if err := c.conn.WriteMessage(ws.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) readLoop() {
	defer c.conn.Close()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// enqueue drops the message when the client cannot keep up; the next frame
// or snapshot supersedes it anyway.
func (c *client) enqueue(msg []byte) {
	select {
	case c.send <- msg:
	default:
	}
}

// BroadcastHistory pushes a history snapshot to every connected client. It
// is the controller's OnUpdate hook.
func (s *Server) BroadcastHistory(turns []convo.Turn) {
	s.broadcast(mustMarshal(push{Kind: "history", Turns: turns}))
}

func (s *Server) broadcast(msg []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.enqueue(msg)
	}
}

func (s *Server) frameLoop(ctx context.Context) {
	tick := time.NewTicker(frameInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}

		if !s.feed.Running() {
			continue
		}
		frame := s.feed.Frame()
		if frame == nil {
			continue
		}
		s.broadcast(mustMarshal(push{
			Kind: "frame",
			JPEG: base64.StdEncoding.EncodeToString(frame),
		}))
	}
}

func (s *Server) handleListenStart(w http.ResponseWriter, r *http.Request) {
	if s.ctrl.Start(context.Background()) {
		writeStatus(w, "Continuous listening started. Say 'goodbye' to stop.")
		return
	}
	writeStatus(w, "Already listening.")
}

func (s *Server) handleListenStop(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Stop()
	writeStatus(w, "Listening stopped.")
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Clear()
	writeStatus(w, "Conversation cleared.")
}

func (s *Server) handleCameraStart(w http.ResponseWriter, r *http.Request) {
	if err := s.feed.Start(); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeStatus(w, "Camera started.")
}

func (s *Server) handleCameraStop(w http.ResponseWriter, r *http.Request) {
	s.feed.Stop()
	writeStatus(w, "Camera stopped.")
}

func writeStatus(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
