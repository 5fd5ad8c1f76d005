package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"crossvr-capture-go/internal/trial"
	"crossvr-capture-go/internal/types"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10
)

// Server is the operator surface: commit/discard control, status, and a
// websocket live feed. Commit and discard are edge triggered, one action
// per request.
type Server struct {
	port     int
	rec      *trial.Recorder
	statusFn func() map[string]any

	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[*websocket.Conn]*sync.Mutex
}

func New(port int, rec *trial.Recorder, statusFn func() map[string]any) *Server {
	return &Server{
		port:     port,
		rec:      rec,
		statusFn: statusFn,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/api/commit", s.handleCommit)
	r.Post("/api/discard", s.handleDiscard)
	r.Get("/api/status", s.handleStatus)
	r.Get("/healthz", s.handleHealth)
	r.Get("/ws", s.handleWS)

	return r
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(s.port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	go s.pushStatus(ctx)

	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	res, err := s.rec.Commit()
	if err != nil {
		var allocErr *trial.AllocationError
		switch {
		case errors.Is(err, trial.ErrCommitInFlight):
			writeError(w, http.StatusConflict, err, false)
		case errors.As(err, &allocErr):
			// Unusable export root: the session cannot continue.
			log.Printf("commit failed, export root unusable: %v", err)
			writeError(w, http.StatusInternalServerError, err, true)
		default:
			log.Printf("commit failed: %v", err)
			writeError(w, http.StatusInternalServerError, err, false)
		}
		return
	}

	log.Printf("committed trial %d (%d pedestrian, %d vehicle, %d gaze rows)",
		res.TrialID, res.Rows[types.ChannelPedestrian], res.Rows[types.ChannelVehicle], res.Rows[types.ChannelGaze])
	s.Broadcast(map[string]any{"type": "committed", "trial": res})
	writeJSONResponse(w, http.StatusOK, res)
}

func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	counts, err := s.rec.Discard()
	if err != nil {
		writeError(w, http.StatusConflict, err, false)
		return
	}
	log.Printf("discarded trial buffers (%v)", counts)
	s.Broadcast(map[string]any{"type": "discarded", "dropped": counts})
	writeJSONResponse(w, http.StatusOK, map[string]any{"dropped": counts})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, s.statusFn())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	writeMu := &sync.Mutex{}
	s.mu.Lock()
	s.clients[conn] = writeMu
	s.mu.Unlock()

	_ = s.writeJSON(conn, writeMu, map[string]any{"type": "status", "status": s.statusFn()})

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				writeMu.Lock()
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				err := conn.WriteMessage(websocket.PingMessage, nil)
				writeMu.Unlock()
				if err != nil {
					_ = conn.Close()
					return
				}
			}
		}
	}()

	go func() {
		defer close(done)
		defer s.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast sends v to every connected websocket client, dropping clients
// whose writes fail.
func (s *Server) Broadcast(v any) {
	s.mu.Lock()
	conns := make(map[*websocket.Conn]*sync.Mutex, len(s.clients))
	for conn, mu := range s.clients {
		conns[conn] = mu
	}
	s.mu.Unlock()

	for conn, mu := range conns {
		if err := s.writeJSON(conn, mu, v); err != nil {
			s.drop(conn)
			_ = conn.Close()
		}
	}
}

func (s *Server) pushStatus(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Broadcast(map[string]any{"type": "status", "status": s.statusFn()})
		}
	}
}

func (s *Server) writeJSON(conn *websocket.Conn, mu *sync.Mutex, v any) error {
	mu.Lock()
	defer mu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

func (s *Server) drop(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
}

func writeJSONResponse(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error, fatal bool) {
	writeJSONResponse(w, code, map[string]any{
		"error": err.Error(),
		"fatal": fatal,
	})
}
