// ABOUTME: HTTP status server for the live link bridge
// ABOUTME: Serves metrics, a JSON status snapshot, delay control and the live viewer socket
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Resonate-Protocol/livelink-go/internal/version"
	"github.com/Resonate-Protocol/livelink-go/pkg/animation"
	"github.com/Resonate-Protocol/livelink-go/pkg/livelink"
	"github.com/Resonate-Protocol/livelink-go/pkg/protocol"
)

// Source is the part of *livelink.Source the server exposes
type Source interface {
	ID() string
	Status() livelink.Status
	Store() *animation.Store
	SetDelay(ch protocol.Channel, ms int)
}

// Config holds server configuration
type Config struct {
	Address string
	Source  Source
	Hub     *Hub

	// Metrics serves /metrics when set
	Metrics http.Handler

	Logger *zap.SugaredLogger
}

// Server exposes the bridge over HTTP
type Server struct {
	config Config
	log    *zap.SugaredLogger

	upgrader   websocket.Upgrader
	httpServer *http.Server
	mux        *http.ServeMux
	ln         net.Listener

	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a new server instance
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = zap.NewNop().Sugar()
	}
	if config.Hub == nil {
		config.Hub = NewHub(config.Logger, nil)
	}

	s := &Server{
		config: config,
		log:    config.Logger,
		mux:    http.NewServeMux(),
		upgrader: websocket.Upgrader{
			// viewers are local tools; any origin is accepted
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	if config.Metrics != nil {
		s.mux.Handle("/metrics", config.Metrics)
	}
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/subjects", s.handleSubjects)
	s.mux.HandleFunc("/delay", s.handleDelay)
	s.mux.HandleFunc("/live", s.handleWebSocket)
	return s
}

// Start binds the address and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}
	s.ln = ln
	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("HTTP server error: %v", err)
		}
	}()

	s.log.Infof("Status server listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound address, nil before Start
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Handler returns the server's routes
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Shutdown disconnects viewers and stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		s.config.Hub.Close()
		if s.httpServer != nil {
			err = s.httpServer.Shutdown(ctx)
		}
		s.wg.Wait()
		s.log.Infof("Status server stopped")
	})
	return err
}

// StatusResponse is the /status payload
type StatusResponse struct {
	Version string          `json:"version"`
	Viewers int             `json:"viewers"`
	Source  livelink.Status `json:"source"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, StatusResponse{
		Version: version.Version,
		Viewers: s.config.Hub.Len(),
		Source:  s.config.Source.Status(),
	})
}

func (s *Server) handleSubjects(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.config.Source.Store().Snapshot())
}

// handleDelay sets a channel delay: POST /delay?channel=animation&ms=200
func (s *Server) handleDelay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var ch protocol.Channel
	switch r.URL.Query().Get("channel") {
	case "animation":
		ch = protocol.ChannelAnimation
	case "audio":
		ch = protocol.ChannelAudio
	default:
		http.Error(w, "channel must be animation or audio", http.StatusBadRequest)
		return
	}

	ms, err := strconv.Atoi(r.URL.Query().Get("ms"))
	if err != nil {
		http.Error(w, "ms must be an integer", http.StatusBadRequest)
		return
	}

	s.config.Source.SetDelay(ch, ms)
	st := s.config.Source.Status()
	writeJSON(w, map[string]int{
		"animation_delay_ms": st.AnimationDelayMs,
		"audio_delay_ms":     st.AudioDelayMs,
	})
}

// handleWebSocket upgrades a viewer and streams animation until it leaves
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	hub := s.config.Hub
	viewer, err := hub.register(conn, s.config.Source.ID(), s.config.Source.Store().Snapshot())
	if err != nil {
		s.log.Warnf("Error registering viewer: %v", err)
		return
	}
	s.log.Infof("Viewer connected: %s from %s", viewer.ID, r.RemoteAddr)

	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.writer(viewer)
	}()

	// viewers only send control frames; reading keeps pongs and close flowing
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debugf("Viewer %s read error: %v", viewer.ID, err)
			}
			break
		}
	}

	hub.unregister(viewer)
	<-done
	s.log.Infof("Viewer disconnected: %s (%d messages dropped)", viewer.ID, viewer.dropped.Load())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
