// ABOUTME: WebSocket hub streaming decoded animation to live viewers
// ABOUTME: Implements animation.Consumer and drops messages for slow viewers
package server

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Resonate-Protocol/livelink-go/pkg/animation"
)

// Message types sent to viewers
const (
	TypeHello    = "server/hello"
	TypeStatic   = "subject/static"
	TypeFrame    = "subject/frame"
	TypeRemove   = "subject/remove"
	TypeSnapshot = "subject/snapshot"
)

const (
	viewerQueueSize = 256
	writeDeadline   = 10 * time.Second
	pingInterval    = 30 * time.Second
)

// Message is the envelope for every viewer message
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Hello is the first message a viewer receives
type Hello struct {
	ViewerID string `json:"viewer_id"`
	SourceID string `json:"source_id"`
}

// ViewerObserver receives viewer events, typically for metrics
type ViewerObserver interface {
	ViewerConnected()
	ViewerDisconnected()
	ViewerMessage(dropped bool)
}

// Viewer is a connected live viewer
type Viewer struct {
	ID       string
	Conn     *websocket.Conn
	sendChan chan []byte
	dropped  atomic.Int64
}

// Hub fans animation updates out to every connected viewer
type Hub struct {
	log      *zap.SugaredLogger
	observer ViewerObserver

	mu      sync.RWMutex
	viewers map[string]*Viewer
}

// NewHub creates an empty hub. observer may be nil.
func NewHub(logger *zap.SugaredLogger, observer ViewerObserver) *Hub {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Hub{
		log:      logger,
		observer: observer,
		viewers:  make(map[string]*Viewer),
	}
}

func (h *Hub) PushStaticData(data animation.StaticData) {
	h.broadcast(TypeStatic, data)
}

func (h *Hub) PushFrame(frame animation.Frame) {
	h.broadcast(TypeFrame, frame)
}

func (h *Hub) RemoveSubject(subject string) {
	h.broadcast(TypeRemove, map[string]string{"subject": subject})
}

// Len returns the number of connected viewers
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

func encode(msgType string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(Message{Type: msgType, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", msgType, err)
	}
	return data, nil
}

// broadcast never blocks; a viewer whose queue is full misses the message
func (h *Hub) broadcast(msgType string, payload interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.viewers) == 0 {
		return
	}

	data, err := encode(msgType, payload)
	if err != nil {
		h.log.Warnf("Error encoding viewer message: %v", err)
		return
	}
	for _, v := range h.viewers {
		h.enqueue(v, data)
	}
}

func (h *Hub) enqueue(v *Viewer, data []byte) bool {
	select {
	case v.sendChan <- data:
		if h.observer != nil {
			h.observer.ViewerMessage(false)
		}
		return true
	default:
		v.dropped.Add(1)
		if h.observer != nil {
			h.observer.ViewerMessage(true)
		}
		return false
	}
}

// register adds a viewer and queues its hello and the current snapshot
// before any later broadcast can reach it
func (h *Hub) register(conn *websocket.Conn, sourceID string, snapshot []animation.SubjectState) (*Viewer, error) {
	v := &Viewer{
		ID:       uuid.New().String(),
		Conn:     conn,
		sendChan: make(chan []byte, viewerQueueSize),
	}

	hello, err := encode(TypeHello, Hello{ViewerID: v.ID, SourceID: sourceID})
	if err != nil {
		return nil, err
	}
	snap, err := encode(TypeSnapshot, snapshot)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.enqueue(v, hello)
	h.enqueue(v, snap)
	h.viewers[v.ID] = v

	if h.observer != nil {
		h.observer.ViewerConnected()
	}
	return v, nil
}

func (h *Hub) unregister(v *Viewer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.viewers[v.ID]; !ok {
		return
	}
	delete(h.viewers, v.ID)
	close(v.sendChan)

	if h.observer != nil {
		h.observer.ViewerDisconnected()
	}
}

// writer sends queued messages to the viewer until its queue is closed
func (h *Hub) writer(v *Viewer) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-v.sendChan:
			if !ok {
				v.Conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				return
			}
			v.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := v.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.log.Debugf("Error writing to viewer %s: %v", v.ID, err)
				return
			}

		case <-ticker.C:
			if err := v.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}

// Close disconnects every viewer
func (h *Hub) Close() {
	h.mu.Lock()
	viewers := make([]*Viewer, 0, len(h.viewers))
	for _, v := range h.viewers {
		viewers = append(viewers, v)
	}
	h.mu.Unlock()

	for _, v := range viewers {
		h.unregister(v)
	}
}
