// Package streaming provides a WebSocket hub that broadcasts fraud
// alerts to connected operator dashboards as they happen, alongside the
// pipeline's own log/alarm sinks.
//
// Grounded on the gorilla/websocket register/unregister/broadcast hub
// pattern, adapted from a DAG-visualization event stream to a fraud
// alert feed.
package streaming

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fraudpipeline/core/internal/domain"
)

// AlertEvent is broadcast to every connected client when the consumer
// flags a transaction as fraud.
type AlertEvent struct {
	TransactionID string    `json:"transaction_id"`
	Amount        float64   `json:"amount"`
	LastName      string    `json:"last_name"`
	ModelName     string    `json:"model_name"`
	ModelVersion  string    `json:"model_version"`
	Timestamp     time.Time `json:"timestamp"`
}

// Hub manages WebSocket clients subscribed to the live alert feed.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan AlertEvent
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	log        *zap.Logger
}

// NewHub creates a new alert streaming hub. log may be nil.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan AlertEvent, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// Run drives the hub's register/unregister/broadcast loop. Blocks until
// stop is closed.
func (h *Hub) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			h.mu.Lock()
			for c := range h.clients {
				c.Close()
			}
			h.clients = make(map[*websocket.Conn]bool)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("streaming client connected", zap.Int("total", n))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("streaming client disconnected", zap.Int("total", n))

		case event := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				if err := client.WriteJSON(event); err != nil {
					h.log.Warn("streaming write failed", zap.Error(err))
					client.Close()
					delete(h.clients, client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// HandleWebSocket upgrades an HTTP request to a WebSocket connection and
// registers it with the hub.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("streaming upgrade failed", zap.Error(err))
		return
	}
	h.register <- conn

	go func() {
		defer func() { h.unregister <- conn }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// BroadcastAlert publishes an alert to every connected client. Never
// blocks on a slow client — WriteJSON failures just drop that client,
// and an alert is dropped if the broadcast queue is full.
func (h *Hub) BroadcastAlert(transactionID uuid.UUID, amount float64, lastName, modelName, modelVersion string) {
	select {
	case h.broadcast <- AlertEvent{
		TransactionID: transactionID.String(),
		Amount:        amount,
		LastName:      lastName,
		ModelName:     modelName,
		ModelVersion:  modelVersion,
		Timestamp:     time.Now(),
	}:
	default:
		h.log.Warn("streaming broadcast queue full, dropping alert")
	}
}

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// AlarmSink adapts a Hub into a domain.Alarm, so it can be wired into
// an alarm.Fanout alongside the operational sinks. Trigger never fails:
// a slow or absent dashboard must never affect fraud detection.
type AlarmSink struct {
	hub *Hub
}

// NewAlarmSink wraps hub as a domain.Alarm.
func NewAlarmSink(hub *Hub) *AlarmSink {
	return &AlarmSink{hub: hub}
}

// Trigger broadcasts the flagged transaction to connected dashboards.
func (s *AlarmSink) Trigger(it domain.InferredTransaction) error {
	s.hub.BroadcastAlert(it.Transaction.ID, it.Transaction.Amount, it.Transaction.LastName, it.ModelName, it.ModelVersion)
	return nil
}
