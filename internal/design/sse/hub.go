package sse

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Event represents a Server-Sent Event
type Event struct {
	EventType string `json:"event"`
	Data      string `json:"data"`
}

// Client represents a connected SSE client
type Client struct {
	ID     string
	UserID string
	Events chan Event
}

// Hub manages all SSE client connections
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger.Named("sse"),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	h.logger.Debug("client registered", zap.String("client_id", client.ID), zap.String("user_id", client.UserID), zap.Int("total", len(h.clients)))
}

func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Events)
		delete(h.clients, clientID)
		h.logger.Debug("client unregistered", zap.String("client_id", clientID), zap.Int("total", len(h.clients)))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an event to all connected clients. Slow clients miss events.
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		h.deliver(client, event)
	}
}

// SendToUser sends an event to every connection of one user.
func (h *Hub) SendToUser(userID string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.UserID == userID {
			h.deliver(client, event)
		}
	}
}

func (h *Hub) deliver(client *Client, event Event) {
	select {
	case client.Events <- event:
	default:
		h.logger.Warn("client buffer full, skipping event", zap.String("client_id", client.ID), zap.String("event", event.EventType))
	}
}

// DrawingUpdate is the payload of a drawing_update event.
type DrawingUpdate struct {
	ProjectID string `json:"project_id"`
	DrawingID string `json:"drawing_id"`
	Status    string `json:"status"`
	Action    string `json:"action"`
}

// PublishDrawingUpdate broadcasts the change and pings the drawing's current recipient.
func (h *Hub) PublishDrawingUpdate(u DrawingUpdate, recipientID string) {
	data, _ := json.Marshal(u)
	h.Broadcast(Event{EventType: "drawing_update", Data: string(data)})
	if recipientID != "" {
		h.SendToUser(recipientID, Event{EventType: "my_drawing_update", Data: string(data)})
	}
}

// PublishDeliverableUpdate broadcasts a deliverable status change.
func (h *Hub) PublishDeliverableUpdate(projectID, deliverableID, status string) {
	data, _ := json.Marshal(map[string]string{
		"project_id":     projectID,
		"deliverable_id": deliverableID,
		"status":         status,
	})
	h.Broadcast(Event{EventType: "deliverable_update", Data: string(data)})
}
