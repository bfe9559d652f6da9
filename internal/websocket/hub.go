package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/dukerupert/chorely/internal/notify"
)

// Message is a live update pushed to the members of one household.
type Message struct {
	Type     string `json:"type"`
	Entity   string `json:"entity"`
	Action   string `json:"action"`
	ID       string `json:"id,omitempty"`
	MemberID string `json:"member_id,omitempty"`
	Payload  any    `json:"payload,omitempty"`
}

// NewMessage builds a Message from a lifecycle event. "submission.reviewed"
// becomes entity "submission", action "reviewed", type "submission_reviewed".
func NewMessage(e notify.Event) Message {
	entity, action, _ := strings.Cut(e.Name, ".")
	return Message{
		Type:     entity + "_" + action,
		Entity:   entity,
		Action:   action,
		ID:       e.EntityID,
		MemberID: e.MemberID,
		Payload:  e.Payload,
	}
}

// Hub tracks connected clients per tenant and fans messages out to them.
type Hub struct {
	mu      sync.RWMutex
	tenants map[string]map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		tenants: make(map[string]map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.tenants[c.tenantID]
	if !ok {
		set = make(map[*Client]struct{})
		h.tenants[c.tenantID] = set
	}
	set[c] = struct{}{}
}

// Unregister removes a client and closes its send channel. Calling it twice
// is safe.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.tenants[c.tenantID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.tenants, c.tenantID)
	}
}

// Broadcast sends msg to every client of tenantID. Clients with a full buffer
// miss the message.
func (h *Hub) Broadcast(tenantID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.tenants[tenantID] {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("dropping message for slow client", "tenant_id", tenantID, "member_id", c.memberID)
		}
	}
}

// Emit implements notify.Emitter.
func (h *Hub) Emit(_ context.Context, e notify.Event) {
	h.Broadcast(e.TenantID, NewMessage(e))
}

// ClientCount returns the number of connected clients across all tenants.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.tenants {
		n += len(set)
	}
	return n
}

// TenantClientCount returns the number of clients connected for tenantID.
func (h *Hub) TenantClientCount(tenantID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.tenants[tenantID])
}
