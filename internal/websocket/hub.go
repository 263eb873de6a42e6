package websocket

import (
	"context"
	"log/slog"
	"sync"

	"gator-chat/internal/engine"
	"gator-chat/internal/models"
	"gator-chat/internal/notify"
	"gator-chat/internal/utils"
)

// Presence flips a user's online flag. *engine.Engine satisfies it.
type Presence interface {
	SetPresence(identityID string, online bool) error
}

// Subscriptions is the part of the notification registry a client uses.
type Subscriptions interface {
	Subscribe(connID, subID string, identity *models.Identity, q engine.Query, push func(notify.Update)) error
	Unsubscribe(connID, subID string)
	Drop(connID string)
}

// Hub maintains the set of active clients. A user is online while at least
// one of their connections is registered.
type Hub struct {
	presence Presence
	subs     Subscriptions
	metrics  *utils.MetricsCollector
	logger   *slog.Logger

	// Registered clients. Maps identity id to a set of active client connections.
	clients map[string]map[*Client]bool

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// Closed when Run returns.
	done chan struct{}

	// Mutex to protect concurrent access to the clients map.
	mu sync.RWMutex
}

func NewHub(presence Presence, subs Subscriptions, metrics *utils.MetricsCollector, logger *slog.Logger) *Hub {
	if metrics == nil {
		metrics = utils.NewMetricsCollector()
	}
	if logger == nil {
		logger = utils.DiscardLogger()
	}
	return &Hub{
		presence:   presence,
		subs:       subs,
		metrics:    metrics,
		logger:     logger,
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[string]map[*Client]bool),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's processing loop.
func (h *Hub) Run(ctx context.Context) error {
	h.logger.Info("WebSocket hub started")
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		}
	}
}

func (h *Hub) register(client *Client) {
	h.metrics.ConnectionOpened()
	userID := client.userID()
	if userID == "" {
		h.logger.Debug("Anonymous websocket client registered", "connection", client.ID)
		h.mu.Lock()
		h.addLocked("", client)
		h.mu.Unlock()
		return
	}

	h.mu.Lock()
	first := len(h.clients[userID]) == 0
	h.addLocked(userID, client)
	count := len(h.clients[userID])
	h.mu.Unlock()

	h.logger.Debug("WebSocket client registered", "user", userID, "connections", count)
	if first {
		if err := h.presence.SetPresence(userID, true); err != nil {
			h.logger.Warn("Failed to mark user online", "user", userID, "error", err)
		}
	}
}

func (h *Hub) addLocked(userID string, client *Client) {
	if _, ok := h.clients[userID]; !ok {
		h.clients[userID] = make(map[*Client]bool)
	}
	h.clients[userID][client] = true
}

func (h *Hub) unregister(client *Client) {
	userID := client.userID()
	h.mu.Lock()
	userClients, ok := h.clients[userID]
	if !ok || !userClients[client] {
		h.mu.Unlock()
		return
	}
	delete(userClients, client)
	last := len(userClients) == 0
	if last {
		delete(h.clients, userID)
	}
	h.mu.Unlock()

	h.subs.Drop(client.ID)
	client.close()
	h.metrics.ConnectionClosed()

	if last && userID != "" {
		h.logger.Debug("User has no more connections", "user", userID)
		if err := h.presence.SetPresence(userID, false); err != nil {
			h.logger.Warn("Failed to mark user offline", "user", userID, "error", err)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	all := h.clients
	h.clients = make(map[string]map[*Client]bool)
	h.mu.Unlock()
	for _, userClients := range all {
		for client := range userClients {
			h.subs.Drop(client.ID)
			client.close()
			h.metrics.ConnectionClosed()
		}
	}
}

// Join registers client. It returns false once the hub has stopped.
func (h *Hub) Join(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// Connections returns how many open connections userID has.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Total returns the number of open connections.
func (h *Hub) Total() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, userClients := range h.clients {
		total += len(userClients)
	}
	return total
}
