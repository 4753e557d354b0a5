// Package ws fans job events out to websocket subscribers. Each connection
// watches exactly one job; the hub routes events by job ID and closes the
// stream once a terminal event has been delivered.
package ws

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/audisee/docx2daisy/internal/jobs"
	"github.com/audisee/docx2daisy/internal/logger"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	readWait     = 2 * pingInterval
)

type Client struct {
	ID       uuid.UUID
	JobID    string
	Outbound chan jobs.Event
	pongs    chan struct{}
	done     chan struct{}
}

type Hub struct {
	mu            sync.RWMutex
	logger        *logger.Logger
	subscriptions map[string]map[*Client]bool
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		logger:        log.With("component", "WSHub"),
		subscriptions: make(map[string]map[*Client]bool),
	}
}

// Subscribe registers a new client for a job ID. The outbound buffer is
// small on purpose: a slow reader loses intermediate progress events, never
// blocks the publisher.
func (hub *Hub) Subscribe(jobID string) *Client {
	client := &Client{
		ID:       uuid.New(),
		JobID:    strings.TrimSpace(jobID),
		Outbound: make(chan jobs.Event, 16),
		pongs:    make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()

	clients, exists := hub.subscriptions[client.JobID]
	if !exists {
		clients = make(map[*Client]bool)
		hub.subscriptions[client.JobID] = clients
	}
	clients[client] = true

	hub.logger.Debug("WS client subscribed", "clientID", client.ID, "job_id", client.JobID)
	return client
}

// Unsubscribe detaches the client and releases its outbound channel. Safe to
// call more than once.
func (hub *Hub) Unsubscribe(client *Client) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	clients, ok := hub.subscriptions[client.JobID]
	if !ok {
		return
	}
	if !clients[client] {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(hub.subscriptions, client.JobID)
	}
	close(client.done)
	hub.logger.Debug("WS client unsubscribed", "clientID", client.ID, "job_id", client.JobID)
}

// Broadcast delivers an event to every subscriber of its job ID. Full
// buffers drop the event rather than stall the forwarder.
func (hub *Hub) Broadcast(ev jobs.Event) {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if ev.ID == "" {
		return
	}
	clients, ok := hub.subscriptions[ev.ID]
	if !ok {
		return
	}
	for c := range clients {
		select {
		case c.Outbound <- ev:
		default:
			hub.logger.Warn("Dropping job event; outbound buffer full", "clientID", c.ID, "job_id", ev.ID)
		}
	}
}

// Subscribers reports how many clients currently watch the given job.
func (hub *Hub) Subscribers(jobID string) int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.subscriptions[jobID])
}

// Serve pumps events to the connection until the job reaches a terminal
// status, the peer goes away, or ctx-equivalent done fires. initial is sent
// first so a late subscriber still sees the current state.
func (hub *Hub) Serve(conn *websocket.Conn, client *Client, initial jobs.Event) {
	defer hub.Unsubscribe(client)
	defer conn.Close()

	go hub.readLoop(conn, client)

	send := func(ev jobs.Event) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(ev); err != nil {
			hub.logger.Debug("WS write failed", "clientID", client.ID, "error", err)
			return false
		}
		return true
	}

	if !send(initial) {
		return
	}
	if initial.Status == jobs.StatusFinished || initial.Status == jobs.StatusFailed {
		return
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-client.done:
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-client.pongs:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte("pong")); err != nil {
				return
			}
		case ev := <-client.Outbound:
			if !send(ev) {
				return
			}
			if ev.Status == jobs.StatusFinished || ev.Status == jobs.StatusFailed {
				return
			}
		}
	}
}

// readLoop drains client frames so pong handling and close detection work.
// A literal "ping" text frame gets a "pong" back, the only inbound message
// the protocol defines. Writes stay in Serve; only it may touch the
// connection's write side.
func (hub *Hub) readLoop(conn *websocket.Conn, client *Client) {
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readWait))
		return nil
	})
	for {
		kind, payload, err := conn.ReadMessage()
		if err != nil {
			hub.Unsubscribe(client)
			return
		}
		conn.SetReadDeadline(time.Now().Add(readWait))
		if kind == websocket.TextMessage && strings.TrimSpace(string(payload)) == "ping" {
			select {
			case client.pongs <- struct{}{}:
			default:
			}
		}
	}
}
