package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ClientMessage is a frame sent by the browser.
type ClientMessage struct {
	Type string `json:"type"` // "message"
	Body string `json:"body,omitempty"`
}

// ServerEvent represents a server-sent event
type ServerEvent struct {
	Type string `json:"type"` // "reply" | "typing" | "info" | "error"
	Data any    `json:"data,omitempty"`
}

const (
	wsReadLimit    = 1 << 20
	wsPongWait     = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteWait    = 10 * time.Second
	wsSendBuffer   = 16
)

// Client represents a WebSocket client connection
type Client struct {
	userID int
	conn   *websocket.Conn
	send   chan ServerEvent
	srv    *server
}

// Hub tracks the open matchmaker sessions of every user, so a reply reaches
// all of their tabs.
type Hub struct {
	clientsByUser map[int]map[*Client]bool
	mu            sync.RWMutex
}

func newHub() *Hub {
	return &Hub{
		clientsByUser: make(map[int]map[*Client]bool),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clientsByUser[c.userID] == nil {
		h.clientsByUser[c.userID] = make(map[*Client]bool)
	}
	h.clientsByUser[c.userID][c] = true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if peers, ok := h.clientsByUser[c.userID]; ok {
		delete(peers, c)
		if len(peers) == 0 {
			delete(h.clientsByUser, c.userID)
		}
	}
}

func (h *Hub) sendToUser(userID int, evt ServerEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clientsByUser[userID] {
		c.push(evt)
	}
}

// connections reports how many sockets userID has open.
func (h *Hub) connections(userID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clientsByUser[userID])
}

// push drops the event if the client's buffer is full.
func (c *Client) push(evt ServerEvent) {
	select {
	case c.send <- evt:
	default:
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS configuration for HTTP calls; the
	// socket itself requires a valid token.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// GET /ws/assistant?token=...
func wsAssistantHandler(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := currentUserID(r)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Int("user_id", userID), zap.Error(err))
			return
		}

		client := &Client{
			userID: userID,
			conn:   conn,
			send:   make(chan ServerEvent, wsSendBuffer),
			srv:    s,
		}
		s.hub.register(client)
		logger.Debug("assistant socket opened",
			zap.Int("user_id", userID),
			zap.Int("connections", s.hub.connections(userID)),
		)

		// Announce connection to this client
		client.send <- ServerEvent{Type: "info", Data: "connected"}

		go clientWriter(client)
		clientReader(client)
	}
}

func clientReader(c *Client) {
	defer func() {
		c.srv.hub.unregister(c)
		close(c.send)
	}()

	c.conn.SetReadLimit(wsReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.push(ServerEvent{Type: "error", Data: "invalid message format"})
			continue
		}

		switch msg.Type {
		case "message":
			c.srv.hub.sendToUser(c.userID, ServerEvent{Type: "typing"})

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			reply, err := c.srv.assistant.Reply(ctx, c.userID, msg.Body)
			cancel()
			if err != nil {
				_, code := errorStatus(err)
				logger.Warn("assistant reply failed", zap.Int("user_id", c.userID), zap.Error(err))
				c.push(ServerEvent{Type: "error", Data: code})
				continue
			}
			// every open tab of the user sees the reply
			c.srv.hub.sendToUser(c.userID, ServerEvent{Type: "reply", Data: reply})

		default:
			c.push(ServerEvent{Type: "error", Data: "unknown message type"})
		}
	}
}

func clientWriter(c *Client) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			// ping to keep the connection alive
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
