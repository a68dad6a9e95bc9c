// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

// Message types for WebSocket communication
const (
	MsgTypeJoin        = "JOIN"
	MsgTypeAck         = "ACK"
	MsgTypeMatchUpdate = "MATCH_UPDATE"
	MsgTypeError       = "ERROR"
)

// Message represents a WebSocket message. MATCH_UPDATE carries the full
// active match plus its current statistics so viewers never need a second
// round trip.
type Message struct {
	Type     string      `json:"type"`
	Match    *Match      `json:"match,omitempty"`
	Event    *MatchEvent `json:"event,omitempty"`
	Stats    *MatchStats `json:"stats,omitempty"`
	Revision string      `json:"revision,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// Hub maintains the set of active clients and broadcasts match updates to
// them. All client bookkeeping happens on the run goroutine.
type Hub struct {
	clients    map[*wsClient]bool
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan Message
	done       chan struct{}

	session *Session
	metrics *MetricsStore
}

func NewHub(session *Session, metrics *MetricsStore) *Hub {
	return &Hub{
		clients:    make(map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan Message, 64),
		done:       make(chan struct{}),
		session:    session,
		metrics:    metrics,
	}
}

// Run processes register, unregister and broadcast requests until Stop is
// called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			if h.metrics != nil {
				h.metrics.WSConnected()
			}
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				if h.metrics != nil {
					h.metrics.WSDisconnected()
				}
			}
		case msg := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					close(client.send)
					delete(h.clients, client)
					if h.metrics != nil {
						h.metrics.WSDisconnected()
					}
				}
			}
		}
	}
}

// Stop terminates the run loop and closes the send channels of connected
// clients, which ends their write pumps. Stop must be called at most once.
func (h *Hub) Stop() {
	close(h.done)
}

// BroadcastUpdate pushes the current session state to all connected clients.
// Called after every successful mutation. Never blocks the caller: if the
// channel is full the update is dropped, the next one carries newer state
// anyway.
func (h *Hub) BroadcastUpdate(evt *MatchEvent) {
	m := h.session.Current()
	if m == nil {
		return
	}
	stats := CalculateStats(m)
	msg := Message{Type: MsgTypeMatchUpdate, Match: m, Event: evt, Stats: &stats}
	if n := len(m.Events); n > 0 {
		msg.Revision = m.Events[n-1].ID
	}
	select {
	case h.broadcast <- msg:
	default:
		log.Printf("Warning: Hub channel full, dropping match update")
	}
}

// wsClient is a middleman between the websocket connection and the hub.
type wsClient struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan Message

	userId string
}

// readPump pumps messages from the websocket connection to the hub.
func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error: %v", err)
			}
			break
		}

		switch msg.Type {
		case MsgTypeJoin:
			c.handleJoin(msg)
		case "PING":
			c.sendJSON(Message{Type: "PONG"})
		default:
			log.Printf("Unknown message type: %s", msg.Type)
			c.sendJSON(Message{Type: MsgTypeError, Error: "Unknown message type"})
		}
	}
}

// handleJoin acknowledges the client and, when it is behind the server,
// follows up with the full current state.
func (c *wsClient) handleJoin(msg Message) {
	m := c.hub.session.Current()
	if m == nil {
		c.sendJSON(Message{Type: MsgTypeAck})
		return
	}

	if GetMatchAccess(c.userId, *m) < AccessRead {
		log.Printf("Forbidden: User %s attempted to join match %s without permissions", maskEmail(c.userId), m.ID)
		c.sendJSON(Message{Type: MsgTypeError, Error: "Forbidden: You do not have access to this match"})
		return
	}

	serverRevision := ""
	if n := len(m.Events); n > 0 {
		serverRevision = m.Events[n-1].ID
	}

	if msg.Revision == serverRevision {
		c.sendJSON(Message{Type: MsgTypeAck})
		return
	}

	stats := CalculateStats(m)
	c.sendJSON(Message{Type: MsgTypeMatchUpdate, Match: m, Stats: &stats, Revision: serverRevision})
}

// writePump pumps messages from the hub to the websocket connection.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) sendJSON(msg Message) {
	select {
	case c.send <- msg:
	default:
		// Channel full, the client is too slow. The hub will reap it.
	}
}

// ServeWS handles websocket requests from the peer.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request) {
	userId := getUserID(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	client := &wsClient{hub: hub, conn: conn, send: make(chan Message, 256), userId: userId}
	select {
	case client.hub.register <- client:
	case <-hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
