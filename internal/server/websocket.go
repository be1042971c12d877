package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// wsClient serializes writes to one connection; gorilla/websocket allows a
// single concurrent writer.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// wsHub groups websocket subscribers by game id.
type wsHub struct {
	mu     sync.Mutex
	groups map[uint64]map[*wsClient]struct{}
}

func newWSHub() *wsHub {
	return &wsHub{
		groups: make(map[uint64]map[*wsClient]struct{}),
	}
}

func (h *wsHub) Add(gameID uint64, conn *websocket.Conn) *wsClient {
	client := &wsClient{conn: conn}
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[gameID]
	if group == nil {
		group = make(map[*wsClient]struct{})
		h.groups[gameID] = group
	}
	group[client] = struct{}{}
	return client
}

func (h *wsHub) Remove(gameID uint64, client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[gameID]
	if group == nil {
		return
	}
	delete(group, client)
	_ = client.conn.Close()
	if len(group) == 0 {
		delete(h.groups, gameID)
	}
}

func (h *wsHub) Len(gameID uint64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.groups[gameID])
}

func (h *wsHub) Send(client *wsClient, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return client.write(data)
}

func (h *wsHub) Broadcast(gameID uint64, payload any) {
	h.mu.Lock()
	group := h.groups[gameID]
	clients := make([]*wsClient, 0, len(group))
	for client := range group {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	for _, client := range clients {
		if err := client.write(data); err != nil {
			h.Remove(gameID, client)
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWebsocket streams a game's lifecycle notifications. The first
// message is the current game summary.
func (s *Server) handleWebsocket(c *gin.Context) {
	var uri gameURI
	if !bindURI(c, &uri) {
		return
	}
	info, err := s.ctrl.Info(uri.GameID)
	if err != nil {
		writeError(c, err)
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	log.Printf("ws connected game_id=%d remote=%s", uri.GameID, c.Request.RemoteAddr)
	client := s.ws.Add(uri.GameID, conn)
	if err := s.ws.Send(client, gin.H{"kind": "snapshot", "game": info}); err != nil {
		s.ws.Remove(uri.GameID, client)
		return
	}
	go s.readWS(uri.GameID, client)
}

// readWS drains client frames until the connection closes.
func (s *Server) readWS(gameID uint64, client *wsClient) {
	defer s.ws.Remove(gameID, client)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			log.Printf("ws disconnected game_id=%d", gameID)
			return
		}
	}
}
