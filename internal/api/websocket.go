package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/procedure-suggest-server/internal/service"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The REST surface is already wide open via CORS; the socket follows.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 64 * 1024
)

// liveUpdate is what the server pushes after every session snapshot.
type liveUpdate struct {
	Suggestions interface{} `json:"suggestions"`
	Count       int         `json:"count"`
	Error       string      `json:"error,omitempty"`
}

// handleLiveSuggestions upgrades to a WebSocket. The client streams session
// snapshots (the same body as POST /suggestions); the server answers each
// with a refreshed suggestion list. One message in, one message out.
func (s *Server) handleLiveSuggestions(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx := c.Request.Context()
	for {
		var req service.SuggestRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.WithError(err).Debug("WebSocket closed unexpectedly")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		update := liveUpdate{}
		suggestions, err := s.suggestions.Suggest(ctx, req)
		if err != nil {
			s.log.WithError(err).Error("Live suggestion query failed")
			update.Error = "suggestion query failed"
		} else {
			update.Suggestions = suggestions
			update.Count = len(suggestions)
		}

		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(update); err != nil {
			return
		}
	}
}
