package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSMessage is a request received over the WebSocket.
type WSMessage struct {
	Type    string          `json:"type"` // "move", "score", "review" or "ping"
	ID      string          `json:"id"`   // Echoed in the response; assigned if empty
	Payload json.RawMessage `json:"payload"`
}

// WSResponse is sent back for every WSMessage.
type WSResponse struct {
	Type    string      `json:"type"` // "result", "error" or "pong"
	ID      string      `json:"id,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// WSClient is one connected WebSocket client. Messages are handled in the
// order they arrive.
type WSClient struct {
	conn     *websocket.Conn
	handlers *Handlers
	ctx      context.Context
	logger   zerolog.Logger
	sendChan chan WSResponse
}

// WebSocket handles GET /api/ws
func (h *Handlers) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.opts.Logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	session := uuid.NewString()
	client := &WSClient{
		conn:     conn,
		handlers: h,
		ctx:      r.Context(),
		logger:   h.opts.Logger.With().Str("session", session).Logger(),
		sendChan: make(chan WSResponse, 256),
	}
	client.logger.Debug().Str("remote", r.RemoteAddr).Msg("websocket connected")
	go client.writePump()
	client.readPump()
}

func (c *WSClient) writePump() {
	defer c.conn.Close()
	for msg := range c.sendChan {
		if err := c.conn.WriteJSON(msg); err != nil {
			c.logger.Debug().Err(err).Msg("websocket write failed")
			return
		}
	}
}

func (c *WSClient) readPump() {
	defer func() {
		close(c.sendChan)
		c.conn.Close()
		c.logger.Debug().Msg("websocket closed")
	}()
	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		c.handleMessage(msg)
	}
}

func (c *WSClient) handleMessage(msg WSMessage) {
	switch msg.Type {
	case "move":
		c.handleMove(msg)
	case "score":
		c.handleScore(msg)
	case "review":
		c.handleReview(msg)
	case "ping":
		c.sendChan <- WSResponse{Type: "pong", ID: msg.ID}
	default:
		c.sendChan <- WSResponse{Type: "error", ID: msg.ID, Error: "unknown message type", Code: "UNKNOWN_TYPE"}
	}
}

func (c *WSClient) sendError(id string, err error) {
	_, code := errorStatus(err)
	c.sendChan <- WSResponse{Type: "error", ID: id, Error: err.Error(), Code: code}
}

func (c *WSClient) handleMove(msg WSMessage) {
	var req MoveRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		c.sendChan <- WSResponse{Type: "error", ID: msg.ID, Error: "invalid payload", Code: "INVALID_JSON"}
		return
	}
	state, err := parseState(req.Position, req.Roll)
	if err != nil {
		c.sendError(msg.ID, err)
		return
	}
	resp, err := c.handlers.chooseMove(c.ctx, state, c.handlers.aiName(req.AI), req.Seed)
	if err != nil {
		c.sendError(msg.ID, err)
		return
	}
	c.sendChan <- WSResponse{Type: "result", ID: msg.ID, Payload: resp}
}

func (c *WSClient) handleScore(msg WSMessage) {
	var req ScoreRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		c.sendChan <- WSResponse{Type: "error", ID: msg.ID, Error: "invalid payload", Code: "INVALID_JSON"}
		return
	}
	state, err := parseState(req.Position, req.Roll)
	if err != nil {
		c.sendError(msg.ID, err)
		return
	}
	result, err := c.handlers.scorePosition(c.ctx, state, req)
	if err != nil {
		c.sendError(msg.ID, err)
		return
	}
	c.sendChan <- WSResponse{Type: "result", ID: msg.ID, Payload: result}
}

func (c *WSClient) handleReview(msg WSMessage) {
	var req ReviewRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		c.sendChan <- WSResponse{Type: "error", ID: msg.ID, Error: "invalid payload", Code: "INVALID_JSON"}
		return
	}
	review, err := c.handlers.reviewGame(c.ctx, req)
	if err != nil {
		c.sendError(msg.ID, err)
		return
	}
	c.sendChan <- WSResponse{Type: "result", ID: msg.ID, Payload: review}
}
