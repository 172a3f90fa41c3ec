package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"moveregistry-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WebSocketHandler manages creator WebSocket sessions. The socket carries
// mint status pushes and royalty notifications outward, and wallet signing
// responses inward.
type WebSocketHandler struct {
	pushService *services.WebSocketPushService
	bridge      *services.WalletBridge
	upgrader    websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(pushService *services.WebSocketPushService, bridge *services.WalletBridge) *WebSocketHandler {
	return &WebSocketHandler{
		pushService: pushService,
		bridge:      bridge,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// clientMessage is anything the frontend sends over the socket.
type clientMessage struct {
	Type              string `json:"type"`
	RequestID         string `json:"request_id,omitempty"`
	SignedTransaction string `json:"signed_transaction,omitempty"`
	Step              string `json:"step,omitempty"`
	Error             string `json:"error,omitempty"`
}

// HandleWebSocket upgrades the connection and runs the session loops.
// GET /api/v1/ws?address=<wallet>
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	address := c.Query("address")
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address query parameter is required"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("❌ WebSocket upgrade failed")
		return
	}

	session := &services.Connection{
		ID:          uuid.New().String(),
		UserAddress: address,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		LastPing:    time.Now(),
	}
	h.pushService.RegisterConnection(session)
	defer h.pushService.UnregisterConnection(session)

	readDone := make(chan struct{})
	go h.readLoop(session, readDone)

	pingTicker := time.NewTicker(54 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case message, ok := <-session.Send:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.WithField("conn_id", session.ID).WithError(err).Warn("⚠️ WebSocket write failed")
				return
			}
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readDone:
			return
		}
	}
}

func (h *WebSocketHandler) readLoop(session *services.Connection, done chan struct{}) {
	defer close(done)
	conn := session.Conn

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logrus.WithField("conn_id", session.ID).WithError(err).Debug("WebSocket read ended")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			logrus.WithField("conn_id", session.ID).Warn("⚠️ Unparseable WebSocket message")
			continue
		}
		h.handleClientMessage(session, &msg)
	}
}

func (h *WebSocketHandler) handleClientMessage(session *services.Connection, msg *clientMessage) {
	switch msg.Type {
	case "ping":
		pong, _ := json.Marshal(map[string]interface{}{
			"type":      "pong",
			"timestamp": time.Now().Format(time.RFC3339),
		})
		select {
		case session.Send <- pong:
		default:
		}
		session.LastPing = time.Now()

	case "sign_response":
		if err := h.bridge.ProvideSignature(msg.RequestID, msg.SignedTransaction); err != nil {
			logrus.WithFields(logrus.Fields{
				"request_id": msg.RequestID,
				"error":      err.Error(),
			}).Warn("⚠️ Sign response for unknown request")
		}

	case "sign_reject":
		if err := h.bridge.Reject(msg.RequestID, msg.Step, msg.Error); err != nil {
			logrus.WithField("request_id", msg.RequestID).Warn("⚠️ Sign rejection for unknown request")
		}

	default:
		logrus.WithFields(logrus.Fields{
			"conn_id": session.ID,
			"type":    msg.Type,
		}).Debug("Ignoring unknown WebSocket message type")
	}
}
