package services

import (
	"encoding/json"
	"sync"
	"time"

	"moveregistry-backend/internal/metrics"
	"moveregistry-backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Connection is one WebSocket session belonging to a wallet address.
type Connection struct {
	ID          string          `json:"id"`
	UserAddress string          `json:"user_address"`
	Conn        *websocket.Conn `json:"-"`
	Send        chan []byte     `json:"-"`
	LastPing    time.Time       `json:"last_ping"`
}

// PushMessage is the envelope for every outbound push.
type PushMessage struct {
	Type        string      `json:"type"`
	Timestamp   string      `json:"timestamp"`
	MessageID   string      `json:"message_id"`
	UserAddress string      `json:"user_address"`
	Data        interface{} `json:"data"`
}

// MintStatusData carries one orchestration status update.
type MintStatusData struct {
	AttemptID string                  `json:"attempt_id"`
	State     models.MintAttemptState `json:"state"`
	Status    string                  `json:"status"`
	Kind      models.StatusKind       `json:"kind"`
	Mint      string                  `json:"mint,omitempty"`
	TxHash    string                  `json:"tx_hash,omitempty"`
	Explorer  string                  `json:"explorer,omitempty"`
}

// RoyaltyData carries a royalty notification.
type RoyaltyData struct {
	Mint        string `json:"mint"`
	Amount      string `json:"amount"`
	TokenSymbol string `json:"token_symbol"`
	TxSignature string `json:"tx_signature"`
}

// WebSocketPushService fans status updates out to a user's open sessions.
type WebSocketPushService struct {
	connections map[string]*Connection
	userConns   map[string][]*Connection
	hub         chan PushMessage
	register    chan *Connection
	unregister  chan *Connection
	mutex       sync.RWMutex
}

// NewWebSocketPushService creates the push service and starts its hub loop.
func NewWebSocketPushService() *WebSocketPushService {
	service := &WebSocketPushService{
		connections: make(map[string]*Connection),
		userConns:   make(map[string][]*Connection),
		hub:         make(chan PushMessage, 256),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
	}

	go service.run()
	return service
}

func (s *WebSocketPushService) run() {
	for {
		select {
		case conn := <-s.register:
			s.handleRegister(conn)
		case conn := <-s.unregister:
			s.handleUnregister(conn)
		case message := <-s.hub:
			s.handleBroadcast(message)
		}
	}
}

// RegisterConnection registers a connection with the push service.
func (s *WebSocketPushService) RegisterConnection(conn *Connection) {
	s.register <- conn
}

// UnregisterConnection removes a connection and closes it.
func (s *WebSocketPushService) UnregisterConnection(conn *Connection) {
	s.unregister <- conn
}

func (s *WebSocketPushService) handleRegister(conn *Connection) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.connections[conn.ID] = conn
	s.userConns[conn.UserAddress] = append(s.userConns[conn.UserAddress], conn)
	metrics.WebSocketConnections.Set(float64(len(s.connections)))

	logrus.WithFields(logrus.Fields{
		"user":    conn.UserAddress,
		"conn_id": conn.ID,
	}).Info("📱 WebSocket connection registered")

	if conn.Send != nil {
		confirm := PushMessage{
			Type:        "connection_established",
			Timestamp:   time.Now().Format(time.RFC3339),
			MessageID:   uuid.New().String(),
			UserAddress: conn.UserAddress,
			Data: map[string]interface{}{
				"connection_id": conn.ID,
				"message":       "Real-time status connection established",
			},
		}
		if data, err := json.Marshal(confirm); err == nil {
			select {
			case conn.Send <- data:
			default:
			}
		}
	}
}

func (s *WebSocketPushService) handleUnregister(conn *Connection) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.connections, conn.ID)
	if userConns, exists := s.userConns[conn.UserAddress]; exists {
		for i, c := range userConns {
			if c.ID == conn.ID {
				s.userConns[conn.UserAddress] = append(userConns[:i], userConns[i+1:]...)
				break
			}
		}
		if len(s.userConns[conn.UserAddress]) == 0 {
			delete(s.userConns, conn.UserAddress)
		}
	}
	metrics.WebSocketConnections.Set(float64(len(s.connections)))

	if conn.Send != nil {
		close(conn.Send)
	}
	if conn.Conn != nil {
		conn.Conn.Close()
	}

	logrus.WithFields(logrus.Fields{
		"user":    conn.UserAddress,
		"conn_id": conn.ID,
	}).Info("📱 WebSocket connection unregistered")
}

func (s *WebSocketPushService) handleBroadcast(message PushMessage) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	userConns, exists := s.userConns[message.UserAddress]
	if !exists {
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		logrus.WithError(err).Error("❌ Failed to marshal push message")
		return
	}

	sent := 0
	for _, conn := range userConns {
		select {
		case conn.Send <- data:
			sent++
		default:
			logrus.WithField("conn_id", conn.ID).Warn("⚠️ Push dropped, send channel full or closed")
		}
	}
	metrics.WebSocketMessagesSent.WithLabelValues(message.Type).Add(float64(sent))
}

func (s *WebSocketPushService) push(userAddress, messageType string, data interface{}) {
	message := PushMessage{
		Type:        messageType,
		Timestamp:   time.Now().Format(time.RFC3339),
		MessageID:   uuid.New().String(),
		UserAddress: userAddress,
		Data:        data,
	}
	select {
	case s.hub <- message:
	default:
		logrus.WithField("type", messageType).Warn("⚠️ Push hub full, message dropped")
	}
}

// PushMintStatus delivers a mint orchestration status update.
func (s *WebSocketPushService) PushMintStatus(userAddress string, data MintStatusData) {
	s.push(userAddress, "mint_status_update", data)
}

// PushSignRequest asks the user's wallet to sign a transaction.
func (s *WebSocketPushService) PushSignRequest(userAddress string, req *SignRequest) {
	s.push(userAddress, "sign_request", req)
}

// PushRoyalty notifies a creator of a licensing payment.
func (s *WebSocketPushService) PushRoyalty(userAddress string, data RoyaltyData) {
	s.push(userAddress, "royalty_received", data)
}
