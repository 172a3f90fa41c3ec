package clients

import (
	"encoding/json"
	"fmt"
	"time"

	"moveregistry-backend/internal/metrics"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Subjects for move lifecycle events.
const (
	SubjectMoveMinted      = "moveregistry.move.minted"
	SubjectMoveVerified    = "moveregistry.move.verified"
	SubjectRoyaltyReceived = "moveregistry.royalty.received"
)

// NATSClient publishes move lifecycle events to JetStream so downstream
// consumers (indexers, notification workers) can react without polling.
type NATSClient struct {
	conn       *nats.Conn
	js         nats.JetStreamContext
	streamName string
}

// NewNATSClient connects to the NATS server and ensures the event stream
// exists. Reconnects are unbounded; the connection outlives network blips.
func NewNATSClient(url, streamName string) (*NATSClient, error) {
	conn, err := nats.Connect(url,
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logrus.WithError(err).Warn("⚠️ NATS disconnected")
			metrics.NATSConnectionStatus.Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logrus.Info("✅ NATS reconnected")
			metrics.NATSConnectionStatus.Set(1)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	client := &NATSClient{
		conn:       conn,
		js:         js,
		streamName: streamName,
	}
	if err := client.ensureStream(); err != nil {
		conn.Close()
		return nil, err
	}

	metrics.NATSConnectionStatus.Set(1)
	return client, nil
}

func (c *NATSClient) ensureStream() error {
	_, err := c.js.StreamInfo(c.streamName)
	if err == nil {
		return nil
	}

	_, err = c.js.AddStream(&nats.StreamConfig{
		Name:      c.streamName,
		Subjects:  []string{"moveregistry.>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", c.streamName, err)
	}

	logrus.WithField("stream", c.streamName).Info("✅ NATS stream created")
	return nil
}

// Publish serializes the event and publishes it on the given subject.
func (c *NATSClient) Publish(subject string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		metrics.NATSMessagesFailed.WithLabelValues(subject).Inc()
		return fmt.Errorf("failed to marshal event for %s: %w", subject, err)
	}

	if _, err := c.js.Publish(subject, data); err != nil {
		metrics.NATSMessagesFailed.WithLabelValues(subject).Inc()
		return fmt.Errorf("failed to publish event on %s: %w", subject, err)
	}

	metrics.NATSMessagesPublished.WithLabelValues(subject).Inc()
	return nil
}

// Subscribe registers a plain subscription on a subject.
func (c *NATSClient) Subscribe(subject string, handler nats.MsgHandler) error {
	if _, err := c.conn.Subscribe(subject, handler); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	return nil
}

// Close tears down the connection.
func (c *NATSClient) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
