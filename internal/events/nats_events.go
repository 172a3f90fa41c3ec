package events

import (
	"time"

	"moveregistry-backend/internal/clients"

	"github.com/sirupsen/logrus"
)

// MoveMintedEvent is published after a mint transaction confirms.
type MoveMintedEvent struct {
	Mint        string    `json:"mint"`
	Creator     string    `json:"creator"`
	Name        string    `json:"name"`
	Expression  string    `json:"expression"`
	Royalty     uint8     `json:"royaltyPercent"`
	TxSignature string    `json:"txSignature"`
	MintedAt    time.Time `json:"mintedAt"`
}

// MoveVerifiedEvent is published after on-chain verification succeeds.
type MoveVerifiedEvent struct {
	Mint          string    `json:"mint"`
	SettlementRef string    `json:"settlementRef,omitempty"`
	TxSignature   string    `json:"txSignature"`
	VerifiedAt    time.Time `json:"verifiedAt"`
}

// RoyaltyReceivedEvent is published when the chain webhook reports a
// licensing payment to a creator.
type RoyaltyReceivedEvent struct {
	Mint        string    `json:"mint"`
	Creator     string    `json:"creator"`
	Payer       string    `json:"payer,omitempty"`
	Amount      string    `json:"amount"`
	TokenSymbol string    `json:"tokenSymbol"`
	TxSignature string    `json:"txSignature"`
	ReceivedAt  time.Time `json:"receivedAt"`
}

// Publisher fans move lifecycle events out over NATS. A nil inner client
// disables publishing; every method is safe to call either way.
type Publisher struct {
	nats *clients.NATSClient
}

// NewPublisher wraps a NATS client. Pass nil when NATS is not configured.
func NewPublisher(nats *clients.NATSClient) *Publisher {
	return &Publisher{nats: nats}
}

func (p *Publisher) publish(subject string, event interface{}) {
	if p == nil || p.nats == nil {
		return
	}
	if err := p.nats.Publish(subject, event); err != nil {
		logrus.WithFields(logrus.Fields{
			"subject": subject,
			"error":   err.Error(),
		}).Warn("⚠️ Event publish failed")
	}
}

// MoveMinted announces a confirmed mint.
func (p *Publisher) MoveMinted(event *MoveMintedEvent) {
	p.publish(clients.SubjectMoveMinted, event)
}

// MoveVerified announces a completed on-chain verification.
func (p *Publisher) MoveVerified(event *MoveVerifiedEvent) {
	p.publish(clients.SubjectMoveVerified, event)
}

// RoyaltyReceived announces a licensing payment.
func (p *Publisher) RoyaltyReceived(event *RoyaltyReceivedEvent) {
	p.publish(clients.SubjectRoyaltyReceived, event)
}
