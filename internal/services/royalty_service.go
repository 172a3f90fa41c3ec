package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"moveregistry-backend/internal/anchor"
	"moveregistry-backend/internal/events"
	"moveregistry-backend/internal/models"
	"moveregistry-backend/internal/repository"
	"moveregistry-backend/internal/x402"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// WebhookTransaction is one enhanced transaction object as delivered by the
// chain indexer's webhook. Only the fields the ingester reads are declared.
type WebhookTransaction struct {
	Signature    string               `json:"signature"`
	Type         string               `json:"type"`
	Timestamp    int64                `json:"timestamp"`
	Events       *WebhookEvents       `json:"events,omitempty"`
	Instructions []WebhookInstruction `json:"instructions,omitempty"`
	Transfers    []WebhookTransfer    `json:"tokenTransfers,omitempty"`
}

// WebhookEvents holds indexer-decoded program events.
type WebhookEvents struct {
	SkillLicensed *SkillLicensedEvent `json:"skillLicensed,omitempty"`
}

// SkillLicensedEvent is the decoded licensing event emitted by the program.
type SkillLicensedEvent struct {
	Mint    string      `json:"mint"`
	Payer   string      `json:"payer"`
	Amount  json.Number `json:"amount"`
	Royalty json.Number `json:"royalty"`
}

// WebhookInstruction identifies which program an instruction invoked.
type WebhookInstruction struct {
	ProgramID string `json:"programId"`
}

// WebhookTransfer is one token transfer in the enhanced transaction format.
type WebhookTransfer struct {
	Mint            string      `json:"mint"`
	FromUserAccount string      `json:"fromUserAccount"`
	ToUserAccount   string      `json:"toUserAccount"`
	TokenAmount     json.Number `json:"tokenAmount"`
}

// RoyaltyService ingests licensing payments reported by the chain indexer
// webhook and fans them out to creators.
type RoyaltyService struct {
	program   *anchor.Program
	royalties repository.RoyaltyRepository
	moves     repository.MoveRepository
	publisher *events.Publisher
	push      *WebSocketPushService
}

// NewRoyaltyService wires the royalty ingester.
func NewRoyaltyService(
	program *anchor.Program,
	royalties repository.RoyaltyRepository,
	moves repository.MoveRepository,
	publisher *events.Publisher,
	push *WebSocketPushService,
) *RoyaltyService {
	return &RoyaltyService{
		program:   program,
		royalties: royalties,
		moves:     moves,
		publisher: publisher,
		push:      push,
	}
}

// Ingest parses a webhook delivery (a single transaction object or an array
// of them) and records every licensing payment it finds. Deliveries are
// at-least-once; duplicates are dropped by transaction signature. Returns the
// number of newly recorded events.
func (s *RoyaltyService) Ingest(ctx context.Context, body []byte) (int, error) {
	transactions, err := decodeWebhookBody(body)
	if err != nil {
		return 0, err
	}

	recorded := 0
	for _, tx := range transactions {
		for _, event := range s.extractEvents(tx) {
			created, err := s.record(ctx, event)
			if err != nil {
				return recorded, err
			}
			if created {
				recorded++
			}
		}
	}
	return recorded, nil
}

func decodeWebhookBody(body []byte) ([]*WebhookTransaction, error) {
	var transactions []*WebhookTransaction
	if err := json.Unmarshal(body, &transactions); err == nil {
		return transactions, nil
	}

	var single WebhookTransaction
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, fmt.Errorf("unparseable webhook payload: %w", err)
	}
	return []*WebhookTransaction{&single}, nil
}

// extractEvents pulls royalty events out of one transaction. The indexer may
// deliver a decoded program event directly, or a raw enhanced transaction
// whose token transfers we attribute when our program was invoked.
func (s *RoyaltyService) extractEvents(tx *WebhookTransaction) []*models.RoyaltyEvent {
	var out []*models.RoyaltyEvent

	if licensed := licensedEvent(tx); licensed != nil {
		_, raw := x402.NormalizeAmount(licensed.Amount.String())
		out = append(out, &models.RoyaltyEvent{
			Mint:        licensed.Mint,
			Payer:       licensed.Payer,
			Amount:      raw,
			TokenSymbol: "USDC",
			TxSignature: tx.Signature,
			ReceivedAt:  webhookTime(tx.Timestamp),
		})
		return out
	}

	if !s.involvesProgram(tx) {
		return nil
	}
	for i, transfer := range tx.Transfers {
		_, raw := x402.NormalizeAmount(transfer.TokenAmount.String())
		sig := tx.Signature
		if i > 0 {
			// One row per transfer, still unique per transaction.
			sig = fmt.Sprintf("%s:%d", tx.Signature, i)
		}
		out = append(out, &models.RoyaltyEvent{
			Mint:        transfer.Mint,
			Payer:       transfer.FromUserAccount,
			Amount:      raw,
			TokenSymbol: "USDC",
			TxSignature: sig,
			ReceivedAt:  webhookTime(tx.Timestamp),
		})
	}
	return out
}

func licensedEvent(tx *WebhookTransaction) *SkillLicensedEvent {
	if tx.Events != nil && tx.Events.SkillLicensed != nil {
		return tx.Events.SkillLicensed
	}
	return nil
}

func (s *RoyaltyService) involvesProgram(tx *WebhookTransaction) bool {
	programID := s.program.ID.String()
	for _, ix := range tx.Instructions {
		if ix.ProgramID == programID {
			return true
		}
	}
	return false
}

func (s *RoyaltyService) record(ctx context.Context, event *models.RoyaltyEvent) (bool, error) {
	if event.TxSignature == "" || event.Amount == "" || event.Amount == "0" {
		return false, nil
	}
	event.ID = uuid.New().String()

	// Attribute the payment to the move's creator when the mint is known.
	if move, err := s.moves.GetByMint(ctx, event.Mint); err == nil {
		event.Creator = move.Creator
	} else {
		logrus.WithFields(logrus.Fields{
			"mint": event.Mint,
			"tx":   event.TxSignature,
		}).Warn("⚠️ Royalty for unknown mint, recording unattributed")
	}

	created, err := s.royalties.Record(ctx, event)
	if err != nil {
		return false, fmt.Errorf("failed to record royalty event: %w", err)
	}
	if !created {
		return false, nil
	}

	human, _ := x402.NormalizeAmount(event.Amount)
	logrus.WithFields(logrus.Fields{
		"mint":    event.Mint,
		"creator": event.Creator,
		"amount":  human,
	}).Info("💰 Royalty payment recorded")

	s.publisher.RoyaltyReceived(&events.RoyaltyReceivedEvent{
		Mint:        event.Mint,
		Creator:     event.Creator,
		Payer:       event.Payer,
		Amount:      event.Amount,
		TokenSymbol: event.TokenSymbol,
		TxSignature: event.TxSignature,
		ReceivedAt:  event.ReceivedAt,
	})
	if event.Creator != "" {
		s.push.PushRoyalty(event.Creator, RoyaltyData{
			Mint:        event.Mint,
			Amount:      human,
			TokenSymbol: event.TokenSymbol,
			TxSignature: event.TxSignature,
		})
	}
	return true, nil
}

// Summary aggregates a creator's royalty history for the earnings view.
type RoyaltySummary struct {
	Creator     string                 `json:"creator"`
	TotalEvents int64                  `json:"total_events"`
	TotalEarned string                 `json:"total_earned"`
	TokenSymbol string                 `json:"token_symbol"`
	Recent      []*models.RoyaltyEvent `json:"recent"`
}

// Summary returns the creator's recent royalty events and running total.
func (s *RoyaltyService) Summary(ctx context.Context, creator string, limit int) (*RoyaltySummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	recent, err := s.royalties.FindByCreator(ctx, creator, limit)
	if err != nil {
		return nil, err
	}
	total, err := s.royalties.TotalByCreator(ctx, creator)
	if err != nil {
		return nil, err
	}
	earned, err := s.royalties.SumByCreator(ctx, creator)
	if err != nil {
		return nil, err
	}
	human, _ := x402.NormalizeAmount(fmt.Sprintf("%d", earned))

	return &RoyaltySummary{
		Creator:     creator,
		TotalEvents: total,
		TotalEarned: human,
		TokenSymbol: "USDC",
		Recent:      recent,
	}, nil
}

func webhookTime(unix int64) time.Time {
	if unix <= 0 {
		return time.Now()
	}
	return time.Unix(unix, 0)
}
