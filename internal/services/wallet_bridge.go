package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

// WalletBridge relays signing requests between the orchestrator and the
// creator's wallet on the other side of a WebSocket. The orchestrator blocks
// on SignTransaction; the frontend resolves it with ProvideSignature or
// Reject once the wallet responds.
type WalletBridge struct {
	mutex   sync.Mutex
	pending map[string]chan signOutcome
}

type signOutcome struct {
	signedTx string
	err      error
}

// SignRequest is pushed to the frontend when a signature is needed.
type SignRequest struct {
	RequestID string `json:"request_id"`
	// Base64 of the (partially signed) serialized transaction, the format
	// browser wallets expect.
	Transaction string `json:"transaction"`
	Step        string `json:"step"`
}

// NewWalletBridge creates an empty bridge.
func NewWalletBridge() *WalletBridge {
	return &WalletBridge{
		pending: make(map[string]chan signOutcome),
	}
}

// SignTransaction blocks until the wallet returns the fully signed
// transaction or the context expires. The request function is responsible
// for delivering the SignRequest to the frontend.
func (b *WalletBridge) SignTransaction(ctx context.Context, requestID, step string, tx *solana.Transaction, deliver func(*SignRequest)) (*solana.Transaction, error) {
	serialized, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transaction for signing: %w", err)
	}

	ch := make(chan signOutcome, 1)
	b.mutex.Lock()
	b.pending[requestID] = ch
	b.mutex.Unlock()

	defer func() {
		b.mutex.Lock()
		delete(b.pending, requestID)
		b.mutex.Unlock()
	}()

	deliver(&SignRequest{
		RequestID:   requestID,
		Transaction: base64.StdEncoding.EncodeToString(serialized),
		Step:        step,
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("signing request %s abandoned: %w", requestID, ctx.Err())
	case outcome := <-ch:
		if outcome.err != nil {
			return nil, outcome.err
		}
		signed, err := solana.TransactionFromBase64(outcome.signedTx)
		if err != nil {
			return nil, fmt.Errorf("wallet returned unparseable transaction: %w", err)
		}
		return signed, nil
	}
}

// ProvideSignature resolves a pending request with the wallet's signed
// transaction, base64-encoded.
func (b *WalletBridge) ProvideSignature(requestID, signedTx string) error {
	return b.resolve(requestID, signOutcome{signedTx: signedTx})
}

// Reject resolves a pending request with a wallet error. Messages that look
// like a user refusal map to SignatureRejectedError.
func (b *WalletBridge) Reject(requestID, step, message string) error {
	if isUserRejection(message) {
		return b.resolve(requestID, signOutcome{err: &SignatureRejectedError{Step: step}})
	}
	return b.resolve(requestID, signOutcome{err: fmt.Errorf("wallet signing failed: %s", message)})
}

func (b *WalletBridge) resolve(requestID string, outcome signOutcome) error {
	b.mutex.Lock()
	ch, ok := b.pending[requestID]
	b.mutex.Unlock()
	if !ok {
		logrus.WithField("request_id", requestID).Warn("⚠️ Signature for unknown or expired request")
		return fmt.Errorf("no pending signing request %s", requestID)
	}

	select {
	case ch <- outcome:
		return nil
	default:
		return fmt.Errorf("signing request %s already resolved", requestID)
	}
}

func isUserRejection(message string) bool {
	m := strings.ToLower(message)
	return strings.Contains(m, "rejected") ||
		strings.Contains(m, "denied") ||
		strings.Contains(m, "declined")
}
