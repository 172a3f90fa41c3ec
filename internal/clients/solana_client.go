package clients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"
)

// SolanaClient wraps the JSON-RPC node connection used for blockhash
// retrieval, broadcast, confirmation polling, and balance checks.
type SolanaClient struct {
	rpc      *rpc.Client
	endpoint string
}

// NewSolanaClient creates a client for the given RPC endpoint. An empty
// endpoint falls back to the public devnet node.
func NewSolanaClient(endpoint string) *SolanaClient {
	if endpoint == "" {
		endpoint = rpc.DevNet_RPC
	}
	return &SolanaClient{
		rpc:      rpc.New(endpoint),
		endpoint: endpoint,
	}
}

// LatestBlockhash fetches a recent blockhash bounding transaction validity.
func (c *SolanaClient) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("failed to fetch latest blockhash: %w", err)
	}
	return out.Value.Blockhash, nil
}

// Broadcast submits a fully signed transaction and returns its signature.
func (c *SolanaClient) Broadcast(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to broadcast transaction: %w", err)
	}

	logrus.WithField("signature", sig.String()).Info("📡 Transaction broadcast")
	return sig, nil
}

// WaitForConfirmation polls signature status until the transaction is
// confirmed, fails on-chain, or the context expires. The poll interval is
// fixed at 2 seconds to stay within public RPC rate limits.
func (c *SolanaClient) WaitForConfirmation(ctx context.Context, sig solana.Signature) error {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("confirmation wait aborted for %s: %w", sig, ctx.Err())
		case <-ticker.C:
		}

		out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"signature": sig.String(),
				"error":     err.Error(),
			}).Warn("⚠️ Signature status poll failed, retrying")
			continue
		}
		if len(out.Value) == 0 || out.Value[0] == nil {
			continue
		}

		status := out.Value[0]
		if status.Err != nil {
			return fmt.Errorf("transaction %s failed on-chain: %v", sig, status.Err)
		}
		switch status.ConfirmationStatus {
		case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
			logrus.WithFields(logrus.Fields{
				"signature": sig.String(),
				"status":    string(status.ConfirmationStatus),
			}).Info("✅ Transaction confirmed")
			return nil
		}
	}
}

// LamportBalance returns the native balance of an account in lamports.
func (c *SolanaClient) LamportBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	out, err := c.rpc.GetBalance(ctx, account, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch balance for %s: %w", account, err)
	}
	return out.Value, nil
}

// TokenBalance returns the raw token amount held in the owner's associated
// token account for the given mint. A missing account reads as zero with
// exists=false so the caller can distinguish "no account" from "empty".
func (c *SolanaClient) TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (amount uint64, exists bool, err error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return 0, false, fmt.Errorf("failed to derive token account for %s: %w", owner, err)
	}

	out, err := c.rpc.GetTokenAccountBalance(ctx, ata, rpc.CommitmentConfirmed)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to fetch token balance for %s: %w", ata, err)
	}
	if out.Value == nil {
		return 0, false, nil
	}

	var raw uint64
	if _, err := fmt.Sscan(out.Value.Amount, &raw); err != nil {
		return 0, true, fmt.Errorf("unparseable token amount %q: %w", out.Value.Amount, err)
	}
	return raw, true, nil
}

// AccountExists reports whether an account is present on-chain.
func (c *SolanaClient) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	_, err := c.rpc.GetAccountInfo(ctx, account)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to fetch account %s: %w", account, err)
	}
	return true, nil
}

// Endpoint returns the configured RPC endpoint, for health reporting.
func (c *SolanaClient) Endpoint() string {
	return c.endpoint
}
