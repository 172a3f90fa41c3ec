package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"moveregistry-backend/internal/anchor"
	"moveregistry-backend/internal/cache"
	"moveregistry-backend/internal/clients"
	"moveregistry-backend/internal/dsl"
	"moveregistry-backend/internal/events"
	"moveregistry-backend/internal/metrics"
	"moveregistry-backend/internal/models"
	"moveregistry-backend/internal/repository"
	"moveregistry-backend/internal/x402"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ChainClient is the node RPC surface the orchestrator needs.
type ChainClient interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	Broadcast(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	WaitForConfirmation(ctx context.Context, sig solana.Signature) error
	LamportBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
	TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, bool, error)
	AccountExists(ctx context.Context, account solana.PublicKey) (bool, error)
}

// RequirementSource resolves payment requirements from an endpoint.
type RequirementSource interface {
	FetchRequirements(ctx context.Context, endpoint string) (*x402.PaymentRequirement, error)
}

// ProofVerifier submits a payment proof for verification and settlement.
type ProofVerifier interface {
	Verify(ctx context.Context, proof string, req *x402.PaymentRequirement, endpoint string) (*x402.VerificationResult, error)
}

// MetadataAttacher pins NFT metadata and returns its URI.
type MetadataAttacher interface {
	Attach(ctx context.Context, req *clients.MetadataRequest) (string, error)
}

// MintRequest is the input of one orchestration run.
type MintRequest struct {
	Creator        string `json:"creator"`
	Name           string `json:"name"`
	Expression     string `json:"expression"`
	RoyaltyPercent uint8  `json:"royalty_percent"`
}

// pendingVerification is the cached material for a manual re-verify: the
// exact proof already submitted plus the requirement it was built against.
type pendingVerification struct {
	proof       string
	requirement *x402.PaymentRequirement
	endpoint    string
	creator     string
	mint        string
}

// MintService orchestrates the full mint flow: build, sign, broadcast,
// metadata, payment, and on-chain verification.
type MintService struct {
	program   *anchor.Program
	chain     ChainClient
	resolver  RequirementSource
	verifier  ProofVerifier
	metadata  MetadataAttacher
	bridge    *WalletBridge
	push      *WebSocketPushService
	publisher *events.Publisher
	moves     repository.MoveRepository
	attempts  repository.AttemptRepository
	reqCache  *cache.RequirementCache

	paymentEndpoint   string
	nativeFeeLamports uint64
	confirmTimeout    time.Duration
	verifierKey       *solana.PrivateKey

	mutex   sync.Mutex
	pending map[string]*pendingVerification // key: attempt ID
}

// MintServiceOptions bundles the orchestrator's configuration.
type MintServiceOptions struct {
	PaymentEndpoint   string
	NativeFeeLamports uint64
	ConfirmTimeout    time.Duration
	VerifierKey       *solana.PrivateKey
}

// NewMintService wires the orchestrator.
func NewMintService(
	program *anchor.Program,
	chain ChainClient,
	resolver RequirementSource,
	verifier ProofVerifier,
	metadata MetadataAttacher,
	bridge *WalletBridge,
	push *WebSocketPushService,
	publisher *events.Publisher,
	moves repository.MoveRepository,
	attempts repository.AttemptRepository,
	reqCache *cache.RequirementCache,
	opts MintServiceOptions,
) *MintService {
	if opts.NativeFeeLamports == 0 {
		opts.NativeFeeLamports = 1_000_000
	}
	if opts.ConfirmTimeout == 0 {
		opts.ConfirmTimeout = 60 * time.Second
	}
	return &MintService{
		program:           program,
		chain:             chain,
		resolver:          resolver,
		verifier:          verifier,
		metadata:          metadata,
		bridge:            bridge,
		push:              push,
		publisher:         publisher,
		moves:             moves,
		attempts:          attempts,
		reqCache:          reqCache,
		paymentEndpoint:   opts.PaymentEndpoint,
		nativeFeeLamports: opts.NativeFeeLamports,
		confirmTimeout:    opts.ConfirmTimeout,
		verifierKey:       opts.VerifierKey,
		pending:           make(map[string]*pendingVerification),
	}
}

// Mint runs one full orchestration attempt. Every attempt gets its own state
// record; nothing is shared between attempts except the persisted move rows.
func (s *MintService) Mint(ctx context.Context, req *MintRequest) (*models.MintAttempt, error) {
	attempt, creator, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return attempt, s.execute(ctx, attempt, req, creator)
}

// MintAsync validates and registers the attempt, then runs the flow in the
// background. Progress reaches the creator over the push service.
func (s *MintService) MintAsync(ctx context.Context, req *MintRequest) (*models.MintAttempt, error) {
	attempt, creator, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := s.execute(context.Background(), attempt, req, creator); err != nil {
			logrus.WithFields(logrus.Fields{
				"attempt": attempt.ID,
				"error":   err.Error(),
			}).Error("❌ Mint attempt failed")
		}
	}()
	return attempt, nil
}

func (s *MintService) prepare(ctx context.Context, req *MintRequest) (*models.MintAttempt, solana.PublicKey, error) {
	creator, err := anchor.ParseAddress("creator", req.Creator)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	if msg := dsl.Validate(req.Expression); msg != "" {
		return nil, solana.PublicKey{}, fmt.Errorf("invalid expression: %s", msg)
	}
	if req.RoyaltyPercent > 100 {
		return nil, solana.PublicKey{}, fmt.Errorf("royalty percent %d out of range", req.RoyaltyPercent)
	}

	attempt := &models.MintAttempt{
		ID:       uuid.New().String(),
		Creator:  req.Creator,
		MoveName: req.Name,
		State:    models.StateIdle,
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("failed to create attempt record: %w", err)
	}
	return attempt, creator, nil
}

func (s *MintService) execute(ctx context.Context, attempt *models.MintAttempt, req *MintRequest, creator solana.PublicKey) error {
	started := time.Now()

	path, err := s.run(ctx, attempt, req, creator)
	if err != nil {
		s.fail(ctx, attempt, err)
		metrics.MintAttemptsTotal.WithLabelValues("failed").Inc()
		return err
	}

	metrics.MintAttemptsTotal.WithLabelValues("succeeded").Inc()
	metrics.MintDuration.WithLabelValues(string(path)).Observe(time.Since(started).Seconds())
	return nil
}

func (s *MintService) run(ctx context.Context, attempt *models.MintAttempt, req *MintRequest, creator solana.PublicKey) (models.PaymentPath, error) {
	// Build the mint transaction.
	s.setState(ctx, attempt, models.StateBuildingMintTx, "🛠️ Building mint transaction...", models.StatusPending, nil)

	blockhash, err := s.chain.LatestBlockhash(ctx)
	if err != nil {
		return models.PaymentPathNone, err
	}
	build, err := s.program.BuildMintSkillTransaction(creator, req.Name, req.Expression, req.RoyaltyPercent, blockhash)
	if err != nil {
		return models.PaymentPathNone, err
	}
	if err := build.Built.PartialSign(); err != nil {
		return models.PaymentPathNone, err
	}
	attempt.Mint = build.MintWallet.PublicKey().String()

	// Wallet signature.
	s.setState(ctx, attempt, models.StateAwaitingMintSig, "✍️ Please approve the mint in your wallet", models.StatusPending, nil)
	signed, err := s.bridge.SignTransaction(ctx, attempt.ID+":mint", "mint", build.Built.Tx, func(sr *SignRequest) {
		s.push.PushSignRequest(req.Creator, sr)
	})
	if err != nil {
		return models.PaymentPathNone, err
	}

	// Broadcast and confirm.
	s.setState(ctx, attempt, models.StateBroadcastingMint, "📡 Broadcasting mint transaction...", models.StatusPending, nil)
	sig, err := s.broadcastAndConfirm(ctx, signed, "mint")
	if err != nil {
		return models.PaymentPathNone, err
	}

	s.setState(ctx, attempt, models.StateMintConfirmed, "🎉 Move minted on-chain!", models.StatusSuccess, &MintStatusData{
		TxHash:   sig.String(),
		Explorer: explorerLink(sig),
	})

	move := &models.MintedMove{
		ID:             uuid.New().String(),
		Mint:           attempt.Mint,
		Creator:        req.Creator,
		Name:           req.Name,
		Expression:     req.Expression,
		RoyaltyPercent: req.RoyaltyPercent,
		MintSignature:  sig.String(),
		PaymentPath:    models.PaymentPathNone,
	}
	if err := s.moves.Create(ctx, move); err != nil {
		logrus.WithError(err).Error("❌ Failed to persist minted move")
	}
	s.publisher.MoveMinted(&events.MoveMintedEvent{
		Mint:        move.Mint,
		Creator:     move.Creator,
		Name:        move.Name,
		Expression:  move.Expression,
		Royalty:     move.RoyaltyPercent,
		TxSignature: move.MintSignature,
		MintedAt:    time.Now(),
	})

	// Metadata is best-effort; a failure downgrades to a warning.
	s.attachMetadata(ctx, attempt, move)

	// Settle the mint fee.
	path, paymentSig, err := s.settlePayment(ctx, attempt, req, creator, move)
	if err != nil {
		return path, err
	}
	if paymentSig != "" {
		if err := s.moves.SetPayment(ctx, move.Mint, path, paymentSig); err != nil {
			logrus.WithError(err).Error("❌ Failed to record payment on move")
		}
	}

	// A pending verification keeps the attempt open so RetryVerification can
	// finish it later; the final states belong to that path.
	if s.HasPendingVerification(attempt.ID) {
		return path, nil
	}

	// On-chain verification, when the service holds a verifier identity.
	s.verifyOnChain(ctx, attempt, move, paymentSig)

	s.setState(ctx, attempt, models.StateDone, "✅ All done", models.StatusSuccess, nil)
	return path, nil
}

func (s *MintService) attachMetadata(ctx context.Context, attempt *models.MintAttempt, move *models.MintedMove) {
	if s.metadata == nil {
		return
	}

	s.setState(ctx, attempt, models.StateAttachingMetadata, "🏷️ Attaching metadata...", models.StatusPending, nil)
	uri, err := s.metadata.Attach(ctx, &clients.MetadataRequest{
		Mint:       move.Mint,
		Name:       move.Name,
		Expression: move.Expression,
		Creator:    move.Creator,
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"mint":  move.Mint,
			"error": err.Error(),
		}).Warn("⚠️ Metadata attachment failed, continuing without it")
		s.setState(ctx, attempt, models.StateAttachingMetadata, "⚠️ Metadata attachment failed, your move is still minted", models.StatusWarning, nil)
		return
	}

	move.MetadataURI = uri
	if err := s.moves.Update(ctx, move); err != nil {
		logrus.WithError(err).Error("❌ Failed to persist metadata URI")
	}
}

// settlePayment resolves the payment requirement and runs the matching
// settlement flow. An endpoint that advertises no usable requirement falls
// back to a direct native transfer to the treasury.
func (s *MintService) settlePayment(ctx context.Context, attempt *models.MintAttempt, req *MintRequest, creator solana.PublicKey, move *models.MintedMove) (models.PaymentPath, string, error) {
	s.setState(ctx, attempt, models.StateChoosingPaymentPath, "💳 Resolving payment requirements...", models.StatusPending, nil)

	requirement := s.reqCache.Get(ctx, s.paymentEndpoint)
	if requirement != nil {
		metrics.PaymentRequirementFetches.WithLabelValues("cache").Inc()
	} else {
		var err error
		requirement, err = s.resolver.FetchRequirements(ctx, s.paymentEndpoint)
		if err != nil {
			var perr *x402.ProtocolError
			if errors.As(err, &perr) {
				logrus.WithError(err).Warn("⚠️ Payment endpoint unusable, falling back to native transfer")
				sig, nerr := s.nativeTransfer(ctx, attempt, req, creator)
				return models.PaymentPathNative, sig, nerr
			}
			return models.PaymentPathNone, "", err
		}
		metrics.PaymentRequirementFetches.WithLabelValues("endpoint").Inc()
		s.reqCache.Put(ctx, s.paymentEndpoint, requirement)
	}

	required, err := strconv.ParseUint(requirement.RawAmount, 10, 64)
	if err != nil || required == 0 {
		// A free or unpriced offer needs no settlement.
		s.setState(ctx, attempt, models.StatePaymentConfirmed, "🆓 No payment required", models.StatusSuccess, nil)
		return models.PaymentPathNone, "", nil
	}

	sig, err := s.tokenPayment(ctx, attempt, req, creator, move, requirement, required)
	return models.PaymentPathToken, sig, err
}

// nativeTransfer is the fallback path: a plain transfer of the fixed fee to
// the program treasury, signed by the creator and broadcast by the service.
func (s *MintService) nativeTransfer(ctx context.Context, attempt *models.MintAttempt, req *MintRequest, creator solana.PublicKey) (string, error) {
	s.setState(ctx, attempt, models.StateNativeTransferFlow, "💸 Paying mint fee by direct transfer...", models.StatusPending, nil)

	balance, err := s.chain.LamportBalance(ctx, creator)
	if err != nil {
		return "", err
	}
	// Leave headroom for the transaction fee itself.
	if balance < s.nativeFeeLamports+5000 {
		return "", &InsufficientBalanceError{
			TokenSymbol: "SOL",
			Required:    lamportsToSol(s.nativeFeeLamports),
			Available:   lamportsToSol(balance),
		}
	}

	treasury, err := s.program.TreasuryPDA()
	if err != nil {
		return "", err
	}
	blockhash, err := s.chain.LatestBlockhash(ctx)
	if err != nil {
		return "", err
	}

	transfer := system.NewTransferInstruction(s.nativeFeeLamports, creator, treasury).Build()
	built, err := anchor.BuildTransaction([]solana.Instruction{transfer}, creator, blockhash)
	if err != nil {
		return "", err
	}

	signed, err := s.bridge.SignTransaction(ctx, attempt.ID+":native", "payment", built.Tx, func(sr *SignRequest) {
		s.push.PushSignRequest(req.Creator, sr)
	})
	if err != nil {
		return "", err
	}

	sig, err := s.broadcastAndConfirm(ctx, signed, "payment")
	if err != nil {
		return "", err
	}

	s.setState(ctx, attempt, models.StatePaymentConfirmed, "✅ Mint fee paid", models.StatusSuccess, &MintStatusData{
		TxHash:   sig.String(),
		Explorer: explorerLink(sig),
	})
	return sig.String(), nil
}

// tokenPayment is the x402 path: the creator signs a token transfer matching
// the advertised requirement, and the facilitator verifies and settles it.
// The service never broadcasts this transaction itself.
func (s *MintService) tokenPayment(ctx context.Context, attempt *models.MintAttempt, req *MintRequest, creator solana.PublicKey, move *models.MintedMove, requirement *x402.PaymentRequirement, required uint64) (string, error) {
	s.setState(ctx, attempt, models.StateTokenPaymentFlow,
		fmt.Sprintf("💳 Paying %s %s...", requirement.Amount, requirement.TokenSymbol), models.StatusPending, nil)

	asset, err := anchor.ParseAddress("asset", requirement.Asset)
	if err != nil {
		return "", err
	}
	destination, err := anchor.ParseAddress("payTo", requirement.Destination)
	if err != nil {
		return "", err
	}

	available, exists, err := s.chain.TokenBalance(ctx, creator, asset)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", &AccountMissingError{Account: creator.String(), Purpose: requirement.TokenSymbol + " token"}
	}
	if available < required {
		human, _ := x402.NormalizeAmount(strconv.FormatUint(available, 10))
		return "", &InsufficientBalanceError{
			TokenSymbol: requirement.TokenSymbol,
			Required:    requirement.Amount,
			Available:   human,
		}
	}

	sourceATA, _, err := solana.FindAssociatedTokenAddress(creator, asset)
	if err != nil {
		return "", fmt.Errorf("failed to derive source token account: %w", err)
	}
	destATA, _, err := solana.FindAssociatedTokenAddress(destination, asset)
	if err != nil {
		return "", fmt.Errorf("failed to derive destination token account: %w", err)
	}

	instructions := make([]solana.Instruction, 0, 2)
	destExists, err := s.chain.AccountExists(ctx, destATA)
	if err != nil {
		return "", err
	}
	if !destExists {
		instructions = append(instructions,
			associatedtokenaccount.NewCreateInstruction(creator, destination, asset).Build())
	}
	instructions = append(instructions,
		token.NewTransferInstruction(required, sourceATA, destATA, creator, nil).Build())

	blockhash, err := s.chain.LatestBlockhash(ctx)
	if err != nil {
		return "", err
	}
	built, err := anchor.BuildTransaction(instructions, creator, blockhash)
	if err != nil {
		return "", err
	}

	signed, err := s.bridge.SignTransaction(ctx, attempt.ID+":token", "payment", built.Tx, func(sr *SignRequest) {
		s.push.PushSignRequest(req.Creator, sr)
	})
	if err != nil {
		return "", err
	}
	serialized, err := signed.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize payment transaction: %w", err)
	}

	proof, err := x402.EncodeProof(base64.StdEncoding.EncodeToString(serialized), requirement, s.paymentEndpoint)
	if err != nil {
		return "", err
	}

	// Cache the proof before the first verify so a transport failure leaves
	// the attempt retryable with the identical envelope.
	s.mutex.Lock()
	s.pending[attempt.ID] = &pendingVerification{
		proof:       proof,
		requirement: requirement,
		endpoint:    s.paymentEndpoint,
		creator:     req.Creator,
		mint:        move.Mint,
	}
	s.mutex.Unlock()

	result, err := s.verifier.Verify(ctx, proof, requirement, s.paymentEndpoint)
	if err != nil {
		if retryableVerification(err) {
			metrics.PaymentVerificationsTotal.WithLabelValues("pending").Inc()
			s.setState(ctx, attempt, models.StateVerificationPending,
				"⏳ Payment sent but verification is unavailable. Retry verification later.", models.StatusWarning, nil)
			return "", nil
		}
		// An explicit rejection means the same bytes would be rejected again,
		// so the cached proof is useless.
		metrics.PaymentVerificationsTotal.WithLabelValues("rejected").Inc()
		s.clearPending(attempt.ID)
		s.reqCache.Invalidate(ctx, s.paymentEndpoint)
		return "", err
	}

	metrics.PaymentVerificationsTotal.WithLabelValues("verified").Inc()
	s.clearPending(attempt.ID)
	s.setState(ctx, attempt, models.StatePaymentConfirmed, "✅ Payment verified: "+result.Message, models.StatusSuccess, &MintStatusData{
		TxHash:   result.TxHash,
		Explorer: result.ExplorerLink,
	})
	return result.TxHash, nil
}

// RetryVerification re-submits the cached payment proof of an attempt stuck
// in verification. The envelope is byte-identical to the original, so the
// facilitator sees a repeat of the same settlement, never a second payment.
func (s *MintService) RetryVerification(ctx context.Context, attemptID string) (*x402.VerificationResult, error) {
	s.mutex.Lock()
	pv, ok := s.pending[attemptID]
	s.mutex.Unlock()
	if !ok {
		return nil, fmt.Errorf("no pending verification for attempt %s", attemptID)
	}

	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("unknown attempt %s: %w", attemptID, err)
	}

	s.setState(ctx, attempt, models.StateTokenPaymentFlow, "🔁 Retrying payment verification...", models.StatusPending, nil)
	result, verr := s.verifier.Verify(ctx, pv.proof, pv.requirement, pv.endpoint)
	if verr != nil {
		if retryableVerification(verr) {
			metrics.PaymentVerificationsTotal.WithLabelValues("retry_failed").Inc()
			s.setState(ctx, attempt, models.StateVerificationPending, "⏳ Verification still failing: "+verr.Error(), models.StatusWarning, nil)
			return nil, verr
		}
		metrics.PaymentVerificationsTotal.WithLabelValues("rejected").Inc()
		s.clearPending(attemptID)
		s.setState(ctx, attempt, models.StateFailed,
			"⚠️ Payment sent but verification was rejected: "+verr.Error()+". Your move is still minted.", models.StatusWarning, nil)
		return nil, verr
	}

	metrics.PaymentVerificationsTotal.WithLabelValues("verified").Inc()
	s.clearPending(attemptID)

	if err := s.moves.SetPayment(ctx, pv.mint, models.PaymentPathToken, result.TxHash); err != nil {
		logrus.WithError(err).Error("❌ Failed to record payment on move")
	}
	if move, merr := s.moves.GetByMint(ctx, pv.mint); merr == nil {
		s.verifyOnChain(ctx, attempt, move, result.TxHash)
	}

	s.setState(ctx, attempt, models.StateDone, "✅ Payment verified: "+result.Message, models.StatusSuccess, &MintStatusData{
		TxHash:   result.TxHash,
		Explorer: result.ExplorerLink,
	})
	return result, nil
}

// verifyOnChain marks the move verified via the program, using the service's
// verifier identity. Best-effort; the mint stands either way.
func (s *MintService) verifyOnChain(ctx context.Context, attempt *models.MintAttempt, move *models.MintedMove, settlementRef string) {
	if s.verifierKey == nil {
		return
	}

	s.setState(ctx, attempt, models.StateOnChainVerifyAttempt, "🔏 Recording verification on-chain...", models.StatusPending, nil)

	mint, err := anchor.ParseAddress("mint", move.Mint)
	if err != nil {
		logrus.WithError(err).Error("❌ Stored mint address invalid")
		return
	}
	skillPDA, err := s.program.SkillDataPDA(mint)
	if err != nil {
		logrus.WithError(err).Error("❌ Failed to derive skill record")
		return
	}
	blockhash, err := s.chain.LatestBlockhash(ctx)
	if err != nil {
		logrus.WithError(err).Warn("⚠️ On-chain verification skipped")
		return
	}

	verifier := s.verifierKey.PublicKey()
	built, err := s.program.BuildVerifySkillTransaction(verifier, skillPDA, settlementRef, blockhash)
	if err != nil {
		logrus.WithError(err).Error("❌ Failed to build verification transaction")
		return
	}
	key := *s.verifierKey
	if _, err := built.Tx.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
		if pk.Equals(verifier) {
			return &key
		}
		return nil
	}); err != nil {
		logrus.WithError(err).Error("❌ Failed to sign verification transaction")
		return
	}

	sig, err := s.broadcastAndConfirm(ctx, built.Tx, "verify")
	if err != nil {
		logrus.WithError(err).Warn("⚠️ On-chain verification failed, move remains unverified")
		s.setState(ctx, attempt, models.StateOnChainVerifyAttempt, "⚠️ On-chain verification failed, your move is still minted", models.StatusWarning, nil)
		return
	}

	if err := s.moves.MarkVerified(ctx, move.Mint, sig.String(), settlementRef); err != nil {
		logrus.WithError(err).Error("❌ Failed to persist verification")
	}
	s.publisher.MoveVerified(&events.MoveVerifiedEvent{
		Mint:          move.Mint,
		SettlementRef: settlementRef,
		TxSignature:   sig.String(),
		VerifiedAt:    time.Now(),
	})
}

func (s *MintService) broadcastAndConfirm(ctx context.Context, tx *solana.Transaction, kind string) (solana.Signature, error) {
	started := time.Now()
	sig, err := s.chain.Broadcast(ctx, tx)
	if err != nil {
		metrics.ChainBroadcastsTotal.WithLabelValues(kind, "error").Inc()
		return solana.Signature{}, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.confirmTimeout)
	defer cancel()
	if err := s.chain.WaitForConfirmation(waitCtx, sig); err != nil {
		metrics.ChainBroadcastsTotal.WithLabelValues(kind, "unconfirmed").Inc()
		return solana.Signature{}, err
	}

	metrics.ChainBroadcastsTotal.WithLabelValues(kind, "confirmed").Inc()
	metrics.ChainConfirmationDuration.Observe(time.Since(started).Seconds())
	return sig, nil
}

func (s *MintService) setState(ctx context.Context, attempt *models.MintAttempt, state models.MintAttemptState, status string, kind models.StatusKind, extra *MintStatusData) {
	attempt.State = state
	attempt.Status = status
	attempt.Kind = kind
	if err := s.attempts.Update(ctx, attempt); err != nil {
		logrus.WithError(err).Error("❌ Failed to persist attempt state")
	}
	metrics.MintStateTransitions.WithLabelValues(string(state)).Inc()

	data := MintStatusData{
		AttemptID: attempt.ID,
		State:     state,
		Status:    status,
		Kind:      kind,
		Mint:      attempt.Mint,
	}
	if extra != nil {
		data.TxHash = extra.TxHash
		data.Explorer = extra.Explorer
	}
	s.push.PushMintStatus(attempt.Creator, data)

	logrus.WithFields(logrus.Fields{
		"attempt": attempt.ID,
		"state":   string(state),
		"kind":    string(kind),
	}).Info(status)
}

func (s *MintService) fail(ctx context.Context, attempt *models.MintAttempt, err error) {
	attempt.ErrorMsg = err.Error()

	kind := models.StatusError
	status := "❌ Mint failed: " + err.Error()

	var rejected *SignatureRejectedError
	var insufficient *InsufficientBalanceError
	var missing *AccountMissingError
	var verification *x402.VerificationError
	switch {
	case errors.As(err, &rejected):
		status = "🚫 Signature rejected in wallet. No funds moved."
	case errors.As(err, &insufficient):
		status = "💰 " + err.Error()
	case errors.As(err, &missing):
		status = "🔍 " + err.Error()
	case errors.As(err, &verification):
		// The payment transaction is already out of our hands and the mint
		// is confirmed; only the verification step was refused.
		kind = models.StatusWarning
		status = "⚠️ Payment sent but verification was rejected: " + err.Error() + ". Your move is still minted."
	}

	s.setState(ctx, attempt, models.StateFailed, status, kind, nil)
}

// retryableVerification reports whether a verification failure is transient:
// a transport error, or a facilitator-side 5xx. Only an explicit 4xx
// rejection is final, since the same proof bytes would be rejected again.
func retryableVerification(err error) bool {
	var nerr *x402.NetworkError
	if errors.As(err, &nerr) {
		return true
	}
	var verr *x402.VerificationError
	return errors.As(err, &verr) && verr.Status >= 500
}

func (s *MintService) clearPending(attemptID string) {
	s.mutex.Lock()
	delete(s.pending, attemptID)
	s.mutex.Unlock()
}

// GetAttempt loads one attempt record.
func (s *MintService) GetAttempt(ctx context.Context, attemptID string) (*models.MintAttempt, error) {
	return s.attempts.GetByID(ctx, attemptID)
}

// ListAttempts returns a creator's recent attempts, newest first.
func (s *MintService) ListAttempts(ctx context.Context, creator string, limit int) ([]*models.MintAttempt, error) {
	return s.attempts.FindByCreator(ctx, creator, limit)
}

// HasPendingVerification reports whether an attempt still holds a cached
// proof awaiting manual retry.
func (s *MintService) HasPendingVerification(attemptID string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	_, ok := s.pending[attemptID]
	return ok
}

func explorerLink(sig solana.Signature) string {
	return "https://solscan.io/tx/" + sig.String() + "?cluster=devnet"
}

func lamportsToSol(lamports uint64) string {
	return strconv.FormatFloat(float64(lamports)/1e9, 'f', -1, 64) + " SOL"
}
