package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"moveregistry-backend/internal/anchor"
	"moveregistry-backend/internal/clients"
	"moveregistry-backend/internal/events"
	"moveregistry-backend/internal/models"
	"moveregistry-backend/internal/x402"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ---- fakes ----

type fakeChain struct {
	mutex        sync.Mutex
	lamports     uint64
	tokenAmount  uint64
	tokenExists  bool
	accountsSeen map[string]bool
	broadcasts   int
}

func (c *fakeChain) LatestBlockhash(context.Context) (solana.Hash, error) {
	return solana.Hash{}, nil
}

func (c *fakeChain) Broadcast(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.broadcasts++
	var sig solana.Signature
	sig[0] = byte(c.broadcasts)
	return sig, nil
}

func (c *fakeChain) WaitForConfirmation(context.Context, solana.Signature) error { return nil }

func (c *fakeChain) LamportBalance(context.Context, solana.PublicKey) (uint64, error) {
	return c.lamports, nil
}

func (c *fakeChain) TokenBalance(context.Context, solana.PublicKey, solana.PublicKey) (uint64, bool, error) {
	return c.tokenAmount, c.tokenExists, nil
}

func (c *fakeChain) AccountExists(_ context.Context, account solana.PublicKey) (bool, error) {
	if c.accountsSeen == nil {
		return true, nil
	}
	return c.accountsSeen[account.String()], nil
}

type fakeResolver struct {
	requirement *x402.PaymentRequirement
	err         error
	calls       int
}

func (r *fakeResolver) FetchRequirements(context.Context, string) (*x402.PaymentRequirement, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.requirement, nil
}

type fakeVerifier struct {
	mutex   sync.Mutex
	proofs  []string
	results []verifyOutcome
}

type verifyOutcome struct {
	result *x402.VerificationResult
	err    error
}

func (v *fakeVerifier) Verify(_ context.Context, proof string, _ *x402.PaymentRequirement, _ string) (*x402.VerificationResult, error) {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	v.proofs = append(v.proofs, proof)
	idx := len(v.proofs) - 1
	if idx >= len(v.results) {
		idx = len(v.results) - 1
	}
	out := v.results[idx]
	return out.result, out.err
}

type fakeMetadata struct {
	uri string
	err error
}

func (m *fakeMetadata) Attach(context.Context, *clients.MetadataRequest) (string, error) {
	return m.uri, m.err
}

type memMoveRepo struct {
	mutex sync.Mutex
	moves map[string]*models.MintedMove
}

func newMemMoveRepo() *memMoveRepo {
	return &memMoveRepo{moves: make(map[string]*models.MintedMove)}
}

func (r *memMoveRepo) Create(_ context.Context, m *models.MintedMove) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	cp := *m
	r.moves[m.Mint] = &cp
	return nil
}

func (r *memMoveRepo) GetByMint(_ context.Context, mint string) (*models.MintedMove, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	m, ok := r.moves[mint]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *memMoveRepo) Update(_ context.Context, m *models.MintedMove) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	cp := *m
	r.moves[m.Mint] = &cp
	return nil
}

func (r *memMoveRepo) FindByCreator(_ context.Context, creator string) ([]*models.MintedMove, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	var out []*models.MintedMove
	for _, m := range r.moves {
		if m.Creator == creator {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memMoveRepo) List(context.Context, int, int) ([]*models.MintedMove, int64, error) {
	return nil, 0, nil
}

func (r *memMoveRepo) MarkVerified(_ context.Context, mint, verifySignature, settlementRef string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if m, ok := r.moves[mint]; ok {
		m.Verified = true
		m.VerifySignature = verifySignature
		m.SettlementRef = settlementRef
	}
	return nil
}

func (r *memMoveRepo) SetPayment(_ context.Context, mint string, path models.PaymentPath, sig string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if m, ok := r.moves[mint]; ok {
		m.PaymentPath = path
		m.PaymentSignature = sig
	}
	return nil
}

type memAttemptRepo struct {
	mutex    sync.Mutex
	attempts map[string]*models.MintAttempt
}

func newMemAttemptRepo() *memAttemptRepo {
	return &memAttemptRepo{attempts: make(map[string]*models.MintAttempt)}
}

func (r *memAttemptRepo) Create(_ context.Context, a *models.MintAttempt) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	cp := *a
	r.attempts[a.ID] = &cp
	return nil
}

func (r *memAttemptRepo) GetByID(_ context.Context, id string) (*models.MintAttempt, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	a, ok := r.attempts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memAttemptRepo) Update(_ context.Context, a *models.MintAttempt) error {
	return r.Create(context.Background(), a)
}

func (r *memAttemptRepo) FindByCreator(context.Context, string, int) ([]*models.MintAttempt, error) {
	return nil, nil
}

func (r *memAttemptRepo) FindUnfinished(context.Context) ([]*models.MintAttempt, error) {
	return nil, nil
}

// autoWallet approves every signing request pushed over the creator's
// WebSocket session, signing with the creator key like a browser wallet.
func autoWallet(t *testing.T, push *WebSocketPushService, bridge *WalletBridge, wallet *solana.Wallet, reject bool) {
	t.Helper()

	conn := &Connection{
		ID:          "test-conn",
		UserAddress: wallet.PublicKey().String(),
		Send:        make(chan []byte, 32),
	}
	push.RegisterConnection(conn)

	go func() {
		for raw := range conn.Send {
			var msg PushMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				continue
			}
			if msg.Type != "sign_request" {
				continue
			}
			data, _ := json.Marshal(msg.Data)
			var sr SignRequest
			if err := json.Unmarshal(data, &sr); err != nil {
				continue
			}

			if reject {
				_ = bridge.Reject(sr.RequestID, sr.Step, "User rejected the request")
				continue
			}

			tx, err := solana.TransactionFromBase64(sr.Transaction)
			if err != nil {
				continue
			}
			key := wallet.PrivateKey
			if _, err := tx.PartialSign(func(pk solana.PublicKey) *solana.PrivateKey {
				if pk.Equals(wallet.PublicKey()) {
					return &key
				}
				return nil
			}); err != nil {
				continue
			}
			serialized, err := tx.MarshalBinary()
			if err != nil {
				continue
			}
			_ = bridge.ProvideSignature(sr.RequestID, base64.StdEncoding.EncodeToString(serialized))
		}
	}()
}

// verifyFetcher feeds scripted facilitator responses to a real
// x402.FacilitatorClient and records every request it sees.
type verifyFetcher struct {
	mutex     sync.Mutex
	responses []verifyResponse
	calls     []verifyCall
}

type verifyResponse struct {
	status int
	body   string
}

type verifyCall struct {
	url     string
	headers map[string]string
}

func (f *verifyFetcher) Get(_ context.Context, url string, headers map[string]string) (int, []byte, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.calls = append(f.calls, verifyCall{url: url, headers: headers})
	idx := len(f.calls) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	r := f.responses[idx]
	return r.status, []byte(r.body), nil
}

// drainMintStates collects the states of every buffered mint_status_update
// push without blocking.
func drainMintStates(conn *Connection, states *[]models.MintAttemptState) {
	for {
		select {
		case raw := <-conn.Send:
			var msg PushMessage
			if json.Unmarshal(raw, &msg) != nil || msg.Type != "mint_status_update" {
				continue
			}
			data, err := json.Marshal(msg.Data)
			if err != nil {
				continue
			}
			var update MintStatusData
			if json.Unmarshal(data, &update) == nil {
				*states = append(*states, update.State)
			}
		default:
			return
		}
	}
}

type testEnv struct {
	service  *MintService
	chain    *fakeChain
	resolver *fakeResolver
	verifier ProofVerifier
	moves    *memMoveRepo
	attempts *memAttemptRepo
	wallet   *solana.Wallet
}

func usdcRequirement() *x402.PaymentRequirement {
	return &x402.PaymentRequirement{
		Destination: solana.NewWallet().PublicKey().String(),
		Amount:      "0.01",
		RawAmount:   "10000",
		Asset:       anchor.DefaultUSDCMint,
		TokenSymbol: "USDC",
		Network:     "solana-devnet",
		Scheme:      "exact",
	}
}

func newTestEnv(t *testing.T, chain *fakeChain, resolver *fakeResolver, verifier ProofVerifier, rejectWallet bool) *testEnv {
	t.Helper()

	program, err := anchor.NewProgram("", "")
	require.NoError(t, err)

	bridge := NewWalletBridge()
	push := NewWebSocketPushService()
	wallet := solana.NewWallet()
	autoWallet(t, push, bridge, wallet, rejectWallet)

	moves := newMemMoveRepo()
	attempts := newMemAttemptRepo()

	service := NewMintService(
		program, chain, resolver, verifier,
		&fakeMetadata{uri: "ipfs://meta"},
		bridge, push, events.NewPublisher(nil),
		moves, attempts, nil,
		MintServiceOptions{
			PaymentEndpoint: "https://pay.example/api/premium",
			ConfirmTimeout:  5 * time.Second,
		},
	)

	return &testEnv{
		service:  service,
		chain:    chain,
		resolver: resolver,
		verifier: verifier,
		moves:    moves,
		attempts: attempts,
		wallet:   wallet,
	}
}

func (e *testEnv) mintRequest() *MintRequest {
	return &MintRequest{
		Creator:        e.wallet.PublicKey().String(),
		Name:           "Wave",
		Expression:     "dance:wave if tempo > 120\ndance:idle otherwise",
		RoyaltyPercent: 5,
	}
}

// ---- tests ----

func TestMint_TokenPaymentHappyPath(t *testing.T) {
	chain := &fakeChain{tokenAmount: 50_000, tokenExists: true}
	resolver := &fakeResolver{requirement: usdcRequirement()}
	verifier := &fakeVerifier{results: []verifyOutcome{
		{result: &x402.VerificationResult{Message: "settled", TxHash: "PAY_SIG"}},
	}}
	env := newTestEnv(t, chain, resolver, verifier, false)

	attempt, err := env.service.Mint(context.Background(), env.mintRequest())
	require.NoError(t, err)
	assert.Equal(t, models.StateDone, attempt.State)
	assert.NotEmpty(t, attempt.Mint)

	// Only the mint transaction is broadcast; the facilitator settles the
	// token payment itself.
	assert.Equal(t, 1, chain.broadcasts)

	move, err := env.moves.GetByMint(context.Background(), attempt.Mint)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPathToken, move.PaymentPath)
	assert.Equal(t, "PAY_SIG", move.PaymentSignature)
	assert.Equal(t, "ipfs://meta", move.MetadataURI)

	// The submitted proof echoes the requirement in atomic units.
	require.Len(t, verifier.proofs, 1)
	envelope, err := x402.DecodeProof(verifier.proofs[0])
	require.NoError(t, err)
	assert.Equal(t, "10000", envelope.Accepted.Amount)
	assert.Equal(t, "exact", envelope.Accepted.Scheme)
	assert.Equal(t, "USDC", envelope.Accepted.TokenSymbol)
	assert.NotEmpty(t, envelope.Payload.Transaction)

	assert.False(t, env.service.HasPendingVerification(attempt.ID))
}

func TestMint_NativeFallbackWhenEndpointUnusable(t *testing.T) {
	chain := &fakeChain{lamports: 10_000_000}
	resolver := &fakeResolver{err: &x402.ProtocolError{Message: "expected x402 payment data, got 200"}}
	verifier := &fakeVerifier{results: []verifyOutcome{{}}}
	env := newTestEnv(t, chain, resolver, verifier, false)

	attempt, err := env.service.Mint(context.Background(), env.mintRequest())
	require.NoError(t, err)
	assert.Equal(t, models.StateDone, attempt.State)

	// Mint transaction plus the direct fee transfer.
	assert.Equal(t, 2, chain.broadcasts)
	assert.Empty(t, verifier.proofs, "native path never touches the facilitator")

	move, err := env.moves.GetByMint(context.Background(), attempt.Mint)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPathNative, move.PaymentPath)
	assert.NotEmpty(t, move.PaymentSignature)
}

func TestMint_NativeFallbackInsufficientBalance(t *testing.T) {
	chain := &fakeChain{lamports: 100} // far below the fee
	resolver := &fakeResolver{err: &x402.ProtocolError{Message: "no payment options returned from x402 endpoint"}}
	env := newTestEnv(t, chain, resolver, &fakeVerifier{results: []verifyOutcome{{}}}, false)

	attempt, err := env.service.Mint(context.Background(), env.mintRequest())
	require.Error(t, err)

	var berr *InsufficientBalanceError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, "SOL", berr.TokenSymbol)
	assert.Equal(t, models.StateFailed, attempt.State)
}

func TestMint_VerificationPendingAndRetry(t *testing.T) {
	chain := &fakeChain{tokenAmount: 50_000, tokenExists: true}
	resolver := &fakeResolver{requirement: usdcRequirement()}
	verifier := &fakeVerifier{results: []verifyOutcome{
		{err: &x402.NetworkError{Op: "verify payment", Err: assert.AnError}},
		{result: &x402.VerificationResult{Message: "settled", TxHash: "PAY_SIG"}},
	}}
	env := newTestEnv(t, chain, resolver, verifier, false)

	// The attempt completes with a warning; the payment stays retryable.
	attempt, err := env.service.Mint(context.Background(), env.mintRequest())
	require.NoError(t, err)
	assert.Equal(t, models.StateVerificationPending, attempt.State)
	assert.Equal(t, models.StatusWarning, attempt.Kind)
	assert.True(t, env.service.HasPendingVerification(attempt.ID))

	result, err := env.service.RetryVerification(context.Background(), attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, "PAY_SIG", result.TxHash)
	assert.False(t, env.service.HasPendingVerification(attempt.ID))

	// The retry resubmits the byte-identical proof envelope.
	require.Len(t, verifier.proofs, 2)
	assert.Equal(t, verifier.proofs[0], verifier.proofs[1])

	move, err := env.moves.GetByMint(context.Background(), attempt.Mint)
	require.NoError(t, err)
	assert.Equal(t, "PAY_SIG", move.PaymentSignature)
}

// A facilitator 5xx is a transient outage, not a proof rejection: the attempt
// must end in a warning with the proof preserved, and a later manual retry
// with the identical envelope completes it. Exercises the real facilitator
// client end to end.
func TestMint_FacilitatorOutageLeavesAttemptRetryable(t *testing.T) {
	chain := &fakeChain{tokenAmount: 50_000, tokenExists: true}
	resolver := &fakeResolver{requirement: usdcRequirement()}
	fetcher := &verifyFetcher{responses: []verifyResponse{
		{status: 500, body: `{"error":"internal settlement error"}`},
		{status: 200, body: `{"message":"settled","tx_hash":"PAY_SIG"}`},
	}}
	env := newTestEnv(t, chain, resolver, x402.NewFacilitatorClient(fetcher), false)

	recorder := &Connection{
		ID:          "recorder",
		UserAddress: env.wallet.PublicKey().String(),
		Send:        make(chan []byte, 64),
	}
	env.service.push.RegisterConnection(recorder)

	attempt, err := env.service.Mint(context.Background(), env.mintRequest())
	require.NoError(t, err)
	assert.Equal(t, models.StateVerificationPending, attempt.State)
	assert.Equal(t, models.StatusWarning, attempt.Kind)
	assert.True(t, env.service.HasPendingVerification(attempt.ID))

	result, err := env.service.RetryVerification(context.Background(), attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, "PAY_SIG", result.TxHash)
	assert.False(t, env.service.HasPendingVerification(attempt.ID))

	// The retry is pushed as a payment step, never as the on-chain verify step.
	var states []models.MintAttemptState
	require.Eventually(t, func() bool {
		drainMintStates(recorder, &states)
		for _, st := range states {
			if st == models.StateDone {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, states, models.StateTokenPaymentFlow)
	assert.NotContains(t, states, models.StateOnChainVerifyAttempt)

	// The retry carries the byte-identical proof header.
	require.Len(t, fetcher.calls, 2)
	assert.NotEmpty(t, fetcher.calls[0].headers["PAYMENT-SIGNATURE"])
	assert.Equal(t, fetcher.calls[0].headers["PAYMENT-SIGNATURE"], fetcher.calls[1].headers["PAYMENT-SIGNATURE"])

	final, err := env.service.GetAttempt(context.Background(), attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateDone, final.State)

	move, err := env.moves.GetByMint(context.Background(), attempt.Mint)
	require.NoError(t, err)
	assert.Equal(t, "PAY_SIG", move.PaymentSignature)
}

// An explicit 4xx rejection is final: the cached proof is discarded and the
// status says the payment went out, never that nothing happened.
func TestMint_FacilitatorRejectionIsFinal(t *testing.T) {
	chain := &fakeChain{tokenAmount: 50_000, tokenExists: true}
	resolver := &fakeResolver{requirement: usdcRequirement()}
	verifier := &fakeVerifier{results: []verifyOutcome{
		{err: &x402.VerificationError{Status: 402, Reason: "invalid proof"}},
	}}
	env := newTestEnv(t, chain, resolver, verifier, false)

	attempt, err := env.service.Mint(context.Background(), env.mintRequest())
	require.Error(t, err)

	assert.Equal(t, models.StateFailed, attempt.State)
	assert.Equal(t, models.StatusWarning, attempt.Kind)
	assert.Contains(t, attempt.Status, "Payment sent")
	assert.False(t, env.service.HasPendingVerification(attempt.ID))

	_, err = env.service.RetryVerification(context.Background(), attempt.ID)
	require.Error(t, err)
}

func TestMint_SignatureRejected(t *testing.T) {
	chain := &fakeChain{tokenAmount: 50_000, tokenExists: true}
	resolver := &fakeResolver{requirement: usdcRequirement()}
	env := newTestEnv(t, chain, resolver, &fakeVerifier{results: []verifyOutcome{{}}}, true)

	attempt, err := env.service.Mint(context.Background(), env.mintRequest())
	require.Error(t, err)

	var rerr *SignatureRejectedError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, models.StateFailed, attempt.State)
	assert.Contains(t, attempt.Status, "Signature rejected")
	assert.Zero(t, chain.broadcasts, "nothing is broadcast after a rejection")
}

func TestMint_InsufficientTokenBalance(t *testing.T) {
	chain := &fakeChain{tokenAmount: 500, tokenExists: true}
	resolver := &fakeResolver{requirement: usdcRequirement()}
	verifier := &fakeVerifier{results: []verifyOutcome{{}}}
	env := newTestEnv(t, chain, resolver, verifier, false)

	_, err := env.service.Mint(context.Background(), env.mintRequest())
	require.Error(t, err)

	var berr *InsufficientBalanceError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, "USDC", berr.TokenSymbol)
	assert.Equal(t, "0.01", berr.Required)
	assert.Empty(t, verifier.proofs)
}

func TestMint_TokenAccountMissing(t *testing.T) {
	chain := &fakeChain{tokenExists: false}
	resolver := &fakeResolver{requirement: usdcRequirement()}
	env := newTestEnv(t, chain, resolver, &fakeVerifier{results: []verifyOutcome{{}}}, false)

	_, err := env.service.Mint(context.Background(), env.mintRequest())
	require.Error(t, err)

	var merr *AccountMissingError
	assert.ErrorAs(t, err, &merr)
}

func TestMint_FreeOfferSkipsPayment(t *testing.T) {
	req := usdcRequirement()
	req.Amount = "free"
	req.RawAmount = "free"

	chain := &fakeChain{}
	resolver := &fakeResolver{requirement: req}
	verifier := &fakeVerifier{results: []verifyOutcome{{}}}
	env := newTestEnv(t, chain, resolver, verifier, false)

	attempt, err := env.service.Mint(context.Background(), env.mintRequest())
	require.NoError(t, err)
	assert.Equal(t, models.StateDone, attempt.State)
	assert.Empty(t, verifier.proofs)

	move, err := env.moves.GetByMint(context.Background(), attempt.Mint)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPathNone, move.PaymentPath)
}

func TestMint_RejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t, &fakeChain{}, &fakeResolver{}, &fakeVerifier{results: []verifyOutcome{{}}}, false)

	_, err := env.service.Mint(context.Background(), &MintRequest{
		Creator:    "not-an-address",
		Name:       "Wave",
		Expression: "x",
	})
	var aerr *anchor.InvalidAddressError
	require.ErrorAs(t, err, &aerr)

	req := env.mintRequest()
	req.Expression = "dance:wave if altitude > 10"
	_, err = env.service.Mint(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid expression")

	req = env.mintRequest()
	req.RoyaltyPercent = 150
	_, err = env.service.Mint(context.Background(), req)
	require.Error(t, err)
}
