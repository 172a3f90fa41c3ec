package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"moveregistry-backend/internal/anchor"
	"moveregistry-backend/internal/events"
	"moveregistry-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRoyaltyRepo struct {
	mutex  sync.Mutex
	events []*models.RoyaltyEvent
}

func (r *memRoyaltyRepo) Record(_ context.Context, event *models.RoyaltyEvent) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for _, e := range r.events {
		if e.TxSignature == event.TxSignature {
			return false, nil
		}
	}
	cp := *event
	r.events = append(r.events, &cp)
	return true, nil
}

func (r *memRoyaltyRepo) FindByCreator(_ context.Context, creator string, limit int) ([]*models.RoyaltyEvent, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	var out []*models.RoyaltyEvent
	for _, e := range r.events {
		if e.Creator == creator && len(out) < limit {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memRoyaltyRepo) FindByMint(_ context.Context, mint string) ([]*models.RoyaltyEvent, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	var out []*models.RoyaltyEvent
	for _, e := range r.events {
		if e.Mint == mint {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memRoyaltyRepo) TotalByCreator(_ context.Context, creator string) (int64, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	var n int64
	for _, e := range r.events {
		if e.Creator == creator {
			n++
		}
	}
	return n, nil
}

func (r *memRoyaltyRepo) SumByCreator(_ context.Context, creator string) (uint64, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	var sum uint64
	for _, e := range r.events {
		if e.Creator == creator {
			amount, err := strconv.ParseUint(e.Amount, 10, 64)
			if err == nil {
				sum += amount
			}
		}
	}
	return sum, nil
}

func newRoyaltyFixture(t *testing.T) (*RoyaltyService, *memRoyaltyRepo, *memMoveRepo) {
	t.Helper()
	program, err := anchor.NewProgram("", "")
	require.NoError(t, err)

	royalties := &memRoyaltyRepo{}
	moves := newMemMoveRepo()
	service := NewRoyaltyService(program, royalties, moves, events.NewPublisher(nil), NewWebSocketPushService())
	return service, royalties, moves
}

func seedMove(t *testing.T, moves *memMoveRepo, mint, creator string) {
	t.Helper()
	require.NoError(t, moves.Create(context.Background(), &models.MintedMove{
		ID:      "move-1",
		Mint:    mint,
		Creator: creator,
		Name:    "Chest Pop",
	}))
}

func TestRoyaltyIngest_DecodedLicenseEvent(t *testing.T) {
	service, royalties, moves := newRoyaltyFixture(t)
	seedMove(t, moves, "MintAAA", "CreatorAAA")

	payload := `[{
		"signature": "SIG1",
		"timestamp": 1725000000,
		"events": {"skillLicensed": {"mint": "MintAAA", "payer": "PayerBBB", "amount": "500000", "royalty": "25000"}}
	}]`

	n, err := service.Ingest(context.Background(), []byte(payload))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, royalties.events, 1)
	event := royalties.events[0]
	assert.Equal(t, "MintAAA", event.Mint)
	assert.Equal(t, "CreatorAAA", event.Creator)
	assert.Equal(t, "PayerBBB", event.Payer)
	assert.Equal(t, "500000", event.Amount)
	assert.Equal(t, "SIG1", event.TxSignature)
	assert.Equal(t, time.Unix(1725000000, 0), event.ReceivedAt)
}

func TestRoyaltyIngest_EnhancedTransferFormat(t *testing.T) {
	service, royalties, moves := newRoyaltyFixture(t)
	seedMove(t, moves, "MintAAA", "CreatorAAA")

	payload := fmt.Sprintf(`{
		"signature": "SIG2",
		"instructions": [{"programId": "%s"}],
		"tokenTransfers": [{"mint": "MintAAA", "fromUserAccount": "PayerBBB", "tokenAmount": 0.5}]
	}`, anchor.DefaultProgramID)

	n, err := service.Ingest(context.Background(), []byte(payload))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, royalties.events, 1)
	// The display amount scales to atomic units for storage.
	assert.Equal(t, "500000", royalties.events[0].Amount)
	assert.Equal(t, "CreatorAAA", royalties.events[0].Creator)
}

func TestRoyaltyIngest_IgnoresForeignPrograms(t *testing.T) {
	service, royalties, _ := newRoyaltyFixture(t)

	payload := `{
		"signature": "SIG3",
		"instructions": [{"programId": "SomeOtherProgram1111111111111111111111111111"}],
		"tokenTransfers": [{"mint": "MintAAA", "fromUserAccount": "PayerBBB", "tokenAmount": 1.5}]
	}`

	n, err := service.Ingest(context.Background(), []byte(payload))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, royalties.events)
}

func TestRoyaltyIngest_DuplicateDeliveryIsDropped(t *testing.T) {
	service, royalties, moves := newRoyaltyFixture(t)
	seedMove(t, moves, "MintAAA", "CreatorAAA")

	payload := `{
		"signature": "SIG4",
		"events": {"skillLicensed": {"mint": "MintAAA", "payer": "PayerBBB", "amount": "100000"}}
	}`

	n, err := service.Ingest(context.Background(), []byte(payload))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = service.Ingest(context.Background(), []byte(payload))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, royalties.events, 1)
}

func TestRoyaltyIngest_UnknownMintRecordedUnattributed(t *testing.T) {
	service, royalties, _ := newRoyaltyFixture(t)

	payload := `{
		"signature": "SIG5",
		"events": {"skillLicensed": {"mint": "UnknownMint", "payer": "PayerBBB", "amount": "100000"}}
	}`

	n, err := service.Ingest(context.Background(), []byte(payload))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, royalties.events[0].Creator)
}

func TestRoyaltyIngest_RejectsGarbage(t *testing.T) {
	service, _, _ := newRoyaltyFixture(t)
	_, err := service.Ingest(context.Background(), []byte("not json"))
	require.Error(t, err)
}

func TestRoyaltySummary(t *testing.T) {
	service, royalties, _ := newRoyaltyFixture(t)

	for i, amount := range []string{"500000", "350000", "750000"} {
		created, err := royalties.Record(context.Background(), &models.RoyaltyEvent{
			Mint:        "MintAAA",
			Creator:     "CreatorAAA",
			Amount:      amount,
			TokenSymbol: "USDC",
			TxSignature: fmt.Sprintf("SIG-%d", i),
			ReceivedAt:  time.Now(),
		})
		require.NoError(t, err)
		require.True(t, created)
	}

	summary, err := service.Summary(context.Background(), "CreatorAAA", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.TotalEvents)
	assert.Equal(t, "1.6", summary.TotalEarned)
	assert.Len(t, summary.Recent, 2)

	data, err := json.Marshal(summary)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"total_earned":"1.6"`)
}
