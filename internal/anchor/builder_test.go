package anchor_test

import (
	"testing"

	"moveregistry-backend/internal/anchor"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProgram(t *testing.T) *anchor.Program {
	t.Helper()
	p, err := anchor.NewProgram("", "")
	require.NoError(t, err)
	return p
}

func TestNewProgram_Defaults(t *testing.T) {
	p := testProgram(t)
	assert.Equal(t, anchor.DefaultProgramID, p.ID.String())
	assert.Equal(t, anchor.DefaultUSDCMint, p.USDCMint.String())
}

func TestNewProgram_InvalidAddress(t *testing.T) {
	_, err := anchor.NewProgram("not-a-key", "")
	require.Error(t, err)

	var aerr *anchor.InvalidAddressError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "program", aerr.Field)
}

func TestPDADerivation(t *testing.T) {
	p := testProgram(t)

	treasury, err := p.TreasuryPDA()
	require.NoError(t, err)
	again, err := p.TreasuryPDA()
	require.NoError(t, err)
	assert.Equal(t, treasury, again, "treasury derivation must be stable")

	mintA := solana.NewWallet().PublicKey()
	mintB := solana.NewWallet().PublicKey()

	skillA, err := p.SkillDataPDA(mintA)
	require.NoError(t, err)
	skillB, err := p.SkillDataPDA(mintB)
	require.NoError(t, err)
	assert.NotEqual(t, skillA, skillB, "skill record address must track the mint")
	assert.NotEqual(t, treasury, skillA)
}

func TestBuildMintSkillTransaction(t *testing.T) {
	p := testProgram(t)
	creator := solana.NewWallet().PublicKey()

	build, err := p.BuildMintSkillTransaction(creator, "Wave", "dance:wave if tempo > 120", 5, solana.Hash{})
	require.NoError(t, err)
	require.NotNil(t, build.MintWallet)

	// Signature plan: one-time mint key first, external creator last.
	require.Len(t, build.Built.PendingSigners, 2)
	assert.Equal(t, build.MintWallet.PublicKey(), build.Built.PendingSigners[0].PublicKey)
	require.NotNil(t, build.Built.PendingSigners[0].PrivateKey)
	assert.Equal(t, creator, build.Built.PendingSigners[1].PublicKey)
	assert.Nil(t, build.Built.PendingSigners[1].PrivateKey)

	// Fee payer is the creator.
	msg := build.Built.Tx.Message
	require.NotEmpty(t, msg.AccountKeys)
	assert.Equal(t, creator, msg.AccountKeys[0])

	skillPDA, err := p.SkillDataPDA(build.MintWallet.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, skillPDA, build.SkillPDA)
}

func TestBuildMintSkillTransaction_FreshMintPerAttempt(t *testing.T) {
	p := testProgram(t)
	creator := solana.NewWallet().PublicKey()

	first, err := p.BuildMintSkillTransaction(creator, "Wave", "x", 5, solana.Hash{})
	require.NoError(t, err)
	second, err := p.BuildMintSkillTransaction(creator, "Wave", "x", 5, solana.Hash{})
	require.NoError(t, err)

	assert.NotEqual(t, first.MintWallet.PublicKey(), second.MintWallet.PublicKey())
	assert.NotEqual(t, first.SkillPDA, second.SkillPDA)
}

func TestPartialSign_LeavesExternalSlotOpen(t *testing.T) {
	p := testProgram(t)
	creator := solana.NewWallet().PublicKey()

	build, err := p.BuildMintSkillTransaction(creator, "Wave", "x", 5, solana.Hash{})
	require.NoError(t, err)

	require.NoError(t, build.Built.PartialSign())

	// Creator slot (index 0, fee payer) stays zero until the wallet signs;
	// the mint slot carries a real signature.
	sigs := build.Built.Tx.Signatures
	require.Len(t, sigs, 2)
	assert.True(t, sigs[0].IsZero())
	assert.False(t, sigs[1].IsZero())
}

func TestBuildVerifySkillTransaction_Memo(t *testing.T) {
	p := testProgram(t)
	verifier := solana.NewWallet().PublicKey()
	skillPDA := solana.NewWallet().PublicKey()

	withRef, err := p.BuildVerifySkillTransaction(verifier, skillPDA, "SETTLE_SIG", solana.Hash{})
	require.NoError(t, err)
	assert.Len(t, withRef.Tx.Message.Instructions, 2)

	without, err := p.BuildVerifySkillTransaction(verifier, skillPDA, "", solana.Hash{})
	require.NoError(t, err)
	assert.Len(t, without.Tx.Message.Instructions, 1)

	// Single external signer, no local keys.
	require.Len(t, withRef.PendingSigners, 1)
	assert.Equal(t, verifier, withRef.PendingSigners[0].PublicKey)
	assert.Nil(t, withRef.PendingSigners[0].PrivateKey)
}
