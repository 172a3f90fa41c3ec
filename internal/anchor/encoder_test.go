package anchor_test

import (
	"crypto/sha256"
	"encoding/binary"
	"testing"

	"moveregistry-backend/internal/anchor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The discriminator for "mintSkill" must equal the first 8 bytes of
// sha256 over the literal string "global:mint_skill".
func TestInstructionDiscriminator_MintSkill(t *testing.T) {
	want := sha256.Sum256([]byte("global:mint_skill"))
	got := anchor.InstructionDiscriminator("mintSkill")
	assert.Equal(t, want[:8], got[:])
}

func TestInstructionDiscriminator_SnakeCase(t *testing.T) {
	verify := sha256.Sum256([]byte("global:verify_skill"))
	assert.Equal(t, verify[:8], func() []byte { d := anchor.InstructionDiscriminator("verifySkill"); return d[:] }())

	license := sha256.Sum256([]byte("global:license_skill"))
	assert.Equal(t, license[:8], func() []byte { d := anchor.InstructionDiscriminator("licenseSkill"); return d[:] }())
}

func TestEncodeInstruction_MintSkill(t *testing.T) {
	data, err := anchor.EncodeInstruction("mintSkill", anchor.MintSkillArgs, map[string]interface{}{
		"skillName":      "Wave",
		"expression":     "x",
		"royaltyPercent": uint8(5),
	})
	require.NoError(t, err)

	disc := anchor.InstructionDiscriminator("mintSkill")
	assert.Equal(t, disc[:], data[:8])

	// skillName: u32 LE length prefix + UTF-8 bytes
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(data[8:12]))
	assert.Equal(t, "Wave", string(data[12:16]))

	// expression
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(data[16:20]))
	assert.Equal(t, "x", string(data[20:21]))

	// royaltyPercent: single byte, and nothing after it
	assert.Equal(t, byte(5), data[21])
	assert.Len(t, data, 22)
}

func TestEncodeInstruction_Deterministic(t *testing.T) {
	args := map[string]interface{}{
		"skillName":      "Chest Pop",
		"expression":     "dance:chest_pop if sentiment > 0.8",
		"royaltyPercent": uint8(10),
	}

	a, err := anchor.EncodeInstruction("mintSkill", anchor.MintSkillArgs, args)
	require.NoError(t, err)
	b, err := anchor.EncodeInstruction("mintSkill", anchor.MintSkillArgs, args)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEncodeInstruction_U64(t *testing.T) {
	data, err := anchor.EncodeInstruction("licenseSkill", anchor.LicenseSkillArgs, map[string]interface{}{
		"amount": uint64(1_000_000),
	})
	require.NoError(t, err)

	assert.Len(t, data, 16)
	assert.Equal(t, uint64(1_000_000), binary.LittleEndian.Uint64(data[8:16]))
}

func TestEncodeInstruction_NoArgs(t *testing.T) {
	data, err := anchor.EncodeInstruction("verifySkill", anchor.VerifySkillArgs, nil)
	require.NoError(t, err)
	assert.Len(t, data, 8)
}

func TestEncodeInstruction_BadArguments(t *testing.T) {
	_, err := anchor.EncodeInstruction("mintSkill", anchor.MintSkillArgs, map[string]interface{}{
		"skillName":      "Wave",
		"expression":     "x",
		"royaltyPercent": "not a number",
	})
	assert.Error(t, err)

	_, err = anchor.EncodeInstruction("mintSkill", anchor.MintSkillArgs, map[string]interface{}{
		"skillName": "Wave",
	})
	assert.Error(t, err, "missing arguments must fail fast")

	_, err = anchor.EncodeInstruction("mintSkill", anchor.MintSkillArgs, map[string]interface{}{
		"skillName":      42,
		"expression":     "x",
		"royaltyPercent": uint8(5),
	})
	assert.Error(t, err)
}

func TestEncodeInstruction_U8Range(t *testing.T) {
	_, err := anchor.EncodeInstruction("mintSkill", anchor.MintSkillArgs, map[string]interface{}{
		"skillName":      "Wave",
		"expression":     "x",
		"royaltyPercent": 300,
	})
	assert.Error(t, err)

	data, err := anchor.EncodeInstruction("mintSkill", anchor.MintSkillArgs, map[string]interface{}{
		"skillName":      "Wave",
		"expression":     "x",
		"royaltyPercent": 100,
	})
	require.NoError(t, err)
	assert.Equal(t, byte(100), data[len(data)-1])
}
