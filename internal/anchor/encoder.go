// Package anchor builds binary instruction data for the MoveRegistry ledger
// program without pulling in a full program-client SDK: an 8-byte method
// discriminator followed by little-endian serialized arguments.
package anchor

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode"
)

// ArgType enumerates the argument encodings the program understands.
type ArgType int

const (
	ArgString ArgType = iota // u32 little-endian length prefix + UTF-8 bytes
	ArgU8                    // single byte
	ArgU64                   // 8 bytes little-endian
)

// ArgSpec names one instruction argument and its wire encoding.
type ArgSpec struct {
	Name string
	Type ArgType
}

// Argument schemas for the deployed move_registry program.
var (
	MintSkillArgs = []ArgSpec{
		{Name: "skillName", Type: ArgString},
		{Name: "expression", Type: ArgString},
		{Name: "royaltyPercent", Type: ArgU8},
	}
	VerifySkillArgs  = []ArgSpec{}
	LicenseSkillArgs = []ArgSpec{
		{Name: "amount", Type: ArgU64},
	}
)

// InstructionDiscriminator computes the 8-byte method discriminator: the
// first 8 bytes of sha256("global:" + snake_case(name)).
func InstructionDiscriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + toSnakeCase(name)))
	var disc [8]byte
	copy(disc[:], sum[:8])
	return disc
}

// EncodeInstruction serializes instruction data as discriminator || args.
//
// Arguments are looked up in args by schema name and serialized in schema
// order. A missing argument or a value of the wrong Go type is a programmer
// error and fails immediately; there is no runtime recovery path.
func EncodeInstruction(name string, schema []ArgSpec, args map[string]interface{}) ([]byte, error) {
	disc := InstructionDiscriminator(name)
	data := make([]byte, 8, 8+16*len(schema))
	copy(data, disc[:])

	for _, spec := range schema {
		value, ok := args[spec.Name]
		if !ok {
			return nil, fmt.Errorf("instruction %s: missing argument %q", name, spec.Name)
		}

		switch spec.Type {
		case ArgString:
			s, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("instruction %s: argument %q must be a string, got %T", name, spec.Name, value)
			}
			var lenPrefix [4]byte
			binary.LittleEndian.PutUint32(lenPrefix[:], uint32(len(s)))
			data = append(data, lenPrefix[:]...)
			data = append(data, s...)

		case ArgU8:
			b, err := toU8(value)
			if err != nil {
				return nil, fmt.Errorf("instruction %s: argument %q: %w", name, spec.Name, err)
			}
			data = append(data, b)

		case ArgU64:
			v, err := toU64(value)
			if err != nil {
				return nil, fmt.Errorf("instruction %s: argument %q: %w", name, spec.Name, err)
			}
			var buf [8]byte
			binary.LittleEndian.PutUint64(buf[:], v)
			data = append(data, buf[:]...)

		default:
			return nil, fmt.Errorf("instruction %s: argument %q has unsupported type %d", name, spec.Name, spec.Type)
		}
	}

	return data, nil
}

func toU8(value interface{}) (byte, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case int:
		if v < 0 || v > 255 {
			return 0, fmt.Errorf("value %d out of u8 range", v)
		}
		return byte(v), nil
	default:
		return 0, fmt.Errorf("must be a u8, got %T", value)
	}
}

func toU64(value interface{}) (uint64, error) {
	switch v := value.(type) {
	case uint64:
		return v, nil
	case int:
		if v < 0 {
			return 0, fmt.Errorf("value %d out of u64 range", v)
		}
		return uint64(v), nil
	default:
		return 0, fmt.Errorf("must be a u64, got %T", value)
	}
}

// toSnakeCase converts camelCase instruction names to the snake_case form
// the program's method namespace uses (mintSkill -> mint_skill).
func toSnakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
