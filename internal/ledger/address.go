package ledger

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// AddressSize is the byte length of every ledger address.
const AddressSize = 32

// MaxSeeds and MaxSeedLen bound program address derivation inputs.
const (
	MaxSeeds   = 16
	MaxSeedLen = 32
)

const pdaMarker = "ProgramDerivedAddress"

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidSeeds   = errors.New("invalid seeds: derived address is on the curve")
	ErrMaxSeedLength  = errors.New("seed exceeds maximum length")
	ErrNoViableBump   = errors.New("unable to find a viable program address bump")
)

// Address identifies an account, a wallet or a program.
type Address [AddressSize]byte

var (
	SystemProgramID = MustParseAddress("11111111111111111111111111111111")
	TokenProgramID  = MustParseAddress("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	StakeProgramID  = MustParseAddress("Stake11111111111111111111111111111111111111")
)

// ParseAddress decodes a base58 address.
func ParseAddress(s string) (Address, error) {
	var a Address
	raw, err := base58.Decode(s)
	if err != nil {
		return a, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != AddressSize {
		return a, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidAddress, AddressSize, len(raw))
	}
	copy(a[:], raw)
	return a, nil
}

// MustParseAddress is ParseAddress for constants.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string {
	return base58.Encode(a[:])
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// IsOnCurve reports whether the address is a valid ed25519 point, i.e. whether
// a private key could exist for it.
func IsOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// CreateProgramAddress derives an address from seeds that no private key can
// sign for. The last seed is usually the bump.
func CreateProgramAddress(seeds [][]byte, programID Address) (Address, error) {
	var out Address
	if len(seeds) > MaxSeeds {
		return out, ErrMaxSeedLength
	}
	h := sha256.New()
	for _, s := range seeds {
		if len(s) > MaxSeedLen {
			return out, ErrMaxSeedLength
		}
		h.Write(s)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))
	copy(out[:], h.Sum(nil))

	if IsOnCurve(out[:]) {
		return Address{}, ErrInvalidSeeds
	}
	return out, nil
}

// FindProgramAddress searches bumps from 255 down and returns the first
// address that lies off the curve.
func FindProgramAddress(seeds [][]byte, programID Address) (Address, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrInvalidSeeds) {
			return Address{}, 0, err
		}
	}
	return Address{}, 0, ErrNoViableBump
}

// AssociatedTokenAddress is the canonical token account of owner for mint.
func AssociatedTokenAddress(owner, mint Address) Address {
	addr, _, err := FindProgramAddress([][]byte{owner[:], TokenProgramID[:], mint[:]}, TokenProgramID)
	if err != nil {
		// 256 consecutive on-curve hashes do not happen in practice.
		panic(err)
	}
	return addr
}
