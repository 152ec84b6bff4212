package ledger_test

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subvault/internal/ledger"
)

func newKey(t *testing.T, seed byte) ledger.Address {
	t.Helper()
	pub := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seed}, ed25519.SeedSize)).Public().(ed25519.PublicKey)
	var a ledger.Address
	copy(a[:], pub)
	return a
}

func TestParseAddressRoundTrip(t *testing.T) {
	a := newKey(t, 7)
	parsed, err := ledger.ParseAddress(a.String())
	require.NoError(t, err)
	assert.Equal(t, a, parsed)

	_, err = ledger.ParseAddress("not-base58-0OIl")
	assert.ErrorIs(t, err, ledger.ErrInvalidAddress)

	_, err = ledger.ParseAddress("abc")
	assert.ErrorIs(t, err, ledger.ErrInvalidAddress)
}

func TestAddressJSON(t *testing.T) {
	a := newKey(t, 3)
	raw, err := json.Marshal(struct {
		Owner ledger.Address `json:"owner"`
	}{a})
	require.NoError(t, err)
	assert.JSONEq(t, `{"owner":"`+a.String()+`"}`, string(raw))

	var out struct {
		Owner ledger.Address `json:"owner"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, a, out.Owner)
}

func TestWalletKeysAreOnCurve(t *testing.T) {
	a := newKey(t, 1)
	assert.True(t, ledger.IsOnCurve(a[:]))
}

func TestFindProgramAddress(t *testing.T) {
	program := newKey(t, 9)
	owner := newKey(t, 10)
	seeds := [][]byte{[]byte("subscription"), owner[:]}

	addr, bump, err := ledger.FindProgramAddress(seeds, program)
	require.NoError(t, err)
	assert.False(t, ledger.IsOnCurve(addr[:]))

	again, againBump, err := ledger.FindProgramAddress(seeds, program)
	require.NoError(t, err)
	assert.Equal(t, addr, again)
	assert.Equal(t, bump, againBump)

	direct, err := ledger.CreateProgramAddress(append(seeds, []byte{bump}), program)
	require.NoError(t, err)
	assert.Equal(t, addr, direct)

	other, _, err := ledger.FindProgramAddress([][]byte{[]byte("escrow"), owner[:]}, program)
	require.NoError(t, err)
	assert.NotEqual(t, addr, other)
}

func TestCreateProgramAddressRejectsLongSeeds(t *testing.T) {
	_, err := ledger.CreateProgramAddress([][]byte{make([]byte, ledger.MaxSeedLen+1)}, newKey(t, 1))
	assert.ErrorIs(t, err, ledger.ErrMaxSeedLength)
}

func TestSignerFromSeeds(t *testing.T) {
	program := newKey(t, 4)
	owner := newKey(t, 5)
	seeds := [][]byte{[]byte("subscription"), owner[:]}
	addr, bump, err := ledger.FindProgramAddress(seeds, program)
	require.NoError(t, err)

	signer, err := ledger.SignerFromSeeds(program, seeds, bump)
	require.NoError(t, err)
	assert.Equal(t, addr, signer.Address())
	assert.True(t, signer.Derived())
	assert.Equal(t, program, signer.Program())
	assert.True(t, signer.Valid())

	wrong, err := ledger.SignerFromSeeds(program, seeds, bump-1)
	if err == nil {
		assert.NotEqual(t, addr, wrong.Address())
	} else {
		assert.ErrorIs(t, err, ledger.ErrInvalidSeeds)
	}

	var zero ledger.Signer
	assert.False(t, zero.Valid())
}

func TestAssociatedTokenAddressIsStable(t *testing.T) {
	owner := newKey(t, 11)
	mint := newKey(t, 12)
	assert.Equal(t, ledger.AssociatedTokenAddress(owner, mint), ledger.AssociatedTokenAddress(owner, mint))
	assert.NotEqual(t, ledger.AssociatedTokenAddress(owner, mint), ledger.AssociatedTokenAddress(mint, owner))
}
