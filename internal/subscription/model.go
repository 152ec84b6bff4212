package subscription

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"subvault/internal/ledger"
)

// Derivation namespaces.
const (
	SubscriptionSeed   = "subscription"
	EscrowSeed         = "escrow"
	PlatformConfigSeed = "platform-config"
)

const (
	discriminatorSize        = 8
	SubscriptionRecordSize   = discriminatorSize + 32 + 32 + 8 + 1 + 1 + 32 + 3*9
	PlatformConfigRecordSize = discriminatorSize + 32 + 32 + 1
)

var (
	subscriptionDiscriminator   = accountDiscriminator("SubscriptionRecord")
	platformConfigDiscriminator = accountDiscriminator("PlatformConfig")
)

var ErrInvalidRecord = errors.New("invalid record data")

func accountDiscriminator(name string) [discriminatorSize]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var d [discriminatorSize]byte
	copy(d[:], sum[:discriminatorSize])
	return d
}

// SubscriptionRecord is one user's subscription. It lives at
// SubscriptionAddress(owner), which is also the derived authority that
// controls the escrow.
type SubscriptionRecord struct {
	Address              ledger.Address `json:"address"`
	Owner                ledger.Address `json:"owner"`
	EscrowAccount        ledger.Address `json:"escrow_account"`
	MonthlyAmount        uint64         `json:"monthly_amount"`
	IsActive             bool           `json:"is_active"`
	AuthorityBump        uint8          `json:"authority_bump"`
	FeeWallet            ledger.Address `json:"fee_wallet"`
	LastPaymentTimestamp *int64         `json:"last_payment_timestamp,omitempty"`
	ExpirationTimestamp  *int64         `json:"expiration_timestamp,omitempty"`
	StakedBalance        *uint64        `json:"staked_balance,omitempty"`
}

// Staked returns the tracked delegated amount, zero when unset.
func (r *SubscriptionRecord) Staked() uint64 {
	if r.StakedBalance == nil {
		return 0
	}
	return *r.StakedBalance
}

func (r *SubscriptionRecord) MarshalBinary() ([]byte, error) {
	buf := make([]byte, SubscriptionRecordSize)
	copy(buf[0:8], subscriptionDiscriminator[:])
	copy(buf[8:40], r.Owner[:])
	copy(buf[40:72], r.EscrowAccount[:])
	binary.LittleEndian.PutUint64(buf[72:80], r.MonthlyAmount)
	if r.IsActive {
		buf[80] = 1
	}
	buf[81] = r.AuthorityBump
	copy(buf[82:114], r.FeeWallet[:])
	putOptionInt(buf[114:123], r.LastPaymentTimestamp)
	putOptionInt(buf[123:132], r.ExpirationTimestamp)
	if r.StakedBalance != nil {
		buf[132] = 1
		binary.LittleEndian.PutUint64(buf[133:141], *r.StakedBalance)
	}
	return buf, nil
}

func (r *SubscriptionRecord) UnmarshalBinary(data []byte) error {
	if len(data) != SubscriptionRecordSize || [discriminatorSize]byte(data[0:8]) != subscriptionDiscriminator {
		return fmt.Errorf("%w: not a subscription record", ErrInvalidRecord)
	}
	copy(r.Owner[:], data[8:40])
	copy(r.EscrowAccount[:], data[40:72])
	r.MonthlyAmount = binary.LittleEndian.Uint64(data[72:80])
	r.IsActive = data[80] == 1
	r.AuthorityBump = data[81]
	copy(r.FeeWallet[:], data[82:114])
	r.LastPaymentTimestamp = optionInt(data[114:123])
	r.ExpirationTimestamp = optionInt(data[123:132])
	r.StakedBalance = nil
	if data[132] == 1 {
		v := binary.LittleEndian.Uint64(data[133:141])
		r.StakedBalance = &v
	}
	return nil
}

// PlatformConfigRecord is the deployment-wide singleton.
type PlatformConfigRecord struct {
	Address   ledger.Address `json:"address"`
	FeeWallet ledger.Address `json:"fee_wallet"`
	Admin     ledger.Address `json:"admin"`
	Bump      uint8          `json:"bump"`
}

func (c *PlatformConfigRecord) MarshalBinary() ([]byte, error) {
	buf := make([]byte, PlatformConfigRecordSize)
	copy(buf[0:8], platformConfigDiscriminator[:])
	copy(buf[8:40], c.FeeWallet[:])
	copy(buf[40:72], c.Admin[:])
	buf[72] = c.Bump
	return buf, nil
}

func (c *PlatformConfigRecord) UnmarshalBinary(data []byte) error {
	if len(data) != PlatformConfigRecordSize || [discriminatorSize]byte(data[0:8]) != platformConfigDiscriminator {
		return fmt.Errorf("%w: not a platform config record", ErrInvalidRecord)
	}
	copy(c.FeeWallet[:], data[8:40])
	copy(c.Admin[:], data[40:72])
	c.Bump = data[72]
	return nil
}

// IsSubscriptionRecord reports whether data carries the subscription record layout.
func IsSubscriptionRecord(data []byte) bool {
	return len(data) == SubscriptionRecordSize && [discriminatorSize]byte(data[0:8]) == subscriptionDiscriminator
}

func putOptionInt(dst []byte, v *int64) {
	if v == nil {
		return
	}
	dst[0] = 1
	binary.LittleEndian.PutUint64(dst[1:9], uint64(*v))
}

func optionInt(src []byte) *int64 {
	if src[0] != 1 {
		return nil
	}
	v := int64(binary.LittleEndian.Uint64(src[1:9]))
	return &v
}

func SubscriptionSeeds(owner ledger.Address) [][]byte {
	return [][]byte{[]byte(SubscriptionSeed), owner[:]}
}

// SubscriptionAddress is the record address and escrow authority of owner.
func SubscriptionAddress(programID, owner ledger.Address) (ledger.Address, uint8, error) {
	return ledger.FindProgramAddress(SubscriptionSeeds(owner), programID)
}

func EscrowAddress(programID, owner ledger.Address) (ledger.Address, uint8, error) {
	return ledger.FindProgramAddress([][]byte{[]byte(EscrowSeed), owner[:]}, programID)
}

func PlatformConfigAddress(programID ledger.Address) (ledger.Address, uint8, error) {
	return ledger.FindProgramAddress([][]byte{[]byte(PlatformConfigSeed)}, programID)
}
