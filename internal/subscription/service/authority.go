package service

import (
	"fmt"

	"subvault/internal/ledger"
	"subvault/internal/subscription"
)

// Authority is the program-controlled signer of one subscription.
type Authority struct {
	signer ledger.Signer
}

// ResolveAuthority rebuilds the derived signer of owner's subscription from
// its seeds and stored bump.
func ResolveAuthority(programID, owner ledger.Address, bump uint8) (Authority, error) {
	signer, err := ledger.SignerFromSeeds(programID, subscription.SubscriptionSeeds(owner), bump)
	if err != nil {
		return Authority{}, fmt.Errorf("%w: %v", subscription.ErrUnauthorized, err)
	}
	return Authority{signer: signer}, nil
}

func (a Authority) Signer() ledger.Signer   { return a.signer }
func (a Authority) Address() ledger.Address { return a.signer.Address() }

// Verify fails unless the authority is the expected address.
func (a Authority) Verify(expected ledger.Address) error {
	if !a.signer.Valid() || a.signer.Address() != expected {
		return fmt.Errorf("%w: derived authority %s does not match %s", subscription.ErrUnauthorized, a.signer.Address(), expected)
	}
	return nil
}

// authorityFor resolves and verifies the authority of rec.
func authorityFor(programID ledger.Address, rec *subscription.SubscriptionRecord) (Authority, error) {
	auth, err := ResolveAuthority(programID, rec.Owner, rec.AuthorityBump)
	if err != nil {
		return Authority{}, err
	}
	if err := auth.Verify(rec.Address); err != nil {
		return Authority{}, err
	}
	return auth, nil
}
