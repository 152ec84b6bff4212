// Package auth implements wallet login: the server hands out a one-time
// challenge, the wallet signs it with its ed25519 key and receives a JWT
// whose subject is the wallet address.
package auth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"subvault/internal/ledger"
	"subvault/pkg/jwt"
)

var (
	ErrChallengeNotFound = errors.New("challenge not found or expired")
	ErrWalletMismatch    = errors.New("challenge was issued to another wallet")
	ErrBadSignature      = errors.New("signature does not verify")
)

const (
	DefaultChallengeTTL  = 5 * time.Minute
	maxPendingChallenges = 10_000
)

type Challenge struct {
	ID        string         `json:"challenge_id"`
	Wallet    ledger.Address `json:"wallet"`
	Message   string         `json:"message"`
	ExpiresAt time.Time      `json:"expires_at"`
}

type Session struct {
	Wallet    ledger.Address `json:"wallet"`
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
}

type Service struct {
	pending *expirable.LRU[string, Challenge]
	tokens  *jwt.Manager
	ttl     time.Duration
	log     *slog.Logger
}

func NewService(tokens *jwt.Manager, ttl time.Duration, log *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pending: expirable.NewLRU[string, Challenge](maxPendingChallenges, nil, ttl),
		tokens:  tokens,
		ttl:     ttl,
		log:     log.With("component", "auth"),
	}
}

// NewChallenge issues a single-use message for wallet to sign.
func (s *Service) NewChallenge(ctx context.Context, wallet ledger.Address) (Challenge, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return Challenge{}, err
	}
	c := Challenge{
		ID:        uuid.NewString(),
		Wallet:    wallet,
		ExpiresAt: time.Now().Add(s.ttl),
	}
	c.Message = fmt.Sprintf("subvault login\nwallet: %s\nnonce: %s\nexpires: %s",
		wallet, hex.EncodeToString(nonce), c.ExpiresAt.UTC().Format(time.RFC3339))
	s.pending.Add(c.ID, c)
	return c, nil
}

// Verify consumes the challenge and issues a session when signature is the
// wallet's ed25519 signature over the challenge message.
func (s *Service) Verify(ctx context.Context, challengeID string, wallet ledger.Address, signature []byte) (Session, error) {
	c, ok := s.pending.Get(challengeID)
	if !ok {
		return Session{}, ErrChallengeNotFound
	}
	if c.Wallet != wallet {
		return Session{}, ErrWalletMismatch
	}
	s.pending.Remove(challengeID)

	if len(signature) != ed25519.SignatureSize || !ed25519.Verify(ed25519.PublicKey(wallet[:]), []byte(c.Message), signature) {
		s.log.WarnContext(ctx, "wallet login rejected", "wallet", wallet)
		return Session{}, ErrBadSignature
	}

	token, exp, err := s.tokens.Generate(wallet.String())
	if err != nil {
		return Session{}, err
	}
	s.log.InfoContext(ctx, "wallet logged in", "wallet", wallet)
	return Session{Wallet: wallet, Token: token, ExpiresAt: exp}, nil
}
