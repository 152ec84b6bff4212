package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"subvault/internal/event"
	"subvault/internal/ledger"
	"subvault/internal/metrics"
	"subvault/internal/subscription"
)

type ContactRepository interface {
	Save(ctx context.Context, c StoredContact) error
	Get(ctx context.Context, wallet ledger.Address) (*StoredContact, error)
	Delete(ctx context.Context, wallet ledger.Address) error
}

type Service struct {
	contacts    ContactRepository
	cipher      *Cipher
	mailer      Mailer
	explorerURL string
	log         *slog.Logger
}

func NewService(contacts ContactRepository, cipher *Cipher, mailer Mailer, explorerURL string, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		contacts:    contacts,
		cipher:      cipher,
		mailer:      mailer,
		explorerURL: explorerURL,
		log:         log.With("component", "notify"),
	}
}

func (s *Service) SetContact(ctx context.Context, wallet ledger.Address, email string) (*Contact, error) {
	email = strings.TrimSpace(email)
	sealed, err := s.cipher.Encrypt(email, wallet[:])
	if err != nil {
		return nil, fmt.Errorf("encrypt contact: %w", err)
	}
	now := time.Now().UTC()
	if err := s.contacts.Save(ctx, StoredContact{Wallet: wallet, EmailEncrypted: sealed, UpdatedAt: now}); err != nil {
		return nil, err
	}
	return &Contact{Wallet: wallet, Email: email, UpdatedAt: now}, nil
}

func (s *Service) Contact(ctx context.Context, wallet ledger.Address) (*Contact, error) {
	stored, err := s.contacts.Get(ctx, wallet)
	if err != nil {
		return nil, err
	}
	email, err := s.cipher.Decrypt(stored.EmailEncrypted, wallet[:])
	if err != nil {
		return nil, fmt.Errorf("decrypt contact: %w", err)
	}
	return &Contact{Wallet: wallet, Email: email, UpdatedAt: stored.UpdatedAt}, nil
}

func (s *Service) DeleteContact(ctx context.Context, wallet ledger.Address) error {
	return s.contacts.Delete(ctx, wallet)
}

// Subscribe registers the email handlers on bus.
func (s *Service) Subscribe(bus event.Bus) {
	bus.Subscribe(event.PaymentProcessed, s.onPaymentProcessed)
	bus.Subscribe(event.SubscriptionCanceled, s.onSubscriptionCanceled)
	bus.Subscribe(event.PaymentFailed, s.onPaymentFailed)
}

type receiptData struct {
	subscription.PaymentProcessed
	ExplorerURL string
}

func (s *Service) onPaymentProcessed(ctx context.Context, ev event.Event) error {
	p, err := event.DecodePayload[subscription.PaymentProcessed](ev.Payload)
	if err != nil {
		return err
	}
	return s.send(ctx, p.User, KindReceipt, "Your subscription payment receipt", receiptData{p, s.explorerURL})
}

func (s *Service) onSubscriptionCanceled(ctx context.Context, ev event.Event) error {
	p, err := event.DecodePayload[subscription.SubscriptionCanceled](ev.Payload)
	if err != nil {
		return err
	}
	return s.send(ctx, p.User, KindCanceled, "Your subscription has been canceled", p)
}

func (s *Service) onPaymentFailed(ctx context.Context, ev event.Event) error {
	p, err := event.DecodePayload[subscription.PaymentFailed](ev.Payload)
	if err != nil {
		return err
	}
	return s.send(ctx, p.User, KindPaymentFailed, "Subscription payment failed", p)
}

type lowBalanceData struct {
	Owner    ledger.Address
	Balance  uint64
	Required uint64
}

// LowBalance warns owner that the escrow cannot cover the next cycle.
func (s *Service) LowBalance(ctx context.Context, owner ledger.Address, balance, required uint64) error {
	return s.send(ctx, owner, KindLowBalance, "Low subscription balance", lowBalanceData{owner, balance, required})
}

// send mails wallet's contact. Wallets without a contact are skipped.
func (s *Service) send(ctx context.Context, wallet ledger.Address, kind, subject string, data any) error {
	contact, err := s.Contact(ctx, wallet)
	if errors.Is(err, ErrContactNotFound) {
		metrics.NotificationsTotal.WithLabelValues(kind, "skipped").Inc()
		s.log.DebugContext(ctx, "no contact for wallet", "wallet", wallet, "kind", kind)
		return nil
	}
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(kind, "error").Inc()
		return err
	}
	body, err := render(kind, data)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(kind, "error").Inc()
		return err
	}
	if err := s.mailer.Send(ctx, Message{To: contact.Email, Subject: subject, HTML: body, Tag: kind}); err != nil {
		metrics.NotificationsTotal.WithLabelValues(kind, "error").Inc()
		s.log.ErrorContext(ctx, "notification failed", "wallet", wallet, "kind", kind, "error", err)
		return err
	}
	metrics.NotificationsTotal.WithLabelValues(kind, "sent").Inc()
	s.log.InfoContext(ctx, "notification sent", "wallet", wallet, "kind", kind)
	return nil
}
