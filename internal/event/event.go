// Package event fans program events out to in-process subscribers after the
// ledger transaction that produced them has committed.
package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// SchemaVersion is stamped on every published event.
const SchemaVersion = "1.0"

type Type string

const (
	PaymentProcessed     Type = "subscription.payment.processed"
	PaymentFailed        Type = "subscription.payment.failed"
	SubscriptionCanceled Type = "subscription.canceled"
	SubscriptionCreated  Type = "subscription.created"
	EscrowStaked         Type = "subscription.escrow.staked"
	EscrowUnstaked       Type = "subscription.escrow.unstaked"
	FeeWalletUpdated     Type = "platform.fee_wallet.updated"
)

type Event struct {
	Version string `json:"version"`
	Type    Type   `json:"type"`
	Payload any    `json:"payload"`
}

func New(t Type, payload any) Event {
	return Event{Version: SchemaVersion, Type: t, Payload: payload}
}

type Handler func(ctx context.Context, ev Event) error

type Bus interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(t Type, h Handler)
}

// MemoryBus runs handlers synchronously in subscription order.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{handlers: make(map[Type][]Handler)}
}

// Publish calls every handler for ev.Type and joins their errors. A failing
// handler does not stop the others.
func (b *MemoryBus) Publish(ctx context.Context, ev Event) error {
	b.mu.RLock()
	handlers := b.handlers[ev.Type]
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d handler(s) failed for %s: %w", len(errs), ev.Type, errors.Join(errs...))
	}
	return nil
}

func (b *MemoryBus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// DecodePayload returns the payload as T, converting through JSON when the
// event came from a serialized source.
func DecodePayload[T any](payload any) (T, error) {
	if v, ok := payload.(T); ok {
		return v, nil
	}
	if v, ok := payload.(*T); ok && v != nil {
		return *v, nil
	}
	var out T
	var raw []byte
	switch p := payload.(type) {
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	default:
		var err error
		if raw, err = json.Marshal(payload); err != nil {
			return out, err
		}
	}
	return out, json.Unmarshal(raw, &out)
}
