// Package events defines the registrar's externally observable event stream.
// Every successful state change emits exactly one event; failed operations
// emit nothing.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Event types, one per mutating operation.
const (
	TypeListingConfigured    = "listing_configured"
	TypeAdministratorChanged = "administrator_changed"
	TypeMigrationTargetSet   = "migration_target_set"
	TypeListingUnlisted      = "listing_unlisted"
	TypeResolverSet          = "resolver_set"
	TypeSubdomainRegistered  = "subdomain_registered"
	TypeRegistrarUpgraded    = "registrar_upgraded"
)

// Event is the wire record indexers consume. Amounts are decimal strings.
type Event struct {
	ID        uuid.UUID   `json:"id"`
	Type      string      `json:"type"`
	Label     common.Hash `json:"label"`
	Timestamp time.Time   `json:"timestamp"`

	// Address fields serialize unconditionally (a fixed-size array is never
	// "empty" to encoding/json); the zero address means not applicable.
	Name          string         `json:"name,omitempty"`
	Subdomain     string         `json:"subdomain,omitempty"`
	Administrator common.Address `json:"administrator"`
	Owner         common.Address `json:"owner"`
	Referrer      common.Address `json:"referrer"`
	Resolver      common.Address `json:"resolver"`
	Target        common.Address `json:"target"`
	Price         string         `json:"price,omitempty"`
	Paid          string         `json:"paid,omitempty"`
	ReferralPpm   uint32         `json:"referral_ppm,omitempty"`
}

// Publisher is the broker boundary so tests can swap Kafka for memory.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Sink is what services emit into. The production sink is the buffered
// Emitter; tests substitute a recorder.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// MemoryPublisher records events in order. Used by tests and dev mode.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *MemoryPublisher) Close() error { return nil }

// Events returns a copy of everything published so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event{}, p.events...)
}
