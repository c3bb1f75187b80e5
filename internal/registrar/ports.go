// Package registrar defines the interfaces to the external naming
// infrastructure this service writes to but does not own. The core never
// holds a concrete connection; cmd wiring and tests inject implementations.
package registrar

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// NodeRegistry is the external naming registry: the authoritative, shared
// mutable mapping from node identifiers to owners and resolvers. Its state
// can change out of band between any two calls.
type NodeRegistry interface {
	Owner(ctx context.Context, node common.Hash) (common.Address, error)
	SetSubnodeOwner(ctx context.Context, parent common.Hash, labelHash common.Hash, owner common.Address) error
	SetOwner(ctx context.Context, node common.Hash, owner common.Address) error
	SetResolver(ctx context.Context, node common.Hash, resolver common.Address) error
}

// Resolver writes address records against nodes, addressed by the resolver
// the caller selected at registration time.
type Resolver interface {
	SetAddr(ctx context.Context, resolver common.Address, node common.Hash, addr common.Address) error
}

// Deed is the legacy registrar's custody record for a parent label. The
// previous holder is the party who transferred the label into this system.
type Deed struct {
	CurrentOwner  common.Address
	PreviousOwner common.Address
}

// LegacyRegistrar is the auction-style registrar that historically allocated
// parent labels. Entry returns the zero Deed when no record exists.
type LegacyRegistrar interface {
	Entry(ctx context.Context, labelHash common.Hash) (Deed, error)
	// Transfer hands a parent label's custody to a successor. One-way.
	Transfer(ctx context.Context, labelHash common.Hash, newOwner common.Address) error
}
