// Package inmem implements the registrar's chain ports in process. Dev mode
// wires it in place of real chain clients; the service and transport suites
// use it as the substitutable registry the design calls for.
package inmem

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"subreg/internal/namehash"
	"subreg/internal/registrar"
)

// Registry is an in-memory naming registry: node → owner/resolver.
type Registry struct {
	mu        sync.RWMutex
	owners    map[common.Hash]common.Address
	resolvers map[common.Hash]common.Address
}

func NewRegistry() *Registry {
	return &Registry{
		owners:    make(map[common.Hash]common.Address),
		resolvers: make(map[common.Hash]common.Address),
	}
}

func (r *Registry) Owner(_ context.Context, node common.Hash) (common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owners[node], nil
}

func (r *Registry) SetOwner(_ context.Context, node common.Hash, owner common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners[node] = owner
	return nil
}

func (r *Registry) SetSubnodeOwner(_ context.Context, parent common.Hash, labelHash common.Hash, owner common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners[namehash.Subnode(parent, labelHash)] = owner
	return nil
}

func (r *Registry) SetResolver(_ context.Context, node common.Hash, resolver common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[node] = resolver
	return nil
}

// ResolverOf reports the resolver recorded for a node. Test observability.
func (r *Registry) ResolverOf(node common.Hash) common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolvers[node]
}

// Resolver is an in-memory address resolver. OnSetAddr, when set, runs
// before the write and can veto it; suites use it to simulate a recipient
// that re-enters the registrar mid-registration.
type Resolver struct {
	mu        sync.RWMutex
	addrs     map[common.Hash]common.Address
	OnSetAddr func(ctx context.Context, resolver common.Address, node common.Hash, addr common.Address) error
}

func NewResolver() *Resolver {
	return &Resolver{addrs: make(map[common.Hash]common.Address)}
}

func (r *Resolver) SetAddr(ctx context.Context, resolver common.Address, node common.Hash, addr common.Address) error {
	if r.OnSetAddr != nil {
		if err := r.OnSetAddr(ctx, resolver, node, addr); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addrs[node] = addr
	return nil
}

// AddrOf reports the address record for a node. Test observability.
func (r *Resolver) AddrOf(node common.Hash) common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.addrs[node]
}

// LegacyRegistrar is an in-memory deed table for parent labels.
type LegacyRegistrar struct {
	mu    sync.RWMutex
	deeds map[common.Hash]registrar.Deed
}

func NewLegacyRegistrar() *LegacyRegistrar {
	return &LegacyRegistrar{deeds: make(map[common.Hash]registrar.Deed)}
}

// SetDeed seeds a custody record, as the legacy auction would have.
func (l *LegacyRegistrar) SetDeed(labelHash common.Hash, deed registrar.Deed) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deeds[labelHash] = deed
}

func (l *LegacyRegistrar) Entry(_ context.Context, labelHash common.Hash) (registrar.Deed, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.deeds[labelHash], nil
}

func (l *LegacyRegistrar) Transfer(_ context.Context, labelHash common.Hash, newOwner common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	deed := l.deeds[labelHash]
	deed.PreviousOwner = deed.CurrentOwner
	deed.CurrentOwner = newOwner
	l.deeds[labelHash] = deed
	return nil
}
