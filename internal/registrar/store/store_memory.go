package store

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"subreg/internal/registrar/models"
	"subreg/pkg/platform/sentinel"
)

// InMemoryStore keeps listings in process. It backs tests and dev mode and
// intentionally favors clarity over performance.
type InMemoryStore struct {
	mu        sync.RWMutex
	listings  map[common.Hash]models.Listing
	tombstone map[common.Hash]struct{}
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		listings:  make(map[common.Hash]models.Listing),
		tombstone: make(map[common.Hash]struct{}),
	}
}

func (s *InMemoryStore) Find(_ context.Context, label common.Hash) (*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, gone := s.tombstone[label]; gone {
		return nil, sentinel.ErrMigrated
	}
	listing, ok := s.listings[label]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := listing
	if listing.Price != nil {
		out.Price = new(big.Int).Set(listing.Price)
	}
	return &out, nil
}

func (s *InMemoryStore) Save(_ context.Context, listing *models.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, gone := s.tombstone[listing.Label]; gone {
		return sentinel.ErrMigrated
	}
	stored := *listing
	if listing.Price != nil {
		stored.Price = new(big.Int).Set(listing.Price)
	}
	s.listings[listing.Label] = stored
	return nil
}

func (s *InMemoryStore) Migrate(_ context.Context, label common.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, gone := s.tombstone[label]; gone {
		return sentinel.ErrMigrated
	}
	if _, ok := s.listings[label]; !ok {
		// No listing to tombstone, same as the SQL store's zero-row update.
		return sentinel.ErrMigrated
	}
	delete(s.listings, label)
	s.tombstone[label] = struct{}{}
	return nil
}
