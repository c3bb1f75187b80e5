// Package store persists listings. Absence, a populated record, and the
// post-migration tombstone are three distinct states: an unconfigured label
// must never read back as "configured with empty name", and a migrated label
// must fail loudly instead of resolving to defaults.
package store

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"subreg/internal/registrar/models"
)

// Store is interface-driven so the service stays testable and persistence
// can move between in-memory and PostgreSQL without rewiring business code.
//
// Find and Save return sentinel.ErrNotFound / sentinel.ErrMigrated
// (optionally wrapped) for the corresponding states.
type Store interface {
	Find(ctx context.Context, label common.Hash) (*models.Listing, error)
	Save(ctx context.Context, listing *models.Listing) error
	// Migrate replaces an existing listing with a tombstone. Terminal:
	// every later Find/Save/Migrate for the label fails with ErrMigrated,
	// as does migrating a label that was never listed.
	Migrate(ctx context.Context, label common.Hash) error
}
