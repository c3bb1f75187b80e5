// Package models holds the registrar's persisted records.
package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"subreg/internal/namehash"
)

// Listing is the sale terms for one parent label. The table key is the
// keccak hash of the parent's label; Name is the canonical human-readable
// label and doubles as the for-sale flag (see ActiveForSale).
type Listing struct {
	Label           common.Hash
	Name            string
	Administrator   common.Address
	MigrationTarget common.Address
	Price           *big.Int
	ReferralRatePpm uint32
	UpdatedAt       time.Time
}

// ActiveForSale reports whether the listing can sell subdomains. A listing
// whose stored name no longer hashes back to its key (never configured, or
// cleared by unlist) is not for sale even though the administrator retains
// control.
func (l *Listing) ActiveForSale() bool {
	return l.Name != "" && namehash.LabelHash(l.Name) == l.Label
}

// Unlist clears the for-sale fields while keeping administrative control.
// The resolved administrator must be snapshotted into Administrator by the
// caller before persisting, so control no longer leans on the legacy
// registrar fallback.
func (l *Listing) Unlist() {
	l.Name = ""
	l.Price = new(big.Int)
	l.ReferralRatePpm = 0
}
