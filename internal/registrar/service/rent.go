package service

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	dErrors "subreg/pkg/domain-errors"
)

// Rent is a declared but intentionally inert capability: the interface
// exists so successors can implement subscription billing, while this
// registrar never charges rent.

// RentDueSentinel is the "infinite" amount reported for every subdomain:
// rent is never due. Max uint256.
func RentDueSentinel() *big.Int {
	max := new(big.Int).Lsh(big.NewInt(1), 256)
	return max.Sub(max, big.NewInt(1))
}

// RentDue reports when rent is owed for a subdomain. Always the infinite
// sentinel.
func (s *Service) RentDue(_ context.Context, _ common.Hash, _ string) (*big.Int, error) {
	return RentDueSentinel(), nil
}

// PayRent always fails: rent is not supported by this registrar.
func (s *Service) PayRent(_ context.Context, _ common.Address, _ common.Hash, _ string, _ *big.Int) error {
	return dErrors.New(dErrors.CodeRentNotSupported, "rent payments are not supported")
}
