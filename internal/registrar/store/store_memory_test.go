package store_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/suite"

	"subreg/internal/namehash"
	"subreg/internal/registrar/models"
	"subreg/internal/registrar/store"
	"subreg/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *store.InMemoryStore
	label common.Hash
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = store.NewInMemoryStore()
	s.label = namehash.LabelHash("mydomain")
}

func (s *InMemoryStoreSuite) listing() *models.Listing {
	return &models.Listing{
		Label:           s.label,
		Name:            "mydomain",
		Administrator:   common.HexToAddress("0x00000000000000000000000000000000000000a1"),
		Price:           big.NewInt(100),
		ReferralRatePpm: 50_000,
	}
}

func (s *InMemoryStoreSuite) TestFindMissing() {
	_, err := s.store.Find(context.Background(), s.label)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestSaveAndFind() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, s.listing()))

	found, err := s.store.Find(ctx, s.label)
	s.Require().NoError(err)
	s.Equal("mydomain", found.Name)
	s.Equal(big.NewInt(100), found.Price)
	s.True(found.ActiveForSale())
}

func (s *InMemoryStoreSuite) TestFindReturnsACopy() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, s.listing()))

	found, err := s.store.Find(ctx, s.label)
	s.Require().NoError(err)
	found.Price.SetInt64(999)
	found.Name = "tampered"

	again, err := s.store.Find(ctx, s.label)
	s.Require().NoError(err)
	s.Equal(big.NewInt(100), again.Price)
	s.Equal("mydomain", again.Name)
}

func (s *InMemoryStoreSuite) TestSaveOverwrites() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, s.listing()))

	updated := s.listing()
	updated.Unlist()
	s.Require().NoError(s.store.Save(ctx, updated))

	found, err := s.store.Find(ctx, s.label)
	s.Require().NoError(err)
	s.False(found.ActiveForSale())
	s.Empty(found.Name)
}

func (s *InMemoryStoreSuite) TestMigrateTombstones() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, s.listing()))
	s.Require().NoError(s.store.Migrate(ctx, s.label))

	s.Run("find sees the tombstone", func() {
		_, err := s.store.Find(ctx, s.label)
		s.Require().ErrorIs(err, sentinel.ErrMigrated)
	})

	s.Run("save sees the tombstone", func() {
		err := s.store.Save(ctx, s.listing())
		s.Require().ErrorIs(err, sentinel.ErrMigrated)
	})

	s.Run("migrate is not repeatable", func() {
		err := s.store.Migrate(ctx, s.label)
		s.Require().ErrorIs(err, sentinel.ErrMigrated)
	})
}

func (s *InMemoryStoreSuite) TestMigrateUnknownLabelFails() {
	ctx := context.Background()
	other := namehash.LabelHash("elsewhere")
	s.Require().ErrorIs(s.store.Migrate(ctx, other), sentinel.ErrMigrated)

	// Not turned into a tombstone: the label can still be listed later.
	_, err := s.store.Find(ctx, other)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
