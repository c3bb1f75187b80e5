package service_test

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"subreg/internal/chain/inmem"
	"subreg/internal/events"
	dErrors "subreg/pkg/domain-errors"
)

// flakyLegacy fails Transfer until err is cleared.
type flakyLegacy struct {
	*inmem.LegacyRegistrar
	err error
}

func (f *flakyLegacy) Transfer(ctx context.Context, labelHash common.Hash, newOwner common.Address) error {
	if f.err != nil {
		return f.err
	}
	return f.LegacyRegistrar.Transfer(ctx, labelHash, newOwner)
}

func (s *ServiceSuite) TestUpgradeGatedOnSupersession() {
	ctx := context.Background()
	s.configureMyDomain()
	s.Require().NoError(s.svc.SetMigrationTarget(ctx, adminA, labelMyDom, successorAddr))

	// The legacy registrar still holds the root namespace.
	err := s.svc.Upgrade(ctx, adminA, labelMyDom)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotSuperseded))

	// Once the protocol moves on, the same call goes through.
	s.Require().NoError(s.registry.SetOwner(ctx, rootNode, successorAddr))
	s.Require().NoError(s.svc.Upgrade(ctx, adminA, labelMyDom))
}

func (s *ServiceSuite) TestUpgradeRequiresMigrationTarget() {
	ctx := context.Background()
	s.configureMyDomain()
	s.Require().NoError(s.registry.SetOwner(ctx, rootNode, successorAddr))

	err := s.svc.Upgrade(ctx, adminA, labelMyDom)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNoMigrationTarget))
}

func (s *ServiceSuite) TestUpgradeRequiresAdministrator() {
	ctx := context.Background()
	s.configureMyDomain()
	s.Require().NoError(s.svc.SetMigrationTarget(ctx, adminA, labelMyDom, successorAddr))
	s.Require().NoError(s.registry.SetOwner(ctx, rootNode, successorAddr))

	err := s.svc.Upgrade(ctx, strangerX, labelMyDom)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestUpgradeTransferFailureLeavesListingIntact() {
	ctx := context.Background()
	s.configureMyDomain()
	s.Require().NoError(s.svc.SetMigrationTarget(ctx, adminA, labelMyDom, successorAddr))
	s.Require().NoError(s.registry.SetOwner(ctx, rootNode, successorAddr))

	flaky := &flakyLegacy{LegacyRegistrar: s.legacy, err: errors.New("legacy registrar unreachable")}
	svc := s.newService(s.ledger, flaky)

	err := svc.Upgrade(ctx, adminA, labelMyDom)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	s.Run("custody never moved", func() {
		deed, err := s.legacy.Entry(ctx, labelMyDom)
		s.Require().NoError(err)
		s.Equal(registrarAccount, deed.CurrentOwner)
	})

	s.Run("no tombstone, listing still administrable", func() {
		s.Require().NoError(svc.Configure(ctx, adminA, labelMyDom, "mydomain", big.NewInt(200), 0))
	})

	s.Run("the upgrade is retryable once the transfer works", func() {
		flaky.err = nil
		s.Require().NoError(svc.Upgrade(ctx, adminA, labelMyDom))

		deed, err := s.legacy.Entry(ctx, labelMyDom)
		s.Require().NoError(err)
		s.Equal(successorAddr, deed.CurrentOwner)

		err = svc.Configure(ctx, adminA, labelMyDom, "mydomain", big.NewInt(100), 0)
		s.True(dErrors.HasCode(err, dErrors.CodeMigrated))
	})
}

func (s *ServiceSuite) TestUpgradeBusyWhileLabelLeaseHeld() {
	ctx := context.Background()
	s.configureMyDomain()
	s.Require().NoError(s.svc.SetMigrationTarget(ctx, adminA, labelMyDom, successorAddr))
	s.Require().NoError(s.registry.SetOwner(ctx, rootNode, successorAddr))

	unlock, err := s.locks.TryLock(ctx, labelMyDom)
	s.Require().NoError(err)
	defer unlock()

	err = s.svc.Upgrade(ctx, adminA, labelMyDom)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBusy))
}

func (s *ServiceSuite) TestUpgradeTransfersCustodyAndTombstones() {
	ctx := context.Background()
	s.configureMyDomain()
	s.Require().NoError(s.svc.SetMigrationTarget(ctx, adminA, labelMyDom, successorAddr))
	s.Require().NoError(s.registry.SetOwner(ctx, rootNode, successorAddr))
	s.Require().NoError(s.svc.Upgrade(ctx, adminA, labelMyDom))

	s.Run("custody moved to the successor", func() {
		deed, err := s.legacy.Entry(ctx, labelMyDom)
		s.Require().NoError(err)
		s.Equal(successorAddr, deed.CurrentOwner)
		s.Equal(registrarAccount, deed.PreviousOwner)
	})

	s.Run("upgrade event emitted", func() {
		emitted := s.sink.all()
		last := emitted[len(emitted)-1]
		s.Equal(events.TypeRegistrarUpgraded, last.Type)
		s.Equal(successorAddr, last.Target)
	})

	s.Run("every further operation sees the tombstone", func() {
		err := s.svc.Configure(ctx, adminA, labelMyDom, "mydomain", big.NewInt(100), 0)
		s.True(dErrors.HasCode(err, dErrors.CodeMigrated))

		err = s.svc.TransferAdministrator(ctx, adminA, labelMyDom, strangerX)
		s.True(dErrors.HasCode(err, dErrors.CodeMigrated))

		err = s.svc.SetMigrationTarget(ctx, adminA, labelMyDom, strangerX)
		s.True(dErrors.HasCode(err, dErrors.CodeMigrated))

		err = s.svc.Unlist(ctx, adminA, labelMyDom)
		s.True(dErrors.HasCode(err, dErrors.CodeMigrated))

		err = s.svc.Upgrade(ctx, adminA, labelMyDom)
		s.True(dErrors.HasCode(err, dErrors.CodeMigrated))
	})

	s.Run("query reads as unavailable, not an error", func() {
		query, err := s.svc.Query(ctx, labelMyDom, "sub")
		s.Require().NoError(err)
		s.False(query.Available)
	})
}
