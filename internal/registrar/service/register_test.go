package service_test

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"subreg/internal/events"
	"subreg/internal/namehash"
	"subreg/internal/payments"
	"subreg/internal/registrar/service"
	dErrors "subreg/pkg/domain-errors"
)

// flakyLedger fails CreditBatch until err is cleared.
type flakyLedger struct {
	payments.Ledger
	err error
}

func (f *flakyLedger) CreditBatch(ctx context.Context, credits []payments.Credit) error {
	if f.err != nil {
		return f.err
	}
	return f.Ledger.CreditBatch(ctx, credits)
}

func (s *ServiceSuite) balance(account common.Address) *big.Int {
	bal, err := s.ledger.Balance(context.Background(), account)
	s.Require().NoError(err)
	return bal
}

func (s *ServiceSuite) TestRegister() {
	ctx := context.Background()
	parentNode := namehash.Subnode(rootNode, labelMyDom)
	childNode := namehash.Subnode(parentNode, namehash.LabelHash("sub"))

	s.Run("splits an overpayment between payer, referrer, and administrator", func() {
		s.configureMyDomain()

		result, err := s.svc.Register(ctx, service.RegisterRequest{
			Label:     labelMyDom,
			Subdomain: "sub",
			Caller:    callerC,
			NewOwner:  ownerO,
			Referrer:  referrerR,
			Paid:      big.NewInt(150),
		})
		s.Require().NoError(err)

		s.Equal(childNode, result.ChildNode)
		s.Equal(ownerO, result.Owner)
		s.Equal(big.NewInt(50), result.Refund)
		s.Equal(big.NewInt(5), result.Referral)
		s.Equal(big.NewInt(95), result.Proceeds)

		registered, err := s.registry.Owner(ctx, childNode)
		s.Require().NoError(err)
		s.Equal(ownerO, registered)

		s.Equal(big.NewInt(50), s.balance(callerC))
		s.Equal(big.NewInt(5), s.balance(referrerR))
		s.Equal(big.NewInt(95), s.balance(adminA))

		emitted := s.sink.all()
		s.Require().Len(emitted, 2) // listing_configured + subdomain_registered
		s.Equal(events.TypeSubdomainRegistered, emitted[1].Type)
		s.Equal("sub", emitted[1].Subdomain)
		s.Equal(ownerO, emitted[1].Owner)
		s.Equal("150", emitted[1].Paid)
	})

	s.Run("second registration of the same subdomain is rejected", func() {
		_, err := s.svc.Register(ctx, service.RegisterRequest{
			Label:     labelMyDom,
			Subdomain: "sub",
			Caller:    strangerX,
			Paid:      big.NewInt(150),
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyRegistered))

		// The failed attempt credited nobody and emitted nothing.
		s.Equal("0", s.balance(strangerX).String())
		s.Len(s.sink.all(), 2)
	})

	s.Run("a taken subdomain reads as unavailable", func() {
		query, err := s.svc.Query(ctx, labelMyDom, "sub")
		s.Require().NoError(err)
		s.False(query.Available)
		s.Empty(query.Name)
	})
}

func (s *ServiceSuite) TestRegisterExactPaymentNoReferrer() {
	ctx := context.Background()
	s.configureMyDomain()

	result, err := s.svc.Register(ctx, service.RegisterRequest{
		Label:     labelMyDom,
		Subdomain: "exact",
		Caller:    callerC,
		Paid:      big.NewInt(100),
	})
	s.Require().NoError(err)

	// No refund, no referral: the whole price goes to the administrator, and
	// ownership defaults to the caller.
	s.Equal("0", result.Refund.String())
	s.Equal("0", result.Referral.String())
	s.Equal(big.NewInt(100), result.Proceeds)
	s.Equal(callerC, result.Owner)
	s.Equal("0", s.balance(callerC).String())
	s.Equal(big.NewInt(100), s.balance(adminA))
}

func (s *ServiceSuite) TestRegisterSelfReferralPaysNothing() {
	ctx := context.Background()
	s.configureMyDomain()

	result, err := s.svc.Register(ctx, service.RegisterRequest{
		Label:     labelMyDom,
		Subdomain: "selfref",
		Caller:    callerC,
		Referrer:  adminA,
		Paid:      big.NewInt(100),
	})
	s.Require().NoError(err)
	s.Equal("0", result.Referral.String())
	s.Equal(big.NewInt(100), s.balance(adminA))
}

func (s *ServiceSuite) TestRegisterRejections() {
	ctx := context.Background()

	s.Run("unlisted parent", func() {
		_, err := s.svc.Register(ctx, service.RegisterRequest{
			Label:     labelMyDom,
			Subdomain: "sub",
			Caller:    callerC,
			Paid:      big.NewInt(100),
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotListed))
	})

	s.configureMyDomain()

	s.Run("underpayment", func() {
		_, err := s.svc.Register(ctx, service.RegisterRequest{
			Label:     labelMyDom,
			Subdomain: "sub",
			Caller:    callerC,
			Paid:      big.NewInt(99),
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientPayment))
	})

	s.Run("dotted subdomain", func() {
		_, err := s.svc.Register(ctx, service.RegisterRequest{
			Label:     labelMyDom,
			Subdomain: "a.b",
			Caller:    callerC,
			Paid:      big.NewInt(100),
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("missing caller", func() {
		_, err := s.svc.Register(ctx, service.RegisterRequest{
			Label:     labelMyDom,
			Subdomain: "sub",
			Paid:      big.NewInt(100),
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("unlisted after unlist", func() {
		s.Require().NoError(s.svc.Unlist(ctx, adminA, labelMyDom))
		_, err := s.svc.Register(ctx, service.RegisterRequest{
			Label:     labelMyDom,
			Subdomain: "sub",
			Caller:    callerC,
			Paid:      big.NewInt(100),
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotListed))
	})

	// Nothing above touched the registry, the ledger, or the event stream
	// beyond the lifecycle events themselves.
	parentNode := namehash.Subnode(rootNode, labelMyDom)
	owner, err := s.registry.Owner(ctx, namehash.Subnode(parentNode, namehash.LabelHash("sub")))
	s.Require().NoError(err)
	s.Equal(common.Address{}, owner)
	s.Equal("0", s.balance(adminA).String())
	for _, e := range s.sink.all() {
		s.NotEqual(events.TypeSubdomainRegistered, e.Type)
	}
}

func (s *ServiceSuite) TestRegisterWiresResolver() {
	ctx := context.Background()
	s.configureMyDomain()
	resolverAddr := common.HexToAddress("0x00000000000000000000000000000000000000ee")

	result, err := s.svc.Register(ctx, service.RegisterRequest{
		Label:        labelMyDom,
		Subdomain:    "resolved",
		Caller:       callerC,
		NewOwner:     ownerO,
		ResolverAddr: resolverAddr,
		Paid:         big.NewInt(100),
	})
	s.Require().NoError(err)

	s.Equal(resolverAddr, s.registry.ResolverOf(result.ChildNode))
	s.Equal(ownerO, s.resolver.AddrOf(result.ChildNode))
}

func (s *ServiceSuite) TestRegisterReentrancyRejected() {
	ctx := context.Background()
	s.configureMyDomain()
	resolverAddr := common.HexToAddress("0x00000000000000000000000000000000000000ee")

	// The resolver callback plays a hostile recipient that re-enters the
	// registrar while the first registration is still in flight. The inner
	// call must bounce off the label lease.
	var reentrantErr error
	s.resolver.OnSetAddr = func(ctx context.Context, _ common.Address, _ common.Hash, _ common.Address) error {
		_, reentrantErr = s.svc.Register(ctx, service.RegisterRequest{
			Label:     labelMyDom,
			Subdomain: "other",
			Caller:    strangerX,
			Paid:      big.NewInt(100),
		})
		return nil
	}

	_, err := s.svc.Register(ctx, service.RegisterRequest{
		Label:        labelMyDom,
		Subdomain:    "victim",
		Caller:       callerC,
		ResolverAddr: resolverAddr,
		Paid:         big.NewInt(100),
	})
	s.Require().NoError(err)

	s.Require().Error(reentrantErr)
	s.True(dErrors.HasCode(reentrantErr, dErrors.CodeBusy))

	// Only the outer registration took effect.
	parentNode := namehash.Subnode(rootNode, labelMyDom)
	otherNode := namehash.Subnode(parentNode, namehash.LabelHash("other"))
	owner, err := s.registry.Owner(ctx, otherNode)
	s.Require().NoError(err)
	s.Equal(common.Address{}, owner)
	s.Equal("0", s.balance(strangerX).String())
}

func (s *ServiceSuite) TestRegisterCreditFailureAbortsBeforeHandOff() {
	ctx := context.Background()
	s.configureMyDomain()

	flaky := &flakyLedger{Ledger: s.ledger, err: errors.New("ledger unavailable")}
	svc := s.newService(flaky, s.legacy)

	request := service.RegisterRequest{
		Label:     labelMyDom,
		Subdomain: "sub",
		Caller:    callerC,
		NewOwner:  ownerO,
		Referrer:  referrerR,
		Paid:      big.NewInt(150),
	}
	_, err := svc.Register(ctx, request)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	parentNode := namehash.Subnode(rootNode, labelMyDom)
	childNode := namehash.Subnode(parentNode, namehash.LabelHash("sub"))

	s.Run("child released, nobody credited, nothing emitted", func() {
		owner, err := s.registry.Owner(ctx, childNode)
		s.Require().NoError(err)
		s.Equal(common.Address{}, owner)

		s.Equal("0", s.balance(callerC).String())
		s.Equal("0", s.balance(referrerR).String())
		s.Equal("0", s.balance(adminA).String())
		for _, e := range s.sink.all() {
			s.NotEqual(events.TypeSubdomainRegistered, e.Type)
		}
	})

	s.Run("the same registration succeeds once the ledger recovers", func() {
		flaky.err = nil
		result, err := svc.Register(ctx, request)
		s.Require().NoError(err)
		s.Equal(ownerO, result.Owner)

		owner, err := s.registry.Owner(ctx, childNode)
		s.Require().NoError(err)
		s.Equal(ownerO, owner)
		s.Equal(big.NewInt(50), s.balance(callerC))
		s.Equal(big.NewInt(5), s.balance(referrerR))
		s.Equal(big.NewInt(95), s.balance(adminA))
	})
}

func (s *ServiceSuite) TestRegisterAfterUpgradeRejected() {
	ctx := context.Background()
	s.configureMyDomain()
	s.Require().NoError(s.svc.SetMigrationTarget(ctx, adminA, labelMyDom, successorAddr))
	s.Require().NoError(s.registry.SetOwner(ctx, rootNode, successorAddr))
	s.Require().NoError(s.svc.Upgrade(ctx, adminA, labelMyDom))

	_, err := s.svc.Register(ctx, service.RegisterRequest{
		Label:     labelMyDom,
		Subdomain: "sub",
		Caller:    callerC,
		Paid:      big.NewInt(100),
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeMigrated))
}

func (s *ServiceSuite) TestQueryTermsForAvailableSubdomain() {
	ctx := context.Background()
	s.configureMyDomain()

	query, err := s.svc.Query(ctx, labelMyDom, "free")
	s.Require().NoError(err)
	s.Equal(service.Protocol, query.Protocol)
	s.True(query.Available)
	s.Equal("mydomain", query.Name)
	s.Equal(big.NewInt(100), query.Price)
	s.Equal(uint32(50_000), query.ReferralPpm)
	s.Equal(service.RentDueSentinel(), query.RentDue)
}
