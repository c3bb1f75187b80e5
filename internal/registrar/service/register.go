package service

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"subreg/internal/events"
	"subreg/internal/namehash"
	"subreg/internal/payments"
	dErrors "subreg/pkg/domain-errors"
	"subreg/pkg/platform/sentinel"
)

// RegisterRequest carries one subdomain issuance. NewOwner defaults to the
// caller; Referrer and ResolverAddr may be zero.
type RegisterRequest struct {
	Label        common.Hash
	Subdomain    string
	Caller       common.Address
	NewOwner     common.Address
	Referrer     common.Address
	ResolverAddr common.Address
	Paid         *big.Int
}

// RegisterResult reports the issued node and the payment disposition.
type RegisterResult struct {
	ChildNode common.Hash
	Owner     common.Address
	Refund    *big.Int
	Referral  *big.Int
	Proceeds  *big.Int
}

// Register performs the one true state transition of the system:
// Unregistered → Registered, irreversible once ownership passes to the new
// owner. Ordering discipline: all checks run under a per-label lease before
// any write; ledger credits land before the final ownership hand-off, while
// the child is still in registrar custody, so a credit failure aborts the
// sale, releases the child, and emits nothing.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (RegisterResult, error) {
	ctx, span := s.tracer.Start(ctx, "registrar.Register",
		trace.WithAttributes(
			attribute.String("label", req.Label.Hex()),
			attribute.String("subdomain", req.Subdomain),
		))
	defer span.End()
	start := time.Now()

	result, err := s.register(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		s.metrics.RecordRegistrationFailure(string(dErrors.CodeOf(err)))
		return RegisterResult{}, err
	}
	if s.metrics != nil {
		s.metrics.RegistrationsTotal.Inc()
		s.metrics.RegisterDuration.Observe(time.Since(start).Seconds())
	}
	return result, nil
}

func (s *Service) register(ctx context.Context, req RegisterRequest) (RegisterResult, error) {
	if req.Subdomain == "" || strings.Contains(req.Subdomain, ".") {
		return RegisterResult{}, dErrors.New(dErrors.CodeBadRequest, "subdomain must be a single non-empty label")
	}
	if req.Paid == nil || req.Paid.Sign() < 0 {
		return RegisterResult{}, dErrors.New(dErrors.CodeBadRequest, "paid must be a non-negative amount")
	}
	if req.Caller == (common.Address{}) {
		return RegisterResult{}, dErrors.New(dErrors.CodeBadRequest, "caller must be set")
	}

	// One registration per parent label at a time. Non-blocking, so a
	// malicious payment recipient re-entering Register mid-flight is
	// rejected instead of observing half-applied state.
	unlock, err := s.locks.TryLock(ctx, req.Label)
	if err != nil {
		if errors.Is(err, sentinel.ErrLockHeld) {
			return RegisterResult{}, dErrors.Wrap(err, dErrors.CodeBusy, "registration in progress for this label")
		}
		return RegisterResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "acquire label lease")
	}
	defer unlock()

	parentNode := namehash.Subnode(s.cfg.RootNode, req.Label)
	childLabelHash := namehash.LabelHash(req.Subdomain)
	childNode := namehash.Subnode(parentNode, childLabelHash)

	// Availability check against live registry state. Registry state can
	// change out of band between listing and registration, so this re-check
	// is load-bearing, not defensive.
	currentOwner, err := s.registry.Owner(ctx, childNode)
	if err != nil {
		return RegisterResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "query child node owner")
	}
	if currentOwner != (common.Address{}) {
		return RegisterResult{}, dErrors.New(dErrors.CodeAlreadyRegistered, "subdomain already owned")
	}

	listing, err := s.store.Find(ctx, req.Label)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return RegisterResult{}, dErrors.New(dErrors.CodeNotListed, "parent label is not listed for sale")
		}
		if errors.Is(err, sentinel.ErrMigrated) {
			return RegisterResult{}, dErrors.Wrap(err, dErrors.CodeMigrated, "label migrated to successor registrar")
		}
		return RegisterResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "load listing")
	}
	if !listing.ActiveForSale() {
		return RegisterResult{}, dErrors.New(dErrors.CodeNotListed, "parent label is not listed for sale")
	}

	split, err := payments.ComputeSplit(req.Paid, listing.Price, listing.ReferralRatePpm, req.Referrer, listing.Administrator)
	if err != nil {
		return RegisterResult{}, err
	}

	newOwner := req.NewOwner
	if newOwner == (common.Address{}) {
		newOwner = req.Caller
	}

	// Issue the child node. The registrar takes intermediate custody so the
	// resolver, address record, and ledger credits are all in place before
	// ownership passes to the new owner; after the final SetOwner there is
	// no recall right.
	if err := s.registry.SetSubnodeOwner(ctx, parentNode, childLabelHash, s.cfg.RegistrarAccount); err != nil {
		return RegisterResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "take intermediate custody")
	}
	releaseCustody := func(cause error) {
		if err := s.registry.SetSubnodeOwner(ctx, parentNode, childLabelHash, common.Address{}); err != nil {
			s.logger.ErrorContext(ctx, "CRITICAL: aborted registration left child in registrar custody",
				"label", req.Label.Hex(), "subdomain", req.Subdomain, "cause", cause, "error", err)
		}
	}
	if req.ResolverAddr != (common.Address{}) {
		if err := s.registry.SetResolver(ctx, childNode, req.ResolverAddr); err != nil {
			releaseCustody(err)
			return RegisterResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "set child resolver")
		}
		if err := s.resolver.SetAddr(ctx, req.ResolverAddr, childNode, newOwner); err != nil {
			releaseCustody(err)
			return RegisterResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "write address record")
		}
	}

	// Disburse before the irreversible hand-off. The ledger is this
	// service's own store: if the credits cannot land, the registration
	// aborts while the child is still in registrar custody, and the node is
	// released for a later attempt.
	credits := []payments.Credit{
		{Account: req.Caller, Amount: split.Refund},
		{Account: req.Referrer, Amount: split.Referral},
		{Account: listing.Administrator, Amount: split.Owner},
	}
	if err := s.ledger.CreditBatch(ctx, credits); err != nil {
		releaseCustody(err)
		return RegisterResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "credit sale proceeds")
	}

	if err := s.registry.SetOwner(ctx, childNode, newOwner); err != nil {
		// Proceeds are already credited; the child stays in registrar
		// custody so the sale cannot repeat while the hand-off is completed
		// out of band.
		s.logger.ErrorContext(ctx, "CRITICAL: proceeds credited but child hand-off failed",
			"label", req.Label.Hex(), "subdomain", req.Subdomain, "owner", newOwner.Hex(), "error", err)
		return RegisterResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "hand off child ownership")
	}

	s.sink.Emit(ctx, events.Event{
		Type:        events.TypeSubdomainRegistered,
		Label:       req.Label,
		Name:        listing.Name,
		Subdomain:   req.Subdomain,
		Owner:       newOwner,
		Referrer:    req.Referrer,
		Price:       listing.Price.String(),
		Paid:        req.Paid.String(),
		ReferralPpm: listing.ReferralRatePpm,
	})
	return RegisterResult{
		ChildNode: childNode,
		Owner:     newOwner,
		Refund:    split.Refund,
		Referral:  split.Referral,
		Proceeds:  split.Owner,
	}, nil
}

// QueryResult answers availability lookups. Protocol doubles as the
// capability marker so callers can detect support for this registrar's
// interface before committing payment.
type QueryResult struct {
	Protocol    string
	Available   bool
	Name        string
	Price       *big.Int
	ReferralPpm uint32
	RentDue     *big.Int
}

// Protocol identifier returned by Query.
const Protocol = "subreg/1"

// Query reports whether a subdomain can be bought and at what terms. An
// already-registered child yields an empty (unavailable) result rather than
// an error.
func (s *Service) Query(ctx context.Context, label common.Hash, subdomain string) (QueryResult, error) {
	result := QueryResult{Protocol: Protocol}
	if subdomain == "" || strings.Contains(subdomain, ".") {
		return result, dErrors.New(dErrors.CodeBadRequest, "subdomain must be a single non-empty label")
	}

	parentNode := namehash.Subnode(s.cfg.RootNode, label)
	childNode := namehash.Subnode(parentNode, namehash.LabelHash(subdomain))
	owner, err := s.registry.Owner(ctx, childNode)
	if err != nil {
		return result, dErrors.Wrap(err, dErrors.CodeInternal, "query child node owner")
	}
	if owner != (common.Address{}) {
		return result, nil
	}

	listing, err := s.store.Find(ctx, label)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrMigrated) {
			return result, nil
		}
		return result, dErrors.Wrap(err, dErrors.CodeInternal, "load listing")
	}
	if !listing.ActiveForSale() {
		return result, nil
	}

	result.Available = true
	result.Name = listing.Name
	result.Price = new(big.Int).Set(listing.Price)
	result.ReferralPpm = listing.ReferralRatePpm
	result.RentDue = RentDueSentinel()
	return result, nil
}
