// Package service implements the registrar core: ownership resolution, the
// listing lifecycle, payment-gated subdomain issuance, and the one-shot
// migration to a successor registrar.
package service

import (
	"context"
	"errors"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"subreg/internal/events"
	"subreg/internal/namehash"
	"subreg/internal/payments"
	"subreg/internal/platform/metrics"
	"subreg/internal/registrar"
	"subreg/internal/registrar/lock"
	"subreg/internal/registrar/models"
	"subreg/internal/registrar/store"
	dErrors "subreg/pkg/domain-errors"
	"subreg/pkg/platform/sentinel"
)

// Config pins the external identities the service was bound to at
// construction. RegistrarAccount is the identity this system holds on the
// naming registry; LegacyRegistrarAddr is the legacy implementation whose
// supersession gates upgrades.
type Config struct {
	RootNode            common.Hash
	RegistrarAccount    common.Address
	LegacyRegistrarAddr common.Address
}

// Service orchestrates the listing table, the payment ledger, and the
// external naming infrastructure. All public operations are atomic: a failed
// call leaves listing and ledger state unchanged and emits no event.
type Service struct {
	cfg      Config
	store    store.Store
	ledger   payments.Ledger
	registry registrar.NodeRegistry
	resolver registrar.Resolver
	legacy   registrar.LegacyRegistrar
	locks    lock.Locker
	sink     events.Sink
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

func New(
	cfg Config,
	listings store.Store,
	ledger payments.Ledger,
	registry registrar.NodeRegistry,
	resolver registrar.Resolver,
	legacy registrar.LegacyRegistrar,
	locks lock.Locker,
	sink events.Sink,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		cfg:      cfg,
		store:    listings,
		ledger:   ledger,
		registry: registry,
		resolver: resolver,
		legacy:   legacy,
		locks:    locks,
		sink:     sink,
		logger:   logger,
		metrics:  m,
		tracer:   otel.Tracer("subreg/registrar"),
	}
}

// ResolveAdministrator decides who controls a parent label right now.
// Three tiers: explicit listing administrator; otherwise the legacy
// registrar's previous holder, but only while the deed's current holder is
// still this system; otherwise nobody (zero address).
func (s *Service) ResolveAdministrator(ctx context.Context, label common.Hash) (common.Address, error) {
	listing, err := s.store.Find(ctx, label)
	switch {
	case err == nil:
		if listing.Administrator != (common.Address{}) {
			return listing.Administrator, nil
		}
	case errors.Is(err, sentinel.ErrMigrated):
		return common.Address{}, dErrors.Wrap(err, dErrors.CodeMigrated, "label migrated to successor registrar")
	case !errors.Is(err, sentinel.ErrNotFound):
		return common.Address{}, dErrors.Wrap(err, dErrors.CodeInternal, "load listing")
	}

	deed, err := s.legacy.Entry(ctx, label)
	if err != nil {
		return common.Address{}, dErrors.Wrap(err, dErrors.CodeInternal, "load legacy deed")
	}
	if deed.CurrentOwner != s.cfg.RegistrarAccount {
		// Custody was never delegated here, or has already left.
		return common.Address{}, nil
	}
	return deed.PreviousOwner, nil
}

// authorize resolves the administrator and checks the caller against it.
// Every admin-gated operation funnels through here rather than repeating the
// guard inline.
func (s *Service) authorize(ctx context.Context, label common.Hash, caller common.Address) (common.Address, error) {
	admin, err := s.ResolveAdministrator(ctx, label)
	if err != nil {
		return common.Address{}, err
	}
	if admin == (common.Address{}) || admin != caller {
		return common.Address{}, dErrors.New(dErrors.CodeUnauthorized, "caller is not the administrator")
	}
	return admin, nil
}

// loadOrDefault returns the stored listing or a fresh default-valued one.
// Absence is surfaced to callers through ActiveForSale, never by treating a
// zero record as configured.
func (s *Service) loadOrDefault(ctx context.Context, label common.Hash) (*models.Listing, error) {
	listing, err := s.store.Find(ctx, label)
	if err == nil {
		return listing, nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return &models.Listing{Label: label, Price: new(big.Int)}, nil
	}
	if errors.Is(err, sentinel.ErrMigrated) {
		return nil, dErrors.Wrap(err, dErrors.CodeMigrated, "label migrated to successor registrar")
	}
	return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load listing")
}

// Configure creates or updates the sale terms for a parent label. The name
// must hash to the label; price and referral rate are always overwritten;
// the administrator field is claimed by the caller on first configure.
func (s *Service) Configure(ctx context.Context, caller common.Address, label common.Hash, name string, price *big.Int, ratePpm uint32) error {
	if name == "" || namehash.LabelHash(name) != label {
		return dErrors.New(dErrors.CodeBadRequest, "name does not hash to label")
	}
	if price == nil || price.Sign() < 0 {
		return dErrors.New(dErrors.CodeBadRequest, "price must be a non-negative amount")
	}
	if ratePpm > payments.RateDenominator {
		return dErrors.New(dErrors.CodeBadRequest, "referral rate exceeds 1000000 ppm")
	}
	if _, err := s.authorize(ctx, label, caller); err != nil {
		return err
	}

	listing, err := s.loadOrDefault(ctx, label)
	if err != nil {
		return err
	}
	if listing.Administrator == (common.Address{}) {
		listing.Administrator = caller
	}
	if !listing.ActiveForSale() {
		// First listing, or re-listing after an unlist.
		listing.Name = name
	}
	listing.Price = price
	listing.ReferralRatePpm = ratePpm

	if err := s.save(ctx, listing); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.ListingsConfigured.Inc()
	}
	s.sink.Emit(ctx, events.Event{
		Type:          events.TypeListingConfigured,
		Label:         label,
		Name:          listing.Name,
		Administrator: listing.Administrator,
		Price:         price.String(),
		ReferralPpm:   ratePpm,
	})
	return nil
}

// TransferAdministrator reassigns listing control. No registry-level effect.
func (s *Service) TransferAdministrator(ctx context.Context, caller common.Address, label common.Hash, newAdmin common.Address) error {
	if newAdmin == (common.Address{}) {
		return dErrors.New(dErrors.CodeBadRequest, "new administrator must be set")
	}
	if _, err := s.authorize(ctx, label, caller); err != nil {
		return err
	}
	listing, err := s.loadOrDefault(ctx, label)
	if err != nil {
		return err
	}
	listing.Administrator = newAdmin
	if err := s.save(ctx, listing); err != nil {
		return err
	}
	s.sink.Emit(ctx, events.Event{
		Type:          events.TypeAdministratorChanged,
		Label:         label,
		Administrator: newAdmin,
	})
	return nil
}

// SetMigrationTarget records the successor for a future upgrade. One-shot:
// a second set is rejected and the first target stands.
func (s *Service) SetMigrationTarget(ctx context.Context, caller common.Address, label common.Hash, target common.Address) error {
	if target == (common.Address{}) {
		return dErrors.New(dErrors.CodeBadRequest, "migration target must be set")
	}
	if _, err := s.authorize(ctx, label, caller); err != nil {
		return err
	}
	listing, err := s.loadOrDefault(ctx, label)
	if err != nil {
		return err
	}
	if listing.MigrationTarget != (common.Address{}) {
		return dErrors.New(dErrors.CodeMigrationTargetSet, "migration target already set")
	}
	listing.MigrationTarget = target
	if listing.Administrator == (common.Address{}) {
		listing.Administrator = caller
	}
	if err := s.save(ctx, listing); err != nil {
		return err
	}
	s.sink.Emit(ctx, events.Event{
		Type:   events.TypeMigrationTargetSet,
		Label:  label,
		Target: target,
	})
	return nil
}

// Unlist takes the label off sale. The resolved administrator is snapshotted
// into the explicit field so control survives without the legacy-registrar
// fallback.
func (s *Service) Unlist(ctx context.Context, caller common.Address, label common.Hash) error {
	admin, err := s.authorize(ctx, label, caller)
	if err != nil {
		return err
	}
	listing, err := s.loadOrDefault(ctx, label)
	if err != nil {
		return err
	}
	listing.Unlist()
	listing.Administrator = admin
	if err := s.save(ctx, listing); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.ListingsUnlisted.Inc()
	}
	s.sink.Emit(ctx, events.Event{
		Type:          events.TypeListingUnlisted,
		Label:         label,
		Administrator: admin,
	})
	return nil
}

// SetResolver points the parent node at a resolver on the external registry.
func (s *Service) SetResolver(ctx context.Context, caller common.Address, label common.Hash, resolver common.Address) error {
	if _, err := s.authorize(ctx, label, caller); err != nil {
		return err
	}
	parentNode := namehash.Subnode(s.cfg.RootNode, label)
	if err := s.registry.SetResolver(ctx, parentNode, resolver); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "set parent resolver")
	}
	s.sink.Emit(ctx, events.Event{
		Type:     events.TypeResolverSet,
		Label:    label,
		Resolver: resolver,
	})
	return nil
}

func (s *Service) save(ctx context.Context, listing *models.Listing) error {
	if err := s.store.Save(ctx, listing); err != nil {
		if errors.Is(err, sentinel.ErrMigrated) {
			return dErrors.Wrap(err, dErrors.CodeMigrated, "label migrated to successor registrar")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "save listing")
	}
	return nil
}
