package service

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"subreg/internal/events"
	dErrors "subreg/pkg/domain-errors"
	"subreg/pkg/platform/sentinel"
)

// Upgrade hands a parent label's custody to its migration target. Gated on
// the legacy registrar having been superseded at the protocol level: the
// root namespace must no longer be held by the implementation this service
// was bound to. The label lease serializes the hand-off against in-flight
// registrations; the tombstone lands only after custody has moved, so a
// failed transfer leaves the listing intact and the upgrade retryable.
func (s *Service) Upgrade(ctx context.Context, caller common.Address, label common.Hash) error {
	ctx, span := s.tracer.Start(ctx, "registrar.Upgrade",
		trace.WithAttributes(attribute.String("label", label.Hex())))
	defer span.End()

	err := s.upgrade(ctx, caller, label)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return err
	}
	if s.metrics != nil {
		s.metrics.UpgradesTotal.Inc()
	}
	return nil
}

func (s *Service) upgrade(ctx context.Context, caller common.Address, label common.Hash) error {
	rootHolder, err := s.registry.Owner(ctx, s.cfg.RootNode)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "query root namespace holder")
	}
	if rootHolder == s.cfg.LegacyRegistrarAddr {
		return dErrors.New(dErrors.CodeNotSuperseded, "legacy registrar has not been superseded")
	}

	// Same lease as Register: no subdomain sale can interleave with the
	// custody hand-off.
	unlock, err := s.locks.TryLock(ctx, label)
	if err != nil {
		if errors.Is(err, sentinel.ErrLockHeld) {
			return dErrors.Wrap(err, dErrors.CodeBusy, "operation in progress for this label")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "acquire label lease")
	}
	defer unlock()

	if _, err := s.authorize(ctx, label, caller); err != nil {
		return err
	}

	listing, err := s.store.Find(ctx, label)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNoMigrationTarget, "no migration target set")
		}
		if errors.Is(err, sentinel.ErrMigrated) {
			return dErrors.Wrap(err, dErrors.CodeMigrated, "label already migrated")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "load listing")
	}
	target := listing.MigrationTarget
	if target == (common.Address{}) {
		return dErrors.New(dErrors.CodeNoMigrationTarget, "no migration target set")
	}

	if err := s.legacy.Transfer(ctx, label, target); err != nil {
		// Listing untouched: the administrator can retry once the legacy
		// registrar is reachable again.
		return dErrors.Wrap(err, dErrors.CodeInternal, "transfer custody to successor")
	}

	if err := s.store.Migrate(ctx, label); err != nil {
		if errors.Is(err, sentinel.ErrMigrated) {
			return dErrors.Wrap(err, dErrors.CodeMigrated, "label already migrated")
		}
		// Custody already moved; the listing must not keep selling.
		s.logger.ErrorContext(ctx, "CRITICAL: custody transferred but listing tombstone failed",
			"label", label.Hex(), "target", target.Hex(), "error", err)
		return dErrors.Wrap(err, dErrors.CodeInternal, "tombstone listing")
	}

	s.sink.Emit(ctx, events.Event{
		Type:   events.TypeRegistrarUpgraded,
		Label:  label,
		Target: target,
	})
	return nil
}
