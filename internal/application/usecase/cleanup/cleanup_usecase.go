package cleanup

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/khoahotran/openforge/internal/application/service"
	"github.com/khoahotran/openforge/internal/domain/pin"
	"github.com/khoahotran/openforge/pkg/apperror"
	"github.com/khoahotran/openforge/pkg/logger"
	"github.com/khoahotran/openforge/pkg/metrics"
)

const defaultSweepBatch = 100

// CleanupUseCase unpins content the gateway no longer references. All of
// it is best effort: a failed unpin leaves the ledger row for the next
// sweep.
type CleanupUseCase struct {
	pinner service.Pinner
	ledger pin.Repository
	grace  time.Duration
	batch  int
	logger logger.Logger
	now    func() time.Time
}

func NewCleanupUseCase(pinner service.Pinner, ledger pin.Repository, grace time.Duration, log logger.Logger) *CleanupUseCase {
	return &CleanupUseCase{
		pinner: pinner,
		ledger: ledger,
		grace:  grace,
		batch:  defaultSweepBatch,
		logger: log,
		now:    time.Now,
	}
}

// ProcessEvent handles one pin.events message.
func (uc *CleanupUseCase) ProcessEvent(ctx context.Context, ev service.PinEvent) error {
	log := uc.logger.With(zap.String("cid", ev.CID), zap.String("event_type", ev.EventType))
	switch ev.EventType {
	case service.EventCIDSuperseded, service.EventCIDOrphaned:
	default:
		log.Warn("Ignoring unknown pin event")
		return nil
	}
	if ev.CID == "" {
		log.Warn("Ignoring pin event without CID")
		return nil
	}

	if uc.ledger != nil {
		entry, err := uc.ledger.FindByCID(ctx, ev.CID)
		switch {
		case err == nil && entry.Status == pin.StatusReferenced:
			// Published again after the event was emitted.
			log.Info("Skipping unpin of referenced content")
			return nil
		case err == nil && entry.Status == pin.StatusUnpinned:
			return nil
		case err != nil && !errors.Is(err, apperror.ErrNotFound):
			log.Warn("Pin ledger lookup failed, unpinning anyway", zap.Error(err))
		}
	}

	if err := uc.unpin(ctx, ev.CID); err != nil {
		log.Error("Failed to unpin content", err, zap.String("reason", ev.Reason))
		return err
	}
	log.Info("Unpinned content", zap.String("reason", ev.Reason))
	return nil
}

// Sweep unpins uploads that were never referenced within the grace period,
// and superseded content whose cleanup event was lost. It returns how many
// CIDs were unpinned.
func (uc *CleanupUseCase) Sweep(ctx context.Context) (int, error) {
	if uc.ledger == nil {
		return 0, nil
	}
	cutoff := uc.now().UTC().Add(-uc.grace)

	unpinned := 0
	for _, status := range []pin.Status{pin.StatusPinned, pin.StatusSuperseded} {
		entries, err := uc.ledger.ListStale(ctx, status, cutoff, uc.batch)
		if err != nil {
			return unpinned, err
		}
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return unpinned, err
			}
			if err := uc.unpin(ctx, e.CID); err != nil {
				uc.logger.Warn("Sweep failed to unpin", zap.String("cid", e.CID), zap.Error(err))
				continue
			}
			unpinned++
		}
	}

	if unpinned > 0 {
		uc.logger.Info("Pin sweep finished", zap.Int("unpinned", unpinned), zap.Time("cutoff", cutoff))
	}
	return unpinned, nil
}

func (uc *CleanupUseCase) unpin(ctx context.Context, cid string) error {
	err := uc.pinner.Unpin(ctx, cid)
	switch {
	case err == nil:
		metrics.PinOperations.WithLabelValues("unpin", "ok").Inc()
	case errors.Is(err, apperror.ErrNotFound):
		// Already gone upstream.
		metrics.PinOperations.WithLabelValues("unpin", "not_found").Inc()
	default:
		metrics.PinOperations.WithLabelValues("unpin", "failed").Inc()
		return err
	}

	if uc.ledger != nil {
		if err := uc.ledger.MarkStatus(ctx, []string{cid}, pin.StatusUnpinned); err != nil {
			uc.logger.Warn("Failed to mark ledger entry unpinned", zap.String("cid", cid), zap.Error(err))
		}
	}
	return nil
}
