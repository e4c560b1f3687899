// Package reconcile repairs the booking back-reference indexes so that
// they match the bookings' forward references.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirinyoku/cinebook/internal/domain"
	"github.com/kirinyoku/cinebook/internal/repository"
	"github.com/kirinyoku/cinebook/internal/telemetry"
	"github.com/kirinyoku/cinebook/internal/uow"
)

type Service struct {
	uow     *uow.UoW
	metrics *telemetry.BookingMetrics
	log     *slog.Logger
}

func New(u *uow.UoW, metrics *telemetry.BookingMetrics, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{uow: u, metrics: metrics, log: log}
}

// Sweep removes index entries without a matching booking and then attaches
// bookings missing from the indexes, in one transaction.
func (s *Service) Sweep(ctx context.Context) (domain.ReconcileReport, error) {
	const op = "service.reconcile.Sweep"

	var report domain.ReconcileReport

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Tx, after func(uow.AfterCommit)) error {
		removed, err := tx.Index().RemoveDangling(ctx)
		if err != nil {
			return err
		}

		attached, err := tx.Index().AttachMissing(ctx)
		if err != nil {
			return err
		}

		report = domain.ReconcileReport{DanglingRemoved: removed, MissingAttached: attached}

		after(func(ctx context.Context) {
			s.metrics.Repaired(ctx, removed, attached)
		})

		return nil
	})
	if err != nil {
		return domain.ReconcileReport{}, fmt.Errorf("%s:%w", op, err)
	}

	return report, nil
}

// Run sweeps every interval until ctx is cancelled. A failed sweep is
// logged and retried on the next tick.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			report, err := s.Sweep(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.log.Error("reconcile sweep failed", "err", err)
				continue
			}

			if report.DanglingRemoved > 0 || report.MissingAttached > 0 {
				s.log.Warn("reconcile repaired index",
					"dangling_removed", report.DanglingRemoved,
					"missing_attached", report.MissingAttached,
				)
			}
		}
	}
}
