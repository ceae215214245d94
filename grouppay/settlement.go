package grouppay

import (
	"context"
	"fmt"

	"github.com/phillip/event-ticketing-go/metrics"
	"github.com/phillip/event-ticketing-go/models"
	"github.com/phillip/event-ticketing-go/payment"
)

// HandleSettlement applies a verified payment result to its contribution.
// Redelivery of a result that was already applied leaves the ledger
// unchanged. A result that cannot be matched to the ledger is returned as
// ErrDataIntegrity and must not be acknowledged to the provider.
func (s *Service) HandleSettlement(ctx context.Context, n payment.Settlement) error {
	log := s.logger.With().
		Str("pool_id", n.PoolID).
		Str("contribution_id", n.ContributionID).
		Str("payment_ref", n.PaymentRef).
		Str("provider_event", n.EventID).
		Logger()

	if n.Outcome != payment.Succeeded && n.Outcome != payment.Failed {
		return fmt.Errorf("%w: unknown outcome %q", ErrInvalidRequest, n.Outcome)
	}

	c, err := s.store.GetContribution(ctx, n.ContributionID)
	if err != nil {
		if isNotFound(err) {
			return s.integrityError(fmt.Errorf("%w: unknown contribution %q", ErrDataIntegrity, n.ContributionID))
		}
		return fmt.Errorf("load contribution: %w", err)
	}
	if n.PoolID != "" && c.PoolID != n.PoolID {
		return s.integrityError(fmt.Errorf("%w: contribution %s belongs to pool %s, not %s", ErrDataIntegrity, c.ID, c.PoolID, n.PoolID))
	}
	pool, err := s.store.GetPool(ctx, c.PoolID)
	if err != nil {
		if isNotFound(err) {
			return s.integrityError(fmt.Errorf("%w: unknown pool %q", ErrDataIntegrity, c.PoolID))
		}
		return fmt.Errorf("load pool: %w", err)
	}

	to := models.ContributionCompleted
	if n.Outcome == payment.Failed {
		to = models.ContributionFailed
	}

	settled, applied, err := s.store.SettleContribution(ctx, c.ID, to, n.PaymentRef, s.now())
	if err != nil {
		return fmt.Errorf("settle contribution: %w", err)
	}
	if !applied {
		metrics.DuplicateSettlements.Inc()
		log.Debug().Str("status", string(settled.Status)).Msg("Settlement already applied")
		// A previous delivery may have stopped before finalizing. TryFinalize
		// is a no-op unless the pool is funded and still pending.
		if settled.Status == models.ContributionCompleted && pool.Status == models.PoolPending {
			return s.finalizeAfterSettlement(ctx, pool.ID)
		}
		return nil
	}

	metrics.Settlements.WithLabelValues(string(n.Outcome)).Inc()
	if to == models.ContributionFailed {
		log.Info().Msg("Contribution failed, slot released")
		return nil
	}
	log.Info().Str("amount", settled.Amount.StringFixed(2)).Msg("Contribution completed")

	if pool.Status == models.PoolPending {
		if err := s.finalizeAfterSettlement(ctx, pool.ID); err != nil {
			return err
		}
	}
	return s.settleIntoClosedPool(ctx, settled)
}

// settleIntoClosedPool runs once the pool may have left pending. A payment
// into a completed pool earns its ticket even when finalization happened
// without it; one into a cancelled pool needs a refund.
func (s *Service) settleIntoClosedPool(ctx context.Context, c *models.Contribution) error {
	pool, err := s.store.GetPool(ctx, c.PoolID)
	if err != nil {
		return fmt.Errorf("reload pool: %w", err)
	}

	switch pool.Status {
	case models.PoolCompleted:
		if _, _, err := s.issueTicket(ctx, pool, c); err != nil {
			s.logger.Error().Err(err).Str("contribution_id", c.ID).Msg("Ticket issuance failed, left for recovery sweep")
		}
	case models.PoolCancelled:
		s.logger.Warn().
			Str("pool_id", pool.ID).
			Str("contribution_id", c.ID).
			Str("amount", c.Amount.StringFixed(2)).
			Msg("Payment received for cancelled pool, refund required")
	}
	return nil
}

func (s *Service) finalizeAfterSettlement(ctx context.Context, poolID string) error {
	finalized, err := s.TryFinalize(ctx, poolID)
	if err == nil {
		return nil
	}
	if finalized {
		// Funding is decided; issuance is retried by the recovery sweep.
		s.logger.Error().Err(err).Str("pool_id", poolID).Msg("Ticket issuance incomplete, left for recovery sweep")
		return nil
	}
	return fmt.Errorf("finalize pool %s: %w", poolID, err)
}

func (s *Service) integrityError(err error) error {
	metrics.DataIntegrityErrors.Inc()
	s.logger.Error().Err(err).Msg("Unreconciled payment settlement")
	return err
}
