package grouppay

import (
	"context"
	"errors"
	"fmt"

	"github.com/phillip/event-ticketing-go/ledger"
	"github.com/phillip/event-ticketing-go/logger"
	"github.com/phillip/event-ticketing-go/metrics"
	"github.com/phillip/event-ticketing-go/models"
	"github.com/phillip/event-ticketing-go/notify"
)

// TryFinalize converts a fully funded pending pool into tickets. Only the
// caller that wins the pending to completed transition issues tickets;
// every other caller gets false. When the transition succeeds but some
// tickets could not be issued, it returns true with the issuance error.
func (s *Service) TryFinalize(ctx context.Context, poolID string) (bool, error) {
	finalized, _, err := s.finalize(ctx, poolID)
	return finalized, err
}

// finalize is TryFinalize that also reports how many tickets the winner
// issued.
func (s *Service) finalize(ctx context.Context, poolID string) (bool, int, error) {
	pool, err := s.store.GetPool(ctx, poolID)
	if err != nil {
		return false, 0, fmt.Errorf("pool %s: %w", poolID, err)
	}
	if pool.Status != models.PoolPending {
		return false, 0, nil
	}

	sum, err := s.store.SumCompleted(ctx, poolID)
	if err != nil {
		return false, 0, fmt.Errorf("sum pool %s: %w", poolID, err)
	}
	if sum.LessThan(pool.TargetAmount) {
		return false, 0, nil
	}

	won, err := s.store.TransitionPool(ctx, poolID, models.PoolPending, models.PoolCompleted, s.now())
	if err != nil {
		return false, 0, fmt.Errorf("complete pool %s: %w", poolID, err)
	}
	if !won {
		return false, 0, nil
	}
	pool.Status = models.PoolCompleted

	metrics.PoolsFinalized.Inc()
	log := logger.WithPoolID(poolID)
	log.Info().
		Str("sum_completed", sum.StringFixed(2)).
		Str("target_amount", pool.TargetAmount.StringFixed(2)).
		Msg("Pool funded")
	if sum.GreaterThan(pool.TargetAmount) {
		log.Warn().Str("excess", sum.Sub(pool.TargetAmount).StringFixed(2)).Msg("Pool overfunded")
	}

	issued, err := s.issuePool(ctx, pool)
	log.Info().Int("tickets", issued).Msg("Tickets issued")
	return true, issued, err
}

// ResumeIssuance issues any tickets a completed pool still owes. A pending
// pool is offered to TryFinalize instead. It returns the number of tickets
// issued by this call.
func (s *Service) ResumeIssuance(ctx context.Context, poolID string) (int, error) {
	pool, err := s.store.GetPool(ctx, poolID)
	if err != nil {
		return 0, fmt.Errorf("pool %s: %w", poolID, err)
	}

	switch pool.Status {
	case models.PoolCompleted:
		return s.issuePool(ctx, pool)
	case models.PoolPending:
		_, issued, err := s.finalize(ctx, poolID)
		return issued, err
	default:
		return 0, nil
	}
}

type RecoveryReport struct {
	PoolsFinalized int `json:"pools_finalized"`
	TicketsIssued  int `json:"tickets_issued"`
	Failures       int `json:"failures"`
}

// Recover sweeps the ledger for work a crash may have left behind: funded
// pools that never finalized and completed pools missing tickets.
func (s *Service) Recover(ctx context.Context) (RecoveryReport, error) {
	var report RecoveryReport

	pending, err := s.store.ListPoolsByStatus(ctx, models.PoolPending)
	if err != nil {
		return report, fmt.Errorf("list pending pools: %w", err)
	}
	for _, p := range pending {
		finalized, err := s.TryFinalize(ctx, p.ID)
		if finalized {
			report.PoolsFinalized++
		}
		if err != nil {
			report.Failures++
			s.logger.Error().Err(err).Str("pool_id", p.ID).Msg("Recovery: finalize failed")
		}
	}

	// Pools finalized above are listed again here; their tickets already exist.
	completed, err := s.store.ListPoolsByStatus(ctx, models.PoolCompleted)
	if err != nil {
		return report, fmt.Errorf("list completed pools: %w", err)
	}
	for i := range completed {
		n, err := s.issuePool(ctx, &completed[i])
		report.TicketsIssued += n
		if err != nil {
			report.Failures++
			s.logger.Error().Err(err).Str("pool_id", completed[i].ID).Msg("Recovery: issuance failed")
		}
	}

	s.logger.Info().
		Int("pools_finalized", report.PoolsFinalized).
		Int("tickets_issued", report.TicketsIssued).
		Int("failures", report.Failures).
		Msg("Recovery sweep finished")
	return report, nil
}

// issuePool issues a ticket for every completed contribution that lacks
// one. It keeps going past failures and returns the first error.
func (s *Service) issuePool(ctx context.Context, pool *models.FundingPool) (int, error) {
	rows, err := s.store.ListContributions(ctx, pool.ID)
	if err != nil {
		return 0, fmt.Errorf("list contributions: %w", err)
	}

	issued := 0
	var firstErr error
	for i := range rows {
		if rows[i].Status != models.ContributionCompleted {
			continue
		}
		_, created, err := s.issueTicket(ctx, pool, &rows[i])
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if created {
			issued++
		}
	}
	return issued, firstErr
}

// issueTicket mints the ticket for one completed contribution. It is safe
// to call repeatedly and concurrently: an existing ticket is returned with
// created=false.
func (s *Service) issueTicket(ctx context.Context, pool *models.FundingPool, c *models.Contribution) (*models.Ticket, bool, error) {
	existing, err := s.store.TicketForContribution(ctx, c.ID)
	if err == nil {
		return existing, false, nil
	}
	if !isNotFound(err) {
		return nil, false, fmt.Errorf("lookup ticket for contribution %s: %w", c.ID, err)
	}

	ticket := &models.Ticket{
		ID:             s.newID(),
		EventID:        pool.EventID,
		TicketTierID:   pool.TicketTierID,
		PoolID:         pool.ID,
		ContributionID: c.ID,
		OwnerID:        c.ContributorID,
		OwnerEmail:     c.ContributorEmail,
		PaymentRef:     c.PaymentRef,
		Status:         models.TicketActive,
		CreatedAt:      s.now(),
	}

	token, err := s.issuer.IssueCredential(ctx, ticket)
	if err != nil {
		metrics.IssuanceFailures.Inc()
		if !errors.Is(err, ErrIssuanceUnavailable) {
			err = fmt.Errorf("%w: %v", ErrIssuanceUnavailable, err)
		}
		return nil, false, fmt.Errorf("issue credential for contribution %s: %w", c.ID, err)
	}
	ticket.Credential = token

	if err := s.store.InsertTicket(ctx, ticket); err != nil {
		if errors.Is(err, ledger.ErrTicketExists) {
			existing, lerr := s.store.TicketForContribution(ctx, c.ID)
			if lerr != nil {
				return nil, false, fmt.Errorf("lookup ticket for contribution %s: %w", c.ID, lerr)
			}
			return existing, false, nil
		}
		metrics.IssuanceFailures.Inc()
		return nil, false, fmt.Errorf("store ticket for contribution %s: %w", c.ID, err)
	}

	// Only the issuer whose insert landed publishes an image.
	s.attachQR(ctx, ticket)

	if err := s.store.IncrementTierSold(ctx, pool.TicketTierID, 1); err != nil {
		s.logger.Error().Err(err).Str("tier_id", pool.TicketTierID).Str("ticket_id", ticket.ID).Msg("Failed to update tier sold count")
	}
	metrics.TicketsIssued.Inc()

	s.notifyOwner(ctx, pool, ticket)
	return ticket, true, nil
}

func (s *Service) attachQR(ctx context.Context, t *models.Ticket) {
	if s.images == nil {
		return
	}
	url, err := s.images.PublishQR(ctx, t.ID, t.Credential)
	if err != nil {
		s.logger.Warn().Err(err).Str("ticket_id", t.ID).Msg("QR upload failed, ticket issued without image")
		return
	}
	if err := s.store.SetTicketQRImage(ctx, t.ID, url); err != nil {
		s.logger.Warn().Err(err).Str("ticket_id", t.ID).Msg("Failed to record QR image")
		return
	}
	t.QRImageURL = url
}

func (s *Service) notifyOwner(ctx context.Context, pool *models.FundingPool, t *models.Ticket) {
	details := notify.TicketDetails{
		TicketID:   t.ID,
		EventTitle: pool.EventID,
		TierName:   pool.TicketTierID,
		Credential: t.Credential,
		QRImageURL: t.QRImageURL,
	}
	if event, err := s.store.GetEvent(ctx, pool.EventID); err == nil {
		details.EventTitle = event.Title
		details.EventLocation = event.Location
		if !event.StartDate.IsZero() {
			details.EventDate = event.StartDate.Format("Monday, January 2, 2006 at 3:04 PM")
		}
	}
	if tier, err := s.store.GetTier(ctx, pool.TicketTierID); err == nil {
		details.TierName = tier.Name
	}

	if err := s.notifier.Notify(ctx, t.OwnerEmail, details); err != nil {
		s.logger.Warn().Err(err).Str("ticket_id", t.ID).Str("to", t.OwnerEmail).Msg("Ticket notification failed")
	}
}
