package grouppay

import (
	"context"
	"fmt"

	"github.com/phillip/event-ticketing-go/models"
)

// ListMyTickets returns the tickets owned by the caller.
func (s *Service) ListMyTickets(ctx context.Context, principal models.Principal) ([]models.Ticket, error) {
	tickets, err := s.store.ListTicketsByOwner(ctx, principal.ID)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return tickets, nil
}

// VerifyTicket resolves a scanned credential to its ticket. Only the
// credential stored on the ticket is accepted.
func (s *Service) VerifyTicket(ctx context.Context, token string) (*models.Ticket, error) {
	ticketID, err := s.issuer.VerifyCredential(token)
	if err != nil {
		return nil, err
	}
	ticket, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: unknown ticket", ErrInvalidCredential)
		}
		return nil, fmt.Errorf("load ticket: %w", err)
	}
	if ticket.Credential != token || ticket.Status != models.TicketActive {
		return nil, fmt.Errorf("%w: credential superseded or ticket inactive", ErrInvalidCredential)
	}
	return ticket, nil
}
