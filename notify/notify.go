// Package notify delivers ticket confirmations to contributors.
package notify

import (
	"bytes"
	"context"
	"html/template"

	"github.com/phillip/event-ticketing-go/logger"
)

// TicketDetails is what a contributor needs to find and use their ticket.
type TicketDetails struct {
	TicketID      string
	EventTitle    string
	EventDate     string
	EventLocation string
	TierName      string
	Credential    string
	QRImageURL    string
}

var ticketEmail = template.Must(template.New("ticket").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h1>Your Ticket Confirmation</h1>
  <h2>{{.EventTitle}}</h2>
  {{if .EventDate}}<p><strong>Date:</strong> {{.EventDate}}</p>{{end}}
  {{if .EventLocation}}<p><strong>Location:</strong> {{.EventLocation}}</p>{{end}}
  <p><strong>Ticket Type:</strong> {{.TierName}}</p>
  <p><strong>Ticket ID:</strong> {{.TicketID}}</p>
  {{if .QRImageURL}}<div style="text-align: center; margin: 30px 0;">
    <img src="{{.QRImageURL}}" alt="QR Code" style="max-width: 200px;" />
    <p style="font-size: 12px; color: #666;">Scan this QR code at the event entrance</p>
  </div>{{else}}<p style="font-family: monospace; word-break: break-all;">{{.Credential}}</p>{{end}}
</div>`))

// RenderTicketEmail renders the HTML body of a ticket confirmation.
func RenderTicketEmail(d TicketDetails) (string, error) {
	var buf bytes.Buffer
	if err := ticketEmail.Execute(&buf, d); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// LogNotifier records notifications in the log instead of sending them.
// Used when no mail provider is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, to string, d TicketDetails) error {
	log := logger.WithComponent("notify")
	log.Info().
		Str("to", to).
		Str("ticket_id", d.TicketID).
		Str("event", d.EventTitle).
		Msg("ticket notification (no mail provider configured)")
	return nil
}
