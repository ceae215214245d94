package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/phillip/event-ticketing-go/logger"
)

// email request payload for ZeptoMail API
type emailRequest struct {
	From     emailAddress  `json:"from"`
	To       []toRecipient `json:"to"`
	Subject  string        `json:"subject"`
	HtmlBody string        `json:"htmlbody"`
}

type emailAddress struct {
	Address string `json:"address"`
}

type toRecipient struct {
	Email emailWithName `json:"email_address"`
}

type emailWithName struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// EmailNotifier sends ticket confirmations through the ZeptoMail HTTP API.
type EmailNotifier struct {
	apiURL string // e.g. https://api.zeptomail.com/v1.1/email
	apiKey string // e.g. Zoho-enczapikey xxxxx
	from   string
	client *http.Client
}

func NewEmailNotifier(apiURL, apiKey, from string) (*EmailNotifier, error) {
	if apiURL == "" || apiKey == "" || from == "" {
		return nil, fmt.Errorf("missing required email config")
	}
	return &EmailNotifier{
		apiURL: apiURL,
		apiKey: apiKey,
		from:   from,
		client: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Notify emails the ticket confirmation to the contributor.
func (n *EmailNotifier) Notify(ctx context.Context, to string, d TicketDetails) error {
	body, err := RenderTicketEmail(d)
	if err != nil {
		return err
	}
	return n.SendEmail(ctx, to, fmt.Sprintf("Your ticket for %s", d.EventTitle), body)
}

// SendEmail sends an HTML email using the ZeptoMail HTTP API
func (n *EmailNotifier) SendEmail(ctx context.Context, to, subject, body string) error {
	log := logger.WithComponent("email")

	payload := emailRequest{
		From: emailAddress{Address: n.from},
		To: []toRecipient{
			{
				Email: emailWithName{
					Address: to,
					Name:    to,
				},
			},
		},
		Subject:  subject,
		HtmlBody: body,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("create email request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", n.apiKey)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("zeptomail API error: %s", resp.Status)
	}

	log.Debug().Str("to", to).Msg("email sent")
	return nil
}
