package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeProvider charges contributions through Stripe Checkout.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	return &StripeProvider{
		api:           client.New(secretKey, nil),
		webhookSecret: webhookSecret,
	}
}

// RequestCharge opens a one-item checkout session for the contribution amount.
func (p *StripeProvider) RequestCharge(ctx context.Context, req ChargeRequest) (*Checkout, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		CustomerEmail:     stripe.String(req.CustomerEmail),
		ClientReferenceID: stripe.String(req.Correlation.ContributionID),
		PaymentMethodTypes: stripe.StringSlice([]string{
			"card",
		}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(req.Currency),
					UnitAmount: stripe.Int64(MinorUnits(req.Amount)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata(MetadataPoolID, req.Correlation.PoolID)
	params.AddMetadata(MetadataContributionID, req.Correlation.ContributionID)
	params.SetIdempotencyKey("contribution-" + req.Correlation.ContributionID)

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &Checkout{SessionID: sess.ID, URL: sess.URL}, nil
}

// ParseSettlement verifies the Stripe-Signature header and maps checkout
// session events to settlements. Events that do not concern a group payment
// contribution return (nil, nil) and should simply be acknowledged.
func (p *StripeProvider) ParseSettlement(payload []byte, signature string) (*Settlement, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if event.Data == nil {
		return nil, nil
	}

	var sess stripe.CheckoutSession
	var outcome Outcome
	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		// delayed payment methods complete the session before the money arrives
		if string(sess.PaymentStatus) == "unpaid" {
			return nil, nil
		}
		outcome = Succeeded
	case "checkout.session.async_payment_failed", "checkout.session.expired":
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		outcome = Failed
	default:
		return nil, nil
	}

	poolID := sess.Metadata[MetadataPoolID]
	contributionID := sess.Metadata[MetadataContributionID]
	if poolID == "" || contributionID == "" {
		return nil, nil
	}

	ref := sess.ID
	if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
		ref = sess.PaymentIntent.ID
	}

	return &Settlement{
		Correlation: Correlation{PoolID: poolID, ContributionID: contributionID},
		PaymentRef:  ref,
		Outcome:     outcome,
		EventID:     event.ID,
		EventType:   string(event.Type),
	}, nil
}
