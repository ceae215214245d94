// Package payment talks to the external payment collaborator: it opens a
// hosted checkout for a contribution and turns the provider's signed
// webhook deliveries back into settlement notifications.
package payment

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Metadata keys carried on the checkout so the callback can be matched back.
const (
	MetadataPoolID         = "groupPaymentId"
	MetadataContributionID = "contributionId"
)

var (
	ErrUnavailable      = errors.New("payment provider unavailable")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

type Outcome string

const (
	Succeeded Outcome = "succeeded"
	Failed    Outcome = "failed"
)

// Correlation identifies the contribution a charge belongs to.
type Correlation struct {
	PoolID         string
	ContributionID string
}

type ChargeRequest struct {
	Amount        decimal.Decimal
	Currency      string
	Correlation   Correlation
	CustomerEmail string
	Description   string
	SuccessURL    string
	CancelURL     string
}

// Checkout is the handle the contributor is redirected to.
type Checkout struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// Settlement is a verified payment result for one contribution.
type Settlement struct {
	Correlation
	PaymentRef string
	Outcome    Outcome
	EventID    string
	EventType  string
}

// MinorUnits converts a decimal amount to the provider's integer minor units.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// SettlementParser verifies a raw webhook delivery and extracts the
// settlement it carries. A nil settlement means the delivery is valid but
// not a group payment result.
type SettlementParser interface {
	ParseSettlement(payload []byte, signature string) (*Settlement, error)
}

var _ SettlementParser = (*StripeProvider)(nil)
