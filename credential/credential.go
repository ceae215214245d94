// Package credential mints and verifies the scannable token printed on a
// ticket, and optionally publishes it as a QR code image.
package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/phillip/event-ticketing-go/models"
)

const issuerName = "ticketpool"

var (
	ErrUnavailable       = errors.New("credential issuance unavailable")
	ErrInvalidCredential = errors.New("invalid credential")
)

// Claims carried inside a ticket credential. The subject is the ticket id.
type Claims struct {
	EventID string `json:"evt"`
	TierID  string `json:"tier"`
	OwnerID string `json:"own"`
	jwt.RegisteredClaims
}

// Issuer signs ticket credentials with an HMAC key.
type Issuer struct {
	secret []byte
}

func NewIssuer(secret string) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("credential secret is required")
	}
	return &Issuer{secret: []byte(secret)}, nil
}

// IssueCredential returns a unique token for the ticket. Every call mints a
// fresh token id, so two calls for the same ticket never collide.
func (i *Issuer) IssueCredential(ctx context.Context, t *models.Ticket) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	claims := Claims{
		EventID: t.EventID,
		TierID:  t.TicketTierID,
		OwnerID: t.OwnerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   issuerName,
			Subject:  t.ID,
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(t.CreatedAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("%w: sign: %v", ErrUnavailable, err)
	}
	return token, nil
}

// VerifyCredential checks the signature and returns the ticket id.
func (i *Issuer) VerifyCredential(token string) (string, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuerName))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if claims.Subject == "" {
		return "", ErrInvalidCredential
	}
	return claims.Subject, nil
}
