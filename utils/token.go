package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/phillip/event-ticketing-go/models"
)

// AccessClaims is the identity provider's bearer token payload.
type AccessClaims struct {
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	IsOrganizer bool   `json:"isOrganizer"`
	IsAdmin     bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// GenerateAccessToken signs a bearer token for p.
func GenerateAccessToken(secret string, p models.Principal, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is required")
	}
	now := time.Now()
	claims := AccessClaims{
		UserID:      p.ID,
		Email:       p.Email,
		IsOrganizer: p.IsOrganizer,
		IsAdmin:     p.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseAccessToken validates a bearer token and returns the principal it names.
func ParseAccessToken(secret, token string) (models.Principal, error) {
	claims := &AccessClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.Principal{}, fmt.Errorf("invalid token: %w", err)
	}
	if claims.UserID == "" {
		return models.Principal{}, errors.New("invalid token: missing userId")
	}
	return models.Principal{
		ID:          claims.UserID,
		Email:       claims.Email,
		IsOrganizer: claims.IsOrganizer,
		IsAdmin:     claims.IsAdmin,
	}, nil
}
