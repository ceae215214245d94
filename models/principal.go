package models

// Principal is the authenticated caller as asserted by the identity provider's token.
type Principal struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	IsOrganizer bool   `json:"is_organizer"`
	IsAdmin     bool   `json:"is_admin"`
}
