package domain

import "time"

// PasswordReset is an issued reset token bound to a utorid.
type PasswordReset struct {
	ID        string
	Utorid    string
	Token     string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Expired reports whether the token can no longer be redeemed at now.
func (p *PasswordReset) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}
