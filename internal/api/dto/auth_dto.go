package dto

import "time"

// LoginRequest payload for POST /auth/tokens.
type LoginRequest struct {
	Utorid   string `json:"utorid" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ResetRequest payload for POST /auth/resets.
type ResetRequest struct {
	Utorid string `json:"utorid" validate:"required"`
}

// ResetResponse returns the issued reset token.
type ResetResponse struct {
	ResetToken string    `json:"resetToken"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// ResetConfirmRequest payload for POST /auth/resets/:resetToken.
type ResetConfirmRequest struct {
	Utorid   string `json:"utorid" validate:"required"`
	Password string `json:"password" validate:"required"`
}
