package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/points-ledger/internal/api/dto"
	"github.com/spec-kit/points-ledger/internal/service"
)

// AuthHandler exposes login and password reset endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /auth/tokens.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	token, exp, err := h.auth.Login(c.UserContext(), req.Utorid, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AuthResponse{Token: token, ExpiresAt: exp}})
}

// RequestReset handles POST /auth/resets.
func (h *AuthHandler) RequestReset(c *fiber.Ctx) error {
	var req dto.ResetRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	reset, err := h.auth.RequestPasswordReset(c.UserContext(), req.Utorid)
	if err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": dto.ResetResponse{
		ResetToken: reset.Token,
		ExpiresAt:  reset.ExpiresAt,
	}})
}

// ConfirmReset handles POST /auth/resets/:resetToken.
func (h *AuthHandler) ConfirmReset(c *fiber.Ctx) error {
	var req dto.ResetConfirmRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if err := h.auth.ConfirmPasswordReset(c.UserContext(), c.Params("resetToken"), req.Utorid, req.Password); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"message": "password reset"}})
}
