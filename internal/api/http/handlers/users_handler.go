package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/points-ledger/internal/api/dto"
	"github.com/spec-kit/points-ledger/internal/domain"
	"github.com/spec-kit/points-ledger/internal/service"
	apperrors "github.com/spec-kit/points-ledger/pkg/util/errorutil"
)

// UsersHandler exposes transactions a user starts on their own behalf.
type UsersHandler struct {
	service *service.TransactionService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(transactionService *service.TransactionService) *UsersHandler {
	return &UsersHandler{service: transactionService}
}

// Redeem handles POST /users/me/transactions.
func (h *UsersHandler) Redeem(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	req, err := parseUserTransaction(c, domain.TransactionRedemption)
	if err != nil {
		return err
	}
	tx, err := h.service.CreateRedemption(c.UserContext(), user, service.RedemptionInput{
		Amount: *req.Amount,
		Remark: req.Remark,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewRedemptionResponse(tx)})
}

// Transfer handles POST /users/:userId/transactions.
func (h *UsersHandler) Transfer(c *fiber.Ctx) error {
	sender, err := currentUser(c)
	if err != nil {
		return err
	}
	recipientID, err := idParam(c, "userId")
	if err != nil {
		return err
	}
	req, err := parseUserTransaction(c, domain.TransactionTransfer)
	if err != nil {
		return err
	}
	result, err := h.service.CreateTransfer(c.UserContext(), sender, service.TransferInput{
		RecipientID: recipientID,
		Amount:      *req.Amount,
		Remark:      req.Remark,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTransferResponse(result)})
}

func parseUserTransaction(c *fiber.Ctx, want domain.TransactionType) (*dto.UserTransactionRequest, error) {
	var req dto.UserTransactionRequest
	if err := bindJSON(c, &req); err != nil {
		return nil, err
	}
	if domain.TransactionType(req.Type) != want {
		return nil, apperrors.NewValidationError("type must be "+string(want), map[string]any{"type": req.Type})
	}
	return &req, nil
}
