package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/points-ledger/internal/api/dto"
	"github.com/spec-kit/points-ledger/internal/domain"
	"github.com/spec-kit/points-ledger/internal/service"
	apperrors "github.com/spec-kit/points-ledger/pkg/util/errorutil"
)

// TransactionsHandler exposes staff ledger endpoints.
type TransactionsHandler struct {
	service *service.TransactionService
}

// NewTransactionsHandler constructs handler.
func NewTransactionsHandler(transactionService *service.TransactionService) *TransactionsHandler {
	return &TransactionsHandler{service: transactionService}
}

// Create handles POST /transactions for purchases and adjustments.
func (h *TransactionsHandler) Create(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateTransactionRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	switch domain.TransactionType(req.Type) {
	case domain.TransactionPurchase:
		if req.Spent == nil {
			return apperrors.NewValidationError("spent is required", nil)
		}
		tx, err := h.service.CreatePurchase(c.UserContext(), actor, service.PurchaseInput{
			Utorid:       req.Utorid,
			Spent:        *req.Spent,
			PromotionIDs: req.PromotionIDs,
			Remark:       req.Remark,
		})
		if err != nil {
			return err
		}
		return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewPurchaseResponse(tx)})
	case domain.TransactionAdjustment:
		tx, err := h.service.CreateAdjustment(c.UserContext(), actor, service.AdjustmentInput{
			Utorid:    req.Utorid,
			Amount:    req.Amount,
			RelatedID: req.RelatedID,
			Remark:    req.Remark,
		})
		if err != nil {
			return err
		}
		return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewAdjustmentResponse(tx)})
	default:
		return apperrors.NewValidationError("type must be purchase or adjustment", map[string]any{"type": req.Type})
	}
}

// Get handles GET /transactions/:transactionId.
func (h *TransactionsHandler) Get(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "transactionId")
	if err != nil {
		return err
	}
	tx, err := h.service.GetTransaction(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTransactionResponse(tx)})
}

// SetSuspicious handles PATCH /transactions/:transactionId/suspicious.
func (h *TransactionsHandler) SetSuspicious(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "transactionId")
	if err != nil {
		return err
	}
	var req dto.SuspiciousRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	tx, err := h.service.SetSuspicious(c.UserContext(), actor, id, *req.Suspicious)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTransactionResponse(tx)})
}

// Process handles PATCH /transactions/:transactionId/processed.
func (h *TransactionsHandler) Process(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "transactionId")
	if err != nil {
		return err
	}
	var req dto.ProcessedRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if !*req.Processed {
		return apperrors.NewValidationError("processed must be true", nil)
	}
	tx, err := h.service.ProcessRedemption(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRedemptionResponse(tx)})
}
