package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/points-ledger/internal/api/dto"
	"github.com/spec-kit/points-ledger/internal/service"
)

// EventsHandler exposes event point awards.
type EventsHandler struct {
	service *service.TransactionService
}

// NewEventsHandler constructs handler.
func NewEventsHandler(transactionService *service.TransactionService) *EventsHandler {
	return &EventsHandler{service: transactionService}
}

// Award handles POST /events/:eventId/transactions. Without a utorid every guest is awarded.
func (h *EventsHandler) Award(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	eventID, err := idParam(c, "eventId")
	if err != nil {
		return err
	}
	var req dto.EventTransactionRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	result, err := h.service.CreateEventAward(c.UserContext(), actor, service.EventAwardInput{
		EventID: eventID,
		Utorid:  req.Utorid,
		Amount:  *req.Amount,
	})
	if err != nil {
		return err
	}
	views := dto.NewEventAwardResponses(result)
	if result.Single {
		return c.Status(http.StatusCreated).JSON(fiber.Map{"data": views[0]})
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": views})
}
