package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/points-ledger/internal/config"
	"github.com/spec-kit/points-ledger/internal/events"
)

// NotificationService logs committed ledger changes and fans them out to stub channels.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes Handle to every ledger event so delivery runs
// inline with the publisher.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.LedgerEventTypes() {
		n.dispatcher.Subscribe(eventType, n.Handle)
	}
}

// Handle logs one committed ledger change and fans it out to the stub channels.
func (n *NotificationService) Handle(ctx context.Context, event events.Event) error {
	switch event.Type {
	case events.EventTransactionCreated:
		return n.handleTransactionCreated(ctx, event)
	case events.EventRedemptionProcessed:
		return n.handleRedemptionProcessed(ctx, event)
	case events.EventTransactionSuspiciousChanged:
		return n.handleSuspiciousChanged(ctx, event)
	case events.EventEventPointsAwarded:
		return n.handleEventPointsAwarded(ctx, event)
	default:
		return fmt.Errorf("no notification handler for %q", event.Type)
	}
}

func (n *NotificationService) handleTransactionCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TransactionCreated",
		zap.Int64("transaction_id", event.TransactionID),
		zap.String("actor", event.Actor),
		zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleRedemptionProcessed(ctx context.Context, event events.Event) error {
	n.logger.Info("RedemptionProcessed",
		zap.Int64("transaction_id", event.TransactionID),
		zap.String("actor", event.Actor),
		zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleSuspiciousChanged(ctx context.Context, event events.Event) error {
	n.logger.Warn("TransactionSuspiciousChanged",
		zap.Int64("transaction_id", event.TransactionID),
		zap.String("actor", event.Actor),
		zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleEventPointsAwarded(ctx context.Context, event events.Event) error {
	n.logger.Info("EventPointsAwarded",
		zap.String("actor", event.Actor),
		zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))
}
