package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Agamista0/ava-support-backend/pkg/errors"
	"github.com/Agamista0/ava-support-backend/pkg/logger"

	"github.com/Agamista0/ava-support-backend/internal/billing"
	"github.com/Agamista0/ava-support-backend/internal/domain"
	"github.com/Agamista0/ava-support-backend/internal/repository"
)

// Payment webhook event types this service reacts to. Anything else is
// acknowledged and ignored so the provider does not retry forever.
const (
	PaymentEventInvoicePaid          = "invoice.paid"
	PaymentEventSubscriptionCanceled = "subscription.canceled"
	PaymentEventSubscriptionPastDue  = "subscription.past_due"
)

// PaymentEvent is the decoded payload of a provider webhook delivery.
type PaymentEvent struct {
	ID          string `json:"id" validate:"required"`
	Type        string `json:"type" validate:"required"`
	UserID      string `json:"user_id"`
	PlanID      string `json:"plan_id"`
	ProviderRef string `json:"provider_ref"`
}

// BillingEventPublisher fans billing events out to the event bus.
// Publishing is best-effort.
type BillingEventPublisher interface {
	PublishBilling(ctx context.Context, eventType, userID string, data any)
}

// SubscriptionService manages plans, subscriptions, and the webhook-driven
// credit renewal.
type SubscriptionService struct {
	subs      repository.SubscriptionRepository
	webhooks  repository.WebhookEventRepository
	credits   *CreditService
	provider  billing.Provider
	publisher BillingEventPublisher
	plans     map[string]domain.Plan
	planList  []domain.Plan
	logger    *slog.Logger

	now func() time.Time
}

// NewSubscriptionService creates a subscription service over the config-defined
// plan catalog. publisher may be nil.
func NewSubscriptionService(
	subs repository.SubscriptionRepository,
	webhooks repository.WebhookEventRepository,
	credits *CreditService,
	provider billing.Provider,
	publisher BillingEventPublisher,
	plans []domain.Plan,
	log *slog.Logger,
) *SubscriptionService {
	byID := make(map[string]domain.Plan, len(plans))
	for _, p := range plans {
		byID[p.ID] = p
	}
	return &SubscriptionService{
		subs:      subs,
		webhooks:  webhooks,
		credits:   credits,
		provider:  provider,
		publisher: publisher,
		plans:     byID,
		planList:  plans,
		logger:    log,
		now:       time.Now,
	}
}

// Plans returns the catalog.
func (s *SubscriptionService) Plans() []domain.Plan {
	return s.planList
}

// Plan looks a plan up by id.
func (s *SubscriptionService) Plan(id string) (domain.Plan, bool) {
	p, ok := s.plans[id]
	return p, ok
}

// Subscribe opens a checkout session for the plan and records the pending
// subscription. Credits are granted by the invoice.paid webhook, not here.
func (s *SubscriptionService) Subscribe(ctx context.Context, userID, planID string) (*billing.CheckoutSession, error) {
	plan, ok := s.plans[planID]
	if !ok {
		return nil, apperrors.NotFound("plan", planID)
	}

	if existing, err := s.subs.GetActiveForUser(ctx, userID); err == nil && existing != nil {
		return nil, apperrors.AlreadyExists("subscription", "user_id", userID)
	} else if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	checkout, err := s.provider.CreateSubscription(ctx, userID, plan)
	if err != nil {
		return nil, apperrors.Unavailable("payment provider is unreachable")
	}

	now := s.now().UTC()
	periodEnd := now.Add(time.Duration(plan.IntervalDays) * 24 * time.Hour)
	sub := &domain.Subscription{
		ID:               uuid.NewString(),
		UserID:           userID,
		PlanID:           plan.ID,
		ProviderRef:      checkout.ProviderRef,
		Status:           domain.SubscriptionPastDue,
		CurrentPeriodEnd: &periodEnd,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, err
	}

	return checkout, nil
}

// Current returns the user's active subscription.
func (s *SubscriptionService) Current(ctx context.Context, userID string) (*domain.Subscription, error) {
	return s.subs.GetActiveForUser(ctx, userID)
}

// Cancel cancels the user's active subscription at the provider and locally.
// Remaining credits stay spendable until the period ends.
func (s *SubscriptionService) Cancel(ctx context.Context, userID string) error {
	sub, err := s.subs.GetActiveForUser(ctx, userID)
	if err != nil {
		return err
	}

	if sub.ProviderRef != "" {
		if err := s.provider.CancelSubscription(ctx, sub.ProviderRef); err != nil {
			return apperrors.Unavailable("payment provider is unreachable")
		}
	}

	return s.subs.UpdateStatus(ctx, sub.ID, domain.SubscriptionCanceled)
}

// HandlePaymentEvent applies one webhook delivery. The event id is recorded
// before any side effect runs; a replayed id reports processed=false and
// changes nothing.
func (s *SubscriptionService) HandlePaymentEvent(ctx context.Context, event PaymentEvent) (bool, error) {
	first, err := s.webhooks.MarkProcessed(ctx, event.ID, event.Type)
	if err != nil {
		return false, err
	}
	if !first {
		logger.FromContext(ctx).Info("webhook event replayed, skipping",
			slog.String("event_id", event.ID), slog.String("event_type", event.Type))
		return false, nil
	}

	switch event.Type {
	case PaymentEventInvoicePaid:
		return true, s.applyInvoicePaid(ctx, event)
	case PaymentEventSubscriptionCanceled:
		return true, s.applyStatusChange(ctx, event, domain.SubscriptionCanceled)
	case PaymentEventSubscriptionPastDue:
		return true, s.applyStatusChange(ctx, event, domain.SubscriptionPastDue)
	default:
		logger.FromContext(ctx).Info("ignoring unhandled webhook event type",
			slog.String("event_type", event.Type))
		return true, nil
	}
}

// applyInvoicePaid activates the subscription and grants the plan allotment.
func (s *SubscriptionService) applyInvoicePaid(ctx context.Context, event PaymentEvent) error {
	plan, ok := s.plans[event.PlanID]
	if !ok {
		return apperrors.InvalidInput("unknown plan in webhook payload")
	}
	if event.UserID == "" {
		return apperrors.InvalidInput("missing user in webhook payload")
	}

	if event.ProviderRef != "" {
		if sub, err := s.subs.GetByProviderRef(ctx, event.ProviderRef); err == nil {
			if err := s.subs.UpdateStatus(ctx, sub.ID, domain.SubscriptionActive); err != nil {
				return err
			}
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
	}

	if err := s.credits.Allocate(ctx, event.UserID, plan.Credits, event.ProviderRef); err != nil {
		return err
	}

	if s.publisher != nil {
		s.publisher.PublishBilling(ctx, "billing.credits_renewed", event.UserID, map[string]any{
			"plan_id": plan.ID,
			"credits": plan.Credits,
		})
	}
	return nil
}

func (s *SubscriptionService) applyStatusChange(ctx context.Context, event PaymentEvent, status string) error {
	if event.ProviderRef == "" {
		return apperrors.InvalidInput("missing provider reference in webhook payload")
	}

	sub, err := s.subs.GetByProviderRef(ctx, event.ProviderRef)
	if err != nil {
		return err
	}
	if err := s.subs.UpdateStatus(ctx, sub.ID, status); err != nil {
		return err
	}

	if s.publisher != nil {
		s.publisher.PublishBilling(ctx, "billing.subscription_"+status, sub.UserID, map[string]any{
			"plan_id": sub.PlanID,
		})
	}
	return nil
}
