// Package billing abstracts the payment provider. The real provider lives
// behind webhooks; this process only opens and cancels subscriptions.
package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Agamista0/ava-support-backend/internal/domain"
)

// CheckoutSession is the provider-side handle for a new subscription. The
// client completes payment at the checkout URL; credits are granted by the
// resulting webhook, never synchronously.
type CheckoutSession struct {
	ProviderRef string `json:"provider_ref"`
	CheckoutURL string `json:"checkout_url"`
}

// Provider is the payment provider client.
type Provider interface {
	// CreateSubscription opens a checkout session for the plan.
	CreateSubscription(ctx context.Context, userID string, plan domain.Plan) (*CheckoutSession, error)

	// CancelSubscription cancels the provider-side subscription.
	CancelSubscription(ctx context.Context, providerRef string) error
}

// MockProvider simulates a payment provider for development and tests. Refs
// are random and checkout URLs point at a placeholder host.
type MockProvider struct {
	baseURL string
}

// NewMockProvider creates a mock provider.
func NewMockProvider(baseURL string) *MockProvider {
	if baseURL == "" {
		baseURL = "https://checkout.example.com"
	}
	return &MockProvider{baseURL: baseURL}
}

func (p *MockProvider) CreateSubscription(_ context.Context, _ string, plan domain.Plan) (*CheckoutSession, error) {
	ref := "mock_sub_" + uuid.NewString()
	return &CheckoutSession{
		ProviderRef: ref,
		CheckoutURL: fmt.Sprintf("%s/pay/%s?plan=%s", p.baseURL, ref, plan.ID),
	}, nil
}

func (p *MockProvider) CancelSubscription(_ context.Context, _ string) error {
	return nil
}
