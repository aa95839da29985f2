package service

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	apperrors "github.com/Agamista0/ava-support-backend/pkg/errors"
	"github.com/Agamista0/ava-support-backend/pkg/logger"

	"github.com/Agamista0/ava-support-backend/internal/domain"
)

// Classifier assigns a category and priority to a support message.
type Classifier interface {
	Classify(ctx context.Context, subject, message string) (*domain.Classification, error)
}

// Transcriber converts an audio recording to text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

// TicketCreator files a ticket in the external issue tracker.
type TicketCreator interface {
	CreateTicket(ctx context.Context, summary, description, category, priority string) (*domain.TicketRef, error)
}

// SupportService handles support requests and audio transcription. Either
// path is disabled when its integration is not configured; the credit charge
// only happens on an enabled path.
type SupportService struct {
	credits     *CreditService
	classifier  Classifier
	tracker     TicketCreator
	transcriber Transcriber
	requestCost int
	logger      *slog.Logger
}

// NewSupportService creates a support service. classifier, tracker, and
// transcriber may be nil when the corresponding integration is off.
func NewSupportService(credits *CreditService, classifier Classifier, tracker TicketCreator, transcriber Transcriber, requestCost int, log *slog.Logger) *SupportService {
	if requestCost <= 0 {
		requestCost = 1
	}
	return &SupportService{
		credits:     credits,
		classifier:  classifier,
		tracker:     tracker,
		transcriber: transcriber,
		requestCost: requestCost,
		logger:      log,
	}
}

// SupportTicket is the result of a filed support request.
type SupportTicket struct {
	Ticket         *domain.TicketRef      `json:"ticket"`
	Classification *domain.Classification `json:"classification"`
	CreditsUsed    int                    `json:"credits_used"`
}

// CreateRequest charges the user, classifies the message, and files a ticket.
// The charge happens first so a user without credits never reaches the
// downstream integrations.
func (s *SupportService) CreateRequest(ctx context.Context, userID, subject, message string) (*SupportTicket, error) {
	if s.classifier == nil || s.tracker == nil {
		return nil, featureDisabled("support requests")
	}

	if err := s.credits.Consume(ctx, userID, s.requestCost, "support_request", ""); err != nil {
		return nil, err
	}

	classification, err := s.classifier.Classify(ctx, subject, message)
	if err != nil {
		// The credit is spent; classification falls back to a default bucket
		// rather than failing the request.
		logger.FromContext(ctx).Warn("classification failed, using default",
			slog.String("user_id", userID), slog.Any("error", err))
		classification = &domain.Classification{
			Category: "general",
			Priority: "medium",
			Summary:  subject,
		}
	}

	ticket, err := s.tracker.CreateTicket(ctx, subject, message, classification.Category, classification.Priority)
	if err != nil {
		return nil, err
	}

	return &SupportTicket{
		Ticket:         ticket,
		Classification: classification,
		CreditsUsed:    s.requestCost,
	}, nil
}

// Transcribe charges the user and converts the uploaded audio to text.
func (s *SupportService) Transcribe(ctx context.Context, userID, filename string, audio io.Reader) (string, error) {
	if s.transcriber == nil {
		return "", featureDisabled("audio transcription")
	}

	if err := s.credits.Consume(ctx, userID, s.requestCost, "transcription", filename); err != nil {
		return "", err
	}

	text, err := s.transcriber.Transcribe(ctx, filename, audio)
	if err != nil {
		return "", err
	}

	return text, nil
}

// featureDisabled is the 503 returned when an optional integration is not
// configured.
func featureDisabled(feature string) *apperrors.AppError {
	return &apperrors.AppError{
		Code:    "FEATURE_DISABLED",
		Message: feature + " not available on this deployment",
		Status:  http.StatusServiceUnavailable,
		Err:     apperrors.ErrUnavailable,
	}
}
