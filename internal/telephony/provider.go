package telephony

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// VoiceProvider is the provider-agnostic contract used by internal/calls.
//
// Rules:
// - No provider HTTP calls outside telephony adapters.
// - Adapters never retry; callers decide how to surface failures.
type VoiceProvider interface {
	Name() string

	StartOutboundCall(ctx context.Context, req OutboundCallRequest) (OutboundCallResult, error)
	FetchConversation(ctx context.Context, conversationID string) (Conversation, error)
	EndCall(ctx context.Context, conversationID string) error
}

// OutboundCallRequest asks the provider to dial ToNumber with the configured agent.
type OutboundCallRequest struct {
	// ToNumber is passed through as given; E.164 where possible.
	ToNumber string `json:"to_number"`
}

type OutboundCallResult struct {
	// ConversationID is the provider's identifier for this call attempt.
	ConversationID string `json:"conversation_id"`
	// CallSID is the carrier leg identifier, if the provider returns one.
	CallSID string `json:"call_sid,omitempty"`
	Message string `json:"message,omitempty"`
}

// Conversation is the provider's live view of a call.
type Conversation struct {
	ConversationID string           `json:"conversation_id"`
	Status         string           `json:"status"`
	StartedAt      *time.Time       `json:"started_at,omitempty"`
	DurationSecs   int              `json:"duration_secs"`
	Transcript     []TranscriptTurn `json:"transcript"`
}

type TranscriptTurn struct {
	Role           string `json:"role"`
	Message        string `json:"message"`
	TimeInCallSecs int    `json:"time_in_call_secs"`
}

var (
	// ErrTimeout is returned when the provider did not answer within the
	// adapter's timeout.
	ErrTimeout = errors.New("telephony: provider request timed out")
	// ErrNotConfigured is returned when the provider credential is missing.
	ErrNotConfigured = errors.New("telephony: provider credential not configured")
	// ErrMissingConversationID is returned when a start-call response has no id.
	ErrMissingConversationID = errors.New("telephony: provider response missing conversation_id")
)

// APIError is a non-success response from the provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("telephony: provider returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("telephony: provider returned status %d: %s", e.StatusCode, e.Message)
}

// StatusCode returns the provider HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
