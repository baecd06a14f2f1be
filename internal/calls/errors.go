package calls

import (
	"errors"
	"net/http"

	"callbridge/internal/apperr"
	"callbridge/internal/telephony"
)

type providerOp string

const (
	opStart providerOp = "start"
	opEnd   providerOp = "end"
	opFetch providerOp = "fetch"
)

const (
	msgNotConfigured = "ElevenLabs API key not configured. Set ELEVENLABS_API_KEY in the environment."
	msgBadCredential = "Invalid API key. Please check your ElevenLabs API key."
	msgBadPhone      = "Invalid phone number format. Please use international format (e.g., +1234567890)."
	msgRateLimited   = "Rate limit exceeded. Please try again later."
	msgTimeout       = "Request timed out. Please try again."
)

func fallbackMessage(op providerOp) string {
	switch op {
	case opStart:
		return "Failed to initiate call"
	case opEnd:
		return "Failed to end call"
	default:
		return "Failed to fetch call details"
	}
}

// mapProviderError converts a telephony error into the client-facing taxonomy.
func mapProviderError(op providerOp, err error) error {
	if errors.Is(err, telephony.ErrNotConfigured) {
		return apperr.Config(msgNotConfigured)
	}
	if errors.Is(err, telephony.ErrTimeout) {
		return apperr.Provider(http.StatusRequestTimeout, msgTimeout, err)
	}

	var apiErr *telephony.APIError
	if !errors.As(err, &apiErr) {
		return apperr.Provider(http.StatusInternalServerError, fallbackMessage(op), err)
	}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized:
		return apperr.Provider(http.StatusUnauthorized, msgBadCredential, err)
	case http.StatusTooManyRequests:
		return apperr.Provider(http.StatusTooManyRequests, msgRateLimited, err)
	case http.StatusBadRequest:
		if op == opStart {
			return apperr.Provider(http.StatusBadRequest, msgBadPhone, err)
		}
		return apperr.Provider(http.StatusBadRequest, messageOr(apiErr.Message, fallbackMessage(op)), err)
	case http.StatusNotFound:
		if op == opFetch {
			return apperr.Provider(http.StatusNotFound, messageOr(apiErr.Message, "Conversation not found at provider"), err)
		}
	}
	return apperr.Provider(http.StatusInternalServerError, messageOr(apiErr.Message, fallbackMessage(op)), err)
}

func messageOr(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}
