package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"callbridge/internal/config"
)

const (
	headerAPIKey = "xi-api-key"

	pathOutboundCall = "/v1/convai/twilio/outbound-call"
	pathConversation = "/v1/convai/conversations/"

	maxErrorBody = 64 << 10
)

// ConvAIClient is the ElevenLabs Conversational AI adapter. Outbound calls are
// placed through the provider's Twilio integration using the configured agent
// and agent phone number.
type ConvAIClient struct {
	apiKey             string
	agentID            string
	agentPhoneNumberID string
	baseURL            string

	startTimeout   time.Duration
	requestTimeout time.Duration

	client *http.Client
}

// NewConvAIClient builds the adapter from validated config. httpClient may be
// nil; per-operation timeouts are applied through the request context.
func NewConvAIClient(cfg config.VoiceConfig, httpClient *http.Client) *ConvAIClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	startTimeout := cfg.StartTimeout
	if startTimeout <= 0 {
		startTimeout = 30 * time.Second
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 15 * time.Second
	}
	return &ConvAIClient{
		apiKey:             strings.TrimSpace(cfg.APIKey),
		agentID:            cfg.AgentID,
		agentPhoneNumberID: cfg.AgentPhoneNumberID,
		baseURL:            strings.TrimRight(cfg.BaseURL, "/"),
		startTimeout:       startTimeout,
		requestTimeout:     requestTimeout,
		client:             httpClient,
	}
}

func (c *ConvAIClient) Name() string { return "elevenlabs" }

type outboundCallBody struct {
	AgentID            string `json:"agent_id"`
	AgentPhoneNumberID string `json:"agent_phone_number_id"`
	ToNumber           string `json:"to_number"`
}

type outboundCallResponse struct {
	Success        *bool  `json:"success"`
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
	CallSID        string `json:"callSid"`
}

func (c *ConvAIClient) StartOutboundCall(ctx context.Context, req OutboundCallRequest) (OutboundCallResult, error) {
	body := outboundCallBody{
		AgentID:            c.agentID,
		AgentPhoneNumberID: c.agentPhoneNumberID,
		ToNumber:           req.ToNumber,
	}
	var out outboundCallResponse
	if err := c.do(ctx, c.startTimeout, http.MethodPost, pathOutboundCall, body, &out); err != nil {
		return OutboundCallResult{}, err
	}
	if out.Success != nil && !*out.Success {
		return OutboundCallResult{}, &APIError{StatusCode: http.StatusBadGateway, Message: out.Message}
	}
	if strings.TrimSpace(out.ConversationID) == "" {
		return OutboundCallResult{}, ErrMissingConversationID
	}
	return OutboundCallResult{
		ConversationID: out.ConversationID,
		CallSID:        out.CallSID,
		Message:        out.Message,
	}, nil
}

type conversationResponse struct {
	ConversationID string `json:"conversation_id"`
	Status         string `json:"status"`
	Transcript     []struct {
		Role           string `json:"role"`
		Message        string `json:"message"`
		TimeInCallSecs int    `json:"time_in_call_secs"`
	} `json:"transcript"`
	Metadata struct {
		StartTimeUnixSecs int64 `json:"start_time_unix_secs"`
		CallDurationSecs  int   `json:"call_duration_secs"`
	} `json:"metadata"`
}

func (c *ConvAIClient) FetchConversation(ctx context.Context, conversationID string) (Conversation, error) {
	var out conversationResponse
	if err := c.do(ctx, c.requestTimeout, http.MethodGet, pathConversation+url.PathEscape(conversationID), nil, &out); err != nil {
		return Conversation{}, err
	}

	conv := Conversation{
		ConversationID: out.ConversationID,
		Status:         out.Status,
		DurationSecs:   out.Metadata.CallDurationSecs,
		Transcript:     make([]TranscriptTurn, 0, len(out.Transcript)),
	}
	if conv.ConversationID == "" {
		conv.ConversationID = conversationID
	}
	if out.Metadata.StartTimeUnixSecs > 0 {
		started := time.Unix(out.Metadata.StartTimeUnixSecs, 0).UTC()
		conv.StartedAt = &started
	}
	for _, t := range out.Transcript {
		conv.Transcript = append(conv.Transcript, TranscriptTurn{Role: t.Role, Message: t.Message, TimeInCallSecs: t.TimeInCallSecs})
	}
	return conv, nil
}

func (c *ConvAIClient) EndCall(ctx context.Context, conversationID string) error {
	return c.do(ctx, c.requestTimeout, http.MethodPost, pathConversation+url.PathEscape(conversationID)+"/end", nil, nil)
}

// do sends one JSON request. in and out may be nil.
func (c *ConvAIClient) do(ctx context.Context, timeout time.Duration, method, path string, in, out any) error {
	if c.apiKey == "" {
		return ErrNotConfigured
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("telephony: encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("telephony: build request: %w", err)
	}
	req.Header.Set(headerAPIKey, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Parent cancellation (client went away) is not a provider timeout.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if isTimeout(err) {
			return ErrTimeout
		}
		return fmt.Errorf("telephony: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if isTimeout(err) {
			return ErrTimeout
		}
		return fmt.Errorf("telephony: decode response: %w", err)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// errorMessage extracts a human readable message from a provider error body.
// Known shapes: {"detail":"..."}, {"detail":{"message":"..."}},
// {"message":"..."}, {"error":"..."}.
func errorMessage(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var body struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return truncate(string(raw), 300)
	}
	if len(body.Detail) > 0 {
		var s string
		if json.Unmarshal(body.Detail, &s) == nil && s != "" {
			return s
		}
		var obj struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body.Detail, &obj) == nil && obj.Message != "" {
			return obj.Message
		}
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
