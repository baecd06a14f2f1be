package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"callbridge/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *ConvAIClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewConvAIClient(config.VoiceConfig{
		APIKey:             "xi-test",
		AgentID:            "agent-1",
		AgentPhoneNumberID: "phone-1",
		BaseURL:            srv.URL,
		StartTimeout:       time.Second,
		RequestTimeout:     time.Second,
	}, srv.Client())
}

func TestConvAIClient_ImplementsVoiceProvider(t *testing.T) {
	var _ VoiceProvider = (*ConvAIClient)(nil)
}

func TestStartOutboundCall_SendsAgentAndCredential(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/convai/twilio/outbound-call", r.URL.Path)
		assert.Equal(t, "xi-test", r.Header.Get("xi-api-key"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "agent-1", body["agent_id"])
		assert.Equal(t, "phone-1", body["agent_phone_number_id"])
		assert.Equal(t, "+15551234567", body["to_number"])

		_, _ = w.Write([]byte(`{"success":true,"message":"Success","conversation_id":"abc123","callSid":"CA1"}`))
	})

	res, err := c.StartOutboundCall(context.Background(), OutboundCallRequest{ToNumber: "+15551234567"})
	require.NoError(t, err)
	assert.Equal(t, "abc123", res.ConversationID)
	assert.Equal(t, "CA1", res.CallSID)
}

func TestStartOutboundCall_MapsStatusAndMessage(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"detail string", http.StatusUnauthorized, `{"detail":"Invalid API key"}`, "Invalid API key"},
		{"detail object", http.StatusBadRequest, `{"detail":{"status":"invalid_number","message":"bad number"}}`, "bad number"},
		{"message field", http.StatusTooManyRequests, `{"message":"slow down"}`, "slow down"},
		{"plain text", http.StatusBadGateway, `upstream broke`, "upstream broke"},
		{"empty", http.StatusInternalServerError, ``, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := c.StartOutboundCall(context.Background(), OutboundCallRequest{ToNumber: "+1"})
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.status, apiErr.StatusCode)
			assert.Equal(t, tc.message, apiErr.Message)
			assert.Equal(t, tc.status, StatusCode(err))
		})
	}
}

func TestStartOutboundCall_UnsuccessfulBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"Twilio rejected the call"}`))
	})
	_, err := c.StartOutboundCall(context.Background(), OutboundCallRequest{ToNumber: "+1"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Twilio rejected the call", apiErr.Message)
}

func TestStartOutboundCall_MissingConversationID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	_, err := c.StartOutboundCall(context.Background(), OutboundCallRequest{ToNumber: "+1"})
	assert.ErrorIs(t, err, ErrMissingConversationID)
}

func TestStartOutboundCall_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c := NewConvAIClient(config.VoiceConfig{APIKey: "k", BaseURL: srv.URL, StartTimeout: 50 * time.Millisecond}, srv.Client())
	_, err := c.StartOutboundCall(context.Background(), OutboundCallRequest{ToNumber: "+1"})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestStartOutboundCall_CanceledParentIsNotTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the provider")
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.StartOutboundCall(ctx, OutboundCallRequest{ToNumber: "+1"})
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestNotConfigured(t *testing.T) {
	c := NewConvAIClient(config.VoiceConfig{BaseURL: "http://127.0.0.1:1"}, nil)
	_, err := c.StartOutboundCall(context.Background(), OutboundCallRequest{ToNumber: "+1"})
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, c.EndCall(context.Background(), "abc"), ErrNotConfigured)
}

func TestFetchConversation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/convai/conversations/abc123", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"conversation_id":"abc123",
			"status":"done",
			"transcript":[
				{"role":"agent","message":"Hello","time_in_call_secs":0},
				{"role":"user","message":"Hi","time_in_call_secs":2}
			],
			"metadata":{"start_time_unix_secs":1700000000,"call_duration_secs":42}
		}`))
	})

	conv, err := c.FetchConversation(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "done", conv.Status)
	assert.Equal(t, 42, conv.DurationSecs)
	require.NotNil(t, conv.StartedAt)
	assert.Equal(t, int64(1700000000), conv.StartedAt.Unix())
	require.Len(t, conv.Transcript, 2)
	assert.Equal(t, "user", conv.Transcript[1].Role)
}

func TestEndCall(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/convai/conversations/abc123/end", r.URL.Path)
		assert.Equal(t, "xi-test", r.Header.Get("xi-api-key"))
		w.WriteHeader(http.StatusOK)
	})
	require.NoError(t, c.EndCall(context.Background(), "abc123"))
	assert.True(t, called)
}

func TestEndCall_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Conversation not found"}`))
	})
	err := c.EndCall(context.Background(), "gone")
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
}
