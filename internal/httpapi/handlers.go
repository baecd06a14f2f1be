package httpapi

import (
	"context"
	"net/http"
	"time"

	"callbridge/internal/apperr"
	"callbridge/internal/auth"
	"callbridge/internal/calls"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse input, call internal services, return JSON.
type Handlers struct {
	Auth  AuthService
	Calls CallService

	// VoiceConfigured reports whether the provider credential is set.
	VoiceConfigured bool

	Now func() time.Time
}

type AuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (auth.Profile, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.Profile, error)
}

type CallService interface {
	StartCall(ctx context.Context, phoneNumber string) (calls.StartResult, error)
	GetStatus(ctx context.Context, callID string) (calls.CallSession, error)
	EndCall(ctx context.Context, callID string) (calls.CallSession, error)
	CallDetails(ctx context.Context, callID string) (calls.Details, error)
}

const msgInvalidJSON = "Invalid JSON body"

// --- Users ---

func (h Handlers) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderError(c, apperr.Validation(msgInvalidJSON))
		return
	}
	user, err := h.Auth.Register(c.Request.Context(), req)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "User registered successfully",
		"user":    user,
	})
}

func (h Handlers) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderError(c, apperr.Validation(msgInvalidJSON))
		return
	}
	user, err := h.Auth.Login(c.Request.Context(), req)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"user":    user,
	})
}

// --- Calls ---

type makeCallRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

func (h Handlers) MakeCall(c *gin.Context) {
	var req makeCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderError(c, apperr.Validation(msgInvalidJSON))
		return
	}
	res, err := h.Calls.StartCall(c.Request.Context(), req.PhoneNumber)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   res.Message,
		"callId":    res.CallID,
		"sessionId": res.SessionID,
	})
}

type callStatusResponse struct {
	Success    bool             `json:"success"`
	CallStatus calls.CallStatus `json:"callStatus"`
	Duration   *int             `json:"duration,omitempty"`
	StartTime  time.Time        `json:"startTime"`
	EndTime    *time.Time       `json:"endTime,omitempty"`
}

func (h Handlers) CallStatus(c *gin.Context) {
	s, err := h.Calls.GetStatus(c.Request.Context(), c.Param("callId"))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, callStatusResponse{
		Success:    true,
		CallStatus: s.Status,
		Duration:   s.DurationSeconds,
		StartTime:  s.StartTime,
		EndTime:    s.EndTime,
	})
}

func (h Handlers) EndCall(c *gin.Context) {
	if _, err := h.Calls.EndCall(c.Request.Context(), c.Param("callId")); err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Call ended successfully",
	})
}

func (h Handlers) CallDetails(c *gin.Context) {
	d, err := h.Calls.CallDetails(c.Request.Context(), c.Param("callId"))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"session":  d.Session,
		"provider": d.Conversation,
	})
}

// --- Health ---

func (h Handlers) Health(c *gin.Context) {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"message":          "Server is running",
		"timestamp":        now().UTC().Format(time.RFC3339),
		"apiKeyConfigured": h.VoiceConfigured,
	})
}

// renderError writes {success:false, error} with the status of err's kind.
// Internal causes go to the request log line, never to the client.
func renderError(c *gin.Context, err error) {
	e := apperr.From(err)
	if e.Kind == apperr.KindInternal || e.Kind == apperr.KindConfig {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(e.Status, gin.H{
		"success": false,
		"error":   e.Message,
	})
}
