package calls

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"callbridge/internal/apperr"
	"callbridge/internal/telephony"
	"callbridge/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("calls: session not found")
	ErrDuplicateCallID = errors.New("calls: call id already recorded")
)

// Repository is the persistence contract for call sessions.
type Repository interface {
	Create(ctx context.Context, s CallSession) error
	FindByCallID(ctx context.Context, callID string) (CallSession, error)
	// Complete transitions the session to completed at endedAt and returns the
	// stored result. A session that is already completed is returned unchanged.
	Complete(ctx context.Context, callID string, endedAt time.Time) (CallSession, error)
}

// Service owns the call session lifecycle: initiated -> completed.
//
// Status is driven only by StartCall and EndCall. The provider's live state is
// available through CallDetails but never written back.
type Service struct {
	repo     Repository
	provider telephony.VoiceProvider
	locker   Locker
	metrics  *Metrics
	clock    func() time.Time
}

// NewService wires the lifecycle. locker and metrics may be nil.
func NewService(repo Repository, provider telephony.VoiceProvider, locker Locker, metrics *Metrics) *Service {
	if locker == nil {
		locker = NewMemoryLocker()
	}
	return &Service{repo: repo, provider: provider, locker: locker, metrics: metrics, clock: time.Now}
}

func (s *Service) StartCall(ctx context.Context, phoneNumber string) (StartResult, error) {
	log := logger.From(ctx)

	phone := strings.TrimSpace(phoneNumber)
	if phone == "" {
		return StartResult{}, apperr.Validation("Phone number is required")
	}

	res, err := s.provider.StartOutboundCall(ctx, telephony.OutboundCallRequest{ToNumber: phone})
	if err != nil {
		s.metrics.providerFailure(opStart, err)
		log.Warn("start call failed", "provider", s.provider.Name(), "provider_status", telephony.StatusCode(err), "err", err)
		return StartResult{}, mapProviderError(opStart, err)
	}

	now := s.clock().UTC()
	sess := newSession(uuid.NewString(), res.ConversationID, phone, now)
	if err := s.repo.Create(ctx, sess); err != nil {
		// The provider is already dialing; keep the id in logs for reconciliation.
		log.Error("call session create failed", "call_id", res.ConversationID, "err", err)
		return StartResult{}, apperr.Internal(err)
	}

	s.metrics.callStarted()
	log.Info("call initiated", "call_id", sess.CallID, "session_id", sess.ID)
	return StartResult{CallID: sess.CallID, SessionID: sess.ID, Message: logCallInitiated}, nil
}

// GetStatus returns the stored session. It never contacts the provider.
func (s *Service) GetStatus(ctx context.Context, callID string) (CallSession, error) {
	return s.find(ctx, callID)
}

// EndCall ends the call at the provider and completes the local session.
//
// Unknown call ids are NotFound, matching GetStatus. Ending a completed
// session returns it unchanged without contacting the provider. A provider
// 404 means the conversation is already closed there and the session is
// completed locally anyway.
func (s *Service) EndCall(ctx context.Context, callID string) (CallSession, error) {
	log := logger.From(ctx)

	callID = strings.TrimSpace(callID)
	if callID == "" {
		return CallSession{}, apperr.Validation("Call ID is required")
	}

	unlock, err := s.locker.Lock(ctx, endCallLockKey(callID))
	switch {
	case errors.Is(err, ErrLocked):
		return CallSession{}, apperr.Conflict("Call is already being ended")
	case err != nil:
		// The store-level completion guard still applies without the lock.
		log.Warn("end call lock unavailable", "call_id", callID, "err", err)
		unlock = func() {}
	}
	defer unlock()

	sess, err := s.find(ctx, callID)
	if err != nil {
		return CallSession{}, err
	}
	if sess.Status == CallStatusCompleted {
		return sess, nil
	}

	if err := s.provider.EndCall(ctx, callID); err != nil {
		if telephony.StatusCode(err) != http.StatusNotFound {
			s.metrics.providerFailure(opEnd, err)
			log.Warn("end call failed", "call_id", callID, "provider_status", telephony.StatusCode(err), "err", err)
			return CallSession{}, mapProviderError(opEnd, err)
		}
		log.Info("provider conversation already closed", "call_id", callID)
	}

	updated, err := s.repo.Complete(ctx, callID, s.clock().UTC())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return CallSession{}, apperr.NotFound("Call not found")
		}
		log.Error("call session complete failed", "call_id", callID, "err", err)
		return CallSession{}, apperr.Internal(err)
	}

	s.metrics.callEnded(updated)
	log.Info("call ended", "call_id", callID, "duration_s", derefInt(updated.DurationSeconds))
	return updated, nil
}

// Details pairs the stored session with the provider's live view.
type Details struct {
	Session      CallSession            `json:"session"`
	Conversation telephony.Conversation `json:"provider"`
}

// CallDetails fetches the provider conversation for a known session. It is
// read-only: the stored status is not changed by what the provider reports.
func (s *Service) CallDetails(ctx context.Context, callID string) (Details, error) {
	sess, err := s.find(ctx, callID)
	if err != nil {
		return Details{}, err
	}
	conv, err := s.provider.FetchConversation(ctx, sess.CallID)
	if err != nil {
		s.metrics.providerFailure(opFetch, err)
		logger.From(ctx).Warn("fetch conversation failed", "call_id", sess.CallID, "provider_status", telephony.StatusCode(err), "err", err)
		return Details{}, mapProviderError(opFetch, err)
	}
	return Details{Session: sess, Conversation: conv}, nil
}

func (s *Service) find(ctx context.Context, callID string) (CallSession, error) {
	callID = strings.TrimSpace(callID)
	if callID == "" {
		return CallSession{}, apperr.Validation("Call ID is required")
	}
	sess, err := s.repo.FindByCallID(ctx, callID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return CallSession{}, apperr.NotFound("Call not found")
		}
		logger.From(ctx).Error("call session lookup failed", "call_id", callID, "err", err)
		return CallSession{}, apperr.Internal(err)
	}
	return sess, nil
}

func endCallLockKey(callID string) string {
	return "callbridge:end-call:" + callID
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
