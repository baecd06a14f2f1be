package calls

import "time"

// CallSession is the local record of one outbound call attempt.
//
// Invariants:
// - CallID is the provider-assigned conversation id; it is never generated locally.
// - EndTime and DurationSeconds are nil until the session is completed.
// - ConversationLog is append-only.
//
// Field names in bson follow the documents already stored by earlier versions
// of this service, so existing collections decode without migration.
type CallSession struct {
	ID          string     `json:"sessionId" bson:"_id" db:"id"`
	CallID      string     `json:"callId" bson:"callId" db:"call_id"`
	PhoneNumber string     `json:"phoneNumber" bson:"phoneNumber" db:"phone_number"`
	Status      CallStatus `json:"status" bson:"status" db:"status"`

	StartTime time.Time  `json:"startTime" bson:"startTime" db:"start_time"`
	EndTime   *time.Time `json:"endTime,omitempty" bson:"endTime,omitempty" db:"end_time"`

	// DurationSeconds is whole seconds between StartTime and EndTime.
	DurationSeconds *int `json:"duration,omitempty" bson:"duration,omitempty" db:"duration_seconds"`

	ConversationLog []LogEntry `json:"conversationLog" bson:"conversationLog" db:"conversation_log"`

	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt" db:"updated_at"`
}

type CallStatus string

const (
	CallStatusInitiated CallStatus = "initiated"
	// CallStatusActive and CallStatusFailed are accepted when reading stored
	// sessions; no operation in this service writes them.
	CallStatusActive    CallStatus = "active"
	CallStatusCompleted CallStatus = "completed"
	CallStatusFailed    CallStatus = "failed"
)

type Speaker string

const (
	SpeakerUser   Speaker = "user"
	SpeakerAgent  Speaker = "agent"
	SpeakerSystem Speaker = "system"
)

type LogEntry struct {
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	Speaker   Speaker   `json:"speaker" bson:"speaker"`
	Message   string    `json:"message" bson:"message"`
}

const (
	logCallInitiated = "Call initiated successfully"
	logCallEnded     = "Call ended"
)

func newSession(id, callID, phone string, now time.Time) CallSession {
	return CallSession{
		ID:          id,
		CallID:      callID,
		PhoneNumber: phone,
		Status:      CallStatusInitiated,
		StartTime:   now,
		ConversationLog: []LogEntry{
			{Timestamp: now, Speaker: SpeakerSystem, Message: logCallInitiated},
		},
		UpdatedAt: now,
	}
}

// complete moves s to completed at endedAt. It is a no-op on a completed session.
func (s *CallSession) complete(endedAt time.Time) {
	if s.Status == CallStatusCompleted {
		return
	}
	end := endedAt
	d := durationSeconds(s.StartTime, end)
	s.Status = CallStatusCompleted
	s.EndTime = &end
	s.DurationSeconds = &d
	s.ConversationLog = append(s.ConversationLog, LogEntry{Timestamp: end, Speaker: SpeakerSystem, Message: logCallEnded})
	s.UpdatedAt = end
}

// durationSeconds truncates to whole seconds and never goes negative.
func durationSeconds(start, end time.Time) int {
	d := end.Sub(start)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

// StartResult is returned by Service.StartCall.
type StartResult struct {
	CallID    string
	SessionID string
	Message   string
}
