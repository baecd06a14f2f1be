package calls

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMemoryRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, newSession("s1", "abc123", "+1", start)))
	assert.ErrorIs(t, repo.Create(ctx, newSession("s2", "abc123", "+1", start)), ErrDuplicateCallID)

	_, err := repo.FindByCallID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.Complete(ctx, "missing", start)
	assert.ErrorIs(t, err, ErrNotFound)

	done, err := repo.Complete(ctx, "abc123", start.Add(7*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 7, *done.DurationSeconds)

	// Mutating a returned copy must not leak into the store.
	done.ConversationLog[0].Message = "changed"
	got, err := repo.FindByCallID(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, logCallInitiated, got.ConversationLog[0].Message)
}

func TestIsUniqueViolation(t *testing.T) {
	dup := fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23505", ConstraintName: "call_sessions_call_id_key"})
	assert.True(t, isUniqueViolation(dup))
	assert.False(t, isUniqueViolation(errors.New("other")))
	assert.False(t, isUniqueViolation(nil))
}

func TestDecodeLog(t *testing.T) {
	var entries []LogEntry
	require.NoError(t, decodeLog(nil, &entries))
	assert.Empty(t, entries)
	assert.NotNil(t, entries)

	raw := []byte(`[{"timestamp":"2026-03-01T10:00:00Z","speaker":"system","message":"Call initiated successfully"}]`)
	require.NoError(t, decodeLog(raw, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, SpeakerSystem, entries[0].Speaker)

	assert.Error(t, decodeLog([]byte(`{`), &entries))
}

func sessionDoc(status CallStatus, start time.Time, end *time.Time, duration *int) bson.D {
	log := bson.A{bson.D{
		{Key: "timestamp", Value: start},
		{Key: "speaker", Value: "system"},
		{Key: "message", Value: logCallInitiated},
	}}
	doc := bson.D{
		{Key: "_id", Value: "s1"},
		{Key: "callId", Value: "abc123"},
		{Key: "phoneNumber", Value: "+15551234567"},
		{Key: "status", Value: string(status)},
		{Key: "startTime", Value: start},
	}
	if end != nil {
		doc = append(doc, bson.E{Key: "endTime", Value: *end}, bson.E{Key: "duration", Value: int32(*duration)})
		log = append(log, bson.D{
			{Key: "timestamp", Value: *end},
			{Key: "speaker", Value: "system"},
			{Key: "message", Value: logCallEnded},
		})
	}
	return append(doc,
		bson.E{Key: "conversationLog", Value: log},
		bson.E{Key: "updatedAt", Value: start},
	)
}

func TestMongoRepo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ns := "callbridge.callsessions"

	mt.Run("create", func(mt *mtest.T) {
		repo := &MongoRepo{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		require.NoError(mt, repo.Create(context.Background(), newSession("s1", "abc123", "+1", start)))
	})

	mt.Run("create duplicate", func(mt *mtest.T) {
		repo := &MongoRepo{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: callbridge.callsessions index: uniq_call_id",
		}))

		err := repo.Create(context.Background(), newSession("s2", "abc123", "+1", start))
		assert.ErrorIs(mt, err, ErrDuplicateCallID)
	})

	mt.Run("find", func(mt *mtest.T) {
		repo := &MongoRepo{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, sessionDoc(CallStatusInitiated, start, nil, nil)))

		s, err := repo.FindByCallID(context.Background(), "abc123")
		require.NoError(mt, err)
		assert.Equal(mt, "s1", s.ID)
		assert.Equal(mt, CallStatusInitiated, s.Status)
		assert.True(mt, start.Equal(s.StartTime))
		assert.Nil(mt, s.EndTime)
		require.Len(mt, s.ConversationLog, 1)
	})

	mt.Run("find missing", func(mt *mtest.T) {
		repo := &MongoRepo{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := repo.FindByCallID(context.Background(), "missing")
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("complete", func(mt *mtest.T) {
		repo := &MongoRepo{coll: mt.Coll}
		end := start.Add(12 * time.Second)
		d := 12
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, sessionDoc(CallStatusInitiated, start, nil, nil)),
			bson.D{
				{Key: "ok", Value: 1},
				{Key: "value", Value: sessionDoc(CallStatusCompleted, start, &end, &d)},
			},
		)

		s, err := repo.Complete(context.Background(), "abc123", end)
		require.NoError(mt, err)
		assert.Equal(mt, CallStatusCompleted, s.Status)
		require.NotNil(mt, s.DurationSeconds)
		assert.Equal(mt, 12, *s.DurationSeconds)
		assert.Len(mt, s.ConversationLog, 2)
	})

	mt.Run("complete already completed", func(mt *mtest.T) {
		repo := &MongoRepo{coll: mt.Coll}
		end := start.Add(5 * time.Second)
		d := 5
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, sessionDoc(CallStatusCompleted, start, &end, &d)))

		s, err := repo.Complete(context.Background(), "abc123", start.Add(time.Hour))
		require.NoError(mt, err)
		assert.Equal(mt, 5, *s.DurationSeconds)
	})
}
