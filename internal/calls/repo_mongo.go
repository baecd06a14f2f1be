package calls

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const sessionsCollection = "callsessions"

type MongoRepo struct {
	coll *mongo.Collection
}

func NewMongoRepo(db *mongo.Database) *MongoRepo {
	return &MongoRepo{coll: db.Collection(sessionsCollection)}
}

// EnsureIndexes creates the unique callId index that Create relies on.
func (r *MongoRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "callId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_call_id"),
	})
	if err != nil {
		return fmt.Errorf("create callsessions indexes: %w", err)
	}
	return nil
}

func (r *MongoRepo) Create(ctx context.Context, s CallSession) error {
	if _, err := r.coll.InsertOne(ctx, s); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateCallID
		}
		return fmt.Errorf("insert call session: %w", err)
	}
	return nil
}

func (r *MongoRepo) FindByCallID(ctx context.Context, callID string) (CallSession, error) {
	var s CallSession
	if err := r.coll.FindOne(ctx, bson.M{"callId": callID}).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return CallSession{}, ErrNotFound
		}
		return CallSession{}, fmt.Errorf("find call session: %w", err)
	}
	return s, nil
}

// Complete reads the session to compute the duration, then applies a
// conditional update that only matches while the status is not completed.
// A lost race falls through to a re-read of the winner's document.
func (r *MongoRepo) Complete(ctx context.Context, callID string, endedAt time.Time) (CallSession, error) {
	current, err := r.FindByCallID(ctx, callID)
	if err != nil {
		return CallSession{}, err
	}
	if current.Status == CallStatusCompleted {
		return current, nil
	}

	next := clone(current)
	next.complete(endedAt)
	ended := next.ConversationLog[len(next.ConversationLog)-1]

	filter := bson.M{
		"callId": callID,
		"status": bson.M{"$ne": CallStatusCompleted},
	}
	update := bson.M{
		"$set": bson.M{
			"status":    next.Status,
			"endTime":   next.EndTime,
			"duration":  next.DurationSeconds,
			"updatedAt": next.UpdatedAt,
		},
		"$push": bson.M{"conversationLog": ended},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated CallSession
	err = r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return r.FindByCallID(ctx, callID)
	}
	if err != nil {
		return CallSession{}, fmt.Errorf("complete call session: %w", err)
	}
	return updated, nil
}
