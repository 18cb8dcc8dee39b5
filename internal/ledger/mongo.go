package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo stores checkpoints in a MongoDB collection. Single-run-per-source
// is enforced by a partial unique index over in-progress checkpoints, so
// two concurrent Create calls race on the index rather than on a
// read-then-write check.
type Mongo struct {
	coll *mongo.Collection
}

type mongoCheckpoint struct {
	RunID     string    `bson:"_id"`
	Source    string    `bson:"source"`
	Cursor    string    `bson:"cursor"`
	Processed int       `bson:"processed"`
	Status    Status    `bson:"status"`
	Reason    string    `bson:"reason,omitempty"`
	StartedAt time.Time `bson:"started_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func NewMongo(client *mongo.Client, database string) *Mongo {
	return &Mongo{coll: client.Database(database).Collection("checkpoints")}
}

// EnsureIndexes creates the indexes the ledger relies on. Call once at
// startup.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := m.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "source", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": StatusInProgress}),
		},
		{
			Keys: bson.D{{Key: "source", Value: 1}, {Key: "started_at", Value: -1}},
		},
	})
	if err != nil {
		return fmt.Errorf("creating checkpoint indexes: %w", err)
	}
	return nil
}

func (m *Mongo) Create(ctx context.Context, runID, source string) (Checkpoint, error) {
	now := time.Now().UTC()
	doc := mongoCheckpoint{
		RunID:     runID,
		Source:    source,
		Status:    StatusInProgress,
		StartedAt: now,
		UpdatedAt: now,
	}
	if _, err := m.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Checkpoint{}, ErrConflict
		}
		return Checkpoint{}, fmt.Errorf("creating checkpoint: %w", err)
	}
	return doc.checkpoint(), nil
}

func (m *Mongo) Advance(ctx context.Context, runID, cursor string, delta int) error {
	res, err := m.coll.UpdateOne(ctx,
		bson.M{"_id": runID, "status": StatusInProgress},
		bson.M{
			"$set": bson.M{"cursor": cursor, "updated_at": time.Now().UTC()},
			"$inc": bson.M{"processed": delta},
		})
	if err != nil {
		return fmt.Errorf("advancing checkpoint %s: %w", runID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) Complete(ctx context.Context, runID string) error {
	return m.finish(ctx, runID, StatusCompleted, "")
}

func (m *Mongo) Fail(ctx context.Context, runID, reason string) error {
	return m.finish(ctx, runID, StatusFailed, reason)
}

func (m *Mongo) finish(ctx context.Context, runID string, status Status, reason string) error {
	res, err := m.coll.UpdateOne(ctx,
		bson.M{"_id": runID, "status": StatusInProgress},
		bson.M{"$set": bson.M{"status": status, "reason": reason, "updated_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("finishing checkpoint %s: %w", runID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) Latest(ctx context.Context, source string) (Checkpoint, bool, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "started_at", Value: -1}})
	var doc mongoCheckpoint
	err := m.coll.FindOne(ctx, bson.M{"source": source}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("reading latest checkpoint for %s: %w", source, err)
	}
	return doc.checkpoint(), true, nil
}

func (c mongoCheckpoint) checkpoint() Checkpoint {
	return Checkpoint{
		RunID:     c.RunID,
		Source:    c.Source,
		Cursor:    c.Cursor,
		Processed: c.Processed,
		Status:    c.Status,
		Reason:    c.Reason,
		StartedAt: c.StartedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
