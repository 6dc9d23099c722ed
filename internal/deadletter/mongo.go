// Package deadletter archives jobs that failed permanently so operators can
// inspect and replay them.
package deadletter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/solshare/pipeline/pkg/logger"
	"github.com/solshare/pipeline/pkg/queue"
)

// DefaultCollection holds archived dead-letter entries.
const DefaultCollection = "dead_letters"

// Inserter is the part of *mongo.Collection the sink uses.
type Inserter interface {
	InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error)
}

// Document is the archived form of a dead-lettered task.
type Document struct {
	ID         string    `bson:"_id"`
	TaskID     string    `bson:"task_id"`
	Queue      string    `bson:"queue"`
	TaskName   string    `bson:"task_name"`
	Payload    string    `bson:"payload"`
	Priority   int       `bson:"priority"`
	Error      string    `bson:"error"`
	RetryCount int       `bson:"retry_count"`
	FailedAt   time.Time `bson:"failed_at"`
	CreatedAt  time.Time `bson:"created_at"`
}

// NewDocument converts a queue entry into its archived form.
func NewDocument(entry queue.TasksDlq) Document {
	return Document{
		ID:         entry.ID.String(),
		TaskID:     entry.TaskID.String(),
		Queue:      entry.Queue,
		TaskName:   entry.TaskName,
		Payload:    string(entry.Payload),
		Priority:   int(entry.Priority),
		Error:      entry.Error,
		RetryCount: int(entry.RetryCount),
		FailedAt:   entry.FailedAt.UTC(),
		CreatedAt:  entry.CreatedAt.UTC(),
	}
}

// Mongo records dead-lettered jobs in a MongoDB collection.
type Mongo struct {
	coll   Inserter
	logger *slog.Logger
}

// NewMongo creates a sink writing to coll.
func NewMongo(coll Inserter, log *slog.Logger) *Mongo {
	if log == nil {
		log = slog.Default()
	}
	return &Mongo{
		coll:   coll,
		logger: log.With(logger.Component("deadletter")),
	}
}

// Record archives entry. Recording the same entry twice is not an error.
func (m *Mongo) Record(ctx context.Context, entry queue.TasksDlq) error {
	doc := NewDocument(entry)

	if _, err := m.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("archive dead letter %s: %w", doc.ID, err)
	}

	m.logger.InfoContext(ctx, "dead letter archived",
		logger.JobID(entry.TaskID),
		logger.Queue(entry.Queue),
		logger.RetryCount(int(entry.RetryCount)),
	)
	return nil
}
