package replay

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"
)

// Archiver persists evicted experiences somewhere durable. Purely additive:
// the buffer itself stays in-memory-only per spec §1's non-goals, this is
// an audit trail for offline analysis, never a read path for Sample.
type Archiver interface {
	Archive(ctx context.Context, exp Experience) error
}

// MongoArchiver writes evicted experiences to a Mongo collection,
// best-effort: failures are logged, never surfaced to the buffer's hot path.
type MongoArchiver struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewMongoArchiver wraps a collection handle for experience archival.
func NewMongoArchiver(collection *mongo.Collection, logger *zap.Logger) *MongoArchiver {
	return &MongoArchiver{collection: collection, logger: logger}
}

type archivedExperience struct {
	State     []float64 `bson:"state"`
	Action    int       `bson:"action"`
	Reward    float64   `bson:"reward"`
	NextState []float64 `bson:"next_state"`
	Done      bool      `bson:"done"`
	Priority  float64   `bson:"priority"`
	CreatedAt time.Time `bson:"created_at"`
}

// Archive inserts one experience document.
func (m *MongoArchiver) Archive(ctx context.Context, exp Experience) error {
	doc := archivedExperience{
		State:     exp.State.Vector(),
		Action:    exp.Action,
		Reward:    exp.Reward,
		NextState: exp.NextState.Vector(),
		Done:      exp.Done,
		Priority:  exp.Priority,
		CreatedAt: exp.CreatedAt,
	}
	_, err := m.collection.InsertOne(ctx, doc)
	return err
}

// AttachArchiver wires a buffer's eviction hook to an Archiver, logging
// (not failing) archival errors since the buffer's own contract never
// raises on add.
func AttachArchiver(b *Buffer, archiver Archiver, logger *zap.Logger) {
	b.OnEvict(func(exp Experience) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := archiver.Archive(ctx, exp); err != nil {
				logger.Warn("failed to archive evicted experience", zap.Error(err))
			}
		}()
	})
}
