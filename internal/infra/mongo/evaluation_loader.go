package mongo

import (
	"context"
	"errors"
	"fmt"

	"evaluation-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultCollection holds one document per evaluation, keyed by its id.
const DefaultCollection = "evaluations"

// EvaluationLoader reads evaluation documents from MongoDB.
type EvaluationLoader struct {
	col *mongo.Collection
}

func NewEvaluationLoader(col *mongo.Collection) *EvaluationLoader {
	return &EvaluationLoader{col: col}
}

// Connect dials uri and returns a loader over database.DefaultCollection.
// The caller disconnects the returned client on shutdown.
func Connect(ctx context.Context, uri, database string) (*EvaluationLoader, *mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	return NewEvaluationLoader(client.Database(database).Collection(DefaultCollection)), client, nil
}

func (l *EvaluationLoader) LoadEvaluation(ctx context.Context, evaluationID string) (domain.Evaluation, error) {
	var e domain.Evaluation
	err := l.col.FindOne(ctx, bson.M{"_id": evaluationID}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Evaluation{}, domain.ErrEvaluationNotFound
	}
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("load evaluation: %w", err)
	}
	return e, nil
}

// ImportEvaluation validates e and replaces or inserts its document.
func (l *EvaluationLoader) ImportEvaluation(ctx context.Context, e domain.Evaluation) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("import evaluation %s: %w", e.ID, err)
	}
	_, err := l.col.ReplaceOne(ctx, bson.M{"_id": e.ID}, e, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("import evaluation %s: %w", e.ID, err)
	}
	return nil
}
