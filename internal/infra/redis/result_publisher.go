package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"evaluation-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// DefaultResultStream is where finalized attempts are appended.
const DefaultResultStream = "evaluation:results"

// ResultPublisher appends result records to a Redis stream for downstream
// compliance reporting. Consumers read it with XREAD or consumer groups.
type ResultPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewResultPublisher trims the stream to roughly maxLen entries when maxLen > 0.
func NewResultPublisher(client *redis.Client, stream string, maxLen int64) *ResultPublisher {
	if stream == "" {
		stream = DefaultResultStream
	}
	return &ResultPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *ResultPublisher) RecordResult(ctx context.Context, record domain.ResultRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"evaluation":  record.EvaluationID,
			"session":     record.SessionID,
			"participant": record.Participant.ID,
			"score":       record.Result.Score,
			"passed":      record.Result.Passed,
			"record":      payload,
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("publish result to %s: %w", p.stream, err)
	}
	return nil
}
