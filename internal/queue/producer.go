package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chatwatch/internal/models"
)

// maxRetries is the re-enqueue ceiling; envelopes that reach it go to the
// dead-letter stream instead of the primary one.
const maxRetries = 3

// EncodeError reports that an envelope could not be serialized for the
// stream. It is the only error Enqueue returns; transient write failures are
// reported through the boolean instead.
type EncodeError struct {
	MessageID string
	Err       error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("failed to encode queue message %s: %v", e.MessageID, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// streamWriter is the slice of the redis client the producer needs.
type streamWriter interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// Producer writes message envelopes to the durable stream.
type Producer struct {
	client     streamWriter
	stream     string
	deadLetter string
	logger     *zap.Logger
}

func NewProducer(client *redis.Client, stream, deadLetter string, logger *zap.Logger) *Producer {
	return &Producer{
		client:     client,
		stream:     stream,
		deadLetter: deadLetter,
		logger:     logger,
	}
}

// Enqueue appends the envelope to the primary stream. A false return means a
// transient write failure the caller may retry synchronously.
func (p *Producer) Enqueue(ctx context.Context, msg *models.QueueMessage) (bool, error) {
	return p.write(ctx, p.stream, msg)
}

// EnqueueForRetry re-appends the envelope with an incremented retry count,
// switching to the dead-letter stream once the ceiling is reached.
func (p *Producer) EnqueueForRetry(ctx context.Context, msg *models.QueueMessage) (bool, error) {
	retried := *msg
	retried.RetryCount++

	if retried.RetryCount >= maxRetries {
		p.logger.Warn("retry ceiling reached, dead-lettering message",
			zap.String("message_id", msg.MessageID),
			zap.Int("retry_count", retried.RetryCount))
		return p.write(ctx, p.deadLetter, &retried)
	}
	return p.write(ctx, p.stream, &retried)
}

func (p *Producer) write(ctx context.Context, stream string, msg *models.QueueMessage) (bool, error) {
	if msg == nil || msg.MessageID == "" {
		return false, &EncodeError{Err: fmt.Errorf("missing message id")}
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return false, &EncodeError{MessageID: msg.MessageID, Err: err}
	}

	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"message_id":  msg.MessageID,
			"body":        string(body),
			"retry_count": strconv.Itoa(msg.RetryCount),
		},
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		p.logger.Error("stream write failed",
			zap.String("stream", stream),
			zap.String("message_id", msg.MessageID),
			zap.Error(err))
		return false, nil
	}
	return true, nil
}
