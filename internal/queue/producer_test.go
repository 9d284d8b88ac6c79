package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chatwatch/internal/models"
)

type fakeStreamWriter struct {
	err   error
	calls []*redis.XAddArgs
}

func (f *fakeStreamWriter) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.calls = append(f.calls, a)
	return redis.NewStringResult("1-0", f.err)
}

func newTestProducer(w streamWriter) *Producer {
	return &Producer{
		client:     w,
		stream:     "messages",
		deadLetter: "messages:dead",
		logger:     zap.NewNop(),
	}
}

func envelope(retryCount int) *models.QueueMessage {
	return &models.QueueMessage{
		MessageID:  "msg-1",
		Payload:    "hello",
		ChatRoom:   "room-1",
		RetryCount: retryCount,
	}
}

func TestEnqueueWritesPrimaryStream(t *testing.T) {
	t.Parallel()

	w := &fakeStreamWriter{}
	p := newTestProducer(w)

	ok, err := p.Enqueue(context.Background(), envelope(0))
	if err != nil || !ok {
		t.Fatalf("Enqueue() = %v, %v", ok, err)
	}
	if len(w.calls) != 1 || w.calls[0].Stream != "messages" {
		t.Fatalf("unexpected stream writes %+v", w.calls)
	}
	if w.calls[0].Values.(map[string]interface{})["message_id"] != "msg-1" {
		t.Fatal("envelope fields missing from the stream entry")
	}
}

func TestEnqueueReportsWriteFailureAsBoolean(t *testing.T) {
	t.Parallel()

	w := &fakeStreamWriter{err: errors.New("connection refused")}
	p := newTestProducer(w)

	ok, err := p.Enqueue(context.Background(), envelope(0))
	if err != nil {
		t.Fatalf("transient write failure surfaced as error: %v", err)
	}
	if ok {
		t.Fatal("failed write reported success")
	}
}

func TestEnqueueForRetryIncrementsAndStaysOnPrimary(t *testing.T) {
	t.Parallel()

	w := &fakeStreamWriter{}
	p := newTestProducer(w)

	msg := envelope(1)
	ok, err := p.EnqueueForRetry(context.Background(), msg)
	if err != nil || !ok {
		t.Fatalf("EnqueueForRetry() = %v, %v", ok, err)
	}
	if w.calls[0].Stream != "messages" {
		t.Fatalf("retry below the ceiling went to %q", w.calls[0].Stream)
	}
	if got := w.calls[0].Values.(map[string]interface{})["retry_count"]; got != "2" {
		t.Fatalf("retry_count = %v, want 2", got)
	}
	if msg.RetryCount != 1 {
		t.Fatal("caller's envelope was mutated")
	}
}

func TestEnqueueForRetryDeadLettersAtCeiling(t *testing.T) {
	t.Parallel()

	w := &fakeStreamWriter{}
	p := newTestProducer(w)

	ok, err := p.EnqueueForRetry(context.Background(), envelope(2))
	if err != nil || !ok {
		t.Fatalf("EnqueueForRetry() = %v, %v", ok, err)
	}
	if w.calls[0].Stream != "messages:dead" {
		t.Fatalf("envelope at the ceiling went to %q", w.calls[0].Stream)
	}
}

func TestEnqueueRejectsUnencodableEnvelope(t *testing.T) {
	t.Parallel()

	p := newTestProducer(&fakeStreamWriter{})

	_, err := p.Enqueue(context.Background(), &models.QueueMessage{})
	var encodeErr *EncodeError
	if !errors.As(err, &encodeErr) {
		t.Fatalf("error = %v, want *EncodeError", err)
	}
}
