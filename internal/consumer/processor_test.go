package consumer

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func runEventMessage(offset int64, eventType string, value []byte) kafka.Message {
	msg := kafka.Message{
		Topic:     "ingestion_events",
		Partition: 0,
		Offset:    offset,
		Time:      time.Now().UTC(),
		Key:       []byte("run-1"),
		Value:     value,
	}
	if eventType != "" {
		msg.Headers = []kafka.Header{{Key: "event_type", Value: []byte(eventType)}}
	}
	return msg
}

func TestProcessorCommitsOnSuccess(t *testing.T) {
	payload := []byte(`{"run_id":"run-1","appended":3}`)
	reader := &stubReader{
		messages: []kafka.Message{runEventMessage(10, "ingestion.completed", payload)},
		after:    contextCanceled,
	}
	handler := &stubHandler{}

	processor := NewProcessor(reader, handler, WithLogger(testLogger(t)))

	err := processor.Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, "ingestion.completed", handler.last.EventType)
	require.Equal(t, "run-1", handler.last.Key)
	require.Equal(t, int64(10), handler.last.Offset)
	require.JSONEq(t, string(payload), string(handler.last.Payload))
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	reader := &stubReader{
		messages: []kafka.Message{runEventMessage(20, "recalculation.completed", []byte(`{}`))},
		after:    contextCanceled,
	}
	handler := &stubHandler{err: errors.New("boom")}

	processor := NewProcessor(reader, handler, WithLogger(testLogger(t)))

	err := processor.Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 0, reader.commitCalls)
}

func TestProcessorCommitsUndecodableMessages(t *testing.T) {
	reader := &stubReader{
		messages: []kafka.Message{
			runEventMessage(1, "", []byte(`{}`)),
			runEventMessage(2, "ingestion.completed", []byte(`{not json`)),
		},
		after: contextCanceled,
	}
	handler := &stubHandler{}

	err := NewProcessor(reader, handler, WithLogger(testLogger(t))).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Zero(t, handler.calls)
	require.Equal(t, 2, reader.commitCalls)
}

func TestProcessorRetriesFetchErrors(t *testing.T) {
	fetchErr := errors.New("leader not available")
	reader := &stubReader{
		errs:     []error{fetchErr, fetchErr},
		messages: []kafka.Message{runEventMessage(3, "ingestion.completed", []byte(`{}`))},
		after:    contextCanceled,
	}
	handler := &stubHandler{}

	processor := NewProcessor(reader, handler, WithLogger(testLogger(t)), WithRetryDelay(time.Millisecond))
	err := processor.Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, handler.calls)
}

func TestProcessorStopsWhenContextIsDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reader := &stubReader{messages: []kafka.Message{runEventMessage(1, "ingestion.completed", []byte(`{}`))}}
	handler := &stubHandler{}

	err := NewProcessor(reader, handler, WithLogger(testLogger(t))).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, handler.calls)
}

type stubReader struct {
	errs        []error
	messages    []kafka.Message
	index       int
	commitCalls int
	after       func() error
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return kafka.Message{}, err
	}
	if r.index >= len(r.messages) {
		if r.after != nil {
			return kafka.Message{}, r.after()
		}
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, _ ...kafka.Message) error {
	r.commitCalls++
	return nil
}

func (r *stubReader) Close() error { return nil }

func contextCanceled() error { return context.Canceled }

type stubHandler struct {
	calls int
	err   error
	last  Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	return h.err
}

type testWriter struct {
	t *testing.T
}

func (tw testWriter) Write(p []byte) (int, error) {
	tw.t.Log(string(p))
	return len(p), nil
}

func testLogger(t *testing.T) *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
