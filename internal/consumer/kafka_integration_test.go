//go:build integration

package consumer

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkacontainer "github.com/testcontainers/testcontainers-go/modules/kafka"

	"example.com/endurance/internal/events"
	"example.com/endurance/internal/publish"
)

type syncHandler struct {
	mu   sync.Mutex
	msgs []Message
}

func (h *syncHandler) Handle(_ context.Context, msg Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msg)
	return nil
}

func (h *syncHandler) received() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Message(nil), h.msgs...)
}

func TestPublishedIngestionReachesProcessor(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	kafkaC, err := kafkacontainer.Run(ctx, "confluentinc/confluent-local:7.5.0", testcontainers.WithEnv(map[string]string{
		"KAFKA_AUTO_CREATE_TOPICS_ENABLE": "true",
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kafkaC.Terminate(context.Background()) })

	brokers, err := kafkaC.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)

	const topic = "ingestion_events"
	conn, err := kafka.Dial("tcp", brokers[0])
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.CreateTopics(kafka.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}))

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     "endurance-integration",
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	defer reader.Close()

	handler := &syncHandler{}
	consumerCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() { _ = NewProcessor(reader, handler, WithLogger(testLogger(t))).Run(consumerCtx) }()

	producer := publish.NewKafkaProducer(brokers)
	defer producer.Close()
	pub := publish.NewPublisher(producer, topic)

	ev := events.IngestionCompleted{
		RunID:       "run-kafka",
		StartWeek:   45,
		EndWeek:     52,
		AthleteIDs:  []int64{42},
		Appended:    3,
		CompletedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, pub.PublishIngestion(ctx, ev))

	require.Eventually(t, func() bool { return len(handler.received()) == 1 }, time.Minute, 250*time.Millisecond)

	msg := handler.received()[0]
	require.Equal(t, events.TypeIngestionCompleted, msg.EventType)
	require.Equal(t, "run-kafka", msg.Key)

	var got events.IngestionCompleted
	require.NoError(t, json.Unmarshal(msg.Payload, &got))
	require.Equal(t, ev.AthleteIDs, got.AthleteIDs)
	require.True(t, ev.CompletedAt.Equal(got.CompletedAt))
}
