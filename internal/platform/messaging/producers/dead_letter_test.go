package producers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDLQProducer_PublishToDLQ(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := context.Background()
	failedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	newProducer := func(w KafkaWriter) *DLQProducer {
		return &DLQProducer{
			logger:   logger,
			writer:   w,
			dlqTopic: "ledger_dlq",
			now:      func() time.Time { return failedAt },
		}
	}

	t.Run("JSONCommandIsEmbedded", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		original := []byte(`{"type":"CHANGE_STATUS"}`)

		mockWriter.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 || string(msgs[0].Key) != "tx-1" {
				return false
			}
			var letter DeadLetter
			if err := json.Unmarshal(msgs[0].Value, &letter); err != nil {
				return false
			}
			return string(letter.OriginalValue) == string(original) &&
				letter.RawValue == "" &&
				letter.Reason == "INVALID_STATUS_TRANSITION" &&
				letter.FailedAt.Equal(failedAt) &&
				msgs[0].Headers[0].Key == "dlq-reason"
		})).Return(nil).Once()

		err := newProducer(mockWriter).PublishToDLQ(ctx, "tx-1", original, "INVALID_STATUS_TRANSITION")
		require.NoError(t, err)
		mockWriter.AssertExpectations(t)
	})

	t.Run("GarbageIsKeptAsString", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)

		mockWriter.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
			var letter DeadLetter
			if err := json.Unmarshal(msgs[0].Value, &letter); err != nil {
				return false
			}
			return letter.RawValue == "not-json" && len(letter.OriginalValue) == 0
		})).Return(nil).Once()

		err := newProducer(mockWriter).PublishToDLQ(ctx, "k", []byte("not-json"), "malformed command")
		require.NoError(t, err)
	})

	t.Run("WriterError", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		writerErr := errors.New("kafka DLQ write error")
		mockWriter.On("WriteMessages", ctx, mock.AnythingOfType("[]kafka.Message")).Return(writerErr).Once()

		err := newProducer(mockWriter).PublishToDLQ(ctx, "k", []byte("{}"), "reason")
		assert.ErrorIs(t, err, writerErr)
	})

	t.Run("Disabled", func(t *testing.T) {
		var producer *DLQProducer
		err := producer.PublishToDLQ(ctx, "k", []byte("{}"), "reason")
		assert.ErrorIs(t, err, ErrDLQDisabled)
		assert.NoError(t, producer.Close())
	})
}

func TestDLQProducer_Close(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("Success", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		mockWriter.On("Close").Return(nil).Once()
		producer := &DLQProducer{logger: logger, writer: mockWriter, dlqTopic: "ledger_dlq"}
		require.NoError(t, producer.Close())
		mockWriter.AssertExpectations(t)
	})

	t.Run("WriterError", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		closeErr := errors.New("close failed")
		mockWriter.On("Close").Return(closeErr).Once()
		producer := &DLQProducer{logger: logger, writer: mockWriter, dlqTopic: "ledger_dlq"}
		assert.ErrorIs(t, producer.Close(), closeErr)
	})
}
