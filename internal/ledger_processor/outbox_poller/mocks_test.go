package outbox_poller

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"

	"github.com/stl-ledger/internal/domain/ledger"
	"github.com/stl-ledger/internal/domain/outbox"
	"github.com/stl-ledger/internal/domain/shared"
)

type MockOutboxRepo struct {
	mock.Mock
}

func (m *MockOutboxRepo) Create(ctx context.Context, message *outbox.Message) error {
	return m.Called(ctx, message).Error(0)
}

func (m *MockOutboxRepo) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) MarkPublished(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockOutboxRepo) MarkFailed(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockOutboxRepo) RecordAttempt(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockOutboxRepo) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*outbox.Message, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) WithTx(tx pgx.Tx) outbox.Repository {
	return m.Called(tx).Get(0).(outbox.Repository)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, message *outbox.Message) error {
	return m.Called(ctx, message).Error(0)
}

type MockViewRepository struct {
	mock.Mock
}

func (m *MockViewRepository) Upsert(ctx context.Context, view *ledger.TransactionView) error {
	return m.Called(ctx, view).Error(0)
}

func (m *MockViewRepository) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*ledger.TransactionView, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.TransactionView), args.Error(1)
}

func (m *MockViewRepository) GetByParticipantID(ctx context.Context, participantID uuid.UUID, limit, offset int) ([]*ledger.TransactionView, error) {
	args := m.Called(ctx, participantID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.TransactionView), args.Error(1)
}

func (m *MockViewRepository) CountByParticipantID(ctx context.Context, participantID uuid.UUID) (int64, error) {
	args := m.Called(ctx, participantID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockViewRepository) UpdateStatus(ctx context.Context, transactionID uuid.UUID, sequence int64, status shared.TransactionStatus) error {
	return m.Called(ctx, transactionID, sequence, status).Error(0)
}

func (m *MockViewRepository) AddLock(ctx context.Context, transactionID uuid.UUID, lock ledger.LockView) error {
	return m.Called(ctx, transactionID, lock).Error(0)
}

type MockMessagePublisher struct {
	mock.Mock
}

func (m *MockMessagePublisher) Publish(ctx context.Context, key string, value interface{}) error {
	return m.Called(ctx, key, value).Error(0)
}

func (m *MockMessagePublisher) PublishRaw(ctx context.Context, key string, payload []byte, headers map[string]string) error {
	return m.Called(ctx, key, payload, headers).Error(0)
}

func (m *MockMessagePublisher) Close() error {
	return m.Called().Error(0)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
