package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stl-ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusRepository(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := &StatusRepository{querier: mock, logger: newTestLogger()}
	txID := uuid.New()
	at := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	columns := []string{"id", "sequence", "transaction_id", "status", "reason", "created_at"}

	t.Run("no history yet", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(selectLatestStatus)).WithArgs(txID).WillReturnError(pgx.ErrNoRows)
		entry, err := repo.GetLatest(ctx, txID)
		assert.NoError(t, err)
		assert.Nil(t, entry)
	})

	t.Run("latest entry", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(selectLatestStatus)).WithArgs(txID).
			WillReturnRows(pgxmock.NewRows(columns).AddRow(uuid.New(), int64(8), txID, shared.TransactionStatusOnHold, "review", at))
		entry, err := repo.GetLatest(ctx, txID)
		require.NoError(t, err)
		assert.Equal(t, shared.TransactionStatusOnHold, entry.Status)
		assert.Equal(t, int64(8), entry.Sequence)
	})

	t.Run("history in order", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(selectStatusHistory)).WithArgs(txID).
			WillReturnRows(pgxmock.NewRows(columns).
				AddRow(uuid.New(), int64(3), txID, shared.TransactionStatusPending, "Transaction created", at).
				AddRow(uuid.New(), int64(8), txID, shared.TransactionStatusOnHold, "review", at))
		history, err := repo.GetHistory(ctx, txID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, shared.TransactionStatusPending, history[0].Status)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
