package components

import (
	"log/slog"

	"github.com/stl-ledger/internal/data/memory"
	"github.com/stl-ledger/internal/data/postgres"
	"github.com/stl-ledger/internal/domain/reference"
	"github.com/stl-ledger/internal/domain/status"
	"github.com/stl-ledger/internal/platform/persistence"
)

// PostgresStores backs the ledger core with PostgreSQL. index may be nil.
func PostgresStores(db *persistence.PostgresDB, index status.Index, logger *slog.Logger) LedgerStores {
	appendLog := postgres.NewAppendLog(logger.With("repository", "append_log"), db)
	return LedgerStores{
		AppendLog:    appendLog,
		Halts:        appendLog,
		Transactions: postgres.NewTransactionRepository(logger.With("repository", "transactions"), db),
		Participants: postgres.NewParticipantRepository(logger.With("repository", "participants"), db),
		History:      postgres.NewStatusRepository(logger.With("repository", "status_history"), db),
		Audits:       postgres.NewAuditRepository(logger.With("repository", "audit_log"), db),
		Locks:        postgres.NewLockRepository(logger.With("repository", "locks"), db),
		References:   postgres.NewReferenceRepository(logger.With("repository", "references"), db),
		StatusIndex:  index,
	}
}

// MemoryStores backs the ledger core with a single process store.
// references defaults to the seeded reference data.
func MemoryStores(store *memory.Store, references reference.Store, index status.Index) LedgerStores {
	if references == nil {
		references = memory.NewDefaultReferenceStore()
	}
	return LedgerStores{
		AppendLog:    store,
		Halts:        store,
		Transactions: store.Transactions(),
		Participants: store.Participants(),
		History:      store.StatusHistory(),
		Audits:       store.AuditEntries(),
		Locks:        store.Locks(),
		References:   references,
		StatusIndex:  index,
	}
}
