package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/stl-ledger/internal/domain/chain"
	"github.com/stl-ledger/internal/domain/ledger"
	"github.com/stl-ledger/internal/domain/shared"
	"github.com/stl-ledger/internal/platform/metrics"
)

const haltPersistTimeout = 5 * time.Second

// IntegrityGuard halts appends to a chain once a violation has been detected on it.
// Halts are written to the append log so that every process sharing it refuses the
// chain, also after a restart. Only an operator clears a halt.
type IntegrityGuard struct {
	mu        sync.RWMutex
	halted    map[chain.ID]shared.ErrChainIntegrityViolation
	persisted map[chain.ID]bool
	store     ledger.HaltStore
	metrics   metrics.LedgerMetrics
	now       func() time.Time
	logger    *slog.Logger
}

// NewIntegrityGuard creates a guard. A nil store keeps halts in process memory only.
func NewIntegrityGuard(store ledger.HaltStore, m metrics.LedgerMetrics, logger *slog.Logger) *IntegrityGuard {
	if m == nil {
		m = metrics.NoOpMetrics{}
	}
	return &IntegrityGuard{
		halted:    make(map[chain.ID]shared.ErrChainIntegrityViolation),
		persisted: make(map[chain.ID]bool),
		store:     store,
		metrics:   m,
		now:       time.Now,
		logger:    logger,
	}
}

// Halt stops further extension of the violated chain. The first violation is kept.
func (g *IntegrityGuard) Halt(ctx context.Context, violation shared.ErrChainIntegrityViolation) {
	id := chain.ID(violation.Chain)
	if first := g.remember(violation); first {
		g.metrics.RecordChainHalted(violation.Chain)
		g.logger.Error("Chain integrity violation detected, halting appends",
			"chain", violation.Chain,
			"sequence", violation.Sequence,
			"record_id", violation.RecordID.String(),
			"detail", violation.Detail,
		)
	}

	g.mu.RLock()
	done := g.store == nil || g.persisted[id]
	g.mu.RUnlock()
	if done {
		return
	}

	// the halt must outlive a request that was cancelled after detecting it
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), haltPersistTimeout)
	defer cancel()
	if err := g.store.HaltChain(ctx, violation, g.now().UTC()); err != nil {
		g.logger.Error("Failed to persist chain halt", "chain", violation.Chain, "error", err)
		return
	}
	g.mu.Lock()
	g.persisted[id] = true
	g.mu.Unlock()
}

// CheckTail returns the violation stored on a halted tail and adopts the halt locally
func (g *IntegrityGuard) CheckTail(tail chain.Tail) error {
	if tail.Halt == nil {
		return nil
	}
	violation := shared.ErrChainIntegrityViolation{
		Chain:    string(tail.Chain),
		Sequence: tail.Halt.Sequence,
		RecordID: tail.Halt.RecordID,
		Detail:   tail.Halt.Detail,
	}
	if first := g.remember(violation); first {
		g.logger.Warn("Chain was halted by another writer, refusing appends",
			"chain", violation.Chain,
			"sequence", violation.Sequence,
			"halted_at", tail.Halt.At,
		)
	}
	g.mu.Lock()
	g.persisted[tail.Chain] = true
	g.mu.Unlock()
	return violation
}

// Check returns the recorded violation of the first halted chain among ids
func (g *IntegrityGuard) Check(ids ...chain.ID) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, id := range ids {
		if violation, ok := g.halted[id]; ok {
			return violation
		}
	}
	return nil
}

// Halted lists the chains halted in this process or in the shared store
func (g *IntegrityGuard) Halted(ctx context.Context) []chain.ID {
	set := make(map[chain.ID]struct{})
	g.mu.RLock()
	for id := range g.halted {
		set[id] = struct{}{}
	}
	g.mu.RUnlock()

	if g.store != nil {
		stored, err := g.store.HaltedChains(ctx)
		if err != nil {
			g.logger.Warn("Failed to read persisted chain halts", "error", err)
		}
		for _, violation := range stored {
			set[chain.ID(violation.Chain)] = struct{}{}
		}
	}

	ids := make([]chain.ID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (g *IntegrityGuard) remember(violation shared.ErrChainIntegrityViolation) bool {
	id := chain.ID(violation.Chain)
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, already := g.halted[id]; already {
		return false
	}
	g.halted[id] = violation
	return true
}
