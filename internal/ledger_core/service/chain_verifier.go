package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/stl-ledger/internal/domain/chain"
	"github.com/stl-ledger/internal/domain/shared"
	"golang.org/x/sync/errgroup"
)

// ChainVerifier periodically replays both chains from genesis
type ChainVerifier struct {
	query    *QueryService
	interval time.Duration
	logger   *slog.Logger
}

func NewChainVerifier(query *QueryService, interval time.Duration, logger *slog.Logger) *ChainVerifier {
	return &ChainVerifier{
		query:    query,
		interval: interval,
		logger:   logger,
	}
}

// Start runs a verification pass every interval until ctx is done
func (v *ChainVerifier) Start(ctx context.Context) {
	if v.interval <= 0 {
		v.logger.Info("Periodic chain verification disabled")
		return
	}

	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	v.logger.Info("Starting chain verifier", "interval", v.interval)
	for {
		select {
		case <-ctx.Done():
			v.logger.Info("Stopping chain verifier")
			return
		case <-ticker.C:
			if err := v.VerifyAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
				v.logger.Error("Chain verification failed", "error", err)
			}
		}
	}
}

// VerifyAll verifies both chains concurrently and returns the first failure
func (v *ChainVerifier) VerifyAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range []chain.ID{chain.Transactions, chain.Audit} {
		id := id
		g.Go(func() error {
			report, err := v.query.VerifyChain(gctx, id, 1, 0)
			if err != nil {
				var violation shared.ErrChainIntegrityViolation
				if errors.As(err, &violation) {
					v.logger.Error("Chain failed verification",
						"chain", string(id),
						"failed_at", violation.Sequence,
						"detail", violation.Detail,
					)
				}
				return err
			}
			v.logger.Info("Chain verified", "chain", string(id), "checked", report.Checked)
			return nil
		})
	}
	return g.Wait()
}
