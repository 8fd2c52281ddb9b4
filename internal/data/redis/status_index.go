// Package redis holds the latest-status index and the cross-instance chain lock.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/stl-ledger/internal/domain/shared"
	"github.com/stl-ledger/internal/domain/status"
)

const statusKeyPrefix = "ledger:status:"

// setIfNewer stores "sequence|status" unless the stored sequence is equal or higher.
// KEYS[1] status key, ARGV[1] sequence, ARGV[2] status, ARGV[3] ttl in milliseconds.
var setIfNewer = goredis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current then
	local sep = string.find(current, '|', 1, true)
	if sep and tonumber(string.sub(current, 1, sep - 1)) >= tonumber(ARGV[1]) then
		return 0
	end
end
local value = ARGV[1] .. '|' .. ARGV[2]
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], value, 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], value)
end
return 1
`)

// StatusClient is the part of a go-redis client the index needs
type StatusClient interface {
	goredis.Scripter
	Get(ctx context.Context, key string) *goredis.StringCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

// StatusIndex implements status.Index on Redis
type StatusIndex struct {
	client StatusClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewStatusIndex(logger *slog.Logger, client StatusClient, ttl time.Duration) *StatusIndex {
	return &StatusIndex{client: client, ttl: ttl, logger: logger}
}

func (i *StatusIndex) Get(ctx context.Context, transactionID uuid.UUID) (shared.TransactionStatus, bool, error) {
	value, err := i.client.Get(ctx, statusKey(transactionID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read status index: %w", err)
	}

	_, status, err := decodeStatus(value)
	if err != nil {
		i.logger.Warn("Discarding malformed status index entry", "transaction_id", transactionID.String(), "value", value)
		return "", false, nil
	}
	return status, true, nil
}

// Set stores status unless a newer sequence is already indexed
func (i *StatusIndex) Set(ctx context.Context, transactionID uuid.UUID, sequence int64, status shared.TransactionStatus) error {
	applied, err := setIfNewer.Run(ctx, i.client,
		[]string{statusKey(transactionID)},
		sequence, string(status), i.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("failed to update status index: %w", err)
	}
	if applied == 0 {
		i.logger.Debug("Status index already holds a newer entry", "transaction_id", transactionID.String(), "sequence", sequence)
	}
	return nil
}

func (i *StatusIndex) Delete(ctx context.Context, transactionID uuid.UUID) error {
	if err := i.client.Del(ctx, statusKey(transactionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete status index entry: %w", err)
	}
	return nil
}

func statusKey(transactionID uuid.UUID) string {
	return statusKeyPrefix + transactionID.String()
}

func decodeStatus(value string) (int64, shared.TransactionStatus, error) {
	raw, status, ok := strings.Cut(value, "|")
	if !ok {
		return 0, "", fmt.Errorf("missing separator in %q", value)
	}
	sequence, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid sequence in %q: %w", value, err)
	}
	s := shared.TransactionStatus(status)
	if !s.IsValid() {
		return 0, "", fmt.Errorf("invalid status in %q", value)
	}
	return sequence, s, nil
}

var _ status.Index = (*StatusIndex)(nil)
