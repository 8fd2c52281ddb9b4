package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/stl-ledger/internal/domain/shared"
	"github.com/stl-ledger/internal/ledger_core/service"
	"github.com/stl-ledger/internal/platform/messaging/consumers"
	"github.com/stl-ledger/internal/platform/messaging/producers"
)

// CommandHandler applies ledger commands read from Kafka through the ledger writer
type CommandHandler struct {
	writer service.LedgerWriter
	dlq    producers.DeadLetterPublisher
	logger *slog.Logger
}

func NewCommandHandler(logger *slog.Logger, writer service.LedgerWriter, dlq producers.DeadLetterPublisher) *CommandHandler {
	return &CommandHandler{
		writer: writer,
		dlq:    dlq,
		logger: logger,
	}
}

// HandleMessage returns nil once the command is applied or parked on the DLQ.
// Errors the ledger may get past on redelivery are returned so the offset is not committed.
func (h *CommandHandler) HandleMessage(ctx context.Context, msg consumers.Message) error {
	var cmd shared.LedgerCommand
	if err := json.Unmarshal(msg.Value, &cmd); err != nil {
		h.logger.Error("Failed to unmarshal ledger command", "message_key", string(msg.Key), "error", err)
		return h.park(ctx, msg, "malformed command: "+err.Error())
	}

	logger := h.logger.With("command_id", cmd.CommandID.String(), "command_type", string(cmd.Type))
	if cmd.CorrelationID != "" {
		logger = logger.With("correlation_id", cmd.CorrelationID)
	}
	if cmd.TransactionID == uuid.Nil {
		logger.Warn("Ledger command without transaction id")
		return h.park(ctx, msg, "missing transaction_id")
	}
	logger = logger.With("transaction_id", cmd.TransactionID.String())

	err := h.apply(ctx, &cmd)
	if err == nil {
		logger.Info("Ledger command applied")
		return nil
	}

	if rejected(err) {
		logger.Warn("Ledger command rejected", "error", err)
		return h.park(ctx, msg, rejectionReason(err))
	}

	logger.Error("Failed to apply ledger command", "error", err)
	return fmt.Errorf("applying command %s failed: %w", cmd.CommandID, err)
}

func (h *CommandHandler) apply(ctx context.Context, cmd *shared.LedgerCommand) error {
	switch cmd.Type {
	case shared.CommandChangeStatus:
		_, err := h.writer.ChangeStatus(ctx, cmd.TransactionID, cmd.Status, cmd.Reason, cmd.Actor)
		return err
	case shared.CommandPlaceLock:
		_, err := h.writer.PlaceLock(ctx, service.PlaceLockRequest{
			TransactionID: cmd.TransactionID,
			LockType:      cmd.LockType,
			Reason:        cmd.Reason,
			ExpiresAt:     cmd.ExpiresAt,
		}, cmd.Actor)
		return err
	case shared.CommandRecordAudit:
		_, err := h.writer.RecordAudit(ctx, cmd.TransactionID, cmd.Actor, cmd.ActionType, cmd.Metadata)
		return err
	default:
		return errUnknownCommand{Type: cmd.Type}
	}
}

// park sends msg to the DLQ. Without a DLQ the command is dropped after logging.
func (h *CommandHandler) park(ctx context.Context, msg consumers.Message, reason string) error {
	err := producers.ErrDLQDisabled
	if h.dlq != nil {
		err = h.dlq.PublishToDLQ(ctx, string(msg.Key), msg.Value, reason)
	}
	if errors.Is(err, producers.ErrDLQDisabled) {
		h.logger.Warn("Dropping unprocessable command, DLQ disabled", "message_key", string(msg.Key), "reason", reason)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to park command on DLQ: %w", err)
	}
	return nil
}

type errUnknownCommand struct {
	Type shared.CommandType
}

func (e errUnknownCommand) Error() string {
	return "unknown command type: " + string(e.Type)
}

// rejected reports errors that would fail the same way on every redelivery
func rejected(err error) bool {
	var unknown errUnknownCommand
	if errors.As(err, &unknown) {
		return true
	}
	var coded shared.CodedError
	if !errors.As(err, &coded) {
		return false
	}
	switch coded.Code() {
	case shared.CodeConcurrentAppendConflict, shared.CodeChainIntegrityViolation:
		return false
	}
	return true
}

func rejectionReason(err error) string {
	var coded shared.CodedError
	if errors.As(err, &coded) {
		return string(coded.Code()) + ": " + err.Error()
	}
	return err.Error()
}
