// Package mongo holds the transaction read model projected from ledger events.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stl-ledger/internal/domain/ledger"
	"github.com/stl-ledger/internal/domain/shared"
)

const (
	// ViewCollectionName is the collection holding one document per transaction
	ViewCollectionName = "transaction_views"
)

// ViewRepository implements ledger.ViewRepository for MongoDB.
// Every write is idempotent so events can be redelivered by the outbox.
type ViewRepository struct {
	collection *mongo.Collection
	logger     *slog.Logger
	now        func() time.Time
}

func NewViewRepository(logger *slog.Logger, db *mongo.Database) *ViewRepository {
	return &ViewRepository{
		collection: db.Collection(ViewCollectionName),
		logger:     logger,
		now:        time.Now,
	}
}

// EnsureIndexes creates the lookup indexes of the read model
func (r *ViewRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "transaction_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uq_transaction_id"),
		},
		{
			Keys:    bson.D{{Key: "participant_ids", Value: 1}, {Key: "sequence", Value: -1}},
			Options: options.Index().SetName("ix_participant_sequence"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create transaction view indexes: %w", err)
	}
	return nil
}

// Upsert inserts the view of a new transaction. An existing document is left untouched.
func (r *ViewRepository) Upsert(ctx context.Context, view *ledger.TransactionView) error {
	filter := bson.M{"transaction_id": view.TransactionID}
	update := bson.M{"$setOnInsert": view}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		r.logger.Error("Failed to upsert transaction view",
			"transaction_id", view.TransactionID.String(),
			"error", err)
		return fmt.Errorf("failed to upsert transaction view: %w", err)
	}
	return nil
}

// GetByTransactionID returns ledger.ErrViewNotFound when the transaction has not been projected yet
func (r *ViewRepository) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*ledger.TransactionView, error) {
	var view ledger.TransactionView
	err := r.collection.FindOne(ctx, bson.M{"transaction_id": transactionID}).Decode(&view)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ledger.ErrViewNotFound{TransactionID: transactionID}
		}
		r.logger.Error("Failed to get transaction view",
			"transaction_id", transactionID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get transaction view: %w", err)
	}
	return &view, nil
}

// GetByParticipantID pages through the transactions a participant took part in, newest first
func (r *ViewRepository) GetByParticipantID(ctx context.Context, participantID uuid.UUID, limit, offset int) ([]*ledger.TransactionView, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "sequence", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{"participant_ids": participantID}, opts)
	if err != nil {
		r.logger.Error("Failed to list transaction views",
			"participant_id", participantID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to list transaction views: %w", err)
	}
	defer cursor.Close(ctx)

	views := make([]*ledger.TransactionView, 0, limit)
	if err := cursor.All(ctx, &views); err != nil {
		return nil, fmt.Errorf("failed to decode transaction views: %w", err)
	}
	return views, nil
}

func (r *ViewRepository) CountByParticipantID(ctx context.Context, participantID uuid.UUID) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"participant_ids": participantID})
	if err != nil {
		r.logger.Error("Failed to count transaction views",
			"participant_id", participantID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to count transaction views: %w", err)
	}
	return count, nil
}

// UpdateStatus projects a status change. Changes older than the projected status are ignored.
func (r *ViewRepository) UpdateStatus(ctx context.Context, transactionID uuid.UUID, sequence int64, status shared.TransactionStatus) error {
	filter := bson.M{
		"transaction_id":  transactionID,
		"status_sequence": bson.M{"$lt": sequence},
	}
	update := bson.M{
		"$set": bson.M{
			"status":          status,
			"status_sequence": sequence,
			"updated_at":      r.now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		r.logger.Error("Failed to update transaction view status",
			"transaction_id", transactionID.String(),
			"status", string(status),
			"error", err)
		return fmt.Errorf("failed to update transaction view status: %w", err)
	}
	if result.MatchedCount > 0 {
		return nil
	}
	return r.ensureExists(ctx, transactionID)
}

// AddLock appends a lock to the view unless it is already there
func (r *ViewRepository) AddLock(ctx context.Context, transactionID uuid.UUID, lock ledger.LockView) error {
	update := bson.M{
		"$addToSet": bson.M{"locks": lock},
		"$set":      bson.M{"updated_at": r.now().UTC()},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"transaction_id": transactionID}, update)
	if err != nil {
		r.logger.Error("Failed to add lock to transaction view",
			"transaction_id", transactionID.String(),
			"lock_id", lock.LockID.String(),
			"error", err)
		return fmt.Errorf("failed to add lock to transaction view: %w", err)
	}
	if result.MatchedCount == 0 {
		return ledger.ErrViewNotFound{TransactionID: transactionID}
	}
	return nil
}

// ensureExists tells a stale status update apart from a missing view
func (r *ViewRepository) ensureExists(ctx context.Context, transactionID uuid.UUID) error {
	count, err := r.collection.CountDocuments(ctx, bson.M{"transaction_id": transactionID}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("failed to look up transaction view: %w", err)
	}
	if count == 0 {
		return ledger.ErrViewNotFound{TransactionID: transactionID}
	}
	r.logger.Debug("Ignoring stale status projection", "transaction_id", transactionID.String())
	return nil
}

var _ ledger.ViewRepository = (*ViewRepository)(nil)
