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

	"github.com/finverse-ledger-engine/internal/domain/statement"
)

const (
	// StatementCollectionName is the name of the statement collection in MongoDB
	StatementCollectionName = "statement_lines"
)

// StatementRepository implements the statement.Repository interface for MongoDB
type StatementRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewStatementRepository creates a new MongoDB statement repository
func NewStatementRepository(logger *slog.Logger, db *mongo.Database) statement.Repository {
	return &StatementRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert stores a statement line keyed by entry ID. Replaying the same entry
// overwrites the previous projection, so the poller can retry safely.
func (r *StatementRepository) Upsert(ctx context.Context, line *statement.Line) error {
	collection := r.db.Collection(StatementCollectionName)

	filter := bson.M{"entry_id": line.EntryID}
	opts := options.Replace().SetUpsert(true)

	_, err := collection.ReplaceOne(ctx, filter, line, opts)
	if err != nil {
		r.logger.Error("Failed to upsert statement line",
			"entry_id", line.EntryID.String(),
			"error", err)
		return fmt.Errorf("failed to upsert statement line: %w", err)
	}

	return nil
}

// GetByEntryID retrieves a statement line by its wallet entry ID.
// Returns ErrLineNotFound if no line has been projected for the entry.
func (r *StatementRepository) GetByEntryID(ctx context.Context, entryID uuid.UUID) (*statement.Line, error) {
	collection := r.db.Collection(StatementCollectionName)

	filter := bson.M{"entry_id": entryID}
	var line statement.Line
	err := collection.FindOne(ctx, filter).Decode(&line)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, statement.ErrLineNotFound{EntryID: entryID}
		}
		r.logger.Error("Failed to get statement line",
			"entry_id", entryID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get statement line: %w", err)
	}

	return &line, nil
}

// ListByWallet retrieves paginated statement lines for a wallet.
// Results are sorted by creation time in descending order (newest first).
func (r *StatementRepository) ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*statement.Line, error) {
	collection := r.db.Collection(StatementCollectionName)

	filter := bson.M{"wallet_id": walletID}
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to list statement lines",
			"wallet_id", walletID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to list statement lines: %w", err)
	}
	defer cursor.Close(ctx)

	var lines []*statement.Line
	if err := cursor.All(ctx, &lines); err != nil {
		r.logger.Error("Failed to decode statement lines",
			"wallet_id", walletID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode statement lines: %w", err)
	}

	return lines, nil
}

// CountByWallet counts the total number of statement lines for a wallet
func (r *StatementRepository) CountByWallet(ctx context.Context, walletID uuid.UUID) (int64, error) {
	collection := r.db.Collection(StatementCollectionName)

	filter := bson.M{"wallet_id": walletID}
	count, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		r.logger.Error("Failed to count statement lines",
			"wallet_id", walletID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to count statement lines: %w", err)
	}

	return count, nil
}

// ListByTimeRange retrieves paginated statement lines for a wallet within the
// specified time window, sorted newest first.
func (r *StatementRepository) ListByTimeRange(ctx context.Context, walletID uuid.UUID, start, end time.Time, limit, offset int) ([]*statement.Line, error) {
	collection := r.db.Collection(StatementCollectionName)

	filter := bson.M{
		"wallet_id": walletID,
		"created_at": bson.M{
			"$gte": start,
			"$lte": end,
		},
	}
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to list statement lines by time range",
			"wallet_id", walletID.String(),
			"start_time", start,
			"end_time", end,
			"error", err)
		return nil, fmt.Errorf("failed to list statement lines by time range: %w", err)
	}
	defer cursor.Close(ctx)

	var lines []*statement.Line
	if err := cursor.All(ctx, &lines); err != nil {
		r.logger.Error("Failed to decode statement lines",
			"wallet_id", walletID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode statement lines: %w", err)
	}

	return lines, nil
}
