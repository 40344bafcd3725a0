package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// FindUserByPhone retrieves a user by the digits-only phone identity.
	// Returns nil, nil if not found.
	FindUserByPhone(ctx context.Context, phone string) (*User, error)

	// GetPending retrieves the pending interaction for a user.
	// Returns nil, nil if the slot is empty.
	GetPending(ctx context.Context, userID int64) (*PendingInteraction, error)

	// PutPending upserts the single pending slot for the interaction's user,
	// overwriting any existing interaction.
	PutPending(ctx context.Context, p *PendingInteraction) error

	// ClearPending empties the pending slot for a user.
	ClearPending(ctx context.Context, userID int64) error

	// DeleteExpiredPending removes all pending interactions whose expiry has
	// passed. Returns the number of rows removed.
	DeleteExpiredPending(ctx context.Context, now time.Time) (int64, error)

	// SaveNutritionLog inserts a confirmed meal record.
	SaveNutritionLog(ctx context.Context, entry *NutritionLog) error

	// GetDailyCalories sums confirmed calories for a user on a given date
	// (YYYY-MM-DD).
	GetDailyCalories(ctx context.Context, userID int64, date string) (float64, error)

	// LogMessage records an inbound or outbound message.
	LogMessage(ctx context.Context, m *MessageLog) error

	// RecordInbound inserts an inbound dedup record keyed by the provider
	// message id. Returns false if the message was already recorded.
	RecordInbound(ctx context.Context, messageID string, userID int64, now time.Time) (bool, error)

	// PruneDedup removes dedup records received before the cutoff.
	PruneDedup(ctx context.Context, before time.Time) (int64, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) FindUserByPhone(ctx context.Context, phone string) (*User, error) {
	if phone == "" {
		return nil, fmt.Errorf("phone cannot be empty")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var user User
	query := `SELECT id, phone, full_name, created_at, updated_at FROM users WHERE phone = ?`
	err := s.db.GetContext(ctx, &user, query, phone)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "No user found for phone", "phone", phone)
		return nil, nil

	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching user",
			"phone", phone, "error", err)
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting user by phone", "phone", phone, "error", err)
		return nil, fmt.Errorf("failed to get user for phone %s: %w", phone, err)
	}

	return &user, nil
}

// pendingRow is the raw table shape; payload is JSON text.
type pendingRow struct {
	UserID    int64     `db:"user_id"`
	Kind      string    `db:"kind"`
	Payload   string    `db:"payload"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
}

func (s *sqlxStore) GetPending(ctx context.Context, userID int64) (*PendingInteraction, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user_id cannot be zero")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var row pendingRow
	query := `SELECT user_id, kind, payload, created_at, expires_at FROM pending_interactions WHERE user_id = ?`
	err := s.db.GetContext(ctx, &row, query, userID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil

	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching pending interaction",
			"user_id", userID, "error", err)
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting pending interaction", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get pending interaction for user %d: %w", userID, err)
	}

	p := &PendingInteraction{
		UserID:    row.UserID,
		Kind:      PendingKind(row.Kind),
		CreatedAt: row.CreatedAt,
		ExpiresAt: row.ExpiresAt,
	}
	if err := json.Unmarshal([]byte(row.Payload), &p.Payload); err != nil {
		// A corrupt payload is unusable; treat the slot as empty and clear it.
		s.logger.ErrorContext(ctx, "Corrupt pending payload, clearing slot",
			"user_id", userID, "error", err)
		if clearErr := s.ClearPending(ctx, userID); clearErr != nil {
			s.logger.WarnContext(ctx, "Failed to clear corrupt pending slot",
				"user_id", userID, "error", clearErr)
		}
		return nil, nil
	}
	return p, nil
}

func (s *sqlxStore) PutPending(ctx context.Context, p *PendingInteraction) error {
	if p == nil {
		return fmt.Errorf("cannot save nil pending interaction")
	}
	if p.UserID == 0 {
		return fmt.Errorf("pending interaction must have a non-zero user_id")
	}
	if p.Kind == "" {
		return fmt.Errorf("pending interaction must have a kind")
	}
	if p.ExpiresAt.IsZero() {
		return fmt.Errorf("pending interaction must have an expiry")
	}

	payload, err := json.Marshal(p.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode pending payload: %w", err)
	}

	// Single-slot invariant: last write wins on the user's row.
	query := `
        INSERT INTO pending_interactions (user_id, kind, payload, created_at, expires_at)
        VALUES (:user_id, :kind, :payload, :created_at, :expires_at)
        ON CONFLICT(user_id) DO UPDATE SET
            kind = excluded.kind,
            payload = excluded.payload,
            created_at = excluded.created_at,
            expires_at = excluded.expires_at;
    `
	_, err = s.db.NamedExecContext(ctx, query, pendingRow{
		UserID:    p.UserID,
		Kind:      string(p.Kind),
		Payload:   string(payload),
		CreatedAt: p.CreatedAt,
		ExpiresAt: p.ExpiresAt,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving pending interaction",
			"user_id", p.UserID, "kind", p.Kind, "error", err)
		return fmt.Errorf("failed to save pending interaction for user %d: %w", p.UserID, err)
	}

	s.logger.DebugContext(ctx, "Pending interaction saved",
		"user_id", p.UserID, "kind", p.Kind, "expires_at", p.ExpiresAt)
	return nil
}

func (s *sqlxStore) ClearPending(ctx context.Context, userID int64) error {
	if userID == 0 {
		return fmt.Errorf("user_id cannot be zero")
	}

	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_interactions WHERE user_id = ?`, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error clearing pending interaction", "user_id", userID, "error", err)
		return fmt.Errorf("failed to clear pending interaction for user %d: %w", userID, err)
	}

	s.logger.DebugContext(ctx, "Pending interaction cleared", "user_id", userID)
	return nil
}

func (s *sqlxStore) DeleteExpiredPending(ctx context.Context, now time.Time) (int64, error) {
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM pending_interactions WHERE expires_at < ?`, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting expired pending interactions", "error", err)
		return 0, fmt.Errorf("failed to delete expired pending interactions: %w", err)
	}

	count, _ := result.RowsAffected()
	if count > 0 {
		s.logger.InfoContext(ctx, "Deleted expired pending interactions", "count", count)
	}
	return count, nil
}

func (s *sqlxStore) SaveNutritionLog(ctx context.Context, entry *NutritionLog) error {
	if entry == nil {
		return fmt.Errorf("cannot save nil nutrition log")
	}
	if entry.UserID == 0 {
		return fmt.Errorf("nutrition log must have a non-zero user_id")
	}
	if entry.MealDate == "" {
		return fmt.Errorf("nutrition log must have a meal date")
	}

	items, err := json.Marshal(entry.FoodItems)
	if err != nil {
		return fmt.Errorf("failed to encode food items: %w", err)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Source == "" {
		entry.Source = "whatsapp"
	}

	query := `
        INSERT INTO nutrition_logs (user_id, meal_date, meal_type, food_items, total_calories, image_url, source, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?);
    `
	result, err := s.db.ExecContext(ctx, query,
		entry.UserID, entry.MealDate, entry.MealType, string(items),
		entry.TotalCalories, entry.ImageURL, entry.Source, entry.CreatedAt)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving nutrition log",
			"user_id", entry.UserID, "meal_date", entry.MealDate, "error", err)
		return fmt.Errorf("failed to save nutrition log for user %d: %w", entry.UserID, err)
	}

	if id, idErr := result.LastInsertId(); idErr == nil {
		entry.ID = id
	}

	s.logger.DebugContext(ctx, "Nutrition log saved",
		"user_id", entry.UserID, "meal_date", entry.MealDate, "total_calories", entry.TotalCalories)
	return nil
}

func (s *sqlxStore) GetDailyCalories(ctx context.Context, userID int64, date string) (float64, error) {
	if userID == 0 {
		return 0, fmt.Errorf("user_id cannot be zero")
	}
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	var total sql.NullFloat64
	query := `SELECT SUM(total_calories) FROM nutrition_logs WHERE user_id = ? AND meal_date = ?`
	err := s.db.GetContext(ctx, &total, query, userID, date)

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return 0, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error summing daily calories",
			"user_id", userID, "date", date, "error", err)
		return 0, fmt.Errorf("failed to sum daily calories for user %d: %w", userID, err)
	}

	if !total.Valid {
		return 0, nil
	}
	return total.Float64, nil
}

func (s *sqlxStore) LogMessage(ctx context.Context, m *MessageLog) error {
	if m == nil {
		return fmt.Errorf("cannot log nil message")
	}
	if m.UserID == 0 {
		return fmt.Errorf("message log must have a non-zero user_id")
	}
	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}

	query := `
        INSERT INTO message_logs (user_id, direction, content, provider_message_id, attempts, success, sent_at)
        VALUES (?, ?, ?, ?, ?, ?, ?);
    `
	_, err := s.db.ExecContext(ctx, query,
		m.UserID, m.Direction, m.Content, m.ProviderMessageID, m.Attempts, m.Success, m.SentAt)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error logging message",
			"user_id", m.UserID, "direction", m.Direction, "error", err)
		return fmt.Errorf("failed to log message for user %d: %w", m.UserID, err)
	}
	return nil
}

func (s *sqlxStore) RecordInbound(ctx context.Context, messageID string, userID int64, now time.Time) (bool, error) {
	if messageID == "" {
		// No provider id to key on; treat as first delivery.
		return true, nil
	}

	query := `INSERT INTO inbound_dedup (message_id, user_id, received_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, messageID, userID, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			s.logger.InfoContext(ctx, "Duplicate inbound message ignored",
				"message_id", messageID, "user_id", userID)
			return false, nil
		}
		s.logger.ErrorContext(ctx, "Error recording inbound message",
			"message_id", messageID, "user_id", userID, "error", err)
		return false, fmt.Errorf("failed to record inbound message %s: %w", messageID, err)
	}
	return true, nil
}

func (s *sqlxStore) PruneDedup(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM inbound_dedup WHERE received_at < ?`, before)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error pruning dedup records", "error", err)
		return 0, fmt.Errorf("failed to prune dedup records: %w", err)
	}

	count, _ := result.RowsAffected()
	if count > 0 {
		s.logger.InfoContext(ctx, "Pruned dedup records", "count", count)
	}
	return count, nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite.
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)

	default:
		s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	}

	return nil
}
