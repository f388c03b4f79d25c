package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SettingTTSDailyLimit is the settings key for the global daily TTS cap.
const SettingTTSDailyLimit = "tts_daily_limit"

// Store is the ledger surface the admission and recording paths depend on.
// AddMinutes must be a single-statement additive upsert: two concurrent
// calls for the same (user, day) must both land, never overwrite.
type Store interface {
	MonthlyMinuteTotal(ctx context.Context, userID uuid.UUID, monthStart time.Time) (float64, error)
	AddMinutes(ctx context.Context, userID uuid.UUID, day time.Time, amount float64) error
	DailyTTSCount(ctx context.Context, userID uuid.UUID, day time.Time) (int, error)
	InsertTTSCall(ctx context.Context, userID uuid.UUID) error

	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error

	PurgeMinutesBefore(ctx context.Context, monthStart time.Time) (int64, error)
}

type postgresStore struct {
	pool *pgxpool.Pool
}

// NewStore creates the PostgreSQL-backed ledger store.
func NewStore(pool *pgxpool.Pool) Store {
	return &postgresStore{pool: pool}
}

func (s *postgresStore) MonthlyMinuteTotal(ctx context.Context, userID uuid.UUID, monthStart time.Time) (float64, error) {
	next := monthStart.AddDate(0, 1, 0)

	var total float64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(minutes), 0)
		 FROM minutes_ledger
		 WHERE user_id = $1 AND day >= $2 AND day < $3`,
		userID, monthStart, next,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing monthly minutes: %w", err)
	}
	return total, nil
}

// AddMinutes inserts or increments the (user, day) row in one statement.
// The ON CONFLICT arithmetic runs inside the row lock, so concurrent
// writers add rather than clobber each other.
func (s *postgresStore) AddMinutes(ctx context.Context, userID uuid.UUID, day time.Time, amount float64) error {
	if amount < 0 {
		return errors.New("minute amount must not be negative")
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO minutes_ledger (user_id, day, minutes, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (user_id, day)
		 DO UPDATE SET minutes = minutes_ledger.minutes + EXCLUDED.minutes,
		               updated_at = NOW()`,
		userID, day, amount)
	if err != nil {
		return fmt.Errorf("upserting minutes: %w", err)
	}
	return nil
}

func (s *postgresStore) DailyTTSCount(ctx context.Context, userID uuid.UUID, day time.Time) (int, error) {
	next := day.AddDate(0, 0, 1)

	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM tts_ledger
		 WHERE user_id = $1 AND created_at >= $2 AND created_at < $3`,
		userID, day, next,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting daily tts calls: %w", err)
	}
	return count, nil
}

func (s *postgresStore) InsertTTSCall(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tts_ledger (id, user_id, created_at) VALUES ($1, $2, NOW())`,
		uuid.New(), userID)
	if err != nil {
		return fmt.Errorf("inserting tts record: %w", err)
	}
	return nil
}

func (s *postgresStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM settings WHERE key = $1`, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading setting %s: %w", key, err)
	}
	return value, true, nil
}

func (s *postgresStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO settings (key, value, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, value)
	if err != nil {
		return fmt.Errorf("writing setting %s: %w", key, err)
	}
	return nil
}

// PurgeMinutesBefore removes every minutes row from days before monthStart.
// This is the administrative month-boundary reset.
func (s *postgresStore) PurgeMinutesBefore(ctx context.Context, monthStart time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM minutes_ledger WHERE day < $1`, monthStart)
	if err != nil {
		return 0, fmt.Errorf("purging minutes ledger: %w", err)
	}
	return tag.RowsAffected(), nil
}
