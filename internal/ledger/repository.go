package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository persists ledger cycles to SQLite. One row per cycle plus
// seven daily balance rows keyed by day index.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Load returns the newest cycle for the user, or nil when the user has
// no ledger yet.
func (r *Repository) Load(ctx context.Context, userID string) (*Ledger, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, cycle_start, daily_target, reward_day_index, reward_confirmed
		FROM ledger_cycles
		WHERE user_id = ?
		ORDER BY cycle_start DESC, id DESC
		LIMIT 1`, userID)

	var (
		cycleID         int64
		cycleStart      time.Time
		dailyTarget     float64
		rewardDayIndex  int
		rewardConfirmed bool
	)
	if err := row.Scan(&cycleID, &cycleStart, &dailyTarget, &rewardDayIndex, &rewardConfirmed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load ledger cycle: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT day_index, date, target, consumed
		FROM daily_balances
		WHERE cycle_id = ?
		ORDER BY day_index`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily balances: %w", err)
	}
	defer rows.Close()

	var days [cycleDays]DailyBalance
	found := 0
	for rows.Next() {
		var idx int
		var day DailyBalance
		if err := rows.Scan(&idx, &day.Date, &day.Target, &day.Consumed); err != nil {
			return nil, fmt.Errorf("failed to scan daily balance: %w", err)
		}
		if idx < 0 || idx >= cycleDays {
			return nil, fmt.Errorf("daily balance has invalid day index %d", idx)
		}
		days[idx] = day
		found++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate daily balances: %w", err)
	}
	if found != cycleDays {
		return nil, fmt.Errorf("ledger cycle %d has %d day rows, expected %d", cycleID, found, cycleDays)
	}

	return Restore(cycleStart, dailyTarget, rewardDayIndex, rewardConfirmed, days)
}

// Save upserts the cycle row and all seven daily balances in one
// transaction.
func (r *Repository) Save(ctx context.Context, userID string, l *Ledger) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var cycleID int64
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM ledger_cycles
		WHERE user_id = ? AND cycle_start = ?`, userID, l.CycleStart()).Scan(&cycleID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, insertErr := tx.ExecContext(ctx, `
			INSERT INTO ledger_cycles (user_id, cycle_start, daily_target, reward_day_index, reward_confirmed)
			VALUES (?, ?, ?, ?, ?)`,
			userID, l.CycleStart(), l.DailyTarget(), l.RewardDayIndex(), l.RewardConfirmed())
		if insertErr != nil {
			return fmt.Errorf("failed to insert ledger cycle: %w", insertErr)
		}
		cycleID, insertErr = res.LastInsertId()
		if insertErr != nil {
			return fmt.Errorf("failed to read ledger cycle id: %w", insertErr)
		}
	case err != nil:
		return fmt.Errorf("failed to look up ledger cycle: %w", err)
	default:
		if _, err := tx.ExecContext(ctx, `
			UPDATE ledger_cycles SET daily_target = ?, reward_day_index = ?, reward_confirmed = ?
			WHERE id = ?`, l.DailyTarget(), l.RewardDayIndex(), l.RewardConfirmed(), cycleID); err != nil {
			return fmt.Errorf("failed to update ledger cycle: %w", err)
		}
	}

	for i, day := range l.Days() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO daily_balances (cycle_id, day_index, date, target, consumed)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (cycle_id, day_index) DO UPDATE SET
				date = excluded.date,
				target = excluded.target,
				consumed = excluded.consumed`,
			cycleID, i, day.Date, day.Target, day.Consumed); err != nil {
			return fmt.Errorf("failed to save daily balance %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ledger save: %w", err)
	}
	return nil
}
