package planner

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PlanRepository persists weekly plans as JSON documents keyed by their
// UUID.
type PlanRepository struct {
	db *sql.DB
}

func NewPlanRepository(db *sql.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// Save stores the plan, replacing any previous version with the same ID
// (regeneration and reward confirmation rewrite the document).
func (r *PlanRepository) Save(ctx context.Context, plan *WeeklyPlan) error {
	data, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to marshal plan %s: %w", plan.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO meal_plans (id, user_id, plan_data, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET plan_data = excluded.plan_data
	`, plan.ID, plan.UserID, string(data), plan.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save plan %s: %w", plan.ID, err)
	}
	return nil
}

// Get returns a stored plan by ID, or nil when it does not exist.
func (r *PlanRepository) Get(ctx context.Context, id string) (*WeeklyPlan, error) {
	var data string
	err := r.db.QueryRowContext(ctx,
		`SELECT plan_data FROM meal_plans WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan %s: %w", id, err)
	}

	var plan WeeklyPlan
	if err := json.Unmarshal([]byte(data), &plan); err != nil {
		return nil, fmt.Errorf("failed to unmarshal plan %s: %w", id, err)
	}
	return &plan, nil
}

// LatestByUserID returns the user's most recent plan, or nil when the
// user has none yet.
func (r *PlanRepository) LatestByUserID(ctx context.Context, userID string) (*WeeklyPlan, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `
		SELECT plan_data FROM meal_plans
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest plan for user %s: %w", userID, err)
	}

	var plan WeeklyPlan
	if err := json.Unmarshal([]byte(data), &plan); err != nil {
		return nil, fmt.Errorf("failed to unmarshal latest plan for user %s: %w", userID, err)
	}
	return &plan, nil
}

// ListRecentByUserID returns up to limit plans for the user, newest
// first. Rows that no longer unmarshal are skipped.
func (r *PlanRepository) ListRecentByUserID(ctx context.Context, userID string, limit int) ([]*WeeklyPlan, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT plan_data FROM meal_plans
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans for user %s: %w", userID, err)
	}
	defer rows.Close()

	var plans []*WeeklyPlan
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan plan row: %w", err)
		}
		var plan WeeklyPlan
		if err := json.Unmarshal([]byte(data), &plan); err != nil {
			continue
		}
		plans = append(plans, &plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate plan rows: %w", err)
	}
	return plans, nil
}
