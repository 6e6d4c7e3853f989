package app

import (
	"context"
	"fmt"
	"time"

	"budget-meal-planner/internal/ledger"
)

// LogConsumption records calories eaten on a date against the user's
// current cycle and returns the updated ledger. Dates outside the
// cycle's seven-day window are accepted but ignored.
func (a *App) LogConsumption(ctx context.Context, userID string, date time.Time, calories float64) (*ledger.Ledger, error) {
	l, err := a.ledgerRepo.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	if l == nil {
		return nil, ErrNoLedger
	}

	l.RolloverIfExpired(time.Now().UTC())
	if err := l.RecordConsumption(date, calories); err != nil {
		return nil, fmt.Errorf("failed to record consumption: %w", err)
	}

	if err := a.ledgerRepo.Save(ctx, userID, l); err != nil {
		return nil, fmt.Errorf("failed to save ledger: %w", err)
	}
	return l, nil
}

// CreditStatus returns the user's current ledger, rolling the cycle
// forward first if it has expired.
func (a *App) CreditStatus(ctx context.Context, userID string) (*ledger.Ledger, error) {
	l, err := a.ledgerRepo.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	if l == nil {
		return nil, ErrNoLedger
	}

	if l.RolloverIfExpired(time.Now().UTC()) {
		if err := a.ledgerRepo.Save(ctx, userID, l); err != nil {
			return nil, fmt.Errorf("failed to save rolled-over ledger: %w", err)
		}
	}
	return l, nil
}
