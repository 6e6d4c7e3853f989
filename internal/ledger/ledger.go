// Package ledger implements the rolling 7-day caloric ledger behind the
// reward-day feature. Savings against the daily target accrue as credit,
// clamped per day so a single extreme day cannot dominate the week.
package ledger

import (
	"fmt"
	"math"
	"sync"
	"time"

	"budget-meal-planner/internal/nutrition"
)

const cycleDays = 7

// DailyBalance tracks one day of the current cycle.
type DailyBalance struct {
	Date     time.Time `json:"date"`
	Target   float64   `json:"target"`
	Consumed float64   `json:"consumed"`
}

// Balance is the raw signed saving for the day. Positive means the user
// ate under target.
func (b DailyBalance) Balance() float64 {
	return b.Target - b.Consumed
}

// Ledger is the in-memory cycle state. All methods are safe for
// concurrent use; persistence is the Repository's concern.
type Ledger struct {
	mu              sync.Mutex
	cycleStart      time.Time
	dailyTarget     float64
	rewardDayIndex  int
	rewardConfirmed bool
	days            [cycleDays]DailyBalance
}

// New starts a fresh cycle at the midnight of cycleStart. The reward day
// index must be 5 (Saturday) or 6 (Sunday).
func New(cycleStart time.Time, dailyTarget float64, rewardDayIndex int) (*Ledger, error) {
	if dailyTarget <= 0 {
		return nil, fmt.Errorf("daily target must be positive, got %v", dailyTarget)
	}
	if rewardDayIndex != 5 && rewardDayIndex != 6 {
		return nil, fmt.Errorf("reward day index must be 5 or 6, got %d", rewardDayIndex)
	}

	l := &Ledger{
		cycleStart:     midnight(cycleStart),
		dailyTarget:    dailyTarget,
		rewardDayIndex: rewardDayIndex,
	}
	l.resetDays()
	return l, nil
}

// Restore rebuilds a ledger from persisted state without resetting it.
func Restore(cycleStart time.Time, dailyTarget float64, rewardDayIndex int, rewardConfirmed bool, days [cycleDays]DailyBalance) (*Ledger, error) {
	l, err := New(cycleStart, dailyTarget, rewardDayIndex)
	if err != nil {
		return nil, err
	}
	l.rewardConfirmed = rewardConfirmed
	l.days = days
	return l, nil
}

// MaxVariance is the per-day cap applied to balances before they count
// toward credit: 10% of the daily target, rounded.
func (l *Ledger) MaxVariance() float64 {
	return math.Round(l.dailyTarget * 0.10)
}

// RecordConsumption adds calories eaten on the given date. Dates outside
// the current cycle window are ignored without error so stale client
// writes cannot corrupt the cycle.
func (l *Ledger) RecordConsumption(date time.Time, amount float64) error {
	if amount < 0 {
		return fmt.Errorf("consumption amount must be non-negative, got %v", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	idx := daysBetween(l.cycleStart, date)
	if idx < 0 || idx >= cycleDays {
		return nil
	}
	l.days[idx].Consumed += amount
	return nil
}

// ClampedBalance returns the day's saving bounded to ±MaxVariance.
func (l *Ledger) ClampedBalance(dayIndex int) (float64, error) {
	if dayIndex < 0 || dayIndex >= cycleDays {
		return 0, fmt.Errorf("day index out of range: %d", dayIndex)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.clampedBalanceLocked(dayIndex), nil
}

func (l *Ledger) clampedBalanceLocked(dayIndex int) float64 {
	mv := l.MaxVariance()
	return nutrition.Clamp(l.days[dayIndex].Balance(), -mv, mv)
}

// CumulativeCredit sums clamped balances over day indexes [0, upto).
func (l *Ledger) CumulativeCredit(upto int) (float64, error) {
	if upto < 0 || upto > cycleDays {
		return 0, fmt.Errorf("day index out of range: %d", upto)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	credit := 0.0
	for i := 0; i < upto; i++ {
		credit += l.clampedBalanceLocked(i)
	}
	return credit, nil
}

// IsRewardEligible reports whether the given cycle day is the configured
// reward day and the credit accumulated before it is positive.
func (l *Ledger) IsRewardEligible(dayIndex int) (bool, error) {
	if dayIndex < 0 || dayIndex >= cycleDays {
		return false, fmt.Errorf("day index out of range: %d", dayIndex)
	}
	if dayIndex != l.rewardDayIndex {
		return false, nil
	}

	credit, err := l.CumulativeCredit(dayIndex)
	if err != nil {
		return false, err
	}
	return credit > 0, nil
}

// RolloverIfExpired advances the cycle when now has moved past its last
// day, resetting balances and clearing any reward confirmation. Calling
// it again inside the new cycle is a no-op, so callers may invoke it on
// every read.
func (l *Ledger) RolloverIfExpired(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	elapsed := daysBetween(l.cycleStart, now)
	if elapsed < cycleDays {
		return false
	}

	// Jump whole cycles so a long-idle ledger lands in the current week.
	l.cycleStart = l.cycleStart.AddDate(0, 0, (elapsed/cycleDays)*cycleDays)
	l.rewardConfirmed = false
	l.resetDays()
	return true
}

// DayIndex converts a wall-clock time to a cycle day index. Values
// outside [0, 6] mean the time falls before or after the current cycle.
func (l *Ledger) DayIndex(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return daysBetween(l.cycleStart, now)
}

// SetDayTargets aligns per-day targets with a generated plan's budgets.
func (l *Ledger) SetDayTargets(targets []float64) error {
	if len(targets) != cycleDays {
		return fmt.Errorf("expected %d day targets, got %d", cycleDays, len(targets))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for i, target := range targets {
		l.days[i].Target = target
	}
	return nil
}

// SetRewardDay moves the reward day within the weekend. Like New, only
// index 5 (Saturday) or 6 (Sunday) is accepted.
func (l *Ledger) SetRewardDay(index int) error {
	if index != 5 && index != 6 {
		return fmt.Errorf("reward day index must be 5 or 6, got %d", index)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rewardDayIndex = index
	return nil
}

// ConfirmReward marks the cycle's reward day as accepted by the user.
func (l *Ledger) ConfirmReward() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rewardConfirmed = true
}

// RewardConfirmed reports whether the reward day was accepted this cycle.
func (l *Ledger) RewardConfirmed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rewardConfirmed
}

// CycleStart returns the midnight the current cycle began.
func (l *Ledger) CycleStart() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cycleStart
}

// DailyTarget returns the configured daily calorie target.
func (l *Ledger) DailyTarget() float64 {
	return l.dailyTarget
}

// RewardDayIndex returns the configured reward day (5 or 6).
func (l *Ledger) RewardDayIndex() int {
	return l.rewardDayIndex
}

// Days returns a snapshot of the cycle's balances.
func (l *Ledger) Days() [cycleDays]DailyBalance {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.days
}

func (l *Ledger) resetDays() {
	for i := range l.days {
		l.days[i] = DailyBalance{
			Date:   l.cycleStart.AddDate(0, 0, i),
			Target: l.dailyTarget,
		}
	}
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// daysBetween counts calendar days from start to t, rounding away the
// one-hour drift DST transitions introduce.
func daysBetween(start, t time.Time) int {
	hours := midnight(t.In(start.Location())).Sub(midnight(start)).Hours()
	return int(math.Round(hours / 24))
}
