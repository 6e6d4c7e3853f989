package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"budget-meal-planner/internal/ledger"
	"budget-meal-planner/internal/metrics"
	"budget-meal-planner/internal/nutrition"
	"budget-meal-planner/internal/planner"
	"budget-meal-planner/internal/shopping"
)

var dayTitles = [7]string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

// parsePlanArgs understands "/plan", "/plan 1800" and "/plan 1800 vegetarian".
func parsePlanArgs(args string) (planner.Preferences, error) {
	var prefs planner.Preferences
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return prefs, nil
	}

	calories, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || calories <= 0 {
		return prefs, fmt.Errorf("usage: /plan [daily calories] [diet], e.g. /plan 1800 vegetarian")
	}
	prefs.DailyCalories = calories
	if len(fields) > 1 {
		prefs.DietType = strings.ToLower(fields[1])
	}
	return prefs, nil
}

// parseDayArg accepts a 1-7 day number or an English weekday name and
// returns the zero-based plan index.
func parseDayArg(arg string) (int, error) {
	arg = strings.ToLower(strings.TrimSpace(arg))
	if arg == "" {
		return 0, fmt.Errorf("tell me which day, e.g. /regen tuesday or /regen 2")
	}

	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > 7 {
			return 0, fmt.Errorf("day number must be between 1 (Monday) and 7 (Sunday)")
		}
		return n - 1, nil
	}

	if len(arg) >= 3 {
		for i, name := range dayTitles {
			if strings.HasPrefix(strings.ToLower(name), arg) {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("unknown day %q, use a weekday name or 1-7", arg)
}

// parseRewardArg maps a weekend name to its plan index.
func parseRewardArg(arg string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "sat", "saturday":
		return 5, nil
	case "sun", "sunday":
		return 6, nil
	}
	return 0, fmt.Errorf("the reward day lands on the weekend: /reward saturday or /reward sunday")
}

// parseLogArgs understands "/log 1850" and "/log 1850 2025-03-04".
func parseLogArgs(args string) (float64, time.Time, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return 0, time.Time{}, fmt.Errorf("usage: /log <calories> [YYYY-MM-DD], e.g. /log 1850")
	}

	calories, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || calories < 0 {
		return 0, time.Time{}, fmt.Errorf("calories must be a non-negative number, got %q", fields[0])
	}

	date := time.Now().UTC()
	if len(fields) > 1 {
		parsed, err := time.Parse("2006-01-02", fields[1])
		if err != nil {
			return 0, time.Time{}, fmt.Errorf("dates look like 2025-03-04, got %q", fields[1])
		}
		date = parsed
	}
	return calories, date, nil
}

// formatPlanMarkdownParts renders a weekly plan as two messages: the
// plan itself and the aggregated shopping list. Telegram caps messages
// at 4096 characters, so the two halves are never joined.
func formatPlanMarkdownParts(plan *planner.WeeklyPlan) (string, string) {
	var sb strings.Builder
	sb.WriteString("📅 *Weekly Meal Plan*\n")

	weekTotal := 0.0
	for _, day := range plan.Days {
		sb.WriteString("\n")
		sb.WriteString(formatDayMarkdown(day))
		weekTotal += day.TotalCalories
	}
	sb.WriteString(fmt.Sprintf("\n🔥 *Week total:* %.0f kcal", weekTotal))

	if plan.RewardDayIndex != nil {
		status := "proposed"
		if plan.RewardConfirmed {
			status = "confirmed"
		}
		sb.WriteString(fmt.Sprintf("\n🎉 *Reward day:* %s (%s)", dayTitles[*plan.RewardDayIndex], status))
	} else {
		sb.WriteString("\n🎉 Pick a reward day with /reward to spend the week's savings.")
	}

	return sb.String(), formatShoppingMarkdown(shopping.BuildList(plan))
}

func formatDayMarkdown(day planner.DayPlan) string {
	var sb strings.Builder

	header := fmt.Sprintf("*%s*: %.0f of %.0f kcal", day.Label, day.TotalCalories, day.Budget)
	if day.RewardDay {
		header = "🎉 " + header
	}
	if day.OutOfTolerance {
		header += " ⚠️"
	}
	sb.WriteString(header + "\n")

	for _, sm := range day.Meals {
		if sm.Meal.IsFasting() {
			sb.WriteString(fmt.Sprintf("%s %s: %s\n", slotIcon(sm.Slot), slotTitle(sm.Slot), sm.Meal.Name))
			continue
		}
		sb.WriteString(fmt.Sprintf("%s %s: %s (%.0f kcal)\n",
			slotIcon(sm.Slot), slotTitle(sm.Slot), sm.Meal.Name, sm.Meal.Calories))
	}
	return sb.String()
}

func formatShoppingMarkdown(list shopping.List) string {
	var sb strings.Builder
	sb.WriteString("🛒 *Shopping List*\n\n")
	if len(list.Items) == 0 {
		sb.WriteString("Nothing to buy: the plan carries no ingredient details.")
		return sb.String()
	}
	for _, line := range list.Lines() {
		sb.WriteString("• " + line + "\n")
	}
	return sb.String()
}

func formatRewardMarkdown(plan *planner.WeeklyPlan) string {
	if plan.RewardDayIndex == nil {
		return "No reward day is set on this plan."
	}
	day := plan.Days[*plan.RewardDayIndex]

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🎉 *Reward day confirmed: %s*\n", day.Label))
	sb.WriteString("The other days tightened a little to bank the extra budget.\n\n")
	sb.WriteString(formatDayMarkdown(day))
	return sb.String()
}

func formatLogAckMarkdown(l *ledger.Ledger, date time.Time, calories float64) string {
	days := l.Days()
	idx := l.DayIndex(date)
	if idx < 0 || idx >= len(days) {
		return fmt.Sprintf("✅ Logged %.0f kcal, but %s falls outside the current week, so the ledger is unchanged.",
			calories, date.Format("2006-01-02"))
	}

	day := days[idx]
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("✅ *Logged %.0f kcal for %s*\n", calories, dayTitles[idx]))
	sb.WriteString(fmt.Sprintf("%s so far: %.0f of %.0f kcal (balance %+.0f)\n",
		dayTitles[idx], day.Consumed, day.Target, day.Balance()))
	if credit, err := l.CumulativeCredit(idx); err == nil {
		sb.WriteString(fmt.Sprintf("Credit carried into the day: %+.0f kcal", credit))
	}
	return sb.String()
}

func formatCreditMarkdown(l *ledger.Ledger, now time.Time) string {
	days := l.Days()
	today := l.DayIndex(now)
	rewardIdx := l.RewardDayIndex()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("💰 *Calorie Credit* (week of %s)\n\n", l.CycleStart().Format("Jan 2")))

	for i, day := range days {
		prefix := "▫️"
		if i == today {
			prefix = "👉"
		}
		suffix := ""
		if i == rewardIdx {
			suffix = " 🎉"
		}

		if today >= 0 && i > today && day.Consumed == 0 {
			sb.WriteString(fmt.Sprintf("%s %s: target %.0f kcal%s\n", prefix, dayTitles[i][:3], day.Target, suffix))
			continue
		}
		sb.WriteString(fmt.Sprintf("%s %s: %.0f of %.0f kcal (%+.0f)%s\n",
			prefix, dayTitles[i][:3], day.Consumed, day.Target, day.Balance(), suffix))
	}

	upto := today
	if upto < 0 {
		upto = 0
	}
	if upto > len(days) {
		upto = len(days)
	}
	if credit, err := l.CumulativeCredit(upto); err == nil {
		sb.WriteString(fmt.Sprintf("\nCredit banked so far: %+.0f kcal (each day counts at most ±%.0f)\n",
			credit, l.MaxVariance()))
	}

	status := "pending"
	if l.RewardConfirmed() {
		status = "confirmed ✅"
	}
	sb.WriteString(fmt.Sprintf("Reward day: %s (%s)", dayTitles[rewardIdx], status))

	if today == rewardIdx && !l.RewardConfirmed() {
		if eligible, err := l.IsRewardEligible(today); err == nil && eligible {
			sb.WriteString("\nToday is the day and there is credit to spend: /reward saturday or /reward sunday")
		}
	}
	return sb.String()
}

func formatUsageMarkdown(rows []metrics.DailyUsage, health metrics.SysHealth) string {
	var sb strings.Builder
	sb.WriteString("📊 *LLM Usage (7 days)*\n")
	if len(rows) == 0 {
		sb.WriteString("No recorded activity.\n")
	}
	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("`%s` %d prompt / %d completion tokens, %d runs\n",
			row.Date, row.TotalPrompt, row.TotalCompletion, row.TotalExecution))
	}

	sb.WriteString("\n🩺 *Process*\n")
	sb.WriteString(fmt.Sprintf("Heap: %d MB (sys %d MB)\n", health.AllocMB, health.SysMB))
	sb.WriteString(fmt.Sprintf("Goroutines: %d\n", health.Goroutines))
	sb.WriteString(fmt.Sprintf("Uptime: %s\n", health.Uptime))
	sb.WriteString(fmt.Sprintf("Data on disk: %s", health.DataDiskSize))
	return sb.String()
}

func slotIcon(slot nutrition.MealSlot) string {
	switch slot {
	case nutrition.SlotBreakfast:
		return "🌅"
	case nutrition.SlotLunch:
		return "🍽"
	case nutrition.SlotSnack:
		return "🍎"
	case nutrition.SlotDinner:
		return "🌙"
	default:
		return "▪️"
	}
}

func slotTitle(slot nutrition.MealSlot) string {
	s := string(slot)
	if s == "" {
		return "Meal"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
