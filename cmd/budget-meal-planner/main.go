package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"budget-meal-planner/internal/app"
	"budget-meal-planner/internal/config"
	"budget-meal-planner/internal/ledger"
	"budget-meal-planner/internal/planner"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// .env keeps local runs convenient; deployments set real variables.
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	application, err := app.Bootstrap(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to bootstrap application: %v", err)
	}
	defer application.Close()

	switch os.Args[1] {
	case "plan":
		runPlan(ctx, application, os.Args[2:])
	case "regen":
		runRegen(ctx, application, os.Args[2:])
	case "reward":
		runReward(ctx, application, os.Args[2:])
	case "log":
		runLog(ctx, application, os.Args[2:])
	case "credit":
		runCredit(ctx, application, os.Args[2:])
	case "import-recipe":
		runImportRecipe(ctx, application, os.Args[2:])
	case "sync-vault":
		if err := application.SyncVault(ctx); err != nil {
			log.Fatalf("Vault sync failed: %v", err)
		}
	case "seed-catalog":
		runSeedCatalog(ctx, application, os.Args[2:])
	case "usage-report":
		runUsageReport(application, os.Args[2:])
	case "metrics-cleanup":
		runMetricsCleanup(application, os.Args[2:])
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runPlan(ctx context.Context, application *app.App, args []string) {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	user := fs.String("user", "local", "User ID the plan belongs to")
	calories := fs.Float64("calories", 0, "Daily calorie target (0 uses the configured default)")
	diet := fs.String("diet", "", "Diet type, e.g. vegetarian")
	rewardDay := fs.String("reward-day", "", "Plan the reward day up front: saturday or sunday")
	maxPrep := fs.Int("max-prep", 0, "Maximum prep minutes per meal")
	window := fs.Int("window", 0, "Hour the eating window starts; 12 or later skips breakfast")
	fs.Parse(args)

	prefs := planner.Preferences{
		UserID:            *user,
		DailyCalories:     *calories,
		DietType:          *diet,
		MaxPrepMinutes:    *maxPrep,
		EatingWindowStart: *window,
	}
	if *rewardDay != "" {
		idx, err := weekendIndex(*rewardDay)
		if err != nil {
			log.Fatalf("Invalid -reward-day: %v", err)
		}
		prefs.RewardDayIndex = &idx
	}

	plan, err := application.GeneratePlan(ctx, prefs)
	if err != nil {
		log.Fatalf("Plan generation failed: %v", err)
	}
	printPlan(plan)
}

func runRegen(ctx context.Context, application *app.App, args []string) {
	fs := flag.NewFlagSet("regen", flag.ExitOnError)
	user := fs.String("user", "local", "User ID the plan belongs to")
	planID := fs.String("plan", "", "Plan ID (empty uses the newest plan)")
	day := fs.Int("day", 0, "Day to rebuild, 1 (Monday) to 7 (Sunday)")
	calories := fs.Float64("calories", 0, "Daily calorie target the plan was generated with")
	diet := fs.String("diet", "", "Diet type, e.g. vegetarian")
	fs.Parse(args)

	if *day < 1 || *day > 7 {
		log.Fatalf("-day must be between 1 (Monday) and 7 (Sunday), got %d", *day)
	}

	prefs := planner.Preferences{UserID: *user, DailyCalories: *calories, DietType: *diet}
	id := resolvePlanID(ctx, application, *planID, *user)

	plan, err := application.RegenerateDay(ctx, id, *day-1, prefs)
	if err != nil {
		log.Fatalf("Day regeneration failed: %v", err)
	}
	printPlan(plan)
}

func runReward(ctx context.Context, application *app.App, args []string) {
	fs := flag.NewFlagSet("reward", flag.ExitOnError)
	user := fs.String("user", "local", "User ID the plan belongs to")
	planID := fs.String("plan", "", "Plan ID (empty uses the newest plan)")
	day := fs.String("day", "sunday", "Reward day: saturday or sunday")
	calories := fs.Float64("calories", 0, "Daily calorie target the plan was generated with")
	fs.Parse(args)

	idx, err := weekendIndex(*day)
	if err != nil {
		log.Fatalf("Invalid -day: %v", err)
	}

	prefs := planner.Preferences{UserID: *user, DailyCalories: *calories}
	id := resolvePlanID(ctx, application, *planID, *user)

	plan, err := application.ProposeRewardDay(ctx, id, idx, prefs)
	if err != nil {
		log.Fatalf("Reward day proposal failed: %v", err)
	}
	printPlan(plan)
}

func runLog(ctx context.Context, application *app.App, args []string) {
	fs := flag.NewFlagSet("log", flag.ExitOnError)
	user := fs.String("user", "local", "User ID the ledger belongs to")
	calories := fs.Float64("calories", -1, "Calories eaten")
	date := fs.String("date", "", "Day the calories were eaten, YYYY-MM-DD (empty means today)")
	fs.Parse(args)

	if *calories < 0 {
		log.Fatal("-calories is required and must be non-negative")
	}

	when := time.Now().UTC()
	if *date != "" {
		parsed, err := time.Parse("2006-01-02", *date)
		if err != nil {
			log.Fatalf("Invalid -date, expected YYYY-MM-DD: %v", err)
		}
		when = parsed
	}

	l, err := application.LogConsumption(ctx, *user, when, *calories)
	if err != nil {
		log.Fatalf("Failed to log consumption: %v", err)
	}
	printCredit(l)
}

func runCredit(ctx context.Context, application *app.App, args []string) {
	fs := flag.NewFlagSet("credit", flag.ExitOnError)
	user := fs.String("user", "local", "User ID the ledger belongs to")
	fs.Parse(args)

	l, err := application.CreditStatus(ctx, *user)
	if err != nil {
		log.Fatalf("Failed to read the ledger: %v", err)
	}
	printCredit(l)
}

func runImportRecipe(ctx context.Context, application *app.App, args []string) {
	if len(args) < 1 {
		log.Fatal("Usage: import-recipe <url>")
	}

	rec, err := application.ImportRecipe(ctx, args[0])
	if err != nil {
		log.Fatalf("Recipe import failed: %v", err)
	}
	fmt.Printf("Imported %q: %.0f kcal per serving, %d min prep.\n",
		rec.Title, rec.Calories, rec.PrepTimeMinutes)
}

func runSeedCatalog(ctx context.Context, application *app.App, args []string) {
	if len(args) < 1 {
		log.Fatal("Usage: seed-catalog <file.json>")
	}

	n, err := application.SeedCatalog(ctx, args[0])
	if err != nil {
		log.Fatalf("Catalog seeding failed: %v", err)
	}
	fmt.Printf("Seeded %d food items.\n", n)
}

func runUsageReport(application *app.App, args []string) {
	fs := flag.NewFlagSet("usage-report", flag.ExitOnError)
	days := fs.Int("days", 7, "Report window in days")
	fs.Parse(args)

	rows, err := application.UsageReport(*days)
	if err != nil {
		log.Fatalf("Usage report failed: %v", err)
	}
	if len(rows) == 0 {
		fmt.Println("No recorded LLM activity.")
		return
	}
	for _, row := range rows {
		fmt.Printf("%s  prompt %7d  completion %7d  runs %4d\n",
			row.Date, row.TotalPrompt, row.TotalCompletion, row.TotalExecution)
	}
}

func runMetricsCleanup(application *app.App, args []string) {
	fs := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
	days := fs.Int("days", 30, "Keep records for the last N days")
	fs.Parse(args)

	affected, err := application.CleanupMetrics(*days)
	if err != nil {
		log.Fatalf("Cleanup failed: %v", err)
	}
	fmt.Printf("Removed %d old metric records.\n", affected)
}

// resolvePlanID falls back to the user's newest plan when no ID is given.
func resolvePlanID(ctx context.Context, application *app.App, planID, user string) string {
	if planID != "" {
		return planID
	}
	plan, err := application.LatestPlan(ctx, user)
	if err != nil {
		log.Fatalf("No plan found for user %q: %v", user, err)
	}
	return plan.ID
}

func weekendIndex(day string) (int, error) {
	switch day {
	case "saturday", "sat":
		return 5, nil
	case "sunday", "sun":
		return 6, nil
	}
	return 0, fmt.Errorf("expected saturday or sunday, got %q", day)
}

func printPlan(plan *planner.WeeklyPlan) {
	fmt.Printf("Plan %s\n", plan.ID)
	for _, day := range plan.Days {
		marker := ""
		if day.RewardDay {
			marker = " (reward day)"
		}
		fmt.Printf("\n%s%s: %.0f of %.0f kcal\n", day.Label, marker, day.TotalCalories, day.Budget)
		for _, sm := range day.Meals {
			if sm.Meal.IsFasting() {
				fmt.Printf("  %-10s %s\n", string(sm.Slot)+":", sm.Meal.Name)
				continue
			}
			fmt.Printf("  %-10s %s (%.0f kcal)\n", string(sm.Slot)+":", sm.Meal.Name, sm.Meal.Calories)
		}
	}
}

func printCredit(l *ledger.Ledger) {
	now := time.Now().UTC()
	today := l.DayIndex(now)

	fmt.Printf("Cycle week of %s, daily target %.0f kcal\n\n",
		l.CycleStart().Format("2006-01-02"), l.DailyTarget())

	days := l.Days()
	for i, day := range days {
		marker := " "
		if i == today {
			marker = ">"
		}
		reward := ""
		if i == l.RewardDayIndex() {
			reward = "  (reward day)"
		}
		fmt.Printf("%s %s  %6.0f / %-6.0f  %+6.0f%s\n",
			marker, day.Date.Format("Mon 01-02"), day.Consumed, day.Target, day.Balance(), reward)
	}

	upto := today
	if upto < 0 {
		upto = 0
	}
	if upto > len(days) {
		upto = len(days)
	}
	if credit, err := l.CumulativeCredit(upto); err == nil {
		fmt.Printf("\nCredit banked: %+.0f kcal (each day counts at most ±%.0f)\n", credit, l.MaxVariance())
	}
	if l.RewardConfirmed() {
		fmt.Println("Reward day confirmed.")
	}
}

func printUsage() {
	fmt.Println("Usage: budget-meal-planner <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  plan             Generate a weekly plan")
	fmt.Println("  regen            Rebuild one day of the newest plan")
	fmt.Println("  reward           Schedule the reward day on a weekend")
	fmt.Println("  log              Record consumed calories")
	fmt.Println("  credit           Show the week's calorie ledger")
	fmt.Println("  import-recipe    Import a recipe from a URL into the vault")
	fmt.Println("  sync-vault       Extract new vault entries into the recipe store")
	fmt.Println("  seed-catalog     Load a JSON food catalog into the database")
	fmt.Println("  usage-report     Show LLM token usage per day")
	fmt.Println("  metrics-cleanup  Remove old metric records")
}
