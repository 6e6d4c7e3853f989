// Package telegram exposes the planner over a Telegram bot: a webhook
// server that maps chat commands onto application operations and keeps
// lightweight per-user sessions so follow-up commands know which plan
// they act on.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"budget-meal-planner/internal/app"
	"budget-meal-planner/internal/config"
	"budget-meal-planner/internal/ledger"
	"budget-meal-planner/internal/metrics"
	"budget-meal-planner/internal/planner"
	"budget-meal-planner/internal/recipe"
	"budget-meal-planner/internal/shopping"
)

// sessionTTL keeps the stored plan context alive for a full cycle.
const sessionTTL = 7 * 24 * time.Hour

// commandTimeout bounds a single chat command, including LLM calls.
const commandTimeout = 5 * time.Minute

const helpText = `🥗 *Budget Meal Planner*

/plan [calories] [diet] - generate a weekly plan, e.g. /plan 1800 vegetarian
/regen <day> - regenerate one day, e.g. /regen tuesday
/reward [saturday|sunday] - schedule the reward day
/log <calories> [YYYY-MM-DD] - record what you ate
/credit - show the week's calorie ledger
/shopping - grocery list for the current plan
/metrics - LLM usage and process health

Send a recipe URL to import it into the vault.`

// PlannerService is the slice of the application the bot drives.
type PlannerService interface {
	GeneratePlan(ctx context.Context, prefs planner.Preferences) (*planner.WeeklyPlan, error)
	LatestPlan(ctx context.Context, userID string) (*planner.WeeklyPlan, error)
	RegenerateDay(ctx context.Context, planID string, dayIndex int, prefs planner.Preferences) (*planner.WeeklyPlan, error)
	ProposeRewardDay(ctx context.Context, planID string, chosenIndex int, prefs planner.Preferences) (*planner.WeeklyPlan, error)
	LogConsumption(ctx context.Context, userID string, date time.Time, calories float64) (*ledger.Ledger, error)
	CreditStatus(ctx context.Context, userID string) (*ledger.Ledger, error)
	ImportRecipe(ctx context.Context, url string) (*recipe.Recipe, error)
	UsageReport(days int) ([]metrics.DailyUsage, error)
}

// Bot wires Telegram updates to the application.
type Bot struct {
	api      *tgbotapi.BotAPI
	svc      PlannerService
	sessions *SessionRepository
	cfg      *config.Config
	logger   *zap.Logger
}

// NewBot authorizes against the Telegram API and registers the webhook.
func NewBot(cfg *config.Config, svc PlannerService, sessions *SessionRepository, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram client: %w", err)
	}

	wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL + "/webhook")
	if err != nil {
		return nil, fmt.Errorf("failed to build webhook config: %w", err)
	}
	if _, err := api.Request(wh); err != nil {
		return nil, fmt.Errorf("failed to register webhook: %w", err)
	}

	logger.Info("telegram bot authorized", zap.String("account", api.Self.UserName))

	return &Bot{api: api, svc: svc, sessions: sessions, cfg: cfg, logger: logger}, nil
}

// RegisterHandlers mounts the webhook endpoints on the default mux.
func (b *Bot) RegisterHandlers() {
	http.HandleFunc("/webhook", b.handleWebhook)
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		b.logger.Warn("failed to parse webhook update", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if update.CallbackQuery != nil {
		if b.isAllowed(update.CallbackQuery.From.ID) {
			go b.processCallback(update.CallbackQuery)
		}
		w.WriteHeader(http.StatusOK)
		return
	}

	if update.Message == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	if !b.isAllowed(update.Message.From.ID) {
		b.logger.Warn("ignoring message from unauthorized user",
			zap.Int64("user_id", update.Message.From.ID))
		w.WriteHeader(http.StatusOK)
		return
	}

	// Answer Telegram right away; the work happens in the background.
	go b.processMessage(update.Message)
	w.WriteHeader(http.StatusOK)
}

// isAllowed gates the bot to the configured user. An unset ID leaves
// the bot open, which is only sensible in local development.
func (b *Bot) isAllowed(userID int64) bool {
	return b.cfg.TelegramAllowUserID == 0 || b.cfg.TelegramAllowUserID == userID
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	text := strings.TrimSpace(msg.Text)
	switch {
	case text == "/start" || text == "/help":
		b.reply(msg.Chat.ID, helpText)
	case strings.HasPrefix(text, "/plan"):
		b.handlePlan(ctx, msg, strings.TrimSpace(strings.TrimPrefix(text, "/plan")))
	case strings.HasPrefix(text, "/regen"):
		b.handleRegenerate(ctx, msg, strings.TrimSpace(strings.TrimPrefix(text, "/regen")))
	case strings.HasPrefix(text, "/reward"):
		b.handleReward(ctx, msg, strings.TrimSpace(strings.TrimPrefix(text, "/reward")))
	case strings.HasPrefix(text, "/log"):
		b.handleLog(ctx, msg, strings.TrimSpace(strings.TrimPrefix(text, "/log")))
	case text == "/credit":
		b.handleCredit(ctx, msg)
	case text == "/shopping":
		b.handleShopping(ctx, msg)
	case text == "/metrics":
		b.handleMetrics(msg)
	case strings.HasPrefix(text, "/import"):
		b.handleImport(ctx, msg, strings.TrimSpace(strings.TrimPrefix(text, "/import")))
	case strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://"):
		b.handleImport(ctx, msg, text)
	default:
		b.reply(msg.Chat.ID, "Unknown command. Send /help for the list of commands.")
	}
}

func (b *Bot) processCallback(query *tgbotapi.CallbackQuery) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	// Dismiss the client-side spinner before doing any real work.
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.logger.Warn("failed to answer callback", zap.Error(err))
	}

	parts := strings.SplitN(query.Data, "|", 2)
	if len(parts) != 2 || query.Message == nil {
		return
	}
	action, payload := parts[0], parts[1]
	userID := strconv.FormatInt(query.From.ID, 10)
	chatID := query.Message.Chat.ID

	switch action {
	case "reward":
		idx, err := strconv.Atoi(payload)
		if err != nil {
			return
		}
		b.proposeReward(ctx, chatID, userID, idx)
	default:
		b.logger.Warn("unknown callback action", zap.String("action", action))
	}
}

func (b *Bot) handlePlan(ctx context.Context, msg *tgbotapi.Message, args string) {
	prefs, err := parsePlanArgs(args)
	if err != nil {
		b.reply(msg.Chat.ID, err.Error())
		return
	}
	prefs.UserID = strconv.FormatInt(msg.From.ID, 10)

	statusID := b.sendStatus(msg.Chat.ID, "🧑‍🍳 *Planning your week...*")

	plan, err := b.svc.GeneratePlan(ctx, prefs)
	if err != nil {
		b.editError(msg.Chat.ID, statusID, "generate the plan", err)
		return
	}

	b.storeSession(ctx, prefs.UserID, plan.ID, prefs)

	planPart, shoppingPart := formatPlanMarkdownParts(plan)
	if plan.RewardDayIndex == nil {
		b.editWithKeyboard(msg.Chat.ID, statusID, planPart, rewardKeyboard())
	} else {
		b.edit(msg.Chat.ID, statusID, planPart)
	}
	b.reply(msg.Chat.ID, shoppingPart)
}

func (b *Bot) handleRegenerate(ctx context.Context, msg *tgbotapi.Message, args string) {
	dayIndex, err := parseDayArg(args)
	if err != nil {
		b.reply(msg.Chat.ID, err.Error())
		return
	}

	userID := strconv.FormatInt(msg.From.ID, 10)
	data, ok := b.planContext(ctx, msg.Chat.ID, userID)
	if !ok {
		return
	}

	statusID := b.sendStatus(msg.Chat.ID, fmt.Sprintf("🔁 *Rebuilding %s...*", dayTitles[dayIndex]))

	plan, err := b.svc.RegenerateDay(ctx, data.PlanID, dayIndex, data.Preferences)
	if err != nil {
		b.editError(msg.Chat.ID, statusID, "regenerate the day", err)
		return
	}

	b.edit(msg.Chat.ID, statusID, "🔁 *Day rebuilt*\n\n"+formatDayMarkdown(plan.Days[dayIndex]))
}

func (b *Bot) handleReward(ctx context.Context, msg *tgbotapi.Message, args string) {
	if args == "" {
		prompt := tgbotapi.NewMessage(msg.Chat.ID, "Which day should the reward land on?")
		prompt.ReplyMarkup = rewardKeyboard()
		if _, err := b.api.Send(prompt); err != nil {
			b.logger.Warn("failed to send reward prompt", zap.Error(err))
		}
		return
	}

	idx, err := parseRewardArg(args)
	if err != nil {
		b.reply(msg.Chat.ID, err.Error())
		return
	}
	b.proposeReward(ctx, msg.Chat.ID, strconv.FormatInt(msg.From.ID, 10), idx)
}

func (b *Bot) proposeReward(ctx context.Context, chatID int64, userID string, chosenIndex int) {
	data, ok := b.planContext(ctx, chatID, userID)
	if !ok {
		return
	}

	statusID := b.sendStatus(chatID, "🎉 *Scheduling your reward day...*")

	plan, err := b.svc.ProposeRewardDay(ctx, data.PlanID, chosenIndex, data.Preferences)
	if err != nil {
		b.editError(chatID, statusID, "schedule the reward day", err)
		return
	}

	b.storeSession(ctx, userID, plan.ID, data.Preferences)
	b.edit(chatID, statusID, formatRewardMarkdown(plan))
}

func (b *Bot) handleLog(ctx context.Context, msg *tgbotapi.Message, args string) {
	calories, date, err := parseLogArgs(args)
	if err != nil {
		b.reply(msg.Chat.ID, err.Error())
		return
	}

	userID := strconv.FormatInt(msg.From.ID, 10)
	l, err := b.svc.LogConsumption(ctx, userID, date, calories)
	if errors.Is(err, app.ErrNoLedger) {
		b.reply(msg.Chat.ID, "No active cycle yet. Generate a plan first with /plan.")
		return
	}
	if err != nil {
		b.replyError(msg.Chat.ID, "log the meal", err)
		return
	}

	b.reply(msg.Chat.ID, formatLogAckMarkdown(l, date, calories))
}

func (b *Bot) handleCredit(ctx context.Context, msg *tgbotapi.Message) {
	userID := strconv.FormatInt(msg.From.ID, 10)
	l, err := b.svc.CreditStatus(ctx, userID)
	if errors.Is(err, app.ErrNoLedger) {
		b.reply(msg.Chat.ID, "No active cycle yet. Generate a plan first with /plan.")
		return
	}
	if err != nil {
		b.replyError(msg.Chat.ID, "read the ledger", err)
		return
	}

	b.reply(msg.Chat.ID, formatCreditMarkdown(l, time.Now().UTC()))
}

func (b *Bot) handleShopping(ctx context.Context, msg *tgbotapi.Message) {
	userID := strconv.FormatInt(msg.From.ID, 10)
	plan, err := b.svc.LatestPlan(ctx, userID)
	if errors.Is(err, app.ErrPlanNotFound) {
		b.reply(msg.Chat.ID, "No plan yet. Send /plan to generate one.")
		return
	}
	if err != nil {
		b.replyError(msg.Chat.ID, "load the plan", err)
		return
	}

	b.reply(msg.Chat.ID, formatShoppingMarkdown(shopping.BuildList(plan)))
}

func (b *Bot) handleImport(ctx context.Context, msg *tgbotapi.Message, url string) {
	if url == "" {
		b.reply(msg.Chat.ID, "Send the recipe URL, e.g. /import https://example.com/recipe")
		return
	}

	statusID := b.sendStatus(msg.Chat.ID, "📥 *Importing recipe...*")

	rec, err := b.svc.ImportRecipe(ctx, url)
	if err != nil {
		b.editError(msg.Chat.ID, statusID, "import the recipe", err)
		return
	}

	b.edit(msg.Chat.ID, statusID, fmt.Sprintf(
		"✅ Imported *%s*\n%.0f kcal per serving, %d min prep.",
		rec.Title, rec.Calories, rec.PrepTimeMinutes))
}

func (b *Bot) handleMetrics(msg *tgbotapi.Message) {
	rows, err := b.svc.UsageReport(7)
	if err != nil {
		b.replyError(msg.Chat.ID, "load the usage report", err)
		return
	}

	health := metrics.GetSysHealth(b.cfg.DataDir())
	b.reply(msg.Chat.ID, formatUsageMarkdown(rows, health))
}

// planContext resolves which plan follow-up commands act on: the chat
// session when one is alive, otherwise the newest persisted plan. A
// false return means the user was already told there is no plan.
func (b *Bot) planContext(ctx context.Context, chatID int64, userID string) (SessionContextData, bool) {
	session, err := b.sessions.GetActive(ctx, userID, time.Now().UTC())
	if err != nil {
		b.logger.Warn("failed to load session", zap.Error(err))
	}
	if session != nil {
		if data, err := session.GetContextData(); err == nil && data.PlanID != "" {
			data.Preferences.UserID = userID
			return data, true
		}
	}

	plan, err := b.svc.LatestPlan(ctx, userID)
	if errors.Is(err, app.ErrPlanNotFound) {
		b.reply(chatID, "No plan yet. Send /plan to generate one.")
		return SessionContextData{}, false
	}
	if err != nil {
		b.replyError(chatID, "load the plan", err)
		return SessionContextData{}, false
	}
	return SessionContextData{PlanID: plan.ID, Preferences: planner.Preferences{UserID: userID}}, true
}

func (b *Bot) storeSession(ctx context.Context, userID, planID string, prefs planner.Preferences) {
	data := SessionContextData{PlanID: planID, Preferences: prefs}

	if _, err := b.sessions.CleanupExpired(ctx); err != nil {
		b.logger.Warn("failed to clean up sessions", zap.Error(err))
	}

	session, err := b.sessions.GetActive(ctx, userID, time.Now().UTC())
	if err == nil && session != nil {
		err = b.sessions.Update(ctx, session.ID, StateActive, data)
	} else if err == nil {
		_, err = b.sessions.Create(ctx, userID, SessionTypePlanning, StateActive, data, sessionTTL)
	}
	if err != nil {
		b.logger.Warn("failed to store session", zap.Error(err))
	}
}

func rewardKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎉 Saturday", "reward|5"),
			tgbotapi.NewInlineKeyboardButtonData("🎉 Sunday", "reward|6"),
		),
	)
}

// sendStatus posts a progress message and returns its ID so the final
// result can replace it in place.
func (b *Bot) sendStatus(chatID int64, text string) int {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	sent, err := b.api.Send(msg)
	if err != nil {
		b.logger.Warn("failed to send status message", zap.Error(err))
		return 0
	}
	return sent.MessageID
}

func (b *Bot) edit(chatID int64, messageID int, text string) {
	if messageID == 0 {
		b.reply(chatID, text)
		return
	}
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(edit); err != nil {
		b.logger.Warn("failed to edit message", zap.Error(err))
	}
}

func (b *Bot) editWithKeyboard(chatID int64, messageID int, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	if messageID == 0 {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown
		msg.ReplyMarkup = keyboard
		if _, err := b.api.Send(msg); err != nil {
			b.logger.Warn("failed to send message", zap.Error(err))
		}
		return
	}
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, keyboard)
	edit.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(edit); err != nil {
		b.logger.Warn("failed to edit message", zap.Error(err))
	}
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("failed to send message", zap.Error(err))
	}
}

func (b *Bot) editError(chatID int64, messageID int, action string, err error) {
	b.edit(chatID, messageID, formatErrorMarkdown(action, err))
}

func (b *Bot) replyError(chatID int64, action string, err error) {
	b.reply(chatID, formatErrorMarkdown(action, err))
}

// formatErrorMarkdown renders a failure inside a code block. Backticks
// in the error text would terminate the block, so they are replaced.
func formatErrorMarkdown(action string, err error) string {
	safeErr := strings.ReplaceAll(err.Error(), "`", "'")
	return fmt.Sprintf("❌ *Failed to %s*\n```\n%s\n```", action, safeErr)
}
