package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"ai-diet-planner/internal/config"
	"ai-diet-planner/internal/metrics"
	"ai-diet-planner/internal/planner"
	"ai-diet-planner/internal/shared"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// contextBloatTokens triggers an admin alert when a prompt grows past it.
const contextBloatTokens = 4000

// PlanGenerator produces a structured plan for a dietary profile.
type PlanGenerator interface {
	GeneratePlan(ctx context.Context, req planner.MealPlanRequest) (*planner.MealPlan, shared.AgentMeta, error)
}

// Sender delivers messages to Telegram. *tgbotapi.BotAPI implements it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot wraps the Telegram API and the meal planner.
type Bot struct {
	api          *tgbotapi.BotAPI
	sender       Sender
	planner      PlanGenerator
	metricsStore *metrics.Store
	cfg          *config.Config
}

// NewBot initializes the Telegram Bot and sets the Webhook. metricsStore may be nil.
func NewBot(cfg *config.Config, mealPlanner PlanGenerator, metricsStore *metrics.Store) (*Bot, error) {
	if cfg.TelegramBotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}

	log.Info().Str("account", bot.Self.UserName).Msg("authorized on telegram")

	webhookURL := cfg.TelegramWebhookURL
	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook url %q: %w", webhookURL, err)
	}
	resp, err := bot.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", webhookURL, err)
	}
	log.Info().Str("description", resp.Description).Msg("webhook set")

	return &Bot{
		api:          bot,
		sender:       bot,
		planner:      mealPlanner,
		metricsStore: metricsStore,
		cfg:          cfg,
	}, nil
}

// RegisterHandlers registers the webhook and health handlers on mux.
func (b *Bot) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", b.handleWebhook)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		log.Warn().Err(err).Msg("error parsing update")
		return
	}

	if update.Message == nil || update.Message.From == nil {
		return
	}

	if !b.isAllowed(update.Message.From.ID) {
		log.Warn().
			Int64("user_id", update.Message.From.ID).
			Str("username", update.Message.From.UserName).
			Msg("unauthorized access attempt")
		return
	}

	go b.processMessage(context.Background(), update.Message)
}

func (b *Bot) isAllowed(userID int64) bool {
	for _, id := range b.cfg.TelegramAllowedUserIDs {
		if userID == id {
			return true
		}
	}
	return false
}

func (b *Bot) processMessage(ctx context.Context, msg *tgbotapi.Message) {
	switch strings.TrimSpace(msg.Text) {
	case "/metrics":
		b.handleMetricsRequest(msg)
		return
	case "/start", "/help":
		b.send(msg.Chat.ID, profileHelp)
		return
	}

	req, err := ParseProfile(msg.Text)
	if err != nil {
		b.send(msg.Chat.ID, fmt.Sprintf("🤔 %s\n\n%s", tgbotapi.EscapeText(tgbotapi.ModeMarkdown, err.Error()), profileHelp))
		return
	}

	b.handlePlannerRequest(ctx, msg.Chat.ID, req)
}

func (b *Bot) handleMetricsRequest(msg *tgbotapi.Message) {
	if msg.From.ID != b.cfg.AdminTelegramID {
		b.send(msg.Chat.ID, "⛔ *Access Denied*: Admin only.")
		return
	}
	b.handleMetricsCommand(msg.Chat.ID)
}

func (b *Bot) handlePlannerRequest(ctx context.Context, chatID int64, req planner.MealPlanRequest) {
	sentMsg, err := b.sender.Send(markdown(tgbotapi.NewMessage(chatID, "🧑‍🍳 *Thinking...*\n(Putting your meal plan together)")))
	if err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("failed to send initial reply")
		return
	}

	plan, meta, err := b.planner.GeneratePlan(ctx, req)
	b.recordUsage(meta, err)

	if err != nil {
		log.Error().Err(err).Str("error_kind", planner.ErrorKind(err)).Msg("error generating plan")
		edit := tgbotapi.NewEditMessageText(chatID, sentMsg.MessageID, "❌ *Failed to generate meal plan.* Please try again later.")
		edit.ParseMode = tgbotapi.ModeMarkdown
		b.sender.Send(edit)
		return
	}

	mealsText, foodsText := formatPlanMarkdownParts(plan)

	edit := tgbotapi.NewEditMessageText(chatID, sentMsg.MessageID, mealsText)
	edit.ParseMode = tgbotapi.ModeMarkdown
	b.sender.Send(edit)

	if foodsText != "" {
		b.send(chatID, foodsText)
	}
}

func (b *Bot) recordUsage(meta shared.AgentMeta, genErr error) {
	if meta.Usage.PromptTokens > contextBloatTokens {
		b.sendAdminAlert(fmt.Sprintf("⚠️ *Context Bloat Alert*\nAgent: %s\nModel: %s\nPrompt Tokens: %d",
			meta.AgentName, tgbotapi.EscapeText(tgbotapi.ModeMarkdown, meta.Usage.Model), meta.Usage.PromptTokens))
	}
	if b.metricsStore == nil {
		return
	}
	outcome := metrics.OutcomeOK
	if genErr != nil {
		outcome = planner.ErrorKind(genErr)
	}
	if err := b.metricsStore.RecordOutcome(meta, outcome); err != nil {
		log.Warn().Err(err).Msg("failed to record metrics")
	}
}

// formatPlanMarkdownParts renders the meals and the food lists as two
// Telegram markdown messages. The food message is empty when the plan has
// no food lists.
func formatPlanMarkdownParts(plan *planner.MealPlan) (string, string) {
	var pb strings.Builder
	pb.WriteString("🍽 *Your Meal Plan*\n")

	meals := plan.Meals()
	if len(meals) == 0 {
		pb.WriteString("\n_No meals could be read from the reply._\n")
	}
	for _, m := range meals {
		pb.WriteString(fmt.Sprintf("\n*%s*\n", escape(m.Title())))
		for _, d := range m.Dishes {
			pb.WriteString(fmt.Sprintf("• %s\n", escape(d.Name)))
			for _, benefit := range d.Benefits {
				pb.WriteString(fmt.Sprintf("   _%s_\n", escape(benefit)))
			}
		}
	}

	lists := plan.FoodLists()
	if len(lists) == 0 {
		return pb.String(), ""
	}

	var fb strings.Builder
	for i, l := range lists {
		if i > 0 {
			fb.WriteString("\n")
		}
		icon := "✅"
		if l.Kind() == planner.KindFoodsToAvoid {
			icon = "🚫"
		}
		fb.WriteString(fmt.Sprintf("%s *%s*\n", icon, escape(l.Title())))
		for _, item := range l.Foods {
			fb.WriteString(fmt.Sprintf("• %s\n", escape(item)))
		}
	}

	return pb.String(), fb.String()
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func (b *Bot) handleMetricsCommand(chatID int64) {
	if b.metricsStore == nil {
		b.send(chatID, "ℹ️ Metrics are disabled.")
		return
	}
	usage, err := b.metricsStore.GetDailyUsage(7)
	if err != nil {
		log.Error().Err(err).Msg("error fetching metrics")
		b.send(chatID, "❌ Error fetching metrics.")
		return
	}

	health := metrics.GetSysHealth(b.cfg.MetricsDBPath)

	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent LLM Activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		sb.WriteString(fmt.Sprintf("• *%s*: %d tokens (%d execs, %d failed)\n", d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalExecution, d.Failures))
	}

	sb.WriteString("\n🧠 *System Health*\n")
	sb.WriteString(fmt.Sprintf("• Uptime: %s\n", health.Uptime))
	sb.WriteString(fmt.Sprintf("• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB))
	sb.WriteString(fmt.Sprintf("• Goroutines: %d\n", health.Goroutines))
	if health.DataDiskSize != "" {
		sb.WriteString(fmt.Sprintf("• Disk Data: %s\n", health.DataDiskSize))
	}

	b.send(chatID, sb.String())
}

func (b *Bot) sendAdminAlert(text string) {
	if b.cfg.AdminTelegramID == 0 {
		return
	}
	b.send(b.cfg.AdminTelegramID, text)
}

func (b *Bot) send(chatID int64, text string) {
	if _, err := b.sender.Send(markdown(tgbotapi.NewMessage(chatID, text))); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("failed to send message")
	}
}

func markdown(msg tgbotapi.MessageConfig) tgbotapi.MessageConfig {
	msg.ParseMode = tgbotapi.ModeMarkdown
	return msg
}
