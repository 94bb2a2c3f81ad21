package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"forward_bot/internal/config"
	"forward_bot/internal/dispatcher"
	"forward_bot/internal/model"
	"forward_bot/internal/registry"
	"forward_bot/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// PostHandler processes an inbound channel post.
type PostHandler interface {
	HandlePost(ctx context.Context, post dispatcher.Post) error
}

// Bot is the Telegram front end: it handles admin commands, feeds channel
// posts into the dispatcher, and acts as the transport for forwards and
// admin notifications.
type Bot struct {
	api        telegramAPI
	store      storage.Storage
	reg        *registry.Registry
	cfg        *config.Config
	dispatcher PostHandler
	log        *slog.Logger
}

// New creates a Bot with the given Telegram token, storage, registry, and config.
func New(token string, store storage.Storage, reg *registry.Registry, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:   api,
		store: store,
		reg:   reg,
		cfg:   cfg,
		log:   log,
	}, nil
}

// SetDispatcher wires the post handler. The dispatcher is constructed after
// the Bot because it uses the Bot as its transport.
func (b *Bot) SetDispatcher(d PostHandler) {
	b.dispatcher = d
}

// EnsureSuperAdmin seeds the distinguished super-admin row if it is absent or
// has been altered. Called once at startup.
func EnsureSuperAdmin(ctx context.Context, store storage.Storage, userID int64) error {
	a, err := store.GetAdmin(ctx, userID)
	if err == nil && a.Role == model.RoleSuperAdmin {
		return nil
	}
	if err := store.UpsertAdmin(ctx, model.Admin{UserID: userID, Role: model.RoleSuperAdmin}); err != nil {
		return fmt.Errorf("seed super admin: %w", err)
	}
	return nil
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.ChannelPost != nil {
				b.handleChannelPost(ctx, update.ChannelPost)
				continue
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

// Forward relays a message to a destination channel. Implements dispatcher.Transport.
func (b *Bot) Forward(fromChatID int64, messageID int, toChatID int64) error {
	if _, err := b.api.Send(tgbotapi.NewForward(toChatID, fromChatID, messageID)); err != nil {
		return fmt.Errorf("forward to %d: %w", toChatID, err)
	}
	return nil
}

// Notify sends a text message to a single user. Implements notify.Sender.
func (b *Bot) Notify(userID int64, text string) error {
	msg := tgbotapi.NewMessage(userID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("notify %d: %w", userID, err)
	}
	return nil
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleChannelPost(ctx context.Context, msg *tgbotapi.Message) {
	post := dispatcher.Post{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Text:      msg.Text,
		Caption:   msg.Caption,
	}
	if msg.From != nil {
		post.FromUserID = msg.From.ID
	}
	if err := b.dispatcher.HandlePost(ctx, post); err != nil {
		b.log.Error("handle post", "chat_id", msg.Chat.ID, "error", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID
	userID := msg.From.ID

	admin, err := b.store.GetAdmin(ctx, userID)
	if err != nil {
		b.reply(chatID, "You are not allowed to use this bot.")
		return
	}

	b.log.Debug("command", "cmd", cmd, "args", args, "user_id", userID)

	switch cmd {
	case "start":
		b.handleStart(ctx, chatID)
	case "help":
		b.handleHelp(ctx, chatID)
	case "add_channel":
		b.handleAddChannel(ctx, chatID, args)
	case "remove_channel":
		b.handleRemoveChannel(ctx, chatID, args)
	case "list_channels":
		b.handleListChannels(ctx, chatID)
	case "add_filter":
		b.handleAddFilter(ctx, chatID, args)
	case "remove_filter":
		b.handleRemoveFilter(ctx, chatID, args)
	case "list_filters":
		b.handleListFilters(ctx, chatID)
	case "list_admins":
		b.handleListAdmins(ctx, chatID)
	case "list_sources":
		b.handleListSources(ctx, chatID)
	case "spam_settings":
		b.handleSpamSettings(ctx, chatID)
	case "analytics":
		b.handleAnalytics(ctx, chatID)
	case "set_admin", "add_source", "remove_source", "set_spam":
		if !b.isSuperAdmin(userID, admin) {
			b.reply(chatID, "This command is only available to the super admin.")
			return
		}
		switch cmd {
		case "set_admin":
			b.handleSetAdmin(ctx, chatID, args)
		case "add_source":
			b.handleAddSource(ctx, chatID, args)
		case "remove_source":
			b.handleRemoveSource(ctx, chatID, args)
		case "set_spam":
			b.handleSetSpam(ctx, chatID, args)
		}
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}

func (b *Bot) isSuperAdmin(userID int64, admin *model.Admin) bool {
	return userID == b.cfg.SuperAdminID || admin.Role == model.RoleSuperAdmin
}

// logAction bumps today's usage counter for the given action.
func (b *Bot) logAction(ctx context.Context, action string) {
	date := time.Now().UTC().Format("2006-01-02")
	if err := b.store.IncrementAction(ctx, date, action); err != nil {
		b.log.Error("increment analytics", "action", action, "error", err)
	}
}
