// Package bot implements the Telegram command surface for managing
// repository rules and reading notifications, and the Notifier that
// delivers poll results.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/qiweiii/github-custom-notifier/internal/config"
	"github.com/qiweiii/github-custom-notifier/internal/github"
	"github.com/qiweiii/github-custom-notifier/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// githubAPI is the subset of the GitHub client the bot calls directly
// (repository verification and discovery).
type githubAPI interface {
	GetRepo(ctx context.Context, owner, repo string) (*github.Repo, error)
	SearchRepos(ctx context.Context, query string, perPage int) (*github.RepoSearchResult, error)
	SearchUsers(ctx context.Context, query string, perPage int) (*github.UserSearchResult, error)
}

// PollRequester triggers an immediate poll cycle.
type PollRequester interface {
	RequestPoll(ctx context.Context)
}

// Bot handles user commands and sends notification messages.
type Bot struct {
	api    telegramAPI
	store  storage.Storage
	gh     githubAPI
	poller PollRequester
	cfg    *config.Config
	log    *slog.Logger

	countMu   sync.Mutex
	lastCount int
}

// New creates a Bot with the given Telegram token.
func New(token string, store storage.Storage, gh githubAPI, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return newWithAPI(api, store, gh, cfg, log), nil
}

func newWithAPI(api telegramAPI, store storage.Storage, gh githubAPI, cfg *config.Config, log *slog.Logger) *Bot {
	return &Bot{
		api:       api,
		store:     store,
		gh:        gh,
		cfg:       cfg,
		log:       log,
		lastCount: -1,
	}
}

// SetPoller wires the poll requester used by /poll. Set after construction
// because the poller needs the bot as its Notifier.
func (b *Bot) SetPoller(p PollRequester) {
	b.poller = p
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
			if update.CallbackQuery != nil {
				b.handleCallback(ctx, update.CallbackQuery)
				continue
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if !b.cfg.IsUserAllowed(update.Message.From.ID) {
				b.reply(update.Message.Chat.ID, "Access denied.")
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case "watch":
		b.handleWatch(ctx, chatID, args)
	case "unwatch":
		b.handleUnwatch(ctx, chatID, args)
	case "repos":
		b.handleRepos(ctx, chatID)
	case cmdRules:
		b.handleRules(ctx, chatID, args)
	case "label":
		b.handleAddRule(ctx, chatID, args, ruleKindLabeled)
	case "mention":
		b.handleAddRule(ctx, chatID, args, ruleKindMentioned)
	case "comment":
		b.handleAddRule(ctx, chatID, args, ruleKindCommented)
	case "unlabel":
		b.handleRemoveRule(ctx, chatID, args, ruleKindLabeled)
	case "unmention":
		b.handleRemoveRule(ctx, chatID, args, ruleKindMentioned)
	case "uncomment":
		b.handleRemoveRule(ctx, chatID, args, ruleKindCommented)
	case cmdUnread:
		b.handleUnread(ctx, chatID)
	case cmdRead:
		b.handleRead(ctx, chatID, args)
	case "readall":
		b.handleReadAll(ctx, chatID)
	case "poll":
		b.handlePoll(ctx, chatID)
	case "findrepo":
		b.handleFindRepo(ctx, chatID, args)
	case "finduser":
		b.handleFindUser(ctx, chatID, args)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
