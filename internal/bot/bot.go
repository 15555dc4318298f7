// Package bot is the Telegram frontend: it gates admins, walks uploads
// through the options menus, runs the processing pipeline and serves
// deep links back out.
package bot

import (
	"context"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ssd-technologies/medialink/internal/config"
	"github.com/ssd-technologies/medialink/internal/download"
	"github.com/ssd-technologies/medialink/internal/pipeline"
	"github.com/ssd-technologies/medialink/internal/registry"
	"github.com/ssd-technologies/medialink/internal/session"
	"github.com/ssd-technologies/medialink/internal/storage"
)

// telegramAPI is the slice of the Bot API client this package uses.
// *tgbotapi.BotAPI satisfies it; tests substitute a fake.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
	GetFile(cfg tgbotapi.FileConfig) (tgbotapi.File, error)
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
}

// Deps bundles the collaborators the frontend drives.
type Deps struct {
	API      telegramAPI
	Username string // bot username, for deep links
	Token    string // bot token, for file download URLs

	Config   *config.Config
	Settings *config.SettingsStore
	DB       *storage.DB
	Registry *registry.Registry
	Engine   *download.Engine
	Pipeline *pipeline.Pipeline
	Fallback download.FallbackFetcher
	WorkDir  string
}

// Bot dispatches Telegram updates against the session store and the
// processing pipeline.
type Bot struct {
	api      telegramAPI
	username string
	token    string

	cfg      *config.Config
	settings *config.SettingsStore
	db       *storage.DB
	reg      *registry.Registry
	sessions *session.Store
	engine   *download.Engine
	pipe     *pipeline.Pipeline
	fallback download.FallbackFetcher
	workDir  string
}

func New(d Deps) *Bot {
	return &Bot{
		api:      d.API,
		username: d.Username,
		token:    d.Token,
		cfg:      d.Config,
		settings: d.Settings,
		db:       d.DB,
		reg:      d.Registry,
		sessions: session.NewStore(),
		engine:   d.Engine,
		pipe:     d.Pipeline,
		fallback: d.Fallback,
		workDir:  d.WorkDir,
	}
}

// Run long-polls for updates until ctx is cancelled. Update handling is
// sequential except for finalize, which runs in its own goroutine since
// a single job can take minutes.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	log.Printf("[bot] long-polling as @%s", b.username)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[bot] update loop stopping: %v", ctx.Err())
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

// send logs delivery failures instead of propagating them; a dropped
// chat message never aborts handling.
func (b *Bot) send(c tgbotapi.Chattable) tgbotapi.Message {
	msg, err := b.api.Send(c)
	if err != nil {
		log.Printf("[bot] send failed: %v", err)
	}
	return msg
}

func (b *Bot) reply(chatID int64, replyTo int, text string) tgbotapi.Message {
	msg := tgbotapi.NewMessage(chatID, text)
	if replyTo != 0 {
		msg.ReplyToMessageID = replyTo
	}
	return b.send(msg)
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		log.Printf("[bot] answer callback failed: %v", err)
	}
}

func (b *Bot) editStatus(chatID int64, messageID int, text string) {
	b.send(tgbotapi.NewEditMessageText(chatID, messageID, text))
}
