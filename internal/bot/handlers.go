package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ssd-technologies/medialink/internal/registry"
	"github.com/ssd-technologies/medialink/internal/session"
	"github.com/ssd-technologies/medialink/internal/storage"
)

const adminHelp = `👋 Welcome, Admin!

📤 Send media to generate links/previews

⚙️ Settings Commands:
• /settings - View current settings
• /set_preview <seconds> - Set preview length (1-10)
• /set_collage <frames> - Set collage frames (4, 6, 9 or 12)
• /set_description <text> - Set bot description

📁 Management Commands:
• /list_files - List stored media
• /delete_file <token> - Delete media
• /broadcast <message> - Send to all users
• /cleanup - Clean all temp files`

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	from := msg.From.ID
	admin := b.cfg.IsAdmin(from)

	// Deep-link redemption is the one flow open to everyone.
	if msg.IsCommand() && msg.Command() == "start" {
		b.handleStart(msg, admin)
		return
	}
	if !admin {
		log.Printf("[bot] non-admin %d message rejected", from)
		b.reply(msg.Chat.ID, msg.MessageID, b.cfg.ChannelMessage)
		return
	}

	// A session waiting for text captures the next message, /cancel
	// included, before command dispatch.
	if v, err := b.sessions.Peek(from); err == nil && v.State == session.StateAwaitingText {
		if !msg.IsCommand() || msg.Command() == "cancel" {
			b.handleTextInput(msg)
			return
		}
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	if msg.Video != nil || len(msg.Photo) > 0 {
		b.handleMedia(msg)
	}
}

// handleStart redeems a deep-link payload, or greets without one.
func (b *Bot) handleStart(msg *tgbotapi.Message, admin bool) {
	payload := strings.TrimSpace(msg.CommandArguments())
	if payload == "" {
		if admin {
			b.reply(msg.Chat.ID, msg.MessageID, adminHelp)
		} else {
			b.reply(msg.Chat.ID, msg.MessageID, b.cfg.ChannelMessage)
		}
		return
	}

	rec, err := b.reg.Resolve(payload)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			log.Printf("[bot] invalid token requested by %d", msg.From.ID)
			b.reply(msg.Chat.ID, msg.MessageID, "❌ Invalid or expired link")
			return
		}
		log.Printf("[bot] resolve failed: %v", err)
		b.reply(msg.Chat.ID, msg.MessageID, "⚠️ Something went wrong, try again later")
		return
	}

	log.Printf("[bot] sending %s to chat %d (protected=%v)", rec.Kind, msg.Chat.ID, rec.ProtectContent)
	b.sendStoredMedia(msg.Chat.ID, rec)

	if err := b.db.AddUser(msg.Chat.ID); err != nil {
		log.Printf("[bot] record user %d: %v", msg.Chat.ID, err)
	}
}

// sendStoredMedia delivers a registered file by its Telegram file ID.
// The request is assembled by hand because the client library's typed
// configs predate the protect_content parameter.
func (b *Bot) sendStoredMedia(chatID int64, rec *storage.MediaRecord) {
	endpoint, field := "sendVideo", "video"
	if rec.Kind == storage.KindPhoto {
		endpoint, field = "sendPhoto", "photo"
	}

	params := make(tgbotapi.Params)
	params.AddNonZero64("chat_id", chatID)
	params[field] = rec.FileID
	params.AddBool("protect_content", rec.ProtectContent)

	if _, err := b.api.MakeRequest(endpoint, params); err != nil {
		log.Printf("[bot] %s to %d: %v", endpoint, chatID, err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "help":
		b.reply(msg.Chat.ID, msg.MessageID, adminHelp)

	case "settings":
		s := b.settings.Get()
		b.reply(msg.Chat.ID, msg.MessageID, fmt.Sprintf(
			"⚙️ Current Bot Settings:\n\n"+
				"🎬 Preview Length: %d seconds\n"+
				"🖼 Collage Frames: %d frames\n"+
				"📊 Collage Quality: %d%%\n\n"+
				"📝 Bot Description:\n%s",
			s.PreviewLength, s.CollageFrames, s.CollageQuality, s.Description))

	case "set_preview":
		b.applySetting(msg, args, "Usage: /set_preview <1-10>", func(raw string) (string, error) {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return "", fmt.Errorf("%q is not a number", raw)
			}
			if err := b.settings.SetPreviewLength(n); err != nil {
				return "", err
			}
			return fmt.Sprintf("✅ Preview length set to %ds", n), nil
		})

	case "set_collage":
		b.applySetting(msg, args, "Usage: /set_collage <4|6|9|12>", func(raw string) (string, error) {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return "", fmt.Errorf("%q is not a number", raw)
			}
			if err := b.settings.SetCollageFrames(n); err != nil {
				return "", err
			}
			return fmt.Sprintf("✅ Collage frames set to %d", n), nil
		})

	case "set_description":
		b.applySetting(msg, args, "Usage: /set_description <text>", func(raw string) (string, error) {
			if err := b.settings.SetDescription(raw); err != nil {
				return "", err
			}
			return "✅ Description updated", nil
		})

	case "list_files":
		b.handleListFiles(msg)

	case "delete_file":
		if args == "" {
			b.reply(msg.Chat.ID, msg.MessageID, "Usage: /delete_file <token>")
			return
		}
		switch err := b.reg.Delete(args); {
		case err == nil:
			b.reply(msg.Chat.ID, msg.MessageID, "✅ Deleted "+args)
		case errors.Is(err, registry.ErrNotFound):
			b.reply(msg.Chat.ID, msg.MessageID, "❌ No media with token "+args)
		default:
			log.Printf("[bot] delete %s: %v", args, err)
			b.reply(msg.Chat.ID, msg.MessageID, "⚠️ Delete failed, try again later")
		}

	case "broadcast":
		if args == "" {
			b.reply(msg.Chat.ID, msg.MessageID, "📢 Usage: /broadcast <message>")
			return
		}
		b.handleBroadcast(msg, args)

	case "cleanup":
		b.reply(msg.Chat.ID, msg.MessageID, "🧹 Starting cleanup...")
		removed, err := b.SweepWorkDir()
		if err != nil {
			log.Printf("[bot] cleanup: %v", err)
			b.reply(msg.Chat.ID, 0, "⚠️ Cleanup finished with errors, see logs")
			return
		}
		b.reply(msg.Chat.ID, 0, fmt.Sprintf("✅ Cleanup completed! Removed %d temp entries.", removed))
	}
}

func (b *Bot) applySetting(msg *tgbotapi.Message, args, usage string, apply func(string) (string, error)) {
	if args == "" {
		b.reply(msg.Chat.ID, msg.MessageID, usage)
		return
	}
	reply, err := apply(args)
	if err != nil {
		b.reply(msg.Chat.ID, msg.MessageID, "❌ "+err.Error())
		return
	}
	b.reply(msg.Chat.ID, msg.MessageID, reply)
}

func (b *Bot) handleListFiles(msg *tgbotapi.Message) {
	records, err := b.reg.List()
	if err != nil {
		log.Printf("[bot] list files: %v", err)
		b.reply(msg.Chat.ID, msg.MessageID, "⚠️ Listing failed, try again later")
		return
	}
	if len(records) == 0 {
		b.reply(msg.Chat.ID, msg.MessageID, "📭 No media stored.")
		return
	}

	var sb strings.Builder
	sb.WriteString("📁 Stored Media:\n\n")
	for _, rec := range records {
		icon := "🎬"
		if rec.Kind == storage.KindPhoto {
			icon = "🖼"
		}
		fmt.Fprintf(&sb, "%s %s (%s)\n", icon, rec.Token, rec.Kind)
	}
	b.reply(msg.Chat.ID, msg.MessageID, sb.String())
}

func (b *Bot) handleBroadcast(msg *tgbotapi.Message, text string) {
	users, err := b.db.ListUsers()
	if err != nil {
		log.Printf("[bot] broadcast: %v", err)
		b.reply(msg.Chat.ID, msg.MessageID, "⚠️ Broadcast failed, try again later")
		return
	}

	sent, failed := 0, 0
	for _, userID := range users {
		if _, err := b.api.Send(tgbotapi.NewMessage(userID, text)); err != nil {
			log.Printf("[bot] broadcast to %d: %v", userID, err)
			failed++
			continue
		}
		sent++
	}
	log.Printf("[bot] broadcast delivered to %d users, %d failed", sent, failed)
	b.reply(msg.Chat.ID, msg.MessageID, fmt.Sprintf("✅ Broadcast sent to %d users\n⚠️ %d failed", sent, failed))
}

// handleMedia opens a fresh session for the upload and shows the
// options menu. A previous unfinished session is replaced.
func (b *Bot) handleMedia(msg *tgbotapi.Message) {
	var (
		kind   storage.MediaKind
		fileID string
	)
	switch {
	case msg.Video != nil:
		kind = storage.KindVideo
		fileID = msg.Video.FileID
	case len(msg.Photo) > 0:
		kind = storage.KindPhoto
		fileID = msg.Photo[len(msg.Photo)-1].FileID // largest size
	default:
		return
	}

	log.Printf("[bot] admin %d uploading %s", msg.From.ID, kind)
	s := b.settings.Get()
	view := b.sessions.Open(msg.From.ID, fileID, kind, msg.Chat.ID, msg.MessageID, session.Defaults{
		WatermarkText:     s.WatermarkText,
		WatermarkPosition: session.Position(s.WatermarkPosition),
		WatermarkOpacity:  s.WatermarkOpacity,
	})

	text, markup := renderMenu(view)
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ReplyMarkup = markup
	b.send(reply)
}

// handleTextInput consumes one message while the session awaits the
// watermark text.
func (b *Bot) handleTextInput(msg *tgbotapi.Message) {
	owner := msg.From.ID

	if msg.IsCommand() && msg.Command() == "cancel" {
		view, err := b.sessions.CancelText(owner)
		if err != nil {
			return
		}
		b.reply(msg.Chat.ID, msg.MessageID, "❌ Cancelled")
		b.sendMenu(msg.Chat.ID, view)
		return
	}

	view, err := b.sessions.SubmitText(owner, msg.Text)
	if err != nil {
		var verr *session.ValidationError
		if errors.As(err, &verr) {
			b.reply(msg.Chat.ID, msg.MessageID, "❌ "+verr.Error())
			return
		}
		return
	}
	b.reply(msg.Chat.ID, msg.MessageID, "✅ Watermark text set to: "+view.Options.Watermark.Text)
	b.sendMenu(msg.Chat.ID, view)
}

func (b *Bot) sendMenu(chatID int64, view session.View) {
	text, markup := renderMenu(view)
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	b.send(msg)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil || cb.Message == nil {
		return
	}
	owner := cb.From.ID
	if !b.cfg.IsAdmin(owner) {
		b.answerCallback(cb.ID, b.cfg.ChannelMessage)
		return
	}
	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID

	parsed := parseCallback(cb.Data)
	switch parsed.kind {
	case cbAction:
		view, err := b.sessions.ApplyOption(owner, parsed.action)
		if err != nil {
			b.answerCallback(cb.ID, sessionErrorText(err))
			return
		}
		b.answerCallback(cb.ID, "")
		text, markup := renderMenu(view)
		b.send(tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, markup))

	case cbTextPrompt:
		if _, err := b.sessions.RequestText(owner, session.FieldWatermarkText); err != nil {
			b.answerCallback(cb.ID, sessionErrorText(err))
			return
		}
		b.answerCallback(cb.ID, "Send watermark text...")
		b.reply(chatID, 0, "📝 Send the watermark text (or /cancel):")

	case cbGenerate:
		snap, err := b.sessions.Finalize(owner)
		if err != nil {
			b.answerCallback(cb.ID, sessionErrorText(err))
			return
		}
		b.answerCallback(cb.ID, "🔄 Processing...")
		// Drop the menu; progress continues in a status message.
		if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
			log.Printf("[bot] delete menu: %v", err)
		}
		go b.finalize(ctx, chatID, snap)

	default:
		b.answerCallback(cb.ID, "")
	}
}

func sessionErrorText(err error) string {
	if errors.Is(err, session.ErrSessionExpired) {
		return "⚠️ Upload expired. Please send media again."
	}
	var verr *session.ValidationError
	if errors.As(err, &verr) {
		return "❌ " + verr.Error()
	}
	return "⚠️ Something went wrong"
}
