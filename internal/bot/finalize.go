package bot

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ssd-technologies/medialink/internal/download"
	"github.com/ssd-technologies/medialink/internal/pipeline"
	"github.com/ssd-technologies/medialink/internal/session"
	"github.com/ssd-technologies/medialink/internal/storage"
)

// finalize runs a committed session end to end: download, transform,
// artifact delivery, token issue. Download and stage failures degrade to
// notices; the link is issued regardless, pointing at the original file.
func (b *Bot) finalize(ctx context.Context, chatID int64, snap session.Session) {
	req := buildRequest(snap.Options, b.settings.Get().CollageQuality)

	// Photos and no-op option sets skip the download entirely.
	if snap.Kind != storage.KindVideo || !req.NeedsProcessing() {
		status := b.send(tgbotapi.NewMessage(chatID, "⚡ Generating instant deep link..."))
		b.issueLink(chatID, status.MessageID, snap, true)
		return
	}

	status := b.send(tgbotapi.NewMessage(chatID, "⏳ Processing your media..."))
	statusID := status.MessageID

	workDir, err := os.MkdirTemp(b.workDir, "job-")
	if err != nil {
		log.Printf("[bot] create work dir: %v", err)
		b.editStatus(chatID, statusID, "⚠️ Processing could not start.\n\nGenerating link anyway...")
		b.issueLink(chatID, statusID, snap, false)
		return
	}
	defer os.RemoveAll(workDir)

	b.editStatus(chatID, statusID, "📥 Downloading video for processing...")
	srcPath := filepath.Join(workDir, "source.mp4")
	if err := b.download(ctx, snap, srcPath, chatID, statusID); err != nil {
		log.Printf("[bot] download for %d failed: %v", snap.Owner, err)
		b.editStatus(chatID, statusID, fmt.Sprintf("❌ Download failed: %v\n\nGenerating link anyway...", err))
		b.issueLink(chatID, statusID, snap, false)
		return
	}

	res := b.pipe.Run(ctx, srcPath, workDir, req, func(stage pipeline.Stage) {
		b.editStatus(chatID, statusID, stageBanner(stage))
	})
	for _, warn := range res.Warnings {
		b.reply(chatID, 0, "⚠️ "+warn.Error())
	}

	if res.PreviewPath != "" {
		video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(res.PreviewPath))
		video.Caption = "🎬 Preview"
		b.send(video)
	}
	if res.CollagePath != "" {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(res.CollagePath))
		photo.Caption = "🖼 Collage"
		b.send(photo)
	}

	b.issueLink(chatID, statusID, snap, false)
}

// download resolves the Bot API file URL and hands off to the engine;
// the size-limit rejection is translated so the engine can switch to
// the fallback fetcher.
func (b *Bot) download(ctx context.Context, snap session.Session, dest string, chatID int64, statusID int) error {
	src := download.Source{
		ResolveURL: func(ctx context.Context) (string, error) {
			f, err := b.api.GetFile(tgbotapi.FileConfig{FileID: snap.FileID})
			if err != nil {
				if strings.Contains(strings.ToLower(err.Error()), "file is too big") {
					return "", download.ErrSizeLimited
				}
				return "", err
			}
			return f.Link(b.token), nil
		},
		Fallback:  b.fallback,
		ChatID:    snap.ChatID,
		MessageID: snap.MessageID,
	}
	progress := func(current, total int64) {
		if total > 0 {
			b.editStatus(chatID, statusID, fmt.Sprintf("🚀 Downloading large video...\n\n📥 %.1f / %.1f MB",
				float64(current)/(1<<20), float64(total)/(1<<20)))
		} else {
			b.editStatus(chatID, statusID, fmt.Sprintf("🚀 Downloading large video...\n\n📥 %.1f MB",
				float64(current)/(1<<20)))
		}
	}
	return b.engine.Acquire(ctx, src, dest, progress)
}

// issueLink registers the original file under a fresh token and replaces
// the status message with the shareable link.
func (b *Bot) issueLink(chatID int64, statusID int, snap session.Session, instant bool) {
	b.editStatus(chatID, statusID, "⏳ Generating deep link...")

	token, err := b.reg.Issue(snap.FileID, snap.Kind, snap.Options.ProtectContent)
	if err != nil {
		log.Printf("[bot] issue token: %v", err)
		b.editStatus(chatID, statusID, "❌ Could not generate the link, please try again.")
		return
	}
	log.Printf("[bot] issued token %s for %s", token, snap.Kind)

	protection := "OFF"
	if snap.Options.ProtectContent {
		protection = "ON"
	}
	link := deepLink(b.username, token)

	var text string
	if instant {
		text = fmt.Sprintf("✅ Instant Deep Link Generated!\n\n"+
			"🔗 Link:\n%s\n\n"+
			"📋 Token: %s\n\n"+
			"⚡ No download needed - instant generation!\n"+
			"🔒 Protection: %s\n\n"+
			"💡 Users will stream directly from Telegram.",
			link, token, protection)
	} else {
		text = fmt.Sprintf("✅ Done!\n\n"+
			"🔗 Deep link:\n%s\n\n"+
			"📋 Token: %s\n\n"+
			"🔒 Protection: %s",
			link, token, protection)
	}
	b.editStatus(chatID, statusID, text)
}

func deepLink(username, token string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", username, token)
}

// buildRequest maps committed session options onto pipeline stages. A
// watermark without text is treated as off; the menu enforces text
// entry, this is the backstop.
func buildRequest(o session.Options, collageQuality int) pipeline.Request {
	var req pipeline.Request
	if o.Watermark.Enabled && o.Watermark.Text != "" {
		req.Watermark = &pipeline.WatermarkRequest{
			Text:    o.Watermark.Text,
			Anchor:  pipeline.Anchor(o.Watermark.Position),
			Opacity: o.Watermark.Opacity,
		}
	}
	if o.Preview.Enabled {
		req.Preview = &pipeline.PreviewRequest{Length: o.Preview.Length}
	}
	if o.Collage.Enabled {
		req.Collage = &pipeline.CollageRequest{Frames: o.Collage.Frames, Quality: collageQuality}
	}
	return req
}

func stageBanner(stage pipeline.Stage) string {
	switch stage {
	case pipeline.StageWatermark:
		return "⏳ Applying watermark..."
	case pipeline.StagePreview:
		return "⏳ Creating preview..."
	case pipeline.StageCollage:
		return "⏳ Creating collage..."
	}
	return "⏳ Processing..."
}

// SweepWorkDir removes everything under the work root. Called at
// startup, at shutdown and on /cleanup; active jobs use per-run
// subdirectories, so a sweep between jobs is safe.
func (b *Bot) SweepWorkDir() (int, error) {
	entries, err := os.ReadDir(b.workDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	var firstErr error
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(b.workDir, e.Name())); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Printf("[bot] swept %d temp entries", removed)
	}
	return removed, firstErr
}
