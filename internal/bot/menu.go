package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ssd-technologies/medialink/internal/session"
	"github.com/ssd-technologies/medialink/internal/storage"
)

// renderMenu builds the message text and inline keyboard for the
// session's current state: the top-level options menu, one of the
// pickers, or the text-input prompt.
func renderMenu(v session.View) (string, tgbotapi.InlineKeyboardMarkup) {
	if v.State == session.StateSubMenu {
		switch v.Menu {
		case session.MenuPreview:
			return previewMenu()
		case session.MenuCollage:
			return collageMenu()
		case session.MenuWatermark:
			return watermarkMenu(v.Options.Watermark)
		case session.MenuPosition:
			return positionMenu()
		case session.MenuOpacity:
			return opacityMenu()
		}
	}
	return optionsMenu(v)
}

func optionsMenu(v session.View) (string, tgbotapi.InlineKeyboardMarkup) {
	previewText := "No"
	if v.Options.Preview.Enabled {
		previewText = fmt.Sprintf("%ds", v.Options.Preview.Length)
	}
	collageText := "No"
	if v.Options.Collage.Enabled {
		collageText = fmt.Sprintf("%d frames", v.Options.Collage.Frames)
	}
	watermarkText := "❌ Off"
	if v.Options.Watermark.Enabled {
		watermarkText = "✅ On"
	}
	protectionText := "🔓 Off"
	if v.Options.ProtectContent {
		protectionText = "🔒 On"
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	if v.Kind == storage.KindVideo {
		rows = append(rows,
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🎬 Preview: "+previewText, "menu_set_preview")),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🖼 Collage: "+collageText, "menu_set_collage")),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("💧 Watermark: "+watermarkText, "menu_set_watermark")),
		)
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔐 Protection: "+protectionText, "menu_toggle_protection")),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Generate Deep Link", "process_now")),
	)

	text := "⚙️ Quick Settings (default: all off)\n\n"
	if v.Kind == storage.KindVideo {
		text += fmt.Sprintf("🎬 Preview: %s\n🖼 Collage: %s\n💧 Watermark: %s\n", previewText, collageText, watermarkText)
	}
	text += fmt.Sprintf("🔐 Protection: %s\n\n💡 Click to customize or Generate to proceed.", protectionText)

	return text, tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func previewMenu() (string, tgbotapi.InlineKeyboardMarkup) {
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("3s", "set_preview_3"),
			tgbotapi.NewInlineKeyboardButtonData("5s", "set_preview_5"),
			tgbotapi.NewInlineKeyboardButtonData("7s", "set_preview_7"),
			tgbotapi.NewInlineKeyboardButtonData("10s", "set_preview_10"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Disable", "set_preview_no")),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("« Back", "back_to_menu")),
	)
	return "🎬 Preview length:", markup
}

func collageMenu() (string, tgbotapi.InlineKeyboardMarkup) {
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("4", "set_collage_4"),
			tgbotapi.NewInlineKeyboardButtonData("6", "set_collage_6"),
			tgbotapi.NewInlineKeyboardButtonData("9", "set_collage_9"),
			tgbotapi.NewInlineKeyboardButtonData("12", "set_collage_12"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Disable", "set_collage_no")),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("« Back", "back_to_menu")),
	)
	return "🖼 Collage frames:", markup
}

func watermarkMenu(w session.WatermarkOptions) (string, tgbotapi.InlineKeyboardMarkup) {
	var rows [][]tgbotapi.InlineKeyboardButton
	if w.Enabled {
		rows = append(rows,
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("❌ Disable", "set_watermark_off")),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("📝 Text", "watermark_text"),
				tgbotapi.NewInlineKeyboardButtonData("📍 Position", "watermark_position"),
				tgbotapi.NewInlineKeyboardButtonData("🎨 Opacity", "watermark_opacity"),
			),
		)
	} else {
		rows = append(rows,
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ Enable", "set_watermark_on")))
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("« Back", "back_to_menu")))

	text := fmt.Sprintf("💧 Watermark settings:\n\nText: %s\nPosition: %s\nOpacity: %d%%",
		orUnset(w.Text), w.Position, int(w.Opacity*100))
	return text, tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func positionMenu() (string, tgbotapi.InlineKeyboardMarkup) {
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("↖️", "pos_top-left"),
			tgbotapi.NewInlineKeyboardButtonData("⬆️", "pos_top-center"),
			tgbotapi.NewInlineKeyboardButtonData("↗️", "pos_top-right"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️", "pos_center-left"),
			tgbotapi.NewInlineKeyboardButtonData("⏺", "pos_center"),
			tgbotapi.NewInlineKeyboardButtonData("➡️", "pos_center-right"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("↙️", "pos_bottom-left"),
			tgbotapi.NewInlineKeyboardButtonData("⬇️", "pos_bottom-center"),
			tgbotapi.NewInlineKeyboardButtonData("↘️", "pos_bottom-right"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("« Back", "back_to_menu")),
	)
	return "📍 Watermark position:", markup
}

func opacityMenu() (string, tgbotapi.InlineKeyboardMarkup) {
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("10%", "opacity_0.1"),
			tgbotapi.NewInlineKeyboardButtonData("25%", "opacity_0.25"),
			tgbotapi.NewInlineKeyboardButtonData("50%", "opacity_0.5"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("75%", "opacity_0.75"),
			tgbotapi.NewInlineKeyboardButtonData("90%", "opacity_0.9"),
			tgbotapi.NewInlineKeyboardButtonData("100%", "opacity_1.0"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("« Back", "back_to_menu")),
	)
	return "🎨 Watermark opacity:", markup
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
