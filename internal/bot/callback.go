package bot

import (
	"strconv"
	"strings"

	"github.com/ssd-technologies/medialink/internal/session"
)

// callbackKind classifies decoded inline-button data.
type callbackKind int

const (
	cbUnknown callbackKind = iota
	// cbAction carries a session option mutation.
	cbAction
	// cbTextPrompt switches the session to watermark text capture.
	cbTextPrompt
	// cbGenerate commits the session and runs the pipeline.
	cbGenerate
)

type callback struct {
	kind   callbackKind
	action session.Action
}

// parseCallback decodes inline keyboard data into a typed command. The
// data strings are a fixed protocol between the menus this package
// renders and this parser; anything else is cbUnknown.
func parseCallback(data string) callback {
	switch data {
	case "menu_set_preview":
		return callback{kind: cbAction, action: session.Action{Kind: session.ActionOpenMenu, Menu: session.MenuPreview}}
	case "menu_set_collage":
		return callback{kind: cbAction, action: session.Action{Kind: session.ActionOpenMenu, Menu: session.MenuCollage}}
	case "menu_set_watermark":
		return callback{kind: cbAction, action: session.Action{Kind: session.ActionOpenMenu, Menu: session.MenuWatermark}}
	case "watermark_position":
		return callback{kind: cbAction, action: session.Action{Kind: session.ActionOpenMenu, Menu: session.MenuPosition}}
	case "watermark_opacity":
		return callback{kind: cbAction, action: session.Action{Kind: session.ActionOpenMenu, Menu: session.MenuOpacity}}
	case "menu_toggle_protection":
		return callback{kind: cbAction, action: session.Action{Kind: session.ActionToggleProtection}}
	case "back_to_menu":
		return callback{kind: cbAction, action: session.Action{Kind: session.ActionBack}}
	case "set_preview_no":
		return callback{kind: cbAction, action: session.Action{Kind: session.ActionSetPreview}}
	case "set_collage_no":
		return callback{kind: cbAction, action: session.Action{Kind: session.ActionSetCollage}}
	case "set_watermark_on":
		return callback{kind: cbAction, action: session.Action{Kind: session.ActionSetWatermark, Enable: true}}
	case "set_watermark_off":
		return callback{kind: cbAction, action: session.Action{Kind: session.ActionSetWatermark, Enable: false}}
	case "watermark_text":
		return callback{kind: cbTextPrompt}
	case "process_now":
		return callback{kind: cbGenerate}
	}

	if rest, ok := strings.CutPrefix(data, "set_preview_"); ok {
		if n, err := strconv.Atoi(rest); err == nil {
			return callback{kind: cbAction, action: session.Action{Kind: session.ActionSetPreview, Seconds: n}}
		}
	}
	if rest, ok := strings.CutPrefix(data, "set_collage_"); ok {
		if n, err := strconv.Atoi(rest); err == nil {
			return callback{kind: cbAction, action: session.Action{Kind: session.ActionSetCollage, Frames: n}}
		}
	}
	if rest, ok := strings.CutPrefix(data, "pos_"); ok {
		return callback{kind: cbAction, action: session.Action{Kind: session.ActionSetPosition, Position: session.Position(rest)}}
	}
	if rest, ok := strings.CutPrefix(data, "opacity_"); ok {
		if o, err := strconv.ParseFloat(rest, 64); err == nil {
			return callback{kind: cbAction, action: session.Action{Kind: session.ActionSetOpacity, Opacity: o}}
		}
	}
	return callback{kind: cbUnknown}
}
