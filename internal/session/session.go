// Package session tracks per-owner upload configuration between the moment
// media arrives and the moment its deep link is generated.
package session

import (
	"errors"
	"fmt"

	"github.com/ssd-technologies/medialink/internal/storage"
)

// ErrSessionExpired is returned when an operation references an owner with no
// live session. The owner must re-send the media to start over.
var ErrSessionExpired = errors.New("upload session expired")

// ValidationError rejects a malformed option value without touching the
// session.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// State is the session's position in the configuration flow.
type State int

const (
	// StateAwaitingOptions shows the top-level options menu.
	StateAwaitingOptions State = iota
	// StateSubMenu shows one of the option pickers.
	StateSubMenu
	// StateAwaitingText captures free-form input for a single field.
	StateAwaitingText
)

// Menu identifies which picker a SubMenu session is showing.
type Menu int

const (
	MenuNone Menu = iota
	MenuPreview
	MenuCollage
	MenuWatermark
	MenuPosition
	MenuOpacity
)

// TextField identifies which field an AwaitingText session is capturing.
type TextField int

const (
	FieldNone TextField = iota
	FieldWatermarkText
)

// Position is a watermark anchor on the fixed 3x3 grid.
type Position string

const (
	TopLeft      Position = "top-left"
	TopCenter    Position = "top-center"
	TopRight     Position = "top-right"
	CenterLeft   Position = "center-left"
	Center       Position = "center"
	CenterRight  Position = "center-right"
	BottomLeft   Position = "bottom-left"
	BottomCenter Position = "bottom-center"
	BottomRight  Position = "bottom-right"
)

// validPositions is the closed set of watermark anchors.
var validPositions = map[Position]bool{
	TopLeft: true, TopCenter: true, TopRight: true,
	CenterLeft: true, Center: true, CenterRight: true,
	BottomLeft: true, BottomCenter: true, BottomRight: true,
}

// validFrameCounts are the collage sizes the grid table supports.
var validFrameCounts = map[int]bool{4: true, 6: true, 9: true, 12: true}

// PreviewOptions configures the trimmed-preview stage.
type PreviewOptions struct {
	Enabled bool
	Length  int // seconds
}

// CollageOptions configures the frame-grid stage.
type CollageOptions struct {
	Enabled bool
	Frames  int
}

// WatermarkOptions configures the watermark stage.
type WatermarkOptions struct {
	Enabled  bool
	Text     string
	Position Position
	Opacity  float64
}

// Options is the full set of pending transform choices for one upload.
type Options struct {
	Preview        PreviewOptions
	Collage        CollageOptions
	Watermark      WatermarkOptions
	ProtectContent bool
}

// Session is the mutable per-owner upload record. All fields are guarded by
// the owning Store's lock; callers only ever see copies.
type Session struct {
	Owner      int64
	FileID     string
	Kind       storage.MediaKind
	ChatID     int64
	MessageID  int // source message, needed for the large-file fetch path
	State      State
	Menu       Menu
	WaitingFor TextField
	Options    Options
}

// View is a read-only snapshot handed back to the UI layer for re-rendering.
type View struct {
	Kind       storage.MediaKind
	State      State
	Menu       Menu
	WaitingFor TextField
	Options    Options
}

// view copies the render-relevant fields out of a session.
func (s *Session) view() View {
	return View{
		Kind:       s.Kind,
		State:      s.State,
		Menu:       s.Menu,
		WaitingFor: s.WaitingFor,
		Options:    s.Options,
	}
}

// ActionKind enumerates every option mutation the menu surface can request.
type ActionKind int

const (
	// ActionOpenMenu transitions to the picker named by Action.Menu.
	ActionOpenMenu ActionKind = iota
	// ActionBack returns from a picker to the top-level menu.
	ActionBack
	// ActionSetPreview sets the preview length; Seconds == 0 disables.
	ActionSetPreview
	// ActionSetCollage sets the frame count; Frames == 0 disables.
	ActionSetCollage
	// ActionSetWatermark enables or disables watermarking.
	ActionSetWatermark
	// ActionSetPosition sets the watermark anchor.
	ActionSetPosition
	// ActionSetOpacity sets the watermark opacity.
	ActionSetOpacity
	// ActionToggleProtection flips the forward/save restriction flag.
	ActionToggleProtection
)

// Action is one closed menu operation. Only the field matching Kind is
// meaningful.
type Action struct {
	Kind     ActionKind
	Menu     Menu
	Seconds  int
	Frames   int
	Enable   bool
	Position Position
	Opacity  float64
}
