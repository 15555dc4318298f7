package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ssd-technologies/medialink/internal/storage"
)

// Store holds at most one live session per owner. A new upload from the same
// owner silently replaces the previous session.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[int64]*Session)}
}

// Defaults are the starting option values applied by Open. The zero value
// disables every stage; protection defaults on, matching the upload surface.
type Defaults struct {
	WatermarkText     string
	WatermarkPosition Position
	WatermarkOpacity  float64
}

// Open creates (or replaces) the owner's session in AwaitingOptions with all
// stages disabled.
func (st *Store) Open(owner int64, fileID string, kind storage.MediaKind, chatID int64, messageID int, d Defaults) View {
	st.mu.Lock()
	defer st.mu.Unlock()

	pos := d.WatermarkPosition
	if !validPositions[pos] {
		pos = BottomRight
	}
	opacity := d.WatermarkOpacity
	if opacity <= 0 || opacity > 1 {
		opacity = 0.5
	}

	s := &Session{
		Owner:     owner,
		FileID:    fileID,
		Kind:      kind,
		ChatID:    chatID,
		MessageID: messageID,
		State:     StateAwaitingOptions,
		Options: Options{
			Watermark: WatermarkOptions{
				Text:     d.WatermarkText,
				Position: pos,
				Opacity:  opacity,
			},
			ProtectContent: true,
		},
	}
	st.sessions[owner] = s
	return s.view()
}

// Peek returns the current view without mutating anything.
func (st *Store) Peek(owner int64) (View, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.sessions[owner]
	if !ok {
		return View{}, ErrSessionExpired
	}
	return s.view(), nil
}

// ApplyOption dispatches one menu action against the owner's session and
// returns the updated view. Validation failures leave the session untouched.
func (st *Store) ApplyOption(owner int64, a Action) (View, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[owner]
	if !ok {
		return View{}, ErrSessionExpired
	}

	switch a.Kind {
	case ActionOpenMenu:
		if a.Menu == MenuNone {
			return View{}, &ValidationError{Field: "menu", Reason: "no picker named"}
		}
		s.State = StateSubMenu
		s.Menu = a.Menu

	case ActionBack:
		s.State = StateAwaitingOptions
		s.Menu = MenuNone

	case ActionSetPreview:
		if a.Seconds == 0 {
			s.Options.Preview = PreviewOptions{}
		} else {
			if a.Seconds < 1 || a.Seconds > 10 {
				return View{}, &ValidationError{Field: "preview length", Reason: "must be 1-10 seconds"}
			}
			if s.Kind != storage.KindVideo {
				return View{}, &ValidationError{Field: "preview", Reason: "only available for video"}
			}
			s.Options.Preview = PreviewOptions{Enabled: true, Length: a.Seconds}
		}
		s.State = StateAwaitingOptions
		s.Menu = MenuNone

	case ActionSetCollage:
		if a.Frames == 0 {
			s.Options.Collage = CollageOptions{}
		} else {
			if !validFrameCounts[a.Frames] {
				return View{}, &ValidationError{Field: "collage frames", Reason: "must be 4, 6, 9 or 12"}
			}
			if s.Kind != storage.KindVideo {
				return View{}, &ValidationError{Field: "collage", Reason: "only available for video"}
			}
			s.Options.Collage = CollageOptions{Enabled: true, Frames: a.Frames}
		}
		s.State = StateAwaitingOptions
		s.Menu = MenuNone

	case ActionSetWatermark:
		s.Options.Watermark.Enabled = a.Enable
		s.State = StateAwaitingOptions
		s.Menu = MenuNone

	case ActionSetPosition:
		if !validPositions[a.Position] {
			return View{}, &ValidationError{Field: "watermark position", Reason: fmt.Sprintf("unknown position %q", a.Position)}
		}
		s.Options.Watermark.Position = a.Position
		s.State = StateAwaitingOptions
		s.Menu = MenuNone

	case ActionSetOpacity:
		if a.Opacity < 0 || a.Opacity > 1 {
			return View{}, &ValidationError{Field: "watermark opacity", Reason: "must be within [0, 1]"}
		}
		s.Options.Watermark.Opacity = a.Opacity
		s.State = StateAwaitingOptions
		s.Menu = MenuNone

	case ActionToggleProtection:
		s.Options.ProtectContent = !s.Options.ProtectContent
		s.State = StateAwaitingOptions
		s.Menu = MenuNone

	default:
		return View{}, &ValidationError{Field: "action", Reason: "unknown action"}
	}

	return s.view(), nil
}

// RequestText transitions the session to free-text capture for field.
func (st *Store) RequestText(owner int64, field TextField) (View, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[owner]
	if !ok {
		return View{}, ErrSessionExpired
	}
	if field == FieldNone {
		return View{}, &ValidationError{Field: "text field", Reason: "no field named"}
	}
	s.State = StateAwaitingText
	s.WaitingFor = field
	return s.view(), nil
}

// SubmitText sets the pending text field and returns to the options menu.
func (st *Store) SubmitText(owner int64, value string) (View, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[owner]
	if !ok {
		return View{}, ErrSessionExpired
	}
	if s.State != StateAwaitingText {
		return View{}, &ValidationError{Field: "text", Reason: "no field is awaiting input"}
	}

	switch s.WaitingFor {
	case FieldWatermarkText:
		value = strings.TrimSpace(value)
		if value == "" {
			return View{}, &ValidationError{Field: "watermark text", Reason: "must not be empty"}
		}
		s.Options.Watermark.Text = value
		s.Options.Watermark.Enabled = true
	default:
		return View{}, &ValidationError{Field: "text", Reason: "no field is awaiting input"}
	}

	s.State = StateAwaitingOptions
	s.WaitingFor = FieldNone
	return s.view(), nil
}

// CancelText aborts free-text capture and returns to the options menu.
func (st *Store) CancelText(owner int64) (View, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[owner]
	if !ok {
		return View{}, ErrSessionExpired
	}
	s.State = StateAwaitingOptions
	s.WaitingFor = FieldNone
	return s.view(), nil
}

// Finalize commits the session, removes it from the live set and returns a
// snapshot for pipeline execution. A second Finalize on the same owner fails
// with ErrSessionExpired.
func (st *Store) Finalize(owner int64) (Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[owner]
	if !ok {
		return Session{}, ErrSessionExpired
	}
	delete(st.sessions, owner)
	return *s, nil
}

// Cancel discards the owner's session without running the pipeline.
func (st *Store) Cancel(owner int64) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.sessions[owner]; !ok {
		return ErrSessionExpired
	}
	delete(st.sessions, owner)
	return nil
}
