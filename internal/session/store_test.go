package session

import (
	"errors"
	"sync"
	"testing"

	"github.com/ssd-technologies/medialink/internal/storage"
)

func openVideo(t *testing.T, st *Store, owner int64) View {
	t.Helper()
	return st.Open(owner, "file-id", storage.KindVideo, owner, 1, Defaults{})
}

func TestOpen_DefaultsAllStagesOff(t *testing.T) {
	st := NewStore()
	v := openVideo(t, st, 1)

	if v.State != StateAwaitingOptions {
		t.Errorf("state = %v, want AwaitingOptions", v.State)
	}
	if v.Options.Preview.Enabled || v.Options.Collage.Enabled || v.Options.Watermark.Enabled {
		t.Errorf("expected all stages disabled, got %+v", v.Options)
	}
	if !v.Options.ProtectContent {
		t.Error("protection should default on")
	}
	if v.Options.Watermark.Position != BottomRight {
		t.Errorf("position = %q, want bottom-right", v.Options.Watermark.Position)
	}
}

func TestOpen_ReplacesExistingSession(t *testing.T) {
	st := NewStore()
	openVideo(t, st, 1)
	if _, err := st.ApplyOption(1, Action{Kind: ActionSetPreview, Seconds: 5}); err != nil {
		t.Fatalf("ApplyOption: %v", err)
	}

	v := st.Open(1, "new-file", storage.KindVideo, 1, 2, Defaults{})
	if v.Options.Preview.Enabled {
		t.Error("replacement session should start with preview disabled")
	}
}

func TestApplyOption_UnknownOwner(t *testing.T) {
	st := NewStore()
	_, err := st.ApplyOption(99, Action{Kind: ActionToggleProtection})
	if !errors.Is(err, ErrSessionExpired) {
		t.Errorf("expected ErrSessionExpired, got %v", err)
	}
}

func TestApplyOption_MenuNavigation(t *testing.T) {
	st := NewStore()
	openVideo(t, st, 1)

	v, err := st.ApplyOption(1, Action{Kind: ActionOpenMenu, Menu: MenuWatermark})
	if err != nil {
		t.Fatalf("open menu: %v", err)
	}
	if v.State != StateSubMenu || v.Menu != MenuWatermark {
		t.Errorf("expected SubMenu(watermark), got state=%v menu=%v", v.State, v.Menu)
	}

	v, err = st.ApplyOption(1, Action{Kind: ActionBack})
	if err != nil {
		t.Fatalf("back: %v", err)
	}
	if v.State != StateAwaitingOptions || v.Menu != MenuNone {
		t.Errorf("expected AwaitingOptions after back, got state=%v menu=%v", v.State, v.Menu)
	}
}

func TestApplyOption_SetAndDisablePreview(t *testing.T) {
	st := NewStore()
	openVideo(t, st, 1)

	v, err := st.ApplyOption(1, Action{Kind: ActionSetPreview, Seconds: 7})
	if err != nil {
		t.Fatalf("set preview: %v", err)
	}
	if !v.Options.Preview.Enabled || v.Options.Preview.Length != 7 {
		t.Errorf("preview = %+v, want enabled 7s", v.Options.Preview)
	}

	v, err = st.ApplyOption(1, Action{Kind: ActionSetPreview, Seconds: 0})
	if err != nil {
		t.Fatalf("disable preview: %v", err)
	}
	if v.Options.Preview.Enabled {
		t.Error("preview should be disabled")
	}
}

func TestApplyOption_Validation(t *testing.T) {
	st := NewStore()
	openVideo(t, st, 1)

	cases := []struct {
		name   string
		action Action
	}{
		{"preview too long", Action{Kind: ActionSetPreview, Seconds: 11}},
		{"preview negative", Action{Kind: ActionSetPreview, Seconds: -3}},
		{"collage frames unsupported", Action{Kind: ActionSetCollage, Frames: 5}},
		{"opacity above one", Action{Kind: ActionSetOpacity, Opacity: 1.5}},
		{"position unknown", Action{Kind: ActionSetPosition, Position: "middle-ish"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := st.ApplyOption(1, tc.action)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			// The session must be untouched by the rejected change.
			v, err := st.Peek(1)
			if err != nil {
				t.Fatalf("Peek: %v", err)
			}
			if v.Options.Preview.Enabled || v.Options.Collage.Enabled {
				t.Errorf("rejected option corrupted session: %+v", v.Options)
			}
		})
	}
}

func TestApplyOption_PreviewRejectedForPhoto(t *testing.T) {
	st := NewStore()
	st.Open(1, "photo-file", storage.KindPhoto, 1, 1, Defaults{})

	_, err := st.ApplyOption(1, Action{Kind: ActionSetPreview, Seconds: 5})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("expected ValidationError for photo preview, got %v", err)
	}
}

func TestTextCapture_SubmitAndCancel(t *testing.T) {
	st := NewStore()
	openVideo(t, st, 1)

	if _, err := st.RequestText(1, FieldWatermarkText); err != nil {
		t.Fatalf("RequestText: %v", err)
	}

	v, err := st.SubmitText(1, "  @MyChannel  ")
	if err != nil {
		t.Fatalf("SubmitText: %v", err)
	}
	if v.Options.Watermark.Text != "@MyChannel" || !v.Options.Watermark.Enabled {
		t.Errorf("watermark = %+v, want enabled with trimmed text", v.Options.Watermark)
	}
	if v.State != StateAwaitingOptions {
		t.Errorf("state = %v, want AwaitingOptions", v.State)
	}

	// Submitting again without a pending field is a validation error.
	if _, err := st.SubmitText(1, "again"); err == nil {
		t.Error("expected error submitting with no pending field")
	}

	if _, err := st.RequestText(1, FieldWatermarkText); err != nil {
		t.Fatalf("RequestText: %v", err)
	}
	v, err = st.CancelText(1)
	if err != nil {
		t.Fatalf("CancelText: %v", err)
	}
	if v.State != StateAwaitingOptions || v.WaitingFor != FieldNone {
		t.Errorf("expected clean return to menu, got %+v", v)
	}
}

func TestSubmitText_EmptyRejected(t *testing.T) {
	st := NewStore()
	openVideo(t, st, 1)
	if _, err := st.RequestText(1, FieldWatermarkText); err != nil {
		t.Fatalf("RequestText: %v", err)
	}
	if _, err := st.SubmitText(1, "   "); err == nil {
		t.Error("expected validation error for blank watermark text")
	}
}

func TestFinalize_ConsumesSession(t *testing.T) {
	st := NewStore()
	openVideo(t, st, 1)

	snap, err := st.Finalize(1)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if snap.FileID != "file-id" {
		t.Errorf("snapshot fileID = %q", snap.FileID)
	}

	if _, err := st.Finalize(1); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("second Finalize: expected ErrSessionExpired, got %v", err)
	}
	if _, err := st.Peek(1); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Peek after Finalize: expected ErrSessionExpired, got %v", err)
	}
}

func TestCancel_DiscardsSession(t *testing.T) {
	st := NewStore()
	openVideo(t, st, 1)

	if err := st.Cancel(1); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := st.Cancel(1); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("expected ErrSessionExpired, got %v", err)
	}
}

func TestStore_ConcurrentOwnersDoNotInterfere(t *testing.T) {
	st := NewStore()
	const owners = 16

	var wg sync.WaitGroup
	for i := int64(0); i < owners; i++ {
		owner := i + 1
		wg.Add(1)
		go func() {
			defer wg.Done()
			st.Open(owner, "f", storage.KindVideo, owner, 1, Defaults{})
			for i := 0; i < 50; i++ {
				st.ApplyOption(owner, Action{Kind: ActionToggleProtection})
				st.ApplyOption(owner, Action{Kind: ActionSetPreview, Seconds: 4})
			}
		}()
	}
	wg.Wait()

	for i := int64(0); i < owners; i++ {
		v, err := st.Peek(i + 1)
		if err != nil {
			t.Fatalf("owner %d lost its session: %v", i+1, err)
		}
		if !v.Options.Preview.Enabled || v.Options.Preview.Length != 4 {
			t.Errorf("owner %d preview = %+v", i+1, v.Options.Preview)
		}
	}
}
