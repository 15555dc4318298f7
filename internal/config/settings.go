package config

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/ssd-technologies/medialink/internal/storage"
)

// Settings are the runtime-mutable defaults admins adjust through bot
// commands. They persist in the database config table as JSON values so
// a restart keeps them.
type Settings struct {
	Description       string
	PreviewLength     int
	CollageFrames     int
	CollageQuality    int
	WatermarkText     string
	WatermarkPosition string
	WatermarkOpacity  float64
	ContentProtection bool
}

func defaultSettings() Settings {
	return Settings{
		Description:       defaultDescription,
		PreviewLength:     3,
		CollageFrames:     4,
		CollageQuality:    85,
		WatermarkText:     "",
		WatermarkPosition: "bottom-right",
		WatermarkOpacity:  0.5,
		ContentProtection: true,
	}
}

// SettingsStore overlays persisted values on the defaults and writes
// changes through to the database.
type SettingsStore struct {
	db *storage.DB

	mu      sync.RWMutex
	current Settings
}

// LoadSettings reads persisted overrides from db. Unknown keys and
// malformed values are logged and skipped so a bad row never blocks
// startup.
func LoadSettings(db *storage.DB) (*SettingsStore, error) {
	s := &SettingsStore{db: db, current: defaultSettings()}

	rows, err := db.AllConfig()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	for key, value := range rows {
		if err := s.apply(key, value); err != nil {
			log.Printf("[config] skipping persisted %s: %v", key, err)
		}
	}
	return s, nil
}

// Get returns a snapshot of the current settings.
func (s *SettingsStore) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *SettingsStore) SetPreviewLength(n int) error {
	if n < 1 || n > 10 {
		return fmt.Errorf("preview length %d outside 1..10", n)
	}
	return s.put("preview_length", n, func(c *Settings) { c.PreviewLength = n })
}

func (s *SettingsStore) SetCollageFrames(n int) error {
	switch n {
	case 4, 6, 9, 12:
	default:
		return fmt.Errorf("collage frames %d not one of 4, 6, 9, 12", n)
	}
	return s.put("collage_frames", n, func(c *Settings) { c.CollageFrames = n })
}

func (s *SettingsStore) SetCollageQuality(n int) error {
	if n < 1 || n > 100 {
		return fmt.Errorf("collage quality %d outside 1..100", n)
	}
	return s.put("collage_quality", n, func(c *Settings) { c.CollageQuality = n })
}

func (s *SettingsStore) SetDescription(text string) error {
	if text == "" {
		return fmt.Errorf("description must not be empty")
	}
	return s.put("bot_description", text, func(c *Settings) { c.Description = text })
}

func (s *SettingsStore) SetWatermarkText(text string) error {
	return s.put("watermark_text", text, func(c *Settings) { c.WatermarkText = text })
}

func (s *SettingsStore) SetWatermarkPosition(pos string) error {
	return s.put("watermark_position", pos, func(c *Settings) { c.WatermarkPosition = pos })
}

func (s *SettingsStore) SetWatermarkOpacity(o float64) error {
	if o < 0 || o > 1 {
		return fmt.Errorf("watermark opacity %v outside [0, 1]", o)
	}
	return s.put("watermark_opacity", o, func(c *Settings) { c.WatermarkOpacity = o })
}

func (s *SettingsStore) SetContentProtection(on bool) error {
	return s.put("content_protection", on, func(c *Settings) { c.ContentProtection = on })
}

// put persists the JSON-encoded value, then applies the in-memory
// update. A write failure leaves the snapshot unchanged.
func (s *SettingsStore) put(key string, value any, update func(*Settings)) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.db.SetConfig(key, string(raw)); err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}
	s.mu.Lock()
	update(&s.current)
	s.mu.Unlock()
	return nil
}

// apply decodes one persisted row into the snapshot. Called at load
// time only, before the store is shared.
func (s *SettingsStore) apply(key, value string) error {
	switch key {
	case "bot_description":
		return decodeInto(value, &s.current.Description)
	case "preview_length":
		return decodeInto(value, &s.current.PreviewLength)
	case "collage_frames":
		return decodeInto(value, &s.current.CollageFrames)
	case "collage_quality":
		return decodeInto(value, &s.current.CollageQuality)
	case "watermark_text":
		return decodeInto(value, &s.current.WatermarkText)
	case "watermark_position":
		return decodeInto(value, &s.current.WatermarkPosition)
	case "watermark_opacity":
		return decodeInto(value, &s.current.WatermarkOpacity)
	case "content_protection":
		return decodeInto(value, &s.current.ContentProtection)
	default:
		return fmt.Errorf("unknown key")
	}
}

func decodeInto[T any](raw string, dest *T) error {
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return err
	}
	*dest = v
	return nil
}
