package storage

// MediaKind distinguishes the two media types the bot serves.
type MediaKind string

const (
	KindVideo MediaKind = "video"
	KindPhoto MediaKind = "photo"
)

// MediaRecord is one published deep-link entry. Rows are immutable after
// insert; deletion is an explicit admin action.
type MediaRecord struct {
	Token          string    `json:"token"`
	FileID         string    `json:"file_id"`
	Kind           MediaKind `json:"kind"`
	ProtectContent bool      `json:"protect_content"`
	CreatedAt      int64     `json:"created_at"`
}
