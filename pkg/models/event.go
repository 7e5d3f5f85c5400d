package models

import "time"

// ThumbnailEvent is published after a batch of thumbnail writes so that
// downstream tooling can refresh its view of the parent entity.
type ThumbnailEvent struct {
	Event      string    `json:"event"`
	ParentID   string    `json:"parent_id"`
	AssetIDs   []string  `json:"asset_ids"`
	Source     string    `json:"source"`
	Timestamp  *float64  `json:"timestamp,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Event name constants
const (
	EventThumbnailUpdated = "thumbnail.updated"
)

// ThumbnailSource constants
const (
	ThumbnailSourceExtracted = "extracted"
	ThumbnailSourceCustom    = "custom"
)
