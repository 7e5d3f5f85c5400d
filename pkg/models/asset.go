package models

import "time"

// VideoAsset represents a creative asset belonging to a parent entity
// (campaign or ad set). Names encode a logical concept plus optional
// version and aspect-ratio suffixes, e.g. "Product_v1_9x16".
type VideoAsset struct {
	ID                 string    `json:"id" db:"id"`
	ParentID           string    `json:"parent_id" db:"parent_id"`
	Name               string    `json:"name" db:"name"`
	MediaType          string    `json:"media_type" db:"media_type"`
	SourceURL          string    `json:"source_url" db:"source_url"`
	ThumbnailURL       string    `json:"thumbnail_url" db:"thumbnail_url"`
	ThumbnailTimestamp *float64  `json:"thumbnail_timestamp,omitempty" db:"thumbnail_timestamp"`
	Duration           float64   `json:"duration" db:"duration"`
	Size               int64     `json:"size" db:"size"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// MediaType constants
const (
	MediaTypeVideo = "video"
	MediaTypeImage = "image"
)

// IsVideo reports whether the asset is playable video.
func (a *VideoAsset) IsVideo() bool {
	return a.MediaType == MediaTypeVideo
}

// HasThumbnail reports whether a thumbnail has ever been stored for the asset.
// A nil ThumbnailTimestamp alongside a non-empty URL means the thumbnail was
// uploaded manually rather than extracted from a frame.
func (a *VideoAsset) HasThumbnail() bool {
	return a.ThumbnailURL != ""
}
