package selector

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors surfaced by Session operations.
var (
	// ErrNoSelection is returned by SaveExtractedThumbnail when no
	// timestamp has been committed.
	ErrNoSelection = errors.New("no timestamp selected")

	// ErrInvalidInput is returned when a custom upload payload is not an image.
	ErrInvalidInput = errors.New("payload is not an image")

	// ErrMetadataNotLoaded gates seeking while the video duration is unknown.
	ErrMetadataNotLoaded = errors.New("video metadata not loaded")

	// ErrOperationInFlight rejects re-entrant upload/save calls.
	ErrOperationInFlight = errors.New("an upload or save is already in progress")

	// ErrConfirmationRequired is returned by RequestClose when the session
	// would be discarded without any thumbnail selected.
	ErrConfirmationRequired = errors.New("closing without a thumbnail requires confirmation")

	// ErrSessionClosed rejects operations on a closed session.
	ErrSessionClosed = errors.New("session is closed")

	// ErrSessionNotFound is returned by the manager for unknown session ids.
	ErrSessionNotFound = errors.New("session not found")

	// ErrPlayback is returned when playback cannot start.
	ErrPlayback = errors.New("playback unavailable")
)

// Pipeline stage names used in per-asset error attribution.
const (
	StageProbe   = "probe"
	StageCapture = "capture"
	StageUpload  = "upload"
	StagePersist = "persist"
)

// AssetError attributes a pipeline failure to one specific asset.
type AssetError struct {
	AssetID string `json:"asset_id"`
	Name    string `json:"name"`
	Stage   string `json:"stage"`
	Err     error  `json:"-"`
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Name, e.Stage, e.Err)
}

func (e *AssetError) Unwrap() error {
	return e.Err
}

// Message returns the underlying error text for serialization.
func (e *AssetError) Message() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// BatchResult reports the outcome of a multi-asset thumbnail operation.
// Partial success is valid: assets in Succeeded keep their new thumbnail
// even when others failed.
type BatchResult struct {
	Succeeded       []string      `json:"succeeded"`
	SucceededIDs    []string      `json:"-"`
	Failed          []*AssetError `json:"failed"`
	CloseAndRefresh bool          `json:"close_and_refresh"`
}

// BatchError aggregates per-asset failures when a batch aborted or when no
// asset succeeded.
type BatchError struct {
	Succeeded []string
	Failed    []*AssetError
}

func (e *BatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d succeeded, %d failed", len(e.Succeeded), len(e.Failed))
	for _, f := range e.Failed {
		fmt.Fprintf(&b, "; %s", f.Error())
	}
	return b.String()
}
