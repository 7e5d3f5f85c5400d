package selector

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/creativeops/thumbselect/internal/logging"
	"github.com/creativeops/thumbselect/internal/metrics"
	"github.com/creativeops/thumbselect/internal/tracing"
	"github.com/creativeops/thumbselect/pkg/models"
)

// State identifies where a session is in its lifecycle.
type State string

// Session states
const (
	StateInitializing State = "initializing"
	StateReady        State = "ready"
	StatePlaying      State = "playing"
	StateUploading    State = "uploading"
	StateSaving       State = "saving"
	StateClosed       State = "closed"
)

// FrameExtractor loads video metadata and renders still frames.
type FrameExtractor interface {
	ProbeDuration(ctx context.Context, source string) (float64, error)
	CaptureFrame(ctx context.Context, source string, timeSeconds float64) ([]byte, error)
}

// BlobStore stores binary content. Upload must not silently overwrite;
// callers supply a collision-resistant object name. Delete is best-effort
// from the session's point of view.
type BlobStore interface {
	Upload(ctx context.Context, objectName string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
}

// AssetWriter persists thumbnail results. Updates must be atomic per asset.
type AssetWriter interface {
	UpdateAssetThumbnail(ctx context.Context, assetID string, thumbnailURL string, timestamp *float64) error
}

// Deps are the collaborators a session needs.
type Deps struct {
	Frames  FrameExtractor
	Blobs   BlobStore
	Records AssetWriter
	Log     *logging.Logger
}

// Options tune session behavior.
type Options struct {
	// ProbeTimeout bounds metadata loading and frame rendering for any
	// single asset. Zero means the default of 15 seconds.
	ProbeTimeout time.Duration
}

const defaultProbeTimeout = 15 * time.Second

// Session manages thumbnail selection for one target video asset and
// propagates the chosen still to every video sharing its concept. The set
// of related assets is frozen when the session opens.
type Session struct {
	ID string

	deps         Deps
	probeTimeout time.Duration
	now          func() time.Time

	mu          sync.Mutex
	state       State
	asset       *models.VideoAsset
	related     []*models.VideoAsset
	concept     string
	duration    float64
	metadataErr error

	currentTime float64
	selected    *float64
	playing     bool
	playAnchor  time.Time
	playBase    float64
	lastActive  time.Time

	committed        bool
	customUploadDone bool
}

// Open creates a session for target, resolving related assets from siblings.
// Metadata loading failure is non-fatal: the session opens with an unknown
// duration and seeking/saving disabled until the asset is abandoned.
func Open(ctx context.Context, target *models.VideoAsset, siblings []*models.VideoAsset, deps Deps, opts Options) *Session {
	if deps.Log == nil {
		deps.Log = logging.Nop()
	}
	timeout := opts.ProbeTimeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}

	related := models.RelatedVideos(siblings, target.Name)
	found := false
	for _, a := range related {
		if a.ID == target.ID {
			found = true
			break
		}
	}
	if !found && target.IsVideo() {
		related = append([]*models.VideoAsset{target}, related...)
	}

	s := &Session{
		ID:           uuid.New().String(),
		deps:         deps,
		probeTimeout: timeout,
		now:          time.Now,
		state:        StateInitializing,
		asset:        target,
		related:      related,
		concept:      models.ConceptKey(target.Name),
	}
	s.lastActive = s.now()

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	duration, err := deps.Frames.ProbeDuration(probeCtx, target.SourceURL)
	if err != nil {
		s.metadataErr = err
		deps.Log.Warnf("session %s: metadata load failed for %s: %v", s.ID, target.Name, err)
	} else {
		s.duration = duration
		if target.ThumbnailTimestamp != nil {
			if ts := *target.ThumbnailTimestamp; ts >= 0 && ts <= duration {
				sel := ts
				s.currentTime = ts
				s.selected = &sel
				s.committed = true
			}
		}
	}

	s.state = StateReady
	metrics.SessionsOpenedTotal.Inc()
	return s
}

// Seek clamps time to [0, duration], pauses playback, and commits the
// clamped value as the selected timestamp. Purely in-memory; nothing is
// persisted until SaveExtractedThumbnail.
func (s *Session) Seek(timeSeconds float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.acceptingLocked(); err != nil {
		return 0, err
	}
	s.touchLocked()
	if s.duration <= 0 {
		return 0, ErrMetadataNotLoaded
	}

	s.pausePlaybackLocked()

	if timeSeconds < 0 {
		timeSeconds = 0
	}
	if timeSeconds > s.duration {
		timeSeconds = s.duration
	}

	s.currentTime = timeSeconds
	sel := timeSeconds
	s.selected = &sel
	s.committed = true

	metrics.SeeksTotal.Inc()
	return timeSeconds, nil
}

// Reset seeks back to the start of the video.
func (s *Session) Reset() (float64, error) {
	return s.Seek(0)
}

// TogglePlayback starts or pauses playback. CurrentTime advances off the
// wall clock while playing and pauses automatically at the end.
func (s *Session) TogglePlayback() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.acceptingLocked(); err != nil {
		return false, err
	}
	s.touchLocked()
	if s.duration <= 0 {
		return false, fmt.Errorf("%w: duration unknown", ErrPlayback)
	}

	if s.playing {
		s.pausePlaybackLocked()
		return false, nil
	}

	if s.currentTime >= s.duration {
		s.currentTime = 0
	}
	s.playing = true
	s.playAnchor = s.now()
	s.playBase = s.currentTime
	s.state = StatePlaying
	return true, nil
}

// CurrentTime returns the playhead position, advancing it first if playing.
func (s *Session) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncPlaybackLocked()
	return s.currentTime
}

// SelectedTimestamp returns the committed timestamp, or nil.
func (s *Session) SelectedTimestamp() *float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return nil
	}
	sel := *s.selected
	return &sel
}

// Duration returns the target video duration; 0 means unknown.
func (s *Session) Duration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncPlaybackLocked()
	return s.state
}

// MetadataErr returns the metadata load failure, if any.
func (s *Session) MetadataErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metadataErr
}

// UploadCustomImage replaces the thumbnail of every related asset with a
// manually supplied image. Assets are processed in sequence; the first
// failure aborts the remainder, and already-updated assets keep their new
// thumbnail. The persisted timestamp is cleared to mark a manual upload.
func (s *Session) UploadCustomImage(ctx context.Context, data []byte, mediaType string) (*BatchResult, error) {
	if len(data) == 0 || !strings.HasPrefix(mediaType, "image/") {
		return nil, ErrInvalidInput
	}

	if err := s.begin(StateUploading); err != nil {
		return nil, err
	}
	defer s.finish()

	span, ctx := tracing.StartSpan(ctx, "session.upload_custom_image")
	defer span.Finish()
	tracing.SetTag(span, "concept", s.concept)
	tracing.SetTag(span, "assets", len(s.related))

	res := &BatchResult{}
	abort := func(asset *models.VideoAsset, stage string, err error) (*BatchResult, error) {
		aerr := &AssetError{AssetID: asset.ID, Name: asset.Name, Stage: stage, Err: err}
		res.Failed = append(res.Failed, aerr)
		metrics.AssetPipelineFailures.WithLabelValues(stage).Inc()

		outcome := metrics.OutcomeFailed
		if len(res.Succeeded) > 0 {
			outcome = metrics.OutcomePartial
		}
		metrics.SaveBatchesTotal.WithLabelValues(models.ThumbnailSourceCustom, outcome).Inc()

		berr := &BatchError{Succeeded: res.Succeeded, Failed: res.Failed}
		tracing.SetError(span, berr)
		s.deps.Log.Errorf("session %s: custom upload aborted at %s: %v", s.ID, asset.Name, err)
		return res, berr
	}

	for _, asset := range s.related {
		s.deleteOldThumbnail(ctx, asset)

		url, err := s.deps.Blobs.Upload(ctx, s.blobPath(asset, mediaType), data, mediaType)
		if err != nil {
			return abort(asset, StageUpload, err)
		}
		metrics.ThumbnailUploadSizeBytes.Observe(float64(len(data)))

		busted := s.cacheBust(url)
		if err := s.deps.Records.UpdateAssetThumbnail(ctx, asset.ID, busted, nil); err != nil {
			return abort(asset, StagePersist, err)
		}

		asset.ThumbnailURL = busted
		asset.ThumbnailTimestamp = nil
		res.Succeeded = append(res.Succeeded, asset.Name)
		res.SucceededIDs = append(res.SucceededIDs, asset.ID)
	}

	s.mu.Lock()
	s.customUploadDone = true
	s.mu.Unlock()

	res.CloseAndRefresh = true
	metrics.SaveBatchesTotal.WithLabelValues(models.ThumbnailSourceCustom, metrics.OutcomeSuccess).Inc()
	return res, nil
}

// SaveExtractedThumbnail renders the frame at the committed timestamp for
// every related asset and persists the result. The same timestamp is applied
// everywhere, clamped only to each asset's own duration. One asset's failure
// does not stop the others; the result carries per-asset attribution. With
// zero successes the session stays open so the user can retry.
func (s *Session) SaveExtractedThumbnail(ctx context.Context) (*BatchResult, error) {
	s.mu.Lock()
	if err := s.acceptingLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.touchLocked()
	if s.selected == nil {
		s.mu.Unlock()
		return nil, ErrNoSelection
	}
	selected := *s.selected
	s.pausePlaybackLocked()
	s.state = StateSaving
	s.mu.Unlock()
	defer s.finish()

	span, ctx := tracing.StartSpan(ctx, "session.save_extracted_thumbnail")
	defer span.Finish()
	tracing.SetTag(span, "concept", s.concept)
	tracing.SetTag(span, "assets", len(s.related))
	tracing.SetTag(span, "timestamp", selected)

	res := &BatchResult{}
	for _, asset := range s.related {
		if aerr := s.saveOne(ctx, asset, selected); aerr != nil {
			s.deps.Log.Warnf("session %s: pipeline failed for %s at %s: %v", s.ID, asset.Name, aerr.Stage, aerr.Err)
			metrics.AssetPipelineFailures.WithLabelValues(aerr.Stage).Inc()
			res.Failed = append(res.Failed, aerr)
			continue
		}
		res.Succeeded = append(res.Succeeded, asset.Name)
		res.SucceededIDs = append(res.SucceededIDs, asset.ID)
	}

	res.CloseAndRefresh = len(res.Succeeded) > 0

	outcome := metrics.OutcomeSuccess
	switch {
	case len(res.Succeeded) == 0 && len(res.Failed) > 0:
		outcome = metrics.OutcomeFailed
	case len(res.Failed) > 0:
		outcome = metrics.OutcomePartial
	}
	metrics.SaveBatchesTotal.WithLabelValues(models.ThumbnailSourceExtracted, outcome).Inc()

	if len(res.Succeeded) == 0 && len(res.Failed) > 0 {
		berr := &BatchError{Failed: res.Failed}
		tracing.SetError(span, berr)
		return res, berr
	}
	return res, nil
}

// saveOne runs the full pipeline for a single asset: probe, clamp, capture,
// delete old blob, upload, persist. Probing and rendering share one bounded
// context so a stalled source cannot hang the batch.
func (s *Session) saveOne(ctx context.Context, asset *models.VideoAsset, selected float64) *AssetError {
	assetCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	captureStart := s.now()

	duration, err := s.deps.Frames.ProbeDuration(assetCtx, asset.SourceURL)
	if err != nil {
		return &AssetError{AssetID: asset.ID, Name: asset.Name, Stage: StageProbe, Err: err}
	}

	ts := selected
	if duration > 0 && ts > duration {
		ts = duration
	}

	img, err := s.deps.Frames.CaptureFrame(assetCtx, asset.SourceURL, ts)
	if err != nil {
		return &AssetError{AssetID: asset.ID, Name: asset.Name, Stage: StageCapture, Err: err}
	}
	metrics.FrameCaptureDuration.Observe(s.now().Sub(captureStart).Seconds())

	s.deleteOldThumbnail(ctx, asset)

	url, err := s.deps.Blobs.Upload(ctx, s.blobPath(asset, "image/jpeg"), img, "image/jpeg")
	if err != nil {
		return &AssetError{AssetID: asset.ID, Name: asset.Name, Stage: StageUpload, Err: err}
	}
	metrics.ThumbnailUploadSizeBytes.Observe(float64(len(img)))

	busted := s.cacheBust(url)
	stamp := ts
	if err := s.deps.Records.UpdateAssetThumbnail(ctx, asset.ID, busted, &stamp); err != nil {
		return &AssetError{AssetID: asset.ID, Name: asset.Name, Stage: StagePersist, Err: err}
	}

	asset.ThumbnailURL = busted
	asset.ThumbnailTimestamp = &stamp
	return nil
}

// RequestClose closes the session. A session without a committed selection
// or completed custom upload cannot be discarded silently: confirm must be
// true, because an asset without a thumbnail is unusable downstream.
// In-flight upload/save work finishes and its persisted effects stand.
func (s *Session) RequestClose(confirm bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return nil
	}
	if !s.committed && !s.customUploadDone && !confirm {
		return ErrConfirmationRequired
	}

	s.pausePlaybackLocked()
	committed := s.committed || s.customUploadDone
	s.state = StateClosed
	metrics.SessionsClosedTotal.WithLabelValues(strconv.FormatBool(committed)).Inc()
	return nil
}

// Snapshot is a read-only view of session state for the API layer.
type Snapshot struct {
	ID                    string   `json:"id"`
	State                 State    `json:"state"`
	AssetID               string   `json:"asset_id"`
	AssetName             string   `json:"asset_name"`
	ParentID              string   `json:"parent_id"`
	Concept               string   `json:"concept"`
	Duration              float64  `json:"duration"`
	CurrentTime           float64  `json:"current_time"`
	SelectedTimestamp     *float64 `json:"selected_timestamp,omitempty"`
	Playing               bool     `json:"playing"`
	HasCommittedSelection bool     `json:"has_committed_selection"`
	CustomUploadCompleted bool     `json:"custom_upload_completed"`
	MetadataError         string   `json:"metadata_error,omitempty"`
	RelatedAssets         []string `json:"related_assets"`
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncPlaybackLocked()

	snap := Snapshot{
		ID:                    s.ID,
		State:                 s.state,
		AssetID:               s.asset.ID,
		AssetName:             s.asset.Name,
		ParentID:              s.asset.ParentID,
		Concept:               s.concept,
		Duration:              s.duration,
		CurrentTime:           s.currentTime,
		Playing:               s.playing,
		HasCommittedSelection: s.committed,
		CustomUploadCompleted: s.customUploadDone,
	}
	if s.selected != nil {
		sel := *s.selected
		snap.SelectedTimestamp = &sel
	}
	if s.metadataErr != nil {
		snap.MetadataError = s.metadataErr.Error()
	}
	for _, a := range s.related {
		snap.RelatedAssets = append(snap.RelatedAssets, a.Name)
	}
	return snap
}

// acceptingLocked rejects operations while closed or while an exclusive
// operation is in flight.
func (s *Session) acceptingLocked() error {
	switch s.state {
	case StateClosed:
		return ErrSessionClosed
	case StateUploading, StateSaving:
		return ErrOperationInFlight
	}
	return nil
}

// begin transitions into an exclusive operation state.
func (s *Session) begin(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.acceptingLocked(); err != nil {
		return err
	}
	s.touchLocked()
	s.pausePlaybackLocked()
	s.state = next
	return nil
}

// finish leaves an exclusive operation state. A session closed mid-flight
// stays closed.
func (s *Session) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateUploading || s.state == StateSaving {
		s.state = StateReady
	}
}

func (s *Session) syncPlaybackLocked() {
	if !s.playing {
		return
	}
	t := s.playBase + s.now().Sub(s.playAnchor).Seconds()
	if t >= s.duration {
		t = s.duration
		s.playing = false
		if s.state == StatePlaying {
			s.state = StateReady
		}
	}
	s.currentTime = t
}

// LastActive returns when the session last received a user operation.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) touchLocked() {
	s.lastActive = s.now()
}

func (s *Session) pausePlaybackLocked() {
	s.syncPlaybackLocked()
	s.playing = false
	if s.state == StatePlaying {
		s.state = StateReady
	}
}

func (s *Session) deleteOldThumbnail(ctx context.Context, asset *models.VideoAsset) {
	if asset.ThumbnailURL == "" {
		return
	}
	if err := s.deps.Blobs.Delete(ctx, asset.ThumbnailURL); err != nil {
		s.deps.Log.Warnf("session %s: failed to delete old thumbnail for %s: %v", s.ID, asset.Name, err)
	}
}

// blobPath builds a collision-resistant object name scoped to the asset's
// parent entity.
func (s *Session) blobPath(asset *models.VideoAsset, mediaType string) string {
	return fmt.Sprintf("%s/thumbnails/%s_%s.%s", asset.ParentID, uuid.New().String(), asset.Name, extForMediaType(mediaType))
}

// cacheBust appends a query token so stale CDN/browser caches are bypassed
// after a thumbnail is replaced.
func (s *Session) cacheBust(url string) string {
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%sv=%d", url, sep, s.now().UnixNano())
}

func extForMediaType(mediaType string) string {
	switch mediaType {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	default:
		if i := strings.IndexByte(mediaType, '/'); i >= 0 && i+1 < len(mediaType) {
			return mediaType[i+1:]
		}
		return "img"
	}
}
