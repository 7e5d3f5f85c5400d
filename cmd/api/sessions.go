package main

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/creativeops/thumbselect/internal/database"
	"github.com/creativeops/thumbselect/internal/selector"
	"github.com/creativeops/thumbselect/internal/storage"
	"github.com/creativeops/thumbselect/pkg/models"
)

// Open a selection session for one video asset. Related videos sharing the
// asset's concept are resolved from the parent's current listing and frozen
// for the session's lifetime.
func (api *API) openSession(c *gin.Context) {
	var req struct {
		AssetID string `json:"asset_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	asset, err := api.store.GetAsset(c.Request.Context(), req.AssetID)
	if err != nil {
		if errors.Is(err, database.ErrAssetNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Asset not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !asset.IsVideo() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Asset is not a video"})
		return
	}

	siblings, err := api.store.GetAssetsByParent(c.Request.Context(), asset.ParentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	session := api.sessions.Open(c.Request.Context(), asset, siblings)
	c.JSON(http.StatusCreated, session.Snapshot())
}

func (api *API) getSession(c *gin.Context) {
	session, ok := api.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

func (api *API) seekSession(c *gin.Context) {
	session, ok := api.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	var req struct {
		Time float64 `json:"time"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := session.Seek(req.Time); err != nil {
		c.JSON(sessionStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

func (api *API) resetSession(c *gin.Context) {
	session, ok := api.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	if _, err := session.Reset(); err != nil {
		c.JSON(sessionStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

func (api *API) togglePlayback(c *gin.Context) {
	session, ok := api.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	if _, err := session.TogglePlayback(); err != nil {
		c.JSON(sessionStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

// Upload a custom thumbnail image, replacing the thumbnail of every related
// asset. The first failure aborts the rest of the batch; assets already
// updated keep their new thumbnail.
func (api *API) uploadSessionThumbnail(c *gin.Context) {
	session, ok := api.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image file provided"})
		return
	}

	mediaType := fileHeader.Header.Get("Content-Type")
	if mediaType == "" {
		mediaType = storage.ContentTypeForPath(fileHeader.Filename)
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read image"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read image"})
		return
	}

	res, err := session.UploadCustomImage(c.Request.Context(), data, mediaType)
	if err != nil {
		var berr *selector.BatchError
		if errors.As(err, &berr) {
			c.JSON(http.StatusBadGateway, gin.H{"error": berr.Error(), "result": res})
			return
		}
		c.JSON(sessionStatus(err), gin.H{"error": err.Error()})
		return
	}

	api.publishThumbnailEvent(c, session.Snapshot(), res, models.ThumbnailSourceCustom, nil)
	c.JSON(http.StatusOK, res)
}

// Persist the frame at the committed timestamp across all related assets.
// Partial success returns 200 with per-asset failures listed; only a batch
// with zero successes is an error.
func (api *API) saveSessionThumbnail(c *gin.Context) {
	session, ok := api.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	res, err := session.SaveExtractedThumbnail(c.Request.Context())
	if err != nil {
		var berr *selector.BatchError
		if errors.As(err, &berr) {
			c.JSON(http.StatusBadGateway, gin.H{"error": berr.Error(), "result": res})
			return
		}
		c.JSON(sessionStatus(err), gin.H{"error": err.Error()})
		return
	}

	api.publishThumbnailEvent(c, session.Snapshot(), res, models.ThumbnailSourceExtracted, session.SelectedTimestamp())
	c.JSON(http.StatusOK, res)
}

func (api *API) closeSession(c *gin.Context) {
	var req struct {
		Confirm bool `json:"confirm"`
	}
	// A body is optional; absence means confirm=false.
	_ = c.ShouldBindJSON(&req)

	if err := api.sessions.Close(c.Param("id"), req.Confirm); err != nil {
		c.JSON(sessionStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session closed"})
}

// publishThumbnailEvent invalidates the parent's cached listing and emits a
// thumbnail.updated event for the assets that were written. Failures are
// logged, not surfaced: the thumbnails are already persisted.
func (api *API) publishThumbnailEvent(c *gin.Context, snap selector.Snapshot, res *selector.BatchResult, source string, ts *float64) {
	if !res.CloseAndRefresh {
		return
	}

	api.invalidateAssets(c.Request.Context(), snap.ParentID)

	event := models.ThumbnailEvent{
		Event:      models.EventThumbnailUpdated,
		ParentID:   snap.ParentID,
		AssetIDs:   res.SucceededIDs,
		Source:     source,
		Timestamp:  ts,
		OccurredAt: time.Now().UTC(),
	}
	if err := api.events.PublishThumbnailUpdated(c.Request.Context(), event); err != nil {
		api.log.Errorf("failed to publish thumbnail event for parent %s: %v", snap.ParentID, err)
	}
	api.hooks.Notify(c.Request.Context(), event)
}

// sessionStatus maps selector errors onto HTTP status codes.
func sessionStatus(err error) int {
	switch {
	case errors.Is(err, selector.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, selector.ErrOperationInFlight),
		errors.Is(err, selector.ErrConfirmationRequired),
		errors.Is(err, selector.ErrSessionClosed):
		return http.StatusConflict
	case errors.Is(err, selector.ErrNoSelection),
		errors.Is(err, selector.ErrInvalidInput),
		errors.Is(err, selector.ErrMetadataNotLoaded),
		errors.Is(err, selector.ErrPlayback):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
