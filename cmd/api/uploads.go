package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/creativeops/thumbselect/internal/storage"
	"github.com/creativeops/thumbselect/internal/upload"
	"github.com/creativeops/thumbselect/pkg/models"
)

// Start a chunked upload for a large video source. The response carries the
// negotiated part size and count; parts go to the parts endpoint.
func (api *API) initUpload(c *gin.Context) {
	var req struct {
		Filename  string `json:"filename" binding:"required"`
		ParentID  string `json:"parent_id" binding:"required"`
		Name      string `json:"name"`
		TotalSize int64  `json:"total_size" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !strings.HasPrefix(storage.ContentTypeForPath(req.Filename), "video/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is not a video"})
		return
	}

	u, err := api.uploads.Init(req.Filename, req.ParentID, req.Name, req.TotalSize)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, u)
}

func (api *API) putUploadPart(c *gin.Context) {
	partNumber, err := strconv.Atoi(c.Param("part"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid part number"})
		return
	}

	data, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read part body"})
		return
	}

	etag, err := api.uploads.PutPart(c.Param("id"), partNumber, data)
	if err != nil {
		c.JSON(uploadStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"part": partNumber, "etag": etag})
}

// Assemble the parts and ingest the result as a video asset, the same way a
// direct upload would.
func (api *API) completeUpload(c *gin.Context) {
	uploadID := c.Param("id")

	u, err := api.uploads.Get(uploadID)
	if err != nil {
		c.JSON(uploadStatus(err), gin.H{"error": err.Error()})
		return
	}

	localPath, size, err := api.uploads.Complete(uploadID)
	if err != nil {
		c.JSON(uploadStatus(err), gin.H{"error": err.Error()})
		return
	}
	defer api.uploads.Remove(uploadID)

	duration, err := api.frames.ProbeDuration(c.Request.Context(), localPath)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Failed to read video metadata: %v", err)})
		return
	}

	objectName := fmt.Sprintf("%s/sources/%s_%s", u.ParentID, uuid.New().String(), u.Filename)
	sourceURL, err := api.blobs.UploadFile(c.Request.Context(), objectName, localPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to upload: %v", err)})
		return
	}

	name := u.Name
	if name == "" {
		name = u.Filename
	}

	asset := &models.VideoAsset{
		ID:        uuid.New().String(),
		ParentID:  u.ParentID,
		Name:      name,
		MediaType: models.MediaTypeVideo,
		SourceURL: sourceURL,
		Duration:  duration,
		Size:      size,
	}

	if err := api.store.CreateAsset(c.Request.Context(), asset); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to create asset: %v", err)})
		return
	}

	api.invalidateAssets(c.Request.Context(), u.ParentID)
	c.JSON(http.StatusCreated, asset)
}

func (api *API) abortUpload(c *gin.Context) {
	if err := api.uploads.Abort(c.Param("id")); err != nil {
		c.JSON(uploadStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Upload aborted"})
}

func uploadStatus(err error) int {
	switch {
	case errors.Is(err, upload.ErrUploadNotFound):
		return http.StatusNotFound
	case errors.Is(err, upload.ErrUploadNotActive):
		return http.StatusConflict
	case errors.Is(err, upload.ErrPartOutOfRange),
		errors.Is(err, upload.ErrPartTooLarge),
		errors.Is(err, upload.ErrUploadIncomplete):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
