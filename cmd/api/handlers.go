package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/creativeops/thumbselect/internal/database"
	"github.com/creativeops/thumbselect/internal/logging"
	"github.com/creativeops/thumbselect/internal/selector"
	"github.com/creativeops/thumbselect/internal/storage"
	"github.com/creativeops/thumbselect/internal/upload"
	"github.com/creativeops/thumbselect/pkg/models"
)

// AssetStore is the subset of the repository the API needs.
type AssetStore interface {
	CreateAsset(ctx context.Context, asset *models.VideoAsset) error
	GetAsset(ctx context.Context, id string) (*models.VideoAsset, error)
	GetAssetsByParent(ctx context.Context, parentID string) ([]*models.VideoAsset, error)
	DeleteAsset(ctx context.Context, id string) error
	Health(ctx context.Context) error
}

// BlobStore uploads and deletes stored objects.
type BlobStore interface {
	UploadFile(ctx context.Context, objectName, filePath string) (string, error)
	Delete(ctx context.Context, url string) error
}

// AssetCache caches asset listings per parent entity.
type AssetCache interface {
	GetAssets(ctx context.Context, parentID string) ([]*models.VideoAsset, error)
	SetAssets(ctx context.Context, parentID string, assets []*models.VideoAsset, ttl time.Duration) error
	InvalidateAssets(ctx context.Context, parentID string) error
}

// EventPublisher notifies downstream consumers about thumbnail changes.
type EventPublisher interface {
	PublishThumbnailUpdated(ctx context.Context, event models.ThumbnailEvent) error
}

// WebhookNotifier fans thumbnail events out to configured HTTP receivers.
type WebhookNotifier interface {
	Notify(ctx context.Context, event models.ThumbnailEvent)
}

type API struct {
	store    AssetStore
	blobs    BlobStore
	cache    AssetCache
	events   EventPublisher
	hooks    WebhookNotifier
	frames   selector.FrameExtractor
	sessions *selector.Manager
	uploads  *upload.Service
	log      *logging.Logger
	tempDir  string
	assetTTL time.Duration
}

func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := api.store.Health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

// List assets for a parent entity, cache-first. Concept grouping is
// recomputed from the fresh listing on every request.
func (api *API) listAssets(c *gin.Context) {
	parentID := c.Query("parent_id")
	if parentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "parent_id is required"})
		return
	}

	ctx := c.Request.Context()

	assets, err := api.cache.GetAssets(ctx, parentID)
	if err != nil {
		api.log.Warnf("cache lookup failed for parent %s: %v", parentID, err)
	}
	if assets == nil {
		assets, err = api.store.GetAssetsByParent(ctx, parentID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if err := api.cache.SetAssets(ctx, parentID, assets, api.assetTTL); err != nil {
			api.log.Warnf("cache store failed for parent %s: %v", parentID, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"parent_id": parentID,
		"assets":    assets,
		"concepts":  models.GroupByConcept(assets),
	})
}

// Upload a video asset: probe metadata, store the source, persist the record.
func (api *API) uploadAsset(c *gin.Context) {
	file, err := c.FormFile("video")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No video file provided"})
		return
	}

	parentID := c.PostForm("parent_id")
	if parentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "parent_id is required"})
		return
	}

	name := c.PostForm("name")
	if name == "" {
		name = strings.TrimSuffix(file.Filename, filepath.Ext(file.Filename))
	}

	if !strings.HasPrefix(storage.ContentTypeForPath(file.Filename), "video/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is not a video"})
		return
	}

	tempPath := filepath.Join(api.tempDir, uuid.New().String())
	if err := c.SaveUploadedFile(file, tempPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save file"})
		return
	}
	defer os.Remove(tempPath)

	duration, err := api.frames.ProbeDuration(c.Request.Context(), tempPath)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Failed to read video metadata: %v", err)})
		return
	}

	objectName := fmt.Sprintf("%s/sources/%s_%s", parentID, uuid.New().String(), file.Filename)
	sourceURL, err := api.blobs.UploadFile(c.Request.Context(), objectName, tempPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to upload: %v", err)})
		return
	}

	asset := &models.VideoAsset{
		ID:        uuid.New().String(),
		ParentID:  parentID,
		Name:      name,
		MediaType: models.MediaTypeVideo,
		SourceURL: sourceURL,
		Duration:  duration,
		Size:      file.Size,
	}

	if err := api.store.CreateAsset(c.Request.Context(), asset); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to create asset: %v", err)})
		return
	}

	api.invalidateAssets(c.Request.Context(), parentID)
	c.JSON(http.StatusCreated, asset)
}

func (api *API) getAsset(c *gin.Context) {
	asset, err := api.store.GetAsset(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, database.ErrAssetNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Asset not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, asset)
}

// Delete an asset along with its stored source and thumbnail. Blob cleanup
// is best-effort; the record deletion is what matters.
func (api *API) deleteAsset(c *gin.Context) {
	assetID := c.Param("id")

	asset, err := api.store.GetAsset(c.Request.Context(), assetID)
	if err != nil {
		if errors.Is(err, database.ErrAssetNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Asset not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	for _, url := range []string{asset.SourceURL, asset.ThumbnailURL} {
		if url == "" {
			continue
		}
		if err := api.blobs.Delete(c.Request.Context(), url); err != nil {
			api.log.Warnf("failed to delete blob %s for asset %s: %v", url, assetID, err)
		}
	}

	if err := api.store.DeleteAsset(c.Request.Context(), assetID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to delete asset: %v", err)})
		return
	}

	api.invalidateAssets(c.Request.Context(), asset.ParentID)
	c.JSON(http.StatusOK, gin.H{"message": "Asset deleted successfully", "asset_id": assetID})
}

func (api *API) invalidateAssets(ctx context.Context, parentID string) {
	if err := api.cache.InvalidateAssets(ctx, parentID); err != nil {
		api.log.Warnf("cache invalidation failed for parent %s: %v", parentID, err)
	}
}
