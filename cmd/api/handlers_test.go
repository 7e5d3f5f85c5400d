package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creativeops/thumbselect/internal/database"
	"github.com/creativeops/thumbselect/internal/logging"
	"github.com/creativeops/thumbselect/internal/selector"
	"github.com/creativeops/thumbselect/internal/upload"
	"github.com/creativeops/thumbselect/pkg/models"
)

type fakeStore struct {
	mu        sync.Mutex
	assets    map[string]*models.VideoAsset
	healthErr error
	getCalls  int
}

func newFakeStore(assets ...*models.VideoAsset) *fakeStore {
	s := &fakeStore{assets: make(map[string]*models.VideoAsset)}
	for _, a := range assets {
		s.assets[a.ID] = a
	}
	return s
}

func (s *fakeStore) CreateAsset(ctx context.Context, asset *models.VideoAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	asset.CreatedAt = time.Now()
	asset.UpdatedAt = asset.CreatedAt
	s.assets[asset.ID] = asset
	return nil
}

func (s *fakeStore) GetAsset(ctx context.Context, id string) (*models.VideoAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[id]
	if !ok {
		return nil, database.ErrAssetNotFound
	}
	return a, nil
}

func (s *fakeStore) GetAssetsByParent(ctx context.Context, parentID string) ([]*models.VideoAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	var out []*models.VideoAsset
	for _, a := range s.assets {
		if a.ParentID == parentID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *fakeStore) DeleteAsset(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assets[id]; !ok {
		return database.ErrAssetNotFound
	}
	delete(s.assets, id)
	return nil
}

func (s *fakeStore) UpdateAssetThumbnail(ctx context.Context, assetID string, url string, ts *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[assetID]
	if !ok {
		return database.ErrAssetNotFound
	}
	a.ThumbnailURL = url
	a.ThumbnailTimestamp = ts
	return nil
}

func (s *fakeStore) Health(ctx context.Context) error { return s.healthErr }

type fakeBlobStore struct {
	mu        sync.Mutex
	uploads   []string
	deletes   []string
	uploadErr error
}

func (b *fakeBlobStore) Upload(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	return b.record(objectName)
}

func (b *fakeBlobStore) UploadFile(ctx context.Context, objectName, filePath string) (string, error) {
	return b.record(objectName)
}

func (b *fakeBlobStore) record(objectName string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.uploadErr != nil {
		return "", b.uploadErr
	}
	b.uploads = append(b.uploads, objectName)
	return "http://blobs.local/" + objectName, nil
}

func (b *fakeBlobStore) Delete(ctx context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes = append(b.deletes, url)
	return nil
}

type fakeAssetCache struct {
	mu            sync.Mutex
	data          map[string][]*models.VideoAsset
	sets          int
	invalidations int
}

func newFakeAssetCache() *fakeAssetCache {
	return &fakeAssetCache{data: make(map[string][]*models.VideoAsset)}
}

func (c *fakeAssetCache) GetAssets(ctx context.Context, parentID string) ([]*models.VideoAsset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[parentID], nil
}

func (c *fakeAssetCache) SetAssets(ctx context.Context, parentID string, assets []*models.VideoAsset, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.data[parentID] = assets
	return nil
}

func (c *fakeAssetCache) InvalidateAssets(ctx context.Context, parentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidations++
	delete(c.data, parentID)
	return nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []models.ThumbnailEvent
}

func (e *fakeEvents) PublishThumbnailUpdated(ctx context.Context, event models.ThumbnailEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

type fakeHooks struct {
	mu     sync.Mutex
	events []models.ThumbnailEvent
}

func (h *fakeHooks) Notify(ctx context.Context, event models.ThumbnailEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

type fakeFrameExtractor struct {
	durations map[string]float64
	probeErr  error
}

func (f *fakeFrameExtractor) ProbeDuration(ctx context.Context, source string) (float64, error) {
	if f.probeErr != nil {
		return 0, f.probeErr
	}
	if d, ok := f.durations[source]; ok {
		return d, nil
	}
	return 10, nil
}

func (f *fakeFrameExtractor) CaptureFrame(ctx context.Context, source string, ts float64) ([]byte, error) {
	return []byte("jpeg-bytes"), nil
}

type testEnv struct {
	api    *API
	router *gin.Engine
	store  *fakeStore
	blobs  *fakeBlobStore
	cache  *fakeAssetCache
	events *fakeEvents
	hooks  *fakeHooks
	frames *fakeFrameExtractor
}

func newTestEnv(assets ...*models.VideoAsset) *testEnv {
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		store:  newFakeStore(assets...),
		blobs:  &fakeBlobStore{},
		cache:  newFakeAssetCache(),
		events: &fakeEvents{},
		hooks:  &fakeHooks{},
		frames: &fakeFrameExtractor{durations: make(map[string]float64)},
	}

	sessions := selector.NewManager(selector.Deps{
		Frames:  env.frames,
		Blobs:   env.blobs,
		Records: env.store,
		Log:     logging.Nop(),
	}, selector.Options{})

	env.api = &API{
		store:    env.store,
		blobs:    env.blobs,
		cache:    env.cache,
		events:   env.events,
		hooks:    env.hooks,
		frames:   env.frames,
		sessions: sessions,
		uploads:  upload.NewService(os.TempDir(), 1<<20, nil),
		log:      logging.Nop(),
		tempDir:  "/tmp",
		assetTTL: time.Minute,
	}

	router := gin.New()
	router.GET("/health", env.api.healthCheck)
	v1 := router.Group("/api/v1")
	{
		v1.GET("/assets", env.api.listAssets)
		v1.POST("/assets", env.api.uploadAsset)
		v1.GET("/assets/:id", env.api.getAsset)
		v1.DELETE("/assets/:id", env.api.deleteAsset)

		v1.POST("/uploads", env.api.initUpload)
		v1.PUT("/uploads/:id/parts/:part", env.api.putUploadPart)
		v1.POST("/uploads/:id/complete", env.api.completeUpload)
		v1.DELETE("/uploads/:id", env.api.abortUpload)

		v1.POST("/sessions", env.api.openSession)
		v1.GET("/sessions/:id", env.api.getSession)
		v1.POST("/sessions/:id/seek", env.api.seekSession)
		v1.POST("/sessions/:id/reset", env.api.resetSession)
		v1.POST("/sessions/:id/playback", env.api.togglePlayback)
		v1.POST("/sessions/:id/thumbnail", env.api.uploadSessionThumbnail)
		v1.POST("/sessions/:id/save", env.api.saveSessionThumbnail)
		v1.POST("/sessions/:id/close", env.api.closeSession)
	}
	env.router = router
	return env
}

func (env *testEnv) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func campaignAssets() []*models.VideoAsset {
	return []*models.VideoAsset{
		{ID: "a1", ParentID: "camp1", Name: "Demo_v1_4x5", MediaType: models.MediaTypeVideo, SourceURL: "src/a1.mp4"},
		{ID: "a2", ParentID: "camp1", Name: "Demo_v1_9x16", MediaType: models.MediaTypeVideo, SourceURL: "src/a2.mp4"},
		{ID: "img1", ParentID: "camp1", Name: "Banner_1x1", MediaType: models.MediaTypeImage, SourceURL: "src/banner.png"},
	}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv()

	w := env.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	env.store.healthErr = errors.New("connection refused")
	w = env.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestListAssetsRequiresParent(t *testing.T) {
	env := newTestEnv()
	w := env.do(http.MethodGet, "/api/v1/assets", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAssetsCacheFlow(t *testing.T) {
	env := newTestEnv(campaignAssets()...)

	w := env.do(http.MethodGet, "/api/v1/assets?parent_id=camp1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, env.store.getCalls)
	assert.Equal(t, 1, env.cache.sets)

	var resp struct {
		Assets   []*models.VideoAsset            `json:"assets"`
		Concepts map[string][]*models.VideoAsset `json:"concepts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Assets, 3)
	assert.Len(t, resp.Concepts["Demo"], 2, "images stay out of concept groups")

	// Second request is served from cache.
	w = env.do(http.MethodGet, "/api/v1/assets?parent_id=camp1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, env.store.getCalls)
}

func TestGetAsset(t *testing.T) {
	env := newTestEnv(campaignAssets()...)

	w := env.do(http.MethodGet, "/api/v1/assets/a1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var asset models.VideoAsset
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &asset))
	assert.Equal(t, "Demo_v1_4x5", asset.Name)

	w = env.do(http.MethodGet, "/api/v1/assets/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadAsset(t *testing.T) {
	env := newTestEnv()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("parent_id", "camp1"))
	require.NoError(t, mw.WriteField("name", "Promo_v1_4x5"))
	fw, err := mw.CreateFormFile("video", "promo.mp4")
	require.NoError(t, err)
	_, err = fw.Write([]byte("mp4-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/assets", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var asset models.VideoAsset
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &asset))
	assert.Equal(t, "Promo_v1_4x5", asset.Name)
	assert.Equal(t, models.MediaTypeVideo, asset.MediaType)
	assert.Equal(t, 10.0, asset.Duration)
	assert.Contains(t, asset.SourceURL, "camp1/sources/")
	assert.Len(t, env.blobs.uploads, 1)
}

func TestUploadAssetRejectsNonVideo(t *testing.T) {
	env := newTestEnv()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("parent_id", "camp1"))
	fw, err := mw.CreateFormFile("video", "photo.jpg")
	require.NoError(t, err)
	_, err = fw.Write([]byte("jpeg-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/assets", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, env.blobs.uploads)
}

func TestDeleteAsset(t *testing.T) {
	assets := campaignAssets()
	assets[0].ThumbnailURL = "http://blobs.local/camp1/thumbnails/t.jpg"
	env := newTestEnv(assets...)

	w := env.do(http.MethodDelete, "/api/v1/assets/a1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, err := env.store.GetAsset(context.Background(), "a1")
	assert.ErrorIs(t, err, database.ErrAssetNotFound)

	// Source and thumbnail blobs both cleaned up, listing invalidated.
	assert.ElementsMatch(t, []string{"src/a1.mp4", "http://blobs.local/camp1/thumbnails/t.jpg"}, env.blobs.deletes)
	assert.Equal(t, 1, env.cache.invalidations)

	w = env.do(http.MethodDelete, "/api/v1/assets/a1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteAssetBlobFailureIsNonFatal(t *testing.T) {
	env := newTestEnv(campaignAssets()...)
	env.blobs.uploadErr = fmt.Errorf("unrelated")

	w := env.do(http.MethodDelete, "/api/v1/assets/a2", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
