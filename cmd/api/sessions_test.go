package main

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creativeops/thumbselect/internal/selector"
	"github.com/creativeops/thumbselect/pkg/models"
)

func (env *testEnv) openSessionFor(t *testing.T, assetID string) selector.Snapshot {
	t.Helper()
	w := env.do(http.MethodPost, "/api/v1/sessions", gin.H{"asset_id": assetID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var snap selector.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	return snap
}

func TestOpenSession(t *testing.T) {
	env := newTestEnv(campaignAssets()...)
	env.frames.durations["src/a1.mp4"] = 12

	snap := env.openSessionFor(t, "a1")
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, selector.StateReady, snap.State)
	assert.Equal(t, "Demo", snap.Concept)
	assert.Equal(t, "camp1", snap.ParentID)
	assert.Equal(t, 12.0, snap.Duration)
	assert.ElementsMatch(t, []string{"Demo_v1_4x5", "Demo_v1_9x16"}, snap.RelatedAssets)
}

func TestOpenSessionUnknownAsset(t *testing.T) {
	env := newTestEnv(campaignAssets()...)
	w := env.do(http.MethodPost, "/api/v1/sessions", gin.H{"asset_id": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOpenSessionRejectsImages(t *testing.T) {
	env := newTestEnv(campaignAssets()...)
	w := env.do(http.MethodPost, "/api/v1/sessions", gin.H{"asset_id": "img1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSessionNotFound(t *testing.T) {
	env := newTestEnv()
	w := env.do(http.MethodGet, "/api/v1/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSeekEndpoint(t *testing.T) {
	env := newTestEnv(campaignAssets()...)
	snap := env.openSessionFor(t, "a1")

	w := env.do(http.MethodPost, "/api/v1/sessions/"+snap.ID+"/seek", gin.H{"time": 42.0})
	require.Equal(t, http.StatusOK, w.Code)

	var after selector.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &after))
	assert.Equal(t, 10.0, after.CurrentTime, "seek past the end clamps to duration")
	require.NotNil(t, after.SelectedTimestamp)
	assert.Equal(t, 10.0, *after.SelectedTimestamp)
	assert.True(t, after.HasCommittedSelection)
}

func TestSaveWithoutSelectionEndpoint(t *testing.T) {
	env := newTestEnv(campaignAssets()...)
	snap := env.openSessionFor(t, "a1")

	w := env.do(http.MethodPost, "/api/v1/sessions/"+snap.ID+"/save", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, env.events.events)
}

func TestSaveFlow(t *testing.T) {
	env := newTestEnv(campaignAssets()...)
	env.frames.durations["src/a1.mp4"] = 10
	env.frames.durations["src/a2.mp4"] = 8

	snap := env.openSessionFor(t, "a1")

	w := env.do(http.MethodPost, "/api/v1/sessions/"+snap.ID+"/seek", gin.H{"time": 9.5})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/api/v1/sessions/"+snap.ID+"/save", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res selector.BatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.ElementsMatch(t, []string{"Demo_v1_4x5", "Demo_v1_9x16"}, res.Succeeded)
	assert.True(t, res.CloseAndRefresh)

	// Both records carry the clamped timestamp.
	a2 := env.store.assets["a2"]
	require.NotNil(t, a2.ThumbnailTimestamp)
	assert.Equal(t, 8.0, *a2.ThumbnailTimestamp)
	assert.Contains(t, a2.ThumbnailURL, "?v=")

	// Listing cache dropped and an event published for the batch.
	assert.Equal(t, 1, env.cache.invalidations)
	require.Len(t, env.events.events, 1)
	event := env.events.events[0]
	assert.Equal(t, models.EventThumbnailUpdated, event.Event)
	assert.Equal(t, "camp1", event.ParentID)
	assert.ElementsMatch(t, []string{"a1", "a2"}, event.AssetIDs)
	assert.Equal(t, models.ThumbnailSourceExtracted, event.Source)
	require.NotNil(t, event.Timestamp)
	assert.Equal(t, 9.5, *event.Timestamp)
	assert.Len(t, env.hooks.events, 1, "webhook receivers see the same event")

	// Close succeeds without confirmation once a save committed.
	w = env.do(http.MethodPost, "/api/v1/sessions/"+snap.ID+"/close", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCustomThumbnailFlow(t *testing.T) {
	env := newTestEnv(campaignAssets()...)
	snap := env.openSessionFor(t, "a1")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="image"; filename="thumb.png"`)
	hdr.Set("Content-Type", "image/png")
	fw, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = fw.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+snap.ID+"/thumbnail", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res selector.BatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Len(t, res.Succeeded, 2)

	// Manual uploads clear the timestamp marker.
	a1 := env.store.assets["a1"]
	assert.Nil(t, a1.ThumbnailTimestamp)
	assert.Contains(t, a1.ThumbnailURL, ".png")

	require.Len(t, env.events.events, 1)
	assert.Equal(t, models.ThumbnailSourceCustom, env.events.events[0].Source)
	assert.Nil(t, env.events.events[0].Timestamp)
}

func TestCustomThumbnailRejectsNonImage(t *testing.T) {
	env := newTestEnv(campaignAssets()...)
	snap := env.openSessionFor(t, "a1")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "notes.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("plain text"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+snap.ID+"/thumbnail", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, env.events.events)
}

func TestCloseSessionConfirmation(t *testing.T) {
	env := newTestEnv(campaignAssets()...)
	snap := env.openSessionFor(t, "a1")

	// Nothing committed: closing without confirmation conflicts.
	w := env.do(http.MethodPost, "/api/v1/sessions/"+snap.ID+"/close", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodPost, "/api/v1/sessions/"+snap.ID+"/close", gin.H{"confirm": true})
	assert.Equal(t, http.StatusOK, w.Code)

	// The session is gone afterwards.
	w = env.do(http.MethodGet, "/api/v1/sessions/"+snap.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlaybackEndpointWithoutMetadata(t *testing.T) {
	env := newTestEnv(campaignAssets()...)
	env.frames.probeErr = assert.AnError

	snap := env.openSessionFor(t, "a1")
	assert.NotEmpty(t, snap.MetadataError)

	w := env.do(http.MethodPost, "/api/v1/sessions/"+snap.ID+"/playback", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/v1/sessions/"+snap.ID+"/seek", gin.H{"time": 3.0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResetEndpoint(t *testing.T) {
	env := newTestEnv(campaignAssets()...)
	snap := env.openSessionFor(t, "a1")

	w := env.do(http.MethodPost, "/api/v1/sessions/"+snap.ID+"/seek", gin.H{"time": 5.0})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/api/v1/sessions/"+snap.ID+"/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var after selector.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &after))
	assert.Equal(t, 0.0, after.CurrentTime)
	require.NotNil(t, after.SelectedTimestamp)
	assert.Equal(t, 0.0, *after.SelectedTimestamp)
}
