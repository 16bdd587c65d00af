package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"iamkolkata/internal/common/config"
	apperrors "iamkolkata/internal/common/errors"
	"iamkolkata/internal/common/logger"
	"iamkolkata/internal/geocode"
	"iamkolkata/internal/models"
	"iamkolkata/internal/portrait"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEntries struct {
	inserted  []models.NewEntry
	nearby    []models.NearbyEntry
	insertErr error
	nearbyErr error
}

func (f *fakeEntries) Insert(ctx context.Context, entry models.NewEntry) (*models.ParaEntry, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.inserted = append(f.inserted, entry)
	return &models.ParaEntry{
		ID:          int64(len(f.inserted)),
		Title:       entry.Title,
		Description: entry.Description,
		Pincode:     entry.Pincode,
		Latitude:    entry.Latitude,
		Longitude:   entry.Longitude,
		Tags:        entry.Tags,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (f *fakeEntries) Nearby(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]models.NearbyEntry, error) {
	if f.nearbyErr != nil {
		return nil, f.nearbyErr
	}
	return f.nearby, nil
}

func (f *fakeEntries) NearbyTitles(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]string, error) {
	if f.nearbyErr != nil {
		return nil, f.nearbyErr
	}
	titles := make([]string, 0, len(f.nearby))
	for _, entry := range f.nearby {
		titles = append(titles, entry.Title)
	}
	return titles, nil
}

type fakeSearcher struct {
	indexed []models.ParaEntry
	results []models.ParaEntry
}

func (f *fakeSearcher) Add(ctx context.Context, entry *models.ParaEntry) {
	f.indexed = append(f.indexed, *entry)
}

func (f *fakeSearcher) Search(ctx context.Context, query string, limit int) ([]models.ParaEntry, error) {
	return f.results, nil
}

type fakeContent struct {
	description string
	tags        []string
	tagCalls    int
	err         error
}

func (f *fakeContent) GenerateDescription(ctx context.Context, paraName string, tags []string, experiences string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.description, nil
}

func (f *fakeContent) SuggestTags(ctx context.Context, district, state string) ([]string, error) {
	f.tagCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.tags, nil
}

type fakeGeo struct {
	loc models.Location
	err error
}

func (f *fakeGeo) Reverse(ctx context.Context, lat, lng float64) (models.Location, error) {
	return f.loc, f.err
}

func (f *fakeGeo) LookupPincode(ctx context.Context, pincode string) (*geocode.District, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &geocode.District{District: "Kolkata", State: "West Bengal"}, nil
}

type fakePortraits struct {
	result *portrait.Result
	job    *models.PortraitJob
	err    error
	gotReq portrait.Request
}

func (f *fakePortraits) Generate(ctx context.Context, req portrait.Request) (*portrait.Result, error) {
	f.gotReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakePortraits) Job(ctx context.Context, id string) (*models.PortraitJob, error) {
	if f.job == nil {
		return nil, apperrors.NewStateError(apperrors.ErrCodeJobNotFound, "not found")
	}
	return f.job, nil
}

type serverDeps struct {
	entries   *fakeEntries
	search    *fakeSearcher
	content   *fakeContent
	geo       *fakeGeo
	portraits *fakePortraits
	redis     *redis.Client
}

func newTestServer(t *testing.T, deps serverDeps) *httptest.Server {
	if deps.entries == nil {
		deps.entries = &fakeEntries{}
	}
	if deps.content == nil {
		deps.content = &fakeContent{}
	}
	if deps.geo == nil {
		deps.geo = &fakeGeo{}
	}

	var searcher Searcher
	if deps.search != nil {
		searcher = deps.search
	}
	var portraits PortraitService
	if deps.portraits != nil {
		portraits = deps.portraits
	}

	s := NewServer(deps.entries, searcher, deps.content, deps.geo, portraits, deps.redis, nil,
		config.PipelineConfig{NearbyRadiusKm: 4, NearbyLimit: 20, TagCacheTTLMin: 60},
		logger.NewTestLogger(t))

	server := httptest.NewServer(s.Routes())
	t.Cleanup(server.Close)
	return server
}

func jsonBody(t *testing.T, payload interface{}) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return bytes.NewReader(body)
}

func postJSON(t *testing.T, url string, payload interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestCreateEntry(t *testing.T) {
	entries := &fakeEntries{}
	search := &fakeSearcher{}
	server := newTestServer(t, serverDeps{entries: entries, search: search})

	resp := postJSON(t, server.URL+"/api/entries", map[string]interface{}{
		"title":       "Lake Market",
		"description": "A lively para.",
		"pincode":     "700029",
		"latitude":    22.5186,
		"longitude":   88.3426,
		"tags":        []string{"chai"},
		"experiences": []string{"Morning adda"},
	})

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Len(t, entries.inserted, 1)
	assert.Equal(t, []string{"chai"}, entries.inserted[0].Tags)
	require.Len(t, search.indexed, 1, "saved entry must be indexed for search")
}

func TestCreateEntryDefaultsTagsFromExperiences(t *testing.T) {
	entries := &fakeEntries{}
	server := newTestServer(t, serverDeps{entries: entries})

	resp := postJSON(t, server.URL+"/api/entries", map[string]interface{}{
		"title":       "Lake Market",
		"latitude":    22.5186,
		"longitude":   88.3426,
		"experiences": []string{"Morning adda", "", "Evening chai"},
	})

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Len(t, entries.inserted, 1)
	assert.Equal(t, []string{"Experience 1", "Experience 3"}, entries.inserted[0].Tags)
}

func TestCreateEntryRejectsInvalidParaName(t *testing.T) {
	server := newTestServer(t, serverDeps{})

	resp := postJSON(t, server.URL+"/api/entries", map[string]interface{}{
		"title":       "Lake@Market",
		"latitude":    22.5,
		"longitude":   88.3,
		"experiences": []string{"Adda"},
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body errorBody
	decodeBody(t, resp, &body)
	assert.Equal(t, apperrors.ErrCodeInvalidParaName, body.Error.Code)
}

func TestCreateEntryRejectsDuplicateNearbyName(t *testing.T) {
	entries := &fakeEntries{nearby: []models.NearbyEntry{
		{ParaEntry: models.ParaEntry{Title: "Lake Market"}},
	}}
	server := newTestServer(t, serverDeps{entries: entries})

	resp := postJSON(t, server.URL+"/api/entries", map[string]interface{}{
		"title":       "lake market",
		"latitude":    22.5,
		"longitude":   88.3,
		"experiences": []string{"Adda"},
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body errorBody
	decodeBody(t, resp, &body)
	assert.Equal(t, apperrors.ErrCodeDuplicateParaName, body.Error.Code)
	assert.Empty(t, entries.inserted)
}

func TestCreateEntryRejectsMissingExperiences(t *testing.T) {
	server := newTestServer(t, serverDeps{})

	resp := postJSON(t, server.URL+"/api/entries", map[string]interface{}{
		"title":     "Lake Market",
		"latitude":  22.5,
		"longitude": 88.3,
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body errorBody
	decodeBody(t, resp, &body)
	assert.Equal(t, apperrors.ErrCodeMissingExperience, body.Error.Code)
}

func TestNearbyEndpoint(t *testing.T) {
	entries := &fakeEntries{nearby: []models.NearbyEntry{
		{ParaEntry: models.ParaEntry{ID: 1, Title: "Lake Market"}, DistanceKm: 0.4},
	}}
	server := newTestServer(t, serverDeps{entries: entries})

	resp, err := http.Get(server.URL + "/api/entries/nearby?lat=22.5186&lng=88.3426")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Entries []models.NearbyEntry `json:"entries"`
	}
	decodeBody(t, resp, &body)
	require.Len(t, body.Entries, 1)
	assert.Equal(t, 0.4, body.Entries[0].DistanceKm)
}

func TestNearbyRequiresCoordinates(t *testing.T) {
	server := newTestServer(t, serverDeps{})

	resp, err := http.Get(server.URL + "/api/entries/nearby?lat=22.5")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearchEndpoint(t *testing.T) {
	search := &fakeSearcher{results: []models.ParaEntry{{ID: 1, Title: "Lake Market"}}}
	server := newTestServer(t, serverDeps{search: search})

	resp, err := http.Get(server.URL + "/api/entries/search?q=chai")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Entries []models.ParaEntry `json:"entries"`
	}
	decodeBody(t, resp, &body)
	require.Len(t, body.Entries, 1)
}

func TestDescriptionEndpoint(t *testing.T) {
	content := &fakeContent{description: "A lively para full of chai stalls."}
	server := newTestServer(t, serverDeps{content: content})

	resp := postJSON(t, server.URL+"/api/description", map[string]interface{}{
		"para_name":   "Lake Market",
		"tags":        []string{"chai"},
		"experiences": []string{"Morning adda"},
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "A lively para full of chai stalls.", body["description"])
}

func TestDescriptionUpstreamErrorMapsToBadGateway(t *testing.T) {
	content := &fakeContent{err: apperrors.NewUpstreamError(apperrors.ErrCodeDescriptionFailed, "genai", 500, "boom")}
	server := newTestServer(t, serverDeps{content: content})

	resp := postJSON(t, server.URL+"/api/description", map[string]interface{}{
		"para_name": "Lake Market",
	})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestTagsEndpointCachesByPincode(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	content := &fakeContent{tags: []string{"chai", "adda"}}
	server := newTestServer(t, serverDeps{content: content, redis: client})

	resp := postJSON(t, server.URL+"/api/tags", map[string]interface{}{"pincode": "700029"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var first struct {
		Tags   []string `json:"tags"`
		Cached bool     `json:"cached"`
	}
	decodeBody(t, resp, &first)
	assert.Equal(t, []string{"chai", "adda"}, first.Tags)
	assert.False(t, first.Cached)

	resp = postJSON(t, server.URL+"/api/tags", map[string]interface{}{"pincode": "700029"})
	var second struct {
		Tags   []string `json:"tags"`
		Cached bool     `json:"cached"`
	}
	decodeBody(t, resp, &second)
	assert.Equal(t, first.Tags, second.Tags)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, content.tagCalls, "cache hit must not call the generator again")
}

func TestReverseGeocodeEndpoint(t *testing.T) {
	geo := &fakeGeo{loc: models.Location{Latitude: 22.5, Longitude: 88.3, Area: "Lake Market", Pincode: "700029"}}
	server := newTestServer(t, serverDeps{geo: geo})

	resp := postJSON(t, server.URL+"/api/geocode/reverse", map[string]interface{}{
		"latitude":  22.5,
		"longitude": 88.3,
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var loc models.Location
	decodeBody(t, resp, &loc)
	assert.Equal(t, "Lake Market", loc.Area)
}

func TestReverseGeocodeFailureStillReturnsSentinels(t *testing.T) {
	geo := &fakeGeo{
		loc: models.Location{Latitude: 22.5, Longitude: 88.3, Area: models.UnknownArea, Pincode: models.UnknownPincode},
		err: apperrors.NewUpstreamError(apperrors.ErrCodeGeocodeFailed, "nominatim", 503, "down"),
	}
	server := newTestServer(t, serverDeps{geo: geo})

	resp := postJSON(t, server.URL+"/api/geocode/reverse", map[string]interface{}{
		"latitude":  22.5,
		"longitude": 88.3,
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var loc models.Location
	decodeBody(t, resp, &loc)
	assert.Equal(t, models.UnknownArea, loc.Area)
}

func portraitForm(t *testing.T, paraName string, withPhoto bool) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("para_name", paraName))
	require.NoError(t, writer.WriteField("description", "A lively para."))
	require.NoError(t, writer.WriteField("pincode", "700029"))
	require.NoError(t, writer.WriteField("area", "Lake Market"))
	require.NoError(t, writer.WriteField("tags", "street food"))
	require.NoError(t, writer.WriteField("tags", "adda"))
	require.NoError(t, writer.WriteField("experiences", "Best phuchka stall at the corner"))
	require.NoError(t, writer.WriteField("experiences", " "))
	if withPhoto {
		part, err := writer.CreateFormFile("photo", "subject.jpg")
		require.NoError(t, err)
		_, err = part.Write([]byte("photo-bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestCreatePortrait(t *testing.T) {
	portraits := &fakePortraits{result: &portrait.Result{
		JobID:    "job-1",
		URL:      "https://cdn.example.com/portrait.png",
		Strategy: "remote",
	}}
	server := newTestServer(t, serverDeps{portraits: portraits})

	body, contentType := portraitForm(t, "Lake Market", true)
	resp, err := http.Post(server.URL+"/api/portraits", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var result map[string]string
	decodeBody(t, resp, &result)
	assert.Equal(t, "job-1", result["job_id"])
	assert.Equal(t, "remote", result["strategy"])
	assert.Equal(t, "Lake Market", portraits.gotReq.ParaName)
	assert.Equal(t, []byte("photo-bytes"), portraits.gotReq.Photo)
	assert.Equal(t, "Lake Market", portraits.gotReq.Area)
	assert.Equal(t, []string{"street food", "adda"}, portraits.gotReq.Tags)
	assert.Equal(t, []string{"Best phuchka stall at the corner"}, portraits.gotReq.Experiences, "blank experiences are dropped")
}

func TestCreatePortraitRequiresPhoto(t *testing.T) {
	server := newTestServer(t, serverDeps{portraits: &fakePortraits{}})

	body, contentType := portraitForm(t, "Lake Market", false)
	resp, err := http.Post(server.URL+"/api/portraits", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var eb errorBody
	decodeBody(t, resp, &eb)
	assert.Equal(t, apperrors.ErrCodeMissingPhotoUpload, eb.Error.Code)
}

func TestGetPortraitJob(t *testing.T) {
	portraits := &fakePortraits{job: &models.PortraitJob{ID: "job-1", State: models.JobRenderReady}}
	server := newTestServer(t, serverDeps{portraits: portraits})

	resp, err := http.Get(server.URL + "/api/portraits/job-1")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var job models.PortraitJob
	decodeBody(t, resp, &job)
	assert.Equal(t, models.JobRenderReady, job.State)
}

func TestGetPortraitJobNotFound(t *testing.T) {
	server := newTestServer(t, serverDeps{portraits: &fakePortraits{}})

	resp, err := http.Get(server.URL + "/api/portraits/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	server := newTestServer(t, serverDeps{})

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestInvalidJSONBodyIsBadRequest(t *testing.T) {
	server := newTestServer(t, serverDeps{})

	resp, err := http.Post(server.URL+"/api/description", "application/json",
		strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
