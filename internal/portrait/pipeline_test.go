package portrait

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"iamkolkata/internal/clients/renderer"
	"iamkolkata/internal/common/config"
	apperrors "iamkolkata/internal/common/errors"
	"iamkolkata/internal/common/logger"
	"iamkolkata/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScenes struct {
	img            []byte
	err            error
	gotTags        []string
	gotExperiences []string
	gotArea        string
}

func (f *fakeScenes) GenerateSceneImage(ctx context.Context, tags, experiences []string, area string) ([]byte, error) {
	f.gotTags = tags
	f.gotExperiences = experiences
	f.gotArea = area
	return f.img, f.err
}

type fakeRemover struct {
	img []byte
	err error
}

func (f *fakeRemover) Remove(ctx context.Context, image []byte, filename string) ([]byte, error) {
	return f.img, f.err
}

type fakeRelay struct {
	mu        sync.Mutex
	calls     int
	failAfter int
}

func (f *fakeRelay) Publish(ctx context.Context, img []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAfter > 0 && f.calls > f.failAfter {
		return "", errors.New("storage unavailable")
	}
	return fmt.Sprintf("https://cdn.example.com/asset-%d.jpg", f.calls), nil
}

type fakeRenderer struct {
	mu           sync.Mutex
	ingestErr    error
	sourcePolls  int
	renderPolls  int
	renderFails  bool
	submitted    []renderer.MergeField
	pollsToReady int
}

func (f *fakeRenderer) IngestSource(ctx context.Context, url string) (*renderer.Source, error) {
	if f.ingestErr != nil {
		return nil, f.ingestErr
	}
	return &renderer.Source{ID: "src-" + url[len(url)-5:], Status: models.SourceQueued}, nil
}

func (f *fakeRenderer) GetSource(ctx context.Context, id string) (*renderer.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sourcePolls++
	if f.sourcePolls < f.pollsToReady {
		return &renderer.Source{ID: id, Status: models.SourceImporting}, nil
	}
	return &renderer.Source{ID: id, URL: "https://ingested.example.com/" + id, Status: models.SourceReady}, nil
}

func (f *fakeRenderer) SubmitRender(ctx context.Context, merge []renderer.MergeField) (*renderer.Render, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = merge
	return &renderer.Render{ID: "render-1", Status: models.RenderQueued}, nil
}

func (f *fakeRenderer) GetRenderStatus(ctx context.Context, id string) (*renderer.Render, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renderPolls++
	if f.renderFails {
		return &renderer.Render{ID: id, Status: models.RenderFailed, Error: "template error"}, nil
	}
	if f.renderPolls < 2 {
		return &renderer.Render{ID: id, Status: models.RenderRendering}, nil
	}
	return &renderer.Render{ID: id, Status: models.RenderDone, URL: "https://cdn.example.com/portrait.png"}, nil
}

type fakeComposer struct {
	img []byte
	err error
}

func (f *fakeComposer) Compose(ctx context.Context, fields models.MergeFields) ([]byte, error) {
	return f.img, f.err
}

type memJobStore struct {
	mu      sync.Mutex
	jobs    map[string]models.PortraitJob
	history map[string][]models.JobState
}

func (m *memJobStore) Save(ctx context.Context, job *models.PortraitJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.jobs == nil {
		m.jobs = map[string]models.PortraitJob{}
		m.history = map[string][]models.JobState{}
	}
	m.jobs[job.ID] = *job
	m.history[job.ID] = append(m.history[job.ID], job.State)
	return nil
}

func (m *memJobStore) Get(ctx context.Context, id string) (*models.PortraitJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, apperrors.NewStateError(apperrors.ErrCodeJobNotFound, "not found")
	}
	return &job, nil
}

func fastPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		PollBaseDelay:   1,
		PollFactor:      1.5,
		PollMaxDelay:    2,
		PollMaxAttempts: 5,
	}
}

func testRequest() Request {
	return Request{
		ParaName:      "Lake Market",
		Description:   "A lively para full of chai stalls.",
		Pincode:       "700029",
		Area:          "Lake Market",
		Tags:          []string{"street food", "adda"},
		Experiences:   []string{"Best phuchka stall at the corner"},
		Photo:         []byte("photo-bytes"),
		PhotoFilename: "subject.jpg",
	}
}

func newPipeline(t *testing.T, r Renderer, composer Composer, store JobStore) (*Pipeline, *fakeRelay) {
	relay := &fakeRelay{}
	p := New(
		&fakeScenes{img: []byte("scene")},
		&fakeRemover{img: []byte("cutout")},
		relay,
		r,
		composer,
		store,
		fastPipelineConfig(),
		logger.NewTestLogger(t),
	)
	return p, relay
}

func TestGenerateRemoteSuccess(t *testing.T) {
	rend := &fakeRenderer{pollsToReady: 3}
	store := &memJobStore{}
	p, _ := newPipeline(t, rend, &fakeComposer{img: []byte("png")}, store)

	result, err := p.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "remote", result.Strategy)
	assert.Equal(t, "https://cdn.example.com/portrait.png", result.URL)

	job, err := p.Job(context.Background(), result.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobRenderReady, job.State)
	assert.Equal(t, result.URL, job.OutputURL)

	// Merge fields carry the ingested asset URLs and all text fields.
	finds := make([]string, 0, len(rend.submitted))
	for _, m := range rend.submitted {
		finds = append(finds, m.Find)
	}
	assert.ElementsMatch(t, []string{"BG_IMAGE", "USER_IMAGE", "PARA_NAME", "DESCRIPTION", "PINCODE"}, finds)
	for _, m := range rend.submitted {
		if m.Find == "BG_IMAGE" || m.Find == "USER_IMAGE" {
			assert.True(t, strings.HasPrefix(m.Replace, "https://ingested.example.com/"))
		}
		if m.Find == "PARA_NAME" {
			assert.Equal(t, "Lake Market", m.Replace)
		}
	}
}

func TestGenerateFallsBackToLocalCompositor(t *testing.T) {
	rend := &fakeRenderer{renderFails: true, pollsToReady: 1}
	store := &memJobStore{}
	p, _ := newPipeline(t, rend, &fakeComposer{img: []byte("local-png")}, store)

	result, err := p.Generate(context.Background(), testRequest())
	require.NoError(t, err, "local compositor must guarantee an output")
	assert.Equal(t, "local", result.Strategy)
	assert.NotEmpty(t, result.URL)

	job, err := p.Job(context.Background(), result.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobFellBack, job.State)
}

func TestGenerateWithoutRendererGoesLocal(t *testing.T) {
	p, _ := newPipeline(t, nil, &fakeComposer{img: []byte("local-png")}, &memJobStore{})

	result, err := p.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "local", result.Strategy)
}

func TestGenerateScenePhaseFailureNamed(t *testing.T) {
	relay := &fakeRelay{}
	p := New(
		&fakeScenes{err: apperrors.NewUpstreamError(apperrors.ErrCodeSceneGenerationFailed, "genai", 500, "boom")},
		&fakeRemover{img: []byte("cutout")},
		relay,
		nil,
		&fakeComposer{img: []byte("png")},
		&memJobStore{},
		fastPipelineConfig(),
		logger.NewTestLogger(t),
	)

	_, err := p.Generate(context.Background(), testRequest())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeSceneGenerationFailed, apperrors.AsAppError(err).Code)
}

func TestGenerateForwardsSceneInputs(t *testing.T) {
	scenes := &fakeScenes{img: []byte("scene")}
	p := New(
		scenes,
		&fakeRemover{img: []byte("cutout")},
		&fakeRelay{},
		nil,
		&fakeComposer{img: []byte("png")},
		&memJobStore{},
		fastPipelineConfig(),
		logger.NewTestLogger(t),
	)

	req := testRequest()
	_, err := p.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, req.Tags, scenes.gotTags)
	assert.Equal(t, req.Experiences, scenes.gotExperiences)
	assert.Equal(t, req.Area, scenes.gotArea)
}

func TestGenerateRecordsJobBeforeAssetsReady(t *testing.T) {
	store := &memJobStore{}
	p, _ := newPipeline(t, nil, &fakeComposer{img: []byte("png")}, store)

	result, err := p.Generate(context.Background(), testRequest())
	require.NoError(t, err)

	history := store.history[result.JobID]
	require.NotEmpty(t, history)
	assert.Equal(t, models.JobIngesting, history[0], "job must be visible while assets are still being prepared")
}

func TestGenerateRequiresPhoto(t *testing.T) {
	p, _ := newPipeline(t, nil, &fakeComposer{img: []byte("png")}, &memJobStore{})

	req := testRequest()
	req.Photo = nil
	_, err := p.Generate(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeMissingPhotoUpload, apperrors.AsAppError(err).Code)
}

func TestGenerateLocalPublishFailureReturnsInlineImage(t *testing.T) {
	// Asset publishes (calls 1 and 2) succeed, the composed portrait (call 3)
	// fails to publish and must come back inline instead.
	relay := &fakeRelay{failAfter: 2}
	p := New(
		&fakeScenes{img: []byte("scene")},
		&fakeRemover{img: []byte("cutout")},
		relay,
		nil,
		&fakeComposer{img: []byte("local-png")},
		&memJobStore{},
		fastPipelineConfig(),
		logger.NewTestLogger(t),
	)

	result, err := p.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.URL, "data:image/png;base64,"))
}

func TestGenerateIngestFailureFallsBack(t *testing.T) {
	rend := &fakeRenderer{ingestErr: errors.New("ingest unavailable")}
	p, _ := newPipeline(t, rend, &fakeComposer{img: []byte("local-png")}, &memJobStore{})

	result, err := p.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "local", result.Strategy)
}
