// Package portrait orchestrates the portrait composition pipeline: generate
// a scene, cut out the subject, publish both, then render. A cloud render is
// attempted first and the local compositor guarantees an output when the
// cloud path fails.
package portrait

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"iamkolkata/internal/clients/renderer"
	"iamkolkata/internal/common/config"
	apperrors "iamkolkata/internal/common/errors"
	"iamkolkata/internal/common/logger"
	"iamkolkata/internal/common/metrics"
	"iamkolkata/internal/common/retry"
	"iamkolkata/internal/models"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// SceneGenerator produces the background scene image.
type SceneGenerator interface {
	GenerateSceneImage(ctx context.Context, tags, experiences []string, area string) ([]byte, error)
}

// BackgroundRemover cuts the subject out of a photo.
type BackgroundRemover interface {
	Remove(ctx context.Context, image []byte, filename string) ([]byte, error)
}

// AssetRelay makes image bytes publicly fetchable and returns the URL.
type AssetRelay interface {
	Publish(ctx context.Context, img []byte) (string, error)
}

// Renderer is the cloud render service.
type Renderer interface {
	IngestSource(ctx context.Context, url string) (*renderer.Source, error)
	GetSource(ctx context.Context, id string) (*renderer.Source, error)
	SubmitRender(ctx context.Context, merge []renderer.MergeField) (*renderer.Render, error)
	GetRenderStatus(ctx context.Context, id string) (*renderer.Render, error)
}

// Composer renders a portrait locally.
type Composer interface {
	Compose(ctx context.Context, fields models.MergeFields) ([]byte, error)
}

// JobStore persists portrait job records.
type JobStore interface {
	Save(ctx context.Context, job *models.PortraitJob) error
	Get(ctx context.Context, id string) (*models.PortraitJob, error)
}

// Request is one portrait generation. Area, Tags and Experiences shape the
// scene prompt; the rest feeds the render merge fields.
type Request struct {
	ParaName      string
	Description   string
	Pincode       string
	Area          string
	Tags          []string
	Experiences   []string
	Photo         []byte
	PhotoFilename string
}

// Result is a finished portrait.
type Result struct {
	JobID    string
	URL      string
	Strategy string
}

// Pipeline wires the portrait stages together.
type Pipeline struct {
	scenes   SceneGenerator
	remover  BackgroundRemover
	relay    AssetRelay
	renderer Renderer
	composer Composer
	jobs     JobStore
	poll     retry.Policy
	log      logger.Logger
}

// New builds a Pipeline. A nil renderer disables the cloud strategy and every
// portrait is composed locally.
func New(
	scenes SceneGenerator,
	remover BackgroundRemover,
	assetRelay AssetRelay,
	cloudRenderer Renderer,
	composer Composer,
	jobs JobStore,
	cfg config.PipelineConfig,
	log logger.Logger,
) *Pipeline {
	poll := retry.Policy{
		BaseDelay:   time.Duration(cfg.PollBaseDelay) * time.Millisecond,
		Factor:      cfg.PollFactor,
		MaxDelay:    time.Duration(cfg.PollMaxDelay) * time.Millisecond,
		MaxAttempts: cfg.PollMaxAttempts,
	}
	if poll.BaseDelay == 0 {
		poll.BaseDelay = time.Second
	}
	if poll.Factor == 0 {
		poll.Factor = 1.5
	}
	if poll.MaxDelay == 0 {
		poll.MaxDelay = 5 * time.Second
	}
	if poll.MaxAttempts == 0 {
		poll.MaxAttempts = 20
	}

	return &Pipeline{
		scenes:   scenes,
		remover:  remover,
		relay:    assetRelay,
		renderer: cloudRenderer,
		composer: composer,
		jobs:     jobs,
		poll:     poll,
		log:      log.With(map[string]interface{}{"component": "portrait"}),
	}
}

// Generate runs the full pipeline and returns a portrait URL. The scene
// generation and background removal run concurrently; the first phase to fail
// decides the reported error. A failed cloud render falls through to the
// local compositor, so a portrait is produced whenever the input assets could
// be prepared at all.
func (p *Pipeline) Generate(ctx context.Context, req Request) (*Result, error) {
	if len(req.Photo) == 0 {
		return nil, apperrors.NewStateError(apperrors.ErrCodeMissingPhotoUpload, "a subject photo is required")
	}

	job := &models.PortraitJob{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
	}
	// Persist before asset preparation so status polling sees the job during
	// its longest phase.
	p.saveJob(ctx, job, func(j *models.PortraitJob) { j.State = models.JobIngesting })
	log := p.log.With(map[string]interface{}{"job_id": job.ID})

	fields, err := p.prepareAssets(ctx, req, log)
	if err != nil {
		p.saveJob(ctx, job, func(j *models.PortraitJob) {
			j.State = models.JobIngestFailed
			j.Error = err.Error()
		})
		return nil, err
	}
	fields.ParaName = req.ParaName
	fields.ParaDescription = req.Description
	fields.Pincode = req.Pincode

	p.saveJob(ctx, job, func(j *models.PortraitJob) {
		j.State = models.JobIngestReady
		j.Fields = *fields
	})

	if p.renderer != nil {
		url, remoteErr := p.renderRemote(ctx, job, *fields, log)
		if remoteErr == nil {
			p.saveJob(ctx, job, func(j *models.PortraitJob) {
				j.State = models.JobRenderReady
				j.Strategy = "remote"
				j.OutputURL = url
			})
			return &Result{JobID: job.ID, URL: url, Strategy: "remote"}, nil
		}
		log.Warn("cloud render failed, falling back to local compositor", map[string]interface{}{
			"error": remoteErr.Error(),
		})
		metrics.PortraitFallbacksTotal.Inc()
	}

	url, localErr := p.renderLocal(ctx, *fields, log)
	if localErr != nil {
		p.saveJob(ctx, job, func(j *models.PortraitJob) {
			j.State = models.JobRenderFailed
			j.Error = localErr.Error()
		})
		return nil, localErr
	}

	p.saveJob(ctx, job, func(j *models.PortraitJob) {
		j.State = models.JobFellBack
		j.Strategy = "local"
		j.OutputURL = url
	})
	return &Result{JobID: job.ID, URL: url, Strategy: "local"}, nil
}

// Job returns the stored record for a portrait job.
func (p *Pipeline) Job(ctx context.Context, id string) (*models.PortraitJob, error) {
	return p.jobs.Get(ctx, id)
}

// prepareAssets generates the scene and removes the photo background in
// parallel, then publishes both images.
func (p *Pipeline) prepareAssets(ctx context.Context, req Request, log logger.Logger) (*models.MergeFields, error) {
	var sceneImg, subjectImg []byte

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		img, err := p.timedStage(gctx, "scene", func(ctx context.Context) ([]byte, error) {
			return p.scenes.GenerateSceneImage(ctx, req.Tags, req.Experiences, req.Area)
		})
		if err != nil {
			return err
		}
		sceneImg = img
		return nil
	})
	g.Go(func() error {
		img, err := p.timedStage(gctx, "removebg", func(ctx context.Context) ([]byte, error) {
			return p.remover.Remove(ctx, req.Photo, req.PhotoFilename)
		})
		if err != nil {
			return err
		}
		subjectImg = img
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fields := &models.MergeFields{}
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		url, err := p.timedStage(gctx, "upload", func(ctx context.Context) ([]byte, error) {
			u, uerr := p.relay.Publish(ctx, sceneImg)
			return []byte(u), uerr
		})
		if err != nil {
			return apperrors.NewPhaseError(apperrors.ErrCodeUploadFailed, "scene upload", err)
		}
		fields.BgImage = string(url)
		return nil
	})
	g.Go(func() error {
		url, err := p.timedStage(gctx, "upload", func(ctx context.Context) ([]byte, error) {
			u, uerr := p.relay.Publish(ctx, subjectImg)
			return []byte(u), uerr
		})
		if err != nil {
			return apperrors.NewPhaseError(apperrors.ErrCodeUploadFailed, "subject upload", err)
		}
		fields.UserImage = string(url)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Info("assets prepared", map[string]interface{}{
		"bg_image":   fields.BgImage,
		"user_image": fields.UserImage,
	})
	return fields, nil
}

// renderRemote ingests both assets, waits for them to become ready, submits
// the template render and polls it to completion.
func (p *Pipeline) renderRemote(ctx context.Context, job *models.PortraitJob, fields models.MergeFields, log logger.Logger) (string, error) {
	sources := make([]*renderer.Source, 2)
	urls := []string{fields.BgImage, fields.UserImage}

	g, gctx := errgroup.WithContext(ctx)
	for i := range urls {
		i := i
		g.Go(func() error {
			source, err := p.renderer.IngestSource(gctx, urls[i])
			if err != nil {
				return err
			}
			sources[i] = source
			return p.waitForSource(gctx, source)
		})
	}
	if err := g.Wait(); err != nil {
		return "", apperrors.NewPhaseError(apperrors.ErrCodeIngestFailed, "ingest", err)
	}

	p.saveJob(ctx, job, func(j *models.PortraitJob) { j.State = models.JobRenderQueued })

	merge := []renderer.MergeField{
		{Find: "BG_IMAGE", Replace: sources[0].URL},
		{Find: "USER_IMAGE", Replace: sources[1].URL},
		{Find: "PARA_NAME", Replace: fields.ParaName},
		{Find: "DESCRIPTION", Replace: fields.ParaDescription},
		{Find: "PINCODE", Replace: fields.Pincode},
	}

	start := time.Now()
	render, err := p.renderer.SubmitRender(ctx, merge)
	if err != nil {
		metrics.PipelineStagesTotal.WithLabelValues("render", "error").Inc()
		return "", err
	}

	p.saveJob(ctx, job, func(j *models.PortraitJob) { j.State = models.JobRendering })

	url, err := p.waitForRender(ctx, render.ID)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.PipelineStagesTotal.WithLabelValues("render", status).Inc()
	metrics.PipelineStageDuration.WithLabelValues("render").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", err
	}

	log.Info("cloud render finished", map[string]interface{}{"url": url})
	return url, nil
}

// waitForSource polls an ingested source until it is ready. A terminal
// failure stops polling immediately.
func (p *Pipeline) waitForSource(ctx context.Context, source *renderer.Source) error {
	if source.Status == models.SourceReady {
		return nil
	}
	return p.poll.Do(ctx, func(ctx context.Context) error {
		current, err := p.renderer.GetSource(ctx, source.ID)
		if err != nil {
			return err
		}
		switch {
		case current.Status == models.SourceReady:
			source.URL = current.URL
			return nil
		case current.Status.Terminal():
			return retry.Stop(fmt.Errorf("source %s ended as %s: %s", source.ID, current.Status, current.Error))
		default:
			return fmt.Errorf("source %s still %s", source.ID, current.Status)
		}
	})
}

// waitForRender polls a render until it succeeds or fails.
func (p *Pipeline) waitForRender(ctx context.Context, renderID string) (string, error) {
	var url string
	err := p.poll.Do(ctx, func(ctx context.Context) error {
		current, err := p.renderer.GetRenderStatus(ctx, renderID)
		if err != nil {
			return err
		}
		switch {
		case current.Status.Succeeded():
			if current.URL == "" {
				return retry.Stop(apperrors.NewUpstreamError(apperrors.ErrCodeRenderFailed, "renderer", 0,
					"render succeeded without an output URL"))
			}
			url = current.URL
			return nil
		case current.Status.Terminal():
			return retry.Stop(apperrors.NewUpstreamError(apperrors.ErrCodeRenderFailed, "renderer", 0, current.Error))
		default:
			return fmt.Errorf("render %s still %s", renderID, current.Status)
		}
	})
	return url, err
}

// renderLocal composes the portrait on the local canvas and publishes it. If
// publishing fails the portrait is still returned inline as a data URL.
func (p *Pipeline) renderLocal(ctx context.Context, fields models.MergeFields, log logger.Logger) (string, error) {
	img, err := p.timedStage(ctx, "composite", func(ctx context.Context) ([]byte, error) {
		return p.composer.Compose(ctx, fields)
	})
	if err != nil {
		return "", err
	}

	url, err := p.relay.Publish(ctx, img)
	if err != nil {
		log.Warn("publishing composed portrait failed, returning inline image", map[string]interface{}{
			"error": err.Error(),
		})
		return "data:image/png;base64," + base64.StdEncoding.EncodeToString(img), nil
	}
	return url, nil
}

// timedStage runs one pipeline stage with metrics around it.
func (p *Pipeline) timedStage(ctx context.Context, stage string, fn func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	start := time.Now()
	out, err := fn(ctx)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.PipelineStagesTotal.WithLabelValues(stage, status).Inc()
	metrics.PipelineStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	return out, err
}

// saveJob applies a mutation and persists the job. Persistence failures are
// logged, not fatal: losing a status record must not lose the portrait.
func (p *Pipeline) saveJob(ctx context.Context, job *models.PortraitJob, mutate func(*models.PortraitJob)) {
	mutate(job)
	job.UpdatedAt = time.Now().UTC()
	if p.jobs == nil {
		return
	}
	if err := p.jobs.Save(ctx, job); err != nil {
		p.log.Warn("saving portrait job failed", map[string]interface{}{
			"job_id": job.ID,
			"error":  err.Error(),
		})
	}
}
