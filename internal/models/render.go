package models

import "time"

// SourceStatus is the lifecycle of an ingested asset on the render service.
type SourceStatus string

const (
	SourceQueued    SourceStatus = "queued"
	SourceImporting SourceStatus = "importing"
	SourceReady     SourceStatus = "ready"
	SourceFailed    SourceStatus = "failed"
	SourceDeleted   SourceStatus = "deleted"
)

// Terminal reports whether the source will not change state again.
func (s SourceStatus) Terminal() bool {
	return s == SourceReady || s == SourceFailed || s == SourceDeleted
}

// RenderStatus is the lifecycle of a render job on the render service.
type RenderStatus string

const (
	RenderQueued    RenderStatus = "queued"
	RenderRendering RenderStatus = "rendering"
	RenderFetching  RenderStatus = "fetching"
	RenderSaving    RenderStatus = "saving"
	RenderReady     RenderStatus = "ready"
	RenderDone      RenderStatus = "done"
	RenderFailed    RenderStatus = "failed"
)

// Succeeded reports whether the render finished with a usable output.
func (s RenderStatus) Succeeded() bool {
	return s == RenderReady || s == RenderDone
}

// Terminal reports whether polling should stop.
func (s RenderStatus) Terminal() bool {
	return s.Succeeded() || s == RenderFailed
}

// JobState tracks a portrait job through the pipeline.
type JobState string

const (
	JobIngesting    JobState = "INGESTING"
	JobIngestReady  JobState = "INGEST_READY"
	JobIngestFailed JobState = "INGEST_FAILED"
	JobRenderQueued JobState = "RENDER_QUEUED"
	JobRendering    JobState = "RENDERING"
	JobRenderReady  JobState = "RENDER_READY"
	JobRenderFailed JobState = "RENDER_FAILED"
	JobFellBack     JobState = "LOCAL_FALLBACK"
)

// PortraitJob is the persisted record of a portrait generation.
type PortraitJob struct {
	ID        string      `json:"id"`
	State     JobState    `json:"state"`
	Strategy  string      `json:"strategy,omitempty"`
	Fields    MergeFields `json:"fields"`
	OutputURL string      `json:"output_url,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
