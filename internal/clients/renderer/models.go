package renderer

import "iamkolkata/internal/models"

// Wire types for the cloud render service.

type ingestRequest struct {
	URL string `json:"url"`
}

type ingestEnvelope struct {
	Data struct {
		Attributes struct {
			ID     string              `json:"id"`
			URL    string              `json:"url"`
			Status models.SourceStatus `json:"status"`
			Error  string              `json:"error,omitempty"`
		} `json:"attributes"`
	} `json:"data"`
}

// Source is an ingested asset on the render service.
type Source struct {
	ID     string
	URL    string
	Status models.SourceStatus
	Error  string
}

// MergeField substitutes one template placeholder.
type MergeField struct {
	Find    string `json:"find"`
	Replace string `json:"replace"`
}

type renderRequest struct {
	ID    string       `json:"id"`
	Merge []MergeField `json:"merge"`
}

type renderEnvelope struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Response struct {
		ID     string              `json:"id"`
		Status models.RenderStatus `json:"status"`
		URL    string              `json:"url,omitempty"`
		Error  string              `json:"error,omitempty"`
	} `json:"response"`
}

// Render is the state of a render job.
type Render struct {
	ID     string
	Status models.RenderStatus
	URL    string
	Error  string
}
