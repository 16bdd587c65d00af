// Package search indexes saved entries in Elasticsearch and serves free-text
// lookups over them. Indexing is best effort: search lags behind the source
// of truth in PostgreSQL rather than blocking saves.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	apperrors "iamkolkata/internal/common/errors"
	"iamkolkata/internal/common/logger"
	"iamkolkata/internal/models"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const defaultIndex = "para-entries"

// Index wraps the Elasticsearch client for entry search.
type Index struct {
	client *elasticsearch.Client
	index  string
	log    logger.Logger
}

// NewIndex builds an Index over the given client.
func NewIndex(client *elasticsearch.Client, index string, log logger.Logger) *Index {
	if index == "" {
		index = defaultIndex
	}
	return &Index{
		client: client,
		index:  index,
		log:    log.With(map[string]interface{}{"component": "search"}),
	}
}

// Add indexes one saved entry. Failures are logged and swallowed so a search
// outage never fails an entry save.
func (i *Index) Add(ctx context.Context, entry *models.ParaEntry) {
	payload, err := json.Marshal(entry)
	if err != nil {
		i.log.Warn("entry not indexed", map[string]interface{}{"error": err.Error()})
		return
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: strconv.FormatInt(entry.ID, 10),
		Body:       bytes.NewReader(payload),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		i.log.Warn("entry not indexed", map[string]interface{}{
			"id":    entry.ID,
			"error": err.Error(),
		})
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		i.log.Warn("entry not indexed", map[string]interface{}{
			"id":     entry.ID,
			"status": res.Status(),
		})
		return
	}
	i.log.Debug("entry indexed", map[string]interface{}{"id": entry.ID})
}

// Search runs a multi-field match over titles, descriptions and tags.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]models.ParaEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	body := map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"title^3", "tags^2", "description"},
			},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	res, err := i.client.Search(
		i.client.Search.WithContext(ctx),
		i.client.Search.WithIndex(i.index),
		i.client.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, apperrors.NewUpstreamError(apperrors.ErrCodeSearchFailed, "elasticsearch", 0, err.Error())
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, apperrors.NewUpstreamError(apperrors.ErrCodeSearchFailed, "elasticsearch", res.StatusCode, err.Error())
	}
	if res.IsError() {
		return nil, apperrors.NewUpstreamError(apperrors.ErrCodeSearchFailed, "elasticsearch", res.StatusCode, string(raw))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source models.ParaEntry `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, apperrors.NewUpstreamError(apperrors.ErrCodeSearchFailed, "elasticsearch", res.StatusCode,
			fmt.Sprintf("malformed response: %v", err))
	}

	results := make([]models.ParaEntry, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		results = append(results, hit.Source)
	}
	return results, nil
}
