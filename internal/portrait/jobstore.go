package portrait

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "iamkolkata/internal/common/errors"
	"iamkolkata/internal/models"

	"github.com/redis/go-redis/v9"
)

const jobKeyPrefix = "portrait:job:"

// RedisJobStore persists portrait jobs as JSON values with a TTL.
type RedisJobStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisJobStore builds a job store. ttl bounds how long finished jobs stay
// queryable.
func NewRedisJobStore(client *redis.Client, ttl time.Duration) *RedisJobStore {
	if ttl == 0 {
		ttl = time.Hour
	}
	return &RedisJobStore{client: client, ttl: ttl}
}

// Save writes the job record, replacing any previous state.
func (s *RedisJobStore) Save(ctx context.Context, job *models.PortraitJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := s.client.Set(ctx, jobKeyPrefix+job.ID, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("saving job %s: %w", job.ID, err)
	}
	return nil
}

// Get loads a job record. An expired or unknown id is a state error.
func (s *RedisJobStore) Get(ctx context.Context, id string) (*models.PortraitJob, error) {
	payload, err := s.client.Get(ctx, jobKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, apperrors.NewStateError(apperrors.ErrCodeJobNotFound, fmt.Sprintf("portrait job %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("loading job %s: %w", id, err)
	}

	var job models.PortraitJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &job, nil
}
