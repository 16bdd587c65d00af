// Package entries persists para entries in PostgreSQL. Locations are stored
// as native points (longitude first) and nearby lookups use a haversine
// distance computed in SQL.
package entries

import (
	"context"
	"database/sql"

	apperrors "iamkolkata/internal/common/errors"
	"iamkolkata/internal/common/logger"
	"iamkolkata/internal/common/metrics"
	"iamkolkata/internal/models"

	"github.com/lib/pq"
)

// Repository reads and writes para entries.
type Repository struct {
	db  *sql.DB
	log logger.Logger
}

// NewRepository builds a Repository.
func NewRepository(db *sql.DB, log logger.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(map[string]interface{}{"component": "entries"}),
	}
}

const insertQuery = `
	INSERT INTO entries (title, description, pincode, location, tags, user_id)
	VALUES ($1, $2, $3, point($4, $5), $6, $7)
	RETURNING id, created_at`

// Insert stores a new entry and returns it with its id and timestamp filled
// in.
func (r *Repository) Insert(ctx context.Context, entry models.NewEntry) (*models.ParaEntry, error) {
	saved := &models.ParaEntry{
		Title:       entry.Title,
		Description: entry.Description,
		Pincode:     entry.Pincode,
		Latitude:    entry.Latitude,
		Longitude:   entry.Longitude,
		Tags:        entry.Tags,
		UserID:      entry.UserID,
	}

	err := r.db.QueryRowContext(ctx, insertQuery,
		entry.Title,
		entry.Description,
		entry.Pincode,
		entry.Longitude,
		entry.Latitude,
		pq.Array(entry.Tags),
		nullableString(entry.UserID),
	).Scan(&saved.ID, &saved.CreatedAt)
	if err != nil {
		return nil, apperrors.NewPhaseError(apperrors.ErrCodeEntryInsertFailed, "entry insert", err)
	}

	metrics.EntriesSavedTotal.Inc()
	r.log.Info("entry saved", map[string]interface{}{
		"id":    saved.ID,
		"title": saved.Title,
	})
	return saved, nil
}

// Haversine on the stored point. location[0] is longitude, location[1] is
// latitude.
const nearbyQuery = `
	SELECT id, title, description, pincode, location[1], location[0], tags, created_at, distance_km
	FROM (
		SELECT id, title, description, pincode, location, tags, created_at,
			6371 * acos(
				least(1.0, greatest(-1.0,
					cos(radians($1)) * cos(radians(location[1])) *
					cos(radians(location[0]) - radians($2)) +
					sin(radians($1)) * sin(radians(location[1]))
				))
			) AS distance_km
		FROM entries
	) e
	WHERE e.distance_km <= $3
	ORDER BY e.distance_km ASC, e.created_at DESC
	LIMIT $4`

// Nearby returns entries within radiusKm of the point, closest first.
func (r *Repository) Nearby(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]models.NearbyEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, nearbyQuery, lat, lng, radiusKm, limit)
	if err != nil {
		return nil, apperrors.NewPhaseError(apperrors.ErrCodeNearbyQueryFailed, "nearby query", err)
	}
	defer rows.Close()

	results := make([]models.NearbyEntry, 0, limit)
	for rows.Next() {
		var entry models.NearbyEntry
		var tags pq.StringArray
		if err := rows.Scan(
			&entry.ID,
			&entry.Title,
			&entry.Description,
			&entry.Pincode,
			&entry.Latitude,
			&entry.Longitude,
			&tags,
			&entry.CreatedAt,
			&entry.DistanceKm,
		); err != nil {
			return nil, apperrors.NewPhaseError(apperrors.ErrCodeNearbyQueryFailed, "nearby scan", err)
		}
		entry.Tags = tags
		results = append(results, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewPhaseError(apperrors.ErrCodeNearbyQueryFailed, "nearby rows", err)
	}
	return results, nil
}

// NearbyTitles returns just the titles of entries within radiusKm, for
// duplicate para name checks.
func (r *Repository) NearbyTitles(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]string, error) {
	entries, err := r.Nearby(ctx, lat, lng, radiusKm, limit)
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(entries))
	for _, entry := range entries {
		titles = append(titles, entry.Title)
	}
	return titles, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
