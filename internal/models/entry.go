package models

import "time"

// ParaEntry is a saved neighbourhood entry.
type ParaEntry struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Pincode     string    `json:"pincode"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Tags        []string  `json:"tags"`
	UserID      string    `json:"user_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NearbyEntry is a ParaEntry annotated with its distance from a query point.
type NearbyEntry struct {
	ParaEntry
	DistanceKm float64 `json:"distance_km"`
}

// NewEntry is the payload used to insert an entry.
type NewEntry struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Pincode     string   `json:"pincode"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Tags        []string `json:"tags"`
	UserID      string   `json:"user_id,omitempty"`
}
