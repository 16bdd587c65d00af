package models

// Sentinel values used when reverse geocoding cannot resolve a field.
const (
	UnknownArea    = "Unknown Area"
	UnknownPincode = "Unknown Pincode"
)

// Location is a resolved user position. Latitude and Longitude of 0 mean the
// position was never set.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Area      string  `json:"area"`
	Pincode   string  `json:"pincode"`
}

// IsSet reports whether a real position has been captured.
func (l Location) IsSet() bool {
	return l.Latitude != 0 || l.Longitude != 0
}
