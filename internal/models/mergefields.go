package models

// MergeFields carries everything a renderer or compositor needs to produce a
// finished portrait.
type MergeFields struct {
	// BgImage and UserImage are publicly fetchable URLs.
	BgImage   string `json:"bg_image"`
	UserImage string `json:"user_image"`

	ParaName        string `json:"para_name"`
	ParaDescription string `json:"para_description"`
	Pincode         string `json:"pincode"`
}
