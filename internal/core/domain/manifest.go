package domain

// Manifest maps tags to the URLs generated for them.
type Manifest struct {
	BaseURL string              `json:"baseurl"`
	URLs    map[string][]string `json:"urls"`
	Groups  map[string]string   `json:"groups,omitempty"`
}
