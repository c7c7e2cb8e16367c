package models

// ProviderScore represents an aggregated provider ranking entry for a location
type ProviderScore struct {
	Provider    string  `json:"provider"`
	DisplayName string  `json:"display_name,omitempty"`
	Score       float64 `json:"score"`
	Samples     int     `json:"samples"`
}
