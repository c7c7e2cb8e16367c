package models

import "time"

// NetworkLog represents a single network-quality measurement reported by a client
type NetworkLog struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id,omitempty"` // 0 for anonymous submissions
	Location     string    `json:"location"`
	Provider     string    `json:"provider"`
	LatencyMs    float64   `json:"latency_ms"`
	DownloadMbps float64   `json:"download_mbps"`
	UploadMbps   float64   `json:"upload_mbps"`
	NetworkType  string    `json:"network_type,omitempty"` // e.g. "4G", "5G", "wifi"
	CreatedAt    time.Time `json:"created_at"`
}

// Anonymous reports whether the record has no owning user.
func (n *NetworkLog) Anonymous() bool {
	return n.UserID == 0
}
