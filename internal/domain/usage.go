package domain

import "time"

// UsageLog is the accounting record written for every processed image.
// It never carries image data.
type UsageLog struct {
	RequestID       string    `json:"request_id"`
	SourceType      string    `json:"source_type"`
	Width           int       `json:"width"`
	Height          int       `json:"height"`
	PixelsProcessed int64     `json:"pixels_processed"`
	InputBytes      int64     `json:"input_bytes"`
	OutputBytes     int64     `json:"output_bytes"`
	ComputeTimeMS   int64     `json:"compute_time_ms"`
	CatalogVersion  int       `json:"catalog_version"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewUsageLog fills the derived fields for a request that ran entries
// transforms over a width x height image.
func NewUsageLog(requestID, sourceType string, width, height, entries int) UsageLog {
	return UsageLog{
		RequestID:       requestID,
		SourceType:      sourceType,
		Width:           width,
		Height:          height,
		PixelsProcessed: int64(width) * int64(height) * int64(entries),
		CreatedAt:       time.Now().UTC(),
	}
}
