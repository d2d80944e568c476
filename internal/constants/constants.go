// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Pagination constants
const (
	// DefaultPageSize is the number of photos fetched per collection page
	DefaultPageSize = 120
)

// Batch constants
const (
	// DefaultConcurrency is the default number of parallel requests per batch move/delete
	DefaultConcurrency = 5
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for notification channels
	EventChannelBuffer = 100
)

// Preview constants
const (
	// PreviewMaxWidth is the width of generated staging thumbnails
	PreviewMaxWidth = 480

	// PreviewJPEGQuality is the JPEG quality used for staging thumbnails
	PreviewJPEGQuality = 80
)

// File upload constants
const (
	// MaxUploadSize is the maximum multipart upload size in bytes (100MB)
	MaxUploadSize = 100 << 20
)
