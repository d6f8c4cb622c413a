package types

const (
	NotifyTypeUploadAdded    = "upload_added"
	NotifyTypeUploadProgress = "upload_progress"
	NotifyTypeUploadStatus   = "upload_status"
	NotifyTypeQueueDrained   = "queue_drained"
)

// Notification represents a notification message structure
type Notification struct {
	Type    string         `json:"type,omitempty"`    // Notification type, e.g. "upload_added", "queue_drained", etc.
	Title   string         `json:"title,omitempty"`   // Notification title
	Message string         `json:"message,omitempty"` // Notification message/content
	Data    map[string]any `json:"data,omitempty"`    // Additional data fields
}
