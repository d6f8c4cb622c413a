package types

// FileInput represents file input information
type FileInput struct {
	FileName string `json:"fileName,omitempty"` // Display name override (optional)
	FileUrl  string `json:"fileUrl"`            // File URL (supports file:/// protocol, auto-reads file info)
}

// UserEnqueueRequest is the JSON body for POST /api/self/v1/enqueue.
type UserEnqueueRequest struct {
	Files    []FileInput `json:"files"`
	FolderId string      `json:"folderId,omitempty"`
}

// UserEnqueueResponse lists the items created by an enqueue call.
type UserEnqueueResponse struct {
	Items []UploadItem `json:"items"`
}

// QueueStatusResponse is the response body for GET /api/self/v1/status.
type QueueStatusResponse struct {
	Running         bool         `json:"running"`
	Active          bool         `json:"active"`
	Pending         []UploadItem `json:"pending"`
	NotifyWsEnabled bool         `json:"notify_ws_enabled"`
	Endpoint        string       `json:"endpoint"`
	DefaultFolderId string       `json:"default_folder_id,omitempty"`
	LastDrain       *DrainStats  `json:"last_drain,omitempty"`
}
