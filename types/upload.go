package types

import (
	"io"
	"time"
)

// UploadStatus is the lifecycle state of a single queued upload.
type UploadStatus string

const (
	StatusPending   UploadStatus = "pending"
	StatusUploading UploadStatus = "uploading"
	StatusSuccess   UploadStatus = "success"
	StatusFailed    UploadStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s UploadStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// FileHandle is an opaque blob handed to the queue by a producer (file picker, drop zone, CLI).
type FileHandle interface {
	Name() string
	Size() int64
	Open() (io.ReadCloser, error)
}

// Releaser is implemented by handles that own temporary resources (staged copies).
// Release is called once after the item settles.
type Releaser interface {
	Release() error
}

// UploadItem tracks one file's upload lifecycle.
type UploadItem struct {
	ID         string       `json:"id"`
	File       FileHandle   `json:"-"`
	FileName   string       `json:"fileName"`
	Size       int64        `json:"size"`
	FolderID   string       `json:"folderId,omitempty"`
	Progress   float64      `json:"progress"`
	Status     UploadStatus `json:"status"`
	Attempts   int          `json:"attempts"`
	Error      string       `json:"error,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
	FinishedAt time.Time    `json:"finishedAt,omitempty"`
}

// DrainStats summarizes one drain run, from the first dequeued item until the queue was empty.
type DrainStats struct {
	TotalFiles    int      `json:"totalFiles"`
	SuccessFiles  int      `json:"successFiles"`
	FailedFiles   int      `json:"failedFiles"`
	FailedFileIds []string `json:"failedFileIds,omitempty"`
}
