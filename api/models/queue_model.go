package models

import (
	"sync"

	"github.com/moyoez/localstore-go/api/notifyhub"
	"github.com/moyoez/localstore-go/queue"
	"github.com/moyoez/localstore-go/share"
)

var (
	stateMu         sync.RWMutex
	uploadQueue     *queue.UploadQueue
	uploadHistory   *share.History
	notifyHub       *notifyhub.Hub
	defaultFolderId string
	stagingFolder   = "staging"
	endpoint        string
)

// SetUploadQueue sets the queue the local API feeds.
func SetUploadQueue(q *queue.UploadQueue) {
	stateMu.Lock()
	defer stateMu.Unlock()
	uploadQueue = q
}

// GetUploadQueue returns the queue, or nil if not set.
func GetUploadQueue() *queue.UploadQueue {
	stateMu.RLock()
	defer stateMu.RUnlock()
	return uploadQueue
}

func SetHistory(h *share.History) {
	stateMu.Lock()
	defer stateMu.Unlock()
	uploadHistory = h
}

func GetHistory() *share.History {
	stateMu.RLock()
	defer stateMu.RUnlock()
	return uploadHistory
}

// SetNotifyHub sets the hub for WebSocket notification broadcast.
func SetNotifyHub(h *notifyhub.Hub) {
	stateMu.Lock()
	defer stateMu.Unlock()
	notifyHub = h
}

// GetNotifyHub returns the notify WebSocket hub, or nil if not set.
func GetNotifyHub() *notifyhub.Hub {
	stateMu.RLock()
	defer stateMu.RUnlock()
	return notifyHub
}

// SetDefaultFolderId sets the folder used when a request names none.
func SetDefaultFolderId(id string) {
	stateMu.Lock()
	defer stateMu.Unlock()
	defaultFolderId = id
}

func GetDefaultFolderId() string {
	stateMu.RLock()
	defer stateMu.RUnlock()
	return defaultFolderId
}

// SetStagingFolder sets where browser uploads are written before they are queued.
func SetStagingFolder(dir string) {
	if dir == "" {
		return
	}
	stateMu.Lock()
	defer stateMu.Unlock()
	stagingFolder = dir
}

func GetStagingFolder() string {
	stateMu.RLock()
	defer stateMu.RUnlock()
	return stagingFolder
}

// SetEndpoint records the upload URL for status reporting.
func SetEndpoint(u string) {
	stateMu.Lock()
	defer stateMu.Unlock()
	endpoint = u
}

func GetEndpoint() string {
	stateMu.RLock()
	defer stateMu.RUnlock()
	return endpoint
}
