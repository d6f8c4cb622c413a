package notify

import (
	"fmt"
	"sync"

	"github.com/moyoez/localstore-go/tool"
	"github.com/moyoez/localstore-go/types"
)

// Broadcaster is implemented by the websocket hub.
type Broadcaster interface {
	Broadcast(notification *types.Notification)
}

// Notifier turns queue events into notifications and hands them to send.
// Terminal statuses are reported from OnItemSettled so the full record travels with them.
type Notifier struct {
	send            func(*types.Notification)
	includeProgress bool

	mu    sync.Mutex
	names map[string]string
	stats *types.DrainStats
}

// NewNotifier creates a notifier. Progress notifications are only produced when includeProgress is set.
func NewNotifier(send func(*types.Notification), includeProgress bool) *Notifier {
	return &Notifier{
		send:            send,
		includeProgress: includeProgress,
		names:           make(map[string]string),
	}
}

// NewHubObserver broadcasts every queue event, progress included, to websocket clients.
func NewHubObserver(hub Broadcaster) *Notifier {
	return NewNotifier(hub.Broadcast, true)
}

func (n *Notifier) OnItemAdded(item types.UploadItem) {
	n.mu.Lock()
	n.names[item.ID] = item.FileName
	n.mu.Unlock()
	n.send(ItemAddedNotification(item))
}

func (n *Notifier) OnProgress(id string, percent float64) {
	if !n.includeProgress {
		return
	}
	n.send(&types.Notification{
		Type: types.NotifyTypeUploadProgress,
		Data: map[string]any{
			"id":       id,
			"fileName": n.name(id),
			"progress": percent,
		},
	})
}

func (n *Notifier) OnStatusChanged(id string, status types.UploadStatus) {
	if status.IsTerminal() {
		return
	}
	name := n.name(id)
	n.send(&types.Notification{
		Type:    types.NotifyTypeUploadStatus,
		Title:   "Uploading",
		Message: name,
		Data: map[string]any{
			"id":       id,
			"fileName": name,
			"status":   status,
		},
	})
}

func (n *Notifier) OnItemSettled(item types.UploadItem) {
	n.mu.Lock()
	delete(n.names, item.ID)
	n.mu.Unlock()
	n.send(ItemSettledNotification(item))
}

func (n *Notifier) OnDrainStats(stats types.DrainStats) {
	n.mu.Lock()
	n.stats = &stats
	n.mu.Unlock()
}

func (n *Notifier) OnQueueDrained() {
	n.mu.Lock()
	stats := n.stats
	n.stats = nil
	n.mu.Unlock()
	n.send(DrainedNotification(stats))
}

func (n *Notifier) name(id string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.names[id]
}

// ItemAddedNotification builds the upload_added event.
func ItemAddedNotification(item types.UploadItem) *types.Notification {
	return &types.Notification{
		Type:    types.NotifyTypeUploadAdded,
		Title:   "Upload Queued",
		Message: fmt.Sprintf("%s (%s)", item.FileName, tool.FormatFileSize(item.Size)),
		Data: map[string]any{
			"id":       item.ID,
			"fileName": item.FileName,
			"size":     item.Size,
			"sizeText": tool.FormatFileSize(item.Size),
			"folderId": item.FolderID,
			"status":   item.Status,
		},
	}
}

// ItemSettledNotification builds the upload_status event for an item that reached Success or Failed.
func ItemSettledNotification(item types.UploadItem) *types.Notification {
	notification := &types.Notification{
		Type: types.NotifyTypeUploadStatus,
		Data: map[string]any{
			"id":       item.ID,
			"fileName": item.FileName,
			"size":     item.Size,
			"status":   item.Status,
			"attempts": item.Attempts,
		},
	}
	if item.Status == types.StatusSuccess {
		notification.Title = "Upload Completed"
		notification.Message = fmt.Sprintf("%s uploaded", item.FileName)
	} else {
		notification.Title = "Upload Failed"
		notification.Message = fmt.Sprintf("%s: %s", item.FileName, item.Error)
		notification.Data["error"] = item.Error
	}
	return notification
}

// DrainedNotification builds the queue_drained event. stats may be nil.
func DrainedNotification(stats *types.DrainStats) *types.Notification {
	notification := &types.Notification{
		Type:  types.NotifyTypeQueueDrained,
		Title: "Uploads Finished",
		Data:  map[string]any{},
	}
	if stats == nil {
		notification.Message = "Upload queue is empty"
		return notification
	}
	notification.Message = fmt.Sprintf("%d of %d files uploaded", stats.SuccessFiles, stats.TotalFiles)
	failed := stats.FailedFileIds
	if len(failed) > MaxNotifyFailedIds {
		failed = failed[:MaxNotifyFailedIds]
	}
	notification.Data["totalFiles"] = stats.TotalFiles
	notification.Data["successFiles"] = stats.SuccessFiles
	notification.Data["failedFiles"] = stats.FailedFiles
	notification.Data["failedFileIds"] = failed
	return notification
}

// SocketObserver forwards queue events to a unix socket listener from a background goroutine,
// so a slow or missing listener never holds up the queue. Progress is not forwarded.
type SocketObserver struct {
	*Notifier
	socketPath string
	pending    chan *types.Notification
	done       chan struct{}

	mu     sync.Mutex
	closed bool
}

// socketBacklog is how many notifications may wait for the socket before new ones are dropped.
const socketBacklog = 64

// NewSocketObserver starts the sender goroutine. Call Close to stop it.
func NewSocketObserver(socketPath string) *SocketObserver {
	s := &SocketObserver{
		socketPath: socketPath,
		pending:    make(chan *types.Notification, socketBacklog),
		done:       make(chan struct{}),
	}
	s.Notifier = NewNotifier(s.enqueue, false)
	go s.run()
	return s
}

func (s *SocketObserver) enqueue(notification *types.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.pending <- notification:
	default:
		tool.DefaultLogger.Warnf("[UnixSocket] Backlog full, dropping %s notification", notification.Type)
	}
}

func (s *SocketObserver) run() {
	defer close(s.done)
	for notification := range s.pending {
		if err := SendNotification(notification, s.socketPath); err != nil {
			tool.DefaultLogger.Debugf("[UnixSocket] Failed to send %s notification: %v", notification.Type, err)
		}
	}
}

// Close flushes queued notifications and stops the sender. Events after Close are dropped.
func (s *SocketObserver) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.pending)
	}
	s.mu.Unlock()
	<-s.done
}

// LogObserver writes queue transitions to DefaultLogger. Progress is logged at debug level.
type LogObserver struct{}

func (LogObserver) OnItemAdded(item types.UploadItem) {
	tool.DefaultLogger.Infof("[Upload] Queued %s (%s) as %s", item.FileName, tool.FormatFileSize(item.Size), item.ID)
}

func (LogObserver) OnProgress(id string, percent float64) {
	tool.DefaultLogger.Debugf("[Upload] %s: %.1f%%", id, percent)
}

func (LogObserver) OnStatusChanged(id string, status types.UploadStatus) {
	tool.DefaultLogger.Debugf("[Upload] %s -> %s", id, status)
}

func (LogObserver) OnQueueDrained() {
	tool.DefaultLogger.Info("[Upload] Queue drained")
}
