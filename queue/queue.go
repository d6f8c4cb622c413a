// Package queue serializes file uploads: items are sent one at a time in enqueue order
// and a failing item never stops the items behind it.
package queue

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/moyoez/localstore-go/tool"
	"github.com/moyoez/localstore-go/transfer"
	"github.com/moyoez/localstore-go/types"
)

// Transport performs the network upload of one item. progress may be called from any
// goroutine, also after Upload returned; late or out-of-order values are dropped by the queue.
type Transport interface {
	Upload(ctx context.Context, item types.UploadItem, progress func(percent float64)) error
}

// Option configures an UploadQueue.
type Option func(*UploadQueue)

// WithMaxAttempts allows up to n attempts per item. n <= 1 means a single attempt.
func WithMaxAttempts(n int) Option {
	return func(q *UploadQueue) {
		if n < 1 {
			n = 1
		}
		q.maxAttempts = n
	}
}

// WithBackoff replaces DefaultBackoff between attempts.
func WithBackoff(backoff func(attempt int) time.Duration) Option {
	return func(q *UploadQueue) {
		if backoff != nil {
			q.backoff = backoff
		}
	}
}

// WithIDGenerator replaces the uuid generator used for item ids.
func WithIDGenerator(gen func() string) Option {
	return func(q *UploadQueue) {
		if gen != nil {
			q.newID = gen
		}
	}
}

// UploadQueue is a FIFO of uploads drained by at most one goroutine.
type UploadQueue struct {
	transport   Transport
	observer    Observer
	maxAttempts int
	backoff     func(attempt int) time.Duration
	newID       func() string

	ctx    context.Context
	cancel context.CancelFunc

	// emitMu serializes observer delivery and is always taken before mu.
	emitMu sync.Mutex

	mu        sync.Mutex
	items     []*types.UploadItem
	active    bool
	idle      chan struct{}
	stats     types.DrainStats
	lastDrain *types.DrainStats
}

// New creates a queue. observer may be nil.
func New(transport Transport, observer Observer, opts ...Option) *UploadQueue {
	if observer == nil {
		observer = ObserverFuncs{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &UploadQueue{
		transport:   transport,
		observer:    observer,
		maxAttempts: 1,
		backoff:     DefaultBackoff,
		newID:       tool.GenerateRandomUUID,
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends one Pending item per file and starts draining if the queue was idle.
// An empty batch is a no-op. The returned records are copies.
func (q *UploadQueue) Enqueue(files []types.FileHandle, folderID string) []types.UploadItem {
	if len(files) == 0 {
		return nil
	}

	q.emitMu.Lock()
	q.mu.Lock()
	if q.ctx.Err() != nil {
		q.mu.Unlock()
		q.emitMu.Unlock()
		tool.DefaultLogger.Warnf("[Queue] Enqueue after close ignored (%d files)", len(files))
		return nil
	}
	now := time.Now()
	added := make([]types.UploadItem, 0, len(files))
	for _, file := range files {
		if file == nil {
			continue
		}
		item := &types.UploadItem{
			ID:        q.newID(),
			File:      file,
			FileName:  file.Name(),
			Size:      file.Size(),
			FolderID:  folderID,
			Status:    types.StatusPending,
			CreatedAt: now,
		}
		q.items = append(q.items, item)
		added = append(added, *item)
	}
	// the flag is claimed here, before the drain goroutine exists, so a second Enqueue
	// arriving mid-drain only appends.
	start := len(added) > 0 && !q.active
	if start {
		q.active = true
		q.idle = make(chan struct{})
		q.stats = types.DrainStats{}
	}
	pending := len(q.items)
	q.mu.Unlock()

	for _, item := range added {
		q.observer.OnItemAdded(item)
	}
	q.emitMu.Unlock()

	tool.DefaultLogger.Debugf("[Queue] Enqueued %d files (pending=%d, folder=%q)", len(added), pending, folderID)
	if start {
		go q.drain()
	}
	return added
}

// drain uploads the head item until the queue is empty. Only the goroutine that
// set the active flag runs it.
func (q *UploadQueue) drain() {
	for {
		q.emitMu.Lock()
		q.mu.Lock()
		if len(q.items) == 0 {
			q.active = false
			stats := q.stats
			q.lastDrain = &stats
			idle := q.idle
			q.mu.Unlock()

			if obs, ok := q.observer.(DrainStatsObserver); ok {
				obs.OnDrainStats(stats)
			}
			q.observer.OnQueueDrained()
			q.emitMu.Unlock()
			close(idle)
			tool.DefaultLogger.Infof("[Queue] Drained: %d uploaded, %d failed", stats.SuccessFiles, stats.FailedFiles)
			return
		}
		item := q.items[0]
		item.Status = types.StatusUploading
		id := item.ID
		q.mu.Unlock()
		q.observer.OnStatusChanged(id, types.StatusUploading)
		q.emitMu.Unlock()

		err := q.uploadItem(item)
		q.settle(item, err)
	}
}

// uploadItem runs the transport for item, retrying when allowed. Errors are returned, never panicked.
func (q *UploadQueue) uploadItem(item *types.UploadItem) error {
	if err := q.ctx.Err(); err != nil {
		return &transfer.TransportError{Op: "upload cancelled", Err: err}
	}
	var err error
	for attempt := 1; attempt <= q.maxAttempts; attempt++ {
		q.mu.Lock()
		item.Attempts = attempt
		snapshot := *item
		q.mu.Unlock()

		err = q.transport.Upload(q.ctx, snapshot, func(percent float64) {
			q.reportProgress(item, percent)
		})
		if err == nil {
			return nil
		}
		if attempt == q.maxAttempts || !retryable(err) || q.ctx.Err() != nil {
			break
		}
		delay := q.backoff(attempt)
		tool.DefaultLogger.Warnf("[Queue] Upload of %s failed (attempt %d/%d), retrying in %s: %v",
			snapshot.FileName, attempt, q.maxAttempts, delay, err)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-q.ctx.Done():
			timer.Stop()
			return errors.Join(err, q.ctx.Err())
		}
	}
	return err
}

// reportProgress clamps percent to [0,100] and forwards it only while the item is
// uploading and only if it advances.
func (q *UploadQueue) reportProgress(item *types.UploadItem, percent float64) {
	if math.IsNaN(percent) {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	q.emitMu.Lock()
	defer q.emitMu.Unlock()
	q.mu.Lock()
	if item.Status != types.StatusUploading || percent <= item.Progress {
		q.mu.Unlock()
		return
	}
	item.Progress = percent
	id := item.ID
	q.mu.Unlock()
	q.observer.OnProgress(id, percent)
}

// settle records the terminal status and removes the head item.
func (q *UploadQueue) settle(item *types.UploadItem, err error) {
	q.emitMu.Lock()
	q.mu.Lock()
	if err != nil {
		item.Status = types.StatusFailed
		item.Error = err.Error()
		q.stats.FailedFiles++
		q.stats.FailedFileIds = append(q.stats.FailedFileIds, item.ID)
	} else {
		item.Status = types.StatusSuccess
		item.Progress = 100
		q.stats.SuccessFiles++
	}
	q.stats.TotalFiles++
	item.FinishedAt = time.Now()
	if len(q.items) > 0 && q.items[0] == item {
		q.items[0] = nil
		q.items = q.items[1:]
	}
	record := *item
	q.mu.Unlock()

	q.observer.OnStatusChanged(record.ID, record.Status)
	if obs, ok := q.observer.(SettledObserver); ok {
		obs.OnItemSettled(record)
	}
	q.emitMu.Unlock()

	if err != nil {
		tool.DefaultLogger.Errorf("[Queue] Upload failed: %s (%s): %v", record.FileName, tool.FormatFileSize(record.Size), err)
	} else {
		tool.DefaultLogger.Infof("[Queue] Upload succeeded: %s (%s)", record.FileName, tool.FormatFileSize(record.Size))
	}

	if releaser, ok := record.File.(types.Releaser); ok {
		if relErr := releaser.Release(); relErr != nil {
			tool.DefaultLogger.Warnf("[Queue] Failed to release %s: %v", record.FileName, relErr)
		}
	}
}

// Active reports whether a drain is running.
func (q *UploadQueue) Active() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

// Snapshot returns copies of the items still in the queue, head first.
func (q *UploadQueue) Snapshot() []types.UploadItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]types.UploadItem, 0, len(q.items))
	for _, item := range q.items {
		out = append(out, *item)
	}
	return out
}

// LastDrain returns the counters of the most recent completed drain, or nil.
func (q *UploadQueue) LastDrain() *types.DrainStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.lastDrain == nil {
		return nil
	}
	stats := *q.lastDrain
	stats.FailedFileIds = append([]string(nil), q.lastDrain.FailedFileIds...)
	return &stats
}

// Wait blocks until no drain is running or ctx is done.
func (q *UploadQueue) Wait(ctx context.Context) error {
	for {
		q.mu.Lock()
		if !q.active {
			q.mu.Unlock()
			return nil
		}
		idle := q.idle
		q.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops accepting files, cancels the in-flight transfer and waits for the drain to
// finish. Items still pending fail with the cancellation error.
func (q *UploadQueue) Close(ctx context.Context) error {
	q.cancel()
	return q.Wait(ctx)
}
