package queue

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/moyoez/localstore-go/tool"
	"github.com/moyoez/localstore-go/transfer"
	"github.com/moyoez/localstore-go/types"
)

// fakeTransport answers per file name with a scripted status. Names without a script succeed.
type fakeTransport struct {
	mu       sync.Mutex
	statuses map[string][]int // consumed one per attempt
	order    []string
	gates    map[string]chan struct{}
	progress []float64

	inFlight    int32
	maxInFlight int32
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		statuses: make(map[string][]int),
		gates:    make(map[string]chan struct{}),
		progress: []float64{25, 50, 100},
	}
}

func (f *fakeTransport) Upload(ctx context.Context, item types.UploadItem, progress func(percent float64)) error {
	cur := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		max := atomic.LoadInt32(&f.maxInFlight)
		if cur <= max || atomic.CompareAndSwapInt32(&f.maxInFlight, max, cur) {
			break
		}
	}

	f.mu.Lock()
	f.order = append(f.order, item.FileName)
	gate := f.gates[item.FileName]
	status := http.StatusOK
	if script := f.statuses[item.FileName]; len(script) > 0 {
		status = script[0]
		f.statuses[item.FileName] = script[1:]
	}
	steps := append([]float64(nil), f.progress...)
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return &transfer.TransportError{Op: "send upload request", Err: ctx.Err()}
		}
	}
	for _, p := range steps {
		progress(p)
	}
	switch {
	case status == -1:
		return &transfer.TransportError{Op: "send upload request", Err: errors.New("connection refused")}
	case !transfer.IsSuccessStatus(status):
		return &transfer.ServerRejectedError{StatusCode: status}
	}
	return nil
}

func (f *fakeTransport) Order() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

// recorder keeps every observer event as a string and checks invariants as they arrive.
type recorder struct {
	t         *testing.T
	mu        sync.Mutex
	events    []string
	status    map[string]types.UploadStatus
	names     map[string]string
	progress  map[string][]float64
	uploading int
	drained   int
	settled   []types.UploadItem
	stats     []types.DrainStats
	drainedCh chan struct{}
}

func newRecorder(t *testing.T) *recorder {
	return &recorder{
		t:         t,
		status:    make(map[string]types.UploadStatus),
		names:     make(map[string]string),
		progress:  make(map[string][]float64),
		drainedCh: make(chan struct{}, 16),
	}
}

func (r *recorder) OnItemAdded(item types.UploadItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item.Status != types.StatusPending {
		r.t.Errorf("item %s added with status %s", item.FileName, item.Status)
	}
	if _, dup := r.names[item.ID]; dup {
		r.t.Errorf("duplicate id %s", item.ID)
	}
	r.names[item.ID] = item.FileName
	r.status[item.ID] = item.Status
	r.events = append(r.events, "added:"+item.FileName)
}

func (r *recorder) OnProgress(id string, percent float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status[id] != types.StatusUploading {
		r.t.Errorf("progress for %s while %s", r.names[id], r.status[id])
	}
	if percent < 0 || percent > 100 {
		r.t.Errorf("progress out of range: %v", percent)
	}
	if prev := r.progress[id]; len(prev) > 0 && percent < prev[len(prev)-1] {
		r.t.Errorf("progress decreased for %s: %v -> %v", r.names[id], prev[len(prev)-1], percent)
	}
	r.progress[id] = append(r.progress[id], percent)
}

func (r *recorder) OnStatusChanged(id string, status types.UploadStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name, ok := r.names[id]
	if !ok {
		r.t.Errorf("status %s for unknown item %s", status, id)
	}
	if r.status[id].IsTerminal() {
		r.t.Errorf("status change after terminal state for %s", name)
	}
	if status == types.StatusUploading {
		r.uploading++
		if r.uploading > 1 {
			r.t.Errorf("more than one item uploading when %s started", name)
		}
	} else if r.status[id] == types.StatusUploading {
		r.uploading--
	}
	r.status[id] = status
	r.events = append(r.events, string(status)+":"+name)
}

func (r *recorder) OnQueueDrained() {
	r.mu.Lock()
	r.drained++
	r.events = append(r.events, "drained")
	r.mu.Unlock()
	r.drainedCh <- struct{}{}
}

func (r *recorder) OnItemSettled(item types.UploadItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settled = append(r.settled, item)
}

func (r *recorder) OnDrainStats(stats types.DrainStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = append(r.stats, stats)
}

func (r *recorder) statusOf(name string) types.UploadStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, n := range r.names {
		if n == name {
			return r.status[id]
		}
	}
	return ""
}

func (r *recorder) drainedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drained
}

func files(sizes map[string]int, names ...string) []types.FileHandle {
	out := make([]types.FileHandle, 0, len(names))
	for _, name := range names {
		out = append(out, tool.NewMemoryFile(name, make([]byte, sizes[name])))
	}
	return out
}

func waitIdle(t *testing.T, q *UploadQueue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.Wait(ctx); err != nil {
		t.Fatalf("queue did not drain: %v", err)
	}
}

func TestQueueScenarioMixedResults(t *testing.T) {
	transport := newFakeTransport()
	transport.statuses["B"] = []int{http.StatusInternalServerError}
	rec := newRecorder(t)
	q := New(transport, rec)

	sizes := map[string]int{"A": 10, "B": 20, "C": 30}
	added := q.Enqueue(files(sizes, "A", "B", "C"), "")
	if len(added) != 3 {
		t.Fatalf("expected 3 items, got %d", len(added))
	}
	if added[1].Size != 20 || added[2].FileName != "C" {
		t.Errorf("unexpected records: %+v", added)
	}
	waitIdle(t, q)

	if got := transport.Order(); fmt.Sprint(got) != "[A B C]" {
		t.Errorf("upload order = %v, want [A B C]", got)
	}
	want := map[string]types.UploadStatus{"A": types.StatusSuccess, "B": types.StatusFailed, "C": types.StatusSuccess}
	for name, status := range want {
		if got := rec.statusOf(name); got != status {
			t.Errorf("%s status = %s, want %s", name, got, status)
		}
	}
	if rec.drainedCount() != 1 {
		t.Errorf("drained fired %d times, want 1", rec.drainedCount())
	}
	rec.mu.Lock()
	last := rec.events[len(rec.events)-1]
	beforeLast := rec.events[len(rec.events)-2]
	rec.mu.Unlock()
	if last != "drained" || beforeLast != "success:C" {
		t.Errorf("drained must follow C settling, events tail = %s, %s", beforeLast, last)
	}

	stats := q.LastDrain()
	if stats == nil || stats.TotalFiles != 3 || stats.SuccessFiles != 2 || stats.FailedFiles != 1 {
		t.Fatalf("unexpected drain stats: %+v", stats)
	}
	if len(stats.FailedFileIds) != 1 || stats.FailedFileIds[0] != added[1].ID {
		t.Errorf("failed ids = %v, want [%s]", stats.FailedFileIds, added[1].ID)
	}
	if len(q.Snapshot()) != 0 {
		t.Errorf("queue not empty after drain: %+v", q.Snapshot())
	}
	if q.Active() {
		t.Error("queue still active after drain")
	}
}

func TestQueueEnqueueDuringDrainAppends(t *testing.T) {
	transport := newFakeTransport()
	gateA := make(chan struct{})
	transport.gates["A"] = gateA
	rec := newRecorder(t)
	q := New(transport, rec)

	q.Enqueue(files(nil, "A"), "")
	// A is held at the transport, the second call must only append.
	q.Enqueue(files(nil, "B"), "")
	if !q.Active() {
		t.Fatal("queue should be active while A is in flight")
	}
	pending := q.Snapshot()
	if len(pending) != 2 || pending[0].FileName != "A" || pending[1].FileName != "B" {
		t.Fatalf("unexpected snapshot: %+v", pending)
	}
	if pending[1].Status != types.StatusPending {
		t.Errorf("B status = %s, want pending", pending[1].Status)
	}
	close(gateA)
	waitIdle(t, q)

	if got := transport.Order(); fmt.Sprint(got) != "[A B]" {
		t.Errorf("upload order = %v, want [A B]", got)
	}
	if max := atomic.LoadInt32(&transport.maxInFlight); max != 1 {
		t.Errorf("max concurrent uploads = %d, want 1", max)
	}
	if rec.drainedCount() != 1 {
		t.Errorf("drained fired %d times, want 1", rec.drainedCount())
	}
}

func TestQueueFIFOWithConcurrentProducers(t *testing.T) {
	transport := newFakeTransport()
	rec := newRecorder(t)
	q := New(transport, rec)

	var wg sync.WaitGroup
	var orderMu sync.Mutex
	var enqueued []string
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				name := fmt.Sprintf("p%d-%d", p, i)
				// hold orderMu so the recorded order equals the append order.
				orderMu.Lock()
				q.Enqueue(files(nil, name), "")
				enqueued = append(enqueued, name)
				orderMu.Unlock()
			}
		}(p)
	}
	wg.Wait()
	waitIdle(t, q)

	got := transport.Order()
	if fmt.Sprint(got) != fmt.Sprint(enqueued) {
		t.Errorf("upload order differs from enqueue order:\n got %v\nwant %v", got, enqueued)
	}
	if max := atomic.LoadInt32(&transport.maxInFlight); max != 1 {
		t.Errorf("max concurrent uploads = %d, want 1", max)
	}
}

func TestQueueEmptyEnqueueIsNoop(t *testing.T) {
	transport := newFakeTransport()
	rec := newRecorder(t)
	q := New(transport, rec)

	if added := q.Enqueue(nil, "1"); added != nil {
		t.Errorf("expected nil for empty batch, got %v", added)
	}
	if added := q.Enqueue([]types.FileHandle{}, "1"); added != nil {
		t.Errorf("expected nil for empty batch, got %v", added)
	}
	if q.Active() {
		t.Error("empty enqueue started a drain")
	}
	if rec.drainedCount() != 0 || len(rec.events) != 0 {
		t.Errorf("unexpected events: %v", rec.events)
	}
	if q.LastDrain() != nil {
		t.Error("LastDrain should be nil before any drain")
	}
}

func TestQueueTransportErrorDoesNotAbort(t *testing.T) {
	transport := newFakeTransport()
	transport.statuses["A"] = []int{-1}
	rec := newRecorder(t)
	q := New(transport, rec)

	q.Enqueue(files(nil, "A", "B"), "9")
	waitIdle(t, q)

	if rec.statusOf("A") != types.StatusFailed || rec.statusOf("B") != types.StatusSuccess {
		t.Errorf("statuses A=%s B=%s", rec.statusOf("A"), rec.statusOf("B"))
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.settled) != 2 {
		t.Fatalf("settled %d items, want 2", len(rec.settled))
	}
	failed := rec.settled[0]
	if !strings.Contains(failed.Error, "connection refused") || failed.FinishedAt.IsZero() {
		t.Errorf("failed record incomplete: %+v", failed)
	}
	if rec.settled[1].FolderID != "9" || rec.settled[1].Progress != 100 {
		t.Errorf("success record = %+v", rec.settled[1])
	}
}

func TestQueueProgressIsFilteredAndMonotonic(t *testing.T) {
	transport := newFakeTransport()
	transport.progress = []float64{-5, 10, 5, 40, 40, 250}
	rec := newRecorder(t)
	q := New(transport, rec)

	added := q.Enqueue(files(nil, "A"), "")
	waitIdle(t, q)

	rec.mu.Lock()
	got := rec.progress[added[0].ID]
	rec.mu.Unlock()
	if fmt.Sprint(got) != "[10 40 100]" {
		t.Errorf("progress = %v, want [10 40 100]", got)
	}
}

func TestQueueRetryIsBoundedAndOptIn(t *testing.T) {
	transport := newFakeTransport()
	transport.statuses["A"] = []int{http.StatusServiceUnavailable, http.StatusOK}
	transport.statuses["B"] = []int{http.StatusBadRequest, http.StatusOK}
	transport.statuses["C"] = []int{-1, -1, -1, http.StatusOK}
	rec := newRecorder(t)
	q := New(transport, rec, WithMaxAttempts(3), WithBackoff(func(int) time.Duration { return time.Millisecond }))

	q.Enqueue(files(nil, "A", "B", "C"), "")
	waitIdle(t, q)

	if got := transport.Order(); fmt.Sprint(got) != "[A A B C C C]" {
		t.Errorf("attempt order = %v", got)
	}
	if rec.statusOf("A") != types.StatusSuccess {
		t.Errorf("A should succeed on retry, got %s", rec.statusOf("A"))
	}
	if rec.statusOf("B") != types.StatusFailed {
		t.Errorf("B (400) must not be retried, got %s", rec.statusOf("B"))
	}
	if rec.statusOf("C") != types.StatusFailed {
		t.Errorf("C should fail after 3 attempts, got %s", rec.statusOf("C"))
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, item := range rec.settled {
		if item.FileName == "C" && item.Attempts != 3 {
			t.Errorf("C attempts = %d, want 3", item.Attempts)
		}
	}
}

func TestQueueDefaultHasNoRetry(t *testing.T) {
	transport := newFakeTransport()
	transport.statuses["A"] = []int{http.StatusServiceUnavailable, http.StatusOK}
	q := New(transport, nil)

	q.Enqueue(files(nil, "A"), "")
	waitIdle(t, q)
	if got := transport.Order(); len(got) != 1 {
		t.Errorf("expected a single attempt, got %v", got)
	}
}

func TestQueueUniqueIDsForSameName(t *testing.T) {
	transport := newFakeTransport()
	q := New(transport, nil)
	added := q.Enqueue(files(nil, "same.txt", "same.txt", "same.txt"), "")
	waitIdle(t, q)

	seen := make(map[string]bool)
	for _, item := range added {
		if item.ID == "" || seen[item.ID] {
			t.Fatalf("ids not unique: %+v", added)
		}
		seen[item.ID] = true
	}
}

func TestQueueRestartsAfterDrain(t *testing.T) {
	transport := newFakeTransport()
	rec := newRecorder(t)
	q := New(transport, rec)

	q.Enqueue(files(nil, "A"), "")
	<-rec.drainedCh
	waitIdle(t, q)
	q.Enqueue(files(nil, "B"), "")
	<-rec.drainedCh
	waitIdle(t, q)

	if rec.drainedCount() != 2 {
		t.Errorf("drained fired %d times, want 2", rec.drainedCount())
	}
	if stats := q.LastDrain(); stats == nil || stats.TotalFiles != 1 {
		t.Errorf("last drain should only count B: %+v", stats)
	}
}

type releasingFile struct {
	types.FileHandle
	released atomic.Int32
}

func (f *releasingFile) Release() error {
	f.released.Add(1)
	return nil
}

func TestQueueReleasesStagedHandles(t *testing.T) {
	transport := newFakeTransport()
	transport.statuses["bad"] = []int{http.StatusInternalServerError}
	q := New(transport, nil)

	good := &releasingFile{FileHandle: tool.NewMemoryFile("good", []byte("x"))}
	bad := &releasingFile{FileHandle: tool.NewMemoryFile("bad", []byte("y"))}
	q.Enqueue([]types.FileHandle{good, bad}, "")
	waitIdle(t, q)

	if good.released.Load() != 1 || bad.released.Load() != 1 {
		t.Errorf("release counts good=%d bad=%d, want 1 each", good.released.Load(), bad.released.Load())
	}
}

func TestQueueCloseFailsPending(t *testing.T) {
	transport := newFakeTransport()
	transport.gates["A"] = make(chan struct{}) // never opened
	rec := newRecorder(t)
	q := New(transport, rec)

	q.Enqueue(files(nil, "A", "B"), "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if rec.statusOf("A") != types.StatusFailed || rec.statusOf("B") != types.StatusFailed {
		t.Errorf("statuses after close A=%s B=%s", rec.statusOf("A"), rec.statusOf("B"))
	}
	if added := q.Enqueue(files(nil, "C"), ""); added != nil {
		t.Errorf("enqueue after close should be ignored, got %v", added)
	}
}

func TestDefaultBackoffBounds(t *testing.T) {
	for attempt := 0; attempt < 10; attempt++ {
		d := DefaultBackoff(attempt)
		if d < 200*time.Millisecond || d > 64*200*time.Millisecond+200*time.Millisecond {
			t.Errorf("DefaultBackoff(%d) = %s out of bounds", attempt, d)
		}
	}
}
