package share

import (
	"sort"
	"time"

	ttlworker "github.com/FloatTech/ttl"

	"github.com/moyoez/localstore-go/queue"
	"github.com/moyoez/localstore-go/tool"
	"github.com/moyoez/localstore-go/types"
)

const (
	DefaultTTL = 300 * time.Second // set 300 seconds.
)

// History remembers settled uploads for a while so the local UI can show what happened
// after the items left the queue.
type History struct {
	queue.ObserverFuncs
	items *ttlworker.Cache[string, types.UploadItem]
}

// NewHistory keeps settled items for ttl. ttl <= 0 uses DefaultTTL.
func NewHistory(ttl time.Duration) *History {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &History{
		items: ttlworker.NewCache[string, types.UploadItem](ttl),
	}
}

func (h *History) OnItemSettled(item types.UploadItem) {
	item.File = nil
	h.items.Set(item.ID, item)
	tool.DefaultLogger.Debugf("Set upload history: %s (%s)", item.ID, item.Status)
}

// Get returns the settled record for id.
func (h *History) Get(id string) (types.UploadItem, bool) {
	item := h.items.Get(id)
	return item, item.ID != ""
}

// Delete forgets id.
func (h *History) Delete(id string) {
	h.items.Delete(id)
}

// List returns the remembered items, most recently finished first.
func (h *History) List() []types.UploadItem {
	items := make([]types.UploadItem, 0)
	err := h.items.Range(func(_ string, v types.UploadItem) error {
		items = append(items, v)
		return nil
	})
	if err != nil {
		return nil
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].FinishedAt.After(items[j].FinishedAt)
	})
	return items
}
