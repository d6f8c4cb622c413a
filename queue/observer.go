package queue

import (
	"github.com/moyoez/localstore-go/types"
)

// Observer receives queue events. Calls are serialized by the queue and OnItemAdded for an
// item is always delivered before any other event for it. Implementations must not call
// Enqueue synchronously from a callback.
type Observer interface {
	OnItemAdded(item types.UploadItem)
	OnProgress(id string, percent float64)
	OnStatusChanged(id string, status types.UploadStatus)
	OnQueueDrained()
}

// SettledObserver is optionally implemented by observers that want the full record of an
// item once it reached Success or Failed.
type SettledObserver interface {
	OnItemSettled(item types.UploadItem)
}

// DrainStatsObserver is optionally implemented by observers that want the per-drain
// counters. OnDrainStats is delivered right before OnQueueDrained.
type DrainStatsObserver interface {
	OnDrainStats(stats types.DrainStats)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	ItemAdded     func(item types.UploadItem)
	Progress      func(id string, percent float64)
	StatusChanged func(id string, status types.UploadStatus)
	QueueDrained  func()
	ItemSettled   func(item types.UploadItem)
	DrainStats    func(stats types.DrainStats)
}

func (f ObserverFuncs) OnItemAdded(item types.UploadItem) {
	if f.ItemAdded != nil {
		f.ItemAdded(item)
	}
}

func (f ObserverFuncs) OnProgress(id string, percent float64) {
	if f.Progress != nil {
		f.Progress(id, percent)
	}
}

func (f ObserverFuncs) OnStatusChanged(id string, status types.UploadStatus) {
	if f.StatusChanged != nil {
		f.StatusChanged(id, status)
	}
}

func (f ObserverFuncs) OnQueueDrained() {
	if f.QueueDrained != nil {
		f.QueueDrained()
	}
}

func (f ObserverFuncs) OnItemSettled(item types.UploadItem) {
	if f.ItemSettled != nil {
		f.ItemSettled(item)
	}
}

func (f ObserverFuncs) OnDrainStats(stats types.DrainStats) {
	if f.DrainStats != nil {
		f.DrainStats(stats)
	}
}

// Observers fans events out to every member in order, including the optional interfaces.
type Observers []Observer

func (o Observers) OnItemAdded(item types.UploadItem) {
	for _, obs := range o {
		obs.OnItemAdded(item)
	}
}

func (o Observers) OnProgress(id string, percent float64) {
	for _, obs := range o {
		obs.OnProgress(id, percent)
	}
}

func (o Observers) OnStatusChanged(id string, status types.UploadStatus) {
	for _, obs := range o {
		obs.OnStatusChanged(id, status)
	}
}

func (o Observers) OnQueueDrained() {
	for _, obs := range o {
		obs.OnQueueDrained()
	}
}

func (o Observers) OnItemSettled(item types.UploadItem) {
	for _, obs := range o {
		if settled, ok := obs.(SettledObserver); ok {
			settled.OnItemSettled(item)
		}
	}
}

func (o Observers) OnDrainStats(stats types.DrainStats) {
	for _, obs := range o {
		if drained, ok := obs.(DrainStatsObserver); ok {
			drained.OnDrainStats(stats)
		}
	}
}

var (
	_ SettledObserver    = Observers(nil)
	_ DrainStatsObserver = Observers(nil)
	_ SettledObserver    = ObserverFuncs{}
	_ DrainStatsObserver = ObserverFuncs{}
)
