package batcher

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Mode identifies how a destination group was sent
type Mode string

const (
	ModeSingle   Mode = "single"
	ModeCombined Mode = "combined"
)

// Transport performs the actual exchange with the remote endpoint
type Transport interface {
	// SendSingle sends one raw payload to destination
	SendSingle(ctx context.Context, destination string, body []byte) ([]byte, error)

	// SendCombined sends a JSON array of items payloads to the combined variant of destination
	SendCombined(ctx context.Context, destination string, body []byte, items int) ([]byte, error)
}

// Recorder receives dispatcher measurements
type Recorder interface {
	RecordSubmit(destination string)
	RecordFlush(items, groups int, duration time.Duration)
	RecordDispatch(mode Mode, items int, duration time.Duration, err error)
}

// NoopRecorder discards all measurements
type NoopRecorder struct{}

func (NoopRecorder) RecordSubmit(string)                            {}
func (NoopRecorder) RecordFlush(int, int, time.Duration)            {}
func (NoopRecorder) RecordDispatch(Mode, int, time.Duration, error) {}

// PendingItem represents a single submitted request waiting for dispatch
type PendingItem struct {
	ID          string    // request ID, echoed in logs
	Destination string    // grouping key
	Payload     []byte    // opaque serialized body
	EnqueuedAt  time.Time // submission time
	result      *Result
}

// newPendingItem creates an item with a fresh unsettled Result
func newPendingItem(destination string, payload []byte) *PendingItem {
	id := uuid.NewString()
	return &PendingItem{
		ID:          id,
		Destination: destination,
		Payload:     payload,
		EnqueuedAt:  time.Now(),
		result:      newResult(id),
	}
}

// Result returns the item's result handle
func (p *PendingItem) Result() *Result {
	return p.result
}

// Batch maps a destination to the items addressed to it, in drain order
type Batch map[string][]*PendingItem

// GroupByDestination groups drained items by destination.
// The relative order of items within each destination is preserved.
func GroupByDestination(items []*PendingItem) Batch {
	batch := make(Batch)
	for _, item := range items {
		batch[item.Destination] = append(batch[item.Destination], item)
	}
	return batch
}

// Size returns the total number of items in the batch
func (b Batch) Size() int {
	total := 0
	for _, items := range b {
		total += len(items)
	}
	return total
}
