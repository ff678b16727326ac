package batcher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"bulkgofer/internal/payload"
)

// Default dispatcher settings
const (
	DefaultInterval    = 200 * time.Millisecond
	DefaultConcurrency = 4
)

// Options configures a Dispatcher
type Options struct {
	Interval    time.Duration // time between flush cycles
	Concurrency int           // destination groups dispatched in parallel per flush
	Logger      zerolog.Logger
	Recorder    Recorder
	OnFault     func(error) // called on queue invariant violations; panics when nil
}

// Dispatcher drains the intake queue on a fixed interval and sends one
// request per destination.
type Dispatcher struct {
	queue       *IntakeQueue
	transport   Transport
	interval    atomic.Int64 // nanoseconds
	concurrency int
	recorder    Recorder
	onFault     func(error)
	logger      zerolog.Logger

	flushMu  sync.Mutex // at most one flush body at a time
	stateMu  sync.Mutex
	started  bool
	submitMu sync.RWMutex // Submit holds it shared across the stopped check and the enqueue
	stopped  atomic.Bool
	stopCh   chan struct{}
	resetCh  chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	doubleSettles atomic.Int64
}

// NewDispatcher creates a new dispatcher sending through transport
func NewDispatcher(transport Transport, opts Options) *Dispatcher {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Recorder == nil {
		opts.Recorder = NoopRecorder{}
	}
	if opts.OnFault == nil {
		opts.OnFault = func(err error) { panic(err) }
	}

	d := &Dispatcher{
		queue:       NewIntakeQueue(),
		transport:   transport,
		concurrency: opts.Concurrency,
		recorder:    opts.Recorder,
		onFault:     opts.OnFault,
		logger:      opts.Logger.With().Str("component", "batcher").Logger(),
		stopCh:      make(chan struct{}),
		resetCh:     make(chan struct{}, 1),
	}
	d.interval.Store(int64(opts.Interval))
	return d
}

// Submit queues a payload for destination and returns its result handle.
// It never blocks on the network. Once Stop has returned every Submit is
// rejected, so nothing can land in the queue after Close's final flush.
func (d *Dispatcher) Submit(destination string, body []byte) *Result {
	d.submitMu.RLock()
	defer d.submitMu.RUnlock()

	if d.stopped.Load() {
		item := newPendingItem(destination, body)
		item.result.reject(ErrDispatcherStopped)
		return item.result
	}

	d.recorder.RecordSubmit(destination)
	return d.queue.Enqueue(destination, body)
}

// Start begins the flush cycle. Calling Start more than once, or after Stop, does nothing.
func (d *Dispatcher) Start() {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()

	if d.started || d.stopped.Load() {
		return
	}
	d.started = true

	d.wg.Add(1)
	go d.run()

	d.logger.Info().
		Dur("interval", d.Interval()).
		Int("concurrency", d.concurrency).
		Msg("dispatcher started")
}

// run triggers a flush on every tick until Stop
func (d *Dispatcher) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case <-d.resetCh:
			ticker.Reset(d.Interval())
		case <-ticker.C:
			d.Flush(context.Background())
		}
	}
}

// Interval returns the time between flush cycles
func (d *Dispatcher) Interval() time.Duration {
	return time.Duration(d.interval.Load())
}

// SetInterval changes the time between flush cycles. A running cycle picks
// up the new interval on its next tick. Non-positive values are ignored.
func (d *Dispatcher) SetInterval(interval time.Duration) {
	if interval <= 0 || interval == d.Interval() {
		return
	}
	d.interval.Store(int64(interval))

	select {
	case d.resetCh <- struct{}{}:
	default:
	}

	d.logger.Info().Dur("interval", interval).Msg("flush interval changed")
}

// Stop halts future flush cycles and waits for an in-flight flush to finish.
// Queued items are left unsettled. Stop is safe to call more than once.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.submitMu.Lock()
		d.stopped.Store(true)
		d.submitMu.Unlock()
		close(d.stopCh)
	})
	d.wg.Wait()
}

// Close stops the dispatcher and flushes whatever is still queued.
// Every Submit that returned before Close is settled by that flush.
func (d *Dispatcher) Close(ctx context.Context) {
	d.Stop()
	n := d.Flush(ctx)
	d.logger.Info().Int("items", n).Msg("dispatcher closed")
}

// Pending returns the number of items waiting for the next flush
func (d *Dispatcher) Pending() int {
	return d.queue.Len()
}

// DoubleSettles returns how many settlements were refused because the item
// had already settled. Anything other than zero is a bug.
func (d *Dispatcher) DoubleSettles() int64 {
	return d.doubleSettles.Load()
}

// Flush runs one flush cycle and returns the number of drained items
func (d *Dispatcher) Flush(ctx context.Context) int {
	d.flushMu.Lock()
	defer d.flushMu.Unlock()

	start := time.Now()

	items, err := d.queue.DrainAll()
	if err != nil {
		d.logger.Error().Err(err).Msg("intake queue invariant violated")
		d.onFault(err)
	}
	if len(items) == 0 {
		return 0
	}

	batch := GroupByDestination(items)

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for destination, group := range batch {
		destination, group := destination, group
		g.Go(func() error {
			d.dispatch(ctx, destination, group)
			return nil
		})
	}
	_ = g.Wait()

	d.recorder.RecordFlush(len(items), len(batch), time.Since(start))
	d.logger.Debug().
		Int("items", len(items)).
		Int("destinations", len(batch)).
		Dur("took", time.Since(start)).
		Msg("flush completed")

	return len(items)
}

// dispatch sends one destination group
func (d *Dispatcher) dispatch(ctx context.Context, destination string, items []*PendingItem) {
	if len(items) == 1 {
		d.dispatchSingle(ctx, destination, items[0])
		return
	}
	d.dispatchCombined(ctx, destination, items)
}

// dispatchSingle sends the raw payload and settles with the raw response body
func (d *Dispatcher) dispatchSingle(ctx context.Context, destination string, item *PendingItem) {
	start := time.Now()
	body, err := d.transport.SendSingle(ctx, destination, item.Payload)
	if err != nil {
		err = &TransportError{Destination: destination, Mode: ModeSingle, Err: err}
		d.recorder.RecordDispatch(ModeSingle, 1, time.Since(start), err)
		d.logger.Warn().
			Err(err).
			Str("destination", destination).
			Str("request", item.ID).
			Msg("single request failed")
		d.settle(item, nil, err)
		return
	}

	d.recorder.RecordDispatch(ModeSingle, 1, time.Since(start), nil)
	d.logger.Debug().
		Str("destination", destination).
		Str("request", item.ID).
		Msg("single request completed")
	d.settle(item, body, nil)
}

// dispatchCombined sends all payloads as one array and settles each item
// with the response element at its position
func (d *Dispatcher) dispatchCombined(ctx context.Context, destination string, items []*PendingItem) {
	payloads := make([][]byte, len(items))
	for i, item := range items {
		payloads[i] = item.Payload
	}
	body := payload.JoinArray(payloads)

	d.logger.Debug().
		Str("destination", destination).
		Int("items", len(items)).
		Msg("executing combined request")

	start := time.Now()
	resp, err := d.transport.SendCombined(ctx, destination, body, len(items))
	if err != nil {
		err = &TransportError{Destination: destination, Mode: ModeCombined, Err: err}
		d.recorder.RecordDispatch(ModeCombined, len(items), time.Since(start), err)
		d.logger.Warn().
			Err(err).
			Str("destination", destination).
			Int("items", len(items)).
			Msg("combined request failed")
		d.failAll(items, err)
		return
	}

	elements, err := payload.SplitArray(resp)
	if err != nil {
		shapeErr := &ResponseShapeError{Destination: destination, Expected: len(items), Got: -1, Err: err}
		d.recorder.RecordDispatch(ModeCombined, len(items), time.Since(start), shapeErr)
		d.logger.Error().
			Err(err).
			Str("destination", destination).
			Msg("combined result is not an array")
		d.failAll(items, shapeErr)
		return
	}

	if len(elements) != len(items) {
		shapeErr := &ResponseShapeError{Destination: destination, Expected: len(items), Got: len(elements)}
		d.recorder.RecordDispatch(ModeCombined, len(items), time.Since(start), shapeErr)
		d.logger.Error().
			Str("destination", destination).
			Int("expected", len(items)).
			Int("got", len(elements)).
			Msg("combined result size mismatch")
		d.failAll(items, shapeErr)
		return
	}

	d.recorder.RecordDispatch(ModeCombined, len(items), time.Since(start), nil)
	for i, item := range items {
		d.settle(item, elements[i], nil)
	}

	d.logger.Debug().
		Str("destination", destination).
		Int("items", len(items)).
		Msg("combined request completed")
}

// failAll settles every item of a group with err
func (d *Dispatcher) failAll(items []*PendingItem, err error) {
	for _, item := range items {
		d.settle(item, nil, err)
	}
}

// settle resolves or rejects an item's result exactly once
func (d *Dispatcher) settle(item *PendingItem, value []byte, err error) {
	var ok bool
	if err != nil {
		ok = item.result.reject(err)
	} else {
		ok = item.result.resolve(value)
	}

	if !ok {
		d.doubleSettles.Add(1)
		d.logger.Error().
			Str("request", item.ID).
			Str("destination", item.Destination).
			Msg("result already settled")
	}
}
