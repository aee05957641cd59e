package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	list "github.com/bahlo/generic-list-go"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/events"
	"github.com/phrazzld/taskflow-api/internal/redact"
)

// Stats is a snapshot of dispatcher counters.
type Stats struct {
	Queued    int   `json:"queued"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
}

// Dispatcher is an unbounded FIFO notification queue drained by exactly one
// worker goroutine.
type Dispatcher struct {
	handler events.EventHandler
	logger  *slog.Logger

	mu       sync.Mutex
	queue    *list.List[*events.StatusChangedEvent]
	started  bool
	stopping bool

	// wake has capacity one; a pending signal means "look at the queue again".
	wake chan struct{}
	done chan struct{}

	// ctx is handed to handlers and cancelled only when Stop gives up waiting.
	ctx    context.Context
	cancel context.CancelFunc

	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// Ensure Dispatcher implements events.EventEmitter
var _ events.EventEmitter = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher delivering to handler.
// Call Start to begin draining the queue.
func NewDispatcher(handler events.EventHandler, logger *slog.Logger) (*Dispatcher, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		handler: handler,
		logger:  logger.With(slog.String("component", "notification_dispatcher")),
		queue:   list.New[*events.StatusChangedEvent](),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start launches the worker goroutine. Calling it more than once has no effect.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started || d.stopping {
		return
	}
	d.started = true

	d.logger.Info("starting notification dispatcher")
	go d.run()
}

// EmitEvent appends event to the queue. It never blocks and never fails;
// after Stop the event is dropped with a warning.
func (d *Dispatcher) EmitEvent(_ context.Context, event *events.StatusChangedEvent) error {
	if event == nil {
		return nil
	}

	d.mu.Lock()
	if d.stopping {
		d.mu.Unlock()
		d.dropped.Add(1)
		d.logger.Warn("dispatcher stopped, dropping notification",
			slog.String("event_id", event.ID.String()),
			slog.Int64("task_id", event.TaskID),
			slog.String("status", string(event.NewStatus)))
		return nil
	}
	d.queue.PushBack(event)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return nil
}

// Enqueue builds a StatusChangedEvent and emits it.
func (d *Dispatcher) Enqueue(taskID int64, status domain.TaskStatus) {
	_ = d.EmitEvent(context.Background(), events.NewStatusChangedEvent(taskID, status))
}

// Stats returns the current counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	queued := d.queue.Len()
	d.mu.Unlock()

	return Stats{
		Queued:    queued,
		Processed: d.processed.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
	}
}

// Stop refuses new events, lets the worker drain what is already queued and
// waits for it to exit. If ctx ends first, the in-flight delivery is
// cancelled, the remaining events are discarded and ctx.Err() is returned.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	alreadyStopping := d.stopping
	d.stopping = true
	started := d.started
	if !started {
		// no worker will ever drain these
		d.dropped.Add(int64(d.queue.Len()))
		d.queue.Init()
	}
	d.mu.Unlock()

	if !started {
		if !alreadyStopping {
			d.cancel()
			close(d.done)
		}
		return nil
	}

	if !alreadyStopping {
		d.logger.Info("stopping notification dispatcher", slog.Int("queued", d.Stats().Queued))
		select {
		case d.wake <- struct{}{}:
		default:
		}
	}

	select {
	case <-d.done:
		d.cancel()
		d.logger.Info("notification dispatcher stopped")
		return nil
	case <-ctx.Done():
		d.cancel()
		d.logger.Warn("notification dispatcher stop timed out, discarding queued events",
			slog.Int("queued", d.Stats().Queued))
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for {
		event, ok, stopping := d.next()
		if ok {
			d.deliver(event)
			continue
		}
		if stopping {
			return
		}

		select {
		case <-d.wake:
		case <-d.ctx.Done():
			return
		}
	}
}

// next pops the oldest event. When the queue is empty it reports whether the
// dispatcher is stopping.
func (d *Dispatcher) next() (*events.StatusChangedEvent, bool, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ctx.Err() != nil {
		d.dropped.Add(int64(d.queue.Len()))
		d.queue.Init()
		return nil, false, true
	}

	front := d.queue.Front()
	if front == nil {
		return nil, false, d.stopping
	}
	return d.queue.Remove(front), true, false
}

func (d *Dispatcher) deliver(event *events.StatusChangedEvent) {
	log := d.logger.With(
		slog.String("event_id", event.ID.String()),
		slog.Int64("task_id", event.TaskID),
		slog.String("status", string(event.NewStatus)),
	)

	defer func() {
		if r := recover(); r != nil {
			d.failed.Add(1)
			log.Error("notification handler panicked", slog.Any("panic", r))
		}
	}()

	if err := d.handler.HandleEvent(d.ctx, event); err != nil {
		d.failed.Add(1)
		log.Error("notification delivery failed", slog.String("error", redact.Error(err)))
		return
	}

	d.processed.Add(1)
	log.Debug("notification delivered")
}
