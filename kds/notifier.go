package kds

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/table-order/utils"
)

const deliverTimeout = 2 * time.Second

var ErrNotifierClosed = errors.New("notifier is closed")

// Sink receives events from the dispatcher, one at a time.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev Event) error
}

// Result describes one Publish call. It is for logging only.
type Result struct {
	EventID string
	Dropped bool
	Err     error
}

// Notifier fans events out to sinks from a single goroutine, in publish order.
// The queue is bounded; when full the oldest event is dropped.
type Notifier struct {
	size  int
	sinks []Sink
	now   func() time.Time

	mu       sync.Mutex
	queue    []Event
	closed   bool
	started  bool
	flushCtx context.Context

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

func NewNotifier(size int, sinks ...Sink) *Notifier {
	if size < 1 {
		size = 1
	}
	return &Notifier{
		size:  size,
		sinks: sinks,
		now:   time.Now,
		queue: make([]Event, 0, size),
		wake:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Publish never blocks.
func (n *Notifier) Publish(name string, data map[string]any) Result {
	ev := Event{
		ID:   uuid.NewString(),
		Name: name,
		Data: data,
		At:   n.now().UTC(),
	}
	res := Result{EventID: ev.ID}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		res.Err = ErrNotifierClosed
		return res
	}
	if len(n.queue) >= n.size {
		dropped := n.queue[0]
		n.queue = append(n.queue[:0], n.queue[1:]...)
		res.Dropped = true
		utils.ErrorLogger.WithFields(logrus.Fields{
			"event": dropped.Name,
			"id":    dropped.ID,
		}).Warn("notification queue full, dropping oldest event")
	}
	n.queue = append(n.queue, ev)
	n.mu.Unlock()

	select {
	case n.wake <- struct{}{}:
	default:
	}
	return res
}

func (n *Notifier) Start() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started || n.closed {
		return
	}
	n.started = true
	go n.run()
}

func (n *Notifier) run() {
	defer close(n.done)
	for {
		select {
		case <-n.wake:
			n.deliverQueued(context.Background())
		case <-n.stop:
			n.mu.Lock()
			ctx := n.flushCtx
			n.mu.Unlock()
			n.deliverQueued(ctx)
			return
		}
	}
}

func (n *Notifier) deliverQueued(base context.Context) {
	for {
		if base.Err() != nil {
			n.mu.Lock()
			left := len(n.queue)
			n.queue = n.queue[:0]
			n.mu.Unlock()
			if left > 0 {
				utils.ErrorLogger.WithField("pending", left).Warn("notifier flush interrupted, events lost")
			}
			return
		}

		n.mu.Lock()
		if len(n.queue) == 0 {
			n.mu.Unlock()
			return
		}
		ev := n.queue[0]
		n.queue = append(n.queue[:0], n.queue[1:]...)
		n.mu.Unlock()

		n.dispatch(base, ev)
	}
}

func (n *Notifier) dispatch(base context.Context, ev Event) {
	for _, sink := range n.sinks {
		ctx, cancel := context.WithTimeout(base, deliverTimeout)
		err := sink.Deliver(ctx, ev)
		cancel()
		if err != nil {
			utils.ErrorLogger.WithError(err).WithFields(logrus.Fields{
				"sink":  sink.Name(),
				"event": ev.Name,
				"id":    ev.ID,
			}).Warn("failed to deliver notification")
		}
	}
}

// Drain refuses new events and flushes queued ones until ctx is done.
func (n *Notifier) Drain(ctx context.Context) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.flushCtx = ctx
	started := n.started
	n.mu.Unlock()

	if !started {
		return nil
	}
	close(n.stop)

	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending is the number of queued, undelivered events.
func (n *Notifier) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.queue)
}
