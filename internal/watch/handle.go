package watch

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Publisher delivers a payload to the subscribers of a channel. Publish is
// called from a watch's delivery goroutine, never from a backend callback.
type Publisher interface {
	Publish(channel string, payload any) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(channel string, payload any) error

// Publish calls f.
func (f PublisherFunc) Publish(channel string, payload any) error { return f(channel, payload) }

// Stats are the running counters of one watch.
type Stats struct {
	Received  uint64 `json:"received"`
	Filtered  uint64 `json:"filtered"`
	Dropped   uint64 `json:"dropped"`
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
	Queued    int    `json:"queued"`
}

// Handle is an active watch. Closing it stops the backend, discards anything
// still queued and waits for the delivery goroutine to exit.
type Handle struct {
	id        string
	target    Target
	filter    Filter
	channel   string
	backend   string
	createdAt time.Time
	debounce  time.Duration

	logger    *slog.Logger
	publisher Publisher
	queue     *queue
	source    Source
	onClose   func(*Handle)

	received  atomic.Uint64
	filtered  atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
	dropLog   rate.Sometimes

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// ID returns the watch id.
func (h *Handle) ID() string { return h.id }

// Target returns the watched root and mode.
func (h *Handle) Target() Target { return h.target }

// Filter returns the filter applied to raw events.
func (h *Handle) Filter() Filter { return h.filter }

// Channel returns the channel notifications are published on.
func (h *Handle) Channel() string { return h.channel }

// Backend returns the name of the backend observing the target.
func (h *Handle) Backend() string { return h.backend }

// CreatedAt returns when the watch was established.
func (h *Handle) CreatedAt() time.Time { return h.createdAt }

// Done is closed once the delivery goroutine has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Stats returns a snapshot of the watch counters.
func (h *Handle) Stats() Stats {
	return Stats{
		Received:  h.received.Load(),
		Filtered:  h.filtered.Load(),
		Dropped:   h.queue.dropped.Load(),
		Delivered: h.delivered.Load(),
		Failed:    h.failed.Load(),
		Queued:    h.queue.len(),
	}
}

// Close stops the watch. It is safe to call more than once. It must not be
// called from inside Publish on the same watch.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		if h.source != nil {
			h.closeErr = h.source.Close()
		}
		h.queue.close()
		<-h.done
		if h.onClose != nil {
			h.onClose(h)
		}
		h.logger.Info("watch closed", "delivered", h.delivered.Load(), "dropped", h.queue.dropped.Load())
	})
	return h.closeErr
}

// receive runs on the backend goroutine.
func (h *Handle) receive(ev RawEvent) {
	h.received.Add(1)

	n, ok := Normalize(ev, h.filter)
	if !ok {
		h.filtered.Add(1)
		return
	}

	if !h.queue.push(n) {
		h.dropLog.Do(func() {
			h.logger.Warn("watch queue full, dropping notifications",
				"dropped", h.queue.dropped.Load(),
				"policy", h.queue.overflow.String(),
			)
		})
	}
}

// deliver drains the queue in order until it is closed.
func (h *Handle) deliver() {
	defer close(h.done)

	for {
		n, ok := h.queue.pop()
		if !ok {
			return
		}
		if h.debounce > 0 {
			if n, ok = h.coalesce(n); !ok {
				return
			}
		}
		h.publish(n)
	}
}

// coalesce folds everything that arrives within the debounce window into
// first. It reports false if the queue closed meanwhile.
func (h *Handle) coalesce(first Notification) (Notification, bool) {
	timer := time.NewTimer(h.debounce)
	defer timer.Stop()

	merged := first
	for {
		next, ok := h.queue.popUntil(timer.C)
		if !ok {
			return nil, false
		}
		if next == nil {
			return merged, true
		}
		merged = merge(merged, next)
	}
}

func (h *Handle) publish(n Notification) {
	defer func() {
		if r := recover(); r != nil {
			h.failed.Add(1)
			h.logger.Error("publisher panicked", "channel", h.channel, "panic", r)
		}
	}()

	if err := h.publisher.Publish(h.channel, n.Payload()); err != nil {
		h.failed.Add(1)
		derr := &DeliveryError{Channel: h.channel, Err: err}
		h.logger.Warn("failed to publish notification", "channel", h.channel, "error", derr)
		return
	}
	h.delivered.Add(1)
}
