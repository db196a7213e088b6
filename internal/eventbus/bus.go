package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bluekitapp/bluekit-backend/internal/id"
)

// Errors returned by Publish.
var (
	ErrClosed   = errors.New("event bus closed")
	ErrBusFull  = errors.New("event bus queue full")
	ErrNoTarget = errors.New("channel name is required")
)

const (
	defaultQueueSize      = 1000
	defaultSubscriberSize = 100
)

// Subscriber receives the events of the channels it subscribed to. An empty
// channel set receives everything.
type Subscriber struct {
	ConnectedAt time.Time
	Events      chan Event
	Done        chan struct{}
	ID          string
	channels    map[string]struct{}
}

// Wants reports whether the subscriber receives events on channel.
func (s *Subscriber) Wants(channel string) bool {
	if len(s.channels) == 0 {
		return true
	}
	_, ok := s.channels[channel]
	return ok
}

// Channels returns the channel names the subscriber asked for.
func (s *Subscriber) Channels() []string {
	out := make([]string, 0, len(s.channels))
	for c := range s.channels {
		out = append(out, c)
	}
	return out
}

// Bus queues published events and broadcasts them to subscribers from a
// single goroutine. It implements watch.Publisher.
type Bus struct {
	subscribers map[string]*Subscriber
	events      chan Event
	logger      *slog.Logger
	wg          sync.WaitGroup
	mu          sync.RWMutex

	// protects shutdown and the close of events
	shutdownMu sync.RWMutex
	shutdown   bool
}

// New creates a Bus. Call Start to begin broadcasting.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[string]*Subscriber),
		events:      make(chan Event, defaultQueueSize),
		logger:      logger,
	}
}

// Start launches the broadcast loop. It returns immediately; the loop exits
// when ctx is canceled or the bus is shut down.
func (b *Bus) Start(ctx context.Context) {
	b.wg.Add(1)
	go b.run(ctx)
}

func (b *Bus) run(ctx context.Context) {
	defer b.wg.Done()

	b.logger.Info("event bus starting")
	for {
		select {
		case event, ok := <-b.events:
			if !ok {
				return
			}
			b.broadcast(event)
		case <-ctx.Done():
			b.logger.Info("event bus stopping")
			return
		}
	}
}

// Publish encodes payload as JSON and queues it for the subscribers of
// channel. With no interested subscriber the event is dropped and Publish
// returns nil.
func (b *Bus) Publish(channel string, payload any) error {
	if channel == "" {
		return ErrNoTarget
	}

	event, err := newEvent(channel, payload)
	if err != nil {
		return fmt.Errorf("encode payload for %q: %w", channel, err)
	}

	b.shutdownMu.RLock()
	defer b.shutdownMu.RUnlock()

	if b.shutdown {
		return ErrClosed
	}

	if !b.hasSubscriberFor(channel) {
		b.logger.Debug("no subscribers, event dropped", slog.String("channel", channel))
		return nil
	}

	select {
	case b.events <- event:
		return nil
	default:
		return ErrBusFull
	}
}

// Closed reports whether Shutdown has been called.
func (b *Bus) Closed() bool {
	b.shutdownMu.RLock()
	defer b.shutdownMu.RUnlock()
	return b.shutdown
}

func (b *Bus) hasSubscriberFor(channel string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subscribers {
		if s.Wants(channel) {
			return true
		}
	}
	return false
}

func (b *Bus) broadcast(event Event) {
	var delivered, dropped int

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, s := range b.subscribers {
		if !s.Wants(event.Channel) {
			continue
		}
		select {
		case s.Events <- event:
			delivered++
		default:
			dropped++
			b.logger.Warn("dropped event for slow subscriber",
				slog.String("subscriber_id", s.ID),
				slog.String("channel", event.Channel))
		}
	}

	b.logger.Debug("event broadcast",
		slog.String("channel", event.Channel),
		slog.Group("stats",
			slog.Int("delivered", delivered),
			slog.Int("dropped", dropped)))
}

// Subscribe registers a subscriber for the given channels, or for every
// channel when none are given.
func (b *Bus) Subscribe(channels ...string) (*Subscriber, error) {
	b.shutdownMu.RLock()
	closed := b.shutdown
	b.shutdownMu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	subID, err := id.Generate("sub")
	if err != nil {
		return nil, err
	}

	s := &Subscriber{
		ID:          subID,
		Events:      make(chan Event, defaultSubscriberSize),
		Done:        make(chan struct{}),
		ConnectedAt: time.Now(),
		channels:    make(map[string]struct{}, len(channels)),
	}
	for _, c := range channels {
		if c != "" {
			s.channels[c] = struct{}{}
		}
	}

	b.mu.Lock()
	b.subscribers[s.ID] = s
	total := len(b.subscribers)
	b.mu.Unlock()

	b.logger.Info("subscriber connected",
		slog.String("subscriber_id", s.ID),
		slog.Any("channels", channels),
		slog.Int("total_subscribers", total))
	return s, nil
}

// Unsubscribe removes a subscriber and closes its channels.
func (b *Bus) Unsubscribe(subscriberID string) {
	b.mu.Lock()
	s, ok := b.subscribers[subscriberID]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(b.subscribers, subscriberID)
	total := len(b.subscribers)
	b.mu.Unlock()

	close(s.Done)
	close(s.Events)

	b.logger.Info("subscriber disconnected",
		slog.String("subscriber_id", subscriberID),
		slog.Duration("duration", time.Since(s.ConnectedAt)),
		slog.Int("total_subscribers", total))
}

// SubscriberCount returns the number of subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Shutdown stops accepting events, waits for queued ones to be broadcast and
// disconnects every subscriber.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.shutdownMu.Lock()
	if b.shutdown {
		b.shutdownMu.Unlock()
		return nil
	}
	b.shutdown = true
	close(b.events)
	b.shutdownMu.Unlock()

	b.logger.Info("event bus shutdown initiated")

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Warn("event bus drain timeout, some events may be lost")
		err = ctx.Err()
	}

	b.closeAllSubscribers()
	b.logger.Info("event bus shutdown complete")
	return err
}

func (b *Bus) closeAllSubscribers() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range b.subscribers {
		close(s.Done)
		close(s.Events)
	}
	b.subscribers = make(map[string]*Subscriber)
}
