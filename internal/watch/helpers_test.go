package watch

import (
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

type published struct {
	Channel string
	Payload any
}

// recorder is a Publisher that records what it receives.
type recorder struct {
	mu    sync.Mutex
	calls []published
	ch    chan published
	err   error
	panic bool
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan published, 256)}
}

func (r *recorder) Publish(channel string, payload any) error {
	r.mu.Lock()
	if r.panic {
		r.mu.Unlock()
		panic("publisher exploded")
	}
	if r.err != nil {
		err := r.err
		r.mu.Unlock()
		return err
	}
	p := published{Channel: channel, Payload: payload}
	r.calls = append(r.calls, p)
	r.mu.Unlock()
	r.ch <- p
	return nil
}

func (r *recorder) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// next waits for one publish.
func (r *recorder) next(t *testing.T, timeout time.Duration) published {
	t.Helper()
	select {
	case p := <-r.ch:
		return p
	case <-time.After(timeout):
		t.Fatal("timeout waiting for notification")
		return published{}
	}
}

// quiet fails if anything is published within d.
func (r *recorder) quiet(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case p := <-r.ch:
		t.Fatalf("unexpected notification: %+v", p)
	case <-time.After(d):
	}
}

// fakeBackend lets tests drive raw events by hand.
type fakeBackend struct {
	mu      sync.Mutex
	bindErr error
	sources []*fakeSource
}

type fakeSource struct {
	target Target
	handle func(RawEvent)
	closed bool
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Bind(target Target, handle func(RawEvent)) (Source, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bindErr != nil {
		return nil, b.bindErr
	}
	s := &fakeSource{target: target, handle: handle}
	b.sources = append(b.sources, s)
	return s, nil
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

// emit delivers ev to every open source, as a backend goroutine would.
func (b *fakeBackend) emit(ev RawEvent) {
	b.mu.Lock()
	sources := append([]*fakeSource(nil), b.sources...)
	b.mu.Unlock()
	for _, s := range sources {
		if !s.closed {
			dispatch(testLogger(), s.handle, ev)
		}
	}
}

var errBoom = errors.New("boom")
