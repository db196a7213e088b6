package watch

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/syncthing/notify"
	"golang.org/x/time/rate"
)

// notify does not block when sending, so the channel must be buffered.
var notifyBuffer = 500

const notifyEvents = notify.Create | notify.Remove | notify.Write | notify.Rename

// notifyBackend uses the platform's native recursive facility where one
// exists (FSEvents, ReadDirectoryChangesW) through syncthing/notify.
type notifyBackend struct {
	logger *slog.Logger
	ignore *ignoreMatcher
}

func (b *notifyBackend) Name() string { return BackendNotify }

func (b *notifyBackend) Bind(target Target, handle func(RawEvent)) (Source, error) {
	if err := checkTarget(target); err != nil {
		return nil, err
	}

	ch := make(chan notify.EventInfo, notifyBuffer)

	var err error
	if target.Mode == ModeFile {
		err = notify.Watch(filepath.Dir(target.Root), ch, notifyEvents)
	} else {
		skip := func(absPath string) bool {
			return b.ignore.match(target.Root, normalizePath(absPath))
		}
		err = notify.WatchWithFilter(filepath.Join(target.Root, "..."), ch, skip, notifyEvents)
	}
	if err != nil {
		notify.Stop(ch)
		return nil, err
	}

	s := &notifySource{
		logger:   b.logger.With("root", target.Root, "backend", BackendNotify),
		ignore:   b.ignore,
		target:   target,
		handle:   handle,
		ch:       ch,
		done:     make(chan struct{}),
		overflow: rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
	s.wg.Add(1)
	go s.run()
	return s, nil
}

type notifySource struct {
	logger    *slog.Logger
	ignore    *ignoreMatcher
	target    Target
	handle    func(RawEvent)
	ch        chan notify.EventInfo
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	overflow  rate.Sometimes
}

func (s *notifySource) run() {
	defer s.wg.Done()

	for {
		if len(s.ch) == cap(s.ch) {
			s.overflow.Do(func() {
				s.logger.Warn("notify backend buffer full, events may be lost")
			})
		}

		select {
		case <-s.done:
			return
		case ev := <-s.ch:
			path := normalizePath(ev.Path())
			if s.target.Mode == ModeDirectoryRecursive && s.ignore.match(s.target.Root, path) {
				continue
			}
			dispatch(s.logger, s.handle, RawEvent{Kind: notifyKind(ev.Event(), path), Paths: []string{path}})
		}
	}
}

func (s *notifySource) Close() error {
	s.closeOnce.Do(func() {
		notify.Stop(s.ch)
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

// notifyKind maps a notify event to a Kind. notify reports both ends of a
// rename with the same bit, so the path is checked to tell them apart.
func notifyKind(e notify.Event, path string) Kind {
	switch {
	case e&notify.Remove != 0:
		return KindRemove
	case e&notify.Rename != 0:
		if _, err := os.Lstat(path); err == nil {
			return KindCreate
		}
		return KindRemove
	case e&notify.Create != 0:
		return KindCreate
	case e&notify.Write != 0:
		return KindModify
	default:
		return KindOther
	}
}
