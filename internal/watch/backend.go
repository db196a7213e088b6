package watch

import (
	"fmt"
	"log/slog"
	"os"
)

// Backend names.
const (
	BackendFsnotify = "fsnotify"
	BackendInotify  = "inotify"
	BackendNotify   = "notify"
)

// Backend binds OS-level observation to a target.
//
// Bind validates the target and starts observing it. handle is called
// synchronously on the backend's own goroutine for every event, so it must
// not block. The returned Source stops the observation when closed; no call
// to handle happens after Close returns.
type Backend interface {
	Name() string
	Bind(target Target, handle func(RawEvent)) (Source, error)
}

// Source is a bound observation.
type Source interface {
	Close() error
}

// NewBackend returns the backend registered under name. An empty name selects
// fsnotify.
func NewBackend(name string, logger *slog.Logger, opts Options) (Backend, error) {
	opts.setDefaults()
	ignore, err := newIgnoreMatcher(opts.IgnorePatterns)
	if err != nil {
		return nil, err
	}

	switch name {
	case "", BackendFsnotify:
		return &fsnotifyBackend{logger: logger, ignore: ignore}, nil
	case BackendInotify:
		return newInotifyBackend(logger, ignore)
	case BackendNotify:
		return &notifyBackend{logger: logger, ignore: ignore}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, name)
	}
}

// checkTarget verifies that the root exists and has the kind the mode needs.
func checkTarget(target Target) error {
	info, err := os.Stat(target.Root)
	if err != nil {
		return err
	}
	switch target.Mode {
	case ModeFile:
		if info.IsDir() {
			return fmt.Errorf("%s: %w", target.Root, ErrNotFile)
		}
	case ModeDirectoryRecursive:
		if !info.IsDir() {
			return fmt.Errorf("%s: %w", target.Root, ErrNotDirectory)
		}
	}
	return nil
}

// dispatch hands ev to handle and keeps a panicking handler from killing the
// backend loop.
func dispatch(logger *slog.Logger, handle func(RawEvent), ev RawEvent) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("watch event handler panicked", "paths", ev.Paths, "panic", r)
		}
	}()
	handle(ev)
}
