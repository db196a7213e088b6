package watch

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/time/rate"

	"github.com/bluekitapp/bluekit-backend/internal/id"
)

// DefaultSuffix is the extension a tree watch matches when none is given.
const DefaultSuffix = "md"

// Manager establishes watches and keeps track of the active ones.
type Manager struct {
	logger    *slog.Logger
	backend   Backend
	publisher Publisher
	opts      Options

	handles *xsync.Map[string, *Handle]
	mu      sync.RWMutex
	closed  bool
}

// NewManager creates a Manager that publishes through publisher using the
// backend named in opts.
func NewManager(logger *slog.Logger, publisher Publisher, opts Options) (*Manager, error) {
	opts.setDefaults()

	backend, err := NewBackend(opts.Backend, logger, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create watch backend: %w", err)
	}

	return NewManagerWithBackend(logger, publisher, backend, opts), nil
}

// NewManagerWithBackend creates a Manager around an existing backend.
func NewManagerWithBackend(logger *slog.Logger, publisher Publisher, backend Backend, opts Options) *Manager {
	opts.setDefaults()

	logger.Info("watch manager ready",
		"backend", backend.Name(),
		"queue_size", opts.QueueSize,
		"overflow", opts.Overflow.String(),
		"debounce", opts.Debounce,
	)

	return &Manager{
		logger:    logger,
		backend:   backend,
		publisher: publisher,
		opts:      opts,
		handles:   xsync.NewMap[string, *Handle](),
	}
}

// Backend returns the name of the backend in use.
func (m *Manager) Backend() string { return m.backend.Name() }

// EstablishFileWatch watches the single file at root and publishes a Signal
// on channel whenever it is created, modified or removed.
func (m *Manager) EstablishFileWatch(root, channel string) (*Handle, error) {
	root, err := m.resolve(root)
	if err != nil {
		return nil, err
	}
	return m.establish(Target{Root: root, Mode: ModeFile}, ExactPath{Path: root}, channel)
}

// EstablishTreeWatch watches the directory tree at root and publishes the
// changed paths whose extension is suffix. An empty suffix means "md".
func (m *Manager) EstablishTreeWatch(root, channel, suffix string) (*Handle, error) {
	root, err := m.resolve(root)
	if err != nil {
		return nil, err
	}
	if suffix == "" {
		suffix = DefaultSuffix
	}
	return m.establish(Target{Root: root, Mode: ModeDirectoryRecursive}, ExtensionMatch{Suffix: suffix}, channel)
}

func (m *Manager) resolve(root string) (string, error) {
	if root == "" {
		return "", &SetupError{Root: root, Backend: m.backend.Name(), Err: errors.New("empty path")}
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", &SetupError{Root: root, Backend: m.backend.Name(), Err: err}
	}
	// Backends report real paths (FSEvents always does), so match on those.
	// A missing root is left as is and fails in Bind.
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return normalizePath(abs), nil
}

func (m *Manager) establish(target Target, filter Filter, channel string) (*Handle, error) {
	if channel == "" {
		return nil, errors.New("channel name is required")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	watchID, err := id.Generate("watch")
	if err != nil {
		return nil, fmt.Errorf("failed to generate watch id: %w", err)
	}

	h := &Handle{
		id:        watchID,
		target:    target,
		filter:    filter,
		channel:   channel,
		backend:   m.backend.Name(),
		createdAt: time.Now(),
		debounce:  m.opts.Debounce,
		logger: m.logger.With(
			"watch_id", watchID,
			"root", target.Root,
			"mode", target.Mode.String(),
			"channel", channel,
		),
		publisher: m.publisher,
		queue:     newQueue(m.opts.QueueSize, m.opts.Overflow, m.opts.BlockTimeout),
		dropLog:   rate.Sometimes{First: 1, Interval: 10 * time.Second},
		done:      make(chan struct{}),
	}
	h.onClose = func(h *Handle) { m.handles.Delete(h.id) }

	source, err := m.backend.Bind(target, h.receive)
	if err != nil {
		return nil, &SetupError{Root: target.Root, Backend: m.backend.Name(), Err: err}
	}
	h.source = source

	m.handles.Store(h.id, h)
	go h.deliver()

	h.logger.Info("watch established", "backend", h.backend)
	return h, nil
}

// Handle returns the active watch with the given id.
func (m *Manager) Handle(watchID string) (*Handle, bool) {
	return m.handles.Load(watchID)
}

// Handles returns the active watches, oldest first.
func (m *Manager) Handles() []*Handle {
	out := make([]*Handle, 0, m.handles.Size())
	m.handles.Range(func(_ string, h *Handle) bool {
		out = append(out, h)
		return true
	})
	slices.SortFunc(out, func(a, b *Handle) int {
		if c := a.createdAt.Compare(b.createdAt); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})
	return out
}

// Unwatch closes the watch with the given id.
func (m *Manager) Unwatch(watchID string) error {
	h, ok := m.handles.Load(watchID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownWatch, watchID)
	}
	return h.Close()
}

// Close stops every active watch. Later establish calls fail with ErrClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	var errs []error
	for _, h := range m.Handles() {
		if err := h.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close watch %s: %w", h.id, err))
		}
	}
	return errors.Join(errs...)
}
