package watch

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gobwas/glob"
)

// Overflow selects what happens when a watch queue is full.
type Overflow int

const (
	// OverflowDropOldest discards the oldest queued notification.
	OverflowDropOldest Overflow = iota
	// OverflowBlock waits up to BlockTimeout for room, then drops the new one.
	OverflowBlock
)

// ParseOverflow converts a config value to an Overflow policy.
func ParseOverflow(s string) (Overflow, error) {
	switch strings.ToLower(s) {
	case "", "drop-oldest", "drop_oldest":
		return OverflowDropOldest, nil
	case "block":
		return OverflowBlock, nil
	default:
		return 0, fmt.Errorf("invalid overflow policy %q (must be drop-oldest or block)", s)
	}
}

// String returns the config spelling of the policy.
func (o Overflow) String() string {
	if o == OverflowBlock {
		return "block"
	}
	return "drop-oldest"
}

// Options configures a Manager and the backend it creates.
type Options struct {
	// Backend is one of BackendFsnotify, BackendInotify or BackendNotify.
	Backend string
	// QueueSize bounds each watch's delivery queue.
	QueueSize int
	Overflow  Overflow
	// BlockTimeout is how long OverflowBlock waits for room.
	BlockTimeout time.Duration
	// Debounce coalesces notifications that arrive within the window.
	// Zero disables it.
	Debounce time.Duration
	// IgnorePatterns are globs matched against root-relative paths inside
	// directory watches. Nil selects the defaults; an empty slice ignores
	// nothing.
	IgnorePatterns []string
}

// DefaultIgnorePatterns are skipped by directory watches unless overridden.
var DefaultIgnorePatterns = []string{".git", "node_modules"}

const (
	defaultQueueSize    = 256
	defaultBlockTimeout = 50 * time.Millisecond
)

// setDefaults applies default values to unset options.
func (o *Options) setDefaults() {
	if o.Backend == "" {
		o.Backend = BackendFsnotify
	}
	if o.QueueSize <= 0 {
		o.QueueSize = defaultQueueSize
	}
	if o.BlockTimeout <= 0 {
		o.BlockTimeout = defaultBlockTimeout
	}
	if o.IgnorePatterns == nil {
		o.IgnorePatterns = DefaultIgnorePatterns
	}
}

// ignoreMatcher matches root-relative paths against compiled globs.
type ignoreMatcher struct {
	globs []glob.Glob
}

func newIgnoreMatcher(patterns []string) (*ignoreMatcher, error) {
	m := &ignoreMatcher{}
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p == "" {
			continue
		}
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", p, err)
		}
		m.globs = append(m.globs, g)
	}
	return m, nil
}

// match reports whether path, somewhere below root, is ignored. A pattern
// matches the whole relative path or any single component of it, so ".git"
// also hides "sub/.git". The root itself is never ignored.
func (m *ignoreMatcher) match(root, path string) bool {
	if m == nil || len(m.globs) == 0 {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	rel = filepath.ToSlash(rel)

	for _, g := range m.globs {
		if g.Match(rel) {
			return true
		}
		for _, part := range strings.Split(rel, "/") {
			if g.Match(part) {
				return true
			}
		}
	}
	return false
}
