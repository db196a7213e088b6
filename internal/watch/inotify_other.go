//go:build !linux

package watch

import (
	"fmt"
	"log/slog"
)

func newInotifyBackend(_ *slog.Logger, _ *ignoreMatcher) (Backend, error) {
	return nil, fmt.Errorf("%w: inotify requires linux", ErrUnsupportedBackend)
}
