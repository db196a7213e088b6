//go:build linux

package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// inotifyMask selects the events the inotify backend asks for.
// IN_CLOSE_WRITE marks a finished write, which is the only modify signal
// requested; partial writes stay invisible.
const inotifyMask = unix.IN_CLOSE_WRITE | unix.IN_MOVED_TO | unix.IN_CREATE |
	unix.IN_DELETE | unix.IN_DELETE_SELF | unix.IN_MOVED_FROM | unix.IN_ATTRIB

// inotifyPollTimeout bounds how long Close waits for the read loop.
const inotifyPollTimeout = 100 // milliseconds

// inotifyBackend talks to inotify directly. Each Bind gets its own inotify
// instance.
type inotifyBackend struct {
	logger *slog.Logger
	ignore *ignoreMatcher
}

func newInotifyBackend(logger *slog.Logger, ignore *ignoreMatcher) (Backend, error) {
	return &inotifyBackend{logger: logger, ignore: ignore}, nil
}

func (b *inotifyBackend) Name() string { return BackendInotify }

func (b *inotifyBackend) Bind(target Target, handle func(RawEvent)) (Source, error) {
	if err := checkTarget(target); err != nil {
		return nil, err
	}

	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize inotify: %w", err)
	}

	s := &inotifySource{
		logger:  b.logger.With("root", target.Root, "backend", BackendInotify),
		ignore:  b.ignore,
		target:  target,
		handle:  handle,
		fd:      fd,
		watches: make(map[string]int),
		wdPaths: make(map[int]string),
		done:    make(chan struct{}),
	}

	if target.Mode == ModeFile {
		err = s.addWatch(filepath.Dir(target.Root))
	} else {
		err = s.addTree(target.Root, false)
	}
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	s.wg.Add(1)
	go s.readEvents()
	return s, nil
}

type inotifySource struct {
	logger    *slog.Logger
	ignore    *ignoreMatcher
	target    Target
	handle    func(RawEvent)
	fd        int
	watches   map[string]int
	wdPaths   map[int]string
	mu        sync.RWMutex
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// addTree watches root and every directory below it.
func (s *inotifySource) addTree(root string, synthesize bool) error {
	if err := s.addWatch(root); err != nil {
		return err
	}

	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("failed to access path", "path", p, "error", err)
			return nil
		}
		if p == root {
			return nil
		}
		if s.ignore.match(s.target.Root, p) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			if synthesize {
				s.emit(RawEvent{Kind: KindCreate, Paths: []string{normalizePath(p)}})
			}
			return nil
		}
		if err := s.addWatch(p); err != nil {
			s.logger.Warn("failed to add watch", "path", p, "error", err)
		}
		return nil
	})
}

func (s *inotifySource) addWatch(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.watches[path]; exists {
		return nil
	}

	wd, err := unix.InotifyAddWatch(s.fd, path, uint32(inotifyMask))
	if err != nil {
		if errors.Is(err, unix.ENOSPC) {
			return fmt.Errorf("inotify watch limit reached, raise fs.inotify.max_user_watches: %w", err)
		}
		return fmt.Errorf("inotify_add_watch %s: %w", path, err)
	}

	s.watches[path] = wd
	s.wdPaths[wd] = path
	s.logger.Debug("added watch", "path", path, "wd", wd)
	return nil
}

// forgetWatch drops bookkeeping for a watch the kernel already removed.
func (s *inotifySource) forgetWatch(wd int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if path, ok := s.wdPaths[wd]; ok {
		delete(s.watches, path)
		delete(s.wdPaths, wd)
	}
}

func (s *inotifySource) readEvents() {
	defer s.wg.Done()

	buf := make([]byte, (unix.SizeofInotifyEvent+unix.NAME_MAX+1)*64)
	fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}} //nolint:gosec // fd is a small non-negative int

	for {
		select {
		case <-s.done:
			return
		default:
		}

		n, err := unix.Poll(fds, inotifyPollTimeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			s.logger.Error("inotify poll failed", "error", err)
			return
		}
		if n == 0 {
			continue
		}

		n, err = unix.Read(s.fd, buf)
		if err != nil {
			if err == unix.EINTR || err == unix.EAGAIN {
				continue
			}
			s.logger.Error("failed to read inotify events", "error", err)
			return
		}
		if n < unix.SizeofInotifyEvent {
			continue
		}

		s.parseEvents(buf[:n])
	}
}

func (s *inotifySource) parseEvents(buf []byte) {
	offset := 0
	for offset+unix.SizeofInotifyEvent <= len(buf) {
		//nolint:gosec // G103: inotify records are read in place
		event := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
		end := offset + unix.SizeofInotifyEvent + int(event.Len)
		if end > len(buf) {
			return
		}

		name := ""
		if event.Len > 0 {
			nameBytes := buf[offset+unix.SizeofInotifyEvent : end]
			name = string(nameBytes[:clen(nameBytes)])
		}
		offset = end

		if event.Mask&unix.IN_Q_OVERFLOW != 0 {
			s.logger.Warn("inotify queue overflowed, events were lost")
			continue
		}

		wd := int(event.Wd)
		s.mu.RLock()
		dir, ok := s.wdPaths[wd]
		s.mu.RUnlock()
		if !ok {
			continue
		}

		if event.Mask&unix.IN_IGNORED != 0 {
			s.forgetWatch(wd)
			continue
		}

		s.processEvent(normalizePath(filepath.Join(dir, name)), event.Mask)
	}
}

func (s *inotifySource) processEvent(path string, mask uint32) {
	if s.target.Mode == ModeDirectoryRecursive && s.ignore.match(s.target.Root, path) {
		return
	}

	if s.target.Mode == ModeDirectoryRecursive && mask&unix.IN_CREATE != 0 && mask&unix.IN_ISDIR != 0 {
		if err := s.addTree(path, true); err != nil {
			s.logger.Warn("failed to watch new directory", "path", path, "error", err)
		}
	}

	s.emit(RawEvent{Kind: inotifyKind(mask), Paths: []string{path}})
}

func (s *inotifySource) emit(ev RawEvent) {
	select {
	case <-s.done:
		return
	default:
	}
	dispatch(s.logger, s.handle, ev)
}

func (s *inotifySource) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		s.closeErr = unix.Close(s.fd)
	})
	return s.closeErr
}

func inotifyKind(mask uint32) Kind {
	switch {
	case mask&(unix.IN_DELETE|unix.IN_DELETE_SELF|unix.IN_MOVED_FROM) != 0:
		return KindRemove
	case mask&(unix.IN_CREATE|unix.IN_MOVED_TO) != 0:
		return KindCreate
	case mask&unix.IN_CLOSE_WRITE != 0:
		return KindModify
	default:
		return KindOther
	}
}

// clen returns the length of a null-terminated byte slice.
func clen(n []byte) int {
	for i := 0; i < len(n); i++ {
		if n[i] == 0 {
			return i
		}
	}
	return len(n)
}
