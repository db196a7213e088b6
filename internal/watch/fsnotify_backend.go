package watch

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// fsnotifyBackend is the portable backend. fsnotify does not recurse, so
// directory targets are walked and every directory gets its own watch;
// directories created later are added as they appear. File targets watch the
// parent directory so editors that save through rename still report.
type fsnotifyBackend struct {
	logger *slog.Logger
	ignore *ignoreMatcher
}

func (b *fsnotifyBackend) Name() string { return BackendFsnotify }

func (b *fsnotifyBackend) Bind(target Target, handle func(RawEvent)) (Source, error) {
	if err := checkTarget(target); err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	s := &fsnotifySource{
		logger:  b.logger.With("root", target.Root, "backend", BackendFsnotify),
		ignore:  b.ignore,
		target:  target,
		handle:  handle,
		watcher: w,
		done:    make(chan struct{}),
	}

	if target.Mode == ModeFile {
		err = w.Add(filepath.Dir(target.Root))
	} else {
		err = s.addTree(target.Root, false)
	}
	if err != nil {
		_ = w.Close()
		return nil, err
	}

	s.wg.Add(1)
	go s.run()
	return s, nil
}

type fsnotifySource struct {
	logger    *slog.Logger
	ignore    *ignoreMatcher
	target    Target
	handle    func(RawEvent)
	watcher   *fsnotify.Watcher
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

func (s *fsnotifySource) run() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handleEvent(ev)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watch backend error", "error", err)
		}
	}
}

func (s *fsnotifySource) handleEvent(ev fsnotify.Event) {
	path := normalizePath(ev.Name)

	if s.target.Mode == ModeDirectoryRecursive {
		if s.ignore.match(s.target.Root, path) {
			return
		}
		if ev.Has(fsnotify.Create) {
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				if err := s.addTree(path, true); err != nil {
					s.logger.Warn("failed to watch new directory", "path", path, "error", err)
				}
			}
		}
	}

	s.emit(RawEvent{Kind: fsnotifyKind(ev.Op), Paths: []string{path}})
}

func (s *fsnotifySource) emit(ev RawEvent) {
	select {
	case <-s.done:
		return
	default:
	}
	dispatch(s.logger, s.handle, ev)
}

// addTree watches root and every directory below it. Failing to watch root is
// an error; failures below it are logged and skipped. When synthesize is set,
// files found during the walk are reported as created: they appeared before
// their directory was watched and would otherwise go unseen.
func (s *fsnotifySource) addTree(root string, synthesize bool) error {
	if err := s.watcher.Add(root); err != nil {
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
		if err := s.watcher.Add(p); err != nil {
			s.logger.Warn("failed to add watch", "path", p, "error", err)
		}
		return nil
	})
}

func (s *fsnotifySource) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeErr = s.watcher.Close()
		s.wg.Wait()
	})
	return s.closeErr
}

// fsnotifyKind maps an fsnotify op to a Kind. Removal wins over creation
// when several bits are set, and a rename is the old name going away.
func fsnotifyKind(op fsnotify.Op) Kind {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return KindRemove
	case op.Has(fsnotify.Create):
		return KindCreate
	case op.Has(fsnotify.Write):
		return KindModify
	default:
		return KindOther
	}
}
