package watch

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Mode selects what a watch observes.
type Mode int

const (
	// ModeFile observes a single file.
	ModeFile Mode = iota
	// ModeDirectoryRecursive observes a directory and everything below it.
	ModeDirectoryRecursive
)

// String returns the mode name used in logs.
func (m Mode) String() string {
	switch m {
	case ModeFile:
		return "file"
	case ModeDirectoryRecursive:
		return "directory"
	default:
		return "unknown"
	}
}

// Target is the path and mode of a watch. It does not change once the watch
// is established.
type Target struct {
	Root string
	Mode Mode
}

// Kind classifies a raw filesystem event.
type Kind int

const (
	// KindOther covers access, metadata and anything the backend cannot classify.
	KindOther Kind = iota
	KindCreate
	KindModify
	KindRemove
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindModify:
		return "modify"
	case KindRemove:
		return "remove"
	default:
		return "other"
	}
}

// RawEvent is a single observation from a backend. Paths are absolute and
// may hold more than one entry (rename pairs, batched reports).
type RawEvent struct {
	Kind  Kind
	Paths []string
}

// normalizePath cleans p and converts it to NFC so that a decomposed name
// reported by the OS compares equal to the name the caller passed in.
func normalizePath(p string) string {
	if p == "" {
		return p
	}
	return norm.NFC.String(filepath.Clean(p))
}

// extensionOf returns the text after the last '.' of the final path
// component, and false when the component has no dot or its only dot is
// the leading one of a dotfile.
func extensionOf(p string) (string, bool) {
	base := filepath.Base(p)
	i := strings.LastIndexByte(base, '.')
	if i <= 0 {
		return "", false
	}
	return base[i+1:], true
}
