package watch

// Filter decides which raw events matter to a watch and how their paths are
// projected into a Notification. The concrete types are ExactPath and
// ExtensionMatch.
type Filter interface {
	isFilter()
}

// ExactPath keeps events that name Path exactly. Used by file watches.
type ExactPath struct {
	Path string
}

// ExtensionMatch keeps the paths whose extension equals Suffix. Used by
// directory watches. The comparison is case-sensitive and Suffix has no dot.
type ExtensionMatch struct {
	Suffix string
}

func (ExactPath) isFilter()      {}
func (ExtensionMatch) isFilter() {}

// Normalize applies filter to event and returns the notification to publish,
// or false when the event must be dropped. It has no side effects.
//
// Only create, modify and remove events pass. For ExactPath the result is a
// Signal if any affected path equals the filter path. For ExtensionMatch the
// result is the ordered subset of affected paths with a matching extension;
// an empty subset is dropped.
func Normalize(event RawEvent, filter Filter) (Notification, bool) {
	switch event.Kind {
	case KindCreate, KindModify, KindRemove:
	default:
		return nil, false
	}

	switch f := filter.(type) {
	case ExactPath:
		for _, p := range event.Paths {
			if p == f.Path {
				return Signal{}, true
			}
		}
		return nil, false

	case ExtensionMatch:
		var matched []string
		for _, p := range event.Paths {
			if ext, ok := extensionOf(p); ok && ext == f.Suffix {
				matched = append(matched, p)
			}
		}
		if len(matched) == 0 {
			return nil, false
		}
		return PathList{Paths: matched}, true

	default:
		return nil, false
	}
}
