package watch

// Notification is what a watch publishes. The concrete types are Signal and
// PathList.
type Notification interface {
	// Payload returns the value handed to the Publisher.
	Payload() any
}

// Signal reports that the watched file changed. It carries no data.
type Signal struct{}

// PathList carries the matching paths of one event, in the order the backend
// reported them. It is never empty when published.
type PathList struct {
	Paths []string
}

// Payload returns nil.
func (Signal) Payload() any { return nil }

// Payload returns the path slice.
func (p PathList) Payload() any { return p.Paths }

// merge folds next into prev for debounced delivery. Signals collapse into
// one; path lists are joined keeping the first occurrence of each path.
func merge(prev, next Notification) Notification {
	a, ok := prev.(PathList)
	if !ok {
		return next
	}
	b, ok := next.(PathList)
	if !ok {
		return next
	}

	seen := make(map[string]struct{}, len(a.Paths)+len(b.Paths))
	out := make([]string, 0, len(a.Paths)+len(b.Paths))
	for _, paths := range [][]string{a.Paths, b.Paths} {
		for _, p := range paths {
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return PathList{Paths: out}
}
