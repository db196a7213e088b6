// Package watch turns filesystem activity into application-level change
// notifications.
//
// A watch binds a Backend to a Target, filters every raw event it reports
// through a Filter and hands the resulting Notification to a Publisher under a
// caller-chosen channel name. The backend callback runs the filter inline and
// pushes into a bounded queue; a per-watch delivery goroutine drains the queue
// and publishes, so a slow or failing publisher never blocks the backend.
package watch
