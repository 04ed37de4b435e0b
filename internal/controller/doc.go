// Package controller implements the pricing request controller.
//
// The controller owns the client-side state of a quote session: the current
// InputSet, the last server-confirmed InputSet, the believed catalog version,
// per-field errors and the latest pricing result. Field edits are committed
// optimistically and priced through a debounced, cancellable request
// pipeline.
//
// CONCURRENCY MODEL:
//
// Timer callbacks and HTTP completions arrive on their own goroutines. Every
// state transition takes the controller mutex, so there is exactly one
// mutator at a time. Two disciplines keep responses from clobbering newer
// state:
//
//   - cancel-before-send: issuing a request cancels the context of the
//     request it replaces, so at most one pricing request is in flight.
//   - check-before-apply: a completion is applied only while its request is
//     still the pending one. Anything else is dropped without a trace in the
//     UI, even a late success.
//
// Requests are stamped with a monotonic sequence number from Clock, which is
// also the key the request log is ordered by.
//
// EVENTS:
//
// State changes are queued as Events while the mutex is held and delivered to
// subscribers in FIFO order after it is released. Subscribers may call back
// into the controller.
//
// FAILURE HANDLING:
//
//	Condition                        Rollback            Retry       Signal
//	local normalization failure      field, pre-commit   none        field error
//	catalog conflict, version moved  none (refetch)      once        notice if retry fails
//	catalog conflict, same version   none                none        notice
//	field rejected by server         field -> lastValid  none        field error + notice
//	transport or other failure       none                none        notice
//	superseded request               none                none        none
package controller
