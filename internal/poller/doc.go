// Package poller runs the periodic fetch cycle of each dashboard view.
//
// A view mounts by starting a [Poller]: one cycle runs immediately, then a
// repeating timer triggers further cycles. Each cycle optionally probes
// backend health, calls the view's [Source], and records the outcome in a
// [FetchState] through pure transition functions ([OnStart], [OnTick],
// [OnRetry], [OnSuccess], [OnFailure]).
//
// The main components are:
//
//   - [Poller]: timer lifecycle and event loop for one view
//   - [RetryPolicy]: bounded linear backoff after a failed cycle
//   - [Task]: cancellable one-shot event on an injectable clock
//   - [FetchState]: observable state of a view
//
// Users of the disasterboard library should not need to interact with this
// package directly. Configuration is done through the main disasterboard package.
package poller
