// Package statebox implements a small observable state container. A Store
// holds the current State, applies partial or full updates to it, and
// synchronously notifies its Listeners after every commit. Actions compute
// updates either immediately or through a Deferred that resolves off the
// calling goroutine.
//
// Typical usage looks like:
//   - Create a Store with a Config, an initial State, and an extra argument
//     (an API client, for example) that every Action receives
//   - Subscribe Listeners, or use Watch for a channel of changes
//   - Dispatch Actions that return None, Apply, or Defer results
//   - Connect consumers through a Mapper so they only hear about the props
//     they care about
//
// The examples/ directory contains a runnable counter and order workflow
// that exercise the API in a small domain.
package statebox
