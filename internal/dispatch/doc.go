// Package dispatch decodes transport frames and fans them out.
//
// For each frame the Dispatcher:
//
//  1. decodes the envelope (malformed or empty frames are logged and dropped)
//  2. for a Stream burst, computes the clock offset from the burst's last
//     message, stamps every message with its local timestamp, folds each
//     into the model, emits config and gimbal notifications for the
//     matching variants and finally one messages notification for the burst
//  3. requests a frame tick from the scheduler unless one is already
//     pending; when it fires, a frame notification carries a model snapshot
//  4. for Error, Auth and AuthStatus envelopes, emits a log notification
//     and hands the envelope to the session controller
//
// A server Error is returned from HandleFrame as a *session.ServerError.
//
// Without a scheduler the dispatcher is headless and never emits frame
// notifications. Destroy cancels a pending tick and turns every later call
// into a no-op.
package dispatch
