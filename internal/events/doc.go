// Package events is the client's topic-keyed publish/subscribe registry.
//
// Topics carry fixed payload types:
//
//	TopicLog       *protocol.Envelope       every control or unrecognized envelope
//	TopicConfig    *protocol.Message        each ConfigIsCurrent message
//	TopicGimbal    *protocol.Message        each UnhandledGimbalPacket message
//	TopicMessages  []*protocol.Message      each annotated Stream burst
//	TopicFrame     *model.Model             coalesced model snapshot
//	TopicAuth      session.Status           rising edge of authentication
//
// Each topic accepts up to the registry's subscriber limit
// (DefaultMaxSubscribers unless configured; zero means unbounded).
// Handlers run synchronously on the emitting goroutine, in subscription
// order. After Close, Emit delivers nothing and Subscribe fails with
// ErrClosed, including for emissions already in progress.
package events
