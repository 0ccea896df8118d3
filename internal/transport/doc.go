// Package transport provides the reconnecting duplex channel the client
// runs on.
//
// A Transport reports its lifecycle as a stream of Events:
//
//	EventOpen     a connection was established (new ConnID)
//	EventMessage  one text frame was received
//	EventClose    the connection was lost; Err holds the cause
//
// Open and Close alternate for as long as the transport runs, each
// connection getting a fresh uuid ConnID. The channel is closed once the
// transport has stopped for good.
//
// # WebSocket
//
// WebSocket dials with gorilla/websocket and reconnects with exponential
// backoff and jitter (1s doubling up to 30s). While connected it sends a
// ping every PingPeriod and drops the connection when no pong or frame
// arrives within PongWait. Only text frames are delivered; binary frames
// are logged and discarded.
//
//	ws, err := transport.NewWebSocket(transport.Config{URL: "wss://bot.local/ws"})
//	if err != nil { ... }
//	ws.Start(ctx)
//	for ev := range ws.Events() { ... }
//
// Send fails with ErrNotConnected between connections; nothing is queued.
//
// # Memory
//
// Memory is an in-process Transport driven by hand, used by tests and by
// replay.
package transport
