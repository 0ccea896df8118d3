// Package session implements the connection and authentication state
// machine that sits on top of the transport.
//
// # States
//
//	Disconnected --open--> Connected --AuthStatus:true--> Authenticated
//	     ^                     |                               |
//	     +--------close--------+---------------close-----------+
//
// On open the controller sends the subscription request and starts
// unauthenticated. When the bot sends an Auth challenge the controller
// answers with Base64(HMAC-SHA512(challenge, key)). Without a key the
// challenge is kept and answered as soon as SetKey supplies one.
//
// An auth notification is emitted only on the rising edge of
// authentication; repeated AuthStatus:true messages are silent.
//
// A server Error envelope is terminal. HandleServerError returns a
// *ServerError which the dispatcher and client propagate to the caller.
//
// # Thread Safety
//
// A Controller is not safe for concurrent use. The client calls it only
// from its event loop and publishes Status snapshots for other goroutines.
package session
