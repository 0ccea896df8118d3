// Package relay republishes client notifications on NATS.
//
// Each message of a burst is published as its JSON encoding (including
// local_timestamp) on "<subject>.<Kind>", for example
// "botclient.WinchStatus". Session notifications go to
// "<subject>.session.auth" and "<subject>.session.log".
//
// Publish failures are logged and counted. They never reach the client.
package relay
