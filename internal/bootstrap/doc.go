// Package bootstrap resolves the bot endpoint and authentication key from a
// local descriptor.
//
// A descriptor is a line of text holding the bot's web URL, with the key
// in the query parameter k:
//
//	https://bot.local:8080/?k=5ecret
//
// Some tools write the key into a fragment instead (https://bot.local/#?k=5ecret);
// both forms are accepted.
//
// The websocket endpoint is not in the descriptor. Lookup asks the bot for
// it with GET <scheme>://<host>/ws, whose body is the endpoint URL as a
// JSON string (plain text is accepted too). Failed lookups are retried
// with exponential backoff while the error is retryable.
//
// # Errors
//
// Every failure is an *Error with an ErrorType. Network failures are
// classified (timeout, refused, DNS) the same way for every call, and
// IsRetryable reports whether trying again may help.
//
// # Key Refresh
//
// FileKeySource re-reads the descriptor each time the session connects so
// a rotated key is picked up without restarting the client.
package bootstrap
