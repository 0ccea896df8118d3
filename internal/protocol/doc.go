// Package protocol implements the bot's JSON wire protocol.
//
// Every frame the bot sends is a JSON object holding exactly one of:
//
//	{"Stream": [Message, ...]}          a burst of timestamped messages
//	{"Error": <any>}                    a terminal server error
//	{"Auth": {"challenge": <bytes>}}    an authentication challenge
//	{"AuthStatus": true|false}          the authentication result
//
// # Messages
//
// A Message wraps one payload variant and a server-relative timestamp:
//
//	{"message": {"WinchStatus": [0, {...}]}, "timestamp": 1234}
//
// The payload is modelled as the sealed sum type Payload. Consumers switch
// on the concrete type:
//
//	switch p := msg.Payload.(type) {
//	case protocol.WinchStatus:
//	    fmt.Println("winch", p.ID)
//	case protocol.GimbalValue:
//	    fmt.Println("gimbal", p.Addr.Index, p.Addr.Target)
//	}
//
// Variant bodies the client does not interpret are kept as json.RawMessage,
// and the original "message" object is retained so that re-encoding a
// Message (with its local timestamp added) is lossless.
//
// # Outbound Frames
//
// The client sends two frames:
//
//	{"Subscription": ["ConfigIsCurrent", "Command", ...]}
//	{"Auth": {"digest": "<base64>"}}
//
// The digest is Base64(HMAC-SHA512(challenge, key)); see Digest.
//
// # Error Handling
//
// DecodeEnvelope wraps decoding failures in ErrMalformedEnvelope. A Stream
// envelope with no messages returns ErrEmptyStream. Both are non-fatal to
// the session; the caller logs and drops the frame.
//
// # Thread Safety
//
// All functions are stateless. Decoded Messages are treated as immutable
// once dispatched, apart from the local timestamp set during dispatch.
package protocol
