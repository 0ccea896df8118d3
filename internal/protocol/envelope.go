package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformedEnvelope is returned for frames that are not a JSON
	// object or whose known fields cannot be decoded.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrEmptyStream is returned for a Stream envelope with no messages.
	ErrEmptyStream = errors.New("empty stream envelope")
)

// EnvelopeKind identifies which top-level field a frame carried.
type EnvelopeKind int

const (
	EnvelopeUnknown EnvelopeKind = iota
	EnvelopeStream
	EnvelopeError
	EnvelopeAuth
	EnvelopeAuthStatus
)

func (k EnvelopeKind) String() string {
	switch k {
	case EnvelopeStream:
		return "Stream"
	case EnvelopeError:
		return "Error"
	case EnvelopeAuth:
		return "Auth"
	case EnvelopeAuthStatus:
		return "AuthStatus"
	default:
		return "Unknown"
	}
}

// Envelope is one decoded transport frame.
type Envelope struct {
	Kind EnvelopeKind

	// Stream is the burst, in server order. Set for EnvelopeStream.
	Stream []*Message

	// Error is the server's error payload, verbatim. Set for EnvelopeError.
	Error json.RawMessage

	// Challenge is the authentication challenge. Nil when the server sent
	// an Auth envelope without one.
	Challenge []byte

	// AuthStatus is true only when the server sent the literal true.
	AuthStatus bool

	// Raw is the frame as received.
	Raw json.RawMessage
}

// MarshalJSON re-emits the frame as received.
func (e Envelope) MarshalJSON() ([]byte, error) {
	if len(e.Raw) == 0 {
		return []byte("null"), nil
	}
	return e.Raw, nil
}

// DecodeEnvelope decodes one frame. Fields are checked in the order
// Stream, Error, Auth, AuthStatus; a frame with none of them decodes to
// EnvelopeUnknown without error.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedEnvelope)
	}

	env := &Envelope{Raw: append(json.RawMessage(nil), data...)}

	if raw, ok := fields["Stream"]; ok && !isNull(raw) {
		var burst []*Message
		if err := json.Unmarshal(raw, &burst); err != nil {
			return nil, fmt.Errorf("%w: stream: %v", ErrMalformedEnvelope, err)
		}
		if len(burst) == 0 {
			return nil, ErrEmptyStream
		}
		for i, m := range burst {
			if m == nil {
				return nil, fmt.Errorf("%w: stream item %d is null", ErrMalformedEnvelope, i)
			}
		}
		env.Kind = EnvelopeStream
		env.Stream = burst
		return env, nil
	}

	if raw, ok := fields["Error"]; ok {
		env.Kind = EnvelopeError
		env.Error = raw
		return env, nil
	}

	if raw, ok := fields["Auth"]; ok {
		var auth struct {
			Challenge json.RawMessage `json:"challenge"`
		}
		if !isNull(raw) {
			if err := json.Unmarshal(raw, &auth); err != nil {
				return nil, fmt.Errorf("%w: auth: %v", ErrMalformedEnvelope, err)
			}
		}
		challenge, err := decodeChallenge(auth.Challenge)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
		}
		env.Kind = EnvelopeAuth
		env.Challenge = challenge
		return env, nil
	}

	if raw, ok := fields["AuthStatus"]; ok {
		var status bool
		if err := json.Unmarshal(raw, &status); err != nil {
			status = false
		}
		env.Kind = EnvelopeAuthStatus
		env.AuthStatus = status
		return env, nil
	}

	env.Kind = EnvelopeUnknown
	return env, nil
}

// decodeChallenge accepts a JSON string (used as its UTF-8 bytes) or an
// array of byte values.
func decodeChallenge(raw json.RawMessage) ([]byte, error) {
	if isNull(raw) {
		return nil, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []byte(s), nil
	}

	var values []int
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("challenge is neither a string nor a byte array")
	}
	out := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("challenge byte %d out of range: %d", i, v)
		}
		out[i] = byte(v)
	}
	return out, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
