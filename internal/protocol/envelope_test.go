package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		frame    string
		wantKind EnvelopeKind
		wantErr  error
		verify   func(t *testing.T, env *Envelope)
	}{
		{
			name:     "stream",
			frame:    `{"Stream": [{"message": {"FlyerSensors": {}}, "timestamp": 10}, {"message": {"WinchStatus": [0, {}]}, "timestamp": 12}]}`,
			wantKind: EnvelopeStream,
			verify: func(t *testing.T, env *Envelope) {
				if len(env.Stream) != 2 {
					t.Fatalf("len(Stream) = %d, want 2", len(env.Stream))
				}
				if env.Stream[1].Timestamp != 12 {
					t.Errorf("Stream[1].Timestamp = %d", env.Stream[1].Timestamp)
				}
			},
		},
		{
			name:    "empty stream",
			frame:   `{"Stream": []}`,
			wantErr: ErrEmptyStream,
		},
		{
			name:    "stream with null item",
			frame:   `{"Stream": [null]}`,
			wantErr: ErrMalformedEnvelope,
		},
		{
			name:    "stream with bad message",
			frame:   `{"Stream": [{"message": {}, "timestamp": 1}]}`,
			wantErr: ErrMalformedEnvelope,
		},
		{
			name:     "error",
			frame:    `{"Error": {"reason": "nope"}}`,
			wantKind: EnvelopeError,
			verify: func(t *testing.T, env *Envelope) {
				if !bytes.Contains(env.Error, []byte("nope")) {
					t.Errorf("Error = %s", env.Error)
				}
			},
		},
		{
			name:     "null error still counts",
			frame:    `{"Error": null}`,
			wantKind: EnvelopeError,
		},
		{
			name:     "string challenge",
			frame:    `{"Auth": {"challenge": "abc"}}`,
			wantKind: EnvelopeAuth,
			verify: func(t *testing.T, env *Envelope) {
				if string(env.Challenge) != "abc" {
					t.Errorf("Challenge = %q", env.Challenge)
				}
			},
		},
		{
			name:     "byte array challenge",
			frame:    `{"Auth": {"challenge": [1, 2, 255]}}`,
			wantKind: EnvelopeAuth,
			verify: func(t *testing.T, env *Envelope) {
				if !bytes.Equal(env.Challenge, []byte{1, 2, 255}) {
					t.Errorf("Challenge = %v", env.Challenge)
				}
			},
		},
		{
			name:    "challenge byte out of range",
			frame:   `{"Auth": {"challenge": [256]}}`,
			wantErr: ErrMalformedEnvelope,
		},
		{
			name:     "auth without challenge",
			frame:    `{"Auth": {}}`,
			wantKind: EnvelopeAuth,
			verify: func(t *testing.T, env *Envelope) {
				if env.Challenge != nil {
					t.Errorf("Challenge = %v, want nil", env.Challenge)
				}
			},
		},
		{
			name:     "auth status true",
			frame:    `{"AuthStatus": true}`,
			wantKind: EnvelopeAuthStatus,
			verify: func(t *testing.T, env *Envelope) {
				if !env.AuthStatus {
					t.Error("AuthStatus = false, want true")
				}
			},
		},
		{
			name:     "auth status non-boolean is false",
			frame:    `{"AuthStatus": "yes"}`,
			wantKind: EnvelopeAuthStatus,
			verify: func(t *testing.T, env *Envelope) {
				if env.AuthStatus {
					t.Error("AuthStatus = true, want false")
				}
			},
		},
		{
			name:     "null stream falls through",
			frame:    `{"Stream": null, "AuthStatus": false}`,
			wantKind: EnvelopeAuthStatus,
		},
		{
			name:     "unrecognized object",
			frame:    `{"Hello": 1}`,
			wantKind: EnvelopeUnknown,
		},
		{
			name:    "not json",
			frame:   `hello`,
			wantErr: ErrMalformedEnvelope,
		},
		{
			name:    "json null",
			frame:   `null`,
			wantErr: ErrMalformedEnvelope,
		},
		{
			name:    "json array",
			frame:   `[]`,
			wantErr: ErrMalformedEnvelope,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := DecodeEnvelope([]byte(tt.frame))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DecodeEnvelope() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeEnvelope() unexpected error = %v", err)
			}
			if env.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", env.Kind, tt.wantKind)
			}
			if tt.verify != nil {
				tt.verify(t, env)
			}
		})
	}
}

func TestEnvelopeMarshalKeepsRaw(t *testing.T) {
	frame := `{"AuthStatus": true}`
	env, err := DecodeEnvelope([]byte(frame))
	if err != nil {
		t.Fatalf("DecodeEnvelope() error = %v", err)
	}
	out, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(out) != `{"AuthStatus":true}` {
		t.Errorf("Marshal() = %s", out)
	}
}
