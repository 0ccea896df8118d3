package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Kind identifies which payload variant a Message carries.
type Kind int

const (
	KindUnknown Kind = iota
	KindWinchStatus
	KindFlyerSensors
	KindConfigIsCurrent
	KindGimbalValue
	KindGimbalControlStatus
	KindCommand
	KindUnhandledGimbalPacket
)

// MaxWinchID is the largest winch id accepted from the wire. The model
// indexes winches by id in a slice, so the bound keeps a corrupt id from
// allocating an enormous one.
const MaxWinchID = 255

var kindNames = map[Kind]string{
	KindWinchStatus:           "WinchStatus",
	KindFlyerSensors:          "FlyerSensors",
	KindConfigIsCurrent:       "ConfigIsCurrent",
	KindGimbalValue:           "GimbalValue",
	KindGimbalControlStatus:   "GimbalControlStatus",
	KindCommand:               "Command",
	KindUnhandledGimbalPacket: "UnhandledGimbalPacket",
}

// String returns the wire name of the variant.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// KindFromName maps a wire variant name to its Kind.
func KindFromName(name string) Kind {
	for k, n := range kindNames {
		if n == name {
			return k
		}
	}
	return KindUnknown
}

// CommandKind identifies the sub-kind of a Command payload. Only the camera
// sub-kinds are folded into the model; every other command is CommandOther.
type CommandKind int

const (
	CommandOther CommandKind = iota
	CommandCameraObjectDetection
	CommandCameraRegionTracking
	CommandCameraOutputStatus
)

var commandNames = map[CommandKind]string{
	CommandCameraObjectDetection: "CameraObjectDetection",
	CommandCameraRegionTracking:  "CameraRegionTracking",
	CommandCameraOutputStatus:    "CameraOutputStatus",
}

func (c CommandKind) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "Other"
}

func commandKindFromName(name string) CommandKind {
	for k, n := range commandNames {
		if n == name {
			return k
		}
	}
	return CommandOther
}

// Payload is the sealed sum type over the message variants. Exactly one
// variant is populated per message; consumers switch on the concrete type.
type Payload interface {
	Kind() Kind
	isPayload()
}

// WinchStatus is the last reported status of one winch.
// Wire shape: [id, status].
type WinchStatus struct {
	ID     int
	Status json.RawMessage
}

// FlyerSensors carries the flyer's sensor readings.
type FlyerSensors struct {
	Data json.RawMessage
}

// ConfigIsCurrent carries the bot's active configuration.
type ConfigIsCurrent struct {
	Config json.RawMessage
}

// GimbalAddr addresses one gimbal register.
type GimbalAddr struct {
	Index  int `json:"index"`
	Target int `json:"target"`
}

// GimbalValue is one gimbal register value.
// Wire shape: [{"addr": {...}, ...}, op]. Value holds the whole first element.
type GimbalValue struct {
	Addr  GimbalAddr
	Value json.RawMessage
	Op    json.RawMessage
}

// GimbalControlStatus carries the gimbal controller state.
type GimbalControlStatus struct {
	Data json.RawMessage
}

// Command is a command echoed by the bot. Name is the wire sub-kind; Data
// is nil for unit sub-kinds sent as a bare string.
type Command struct {
	Sub  CommandKind
	Name string
	Data json.RawMessage
}

// UnhandledGimbalPacket is a raw gimbal packet the bot did not interpret.
type UnhandledGimbalPacket struct {
	Data json.RawMessage
}

// Unknown is any variant name this client does not know.
type Unknown struct {
	Name string
	Data json.RawMessage
}

func (WinchStatus) Kind() Kind           { return KindWinchStatus }
func (FlyerSensors) Kind() Kind          { return KindFlyerSensors }
func (ConfigIsCurrent) Kind() Kind       { return KindConfigIsCurrent }
func (GimbalValue) Kind() Kind           { return KindGimbalValue }
func (GimbalControlStatus) Kind() Kind   { return KindGimbalControlStatus }
func (Command) Kind() Kind               { return KindCommand }
func (UnhandledGimbalPacket) Kind() Kind { return KindUnhandledGimbalPacket }
func (Unknown) Kind() Kind               { return KindUnknown }

func (WinchStatus) isPayload()           {}
func (FlyerSensors) isPayload()          {}
func (ConfigIsCurrent) isPayload()       {}
func (GimbalValue) isPayload()           {}
func (GimbalControlStatus) isPayload()   {}
func (Command) isPayload()               {}
func (UnhandledGimbalPacket) isPayload() {}
func (Unknown) isPayload()               {}

// DecodePayload decodes the "message" object of a Message. The object must
// have exactly one key, naming the variant.
func DecodePayload(raw json.RawMessage) (Payload, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("message payload is not an object: %w", err)
	}
	if len(fields) != 1 {
		return nil, fmt.Errorf("message payload has %d variants, want exactly 1", len(fields))
	}

	for name, value := range fields {
		return decodeVariant(name, value)
	}
	return nil, errors.New("unreachable")
}

func decodeVariant(name string, value json.RawMessage) (Payload, error) {
	switch KindFromName(name) {
	case KindWinchStatus:
		parts, err := tuple(value, name)
		if err != nil {
			return nil, err
		}
		var id int
		if err := json.Unmarshal(parts[0], &id); err != nil {
			return nil, fmt.Errorf("WinchStatus id: %w", err)
		}
		if id < 0 || id > MaxWinchID {
			return nil, fmt.Errorf("WinchStatus id %d out of range [0, %d]", id, MaxWinchID)
		}
		ws := WinchStatus{ID: id}
		if len(parts) > 1 {
			ws.Status = parts[1]
		}
		return ws, nil

	case KindGimbalValue:
		parts, err := tuple(value, name)
		if err != nil {
			return nil, err
		}
		var head struct {
			Addr *GimbalAddr `json:"addr"`
		}
		if err := json.Unmarshal(parts[0], &head); err != nil {
			return nil, fmt.Errorf("GimbalValue: %w", err)
		}
		if head.Addr == nil {
			return nil, errors.New("GimbalValue without addr")
		}
		gv := GimbalValue{Addr: *head.Addr, Value: parts[0]}
		if len(parts) > 1 {
			gv.Op = parts[1]
		}
		return gv, nil

	case KindCommand:
		return decodeCommand(value)

	case KindFlyerSensors:
		return FlyerSensors{Data: value}, nil
	case KindConfigIsCurrent:
		return ConfigIsCurrent{Config: value}, nil
	case KindGimbalControlStatus:
		return GimbalControlStatus{Data: value}, nil
	case KindUnhandledGimbalPacket:
		return UnhandledGimbalPacket{Data: value}, nil
	}

	return Unknown{Name: name, Data: value}, nil
}

func tuple(value json.RawMessage, name string) ([]json.RawMessage, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(value, &parts); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("%s: empty tuple", name)
	}
	return parts, nil
}

func decodeCommand(value json.RawMessage) (Payload, error) {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var name string
		if err := json.Unmarshal(trimmed, &name); err != nil {
			return nil, fmt.Errorf("Command: %w", err)
		}
		return Command{Sub: commandKindFromName(name), Name: name}, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(value, &fields); err != nil {
		return nil, fmt.Errorf("Command: %w", err)
	}
	if len(fields) != 1 {
		return nil, fmt.Errorf("Command has %d sub-kinds, want exactly 1", len(fields))
	}
	for name, data := range fields {
		return Command{Sub: commandKindFromName(name), Name: name, Data: data}, nil
	}
	return nil, errors.New("unreachable")
}

// EncodePayload produces the wire "message" object for a payload.
func EncodePayload(p Payload) (json.RawMessage, error) {
	var name string
	var value any

	switch v := p.(type) {
	case WinchStatus:
		name, value = KindWinchStatus.String(), []any{v.ID, orNull(v.Status)}
	case GimbalValue:
		head := v.Value
		if len(head) == 0 {
			encoded, err := json.Marshal(struct {
				Addr GimbalAddr `json:"addr"`
			}{v.Addr})
			if err != nil {
				return nil, err
			}
			head = encoded
		}
		name, value = KindGimbalValue.String(), []any{head, orNull(v.Op)}
	case Command:
		cmdName := v.Name
		if cmdName == "" {
			cmdName = v.Sub.String()
		}
		if v.Data == nil {
			name, value = KindCommand.String(), cmdName
		} else {
			name, value = KindCommand.String(), map[string]json.RawMessage{cmdName: v.Data}
		}
	case FlyerSensors:
		name, value = v.Kind().String(), orNull(v.Data)
	case ConfigIsCurrent:
		name, value = v.Kind().String(), orNull(v.Config)
	case GimbalControlStatus:
		name, value = v.Kind().String(), orNull(v.Data)
	case UnhandledGimbalPacket:
		name, value = v.Kind().String(), orNull(v.Data)
	case Unknown:
		name, value = v.Name, orNull(v.Data)
	default:
		return nil, fmt.Errorf("unsupported payload type %T", p)
	}

	return json.Marshal(map[string]any{name: value})
}

func orNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}

// Message is one timestamped item of a Stream burst.
type Message struct {
	Payload Payload

	// Timestamp is the server-relative time in milliseconds.
	Timestamp int64

	// LocalTimestamp is the local wall clock in Unix milliseconds, assigned
	// by clock synchronization when the burst is dispatched.
	LocalTimestamp int64

	raw json.RawMessage
}

type wireMessage struct {
	Message        json.RawMessage `json:"message"`
	Timestamp      int64           `json:"timestamp"`
	LocalTimestamp *int64          `json:"local_timestamp,omitempty"`
}

// NewMessage builds a Message from a payload, encoding its wire form.
func NewMessage(p Payload, timestamp int64) (*Message, error) {
	raw, err := EncodePayload(p)
	if err != nil {
		return nil, err
	}
	return &Message{Payload: p, Timestamp: timestamp, raw: raw}, nil
}

// Kind returns the payload variant, KindUnknown when there is no payload.
func (m *Message) Kind() Kind {
	if m == nil || m.Payload == nil {
		return KindUnknown
	}
	return m.Payload.Kind()
}

// Raw returns the undecoded wire "message" object.
func (m *Message) Raw() json.RawMessage {
	return m.raw
}

// LocalTime converts LocalTimestamp to a time.Time.
func (m *Message) LocalTime() time.Time {
	return time.UnixMilli(m.LocalTimestamp)
}

// UnmarshalJSON decodes {"message": {...}, "timestamp": n}.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if len(w.Message) == 0 {
		return errors.New("message field missing")
	}

	payload, err := DecodePayload(w.Message)
	if err != nil {
		return err
	}

	m.Payload = payload
	m.Timestamp = w.Timestamp
	m.raw = w.Message
	if w.LocalTimestamp != nil {
		m.LocalTimestamp = *w.LocalTimestamp
	}
	return nil
}

// MarshalJSON encodes the message with its local timestamp.
func (m Message) MarshalJSON() ([]byte, error) {
	raw := m.raw
	if len(raw) == 0 && m.Payload != nil {
		encoded, err := EncodePayload(m.Payload)
		if err != nil {
			return nil, err
		}
		raw = encoded
	}
	local := m.LocalTimestamp
	return json.Marshal(wireMessage{
		Message:        orNull(raw),
		Timestamp:      m.Timestamp,
		LocalTimestamp: &local,
	})
}

// EmptyCameraOutputStatus is the placeholder held for camera outputs
// before the bot has reported any.
func EmptyCameraOutputStatus() *Message {
	return &Message{
		Payload: Command{
			Sub:  CommandCameraOutputStatus,
			Name: CommandCameraOutputStatus.String(),
			Data: json.RawMessage(`{}`),
		},
		raw: json.RawMessage(`{"Command":{"CameraOutputStatus":{}}}`),
	}
}
