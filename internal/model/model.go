package model

import (
	"encoding/json"
	"maps"
	"strconv"

	"github.com/tucoflyer/botclient/internal/protocol"
)

// Camera holds the last camera command of each folded sub-kind.
type Camera struct {
	ObjectDetection *protocol.Message `json:"object_detection"`
	RegionTracking  *protocol.Message `json:"region_tracking"`
	Outputs         *protocol.Message `json:"outputs"`
}

// Model is the latest known message per category. Nil means nothing has
// been received for that category yet, except Camera.Outputs which starts
// as an empty placeholder.
type Model struct {
	Flyer *protocol.Message

	// Winches is indexed by winch id. Unreported ids are nil.
	Winches []*protocol.Message

	// GimbalValues is keyed by gimbal index, then target id.
	GimbalValues map[int]map[int]*protocol.Message

	GimbalStatus *protocol.Message
	Camera       Camera
	Config       *protocol.Message
}

// New returns an empty model.
func New() *Model {
	return &Model{
		GimbalValues: make(map[int]map[int]*protocol.Message),
		Camera:       Camera{Outputs: protocol.EmptyCameraOutputStatus()},
	}
}

// Fold stores msg in the slot for its category and reports whether the
// model changed. Variants without a slot leave the model untouched.
func (m *Model) Fold(msg *protocol.Message) bool {
	if msg == nil {
		return false
	}

	switch p := msg.Payload.(type) {
	case protocol.WinchStatus:
		if p.ID < 0 || p.ID > protocol.MaxWinchID {
			return false
		}
		if p.ID >= len(m.Winches) {
			grown := make([]*protocol.Message, p.ID+1)
			copy(grown, m.Winches)
			m.Winches = grown
		}
		m.Winches[p.ID] = msg

	case protocol.FlyerSensors:
		m.Flyer = msg

	case protocol.ConfigIsCurrent:
		m.Config = msg

	case protocol.GimbalValue:
		if m.GimbalValues == nil {
			m.GimbalValues = make(map[int]map[int]*protocol.Message)
		}
		targets, ok := m.GimbalValues[p.Addr.Index]
		if !ok {
			targets = make(map[int]*protocol.Message)
			m.GimbalValues[p.Addr.Index] = targets
		}
		targets[p.Addr.Target] = msg

	case protocol.GimbalControlStatus:
		m.GimbalStatus = msg

	case protocol.Command:
		switch p.Sub {
		case protocol.CommandCameraObjectDetection:
			m.Camera.ObjectDetection = msg
		case protocol.CommandCameraRegionTracking:
			m.Camera.RegionTracking = msg
		case protocol.CommandCameraOutputStatus:
			m.Camera.Outputs = msg
		default:
			return false
		}

	default:
		return false
	}
	return true
}

// Winch returns the last status of a winch, or nil.
func (m *Model) Winch(id int) *protocol.Message {
	if id < 0 || id >= len(m.Winches) {
		return nil
	}
	return m.Winches[id]
}

// Gimbal returns the last value of a gimbal register, or nil.
func (m *Model) Gimbal(index, target int) *protocol.Message {
	return m.GimbalValues[index][target]
}

// Snapshot returns a copy of m whose containers are not shared with m.
func (m *Model) Snapshot() *Model {
	snap := *m
	snap.Winches = append([]*protocol.Message(nil), m.Winches...)
	snap.GimbalValues = make(map[int]map[int]*protocol.Message, len(m.GimbalValues))
	for index, targets := range m.GimbalValues {
		snap.GimbalValues[index] = maps.Clone(targets)
	}
	return &snap
}

type modelJSON struct {
	Flyer        *protocol.Message                       `json:"flyer"`
	Winches      []*protocol.Message                     `json:"winches"`
	GimbalValues map[string]map[string]*protocol.Message `json:"gimbal_values"`
	GimbalStatus *protocol.Message                       `json:"gimbal_status"`
	Camera       Camera                                  `json:"camera"`
	Config       *protocol.Message                       `json:"config"`
}

// MarshalJSON encodes the model with snake_case keys.
func (m *Model) MarshalJSON() ([]byte, error) {
	out := modelJSON{
		Flyer:        m.Flyer,
		Winches:      m.Winches,
		GimbalValues: make(map[string]map[string]*protocol.Message, len(m.GimbalValues)),
		GimbalStatus: m.GimbalStatus,
		Camera:       m.Camera,
		Config:       m.Config,
	}
	if out.Winches == nil {
		out.Winches = []*protocol.Message{}
	}
	for index, targets := range m.GimbalValues {
		row := make(map[string]*protocol.Message, len(targets))
		for target, msg := range targets {
			row[strconv.Itoa(target)] = msg
		}
		out.GimbalValues[strconv.Itoa(index)] = row
	}
	return json.Marshal(out)
}
