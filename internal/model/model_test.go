package model

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tucoflyer/botclient/internal/protocol"
)

// sameMessage compares messages by identity; the model stores the
// dispatched pointers, never copies.
var sameMessage = cmp.Comparer(func(a, b *protocol.Message) bool { return a == b })

func mustMessage(t *testing.T, p protocol.Payload, ts int64) *protocol.Message {
	t.Helper()
	msg, err := protocol.NewMessage(p, ts)
	if err != nil {
		t.Fatalf("NewMessage() error = %v", err)
	}
	return msg
}

func camera(t *testing.T, sub protocol.CommandKind, ts int64) *protocol.Message {
	return mustMessage(t, protocol.Command{Sub: sub, Data: json.RawMessage(`{}`)}, ts)
}

func TestNewModelDefaults(t *testing.T) {
	m := New()

	if m.Camera.Outputs == nil {
		t.Fatal("Camera.Outputs is nil, want empty placeholder")
	}
	if cmd := m.Camera.Outputs.Payload.(protocol.Command); cmd.Sub != protocol.CommandCameraOutputStatus {
		t.Errorf("placeholder sub-kind = %v", cmd.Sub)
	}
	if m.Flyer != nil || m.Config != nil || m.GimbalStatus != nil {
		t.Error("expected empty categories")
	}
}

func TestFold(t *testing.T) {
	winch2 := mustMessage(t, protocol.WinchStatus{ID: 2}, 1)
	flyer := mustMessage(t, protocol.FlyerSensors{Data: json.RawMessage(`{}`)}, 2)
	cfg := mustMessage(t, protocol.ConfigIsCurrent{Config: json.RawMessage(`{}`)}, 3)
	gimbal := mustMessage(t, protocol.GimbalValue{Addr: protocol.GimbalAddr{Index: 1, Target: 4}}, 4)
	status := mustMessage(t, protocol.GimbalControlStatus{Data: json.RawMessage(`{}`)}, 5)
	detect := camera(t, protocol.CommandCameraObjectDetection, 6)

	m := New()
	for _, msg := range []*protocol.Message{winch2, flyer, cfg, gimbal, status, detect} {
		if !m.Fold(msg) {
			t.Errorf("Fold(%v) = false, want true", msg.Kind())
		}
	}

	want := &Model{
		Flyer:        flyer,
		Winches:      []*protocol.Message{nil, nil, winch2},
		GimbalValues: map[int]map[int]*protocol.Message{1: {4: gimbal}},
		GimbalStatus: status,
		Camera:       Camera{ObjectDetection: detect, Outputs: m.Camera.Outputs},
		Config:       cfg,
	}
	if diff := cmp.Diff(want, m, sameMessage); diff != "" {
		t.Errorf("model mismatch (-want +got):\n%s", diff)
	}
	if m.Winch(2) != winch2 || m.Winch(7) != nil || m.Winch(-1) != nil {
		t.Error("Winch() lookup mismatch")
	}
	if m.Gimbal(1, 4) != gimbal || m.Gimbal(9, 9) != nil {
		t.Error("Gimbal() lookup mismatch")
	}
}

func TestFoldIdempotent(t *testing.T) {
	msg := mustMessage(t, protocol.WinchStatus{ID: 0}, 10)

	m := New()
	m.Fold(msg)
	m.Fold(msg)

	if len(m.Winches) != 1 || m.Winches[0] != msg {
		t.Errorf("Winches = %v, want [msg]", m.Winches)
	}
}

func TestFoldLastWriteWinsByArrival(t *testing.T) {
	newer := mustMessage(t, protocol.FlyerSensors{}, 2000)
	older := mustMessage(t, protocol.FlyerSensors{}, 1000)

	m := New()
	m.Fold(newer)
	m.Fold(older)

	if m.Flyer != older {
		t.Error("later arrival with older timestamp did not overwrite")
	}
}

func TestFoldCategoryIsolation(t *testing.T) {
	detect := camera(t, protocol.CommandCameraObjectDetection, 1)

	m := New()
	m.Fold(detect)
	outputs := m.Camera.Outputs

	tracking := camera(t, protocol.CommandCameraRegionTracking, 2)
	m.Fold(tracking)

	want := Camera{ObjectDetection: detect, RegionTracking: tracking, Outputs: outputs}
	if diff := cmp.Diff(want, m.Camera, sameMessage); diff != "" {
		t.Errorf("camera mismatch (-want +got):\n%s", diff)
	}
}

func TestFoldIgnoredVariants(t *testing.T) {
	tests := []struct {
		name    string
		payload protocol.Payload
	}{
		{"unhandled gimbal packet", protocol.UnhandledGimbalPacket{Data: json.RawMessage(`[1]`)}},
		{"other command", protocol.Command{Name: "ManualControlReset"}},
		{"unknown variant", protocol.Unknown{Name: "Lidar", Data: json.RawMessage(`1`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			before := m.Snapshot()
			if m.Fold(mustMessage(t, tt.payload, 1)) {
				t.Error("Fold() = true, want false")
			}
			if diff := cmp.Diff(before, m, sameMessage); diff != "" {
				t.Errorf("model changed (-before +after):\n%s", diff)
			}
		})
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	m := New()
	m.Fold(mustMessage(t, protocol.WinchStatus{ID: 0}, 1))
	m.Fold(mustMessage(t, protocol.GimbalValue{Addr: protocol.GimbalAddr{Index: 0, Target: 0}}, 1))

	snap := m.Snapshot()

	replacement := mustMessage(t, protocol.WinchStatus{ID: 0}, 2)
	m.Fold(replacement)
	m.Fold(mustMessage(t, protocol.GimbalValue{Addr: protocol.GimbalAddr{Index: 0, Target: 1}}, 2))

	if snap.Winches[0] == replacement {
		t.Error("snapshot winch slot changed after fold")
	}
	if len(snap.GimbalValues[0]) != 1 {
		t.Errorf("snapshot gimbal row has %d entries, want 1", len(snap.GimbalValues[0]))
	}
}

func TestMarshalJSON(t *testing.T) {
	m := New()
	m.Fold(mustMessage(t, protocol.GimbalValue{Addr: protocol.GimbalAddr{Index: 2, Target: 5}}, 7))

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	for _, key := range []string{"flyer", "winches", "gimbal_values", "gimbal_status", "camera", "config"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}

	gimbal := decoded["gimbal_values"].(map[string]any)["2"].(map[string]any)["5"].(map[string]any)
	if gimbal["timestamp"] != float64(7) {
		t.Errorf("gimbal timestamp = %v, want 7", gimbal["timestamp"])
	}
	if winches := decoded["winches"].([]any); len(winches) != 0 {
		t.Errorf("winches = %v, want empty", winches)
	}
}
