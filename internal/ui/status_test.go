package ui

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/tucoflyer/botclient/internal/model"
	"github.com/tucoflyer/botclient/internal/protocol"
	"github.com/tucoflyer/botclient/internal/session"
)

func fold(t *testing.T, m *model.Model, p protocol.Payload, local int64) {
	t.Helper()
	msg, err := protocol.NewMessage(p, local)
	if err != nil {
		t.Fatalf("NewMessage() error = %v", err)
	}
	msg.LocalTimestamp = local
	m.Fold(msg)
}

func TestSummarize(t *testing.T) {
	m := model.New()
	fold(t, m, protocol.WinchStatus{ID: 3, Status: json.RawMessage(`{}`)}, 100)
	fold(t, m, protocol.WinchStatus{ID: 1, Status: json.RawMessage(`{}`)}, 300)
	fold(t, m, protocol.GimbalValue{Addr: protocol.GimbalAddr{Index: 1, Target: 2}}, 200)
	fold(t, m, protocol.GimbalValue{Addr: protocol.GimbalAddr{Index: 2, Target: 2}}, 250)
	fold(t, m, protocol.FlyerSensors{Data: json.RawMessage(`{}`)}, 50)

	s := Summarize(m)

	if !reflect.DeepEqual(s.Winches, []int{1, 3}) {
		t.Errorf("Winches = %v, want [1 3]", s.Winches)
	}
	if s.GimbalValues != 2 {
		t.Errorf("GimbalValues = %d, want 2", s.GimbalValues)
	}
	if !s.HasFlyer || s.HasConfig || s.HasCamera {
		t.Errorf("flags = %+v", s)
	}
	if s.Latest != 300 {
		t.Errorf("Latest = %d, want 300", s.Latest)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(model.New())
	if len(s.Winches) != 0 || s.Latest != 0 || s.HasFlyer {
		t.Errorf("Summarize(empty) = %+v", s)
	}
	if got := Summarize(nil); got.Latest != 0 {
		t.Errorf("Summarize(nil) = %+v", got)
	}
}

func TestStatusText(t *testing.T) {
	tests := []struct {
		status session.Status
		want   string
	}{
		{session.Status{}, "disconnected"},
		{session.Status{Connected: true}, "connected"},
		{session.Status{Connected: true, Authenticated: true}, "authenticated"},
	}
	for _, tt := range tests {
		if got := StatusText(tt.status); got != tt.want {
			t.Errorf("StatusText(%+v) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestRenderStatusLine(t *testing.T) {
	line := RenderStatusLine(session.Status{Connected: true}, Summary{Winches: []int{0, 2}, GimbalValues: 4}, 0)
	for _, want := range []string{"connected", "winches", "0,2", "gimbals", "4"} {
		if !strings.Contains(line, want) {
			t.Errorf("RenderStatusLine() = %q, missing %q", line, want)
		}
	}

	empty := RenderStatusLine(session.Status{}, Summary{}, 0)
	if !strings.Contains(empty, "none") || strings.Contains(empty, " at ") {
		t.Errorf("RenderStatusLine(empty) = %q", empty)
	}
}

func TestHeaderSkipsEmptyParams(t *testing.T) {
	out := NewHeader("monitor", "botclient monitor", map[string]string{
		"Endpoint": "ws://bot/ws",
		"Capture":  "",
	}).SetWidth(80).Render()

	if !strings.Contains(out, "MONITOR") || !strings.Contains(out, "ws://bot/ws") {
		t.Errorf("Render() = %q", out)
	}
	if strings.Contains(out, "Capture") {
		t.Errorf("Render() should omit empty params: %q", out)
	}
}
