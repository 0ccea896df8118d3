package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"

	"github.com/tucoflyer/botclient/internal/model"
	"github.com/tucoflyer/botclient/internal/protocol"
	"github.com/tucoflyer/botclient/internal/session"
)

// Summary is a compact view of a model snapshot.
type Summary struct {
	Winches         []int // ids with a reported status, ascending
	GimbalValues    int   // number of gimbal value slots filled
	HasFlyer        bool
	HasGimbalStatus bool
	HasConfig       bool
	HasCamera       bool  // object detection or region tracking seen
	Latest          int64 // newest local timestamp in ms, 0 when empty
}

// Summarize condenses a snapshot.
func Summarize(m *model.Model) Summary {
	if m == nil {
		return Summary{}
	}

	gimbals := lo.Flatten(lo.MapToSlice(m.GimbalValues, func(_ int, targets map[int]*protocol.Message) []*protocol.Message {
		return lo.Values(targets)
	}))

	slots := []*protocol.Message{
		m.Flyer,
		m.GimbalStatus,
		m.Config,
		m.Camera.ObjectDetection,
		m.Camera.RegionTracking,
	}
	slots = append(slots, m.Winches...)
	slots = append(slots, gimbals...)
	slots = lo.Compact(slots)

	s := Summary{
		Winches: lo.FilterMap(m.Winches, func(w *protocol.Message, id int) (int, bool) {
			return id, w != nil
		}),
		GimbalValues:    len(lo.Compact(gimbals)),
		HasFlyer:        m.Flyer != nil,
		HasGimbalStatus: m.GimbalStatus != nil,
		HasConfig:       m.Config != nil,
		HasCamera:       m.Camera.ObjectDetection != nil || m.Camera.RegionTracking != nil,
	}
	if len(slots) > 0 {
		s.Latest = lo.Max(lo.Map(slots, func(msg *protocol.Message, _ int) int64 {
			return msg.LocalTimestamp
		}))
	}
	return s
}

// StatusText names a session state.
func StatusText(status session.Status) string {
	switch {
	case status.Authenticated:
		return "authenticated"
	case status.Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

func statusStyle(status session.Status) (string, func(...string) string) {
	switch {
	case status.Authenticated:
		return LiveMarker, AuthenticatedStyle.Render
	case status.Connected:
		return LiveMarker, ConnectedStyle.Render
	default:
		return IdleMarker, DisconnectedStyle.Render
	}
}

func flag(ok bool) string {
	if ok {
		return SuccessMarker
	}
	return IdleMarker
}

// RenderStatusLine renders one line describing the session and snapshot,
// truncated to width.
func RenderStatusLine(status session.Status, s Summary, width int) string {
	marker, render := statusStyle(status)

	winches := "none"
	if len(s.Winches) > 0 {
		winches = strings.Join(lo.Map(s.Winches, func(id int, _ int) string { return strconv.Itoa(id) }), ",")
	}

	field := func(label, value string) string {
		return StatusLabelStyle.Render(label) + " " + StatusValueStyle.Render(value)
	}

	parts := []string{
		render(marker + " " + StatusText(status)),
		field("winches", winches),
		field("gimbals", strconv.Itoa(s.GimbalValues)),
		field("flyer", flag(s.HasFlyer)),
		field("camera", flag(s.HasCamera)),
		field("config", flag(s.HasConfig)),
	}
	if s.Latest > 0 {
		parts = append(parts, field("at", time.UnixMilli(s.Latest).Format("15:04:05.000")))
	}

	line := strings.Join(parts, "  ")
	if width > 0 {
		return lipgloss.NewStyle().MaxWidth(width).Render(line)
	}
	return line
}

// RenderSummary renders a multi-line summary for the end of a replay.
func RenderSummary(status session.Status, s Summary) string {
	r := NewSuccessResult("Snapshot", map[string]string{
		"Session":       StatusText(status),
		"Winches":       fmt.Sprint(s.Winches),
		"Gimbal values": strconv.Itoa(s.GimbalValues),
		"Flyer":         flag(s.HasFlyer),
		"Camera":        flag(s.HasCamera),
		"Config":        flag(s.HasConfig),
	})
	if s.Latest > 0 {
		r.AddDetail("Latest", time.UnixMilli(s.Latest).UTC().Format(time.RFC3339Nano))
	}
	return r.Render()
}
