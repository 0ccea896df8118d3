package ui

import (
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"
)

// Header is the banner printed when a command starts.
type Header struct {
	Title   string            // e.g., "MONITOR"
	Command string            // e.g., "botclient monitor --bot lab"
	Params  map[string]string // e.g., {"Endpoint": "ws://10.0.0.5:8080/ws"}
	Width   int               // Terminal width for responsive rendering
}

// NewHeader creates a new header with the given values
func NewHeader(title, command string, params map[string]string) *Header {
	return &Header{
		Title:   title,
		Command: command,
		Params:  params,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (h *Header) SetWidth(width int) *Header {
	h.Width = width
	return h
}

// Render returns the styled header as a string. Parameters are listed in
// key order with empty values omitted.
func (h *Header) Render() string {
	width := clampWidth(h.Width)

	titleLine := HeaderTitleStyle.Render(strings.ToUpper(h.Title))
	commandLine := HeaderCommandStyle.Render(h.Command)
	content := lipgloss.JoinVertical(lipgloss.Left, titleLine, commandLine)

	keys := lo.Filter(lo.Keys(h.Params), func(k string, _ int) bool {
		return h.Params[k] != ""
	})
	slices.Sort(keys)

	if len(keys) > 0 {
		pad := lo.Max(lo.Map(keys, func(k string, _ int) int { return len(k) }))
		paramLines := lo.Map(keys, func(k string, _ int) string {
			key := HeaderParamKeyStyle.Render(k + ":" + strings.Repeat(" ", pad-len(k)))
			return key + " " + HeaderParamValueStyle.Render(h.Params[k])
		})

		dividerWidth := max(width-6, 10) // Account for border and padding
		divider := RenderHorizontalDivider(dividerWidth, "─")
		content = lipgloss.JoinVertical(lipgloss.Left, content, divider, strings.Join(paramLines, "\n"))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(width - 2). // Account for border characters
		Render(content)
}

// String implements fmt.Stringer
func (h *Header) String() string {
	return h.Render()
}

// HeaderConfig is a convenience type for creating headers
type HeaderConfig struct {
	Title   string
	Command string
	Params  map[string]string
}

// RenderCommandHeader is a convenience function to render a header directly
func RenderCommandHeader(config HeaderConfig) string {
	return NewHeader(config.Title, config.Command, config.Params).Render()
}
