// Package ui renders console output for the botclient commands.
//
// Output is print-once: a Header when a command starts, a status line per
// frame notification while monitoring, and a Result box when the command
// finishes. Nothing here reads input.
//
//	fmt.Println(ui.RenderCommandHeader(ui.HeaderConfig{
//	    Title:   "Monitor",
//	    Command: "botclient monitor --bot lab",
//	    Params:  map[string]string{"Endpoint": endpoint},
//	}))
//
//	c.OnFrame(func(m *model.Model) {
//	    fmt.Println(ui.RenderStatusLine(c.Status(), ui.Summarize(m), width))
//	})
//
// Styles come from lipgloss and degrade to plain text when stdout is not a
// terminal. Logging is controlled separately by BOTCLIENT_LOG_LEVEL so that
// zap output does not interleave with the rendered lines unless asked for.
package ui
