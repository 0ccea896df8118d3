// Package client assembles the bot client from its parts and runs it.
//
// A Client owns one transport, one session controller, one dispatcher and
// the subscriber registry. Run is its event loop: transport events,
// scheduler ticks and key updates all execute on the goroutine that called
// Run, so the session and model are never mutated concurrently.
//
//	ws, _ := transport.NewWebSocket(transport.Config{URL: endpoint})
//	frames := scheduler.NewFrame(scheduler.DefaultFrameInterval)
//	defer frames.Close()
//
//	c := client.New(ws, client.WithKey(key), client.WithScheduler(frames))
//	defer c.Destroy()
//
//	c.OnFrame(func(m *model.Model) { render(m) })
//	c.OnAuth(func(s session.Status) { log.Println("authenticated") })
//
//	if err := c.Run(ctx); err != nil {
//	    var serverErr *session.ServerError
//	    if errors.As(err, &serverErr) { ... }
//	}
//
// Run returns a *session.ServerError when the bot reports an Error, nil
// after Destroy and ctx.Err() when the context ends.
//
// Status, Snapshot, Send, SetKey and Destroy are safe to call from any
// goroutine. After Destroy no handler is called again.
package client
