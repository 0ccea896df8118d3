package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tucoflyer/botclient/internal/bootstrap"
	"github.com/tucoflyer/botclient/internal/client"
	"github.com/tucoflyer/botclient/internal/config"
	"github.com/tucoflyer/botclient/internal/logging"
	"github.com/tucoflyer/botclient/internal/model"
	"github.com/tucoflyer/botclient/internal/protocol"
	"github.com/tucoflyer/botclient/internal/query"
	"github.com/tucoflyer/botclient/internal/recorder"
	"github.com/tucoflyer/botclient/internal/relay"
	"github.com/tucoflyer/botclient/internal/scheduler"
	"github.com/tucoflyer/botclient/internal/session"
	"github.com/tucoflyer/botclient/internal/transport"
	"github.com/tucoflyer/botclient/internal/ui"
)

// monitorOptions holds the monitor command flags.
type monitorOptions struct {
	Bot         string
	URL         string
	Key         string
	Descriptor  string
	FrameRate   int
	Raw         bool
	Path        string
	CaptureDir  string
	NATSURL     string
	NATSSubject string
}

var monitorOpts monitorOptions

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Connect to a bot and print its live state",
	Long: `Connect to a bot, authenticate and print a status line for every frame.

The endpoint is taken from --url, else from --descriptor, else from the
profile named by --bot (or the default profile). The connection is retried
with backoff until interrupted. A server Error ends the command with a
non-zero exit status.`,
	Example: `  # Default profile from the config file
  botclient monitor

  # Direct endpoint
  botclient monitor --url ws://10.32.0.1:8080/ws --key s3cret

  # Bootstrap from a descriptor, capture to disk and relay to NATS
  botclient monitor --descriptor ~/bot.txt --capture-dir ./captures --nats-url nats://localhost:4222

  # Print only the winch forces
  botclient monitor --path '$.winches[*].message.WinchStatus[1].force'`,
	RunE: runMonitor,
}

func init() {
	f := monitorCmd.Flags()
	f.StringVar(&monitorOpts.Bot, "bot", "", "Profile name from the config file")
	f.StringVar(&monitorOpts.URL, "url", "", "Websocket endpoint (ws:// or wss://)")
	f.StringVar(&monitorOpts.Key, "key", "", "Authentication key")
	f.StringVar(&monitorOpts.Descriptor, "descriptor", "", "Descriptor file to bootstrap endpoint and key from")
	f.IntVar(&monitorOpts.FrameRate, "frame-rate", 0, "Frame notifications per second (default 60)")
	f.BoolVar(&monitorOpts.Raw, "raw", false, "Print every message and control envelope as JSON")
	f.StringVar(&monitorOpts.Path, "path", "", "JSONPath to print per frame instead of the status line")
	f.StringVar(&monitorOpts.CaptureDir, "capture-dir", "", "Write a CBOR capture of the session to this directory")
	f.StringVar(&monitorOpts.NATSURL, "nats-url", "", "Relay messages to this NATS server")
	f.StringVar(&monitorOpts.NATSSubject, "nats-subject", "", "Subject prefix for relayed messages (default botclient)")
}

// target is a resolved connection.
type target struct {
	Profile   string
	Endpoint  string
	Key       string
	KeySource session.KeySource
	FrameRate int
}

// lookupFunc resolves a descriptor file to its descriptor and endpoint.
type lookupFunc func(ctx context.Context, path string) (bootstrap.Descriptor, string, error)

func resolveTarget(ctx context.Context, reg *config.Registry, opts monitorOptions, lookup lookupFunc) (target, error) {
	var t target

	fromDescriptor := func(path string) error {
		d, endpoint, err := lookup(ctx, path)
		if err != nil {
			return fmt.Errorf("bootstrapping from %s: %w", path, err)
		}
		t.Endpoint = endpoint
		t.Key = d.Key
		t.KeySource = bootstrap.FileKeySource{Path: path}
		return nil
	}

	switch {
	case opts.URL != "":
		t.Endpoint = opts.URL

	case opts.Descriptor != "":
		if err := fromDescriptor(opts.Descriptor); err != nil {
			return target{}, err
		}

	default:
		name, bot, err := reg.ResolveBot(opts.Bot)
		if err != nil {
			if errors.Is(err, config.ErrNoBot) {
				return target{}, fmt.Errorf("%w; use --url, --descriptor or 'botclient config set-bot'", err)
			}
			return target{}, err
		}
		t.Profile = name
		t.FrameRate = bot.FrameRate
		if bot.URL != "" {
			t.Endpoint = bot.URL
			t.Key = bot.Key
		} else if err := fromDescriptor(bot.Descriptor); err != nil {
			return target{}, err
		}
	}

	if opts.Key != "" {
		t.Key = opts.Key
		t.KeySource = nil
	}
	if opts.FrameRate > 0 {
		t.FrameRate = opts.FrameRate
	}
	return t, nil
}

func defaultLookup(ctx context.Context, path string) (bootstrap.Descriptor, string, error) {
	return bootstrap.Resolve(ctx, bootstrap.NewClient(), path)
}

// preferred returns flag when set, else the preference value.
func preferred(flag string, pref func(*config.Preferences) string, reg *config.Registry) string {
	if flag != "" || reg.Preferences == nil {
		return flag
	}
	return pref(reg.Preferences)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()

	reg, err := loadRegistry()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	t, err := resolveTarget(ctx, reg, monitorOpts, defaultLookup)
	if err != nil {
		fmt.Fprintln(out, ui.RenderFailure("Cannot resolve bot", err, troubleshootingFor(err)))
		return err
	}

	var q *query.Query
	if monitorOpts.Path != "" {
		if q, err = query.Compile(monitorOpts.Path); err != nil {
			return err
		}
	}

	captureDir := preferred(monitorOpts.CaptureDir, func(p *config.Preferences) string { return p.CaptureDir }, reg)
	natsURL := preferred(monitorOpts.NATSURL, func(p *config.Preferences) string { return p.NATSURL }, reg)
	natsSubject := preferred(monitorOpts.NATSSubject, func(p *config.Preferences) string { return p.NATSSubject }, reg)

	fmt.Fprintln(out, ui.RenderCommandHeader(ui.HeaderConfig{
		Title:   "Monitor",
		Command: cmd.CommandPath(),
		Params: map[string]string{
			"Profile":  t.Profile,
			"Endpoint": t.Endpoint,
			"Frames/s": strconv.Itoa(frameRate(t.FrameRate)),
			"Capture":  captureDir,
			"NATS":     natsURL,
			"Query":    monitorOpts.Path,
			"Auth":     keyState(t),
		},
	}))

	ws, err := transport.NewWebSocket(transport.Config{URL: t.Endpoint})
	if err != nil {
		return err
	}

	frames := scheduler.NewFrame(scheduler.IntervalForRate(t.FrameRate))
	defer frames.Close()

	opts := []client.Option{client.WithKey(t.Key), client.WithScheduler(frames)}
	if t.KeySource != nil {
		opts = append(opts, client.WithKeySource(t.KeySource))
	}

	var capture *recorder.Writer
	if captureDir != "" {
		if capture, err = recorder.Create(captureDir, time.Now()); err != nil {
			return err
		}
		defer func() {
			if err := capture.Close(); err != nil {
				logging.Warn("Closing capture failed", zap.Error(err))
			}
			fmt.Fprintf(out, "Captured %d events to %s\n", capture.Count(), capture.Path())
		}()
		opts = append(opts, client.WithRecorder(capture))
	}

	c := client.New(ws, opts...)
	defer c.Destroy()

	if natsURL != "" {
		r, err := relay.Connect(natsURL, natsSubject)
		if err != nil {
			return err
		}
		defer func() {
			if err := r.Close(); err != nil {
				logging.Warn("Closing relay failed", zap.Error(err))
			}
			sent, failed := r.Stats()
			logging.Info("Relay finished", zap.Int64("published", sent), zap.Int64("failed", failed))
		}()
		if _, err := r.Attach(c); err != nil {
			return err
		}
	}

	var authenticated atomic.Bool
	if err := subscribeOutput(c, out, q, &authenticated); err != nil {
		return err
	}

	err = c.Run(ctx)

	if t.Profile != "" && authenticated.Load() {
		reg.MarkConnected(t.Profile, time.Now())
		if _, saveErr := saveRegistry(reg); saveErr != nil {
			logging.Warn("Could not record last connection", zap.Error(saveErr))
		}
	}

	var serverErr *session.ServerError
	switch {
	case errors.As(err, &serverErr):
		fmt.Fprintln(out, ui.RenderFailure("Bot reported an error", serverErr, troubleshootingFor(serverErr)))
		return err
	case err != nil && ctx.Err() != nil:
		fmt.Fprintln(out, "Stopped.")
		return nil
	default:
		return err
	}
}

func subscribeOutput(c *client.Client, out io.Writer, q *query.Query, authenticated *atomic.Bool) error {
	width := ui.GetTerminalWidth()

	if _, err := c.OnAuth(func(s session.Status) {
		authenticated.Store(true)
		fmt.Fprintln(out, ui.AuthenticatedStyle.Render(ui.SuccessMarker+" authenticated"))
	}); err != nil {
		return err
	}

	if _, err := c.OnFrame(func(m *model.Model) {
		if q == nil {
			fmt.Fprintln(out, ui.RenderStatusLine(c.Status(), ui.Summarize(m), width))
			return
		}
		results, err := q.Eval(m)
		if err != nil {
			logging.Warn("Query failed", zap.String("path", q.String()), zap.Error(err))
			return
		}
		if len(results) > 0 {
			fmt.Fprintln(out, query.Format(results))
		}
	}); err != nil {
		return err
	}

	if !monitorOpts.Raw {
		return nil
	}

	if _, err := c.OnMessages(func(msgs []*protocol.Message) {
		for _, msg := range msgs {
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			fmt.Fprintln(out, string(data))
		}
	}); err != nil {
		return err
	}

	_, err := c.OnLog(func(env *protocol.Envelope) {
		fmt.Fprintf(out, "%s %s\n", ui.StatusLabelStyle.Render(env.Kind.String()), env.Raw)
	})
	return err
}

func frameRate(fps int) int {
	if fps <= 0 {
		return int(time.Second / scheduler.DefaultFrameInterval)
	}
	return fps
}

func keyState(t target) string {
	switch {
	case t.KeySource != nil:
		return "key from descriptor"
	case t.Key != "":
		return "key set"
	default:
		return "no key"
	}
}

// troubleshootingFor suggests next steps for common failures.
func troubleshootingFor(err error) []string {
	var serverErr *session.ServerError
	switch {
	case errors.As(err, &serverErr):
		return []string{
			"Check that the key matches the bot's configured secret",
			"Run with --log-level debug to see the handshake",
		}
	case bootstrap.IsType(err, bootstrap.ErrTypeConnectionRefused):
		return []string{
			"Check that the bot is powered on and its web server is running",
			"Verify the host and port in the descriptor",
		}
	case bootstrap.IsType(err, bootstrap.ErrTypeDNS):
		return []string{"Check the host name in the descriptor"}
	case bootstrap.IsType(err, bootstrap.ErrTypeTimeout), bootstrap.IsType(err, bootstrap.ErrTypeNetwork):
		return []string{
			"Check that this machine is on the bot's network",
			"Try again with --log-level debug",
		}
	case bootstrap.IsType(err, bootstrap.ErrTypeDescriptor):
		return []string{"The descriptor must contain the bot URL with its key, e.g. http://bot.local/#?k=<key>"}
	case errors.Is(err, config.ErrNoBot):
		return []string{
			"Add a profile: botclient config set-bot lab --url ws://<host>/ws --key <key>",
			"Or pass --url or --descriptor",
		}
	}
	return nil
}
