package main

import (
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/tucoflyer/botclient/internal/client"
	"github.com/tucoflyer/botclient/internal/protocol"
	"github.com/tucoflyer/botclient/internal/query"
	"github.com/tucoflyer/botclient/internal/recorder"
	"github.com/tucoflyer/botclient/internal/session"
	"github.com/tucoflyer/botclient/internal/transport"
	"github.com/tucoflyer/botclient/internal/ui"
)

var (
	replayPath  string
	replayKey   string
	replayQuiet bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <capture>",
	Short: "Replay a captured session",
	Long: `Feed a capture written by 'monitor --capture-dir' through the client.

Message timestamps are reproduced from the capture's receive times, so the
final model matches what the live session held. Nothing is sent.`,
	Example: `  botclient replay captures/capture-20260102-030405.cbor
  botclient replay capture.cbor --path '$.config.message'`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayPath, "path", "", "JSONPath to print from the final snapshot")
	replayCmd.Flags().StringVar(&replayKey, "key", "", "Key used to answer recorded challenges")
	replayCmd.Flags().BoolVar(&replayQuiet, "quiet", false, "Only print the result")
}

func runReplay(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	var q *query.Query
	if replayPath != "" {
		var err error
		if q, err = query.Compile(replayPath); err != nil {
			return err
		}
	}

	src, err := recorder.Open(args[0])
	if err != nil {
		return err
	}
	defer src.Close()

	c := client.New(transport.NewMemory(1), client.WithKey(replayKey))
	defer c.Destroy()

	var bursts, messages atomic.Int64
	if _, err := c.OnMessages(func(msgs []*protocol.Message) {
		bursts.Add(1)
		messages.Add(int64(len(msgs)))
	}); err != nil {
		return err
	}

	n, err := c.Replay(cmd.Context(), src)
	var serverErr *session.ServerError
	if err != nil && !errors.As(err, &serverErr) {
		return fmt.Errorf("replaying %s: %w", args[0], err)
	}

	snap := c.Snapshot()
	if q != nil {
		results, qErr := q.Eval(snap)
		if qErr != nil {
			return qErr
		}
		fmt.Fprintln(out, query.Format(results))
	} else {
		fmt.Fprintln(out, ui.RenderSummary(c.Status(), ui.Summarize(snap)))
	}

	if !replayQuiet {
		fmt.Fprintln(out, ui.StatusLabelStyle.Render(fmt.Sprintf("%s records, %s bursts, %s messages",
			strconv.Itoa(n), strconv.FormatInt(bursts.Load(), 10), strconv.FormatInt(messages.Load(), 10))))
	}

	if serverErr != nil {
		fmt.Fprintln(out, ui.RenderFailure("Capture ends with a bot error", serverErr, nil))
		return serverErr
	}
	return nil
}
