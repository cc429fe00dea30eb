package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/micro-ha/entitycache/internal/app"
	"github.com/micro-ha/entitycache/internal/event"
	"github.com/micro-ha/entitycache/internal/logging"
	"github.com/micro-ha/entitycache/internal/stream"
)

func NewTailCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail <pattern>",
		Short: "Print events whose topic matches pattern",
		Long: `Connect to the event stream and print every event whose topic matches
pattern. The first * in the pattern matches any substring.

Example:
  entitycache tail 'smarthome/things/*/statuschanged'
  entitycache tail 'smarthome/items/*' --format text`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTail(cmd.Context(), rootOpts, args[0], cmd.OutOrStdout())
		},
	}
	return cmd
}

func runTail(parent context.Context, opts *RootOptions, pattern string, out io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	transport, err := app.NewTransport(cfg)
	if err != nil {
		return err
	}
	client := stream.New(transport,
		stream.WithLogger(logging.NewWithWriter(os.Stderr, cfg.LogLevel, true)),
		stream.WithReconnectDelay(cfg.ReconnectDelay),
	)
	client.OnEvent(pattern, newPrinter(out, opts.Format))
	if err := client.Start(ctx); err != nil {
		return err
	}
	client.Wait()
	return nil
}

type printedEvent struct {
	Topic   string          `json:"topic"`
	Kind    string          `json:"kind"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// newPrinter returns a handler writing one line per event.
func newPrinter(out io.Writer, format string) stream.Handler {
	var mu sync.Mutex
	enc := json.NewEncoder(out)
	return func(evt event.Event) error {
		mu.Lock()
		defer mu.Unlock()
		if format == "text" {
			_, err := fmt.Fprintf(out, "%-14s %s %s\n", evt.Kind, evt.Topic, evt.Payload)
			return err
		}
		return enc.Encode(printedEvent{Topic: evt.Topic, Kind: evt.Kind.String(), ID: evt.ID, Payload: evt.Payload})
	}
}
