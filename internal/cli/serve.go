package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/micro-ha/entitycache/internal/app"
	"github.com/micro-ha/entitycache/internal/logging"
	"github.com/micro-ha/entitycache/internal/storage"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr      string
	Database  string
	NoPersist bool
}

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the cache and its HTTP API",
		Long: `Run the entity cache: connect to the event stream, load every collection,
keep it reconciled and serve it over HTTP.

Example:
  entitycache serve --config /etc/entitycache.yaml
  SERVER_URL=http://openhab:8080 entitycache serve --addr :8099 --no-persist`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "override HTTP_ADDR")
	cmd.Flags().StringVar(&opts.Database, "db", "", "override DB_PATH")
	cmd.Flags().BoolVar(&opts.NoPersist, "no-persist", false, "do not persist snapshots")

	return cmd
}

func runServe(parent context.Context, opts *ServeOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.HTTPAddr = opts.Addr
	}
	if opts.Database != "" {
		cfg.DBPath = opts.Database
	}
	logger := logging.NewWithWriter(os.Stdout, cfg.LogLevel, opts.Format == "text")

	var appOpts []app.Option
	if !opts.NoPersist && cfg.DBPath != "" {
		if err := os.MkdirAll(cfg.DBDir(), 0o755); err != nil {
			return fmt.Errorf("create db directory: %w", err)
		}
		db, err := storage.New(ctx, cfg.DBPath, logger.With("component", "storage"))
		if err != nil {
			return fmt.Errorf("initialize storage: %w", err)
		}
		defer db.Close()
		appOpts = append(appOpts, app.WithPersister(db))
	}

	a, err := app.New(cfg, logger, appOpts...)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}
