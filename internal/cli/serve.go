package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/brawl/internal/catalog"
	"github.com/roach88/brawl/internal/config"
	"github.com/roach88/brawl/internal/match"
	"github.com/roach88/brawl/internal/notify"
	"github.com/roach88/brawl/internal/scheduler"
	"github.com/roach88/brawl/internal/store"
	"github.com/roach88/brawl/internal/transport"
)

const shutdownTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command. Empty flags fall back to
// the BRAWL_* environment.
type ServeOptions struct {
	*RootOptions
	Addr     string
	Database string
	Catalog  string

	// ready, when set, receives the bound listener address.
	ready func(addr string)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the match server",
		Long: `Run the HTTP match server.

The server opens (or creates) the SQLite database, restores every unfinished
match, and advances matches as their phase timers expire. Settings come from
BRAWL_* environment variables and an optional .env file; flags override them.

Example:
  brawl serve
  brawl serve --addr :9000 --db /var/lib/brawl/brawl.db
  brawl serve --catalog ./content --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default $BRAWL_ADDR or :8080)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $BRAWL_DB_PATH or brawl.db)")
	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "CUE catalog file or directory (default: embedded)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return exitError(ExitCommandError, "invalid configuration", err)
	}
	if opts.Addr != "" {
		cfg.Addr = opts.Addr
	}
	if opts.Database != "" {
		cfg.DBPath = opts.Database
	}
	if opts.Catalog != "" {
		cfg.CatalogPath = opts.Catalog
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, opts.Verbose)

	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return exitError(ExitCommandError, "failed to load catalog", err)
	}

	logger.Info("opening database", "path", cfg.DBPath)
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return exitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := notify.New(notify.WithLogger(logger), notify.WithPollTimeout(cfg.PollTimeout))
	svc := match.NewService(st, hub, cat, match.WithLogger(logger))

	restored, err := svc.Restore(ctx)
	if err != nil {
		return exitError(ExitCommandError, "failed to restore matches", err)
	}
	logger.Info("matches restored", "count", restored)

	sched := scheduler.New(svc, scheduler.WithInterval(cfg.TickInterval), scheduler.WithLogger(logger))

	api := transport.New(svc, hub, transport.WithLogger(logger), transport.WithMaxPoll(cfg.PollTimeout))
	srv := &http.Server{
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return exitError(ExitCommandError, fmt.Sprintf("failed to listen on %s", cfg.Addr), err)
	}
	logger.Info("server listening", "addr", ln.Addr().String())
	if opts.ready != nil {
		opts.ready(ln.Addr().String())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sched.Start(gctx)
		return nil
	})
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sched.Stop()
		// Release parked polls first so Shutdown does not wait on them.
		hub.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return exitError(ExitFailure, "server error", err)
	}
	logger.Info("server stopped gracefully")
	return nil
}

// loadCatalog reads a catalog from a .cue file or a directory of them.
// An empty path selects the embedded catalog.
func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return catalog.LoadDir(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return catalog.Parse(data, path)
}
