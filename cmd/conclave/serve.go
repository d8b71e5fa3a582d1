package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rendis/conclave/internal/logging"
	"github.com/rendis/conclave/internal/panel"
	"github.com/rendis/conclave/internal/scheduler"
	conclavemcp "github.com/rendis/conclave/pkg/mcp"
)

func newServeCmd(a *app) *cobra.Command {
	var withMCP bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web panel",
		Long: `Serve the browser demo on listen_addr. With --mcp the same run is also
exposed as MCP tools over stdio, so an agent and a browser can share it.

SIGHUP rereads settings.json and the environment: log_level and
allowed_origins apply immediately, other fields need a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context(), withMCP)
		},
	}

	f := cmd.Flags()
	f.String("listen-addr", ":4100", "TCP listen address")
	f.String("base-url", "", "public base URL (derived from listen-addr if empty)")
	f.StringSlice("allowed-origins", nil, "origins allowed by CORS and the WebSocket handshake (default: any)")
	f.BoolVar(&withMCP, "mcp", false, "also serve MCP tools over stdio")
	return cmd
}

func (a *app) serve(ctx context.Context, withMCP bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	seq, hub, err := a.newSequencer(nil)
	if err != nil {
		return err
	}
	defer seq.Close()

	deps := panel.PanelDeps{
		Runner:         seq,
		Hub:            hub,
		Logger:         a.logger,
		AllowedOrigins: a.cfg.AllowedOrigins,
	}
	swapper := newHandlerSwapper(panel.NewPanelServer(deps).Handler())
	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           swapper,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := writePIDFile(); err != nil {
		a.logger.Warn("cannot write pid file", "path", pidPath(), "error", err)
	} else {
		defer os.Remove(pidPath())
	}

	eg, egCtx := errgroup.WithContext(ctx)

	if len(a.cfg.Autoplay) > 0 {
		sched, err := scheduler.NewScheduler(seq, a.cfg.Autoplay, a.logger)
		if err != nil {
			return err
		}
		if err := sched.Start(egCtx); err != nil {
			return err
		}
		defer sched.Stop()
	}

	eg.Go(func() error {
		a.logger.Info("panel listening", "addr", a.cfg.ListenAddr, "url", a.cfg.BaseURL, "script", seq.Script().Name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", a.cfg.ListenAddr, err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		a.logger.Info("shutting down")
		_ = seq.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	eg.Go(func() error {
		a.watchReload(egCtx, deps, swapper)
		return nil
	})

	if withMCP {
		eg.Go(func() error {
			mcpSrv := conclavemcp.NewConclaveServer(conclavemcp.ConclaveServerDeps{
				Runner: seq,
				Hub:    hub,
				Logger: a.logger,
				BinDir: binDir(),
			})
			a.logger.Info("mcp serving on stdio")
			return mcpSrv.Serve(egCtx)
		})
	}

	return eg.Wait()
}

// watchReload applies configuration changes on SIGHUP until ctx is done.
func (a *app) watchReload(ctx context.Context, deps panel.PanelDeps, swapper *handlerSwapper) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			next := loadConfig()
			d := diffConfigs(a.cfg, next)
			if d.LogLevelChanged {
				a.level.Set(logging.ParseLevel(next.LogLevel))
				a.cfg.LogLevel = next.LogLevel
			}
			if d.OriginsChanged {
				deps.AllowedOrigins = next.AllowedOrigins
				swapper.Swap(panel.NewPanelServer(deps).Handler())
				a.cfg.AllowedOrigins = next.AllowedOrigins
			}
			if len(d.RestartNeeded) > 0 {
				a.logger.Warn("configuration changes need a restart", "fields", d.RestartNeeded)
			}
			a.logger.Info("configuration reloaded", "log_level", a.cfg.LogLevel, "allowed_origins", a.cfg.AllowedOrigins)
		}
	}
}

func writePIDFile() error {
	if err := os.MkdirAll(conclaveDir(), 0o700); err != nil {
		return err
	}
	return os.WriteFile(pidPath(), []byte(strconv.Itoa(os.Getpid())), 0o644)
}
