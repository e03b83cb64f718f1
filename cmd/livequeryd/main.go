package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/openmon/livequery/internal/config"
	"github.com/openmon/livequery/internal/ec"
	"github.com/openmon/livequery/internal/logger"
	"github.com/openmon/livequery/internal/metrics"
	"github.com/openmon/livequery/internal/query"
	"github.com/openmon/livequery/internal/rrd"
	"github.com/openmon/livequery/internal/server"
	"github.com/openmon/livequery/internal/state"
	"github.com/openmon/livequery/internal/tables"
)

// Version is set at build time
var Version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("version", Version).Msg("Starting livequeryd...")

	core, err := state.LoadSnapshot(cfg.State.SnapshotPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.State.SnapshotPath).Msg("Failed to load state snapshot")
	}
	log.Info().
		Int("hosts", len(core.Hosts())).
		Int("services", len(core.Services())).
		Msg("State snapshot loaded")

	serviceAuth := state.AuthLoose
	if cfg.Auth.ServiceAuthorization == "strict" {
		serviceAuth = state.AuthStrict
	}
	groupAuth := state.AuthAny
	if cfg.Auth.GroupAuthorization == "strict" {
		groupAuth = state.AuthAll
	}

	var archive *rrd.Provider
	if cfg.RRD.Enabled {
		tool := &rrd.RRDTool{Bin: cfg.RRD.RRDToolPath, Log: logger.Get("rrdtool")}
		archive = &rrd.Provider{
			Locator:      rrd.FileLocator{Dir: cfg.RRD.DataDir},
			Archive:      tool,
			Flusher:      tool,
			DaemonSocket: cfg.RRD.CachedSocket,
			Log:          logger.Get("rrd"),
		}
		log.Info().Str("data_dir", cfg.RRD.DataDir).Msg("RRD archive enabled")
	}

	var bridge *ec.Bridge
	if cfg.EventConsole.Enabled {
		bridge = &ec.Bridge{
			Dialer: ec.UnixDialer{
				Path:    cfg.EventConsole.SocketPath,
				Timeout: time.Duration(cfg.EventConsole.ConnectTimeout) * time.Second,
			},
			Core: core,
			Log:  logger.Get("ec"),
		}
		log.Info().Str("socket", cfg.EventConsole.SocketPath).Msg("Event console bridge enabled")
	}

	store := server.NewStore(core, serviceAuth, cfg.Server.MaxResponseSize, logger.Get("store"))
	allTables := []query.Table{
		tables.NewHosts(core, archive),
		tables.NewServices(core, archive),
		tables.NewHostGroups(core, groupAuth),
		tables.NewServiceGroups(core, groupAuth),
		tables.NewCommands(core),
		tables.NewEventConsoleEvents(bridge, archive),
		tables.NewEventConsoleHistory(bridge, archive),
	}
	columnsTable := tables.NewColumns()
	for _, t := range allTables {
		store.AddTable(t)
		columnsTable.AddTable(t)
	}
	columnsTable.AddTable(columnsTable)
	store.AddTable(columnsTable)

	srv := server.New(
		cfg.Server.SocketPath,
		time.Duration(cfg.Server.IdleTimeout)*time.Second,
		store,
		logger.Get("server"),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	if cfg.Metrics.Enabled {
		g.Go(func() error { return metrics.Serve(ctx, cfg.Metrics.Addr, logger.Get("metrics")) })
	}

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
	log.Info().Msg("Shutdown complete")
}
