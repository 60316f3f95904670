package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/avramakis/hivemind/internal/bridge"
	"github.com/avramakis/hivemind/internal/config"
	"github.com/avramakis/hivemind/internal/cron"
	"github.com/avramakis/hivemind/internal/events"
	"github.com/avramakis/hivemind/internal/gateway"
	"github.com/avramakis/hivemind/internal/metrics"
	"github.com/avramakis/hivemind/internal/node"
	"github.com/avramakis/hivemind/internal/orchestrator"
	"github.com/avramakis/hivemind/internal/store"
	"github.com/avramakis/hivemind/internal/vault"
	"github.com/avramakis/hivemind/internal/web"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("hivemind %s\n", version)
	case "coordinator":
		if err := runCoordinator(); err != nil {
			slog.Error("coordinator failed", "error", err)
			os.Exit(1)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: hivemind <command>\n\nCommands:\n  coordinator    Start the swarm coordinator\n  version        Print version\n")
}

func runCoordinator() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("starting hivemind coordinator", "version", version, "id", cfg.Coordinator.ID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SQLite store
	db, err := store.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()
	slog.Info("store initialized", "path", cfg.Store.Path)

	// Embedded NATS
	var bus *events.Bus
	var eventsClient *events.Client
	if cfg.NATS.Enabled {
		bus, err = events.NewBus(cfg.NATS)
		if err != nil {
			return fmt.Errorf("init nats: %w", err)
		}
		defer bus.Close()
		slog.Info("nats started", "port", cfg.NATS.Port)

		eventsClient, err = events.NewClient(bus)
		if err != nil {
			return fmt.Errorf("init nats client: %w", err)
		}
		defer eventsClient.Close()
	}

	// Node bridge with seeded workers
	br, err := bridge.New(cfg.Coordinator.ID, cfg.Bridge)
	if err != nil {
		return fmt.Errorf("init bridge: %w", err)
	}
	seedNodes(br, cfg.Nodes)

	// Orchestrator
	orch := orchestrator.New(cfg.Coordinator, cfg.Orchestrator, br)
	if eventsClient != nil {
		orch.SetEvents(eventsClient)
	}
	orch.SetMetrics(metrics.NewCollector(prometheus.DefaultRegisterer))
	orch.Start(ctx)
	defer orch.Stop()

	// Cron scheduler
	if cfg.Cron.Enabled {
		sched := cron.New(db, orch, eventsClient, cfg.Cron)
		go sched.Start(ctx)
	}

	// Telegram gateway
	if cfg.Telegram.Token != "" {
		tg, err := gateway.NewTelegram(cfg.Telegram, orch)
		if err != nil {
			return fmt.Errorf("init telegram gateway: %w", err)
		}
		go tg.Start(ctx)
		slog.Info("telegram gateway started")
	} else {
		slog.Warn("telegram token not set, gateway disabled")
	}

	// Sealed secret storage
	var v *vault.Vault
	if cfg.Vault.Passphrase != "" {
		v = vault.New(cfg.Vault.Passphrase)
		slog.Info("vault enabled")
	}

	// Web API
	if cfg.Web.Enabled {
		srv := web.NewServer(db, bus, orch, br, v, cfg.Web, version)
		go func() {
			if err := srv.Start(ctx); err != nil {
				slog.Error("web server error", "error", err)
			}
		}()
		slog.Info("web server started", "port", cfg.Web.Port)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)
	cancel()

	return nil
}

func seedNodes(br *bridge.Bridge, seeds []config.NodeSeed) {
	for _, seed := range seeds {
		caps := make([]node.Capability, 0, len(seed.Capabilities))
		for _, c := range seed.Capabilities {
			caps = append(caps, node.Capability(c))
		}

		name := seed.Name
		if name == "" {
			name = seed.ID
		}

		n := node.New(seed.ID, name, seed.Endpoint, node.ParseArch(seed.Arch), caps)
		br.Register(n, seed.AuthToken)
		slog.Info("node seeded", "node", seed.ID, "endpoint", seed.Endpoint, "capabilities", seed.Capabilities)
	}
}
