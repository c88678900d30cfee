/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xzzpig/graph-gateway/internal/api"
	"github.com/xzzpig/graph-gateway/internal/api/sse"
	"github.com/xzzpig/graph-gateway/internal/core/admission"
	"github.com/xzzpig/graph-gateway/internal/core/config"
	"github.com/xzzpig/graph-gateway/internal/core/gateway"
	"github.com/xzzpig/graph-gateway/internal/core/logger"
	"github.com/xzzpig/graph-gateway/internal/core/metrics"
	"github.com/xzzpig/graph-gateway/internal/core/ports"
	"github.com/xzzpig/graph-gateway/internal/core/scheduler"
	"github.com/xzzpig/graph-gateway/internal/core/upstream"
	"github.com/xzzpig/graph-gateway/internal/core/watcher"
	"github.com/xzzpig/graph-gateway/internal/i18n"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway",
	Run: func(_ *cobra.Command, _ []string) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		logger.InitLogger(logger.Environment(cfg.App.Environment), logger.LogLevel(cfg.Log.Level), cfg.Log.Levels)
		defer logger.Sync()
		log := logger.Named("cmd.serve")
		log.Info("Starting graph-gateway...", zap.String("config", config.ConfigFileUsed()))

		if err := i18n.Init(); err != nil {
			log.Fatal("Failed to initialize i18n", zap.Error(err))
		}

		if err := serve(cfg, log); err != nil {
			log.Fatal("Gateway stopped with error", zap.Error(err))
		}
		log.Info("Server exiting")
	},
}

func serve(cfg *config.Config, log *zap.Logger) error {
	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	for _, svc := range registry.Services() {
		log.Info("Upstream service registered",
			zap.String("service", svc.Name),
			zap.String("url", svc.URL),
			zap.Strings("rootFields", svc.RootFields),
		)
	}

	reg := prometheus.NewRegistry()
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(reg)
	}

	client := upstream.NewClient(upstream.NewHTTPClient(time.Duration(cfg.Upstream.Timeout) * time.Second))
	var gatewayClient ports.UpstreamClient = client
	if m != nil {
		gatewayClient = m.InstrumentClient(client)
	}

	events := sse.NewCostReportBus(sse.DefaultBufferSize)
	gateOpts := []admission.Option{
		admission.WithObserver(admission.NewLogObserver(logger.Named("core.admission.cost"))),
		admission.WithObserver(events),
	}
	if m != nil {
		gateOpts = append(gateOpts, admission.WithObserver(m))
	}

	gate, err := buildGate(cfg, gateOpts...)
	if err != nil {
		return err
	}
	holder := admission.NewHolder(gate)
	if m != nil {
		m.SetBudget(gate.Budget())
	}
	log.Info("Admission gate ready",
		zap.Int("maximumCost", gate.Budget()),
		zap.Int("defaultCost", gate.DefaultCost()),
		zap.String("multiplierPolicy", string(gate.Policy())),
		zap.Int("rules", len(gate.Rules())),
	)

	if cfg.Admission.RulesFile != "" && cfg.Admission.Watch {
		reload := func() error {
			next, err := buildGate(cfg, gateOpts...)
			if err != nil {
				log.Error("Failed to reload cost rules, keeping the current gate", zap.Error(err))
				return err
			}
			holder.Swap(next)
			if m != nil {
				m.SetBudget(next.Budget())
			}
			log.Info("Cost rules reloaded", zap.Int("maximumCost", next.Budget()), zap.Int("rules", len(next.Rules())))
			return nil
		}
		rw, err := watcher.NewRulesWatcher(cfg.Admission.RulesFile, reload)
		if err != nil {
			return fmt.Errorf("failed to create rules watcher: %w", err)
		}
		if err := rw.Start(); err != nil {
			return fmt.Errorf("failed to watch rules file: %w", err)
		}
		defer rw.Stop()
	}

	rt, err := gateway.New(gatewayConfig(cfg, registry, gatewayClient, holder))
	if err != nil {
		return err
	}

	health := scheduler.NewHealthScheduler(registry, client, cfg.Health.Schedule)
	if err := health.Start(); err != nil {
		return fmt.Errorf("failed to start health scheduler: %w", err)
	}
	defer health.Stop()

	deps := api.Deps{
		Config:   cfg,
		Executor: rt,
		Gates:    holder,
		Health:   health,
		Events:   events,
	}
	if m != nil {
		deps.Gatherer = reg
	}
	r := api.SetupRouter(deps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Server starting", zap.String("address", addr))

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// kill (no param) sends SIGTERM, kill -2 is SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}
	log.Info("Shutdown signal received, stopping server...")

	timeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	config.BindFlags(serveCmd)
}
