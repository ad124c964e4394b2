package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/dreschagin/aip-monitor/internal/application/usecase"
	"github.com/dreschagin/aip-monitor/internal/domain/valueobject"
	"github.com/dreschagin/aip-monitor/internal/infrastructure/hostinfo"
	wsInfra "github.com/dreschagin/aip-monitor/internal/infrastructure/notification/websocket"
	obsprom "github.com/dreschagin/aip-monitor/internal/infrastructure/observability/prometheus"
	httpInterface "github.com/dreschagin/aip-monitor/internal/interfaces/http"
	"github.com/dreschagin/aip-monitor/internal/interfaces/http/handler"
	"github.com/dreschagin/aip-monitor/internal/interfaces/http/middleware"
	"github.com/dreschagin/aip-monitor/pkg/config"
	"github.com/dreschagin/aip-monitor/pkg/logger"
)

func main() {
	// 1. Загружаем конфигурацию
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Инициализируем logger (stderr, stdout остается для echo)
	log := logger.New(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, cfg, log)
	stop()

	_ = log.Sync()
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) int {
	log.Info("Starting AIP monitor",
		"source", cfg.Collector.Source.String(),
		"sinks", fmt.Sprint(cfg.Collector.Sinks),
		"interval", cfg.Collector.Interval.String(),
	)

	// 3. Метрики самого процесса
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := obsprom.New(registry)

	host, err := hostinfo.Lookup(ctx)
	if err != nil {
		log.Warn("Host info unavailable", "error", err.Error())
	} else {
		log.Info("Host detected", "hostname", host.Hostname, "platform", host.Platform, "kernel", host.KernelVersion)
	}

	// 4. Источник устройств
	src := buildSource(ctx, cfg, log)

	// 5. Экспортеры
	var hub *wsInfra.Hub
	if cfg.HasSink(valueobject.SinkWebSocket) {
		hub = wsInfra.NewHub(log)
		if cfg.Server.Addr == "" {
			log.Warn("websocket sink is enabled but HTTP_ADDR is empty, clients cannot connect")
		}
	}

	exporter, err := buildExporter(ctx, cfg, sinkDeps{
		registry: registry,
		hub:      hub,
		host:     host,
		logger:   log,
	})
	if err != nil {
		log.Error("Failed to build exporters", err)
		return 1
	}

	// 6. Collector инициализирует все экспортеры
	collector, err := usecase.NewCollector(ctx, src, exporter, log, usecase.WithObserver(metrics))
	if err != nil {
		log.Error("Failed to initialize sinks", err)
		return 1
	}

	// 7. HTTP сервер (пробы, /metrics, /ws)
	var ready atomic.Bool
	var server *http.Server
	if cfg.Server.Addr != "" {
		server = newHTTPServer(ctx, cfg, registry, metrics, hub, &ready, log)
		go func() {
			log.Info("HTTP server starting", "addr", cfg.Server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("HTTP server failed", err)
			}
		}()
	}

	// 8. Цикл опроса до сигнала или исчерпания --cycles
	loop := pollLoop{
		recorder: collector,
		interval: cfg.Collector.Interval,
		cycles:   cfg.Collector.Cycles,
		echo:     cfg.Collector.Echo,
		out:      os.Stdout,
		onCycle:  func() { ready.Store(true) },
		logger:   log,
	}
	completed := loop.Run(ctx)
	log.Info("Polling stopped, shutting down", "cycles", completed)

	// 9. Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown error", err)
		}
	}

	if err := collector.Close(shutdownCtx); err != nil {
		log.Error("Failed to close sinks", err)
	}

	log.Info("AIP monitor stopped")
	return 0
}

func newHTTPServer(
	ctx context.Context,
	cfg *config.Config,
	registry *prometheus.Registry,
	metrics *obsprom.Metrics,
	hub *wsInfra.Hub,
	ready *atomic.Bool,
	log *logger.Logger,
) *http.Server {
	var wsHandler *handler.WebSocketHandler
	var wsLimiter *middleware.IPRateLimiter
	if hub != nil {
		wsHandler = handler.NewWebSocketHandler(hub, cfg.Server.AllowedOrigins, log)
		wsLimiter = middleware.NewIPRateLimiter(1, 5)
		go wsLimiter.Cleanup(ctx)
	}

	router := httpInterface.NewRouter(
		handler.NewHealthHandler(ready.Load),
		wsHandler,
		registry,
		metrics,
		wsLimiter,
		log,
	)

	// WebSocket соединения живут дольше WriteTimeout, поэтому он не задается
	// при включенном /ws
	writeTimeout := cfg.Server.WriteTimeout
	if hub != nil {
		writeTimeout = 0
	}

	return &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}
