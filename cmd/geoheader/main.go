package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	gogrpc "google.golang.org/grpc"

	"github.com/TomasB/geoheader/internal/config"
	"github.com/TomasB/geoheader/internal/data"
	"github.com/TomasB/geoheader/internal/handler/geoip"
	grpchandler "github.com/TomasB/geoheader/internal/handler/grpc"
	"github.com/TomasB/geoheader/internal/handler/health"
	"github.com/TomasB/geoheader/internal/proxy"
	"github.com/TomasB/geoheader/internal/watch"
)

func main() {
	fs := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	config.RegisterFlags(fs)
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logLevel := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("service starting", "log_level", logLevel.String())

	if logLevel == slog.LevelDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Open eagerly so readiness reflects the dataset; a failure degrades
	// every lookup to "no match" instead of stopping the service.
	db := data.NewDatabase(
		data.MmdbOpener(cfg.MmdbPath, cfg.MemoryCache),
		data.WithLogger(logger),
		data.WithFallbackCountry(cfg.FallbackCountry),
	)
	defer db.Close()
	if err := db.EnsureOpen(); err == nil {
		slog.Info("MMDB loaded", "path", cfg.MmdbPath, "edition", db.Edition().String())
	}

	var stale func() bool
	if cfg.Watch {
		watcher, err := watch.New(cfg.MmdbPath, logger)
		if err != nil {
			slog.Warn("dataset watcher disabled", "error", err)
		} else {
			defer watcher.Close()
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go watcher.Run(ctx)
			stale = watcher.Stale
		}
	}

	formatter := cfg.Formatter()
	r := routes{
		geo:    geoip.NewHandler(db, formatter),
		health: health.NewHandler(db, stale),
	}
	if cfg.Upstream != "" {
		p, err := proxy.New(cfg.Upstream, cfg.UpstreamTimeout, logger)
		if err != nil {
			slog.Error("invalid upstream", "upstream", cfg.Upstream, "error", err)
			os.Exit(1)
		}
		defer p.Close()
		r.proxy = p
		slog.Info("proxying unmatched requests", "upstream", cfg.Upstream)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(logger, r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("service started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	var grpcServer *gogrpc.Server
	if cfg.GRPCPort != "" {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			slog.Error("failed to listen for gRPC", "port", cfg.GRPCPort, "error", err)
			os.Exit(1)
		}
		grpcServer = gogrpc.NewServer()
		grpchandler.RegisterGeoServiceServer(grpcServer, grpchandler.NewHandler(db, formatter))
		go func() {
			slog.Info("gRPC service started", "port", cfg.GRPCPort)
			if err := grpcServer.Serve(lis); err != nil {
				slog.Error("gRPC server failed", "error", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("service shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		return
	}

	slog.Info("service stopped")
}
