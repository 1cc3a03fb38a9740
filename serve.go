package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"usercenter/auth"
	"usercenter/config"
	"usercenter/database"
	"usercenter/events"
	grpcserver "usercenter/grpc_server"
	"usercenter/registry"
	"usercenter/repositories"
	"usercenter/server"
	"usercenter/services"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	healthProbeInterval = 10 * time.Second
	shutdownTimeout     = 15 * time.Second
)

func newServeCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the gRPC user and health services",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, db, cleanup, err := bootstrap(flags)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger, db)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger, db *gorm.DB) error {
	if cfg.Database.Synchronize {
		if err := database.Migrate(db); err != nil {
			return err
		}
		if err := database.SeedInitialData(db, logger); err != nil {
			return err
		}
	}

	publisher := events.NewLogPublisher(logger)
	if cfg.NATS.URL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, nats.Name(cfg.ServiceName))
		if err != nil {
			return err
		}
		defer natsPublisher.Close()
		publisher = events.Multi(publisher, natsPublisher)
		logger.Info("Publishing user events to NATS", zap.String("url", cfg.NATS.URL))
	}

	container := server.New(server.Options{
		Config:    cfg,
		DB:        db,
		Logger:    logger,
		Publisher: publisher,
	})
	httpServer := server.NewHTTPServer(fmt.Sprintf(":%d", cfg.HTTPPort), container)

	// bind every port before anything is announced or served
	httpLis, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on HTTP port %d: %w", cfg.HTTPPort, err)
	}
	defer httpLis.Close()

	var (
		grpcLis net.Listener
		grpcSrv *grpcserver.Server
	)
	if cfg.GRPCPort > 0 {
		if grpcLis, err = net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort)); err != nil {
			return fmt.Errorf("failed to listen on gRPC port %d: %w", cfg.GRPCPort, err)
		}
		defer grpcLis.Close()

		users := services.NewUserService(repositories.NewUserRepository(db), repositories.NewRoleRepository(db), publisher, logger)
		authenticator := auth.NewAuthenticator(cfg.JwtSecret, cfg.JwtTTL, cfg.ServiceName)
		grpcSrv = grpcserver.New(authenticator, users, logger)
	}

	if cfg.Consul.Enabled {
		deregister, err := registerWithConsul(cfg, logger)
		if err != nil {
			return err
		}
		defer deregister()
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("HTTP server listening", zap.Int("port", cfg.HTTPPort), zap.String("prefix", cfg.APIPrefix))
		if err := httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if grpcSrv != nil {
		prober := grpcserver.NewProber(grpcSrv.Health, func(ctx context.Context) error {
			return database.Ping(ctx, db)
		}, healthProbeInterval, logger, cfg.ServiceName)
		go prober.Run(ctx)

		go func() {
			logger.Info("gRPC server listening", zap.Int("port", cfg.GRPCPort))
			if err := grpcSrv.Serve(grpcLis); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case runErr = <-errCh:
		logger.Error("Server stopped unexpectedly", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Join(runErr, fmt.Errorf("http server shutdown: %w", err))
	}
	if runErr != nil {
		return runErr
	}
	logger.Info("Server exited")
	return nil
}

// registerWithConsul registers the HTTP API (and the gRPC endpoint when enabled)
// and returns a func deregistering them again.
func registerWithConsul(cfg *config.Config, logger *zap.Logger) (func(), error) {
	reg, err := registry.NewConsulRegistry(cfg.Consul, logger.Sugar())
	if err != nil {
		return nil, err
	}

	host := cfg.Consul.AdvertiseHost
	var ids []string

	httpName := cfg.ServiceName + "-http"
	httpID := registry.ServiceID(httpName, host, cfg.HTTPPort)
	httpCheck := registry.CreateHTTPCheck(httpID, host, cfg.HTTPPort, server.HealthPath, cfg.Consul.CheckInterval, cfg.Consul.CheckTimeout)
	if err := reg.Register(httpID, httpName, host, cfg.HTTPPort, []string{"http", cfg.Env}, httpCheck); err != nil {
		return nil, err
	}
	ids = append(ids, httpID)

	if cfg.GRPCPort > 0 {
		grpcName := cfg.ServiceName + "-grpc"
		grpcID := registry.ServiceID(grpcName, host, cfg.GRPCPort)
		target := net.JoinHostPort(host, fmt.Sprint(cfg.GRPCPort))
		grpcCheck := registry.CreateGRPCSCheck(grpcID, target+"/"+cfg.ServiceName, cfg.Consul.CheckInterval, cfg.Consul.CheckTimeout, false)
		if err := reg.Register(grpcID, grpcName, host, cfg.GRPCPort, []string{"grpc", cfg.Env}, grpcCheck); err != nil {
			_ = reg.Deregister(httpID)
			return nil, err
		}
		ids = append(ids, grpcID)
	}

	return func() {
		for _, id := range ids {
			if err := reg.Deregister(id); err != nil {
				logger.Warn("Failed to deregister from Consul", zap.String("service_id", id), zap.Error(err))
			}
		}
	}, nil
}
