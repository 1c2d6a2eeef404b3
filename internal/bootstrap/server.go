package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Domenick1991/flightseats/config"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const shutdownTimeout = 5 * time.Second

// Run serves the HTTP API and the gRPC health service until ctx is cancelled
// or either server fails.
func Run(ctx context.Context, cfg *config.Config, handler http.Handler, log *zap.Logger) error {
	httpLis, err := net.Listen("tcp", cfg.HTTP.Address)
	if err != nil {
		return fmt.Errorf("listen HTTP %s: %w", cfg.HTTP.Address, err)
	}
	grpcLis, err := net.Listen("tcp", cfg.GRPC.Address)
	if err != nil {
		httpLis.Close()
		return fmt.Errorf("listen gRPC %s: %w", cfg.GRPC.Address, err)
	}
	return serve(ctx, httpLis, grpcLis, handler, log)
}

func serve(ctx context.Context, httpLis, grpcLis net.Listener, handler http.Handler, log *zap.Logger) error {
	httpSrv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	grpcSrv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcSrv)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server listening", zap.String("address", httpLis.Addr().String()))
		if err := httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info("grpc server listening", zap.String("address", grpcLis.Addr().String()))
		if err := grpcSrv.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down servers")
		healthSrv.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		grpcSrv.GracefulStop()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// ServeMetrics exposes the Prometheus handler at /metrics on address until
// ctx is cancelled. Processes without the HTTP API use it.
func ServeMetrics(ctx context.Context, address string, metrics http.Handler, log *zap.Logger) error {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("listen metrics %s: %w", address, err)
	}
	return serveMetrics(ctx, lis, metrics, log)
}

func serveMetrics(ctx context.Context, lis net.Listener, metrics http.Handler, log *zap.Logger) error {
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(metrics))
	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("metrics listening", zap.String("address", lis.Addr().String()))
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		return nil
	})
	return g.Wait()
}
