package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/flightseats/api"
	"github.com/Domenick1991/flightseats/config"
	"github.com/Domenick1991/flightseats/internal/bootstrap"
	"github.com/Domenick1991/flightseats/internal/identity"
	"github.com/Domenick1991/flightseats/internal/logger"
	"github.com/Domenick1991/flightseats/internal/metrics"
	"github.com/Domenick1991/flightseats/internal/service/airlines"
	"github.com/Domenick1991/flightseats/internal/service/booking"
	"github.com/Domenick1991/flightseats/internal/service/expiry"
	"github.com/Domenick1991/flightseats/internal/service/flights"
	"github.com/Domenick1991/flightseats/internal/service/loyalty"
	"go.uber.org/zap"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zlog, err := logger.New(cfg.Log, "flightseats-api")
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, err := bootstrap.NewInfra(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("init infrastructure", zap.Error(err))
	}
	defer infra.Close()

	m := metrics.New()
	ledger := loyalty.NewLedger(zlog)

	bookingOpts := []booking.BookingServiceOption{
		booking.WithLogger(zlog),
		booking.WithMetrics(m),
		booking.WithMaxRetries(cfg.Booking.MaxRetries),
		booking.WithNotificationTimeout(time.Duration(cfg.Booking.NotificationTimeout) * time.Second),
	}
	sweeperOpts := []expiry.Option{expiry.WithMetrics(m)}
	var flightCache flights.FlightCache
	var airlineCache airlines.FlightsCache
	if infra.Cache != nil {
		flightCache = infra.Cache
		airlineCache = infra.Cache
		bookingOpts = append(bookingOpts, booking.WithFlightsCache(infra.Cache))
	}
	if notifier := infra.Notifier(cfg, zlog); notifier != nil {
		bookingOpts = append(bookingOpts, booking.WithNotifier(notifier))
		sweeperOpts = append(sweeperOpts, expiry.WithNotifier(notifier))
	}

	bookingService := booking.NewBookingService(infra.Store, infra.Locker, ledger, bookingOpts...)
	defer bookingService.Wait()
	flightService := flights.NewFlightService(infra.Store, infra.Locker, flightCache, zlog)
	airlineService := airlines.NewAirlineService(infra.Store, airlineCache, zlog)
	loyaltyService := loyalty.NewService(infra.Store.Passengers(), zlog)
	sweeper := expiry.NewSweeper(infra.Store, infra.Locker, zlog, sweeperOpts...)

	router := api.NewRouter(api.RouterDeps{
		Bookings:   api.NewBookingHandler(bookingService),
		Flights:    api.NewFlightHandler(flightService, bookingService),
		Airlines:   api.NewAirlineHandler(airlineService),
		Passengers: api.NewPassengerHandler(bookingService, loyaltyService),
		Admin:      api.NewAdminHandler(sweeper),
		Resolver:   identity.NewJWTProvider(cfg.Auth.JWTSecret, identity.DefaultIssuer),
		Metrics:    m.Handler(),
		Log:        zlog,
	})

	if err := bootstrap.Run(ctx, cfg, router, zlog); err != nil {
		zlog.Error("server error", zap.Error(err))
	}
}
