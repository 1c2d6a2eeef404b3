package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RouterDeps struct {
	Bookings   *BookingHandler
	Flights    *FlightHandler
	Airlines   *AirlineHandler
	Passengers *PassengerHandler
	Admin      *AdminHandler
	Resolver   CallerResolver
	Metrics    http.Handler
	Log        *zap.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(deps.Log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	v1 := router.Group("/api/v1", Authenticate(deps.Resolver))
	deps.Bookings.Register(v1.Group("/bookings"))
	deps.Flights.Register(v1.Group("/flights"))
	deps.Airlines.Register(v1.Group("/airlines"))
	deps.Passengers.Register(v1.Group("/passengers"))
	deps.Admin.Register(v1.Group("/admin"))

	return router
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
			log.Error("request failed", fields...)
			return
		}
		log.Debug("request", fields...)
	}
}
