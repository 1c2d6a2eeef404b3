package api

import (
	"net/http"
	"time"

	"github.com/Domenick1991/flightseats/internal/domain"
	"github.com/Domenick1991/flightseats/internal/service/booking"
	"github.com/Domenick1991/flightseats/internal/service/flights"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type FlightHandler struct {
	service  flights.FlightUseCase
	bookings booking.BookingUseCase
}

type flightRequest struct {
	AirlineID     int64           `json:"airline_id"`
	FlightNumber  string          `json:"flight_number" binding:"required"`
	Origin        string          `json:"origin" binding:"required"`
	Destination   string          `json:"destination" binding:"required"`
	DepartureTime time.Time       `json:"departure_time" binding:"required"`
	ArrivalTime   time.Time       `json:"arrival_time" binding:"required"`
	Capacity      int             `json:"capacity" binding:"required"`
	BasePrice     decimal.Decimal `json:"base_price"`
}

type flightResponse struct {
	ID             int64   `json:"id"`
	AirlineID      int64   `json:"airline_id"`
	FlightNumber   string  `json:"flight_number"`
	Origin         string  `json:"origin"`
	Destination    string  `json:"destination"`
	DepartureTime  string  `json:"departure_time"`
	ArrivalTime    string  `json:"arrival_time"`
	Capacity       int     `json:"capacity"`
	BookedSeats    int     `json:"booked_seats"`
	OccupancyRatio float64 `json:"occupancy_ratio"`
	BasePrice      string  `json:"base_price"`
}

func NewFlightHandler(service flights.FlightUseCase, bookings booking.BookingUseCase) *FlightHandler {
	return &FlightHandler{service: service, bookings: bookings}
}

func (h *FlightHandler) Register(router *gin.RouterGroup) {
	router.GET("", h.list)
	router.GET("/:id", h.get)
	router.GET("/:id/bookings", h.listBookings)
	router.POST("", h.create)
	router.PUT("/:id", h.update)
	router.DELETE("/:id", h.delete)
}

func (h *FlightHandler) list(c *gin.Context) {
	list, err := h.service.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]flightResponse, 0, len(list))
	for i := range list {
		out = append(out, toFlightResponse(&list[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *FlightHandler) get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	flight, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toFlightResponse(flight))
}

func (h *FlightHandler) listBookings(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	list, err := h.bookings.ListFlightBookings(c.Request.Context(), callerFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponses(list))
}

func (h *FlightHandler) create(c *gin.Context) {
	var req flightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	flight, err := h.service.Create(c.Request.Context(), callerFrom(c), req.input())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toFlightResponse(flight))
}

func (h *FlightHandler) update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req flightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	flight, err := h.service.Update(c.Request.Context(), callerFrom(c), id, req.input())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toFlightResponse(flight))
}

func (h *FlightHandler) delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), callerFrom(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (r flightRequest) input() flights.FlightInput {
	return flights.FlightInput{
		AirlineID:     r.AirlineID,
		FlightNumber:  r.FlightNumber,
		Origin:        r.Origin,
		Destination:   r.Destination,
		DepartureTime: r.DepartureTime,
		ArrivalTime:   r.ArrivalTime,
		Capacity:      r.Capacity,
		BasePrice:     r.BasePrice,
	}
}

func toFlightResponse(f *domain.Flight) flightResponse {
	return flightResponse{
		ID:             f.ID,
		AirlineID:      f.AirlineID,
		FlightNumber:   f.FlightNumber,
		Origin:         f.Origin,
		Destination:    f.Destination,
		DepartureTime:  f.DepartureTime.Format(time.RFC3339),
		ArrivalTime:    f.ArrivalTime.Format(time.RFC3339),
		Capacity:       f.Capacity,
		BookedSeats:    f.BookedSeats,
		OccupancyRatio: f.OccupancyRatio(),
		BasePrice:      f.BasePrice.StringFixed(2),
	}
}
