package api

import (
	"net/http"
	"time"

	"github.com/Domenick1991/flightseats/internal/domain"
	"github.com/Domenick1991/flightseats/internal/service/booking"
	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

type createBookingRequest struct {
	FlightID    int64  `json:"flight_id" binding:"required,gt=0"`
	PassengerID int64  `json:"passenger_id"`
	SeatNumber  string `json:"seat_number" binding:"required"`
}

type bookingResponse struct {
	ID          int64  `json:"id"`
	FlightID    int64  `json:"flight_id"`
	PassengerID int64  `json:"passenger_id"`
	SeatNumber  string `json:"seat_number"`
	Status      string `json:"status"`
	Price       string `json:"price"`
	CreatedAt   string `json:"created_at"`
}

type listBookingsQuery struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

type createBookingResponse struct {
	Booking bookingResponse `json:"booking"`
	Message string          `json:"message"`
}

type cancelBookingResponse struct {
	Booking          bookingResponse  `json:"booking"`
	PriorStatus      string           `json:"prior_status"`
	Refund           string           `json:"refund"`
	PointsClawedBack int              `json:"points_clawed_back"`
	Promoted         *bookingResponse `json:"promoted,omitempty"`
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.GET("", h.list)
	router.POST("", h.create)
	router.GET("/:id", h.get)
	router.DELETE("/:id", h.cancel)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.CreateBooking(c.Request.Context(), callerFrom(c), booking.CreateBookingInput{
		FlightID:    req.FlightID,
		PassengerID: req.PassengerID,
		SeatNumber:  req.SeatNumber,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, createBookingResponse{
		Booking: toBookingResponse(result.Booking),
		Message: result.Message,
	})
}

func (h *BookingHandler) list(c *gin.Context) {
	var q listBookingsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	list, err := h.service.ListAllBookings(c.Request.Context(), callerFrom(c), q.Limit, q.Offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponses(list))
}

func (h *BookingHandler) get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	b, err := h.service.GetBooking(c.Request.Context(), callerFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) cancel(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	result, err := h.service.CancelBooking(c.Request.Context(), callerFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := cancelBookingResponse{
		Booking:          toBookingResponse(result.Booking),
		PriorStatus:      string(result.PriorStatus),
		Refund:           result.Refund.StringFixed(2),
		PointsClawedBack: result.PointsClawedBack,
	}
	if result.Promoted != nil {
		promoted := toBookingResponse(result.Promoted)
		resp.Promoted = &promoted
	}
	c.JSON(http.StatusOK, resp)
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	return bookingResponse{
		ID:          b.ID,
		FlightID:    b.FlightID,
		PassengerID: b.PassengerID,
		SeatNumber:  b.SeatNumber,
		Status:      string(b.Status),
		Price:       b.Price.StringFixed(2),
		CreatedAt:   b.CreatedAt.Format(time.RFC3339),
	}
}

func toBookingResponses(bookings []domain.Booking) []bookingResponse {
	out := make([]bookingResponse, 0, len(bookings))
	for i := range bookings {
		out = append(out, toBookingResponse(&bookings[i]))
	}
	return out
}
