package api

import (
	"net/http"

	"github.com/Domenick1991/flightseats/internal/domain"
	"github.com/Domenick1991/flightseats/internal/service/booking"
	"github.com/Domenick1991/flightseats/internal/service/loyalty"
	"github.com/gin-gonic/gin"
)

type PassengerHandler struct {
	bookings booking.BookingUseCase
	loyalty  loyalty.LoyaltyUseCase
}

type registerPassengerRequest struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
}

type updatePassengerRequest struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
}

type passengerResponse struct {
	ID            int64  `json:"id"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	LoyaltyPoints int    `json:"loyalty_points"`
}

func NewPassengerHandler(bookings booking.BookingUseCase, loyalty loyalty.LoyaltyUseCase) *PassengerHandler {
	return &PassengerHandler{bookings: bookings, loyalty: loyalty}
}

func (h *PassengerHandler) Register(router *gin.RouterGroup) {
	router.GET("", h.list)
	router.POST("", h.register)
	router.GET("/:id", h.get)
	router.PUT("/:id", h.update)
	router.GET("/:id/bookings", h.listBookings)
	router.GET("/:id/loyalty", h.balance)
}

// register is open to admins only; self sign-up goes through the identity provider.
func (h *PassengerHandler) register(c *gin.Context) {
	if !callerFrom(c).Admin {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	var req registerPassengerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.loyalty.Register(c.Request.Context(), loyalty.PassengerInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toPassengerResponse(p))
}

func (h *PassengerHandler) list(c *gin.Context) {
	list, err := h.loyalty.List(c.Request.Context(), callerFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]passengerResponse, 0, len(list))
	for i := range list {
		out = append(out, toPassengerResponse(&list[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *PassengerHandler) get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	p, err := h.loyalty.Get(c.Request.Context(), callerFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPassengerResponse(p))
}

func (h *PassengerHandler) update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req updatePassengerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.loyalty.Update(c.Request.Context(), callerFrom(c), id, loyalty.PassengerInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPassengerResponse(p))
}

func (h *PassengerHandler) listBookings(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	list, err := h.bookings.ListPassengerBookings(c.Request.Context(), callerFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponses(list))
}

func (h *PassengerHandler) balance(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	points, err := h.loyalty.Balance(c.Request.Context(), callerFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"passenger_id": id, "loyalty_points": points})
}

func toPassengerResponse(p *domain.Passenger) passengerResponse {
	return passengerResponse{
		ID:            p.ID,
		FirstName:     p.FirstName,
		LastName:      p.LastName,
		Email:         p.Email,
		LoyaltyPoints: p.LoyaltyPoints,
	}
}
