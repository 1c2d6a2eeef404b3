package api

import (
	"net/http"
	"time"

	"github.com/Domenick1991/flightseats/internal/domain"
	"github.com/Domenick1991/flightseats/internal/service/airlines"
	"github.com/gin-gonic/gin"
)

type AirlineHandler struct {
	service airlines.AirlineUseCase
}

type airlineResponse struct {
	ID        int64  `json:"id"`
	CodeIATA  string `json:"code_iata"`
	CodeICAO  string `json:"code_icao"`
	Name      string `json:"name"`
	Country   string `json:"country"`
	FleetSize int    `json:"fleet_size"`
	CreatedAt string `json:"created_at,omitempty"`
}

func NewAirlineHandler(service airlines.AirlineUseCase) *AirlineHandler {
	return &AirlineHandler{service: service}
}

func (h *AirlineHandler) Register(router *gin.RouterGroup) {
	router.GET("", h.list)
	router.GET("/:id", h.get)
	router.POST("", h.create)
	router.PUT("/:id", h.update)
	router.DELETE("/:id", h.delete)
}

func (h *AirlineHandler) list(c *gin.Context) {
	list, err := h.service.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]airlineResponse, 0, len(list))
	for i := range list {
		out = append(out, toAirlineResponse(&list[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *AirlineHandler) get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	a, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAirlineResponse(a))
}

func (h *AirlineHandler) create(c *gin.Context) {
	var req airlines.AirlineInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a, err := h.service.Create(c.Request.Context(), callerFrom(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAirlineResponse(a))
}

func (h *AirlineHandler) update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req airlines.AirlineInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a, err := h.service.Update(c.Request.Context(), callerFrom(c), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAirlineResponse(a))
}

func (h *AirlineHandler) delete(c *gin.Context) {
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

func toAirlineResponse(a *domain.Airline) airlineResponse {
	out := airlineResponse{
		ID:        a.ID,
		CodeIATA:  a.CodeIATA,
		CodeICAO:  a.CodeICAO,
		Name:      a.Name,
		Country:   a.Country,
		FleetSize: a.FleetSize,
	}
	if !a.CreatedAt.IsZero() {
		out.CreatedAt = a.CreatedAt.Format(time.RFC3339)
	}
	return out
}
