package api

import (
	"context"
	"net/http"

	"github.com/Domenick1991/flightseats/internal/service/expiry"
	"github.com/gin-gonic/gin"
)

type Sweeper interface {
	Sweep(ctx context.Context) (expiry.SweepResult, error)
}

type AdminHandler struct {
	sweeper Sweeper
}

func NewAdminHandler(sweeper Sweeper) *AdminHandler {
	return &AdminHandler{sweeper: sweeper}
}

func (h *AdminHandler) Register(router *gin.RouterGroup) {
	router.POST("/sweeps", h.sweep)
}

func (h *AdminHandler) sweep(c *gin.Context) {
	if !callerFrom(c).Admin {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	result, err := h.sweeper.Sweep(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
