package handlers

import (
	"net/http"

	"tablebook/utils"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	Monitor *utils.HealthMonitor
}

func (h *HealthHandler) Health(c *gin.Context) {
	status := h.Monitor.Status()
	if !status.Healthy {
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}
