package handlers

import (
	"net/http"

	"tablebook/models"
	"tablebook/services/booking"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AvailabilityHandler struct {
	Ledger *booking.CapacityLedger
	Logger *zap.Logger
}

// GetAvailability lists every slot of one service period with its state.
func (h *AvailabilityHandler) GetAvailability(c *gin.Context) {
	raw := c.Query("period")
	period, err := models.ParsePeriod(raw)
	if err != nil {
		// Aliases such as "evening" resolve here; anything else is rejected by the ledger.
		period = models.Period(raw)
		if p, ok := booking.ParseGroupPeriod(raw); ok {
			period = p
		}
	}
	slots, err := h.Ledger.GetAvailability(c.Request.Context(), c.Query("date"), period)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, slots)
}

type checkPartyRequest struct {
	Date   string `json:"date" binding:"required"`
	Time   string `json:"time" binding:"required"`
	Guests int    `json:"guests" binding:"required,min=1"`
}

// CheckParty answers whether a party of the given size fits a slot.
func (h *AvailabilityHandler) CheckParty(c *gin.Context) {
	var req checkPartyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	fits, left, err := h.Ledger.CheckParty(c.Request.Context(), req.Date, req.Time, req.Guests)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": fits, "seats_left": left})
}
