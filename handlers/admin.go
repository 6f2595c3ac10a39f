package handlers

import (
	"net/http"

	"tablebook/models"
	"tablebook/services/booking"
	"tablebook/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminHandler exposes staff operations on bookings, group requests and
// slot capacity.
type AdminHandler struct {
	Ledger   *booking.CapacityLedger
	Bookings booking.BookingService
	Groups   booking.GroupWorkflow
	Logger   *zap.Logger
}

func (h *AdminHandler) ListBookings(c *gin.Context) {
	list, err := h.Bookings.ListBookings(c.Request.Context(), c.Query("date"))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *AdminHandler) ListGroupRequests(c *gin.Context) {
	var state models.GroupRequestState
	if raw := c.Query("state"); raw != "" {
		parsed, ok := models.ParseGroupRequestState(raw)
		if !ok {
			utils.JSONError(c, http.StatusBadRequest, booking.CodeInvalidInput, "unknown state "+raw, "state")
			return
		}
		state = parsed
	}
	list, err := h.Groups.ListGroupRequests(c.Request.Context(), state)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type resolveRequest struct {
	Date string `json:"date" binding:"required"`
	Time string `json:"time" binding:"required"`
}

func (h *AdminHandler) ResolveGroupRequest(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	b, err := h.Groups.Resolve(c.Request.Context(), c.Param("id"), req.Date, req.Time)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	h.Logger.Info("Group request resolved",
		zap.String("requestId", c.Param("id")),
		zap.String("bookingId", b.ID),
		zap.String("staff", c.GetString("staffSubject")),
	)
	c.JSON(http.StatusOK, b)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *AdminHandler) RejectGroupRequest(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	rejected, err := h.Groups.Reject(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, rejected)
}

type capacityRequest struct {
	Date          string `json:"date" binding:"required"`
	Time          string `json:"time" binding:"required"`
	TotalCapacity *int   `json:"totalCapacity" binding:"required,min=0"`
}

func (h *AdminHandler) SetCapacity(c *gin.Context) {
	var req capacityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	entry, err := h.Ledger.SetCapacity(c.Request.Context(), req.Date, req.Time, *req.TotalCapacity)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}
