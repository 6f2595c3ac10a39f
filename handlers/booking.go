package handlers

import (
	"net/http"

	"tablebook/services/booking"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type BookingHandler struct {
	Service booking.BookingService
	Logger  *zap.Logger
}

type createReservationRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	Guests          int    `json:"guests" binding:"min=0"`
	SpecialRequests string `json:"specialRequests"`
	SessionID       string `json:"session_id"`
	RequestID       string `json:"requestId"`
}

func (h *BookingHandler) CreateReservation(c *gin.Context) {
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	key := req.RequestID
	if key == "" {
		key = c.GetHeader("Idempotency-Key")
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = c.GetHeader(sessionHeader)
	}

	b, err := h.Service.CreateBooking(c.Request.Context(), booking.CreateBookingInput{
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
		Date:            req.Date,
		Time:            req.Time,
		PartySize:       req.Guests,
		SpecialRequests: req.SpecialRequests,
		SessionID:       sessionID,
		IdempotencyKey:  key,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *BookingHandler) GetReservation(c *gin.Context) {
	b, err := h.Service.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) CancelReservation(c *gin.Context) {
	b, err := h.Service.CancelBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, b)
}
