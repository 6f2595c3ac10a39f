package handlers

import (
	"net/http"

	"tablebook/services/booking"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type GroupHandler struct {
	Workflow booking.GroupWorkflow
	Logger   *zap.Logger
}

type groupReservationRequest struct {
	OrganizerName       string   `json:"organizerName"`
	OrganizerEmail      string   `json:"organizerEmail"`
	OrganizerPhone      string   `json:"organizerPhone"`
	EventType           string   `json:"eventType"`
	GuestCount          int      `json:"guestCount"`
	PreferredDates      []string `json:"preferredDates"`
	TimeSlot            string   `json:"timeSlot"`
	DietaryRequirements string   `json:"dietaryRequirements"`
	SpecialRequests     string   `json:"specialRequests"`
}

// SubmitGroupReservation records the request for staff review. Nothing is
// reserved yet, hence 202.
func (h *GroupHandler) SubmitGroupReservation(c *gin.Context) {
	var req groupReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	created, err := h.Workflow.SubmitGroupRequest(c.Request.Context(), booking.SubmitGroupInput{
		OrganizerName:       req.OrganizerName,
		OrganizerEmail:      req.OrganizerEmail,
		OrganizerPhone:      req.OrganizerPhone,
		EventType:           req.EventType,
		PartySize:           req.GuestCount,
		CandidateDates:      req.PreferredDates,
		Period:              req.TimeSlot,
		DietaryRequirements: req.DietaryRequirements,
		SpecialRequests:     req.SpecialRequests,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusAccepted, created)
}

func (h *GroupHandler) GetGroupReservation(c *gin.Context) {
	req, err := h.Workflow.GetGroupRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, req)
}
