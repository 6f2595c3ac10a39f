package handlers

import (
	"tablebook/services/booking"
	ai "tablebook/services/intelligence"
	"tablebook/utils"

	"go.uber.org/zap"
)

// HandlerBundle groups the endpoint handlers routes are wired to.
type HandlerBundle struct {
	Availability *AvailabilityHandler
	Booking      *BookingHandler
	Group        *GroupHandler
	Chat         *ChatHandler
	Admin        *AdminHandler
	Health       *HealthHandler
}

func NewHandlerBundle(
	ledger *booking.CapacityLedger,
	bookings booking.BookingService,
	groups booking.GroupWorkflow,
	chat ai.ChatService,
	monitor *utils.HealthMonitor,
	logger *zap.Logger,
) *HandlerBundle {
	return &HandlerBundle{
		Availability: &AvailabilityHandler{Ledger: ledger, Logger: logger},
		Booking:      &BookingHandler{Service: bookings, Logger: logger},
		Group:        &GroupHandler{Workflow: groups, Logger: logger},
		Chat:         &ChatHandler{Service: chat, Logger: logger},
		Admin:        &AdminHandler{Ledger: ledger, Bookings: bookings, Groups: groups, Logger: logger},
		Health:       &HealthHandler{Monitor: monitor},
	}
}
