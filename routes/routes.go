package routes

import (
	"strings"
	"time"

	"tablebook/config"
	"tablebook/handlers"
	"tablebook/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterPublicRoutes registers the guest-facing reservation endpoints.
func RegisterPublicRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api")
	{
		api.GET("/availability", hb.Availability.GetAvailability)
		api.POST("/availability/check", hb.Availability.CheckParty)

		api.POST("/reservations", hb.Booking.CreateReservation)
		api.GET("/reservations/:id", hb.Booking.GetReservation)
		api.DELETE("/reservations/:id", hb.Booking.CancelReservation)

		api.POST("/group-reservations", hb.Group.SubmitGroupReservation)
		api.GET("/group-reservations/:id", hb.Group.GetGroupReservation)

		api.POST("/chat", hb.Chat.Chat)
		api.DELETE("/chat/:sessionID", hb.Chat.EndChat)
	}
}

// RegisterAdminRoutes registers staff endpoints behind the staff JWT.
func RegisterAdminRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	admin := r.Group("/api/admin")
	admin.Use(middleware.StaffAuthMiddleware())
	{
		admin.GET("/bookings", hb.Admin.ListBookings)
		admin.GET("/group-reservations", hb.Admin.ListGroupRequests)
		admin.POST("/group-reservations/:id/resolve", hb.Admin.ResolveGroupRequest)
		admin.POST("/group-reservations/:id/reject", hb.Admin.RejectGroupRequest)
		admin.PUT("/capacity", hb.Admin.SetCapacity)
	}
}

func RegisterHealthRoute(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.GET("/api/health", hb.Health.Health)
	r.GET("/health", hb.Health.Health)
}

// RegisterRoutes sets up CORS and all route groups.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     splitOrigins(config.AppConfig.CORSOrigins),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key", "session-id"},
		ExposeHeaders:    []string{"Content-Length", "session-id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterPublicRoutes(r, hb)
	RegisterAdminRoutes(r, hb)
	RegisterHealthRoute(r, hb)
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	return origins
}
