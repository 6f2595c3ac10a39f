package handlers

import (
	"errors"
	"net/http"

	"tablebook/services/booking"
	"tablebook/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps service errors onto HTTP statuses. Internal failures are
// logged with their cause and reported opaquely.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var be *booking.BookingError
	if !errors.As(err, &be) {
		logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "internal", "An unexpected error occurred. Please try again later.", "")
		return
	}

	switch booking.CategoryOf(err) {
	case booking.CategoryInvalidInput:
		utils.JSONError(c, http.StatusBadRequest, be.Code, be.Message, be.Field)
	case booking.CategoryUnavailable, booking.CategoryConflict:
		utils.JSONError(c, http.StatusConflict, be.Code, be.Message, be.Field)
	case booking.CategoryPolicy:
		utils.JSONError(c, http.StatusUnprocessableEntity, be.Code, be.Message, be.Field)
	case booking.CategoryNotFound:
		utils.JSONError(c, http.StatusNotFound, be.Code, be.Message, "")
	default:
		logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "internal", "An unexpected error occurred. Please try again later.", "")
	}
}

func badRequest(c *gin.Context, err error) {
	utils.JSONError(c, http.StatusBadRequest, booking.CodeInvalidInput, "Invalid input: "+err.Error(), "")
}
