package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/table-order/database"
	"github.com/yeremiapane/table-order/services"
	"github.com/yeremiapane/table-order/utils"
)

const msgUnavailable = "service temporarily unavailable, please retry"

// respondServiceError maps service and pool errors to HTTP status codes.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		utils.RespondError(c, http.StatusBadRequest, err)
	case errors.Is(err, services.ErrNotFound):
		utils.RespondError(c, http.StatusNotFound, err)
	case errors.Is(err, services.ErrInvalidCredentials):
		utils.RespondError(c, http.StatusUnauthorized, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		utils.ErrorLogger.WithError(err).WithField("path", c.FullPath()).Warn("request ended before the database answered")
		utils.RespondMessage(c, http.StatusServiceUnavailable, msgUnavailable)
	case database.IsUnavailable(err):
		utils.ErrorLogger.WithError(err).WithField("path", c.FullPath()).Warn("database unavailable")
		utils.RespondMessage(c, http.StatusServiceUnavailable, msgUnavailable)
	default:
		utils.ErrorLogger.WithError(err).WithField("path", c.FullPath()).Error("unhandled error")
		utils.RespondMessage(c, http.StatusInternalServerError, "internal server error")
	}
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		utils.RespondMessage(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}
