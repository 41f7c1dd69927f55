package handler

import (
	"errors"
	"net/http"

	"goodbites/listings-service/internal/app/listings/entity"
	"goodbites/listings-service/internal/app/listings/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// respondError переводит ошибку сервиса в HTTP статус.
// Исходная ошибка уходит в c.Errors и попадает в лог запроса.
func respondError(c *gin.Context, err error, fallback string) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, service.ErrInvalidArgument), errors.Is(err, service.ErrInvalidFilter):
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "Invalid request", Message: err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, entity.ErrorResponse{Error: "Listing not found"})
	case errors.Is(err, service.ErrConcurrencyConflict):
		c.JSON(http.StatusConflict, entity.ErrorResponse{Error: "Listing is busy, try again"})
	case errors.Is(err, service.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, entity.ErrorResponse{Error: "Storage temporarily unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, entity.ErrorResponse{Error: fallback})
	}
}

func formatValidationError(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, fieldError := range validationErrors {
			return fieldError.Field() + " is " + fieldError.Tag()
		}
	}
	return "Validation failed"
}
