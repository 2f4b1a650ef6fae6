package transport

import (
	"errors"
	"net/http"

	"printshop/internal/middleware"
	"printshop/internal/repository"
	"printshop/internal/semantic"
	"printshop/internal/service"
	"printshop/internal/storage"

	"go.uber.org/zap"
)

// respondServiceError maps service and repository errors onto HTTP responses.
// Anything unrecognised is logged and reported as an opaque 500.
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, err error, action string) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		middleware.RespondWithValidationErrors(w, fieldErrors(validationErr))
	case errors.Is(err, storage.ErrUnsupportedImage):
		middleware.RespondWithValidationErrors(w, []middleware.FieldError{{Field: "image", Message: "unsupported image type"}})
	case errors.Is(err, service.ErrUnauthorized):
		middleware.RespondWithError(w, http.StatusForbidden, "insufficient permissions")
	case errors.Is(err, repository.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, repository.ErrCategoryNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "category not found")
	case errors.Is(err, repository.ErrCategoryAlreadyExists):
		middleware.RespondWithError(w, http.StatusConflict, "category with this name already exists")
	case errors.Is(err, service.ErrDescriberDisabled), errors.Is(err, semantic.ErrAdapterUnavailable):
		logger.Warn("Language model unavailable", zap.String("action", action), zap.Error(err))
		middleware.RespondWithError(w, http.StatusServiceUnavailable, "description generator unavailable")
	default:
		logger.Error("Request failed", zap.String("action", action), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to "+action)
	}
}

func fieldErrors(err *service.ValidationError) []middleware.FieldError {
	out := make([]middleware.FieldError, len(err.Fields))
	for i, f := range err.Fields {
		out[i] = middleware.FieldError{Field: f.Field, Message: f.Message}
	}
	return out
}

// decodeJSON decodes and validates a JSON body, writing the error response
// itself. It reports whether the handler should continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, logger *zap.Logger, v interface{}) bool {
	if err := middleware.DecodeAndValidate(r, v); err != nil {
		logger.Debug("Request validation failed", zap.String("path", r.URL.Path), zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return false
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
