package api

import (
	"errors"
	"net/http"

	"github.com/lyricwatch/lyricwatch/internal/domain"
	"github.com/lyricwatch/lyricwatch/internal/service"
	"github.com/lyricwatch/lyricwatch/internal/store"
)

// mapError translates service and store errors to an HTTP status and a
// client-safe message. Unknown errors map to 500 with a generic message;
// the raw error only ever reaches the logs.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrJobNotFound):
		return http.StatusNotFound, "Job not found"
	case errors.Is(err, service.ErrNotCancellable):
		return http.StatusConflict, "Job has already finished"
	case errors.Is(err, domain.ErrInvalidJobType):
		return http.StatusBadRequest, "Invalid job type"
	case errors.Is(err, domain.ErrInvalidPriority):
		return http.StatusBadRequest, "Invalid priority"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "Invalid request"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
