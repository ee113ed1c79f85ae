package httpx

import (
	"errors"
	"net/http"

	"github.com/arunika-edu/arunika-edu/internal/shared"
)

// Sentinel errors for the generic handler layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// RespondError maps domain errors to HTTP responses using RFC7807. Engine
// decisions (tenancy, permissions) keep their reason codes; everything
// unrecognized becomes an internal error with no detail leaked.
func RespondError(w http.ResponseWriter, err error) {
	if reason := shared.ReasonCode(err); reason != "" {
		status := http.StatusForbidden
		if errors.Is(err, shared.ErrPrincipalImmutable) {
			status = http.StatusConflict
		}
		ProblemWithReason(w, status, http.StatusText(status), err.Error(), reason)
		return
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrUnauthorized), errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
