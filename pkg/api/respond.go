package api

import (
	"encoding/json"
	"net/http"

	"github.com/alexbrdn/wingmate-api/pkg/domain"
)

// ErrorResponse is the uniform error body: a stable machine-readable code
// plus a user-facing message. Raw provider or database errors never appear
// here.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, domain.CodeInternal, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, status int, code domain.Code, message string) {
	respondWithJSON(w, status, ErrorResponse{Error: string(code), Message: message})
}

func (h *Handler) respondWithDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.CodeOf(err)
	status := statusFor(code)

	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).
			Str("path", r.URL.Path).
			Str("method", r.Method).
			Msg("request failed")
	}

	respondWithError(w, status, code, domain.MessageOf(err))
}

func statusFor(code domain.Code) int {
	switch code {
	case domain.CodeUnauthenticated:
		return http.StatusUnauthorized
	case domain.CodeInvalidArgument:
		return http.StatusBadRequest
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeFailedPrecondition:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
