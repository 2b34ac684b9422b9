package http

import (
	"errors"
	"net/http"

	"budget/internal/core"
	"budget/internal/log"
)

const msgInternal = "Internal server error"

// writeError is the only place domain errors become HTTP responses.
// Validation and not-found messages are safe to show; anything else is
// reported with fallback, plus the cause in diagnostic mode.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var (
		ve *core.ValidationError
		nf *core.NotFoundError
	)
	switch {
	case errors.As(err, &ve):
		log.FromContext(r.Context()).DebugContext(r.Context(), "Rejected request",
			log.FieldErrorType, log.ErrorTypeValidation,
			log.FieldError, ve.Message)
		BadRequestError(ve.Message).Write(w)
	case errors.As(err, &nf):
		log.FromContext(r.Context()).DebugContext(r.Context(), "Resource not found",
			log.FieldErrorType, log.ErrorTypeNotFound,
			log.FieldError, nf.Error())
		NotFoundError(nf.Error()).Write(w)
	default:
		if fallback == "" {
			fallback = msgInternal
		}
		log.FromContext(r.Context()).ErrorContext(r.Context(), fallback,
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeInternal,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)

		resp := InternalServerError(fallback)
		if s.diagnostic && err != nil {
			resp.Detail(err.Error())
		}
		resp.Write(w)
	}
}

// writePanic answers a recovered panic with the generic 500 envelope.
func (s *Server) writePanic(w http.ResponseWriter, _ *http.Request) {
	InternalServerError(msgInternal).Write(w)
}

func (s *Server) writeRateLimited(w http.ResponseWriter, _ *http.Request) {
	TooManyRequestsError(rateLimitWindow).Write(w)
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	NotFoundError("Route not found").Write(w)
}
