package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MikeSquared-Agency/confide/internal/elicitation"
	"github.com/MikeSquared-Agency/confide/internal/processor"
	"github.com/MikeSquared-Agency/confide/internal/session"
	"github.com/MikeSquared-Agency/confide/internal/survey"
)

const alreadySubmittedMessage = "You have already submitted your feedback. Thank you!"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeProcessorError maps pipeline errors onto HTTP statuses.
func (s *Server) writeProcessorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, processor.ErrDetectionPending):
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "pending", "message": err.Error()})
	case errors.Is(err, processor.ErrInvalidParticipant):
		writeError(w, http.StatusBadRequest, processor.ErrInvalidParticipant.Error())
	case errors.Is(err, survey.ErrIncomplete):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrNotFound), errors.Is(err, elicitation.ErrUnknownItem):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrAlreadySubmitted), errors.Is(err, elicitation.ErrSubmitted):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "already_submitted", "message": alreadySubmittedMessage})
	case errors.Is(err, session.ErrExists),
		errors.Is(err, elicitation.ErrSelectionFixed),
		errors.Is(err, elicitation.ErrIncomplete),
		errors.Is(err, elicitation.ErrWrongState),
		errors.Is(err, processor.ErrExperienceRequired),
		errors.Is(err, processor.ErrExperienceDone):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, processor.ErrDetectionFailed):
		s.logger.Error("detection failed", "error", err)
		writeError(w, http.StatusBadGateway, processor.ErrDetectionFailed.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
