package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/confide/internal/elicitation"
	"github.com/MikeSquared-Agency/confide/internal/processor"
)

type startSessionRequest struct {
	ParticipantID string `json:"participant_id"`
	Transcript    string `json:"transcript"`
}

type experienceRequest struct {
	Answers map[string]string `json:"answers"`
}

type selectionRequest struct {
	Selected bool `json:"selected"`
}

type reasoningRequest struct {
	Text string `json:"text"`
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return false
	}
	return true
}

func (s *Server) experienceSurvey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.proc.ExperienceSurvey())
}

// startSession handles POST /api/v1/sessions
func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := s.proc.StartSession(r.Context(), req.ParticipantID, req.Transcript)
	if err != nil {
		s.writeProcessorError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	s.respondView(w)(s.proc.Session(chi.URLParam(r, "pid")))
}

func (s *Server) submitExperience(w http.ResponseWriter, r *http.Request) {
	var req experienceRequest
	if !decode(w, r, &req) {
		return
	}
	s.respondView(w)(s.proc.SubmitExperience(r.Context(), chi.URLParam(r, "pid"), req.Answers))
}

// review handles GET /api/v1/sessions/{pid}/review; 202 while detection runs.
func (s *Server) review(w http.ResponseWriter, r *http.Request) {
	s.respondView(w)(s.proc.Review(chi.URLParam(r, "pid")))
}

func (s *Server) setSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if !decode(w, r, &req) {
		return
	}
	id := elicitation.ItemID(chi.URLParam(r, "id"))
	s.respondView(w)(s.proc.SetSelected(chi.URLParam(r, "pid"), id, req.Selected))
}

func (s *Server) confirmSelection(w http.ResponseWriter, r *http.Request) {
	s.respondView(w)(s.proc.ConfirmSelection(chi.URLParam(r, "pid")))
}

func (s *Server) setReasoning(w http.ResponseWriter, r *http.Request) {
	var req reasoningRequest
	if !decode(w, r, &req) {
		return
	}
	id := elicitation.ItemID(chi.URLParam(r, "id"))
	s.respondView(w)(s.proc.SetReasoning(chi.URLParam(r, "pid"), id, req.Text))
}

func (s *Server) advance(w http.ResponseWriter, r *http.Request) {
	s.respondView(w)(s.proc.Advance(chi.URLParam(r, "pid")))
}

// submit handles POST /api/v1/sessions/{pid}/submit
func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	rec, err := s.proc.Submit(r.Context(), chi.URLParam(r, "pid"))
	if err != nil {
		s.writeProcessorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "submitted",
		"submission_id": rec.SubmissionID,
		"message":       "Thank you! Your feedback has been recorded.",
	})
}

func (s *Server) respondView(w http.ResponseWriter) func(*processor.View, error) {
	return func(v *processor.View, err error) {
		if err != nil {
			s.writeProcessorError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}
