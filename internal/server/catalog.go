package server

import (
	"net/http"

	"github.com/jonathan/skill-gap-wizard/internal/requirements"
)

// SessionRequirementsRequest adds the details the wizard does not collect.
type SessionRequirementsRequest struct {
	Industry        string `json:"industry,omitempty"`
	ExperienceLevel string `json:"experience_level,omitempty"`
}

// RequirementsResponse returns generated requirements.
type RequirementsResponse struct {
	Requirements *requirements.Requirements `json:"requirements"`
}

func (s *Server) handleSearchRoles(w http.ResponseWriter, r *http.Request) {
	if s.roles == nil {
		s.failure(w, r, &ErrServiceUnavailable{Service: "role catalog"})
		return
	}
	found, err := s.roles.Search(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		s.failure(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, found)
}

func (s *Server) handleGenerateRequirements(w http.ResponseWriter, r *http.Request) {
	if s.generator == nil {
		s.failure(w, r, &ErrServiceUnavailable{Service: "requirements"})
		return
	}
	var req requirements.Request
	if err := s.decode(r, &req); err != nil {
		s.failure(w, r, err)
		return
	}
	reqs, err := s.generator.Generate(r.Context(), req)
	if err != nil {
		s.failure(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, RequirementsResponse{Requirements: reqs})
}

// handleSessionRequirements generates requirements from the session's
// selections and stores them on the wizard.
func (s *Server) handleSessionRequirements(w http.ResponseWriter, r *http.Request, sess *session) {
	if s.generator == nil {
		s.failure(w, r, &ErrServiceUnavailable{Service: "requirements"})
		return
	}
	var body SessionRequirementsRequest
	if r.ContentLength != 0 {
		if err := s.decode(r, &body); err != nil {
			s.failure(w, r, err)
			return
		}
	}

	sel := sess.ctrl.State().Selections
	if sel.TargetRole == nil {
		s.failure(w, r, &ErrValidation{Field: "target_role", Message: "select a target role first"})
		return
	}

	reqs, err := s.generator.Generate(r.Context(), requirements.Request{
		RoleName:        sel.TargetRole.Title,
		Industry:        body.Industry,
		ExperienceLevel: body.ExperienceLevel,
		Objective:       sel.Objective,
		Scenario:        sel.BenchmarkScenario,
	})
	if err != nil {
		s.failure(w, r, err)
		return
	}
	if err := sess.ctrl.StoreRequirements(reqs); err != nil {
		s.failure(w, r, err)
		return
	}
	s.stateResponse(w, http.StatusOK, sess)
}
