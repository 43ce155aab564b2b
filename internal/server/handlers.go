package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/skill-gap-wizard/internal/persistence"
	"github.com/jonathan/skill-gap-wizard/internal/wizard"
)

// CreateSessionRequest mounts a wizard for a browser.
type CreateSessionRequest struct {
	BrowserID         string `json:"browser_id" validate:"required,max=128"`
	ExternalSessionID string `json:"external_session_id,omitempty" validate:"max=128"`
}

// SessionResponse is returned when a wizard is mounted.
type SessionResponse struct {
	SessionID string        `json:"session_id"`
	BrowserID string        `json:"browser_id"`
	Reset     bool          `json:"reset"`
	State     wizard.State  `json:"state"`
	Screen    wizard.Screen `json:"screen"`
}

// StateResponse carries the wizard state and the screen to show.
type StateResponse struct {
	State  wizard.State  `json:"state"`
	Screen wizard.Screen `json:"screen"`
}

// JumpRequest sets the current step directly.
type JumpRequest struct {
	Step int `json:"step" validate:"required"`
}

// ObjectiveRequest selects an objective.
type ObjectiveRequest struct {
	Objective string `json:"objective" validate:"required"`
}

// RoleRequest selects the target role.
type RoleRequest struct {
	ID    string `json:"id" validate:"required,max=128"`
	Title string `json:"title" validate:"required,max=200"`
}

// RequirementChoiceRequest records whether requirements are uploaded or defined.
type RequirementChoiceRequest struct {
	Choice wizard.RequirementChoice `json:"choice" validate:"required"`
}

// ScenarioRequest selects a benchmark scenario.
type ScenarioRequest struct {
	Scenario string `json:"scenario" validate:"required"`
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session)

// withSession resolves the {id} path value to a mounted session.
func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessions.get(r.PathValue("id"))
		if err != nil {
			s.failure(w, r, err)
			return
		}
		h(w, r, sess)
	}
}

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst); err != nil {
		return &ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return s.validate.Struct(dst)
}

func (s *Server) stateResponse(w http.ResponseWriter, status int, sess *session) {
	s.jsonResponse(w, status, StateResponse{State: sess.ctrl.State(), Screen: sess.ctrl.Render()})
}

// handleCreateSession mounts a wizard. A changed external session ID clears
// the browser's persisted wizard data before restoring.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := s.decode(r, &req); err != nil {
		s.failure(w, r, err)
		return
	}

	logger := s.logger.With(zap.String("browser_id", req.BrowserID))
	bridge := persistence.NewBridge(s.kv, req.BrowserID, logger)

	reset := false
	if req.ExternalSessionID != "" {
		var err error
		if reset, err = bridge.SessionReset(r.Context(), req.ExternalSessionID); err != nil {
			s.failure(w, r, fmt.Errorf("session reset: %w", err))
			return
		}
	}

	sess := newSession(uuid.NewString(), req.BrowserID, bridge, logger)
	sess.ctrl = wizard.NewController(wizard.Options{
		Flow:             s.cfg.Flow,
		ExitPolicy:       s.cfg.ExitPolicy,
		AutoAdvanceDelay: s.cfg.AutoAdvanceDelay,
		Bridge:           bridge,
		Logger:           logger.With(zap.String("session_id", sess.id)),
		OnExit: func() {
			logger.Info("wizard exited to host", zap.String("session_id", sess.id))
		},
		Observer: sess.hub.publish,
	})
	if err := sess.ctrl.Restore(r.Context()); err != nil {
		sess.close()
		s.failure(w, r, fmt.Errorf("restore wizard: %w", err))
		return
	}

	if replaced := s.sessions.add(sess); replaced != nil {
		logger.Info("unmounting previous session", zap.String("session_id", replaced.id))
		replaced.close()
	}

	logger.Info("session mounted", zap.String("session_id", sess.id), zap.Bool("reset", reset))
	s.jsonResponse(w, http.StatusCreated, SessionResponse{
		SessionID: sess.id,
		BrowserID: sess.browserID,
		Reset:     reset,
		State:     sess.ctrl.State(),
		Screen:    sess.ctrl.Render(),
	})
}

// handleDeleteSession unmounts a wizard.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request, sess *session) {
	if _, err := s.sessions.remove(sess.id); err != nil {
		s.failure(w, r, err)
		return
	}
	sess.close()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleScreen(w http.ResponseWriter, _ *http.Request, sess *session) {
	s.stateResponse(w, http.StatusOK, sess)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request, sess *session) {
	snapshot, err := sess.bridge.Snapshot(r.Context())
	if err != nil {
		s.failure(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, snapshot)
}

// handleEvents streams controller events to the browser. Every transition is
// followed by the newly rendered screen.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, sess *session) {
	events, unsubscribe := sess.hub.subscribe()
	defer unsubscribe()

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := sse.WriteEvent("screen", sess.ctrl.Render()); err != nil {
		return
	}

	ticker := time.NewTicker(s.cfg.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				_ = sse.WriteEvent("closed", map[string]string{"session_id": sess.id})
				return
			}
			if err := sse.WriteEvent(string(ev.Type), ev); err != nil {
				return
			}
			if ev.Type == wizard.EventTransition {
				if err := sse.WriteEvent("screen", sess.ctrl.Render()); err != nil {
					return
				}
			}
		case <-ticker.C:
			if err := sse.WritePing(); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request, sess *session) {
	s.navigate(w, r, sess, sess.ctrl.OnNext)
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request, sess *session) {
	s.navigate(w, r, sess, sess.ctrl.OnBack)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request, sess *session) {
	s.navigate(w, r, sess, sess.ctrl.JumpToReport)
}

func (s *Server) handleJump(w http.ResponseWriter, r *http.Request, sess *session) {
	var req JumpRequest
	if err := s.decode(r, &req); err != nil {
		s.failure(w, r, err)
		return
	}
	s.navigate(w, r, sess, func() error { return sess.ctrl.JumpTo(req.Step) })
}

func (s *Server) navigate(w http.ResponseWriter, r *http.Request, sess *session, move func() error) {
	if err := move(); err != nil {
		s.failure(w, r, err)
		return
	}
	s.stateResponse(w, http.StatusOK, sess)
}

func (s *Server) handleSelectObjective(w http.ResponseWriter, r *http.Request, sess *session) {
	var req ObjectiveRequest
	if err := s.decode(r, &req); err != nil {
		s.failure(w, r, err)
		return
	}
	if err := checkOption(wizard.Objectives, "objective", req.Objective); err != nil {
		s.failure(w, r, err)
		return
	}
	s.selection(w, r, sess, func() error {
		_, err := sess.ctrl.OnSelectObjective(req.Objective)
		return err
	})
}

func (s *Server) handleSelectRole(w http.ResponseWriter, r *http.Request, sess *session) {
	var req RoleRequest
	if err := s.decode(r, &req); err != nil {
		s.failure(w, r, err)
		return
	}
	s.selection(w, r, sess, func() error {
		_, err := sess.ctrl.OnSelectRole(req.ID, req.Title)
		return err
	})
}

func (s *Server) handleSelectRequirementChoice(w http.ResponseWriter, r *http.Request, sess *session) {
	var req RequirementChoiceRequest
	if err := s.decode(r, &req); err != nil {
		s.failure(w, r, err)
		return
	}
	s.selection(w, r, sess, func() error {
		_, err := sess.ctrl.OnSelectRequirementChoice(req.Choice)
		return err
	})
}

func (s *Server) handleSelectScenario(w http.ResponseWriter, r *http.Request, sess *session) {
	var req ScenarioRequest
	if err := s.decode(r, &req); err != nil {
		s.failure(w, r, err)
		return
	}
	if err := checkOption(wizard.Scenarios, "scenario", req.Scenario); err != nil {
		s.failure(w, r, err)
		return
	}
	s.selection(w, r, sess, func() error {
		_, err := sess.ctrl.OnSelectScenario(req.Scenario)
		return err
	})
}

// selection applies a selection callback. Any auto-advance it schedules is
// delivered later over the event stream.
func (s *Server) selection(w http.ResponseWriter, r *http.Request, sess *session, apply func() error) {
	if err := apply(); err != nil {
		s.failure(w, r, err)
		return
	}
	s.stateResponse(w, http.StatusOK, sess)
}

// checkOption rejects tags missing from the catalog or marked unselectable.
func checkOption(catalog []wizard.Option, field, tag string) error {
	opt, ok := wizard.LookupOption(catalog, tag)
	if !ok {
		return &ErrValidation{Field: field, Message: fmt.Sprintf("unknown option %q", tag)}
	}
	if !opt.Selectable {
		return &ErrValidation{Field: field, Message: fmt.Sprintf("option %q is not available", tag)}
	}
	return nil
}
