package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bvisser/relogin/internal/dialect"
	. "github.com/bvisser/relogin/internal/logging"
	"github.com/bvisser/relogin/internal/service"
	"github.com/bvisser/relogin/internal/session"
)

type loginRequest struct {
	Identity string `json:"identity"`
	Secret   string `json:"secret,omitempty"`
	Dialect  string `json:"dialect,omitempty"`
}

type secondFactorRequest struct {
	SessionID string `json:"session_id"`
	Code      string `json:"code,omitempty"`
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

type accountRequest struct {
	Identity string `json:"identity"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		L_error("http: failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func parseChoice(w http.ResponseWriter, raw string) (dialect.Choice, bool) {
	if raw == "" {
		return dialect.ChoiceAuto, true
	}
	choice, err := dialect.ParseChoice(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return choice, true
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Identity == "" || req.Secret == "" {
		writeError(w, http.StatusBadRequest, "identity and secret are required")
		return
	}
	choice, ok := parseChoice(w, req.Dialect)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, s.svc.Login(req.Identity, req.Secret, choice))
}

func (s *Server) handleQuickLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Identity == "" {
		writeError(w, http.StatusBadRequest, "identity is required")
		return
	}
	choice, ok := parseChoice(w, req.Dialect)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, s.svc.QuickLogin(req.Identity, choice))
}

func (s *Server) handleSecondFactorSubmit(w http.ResponseWriter, r *http.Request) {
	var req secondFactorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SessionID == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "session_id and code are required")
		return
	}

	result := s.svc.SubmitSecondFactor(req.SessionID, req.Code)
	status := http.StatusOK
	if result.Status == service.ResumeStatusNotFound {
		status = http.StatusNotFound
	}
	writeJSON(w, status, result)
}

func (s *Server) handleSecondFactorCancel(w http.ResponseWriter, r *http.Request) {
	var req secondFactorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	if !s.svc.CancelSecondFactor(req.SessionID) {
		writeError(w, http.StatusNotFound, "no session awaiting a second factor under this id")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.PendingSecondFactor())
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Sessions())
}

func (s *Server) handleSessionClose(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	if !s.svc.CloseSession(req.SessionID) {
		writeError(w, http.StatusNotFound, "no such session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "session_id query parameter is required")
		return
	}

	img, err := s.svc.Screenshot(id)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "no such session")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(img); err != nil {
		L_debug("http: failed to write screenshot", "error", err)
	}
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	identities, err := s.svc.Identities()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, identities)
}

func (s *Server) handleAccountDelete(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Identity == "" {
		writeError(w, http.StatusBadRequest, "identity is required")
		return
	}

	removed, err := s.svc.DeleteAccountData(req.Identity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) handleCaches(w http.ResponseWriter, r *http.Request) {
	caches, err := s.svc.Caches()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, caches)
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	purged, err := s.svc.PurgeExpiredArtifacts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"purged": purged})
}
