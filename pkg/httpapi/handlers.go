package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hushcore/hushcore/pkg/core"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ok",
		"uptimeSeconds":     time.Since(s.startAt).Seconds(),
		"activeConnections": s.status.ActiveConnections(),
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Get())
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var cfg map[string]interface{}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "malformed configuration body")
		return
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed configuration body")
		return
	}

	replacement := s.store.Get()
	if err := json.Unmarshal(raw, &replacement); err != nil {
		writeError(w, http.StatusBadRequest, "malformed configuration body")
		return
	}

	if err := s.store.Replace(replacement); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeSuccess(w, nil)
}

func (s *Server) handlePutSensitivity(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Level float64 `json:"level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	if body.Level < 0 || body.Level > 1 {
		writeError(w, http.StatusBadRequest, "level must be within 0..1")
		return
	}
	if err := s.store.SetSensitivity(body.Level); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeSuccess(w, nil)
}

func (s *Server) handlePostKeyword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Keyword string `json:"keyword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Keyword == "" {
		writeError(w, http.StatusBadRequest, "keyword is required")
		return
	}
	if err := s.store.AddKeyword(body.Keyword); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeSuccess(w, nil)
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"profiles": s.profiles.List(),
	})
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.profiles.Remove(id) {
		writeError(w, http.StatusNotFound, core.ErrProfileNotFound.Error())
		return
	}
	writeSuccess(w, nil)
}

func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	breakerStates := make(map[string]string, len(s.breakers))
	for name, b := range s.breakers {
		breakerStates[name] = string(b.State())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"failureCounters": s.failures.Snapshot(),
		"circuitBreakers": breakerStates,
	})
}
