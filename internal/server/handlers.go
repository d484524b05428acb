package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/meltforce/run5k/internal/models"
	"github.com/meltforce/run5k/internal/plan"
	"github.com/meltforce/run5k/internal/progress"
	"github.com/meltforce/run5k/internal/timer"
)

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

func (s *Server) handleWorkouts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Workouts(s.store.Progress()))
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Summary())
}

type progressChange struct {
	Index     int                    `json:"index"`
	Completed bool                   `json:"completed"`
	Changed   bool                   `json:"changed"`
	Progress  models.ProgressSummary `json:"progress"`
}

func (s *Server) handleToggleProgress(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid workout index"})
		return
	}

	completed, err := s.store.Toggle(r.Context(), index)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progressChange{
		Index:     index,
		Completed: completed,
		Changed:   true,
		Progress:  s.store.Summary(),
	})
}

func (s *Server) handleCompleteProgress(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid workout index"})
		return
	}

	changed, err := s.store.MarkCompleted(r.Context(), index)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progressChange{
		Index:     index,
		Completed: true,
		Changed:   changed,
		Progress:  s.store.Summary(),
	})
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, progress.ErrIndexOutOfRange) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func (s *Server) handlePreferences(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Preferences())
}

func (s *Server) handleSetRunnerName(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	s.store.SetRunnerName(r.Context(), body.Name)
	writeJSON(w, http.StatusOK, s.store.Preferences())
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.timer.Snapshot())
}

type eventsResponse struct {
	Events    []Event `json:"events"`
	Next      uint64  `json:"next"`
	Truncated bool    `json:"truncated,omitempty"`
}

func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid since parameter"})
			return
		}
		since = n
	}
	events, next, truncated := s.events.Since(since)
	if events == nil {
		events = []Event{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: events, Next: next, Truncated: truncated})
}

func (s *Server) handleSessionCommand(w http.ResponseWriter, r *http.Request) {
	name := timer.Command(chi.URLParam(r, "command"))

	var args timer.Args
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	if name == timer.CmdSelect {
		workout, ok := s.catalog.Get(args.Index)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown workout index"})
			return
		}
		if args.Text == "" {
			args.Text = workout.Text
		} else if err := plan.Validate(args.Text); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
	}

	res, err := s.timer.Dispatch(r.Context(), name, args)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, timer.ErrUnknownCommand):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, timer.ErrNoSession),
		errors.Is(err, timer.ErrSessionActive),
		errors.Is(err, timer.ErrStaleSession):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		s.log.Error("session command failed", "command", name, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

type cacheStatus struct {
	Current   string   `json:"current"`
	Installed bool     `json:"installed"`
	Claimed   bool     `json:"claimed"`
	Caches    []string `json:"caches"`
	Assets    []string `json:"assets"`
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	if s.assets == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "asset cache not configured"})
		return
	}
	caches, err := s.assets.ListCaches(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, cacheStatus{
		Current:   s.assets.CacheName(),
		Installed: s.assets.Installed(),
		Claimed:   s.assets.Claimed(),
		Caches:    caches,
		Assets:    s.assets.Manifest().Assets,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
