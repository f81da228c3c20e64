package web

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"cyoa/internal/engine"
	"cyoa/internal/transition"
)

// GET /
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	e, err := s.player(ctx, w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	s.render(w, PageViewModel{
		Title:  s.title(),
		Theme:  s.theme(),
		Splash: s.splashViewModel(e.HasSave(ctx)),
	})
}

// POST /start
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.begin(w, r, true)
}

// POST /continue
func (s *Server) handleContinue(w http.ResponseWriter, r *http.Request) {
	s.begin(w, r, false)
}

func (s *Server) begin(w http.ResponseWriter, r *http.Request, fresh bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	e, err := s.player(ctx, w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	v := e.Initialize(ctx, fresh)
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, stateResponse{View: v})
		return
	}
	http.Redirect(w, r, "/play", http.StatusSeeOther)
}

// GET /play
func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	e, err := s.player(ctx, w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	v := started(ctx, e)
	sound := r.URL.Query().Get("sound")
	if !s.knownSound(sound) {
		sound = ""
	}
	w.Header().Set("Cache-Control", "no-store")
	s.render(w, PageViewModel{
		Title: s.title(),
		Theme: s.theme(),
		Game:  s.gameViewModel(v, sound),
	})
}

// POST /choose
func (s *Server) handleChoose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	choice := r.FormValue("choice")
	s.step(w, r, func(e *engine.Engine) (transition.Plan, error) {
		return e.SelectChoice(r.Context(), choice)
	})
}

// POST /action
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.step(w, r, func(e *engine.Engine) (transition.Plan, error) {
		return e.TakeAction(r.Context())
	})
}

type stateResponse struct {
	View engine.View      `json:"view"`
	Plan *transition.Plan `json:"plan,omitempty"`
}

// step runs a player move and answers with JSON or a redirect back to the
// game page.
func (s *Server) step(w http.ResponseWriter, r *http.Request, move func(*engine.Engine) (transition.Plan, error)) {
	ctx := r.Context()
	e, err := s.player(ctx, w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	started(ctx, e)

	plan, err := move(e)
	if err != nil {
		s.log().Debug("Move rejected", zap.Error(err))
		if wantsJSON(r) {
			writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
			return
		}
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, stateResponse{View: e.View(), Plan: &plan})
		return
	}
	target := "/play"
	if plan.Sound != "" && !plan.Animated() {
		target += "?sound=" + url.QueryEscape(plan.Sound)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// POST /transition-end
func (s *Server) handleTransitionEnd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	e, err := s.player(r.Context(), w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	e.AnimationEnded()
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, stateResponse{View: e.View()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /restart
func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	e, err := s.player(ctx, w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	v := e.Restart(ctx)
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, stateResponse{View: v})
		return
	}
	http.Redirect(w, r, "/play", http.StatusSeeOther)
}

// GET /state
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	e, err := s.player(ctx, w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{View: started(ctx, e)})
}

// GET /diary
func (s *Server) handleDiary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	e, err := s.player(ctx, w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	started(ctx, e)
	pages := e.Diary()
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, pages)
		return
	}
	s.render(w, PageViewModel{
		Title: s.title(),
		Theme: s.theme(),
		Diary: s.diaryViewModel(pages),
	})
}

func (s *Server) render(w http.ResponseWriter, vm PageViewModel) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.Tmpl.ExecuteTemplate(w, "layout.html", vm); err != nil {
		s.log().Error("Failed to render template", zap.Error(err))
		http.Error(w, "failed to render template", http.StatusInternalServerError)
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
