// Package web is the browser host: it keeps one playback engine per player
// cookie and renders its views as HTML, JSON or a websocket stream.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"cyoa/internal/engine"
	"cyoa/internal/game"
	"cyoa/internal/metrics"
	"cyoa/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// ParseTemplates loads the embedded page templates.
func ParseTemplates() (*template.Template, error) {
	return template.New("").ParseFS(templateFS, "templates/*.html")
}

type Server struct {
	Doc *game.Document
	// Saves backs every player's save slot.
	Saves session.Store[[]byte]
	// Players holds live engines by player id.
	Players session.Store[*engine.Engine]
	// AssetsDir holds images and sounds the document refers to by name.
	AssetsDir         string
	GameID            string
	Preview           bool
	TransitionTimeout time.Duration
	Metrics           *metrics.Recorder
	Logger            *zap.Logger
	Tmpl              *template.Template

	mu        sync.Mutex
	soundOnce sync.Once
	sounds    map[string]bool
}

const cookieName = "cyoa_sid"

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)

	mux.HandleFunc("/start", s.handleStart)
	mux.HandleFunc("/continue", s.handleContinue)
	mux.HandleFunc("/play", s.handlePlay)
	mux.HandleFunc("/choose", s.handleChoose)
	mux.HandleFunc("/action", s.handleAction)
	mux.HandleFunc("/transition-end", s.handleTransitionEnd)
	mux.HandleFunc("/restart", s.handleRestart)

	mux.HandleFunc("/state", s.handleState)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/diary", s.handleDiary)
	mux.HandleFunc("/map", s.handleMap)

	mux.HandleFunc("/assets/", s.handleAsset)
	mux.HandleFunc("/placeholder/", s.handlePlaceholder)
	if s.Metrics != nil {
		mux.Handle("/metrics", s.Metrics.Handler())
	}
	return mux
}

func (s *Server) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// player returns the caller's engine, creating the cookie and engine on
// first contact. The engine may not be initialized yet.
func (s *Server) player(ctx context.Context, w http.ResponseWriter, r *http.Request) (*engine.Engine, error) {
	id := s.sessionID(r)
	if id == "" {
		id = s.Players.NewID()
		http.SetCookie(w, &http.Cookie{
			Name:     cookieName,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return s.engineFor(ctx, id)
}

func (s *Server) engineFor(ctx context.Context, id string) (*engine.Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok, err := s.Players.Get(ctx, id); err == nil && ok {
		return e, nil
	}
	opts := engine.Options{
		Store:             s.Saves,
		Key:               s.saveKey(id),
		Preview:           s.Preview,
		TransitionTimeout: s.TransitionTimeout,
		Logger:            s.log().With(zap.String("player", id)),
	}
	if s.Metrics != nil {
		opts.Observer = s.Metrics
	}
	e, err := engine.New(s.Doc, opts)
	if err != nil {
		return nil, err
	}
	if err := s.Players.Put(ctx, id, e); err != nil {
		return nil, err
	}
	if s.Metrics != nil {
		s.Metrics.PlayerJoined()
	}
	return e, nil
}

func (s *Server) saveKey(playerID string) string {
	key := engine.DefaultSaveKey
	if s.GameID != "" {
		key += ":" + s.GameID
	}
	return key + ":" + playerID
}

func (s *Server) sessionID(r *http.Request) string {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// started returns the engine's view, resuming the save when the engine is
// new to this process.
func started(ctx context.Context, e *engine.Engine) engine.View {
	v := e.View()
	if v.Screen == "" {
		v = e.Initialize(ctx, false)
	}
	return v
}

// statusFor maps engine errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrUnknownChoice), errors.Is(err, engine.ErrNoAction):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrTransitionInProgress), errors.Is(err, engine.ErrSessionEnded):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// knownSound reports whether src is a sound effect the document uses.
func (s *Server) knownSound(src string) bool {
	s.soundOnce.Do(func() {
		s.sounds = map[string]bool{}
		for _, sc := range s.Doc.Scenes {
			for _, c := range sc.Choices {
				if c.SoundEffect != "" {
					s.sounds[c.SoundEffect] = true
				}
			}
		}
	})
	return s.sounds[src]
}
