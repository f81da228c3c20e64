package web

import (
	"html/template"
	"net/url"
	"strings"

	"cyoa/internal/engine"
	"cyoa/internal/game"
)

// PageViewModel is what layout.html renders; exactly one section is set.
type PageViewModel struct {
	Title  string
	Theme  string
	Splash *SplashViewModel
	Game   *GameViewModel
	Diary  *DiaryViewModel
}

// SplashViewModel contains data for the title screen.
type SplashViewModel struct {
	Title         string
	Paragraphs    []string
	StartLabel    string
	ContinueLabel string
	CanContinue   bool
	Preview       bool
}

// GameViewModel wraps an engine view with resolved asset URLs.
type GameViewModel struct {
	View        engine.View
	SceneID     string
	Image       template.URL
	EndingImage template.URL
	Overlay     *OverlayViewModel
	Sound       template.URL
	ChanceGlyph string
	ChanceColor string
}

// OverlayViewModel describes the incoming-scene overlay while a transition
// animates.
type OverlayViewModel struct {
	Image       template.URL
	StartClass  string
	TransClass  string
	DelayMillis int64
}

type DiaryViewModel struct {
	Pages []DiaryPageViewModel
}

type DiaryPageViewModel struct {
	engine.DiaryPage
	Image template.URL
}

func (s *Server) title() string {
	if s.Doc.Title != "" {
		return s.Doc.Title
	}
	return "Adventure"
}

func (s *Server) theme() string {
	if s.Doc.Theme == "light" {
		return "light"
	}
	return "dark"
}

func (s *Server) splashViewModel(canContinue bool) *SplashViewModel {
	return &SplashViewModel{
		Title:         s.title(),
		Paragraphs:    engine.Paragraphs(s.Doc.SplashDescription),
		StartLabel:    s.Doc.StartLabel(),
		ContinueLabel: s.Doc.ContinueLabel(),
		CanContinue:   canContinue,
		Preview:       s.Preview,
	}
}

func (s *Server) gameViewModel(v engine.View, sound string) *GameViewModel {
	vm := &GameViewModel{View: v, Sound: assetURL(sound)}
	if v.Scene != nil {
		vm.SceneID = v.Scene.ID
		vm.Image = sceneImageURL(v.Scene.ID, v.Scene.Image)
	}
	if v.Ending != nil {
		vm.EndingImage = assetURL(v.Ending.Image)
	}
	if t := v.Transition; t != nil {
		vm.Overlay = &OverlayViewModel{
			Image:       sceneImageURL(t.Target, t.Background),
			StartClass:  t.StartClass,
			TransClass:  t.TransClass,
			DelayMillis: t.OverlayDelay.Milliseconds(),
		}
		vm.Sound = assetURL(t.Sound)
	}
	if c := v.Chances; c != nil {
		vm.ChanceGlyph = chanceGlyph(c.Icon)
		vm.ChanceColor = c.Color
	}
	return vm
}

func (s *Server) diaryViewModel(pages []engine.DiaryPage) *DiaryViewModel {
	vm := &DiaryViewModel{Pages: make([]DiaryPageViewModel, 0, len(pages))}
	for _, p := range pages {
		vm.Pages = append(vm.Pages, DiaryPageViewModel{DiaryPage: p, Image: assetURL(p.Image)})
	}
	return vm
}

func chanceGlyph(icon game.ChanceIcon) string {
	switch icon {
	case game.IconCircle:
		return "●"
	case game.IconCross:
		return "✚"
	default:
		return "♥"
	}
}

// sceneImageURL resolves a scene image, falling back to a generated
// placeholder when the scene has none.
func sceneImageURL(sceneID, ref string) template.URL {
	if ref == "" {
		return template.URL("/placeholder/" + url.PathEscape(sceneID) + ".png")
	}
	return assetURL(ref)
}

// assetURL turns a document reference into something a browser can load.
// Inline images and absolute URLs pass through; bare names are served from
// the assets directory.
func assetURL(ref string) template.URL {
	switch {
	case ref == "":
		return ""
	case strings.HasPrefix(ref, "data:image/"), strings.HasPrefix(ref, "data:audio/"):
		return template.URL(ref)
	case strings.HasPrefix(ref, "https://"), strings.HasPrefix(ref, "http://"):
		return template.URL(ref)
	case strings.HasPrefix(ref, "data:"), strings.Contains(ref, ":"):
		// Anything else with a scheme is refused.
		return ""
	}
	parts := strings.Split(strings.TrimPrefix(ref, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return template.URL("/assets/" + strings.Join(parts, "/"))
}
