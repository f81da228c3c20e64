package engine

import (
	"strings"

	"cyoa/internal/game"
	"cyoa/internal/transition"
)

// Screen is the surface currently shown to the player.
type Screen string

const (
	ScreenPlaying Screen = "playing"
	ScreenEnding  Screen = "ending"
)

// ActionKind identifies the single button shown in place of choices.
type ActionKind string

const (
	ActionWin      ActionKind = "win"
	ActionRetry    ActionKind = "retry"
	ActionGameOver ActionKind = "game-over"
)

// Action is the synthesized button that replaces a scene's choices.
type Action struct {
	Kind  ActionKind `json:"kind"`
	Label string     `json:"label"`
}

type SceneView struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Image      string   `json:"image"`
	Paragraphs []string `json:"paragraphs"`
}

type ChoiceView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type ChancesView struct {
	Icon    game.ChanceIcon   `json:"icon"`
	Color   string            `json:"color"`
	Current int               `json:"current"`
	Max     int               `json:"max"`
	Slots   []game.ChanceSlot `json:"slots"`
}

// StatView is a player-visible variable.
type StatView struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Value   float64 `json:"value"`
	Color   string  `json:"color,omitempty"`
	Inverse bool    `json:"inverse,omitempty"`
}

type EndingView struct {
	Kind         game.EndingKind `json:"kind"`
	Image        string          `json:"image,omitempty"`
	Description  string          `json:"description"`
	Alignment    string          `json:"alignment,omitempty"`
	RestartLabel string          `json:"restartLabel"`
}

// View is the render model handed to presentation layers. It carries no
// engine state of its own.
type View struct {
	Screen     Screen           `json:"screen"`
	Scene      *SceneView       `json:"scene,omitempty"`
	Choices    []ChoiceView     `json:"choices"`
	Action     *Action          `json:"action,omitempty"`
	Chances    *ChancesView     `json:"chances,omitempty"`
	Stats      []StatView       `json:"stats,omitempty"`
	Error      string           `json:"error,omitempty"`
	Transition *transition.Plan `json:"transition,omitempty"`
	Ending     *EndingView      `json:"ending,omitempty"`
}

func (v View) clone() View {
	c := v
	c.Choices = append([]ChoiceView(nil), v.Choices...)
	c.Stats = append([]StatView(nil), v.Stats...)
	if v.Scene != nil {
		sc := *v.Scene
		sc.Paragraphs = append([]string(nil), v.Scene.Paragraphs...)
		c.Scene = &sc
	}
	if v.Action != nil {
		a := *v.Action
		c.Action = &a
	}
	if v.Chances != nil {
		ch := *v.Chances
		ch.Slots = append([]game.ChanceSlot(nil), v.Chances.Slots...)
		c.Chances = &ch
	}
	if v.Transition != nil {
		t := *v.Transition
		c.Transition = &t
	}
	if v.Ending != nil {
		e := *v.Ending
		c.Ending = &e
	}
	return c
}

// Paragraphs splits a scene description on its embedded newlines.
func Paragraphs(desc string) []string {
	if desc == "" {
		return []string{}
	}
	return strings.Split(strings.ReplaceAll(desc, "\r\n", "\n"), "\n")
}

// DiaryPage groups one visited scene with the choices made there.
type DiaryPage struct {
	SceneID    string   `json:"sceneId"`
	Name       string   `json:"name"`
	Image      string   `json:"image"`
	Paragraphs []string `json:"paragraphs"`
	Choices    []string `json:"choices"`
}

// BuildDiary folds a diary log into pages. Consecutive loads of the same
// scene share a page; choices attach to the page before them; endings are
// not shown.
func BuildDiary(log []DiaryEntry) []DiaryPage {
	pages := []DiaryPage{}
	last := ""
	for _, e := range log {
		switch e.Type {
		case EntrySceneLoad:
			if e.Data.ID == last {
				continue
			}
			pages = append(pages, DiaryPage{
				SceneID:    e.Data.ID,
				Name:       e.Data.Name,
				Image:      e.Data.Image,
				Paragraphs: Paragraphs(e.Data.Description),
				Choices:    []string{},
			})
			last = e.Data.ID
		case EntryChoice:
			if n := len(pages); n > 0 {
				pages[n-1].Choices = append(pages[n-1].Choices, e.Data.Text)
			}
		}
	}
	return pages
}
