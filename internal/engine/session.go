package engine

import (
	"errors"
	"fmt"

	"cyoa/internal/game"
)

// SaveVersion is written into every snapshot. Saves from a newer engine are
// treated as corrupt.
const SaveVersion = 1

// DefaultSaveKey namespaces saves in the backing store.
const DefaultSaveKey = "cyoaBuilderSaveData_v2"

// EntryType tags a diary entry.
type EntryType string

const (
	EntrySceneLoad EntryType = "scene_load"
	EntryChoice    EntryType = "choice"
	EntryEnding    EntryType = "ending"
)

// EntryData carries the fields of every entry type; each type fills its own.
type EntryData struct {
	// scene_load
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Image       string `json:"image,omitempty"`
	Description string `json:"description,omitempty"`
	// choice
	Text string `json:"text,omitempty"`
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
	// ending
	Kind game.EndingKind `json:"type,omitempty"`
}

// DiaryEntry is one record in the append-only play log.
type DiaryEntry struct {
	Type EntryType `json:"type"`
	Data EntryData `json:"data"`
}

// Session is everything needed to resume a play-through.
type Session struct {
	Version         int                    `json:"version"`
	CurrentSceneID  string                 `json:"currentSceneId"`
	PreviousSceneID string                 `json:"previousSceneId,omitempty"`
	DiaryLog        []DiaryEntry           `json:"diaryLog"`
	ScenesState     map[string]*game.Scene `json:"scenesState"`
	Chances         *int                   `json:"chances"`
	Variables       game.Variables         `json:"variables"`
}

func newSession(doc *game.Document) Session {
	s := Session{
		Version:        SaveVersion,
		CurrentSceneID: doc.StartScene,
		DiaryLog:       []DiaryEntry{},
		ScenesState:    doc.CloneScenes(),
		Variables:      doc.InitialVariables(),
	}
	if doc.ChancesEnabled() {
		n := doc.MaxChances
		s.Chances = &n
	}
	return s
}

// checkSave rejects snapshots the engine cannot resume from and fills in
// fields older saves may lack.
func checkSave(s *Session) error {
	if s.Version > SaveVersion {
		return fmt.Errorf("save version %d is newer than %d", s.Version, SaveVersion)
	}
	if s.CurrentSceneID == "" {
		return errors.New("save has no current scene")
	}
	if len(s.ScenesState) == 0 {
		return errors.New("save has no scenes")
	}
	if s.ScenesState[s.CurrentSceneID] == nil {
		return fmt.Errorf("save points to missing scene %q", s.CurrentSceneID)
	}
	if s.Variables == nil {
		s.Variables = game.Variables{}
	}
	if s.DiaryLog == nil {
		s.DiaryLog = []DiaryEntry{}
	}
	return nil
}

// Clone returns a deep copy.
func (s Session) Clone() Session {
	c := s
	c.DiaryLog = append([]DiaryEntry(nil), s.DiaryLog...)
	if s.DiaryLog != nil && c.DiaryLog == nil {
		c.DiaryLog = []DiaryEntry{}
	}
	if s.ScenesState != nil {
		c.ScenesState = make(map[string]*game.Scene, len(s.ScenesState))
		for id, sc := range s.ScenesState {
			c.ScenesState[id] = sc.Clone()
		}
	}
	if s.Chances != nil {
		n := *s.Chances
		c.Chances = &n
	}
	c.Variables = s.Variables.Clone()
	return c
}

// lastEnding returns the ending kind if the session already finished.
func (s Session) lastEnding() (game.EndingKind, bool) {
	if n := len(s.DiaryLog); n > 0 && s.DiaryLog[n-1].Type == EntryEnding {
		return s.DiaryLog[n-1].Data.Kind, true
	}
	return "", false
}
