package game

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// Default labels used when the document leaves a button text empty.
const (
	DefaultWonButtonText      = "You won!"
	DefaultLostButtonText     = "This time, you lost"
	DefaultRetryButtonText    = "Try again"
	DefaultStartButtonText    = "Start"
	DefaultContinueButtonText = "Continue"
	DefaultRestartButtonText  = "Restart"
)

// LoadDocument loads and validates a game document. The editor exports
// JSON, which the YAML decoder reads as well.
func LoadDocument(path string) (*Document, error) {
	cleanPath := filepath.Clean(path)
	b, err := os.ReadFile(cleanPath) //nolint:gosec // path is cleaned and validated
	if err != nil {
		return nil, err
	}
	return ParseDocument(b)
}

// ParseDocument decodes and validates a game document.
func ParseDocument(b []byte) (*Document, error) {
	var d Document
	if err := yaml.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("decode game document: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// ValidationError lists everything wrong with a document.
type ValidationError struct {
	Problems []error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid game document: %v", errors.Join(e.Problems...))
}

func (e *ValidationError) Unwrap() []error { return e.Problems }

// Validate checks the invariants the engine relies on.
func (d *Document) Validate() error {
	var probs []error
	add := func(format string, args ...any) {
		probs = append(probs, fmt.Errorf(format, args...))
	}

	if d.StartScene == "" {
		add("start scene is not set")
	} else if d.Scenes[d.StartScene] == nil {
		add("start scene %q does not exist", d.StartScene)
	}
	if d.MaxChances < 0 {
		add("max chances must not be negative, got %d", d.MaxChances)
	}
	if !d.ChanceIcon.Valid() {
		add("unknown chance icon %q", d.ChanceIcon)
	}

	seen := map[string]bool{}
	for _, v := range d.Variables {
		if v.ID == "" {
			add("variable %q has no id", v.Name)
			continue
		}
		if seen[v.ID] {
			add("duplicate variable id %q", v.ID)
		}
		seen[v.ID] = true
	}

	for _, id := range d.sceneIDs() {
		s := d.Scenes[id]
		if s == nil {
			add("scene %q is empty", id)
			continue
		}
		if s.ID != id {
			add("scene key %q does not match its id %q", id, s.ID)
		}
		flags := 0
		for _, f := range []bool{s.IsEndingScene, s.RemovesChanceOnEntry, s.RestoresChanceOnEntry} {
			if f {
				flags++
			}
		}
		if flags > 1 {
			add("scene %q: ending, remove-chance and restore-chance flags are mutually exclusive", id)
		}
		if s.IsEndingScene && len(s.Choices) > 0 {
			add("scene %q: an ending scene must not have choices", id)
		}
		for i, c := range s.Choices {
			if c.GoToScene == "" {
				add("scene %q choice %d (%q) has no destination", id, i, c.Text)
			} else if d.Scenes[c.GoToScene] == nil {
				add("scene %q choice %d (%q) points to missing scene %q", id, i, c.Text, c.GoToScene)
			}
			if !c.TransitionType.Valid() {
				add("scene %q choice %d: unknown transition %q", id, i, c.TransitionType)
			}
			if c.ReqCondition != nil && c.ReqCondition.VariableID != "" && !c.ReqCondition.Operator.Valid() {
				add("scene %q choice %d: unknown operator %q", id, i, c.ReqCondition.Operator)
			}
			for j, ef := range c.Effects {
				if !ef.Operation.Valid() {
					add("scene %q choice %d effect %d: unknown operation %q", id, i, j, ef.Operation)
				}
			}
		}
		for i, sc := range s.Scripts {
			if sc.GoToScene == "" || d.Scenes[sc.GoToScene] == nil {
				add("scene %q script %d points to missing scene %q", id, i, sc.GoToScene)
			}
			if sc.TriggerCondition != nil && sc.TriggerCondition.VariableID != "" && !sc.TriggerCondition.Operator.Valid() {
				add("scene %q script %d: unknown operator %q", id, i, sc.TriggerCondition.Operator)
			}
		}
	}

	if len(probs) > 0 {
		return &ValidationError{Problems: probs}
	}
	return nil
}

// sceneIDs returns scene ids in authored order, followed by any scenes the
// order list does not mention.
func (d *Document) sceneIDs() []string {
	out := make([]string, 0, len(d.Scenes))
	seen := make(map[string]bool, len(d.Scenes))
	for _, id := range d.SceneOrder {
		if _, ok := d.Scenes[id]; ok && !seen[id] {
			out = append(out, id)
			seen[id] = true
		}
	}
	rest := make([]string, 0)
	for id := range d.Scenes {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}

// ChancesEnabled reports whether the chance system is active.
func (d *Document) ChancesEnabled() bool {
	return d.EnableChances
}

// InitialVariables seeds a variable map from the declared initial values.
func (d *Document) InitialVariables() Variables {
	vars := make(Variables, len(d.Variables))
	for _, v := range d.Variables {
		vars[v.ID] = v.InitialValue
	}
	return vars
}

// CloneScenes deep-copies the scene map so a session can own it.
func (d *Document) CloneScenes() map[string]*Scene {
	out := make(map[string]*Scene, len(d.Scenes))
	for id, s := range d.Scenes {
		out[id] = s.Clone()
	}
	return out
}

// WonLabel returns the win button text.
func (d *Document) WonLabel() string {
	return orDefault(d.WonButtonText, DefaultWonButtonText)
}

// LostLabel returns the game-over button text.
func (d *Document) LostLabel() string {
	return orDefault(d.LostLastChanceButtonText, DefaultLostButtonText)
}

// RetryLabel returns the try-again button text.
func (d *Document) RetryLabel() string {
	return orDefault(d.ChanceReturnButtonText, DefaultRetryButtonText)
}

// StartLabel returns the splash start button text.
func (d *Document) StartLabel() string {
	return orDefault(d.SplashButtonText, DefaultStartButtonText)
}

// ContinueLabel returns the splash continue button text.
func (d *Document) ContinueLabel() string {
	return orDefault(d.ContinueButtonText, DefaultContinueButtonText)
}

// RestartLabel returns the ending restart button text.
func (d *Document) RestartLabel() string {
	return orDefault(d.RestartButtonText, DefaultRestartButtonText)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Clone returns a deep copy of the scene.
func (s *Scene) Clone() *Scene {
	if s == nil {
		return nil
	}
	c := *s
	if s.Choices != nil {
		c.Choices = make([]Choice, len(s.Choices))
		for i, ch := range s.Choices {
			c.Choices[i] = ch.clone()
		}
	}
	if s.Scripts != nil {
		c.Scripts = make([]SceneScript, len(s.Scripts))
		for i, sc := range s.Scripts {
			sc.TriggerCondition = sc.TriggerCondition.clone()
			c.Scripts[i] = sc
		}
	}
	return &c
}

func (c Choice) clone() Choice {
	c.ReqCondition = c.ReqCondition.clone()
	if c.Effects != nil {
		c.Effects = append([]Effect(nil), c.Effects...)
		if len(c.Effects) == 0 {
			c.Effects = []Effect{}
		}
	}
	return c
}

func (c *Condition) clone() *Condition {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
