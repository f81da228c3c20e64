package game

import (
	"errors"
	"fmt"
)

// MaxRedirects bounds how many scene scripts may chain on a single entry.
const MaxRedirects = 32

// ErrRedirectLoop is returned when scene scripts redirect in a cycle or
// exceed MaxRedirects.
var ErrRedirectLoop = errors.New("scene redirect loop")

// SceneNotFoundError reports a reference to a scene that does not exist.
type SceneNotFoundError struct {
	ID string
}

func (e *SceneNotFoundError) Error() string {
	return fmt.Sprintf("Error: Scene %q not found.", e.ID)
}

// Resolution is the scene a player actually lands on, after scripts.
type Resolution struct {
	Scene   *Scene
	Choices []Choice
	// Path lists every scene visited while resolving, starting with the
	// requested one and ending with Scene.ID.
	Path []string
}

// Redirected reports whether a script moved the player elsewhere.
func (r Resolution) Redirected() bool {
	return len(r.Path) > 1
}

// Resolve follows scene scripts from id until no script fires, then filters
// the landing scene's choices by their visibility conditions. It has no side
// effects; entry effects are the caller's job.
func Resolve(id string, vars Variables, scenes map[string]*Scene) (Resolution, error) {
	path := []string{id}
	visited := map[string]bool{id: true}
	cur := id
	for {
		s := scenes[cur]
		if s == nil {
			return Resolution{Path: path}, &SceneNotFoundError{ID: cur}
		}
		next, ok := firstTrigger(s, vars)
		if !ok {
			return Resolution{Scene: s, Choices: VisibleChoices(s, vars), Path: path}, nil
		}
		if visited[next] || len(path) > MaxRedirects {
			return Resolution{Path: path}, fmt.Errorf("%w: %v -> %s", ErrRedirectLoop, path, next)
		}
		visited[next] = true
		path = append(path, next)
		cur = next
	}
}

func firstTrigger(s *Scene, vars Variables) (string, bool) {
	for _, sc := range s.Scripts {
		if triggers(sc, vars) {
			return sc.GoToScene, true
		}
	}
	return "", false
}

// VisibleChoices returns the choices of s whose conditions hold.
func VisibleChoices(s *Scene, vars Variables) []Choice {
	out := make([]Choice, 0, len(s.Choices))
	for _, c := range s.Choices {
		if Evaluate(c.ReqCondition, vars) {
			out = append(out, c)
		}
	}
	return out
}
