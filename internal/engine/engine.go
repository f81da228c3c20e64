// Package engine plays back a game document: it owns the play session,
// walks the scene graph, and emits a View after every state change.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"cyoa/internal/game"
	"cyoa/internal/session"
	"cyoa/internal/transition"
)

var (
	ErrTransitionInProgress = errors.New("a scene transition is in progress")
	ErrUnknownChoice        = errors.New("that choice doesn't exist")
	ErrSessionEnded         = errors.New("the game has ended; restart to play again")
	ErrNoAction             = errors.New("no action is available in this scene")
	ErrNotStarted           = errors.New("the game has not been initialized")
)

// SoundPlayer plays a choice's sound effect. Failures are logged and never
// stop the transition.
type SoundPlayer interface {
	Play(ctx context.Context, src string) error
}

// Observer is told about milestones, e.g. for metrics.
type Observer interface {
	SceneEntered(sceneID string)
	ChoiceTaken(from, to string)
	EndingShown(kind game.EndingKind)
	SaveFailed(err error)
}

// Options configures an Engine. The zero value plays from memory only.
type Options struct {
	// Store backs the save slot. Nil keeps saves in memory.
	Store session.Store[[]byte]
	// Key names the save slot; defaults to DefaultSaveKey.
	Key string
	// Preview disables all save reads and writes.
	Preview bool
	// TransitionTimeout bounds how long an animation may run before the
	// scene change is forced.
	TransitionTimeout time.Duration
	Sound             SoundPlayer
	Observer          Observer
	Logger            *zap.Logger
}

// Engine runs one play session of one document. Methods are safe to call
// from multiple goroutines; they are serialized internally.
type Engine struct {
	doc   *game.Document
	slot  *session.Slot[Session]
	trans *transition.Controller
	sound SoundPlayer
	obs   Observer
	log   *zap.Logger

	mu      sync.Mutex
	started bool
	sess    Session
	view    View
	visible []game.Choice
	action  *Action
	ending  game.EndingKind
	epoch   uint64
	dirty   bool
	subs    map[int]func(View)
	nextSub int
}

// New validates doc and returns an engine ready to Initialize.
func New(doc *game.Document, opts Options) (*Engine, error) {
	if doc == nil {
		return nil, errors.New("game document is required")
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	store := opts.Store
	if store == nil {
		store = session.NewMemoryStore[[]byte]()
	}
	key := opts.Key
	if key == "" {
		key = DefaultSaveKey
	}
	return &Engine{
		doc:   doc,
		slot:  session.NewSlot[Session](store, key, opts.Preview, checkSave, logger),
		trans: transition.New(opts.TransitionTimeout),
		sound: opts.Sound,
		obs:   opts.Observer,
		log:   logger.Named("PlaybackEngine"),
		subs:  map[int]func(View){},
	}, nil
}

// Document returns the document being played.
func (e *Engine) Document() *game.Document { return e.doc }

// Transitions exposes the transition controller, mainly so hosts can
// inspect its state.
func (e *Engine) Transitions() *transition.Controller { return e.trans }

// Subscribe registers fn to receive every new View. The returned func
// unsubscribes. fn runs outside the engine lock and may call back in.
func (e *Engine) Subscribe(fn func(View)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs, id)
	}
}

// unlockAndNotify releases the lock and, if the view changed, publishes it.
func (e *Engine) unlockAndNotify() {
	if !e.dirty || len(e.subs) == 0 {
		e.dirty = false
		e.mu.Unlock()
		return
	}
	v := e.view.clone()
	subs := make([]func(View), 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	e.dirty = false
	e.mu.Unlock()
	for _, fn := range subs {
		fn(v)
	}
}

func (e *Engine) setView(v View) {
	e.view = v
	e.dirty = true
}

// View returns the current render model.
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view.clone()
}

// Session returns a deep copy of the live session.
func (e *Engine) Session() Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.Clone()
}

// Diary returns the play log grouped for display.
func (e *Engine) Diary() []DiaryPage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return BuildDiary(e.sess.DiaryLog)
}

// HasSave reports whether a resumable save exists. A corrupt save is
// discarded on the way.
func (e *Engine) HasSave(ctx context.Context) bool {
	if !e.slot.Exists(ctx) {
		return false
	}
	_, ok, err := e.slot.Load(ctx)
	if err != nil {
		e.log.Warn("Could not read saved game", zap.Error(err))
	}
	return ok
}

// Ended reports whether an ending screen is showing.
func (e *Engine) Ended() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ending != ""
}

// Initialize starts a session. With fresh set, or when no usable save
// exists, it builds a new session from the document; otherwise it resumes
// the save as-is.
func (e *Engine) Initialize(ctx context.Context, fresh bool) View {
	e.mu.Lock()
	defer e.unlockAndNotify()
	e.initializeLocked(ctx, fresh)
	return e.view.clone()
}

func (e *Engine) initializeLocked(ctx context.Context, fresh bool) {
	e.epoch++
	e.trans.Reset()
	e.ending = ""
	e.action = nil
	e.visible = nil
	e.started = true

	if fresh {
		if err := e.slot.Clear(ctx); err != nil {
			e.log.Warn("Could not remove saved game", zap.Error(err))
		}
	}

	resumed := false
	if !fresh {
		saved, ok, err := e.slot.Load(ctx)
		if err != nil {
			e.log.Warn("Could not load saved game", zap.Error(err))
		}
		if ok {
			e.sess = saved
			resumed = true
		}
	}
	if !resumed {
		e.sess = newSession(e.doc)
	}
	if e.doc.ChancesEnabled() && e.sess.Chances == nil {
		n := e.doc.MaxChances
		e.sess.Chances = &n
	}

	if resumed {
		if kind, ok := e.sess.lastEnding(); ok {
			e.log.Debug("Resuming on ending screen", zap.String("ending", string(kind)))
			e.ending = kind
			e.setView(e.endingView(kind))
			return
		}
	}
	e.enterSceneLocked(ctx, e.sess.CurrentSceneID, resumed)
}

// EnterScene moves the player to sceneID. With resume set, entry effects,
// the diary entry and the save are skipped because they already happened.
func (e *Engine) EnterScene(ctx context.Context, sceneID string, resume bool) View {
	e.mu.Lock()
	defer e.unlockAndNotify()
	if !e.started {
		e.setView(View{Screen: ScreenPlaying, Error: ErrNotStarted.Error()})
		return e.view.clone()
	}
	// An ending only gives way to Restart, and a running transition owns
	// the next scene change. The current view is returned untouched.
	if e.ending != "" || e.trans.Busy() {
		return e.view.clone()
	}
	e.enterSceneLocked(ctx, sceneID, resume)
	return e.view.clone()
}

func (e *Engine) enterSceneLocked(ctx context.Context, sceneID string, resume bool) {
	e.action = nil
	e.visible = nil

	res, err := game.Resolve(sceneID, e.sess.Variables, e.sess.ScenesState)
	if err != nil {
		e.log.Error("Scene resolution failed", zap.String("sceneID", sceneID), zap.Error(err))
		v := View{Screen: ScreenPlaying, Error: err.Error(), Choices: []ChoiceView{}}
		v.Chances = e.chancesView()
		var nf *game.SceneNotFoundError
		if !errors.As(err, &nf) {
			v.Error = fmt.Sprintf("Error: %v", err)
		}
		e.setView(v)
		return
	}
	scene := res.Scene
	if res.Redirected() {
		e.log.Debug("Scene redirected", zap.Strings("path", res.Path))
	}

	if resume {
		e.action = e.resumeAction(scene)
	} else {
		if !e.doc.ChancesEnabled() && scene.RemovesChanceOnEntry {
			e.showEndingLocked(ctx, game.EndingNegative)
			return
		}
		e.action = e.applyEntryEffects(scene)
	}

	if !resume && e.sess.CurrentSceneID != scene.ID {
		e.sess.PreviousSceneID = e.sess.CurrentSceneID
	}
	e.sess.CurrentSceneID = scene.ID

	if !resume {
		e.logSceneLoad(scene)
	}

	if e.action == nil {
		e.visible = res.Choices
	}
	e.setView(e.sceneView(scene))

	if e.obs != nil {
		e.obs.SceneEntered(scene.ID)
	}
	if !resume {
		e.saveLocked(ctx)
	}
}

// applyEntryEffects handles the ending and chance flags of a scene that was
// just entered and returns the button to show instead of choices, if any.
func (e *Engine) applyEntryEffects(scene *game.Scene) *Action {
	if scene.IsEndingScene {
		return &Action{Kind: ActionWin, Label: e.doc.WonLabel()}
	}
	if !e.doc.ChancesEnabled() {
		return nil
	}
	chances := game.NewChances(e.doc.MaxChances, *e.sess.Chances)
	switch {
	case scene.RemovesChanceOnEntry:
		exhausted := chances.Decrement()
		*e.sess.Chances = chances.Current
		e.log.Debug("Chance lost", zap.String("sceneID", scene.ID), zap.Int("chances", chances.Current))
		if exhausted {
			return &Action{Kind: ActionGameOver, Label: e.doc.LostLabel()}
		}
		return &Action{Kind: ActionRetry, Label: e.doc.RetryLabel()}
	case scene.RestoresChanceOnEntry:
		chances.Increment()
		*e.sess.Chances = chances.Current
	}
	return nil
}

// resumeAction rebuilds the button a resumed scene was showing, without
// touching the chance count again.
func (e *Engine) resumeAction(scene *game.Scene) *Action {
	if scene.IsEndingScene {
		return &Action{Kind: ActionWin, Label: e.doc.WonLabel()}
	}
	if e.doc.ChancesEnabled() && scene.RemovesChanceOnEntry {
		if *e.sess.Chances <= 0 {
			return &Action{Kind: ActionGameOver, Label: e.doc.LostLabel()}
		}
		return &Action{Kind: ActionRetry, Label: e.doc.RetryLabel()}
	}
	return nil
}

func (e *Engine) logSceneLoad(scene *game.Scene) {
	if n := len(e.sess.DiaryLog); n > 0 {
		last := e.sess.DiaryLog[n-1]
		if last.Type == EntrySceneLoad && last.Data.ID == scene.ID {
			return
		}
	}
	e.sess.DiaryLog = append(e.sess.DiaryLog, DiaryEntry{
		Type: EntrySceneLoad,
		Data: EntryData{ID: scene.ID, Name: scene.Name, Image: scene.Image, Description: scene.Description},
	})
}

// step is a transition reserved under the lock and played after it.
type step struct {
	target string
	sound  string
	kind   game.TransitionType
	image  string
	epoch  uint64
}

// SelectChoice takes one of the visible choices: effects, diary entry, then
// the transition into the destination scene. Clicks while a transition is
// running are rejected with ErrTransitionInProgress before anything changes.
func (e *Engine) SelectChoice(ctx context.Context, choiceID string) (transition.Plan, error) {
	e.mu.Lock()
	st, err := e.selectLocked(ctx, choiceID)
	e.unlockAndNotify()
	if err != nil {
		return transition.Plan{}, err
	}
	return e.play(ctx, st)
}

func (e *Engine) selectLocked(ctx context.Context, choiceID string) (step, error) {
	if err := e.readyLocked(); err != nil {
		return step{}, err
	}
	var choice *game.Choice
	for i := range e.visible {
		if e.visible[i].ID == choiceID {
			choice = &e.visible[i]
			break
		}
	}
	if choice == nil {
		return step{}, ErrUnknownChoice
	}
	if err := e.trans.Prepare(choice.GoToScene); err != nil {
		return step{}, ErrTransitionInProgress
	}
	// A caller that gave up before the move commits leaves no trace.
	if err := ctx.Err(); err != nil {
		e.trans.Cancel()
		return step{}, err
	}

	from := e.sess.CurrentSceneID
	game.ApplyEffects(choice.Effects, e.sess.Variables)
	e.sess.DiaryLog = append(e.sess.DiaryLog, DiaryEntry{
		Type: EntryChoice,
		Data: EntryData{Text: choice.Text, From: from, To: choice.GoToScene},
	})
	if e.obs != nil {
		e.obs.ChoiceTaken(from, choice.GoToScene)
	}
	e.saveLocked(ctx)

	st := step{target: choice.GoToScene, sound: choice.SoundEffect, kind: choice.TransitionType, epoch: e.epoch}
	if next := e.sess.ScenesState[choice.GoToScene]; next != nil {
		st.image = next.Image
	} else {
		st.kind = game.TransitionNone
	}
	return st, nil
}

func (e *Engine) readyLocked() error {
	if !e.started {
		return ErrNotStarted
	}
	if e.ending != "" {
		return ErrSessionEnded
	}
	if e.trans.Busy() {
		return ErrTransitionInProgress
	}
	return nil
}

// play runs a reserved transition. It must be called without the lock.
func (e *Engine) play(ctx context.Context, st step) (transition.Plan, error) {
	if st.sound != "" && e.sound != nil {
		if err := e.sound.Play(ctx, st.sound); err != nil {
			e.log.Warn("Sound effect failed", zap.String("sound", st.sound), zap.Error(err))
		}
	}

	bg := context.WithoutCancel(ctx)
	plan, err := e.trans.Play(st.kind, st.image, func() { e.completeTransition(bg, st) })
	if err != nil {
		return transition.Plan{}, err
	}
	plan.Sound = st.sound

	if plan.Animated() {
		e.mu.Lock()
		if e.epoch == st.epoch && e.trans.State() == transition.Animating && e.trans.Target() == st.target {
			v := e.view
			v.Transition = &plan
			e.setView(v)
		}
		e.unlockAndNotify()
	}
	return plan, nil
}

func (e *Engine) completeTransition(ctx context.Context, st step) {
	e.mu.Lock()
	defer e.unlockAndNotify()
	if e.epoch != st.epoch {
		return
	}
	e.enterSceneLocked(ctx, st.target, false)
}

// AnimationEnded is the host's signal that the transition animation
// finished. Duplicate or late signals are ignored.
func (e *Engine) AnimationEnded() {
	e.trans.AnimationEnded()
}

// TakeAction presses the synthesized button: win and game over show the
// matching ending; retry returns to the previous scene.
func (e *Engine) TakeAction(ctx context.Context) (transition.Plan, error) {
	e.mu.Lock()
	if err := e.readyLocked(); err != nil {
		e.unlockAndNotify()
		return transition.Plan{}, err
	}
	if e.action == nil {
		e.unlockAndNotify()
		return transition.Plan{}, ErrNoAction
	}

	switch e.action.Kind {
	case ActionWin:
		e.showEndingLocked(ctx, game.EndingPositive)
	case ActionGameOver:
		e.showEndingLocked(ctx, game.EndingNegative)
	case ActionRetry:
		target := e.sess.PreviousSceneID
		if target == "" {
			target = e.doc.StartScene
		}
		if err := e.trans.Prepare(target); err != nil {
			e.unlockAndNotify()
			return transition.Plan{}, ErrTransitionInProgress
		}
		if err := ctx.Err(); err != nil {
			e.trans.Cancel()
			e.unlockAndNotify()
			return transition.Plan{}, err
		}
		st := step{target: target, kind: game.TransitionNone, epoch: e.epoch}
		e.unlockAndNotify()
		return e.play(ctx, st)
	}
	e.unlockAndNotify()
	return transition.Plan{}, nil
}

// ShowEnding ends the session on the given ending screen.
// Once an ending is showing further calls are no-ops.
func (e *Engine) ShowEnding(ctx context.Context, kind game.EndingKind) View {
	e.mu.Lock()
	defer e.unlockAndNotify()
	if e.started && e.ending == "" {
		e.showEndingLocked(ctx, kind)
	}
	return e.view.clone()
}

func (e *Engine) showEndingLocked(ctx context.Context, kind game.EndingKind) {
	// A pending transition must not lead back into play.
	e.epoch++
	e.trans.Reset()
	e.ending = kind
	e.action = nil
	e.visible = nil
	e.sess.DiaryLog = append(e.sess.DiaryLog, DiaryEntry{Type: EntryEnding, Data: EntryData{Kind: kind}})
	e.setView(e.endingView(kind))
	if e.obs != nil {
		e.obs.EndingShown(kind)
	}
	e.saveLocked(ctx)
}

// Restart wipes the save and starts over from the first scene.
func (e *Engine) Restart(ctx context.Context) View {
	return e.Initialize(ctx, true)
}

func (e *Engine) saveLocked(ctx context.Context) {
	if err := e.slot.Save(ctx, e.sess); err != nil {
		e.log.Warn("Could not save game state", zap.Error(err))
		if e.obs != nil {
			e.obs.SaveFailed(err)
		}
	}
}

func (e *Engine) sceneView(scene *game.Scene) View {
	v := View{
		Screen: ScreenPlaying,
		Scene: &SceneView{
			ID:         scene.ID,
			Name:       scene.Name,
			Image:      scene.Image,
			Paragraphs: Paragraphs(scene.Description),
		},
		Choices: make([]ChoiceView, 0, len(e.visible)),
		Chances: e.chancesView(),
		Stats:   e.statsView(),
	}
	for _, c := range e.visible {
		v.Choices = append(v.Choices, ChoiceView{ID: c.ID, Text: c.Text})
	}
	if e.action != nil {
		a := *e.action
		v.Action = &a
	}
	return v
}

func (e *Engine) chancesView() *ChancesView {
	if !e.doc.ChancesEnabled() || e.sess.Chances == nil {
		return nil
	}
	c := game.NewChances(e.doc.MaxChances, *e.sess.Chances)
	icon := e.doc.ChanceIcon
	if icon == "" {
		icon = game.IconHeart
	}
	color := e.doc.ChanceIconColor
	if color == "" {
		color = "#ff4d4d"
	}
	return &ChancesView{Icon: icon, Color: color, Current: c.Current, Max: c.Max, Slots: c.Slots()}
}

func (e *Engine) statsView() []StatView {
	var out []StatView
	for _, def := range e.doc.Variables {
		if !def.Shown() {
			continue
		}
		name := def.Name
		if name == "" {
			name = def.ID
		}
		out = append(out, StatView{
			ID:      def.ID,
			Name:    name,
			Value:   e.sess.Variables.Get(def.ID),
			Color:   def.Color,
			Inverse: def.IsInverse,
		})
	}
	return out
}

func (e *Engine) endingView(kind game.EndingKind) View {
	ev := &EndingView{Kind: kind, RestartLabel: e.doc.RestartLabel()}
	switch kind {
	case game.EndingPositive:
		ev.Image = e.doc.PositiveEndingImage
		ev.Description = e.doc.PositiveEndingDescription
		ev.Alignment = e.doc.PositiveEndingAlignment
	default:
		ev.Image = e.doc.NegativeEndingImage
		ev.Description = e.doc.NegativeEndingDescription
		ev.Alignment = e.doc.NegativeEndingAlignment
	}
	return View{Screen: ScreenEnding, Choices: []ChoiceView{}, Ending: ev}
}
