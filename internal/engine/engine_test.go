package engine

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyoa/internal/game"
	"cyoa/internal/session"
	"cyoa/internal/transition"
)

func gte(id string, v float64) *game.Condition {
	return &game.Condition{VariableID: id, Operator: game.OpGreaterEqual, Value: v}
}

// twoChoiceDoc is a start scene with two choices and nothing else.
func twoChoiceDoc() *game.Document {
	return &game.Document{
		StartScene: "scn_start",
		Scenes: map[string]*game.Scene{
			"scn_start": {ID: "scn_start", Name: "Gate", Description: "A gate.\nIt is shut.", Choices: []game.Choice{
				{ID: "c_left", Text: "Go left", GoToScene: "scn_left"},
				{ID: "c_right", Text: "Go right", GoToScene: "scn_right"},
			}},
			"scn_left":  {ID: "scn_left", Name: "Left", Choices: []game.Choice{{ID: "c_back", Text: "Back", GoToScene: "scn_start"}}},
			"scn_right": {ID: "scn_right", Name: "Right", IsEndingScene: true},
		},
	}
}

func goldDoc() *game.Document {
	return &game.Document{
		StartScene: "scn_start",
		Variables: []game.VariableDef{
			{ID: "gold", Name: "Gold", InitialValue: 0},
			{ID: "luck", Name: "Luck", InitialValue: 3},
		},
		Scenes: map[string]*game.Scene{
			"scn_start": {ID: "scn_start", Choices: []game.Choice{
				{ID: "c_a", Text: "Dig", GoToScene: "scn_shop", Effects: []game.Effect{{VariableID: "gold", Operation: game.OpAdd, Value: 5}}},
				{ID: "c_b", Text: "Walk", GoToScene: "scn_shop"},
			}},
			"scn_shop": {ID: "scn_shop", Choices: []game.Choice{
				{ID: "c_buy", Text: "Buy a sword", GoToScene: "scn_start", ReqCondition: gte("gold", 5)},
				{ID: "c_leave", Text: "Leave", GoToScene: "scn_start"},
			}},
		},
	}
}

func chancesDoc(max int) *game.Document {
	return &game.Document{
		StartScene:    "scn_start",
		EnableChances: true,
		MaxChances:    max,
		Scenes: map[string]*game.Scene{
			"scn_start": {ID: "scn_start", Choices: []game.Choice{
				{ID: "c_trap", Text: "Step on the trap", GoToScene: "scn_trap"},
				{ID: "c_heal", Text: "Drink", GoToScene: "scn_well"},
			}},
			"scn_trap": {ID: "scn_trap", RemovesChanceOnEntry: true, Choices: []game.Choice{{ID: "c_x", Text: "x", GoToScene: "scn_start"}}},
			"scn_well": {ID: "scn_well", RestoresChanceOnEntry: true, Choices: []game.Choice{{ID: "c_up", Text: "Up", GoToScene: "scn_start"}}},
		},
	}
}

type recorder struct {
	mu      sync.Mutex
	scenes  []string
	choices int
	endings []game.EndingKind
	saveErr int
}

func (r *recorder) SceneEntered(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scenes = append(r.scenes, id)
}

func (r *recorder) ChoiceTaken(_, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.choices++
}

func (r *recorder) EndingShown(kind game.EndingKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endings = append(r.endings, kind)
}

func (r *recorder) SaveFailed(error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveErr++
}

type badSound struct{ calls int }

func (b *badSound) Play(context.Context, string) error {
	b.calls++
	return errors.New("autoplay blocked")
}

type manualTimer struct{ fire func() }

func (m *manualTimer) Stop() bool { return true }

func newEngine(t *testing.T, doc *game.Document, opts Options) *Engine {
	t.Helper()
	e, err := New(doc, opts)
	require.NoError(t, err)
	return e
}

func choiceIDs(v View) []string {
	ids := make([]string, 0, len(v.Choices))
	for _, c := range v.Choices {
		ids = append(ids, c.ID)
	}
	return ids
}

func countLoads(log []DiaryEntry, id string) int {
	n := 0
	for _, e := range log {
		if e.Type == EntrySceneLoad && e.Data.ID == id {
			n++
		}
	}
	return n
}

func TestNew_RejectsInvalidDocument(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)

	doc := twoChoiceDoc()
	doc.StartScene = "nowhere"
	_, err = New(doc, Options{})
	var verr *game.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestInitialize_FreshStart(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, twoChoiceDoc(), Options{})
	v := e.Initialize(ctx, true)

	require.NotNil(t, v.Scene)
	assert.Equal(t, ScreenPlaying, v.Screen)
	assert.Equal(t, "scn_start", v.Scene.ID)
	assert.Equal(t, []string{"A gate.", "It is shut."}, v.Scene.Paragraphs)
	assert.Equal(t, []string{"c_left", "c_right"}, choiceIDs(v))
	assert.Nil(t, v.Chances)
	assert.Nil(t, v.Action)
	assert.Empty(t, v.Error)

	s := e.Session()
	assert.Equal(t, SaveVersion, s.Version)
	assert.Nil(t, s.Chances)
	require.Len(t, s.DiaryLog, 1)
	assert.Equal(t, EntrySceneLoad, s.DiaryLog[0].Type)
	assert.True(t, e.HasSave(ctx))
}

func TestSelectChoice_NoneTransitionEntersScene(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	e := newEngine(t, twoChoiceDoc(), Options{Observer: rec})
	e.Initialize(ctx, true)

	plan, err := e.SelectChoice(ctx, "c_left")
	require.NoError(t, err)
	assert.False(t, plan.Animated())

	v := e.View()
	assert.Equal(t, "scn_left", v.Scene.ID)
	s := e.Session()
	assert.Equal(t, "scn_start", s.PreviousSceneID)
	require.Len(t, s.DiaryLog, 3)
	assert.Equal(t, EntryData{Text: "Go left", From: "scn_start", To: "scn_left"}, s.DiaryLog[1].Data)
	assert.Equal(t, []string{"scn_start", "scn_left"}, rec.scenes)
	assert.Equal(t, 1, rec.choices)
}

func TestSelectChoice_UnknownChoice(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, goldDoc(), Options{})
	e.Initialize(ctx, true)
	e.SelectChoice(ctx, "c_b")

	// Hidden choices cannot be taken either.
	_, err := e.SelectChoice(ctx, "c_buy")
	assert.ErrorIs(t, err, ErrUnknownChoice)
	_, err = e.SelectChoice(ctx, "nope")
	assert.ErrorIs(t, err, ErrUnknownChoice)
}

func TestEffectThenCondition(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, goldDoc(), Options{})
	e.Initialize(ctx, true)

	_, err := e.SelectChoice(ctx, "c_b")
	require.NoError(t, err)
	assert.Equal(t, []string{"c_leave"}, choiceIDs(e.View()))

	_, err = e.SelectChoice(ctx, "c_leave")
	require.NoError(t, err)
	_, err = e.SelectChoice(ctx, "c_a")
	require.NoError(t, err)

	assert.Equal(t, []string{"c_buy", "c_leave"}, choiceIDs(e.View()))
	assert.Equal(t, float64(5), e.Session().Variables["gold"])
}

func TestUntouchedVariablesKeepInitialValue(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, goldDoc(), Options{})
	e.Initialize(ctx, true)
	for i := 0; i < 5; i++ {
		_, err := e.SelectChoice(ctx, "c_a")
		require.NoError(t, err)
		_, err = e.SelectChoice(ctx, "c_leave")
		require.NoError(t, err)
	}
	vars := e.Session().Variables
	assert.Equal(t, float64(3), vars["luck"])
	assert.Equal(t, float64(25), vars["gold"])
}

func TestEnterScene_DedupesConsecutiveLoads(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, twoChoiceDoc(), Options{})
	e.Initialize(ctx, true)

	e.EnterScene(ctx, "scn_left", false)
	e.EnterScene(ctx, "scn_left", false)
	s := e.Session()
	assert.Equal(t, 1, countLoads(s.DiaryLog, "scn_left"))
	// Re-entering the same scene does not count as leaving it.
	assert.Equal(t, "scn_start", s.PreviousSceneID)
}

func TestStats_OnlyVisibleVariables(t *testing.T) {
	ctx := context.Background()
	doc := goldDoc()
	hidden := false
	doc.Variables[1].Visible = &hidden
	doc.Variables[0].Color = "#ffd700"
	e := newEngine(t, doc, Options{})
	v := e.Initialize(ctx, true)
	require.Len(t, v.Stats, 1)
	assert.Equal(t, StatView{ID: "gold", Name: "Gold", Value: 0, Color: "#ffd700"}, v.Stats[0])
}

func TestChanceLossToZero(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore[[]byte]()
	e := newEngine(t, chancesDoc(1), Options{Store: store})
	v := e.Initialize(ctx, true)
	require.NotNil(t, v.Chances)
	assert.Equal(t, []game.ChanceSlot{{Active: true}}, v.Chances.Slots)
	assert.Equal(t, game.IconHeart, v.Chances.Icon)

	_, err := e.SelectChoice(ctx, "c_trap")
	require.NoError(t, err)
	v = e.View()
	assert.Equal(t, 0, *e.Session().Chances)
	assert.Empty(t, v.Choices)
	require.NotNil(t, v.Action)
	assert.Equal(t, ActionGameOver, v.Action.Kind)
	assert.Equal(t, game.DefaultLostButtonText, v.Action.Label)
	assert.Equal(t, []game.ChanceSlot{{Active: false}}, v.Chances.Slots)

	_, err = e.TakeAction(ctx)
	require.NoError(t, err)
	v = e.View()
	assert.Equal(t, ScreenEnding, v.Screen)
	require.NotNil(t, v.Ending)
	assert.Equal(t, game.EndingNegative, v.Ending.Kind)

	// The ending is persisted.
	fresh := newEngine(t, chancesDoc(1), Options{Store: store})
	saved := fresh.Initialize(ctx, false)
	assert.Equal(t, ScreenEnding, saved.Screen)
	log := fresh.Session().DiaryLog
	require.NotEmpty(t, log)
	assert.Equal(t, DiaryEntry{Type: EntryEnding, Data: EntryData{Kind: game.EndingNegative}}, log[len(log)-1])

	_, err = e.SelectChoice(ctx, "c_trap")
	assert.ErrorIs(t, err, ErrSessionEnded)
}

func TestChanceRetryReturnsToPreviousScene(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, chancesDoc(3), Options{})
	e.Initialize(ctx, true)

	_, err := e.SelectChoice(ctx, "c_trap")
	require.NoError(t, err)
	v := e.View()
	require.NotNil(t, v.Action)
	assert.Equal(t, ActionRetry, v.Action.Kind)
	assert.Equal(t, 2, v.Chances.Current)
	assert.Empty(t, v.Choices)

	_, err = e.TakeAction(ctx)
	require.NoError(t, err)
	assert.Equal(t, "scn_start", e.View().Scene.ID)

	_, err = e.TakeAction(ctx)
	assert.ErrorIs(t, err, ErrNoAction)
}

func TestChanceRestoreIsCapped(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, chancesDoc(2), Options{})
	e.Initialize(ctx, true)

	e.SelectChoice(ctx, "c_heal")
	assert.Equal(t, 2, *e.Session().Chances)

	e.SelectChoice(ctx, "c_up")
	e.SelectChoice(ctx, "c_trap")
	e.TakeAction(ctx)
	assert.Equal(t, 1, *e.Session().Chances)
	e.SelectChoice(ctx, "c_heal")
	assert.Equal(t, 2, *e.Session().Chances)
}

func TestRemovesChanceWithChancesDisabledIsInstantDeath(t *testing.T) {
	ctx := context.Background()
	doc := chancesDoc(0)
	doc.EnableChances = false
	rec := &recorder{}
	e := newEngine(t, doc, Options{Observer: rec})
	e.Initialize(ctx, true)

	_, err := e.SelectChoice(ctx, "c_trap")
	require.NoError(t, err)
	v := e.View()
	assert.Equal(t, ScreenEnding, v.Screen)
	assert.Equal(t, game.EndingNegative, v.Ending.Kind)
	assert.Equal(t, []game.EndingKind{game.EndingNegative}, rec.endings)
}

func TestEndingSceneWinButton(t *testing.T) {
	ctx := context.Background()
	doc := twoChoiceDoc()
	doc.WonButtonText = "Victory"
	doc.PositiveEndingDescription = "Well played."
	e := newEngine(t, doc, Options{})
	e.Initialize(ctx, true)

	e.SelectChoice(ctx, "c_right")
	v := e.View()
	require.NotNil(t, v.Action)
	assert.Equal(t, Action{Kind: ActionWin, Label: "Victory"}, *v.Action)
	assert.Empty(t, v.Choices)

	e.TakeAction(ctx)
	v = e.View()
	assert.Equal(t, ScreenEnding, v.Screen)
	assert.Equal(t, "Well played.", v.Ending.Description)
	assert.Equal(t, game.DefaultRestartButtonText, v.Ending.RestartLabel)
	assert.True(t, e.Ended())
}

func TestAutoRedirectHidesOriginChoices(t *testing.T) {
	ctx := context.Background()
	doc := goldDoc()
	doc.Scenes["scn_start"].Scripts = []game.SceneScript{{TriggerCondition: gte("gold", 0), GoToScene: "scn_shop"}}
	e := newEngine(t, doc, Options{})
	v := e.Initialize(ctx, true)

	assert.Equal(t, "scn_shop", v.Scene.ID)
	assert.Equal(t, []string{"c_leave"}, choiceIDs(v))
	s := e.Session()
	assert.Equal(t, "scn_shop", s.CurrentSceneID)
	assert.Equal(t, 0, countLoads(s.DiaryLog, "scn_start"))
}

func TestSceneNotFoundIsContained(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, twoChoiceDoc(), Options{})
	e.Initialize(ctx, true)

	v := e.EnterScene(ctx, "ghost", false)
	assert.Equal(t, `Error: Scene "ghost" not found.`, v.Error)
	assert.Empty(t, v.Choices)
	assert.Nil(t, v.Scene)
	assert.Equal(t, "scn_start", e.Session().CurrentSceneID)
}

func TestRedirectLoopIsContained(t *testing.T) {
	ctx := context.Background()
	doc := twoChoiceDoc()
	always := &game.Condition{VariableID: "x", Operator: game.OpGreaterEqual, Value: 0}
	doc.Scenes["scn_left"].Scripts = []game.SceneScript{{TriggerCondition: always, GoToScene: "scn_right"}}
	doc.Scenes["scn_right"].IsEndingScene = false
	doc.Scenes["scn_right"].Scripts = []game.SceneScript{{TriggerCondition: always, GoToScene: "scn_left"}}
	e := newEngine(t, doc, Options{})
	e.Initialize(ctx, true)

	_, err := e.SelectChoice(ctx, "c_left")
	require.NoError(t, err)
	v := e.View()
	assert.Contains(t, v.Error, "redirect loop")
	assert.False(t, e.Transitions().Busy())
}

func TestTransitionInProgressIgnoresClicks(t *testing.T) {
	ctx := context.Background()
	doc := goldDoc()
	doc.Scenes["scn_start"].Choices[0].TransitionType = game.TransitionWipeLeft
	doc.Scenes["scn_shop"].Image = "shop.png"
	e := newEngine(t, doc, Options{})
	var timers []*manualTimer
	e.Transitions().AfterFunc = func(_ time.Duration, f func()) transition.Timer {
		tm := &manualTimer{fire: f}
		timers = append(timers, tm)
		return tm
	}
	e.Initialize(ctx, true)

	plan, err := e.SelectChoice(ctx, "c_a")
	require.NoError(t, err)
	assert.True(t, plan.Animated())
	assert.Equal(t, "shop.png", plan.Background)
	assert.Equal(t, "wipe-left-start", plan.StartClass)
	require.NotNil(t, e.View().Transition)
	assert.Equal(t, "scn_start", e.View().Scene.ID)

	_, err = e.SelectChoice(ctx, "c_b")
	assert.ErrorIs(t, err, ErrTransitionInProgress)
	assert.Equal(t, float64(5), e.Session().Variables["gold"])

	e.AnimationEnded()
	e.AnimationEnded()
	v := e.View()
	assert.Equal(t, "scn_shop", v.Scene.ID)
	assert.Nil(t, v.Transition)
	assert.Equal(t, 1, countLoads(e.Session().DiaryLog, "scn_shop"))

	// The fallback timer of a finished transition is inert.
	require.Len(t, timers, 1)
	timers[0].fire()
	assert.Equal(t, 1, countLoads(e.Session().DiaryLog, "scn_shop"))
}

func TestTransitionTimeoutForcesSceneChange(t *testing.T) {
	ctx := context.Background()
	doc := goldDoc()
	doc.Scenes["scn_start"].Choices[0].TransitionType = game.TransitionFade
	e := newEngine(t, doc, Options{TransitionTimeout: 20 * time.Millisecond})
	e.Initialize(ctx, true)

	_, err := e.SelectChoice(ctx, "c_a")
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		v := e.View()
		return v.Scene != nil && v.Scene.ID == "scn_shop"
	}, time.Second, 5*time.Millisecond)
}

func TestSoundFailureDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	doc := twoChoiceDoc()
	doc.Scenes["scn_start"].Choices[0].SoundEffect = "creak.mp3"
	snd := &badSound{}
	e := newEngine(t, doc, Options{Sound: snd})
	e.Initialize(ctx, true)

	plan, err := e.SelectChoice(ctx, "c_left")
	require.NoError(t, err)
	assert.Equal(t, "creak.mp3", plan.Sound)
	assert.Equal(t, 1, snd.calls)
	assert.Equal(t, "scn_left", e.View().Scene.ID)
}

func TestRestartDuringTransition(t *testing.T) {
	ctx := context.Background()
	doc := goldDoc()
	doc.Scenes["scn_start"].Choices[0].TransitionType = game.TransitionFade
	e := newEngine(t, doc, Options{})
	var timers []*manualTimer
	e.Transitions().AfterFunc = func(_ time.Duration, f func()) transition.Timer {
		tm := &manualTimer{fire: f}
		timers = append(timers, tm)
		return tm
	}
	e.Initialize(ctx, true)
	_, err := e.SelectChoice(ctx, "c_a")
	require.NoError(t, err)

	v := e.Restart(ctx)
	assert.Equal(t, "scn_start", v.Scene.ID)
	assert.False(t, e.Transitions().Busy())
	assert.Equal(t, float64(0), e.Session().Variables["gold"])

	timers[0].fire()
	assert.Equal(t, "scn_start", e.View().Scene.ID)

	_, err = e.SelectChoice(ctx, "c_b")
	assert.NoError(t, err)
}

func TestRestartClearsProgress(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore[[]byte]()
	e := newEngine(t, chancesDoc(1), Options{Store: store})
	e.Initialize(ctx, true)
	e.SelectChoice(ctx, "c_trap")
	e.TakeAction(ctx)
	require.True(t, e.Ended())

	v := e.Restart(ctx)
	assert.False(t, e.Ended())
	assert.Equal(t, "scn_start", v.Scene.ID)
	assert.Equal(t, 1, *e.Session().Chances)
	assert.Len(t, e.Session().DiaryLog, 1)
}

func TestResumeRestoresSessionVerbatim(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore[[]byte]()
	e := newEngine(t, chancesDoc(3), Options{Store: store})
	e.Initialize(ctx, true)
	e.SelectChoice(ctx, "c_trap")
	want := e.Session()

	rec := &recorder{}
	resumed := newEngine(t, chancesDoc(3), Options{Store: store, Observer: rec})
	require.True(t, resumed.HasSave(ctx))
	v := resumed.Initialize(ctx, false)

	assert.Equal(t, want, resumed.Session())
	// Resuming does not take another chance or log another load.
	assert.Equal(t, 2, v.Chances.Current)
	require.NotNil(t, v.Action)
	assert.Equal(t, ActionRetry, v.Action.Kind)
	assert.Equal(t, "scn_trap", v.Scene.ID)
}

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore[[]byte]()
	e := newEngine(t, goldDoc(), Options{Store: store})
	e.Initialize(ctx, true)
	e.SelectChoice(ctx, "c_a")
	e.SelectChoice(ctx, "c_buy")

	slot := session.NewSlot[Session](store, DefaultSaveKey, false, checkSave, nil)
	got, ok, err := slot.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, e.Session(), got)
}

func TestPreviewNeverPersists(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore[[]byte]()

	real := newEngine(t, goldDoc(), Options{Store: store})
	real.Initialize(ctx, true)
	real.SelectChoice(ctx, "c_a")
	before, ok, _ := store.Get(ctx, DefaultSaveKey)
	require.True(t, ok)

	preview := newEngine(t, goldDoc(), Options{Store: store, Preview: true})
	assert.False(t, preview.HasSave(ctx))
	v := preview.Initialize(ctx, false)
	assert.Equal(t, "scn_start", v.Scene.ID)
	preview.SelectChoice(ctx, "c_b")
	preview.Restart(ctx)

	after, ok, _ := store.Get(ctx, DefaultSaveKey)
	require.True(t, ok)
	assert.Equal(t, before, after)
}

func TestCorruptSaveStartsFresh(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore[[]byte]()
	require.NoError(t, store.Put(ctx, DefaultSaveKey, []byte(`{"currentSceneId":`)))

	e := newEngine(t, twoChoiceDoc(), Options{Store: store})
	assert.False(t, e.HasSave(ctx))
	v := e.Initialize(ctx, false)
	assert.Equal(t, "scn_start", v.Scene.ID)
	assert.Empty(t, v.Error)
}

type failingStore struct{ *session.MemoryStore[[]byte] }

func (failingStore) Put(context.Context, string, []byte) error { return errors.New("disk full") }

func TestSaveFailureIsReported(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	e := newEngine(t, twoChoiceDoc(), Options{Store: failingStore{session.NewMemoryStore[[]byte]()}, Observer: rec})
	v := e.Initialize(ctx, true)
	assert.Equal(t, "scn_start", v.Scene.ID)
	assert.Equal(t, 1, rec.saveErr)
}

func TestSubscribeReceivesViews(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, twoChoiceDoc(), Options{})
	var got []string
	cancel := e.Subscribe(func(v View) {
		if v.Scene != nil {
			got = append(got, v.Scene.ID)
		}
	})
	e.Initialize(ctx, true)
	e.SelectChoice(ctx, "c_left")
	cancel()
	e.SelectChoice(ctx, "c_back")

	assert.Equal(t, []string{"scn_start", "scn_left"}, got)
}

func TestOperationsBeforeInitialize(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, twoChoiceDoc(), Options{})
	_, err := e.SelectChoice(ctx, "c_left")
	assert.ErrorIs(t, err, ErrNotStarted)
	_, err = e.TakeAction(ctx)
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.Equal(t, ErrNotStarted.Error(), e.EnterScene(ctx, "scn_left", false).Error)
}

func TestDiaryGroupsChoicesUnderScenes(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, twoChoiceDoc(), Options{})
	e.Initialize(ctx, true)
	e.SelectChoice(ctx, "c_left")
	e.SelectChoice(ctx, "c_back")

	pages := e.Diary()
	require.Len(t, pages, 3)
	assert.Equal(t, "scn_start", pages[0].SceneID)
	assert.Equal(t, []string{"Go left"}, pages[0].Choices)
	assert.Equal(t, []string{"Back"}, pages[1].Choices)
	assert.Empty(t, pages[2].Choices)
}

func TestShowEndingDuringTransitionStaysEnded(t *testing.T) {
	ctx := context.Background()
	doc := twoChoiceDoc()
	doc.Scenes["scn_start"].Choices[0].TransitionType = game.TransitionFade
	store := session.NewMemoryStore[[]byte]()
	e := newEngine(t, doc, Options{Store: store})
	var timers []*manualTimer
	e.Transitions().AfterFunc = func(_ time.Duration, f func()) transition.Timer {
		tm := &manualTimer{fire: f}
		timers = append(timers, tm)
		return tm
	}
	e.Initialize(ctx, true)
	_, err := e.SelectChoice(ctx, "c_left")
	require.NoError(t, err)
	require.True(t, e.Transitions().Busy())

	v := e.ShowEnding(ctx, game.EndingPositive)
	assert.Equal(t, ScreenEnding, v.Screen)
	assert.False(t, e.Transitions().Busy())

	// The old timeout and a late animation end change nothing.
	require.Len(t, timers, 1)
	timers[0].fire()
	e.AnimationEnded()

	v = e.View()
	assert.Equal(t, ScreenEnding, v.Screen)
	assert.Nil(t, v.Scene)
	assert.True(t, e.Ended())
	log := e.Session().DiaryLog
	assert.Equal(t, EntryEnding, log[len(log)-1].Type)

	resumed := newEngine(t, doc, Options{Store: store})
	assert.Equal(t, ScreenEnding, resumed.Initialize(ctx, false).Screen)
}

func TestEnterSceneAfterEndingIsRefused(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	e := newEngine(t, twoChoiceDoc(), Options{Observer: rec})
	e.Initialize(ctx, true)
	e.ShowEnding(ctx, game.EndingNegative)
	entries := len(e.Session().DiaryLog)

	v := e.EnterScene(ctx, "scn_left", false)
	assert.Equal(t, ScreenEnding, v.Screen)
	assert.Empty(t, v.Choices)
	assert.Equal(t, entries, len(e.Session().DiaryLog))

	// A second ending does not stack.
	e.ShowEnding(ctx, game.EndingPositive)
	assert.Equal(t, game.EndingNegative, e.View().Ending.Kind)
	assert.Equal(t, []game.EndingKind{game.EndingNegative}, rec.endings)

	v = e.Restart(ctx)
	assert.Equal(t, ScreenPlaying, v.Screen)
	assert.Equal(t, "scn_start", v.Scene.ID)
}

func TestEnterSceneDuringTransitionIsRefused(t *testing.T) {
	ctx := context.Background()
	doc := twoChoiceDoc()
	doc.Scenes["scn_start"].Choices[0].TransitionType = game.TransitionWipeLeft
	e := newEngine(t, doc, Options{})
	e.Transitions().AfterFunc = func(_ time.Duration, f func()) transition.Timer {
		return &manualTimer{fire: f}
	}
	e.Initialize(ctx, true)
	_, err := e.SelectChoice(ctx, "c_left")
	require.NoError(t, err)

	v := e.EnterScene(ctx, "scn_right", false)
	assert.Equal(t, "scn_start", v.Scene.ID)

	e.AnimationEnded()
	assert.Equal(t, "scn_left", e.View().Scene.ID)
}

func TestHugeEffectsStillSave(t *testing.T) {
	ctx := context.Background()
	doc := goldDoc()
	doc.Scenes["scn_start"].Choices[0].Effects = []game.Effect{
		{VariableID: "gold", Operation: game.OpSet, Value: math.MaxFloat64},
		{VariableID: "gold", Operation: game.OpAdd, Value: math.MaxFloat64},
	}
	store := session.NewMemoryStore[[]byte]()
	rec := &recorder{}
	e := newEngine(t, doc, Options{Store: store, Observer: rec})
	e.Initialize(ctx, true)
	_, err := e.SelectChoice(ctx, "c_a")
	require.NoError(t, err)

	assert.Equal(t, 0, rec.saveErr)
	resumed := newEngine(t, doc, Options{Store: store})
	resumed.Initialize(ctx, false)
	assert.Equal(t, math.MaxFloat64, resumed.Session().Variables["gold"])
	assert.Equal(t, "scn_shop", resumed.View().Scene.ID)
}

func TestCanceledContextDoesNotCommitChoice(t *testing.T) {
	e := newEngine(t, goldDoc(), Options{})
	e.Initialize(context.Background(), true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.SelectChoice(ctx, "c_a")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, e.Transitions().Busy())
	assert.Equal(t, float64(0), e.Session().Variables["gold"])
	assert.Equal(t, "scn_start", e.View().Scene.ID)

	_, err = e.SelectChoice(context.Background(), "c_a")
	require.NoError(t, err)
	assert.Equal(t, float64(5), e.Session().Variables["gold"])
}

func TestCanceledContextDoesNotRetry(t *testing.T) {
	e := newEngine(t, chancesDoc(2), Options{})
	e.Initialize(context.Background(), true)
	_, err := e.SelectChoice(context.Background(), "c_trap")
	require.NoError(t, err)
	require.Equal(t, ActionRetry, e.View().Action.Kind)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.TakeAction(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, e.Transitions().Busy())
	assert.Equal(t, "scn_trap", e.View().Scene.ID)
}

func TestHasSaveSkipsEmptySlot(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore[[]byte]()
	e := newEngine(t, twoChoiceDoc(), Options{Store: store})
	assert.False(t, e.HasSave(ctx))
	e.Initialize(ctx, true)
	assert.True(t, e.HasSave(ctx))
}
