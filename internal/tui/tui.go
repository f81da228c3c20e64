// Package tui is a terminal host for the playback engine.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"cyoa/internal/engine"
	"cyoa/internal/game"
	"cyoa/internal/transition"
)

type screen int

const (
	screenSplash screen = iota
	screenPlaying
	screenDiary
)

// DefaultAnimation is how long a terminal "animation" lasts before the
// engine is told it finished.
const DefaultAnimation = 400 * time.Millisecond

type Model struct {
	ctx       context.Context
	engine    *engine.Engine
	changed   chan struct{}
	animation time.Duration

	screen      screen
	view        engine.View
	canContinue bool
	status      string

	spinner spinner.Model
	diary   viewport.Model
	width   int
	height  int
}

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true).
			Underline(true)

	sceneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true)

	textStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#DDDDDD"))

	choiceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EEEEEE")).
			Background(lipgloss.Color("#5F5F87")).
			PaddingLeft(1).
			PaddingRight(1)

	hudStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#3C3C3C")).
			PaddingLeft(2).
			Foreground(lipgloss.Color("#AAAAAA"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)
)

// viewChangedMsg means the engine published a new view.
type viewChangedMsg struct{}

// animationDoneMsg ends the running transition for target.
type animationDoneMsg struct{ target string }

// NewModel wires a model to e. canContinue offers the resume option on the
// title screen.
func NewModel(ctx context.Context, e *engine.Engine, canContinue bool, animation time.Duration) Model {
	if animation <= 0 {
		animation = DefaultAnimation
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:         ctx,
		engine:      e,
		changed:     make(chan struct{}, 1),
		animation:   animation,
		canContinue: canContinue,
		spinner:     sp,
		diary:       viewport.New(60, 20),
	}
	changed := m.changed
	e.Subscribe(func(engine.View) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForView(m.changed))
}

// waitForView turns the next engine notification into a message. Several
// notifications collapse into one; the model always reads the latest view.
func waitForView(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return viewChangedMsg{}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch m.screen {
		case screenSplash:
			return m.updateSplash(msg)
		case screenDiary:
			return m.updateDiary(msg)
		default:
			return m.updatePlaying(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.diary.Width = msg.Width
		m.diary.Height = max(msg.Height-4, 1)
		return m, nil

	case viewChangedMsg:
		m.view = m.engine.View()
		return m, waitForView(m.changed)

	case animationDoneMsg:
		if m.engine.Transitions().Target() == msg.target {
			m.engine.AnimationEnded()
		}
		m.view = m.engine.View()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateSplash(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "enter", "n":
		m.view = m.engine.Initialize(m.ctx, true)
		m.screen = screenPlaying
	case "c":
		if m.canContinue {
			m.view = m.engine.Initialize(m.ctx, false)
			m.screen = screenPlaying
		}
	}
	return m, nil
}

func (m Model) updateDiary(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "d":
		m.screen = screenPlaying
		return m, nil
	}
	var cmd tea.Cmd
	m.diary, cmd = m.diary.Update(msg)
	return m, cmd
}

func (m Model) updatePlaying(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status = ""
	key := msg.String()
	switch key {
	case "q", "esc":
		return m, tea.Quit
	case "d":
		m.diary.SetContent(renderDiary(m.engine.Diary()))
		m.diary.GotoTop()
		m.screen = screenDiary
		return m, nil
	case "r":
		m.view = m.engine.Restart(m.ctx)
		return m, nil
	case "enter", " ":
		if m.view.Ending != nil {
			m.view = m.engine.Restart(m.ctx)
			return m, nil
		}
		if m.view.Action != nil {
			return m.afterMove(m.engine.TakeAction(m.ctx))
		}
		return m, nil
	}

	n, err := strconv.Atoi(key)
	if err != nil || n < 1 || n > len(m.view.Choices) || m.view.Action != nil {
		return m, nil
	}
	return m.afterMove(m.engine.SelectChoice(m.ctx, m.view.Choices[n-1].ID))
}

// afterMove records the outcome of a move and schedules the end of its
// animation, if any.
func (m Model) afterMove(plan transition.Plan, err error) (tea.Model, tea.Cmd) {
	m.view = m.engine.View()
	if err != nil {
		m.status = err.Error()
		return m, nil
	}
	if !plan.Animated() {
		return m, nil
	}
	target := plan.Target
	return m, tea.Tick(m.animation, func(time.Time) tea.Msg {
		return animationDoneMsg{target: target}
	})
}

func (m Model) View() string {
	switch m.screen {
	case screenSplash:
		return m.splashView()
	case screenDiary:
		return "\n" + titleStyle.Render("DIARY") + "\n\n" + m.diary.View() + "\n" +
			helpStyle.Render("Arrows to scroll, d or esc to go back.") + "\n"
	}

	v := m.view
	if v.Ending != nil {
		return m.endingView(v.Ending)
	}

	var b strings.Builder
	if v.Error != "" {
		b.WriteString(errorStyle.Render(v.Error) + "\n\n")
	}
	if v.Scene != nil {
		b.WriteString(sceneStyle.Render(v.Scene.Name) + "\n\n")
		for _, p := range v.Scene.Paragraphs {
			b.WriteString(textStyle.Width(m.textWidth()).Render(p) + "\n\n")
		}
	}
	switch {
	case v.Transition != nil:
		b.WriteString(m.spinner.View() + " ...\n")
	case v.Action != nil:
		b.WriteString(choiceStyle.Render("[enter] "+v.Action.Label) + "\n")
	default:
		for i, c := range v.Choices {
			b.WriteString(choiceStyle.Render(fmt.Sprintf("%d. %s", i+1, c.Text)) + "\n")
		}
	}
	if m.status != "" {
		b.WriteString("\n" + errorStyle.Render(m.status) + "\n")
	}

	main := lipgloss.JoinHorizontal(lipgloss.Top, b.String(), m.hudView())
	help := helpStyle.Render("Number keys choose, d diary, r restart, q quit.")
	return "\n" + lipgloss.JoinVertical(lipgloss.Left, main, "\n"+help) + "\n"
}

func (m Model) splashView() string {
	doc := m.engine.Document()
	title := doc.Title
	if title == "" {
		title = "Adventure"
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(title) + "\n\n")
	for _, p := range engine.Paragraphs(doc.SplashDescription) {
		b.WriteString(textStyle.Width(m.textWidth()).Render(p) + "\n\n")
	}
	b.WriteString(choiceStyle.Render("[enter] "+doc.StartLabel()) + "\n")
	if m.canContinue {
		b.WriteString(choiceStyle.Render("[c] "+doc.ContinueLabel()) + "\n")
	}
	return "\n" + b.String() + "\n" + helpStyle.Render("q to quit.") + "\n"
}

func (m Model) endingView(ev *engine.EndingView) string {
	heading := "THE END"
	if ev.Kind == game.EndingNegative {
		heading = "GAME OVER"
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(heading) + "\n\n")
	for _, p := range engine.Paragraphs(ev.Description) {
		b.WriteString(textStyle.Width(m.textWidth()).Render(p) + "\n\n")
	}
	b.WriteString(choiceStyle.Render("[enter] "+ev.RestartLabel) + "\n")
	return "\n" + b.String()
}

func (m Model) hudView() string {
	var b strings.Builder
	if c := m.view.Chances; c != nil {
		b.WriteString(titleStyle.Render("CHANCES") + "\n")
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(c.Color))
		lost := lipgloss.NewStyle().Foreground(lipgloss.Color("#555555"))
		for _, s := range c.Slots {
			if s.Active {
				b.WriteString(style.Render(glyph(c.Icon)) + " ")
			} else {
				b.WriteString(lost.Render(glyph(c.Icon)) + " ")
			}
		}
		b.WriteString("\n\n")
	}
	if len(m.view.Stats) > 0 {
		b.WriteString(titleStyle.Render("STATS") + "\n")
		for _, s := range m.view.Stats {
			line := fmt.Sprintf("%s: %s", s.Name, strconv.FormatFloat(s.Value, 'f', -1, 64))
			if s.Color != "" {
				line = lipgloss.NewStyle().Foreground(lipgloss.Color(s.Color)).Render(line)
			}
			b.WriteString(line + "\n")
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return hudStyle.Render(b.String())
}

func (m Model) textWidth() int {
	if m.width <= 0 {
		return 60
	}
	return max(int(float64(m.width)*0.7), 20)
}

func glyph(icon game.ChanceIcon) string {
	switch icon {
	case game.IconCircle:
		return "●"
	case game.IconCross:
		return "✚"
	default:
		return "♥"
	}
}

func renderDiary(pages []engine.DiaryPage) string {
	if len(pages) == 0 {
		return "Nothing written yet."
	}
	var b strings.Builder
	for _, p := range pages {
		b.WriteString(sceneStyle.Render(p.Name) + "\n")
		for _, para := range p.Paragraphs {
			b.WriteString(para + "\n")
		}
		for _, c := range p.Choices {
			b.WriteString(helpStyle.Render("-> "+c) + "\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// SoundLog stands in for audio in a terminal: it only records which effect
// would have played.
type SoundLog struct {
	Logger *zap.Logger
}

func (s SoundLog) Play(_ context.Context, src string) error {
	if s.Logger != nil {
		s.Logger.Debug("Sound effect", zap.String("src", src))
	}
	return nil
}

// Run starts the terminal program and blocks until the player quits.
func Run(ctx context.Context, e *engine.Engine, animation time.Duration) error {
	m := NewModel(ctx, e, e.HasSave(ctx), animation)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
