package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/LukasSkrivanek/ScriptVisualizer/internal/executor"
	"github.com/LukasSkrivanek/ScriptVisualizer/internal/models"
	"github.com/LukasSkrivanek/ScriptVisualizer/internal/session"
	"github.com/LukasSkrivanek/ScriptVisualizer/internal/storage"
)

type View int

const (
	ViewEditor View = iota
	ViewHistory
)

type focus int

const (
	focusEditor focus = iota
	focusPath
)

const historyLimit = 50

// HistoryStore is the part of storage.Storage the history view needs.
type HistoryStore interface {
	ListRuns(ctx context.Context, limit int) ([]*models.RunRecord, error)
	DeleteRun(ctx context.Context, runID string) error
}

type Options struct {
	Runner      session.Runner
	Highlighter session.Highlighter
	History     HistoryStore // optional
	Profile     string
	Policy      executor.Policy
	MaxOutput   int // console bytes kept
	FilePath    string
	Text        string // initial buffer, highlighted in the background
}

type App struct {
	ctx  context.Context
	opts Options

	state   session.State
	handles []*executor.Handle // runs whose events are still being read, oldest first

	view       View
	focus      focus
	editor     editor
	path       textinput.Model
	output     viewport.Model
	autoScroll bool
	spinner    spinner.Model
	help       help.Model
	keys       keyMap

	runs        []*models.RunRecord
	selectedIdx int

	width  int
	height int
	err    error
}

func NewApp(ctx context.Context, opts Options) *App {
	ti := textinput.New()
	ti.Prompt = "path: "
	ti.Placeholder = "script to run when the editor is empty"
	ti.SetValue(opts.FilePath)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = statusRunning

	a := &App{
		ctx:        ctx,
		opts:       opts,
		state:      session.New(opts.Profile, opts.Policy),
		path:       ti,
		output:     viewport.New(0, 0),
		autoScroll: true,
		spinner:    sp,
		help:       help.New(),
		keys:       newKeyMap(),
	}
	a.state.MaxOutput = opts.MaxOutput
	a.state = session.SetPath(a.state, opts.FilePath)
	if opts.Text != "" {
		a.editor.SetText(opts.Text)
		a.state = session.LoadText(a.state, opts.Text)
	}
	return a
}

func (a *App) Init() tea.Cmd {
	if !a.state.SpansCurrent() {
		return a.rehighlight()
	}
	return nil
}

// State is the session as currently rendered.
func (a *App) State() session.State {
	return a.state
}

// Shutdown cancels every run the app started and waits until each one has
// been reaped. Call it after the program exits.
func (a *App) Shutdown() {
	for _, h := range a.handles {
		h.Cancel()
	}
	for _, h := range a.handles {
		for range h.Events {
		}
	}
	a.handles = nil
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.resize()
		return a, nil

	case runEventMsg:
		a.state = session.Apply(a.state, msg.event)
		if msg.event.Kind == models.EventOutput || msg.event.Kind == models.EventStarted {
			a.refreshOutput()
		}
		return a, waitForEvent(msg.events)

	case runClosedMsg:
		a.forget(msg.events)
		if a.view == ViewHistory {
			return a, a.loadRuns
		}
		return a, nil

	case spansMsg:
		a.state = session.ApplySpans(a.state, session.SpansResult(msg))
		return a, nil

	case runsLoadedMsg:
		a.runs = msg.runs
		a.err = msg.err
		if a.selectedIdx >= len(a.runs) {
			a.selectedIdx = max(len(a.runs)-1, 0)
		}
		return a, nil

	case runDeletedMsg:
		a.err = msg.err
		return a, a.loadRuns

	case spinner.TickMsg:
		// stop ticking once the run is over
		if !a.state.IsRunning() {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, a.keys.Quit) {
		a.cancel()
		return a, tea.Quit
	}

	if a.view == ViewHistory {
		return a.handleHistoryKey(msg)
	}

	switch {
	case key.Matches(msg, a.keys.Run):
		return a, a.run()

	case key.Matches(msg, a.keys.Cancel):
		a.cancel()
		return a, nil

	case key.Matches(msg, a.keys.History):
		if a.opts.History == nil {
			return a, nil
		}
		a.view = ViewHistory
		return a, a.loadRuns

	case key.Matches(msg, a.keys.Focus):
		if a.focus == focusEditor {
			a.focus = focusPath
			return a, a.path.Focus()
		}
		a.focus = focusEditor
		a.path.Blur()
		return a, nil
	}

	if msg.Type == tea.KeyPgUp || msg.Type == tea.KeyPgDown {
		var cmd tea.Cmd
		a.output, cmd = a.output.Update(msg)
		a.autoScroll = a.output.AtBottom()
		return a, cmd
	}

	if a.focus == focusPath {
		var cmd tea.Cmd
		a.path, cmd = a.path.Update(msg)
		a.state = session.SetPath(a.state, strings.TrimSpace(a.path.Value()))
		return a, cmd
	}

	if edit, changed := a.editor.HandleKey(msg); changed {
		a.state = session.OnTextChanged(a.state, a.opts.Highlighter, a.editor.Text(), &edit)
	}
	return a, nil
}

func (a *App) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Back):
		a.view = ViewEditor
	case key.Matches(msg, a.keys.Up):
		if a.selectedIdx > 0 {
			a.selectedIdx--
		}
	case key.Matches(msg, a.keys.Down):
		if a.selectedIdx < len(a.runs)-1 {
			a.selectedIdx++
		}
	case key.Matches(msg, a.keys.Delete):
		if len(a.runs) > 0 && a.selectedIdx < len(a.runs) {
			return a, a.deleteRun(a.runs[a.selectedIdx].RunID)
		}
	}
	return a, nil
}

func (a *App) run() tea.Cmd {
	state, h := session.ExecuteScript(a.ctx, a.opts.Runner, a.state)
	a.state = state
	if h == nil {
		return nil
	}
	a.handles = append(a.handles, h)
	a.autoScroll = true
	return tea.Batch(waitForEvent(h.Events), a.spinner.Tick)
}

func (a *App) cancel() {
	if !a.state.IsRunning() {
		return
	}
	for _, h := range a.handles {
		if h.ID == a.state.Run.RunID {
			h.Cancel()
		}
	}
}

func (a *App) forget(events <-chan models.RunEvent) {
	for i, h := range a.handles {
		if h.Events == events {
			a.handles = append(a.handles[:i], a.handles[i+1:]...)
			return
		}
	}
}

func (a *App) refreshOutput() {
	text := a.state.OutputText()
	if a.output.Width > 0 {
		text = lipgloss.NewStyle().Width(a.output.Width).Render(text)
	}
	a.output.SetContent(text)
	if a.autoScroll {
		a.output.GotoBottom()
	}
}

// pane sizes: border and padding take two columns on each side
func (a *App) paneWidths() (left, right int) {
	left = max(a.width/2-4, 10)
	right = max(a.width-a.width/2-4, 10)
	return left, right
}

func (a *App) bodyHeight() int {
	return max(a.height-4, 3)
}

func (a *App) resize() {
	_, right := a.paneWidths()
	a.output.Width = right
	a.output.Height = max(a.bodyHeight()-2, 1)
	a.path.Width = max(right-len(a.path.Prompt)-1, 1)
	a.help.Width = a.width
	a.refreshOutput()
}

func (a *App) View() string {
	if a.width == 0 {
		return "loading..."
	}
	if a.view == ViewHistory {
		return a.viewHistory()
	}
	return a.viewEditor()
}

func (a *App) viewEditor() string {
	left, right := a.paneWidths()
	height := a.bodyHeight()

	var spans []models.Span
	if a.state.SpansCurrent() {
		spans = a.state.Spans
	}

	editorPane, outputPane := paneStyle, paneStyle
	if a.focus == focusEditor {
		editorPane = focusedPaneStyle
	} else {
		outputPane = focusedPaneStyle
	}

	leftView := editorPane.Width(left).Height(height).
		Render(a.editor.View(spans, height, a.focus == focusEditor))
	rightView := outputPane.Width(right).Height(height).
		Render(a.pathView() + "\n" + a.statusLine() + "\n" + a.output.View())

	header := titleStyle.Render("scriptviz") + "  " + labelStyle.Render("profile: ") + dimStyle.Render(a.state.Profile)
	if a.err != nil {
		header += "  " + statusFailed.Render(a.err.Error())
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		lipgloss.JoinHorizontal(lipgloss.Top, leftView, rightView),
		a.help.View(a.keys),
	)
}

func (a *App) pathView() string {
	if a.state.ScriptText != "" && a.focus != focusPath {
		return dimStyle.Render(a.path.Prompt + a.path.Value() + " (editor text runs instead)")
	}
	return a.path.View()
}

func (a *App) statusLine() string {
	s := a.state
	var line string

	switch s.Run.Status {
	case models.RunStatusRunning:
		line = a.spinner.View() + statusRunning.Render("running")
		if s.Run.PID > 0 {
			line += dimStyle.Render(fmt.Sprintf(" pid %d", s.Run.PID))
		}
	case models.RunStatusCompleted:
		res := s.Run.Result
		switch {
		case res.Cancelled:
			line = statusCancelled.Render("■ cancelled")
		case res.ExitCode == 0:
			line = statusComplete.Render("✓ exit:0")
		default:
			line = statusFailed.Render(fmt.Sprintf("✗ exit:%d", res.ExitCode))
		}
		line += "  " + dimStyle.Render(formatDuration(res.Duration()))
		if res.Truncated {
			line += "  " + dimStyle.Render("(output truncated)")
		}
		return line
	case models.RunStatusFailed:
		return statusFailed.Render("✗ " + s.Run.Message)
	default:
		line = dimStyle.Render("idle")
	}

	if s.Run.Message != "" {
		line += "  " + statusCancelled.Render(s.Run.Message)
	}
	return line
}

func (a *App) viewHistory() string {
	s := titleStyle.Render("Run history") + "\n\n"

	if a.err != nil {
		s += fmt.Sprintf("Error: %v\n", a.err)
	}

	if len(a.runs) == 0 {
		s += "No runs yet. Press esc and ctrl+r to run a script.\n"
	} else {
		for i, rec := range a.runs {
			line := formatRunLine(rec)
			if i == a.selectedIdx {
				line = selectedStyle.Render("▶ " + line)
			} else {
				line = "  " + line
			}
			s += line + "\n"
		}
	}

	s += "\n" + a.help.View(historyHelp{a.keys})
	return s
}

func formatRunLine(rec *models.RunRecord) string {
	var status string
	switch {
	case rec.Status == models.RunStatusFailed:
		status = statusFailed.Render(fmt.Sprintf("✗ %-12s", rec.Failure))
	case rec.ExitCode == models.ExitCancelled:
		status = statusCancelled.Render(fmt.Sprintf("■ %-12s", "cancelled"))
	case rec.ExitCode == 0:
		status = statusComplete.Render(fmt.Sprintf("✓ %-12s", "exit:0"))
	default:
		status = statusFailed.Render(fmt.Sprintf("✗ %-12s", fmt.Sprintf("exit:%d", rec.ExitCode)))
	}

	return fmt.Sprintf("%s %-8s %-30s %6s  %s",
		status,
		rec.Profile,
		truncate(rec.Source, 30),
		formatDuration(rec.FinishedAt.Sub(rec.StartedAt)),
		dimStyle.Render(storage.FormatTimeAgo(rec.FinishedAt)),
	)
}

// Messages

type runEventMsg struct {
	events <-chan models.RunEvent
	event  models.RunEvent
}

type runClosedMsg struct {
	events <-chan models.RunEvent
}

type spansMsg session.SpansResult

type runsLoadedMsg struct {
	runs []*models.RunRecord
	err  error
}

type runDeletedMsg struct {
	runID string
	err   error
}

// Commands

// waitForEvent reads one event; Update re-arms it until the stream closes.
func waitForEvent(events <-chan models.RunEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return runClosedMsg{events: events}
		}
		return runEventMsg{events: events, event: ev}
	}
}

func (a *App) rehighlight() tea.Cmd {
	scan := session.Rehighlight(a.state, a.opts.Highlighter)
	return func() tea.Msg {
		return spansMsg(scan())
	}
}

func (a *App) loadRuns() tea.Msg {
	runs, err := a.opts.History.ListRuns(a.ctx, historyLimit)
	return runsLoadedMsg{runs: runs, err: err}
}

func (a *App) deleteRun(id string) tea.Cmd {
	return func() tea.Msg {
		return runDeletedMsg{runID: id, err: a.opts.History.DeleteRun(a.ctx, id)}
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen+3:]
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
