package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/LukasSkrivanek/ScriptVisualizer/internal/executor"
	"github.com/LukasSkrivanek/ScriptVisualizer/internal/highlight"
	"github.com/LukasSkrivanek/ScriptVisualizer/internal/models"
	"github.com/LukasSkrivanek/ScriptVisualizer/internal/profile"
	"github.com/LukasSkrivanek/ScriptVisualizer/internal/storage"
)

type scriptedRunner struct {
	events  chan models.RunEvent
	sources []models.ScriptSource
}

func (r *scriptedRunner) Run(_ context.Context, src models.ScriptSource) *executor.Handle {
	r.sources = append(r.sources, src)
	return &executor.Handle{ID: "run-1", Events: r.events}
}

func newTestApp(t *testing.T, opts Options) (*App, *scriptedRunner) {
	t.Helper()
	runner := &scriptedRunner{events: make(chan models.RunEvent, 8)}
	opts.Runner = runner
	opts.Highlighter = highlight.New(profile.Builtins()[profile.Default].Syntax)
	if opts.Profile == "" {
		opts.Profile = profile.Default
	}
	a := NewApp(t.Context(), opts)
	a.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return a, runner
}

// pump executes cmd and feeds the resulting message back into the app.
func pump(t *testing.T, a *App, cmd tea.Cmd) tea.Cmd {
	t.Helper()
	require.NotNil(t, cmd)
	_, next := a.Update(cmd())
	return next
}

func TestTypingHighlightsIncrementally(t *testing.T) {
	a, _ := newTestApp(t, Options{})

	for _, s := range []string{"let", " x", " = ", "\"hi\""} {
		a.Update(runes(s))
	}

	st := a.State()
	require.Equal(t, `let x = "hi"`, st.ScriptText)
	require.Equal(t, uint64(4), st.Revision)
	require.True(t, st.SpansCurrent())
	require.Empty(t, cmp.Diff(highlight.New(profile.Builtins()[profile.Default].Syntax).Full(st.ScriptText), st.Spans))
	require.Contains(t, a.View(), `let x = "hi"`)
}

func TestOpenedTextHighlightsInBackground(t *testing.T) {
	a, _ := newTestApp(t, Options{Text: "var n = 42"})
	require.False(t, a.State().SpansCurrent())

	cmd := a.Init()
	pump(t, a, cmd)
	require.True(t, a.State().SpansCurrent())
	require.Equal(t, models.Number, a.State().Spans[len(a.State().Spans)-1].Category)
}

func TestRunStreamsIntoOutput(t *testing.T) {
	a, runner := newTestApp(t, Options{FilePath: "/tmp/script.swift"})

	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	require.NotNil(t, cmd)
	require.Equal(t, []models.ScriptSource{models.PathSource("/tmp/script.swift")}, runner.sources)
	require.True(t, a.State().IsRunning())

	now := time.Now()
	runner.events <- models.RunEvent{RunID: "run-1", Kind: models.EventStarted, PID: 99, StartedAt: now}
	runner.events <- models.RunEvent{RunID: "run-1", Kind: models.EventOutput, Stream: models.Stdout, Data: []byte("line1\n")}
	runner.events <- models.RunEvent{RunID: "run-1", Kind: models.EventOutput, Stream: models.Stderr, Data: []byte("line2\n")}
	runner.events <- models.RunEvent{RunID: "run-1", Kind: models.EventCompleted, Result: &models.RunResult{
		RunID: "run-1", ExitCode: 0, Stdout: "line1\n", Stderr: "line2\n", StartedAt: now, FinishedAt: now.Add(time.Second),
	}}
	close(runner.events)

	wait := waitForEvent(runner.events)
	for range 4 {
		wait = pump(t, a, wait)
	}
	require.Nil(t, pump(t, a, wait), "closed stream is not re-armed")

	st := a.State()
	require.False(t, st.IsRunning())
	require.Equal(t, "line1\nline2\n", st.OutputText())
	require.Equal(t, 0, st.LastExitCode)
	require.Contains(t, a.View(), "exit:0")
	require.Empty(t, a.handles)
}

func TestRejectWhileRunning(t *testing.T) {
	a, runner := newTestApp(t, Options{Policy: executor.PolicyReject})
	a.Update(runes("print(1)"))

	a.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	require.Nil(t, cmd)
	require.Len(t, runner.sources, 1)
	require.Equal(t, models.InlineSource("print(1)"), runner.sources[0])
	require.Contains(t, a.View(), "already running")
}

func TestPathFocus(t *testing.T) {
	a, _ := newTestApp(t, Options{})

	a.Update(tea.KeyMsg{Type: tea.KeyTab})
	a.Update(runes("/tmp/x.sh"))
	require.Equal(t, "/tmp/x.sh", a.State().FilePath)
	require.Empty(t, a.State().ScriptText, "typing into the path field leaves the editor alone")

	a.Update(tea.KeyMsg{Type: tea.KeyTab})
	a.Update(runes("x"))
	require.Equal(t, "x", a.State().ScriptText)
}

func TestHistoryView(t *testing.T) {
	store, err := storage.New(storage.InMemory)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	now := time.Now()
	for _, id := range []string{"a", "b"} {
		require.NoError(t, store.RecordRun(t.Context(), &models.RunRecord{
			RunID: id, Profile: "sh", Source: "<inline>", Status: models.RunStatusCompleted,
			StartedAt: now, FinishedAt: now,
		}))
		now = now.Add(time.Second)
	}

	a, _ := newTestApp(t, Options{History: store})

	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyCtrlH})
	require.Equal(t, ViewHistory, a.view)
	pump(t, a, cmd)
	require.Len(t, a.runs, 2)
	require.Equal(t, "b", a.runs[0].RunID)
	require.Contains(t, a.View(), "Run history")

	a.Update(runes("j"))
	require.Equal(t, 1, a.selectedIdx)

	_, cmd = a.Update(runes("d"))
	next := pump(t, a, cmd)
	pump(t, a, next)
	require.Len(t, a.runs, 1)
	require.Zero(t, a.selectedIdx)

	a.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.Equal(t, ViewEditor, a.view)
}

func TestFormatDuration(t *testing.T) {
	require.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	require.Equal(t, "42s", formatDuration(42*time.Second))
	require.Equal(t, "2m5s", formatDuration(2*time.Minute+5*time.Second))
	require.Equal(t, "1h30m", formatDuration(90*time.Minute))
}
