package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/LukasSkrivanek/ScriptVisualizer/internal/executor"
	"github.com/LukasSkrivanek/ScriptVisualizer/internal/highlight"
	"github.com/LukasSkrivanek/ScriptVisualizer/internal/models"
	"github.com/LukasSkrivanek/ScriptVisualizer/internal/profile"
)

type fakeRunner struct {
	sources []models.ScriptSource
}

func (r *fakeRunner) Run(_ context.Context, src models.ScriptSource) *executor.Handle {
	r.sources = append(r.sources, src)
	events := make(chan models.RunEvent)
	close(events)
	return &executor.Handle{ID: fmt.Sprintf("run-%d", len(r.sources)), Events: events}
}

func swift(t *testing.T) *highlight.Highlighter {
	t.Helper()
	return highlight.New(profile.Builtins()[profile.Default].Syntax)
}

func TestSource(t *testing.T) {
	s := New("sh", executor.PolicyReject)
	s = SetPath(s, "/tmp/a.sh")
	require.Equal(t, models.PathSource("/tmp/a.sh"), s.Source())

	s = LoadText(s, "echo hi")
	require.Equal(t, models.InlineSource("echo hi"), s.Source(), "inline text wins over the path")
}

func TestExecuteScript(t *testing.T) {
	runner := &fakeRunner{}
	s := New("sh", executor.PolicyReject)
	s.Output = []byte("old output")
	s = LoadText(s, "echo hi")

	s, h := ExecuteScript(t.Context(), runner, s)
	require.NotNil(t, h)
	require.True(t, s.IsRunning())
	require.Equal(t, h.ID, s.Run.RunID)
	require.Equal(t, "old output", s.OutputText(), "output resets on Started, not on request")

	again, h2 := ExecuteScript(t.Context(), runner, s)
	require.Nil(t, h2, "reject policy starts nothing")
	require.Len(t, runner.sources, 1)
	require.Equal(t, s.Run.RunID, again.Run.RunID)
	require.Equal(t, "a script is already running", again.Run.Message)
	require.True(t, again.IsRunning())
}

func TestExecuteScriptRestart(t *testing.T) {
	runner := &fakeRunner{}
	s := LoadText(New("sh", executor.PolicyRestart), "sleep 1")

	s, first := ExecuteScript(t.Context(), runner, s)
	s, second := ExecuteScript(t.Context(), runner, s)
	require.NotNil(t, second)
	require.Equal(t, second.ID, s.Run.RunID)

	// the cancelled predecessor's terminal event is ignored
	s = Apply(s, models.RunEvent{RunID: first.ID, Kind: models.EventCompleted, Result: &models.RunResult{ExitCode: models.ExitCancelled, Cancelled: true}})
	require.True(t, s.IsRunning())
	require.Zero(t, s.LastExitCode)
}

func TestApplyRunLifecycle(t *testing.T) {
	s := New("sh", executor.PolicyReject)
	s.Output = []byte("previous run")
	s.Run = models.RunState{Status: models.RunStatusRunning, RunID: "r"}

	s = Apply(s, models.RunEvent{RunID: "r", Kind: models.EventStarted, PID: 7})
	require.Empty(t, s.OutputText())
	require.Equal(t, 7, s.Run.PID)

	s = Apply(s, models.RunEvent{RunID: "r", Kind: models.EventOutput, Stream: models.Stdout, Data: []byte("line1\n")})
	s = Apply(s, models.RunEvent{RunID: "r", Kind: models.EventOutput, Stream: models.Stderr, Data: []byte("warn\n")})
	s = Apply(s, models.RunEvent{RunID: "other", Kind: models.EventOutput, Data: []byte("stray\n")})
	require.Equal(t, "line1\nwarn\n", s.OutputText())
	require.True(t, s.IsRunning())

	s = Apply(s, models.RunEvent{RunID: "r", Kind: models.EventCompleted, Result: &models.RunResult{RunID: "r", ExitCode: 3}})
	require.False(t, s.IsRunning())
	require.Equal(t, models.RunStatusCompleted, s.Run.Status)
	require.Equal(t, 3, s.LastExitCode)
	require.Empty(t, s.Run.Message)
}

func TestApplyBoundsOutput(t *testing.T) {
	s := New("sh", executor.PolicyReject)
	s.MaxOutput = 8
	s.Run = models.RunState{Status: models.RunStatusRunning, RunID: "r"}

	var want strings.Builder
	for i := range 100 {
		chunk := fmt.Sprintf("%d,", i)
		want.WriteString(chunk)
		s = Apply(s, models.RunEvent{RunID: "r", Kind: models.EventOutput, Stream: models.Stdout, Data: []byte(chunk)})
		require.LessOrEqual(t, len(s.Output), 2*s.MaxOutput)
	}

	all := want.String()
	require.Equal(t, all[len(all)-8:], s.OutputText())
}

func TestApplyCancelled(t *testing.T) {
	s := New("sh", executor.PolicyReject)
	s.Run = models.RunState{Status: models.RunStatusRunning, RunID: "r"}

	s = Apply(s, models.RunEvent{RunID: "r", Kind: models.EventCompleted, Result: &models.RunResult{ExitCode: models.ExitCancelled, Cancelled: true}})
	require.Equal(t, models.ExitCancelled, s.LastExitCode)
	require.Equal(t, "cancelled", s.Run.Message)
}

func TestApplyFailureKeepsOutput(t *testing.T) {
	s := New("sh", executor.PolicyReject)
	s.Output = []byte("from before")
	s.Run = models.RunState{Status: models.RunStatusRunning, RunID: "r"}

	err := fmt.Errorf("%w: stat /no/such/file: no such file or directory", executor.ErrNotFound)
	s = Apply(s, models.RunEvent{RunID: "r", Kind: models.EventFailed, Failure: models.FailureNotFound, Err: err})

	require.Equal(t, "from before", s.OutputText())
	require.Equal(t, models.RunStatusFailed, s.Run.Status)
	require.Equal(t, models.FailureNotFound, s.Run.Failure)
	require.Equal(t, models.ExitFailed, s.LastExitCode)
	require.Equal(t, "not found: stat /no/such/file: no such file or directory", s.Run.Message)
}

func TestApplyAlreadyRunningFromOtherRun(t *testing.T) {
	s := New("sh", executor.PolicyReject)
	s.Run = models.RunState{Status: models.RunStatusRunning, RunID: "r"}

	s = Apply(s, models.RunEvent{RunID: "x", Kind: models.EventFailed, Failure: models.FailureAlreadyRunning, Err: executor.ErrAlreadyRunning})
	require.True(t, s.IsRunning())
	require.Equal(t, "a script is already running", s.Run.Message)
}

func TestDescribe(t *testing.T) {
	require.Equal(t, "run failed", describe(models.FailureIO, nil))
	require.Equal(t, "could not start: exec format error", describe(models.FailureSpawnFailed, fmt.Errorf("%w: exec format error", executor.ErrSpawnFailed)))
	require.Equal(t, "run failed: boom", describe(models.FailureIO, errors.New("boom")))
	require.Contains(t, describe(models.FailureInvalidSource, models.ErrEmptySource), "nothing to run")
}

func TestOnTextChanged(t *testing.T) {
	hl := swift(t)
	s := New("swift", executor.PolicyReject)

	s = OnTextChanged(s, hl, `print("hi")`, nil)
	require.Equal(t, uint64(1), s.Revision)
	require.True(t, s.SpansCurrent())

	text, edit := highlight.Replace(s.ScriptText, 8, 0, `"`)
	s = OnTextChanged(s, hl, text, &edit)
	require.Equal(t, uint64(2), s.Revision)
	require.Empty(t, cmp.Diff(hl.Full(text), s.ColoredStrings()))

	// the reopened quote runs to the end of the line
	last := s.Spans[len(s.Spans)-1]
	require.Equal(t, models.Unterminated, last.Category)
	require.Equal(t, len(text), last.End)
}

func TestOnTextChangedAfterStaleSpans(t *testing.T) {
	hl := swift(t)
	s := LoadText(New("swift", executor.PolicyReject), "let x = 1")
	s.Spans = []models.Span{{Start: 0, End: 3, Category: models.Keyword}}
	require.False(t, s.SpansCurrent())

	text, edit := highlight.Replace(s.ScriptText, 9, 0, "0")
	s = OnTextChanged(s, hl, text, &edit)
	require.Empty(t, cmp.Diff(hl.Full(text), s.Spans))
}

func TestRehighlightDropsStaleResults(t *testing.T) {
	hl := swift(t)
	s := LoadText(New("swift", executor.PolicyReject), "var a = 1")

	scan := Rehighlight(s, hl)

	// the user keeps typing before the scan lands
	s = OnTextChanged(s, hl, "var a = 12", nil)
	fresh := s.Spans

	s = ApplySpans(s, scan())
	require.Equal(t, fresh, s.Spans, "a stale scan never replaces fresher spans")

	s = ApplySpans(s, Rehighlight(s, hl)())
	require.Empty(t, cmp.Diff(hl.Full("var a = 12"), s.Spans))
	require.True(t, s.SpansCurrent())
}

func TestColoredStringsIsACopy(t *testing.T) {
	s := OnTextChanged(New("swift", executor.PolicyReject), swift(t), "let", nil)
	spans := s.ColoredStrings()
	spans[0].Category = models.String
	require.Equal(t, models.Keyword, s.Spans[0].Category)
}
