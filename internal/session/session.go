// Package session holds the state the presentation layer renders: the script
// being edited, its spans, and the current run. State is a plain value; every
// function takes one and returns the next.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/LukasSkrivanek/ScriptVisualizer/internal/executor"
	"github.com/LukasSkrivanek/ScriptVisualizer/internal/models"
)

// Runner starts runs. *executor.Service implements it.
type Runner interface {
	Run(ctx context.Context, src models.ScriptSource) *executor.Handle
}

// Highlighter produces spans. *highlight.Highlighter implements it.
type Highlighter interface {
	Highlight(text string, prev []models.Span, edit *models.Edit) []models.Span
}

type State struct {
	FilePath   string
	ScriptText string
	Profile    string
	Policy     executor.Policy

	Run          models.RunState
	Output       []byte // stdout and stderr in arrival order
	MaxOutput    int    // console bytes kept, 0 for all
	LastExitCode int

	Spans         []models.Span
	Revision      uint64 // bumped on every text change
	SpansRevision uint64 // revision Spans were computed for
}

func New(profile string, policy executor.Policy) State {
	return State{
		Profile: profile,
		Policy:  policy,
		Run:     models.RunState{Status: models.RunStatusIdle},
	}
}

// Source prefers the inline text and falls back to the file path.
func (s State) Source() models.ScriptSource {
	if s.ScriptText != "" {
		return models.InlineSource(s.ScriptText)
	}
	return models.PathSource(s.FilePath)
}

func (s State) IsRunning() bool {
	return s.Run.Status == models.RunStatusRunning
}

// OutputText returns the console text, at most the last MaxOutput bytes.
func (s State) OutputText() string {
	if s.MaxOutput > 0 && len(s.Output) > s.MaxOutput {
		return string(s.Output[len(s.Output)-s.MaxOutput:])
	}
	return string(s.Output)
}

// ColoredStrings returns the current spans. The slice is a copy.
func (s State) ColoredStrings() []models.Span {
	return append([]models.Span(nil), s.Spans...)
}

// SpansCurrent reports whether Spans describe ScriptText.
func (s State) SpansCurrent() bool {
	return s.SpansRevision == s.Revision
}

// ExecuteScript starts a run of s.Source. While a run is active under the
// reject policy nothing is started and only Message changes; the returned
// handle is nil in that case.
func ExecuteScript(ctx context.Context, runner Runner, s State) (State, *executor.Handle) {
	if s.IsRunning() && s.Policy != executor.PolicyRestart {
		s.Run.Message = describe(models.FailureAlreadyRunning, executor.ErrAlreadyRunning)
		return s, nil
	}

	h := runner.Run(ctx, s.Source())
	s.Run = models.RunState{
		Status: models.RunStatusRunning,
		RunID:  h.ID,
	}
	return s, h
}

// Apply folds one run event into s. Events of runs other than the current
// one are dropped, so a restarted run's predecessor cannot overwrite it.
func Apply(s State, ev models.RunEvent) State {
	if ev.RunID != s.Run.RunID {
		if ev.Kind == models.EventFailed && ev.Failure == models.FailureAlreadyRunning {
			s.Run.Message = describe(ev.Failure, ev.Err)
		}
		return s
	}

	switch ev.Kind {
	case models.EventStarted:
		s.Output = nil
		s.Run.Status = models.RunStatusRunning
		s.Run.PID = ev.PID
		s.Run.Message = ""
	case models.EventOutput:
		s.Output = appendOutput(s.Output, ev.Data, s.MaxOutput)
	case models.EventCompleted:
		s.Run.Status = models.RunStatusCompleted
		s.Run.Result = ev.Result
		s.LastExitCode = ev.Result.ExitCode
		switch {
		case ev.Result.Cancelled:
			s.Run.Message = "cancelled"
		case ev.Result.Truncated:
			s.Run.Message = "output truncated"
		default:
			s.Run.Message = ""
		}
	case models.EventFailed:
		s.Run.Status = models.RunStatusFailed
		s.Run.Failure = ev.Failure
		s.Run.Message = describe(ev.Failure, ev.Err)
		s.LastExitCode = models.ExitFailed
	}
	return s
}

// appendOutput appends p to out. Once out holds twice limit bytes it is cut
// back to the last limit, so the buffer stays bounded and appends stay cheap.
func appendOutput(out, p []byte, limit int) []byte {
	out = append(out, p...)
	if limit > 0 && len(out) > 2*limit {
		out = append([]byte(nil), out[len(out)-limit:]...)
	}
	return out
}

func describe(kind models.FailureKind, err error) string {
	var prefix string
	switch kind {
	case models.FailureNotFound:
		prefix = "not found"
	case models.FailureSpawnFailed:
		prefix = "could not start"
	case models.FailureAlreadyRunning:
		return "a script is already running"
	case models.FailureInvalidSource:
		return "nothing to run: enter a script or a path"
	default:
		prefix = "run failed"
	}
	if err == nil {
		return prefix
	}
	// the sentinel is already named by the prefix
	msg := err.Error()
	for _, sentinel := range []error{executor.ErrNotFound, executor.ErrSpawnFailed, executor.ErrIO} {
		if errors.Is(err, sentinel) {
			msg = strings.TrimPrefix(msg, sentinel.Error()+": ")
		}
	}
	return fmt.Sprintf("%s: %s", prefix, msg)
}

// OnTextChanged replaces the script text and updates the spans
// synchronously. edit describes how the previous text became newText; nil
// forces a full scan.
func OnTextChanged(s State, hl Highlighter, newText string, edit *models.Edit) State {
	prev := s.Spans
	if !s.SpansCurrent() || prev == nil {
		prev, edit = nil, nil
	}

	s.ScriptText = newText
	s.Revision++
	s.Spans = hl.Highlight(newText, prev, edit)
	s.SpansRevision = s.Revision
	return s
}

// LoadText replaces the script text without highlighting it. Spans stay
// stale until a Rehighlight result for the new revision is applied.
func LoadText(s State, text string) State {
	s.ScriptText = text
	s.Revision++
	return s
}

func SetPath(s State, path string) State {
	s.FilePath = path
	return s
}

// SpansResult is a background full scan of one revision.
type SpansResult struct {
	Revision uint64
	Spans    []models.Span
}

// Rehighlight returns a full scan of the current text to run off the UI
// goroutine. The closure captures everything it needs.
func Rehighlight(s State, hl Highlighter) func() SpansResult {
	text, rev := s.ScriptText, s.Revision
	return func() SpansResult {
		return SpansResult{Revision: rev, Spans: hl.Highlight(text, nil, nil)}
	}
}

// ApplySpans installs res unless the text changed after res was computed.
func ApplySpans(s State, res SpansResult) State {
	if res.Revision != s.Revision {
		return s
	}
	s.Spans = res.Spans
	s.SpansRevision = res.Revision
	return s
}
