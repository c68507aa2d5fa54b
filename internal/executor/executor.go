// Package executor runs one script at a time as a child process and streams
// its output back to the caller as a sequence of models.RunEvent values.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LukasSkrivanek/ScriptVisualizer/internal/log"
	"github.com/LukasSkrivanek/ScriptVisualizer/internal/models"
)

var (
	ErrNotFound       = errors.New("script or interpreter not found")
	ErrSpawnFailed    = errors.New("failed to start process")
	ErrAlreadyRunning = errors.New("a script is already running")
	ErrIO             = errors.New("failed to read process output")
)

// Policy decides what Run does while another run is still active.
type Policy string

const (
	PolicyReject  Policy = "reject"
	PolicyRestart Policy = "restart"
)

const (
	DefaultGracePeriod = 2 * time.Second
	DefaultMaxOutput   = 4 << 20

	eventBuffer = 64
)

// Recorder receives a history entry for every run that reached a terminal
// event. storage.Storage implements it.
type Recorder interface {
	RecordRun(ctx context.Context, rec *models.RunRecord) error
}

type Config struct {
	Profile      *models.Profile
	WorkDir      string // empty: the script's directory, or the workspace for inline scripts
	WorkspaceDir string // base directory for inline script workspaces
	GracePeriod  time.Duration
	MaxOutput    int // per stream; zero means unlimited
	Policy       Policy
	History      Recorder
}

type Service struct {
	cfg Config

	mu     sync.Mutex
	active *activeRun
}

type activeRun struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

// Handle is the caller's side of one run. Events delivers Started, any
// number of Output events and exactly one Completed or Failed event, then
// closes. The caller must drain Events until it closes.
type Handle struct {
	ID     string
	Events <-chan models.RunEvent

	cancel context.CancelFunc
}

// Cancel stops the run. It is safe to call more than once and after the run
// finished.
func (h *Handle) Cancel() {
	if h.cancel != nil {
		h.cancel()
	}
}

func New(cfg Config) *Service {
	if cfg.Profile == nil {
		cfg.Profile = &models.Profile{Name: "exec"}
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.MaxOutput < 0 {
		cfg.MaxOutput = 0
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyReject
	}
	return &Service{cfg: cfg}
}

func (s *Service) Profile() *models.Profile {
	return s.cfg.Profile
}

// Run starts src and returns immediately. Every failure, including a
// rejected overlapping run, is reported as the single Failed event of the
// returned handle.
func (s *Service) Run(ctx context.Context, src models.ScriptSource) *Handle {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(ctx)
	ctx = log.ContextAttrs(ctx, slog.String("run_id", id))

	events := make(chan models.RunEvent, eventBuffer)
	h := &Handle{ID: id, Events: events, cancel: cancel}

	fail := func(err error) *Handle {
		slog.WarnContext(ctx, "run rejected", "error", err)
		ev := failedEvent(id, err)
		s.record(ctx, src, ev, time.Now())
		events <- ev
		close(events)
		cancel()
		return h
	}

	if err := src.Validate(); err != nil {
		return fail(err)
	}
	inv, err := s.resolve(src)
	if err != nil {
		return fail(err)
	}

	run := &activeRun{id: id, cancel: cancel, done: make(chan struct{})}
	prev, err := s.acquire(run)
	if err != nil {
		return fail(err)
	}

	go s.execute(ctx, run, prev, src, inv, events)
	return h
}

// Cancel stops the active run, if any.
func (s *Service) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		s.active.cancel()
	}
}

// Active returns the id of the run currently in flight, or "".
func (s *Service) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return ""
	}
	return s.active.id
}

func (s *Service) acquire(run *activeRun) (*activeRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var prev *activeRun
	if s.active != nil {
		if s.cfg.Policy != PolicyRestart {
			return nil, fmt.Errorf("%w: run %s", ErrAlreadyRunning, s.active.id)
		}
		prev = s.active
		prev.cancel()
	}
	s.active = run
	return prev, nil
}

func (s *Service) release(run *activeRun) {
	s.mu.Lock()
	if s.active == run {
		s.active = nil
	}
	s.mu.Unlock()
	close(run.done)
}

func (s *Service) execute(ctx context.Context, run, prev *activeRun, src models.ScriptSource, inv invocation, events chan<- models.RunEvent) {
	defer s.release(run)
	defer close(events)

	// a restarted run waits until its predecessor is fully reaped
	if prev != nil {
		<-prev.done
	}

	startedAt := time.Now()
	ev := s.runProcess(ctx, run.id, inv, events)
	s.record(ctx, src, ev, startedAt)
	events <- ev
}

// invocation is a resolved ScriptSource: what to exec and where.
type invocation struct {
	command []string
	script  string
	text    string
	inline  bool
	ext     string
	dir     string
}

func (s *Service) resolve(src models.ScriptSource) (invocation, error) {
	p := s.cfg.Profile
	inv := invocation{ext: p.Extension, dir: s.cfg.WorkDir}

	if len(p.Command) > 0 {
		bin, err := exec.LookPath(p.Command[0])
		if err != nil {
			return inv, fmt.Errorf("%w: interpreter %q: %v", ErrNotFound, p.Command[0], err)
		}
		inv.command = append([]string{bin}, p.Command[1:]...)
	}

	if src.Kind == models.SourceInline {
		inv.inline = true
		inv.text = src.Value
		return inv, nil
	}

	path, err := filepath.Abs(src.Value)
	if err != nil {
		return inv, fmt.Errorf("%w: %s: %v", ErrNotFound, src.Value, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return inv, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if !info.Mode().IsRegular() {
		return inv, fmt.Errorf("%w: %s is not a regular file", ErrNotFound, path)
	}
	if len(inv.command) == 0 && runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		return inv, fmt.Errorf("%w: %s is not executable", ErrNotFound, path)
	}

	inv.script = path
	if inv.dir == "" {
		inv.dir = filepath.Dir(path)
	}
	return inv, nil
}

func (s *Service) record(ctx context.Context, src models.ScriptSource, ev models.RunEvent, startedAt time.Time) {
	if s.cfg.History == nil {
		return
	}

	rec := &models.RunRecord{
		RunID:      ev.RunID,
		Profile:    s.cfg.Profile.Name,
		Source:     src.Value,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
	}
	if src.Kind == models.SourceInline {
		rec.Source = "<inline>"
	}

	switch ev.Kind {
	case models.EventCompleted:
		rec.Status = models.RunStatusCompleted
		rec.ExitCode = ev.Result.ExitCode
		rec.OutputSize = len(ev.Result.Stdout) + len(ev.Result.Stderr)
		rec.StartedAt = ev.Result.StartedAt
		rec.FinishedAt = ev.Result.FinishedAt
	case models.EventFailed:
		rec.Status = models.RunStatusFailed
		rec.ExitCode = models.ExitFailed
		rec.Failure = ev.Failure
		if ev.Err != nil {
			rec.Message = ev.Err.Error()
		}
	}

	// cancelled runs are recorded too
	if err := s.cfg.History.RecordRun(context.WithoutCancel(ctx), rec); err != nil {
		slog.WarnContext(ctx, "failed to record run", "error", err)
	}
}

func failedEvent(id string, err error) models.RunEvent {
	return models.RunEvent{
		RunID:   id,
		Kind:    models.EventFailed,
		Failure: FailureKind(err),
		Err:     err,
	}
}

// FailureKind maps an executor error onto the failure category shown to the
// user.
func FailureKind(err error) models.FailureKind {
	switch {
	case err == nil:
		return models.FailureNone
	case errors.Is(err, models.ErrEmptySource):
		return models.FailureInvalidSource
	case errors.Is(err, ErrNotFound):
		return models.FailureNotFound
	case errors.Is(err, ErrAlreadyRunning):
		return models.FailureAlreadyRunning
	case errors.Is(err, ErrSpawnFailed):
		return models.FailureSpawnFailed
	default:
		return models.FailureIO
	}
}
