package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/LukasSkrivanek/ScriptVisualizer/internal/models"
	"github.com/LukasSkrivanek/ScriptVisualizer/internal/workspace"
)

const readSize = 32 << 10

// runProcess spawns the resolved invocation, forwards its output and returns
// the terminal event. Nothing it started is left behind when it returns.
func (s *Service) runProcess(ctx context.Context, id string, inv invocation, events chan<- models.RunEvent) models.RunEvent {
	if err := ctx.Err(); err != nil {
		now := time.Now()
		return completedEvent(&models.RunResult{
			RunID:      id,
			ExitCode:   models.ExitCancelled,
			StartedAt:  now,
			FinishedAt: now,
			Cancelled:  true,
		})
	}

	script, dir := inv.script, inv.dir
	if inv.inline {
		ws, err := workspace.Create(s.cfg.WorkspaceDir, id)
		if err != nil {
			return failedEvent(id, fmt.Errorf("%w: %v", ErrIO, err))
		}
		defer func() {
			if err := ws.Remove(); err != nil {
				slog.WarnContext(ctx, "failed to remove workspace", "error", err)
			}
		}()

		script, err = ws.WriteScript(inv.text, inv.ext)
		if err != nil {
			return failedEvent(id, fmt.Errorf("%w: %v", ErrIO, err))
		}
		if dir == "" {
			dir = ws.Path
		}
	}

	argv := append(append([]string(nil), inv.command...), script)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	setProcessGroup(cmd)

	// the child writes into plain pipes so its exit can be observed
	// independently of whoever else still holds the write ends
	stdout, stdoutW, err := os.Pipe()
	if err != nil {
		return failedEvent(id, fmt.Errorf("%w: %v", ErrSpawnFailed, err))
	}
	defer stdout.Close()
	stderr, stderrW, err := os.Pipe()
	if err != nil {
		stdoutW.Close()
		return failedEvent(id, fmt.Errorf("%w: %v", ErrSpawnFailed, err))
	}
	defer stderr.Close()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	err = cmd.Start()
	stdoutW.Close()
	stderrW.Close()
	if err != nil {
		return failedEvent(id, fmt.Errorf("%w: %v", ErrSpawnFailed, err))
	}
	startedAt := time.Now()
	pid := cmd.Process.Pid
	slog.InfoContext(ctx, "run started", "pid", pid, "argv", argv)

	events <- models.RunEvent{
		RunID:     id,
		Kind:      models.EventStarted,
		PID:       pid,
		StartedAt: startedAt,
	}

	g, gctx := errgroup.WithContext(ctx)

	// gctx is also cancelled when Wait returns, so the watcher listens for
	// pump failures on a channel of its own
	pumpFailed := make(chan struct{})
	var failOnce sync.Once
	start := func(p *pump) {
		g.Go(func() error {
			err := p.run(gctx)
			if err != nil {
				failOnce.Do(func() { close(pumpFailed) })
			}
			return err
		})
	}

	out := &pump{id: id, stream: models.Stdout, r: stdout, events: events, capture: capture{limit: s.cfg.MaxOutput}}
	errOut := &pump{id: id, stream: models.Stderr, r: stderr, events: events, capture: capture{limit: s.cfg.MaxOutput}}
	start(out)
	start(errOut)

	var pumpErr error
	pumpsDone := make(chan struct{})
	go func() {
		pumpErr = g.Wait()
		close(pumpsDone)
	}()

	var waitErr error
	exited := make(chan struct{})
	go func() {
		waitErr = cmd.Wait()
		close(exited)
	}()

	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		select {
		case <-ctx.Done():
		case <-pumpFailed:
		case <-exited:
			return
		}
		s.terminate(ctx, cmd, exited)
	}()

	<-exited
	finishedAt := time.Now()
	cancelled := ctx.Err() != nil
	<-watchDone
	s.drain(ctx, cmd, pumpsDone, stdout, stderr)
	<-pumpsDone

	if pumpErr != nil && !cancelled {
		slog.ErrorContext(ctx, "run failed", "error", pumpErr)
		return failedEvent(id, pumpErr)
	}

	result := &models.RunResult{
		RunID:      id,
		Stdout:     out.capture.buf.String(),
		Stderr:     errOut.capture.buf.String(),
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Truncated:  out.capture.truncated || errOut.capture.truncated,
	}

	var exitErr *exec.ExitError
	switch {
	case cancelled:
		result.ExitCode = models.ExitCancelled
		result.Cancelled = true
	case waitErr == nil:
		result.ExitCode = 0
	case errors.As(waitErr, &exitErr):
		result.ExitCode = exitStatus(exitErr.ProcessState)
	default:
		return failedEvent(id, fmt.Errorf("%w: %v", ErrIO, waitErr))
	}

	slog.InfoContext(ctx, "run finished",
		"exit_code", result.ExitCode,
		"cancelled", result.Cancelled,
		"duration", result.Duration())
	return completedEvent(result)
}

// terminate asks the process group to stop and kills it after the grace
// period.
func (s *Service) terminate(ctx context.Context, cmd *exec.Cmd, exited <-chan struct{}) {
	select {
	case <-exited:
		return
	default:
	}

	if err := interrupt(cmd); err != nil {
		slog.DebugContext(ctx, "interrupt failed", "error", err)
	}

	timer := time.NewTimer(s.cfg.GracePeriod)
	defer timer.Stop()

	select {
	case <-exited:
		return
	case <-timer.C:
	}

	slog.WarnContext(ctx, "process ignored interrupt, killing", "grace", s.cfg.GracePeriod)
	if err := kill(cmd); err != nil {
		slog.DebugContext(ctx, "kill failed", "error", err)
	}
}

// drain lets the pumps finish once the script itself has exited. Whatever is
// left of its process group is killed, and if the pipes are still held after
// the grace period (by something that left the group) they are closed.
func (s *Service) drain(ctx context.Context, cmd *exec.Cmd, pumpsDone <-chan struct{}, pipes ...io.Closer) {
	select {
	case <-pumpsDone:
		return
	default:
	}

	if err := kill(cmd); err != nil {
		slog.DebugContext(ctx, "no leftover processes", "error", err)
	}

	timer := time.NewTimer(s.cfg.GracePeriod)
	defer timer.Stop()

	select {
	case <-pumpsDone:
		return
	case <-timer.C:
	}

	slog.WarnContext(ctx, "output pipes still open after exit, closing")
	for _, p := range pipes {
		_ = p.Close()
	}
}

// pump forwards one output stream. After cancellation it keeps draining the
// pipe so the child never blocks on a full buffer, but emits nothing more.
type pump struct {
	id      string
	stream  models.Stream
	r       io.Reader
	events  chan<- models.RunEvent
	capture capture
}

func (p *pump) run(ctx context.Context) error {
	buf := make([]byte, readSize)
	for {
		n, err := p.r.Read(buf)
		if n > 0 && ctx.Err() == nil {
			data := bytes.Clone(buf[:n])
			select {
			case p.events <- models.RunEvent{RunID: p.id, Kind: models.EventOutput, Stream: p.stream, Data: data}:
				p.capture.add(data)
			case <-ctx.Done():
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %s: %v", ErrIO, p.stream, err)
		}
	}
}

// capture accumulates emitted output up to limit bytes.
type capture struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (c *capture) add(p []byte) {
	if c.limit > 0 {
		remaining := c.limit - c.buf.Len()
		if remaining <= 0 {
			c.truncated = true
			return
		}
		if len(p) > remaining {
			p = p[:remaining]
			c.truncated = true
		}
	}
	c.buf.Write(p)
}

func completedEvent(result *models.RunResult) models.RunEvent {
	return models.RunEvent{
		RunID:  result.RunID,
		Kind:   models.EventCompleted,
		Result: result,
	}
}
