package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/LukasSkrivanek/ScriptVisualizer/internal/config"
	"github.com/LukasSkrivanek/ScriptVisualizer/internal/executor"
	"github.com/LukasSkrivanek/ScriptVisualizer/internal/highlight"
	"github.com/LukasSkrivanek/ScriptVisualizer/internal/log"
	svLua "github.com/LukasSkrivanek/ScriptVisualizer/internal/lua"
	"github.com/LukasSkrivanek/ScriptVisualizer/internal/models"
	"github.com/LukasSkrivanek/ScriptVisualizer/internal/profile"
	"github.com/LukasSkrivanek/ScriptVisualizer/internal/storage"
	"github.com/LukasSkrivanek/ScriptVisualizer/internal/tui"
)

// exitCodeError ends the process with code without printing anything.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	rootCmd := newRootCommand()

	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitCodeError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		slog.Error("command failed", "error", err)
		fmt.Fprintf(os.Stderr, "scriptviz: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "scriptviz",
		Short:         "Edit, highlight and run scripts",
		Long:          "scriptviz is a two-pane terminal editor that highlights a script as you type and streams its output while it runs.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runTUI,
	}

	rootCmd.PersistentFlags().String("config", "", "config file (default <data_dir>/config.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging")

	rootCmd.Flags().StringP("profile", "p", "", "language profile")
	rootCmd.Flags().String("open", "", "load a file into the editor")
	rootCmd.Flags().String("path", "", "script path to run while the editor is empty")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newHighlightCommand())
	rootCmd.AddCommand(newProfilesCommand())
	return rootCmd
}

// app is what every command needs after flags are parsed.
type app struct {
	cfg      *config.Config
	profiles map[string]*models.Profile
	closeLog func()
}

// setup loads config and profiles. Logs go to w when --verbose is set and to
// the log file otherwise; the TUI always logs to the file.
func setup(cmd *cobra.Command, w io.Writer) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, err
	}

	closeLog := func() {}
	if w == nil || !verbose {
		f, err := os.OpenFile(cfg.LogPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = f
		closeLog = func() { f.Close() }
	}
	slog.SetDefault(log.New(w, verbose))

	profiles, err := profile.LoadAll(cfg.ProfileDirs(), luaLoader(cmd.Context()))
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}

	return &app{cfg: cfg, profiles: profiles, closeLog: closeLog}, nil
}

func luaLoader(ctx context.Context) profile.LuaLoader {
	return func(path string) (*models.Profile, error) {
		rt := svLua.NewRuntime()
		p, err := rt.LoadProfile(ctx, path)
		for _, line := range rt.GetLogs() {
			slog.DebugContext(ctx, "lua profile", "path", path, "log", line)
		}
		return p, err
	}
}

// profileFor picks the --profile flag, then a profile whose extension
// matches file, then the configured default.
func (a *app) profileFor(name, file string) (*models.Profile, error) {
	if name != "" {
		return profile.Find(a.profiles, name)
	}
	if ext := filepath.Ext(file); ext != "" {
		for _, n := range profile.Names(a.profiles) {
			if a.profiles[n].Extension == ext {
				return a.profiles[n], nil
			}
		}
	}
	return profile.Find(a.profiles, a.cfg.Profile())
}

func runTUI(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd, nil)
	if err != nil {
		return err
	}
	defer a.closeLog()

	profileName, _ := cmd.Flags().GetString("profile")
	openPath, _ := cmd.Flags().GetString("open")
	scriptPath, _ := cmd.Flags().GetString("path")

	file := openPath
	if file == "" {
		file = scriptPath
	}
	p, err := a.profileFor(profileName, file)
	if err != nil {
		return err
	}

	var text string
	if openPath != "" {
		data, err := os.ReadFile(openPath)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", openPath, err)
		}
		text = string(data)
	}

	store, err := storage.New(storage.InMemory)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := executor.New(a.cfg.Executor(p, store))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	slog.InfoContext(ctx, "starting tui", "profile", p.Name)
	model := tui.NewApp(ctx, tui.Options{
		Runner:      svc,
		Highlighter: highlight.New(p.Syntax),
		History:     store,
		Profile:     p.Name,
		Policy:      a.cfg.Policy(),
		MaxOutput:   a.cfg.MaxOutput(),
		FilePath:    scriptPath,
		Text:        text,
	})

	prog := tea.NewProgram(model, tea.WithAltScreen())
	_, err = prog.Run()
	model.Shutdown()
	return err
}

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [path]",
		Short: "Run a script without the TUI",
		Long:  "Run a script file, or inline text with -e, streaming its output. The exit status is the script's; 130 after an interrupt.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inline, _ := cmd.Flags().GetString("eval")
			profileName, _ := cmd.Flags().GetString("profile")

			var src models.ScriptSource
			switch {
			case inline != "" && len(args) > 0:
				return fmt.Errorf("pass either a path or -e, not both")
			case inline != "":
				src = models.InlineSource(inline)
			case len(args) == 1 && args[0] == "-":
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read script from stdin: %w", err)
				}
				src = models.InlineSource(string(data))
			case len(args) == 1:
				src = models.PathSource(args[0])
			default:
				return fmt.Errorf("nothing to run: pass a path or -e")
			}

			a, err := setup(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.closeLog()

			file := ""
			if src.Kind == models.SourcePath {
				file = src.Value
			}
			p, err := a.profileFor(profileName, file)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc := executor.New(a.cfg.Executor(p, nil))
			return stream(svc.Run(ctx, src), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringP("eval", "e", "", "inline script text")
	cmd.Flags().StringP("profile", "p", "", "language profile (default: by extension, then config)")
	return cmd
}

// stream copies run output to stdout and stderr and turns the terminal event
// into the command's result.
func stream(h *executor.Handle, stdout, stderr io.Writer) error {
	var last models.RunEvent
	for ev := range h.Events {
		switch ev.Kind {
		case models.EventOutput:
			w := stdout
			if ev.Stream == models.Stderr {
				w = stderr
			}
			if _, err := w.Write(ev.Data); err != nil {
				h.Cancel()
			}
		case models.EventCompleted, models.EventFailed:
			last = ev
		}
	}

	switch {
	case last.Kind == models.EventFailed:
		return fmt.Errorf("%s: %w", last.Failure, last.Err)
	case last.Result == nil:
		return fmt.Errorf("run %s ended without a result", h.ID)
	case last.Result.Cancelled:
		return &exitCodeError{code: 130}
	case last.Result.ExitCode != 0:
		return &exitCodeError{code: last.Result.ExitCode}
	}
	return nil
}

func newHighlightCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "highlight <file>",
		Short: "Print a file with syntax colors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profileName, _ := cmd.Flags().GetString("profile")
			showSpans, _ := cmd.Flags().GetBool("spans")

			a, err := setup(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.closeLog()

			p, err := a.profileFor(profileName, args[0])
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			text := string(data)
			spans := highlight.New(p.Syntax).Full(text)

			out := cmd.OutOrStdout()
			if !showSpans {
				fmt.Fprint(out, tui.Colorize(text, spans))
				return nil
			}
			for _, sp := range spans {
				fmt.Fprintf(out, "%6d %6d  %-12s %q\n", sp.Start, sp.End, sp.Category, text[sp.Start:sp.End])
			}
			return nil
		},
	}

	cmd.Flags().StringP("profile", "p", "", "language profile (default: by extension, then config)")
	cmd.Flags().Bool("spans", false, "print the span list instead of colored text")
	return cmd
}

func newProfilesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List language profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.closeLog()

			out := cmd.OutOrStdout()
			def := a.cfg.Profile()
			for _, name := range profile.Names(a.profiles) {
				p := a.profiles[name]
				marker := " "
				if name == def {
					marker = "*"
				}
				command := "(direct)"
				if len(p.Command) > 0 {
					command = fmt.Sprint(p.Command)
				}
				fmt.Fprintf(out, "%s %-10s %-6s %-28s %s\n", marker, name, p.Extension, command, p.Description)
			}
			return nil
		},
	}
}
