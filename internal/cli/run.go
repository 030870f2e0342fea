// Package cli implements the clsync command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/calvinalkan/clsync/internal/config"
	"github.com/calvinalkan/clsync/internal/jira"
	"github.com/calvinalkan/clsync/internal/prompt"
	"github.com/calvinalkan/clsync/internal/tracker"
)

// Error variables for argument handling.
var (
	ErrTooManyArgs = errors.New("too many arguments")
)

const defaultCommand = "sync"

// Run is the main entry point. Returns exit code.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	return run(in, out, errOut, args, env, sigCh, productionDeps())
}

// deps are the collaborators a run wires together.
type deps struct {
	connect  func(cfg config.Jira, env map[string]string, log *zap.Logger) (tracker.Client, error)
	prompter func(in io.Reader, out io.Writer) (prompt.Prompter, func() error)
	markdown func(out io.Writer) bool
}

func productionDeps() deps {
	return deps{
		connect: func(cfg config.Jira, env map[string]string, log *zap.Logger) (tracker.Client, error) {
			client, err := jira.NewFromConfig(cfg, env, log)
			if err != nil {
				return nil, err
			}

			return client, nil
		},
		prompter: prompt.New,
		markdown: isTerminalWriter,
	}
}

func isTerminalWriter(w io.Writer) bool {
	f, ok := w.(*os.File)

	return ok && prompt.IsTerminal(f.Fd())
}

type globalFlags struct {
	set        *flag.FlagSet
	workDir    string
	configPath string
	verbose    bool
	help       bool
}

func newGlobalFlags() *globalFlags {
	g := &globalFlags{set: flag.NewFlagSet("clsync", flag.ContinueOnError)}

	g.set.SetInterspersed(false)
	g.set.SetOutput(&strings.Builder{})
	g.set.StringVarP(&g.workDir, "cwd", "C", "", "Run as if started in `dir`")
	g.set.StringVarP(&g.configPath, "config", "c", "", "Use specified config `file`")
	g.set.BoolVarP(&g.verbose, "verbose", "v", false, "Log debug details")
	g.set.BoolVarP(&g.help, "help", "h", false, "Show help")

	return g
}

func run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal, d deps) int {
	globals := newGlobalFlags()

	if len(args) > 1 {
		if err := globals.set.Parse(args[1:]); err != nil {
			fprintln(errOut, "error:", err)
			printUsage(errOut, globals, nil)

			return 1
		}
	}

	if globals.help {
		printUsage(out, globals, (&app{}).commands())

		return 0
	}

	cfg, err := config.Load(config.LoadInput{
		WorkDirOverride: globals.workDir,
		ConfigPath:      globals.configPath,
		Env:             env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	log := newLogger(errOut, globals.verbose).With(zap.String("run_id", uuid.NewString()))
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	stop := watchSignals(sigCh, cancel, log)
	defer stop()

	app := &app{in: in, cfg: cfg, env: env, log: log, deps: d}
	commands := app.commands()

	rest := globals.set.Args()
	name := defaultCommand

	if len(rest) > 0 {
		if _, ok := lookup(commands, rest[0]); ok {
			name, rest = rest[0], rest[1:]
		}
	}

	cmd, _ := lookup(commands, name)

	return cmd.Run(ctx, NewIO(out, errOut), rest)
}

func lookup(commands []*Command, name string) (*Command, bool) {
	for _, c := range commands {
		if c.Name == name {
			return c, true
		}
	}

	return nil, false
}

// watchSignals cancels the run on the first signal.
func watchSignals(sigCh <-chan os.Signal, cancel context.CancelCauseFunc, log *zap.Logger) func() {
	if sigCh == nil {
		return func() {}
	}

	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			log.Warn("received signal, aborting", zap.String("signal", sig.String()))
			cancel(fmt.Errorf("received %s", sig))
		case <-done:
		}
	}()

	return func() { close(done) }
}

// app carries what every command needs.
type app struct {
	in   io.Reader
	cfg  config.Config
	env  map[string]string
	log  *zap.Logger
	deps deps
}

func (a *app) commands() []*Command {
	return []*Command{
		SyncCmd(a),
		InitCmd(a),
		PrintConfigCmd(&a.cfg),
	}
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer, globals *globalFlags, commands []*Command) {
	fprintln(w, `clsync - create tracker issues from pending changelog entries

Usage: clsync [options] [command] [args]

Running without a command is the same as "clsync sync".

Global flags:`)

	var buf strings.Builder

	globals.set.SetOutput(&buf)
	globals.set.PrintDefaults()
	globals.set.SetOutput(&strings.Builder{})
	_, _ = io.WriteString(w, buf.String())

	if len(commands) == 0 {
		return
	}

	fprintln(w, "\nCommands:")

	for _, c := range commands {
		fprintln(w, c.listing())
	}
}
