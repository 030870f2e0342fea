package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/calvinalkan/clsync/internal/changelog"
	"github.com/calvinalkan/clsync/internal/pipeline"
	"github.com/calvinalkan/clsync/internal/prompt"
	"github.com/calvinalkan/clsync/internal/tracker"
)

// identityEnv supplies the default reporter/assignee when the operator has
// no configured username.
const identityEnv = "JIRA_USERNAME"

// SyncCmd returns the sync command.
func SyncCmd(a *app) *Command {
	flags := flag.NewFlagSet("sync", flag.ContinueOnError)
	user := flags.StringP("user", "u", "", "Tracker `username` used as reporter and assignee")

	return &Command{
		Name:    "sync",
		Args:    "[operator]",
		Flags:   flags,
		Summary: "Create tracker issues for pending entries (default)",
		Details: `Walk the operator's pending changelog entry by entry. Each entry is
reviewed, linked to an epic, checked for duplicates and created in the
tracker. Created entries move to the committed changelog; everything else
stays pending for the next run.

Without an operator argument a numbered selection is shown.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return a.execSync(ctx, o, args, *user)
		},
	}
}

func (a *app) execSync(ctx context.Context, o *IO, args []string, user string) error {
	if len(args) > 1 {
		return fmt.Errorf("%w: %v", ErrTooManyArgs, args[1:])
	}

	raw, closePrompt := a.deps.prompter(a.in, o.Out())
	defer func() { _ = closePrompt() }()

	ask := prompt.WithContext(ctx, raw)

	operator := ""
	if len(args) == 1 {
		operator = args[0]
	} else {
		var err error

		operator, err = a.selectOperator(o, ask)
		if err != nil {
			return err
		}
	}

	pending, committed, err := a.cfg.OperatorPaths(operator)
	if err != nil {
		return err
	}

	log := a.log.With(zap.String("operator", operator))

	if _, statErr := os.Stat(pending); errors.Is(statErr, os.ErrNotExist) {
		if err := changelog.WriteTemplate(pending, operator); err != nil {
			return err
		}

		log.Info("pending changelog not found, created a template", zap.String("pending", pending))
		o.Println("Created " + pending)
		o.Println("Add entries below the template and run again.")

		return nil
	}

	identity := user
	if identity == "" {
		identity = a.cfg.Operators[operator].Username
	}

	summary, err := pipeline.Sync(ctx, pipeline.SyncInput{
		Paths:    pipeline.Paths{Pending: pending, Committed: committed},
		Settings: pipeline.SettingsFromConfig(a.cfg, identity),
		Prompt:   ask,
		View:     pipeline.NewView(o.Out(), a.deps.markdown(o.Out())),
		Log:      log,
		Connect: func() (tracker.Client, error) {
			return a.deps.connect(a.cfg.Jira, a.env, log)
		},
		DefaultIdentity: a.env[identityEnv],
	})
	if err != nil {
		return err
	}

	printSummary(o, operator, summary)

	return nil
}

// selectOperator shows a numbered operator menu until a valid choice is made.
// Operator names are accepted as well.
func (a *app) selectOperator(o *IO, ask prompt.Prompter) (string, error) {
	names := a.cfg.OperatorNames()

	o.Println("Operators:")

	for i, name := range names {
		o.Printf("  %d. %s\n", i+1, name)
	}

	for {
		answer, err := ask.Ask("Select an operator by number", "")
		if err != nil {
			return "", fmt.Errorf("%w: %w", pipeline.ErrAborted, err)
		}

		if n, convErr := strconv.Atoi(answer); convErr == nil && n >= 1 && n <= len(names) {
			return names[n-1], nil
		}

		if _, ok := a.cfg.Operators[answer]; ok {
			return answer, nil
		}

		o.Printf("Invalid selection %q. Choose between 1 and %d.\n", answer, len(names))
	}
}

func printSummary(o *IO, operator string, s pipeline.Summary) {
	o.Println()
	o.Printf("Summary for %s\n", operator)

	if s.Total == 0 {
		o.Println("  no pending entries")
		o.Printf("  pending log:   %s (unchanged)\n", s.Paths.Pending)

		return
	}

	o.Printf("  entries:       %d\n", s.Total)
	o.Printf("  committed:     %d\n", s.Committed)
	o.Printf("  retained:      %d\n", s.Retained)
	o.Printf("  committed log: %s (%s)\n", s.Paths.Committed, touched(s.CommittedAppended, "appended"))
	o.Printf("  pending log:   %s (%s)\n", s.Paths.Pending, touched(s.PendingRewritten, "rewritten"))

	for _, out := range s.Outcomes {
		if out.Committed() {
			o.Printf("  + %s %s (%s)\n", out.Record.IssueKey, out.Record.Title, out.Record.Status)

			continue
		}

		title := out.Entry.Title
		if title == "" {
			title = "(untitled entry)"
		}

		o.Printf("  - %s: %s\n", title, out.Reason)

		if out.Reason == pipeline.ReasonMalformed {
			o.Warn("malformed entry in "+s.Paths.Pending, "add a 'Draft Summary:' line so it can be synced")
		}
	}
}

func touched(done bool, verb string) string {
	if done {
		return verb
	}

	return "unchanged"
}
