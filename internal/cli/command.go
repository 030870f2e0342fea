package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command is one clsync subcommand.
type Command struct {
	Name    string        // selects the command on the command line
	Args    string        // positional synopsis shown after Name, e.g. "[operator]"
	Summary string        // one line in the command list
	Details string        // help body; Summary when empty
	Flags   *flag.FlagSet // nil when the command takes no flags
	Exec    func(ctx context.Context, o *IO, args []string) error
}

func (c *Command) synopsis() string {
	if c.Args == "" {
		return c.Name
	}

	return c.Name + " " + c.Args
}

// listing is the command's line in "clsync --help".
func (c *Command) listing() string {
	return fmt.Sprintf("  %-22s %s", c.synopsis(), c.Summary)
}

func (c *Command) help() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Usage: clsync [global flags] %s\n\n", c.synopsis())

	details := c.Details
	if details == "" {
		details = c.Summary
	}

	b.WriteString(details)
	b.WriteByte('\n')

	if c.Flags != nil && c.Flags.HasFlags() {
		b.WriteString("\nFlags:\n")
		b.WriteString(c.Flags.FlagUsages())
	}

	return b.String()
}

// Run parses args and calls Exec. It returns the process exit code.
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	flags := c.Flags
	if flags == nil {
		flags = flag.NewFlagSet(c.Name, flag.ContinueOnError)
	}

	flags.SetOutput(io.Discard)

	err := flags.Parse(args)

	switch {
	case errors.Is(err, flag.ErrHelp):
		o.Printf("%s", c.help())

		return 0
	case err != nil:
		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		o.ErrPrintln(strings.TrimRight(c.help(), "\n"))

		return 1
	}

	err = c.Exec(ctx, o, flags.Args())
	o.Finish()

	if err != nil {
		o.ErrPrintln("error:", err)

		return 1
	}

	return 0
}
