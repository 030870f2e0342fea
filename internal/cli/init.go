package cli

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/calvinalkan/clsync/internal/changelog"
)

// InitCmd returns the init command.
func InitCmd(a *app) *Command {
	return &Command{
		Name:    "init",
		Args:    "[operator]",
		Summary: "Create pending changelogs with the entry template",
		Details: `Create the pending changelog of the given operator, or of every configured
operator, containing only the entry template. Existing files are left alone.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			return a.execInit(o, args)
		},
	}
}

func (a *app) execInit(o *IO, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("%w: %v", ErrTooManyArgs, args[1:])
	}

	operators := args
	if len(operators) == 0 {
		operators = a.cfg.OperatorNames()
	}

	for _, operator := range operators {
		pending, _, err := a.cfg.OperatorPaths(operator)
		if err != nil {
			return err
		}

		err = changelog.WriteTemplate(pending, operator)

		switch {
		case errors.Is(err, changelog.ErrTemplateExists):
			o.Println("exists  " + pending)
		case err != nil:
			return err
		default:
			a.log.Debug("pending changelog created", zap.String("operator", operator), zap.String("pending", pending))
			o.Println("created " + pending)
		}
	}

	return nil
}
