package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/calvinalkan/clsync/internal/prompt"
	"github.com/calvinalkan/clsync/internal/tracker"
)

// Menu words accepted by the epic and version prompts.
const (
	choiceNew  = "N"
	choiceNone = "none"
)

// EpicResolver asks the operator which epic an entry belongs to, creating a
// new epic on request.
type EpicResolver struct {
	tracker  tracker.Client
	prompt   prompt.Prompter
	view     *View
	log      *zap.Logger
	settings Settings
}

// NewEpicResolver returns an EpicResolver.
func NewEpicResolver(client tracker.Client, p prompt.Prompter, view *View, log *zap.Logger, s Settings) *EpicResolver {
	return &EpicResolver{tracker: client, prompt: p, view: view, log: log, settings: s}
}

// Resolve returns the chosen epic, or the zero Epic for "no epic". Errors are
// either a *ResolutionError when epics cannot be listed or an ErrAborted
// wrapping the prompt failure.
func (r *EpicResolver) Resolve(ctx context.Context) (tracker.Epic, error) {
	epics, err := r.tracker.ListEpics(ctx, r.settings.Project, r.settings.Component)
	if err != nil {
		return tracker.Epic{}, &ResolutionError{Op: "listing epics", Err: err}
	}

	if len(epics) == 0 {
		r.log.Info("no epics found",
			zap.String("project", r.settings.Project),
			zap.String("component", r.settings.Component))

		create, err := r.confirm("No epics found. Create a new epic? (yes/no)", "yes")
		if err != nil {
			return tracker.Epic{}, err
		}

		if !create {
			r.log.Info("continuing without an epic")

			return tracker.Epic{}, nil
		}

		return r.create(ctx)
	}

	r.view.Epics(epics)

	for {
		answer, err := r.ask("Select an epic by number, 'N' for a new epic, or 'none' for no epic", choiceNew)
		if err != nil {
			return tracker.Epic{}, err
		}

		switch {
		case strings.EqualFold(answer, choiceNew):
			return r.create(ctx)
		case strings.EqualFold(answer, choiceNone):
			r.log.Info("continuing without an epic")

			return tracker.Epic{}, nil
		}

		n, convErr := strconv.Atoi(answer)
		if convErr != nil {
			r.view.Notice("Invalid input %q. Enter a number, 'N' or 'none'.", answer)

			continue
		}

		if n < 1 || n > len(epics) {
			r.view.Notice("Invalid selection %d. Choose between 1 and %d.", n, len(epics))

			continue
		}

		epic := epics[n-1]
		r.log.Info("epic selected", zap.String("epic_key", epic.Key), zap.String("epic_name", epic.Name))

		return epic, nil
	}
}

// create runs the new-epic flow. An empty name or a failed creation leaves
// the entry without an epic.
func (r *EpicResolver) create(ctx context.Context) (tracker.Epic, error) {
	name, err := r.ask("Enter the name for the new epic", "")
	if err != nil {
		return tracker.Epic{}, err
	}

	if name == "" {
		r.log.Error("epic name cannot be empty, continuing without an epic")

		return tracker.Epic{}, nil
	}

	description, err := r.ask("Enter an optional description for the epic (blank for none)", "")
	if err != nil {
		return tracker.Epic{}, err
	}

	versions, err := r.selectVersions(ctx)
	if err != nil {
		return tracker.Epic{}, err
	}

	req := tracker.EpicRequest{
		Project:     r.settings.Project,
		Name:        name,
		Description: description,
		Versions:    versions,
		Reporter:    r.settings.Identity,
		Assignee:    r.settings.Identity,
	}

	if r.settings.Component != "" {
		req.Components = []string{r.settings.Component}
	}

	key, err := r.tracker.CreateEpic(ctx, req)
	if err != nil {
		r.log.Error("creating epic failed, continuing without an epic", zap.String("epic_name", name), zap.Error(err))

		return tracker.Epic{}, nil
	}

	r.log.Info("epic created", zap.String("epic_key", key), zap.String("epic_name", name), zap.Strings("versions", versions))

	return tracker.Epic{Key: key, Name: name}, nil
}

// selectVersions offers the unreleased versions as a numbered menu, falling
// back to free text when none can be listed.
func (r *EpicResolver) selectVersions(ctx context.Context) ([]string, error) {
	available, err := r.tracker.ListUnreleasedVersions(ctx, r.settings.Project)
	if err != nil {
		r.log.Warn("listing versions failed, falling back to manual entry", zap.Error(err))
	}

	if err != nil || len(available) == 0 {
		answer, err := r.ask("Enter fix version(s) for the epic (comma-separated, blank for none)", "")
		if err != nil {
			return nil, err
		}

		return splitList(answer), nil
	}

	r.view.Versions(available)

	for {
		answer, err := r.ask("Select fix version(s) by number (comma-separated, 'none' for none)", choiceNone)
		if err != nil {
			return nil, err
		}

		if strings.EqualFold(answer, choiceNone) {
			return nil, nil
		}

		names, pickErr := pickVersions(answer, available)
		if pickErr != nil {
			r.view.Notice("%v", pickErr)

			continue
		}

		return names, nil
	}
}

// pickVersions maps 1-based indices to version names. Any bad index rejects
// the whole answer.
func pickVersions(answer string, available []tracker.Version) ([]string, error) {
	parts := splitList(answer)
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: no version numbers given", ErrInvalidSelection)
	}

	names := make([]string, 0, len(parts))

	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidSelection, part)
		}

		if n < 1 || n > len(available) {
			return nil, fmt.Errorf("%w: %d is out of range 1-%d", ErrInvalidSelection, n, len(available))
		}

		names = append(names, available[n-1].Name)
	}

	return names, nil
}

func splitList(s string) []string {
	var out []string

	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}

func (r *EpicResolver) ask(question, def string) (string, error) {
	answer, err := r.prompt.Ask(question, def)
	if err != nil {
		return "", abort(err)
	}

	return answer, nil
}

func (r *EpicResolver) confirm(question, def string) (bool, error) {
	answer, err := r.ask(question, def)
	if err != nil {
		return false, err
	}

	return prompt.IsYes(answer), nil
}

// abort marks a prompt failure as ending the run.
func abort(err error) error {
	return fmt.Errorf("%w: %w", ErrAborted, err)
}
