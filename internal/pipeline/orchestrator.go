package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/calvinalkan/clsync/internal/changelog"
	"github.com/calvinalkan/clsync/internal/prompt"
	"github.com/calvinalkan/clsync/internal/tracker"
)

// state is a step in the life of one entry.
type state int

const (
	stateParsed state = iota
	stateConfirming
	stateEpicResolving
	stateDuplicateChecking
	stateCreating
	stateTransitioning
	stateCommitted
	stateRetained
)

func (s state) String() string {
	switch s {
	case stateParsed:
		return "parsed"
	case stateConfirming:
		return "confirming"
	case stateEpicResolving:
		return "epic-resolving"
	case stateDuplicateChecking:
		return "duplicate-checking"
	case stateCreating:
		return "creating"
	case stateTransitioning:
		return "transitioning"
	case stateCommitted:
		return "committed"
	case stateRetained:
		return "retained"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s state) terminal() bool {
	return s == stateCommitted || s == stateRetained
}

// Reasons recorded for retained entries.
const (
	ReasonMalformed        = "malformed entry"
	ReasonDeclined         = "declined by operator"
	ReasonNoEpic           = "epic resolution failed"
	ReasonDuplicate        = "possible duplicate"
	ReasonDuplicateUnknown = "duplicate check failed"
	ReasonCreationFailed   = "issue creation failed"
)

// Outcome is the result of driving one block through the pipeline. Exactly
// one of Record and Reason is set.
type Outcome struct {
	Block  changelog.Block
	Entry  changelog.Entry
	Record *changelog.Record
	Reason string
	Err    error // cause of a failure-driven retention, if any
}

// Committed reports whether the entry became a tracker issue.
func (o Outcome) Committed() bool {
	return o.Record != nil
}

// entryRun is the mutable state carried between steps.
type entryRun struct {
	block  changelog.Block
	entry  changelog.Entry
	epic   tracker.Epic
	key    string
	status string
	reason string
	err    error
}

func (r *entryRun) retain(reason string, err error) state {
	r.reason, r.err = reason, err

	return stateRetained
}

// Orchestrator drives entries one at a time from Parsed to Committed or
// Retained.
type Orchestrator struct {
	prompt   prompt.Prompter
	view     *View
	log      *zap.Logger
	settings Settings

	epics  *EpicResolver
	dups   *DuplicateDetector
	issues *IssueCreator
}

// NewOrchestrator wires an Orchestrator and its collaborators.
func NewOrchestrator(client tracker.Client, p prompt.Prompter, view *View, log *zap.Logger, s Settings) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}

	return &Orchestrator{
		prompt:   p,
		view:     view,
		log:      log,
		settings: s,
		epics:    NewEpicResolver(client, p, view, log, s),
		dups:     NewDuplicateDetector(client, s.Project),
		issues:   NewIssueCreator(client, s),
	}
}

// ProcessAll processes blocks in order. Tracker failures never stop the
// batch. A closed input stream or a cancelled context returns ErrAborted and
// no outcomes.
func (o *Orchestrator) ProcessAll(ctx context.Context, blocks []changelog.Block) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(blocks))

	for _, block := range blocks {
		outcome, err := o.Process(ctx, block)
		if err != nil {
			if keys := createdKeys(outcomes); len(keys) > 0 {
				o.log.Warn("sync aborted, issues created in this run are not recorded in the changelog",
					zap.Strings("issue_keys", keys))
			}

			return nil, err
		}

		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

func createdKeys(outcomes []Outcome) []string {
	var keys []string

	for _, o := range outcomes {
		if o.Record != nil {
			keys = append(keys, o.Record.IssueKey)
		}
	}

	return keys
}

// Process drives one block to a terminal state. The only error returned
// wraps ErrAborted.
func (o *Orchestrator) Process(ctx context.Context, block changelog.Block) (Outcome, error) {
	run := &entryRun{block: block}

	for st := stateParsed; ; {
		if st.terminal() {
			return o.finish(st, run), nil
		}

		if err := ctx.Err(); err != nil {
			return Outcome{}, o.aborted(run, err)
		}

		next, err := o.step(ctx, st, run)
		if err != nil {
			return Outcome{}, o.aborted(run, err)
		}

		o.log.Debug("entry state changed",
			zap.String("title", run.entry.Title),
			zap.Stringer("from", st),
			zap.Stringer("to", next))

		st = next
	}
}

func (o *Orchestrator) aborted(run *entryRun, err error) error {
	if run.key != "" {
		o.log.Warn("sync aborted after creating an issue", zap.String("issue_key", run.key), zap.String("title", run.entry.Title))
	}

	if errors.Is(err, ErrAborted) {
		return err
	}

	return abort(err)
}

func (o *Orchestrator) step(ctx context.Context, st state, run *entryRun) (state, error) {
	switch st {
	case stateParsed:
		return o.parse(run), nil
	case stateConfirming:
		return o.confirmEntry(run)
	case stateEpicResolving:
		return o.resolveEpic(ctx, run)
	case stateDuplicateChecking:
		return o.checkDuplicates(ctx, run)
	case stateCreating:
		return o.create(ctx, run), nil
	case stateTransitioning:
		return o.transition(ctx, run), nil
	default:
		return st, fmt.Errorf("no step for state %s", st)
	}
}

func (o *Orchestrator) parse(run *entryRun) state {
	entry, err := changelog.ParseEntry(run.block.Raw)
	run.entry = entry

	if err != nil {
		return run.retain(ReasonMalformed, err)
	}

	if entry.CategoryCoerced() {
		o.log.Warn("unrecognized entry type, treating as story",
			zap.String("title", entry.Title),
			zap.String("type", entry.RawCategory))
	}

	return stateConfirming
}

func (o *Orchestrator) confirmEntry(run *entryRun) (state, error) {
	issueType := o.settings.IssueType(run.entry.Category)
	o.view.Review(run.entry, issueType, o.settings.Identity)

	ok, err := o.confirm(fmt.Sprintf("Create this %s in the tracker? (yes/no/skip)", issueType), "yes")
	if err != nil {
		return halt(err)
	}

	if !ok {
		return run.retain(ReasonDeclined, nil), nil
	}

	return stateEpicResolving, nil
}

func (o *Orchestrator) resolveEpic(ctx context.Context, run *entryRun) (state, error) {
	epic, err := o.epics.Resolve(ctx)

	var resErr *ResolutionError
	if errors.As(err, &resErr) {
		o.log.Error("epic resolution failed", zap.String("title", run.entry.Title), zap.Error(err))

		ok, askErr := o.confirm("Could not resolve an epic. Proceed without an epic? (yes/no)", "yes")
		if askErr != nil {
			return halt(askErr)
		}

		if !ok {
			return run.retain(ReasonNoEpic, err), nil
		}

		return stateDuplicateChecking, nil
	}

	if err != nil {
		return halt(err)
	}

	run.epic = epic

	return stateDuplicateChecking, nil
}

func (o *Orchestrator) checkDuplicates(ctx context.Context, run *entryRun) (state, error) {
	if run.epic.IsZero() {
		return stateCreating, nil
	}

	matches, err := o.dups.Find(ctx, run.epic, run.entry.Title)
	if err != nil {
		o.log.Error("duplicate check failed", zap.String("title", run.entry.Title), zap.Error(err))

		ok, askErr := o.confirm("Could not check for duplicates. Create the issue anyway? (yes/no)", "no")
		if askErr != nil {
			return halt(askErr)
		}

		if !ok {
			return run.retain(ReasonDuplicateUnknown, err), nil
		}

		return stateCreating, nil
	}

	if len(matches) == 0 {
		return stateCreating, nil
	}

	o.view.Duplicates(run.epic, matches)

	ok, err := o.confirm("An issue with this title already exists under the epic. Create another? (yes/no)", "no")
	if err != nil {
		return halt(err)
	}

	if !ok {
		return run.retain(ReasonDuplicate, nil), nil
	}

	return stateCreating, nil
}

func (o *Orchestrator) create(ctx context.Context, run *entryRun) state {
	key, err := o.issues.Create(ctx, run.entry, run.epic)
	if err != nil {
		return run.retain(ReasonCreationFailed, err)
	}

	run.key = key
	run.status = o.settings.InitialStatus

	o.log.Info("issue created", zap.String("issue_key", key), zap.String("title", run.entry.Title))

	return stateTransitioning
}

func (o *Orchestrator) transition(ctx context.Context, run *entryRun) state {
	moved, err := o.issues.Advance(ctx, run.key, o.settings.DoneStatus)

	switch {
	case err != nil:
		o.log.Warn("transition failed, keeping initial status",
			zap.String("issue_key", run.key),
			zap.String("status", run.status),
			zap.Error(err))
	case !moved:
		o.log.Warn("no matching transition, keeping initial status",
			zap.String("issue_key", run.key),
			zap.String("target", o.settings.DoneStatus),
			zap.String("status", run.status))
	default:
		run.status = o.settings.DoneStatus
	}

	return stateCommitted
}

// finish builds the Outcome and logs it.
func (o *Orchestrator) finish(st state, run *entryRun) Outcome {
	outcome := Outcome{Block: run.block, Entry: run.entry}

	if st == stateRetained {
		outcome.Reason, outcome.Err = run.reason, run.err

		fields := []zap.Field{zap.String("title", run.entry.Title), zap.String("reason", run.reason)}
		if run.err != nil {
			fields = append(fields, zap.Error(run.err))
		}

		var parseErr *changelog.ParseError
		if errors.As(run.err, &parseErr) {
			fields = append(fields, zap.String("excerpt", parseErr.Excerpt))
		}

		o.log.Warn("entry retained", fields...)

		return outcome
	}

	outcome.Record = &changelog.Record{
		EpicName:   run.epic.Name,
		EpicKey:    run.epic.Key,
		IssueType:  o.settings.IssueType(run.entry.Category),
		IssueKey:   run.key,
		Title:      run.entry.Title,
		Status:     run.status,
		Narrative:  run.entry.Narrative,
		Acceptance: run.entry.Acceptance,
	}

	o.log.Info("entry committed",
		zap.String("title", run.entry.Title),
		zap.String("issue_key", run.key),
		zap.String("status", run.status))

	return outcome
}

func (o *Orchestrator) confirm(question, def string) (bool, error) {
	answer, err := o.prompt.Ask(question, def)
	if err != nil {
		return false, abort(err)
	}

	return prompt.IsYes(answer), nil
}

// halt returns an aborting step result.
func halt(err error) (state, error) {
	return stateRetained, err
}
