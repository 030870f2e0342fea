package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/calvinalkan/clsync/internal/changelog"
	"github.com/calvinalkan/clsync/internal/prompt"
	"github.com/calvinalkan/clsync/internal/tracker"
)

// Paths names an operator's changelog pair.
type Paths struct {
	Pending   string
	Committed string
}

// Summary reports what one sync run did.
type Summary struct {
	Paths     Paths
	Total     int // blocks found below the template
	Committed int
	Retained  int
	Malformed int
	Outcomes  []Outcome

	CommittedAppended bool
	PendingRewritten  bool
}

// SyncInput holds the inputs for Sync.
type SyncInput struct {
	Paths    Paths
	Settings Settings
	Prompt   prompt.Prompter
	View     *View
	Log      *zap.Logger

	// Connect builds the tracker client. It is only called when there is at
	// least one pending block.
	Connect func() (tracker.Client, error)

	// DefaultIdentity is offered when Settings.Identity is empty.
	DefaultIdentity string
}

// Sync processes every pending block of one operator. Once connected, the
// pending log stays locked for the rest of the run. Committed records are appended before the
// pending log is rewritten; when nothing was committed neither file is
// touched. An aborted run writes nothing.
func Sync(ctx context.Context, in SyncInput) (Summary, error) {
	log := in.Log
	if log == nil {
		log = zap.NewNop()
	}

	summary := Summary{Paths: in.Paths}

	// The lock is taken only after connecting: a run that cannot reach the
	// tracker must leave the changelog directory untouched.
	doc, err := changelog.ReadPending(in.Paths.Pending)
	if err != nil {
		return summary, err
	}

	summary.Total = len(doc.Blocks)

	if len(doc.Blocks) == 0 {
		log.Info("no pending entries", zap.String("pending", in.Paths.Pending))

		return summary, nil
	}

	client, err := in.Connect()
	if err != nil {
		return summary, fmt.Errorf("connecting to tracker: %w", err)
	}

	err = changelog.WithLock(in.Paths.Pending, func() error {
		// Re-read: another run may have changed the log while we connected.
		doc, err := changelog.ReadPending(in.Paths.Pending)
		if err != nil {
			return err
		}

		summary.Total = len(doc.Blocks)

		if len(doc.Blocks) == 0 {
			log.Info("no pending entries", zap.String("pending", in.Paths.Pending))

			return nil
		}

		settings := in.Settings
		if settings.Identity == "" {
			identity, askErr := in.Prompt.Ask("Tracker username for reporter and assignee", in.DefaultIdentity)
			if askErr != nil {
				return abort(askErr)
			}

			settings.Identity = identity
		}

		log.Info("processing pending entries",
			zap.Int("entries", len(doc.Blocks)),
			zap.String("identity", settings.Identity))

		orch := NewOrchestrator(client, in.Prompt, in.View, log, settings)

		outcomes, err := orch.ProcessAll(ctx, doc.Blocks)
		if err != nil {
			return err
		}

		summary.Outcomes = outcomes

		return persist(log, in.Paths, doc, &summary)
	})

	return summary, err
}

func persist(log *zap.Logger, paths Paths, doc changelog.Document, summary *Summary) error {
	var (
		records  []changelog.Record
		retained []changelog.Block
	)

	for _, o := range summary.Outcomes {
		if o.Committed() {
			records = append(records, *o.Record)

			continue
		}

		retained = append(retained, o.Block)

		if o.Reason == ReasonMalformed {
			summary.Malformed++
		}
	}

	summary.Committed = len(records)
	summary.Retained = len(retained)

	if len(records) == 0 {
		log.Info("nothing committed, changelogs left unchanged")

		return nil
	}

	if err := changelog.AppendCommitted(paths.Committed, records); err != nil {
		return err
	}

	summary.CommittedAppended = true

	if err := changelog.RewritePending(paths.Pending, doc.Template, retained); err != nil {
		return err
	}

	summary.PendingRewritten = true

	log.Info("changelogs updated",
		zap.Int("committed", summary.Committed),
		zap.Int("retained", summary.Retained),
		zap.String("committed_log", paths.Committed),
		zap.String("pending_log", paths.Pending))

	return nil
}
