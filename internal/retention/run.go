// Package retention applies a grace period based retention policy to the
// tags of one registry image.
package retention

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"scr-lifecycle-policy/internal/grace"
	"scr-lifecycle-policy/internal/models"
)

// State is the phase a run is in
type State string

const (
	StateInit         State = "init"
	StateFetching     State = "fetching"
	StateEvaluating   State = "evaluating"
	StateDryRunReport State = "dry_run_report"
	StateDeleting     State = "deleting"
	StateDone         State = "done"
)

var (
	// ErrCatalogUnavailable is returned when not a single page of tags could be fetched
	ErrCatalogUnavailable = errors.New("tag catalog unavailable")
	// ErrInterrupted is returned when the context was cancelled before the run finished.
	ErrInterrupted = errors.New("retention run interrupted")
	// ErrRecordRun is returned when the run could not be written to the history store
	ErrRecordRun = errors.New("failed to record run")
)

// Registry is the part of the registry API a run needs
type Registry interface {
	TagPager
	TagDeleter
}

// Recorder persists the summary of a finished run
type Recorder interface {
	SaveRun(run *models.Run, entries []models.RetentionLog) error
}

// Policy is what a single run enforces
type Policy struct {
	ImageID  string
	Region   string
	Grace    grace.Spec
	DryRun   bool
	MaxPages int
}

// Report describes a finished run
type Report struct {
	Run        models.Run
	State      State
	Catalog    Catalog
	Evaluation Evaluation
	Outcomes   []models.DeletionOutcome
	// Entries merges evaluation and deletion results per tag
	Entries []models.RetentionLog

	Attempted int
	Deleted   int
	Failed    int
}

// Runner drives a retention run: fetch, evaluate, then report or delete.
type Runner struct {
	Registry Registry
	Log      logrus.FieldLogger
	// Now defaults to time.Now
	Now func() time.Time
	// Recorder is optional
	Recorder Recorder
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func (r *Runner) enter(rep *Report, s State) {
	rep.State = s
	r.Log.WithField("state", s).Debug("Retention run state changed")
}

// Run executes the policy once. The returned report is never nil. An error
// is returned only when no tag could be listed at all, when ctx was
// cancelled, or when the run could not be recorded; per-tag failures are
// reported in the Report.
func (r *Runner) Run(ctx context.Context, p Policy) (*Report, error) {
	rep := &Report{
		State: StateInit,
		Run: models.Run{
			ID:        uuid.NewString(),
			ImageID:   p.ImageID,
			Region:    p.Region,
			Grace:     p.Grace.String(),
			DryRun:    p.DryRun,
			StartedAt: r.now(),
		},
	}
	log := r.Log.WithField("run_id", rep.Run.ID)

	r.enter(rep, StateFetching)
	rep.Catalog = FetchAllTags(ctx, r.Registry, p.ImageID, p.MaxPages, log)
	rep.Run.TagsTotal = len(rep.Catalog.Tags)
	if rep.Catalog.Err != nil {
		rep.Run.FetchError = rep.Catalog.Err.Error()
	}
	if ctx.Err() != nil {
		return rep, r.interrupted(ctx, rep, log)
	}
	if rep.Catalog.Err != nil && len(rep.Catalog.Tags) == 0 {
		r.enter(rep, StateDone)
		err := fmt.Errorf("%w: %w", ErrCatalogUnavailable, rep.Catalog.Err)
		return rep, errors.Join(err, r.record(rep))
	}
	if rep.Catalog.Partial() {
		log.Warnf("Only %d tags could be listed, the evaluation covers a partial catalog.", len(rep.Catalog.Tags))
	}

	r.enter(rep, StateEvaluating)
	ev := &Evaluator{Grace: p.Grace, Now: r.now, Log: log}
	rep.Evaluation = ev.Evaluate(rep.Catalog.Tags)
	rep.Entries = rep.Evaluation.Entries
	rep.Run.Eligible = len(rep.Evaluation.Eligible)

	log.Infof("%d tags are eligible for deletion.", len(rep.Evaluation.Eligible))

	if p.DryRun {
		r.enter(rep, StateDryRunReport)
		log.Info("To remove these tags, restart the tool with the --dry-run no option")
	} else {
		r.enter(rep, StateDeleting)
		rep.Outcomes = ApplyDeletions(ctx, rep.Evaluation.Eligible, r.Registry, log)
		rep.tally()
		if ctx.Err() != nil {
			log.Infof("%d tags have been removed before the run was interrupted.", rep.Deleted)
			return rep, r.interrupted(ctx, rep, log)
		}
		if rep.Failed > 0 {
			log.Warnf("%d tags could not be removed.", rep.Failed)
		}
		log.Infof("%d tags have been removed !", rep.Deleted)
	}

	r.enter(rep, StateDone)
	return rep, r.record(rep)
}

func (r *Runner) interrupted(ctx context.Context, rep *Report, log logrus.FieldLogger) error {
	r.enter(rep, StateDone)
	rep.Run.Interrupted = true
	log.WithError(ctx.Err()).Warn("The retention run was interrupted")
	err := fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
	return errors.Join(err, r.record(rep))
}

// tally counts the outcomes and folds them into the per-tag entries.
func (rep *Report) tally() {
	byID := make(map[string]models.DeletionOutcome, len(rep.Outcomes))
	for _, o := range rep.Outcomes {
		rep.Attempted++
		if o.Succeeded() {
			rep.Deleted++
		} else {
			rep.Failed++
		}
		byID[o.TagID] = o
	}
	rep.Run.Deleted = rep.Deleted
	rep.Run.Failed = rep.Failed

	entries := make([]models.RetentionLog, len(rep.Entries))
	copy(entries, rep.Entries)
	for i, e := range entries {
		o, ok := byID[e.TagID]
		if !ok || e.Action != models.ActionEligible {
			continue
		}
		entries[i].Action = o.Action
		if o.Reason != "" {
			entries[i].Reason = o.Reason
		}
	}
	rep.Entries = entries
}

func (r *Runner) record(rep *Report) error {
	rep.Run.FinishedAt = r.now()
	if r.Recorder == nil {
		return nil
	}
	if err := r.Recorder.SaveRun(&rep.Run, rep.Entries); err != nil {
		r.Log.WithError(err).WithField("run_id", rep.Run.ID).Error("The run could not be written to the history store")
		return fmt.Errorf("%w: %w", ErrRecordRun, err)
	}
	return nil
}
