package retention

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"scr-lifecycle-policy/internal/grace"
	"scr-lifecycle-policy/internal/models"
)

// TimestampLayout is the format of the registry's created_at and updated_at
// fields: fractional seconds in UTC with a literal Z. The fraction must have
// between 1 and 6 digits.
const TimestampLayout = "2006-01-02T15:04:05.999999Z"

// secondsLen is the length of the "2006-01-02T15:04:05" prefix
const secondsLen = 19

var errFraction = errors.New("fractional seconds must have 1 to 6 digits")

// TimestampFormatError is returned when a tag timestamp does not match
// TimestampLayout
type TimestampFormatError struct {
	TagID string
	Value string
	Err   error
}

func (e *TimestampFormatError) Error() string {
	return fmt.Sprintf("tag %s: updated_at %q does not match %s: %v", e.TagID, e.Value, TimestampLayout, e.Err)
}

func (e *TimestampFormatError) Unwrap() error {
	return e.Err
}

// ParseTimestamp parses a registry timestamp literal
func ParseTimestamp(tagID, value string) (time.Time, error) {
	if err := checkFraction(value); err != nil {
		return time.Time{}, &TimestampFormatError{TagID: tagID, Value: value, Err: err}
	}
	t, err := time.Parse(TimestampLayout, value)
	if err != nil {
		return time.Time{}, &TimestampFormatError{TagID: tagID, Value: value, Err: err}
	}
	return t, nil
}

// checkFraction rejects literals whose fraction is missing or longer than
// microseconds, both of which time.Parse would accept.
func checkFraction(value string) error {
	if len(value) < secondsLen+3 || value[secondsLen] != '.' || value[len(value)-1] != 'Z' {
		return errFraction
	}
	frac := value[secondsLen+1 : len(value)-1]
	if len(frac) > 6 {
		return errFraction
	}
	for _, c := range frac {
		if c < '0' || c > '9' {
			return errFraction
		}
	}
	return nil
}

// Evaluation is the outcome of classifying a catalog
type Evaluation struct {
	Now time.Time
	// Eligible holds the tags to delete, in catalog order
	Eligible []models.Tag
	// Entries holds one log entry per evaluated tag, in catalog order
	Entries []models.RetentionLog
	Kept    int
	Skipped int
}

// EligibleIDs returns the ids of the eligible tags
func (e Evaluation) EligibleIDs() []string {
	ids := make([]string, len(e.Eligible))
	for i, t := range e.Eligible {
		ids[i] = t.ID
	}
	return ids
}

// Evaluator decides which tags have outlived the grace period
type Evaluator struct {
	Grace grace.Spec
	// Now is sampled once per Evaluate call. Defaults to time.Now.
	Now func() time.Time
	Log logrus.FieldLogger
}

// Eligible reports whether a tag last updated at updatedAt is older than the
// grace period at now. A tag exactly as old as the grace period is kept.
func Eligible(now, updatedAt time.Time, g grace.Spec) bool {
	return now.Sub(updatedAt) > g.Duration()
}

// Evaluate classifies tags without reordering them. Tags whose updated_at
// cannot be parsed are skipped with a warning and never become eligible.
func (e *Evaluator) Evaluate(tags []models.Tag) Evaluation {
	nowFn := e.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	now := nowFn().UTC()

	ev := Evaluation{Now: now}
	for _, tag := range tags {
		updatedAt, err := ParseTimestamp(tag.ID, tag.UpdatedAt)
		if err != nil {
			e.Log.WithError(err).WithField("tag_id", tag.ID).Warn("Skipping tag with an unreadable last modification date")
			ev.Skipped++
			ev.Entries = append(ev.Entries, models.RetentionLog{
				TagID:   tag.ID,
				TagName: tag.Name,
				Status:  tag.Status,
				Action:  models.ActionSkipped,
				Reason:  err.Error(),
			})
			continue
		}

		entry := models.RetentionLog{
			TagID:     tag.ID,
			TagName:   tag.Name,
			Status:    tag.Status,
			UpdatedAt: updatedAt,
		}

		if !Eligible(now, updatedAt, e.Grace) {
			entry.Action = models.ActionKept
			entry.Reason = fmt.Sprintf("updated within the last %s", e.Grace)
			ev.Kept++
			ev.Entries = append(ev.Entries, entry)
			continue
		}

		e.Log.Infof("Tag %s with name %s and %s status created on %s and updated for last time on %s (%s) is eligible for deletion.",
			tag.ID, tag.Name, tag.Status, tag.CreatedAt, updatedAt.Format(time.RFC3339Nano), humanize.RelTime(updatedAt, now, "ago", "from now"))
		entry.Action = models.ActionEligible
		entry.Reason = fmt.Sprintf("not updated for more than %s", e.Grace)
		ev.Eligible = append(ev.Eligible, tag)
		ev.Entries = append(ev.Entries, entry)
	}

	return ev
}
