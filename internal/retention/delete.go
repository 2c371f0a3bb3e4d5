package retention

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"scr-lifecycle-policy/internal/models"
	"scr-lifecycle-policy/internal/registry"
)

// TagDeleter deletes a tag and returns the registry's response body
type TagDeleter interface {
	DeleteTag(ctx context.Context, tagID string) (string, error)
}

// DeletionError reports a tag the registry did not delete
type DeletionError struct {
	TagID string
	Err   error
}

func (e *DeletionError) Error() string {
	return fmt.Sprintf("failed to delete tag %s: %v", e.TagID, e.Err)
}

func (e *DeletionError) Unwrap() error {
	return e.Err
}

// ApplyDeletions deletes tags one at a time in the given order. A failed
// deletion is logged and recorded; it never stops the remaining ones. A tag
// the registry reports as missing counts as deleted. Once ctx is done no
// further deletion is attempted and only the attempted tags get an outcome.
func ApplyDeletions(ctx context.Context, tags []models.Tag, deleter TagDeleter, log logrus.FieldLogger) []models.DeletionOutcome {
	outcomes := make([]models.DeletionOutcome, 0, len(tags))
	for i, tag := range tags {
		if err := ctx.Err(); err != nil {
			log.WithError(err).WithField("remaining", len(tags)-i).Warn("Stopping deletions, remaining tags are left in place")
			break
		}
		outcomes = append(outcomes, deleteOne(ctx, tag, deleter, log))
	}
	return outcomes
}

func deleteOne(ctx context.Context, tag models.Tag, deleter TagDeleter, log logrus.FieldLogger) models.DeletionOutcome {
	out := models.DeletionOutcome{TagID: tag.ID, TagName: tag.Name}

	log.Infof("Preparing to delete the %s tag...", tag.ID)
	body, err := deleter.DeleteTag(ctx, tag.ID)
	out.Response = body

	switch {
	case err == nil:
		out.Action = models.ActionDeleted
		log.Infof("Tag %s deleted.", tag.ID)
	case errors.Is(err, registry.ErrTagNotFound):
		out.Action = models.ActionAlreadyDeleted
		out.Reason = "tag no longer exists in the registry"
		log.WithField("tag_id", tag.ID).Warnf("Tag %s was already deleted.", tag.ID)
	default:
		derr := &DeletionError{TagID: tag.ID, Err: err}
		out.Action = models.ActionFailed
		out.Reason = err.Error()
		out.Err = derr
		log.WithError(err).WithFields(logrus.Fields{
			"tag_id":   tag.ID,
			"tag_name": tag.Name,
		}).Error("The tag of image could not be deleted from the registry API")
	}
	return out
}
