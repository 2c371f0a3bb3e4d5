package models

import "time"

// Tag represents one tag of an image as returned by the registry.
// Timestamps are kept as the raw literals the registry sent; the retention
// evaluator is responsible for parsing them.
type Tag struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ImageID   string `json:"image_id,omitempty"`
	Status    string `json:"status"`
	Digest    string `json:"digest,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Retention log actions
const (
	ActionEligible       = "eligible"
	ActionKept           = "kept"
	ActionSkipped        = "skipped"
	ActionDeleted        = "deleted"
	ActionAlreadyDeleted = "already_deleted"
	ActionFailed         = "failed"
)

// RetentionLog is the per-tag result of a retention run
type RetentionLog struct {
	TagID     string    `json:"tag_id"`
	TagName   string    `json:"tag_name"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
	Action    string    `json:"action"`
	Reason    string    `json:"reason"`
}

// DeletionOutcome is the result of one attempted tag deletion
type DeletionOutcome struct {
	TagID   string `json:"tag_id"`
	TagName string `json:"tag_name"`
	Action  string `json:"action"` // deleted, already_deleted or failed
	Reason  string `json:"reason,omitempty"`
	// Response holds the body the registry answered with, if any
	Response string `json:"response,omitempty"`
	Err      error  `json:"-"`
}

// Succeeded reports whether the tag is gone from the registry after the attempt.
func (o DeletionOutcome) Succeeded() bool {
	return o.Action == ActionDeleted || o.Action == ActionAlreadyDeleted
}

// Run summarizes one invocation of the retention policy
type Run struct {
	ID         string    `json:"id"`
	ImageID    string    `json:"image_id"`
	Region     string    `json:"region"`
	Grace      string    `json:"grace"`
	DryRun     bool      `json:"dry_run"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	TagsTotal  int       `json:"tags_total"`
	Eligible   int       `json:"eligible"`
	Deleted    int       `json:"deleted"`
	Failed     int       `json:"failed"`
	FetchError string    `json:"fetch_error,omitempty"`

	// Interrupted is set when the run was cancelled before it finished
	Interrupted bool `json:"interrupted,omitempty"`
}
