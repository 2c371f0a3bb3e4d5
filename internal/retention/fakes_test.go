package retention_test

import (
	"context"
	"fmt"
	"time"

	"scr-lifecycle-policy/internal/models"
)

// fakeRegistry serves pages from memory and records every call.
type fakeRegistry struct {
	pages      [][]models.Tag
	pageErrs   map[int]error
	endless    bool
	deleteErrs map[string]error

	pageCalls   []int
	deleteCalls []string
}

func (f *fakeRegistry) ListTagsPage(_ context.Context, _ string, page int) ([]models.Tag, error) {
	f.pageCalls = append(f.pageCalls, page)
	if err := f.pageErrs[page]; err != nil {
		return nil, err
	}
	if f.endless {
		return []models.Tag{tagAt(fmt.Sprintf("p%d", page), time.Time{})}, nil
	}
	if page > len(f.pages) {
		return nil, nil
	}
	return f.pages[page-1], nil
}

func (f *fakeRegistry) DeleteTag(_ context.Context, tagID string) (string, error) {
	f.deleteCalls = append(f.deleteCalls, tagID)
	if err := f.deleteErrs[tagID]; err != nil {
		return "", err
	}
	return fmt.Sprintf(`{"id":%q,"status":"deleting"}`, tagID), nil
}

func tagAt(id string, updated time.Time) models.Tag {
	return models.Tag{
		ID:        id,
		Name:      "name-" + id,
		Status:    "ready",
		CreatedAt: "2023-06-01T00:00:00.000000Z",
		UpdatedAt: updated.UTC().Format("2006-01-02T15:04:05.000000Z"),
	}
}

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		panic(err)
	}
	return t
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
