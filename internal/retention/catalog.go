package retention

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"scr-lifecycle-policy/internal/models"
)

// DefaultMaxPages bounds pagination against a registry that never returns an
// empty page.
const DefaultMaxPages = 1000

// TagPager returns one page of an image's tags. An empty page ends the listing.
type TagPager interface {
	ListTagsPage(ctx context.Context, imageID string, page int) ([]models.Tag, error)
}

// CatalogFetchError reports the page whose request failed
type CatalogFetchError struct {
	Page int
	Err  error
}

func (e *CatalogFetchError) Error() string {
	return fmt.Sprintf("failed to fetch page %d of tags: %v", e.Page, e.Err)
}

func (e *CatalogFetchError) Unwrap() error {
	return e.Err
}

// Catalog is the result of listing every tag of an image
type Catalog struct {
	Tags []models.Tag
	// Requests is the number of page requests issued
	Requests int
	// Err is set when a page failed; Tags then holds the pages before it
	Err *CatalogFetchError
	// Truncated is set when maxPages was reached before an empty page
	Truncated bool
}

// Partial reports whether the catalog may be missing tags
func (c Catalog) Partial() bool {
	return c.Err != nil || c.Truncated
}

// FetchAllTags requests pages 1, 2, ... until one comes back empty and
// returns their concatenation in the order received. A failing page is
// logged and ends the listing; the tags gathered so far are kept.
func FetchAllTags(ctx context.Context, pager TagPager, imageID string, maxPages int, log logrus.FieldLogger) Catalog {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	var cat Catalog
	for page := 1; ; page++ {
		if page > maxPages {
			log.WithFields(logrus.Fields{
				"image_id":  imageID,
				"max_pages": maxPages,
				"tags":      len(cat.Tags),
			}).Warn("Page limit reached before the end of the tag list, the catalog is incomplete")
			cat.Truncated = true
			return cat
		}

		cat.Requests++
		tags, err := pager.ListTagsPage(ctx, imageID, page)
		if err != nil {
			cat.Err = &CatalogFetchError{Page: page, Err: err}
			log.WithError(err).WithFields(logrus.Fields{
				"image_id": imageID,
				"page":     page,
			}).Error("The list of tags could not be retrieved from the registry API")
			return cat
		}
		if len(tags) == 0 {
			return cat
		}

		log.WithFields(logrus.Fields{"page": page, "tags": len(tags)}).Debug("Fetched page of tags")
		cat.Tags = append(cat.Tags, tags...)
	}
}
