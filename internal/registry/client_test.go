package registry_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scr-lifecycle-policy/internal/registry"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *registry.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return registry.NewClient(registry.Options{
		BaseURL:  srv.URL,
		Token:    "secret",
		Region:   "nl-ams",
		PageSize: 2,
	})
}

func TestListTagsPage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/registry/v1/regions/nl-ams/images/img-1/tags", r.URL.Path)
		require.Equal(t, "3", r.URL.Query().Get("page"))
		require.Equal(t, "2", r.URL.Query().Get("page_size"))
		require.Equal(t, "secret", r.Header.Get("X-Auth-Token"))

		fmt.Fprint(w, `{"tags":[{"id":"t1","name":"v1","status":"ready","created_at":"2024-01-01T00:00:00.000000Z","updated_at":"2024-01-02T00:00:00.000000Z"}],"total_count":5}`)
	})

	tags, err := c.ListTagsPage(context.Background(), "img-1", 3)

	require.NoError(t, err)
	require.Len(t, tags, 1)
	require.Equal(t, "t1", tags[0].ID)
	require.Equal(t, "v1", tags[0].Name)
	require.Equal(t, "ready", tags[0].Status)
	require.Equal(t, "2024-01-02T00:00:00.000000Z", tags[0].UpdatedAt)
}

func TestListTagsPage_emptyPage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"tags":[],"total_count":5}`)
	})

	tags, err := c.ListTagsPage(context.Background(), "img-1", 4)

	require.NoError(t, err)
	require.Empty(t, tags)
}

func TestListTagsPage_statusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"authentication is denied"}`)
	})

	_, err := c.ListTagsPage(context.Background(), "img-1", 1)

	var statusErr *registry.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	require.ErrorContains(t, err, "authentication is denied")
}

func TestListTagsPage_badJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>`)
	})

	_, err := c.ListTagsPage(context.Background(), "img-1", 1)

	require.ErrorContains(t, err, "failed to decode tags")
}

func TestListTagsPage_timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)
	c := registry.NewClient(registry.Options{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})

	_, err := c.ListTagsPage(context.Background(), "img-1", 1)

	require.ErrorContains(t, err, "failed to list tags")
}

func TestDeleteTag(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/registry/v1/regions/nl-ams/tags/t1", r.URL.Path)
		require.Equal(t, "true", r.URL.Query().Get("force"))
		require.Equal(t, "secret", r.Header.Get("X-Auth-Token"))
		fmt.Fprint(w, `{"id":"t1","status":"deleting"}`)
	})

	body, err := c.DeleteTag(context.Background(), "t1")

	require.NoError(t, err)
	require.JSONEq(t, `{"id":"t1","status":"deleting"}`, body)
}

func TestDeleteTag_notFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"resource is not found"}`)
	})

	_, err := c.DeleteTag(context.Background(), "t1")

	require.True(t, errors.Is(err, registry.ErrTagNotFound))
}

func TestDeleteTag_serverError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.DeleteTag(context.Background(), "t1")

	var statusErr *registry.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	require.False(t, errors.Is(err, registry.ErrTagNotFound))
}

func TestNewClient_defaults(t *testing.T) {
	c := registry.NewClient(registry.Options{})
	require.Equal(t, registry.DefaultRegion, c.Region())
}

func TestValidRegion(t *testing.T) {
	require.True(t, registry.ValidRegion("fr-par"))
	require.True(t, registry.ValidRegion("pl-waw"))
	require.False(t, registry.ValidRegion("us-east-1"))
	require.False(t, registry.ValidRegion(""))
}
