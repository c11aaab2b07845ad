package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stefanpenner/horizon/pkg/api"
	"github.com/stefanpenner/horizon/pkg/backend"
	"github.com/stefanpenner/horizon/pkg/cache"
	"github.com/stefanpenner/horizon/pkg/store"
	hsync "github.com/stefanpenner/horizon/pkg/sync"
)

var (
	_ hsync.Remote   = (*Client)(nil)
	_ hsync.Resetter = (*Client)(nil)
)

func setupClient(t *testing.T) (*Client, backend.Backend) {
	t.Helper()
	b := backend.NewMemory()
	srv := api.New(b, api.Options{})
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	c, err := New(ts.URL+"/", time.Second)
	require.NoError(t, err)
	return c, b
}

func TestClientRoundTrip(t *testing.T) {
	c, b := setupClient(t)
	ctx := context.Background()

	goals, err := c.Fetch(ctx, store.CategoryDaily)
	require.NoError(t, err)
	assert.NotNil(t, goals)
	assert.Empty(t, goals)

	require.NoError(t, c.Save(ctx, store.CategoryDaily, []store.Goal{
		{ID: "1", Text: "Run"},
		{ID: "2", Text: "Read", Completed: true},
	}))
	goals, err = c.Fetch(ctx, store.CategoryDaily)
	require.NoError(t, err)
	require.Len(t, goals, 2)
	assert.Equal(t, "Read", goals[1].Text)
	assert.Equal(t, 1, goals[1].Order)

	require.NoError(t, c.Reset(ctx))
	stored, err := b.List(ctx, store.CategoryDaily)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestClientSurfacesProblemDetail(t *testing.T) {
	c, _ := setupClient(t)
	err := c.Save(context.Background(), store.CategoryDaily, []store.Goal{{Text: "A"}, {Text: "a"}})
	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Status)
	require.NotNil(t, se.Problem)
	assert.Equal(t, store.KindValidation, se.Problem.Kind)
	assert.Contains(t, err.Error(), "duplicates")
}

func TestClientProblemNotFoundAndEmptyBodyAreEmpty(t *testing.T) {
	ctx := context.Background()
	notFound := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", api.ProblemContentType)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"title":"Not Found","status":404,"detail":"no goals stored"}`))
	}))
	defer notFound.Close()
	c, err := New(notFound.URL, time.Second)
	require.NoError(t, err)
	goals, err := c.Fetch(ctx, store.CategoryWeekly)
	require.NoError(t, err)
	assert.NotNil(t, goals)
	assert.Empty(t, goals)

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer empty.Close()
	c, err = New(empty.URL, time.Second)
	require.NoError(t, err)
	goals, err = c.Fetch(ctx, store.CategoryWeekly)
	require.NoError(t, err)
	assert.NotNil(t, goals)
	assert.Empty(t, goals)
}

func TestClientPlainNotFoundIsAnError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()
	c, err := New(ts.URL, time.Second)
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), store.CategoryDaily)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Status)
	assert.Nil(t, se.Problem)
}

func TestClientPlainNotFoundKeepsCache(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()
	c, err := New(ts.URL, time.Second)
	require.NoError(t, err)

	local := cache.NewMemory()
	ctx := context.Background()
	require.NoError(t, local.Put(ctx, store.CategoryDaily, []store.Goal{{ID: "a", Text: "Keep me", Category: store.CategoryDaily}}))

	e := hsync.New(hsync.Options{Remote: c, Cache: local, Debounce: time.Hour})
	defer e.Close()
	goals, err := e.LoadCategory(ctx, store.CategoryDaily)
	require.Error(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, "Keep me", goals[0].Text)

	cached, ok, err := local.Get(ctx, store.CategoryDaily)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, cached, 1)
}

func TestClientServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}))
	defer ts.Close()
	c, err := New(ts.URL, time.Second)
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), store.CategoryDaily)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Status)
	assert.Nil(t, se.Problem)

	err = c.Save(context.Background(), store.CategoryDaily, nil)
	assert.ErrorAs(t, err, &se)
}

func TestClientUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c, err := New(url, time.Second)
	require.NoError(t, err)
	_, err = c.Fetch(context.Background(), store.CategoryDaily)
	require.Error(t, err)
	var se *StatusError
	assert.False(t, errors.As(err, &se))
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com", 0)
	assert.Error(t, err)
	_, err = New("://nope", 0)
	assert.Error(t, err)
}

func TestEngineOverHTTP(t *testing.T) {
	c, b := setupClient(t)
	e := hsync.New(hsync.Options{Remote: c, Debounce: time.Hour})
	defer e.Close()
	s := store.New(store.WithListener(e), store.WithLoader(e))
	ctx := context.Background()

	require.NoError(t, s.LoadAll(ctx))
	_, err := s.Add(store.CategoryMonthly, "Budget")
	require.NoError(t, err)
	require.NoError(t, e.Flush(ctx))

	stored, err := b.List(ctx, store.CategoryMonthly)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "Budget", stored[0].Text)
	assert.Empty(t, e.Dirty())
}
