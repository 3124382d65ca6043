package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/achievements/internal/server/config"
	"github.com/dmitrijs2005/achievements/internal/server/repositories/achievements"
	"github.com/dmitrijs2005/achievements/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig(feedURL string) *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.StoreBackend = config.BackendMemory
	c.EventID = "ev24"
	c.SessionFeedURL = feedURL
	c.LogLevel = "error"
	return c
}

func newFeed(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"s1","name":"Opening","kind":"Keynote"}]`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestApp_RunSeedsOnce(t *testing.T) {
	feed := newFeed(t)
	ctx := context.Background()

	app, err := NewApp(ctx, memoryConfig(feed.URL))
	require.NoError(t, err)
	require.NoError(t, app.Run(ctx))

	list, err := app.Service().List(ctx, services.ListQuery{})
	require.NoError(t, err)

	var ids []string
	for _, a := range list {
		ids = append(ids, a.ID)
	}
	assert.ElementsMatch(t, []string{"session-s1", "submitted-cv-ev24"}, ids)
}

func TestApp_RunWithoutFeed(t *testing.T) {
	ctx := context.Background()

	app, err := NewApp(ctx, memoryConfig(""))
	require.NoError(t, err)
	assert.Nil(t, app.importer)
	assert.NoError(t, app.Run(ctx))
}

func TestApp_ScheduledRunStopsOnCancel(t *testing.T) {
	feed := newFeed(t)
	cfg := memoryConfig(feed.URL)
	cfg.SeedSchedule = "@every 1h"

	app, err := NewApp(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, err := app.Service().Get(context.Background(), achievements.ByID("submitted-cv-ev24"))
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewApp_UnknownBackend(t *testing.T) {
	cfg := memoryConfig("")
	cfg.StoreBackend = "sqlite"

	_, err := NewApp(context.Background(), cfg)
	assert.Error(t, err)
}
