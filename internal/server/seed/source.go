package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dmitrijs2005/achievements/internal/logging"
)

// Session is one entry of the event's session feed.
type Session struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// SessionSource lists the sessions of an event.
type SessionSource interface {
	List(ctx context.Context, event string) ([]Session, error)
}

// HTTPSessionSource reads sessions from a JSON feed at
// <baseURL>?event=<event>. Network errors and 5xx answers are retried with
// exponential backoff; other statuses fail at once.
type HTTPSessionSource struct {
	baseURL    string
	client     *http.Client
	maxRetries int
	logger     logging.Logger

	// initialInterval of the backoff, shortened by tests.
	initialInterval time.Duration
}

func NewHTTPSessionSource(baseURL string, client *http.Client, maxRetries int, logger logging.Logger) *HTTPSessionSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSessionSource{
		baseURL:         baseURL,
		client:          client,
		maxRetries:      maxRetries,
		logger:          logger.With("module", "session_feed"),
		initialInterval: backoff.DefaultInitialInterval,
	}
}

func (s *HTTPSessionSource) List(ctx context.Context, event string) ([]Session, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid session feed url: %w", err)
	}
	q := u.Query()
	q.Set("event", event)
	u.RawQuery = q.Encode()

	var sessions []Session
	operation := func() error {
		list, err := s.fetch(ctx, u.String())
		if err != nil {
			return err
		}
		sessions = list
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initialInterval
	err = backoff.RetryNotify(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.maxRetries)), ctx),
		func(err error, d time.Duration) {
			s.logger.Warn(ctx, "session feed request failed", "event", event, "err", err, "backoff", d)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("fetching sessions of %q: %w", event, err)
	}

	return sessions, nil
}

func (s *HTTPSessionSource) fetch(ctx context.Context, target string) ([]Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("session feed answered %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, backoff.Permanent(fmt.Errorf("session feed answered %s", resp.Status))
	}

	var list []Session
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decoding session feed: %w", err))
	}
	return list, nil
}
