// Package scores fetches authoritative game results from the external
// score source and maps its team names onto internal identifiers.
package scores

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/okian/pickem/internal/domain/model"
	"github.com/okian/pickem/pkg/logger"
)

// Default client configuration constants.
const (
	defaultTimeout = 10 * time.Second
)

// Result is one game's authoritative state after team mapping. Teams
// carry internal identifiers; reconciliation pairs results with stored
// games by (home, away).
type Result struct {
	HomeTeam  string
	AwayTeam  string
	Status    model.GameStatus
	HomeScore int
	AwayScore int
}

// Winner returns the internal id of the winning team, or "" on a tie
// or a non-final status. A missing winner is a logic failure the
// scheduler skips rather than scores.
func (r Result) Winner() string {
	if r.Status != model.StatusFinal {
		return ""
	}
	switch {
	case r.HomeScore > r.AwayScore:
		return r.HomeTeam
	case r.AwayScore > r.HomeScore:
		return r.AwayTeam
	default:
		return ""
	}
}

// Source is what the reconciliation scheduler fetches from. Grouped by
// week so one pass covering a game week costs one external call.
type Source interface {
	FetchWeek(ctx context.Context, week int) ([]Result, error)
}

// TeamMapper resolves an external team name or abbreviation to the
// internal identifier. The lookup table itself is owned by the outer
// application's static-data layer.
type TeamMapper interface {
	MapTeam(external string) (string, bool)
}

// TeamMapperFunc adapts a plain function to TeamMapper.
type TeamMapperFunc func(external string) (string, bool)

// MapTeam implements TeamMapper.
func (f TeamMapperFunc) MapTeam(external string) (string, bool) { return f(external) }

// wireGame mirrors the external source's per-game JSON shape.
type wireGame struct {
	HomeTeam  string `json:"home_team"`
	AwayTeam  string `json:"away_team"`
	Status    string `json:"status"`
	HomeScore int    `json:"home_score"`
	AwayScore int    `json:"away_score"`
}

// Client fetches weekly scoreboards over HTTP. Every request carries a
// timeout so one slow upstream call cannot stall a reconciliation pass.
type Client struct {
	baseURL string
	mapper  TeamMapper
	httpc   *http.Client
	logger  logger.Logger
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpc.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpc = h
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a score source client for baseURL.
func NewClient(baseURL string, mapper TeamMapper, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		mapper:  mapper,
		httpc:   &http.Client{Timeout: defaultTimeout},
		logger:  logger.Named("scores"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchWeek retrieves the scoreboard for one week and maps team names.
// A game whose teams cannot be mapped is dropped from the result and
// logged; reconciliation will retry it next pass.
func (c *Client) FetchWeek(ctx context.Context, week int) ([]Result, error) {
	u, err := url.Parse(c.baseURL + "/scores")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSource, err)
	}
	q := u.Query()
	q.Set("week", strconv.Itoa(week))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSource, err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode)
	}

	var wire []wireGame
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	results := make([]Result, 0, len(wire))
	for _, g := range wire {
		home, okHome := c.mapper.MapTeam(g.HomeTeam)
		away, okAway := c.mapper.MapTeam(g.AwayTeam)
		if !okHome || !okAway {
			c.logger.Warn(ctx, "unmapped team in scoreboard; skipping game",
				logger.String("home", g.HomeTeam),
				logger.String("away", g.AwayTeam),
				logger.Int("week", week),
			)
			continue
		}
		status := model.GameStatus(g.Status)
		switch status {
		case model.StatusScheduled, model.StatusInProgress, model.StatusFinal:
		default:
			c.logger.Warn(ctx, "unknown game status; skipping game",
				logger.String("status", g.Status),
				logger.Int("week", week),
			)
			continue
		}
		results = append(results, Result{
			HomeTeam:  home,
			AwayTeam:  away,
			Status:    status,
			HomeScore: g.HomeScore,
			AwayScore: g.AwayScore,
		})
	}
	return results, nil
}
