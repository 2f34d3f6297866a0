package riot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"riftbot/internal/config"
	"riftbot/internal/constants"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"github.com/valyala/fasthttp"
)

// ErrUnauthorized is returned on 401/403. It is a credential problem, not a
// transient one: once seen, the client refuses further calls for the rest of
// the run.
var ErrUnauthorized = errors.New("riot api rejected credentials")

var errRateLimited = errors.New("riot api rate limited")

// Client wraps the Riot match-v5/account-v1/league-v4 endpoints. All calls
// self-throttle behind the dual-window limiter; absence (404) is modeled as
// nil, not an error.
type Client struct {
	apiKey      string
	regionalURL string // match-v5, account-v1 (americas/europe/asia routing)
	platformURL string // league-v4 (na1/euw1/... routing)
	client      *fasthttp.Client
	limiter     *Limiter
	logger      zerolog.Logger
	credFailed  atomic.Bool
}

type Option func(*Client)

// WithBaseURL points both routing hosts at the same base. Used by tests to
// target a local server.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.regionalURL = base
		c.platformURL = base
	}
}

func WithLimiter(l *Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

func NewClient(cfg *config.Config, logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		apiKey:      cfg.RiotAPIKey,
		regionalURL: fmt.Sprintf("https://%s.api.riotgames.com", cfg.RiotRegion),
		platformURL: fmt.Sprintf("https://%s.api.riotgames.com", platformFor(cfg.RiotRegion)),
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		limiter: NewLimiter(cfg.ShortLimitCount, cfg.ShortLimitWindow, cfg.LongLimitCount, cfg.LongLimitWindow),
		logger:  logger.With().Str("component", "riot").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// platformFor maps a regional routing value to a default platform host.
func platformFor(region string) string {
	switch region {
	case "europe":
		return "euw1"
	case "asia":
		return "kr"
	default:
		return "na1"
	}
}

func (c *Client) GetAccountByRiotID(ctx context.Context, gameName, tagLine string) (*AccountResponse, error) {
	u := fmt.Sprintf("%s/riot/account/v1/accounts/by-riot-id/%s/%s",
		c.regionalURL, url.PathEscape(gameName), url.PathEscape(tagLine))

	var account AccountResponse
	found, err := c.get(ctx, u, &account)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &account, nil
}

// ListRecentMatchIDs returns up to count match ids, most recent first.
// matchType filters server-side (e.g. "ranked"); empty means all.
func (c *Client) ListRecentMatchIDs(ctx context.Context, puuid string, count int, matchType string) ([]string, error) {
	u := fmt.Sprintf("%s/lol/match/v5/matches/by-puuid/%s/ids?start=0&count=%d",
		c.regionalURL, url.PathEscape(puuid), count)
	if matchType != "" {
		u += "&type=" + url.QueryEscape(matchType)
	}

	var ids []string
	found, err := c.get(ctx, u, &ids)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return ids, nil
}

// GetMatchDetail returns the full match, or nil when the id is unknown
// upstream.
func (c *Client) GetMatchDetail(ctx context.Context, matchID string) (*MatchResponse, error) {
	u := fmt.Sprintf("%s/lol/match/v5/matches/%s", c.regionalURL, url.PathEscape(matchID))

	var match MatchResponse
	found, err := c.get(ctx, u, &match)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &match, nil
}

func (c *Client) GetLeagueEntries(ctx context.Context, puuid string) ([]LeagueEntry, error) {
	u := fmt.Sprintf("%s/lol/league/v4/entries/by-puuid/%s", c.platformURL, url.PathEscape(puuid))

	var entries []LeagueEntry
	found, err := c.get(ctx, u, &entries)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return entries, nil
}

// get performs one throttled GET. 5xx and network failures retry with bounded
// exponential backoff; 429 honors the server's Retry-After up to its own
// bounded count; 401/403 trips the credential breaker and never retries.
func (c *Client) get(ctx context.Context, requestURL string, out any) (bool, error) {
	if c.credFailed.Load() {
		return false, ErrUnauthorized
	}

	var found bool
	var rateLimitRetries int
	backoff := retry.WithMaxRetries(constants.MaxServerRetries, retry.NewExponential(constants.RetryBackoffBase))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(requestURL)
		req.Header.SetMethod(fasthttp.MethodGet)
		req.Header.Set("X-Riot-Token", c.apiKey)

		var doErr error
		if deadline, ok := ctx.Deadline(); ok {
			doErr = c.client.DoDeadline(req, resp, deadline)
		} else {
			doErr = c.client.Do(req, resp)
		}
		if doErr != nil {
			c.logger.Warn().Err(doErr).Str("url", requestURL).Msg("request failed, will retry")
			return retry.RetryableError(doErr)
		}

		status := resp.StatusCode()
		switch {
		case status == fasthttp.StatusOK:
			found = true
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil

		case status == fasthttp.StatusNotFound:
			found = false
			return nil

		case status == fasthttp.StatusUnauthorized || status == fasthttp.StatusForbidden:
			c.credFailed.Store(true)
			c.logger.Error().Int("status", status).Msg("credential failure, halting riot api calls")
			return fmt.Errorf("status %d: %w", status, ErrUnauthorized)

		case status == fasthttp.StatusTooManyRequests:
			rateLimitRetries++
			if rateLimitRetries > constants.MaxRateLimitRetries {
				return fmt.Errorf("rate limit retries exhausted: %w", errRateLimited)
			}
			delay := retryAfter(resp)
			c.logger.Warn().Dur("retry_after", delay).Msg("rate limited by riot api")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			return retry.RetryableError(errRateLimited)

		case status >= 500:
			return retry.RetryableError(fmt.Errorf("riot api server error: %d", status))

		default:
			return fmt.Errorf("riot api unexpected status: %d", status)
		}
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

func retryAfter(resp *fasthttp.Response) time.Duration {
	if v := string(resp.Header.Peek("Retry-After")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return constants.RetryBackoffBase
}
