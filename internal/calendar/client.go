package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/calsync/internal/models"
	"github.com/desertthunder/calsync/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	"google.golang.org/api/calendar/v3"
)

const (
	defaultBaseURL = "https://www.googleapis.com/calendar/v3"

	// maxListPages caps the token-acquisition pagination loop.
	maxListPages = 50

	// defaultRetryAfter is the wait applied when a 429 response carries no
	// Retry-After header.
	defaultRetryAfter = 5 * time.Second

	maxResultsPerPage = 250
)

// ListOptions bounds an event listing. When ContinuationToken is set the
// time bounds are omitted from the request entirely; the provider rejects
// a token combined with a time range.
type ListOptions struct {
	TimeMin           time.Time
	TimeMax           time.Time
	ContinuationToken string
	PageToken         string
}

// ListResult is one page of events plus the provider's cursors. The
// continuation token appears only on the final page of an enumeration.
type ListResult struct {
	Items             []*calendar.Event
	NextPageToken     string
	ContinuationToken string
}

// Channel describes a registered push-notification subscription.
type Channel struct {
	ID         string
	ResourceID string
	Expiration time.Time
}

// Client is the remote calendar contract consumed by the sync engine.
type Client interface {
	// Authorized reports whether real credentials are configured. A false
	// return means calls run in non-destructive simulation mode.
	Authorized() bool

	// CreateEvent creates a remote event for the task and returns its id.
	CreateEvent(ctx context.Context, task *models.Task, project *models.Project) (string, error)

	// UpdateEvent rewrites the remote event from the task's current state.
	UpdateEvent(ctx context.Context, eventID string, task *models.Task, project *models.Project) error

	// DeleteEvent removes a remote event.
	DeleteEvent(ctx context.Context, eventID string) error

	// GetEvent fetches a single remote event.
	GetEvent(ctx context.Context, eventID string) (*calendar.Event, error)

	// ListEvents fetches one page of events per the options.
	ListEvents(ctx context.Context, opts ListOptions) (*ListResult, error)

	// ListEventsForFreshToken enumerates the entire calendar with no time
	// bounds until the provider yields a continuation token.
	ListEventsForFreshToken(ctx context.Context) ([]*calendar.Event, string, error)

	// Watch registers a push-notification channel for the calendar.
	Watch(ctx context.Context, channelID, webhookURL string) (*Channel, error)

	// StopChannel tears down a push-notification channel.
	StopChannel(ctx context.Context, channelID, resourceID string) error
}

// GoogleClient implements [Client] against the Google Calendar v3 REST API
// with bearer-token auth, client-side pacing, and a single 429 retry.
type GoogleClient struct {
	baseURL    string
	calendarID string
	httpClient *http.Client
	tokens     oauth2.TokenSource
	limiter    *rate.Limiter
	sleep      func(time.Duration)
	logger     *log.Logger
}

// GoogleClientOpts configures a [GoogleClient].
type GoogleClientOpts struct {
	BaseURL    string
	CalendarID string
	HTTPClient *http.Client
	Tokens     oauth2.TokenSource
	RateLimit  float64 // requests per second; <= 0 disables pacing
	Sleep      func(time.Duration)
	Logger     *log.Logger
}

// NewGoogleClient creates a [GoogleClient] with the provided options.
func NewGoogleClient(opts GoogleClientOpts) *GoogleClient {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.CalendarID == "" {
		opts.CalendarID = "primary"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	return &GoogleClient{
		baseURL:    opts.BaseURL,
		calendarID: opts.CalendarID,
		httpClient: opts.HTTPClient,
		tokens:     opts.Tokens,
		limiter:    limiter,
		sleep:      opts.Sleep,
		logger:     opts.Logger,
	}
}

// NewClient builds the remote client from configuration: a [GoogleClient]
// when a bearer credential is configured, otherwise a [SimulatedClient].
func NewClient(cfg *shared.Config, logger *log.Logger) Client {
	google := cfg.Credentials.Google

	if google.AccessToken == "" && google.RefreshToken == "" {
		return NewSimulatedClient(logger)
	}

	var tokens oauth2.TokenSource
	if google.RefreshToken != "" && google.ClientID != "" {
		tokens = google.OAuth2Config().TokenSource(context.Background(), google.Token())
	} else {
		tokens = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: google.AccessToken})
	}

	return NewGoogleClient(GoogleClientOpts{
		CalendarID: google.CalendarID,
		Tokens:     tokens,
		RateLimit:  cfg.Sync.RateLimit,
		Logger:     logger,
	})
}

// Authorized reports that real credentials back this client.
func (c *GoogleClient) Authorized() bool {
	return true
}

// send performs one HTTP attempt with the bearer credential attached.
func (c *GoogleClient) send(ctx context.Context, method, fullURL string, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	token, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, err)
	}

	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	return resp, nil
}

// do performs an authenticated request against the calendar API. A 429 is
// retried exactly once after honoring Retry-After; a second 429 is fatal.
func (c *GoogleClient) do(ctx context.Context, method, path string, query url.Values, body any, result any) error {
	if c.tokens == nil {
		return fmt.Errorf("%w: no token source configured", shared.ErrNotAuthenticated)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
	}

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	resp, err := c.send(ctx, method, fullURL, payload)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := retryAfter(resp)
		drain(resp)

		c.logger.Warn("rate limited by provider, retrying once", "wait", wait, "path", path)
		c.sleep(wait)

		resp, err = c.send(ctx, method, fullURL, payload)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			drain(resp)
			return fmt.Errorf("%w: still throttled after one retry", shared.ErrRateLimited)
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if result == nil {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil

	case resp.StatusCode == http.StatusUnauthorized:
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: status 401 from %s", shared.ErrReauthRequired, path)

	case resp.StatusCode == http.StatusGone:
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: status 410 from %s", shared.ErrSyncTokenExpired, path)

	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: status 404 from %s", shared.ErrEventNotFound, path)

	default:
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: status %d from %s", shared.ErrAPIRequest, resp.StatusCode, path)
	}
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// retryAfter reads the Retry-After header in seconds, defaulting when the
// header is absent or malformed.
func retryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return defaultRetryAfter
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return defaultRetryAfter
	}
	return time.Duration(seconds) * time.Second
}

func (c *GoogleClient) eventsPath() string {
	return fmt.Sprintf("/calendars/%s/events", url.PathEscape(c.calendarID))
}

// CreateEvent creates a remote event for the task and returns its id.
func (c *GoogleClient) CreateEvent(ctx context.Context, task *models.Task, project *models.Project) (string, error) {
	event, err := TaskToEvent(task, project)
	if err != nil {
		return "", err
	}

	var created calendar.Event
	if err := c.do(ctx, http.MethodPost, c.eventsPath(), nil, event, &created); err != nil {
		return "", err
	}
	if created.Id == "" {
		return "", fmt.Errorf("%w: provider returned no event id", shared.ErrAPIRequest)
	}

	return created.Id, nil
}

// UpdateEvent rewrites the remote event from the task's current state.
func (c *GoogleClient) UpdateEvent(ctx context.Context, eventID string, task *models.Task, project *models.Project) error {
	event, err := TaskToEvent(task, project)
	if err != nil {
		return err
	}

	path := c.eventsPath() + "/" + url.PathEscape(eventID)
	return c.do(ctx, http.MethodPut, path, nil, event, nil)
}

// DeleteEvent removes a remote event.
func (c *GoogleClient) DeleteEvent(ctx context.Context, eventID string) error {
	path := c.eventsPath() + "/" + url.PathEscape(eventID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// GetEvent fetches a single remote event.
func (c *GoogleClient) GetEvent(ctx context.Context, eventID string) (*calendar.Event, error) {
	path := c.eventsPath() + "/" + url.PathEscape(eventID)

	var event calendar.Event
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &event); err != nil {
		return nil, err
	}

	return &event, nil
}

// ListEvents fetches one page of events. With a continuation token only the
// token (plus any page token) is sent; otherwise the time bounds apply and
// cancelled events are included so deletions propagate.
func (c *GoogleClient) ListEvents(ctx context.Context, opts ListOptions) (*ListResult, error) {
	query := url.Values{}
	query.Set("maxResults", strconv.Itoa(maxResultsPerPage))
	query.Set("singleEvents", "true")

	if opts.ContinuationToken != "" {
		query.Set("syncToken", opts.ContinuationToken)
	} else {
		query.Set("showDeleted", "true")
		if !opts.TimeMin.IsZero() {
			query.Set("timeMin", opts.TimeMin.Format(time.RFC3339))
		}
		if !opts.TimeMax.IsZero() {
			query.Set("timeMax", opts.TimeMax.Format(time.RFC3339))
		}
	}
	if opts.PageToken != "" {
		query.Set("pageToken", opts.PageToken)
	}

	var page calendar.Events
	if err := c.do(ctx, http.MethodGet, c.eventsPath(), query, nil, &page); err != nil {
		return nil, err
	}

	return &ListResult{
		Items:             page.Items,
		NextPageToken:     page.NextPageToken,
		ContinuationToken: page.NextSyncToken,
	}, nil
}

// ListEventsForFreshToken acquires a continuation token by enumerating the
// entire calendar. The provider only returns a token once the whole result
// set has been paged through, so this loops with no time bounds and no
// ordering, following nextPageToken until a token arrives or the page cap
// is hit.
func (c *GoogleClient) ListEventsForFreshToken(ctx context.Context) ([]*calendar.Event, string, error) {
	return listUntilToken(ctx, maxListPages, func(pageToken string) (*ListResult, error) {
		query := url.Values{}
		query.Set("maxResults", strconv.Itoa(maxResultsPerPage))
		query.Set("singleEvents", "true")
		query.Set("showDeleted", "true")
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}

		var page calendar.Events
		if err := c.do(ctx, http.MethodGet, c.eventsPath(), query, nil, &page); err != nil {
			return nil, err
		}

		return &ListResult{
			Items:             page.Items,
			NextPageToken:     page.NextPageToken,
			ContinuationToken: page.NextSyncToken,
		}, nil
	})
}

// listUntilToken drives the pagination-until-token loop with an injected
// page fetch and a hard iteration cap.
func listUntilToken(ctx context.Context, maxPages int, fetch func(pageToken string) (*ListResult, error)) ([]*calendar.Event, string, error) {
	var (
		items     []*calendar.Event
		pageToken string
	)

	for page := 0; page < maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, "", fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}

		result, err := fetch(pageToken)
		if err != nil {
			return nil, "", err
		}

		items = append(items, result.Items...)

		if result.ContinuationToken != "" {
			return items, result.ContinuationToken, nil
		}
		if result.NextPageToken == "" {
			return nil, "", fmt.Errorf("%w: enumeration ended without a token", shared.ErrNoSyncToken)
		}
		pageToken = result.NextPageToken
	}

	return nil, "", fmt.Errorf("%w: no token after %d pages", shared.ErrNoSyncToken, maxPages)
}

// Watch registers a push-notification channel for the calendar.
func (c *GoogleClient) Watch(ctx context.Context, channelID, webhookURL string) (*Channel, error) {
	if channelID == "" || webhookURL == "" {
		return nil, fmt.Errorf("%w: channel id and webhook URL are required", shared.ErrInvalidInput)
	}

	request := &calendar.Channel{
		Id:      channelID,
		Type:    "web_hook",
		Address: webhookURL,
	}

	var registered calendar.Channel
	if err := c.do(ctx, http.MethodPost, c.eventsPath()+"/watch", nil, request, &registered); err != nil {
		return nil, err
	}

	return &Channel{
		ID:         registered.Id,
		ResourceID: registered.ResourceId,
		Expiration: time.UnixMilli(registered.Expiration),
	}, nil
}

// StopChannel tears down a push-notification channel.
func (c *GoogleClient) StopChannel(ctx context.Context, channelID, resourceID string) error {
	request := &calendar.Channel{
		Id:         channelID,
		ResourceId: resourceID,
	}
	return c.do(ctx, http.MethodPost, "/channels/stop", nil, request, nil)
}
