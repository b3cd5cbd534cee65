package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.telegram.org"

// TransportError is the single failure kind of the client: network errors,
// non-2xx statuses and responses that do not match the expected schema.
type TransportError struct {
	Method     string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("telegram %s: http %d: %v", e.Method, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("telegram %s: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Options configures a Client.
type Options struct {
	Token      string
	BaseURL    string
	HTTPClient *http.Client
	// SendRate limits sendMessage calls per second. Zero disables throttling.
	SendRate float64
	Logger   *slog.Logger
}

// Client talks to the Bot API. It performs no retries.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates a Client.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		// Per-request deadlines come from the context; see FetchUpdates.
		httpClient = &http.Client{}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.SendRate > 0 {
		burst := int(opts.SendRate)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.SendRate), burst)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		token:   opts.Token,
		limiter: limiter,
		logger:  logger,
	}
}

// FetchUpdates long-polls for updates newer than offset, waiting up to
// timeout. A poll that times out yields an empty slice and no error.
func (c *Client) FetchUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	params := url.Values{}
	params.Set("offset", strconv.FormatInt(offset, 10))
	params.Set("timeout", strconv.Itoa(secs))

	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(secs)*time.Second+10*time.Second)
	defer cancel()

	var updates []Update
	err := c.get(reqCtx, "getUpdates", params, &updates)
	if err != nil {
		if ctx.Err() == nil && isPollTimeout(err) {
			c.logger.Debug("telegram_get_updates_timeout", "offset", offset)
			return nil, nil
		}
		return nil, err
	}
	return updates, nil
}

// SendMessage delivers text to chatID and returns the provider's echo.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) (*Message, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Method: "sendMessage", Err: err}
	}
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("text", text)

	var out Message
	if err := c.get(ctx, "sendMessage", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the bot account; used to validate the token at startup.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out User
	if err := c.get(ctx, "getMe", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, method string, params url.Values, out any) error {
	u := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &TransportError{Method: method, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Method: method, Err: redactToken(err, c.token)}
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{
			Method:     method,
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(raw))),
		}
	}
	if readErr != nil {
		return &TransportError{Method: method, StatusCode: resp.StatusCode, Err: readErr}
	}
	if err := decodeEnvelope(raw, out); err != nil {
		return &TransportError{Method: method, StatusCode: resp.StatusCode, Err: err}
	}
	return nil
}

func isPollTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// redactToken keeps the bot token out of logged url.Error messages.
func redactToken(err error, token string) error {
	if token == "" {
		return err
	}
	msg := err.Error()
	if !strings.Contains(msg, token) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(msg, token, "<token>"), err: err}
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }
