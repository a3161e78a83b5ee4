// Package delivery posts headlines to the internal news sink.
//
// A delivery is a single authenticated request. There is no retry and no
// queue: a failed item is reported to the caller and is otherwise lost.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"tgrelay/internal/headline"
	logx "tgrelay/pkg/logx"
)

// UserAgent is sent with every sink request.
const UserAgent = "tgrelay/1 (+news-relay)"

const maxErrorBody = 2 << 10

type Config struct {
	URL        string
	Token      string
	Timeout    time.Duration // default 10s; ignored when HTTPClient is set
	RatePerSec int           // 0 disables the cap
	HTTPClient *http.Client
}

// Request is the wire payload.
type Request struct {
	Headline string `json:"headline"`
	URL      string `json:"url,omitempty"`
}

// StatusError is returned when the sink answers with anything but 200.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sink returned %d: %s", e.Code, e.Body)
}

// transportError hides the token in its message but keeps the cause
// reachable, so errors.Is still matches context errors.
type transportError struct {
	msg string
	err error
}

func (e *transportError) Error() string { return e.msg }
func (e *transportError) Unwrap() error { return e.err }

type Client struct {
	url     string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger
	scrub   *strings.Replacer
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("delivery: sink url is empty")
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("delivery: sink token is empty")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	c := &Client{
		url:   strings.TrimSpace(cfg.URL),
		token: cfg.Token,
		http:  hc,
		log:   log,
		scrub: strings.NewReplacer(cfg.Token, "[REDACTED]"),
	}
	if cfg.RatePerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}
	return c, nil
}

// Deliver sends h to the sink. It returns nil only for an HTTP 200.
func (c *Client) Deliver(ctx context.Context, h headline.Headline) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("delivery: rate wait: %w", err)
		}
	}

	body, err := json.Marshal(Request{Headline: h.Text, URL: h.URL})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("delivery: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return &transportError{msg: "delivery: " + c.scrub.Replace(err.Error()), err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Body: c.scrub.Replace(strings.TrimSpace(string(b)))}
	}
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	c.log.Debug("delivered", logx.String("headline", preview(h.Text)), logx.Bool("has_url", h.URL != ""))
	return nil
}

// preview shortens s for log lines.
func preview(s string) string {
	const n = 60
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
