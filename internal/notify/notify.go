// Package notify delivers push notifications through the Pushover HTTP API.
//
// A Transport is opened once at startup and closed at shutdown. Each Send
// posts a single form-encoded message and retries transient failures with
// exponential backoff under the caller's context.
package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v5"
)

const (
	// MaxMessageLen is the longest message Pushover accepts, in runes.
	MaxMessageLen = 1024

	// MaxBodyLen bounds the encoded request body.
	MaxBodyLen = 16 << 10

	// DefaultEndpoint is the Pushover messages API.
	DefaultEndpoint = "https://api.pushover.net/1/messages.json"

	maxDrain = 64 << 10
)

var (
	ErrTransport      = errors.New("notify: transport failure")
	ErrMessageTooLong = errors.New("notify: message too long")
	ErrClosed         = errors.New("notify: transport closed")
)

// Message is a validated notification text.
type Message struct {
	text string
}

// NewMessage checks s against the Pushover limits.
func NewMessage(s string) (Message, error) {
	if strings.TrimSpace(s) == "" {
		return Message{}, fmt.Errorf("notify: empty message")
	}
	if !utf8.ValidString(s) {
		return Message{}, fmt.Errorf("notify: message is not valid UTF-8")
	}
	if n := utf8.RuneCountInString(s); n > MaxMessageLen {
		return Message{}, fmt.Errorf("%w: %d runes, limit %d", ErrMessageTooLong, n, MaxMessageLen)
	}
	return Message{text: s}, nil
}

func (m Message) String() string { return m.text }

// Config carries what Open needs. Zero Timeout and MaxTries take defaults.
type Config struct {
	Endpoint string
	Token    string
	User     string
	Timeout  time.Duration
	MaxTries uint
}

// Transport posts messages to a Pushover-compatible endpoint.
type Transport struct {
	endpoint string
	token    string
	user     string
	maxTries uint
	client   *http.Client
	log      *slog.Logger
	closed   atomic.Bool

	// newBackOff is swapped in tests to avoid real waits.
	newBackOff func() backoff.BackOff
}

// Open validates cfg and builds the HTTP client used for every Send.
func Open(cfg Config, logger *slog.Logger) (*Transport, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("notify: bad endpoint %q", cfg.Endpoint)
	}
	if cfg.Token == "" || cfg.User == "" {
		return nil, fmt.Errorf("notify: token and user are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 3
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}

	return &Transport{
		endpoint: cfg.Endpoint,
		token:    cfg.Token,
		user:     cfg.User,
		maxTries: cfg.MaxTries,
		client:   &http.Client{Timeout: cfg.Timeout, Transport: tr},
		log:      logger,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
	}, nil
}

// Send posts m, retrying network errors, 429 and 5xx responses. Other 4xx
// responses fail immediately. Every failure wraps ErrTransport.
func (t *Transport) Send(ctx context.Context, m Message) error {
	if t.closed.Load() {
		return ErrClosed
	}
	if m.text == "" {
		return fmt.Errorf("notify: empty message")
	}

	form := url.Values{}
	form.Set("token", t.token)
	form.Set("user", t.user)
	form.Set("message", m.text)
	body := form.Encode()
	if len(body) > MaxBodyLen {
		return fmt.Errorf("%w: encoded body is %d bytes", ErrMessageTooLong, len(body))
	}

	attempt := 0
	op := func() (int, error) {
		attempt++
		return t.post(ctx, body)
	}
	notify := func(err error, wait time.Duration) {
		t.log.Warn("notification attempt failed", "attempt", attempt, "retry_in", wait, "err", err)
	}

	status, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(t.newBackOff()),
		backoff.WithMaxTries(t.maxTries),
		backoff.WithNotify(notify),
	)
	if err != nil {
		if !errors.Is(err, ErrTransport) {
			err = fmt.Errorf("%w: %w", ErrTransport, err)
		}
		return err
	}
	t.log.Info("notification delivered", "status", status, "attempts", attempt)
	return nil
}

func (t *Transport) post(ctx context.Context, body string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, strings.NewReader(body))
	if err != nil {
		return 0, backoff.Permanent(fmt.Errorf("%w: %w", ErrTransport, err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, backoff.Permanent(fmt.Errorf("%w: %w", ErrTransport, err))
		}
		return 0, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp.StatusCode, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return resp.StatusCode, fmt.Errorf("%w: status %d", ErrTransport, resp.StatusCode)
	default:
		return resp.StatusCode, backoff.Permanent(fmt.Errorf("%w: status %d", ErrTransport, resp.StatusCode))
	}
}

// Close releases idle connections. Send fails with ErrClosed afterwards.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.client.CloseIdleConnections()
	return nil
}
