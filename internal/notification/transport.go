package notification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"marketalert/internal/config"
	"marketalert/internal/metrics"
)

// ResilienceOptions configures one dependency class. Each class gets its
// own breaker so a failing Slack does not trip Telegram.
type ResilienceOptions struct {
	Name            string
	AttemptTimeout  time.Duration
	MaxRetries      int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	BreakerFailures uint32
	BreakerOpen     time.Duration
	Logger          *zap.Logger
}

func ResilienceFromConfig(name string, attemptTimeout time.Duration, cfg config.ResilienceConfig, logger *zap.Logger) ResilienceOptions {
	return ResilienceOptions{
		Name:            name,
		AttemptTimeout:  attemptTimeout,
		MaxRetries:      cfg.MaxRetries,
		InitialBackoff:  cfg.InitialBackoff,
		MaxBackoff:      cfg.MaxBackoff,
		BreakerFailures: cfg.BreakerFailures,
		BreakerOpen:     cfg.BreakerOpen,
		Logger:          logger,
	}
}

// upstreamStatusError marks a response the dependency answered with but
// that counts as a failure for retries and the breaker.
type upstreamStatusError struct {
	StatusCode int
}

func (e *upstreamStatusError) Error() string {
	return fmt.Sprintf("upstream status %d", e.StatusCode)
}

// ResilientTransport retries transient failures with exponential backoff
// inside a circuit breaker. A request counts once against the breaker no
// matter how many attempts it took. When retries run out on a 5xx or 429
// the last response is returned so the caller can inspect it.
type ResilientTransport struct {
	Base    http.RoundTripper
	opts    ResilienceOptions
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewResilientTransport(base http.RoundTripper, opts ResilienceOptions) *ResilientTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if opts.Name == "" {
		opts.Name = "http"
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 200 * time.Millisecond
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = opts.InitialBackoff
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerOpen <= 0 {
		opts.BreakerOpen = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("dependency", opts.Name))

	failures := opts.BreakerFailures
	t := &ResilientTransport{Base: base, opts: opts, logger: logger}
	t.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: 1,
		Timeout:     opts.BreakerOpen,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	metrics.CircuitBreakerState.WithLabelValues(opts.Name).Set(float64(gobreaker.StateClosed))
	return t
}

// NewHTTPClient returns a client whose transport is resilient. Timeouts are
// applied per attempt by the transport; the caller's context bounds the
// whole exchange.
func NewHTTPClient(opts ResilienceOptions) *http.Client {
	return &http.Client{Transport: NewResilientTransport(nil, opts)}
}

func (t *ResilientTransport) State() gobreaker.State {
	return t.breaker.State()
}

func (t *ResilientTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		defer req.Body.Close()
	}
	out, err := t.breaker.Execute(func() (interface{}, error) {
		return t.roundTripWithRetry(req)
	})
	resp, _ := out.(*http.Response)
	var statusErr *upstreamStatusError
	if errors.As(err, &statusErr) && resp != nil {
		return resp, nil
	}
	if err != nil {
		if resp != nil {
			drain(resp)
		}
		return nil, err
	}
	return resp, nil
}

func (t *ResilientTransport) roundTripWithRetry(req *http.Request) (*http.Response, error) {
	var last *http.Response
	attempt := 0
	op := func() error {
		if last != nil {
			drain(last)
			last = nil
		}
		attempt++
		resp, err := t.attempt(req, attempt)
		if err != nil {
			if req.Context().Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		last = resp
		if retryableStatus(resp.StatusCode) {
			return &upstreamStatusError{StatusCode: resp.StatusCode}
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.opts.InitialBackoff
	b.MaxInterval = t.opts.MaxBackoff
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(t.opts.MaxRetries)), req.Context())

	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		t.logger.Debug("retrying request",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(RedactURLError(err)),
		)
	})
	return last, err
}

func (t *ResilientTransport) attempt(req *http.Request, n int) (*http.Response, error) {
	ctx := req.Context()
	cancel := context.CancelFunc(func() {})
	if t.opts.AttemptTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, t.opts.AttemptTimeout)
	}
	r := req.Clone(ctx)
	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			if n > 1 {
				cancel()
				return nil, backoff.Permanent(errors.New("request body cannot be replayed"))
			}
			r.Body = io.NopCloser(req.Body)
		} else {
			body, err := req.GetBody()
			if err != nil {
				cancel()
				return nil, backoff.Permanent(err)
			}
			r.Body = body
		}
	}
	resp, err := t.Base.RoundTrip(r)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

// RedactURLError strips the request URL from transport errors. Webhook URLs
// and bot endpoints embed secrets.
func RedactURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}
