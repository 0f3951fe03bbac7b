package github

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"devpulse/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	defaultMaxRetries = 3
	maxRetryAfter     = 30 * time.Second
)

var errTooManyRequests = errors.New("github: too many requests")

// retryTransport retries requests answered with 429 using exponential backoff
// with jitter. A Retry-After header, when present, replaces the next delay.
// After the last attempt the final 429 response is handed back unchanged.
type retryTransport struct {
	next       http.RoundTripper
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

func newRetryTransport(next http.RoundTripper, maxRetries uint64, initial time.Duration) *retryTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &retryTransport{
		next:       next,
		maxRetries: maxRetries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = initial
			b.RandomizationFactor = 0.5
			b.Multiplier = 2
			b.MaxElapsedTime = 0
			return b
		},
	}
}

// retryAfterBackOff lets a server supplied delay override one step of the wrapped policy.
type retryAfterBackOff struct {
	backoff.BackOff
	override    time.Duration
	hasOverride bool
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	d := b.BackOff.NextBackOff()
	if d == backoff.Stop {
		return d
	}
	if b.hasOverride {
		d, b.hasOverride = b.override, false
	}
	return d
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	policy := &retryAfterBackOff{BackOff: t.newBackOff()}
	b := backoff.WithContext(backoff.WithMaxRetries(policy, t.maxRetries), req.Context())

	var (
		resp    *http.Response
		attempt int
	)
	op := func() error {
		attempt++
		r := req
		if attempt > 1 && req.Body != nil {
			if req.GetBody == nil {
				return backoff.Permanent(errTooManyRequests)
			}
			body, err := req.GetBody()
			if err != nil {
				return backoff.Permanent(err)
			}
			r = req.Clone(req.Context())
			r.Body = body
		}

		res, err := t.next.RoundTrip(r)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp = res
		if res.StatusCode != http.StatusTooManyRequests {
			return nil
		}

		// Buffer the body so the last 429 can still be returned to the caller.
		buf, _ := io.ReadAll(res.Body)
		res.Body.Close()
		res.Body = io.NopCloser(bytes.NewReader(buf))

		if wait, ok := parseRetryAfter(res.Header.Get("Retry-After")); ok {
			policy.override, policy.hasOverride = wait, true
		}
		logger.SystemLogger.Warn("GitHub rate limited request",
			zap.String("path", req.URL.Path), zap.Int("attempt", attempt))
		return errTooManyRequests
	}

	err := backoff.Retry(op, b)
	if err != nil && !errors.Is(err, errTooManyRequests) {
		return nil, err
	}
	return resp, nil
}

// parseRetryAfter accepts the delay-seconds form and the HTTP-date form.
func parseRetryAfter(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	var d time.Duration
	if secs, err := strconv.Atoi(v); err == nil {
		d = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(v); err == nil {
		d = time.Until(at)
	} else {
		return 0, false
	}
	if d < 0 {
		d = 0
	}
	if d > maxRetryAfter {
		d = maxRetryAfter
	}
	return d, true
}
