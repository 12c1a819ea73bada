package llm

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 2 * time.Second
)

// RateLimitError reports that the API is throttling us. RetryAfter is the
// delay the API suggested, zero when it gave none.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("llm rate limited, retry after %s: %s", e.RetryAfter, e.Message)
	}
	return "llm rate limited: " + e.Message
}

// IsRateLimited reports whether err carries a RateLimitError.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

type RetryPolicy struct {
	// MaxRetries counts retries after the first attempt. Negative disables
	// retrying.
	MaxRetries   int
	DefaultDelay time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxRetries == 0 {
		p.MaxRetries = DefaultMaxRetries
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.DefaultDelay <= 0 {
		p.DefaultDelay = DefaultRetryDelay
	}
	if p.sleep == nil {
		p.sleep = sleepContext
	}
	return p
}

// withRetry runs fn until it succeeds, fails with anything other than a
// RateLimitError, or the retry budget runs out.
func withRetry[T any](ctx context.Context, p RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()
	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		var rl *RateLimitError
		if !errors.As(err, &rl) || attempt >= p.MaxRetries {
			return result, err
		}
		delay := rl.RetryAfter
		if delay <= 0 {
			delay = p.DefaultDelay
		}
		log.Printf("llm rate limited, retry %d/%d in %s", attempt+1, p.MaxRetries, delay)
		if err := p.sleep(ctx, delay); err != nil {
			return result, err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// parseRetryAfterHeader reads delta-seconds or an HTTP date.
func parseRetryAfterHeader(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
