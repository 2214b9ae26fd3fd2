package repository

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/provisio/prov/internal/output"
)

// maxBackoff caps both the doubling delay and a server's Retry-After.
const maxBackoff = 30 * time.Second

// backoff is the retry policy of an http repository.
type backoff struct {
	attempts int
	delay    time.Duration
}

// transientError marks a request failure worth another attempt.
type transientError struct {
	err   error
	after time.Duration
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// run calls fn until it succeeds, fails permanently, or the attempts are
// spent. The wait doubles after each transient failure unless the server
// asked for a specific one.
func (b backoff) run(ctx context.Context, location, rel string, fn func() error) error {
	attempts := max(b.attempts, 1)
	delay := b.delay

	var err error
	for i := range attempts {
		if err = fn(); err == nil {
			return nil
		}
		var te *transientError
		if !errors.As(err, &te) {
			return err
		}
		if i == attempts-1 {
			break
		}

		wait := delay
		if te.after > 0 {
			wait = te.after
		}
		wait = min(wait, maxBackoff)
		output.Debug("retrying repository request",
			"repository", location, "path", rel, "attempt", i+2, "wait", wait, "err", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		delay = min(delay*2, maxBackoff)
	}
	return err
}

// retryAfter reads a Retry-After header in either seconds or http-date form.
func retryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return max(time.Duration(secs)*time.Second, 0)
	}
	if t, err := http.ParseTime(v); err == nil {
		return max(time.Until(t), 0)
	}
	return 0
}
