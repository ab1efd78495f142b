package openai

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var errRetryableStatus = errors.New("retryable status")

// retryTransport retries transport errors, 429 and 5xx responses with
// exponential backoff. When retries run out the last failed response is
// returned as is so the API client reports it.
type retryTransport struct {
	next       http.RoundTripper
	maxRetries int
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	policy := &retryAfter{BackOff: newBackOff()}
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(max(t.maxRetries, 0))), req.Context())

	var last *http.Response
	err := backoff.Retry(func() error {
		attempt, err := rewind(req)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := t.next.RoundTrip(attempt)
		if err != nil {
			last = nil
			return err
		}
		if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
			last = resp
			return nil
		}
		policy.wait = parseRetryAfter(resp.Header.Get("Retry-After"))
		last = buffer(resp)
		return errRetryableStatus
	}, b)
	if err != nil && !errors.Is(err, errRetryableStatus) {
		return nil, err
	}
	return last, nil
}

// newBackOff starts at 200ms and never waits longer than 5s between attempts.
func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.RandomizationFactor = 0.2
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// retryAfter lets a server-provided Retry-After replace the next interval.
type retryAfter struct {
	backoff.BackOff
	wait time.Duration
}

func (r *retryAfter) NextBackOff() time.Duration {
	d := r.BackOff.NextBackOff()
	if d != backoff.Stop && r.wait > 0 {
		d = r.wait
	}
	r.wait = 0
	return d
}

func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func rewind(req *http.Request) (*http.Request, error) {
	r := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		r.Body = body
	}
	return r, nil
}

// buffer swaps the body for an in-memory copy so the connection is released
// while the response may still be handed back.
func buffer(resp *http.Response) *http.Response {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(data))
	return resp
}
