package firstrun

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// HTTPError is a configuration call that got a non-2xx answer.
type HTTPError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.Status)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// NewHTTPClient returns a client that retries a call up to retries times
// only while it could not be delivered, and hands the last response back
// instead of an opaque "giving up" error. Credential changes are not
// idempotent, so any received status, 5xx included, is final.
func NewHTTPClient(retries int) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = retries
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 5 * time.Second
	c.HTTPClient.Timeout = 30 * time.Second
	c.Logger = zerologLeveled{}
	c.CheckRetry = retryUndelivered
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return c
}

// retryUndelivered retries only dial failures, where the server never saw
// the request.
func retryUndelivered(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err == nil || resp != nil {
		return false, nil
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true, nil
	}
	return false, nil
}

// zerologLeveled adapts the global zerolog logger to retryablehttp.LeveledLogger.
type zerologLeveled struct{}

var _ retryablehttp.LeveledLogger = zerologLeveled{}

func (zerologLeveled) Error(msg string, kv ...interface{}) { logKV(log.Error(), msg, kv) }
func (zerologLeveled) Info(msg string, kv ...interface{})  { logKV(log.Debug(), msg, kv) }
func (zerologLeveled) Debug(msg string, kv ...interface{}) { logKV(log.Trace(), msg, kv) }
func (zerologLeveled) Warn(msg string, kv ...interface{})  { logKV(log.Warn(), msg, kv) }

func logKV(ev *zerolog.Event, msg string, kv []interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(k, kv[i+1])
	}
	ev.Msg(msg)
}

type basicAuth struct {
	user, pass string
}

func postForm(ctx context.Context, c *retryablehttp.Client, endpoint string, form url.Values, auth *basicAuth) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrapf(err, "build request %s", endpoint)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if auth != nil {
		req.SetBasicAuth(auth.user, auth.pass)
	}

	resp, err := c.Do(req)
	if err != nil {
		return errors.Wrapf(err, "POST %s", endpoint)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &HTTPError{Method: http.MethodPost, URL: endpoint, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
