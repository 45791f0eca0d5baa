package readiness

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/pkg/errors"
)

// Checker answers whether a service is ready right now. It must not block
// beyond ctx.
type Checker interface {
	IsReady(ctx context.Context) (bool, error)
}

type CheckerFunc func(ctx context.Context) (bool, error)

func (f CheckerFunc) IsReady(ctx context.Context) (bool, error) { return f(ctx) }

// LogSource returns a service's log, one timestamp-prefixed entry per line.
type LogSource interface {
	ServiceLogs(ctx context.Context, service string) (string, error)
}

// LogMarker is ready once the service log contains Marker verbatim.
type LogMarker struct {
	Source  LogSource
	Service string
	Marker  string
	// Since drops entries logged before it; zero keeps everything.
	Since time.Time
}

func (m LogMarker) IsReady(ctx context.Context) (bool, error) {
	if m.Source == nil {
		return false, errors.New("log marker without source")
	}
	logs, err := m.Source.ServiceLogs(ctx, m.Service)
	if err != nil {
		return false, errors.Wrapf(err, "read %s logs", m.Service)
	}
	return ContainsMarker(logs, m.Marker, m.Since), nil
}

// ContainsMarker reports whether any log line newer than since contains
// marker. Matching is case- and whitespace-exact.
func ContainsMarker(logs string, marker string, since time.Time) bool {
	if marker == "" {
		return false
	}
	for _, line := range strings.Split(logs, "\n") {
		if !since.IsZero() {
			if ts, rest, ok := splitTimestamp(line); ok {
				if ts.Before(since) {
					continue
				}
				line = rest
			}
		}
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

func splitTimestamp(line string) (time.Time, string, bool) {
	head, rest, ok := strings.Cut(line, " ")
	if !ok || head == "" {
		return time.Time{}, line, false
	}
	ts, err := dateparse.ParseAny(head)
	if err != nil {
		return time.Time{}, line, false
	}
	return ts, rest, true
}

// HTTPCheck is ready when URL answers 2xx and, if BodyContains is set, the
// body contains it.
type HTTPCheck struct {
	URL          string
	BodyContains string
	Client       *http.Client
}

func (h HTTPCheck) IsReady(ctx context.Context) (bool, error) {
	if h.URL == "" {
		return false, errors.New("http check without url")
	}
	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return false, errors.Wrap(err, "build health request")
	}
	resp, err := client.Do(req)
	if err != nil {
		// Not listening yet is the normal not-ready case.
		return false, nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, nil
	}
	if h.BodyContains == "" {
		return true, nil
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false, nil
	}
	return strings.Contains(string(b), h.BodyContains), nil
}
