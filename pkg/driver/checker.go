package driver

import (
	"time"

	"github.com/go-go-golems/democtl/pkg/catalog"
	"github.com/go-go-golems/democtl/pkg/readiness"
	"github.com/pkg/errors"
)

// ReadinessKind selects how readiness is detected.
type ReadinessKind string

const (
	ReadinessLogs ReadinessKind = "logs"
	ReadinessHTTP ReadinessKind = "http"
)

func ParseReadinessKind(s string) (ReadinessKind, error) {
	switch ReadinessKind(s) {
	case "", ReadinessLogs:
		return ReadinessLogs, nil
	case ReadinessHTTP:
		return ReadinessHTTP, nil
	default:
		return "", errors.Errorf("unknown readiness kind %q (want logs or http)", s)
	}
}

// NewChecker builds the readiness check for d. HTTP readiness falls back to
// the log marker for services without a health endpoint.
func NewChecker(kind ReadinessKind, logs readiness.LogSource, d catalog.ServiceDescriptor, since time.Time) readiness.Checker {
	if kind == ReadinessHTTP {
		if u := d.HealthURL(); u != "" {
			return readiness.HTTPCheck{URL: u, BodyContains: d.HealthBody}
		}
	}
	return readiness.LogMarker{
		Source:  logs,
		Service: d.LogService,
		Marker:  d.ReadyMarker,
		Since:   since,
	}
}
