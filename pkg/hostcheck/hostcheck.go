// Package hostcheck probes the hostnames configured for the demo stack and
// reports the ones that do not resolve. It never fails a run.
package hostcheck

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/go-go-golems/democtl/pkg/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const hostnameSuffix = "_HOSTNAME"

// Port keys tried, in order, for a <PREFIX>_HOSTNAME key.
var portSuffixes = []string{"_HTTP_PORT", "_PORT", "_API_PORT"}

type Kind string

const (
	KindUnresolvable       Kind = "unresolvable-hostname"
	KindNetworkUnavailable Kind = "network-unavailable"
)

type Target struct {
	Key  string `json:"key"`
	Host string `json:"host"`
	Port string `json:"port"`
}

func (t Target) URL() string {
	u := url.URL{Scheme: "http", Host: net.JoinHostPort(t.Host, t.Port), Path: "/"}
	return u.String()
}

type Finding struct {
	Target
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

type Report struct {
	Checked  []Target  `json:"checked"`
	Findings []Finding `json:"findings,omitempty"`
}

func (r Report) OK() bool { return len(r.Findings) == 0 }

// Targets lists every non-empty *_HOSTNAME value, sorted by key. The port
// comes from the first matching <PREFIX>_HTTP_PORT, _PORT or _API_PORT key
// and defaults to 80.
func Targets(cfg config.RuntimeConfig) []Target {
	var out []Target
	for _, key := range cfg.Keys() {
		if !strings.HasSuffix(key, hostnameSuffix) {
			continue
		}
		host := strings.TrimSpace(cfg.Get(key))
		if host == "" {
			continue
		}
		prefix := strings.TrimSuffix(key, hostnameSuffix)
		port := "80"
		for _, s := range portSuffixes {
			if p := strings.TrimSpace(cfg.Get(prefix + s)); p != "" {
				port = p
				break
			}
		}
		out = append(out, Target{Key: key, Host: host, Port: port})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

type Options struct {
	// Timeout bounds a single probe. Defaults to 3s.
	Timeout time.Duration
	Client  *http.Client
}

type Validator struct {
	client  *http.Client
	timeout time.Duration
}

func New(opts Options) *Validator {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{
			// The probe only cares about name resolution; never follow redirects.
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		}
	}
	return &Validator{client: client, timeout: opts.Timeout}
}

// Validate probes every target sequentially. Only resolution failures and a
// missing network become findings; refused connections and HTTP errors are
// expected while services are still down.
func (v *Validator) Validate(ctx context.Context, cfg config.RuntimeConfig) Report {
	rep := Report{Checked: Targets(cfg)}
	for _, t := range rep.Checked {
		if ctx.Err() != nil {
			break
		}
		f, ok := v.probe(ctx, t)
		if !ok {
			log.Debug().Str("host", t.Host).Str("port", t.Port).Msg("hostname resolves")
			continue
		}
		log.Warn().Str("key", f.Key).Str("host", f.Host).Str("kind", string(f.Kind)).Msg(f.Message)
		rep.Findings = append(rep.Findings, f)
	}
	return rep
}

func (v *Validator) probe(ctx context.Context, t Target) (Finding, bool) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL(), nil)
	if err != nil {
		return Finding{Target: t, Kind: KindUnresolvable, Message: errors.Wrap(err, "invalid hostname").Error()}, true
	}
	resp, err := v.client.Do(req)
	if err == nil {
		_ = resp.Body.Close()
		return Finding{}, false
	}
	return classify(t, err)
}

func classify(t Target, err error) (Finding, bool) {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && !dnsErr.IsTimeout {
		return Finding{
			Target:  t,
			Kind:    KindUnresolvable,
			Message: "could not resolve " + t.Host + " (" + t.Key + "); add it to /etc/hosts or your DNS",
		}, true
	}
	if errors.Is(err, syscall.ENETUNREACH) {
		return Finding{
			Target:  t,
			Kind:    KindNetworkUnavailable,
			Message: "network unreachable while probing " + t.Host + "; hostname check skipped",
		}, true
	}
	return Finding{}, false
}
