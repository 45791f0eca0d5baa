package driver

import (
	"context"
	"time"

	"github.com/go-go-golems/democtl/pkg/events"
	"github.com/go-go-golems/democtl/pkg/firstrun"
	"github.com/pkg/errors"
)

type ServiceStatus struct {
	Name         string `json:"name"`
	URL          string `json:"url"`
	Volume       string `json:"volume"`
	VolumeExists bool   `json:"volume_exists"`
	State        string `json:"state"`
	Error        string `json:"error,omitempty"`
}

// Status probes every service once without starting anything.
func (d *Driver) Status(ctx context.Context) []ServiceStatus {
	var out []ServiceStatus
	for _, name := range d.catalog.Names() {
		desc, err := d.catalog.Get(name)
		if err != nil {
			continue
		}
		st := ServiceStatus{
			Name:   name,
			URL:    desc.BaseURL,
			Volume: VolumeName(desc, d.catalog.DemoName, d.opts.Config, d.opts.ComposeFile),
		}
		exists, err := d.opts.Engine.VolumeExists(ctx, st.Volume)
		if err != nil {
			st.Error = err.Error()
		}
		st.VolumeExists = exists

		res := d.opts.Waiter.Probe(ctx, name, d.checker(desc, time.Time{}))
		st.State = res.State.String()
		if res.LastErr != nil && st.Error == "" {
			st.Error = res.LastErr.Error()
		}
		out = append(out, st)
	}
	return out
}

// Configure reruns first-run configuration for one service regardless of the
// volume gate. The service must already be running; it is waited for first.
func (d *Driver) Configure(ctx context.Context, name string) (firstrun.Outcome, error) {
	desc, err := d.catalog.Get(name)
	if err != nil {
		return firstrun.Outcome{}, err
	}
	events.Info(d.opts.Reporter, name, "waiting for %q", desc.ReadyMarker)
	res := d.opts.Waiter.Wait(ctx, name, d.checker(desc, time.Time{}))
	if !res.Ready() {
		return firstrun.Outcome{}, res.Err()
	}
	out, err := d.opts.FirstRun.Configure(ctx, desc)
	if err != nil {
		return out, err
	}
	if !out.OK() {
		return out, errors.Errorf("%d configuration steps failed for %s", len(out.Failed()), name)
	}
	return out, nil
}
