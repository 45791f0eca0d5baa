package driver

import (
	"github.com/go-go-golems/democtl/pkg/catalog"
	"github.com/go-go-golems/democtl/pkg/compose"
	"github.com/go-go-golems/democtl/pkg/config"
)

const (
	DefaultHelperImage = "alpine:3.20"
	cacheMountTarget   = "/cache"
)

// PlannedService is one service group a run starts.
type PlannedService struct {
	Name            string   `json:"name"`
	ComposeServices []string `json:"compose_services"`
	Volume          string   `json:"volume"`
	// Wait is false only for the early GitLab probe; GitLab gets its
	// blocking wait at the end of the run.
	Wait        bool   `json:"wait"`
	ReadyMarker string `json:"ready_marker"`
	// FirstRun is true when the service has first-run configuration gated
	// on Volume.
	FirstRun bool `json:"first_run"`
}

type PermissionFix struct {
	Volume string   `json:"volume"`
	Image  string   `json:"image"`
	Cmd    []string `json:"cmd"`
}

// Plan is everything a mode will do, in order. Building it has no side
// effects.
type Plan struct {
	Mode          catalog.Mode     `json:"mode"`
	Project       string           `json:"project"`
	Stop          bool             `json:"stop,omitempty"`
	Services      []PlannedService `json:"services,omitempty"`
	PermissionFix *PermissionFix   `json:"permission_fix,omitempty"`
	FinalWait     string           `json:"final_wait,omitempty"`
}

// StartSet lists the service group names the plan starts, in order.
func (p Plan) StartSet() []string {
	out := make([]string, 0, len(p.Services))
	for _, s := range p.Services {
		out = append(out, s.Name)
	}
	return out
}

// VolumeName resolves the engine-side name of d's gating volume.
func VolumeName(d catalog.ServiceDescriptor, demo string, cfg config.RuntimeConfig, file *compose.File) string {
	return file.VolumeName(d.VolumeKey, cfg.Expand, d.DefaultVolumeName(demo))
}

// CacheVolume is the shared volume the permission fix runs against.
func CacheVolume(cfg config.RuntimeConfig, demo string) string {
	return cfg.GetOr("CACHE_VOLUME", demo+"-cache")
}

func BuildPlan(mode catalog.Mode, cat catalog.Catalog, cfg config.RuntimeConfig, file *compose.File) (Plan, error) {
	p := Plan{Mode: mode, Project: cat.DemoName}
	if mode == catalog.ModeStop {
		p.Stop = true
		return p, nil
	}

	names := append([]string{catalog.GitLab}, mode.Optional()...)
	for _, name := range names {
		d, err := cat.Get(name)
		if err != nil {
			return Plan{}, err
		}
		p.Services = append(p.Services, PlannedService{
			Name:            d.Name,
			ComposeServices: d.ComposeServices,
			Volume:          VolumeName(d, cat.DemoName, cfg, file),
			Wait:            d.Name != catalog.GitLab,
			ReadyMarker:     d.ReadyMarker,
			FirstRun:        d.Name != catalog.GitLab,
		})
	}

	p.PermissionFix = &PermissionFix{
		Volume: CacheVolume(cfg, cat.DemoName),
		Image:  cfg.GetOr("HELPER_IMAGE", DefaultHelperImage),
		Cmd:    []string{"chmod", "-R", "a+rwX", cacheMountTarget},
	}
	p.FinalWait = catalog.GitLab
	return p, nil
}
