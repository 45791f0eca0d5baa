package catalog

import (
	"net"
	"net/url"
	"sort"

	"github.com/go-go-golems/democtl/pkg/config"
	"github.com/pkg/errors"
)

const (
	GitLab          = "gitlab"
	DependencyTrack = "dependency-track"
	SonarQube       = "sonarqube"
)

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"-"`
}

// ServiceDescriptor is the static description of one logical service group.
type ServiceDescriptor struct {
	Name string `json:"name"`
	// ComposeServices are started together for this group.
	ComposeServices []string `json:"compose_services"`
	// LogService is the compose service whose log carries ReadyMarker.
	LogService  string `json:"log_service"`
	ReadyMarker string `json:"ready_marker"`
	// VolumeKey is the compose volume whose prior existence gates first-run configuration.
	VolumeKey  string `json:"volume_key"`
	BaseURL    string `json:"base_url"`
	HealthPath string `json:"health_path,omitempty"`
	// HealthBody, when set, must appear in a 2xx health response.
	HealthBody string `json:"health_body,omitempty"`

	DefaultCredentials Credentials `json:"default_credentials"`
	TargetCredentials  Credentials `json:"target_credentials"`
	Plugins            []string    `json:"plugins,omitempty"`
}

// HealthURL returns BaseURL joined with HealthPath, or "" when there is no
// health endpoint.
func (d ServiceDescriptor) HealthURL() string {
	if d.HealthPath == "" || d.BaseURL == "" {
		return ""
	}
	u, err := url.JoinPath(d.BaseURL, d.HealthPath)
	if err != nil {
		return ""
	}
	return u
}

// DefaultVolumeName is the volume name used when the compose file does not
// override it.
func (d ServiceDescriptor) DefaultVolumeName(demoName string) string {
	if d.VolumeKey == "" {
		return ""
	}
	return demoName + "-" + d.VolumeKey
}

type Catalog struct {
	DemoName string
	byName   map[string]ServiceDescriptor
}

// Build derives the three descriptors from the runtime configuration.
func Build(cfg config.RuntimeConfig) Catalog {
	demo := cfg.GetOr("DEMO_NAME", "demo")

	descs := []ServiceDescriptor{
		{
			Name:            GitLab,
			ComposeServices: []string{"gitlab"},
			LogService:      "gitlab",
			ReadyMarker:     "Server initialized",
			VolumeKey:       "gitlab_config",
			BaseURL:         httpURL(cfg.GetOr("GITLAB_HOSTNAME", "localhost"), cfg.GetOr("GITLAB_HTTP_PORT", "80")),
			// No HealthPath: /-/readiness answers only clients in GitLab's
			// monitoring whitelist, which excludes the docker bridge.
			DefaultCredentials: Credentials{
				Username: "root",
			},
			TargetCredentials: Credentials{
				Username: "root",
			},
		},
		{
			Name:            DependencyTrack,
			ComposeServices: []string{"dtrack-apiserver", "dtrack-frontend"},
			LogService:      "dtrack-frontend",
			ReadyMarker:     "Configuration complete",
			VolumeKey:       "dependency-track_data",
			BaseURL:         httpURL(cfg.GetOr("DEPENDENCY_TRACK_HOSTNAME", "localhost"), cfg.GetOr("DEPENDENCY_TRACK_API_PORT", "8081")),
			HealthPath:      "/api/version",
			DefaultCredentials: Credentials{
				Username: "admin",
				Password: "admin",
			},
			TargetCredentials: Credentials{
				Username: "admin",
				Password: cfg.Get("DEPENDENCY_TRACK_ADMIN_PASSWORD"),
			},
		},
		{
			Name:            SonarQube,
			ComposeServices: []string{"sonarqube"},
			LogService:      "sonarqube",
			ReadyMarker:     "SonarQube is operational",
			VolumeKey:       "sonarqube_config",
			BaseURL:         httpURL(cfg.GetOr("SONARQUBE_HOSTNAME", "localhost"), cfg.GetOr("SONARQUBE_PORT", "9000")),
			HealthPath:      "/api/system/status",
			HealthBody:      `"status":"UP"`,
			DefaultCredentials: Credentials{
				Username: "admin",
				Password: "admin",
			},
			TargetCredentials: Credentials{
				Username: "admin",
				Password: cfg.Get("SONARQUBE_ADMIN_PASSWORD"),
			},
			Plugins: cfg.List("SONARQUBE_PLUGINS"),
		},
	}

	c := Catalog{DemoName: demo, byName: make(map[string]ServiceDescriptor, len(descs))}
	for _, d := range descs {
		c.byName[d.Name] = d
	}
	return c
}

func (c Catalog) Get(name string) (ServiceDescriptor, error) {
	d, ok := c.byName[name]
	if !ok {
		return ServiceDescriptor{}, errors.Errorf("unknown service %q", name)
	}
	return d, nil
}

func (c Catalog) Names() []string {
	out := make([]string, 0, len(c.byName))
	for name := range c.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func httpURL(host, port string) string {
	u := url.URL{Scheme: "http", Host: net.JoinHostPort(host, port)}
	return u.String()
}
