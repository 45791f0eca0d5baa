package firstrun

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-go-golems/democtl/pkg/catalog"
	"github.com/go-go-golems/democtl/pkg/config"
	"github.com/go-go-golems/democtl/pkg/events"
	"github.com/go-go-golems/democtl/pkg/readiness"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeCompose struct {
	mu       sync.Mutex
	execs    [][]string
	restarts []string
	execErr  map[string]error
	execOut  string
}

func (f *fakeCompose) Exec(ctx context.Context, service string, cmd ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, append([]string{service}, cmd...))
	if err := f.execErr[cmd[len(cmd)-1]]; err != nil {
		return "", err
	}
	return f.execOut, nil
}

func (f *fakeCompose) Restart(ctx context.Context, service string) error {
	f.restarts = append(f.restarts, service)
	return nil
}

type fakeWaiter struct {
	services []string
	state    readiness.State
}

func (w *fakeWaiter) Wait(ctx context.Context, service string, c readiness.Checker) readiness.Result {
	w.services = append(w.services, service)
	return readiness.Result{Service: service, State: w.state, Attempts: 1}
}

type apiRecorder struct {
	mu    sync.Mutex
	calls map[string][]*http.Request
	forms map[string][]map[string]string
	code  int
}

func newAPI(t *testing.T, code int) (*apiRecorder, *httptest.Server) {
	rec := &apiRecorder{calls: map[string][]*http.Request{}, forms: map[string][]map[string]string{}, code: code}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		form := map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		rec.mu.Lock()
		rec.calls[r.URL.Path] = append(rec.calls[r.URL.Path], r)
		rec.forms[r.URL.Path] = append(rec.forms[r.URL.Path], form)
		rec.mu.Unlock()
		w.WriteHeader(rec.code)
	}))
	t.Cleanup(srv.Close)
	return rec, srv
}

func descriptor(t *testing.T, name, baseURL string, values map[string]string) catalog.ServiceDescriptor {
	d, err := catalog.Build(config.New(values)).Get(name)
	require.NoError(t, err)
	d.BaseURL = baseURL
	return d
}

func TestConfigure_SonarQubeFirstRun(t *testing.T) {
	api, srv := newAPI(t, http.StatusNoContent)
	compose := &fakeCompose{}
	waiter := &fakeWaiter{state: readiness.StateReady}
	rec := &events.Recorder{}
	restartAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	var since time.Time

	c := New(Options{
		Compose:  compose,
		Waiter:   waiter,
		Reporter: rec,
		Checker: func(d catalog.ServiceDescriptor, s time.Time) readiness.Checker {
			since = s
			return readiness.CheckerFunc(func(context.Context) (bool, error) { return true, nil })
		},
		Now: func() time.Time { return restartAt },
	})
	plugins := []string{
		"https://example.com/sonar-a-plugin-1.0.jar",
		"https://example.com/sonar-b-plugin-2.0.jar",
	}
	d := descriptor(t, catalog.SonarQube, srv.URL, map[string]string{
		"SONARQUBE_ADMIN_PASSWORD": "s3cret",
		"SONARQUBE_PLUGINS":        strings.Join(plugins, " "),
	})

	out, err := c.Configure(context.Background(), d)
	require.NoError(t, err)
	require.True(t, out.OK())

	require.Len(t, api.calls["/api/users/change_password"], 1)
	req := api.calls["/api/users/change_password"][0]
	user, pass, ok := req.BasicAuth()
	require.True(t, ok)
	require.Equal(t, "admin", user)
	require.Equal(t, "admin", pass)
	require.Equal(t, map[string]string{"login": "admin", "previousPassword": "admin", "password": "s3cret"},
		api.forms["/api/users/change_password"][0])

	var fetched []string
	for _, e := range compose.execs {
		require.Equal(t, []string{"sonarqube", "wget", "-q", "-P", DefaultPluginDir}, e[:5])
		fetched = append(fetched, e[5])
	}
	require.Equal(t, plugins, fetched)
	require.Equal(t, []string{"sonarqube"}, compose.restarts)
	require.Equal(t, []string{catalog.SonarQube}, waiter.services)
	require.Equal(t, restartAt, since)
	require.Equal(t, 2, rec.Count(events.LevelSuccess))
}

func TestConfigure_DependencyTrack(t *testing.T) {
	api, srv := newAPI(t, http.StatusOK)
	compose := &fakeCompose{}
	c := New(Options{Compose: compose})
	d := descriptor(t, catalog.DependencyTrack, srv.URL, map[string]string{"DEPENDENCY_TRACK_ADMIN_PASSWORD": "n3w"})

	out, err := c.Configure(context.Background(), d)
	require.NoError(t, err)
	require.True(t, out.OK())
	require.Len(t, api.calls["/api/v1/user/forceChangePassword"], 1)
	require.Equal(t, map[string]string{
		"username": "admin", "password": "admin", "newPassword": "n3w", "confirmPassword": "n3w",
	}, api.forms["/api/v1/user/forceChangePassword"][0])
	require.Empty(t, compose.execs)
}

func TestConfigure_FailuresAreReportedAndStepsContinue(t *testing.T) {
	api, srv := newAPI(t, http.StatusUnauthorized)
	compose := &fakeCompose{execErr: map[string]error{"https://example.com/a.jar": errors.New("wget: server returned error")}}
	rec := &events.Recorder{}
	c := New(Options{Compose: compose, Reporter: rec})
	d := descriptor(t, catalog.SonarQube, srv.URL, map[string]string{
		"SONARQUBE_ADMIN_PASSWORD": "x",
		"SONARQUBE_PLUGINS":        "https://example.com/a.jar,https://example.com/b.jar",
	})

	out, err := c.Configure(context.Background(), d)
	require.NoError(t, err)
	require.False(t, out.OK())
	require.Len(t, out.Failed(), 2)

	var httpErr *HTTPError
	require.True(t, errors.As(out.Failed()[0].Err, &httpErr))
	require.Equal(t, http.StatusUnauthorized, httpErr.Status)

	require.Len(t, api.calls["/api/users/change_password"], 1)
	require.Len(t, compose.execs, 2)
	require.Equal(t, []string{"sonarqube"}, compose.restarts)
	require.Equal(t, 2, rec.Count(events.LevelWarning))
	require.Equal(t, 1, rec.Count(events.LevelError))
}

func TestConfigure_GitLabHasNoSteps(t *testing.T) {
	c := New(Options{Compose: &fakeCompose{}})
	out, err := c.Configure(context.Background(), descriptor(t, catalog.GitLab, "http://unused", nil))
	require.NoError(t, err)
	require.Empty(t, out.Steps)

	_, err = c.Configure(context.Background(), catalog.ServiceDescriptor{Name: "jenkins"})
	require.Error(t, err)
}

func TestInitialRootPassword(t *testing.T) {
	content := "# WARNING: This value is valid only in the following conditions\n" +
		"#          1. If provided manually\n\n" +
		"Password: Zm9vYmFyYmF6\n\n" +
		"# NOTE: This file will be automatically deleted in the first reconfigure run after 24 hours.\n"
	compose := &fakeCompose{execOut: content}

	p, err := InitialRootPassword(context.Background(), compose, "gitlab", time.Second, time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, "Zm9vYmFyYmF6", p)
	require.Equal(t, []string{"gitlab", "cat", initialRootPasswordFile}, compose.execs[0])
}

func TestInitialRootPassword_GivesUp(t *testing.T) {
	compose := &fakeCompose{execErr: map[string]error{initialRootPasswordFile: errors.New("No such file or directory")}}
	_, err := InitialRootPassword(context.Background(), compose, "gitlab", 20*time.Millisecond, 5*time.Millisecond)
	require.Error(t, err)
	require.Greater(t, len(compose.execs), 1)
}
