package events

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestPrinter_PlainOutput(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	Warn(p, "gitlab", "could not resolve %s", "gitlab.demo.local")
	Step(p, "", "starting services")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, IconWarning+" [gitlab] could not resolve gitlab.demo.local", lines[0])
	require.Equal(t, IconRunning+" starting services", lines[1])
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	Info(r, "sonarqube", "a")
	Warn(r, "sonarqube", "b")
	Warn(r, "", "c")
	require.Len(t, r.Events(), 3)
	require.Equal(t, 2, r.Count(LevelWarning))
	require.Equal(t, "b", r.Events()[1].Text)

	// nil reporters are ignored
	Info(nil, "x", "y")
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env, err := NewEnvelope(TypeRunEvent, Event{Level: LevelError, Text: "boom"})
	require.NoError(t, err)
	b, err := env.MarshalJSONBytes()
	require.NoError(t, err)
	got, err := DecodeEnvelope(b)
	require.NoError(t, err)
	require.Equal(t, TypeRunEvent, got.Type)
	require.Contains(t, string(got.Payload), `"boom"`)

	_, err = NewEnvelope("", nil)
	require.Error(t, err)
}

func TestRunWithConsole_PrintsInOrderAndReturnsFnError(t *testing.T) {
	var buf bytes.Buffer
	sentinel := errors.New("final wait failed")

	err := RunWithConsole(context.Background(), &buf, func(ctx context.Context, r Reporter) error {
		for _, s := range []string{"one", "two", "three"} {
			Info(r, "gitlab", "%s", s)
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	out := buf.String()
	require.Contains(t, out, "[gitlab] one")
	require.Less(t, strings.Index(out, "one"), strings.Index(out, "two"))
	require.Less(t, strings.Index(out, "two"), strings.Index(out, "three"))
}

func TestRunWithConsole_CanceledContextStillPrints(t *testing.T) {
	var buf bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())

	err := RunWithConsole(ctx, &buf, func(ctx context.Context, r Reporter) error {
		cancel()
		<-ctx.Done()
		Warn(r, "", "interrupted")
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Contains(t, buf.String(), "interrupted")
}
