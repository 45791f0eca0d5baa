package events

import (
	"context"
	stderrors "errors"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// RunWithConsole runs fn with a Reporter whose events are printed to w
// through an in-memory bus. The bus outlives cancellation of ctx so the
// last events of an interrupted run are still printed. fn's error is
// returned unchanged.
func RunWithConsole(ctx context.Context, w io.Writer, fn func(ctx context.Context, r Reporter) error) error {
	bus, err := NewInMemoryBus()
	if err != nil {
		return err
	}
	RegisterConsolePrinter(bus, NewPrinter(w))

	busCtx, stopBus := context.WithCancel(context.WithoutCancel(ctx))
	defer stopBus()

	var runErr error
	eg, egCtx := errgroup.WithContext(busCtx)
	eg.Go(func() error {
		err := bus.Run(egCtx)
		if stderrors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	eg.Go(func() error {
		defer stopBus()
		select {
		case <-bus.Running():
		case <-egCtx.Done():
			return errors.New("event bus stopped before it started")
		}
		runErr = fn(ctx, BusReporter{Pub: bus.Publisher})
		return nil
	})

	if err := eg.Wait(); err != nil {
		return errors.Wrap(err, "event bus")
	}
	return runErr
}
