package cli

import (
	"context"
	"errors"
	"io"

	"go.uber.org/dig"

	"github.com/fedesuarez16/opting-sub000/internal/cloud"
	"github.com/fedesuarez16/opting-sub000/internal/cloud/providers"
	"github.com/fedesuarez16/opting-sub000/internal/config"
	"github.com/fedesuarez16/opting-sub000/internal/constants"
	"github.com/fedesuarez16/opting-sub000/internal/directory"
	"github.com/fedesuarez16/opting-sub000/internal/directory/postgres"
	"github.com/fedesuarez16/opting-sub000/internal/events"
	"github.com/fedesuarez16/opting-sub000/internal/logging"
)

// cleanup closes the resources constructors opened, in reverse order
type cleanup struct {
	closers []io.Closer
}

func (c *cleanup) add(cl io.Closer) {
	c.closers = append(c.closers, cl)
}

func (c *cleanup) run() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// registerProviders registers every component constructor. dig builds only
// what an Invoke asks for, so commands that never touch the record store do
// not connect to it.
func registerProviders(container *dig.Container, ctx context.Context, cfg *config.Config, log *logging.Logger, cl *cleanup) error {
	if err := container.Provide(func() context.Context { return ctx }); err != nil {
		return err
	}
	if err := container.Provide(func() *config.Config { return cfg }); err != nil {
		return err
	}
	if err := container.Provide(func() *logging.Logger { return log }); err != nil {
		return err
	}
	if err := container.Provide(func() *cleanup { return cl }); err != nil {
		return err
	}
	if err := container.Provide(newFolderSource); err != nil {
		return err
	}
	if err := container.Provide(newDirectory); err != nil {
		return err
	}
	if err := container.Provide(func() *events.EventBus {
		bus := events.NewEventBus(constants.EventBusDefaultBuffer)
		cl.add(closerFunc(func() error { bus.Close(); return nil }))
		return bus
	}); err != nil {
		return err
	}
	return nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func newFolderSource(ctx context.Context, cfg *config.Config, log *logging.Logger) (cloud.FolderSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return providers.NewFolderSource(ctx, cfg, log)
}

// newDirectory opens the branch record store. Postgres wins over a snapshot file;
// with neither, branch matching runs against an empty store.
func newDirectory(ctx context.Context, cfg *config.Config, log *logging.Logger, cl *cleanup) (directory.Directory, error) {
	switch {
	case cfg.Records.DatabaseURL != "":
		store, err := postgres.New(ctx, cfg.Records.DatabaseURL, log.Named("directory"))
		if err != nil {
			return nil, err
		}
		cl.add(store)
		return store, nil
	case cfg.Records.SnapshotPath != "":
		return directory.NewFileStore(cfg.Records.SnapshotPath), nil
	default:
		log.Warn().Msg("no branch record store configured, branch matching is disabled")
		return directory.NewMemoryStore(), nil
	}
}

// invoke loads configuration, wires the container and calls fn with the
// components it asks for. Errors from constructors are reported unwrapped.
func invoke(ctx context.Context, log *logging.Logger, fn interface{}) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return invokeWith(ctx, cfg, log, fn)
}

func invokeWith(ctx context.Context, cfg *config.Config, log *logging.Logger, fn interface{}) (err error) {
	cl := &cleanup{}
	defer func() {
		if cerr := cl.run(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	container := dig.New()
	if err := registerProviders(container, ctx, cfg, log, cl); err != nil {
		return err
	}
	if err := container.Invoke(fn); err != nil {
		return dig.RootCause(err)
	}
	return nil
}
