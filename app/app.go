package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jekabolt/grbpwr-attribution/config"
	httpapi "github.com/jekabolt/grbpwr-attribution/internal/api/http"
	"github.com/jekabolt/grbpwr-attribution/internal/dependency"
	"github.com/jekabolt/grbpwr-attribution/internal/engine"
	"github.com/jekabolt/grbpwr-attribution/internal/source"
	"github.com/jekabolt/grbpwr-attribution/internal/store"
	"github.com/jekabolt/grbpwr-attribution/internal/telemetry"
)

// rowSource is a row source holding a client or a connection pool.
type rowSource interface {
	dependency.RowSource
	Close() error
}

// Backends are the external stores the engine reads from.
type Backends struct {
	DB   dependency.MetadataStore
	Rows rowSource
}

// Close releases both stores.
func (b *Backends) Close() {
	if b.Rows != nil {
		if err := b.Rows.Close(); err != nil {
			slog.Default().Error("can't close row source", slog.String("err", err.Error()))
		}
	}
	if b.DB != nil {
		b.DB.Close()
	}
}

// Open connects to the metadata store and the configured row source.
func Open(ctx context.Context, c *config.Config) (*Backends, error) {
	db, err := store.New(ctx, c.DB)
	if err != nil {
		return nil, fmt.Errorf("couldn't connect to mysql: %w", err)
	}
	rows, err := openRowSource(ctx, c)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("couldn't open row source: %w", err)
	}
	return &Backends{DB: db, Rows: rows}, nil
}

// Engine builds the attribution engine over b.
func (b *Backends) Engine(c *config.Config) *engine.Service {
	return engine.New(c.Attribution, b.Rows, b.DB, telemetry.DefaultMetrics)
}

// openRowSource prefers BigQuery, then the SQL warehouse, then an events fixture.
func openRowSource(ctx context.Context, c *config.Config) (rowSource, error) {
	switch {
	case c.BigQuery.Enabled:
		bq, err := source.NewBigQuery(ctx, &c.BigQuery, telemetry.DefaultMetrics)
		if err != nil {
			return nil, err
		}
		return bq, nil
	case c.Warehouse.Enabled:
		wh, err := source.OpenWarehouse(ctx, &c.Warehouse, telemetry.DefaultMetrics)
		if err != nil {
			return nil, err
		}
		return wh, nil
	case c.Events.Enabled:
		ev, err := source.LoadEvents(c.Events.Fixture)
		if err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("no row source configured: enable bigquery, warehouse or events")
	}
}

// App is the main application
type App struct {
	hs       *httpapi.Server
	backends *Backends
	c        *config.Config
	done     chan struct{}
}

// New returns a new instance of App
func New(c *config.Config) *App {
	return &App{
		c:    c,
		done: make(chan struct{}),
	}
}

// Start starts the app
func (a *App) Start(ctx context.Context) error {
	var err error
	slog.Default().InfoContext(ctx, "starting attribution service")

	a.backends, err = Open(ctx, a.c)
	if err != nil {
		slog.Default().ErrorContext(ctx, "can't open backends", slog.String("err", err.Error()))
		return err
	}

	a.hs = httpapi.New(&a.c.HTTP, a.backends.Engine(a.c))
	if err = a.hs.Start(ctx); err != nil {
		slog.Default().ErrorContext(ctx, "cannot start http server", slog.String("err", err.Error()))
		a.backends.Close()
		return err
	}

	go func() {
		<-a.hs.Done()
		a.backends.Close()
		close(a.done)
	}()
	return nil
}

// Stop stops the application and waits for all services to exit
func (a *App) Stop(ctx context.Context) {
	if a.hs == nil {
		close(a.done)
		return
	}
	if err := a.hs.Stop(ctx); err != nil {
		slog.Default().ErrorContext(ctx, "http server shutdown failed", slog.String("err", err.Error()))
	}
	<-a.done
}

// Done returns a channel that is closed after the application has exited
func (a *App) Done() chan struct{} {
	return a.done
}
