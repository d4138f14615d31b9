package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/capx-network/capmap/internal/api"
	"github.com/capx-network/capmap/internal/app/colorscale"
	"github.com/capx-network/capmap/internal/app/dashboard"
	"github.com/capx-network/capmap/internal/app/mapview"
	"github.com/capx-network/capmap/internal/health"
	"github.com/capx-network/capmap/internal/infra/geo"
	"github.com/capx-network/capmap/internal/infra/render"
	"github.com/capx-network/capmap/internal/infra/sqlite"
)

// Daemon is the capmap runtime. It wires together all services.
type Daemon struct {
	Config    Config
	Log       zerolog.Logger
	DB        *sqlite.DB
	Dashboard *dashboard.Service
	Vector    *geo.VectorSource
	Flat      *geo.FlatSource
	Views     *mapview.Manager
	Health    *health.Checker
	Server    *api.Server

	watcher *geo.Watcher
	cancel  context.CancelFunc
}

// New loads the config and creates a Daemon.
func New(log zerolog.Logger) (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg, log)
}

// NewWithConfig creates a Daemon with the given configuration. The
// persisted dataset is restored; geometry is loaded by Serve or on first
// render.
func NewWithConfig(cfg Config, log zerolog.Logger) (*Daemon, error) {
	brighten, err := colorscale.ParseBrighten(cfg.Render.HoverBrighten)
	if err != nil {
		return nil, fmt.Errorf("render.hover_brighten: %w", err)
	}
	style, err := render.ParseStyle(cfg.Render.DefaultStyle)
	if err != nil {
		return nil, fmt.Errorf("render.default_style: %w", err)
	}

	home := capmapHome()
	db, err := sqlite.Open(home)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	instanceID, err := db.InstanceID()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("instance id: %w", err)
	}

	dash := dashboard.NewService(log, db)
	if err := dash.Restore(); err != nil {
		db.Close()
		return nil, err
	}

	client := &http.Client{Timeout: parseDuration(cfg.Geo.FetchTimeout, 30*time.Second)}
	vector := geo.NewVectorSource(cfg.Geo.VectorSource, geo.WithHTTPClient(client), geo.WithLogger(log))
	flat := geo.NewFlatSource(cfg.Geo.FlatSource, geo.WithHTTPClient(client), geo.WithLogger(log))

	views := mapview.NewManager(log, dash, mapview.Sources{Vector: vector, Flat: flat}, brighten, cfg.Render.MaxViews)

	checker := health.NewChecker(log, parseDuration(cfg.Health.Interval, health.DefaultInterval),
		health.SQLiteCheck(db),
		health.DataDirCheck(home),
		health.GeometryCheck(vector),
		health.GeometryCheck(flat),
	)

	srv := api.NewServer(log, dash, views)
	srv.SetHealth(checker)
	srv.SetCORSOrigins(cfg.API.CORSOrigins)
	srv.SetDefaultStyle(style)
	srv.SetInstanceID(instanceID)
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}

	return &Daemon{
		Config:    cfg,
		Log:       log.With().Str("component", "daemon").Logger(),
		DB:        db,
		Dashboard: dash,
		Vector:    vector,
		Flat:      flat,
		Views:     views,
		Health:    checker,
		Server:    srv,
	}, nil
}

// LoadGeometry loads every configured geometry source concurrently and
// returns the first failure. A failed source stays empty and is not retried;
// each failure is also logged by its source.
func (d *Daemon) LoadGeometry(ctx context.Context) error {
	var g errgroup.Group
	if d.Vector.Location() != "" {
		g.Go(func() error {
			if _, err := d.Vector.Load(ctx); err != nil {
				return fmt.Errorf("vector geometry: %w", err)
			}
			return nil
		})
	}
	if d.Flat.Location() != "" {
		g.Go(func() error {
			if _, err := d.Flat.Load(ctx); err != nil {
				return fmt.Errorf("flat geometry: %w", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.LoadGeometry(ctx); err != nil {
		d.Log.Warn().Err(err).Msg("serving with incomplete geometry")
	}

	if d.Config.Geo.Watch {
		w, err := geo.NewWatcher(d.Log, 0, d.Vector, d.Flat)
		if err != nil {
			d.Log.Warn().Err(err).Msg("geometry file watching disabled")
		} else if w.Watching() == 0 {
			w.Stop()
		} else {
			d.watcher = w
			w.Start(ctx)
		}
	}

	go d.Health.Run(ctx)

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           d.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			d.Log.Info().Msg("shutting down")
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	d.Log.Info().
		Str("addr", "http://"+addr).
		Uint64("dataset_version", d.Dashboard.Version()).
		Bool("metrics", d.Config.Telemetry.Prometheus).
		Msg("capmap serving")

	err := httpServer.ListenAndServe()
	d.Close()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close shuts down all daemon resources. It is safe to call twice.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.watcher != nil {
		d.watcher.Stop()
		d.watcher = nil
	}
	if d.DB != nil {
		_ = d.DB.Close()
		d.DB = nil
	}
}
