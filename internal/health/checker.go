// Package health runs periodic health checks with optional auto-recovery.
package health

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/capx-network/capmap/internal/infra/metrics"
)

// DefaultInterval is used when NewChecker gets a non-positive interval.
const DefaultInterval = 60 * time.Second

// Check defines a single health check with optional recovery action.
type Check struct {
	Name      string
	CheckFn   func(ctx context.Context) error
	RecoverFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	Recovered bool      `json:"recovered,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker runs periodic health checks with auto-recovery.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
	log      zerolog.Logger
}

// NewChecker creates a checker running checks every interval.
func NewChecker(log zerolog.Logger, interval time.Duration, checks ...Check) *Checker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Checker{
		checks:   checks,
		interval: interval,
		log:      log.With().Str("component", "health").Logger(),
	}
}

// Add registers another check. Call before Run.
func (c *Checker) Add(check Check) {
	c.mu.Lock()
	c.checks = append(c.checks, check)
	c.mu.Unlock()
}

// Run starts the health check loop. Call in a goroutine.
func (c *Checker) Run(ctx context.Context) {
	c.RunOnce(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce runs every check once and stores the results.
func (c *Checker) RunOnce(ctx context.Context) {
	c.mu.RLock()
	checks := make([]Check, len(c.checks))
	copy(checks, c.checks)
	c.mu.RUnlock()

	statuses := make([]Status, len(checks))
	for i, check := range checks {
		statuses[i] = c.run(ctx, check)
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

func (c *Checker) run(ctx context.Context, check Check) Status {
	s := Status{Name: check.Name, CheckedAt: time.Now()}
	err := check.CheckFn(ctx)
	if err != nil && check.RecoverFn != nil {
		metrics.HealthRecoveries.WithLabelValues(check.Name).Inc()
		if rerr := check.RecoverFn(ctx); rerr != nil {
			c.log.Warn().Err(rerr).Str("check", check.Name).Msg("recovery failed")
		} else if err = check.CheckFn(ctx); err == nil {
			s.Recovered = true
			c.log.Info().Str("check", check.Name).Msg("recovered")
		}
	}
	if err != nil {
		s.Error = err.Error()
		metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(0)
		c.log.Warn().Err(err).Str("check", check.Name).Msg("unhealthy")
		return s
	}
	s.Healthy = true
	metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(1)
	return s
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if all checks pass.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}

// ─── Check Implementations ──────────────────────────────────────────────────

// Pinger is satisfied by *sqlite.DB.
type Pinger interface {
	Ping() error
}

// SQLiteCheck pings the database. SQLite recovers through its WAL, so there
// is no recovery step.
func SQLiteCheck(db Pinger) Check {
	return Check{
		Name:    "sqlite",
		CheckFn: func(context.Context) error { return db.Ping() },
	}
}

// DataDirCheck verifies dir is a directory, recreating it when missing.
func DataDirCheck(dir string) Check {
	return Check{
		Name:    "data_dir",
		CheckFn: func(context.Context) error { return checkDir(dir) },
		RecoverFn: func(context.Context) error {
			if _, err := os.Stat(dir); !os.IsNotExist(err) {
				return nil
			}
			return os.MkdirAll(dir, 0700)
		},
	}
}

// GeometryStatus is satisfied by the geo sources.
type GeometryStatus interface {
	Name() string
	Location() string
	Err() error
}

// GeometryCheck reports the last load error of a geometry source. A source
// with no location or one not yet loaded is healthy. Failed loads are not
// retried here; the file watcher reloads changed files.
func GeometryCheck(src GeometryStatus) Check {
	return Check{
		Name: "geometry_" + src.Name(),
		CheckFn: func(context.Context) error {
			if src.Location() == "" {
				return nil
			}
			return src.Err()
		},
	}
}

var errNotDir = errors.New("not a directory")

func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("check data dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", dir, errNotDir)
	}
	return nil
}
