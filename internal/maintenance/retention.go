package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vjoshi/recall/internal/core"
	"github.com/vjoshi/recall/internal/memory"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ Job               = (*RetentionJob)(nil)
	_ core.Module       = (*Module)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Module implements maintenance.retention: a cron-driven sweep that
// wipes sessions whose last turn is older than the configured TTL.
type Module struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	scheduler *Scheduler
}

// Config holds retention settings.
type Config struct {
	// MaxIdle is how long a session may sit without a new turn before it
	// is wiped. Defaults to 30 days; zero disables the sweep entirely.
	MaxIdle time.Duration `yaml:"max_idle"`

	// Schedule is a 5-field cron expression. Defaults to hourly.
	Schedule string `yaml:"schedule"`
}

func (c *Config) defaults() {
	if c.Schedule == "" {
		c.Schedule = "0 * * * *"
	}
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "maintenance.retention",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("retention: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.appCtx = ctx
	m.logger = ctx.Logger
	m.scheduler = NewScheduler(ctx.Logger)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if m.config.MaxIdle < 0 {
		return fmt.Errorf("retention: max_idle must be non-negative, got %s", m.config.MaxIdle)
	}
	return nil
}

// Start implements core.Starter. It resolves the engine and starts the
// cron scheduler with the retention job.
func (m *Module) Start() error {
	if m.config.MaxIdle == 0 {
		m.logger.Info("retention sweep disabled (max_idle is zero)")
		return nil
	}

	svc, ok := m.appCtx.Service("memory.engine")
	if !ok {
		return errors.New("retention: memory.engine module is required")
	}
	engine, ok := svc.(*memory.Engine)
	if !ok {
		return errors.New("retention: service memory.engine has unexpected type")
	}

	job := &RetentionJob{
		Engine:       engine,
		MaxIdle:      m.config.MaxIdle,
		Logger:       m.logger,
		ScheduleExpr: m.config.Schedule,
	}
	if err := m.scheduler.RegisterJob(job); err != nil {
		return err
	}
	return m.scheduler.Start()
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	if m.scheduler == nil {
		return nil
	}
	return m.scheduler.Stop(ctx)
}

// RetentionJob wipes sessions that have been idle longer than MaxIdle.
// Each wipe is per-session atomic; a failure on one session does not
// stop the sweep.
type RetentionJob struct {
	Engine       *memory.Engine
	MaxIdle      time.Duration
	Logger       *slog.Logger
	ScheduleExpr string
}

// Name implements Job.
func (j *RetentionJob) Name() string { return "session_retention" }

// Schedule implements Job.
func (j *RetentionJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 * * * *"
}

// Run wipes every session whose last turn predates the idle cutoff.
func (j *RetentionJob) Run(ctx context.Context) error {
	infos, err := j.Engine.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("retention: list sessions: %w", err)
	}

	cutoff := time.Now().Add(-j.MaxIdle)
	var wiped int
	var errs []error

	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.LastActive.After(cutoff) {
			continue
		}
		if err := j.Engine.Wipe(ctx, info.ID); err != nil {
			errs = append(errs, fmt.Errorf("retention: wipe %s: %w", info.ID, err))
			continue
		}
		wiped++
	}

	if wiped > 0 && j.Logger != nil {
		j.Logger.Info("retention: wiped idle sessions", "count", wiped, "max_idle", j.MaxIdle)
	}
	return errors.Join(errs...)
}
