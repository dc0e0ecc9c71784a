// Package sweeper runs the background maintenance loops: expiring idle
// chat sessions and trimming rate-limiter state.
package sweeper

import (
	"context"
	"time"

	"github.com/adhocore/gronx"

	"crewchat/pkg/auth"
	"crewchat/pkg/config"
	"crewchat/pkg/logger"
	"crewchat/pkg/ratelimit"
	"crewchat/pkg/session"
	"crewchat/pkg/telemetry"
)

// Sweeper owns the maintenance goroutines.
type Sweeper struct {
	registry *session.Registry
	limiter  *ratelimit.Limiter

	sessionInterval time.Duration
	sessionTimeout  time.Duration
	limiterCron     string
	limiterIdle     time.Duration
}

// New builds a sweeper from configuration.
func New(reg *session.Registry, lim *ratelimit.Limiter, chatCfg config.ChatConfig, cfg config.SweepConfig) *Sweeper {
	interval := cfg.SessionInterval.Duration()
	if interval <= 0 {
		interval = config.DefaultSweepInterval
	}
	idle := cfg.LimiterIdle.Duration()
	if idle <= 0 {
		idle = config.DefaultLimiterIdle
	}
	cron := cfg.LimiterCron
	if cron == "" {
		cron = config.DefaultLimiterCron
	}
	return &Sweeper{
		registry:        reg,
		limiter:         lim,
		sessionInterval: interval,
		sessionTimeout:  chatCfg.SessionTimeoutOr(),
		limiterCron:     cron,
		limiterIdle:     idle,
	}
}

// Run starts both loops and blocks until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	go s.sessionLoop(ctx)
	s.limiterLoop(ctx)
}

func (s *Sweeper) sessionLoop(ctx context.Context) {
	t := time.NewTicker(s.sessionInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pruned := s.registry.SweepExpired(s.sessionTimeout)
			if len(pruned) == 0 {
				continue
			}
			telemetry.SessionsPruned.WithLabelValues("expired").Add(float64(len(pruned)))
			telemetry.LiveSessions.Set(float64(s.registry.Count()))
			logger.Info("sessions_expired", "count", len(pruned))
		}
	}
}

// limiterLoop trims idle limiter state on the configured cron schedule.
func (s *Sweeper) limiterLoop(ctx context.Context) {
	if !gronx.New().IsValid(s.limiterCron) {
		logger.Warn("limiter_cron_invalid", "expr", s.limiterCron)
		return
	}
	for {
		next, err := gronx.NextTick(s.limiterCron, false)
		if err != nil {
			logger.Warn("limiter_cron_next_failed", "error", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
			users := s.limiter.Sweep(s.limiterIdle)
			keys := auth.SweepLimiters(s.limiterIdle)
			logger.Info("limiters_swept", "chat_entries", users, "api_keys", keys)
		}
	}
}
