// Package app assembles the server from configuration and runs it.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/joho/godotenv"

	"crewchat/internal/sweeper"
	"crewchat/pkg/api"
	"crewchat/pkg/api/handlers"
	"crewchat/pkg/auth"
	"crewchat/pkg/banner"
	"crewchat/pkg/chat"
	"crewchat/pkg/config"
	"crewchat/pkg/logger"
	"crewchat/pkg/ratelimit"
	"crewchat/pkg/receipts"
	"crewchat/pkg/roster"
	"crewchat/pkg/session"
	"crewchat/pkg/store"
)

// App is the assembled server.
type App struct {
	cfg     *config.Config
	addr    string
	dbPath  string
	source  string
	version string

	registry *session.Registry
	chat     *chat.Server
	pool     *receipts.Pool
	sweeper  *sweeper.Sweeper
	httpSrv  *http.Server
}

// New loads configuration and wires every component. The store is
// opened here so Run starts serving with persistence ready.
func New(version string) (*App, error) {
	// .env is a convenience for local runs; absence is fine.
	_ = godotenv.Load()
	logger.Init()

	flags := config.ParseConfigFlags()
	eff, env, err := config.LoadEffective(flags)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := eff.Config
	if cfg.Logging.Level != "" {
		logger.InitWithLevel(cfg.Logging.Level)
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	primary := ""
	if len(cfg.Security.SigningKeys) > 0 {
		primary = cfg.Security.SigningKeys[0]
	}
	config.SetRuntime(&config.RuntimeConfig{
		SigningKeys:       env.SigningKeys,
		PrimarySigningKey: primary,
	})
	auth.SetAPIKeys(cfg.Security.APIKeys)
	auth.ConfigureRateLimit(cfg.Security.RateLimit.RPS, cfg.Security.RateLimit.Burst)

	if err := store.Open(eff.DBPath); err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	dir := roster.NewStaticDirectory(cfg.Crews, cfg.Users)
	lim := ratelimit.New(cfg.Chat.PerSecondOr(), cfg.Chat.PerMinuteOr())
	reg := session.NewRegistry()
	names := func(userID string) string { return dir.GetUser(userID).DisplayName }
	chatSrv := chat.NewServer(reg, dir, lim, cfg.Chat, cfg.Security.CORS.AllowedOrigins, names)
	pool := receipts.NewPool(4, 256)
	h := handlers.New(dir, pool, chatSrv)
	router := api.NewRouter(h, chatSrv, cfg.Security)

	a := &App{
		cfg:      cfg,
		addr:     eff.Addr,
		dbPath:   eff.DBPath,
		source:   eff.Source,
		version:  version,
		registry: reg,
		chat:     chatSrv,
		pool:     pool,
		sweeper:  sweeper.New(reg, lim, cfg.Chat, cfg.Sweep),
		httpSrv:  newHTTPServer(eff.Addr, router),
	}
	return a, nil
}

// Run serves until ctx is cancelled, then shuts down in order: HTTP
// listener, receipt workers, store.
func (a *App) Run(ctx context.Context) error {
	banner.Print(a.version, a.addr, a.dbPath, a.source)
	logger.Info("server_starting", "addr", a.addr, "config_source", a.source)

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	go a.sweeper.Run(sweepCtx)

	errCh := make(chan error, 1)
	go func() { errCh <- a.serve() }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			a.shutdown()
			return err
		}
	}
	logger.Info("server_stopping")
	return a.shutdown()
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	err := a.httpSrv.Shutdown(ctx)
	a.pool.Stop()
	if cerr := store.Close(); err == nil {
		err = cerr
	}
	logger.Info("server_stopped")
	return err
}
